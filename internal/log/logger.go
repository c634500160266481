// Package log is the structured logger used across invoicehandler. It wraps
// logrus with the small field-oriented API the rest of the code relies on.
package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync/atomic"

	"invoicehandler/internal/errors"

	"github.com/sirupsen/logrus"
)

var (
	isDebug atomic.Bool
	logger  = NewLogger()
)

// Field is a single key/value pair attached to a log entry
type Field struct {
	Key   string
	Value interface{}
}

// F is shorthand for building a Field
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Logger writes leveled, structured entries through logrus
type Logger struct {
	entry *logrus.Entry
	file  *os.File
}

type options struct {
	out  io.Writer
	json bool
	file string
}

// Option configures a Logger
type Option func(*options)

// WithOutput sends log output to w instead of stdout
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// WithJSON switches to one JSON object per line
func WithJSON() Option {
	return func(o *options) { o.json = true }
}

// WithFile additionally appends log output to the file at path
func WithFile(path string) Option {
	return func(o *options) { o.file = path }
}

// NewLogger creates a logger. Without options it writes text to stdout.
func NewLogger(opts ...Option) *Logger {
	o := options{out: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	l := &Logger{}
	out := o.out
	if o.file != "" {
		f, err := os.OpenFile(o.file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log: cannot open %s: %v\n", o.file, err)
		} else {
			l.file = f
			out = io.MultiWriter(o.out, f)
		}
	}

	base := logrus.New()
	base.SetOutput(out)
	// Debug entries are gated by SetDebug, so logrus itself lets everything through.
	base.SetLevel(logrus.DebugLevel)
	base.SetFormatter(&formatter{json: o.json})

	l.entry = logrus.NewEntry(base)
	return l
}

// Configure replaces the package-level logger and closes the log file of the
// one it replaces.
func Configure(opts ...Option) {
	prev := logger
	logger = NewLogger(opts...)
	if err := prev.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "log: closing previous log file: %v\n", err)
	}
}

// SetDebug toggles debug output for every logger
func SetDebug(debug bool) {
	isDebug.Store(debug)
}

// Close releases the log file opened by WithFile, if any
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// With returns a child logger carrying the given fields
func (l *Logger) With(fields ...Field) *Logger {
	data := make(logrus.Fields, len(fields))
	for _, f := range fields {
		data[f.Key] = f.Value
	}
	return &Logger{entry: l.entry.WithFields(data), file: l.file}
}

// WithError returns a child logger describing err, including the typed
// details of application errors.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l.With(F("error", "<nil>"))
	}

	fields := []Field{F("error", err.Error())}
	if kind := errors.KindOf(err); kind != errors.Unknown {
		fields = append(fields, F("error_kind", kind.String()))
	}

	var fileErr *errors.FileError
	if errors.As(err, &fileErr) {
		fields = append(fields, F("path", fileErr.Path()))
		if fileErr.Attempts() > 0 {
			fields = append(fields, F("attempts", fileErr.Attempts()))
		}
	}
	var configErr *errors.ConfigError
	if errors.As(err, &configErr) && configErr.Param() != "" {
		fields = append(fields, F("param", configErr.Param()))
	}
	var ruleErr *errors.RuleError
	if errors.As(err, &ruleErr) && ruleErr.Pattern() != "" {
		fields = append(fields, F("pattern", ruleErr.Pattern()))
	}
	return l.With(fields...)
}

func (l *Logger) Debug(msg string) { l.logMsg(logrus.DebugLevel, msg) }
func (l *Logger) Info(msg string)  { l.logMsg(logrus.InfoLevel, msg) }
func (l *Logger) Warn(msg string)  { l.logMsg(logrus.WarnLevel, msg) }
func (l *Logger) Error(msg string) { l.logMsg(logrus.ErrorLevel, msg) }

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logf(logrus.DebugLevel, format, args...)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.logf(logrus.InfoLevel, format, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logf(logrus.WarnLevel, format, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logf(logrus.ErrorLevel, format, args...)
}

// logMsg and logf must be called directly from the exported functions so the
// caller frame is always three levels above emit.
func (l *Logger) logMsg(level logrus.Level, msg string) {
	l.emit(level, msg)
}

func (l *Logger) logf(level logrus.Level, format string, args ...interface{}) {
	if level == logrus.DebugLevel && !isDebug.Load() {
		return
	}
	l.emit(level, fmt.Sprintf(format, args...))
}

func (l *Logger) emit(level logrus.Level, msg string) {
	if level == logrus.DebugLevel && !isDebug.Load() {
		return
	}
	entry := l.entry
	if _, file, line, ok := runtime.Caller(3); ok {
		entry = entry.WithField("caller", fmt.Sprintf("%s:%d", filepath.Base(file), line))
	}
	entry.Log(level, msg)
}

// LogWithFields returns the package-level logger with fields attached
func LogWithFields(fields ...Field) *Logger {
	return logger.With(fields...)
}

// LogWithError returns the package-level logger describing err
func LogWithError(err error) *Logger {
	return logger.WithError(err)
}

func Debug(msg string) { logger.logMsg(logrus.DebugLevel, msg) }
func Info(msg string)  { logger.logMsg(logrus.InfoLevel, msg) }
func Warn(msg string)  { logger.logMsg(logrus.WarnLevel, msg) }
func Error(msg string) { logger.logMsg(logrus.ErrorLevel, msg) }

func Debugf(format string, args ...interface{}) {
	logger.logf(logrus.DebugLevel, format, args...)
}

func Infof(format string, args ...interface{}) {
	logger.logf(logrus.InfoLevel, format, args...)
}

func Warnf(format string, args ...interface{}) {
	logger.logf(logrus.WarnLevel, format, args...)
}

func Errorf(format string, args ...interface{}) {
	logger.logf(logrus.ErrorLevel, format, args...)
}

// formatter renders "[time] LEVEL: message key=value ..." or a JSON object
// with level, message, timestamp and caller keys.
type formatter struct {
	json bool
}

const timestampFormat = "2006-01-02 15:04:05"

func (f *formatter) Format(e *logrus.Entry) ([]byte, error) {
	level := strings.ToUpper(e.Level.String())
	if level == "WARNING" {
		level = "WARN"
	}

	if f.json {
		data := make(map[string]interface{}, len(e.Data)+3)
		for k, v := range e.Data {
			if err, ok := v.(error); ok {
				v = err.Error()
			}
			data[k] = v
		}
		data["level"] = level
		data["message"] = e.Message
		data["timestamp"] = e.Time.Format(timestampFormat)
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal log entry: %w", err)
		}
		return append(b, '\n'), nil
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "[%s] %s: %s", e.Time.Format(timestampFormat), level, e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := fmt.Sprint(e.Data[k])
		if strings.ContainsAny(v, " \t\"=") {
			v = fmt.Sprintf("%q", v)
		}
		fmt.Fprintf(&buf, " %s=%s", k, v)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
