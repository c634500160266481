package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"invoicehandler/internal/errors"
	"invoicehandler/internal/rules"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// Format identifies the on-disk syntax of a config file
type Format int

const (
	FormatINI Format = iota
	FormatYAML
	FormatTOML
)

func (f Format) String() string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatTOML:
		return "toml"
	default:
		return "ini"
	}
}

// FormatFor picks the format from the file extension. Anything that is not
// YAML or TOML is read as INI, including the extension-less ~/.invoicehandler.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	default:
		return FormatINI
	}
}

// File is the document model shared by every format: a settings section and
// an ordered list of translations.
type File struct {
	Settings     Settings     `yaml:"settings" toml:"settings"`
	Translations []rules.Spec `yaml:"translations" toml:"translations"`
}

// Settings holds the [settings] section. Pointer fields distinguish "unset"
// from an explicit zero so defaults apply only to missing keys.
type Settings struct {
	WatchDirectory   string   `yaml:"watch_directory" toml:"watch_directory"`
	MaxLockRetries   *int     `yaml:"max_lock_retries,omitempty" toml:"max_lock_retries,omitempty"`
	LockRetryDelayMs *int     `yaml:"lock_retry_delay_ms,omitempty" toml:"lock_retry_delay_ms,omitempty"`
	ScanExisting     bool     `yaml:"scan_existing,omitempty" toml:"scan_existing,omitempty"`
	DryRun           bool     `yaml:"dry_run,omitempty" toml:"dry_run,omitempty"`
	Ignore           []string `yaml:"ignore,omitempty" toml:"ignore,omitempty"`
	HistoryDB        string   `yaml:"history_db,omitempty" toml:"history_db,omitempty"`
}

// Parse decodes data in the given format
func Parse(data []byte, format Format) (*File, error) {
	var (
		file *File
		err  error
	)
	switch format {
	case FormatYAML:
		file = &File{}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		// An empty document decodes to io.EOF; treat it like an empty file.
		if err = dec.Decode(file); err == io.EOF {
			err = nil
		}
	case FormatTOML:
		file = &File{}
		err = toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(file)
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			keys := make([]string, 0, len(strict.Errors))
			for _, e := range strict.Errors {
				keys = append(keys, strings.Join(e.Key(), "."))
			}
			err = errors.NewConfigError("unknown key", strings.Join(keys, ", "), errors.InvalidConfig, nil)
		}
	default:
		file, err = parseINI(data)
	}
	if err != nil {
		return nil, err
	}
	return file, nil
}

var iniOptions = ini.LoadOptions{
	// Patterns routinely contain ':' so only '=' separates key from value.
	KeyValueDelimiters:  "=",
	IgnoreInlineComment: true,
	IgnoreContinuation:  true,
}

func parseINI(data []byte) (*File, error) {
	f, err := ini.LoadSources(iniOptions, data)
	if err != nil {
		return nil, err
	}

	sec, err := f.GetSection("settings")
	if err != nil {
		return nil, errors.NewConfigError("missing section", "[settings]", errors.InvalidConfig, nil)
	}

	file := &File{}
	s := &file.Settings
	if sec.HasKey("watch_directory") {
		s.WatchDirectory = sec.Key("watch_directory").String()
	}
	if s.MaxLockRetries, err = iniInt(sec, "max_lock_retries"); err != nil {
		return nil, err
	}
	if s.LockRetryDelayMs, err = iniInt(sec, "lock_retry_delay_ms"); err != nil {
		return nil, err
	}
	if s.ScanExisting, err = iniBool(sec, "scan_existing"); err != nil {
		return nil, err
	}
	if s.DryRun, err = iniBool(sec, "dry_run"); err != nil {
		return nil, err
	}
	if sec.HasKey("ignore") {
		for _, p := range sec.Key("ignore").Strings(",") {
			if p != "" {
				s.Ignore = append(s.Ignore, p)
			}
		}
	}

	s.HistoryDB = sec.Key("history_db").String()

	// Key order in the section is the evaluation order of the rules.
	if trans, err := f.GetSection("translations"); err == nil {
		for _, k := range trans.Keys() {
			file.Translations = append(file.Translations, rules.Spec{Pattern: k.Name(), Replacement: k.Value()})
		}
	}
	return file, nil
}

func iniInt(sec *ini.Section, name string) (*int, error) {
	if !sec.HasKey(name) {
		return nil, nil
	}
	n, err := sec.Key(name).Int()
	if err != nil {
		return nil, errors.NewConfigError("invalid integer", name, errors.InvalidConfig, err)
	}
	return &n, nil
}

func iniBool(sec *ini.Section, name string) (bool, error) {
	if !sec.HasKey(name) {
		return false, nil
	}
	b, err := sec.Key(name).Bool()
	if err != nil {
		return false, errors.NewConfigError("invalid boolean", name, errors.InvalidConfig, err)
	}
	return b, nil
}

// ExampleFile returns a starter configuration for dir
func ExampleFile(dir string) *File {
	retries, delay := defaultMaxLockRetries, defaultLockRetryDelayMs
	return &File{
		Settings: Settings{
			WatchDirectory:   dir,
			MaxLockRetries:   &retries,
			LockRetryDelayMs: &delay,
			Ignore:           []string{"*.part", "*.crdownload", ".*"},
		},
		Translations: []rules.Spec{
			{Pattern: `invoice_(\d{4})_(\d{2})_(\d{2})_(.+)\.pdf`, Replacement: "Invoice_$4_$1-$2-$3.pdf"},
		},
	}
}

// SaveFile writes file to path in the format implied by its extension.
// It creates parent directories if they don't exist.
func SaveFile(file *File, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	switch FormatFor(path) {
	case FormatYAML:
		data, err = yaml.Marshal(file)
	case FormatTOML:
		data, err = toml.Marshal(file)
	default:
		data, err = marshalINI(file)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func marshalINI(file *File) ([]byte, error) {
	f := ini.Empty(iniOptions)
	sec, err := f.NewSection("settings")
	if err != nil {
		return nil, err
	}
	s := file.Settings
	keys := [][2]string{{"watch_directory", s.WatchDirectory}}
	if s.MaxLockRetries != nil {
		keys = append(keys, [2]string{"max_lock_retries", fmt.Sprint(*s.MaxLockRetries)})
	}
	if s.LockRetryDelayMs != nil {
		keys = append(keys, [2]string{"lock_retry_delay_ms", fmt.Sprint(*s.LockRetryDelayMs)})
	}
	if s.ScanExisting {
		keys = append(keys, [2]string{"scan_existing", "true"})
	}
	if s.DryRun {
		keys = append(keys, [2]string{"dry_run", "true"})
	}
	if len(s.Ignore) > 0 {
		keys = append(keys, [2]string{"ignore", strings.Join(s.Ignore, ",")})
	}
	if s.HistoryDB != "" {
		keys = append(keys, [2]string{"history_db", s.HistoryDB})
	}
	for _, kv := range keys {
		if _, err := sec.NewKey(kv[0], kv[1]); err != nil {
			return nil, err
		}
	}

	trans, err := f.NewSection("translations")
	if err != nil {
		return nil, err
	}
	for _, spec := range file.Translations {
		if _, err := trans.NewKey(spec.Pattern, spec.Replacement); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
