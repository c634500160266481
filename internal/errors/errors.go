// Package errors provides standardized error handling for invoicehandler.
// It defines the error taxonomy of the rename daemon (config, rule, lock,
// collision and move errors) and helper predicates used by the watch loop to
// decide what is fatal and what only aborts the current file.
package errors

import (
	"errors"
	"fmt"
)

// Standard errors package errors that we re-export for convenience
var (
	// Is reports whether any error in err's chain matches target
	Is = errors.Is
	// As finds the first error in err's chain that matches target
	As = errors.As
)

// ErrorKind represents the kind of error
type ErrorKind int

// Error kinds
const (
	Unknown ErrorKind = iota
	// Config error kinds
	InvalidConfig
	ConfigNotFound
	// Rule error kinds
	InvalidRule
	InvalidReplacement
	// Lock error kinds
	LockRetryable
	LockTerminal
	LockExhausted
	// Rename error kinds
	CollisionExhausted
	InvalidTarget
	MoveFailed
)

var kindNames = map[ErrorKind]string{
	Unknown:            "unknown",
	InvalidConfig:      "invalid-config",
	ConfigNotFound:     "config-not-found",
	InvalidRule:        "invalid-rule",
	InvalidReplacement: "invalid-replacement",
	LockRetryable:      "locked",
	LockTerminal:       "inaccessible",
	LockExhausted:      "retries-exhausted",
	CollisionExhausted: "collision-exhausted",
	InvalidTarget:      "invalid-target",
	MoveFailed:         "move-failed",
}

// String returns a short, log-friendly name for the kind
func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ApplicationError is the base error type for all application errors
type ApplicationError struct {
	msg  string
	err  error
	kind ErrorKind
}

// Error returns the error message
func (e *ApplicationError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

// Unwrap returns the wrapped error
func (e *ApplicationError) Unwrap() error {
	return e.err
}

// Kind returns the kind of error
func (e *ApplicationError) Kind() ErrorKind {
	return e.kind
}

// ConfigError represents errors related to loading or validating configuration
type ConfigError struct {
	ApplicationError
	param string
}

// NewConfigError creates a new configuration error
func NewConfigError(msg string, param string, kind ErrorKind, err error) *ConfigError {
	return &ConfigError{
		ApplicationError: ApplicationError{
			msg:  msg,
			err:  err,
			kind: kind,
		},
		param: param,
	}
}

// Error returns the config error message
func (e *ConfigError) Error() string {
	if e.param != "" {
		if e.err != nil {
			return fmt.Sprintf("%s: %s: %v", e.msg, e.param, e.err)
		}
		return fmt.Sprintf("%s: %s", e.msg, e.param)
	}
	return e.ApplicationError.Error()
}

// Param returns the configuration parameter associated with the error
func (e *ConfigError) Param() string {
	return e.param
}

// RuleError represents errors related to a single rename rule
type RuleError struct {
	ApplicationError
	pattern string
}

// NewRuleError creates a new rule error
func NewRuleError(msg string, pattern string, kind ErrorKind, err error) *RuleError {
	return &RuleError{
		ApplicationError: ApplicationError{
			msg:  msg,
			err:  err,
			kind: kind,
		},
		pattern: pattern,
	}
}

// Error returns the rule error message
func (e *RuleError) Error() string {
	if e.pattern != "" {
		if e.err != nil {
			return fmt.Sprintf("%s: %q: %v", e.msg, e.pattern, e.err)
		}
		return fmt.Sprintf("%s: %q", e.msg, e.pattern)
	}
	return e.ApplicationError.Error()
}

// Pattern returns the rule pattern associated with the error
func (e *RuleError) Pattern() string {
	return e.pattern
}

// FileError represents errors tied to one file of the watched directory:
// lock acquisition, collision resolution and the move itself.
type FileError struct {
	ApplicationError
	path     string
	attempts int
}

// NewFileError creates a new file error
func NewFileError(msg string, path string, kind ErrorKind, err error) *FileError {
	return &FileError{
		ApplicationError: ApplicationError{
			msg:  msg,
			err:  err,
			kind: kind,
		},
		path: path,
	}
}

// WithAttempts records how many attempts were made before the error
func (e *FileError) WithAttempts(n int) *FileError {
	e.attempts = n
	return e
}

// Error returns the file error message
func (e *FileError) Error() string {
	if e.path != "" {
		if e.err != nil {
			return fmt.Sprintf("%s: %s: %v", e.msg, e.path, e.err)
		}
		return fmt.Sprintf("%s: %s", e.msg, e.path)
	}
	return e.ApplicationError.Error()
}

// Path returns the file path associated with the error
func (e *FileError) Path() string {
	return e.path
}

// Attempts returns the number of attempts made, if recorded
func (e *FileError) Attempts() int {
	return e.attempts
}

// KindOf returns the kind of the first typed error in err's chain
func KindOf(err error) ErrorKind {
	var k interface{ Kind() ErrorKind }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return Unknown
}

func fileErrorKind(err error) (ErrorKind, bool) {
	var fileErr *FileError
	if errors.As(err, &fileErr) {
		return fileErr.Kind(), true
	}
	return Unknown, false
}

// IsInvalidConfig checks if the error is a configuration error of any kind
func IsInvalidConfig(err error) bool {
	var configErr *ConfigError
	return errors.As(err, &configErr)
}

// IsConfigNotFound checks if the error reports a missing configuration file
func IsConfigNotFound(err error) bool {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr.Kind() == ConfigNotFound
	}
	return false
}

// IsInvalidRule checks if the error is a rule error (bad pattern or replacement)
func IsInvalidRule(err error) bool {
	var ruleErr *RuleError
	return errors.As(err, &ruleErr)
}

// IsLockRetryable checks if the error is a transient lock violation
func IsLockRetryable(err error) bool {
	kind, ok := fileErrorKind(err)
	return ok && kind == LockRetryable
}

// IsRetriesExhausted checks if lock acquisition gave up after its retry budget
func IsRetriesExhausted(err error) bool {
	kind, ok := fileErrorKind(err)
	return ok && kind == LockExhausted
}

// IsCollision checks if no free destination name could be found
func IsCollision(err error) bool {
	kind, ok := fileErrorKind(err)
	return ok && kind == CollisionExhausted
}

// IsMoveFailed checks if the final rename step failed
func IsMoveFailed(err error) bool {
	kind, ok := fileErrorKind(err)
	return ok && kind == MoveFailed
}
