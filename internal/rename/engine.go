// Package rename applies the first matching rule to a single file: it claims
// the file through the lock-aware opener, resolves name collisions and moves
// it within its directory.
package rename

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"invoicehandler/internal/config"
	"invoicehandler/internal/errors"
	"invoicehandler/internal/lock"
	"invoicehandler/internal/log"
	"invoicehandler/internal/rules"

	"github.com/spf13/afero"
)

// MaxCollisionAttempts bounds the "name (N).ext" search
const MaxCollisionAttempts = 100

// Skip reasons
const (
	ReasonNoMatch   = "no-match"
	ReasonIgnored   = "ignored"
	ReasonUnchanged = "unchanged"
)

// Processor renames one file against a config snapshot
type Processor interface {
	Process(path string, cfg *config.Config) Outcome
	// List returns the regular files of dir in name order
	List(dir string) ([]string, error)
}

// Engine is the default Processor. It holds no per-call state.
type Engine struct {
	fs     afero.Fs
	opener lock.Acquirer
}

// Ensure Engine implements the Processor interface
var _ Processor = (*Engine)(nil)

// New creates an Engine over fsys that claims files with opener
func New(fsys afero.Fs, opener lock.Acquirer) *Engine {
	return &Engine{fs: fsys, opener: opener}
}

// NewOS creates an Engine on the real filesystem
func NewOS() *Engine {
	fsys := afero.NewOsFs()
	return New(fsys, lock.NewOpener(fsys))
}

// List returns the regular files of dir on the engine's filesystem
func (e *Engine) List(dir string) ([]string, error) {
	return ListFiles(e.fs, dir)
}

// Resolve decides what a file name would be renamed to without touching the
// filesystem. It returns the rendered name and rule, or a skip reason.
func Resolve(name string, cfg *config.Config) (target string, rule *rules.Rule, reason string) {
	if cfg.Ignored(name) {
		return "", nil, ReasonIgnored
	}
	rendered, rule, ok := cfg.Rules.MatchAndRender(name)
	if !ok {
		return "", nil, ReasonNoMatch
	}
	if rendered == name {
		return rendered, rule, ReasonUnchanged
	}
	return rendered, rule, ""
}

// Process runs the full rename pipeline for path using the given config
// generation. Every failure is reported in the Outcome and never panics.
func (e *Engine) Process(path string, cfg *config.Config) Outcome {
	path = filepath.Clean(path)
	dir, name := filepath.Split(path)
	out := Outcome{From: path}

	target, rule, reason := Resolve(name, cfg)
	out.Rule = rule
	if reason != "" {
		out.Status = Skipped
		out.Reason = reason
		log.LogWithFields(log.F("file", path), log.F("reason", reason)).Debug("Skipping file")
		return out
	}

	if err := validTarget(target); err != nil {
		return out.fail(errors.NewFileError("rendered name is not a plain file name", path, errors.InvalidTarget, err))
	}

	if cfg.DryRun {
		dest, err := e.uniqueDest(filepath.Join(dir, target))
		if err != nil {
			return out.fail(err)
		}
		out.Status = Planned
		out.To = dest
		log.LogWithFields(log.F("from", path), log.F("to", dest)).Info("Would rename file")
		return out
	}

	f, err := e.opener.Acquire(path, cfg.RetryPolicy)
	if err != nil {
		return out.fail(err)
	}
	// Only exclusive access is needed, the move happens on a closed file.
	if err := f.Close(); err != nil {
		log.LogWithFields(log.F("file", path)).WithError(err).Warn("Closing claimed file failed")
	}

	dest, err := e.uniqueDest(filepath.Join(dir, target))
	if err != nil {
		return out.fail(err)
	}

	log.Debugf("Moving %s to %s", path, dest)
	if err := e.fs.Rename(path, dest); err != nil {
		return out.fail(errors.NewFileError("failed to rename file", path, errors.MoveFailed, err))
	}

	out.Status = Renamed
	out.To = dest
	log.LogWithFields(log.F("from", path), log.F("to", dest), log.F("rule", rule.Pattern())).Info("Renamed file")
	return out
}

// uniqueDest returns dest if free, otherwise the first free "name (N).ext"
func (e *Engine) uniqueDest(dest string) (string, error) {
	exists, err := afero.Exists(e.fs, dest)
	if err != nil {
		return "", errors.NewFileError("error checking destination", dest, errors.MoveFailed, err)
	}
	if !exists {
		return dest, nil
	}

	ext := filepath.Ext(dest)
	base := strings.TrimSuffix(dest, ext)
	for counter := 1; counter <= MaxCollisionAttempts; counter++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, counter, ext)
		exists, err := afero.Exists(e.fs, candidate)
		if err != nil {
			return "", errors.NewFileError("error checking destination", candidate, errors.MoveFailed, err)
		}
		if !exists {
			log.LogWithFields(log.F("wanted", dest), log.F("using", candidate)).Info("Destination exists, using numbered name")
			return candidate, nil
		}
	}

	return "", errors.NewFileError(
		fmt.Sprintf("no free name after %d attempts", MaxCollisionAttempts),
		dest, errors.CollisionExhausted, nil,
	).WithAttempts(MaxCollisionAttempts)
}

// validTarget rejects names that would leave the directory or name nothing
func validTarget(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%q", name)
	case strings.ContainsRune(name, '/'), strings.ContainsRune(name, os.PathSeparator):
		return fmt.Errorf("%q contains a path separator", name)
	case strings.ContainsRune(name, 0):
		return fmt.Errorf("%q contains a NUL byte", name)
	}
	return nil
}
