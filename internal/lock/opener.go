// Package lock acquires exclusive access to files that another process may
// still be writing, retrying a bounded number of times with a fixed delay.
package lock

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"invoicehandler/internal/errors"
	"invoicehandler/internal/log"

	"github.com/spf13/afero"
)

// ErrLocked marks an open failure as a transient lock violation. Platform
// specific sharing violations are classified the same way.
var ErrLocked = stderrors.New("file is locked by another process")

// RetryPolicy bounds lock acquisition. Immutable per config generation.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// Attempts is the total number of opens performed before giving up. A policy
// of zero still opens exactly once.
func (p RetryPolicy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Clock abstracts the retry delay so tests do not sleep
type Clock interface {
	Sleep(d time.Duration)
}

// RealClock sleeps on the wall clock
type RealClock struct{}

// Sleep blocks for d
func (RealClock) Sleep(d time.Duration) { time.Sleep(d) }

// Acquirer is what the rename engine needs from an Opener
type Acquirer interface {
	Acquire(path string, policy RetryPolicy) (afero.File, error)
}

// Opener claims files for exclusive use
type Opener struct {
	fs    afero.Fs
	clock Clock
}

// Option configures an Opener
type Option func(*Opener)

// WithClock replaces the clock used between attempts
func WithClock(c Clock) Option {
	return func(o *Opener) { o.clock = c }
}

// NewOpener creates an Opener over fsys
func NewOpener(fsys afero.Fs, opts ...Option) *Opener {
	o := &Opener{fs: fsys, clock: RealClock{}}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Acquire runs the retry state machine to completion and returns the open
// handle on success. The caller must close it.
func (o *Opener) Acquire(path string, policy RetryPolicy) (afero.File, error) {
	a := o.Begin(path, policy)
	for !a.Done() {
		a.Step()
	}
	return a.Result()
}

// Begin starts an acquisition in the Idle state without touching the file
func (o *Opener) Begin(path string, policy RetryPolicy) *Acquisition {
	return &Acquisition{opener: o, path: path, policy: policy, state: Idle}
}

// tryOpen performs one attempt: a read-write open followed by a non-blocking
// exclusive lock where the platform supports it.
func (o *Opener) tryOpen(path string) (afero.File, error) {
	info, err := o.fs.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fmt.Errorf("is a directory")}
	}

	f, err := o.fs.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	if err := tryLock(f); err != nil {
		f.Close()
		return nil, &fs.PathError{Op: "lock", Path: path, Err: err}
	}
	return f, nil
}

// IsRetryable reports whether an open failure is a transient lock violation
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return stderrors.Is(err, ErrLocked) || errors.IsLockRetryable(err) || isLockViolation(err)
}

// Acquisition is a single run of the lock state machine for one path
type Acquisition struct {
	opener   *Opener
	path     string
	policy   RetryPolicy
	state    State
	attempts int
	file     afero.File
	err      error
	// Classified error of the most recent failed attempt
	lastErr error
}

// State returns the current state
func (a *Acquisition) State() State {
	return a.state
}

// Attempts returns the number of opens performed so far
func (a *Acquisition) Attempts() int {
	return a.attempts
}

// Done reports whether a terminal state was reached
func (a *Acquisition) Done() bool {
	return a.state.Terminal()
}

// Result returns the handle or the classified error once Done
func (a *Acquisition) Result() (afero.File, error) {
	if !a.Done() {
		return nil, fmt.Errorf("acquisition of %s still in state %s", a.path, a.state)
	}
	return a.file, a.err
}

// LastError returns the error of the most recent failed attempt, nil if none
// failed yet. While Retrying it is a LockRetryable file error.
func (a *Acquisition) LastError() error {
	return a.lastErr
}

// Step performs one transition. From Retrying it first waits the policy
// delay. Steps on a terminal state do nothing.
func (a *Acquisition) Step() State {
	if a.Done() {
		return a.state
	}
	if a.state == Retrying && a.policy.Delay > 0 {
		a.opener.clock.Sleep(a.policy.Delay)
	}

	a.attempts++
	f, err := a.opener.tryOpen(a.path)
	switch {
	case err == nil:
		a.file = f
		a.state = Succeeded

	case !IsRetryable(err):
		a.err = errors.NewFileError("cannot open file", a.path, errors.LockTerminal, err).WithAttempts(a.attempts)
		a.lastErr = a.err
		a.state = Failed

	case a.attempts < a.policy.Attempts():
		a.lastErr = errors.NewFileError("file is locked", a.path, errors.LockRetryable, err).WithAttempts(a.attempts)
		log.LogWithError(a.lastErr).With(log.F("max_attempts", a.policy.Attempts())).Info("File is locked, retrying")
		a.state = Retrying

	default:
		a.err = errors.NewFileError("file remained locked", a.path, errors.LockExhausted, err).WithAttempts(a.attempts)
		a.lastErr = a.err
		a.state = GaveUp
	}
	return a.state
}
