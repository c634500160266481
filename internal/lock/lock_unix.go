//go:build unix

package lock

import (
	"errors"

	"golang.org/x/sys/unix"
)

type fder interface {
	Fd() uintptr
}

// tryLock takes a non-blocking exclusive flock. Writers that hold their own
// flock make it fail with EWOULDBLOCK; the lock is released on close.
func tryLock(f interface{}) error {
	fd, ok := f.(fder)
	if !ok {
		return nil
	}
	return unix.Flock(int(fd.Fd()), unix.LOCK_EX|unix.LOCK_NB)
}

func isLockViolation(err error) bool {
	return errors.Is(err, unix.EWOULDBLOCK) ||
		errors.Is(err, unix.EAGAIN) ||
		errors.Is(err, unix.EBUSY) ||
		errors.Is(err, unix.ETXTBSY)
}
