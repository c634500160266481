//go:build unix

package lock

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"invoicehandler/internal/errors"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestAcquireRespectsWriterFlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.pdf")
	require.NoError(t, os.WriteFile(path, []byte("partial"), 0o644))

	writer, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)
	require.NoError(t, unix.Flock(int(writer.Fd()), unix.LOCK_EX))

	clock := &fakeClock{}
	o := NewOpener(afero.NewOsFs(), WithClock(clock))

	_, err = o.Acquire(path, RetryPolicy{MaxAttempts: 2, Delay: time.Millisecond})
	require.Error(t, err)
	assert.True(t, errors.IsRetriesExhausted(err))
	assert.Len(t, clock.sleeps, 1)

	// Once the writer lets go the file can be claimed.
	require.NoError(t, writer.Close())
	f, err := o.Acquire(path, RetryPolicy{MaxAttempts: 2})
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestIsLockViolation(t *testing.T) {
	assert.True(t, IsRetryable(&os.PathError{Op: "lock", Path: "x", Err: unix.EWOULDBLOCK}))
	assert.False(t, IsRetryable(&os.PathError{Op: "open", Path: "x", Err: unix.ENOENT}))
}
