package config_test

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"invoicehandler/internal/config"
	"invoicehandler/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadINI(t *testing.T, dir, translations string) (*config.Config, string) {
	t.Helper()
	path := writeConfig(t, "config.ini", fmt.Sprintf("[settings]\nwatch_directory = %s\n[translations]\n%s", dir, translations))
	cfg, err := config.LoadConfigFile(path)
	require.NoError(t, err)
	return cfg, path
}

func TestStoreGenerations(t *testing.T) {
	cfg, _ := loadINI(t, t.TempDir(), "a = b\n")

	s := config.NewStore(cfg)
	first := s.Load()
	assert.Equal(t, uint64(1), first.Generation)

	published := s.Swap(cfg)
	assert.Equal(t, uint64(2), published.Generation)
	assert.Equal(t, uint64(1), first.Generation, "published generations are never modified")
	assert.Same(t, published, s.Load())
}

func TestStoreReloadKeepsOldOnInvalidEdit(t *testing.T) {
	dir := t.TempDir()
	cfg, path := loadINI(t, dir, "a_(\\d+) = A_$1\n")
	s := config.NewStore(cfg)

	// An invalid regex anywhere rejects the whole edit.
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(
		"[settings]\nwatch_directory = %s\n[translations]\nb_(\\d+) = B_$1\nbroken(( = x\n", dir)), 0o644))

	_, err := s.Reload(path, nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidConfig(err))

	current := s.Load()
	assert.Equal(t, uint64(1), current.Generation)
	out, _, ok := current.Rules.MatchAndRender("a_7")
	require.True(t, ok)
	assert.Equal(t, "A_7", out)
}

func TestStoreReloadPrepare(t *testing.T) {
	oldDir, newDir := t.TempDir(), t.TempDir()
	cfg, path := loadINI(t, oldDir, "")
	s := config.NewStore(cfg)

	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("[settings]\nwatch_directory = %s\n", newDir)), 0o644))

	t.Run("prepare failure discards candidate", func(t *testing.T) {
		_, err := s.Reload(path, func(old, next *config.Config) error {
			assert.Equal(t, oldDir, old.WatchDirectory)
			assert.Equal(t, newDir, next.WatchDirectory)
			return fmt.Errorf("cannot watch %s", next.WatchDirectory)
		})
		require.Error(t, err)
		assert.Equal(t, oldDir, s.Load().WatchDirectory)
	})

	t.Run("prepare success publishes", func(t *testing.T) {
		next, err := s.Reload(path, func(old, next *config.Config) error { return nil })
		require.NoError(t, err)
		assert.Equal(t, newDir, next.WatchDirectory)
		assert.Equal(t, uint64(2), s.Load().Generation)
	})
}

func TestStoreConcurrentReaders(t *testing.T) {
	dir := t.TempDir()
	cfg, _ := loadINI(t, dir, "x = y\n")
	s := config.NewStore(cfg)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c := s.Load()
				assert.Equal(t, filepath.Clean(dir), c.WatchDirectory)
				assert.Equal(t, 1, c.Rules.Len())
			}
		}()
	}
	for i := 0; i < 50; i++ {
		s.Swap(cfg)
	}
	wg.Wait()
	assert.Equal(t, uint64(51), s.Load().Generation)
}

func TestStoreOverridesSurviveReload(t *testing.T) {
	dir := t.TempDir()
	cfg, path := loadINI(t, dir, "")
	require.False(t, cfg.DryRun)

	s := config.NewStore(cfg, config.DryRun(), config.ScanExisting())
	assert.True(t, s.Load().DryRun)
	assert.True(t, s.Load().ScanExisting)
	assert.False(t, cfg.DryRun, "the loaded generation itself is not modified")

	next, err := s.Reload(path, nil)
	require.NoError(t, err)
	assert.True(t, next.DryRun)
	assert.True(t, next.ScanExisting)
}
