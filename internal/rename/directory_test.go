package rename_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"invoicehandler/internal/config"
	"invoicehandler/internal/lock"
	"invoicehandler/internal/rename"
	"invoicehandler/internal/rules"
	"invoicehandler/pkg/testutils"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListFilesSkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	testutils.CreateTestFiles(t, dir, "c.pdf", "a.pdf", "b.txt")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.pdf"), 0o755))

	files, err := rename.ListFiles(afero.NewOsFs(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.pdf"),
		filepath.Join(dir, "b.txt"),
		filepath.Join(dir, "c.pdf"),
	}, files)

	_, err = rename.ListFiles(afero.NewOsFs(), filepath.Join(dir, "a.pdf"))
	assert.Error(t, err)
}

func TestProcessDirectory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"invoice_2024_01_02_acme.pdf", "invoice_2023_12_31_globex.pdf", "readme.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644))
	}

	cfg, err := config.Build(&config.File{
		Settings:     config.Settings{WatchDirectory: dir},
		Translations: []rules.Spec{invoiceRule},
	})
	require.NoError(t, err)

	results, err := rename.ProcessDirectory(context.Background(), rename.NewOS(), cfg)
	require.NoError(t, err)
	require.Len(t, results, 3)

	counts := map[rename.Status]int{}
	for _, r := range results {
		counts[r.Status]++
	}
	assert.Equal(t, 2, counts[rename.Renamed])
	assert.Equal(t, 1, counts[rename.Skipped])

	assert.FileExists(t, filepath.Join(dir, "Invoice_acme_2024-01-02.pdf"))
	assert.FileExists(t, filepath.Join(dir, "Invoice_globex_2023-12-31.pdf"))
	assert.FileExists(t, filepath.Join(dir, "readme.txt"))
}

func TestProcessDirectoryUsesEngineFilesystem(t *testing.T) {
	// The directory exists on disk for config validation but is empty; the
	// files only exist on the engine's in-memory filesystem.
	dir := t.TempDir()
	mem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mem, filepath.Join(dir, "invoice_2024_01_02_acme.pdf"), []byte("pdf"), 0o644))
	require.NoError(t, afero.WriteFile(mem, filepath.Join(dir, "readme.txt"), nil, 0o644))

	cfg, err := config.Build(&config.File{
		Settings:     config.Settings{WatchDirectory: dir},
		Translations: []rules.Spec{invoiceRule},
	})
	require.NoError(t, err)

	results, err := rename.ProcessDirectory(context.Background(), rename.New(mem, lock.NewOpener(mem)), cfg)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, rename.Renamed, results[0].Status)
	assert.Equal(t, rename.Skipped, results[1].Status)

	ok, err := afero.Exists(mem, filepath.Join(dir, "Invoice_acme_2024-01-02.pdf"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoFileExists(t, filepath.Join(dir, "Invoice_acme_2024-01-02.pdf"), "the real directory is untouched")
}

func TestProcessDirectoryCancelled(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "invoice_2024_01_02_acme.pdf"), nil, 0o644))

	cfg, err := config.Build(&config.File{
		Settings:     config.Settings{WatchDirectory: dir},
		Translations: []rules.Spec{invoiceRule},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := rename.ProcessDirectory(ctx, rename.NewOS(), cfg)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
	assert.FileExists(t, filepath.Join(dir, "invoice_2024_01_02_acme.pdf"))
}
