package rename

import (
	"context"
	"fmt"
	"path/filepath"

	"invoicehandler/internal/config"

	"github.com/spf13/afero"
)

// ListFiles returns the regular files directly inside dir in name order
func ListFiles(fsys afero.Fs, dir string) ([]string, error) {
	dirInfo, err := fsys.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("error accessing directory: %w", err)
	}
	if !dirInfo.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir)
	}

	// ReadDir sorts by file name
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("error reading directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.Mode().IsRegular() {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	return files, nil
}

// ProcessDirectory processes every file currently in the watch directory of
// cfg once. Cancellation is checked between files, so a file that is being
// waited on is finished first.
func ProcessDirectory(ctx context.Context, p Processor, cfg *config.Config) ([]Outcome, error) {
	files, err := p.List(cfg.WatchDirectory)
	if err != nil {
		return nil, err
	}

	results := make([]Outcome, 0, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, p.Process(file, cfg))
	}
	return results, nil
}
