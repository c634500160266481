package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"invoicehandler/internal/config"
	"invoicehandler/internal/history"
	"invoicehandler/internal/log"
	"invoicehandler/internal/rename"
)

// DaemonStatus represents the current status of the daemon
type DaemonStatus struct {
	Running        bool      // Whether the daemon is currently active
	WatchDirectory string    // Directory being watched
	Generation     uint64    // Config generation in use
	LastActivity   time.Time // Time of last file activity
	FilesProcessed int       // Total files looked at
	FilesRenamed   int       // Renamed or, in dry-run mode, planned
	FilesFailed    int
	Reloads        int // Successful config reloads
	ReloadFailures int
}

// Daemon is the watch loop: it renames files as they show up and reloads the
// config when it changes. Files are processed one at a time, and pending
// config changes are always applied before the next file is started.
type Daemon struct {
	store      *config.Store
	configPath string
	engine     rename.Processor
	journal    history.Journal

	// Set by Run
	watcher *Watcher
	// A directory scan is due, either at start or after a re-target
	pendingScan bool

	// Statistics
	status DaemonStatus
	mutex  sync.RWMutex
}

// DaemonOption configures a Daemon
type DaemonOption func(*Daemon)

// WithJournal records every file that was not skipped
func WithJournal(j history.Journal) DaemonOption {
	return func(d *Daemon) { d.journal = j }
}

// NewDaemon creates a daemon serving the generation in store. configPath is
// the file reloads are read from.
func NewDaemon(store *config.Store, configPath string, engine rename.Processor, opts ...DaemonOption) *Daemon {
	d := &Daemon{
		store:      store,
		configPath: configPath,
		engine:     engine,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run watches until ctx is cancelled. It returns an error only if the
// initial watch cannot be established.
func (d *Daemon) Run(ctx context.Context) error {
	cfg := d.store.Load()

	watcher, err := New(d.configPath)
	if err != nil {
		return err
	}
	if err := watcher.SetDirectory(cfg.WatchDirectory); err != nil {
		watcher.Stop()
		return err
	}
	if err := watcher.Start(); err != nil {
		watcher.Stop()
		return err
	}
	defer watcher.Stop()

	d.watcher = watcher
	d.pendingScan = cfg.ScanExisting
	d.setRunning(true)
	defer d.setRunning(false)

	log.LogWithFields(
		log.F("directory", cfg.WatchDirectory),
		log.F("config", d.configPath),
		log.F("rules", cfg.Rules.Len()),
		log.F("dry_run", cfg.DryRun),
	).Info("Daemon started")

	d.loop(ctx)
	return nil
}

// loop dispatches events until ctx is cancelled or the watcher's channels
// close. Config changes take priority over queued files.
func (d *Daemon) loop(ctx context.Context) {
	for {
		if d.pendingScan {
			d.pendingScan = false
			d.scan(ctx)
		}

		select {
		case <-ctx.Done():
			d.logStopped()
			return
		case <-d.watcher.ConfigEvents():
			d.drainConfig()
			d.reload()
			continue
		default:
		}

		select {
		case <-ctx.Done():
			d.logStopped()
			return

		case _, ok := <-d.watcher.ConfigEvents():
			if !ok {
				return
			}
			d.drainConfig()
			d.reload()

		case ev, ok := <-d.watcher.FileEvents():
			if !ok {
				return
			}
			if d.drainConfig() {
				d.reload()
			}
			d.processFile(ctx, ev.Path)

		case <-d.watcher.Rescan():
			d.scan(ctx)
		}
	}
}

// drainConfig consumes every queued config event and reports whether there
// were any. A burst of events from one save results in one reload.
func (d *Daemon) drainConfig() bool {
	pending := false
	for {
		select {
		case _, ok := <-d.watcher.ConfigEvents():
			if !ok {
				return pending
			}
			pending = true
		default:
			return pending
		}
	}
}

// reload re-reads the config file. On failure the current generation stays
// active and the error is logged.
func (d *Daemon) reload() {
	var retargeted bool
	next, err := d.store.Reload(d.configPath, func(old, next *config.Config) error {
		if old.WatchDirectory == next.WatchDirectory {
			return nil
		}
		if err := d.watcher.SetDirectory(next.WatchDirectory); err != nil {
			return err
		}
		retargeted = true
		return nil
	})
	if err != nil {
		d.mutex.Lock()
		d.status.ReloadFailures++
		d.mutex.Unlock()
		log.LogWithFields(
			log.F("config", d.configPath),
			log.F("generation", d.store.Load().Generation),
		).WithError(err).Error("Config reload failed, keeping previous configuration")
		return
	}

	d.mutex.Lock()
	d.status.Reloads++
	d.mutex.Unlock()

	for _, rejected := range next.Rejected {
		log.LogWithError(rejected).Warn("Rule rejected")
	}
	log.LogWithFields(
		log.F("generation", next.Generation),
		log.F("directory", next.WatchDirectory),
		log.F("rules", next.Rules.Len()),
	).Info("Configuration reloaded")

	if retargeted && next.ScanExisting {
		d.pendingScan = true
	}
}

// scan processes the files already present in the watched directory
func (d *Daemon) scan(ctx context.Context) {
	dir := d.store.Load().WatchDirectory
	files, err := d.engine.List(dir)
	if err != nil {
		log.LogWithFields(log.F("directory", dir)).WithError(err).Error("Directory scan failed")
		return
	}

	log.LogWithFields(log.F("directory", dir), log.F("files", len(files))).Info("Scanning existing files")
	for _, file := range files {
		if ctx.Err() != nil {
			return
		}
		if d.drainConfig() {
			d.reload()
		}
		d.processFile(ctx, file)
	}
}

// processFile renames one file with the current generation. The snapshot is
// taken once so the whole file is handled by a single generation.
func (d *Daemon) processFile(ctx context.Context, path string) {
	cfg := d.store.Load()

	// Events queued before a re-target may still name the old directory.
	if filepath.Dir(path) != cfg.WatchDirectory {
		log.LogWithFields(log.F("file", path)).Debug("Ignoring event outside the watched directory")
		return
	}
	// Renaming a file produces events for a name that no longer exists.
	if _, err := os.Lstat(path); os.IsNotExist(err) {
		log.LogWithFields(log.F("file", path)).Debug("File is gone, skipping")
		return
	}

	out := d.engine.Process(path, cfg)
	if d.journal != nil {
		if err := history.SaveOutcome(ctx, d.journal, out, cfg.Generation); err != nil {
			log.LogWithFields(log.F("file", path)).WithError(err).Warn("Failed to record history")
		}
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.status.FilesProcessed++
	d.status.LastActivity = time.Now()
	switch out.Status {
	case rename.Renamed, rename.Planned:
		d.status.FilesRenamed++
	case rename.Failed:
		d.status.FilesFailed++
	}
}

// Status returns the current status of the daemon
func (d *Daemon) Status() DaemonStatus {
	d.mutex.RLock()
	s := d.status
	d.mutex.RUnlock()

	cfg := d.store.Load()
	s.WatchDirectory = cfg.WatchDirectory
	s.Generation = cfg.Generation
	return s
}

func (d *Daemon) setRunning(running bool) {
	d.mutex.Lock()
	d.status.Running = running
	d.mutex.Unlock()
}

func (d *Daemon) logStopped() {
	s := d.Status()
	log.LogWithFields(
		log.F("processed", s.FilesProcessed),
		log.F("renamed", s.FilesRenamed),
		log.F("failed", s.FilesFailed),
		log.F("reloads", s.Reloads),
		log.F("generation", s.Generation),
	).Info("Daemon stopped")
}
