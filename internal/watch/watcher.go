package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"invoicehandler/internal/log"

	"github.com/fsnotify/fsnotify"
)

// Event is a filesystem change the daemon should look at
type Event struct {
	Path      string
	Op        fsnotify.Op
	Timestamp time.Time
}

// Watcher observes the data directory and the config file using one fsnotify
// watcher and splits what it sees into config events and data file events.
type Watcher struct {
	// Absolute path of the config file and the directory holding it
	configPath string
	configDir  string

	// Directory whose files get renamed
	dataDir string

	configEvents chan Event
	fileEvents   chan Event
	// Signalled when file events were dropped because fileEvents was full
	rescan chan struct{}

	// Channel to signal stop
	stopChan chan struct{}
	done     chan struct{}

	// fsnotify watcher instance
	fsWatcher *fsnotify.Watcher

	// Lock for running state and dataDir
	mutex sync.RWMutex

	// Whether the watcher is running
	running bool
}

// New creates a watcher for configPath. The config file's parent directory
// is watched instead of the file itself so editors that save by renaming a
// temporary file over it are noticed.
func New(configPath string) (*Watcher, error) {
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		configPath:   abs,
		configDir:    filepath.Dir(abs),
		configEvents: make(chan Event, 16),
		fileEvents:   make(chan Event, 256),
		rescan:       make(chan struct{}, 1),
		stopChan:     make(chan struct{}),
		done:         make(chan struct{}),
		fsWatcher:    fsWatcher,
	}

	if err := fsWatcher.Add(w.configDir); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch config directory %s: %w", w.configDir, err)
	}
	log.LogWithFields(log.F("config", abs)).Debug("Watching config file")
	return w, nil
}

// SetDirectory points the data side of the watcher at dir. The new directory
// is added before the old one is removed, so a failure leaves the previous
// watch in place.
func (w *Watcher) SetDirectory(dir string) error {
	dir = filepath.Clean(dir)

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("error accessing directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()

	old := w.dataDir
	if old == dir {
		return nil
	}
	if err := w.fsWatcher.Add(dir); err != nil {
		return fmt.Errorf("failed to add directory %s to watcher: %w", dir, err)
	}
	// The config directory stays watched even if it used to be the data directory.
	if old != "" && old != w.configDir {
		if err := w.fsWatcher.Remove(old); err != nil {
			log.LogWithFields(log.F("directory", old)).WithError(err).Warn("Failed to stop watching directory")
		}
	}
	w.dataDir = dir

	log.LogWithFields(log.F("directory", dir)).Info("Watching directory")
	return nil
}

// Directory returns the data directory currently watched
func (w *Watcher) Directory() string {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	return w.dataDir
}

// ConfigEvents delivers changes to the config file
func (w *Watcher) ConfigEvents() <-chan Event {
	return w.configEvents
}

// FileEvents delivers created or written regular files in the data directory
func (w *Watcher) FileEvents() <-chan Event {
	return w.fileEvents
}

// Rescan fires after data file events were dropped. The consumer should list
// the directory again to pick up what it missed.
func (w *Watcher) Rescan() <-chan struct{} {
	return w.rescan
}

// Start begins the file watching process using fsnotify
func (w *Watcher) Start() error {
	w.mutex.Lock()
	if w.running {
		w.mutex.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mutex.Unlock()

	go w.loop()

	log.Debug("Watcher started")
	return nil
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.route(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.LogWithFields(log.F("error", err)).Error("fsnotify watcher error")

		case <-w.stopChan:
			return
		}
	}
}

// route classifies one fsnotify event
func (w *Watcher) route(event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
		return
	}

	path := filepath.Clean(event.Name)
	ev := Event{Path: path, Op: event.Op, Timestamp: time.Now()}

	if path == w.configPath {
		// A full queue already holds a pending reload.
		w.offer(w.configEvents, ev)
		return
	}

	if filepath.Dir(path) != w.Directory() {
		return
	}

	// Checking existence is crucial, the file may already be gone
	info, err := os.Stat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.LogWithFields(log.F("file", path), log.F("error", err)).Error("Error stating file")
		}
		return
	}
	if !info.Mode().IsRegular() {
		return
	}
	if !w.offer(w.fileEvents, ev) {
		log.LogWithFields(log.F("file", path)).Debug("Event queue full, scheduling rescan")
		select {
		case w.rescan <- struct{}{}:
		default:
		}
	}
}

// offer queues ev without blocking and reports whether it was queued
func (w *Watcher) offer(ch chan<- Event, ev Event) bool {
	select {
	case ch <- ev:
		return true
	default:
		return false
	}
}

// Stop halts the watcher and waits for its event loop to exit
func (w *Watcher) Stop() {
	w.mutex.Lock()
	if !w.running {
		w.mutex.Unlock()
		if err := w.fsWatcher.Close(); err != nil {
			log.LogWithFields(log.F("error", err)).Debug("Error closing fsnotify watcher")
		}
		return
	}
	w.running = false
	close(w.stopChan)
	w.mutex.Unlock()

	<-w.done
	if err := w.fsWatcher.Close(); err != nil {
		log.LogWithFields(log.F("error", err)).Error("Error closing fsnotify watcher")
	}
	log.Debug("Watcher stopped")
}
