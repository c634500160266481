package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"invoicehandler/internal/config"
	"invoicehandler/internal/rename"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type processed struct {
	name       string
	generation uint64
}

// gatedProcessor blocks on the first file until released and records the
// generation each file was handled with.
type gatedProcessor struct {
	files   []string
	started chan struct{}
	release chan struct{}

	mu   sync.Mutex
	seen []processed
	once sync.Once
}

func newGatedProcessor(files ...string) *gatedProcessor {
	return &gatedProcessor{
		files:   files,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (p *gatedProcessor) Process(path string, cfg *config.Config) rename.Outcome {
	first := false
	p.once.Do(func() { first = true })
	if first {
		close(p.started)
		<-p.release
	}
	p.mu.Lock()
	p.seen = append(p.seen, processed{filepath.Base(path), cfg.Generation})
	p.mu.Unlock()
	return rename.Outcome{Status: rename.Skipped, Reason: rename.ReasonNoMatch, From: path}
}

func (p *gatedProcessor) List(dir string) ([]string, error) {
	return p.files, nil
}

func (p *gatedProcessor) handled() []processed {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]processed(nil), p.seen...)
}

type loopFixture struct {
	configPath string
	inbox      string
	daemon     *Daemon
	watcher    *Watcher
}

func writeINI(t *testing.T, path, dir, rule string) {
	t.Helper()
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(fmt.Sprintf("[settings]\nwatch_directory = %s\nmax_lock_retries = 1\n[translations]\n%s\n", dir, rule)), 0o644))
	require.NoError(t, os.Rename(tmp, path))
}

// newLoopFixture wires a daemon to in-memory event channels, so the test
// decides exactly what is queued and when.
func newLoopFixture(t *testing.T, p rename.Processor, files ...string) *loopFixture {
	t.Helper()
	root := t.TempDir()
	f := &loopFixture{
		configPath: filepath.Join(root, "config.ini"),
		inbox:      filepath.Join(root, "inbox"),
	}
	require.NoError(t, os.Mkdir(f.inbox, 0o755))
	for _, name := range files {
		require.NoError(t, os.WriteFile(filepath.Join(f.inbox, name), nil, 0o644))
	}
	writeINI(t, f.configPath, f.inbox, `a_(\d+) = A_$1`)

	cfg, err := config.LoadConfigFile(f.configPath)
	require.NoError(t, err)

	f.watcher = &Watcher{
		configPath:   f.configPath,
		configDir:    root,
		dataDir:      f.inbox,
		configEvents: make(chan Event, 16),
		fileEvents:   make(chan Event, 16),
		rescan:       make(chan struct{}, 1),
		stopChan:     make(chan struct{}),
		done:         make(chan struct{}),
	}
	f.daemon = NewDaemon(config.NewStore(cfg), f.configPath, p)
	f.daemon.watcher = f.watcher
	return f
}

func (f *loopFixture) run(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.daemon.loop(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func (f *loopFixture) fileEvent(name string) {
	f.watcher.fileEvents <- Event{Path: filepath.Join(f.inbox, name), Timestamp: time.Now()}
}

func (f *loopFixture) configEvent() {
	f.watcher.configEvents <- Event{Path: f.configPath, Timestamp: time.Now()}
}

func TestConfigChangeAppliedBeforeNextFile(t *testing.T) {
	p := newGatedProcessor()
	f := newLoopFixture(t, p, "first.pdf", "second.pdf", "third.pdf")
	f.run(t)

	f.fileEvent("first.pdf")
	<-p.started

	// While the first file is in flight: an edit (saved as a burst of
	// events) lands between two queued files.
	writeINI(t, f.configPath, f.inbox, `b_(\d+) = B_$1`)
	f.fileEvent("second.pdf")
	f.configEvent()
	f.configEvent()
	f.fileEvent("third.pdf")
	close(p.release)

	require.Eventually(t, func() bool { return len(p.handled()) == 3 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []processed{
		{"first.pdf", 1},
		{"second.pdf", 2},
		{"third.pdf", 2},
	}, p.handled())

	status := f.daemon.Status()
	assert.Equal(t, 1, status.Reloads, "a burst of config events is one reload")
	assert.Equal(t, uint64(2), status.Generation)
}

func TestScanAppliesConfigChangeBetweenFiles(t *testing.T) {
	p := newGatedProcessor()
	f := newLoopFixture(t, p, "first.pdf", "second.pdf")
	p.files = []string{filepath.Join(f.inbox, "first.pdf"), filepath.Join(f.inbox, "second.pdf")}
	f.daemon.pendingScan = true
	f.run(t)

	<-p.started
	writeINI(t, f.configPath, f.inbox, `b_(\d+) = B_$1`)
	f.configEvent()
	close(p.release)

	require.Eventually(t, func() bool { return len(p.handled()) == 2 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []processed{
		{"first.pdf", 1},
		{"second.pdf", 2},
	}, p.handled())
}

func TestRescanAfterDroppedEvents(t *testing.T) {
	p := newGatedProcessor()
	close(p.release)
	f := newLoopFixture(t, p, "missed.pdf")
	p.files = []string{filepath.Join(f.inbox, "missed.pdf")}
	f.run(t)

	f.watcher.rescan <- struct{}{}

	require.Eventually(t, func() bool { return len(p.handled()) == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "missed.pdf", p.handled()[0].name)
}
