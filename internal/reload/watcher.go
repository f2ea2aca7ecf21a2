// Package reload detects configuration changes. File system notifications
// trigger an immediate check and a periodic poll covers platforms or mounts
// where they are unavailable.
package reload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultPollInterval = 5 * time.Second

// WatcherConfig configures the file watcher.
type WatcherConfig struct {
	// ConfigPath is the file to watch.
	ConfigPath string

	// PollInterval defaults to 5 seconds.
	PollInterval time.Duration
}

// Event reports that the content at ConfigPath changed. Digest is the
// SHA-256 of the new content.
type Event struct {
	ConfigPath string
	Digest     string
}

// Watcher watches a configuration file and emits an Event whenever its content
// digest changes. Touching the file without changing it emits nothing, and
// an unreadable file is skipped until it can be read again.
type Watcher struct {
	path     string
	interval time.Duration
	events   chan Event

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewWatcher creates a watcher. Nothing is read until Start.
func NewWatcher(cfg WatcherConfig) *Watcher {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Watcher{
		path:     cfg.ConfigPath,
		interval: interval,
		events:   make(chan Event, 1),
	}
}

// Start records the current digest and begins polling. Later calls are
// no-ops.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped != nil {
		return
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.stopped = make(chan struct{})
	last := digest(w.path)
	go w.poll(ctx, last, w.notifier())
}

// notifier watches the parent directory, so editors that replace the file
// by rename are seen too. Nil when notifications are unavailable.
func (w *Watcher) notifier() *fsnotify.Watcher {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		_ = fw.Close()
		return nil
	}
	return fw
}

// Events delivers change notifications. At most one is buffered; changes
// made while one is pending collapse into it.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Stop ends polling and waits for the poller to exit. Safe to call multiple
// times and before Start.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, stopped := w.cancel, w.stopped
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-stopped
}

func (w *Watcher) poll(ctx context.Context, last string, fw *fsnotify.Watcher) {
	defer close(w.stopped)

	var (
		fsEvents <-chan fsnotify.Event
		fsErrors <-chan error
	)
	if fw != nil {
		defer func() { _ = fw.Close() }()
		fsEvents, fsErrors = fw.Events, fw.Errors
	}
	name := filepath.Clean(w.path)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case ev, ok := <-fsEvents:
			if !ok {
				fsEvents = nil
				continue
			}
			if filepath.Clean(ev.Name) != name {
				continue
			}
		case _, ok := <-fsErrors:
			if !ok {
				fsErrors = nil
			}
			continue
		}

		current := digest(w.path)
		if current == "" || current == last {
			continue
		}
		last = current

		select {
		case w.events <- Event{ConfigPath: w.path, Digest: current}:
		default:
		}
	}
}

// digest returns the hex SHA-256 of the file, or "" when it cannot be read.
func digest(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
