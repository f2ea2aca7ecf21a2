// Package watch implements the delta watchers: each tick fetches the current
// set of identifiers, diffs it against the persisted snapshot, persists the
// new set and notifies about what changed.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/pulse/internal/notify"
	"github.com/flemzord/pulse/internal/snapshot"
)

// Job is a watcher ready to be handed to a scheduler.
type Job interface {
	// Name identifies the job in the scheduler and in logs.
	Name() string
	// Key is the snapshot key owned by the job.
	Key() string
	// Run executes one tick. It always returns nil; failures are logged and
	// reported to the Observer.
	Run(ctx context.Context) error
}

// TickResult summarises one tick.
type TickResult struct {
	Job        string
	Key        string
	At         time.Time
	Duration   time.Duration
	Fetched    int
	Added      int
	Removed    int
	Persisted  bool
	SaveFailed bool
	Notified   int
	Err        error
}

// Observer receives the result of every tick.
type Observer interface {
	ObserveTick(TickResult)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(TickResult)

// ObserveTick implements Observer.
func (f ObserverFunc) ObserveTick(r TickResult) { f(r) }

// Observers fans a result out to several observers.
type Observers []Observer

// ObserveTick implements Observer.
func (o Observers) ObserveTick(r TickResult) {
	for _, obs := range o {
		if obs != nil {
			obs.ObserveTick(r)
		}
	}
}

// shell is the impure part shared by every watcher.
type shell struct {
	name     string
	key      string
	store    snapshot.Store
	sink     notify.Sink
	logger   *slog.Logger
	observer Observer
	now      func() time.Time
}

func newShell(name, key string, store snapshot.Store, sink notify.Sink, logger *slog.Logger, observer Observer) shell {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = notify.NewLogSink(logger)
	}
	return shell{
		name:     name,
		key:      key,
		store:    store,
		sink:     sink,
		logger:   logger.With("job", name),
		observer: observer,
		now:      time.Now,
	}
}

// fetchFunc returns the current observation.
type fetchFunc func(ctx context.Context) (snapshot.Set, error)

// renderFunc turns a delta into the notifications to send.
type renderFunc func(d Delta) []notify.Notification

// tick runs fetch → load → diff → persist → notify. It never panics.
func (s shell) tick(ctx context.Context, fetch fetchFunc, render renderFunc) (res TickResult) {
	start := s.now()
	res = TickResult{Job: s.name, Key: s.key, At: start}

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("watch: %s: panic: %v", s.name, r)
			s.logger.Error("watch: tick panicked", "panic", r)
		}
		res.Duration = s.now().Sub(start)
		if s.observer != nil {
			s.observer.ObserveTick(res)
		}
	}()

	current, err := fetch(ctx)
	if err != nil {
		res.Err = fmt.Errorf("watch: %s: fetch: %w", s.name, err)
		s.logger.Warn("watch: fetch failed, snapshot untouched", "error", err)
		return res
	}
	if current == nil {
		current = snapshot.NewSet()
	}
	res.Fetched = current.Len()

	previous := s.store.Load(ctx, s.key)
	delta := Compute(previous, current)
	res.Added = len(delta.Added)
	res.Removed = len(delta.Removed)

	s.logger.Debug("watch: tick",
		"fetched", current.Len(),
		"previous", previous.Len(),
		"added", res.Added,
		"removed", res.Removed,
	)

	if !previous.Equal(current) {
		if err := s.store.Save(ctx, s.key, current); err != nil {
			s.logger.Error("watch: snapshot save failed", "key", s.key, "error", err)
			res.SaveFailed = true
		} else {
			res.Persisted = true
		}
	}

	for _, n := range render(delta) {
		if err := s.sink.Notify(ctx, n); err != nil {
			s.logger.Error("watch: notification failed", "header", n.Header, "error", err)
			continue
		}
		res.Notified++
		s.logger.Info("watch: notified", "header", n.Header, "lines", len(n.Lines))
	}

	return res
}

// formatWindow renders a lookback window the way headers show it: whole hours
// as "24h", anything else in minutes.
func formatWindow(d time.Duration) string {
	if d > 0 && d%time.Hour == 0 {
		return fmt.Sprintf("%dh", int(d/time.Hour))
	}
	return fmt.Sprintf("%dm", int(d/time.Minute))
}
