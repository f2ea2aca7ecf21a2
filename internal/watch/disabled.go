package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/flemzord/pulse/internal/notify"
	"github.com/flemzord/pulse/internal/snapshot"
)

// DisabledKeyName is the snapshot key of the disabled-session watcher.
const DisabledKeyName = "err_disabled_seen_keys"

// DisabledSession is one worker session that ended with ErrDisabled.
type DisabledSession struct {
	Username   string
	Encounters int64
	MapObjects int64
	Duration   string
}

// DisabledKey builds the composite identity of a session. Any change to the
// counters or the duration yields a different key.
func DisabledKey(s DisabledSession) string {
	return fmt.Sprintf("%s|%d|%d|%s",
		strings.TrimSpace(s.Username), s.Encounters, s.MapObjects, strings.TrimSpace(s.Duration))
}

// Line renders the session for a notification.
func (s DisabledSession) Line() string {
	u := s.Username
	if u == "" {
		u = "?"
	}
	return fmt.Sprintf("%s | ENC=%d | GMO=%d | %s", u, s.Encounters, s.MapObjects, s.Duration)
}

// DisabledSource returns sessions disabled within window.
type DisabledSource interface {
	DisabledSessions(ctx context.Context, window time.Duration) ([]DisabledSession, error)
}

// DisabledConfig configures the disabled-session watcher.
type DisabledConfig struct {
	Window   time.Duration
	Source   DisabledSource
	Store    snapshot.Store
	Sink     notify.Sink
	Logger   *slog.Logger
	Observer Observer
}

// DisabledJob notifies about new disabled-session composites.
type DisabledJob struct {
	window time.Duration
	source DisabledSource
	shell  shell

	// lines maps the composite keys of the current tick to display lines.
	lines map[string]string
}

// Compile-time interface check.
var _ Job = (*DisabledJob)(nil)

// NewDisabledJob validates cfg and builds the job.
func NewDisabledJob(cfg DisabledConfig) (*DisabledJob, error) {
	if cfg.Source == nil {
		return nil, errors.New("watch: err_disabled: source is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("watch: err_disabled: store is required")
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return &DisabledJob{
		window: cfg.Window,
		source: cfg.Source,
		shell:  newShell("err_disabled", DisabledKeyName, cfg.Store, cfg.Sink, cfg.Logger, cfg.Observer),
	}, nil
}

// Name implements Job.
func (j *DisabledJob) Name() string { return j.shell.name }

// Key implements Job.
func (j *DisabledJob) Key() string { return j.shell.key }

// Run implements Job.
func (j *DisabledJob) Run(ctx context.Context) error {
	j.Tick(ctx)
	return nil
}

// Tick runs one tick and returns its result. Ticks must not run concurrently.
func (j *DisabledJob) Tick(ctx context.Context) TickResult {
	j.lines = nil
	return j.shell.tick(ctx, j.fetch, j.render)
}

func (j *DisabledJob) fetch(ctx context.Context) (snapshot.Set, error) {
	rows, err := j.source.DisabledSessions(ctx, j.window)
	if err != nil {
		return nil, err
	}
	current := snapshot.NewSet()
	j.lines = make(map[string]string, len(rows))
	for _, r := range rows {
		k := DisabledKey(r)
		current.Add(k)
		j.lines[k] = r.Line()
	}
	return current, nil
}

func (j *DisabledJob) render(d Delta) []notify.Notification {
	if len(d.Added) == 0 {
		return nil
	}
	lines := make([]string, 0, len(d.Added))
	for _, k := range d.Added {
		if ln, ok := j.lines[k]; ok {
			lines = append(lines, ln)
			continue
		}
		lines = append(lines, k)
	}
	return []notify.Notification{{
		Header:   fmt.Sprintf("🔴 **ErrDisabled** new (last %s) — **%d**", formatWindow(j.window), len(lines)),
		Lines:    lines,
		Filename: "err_disabled",
	}}
}
