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

// DefaultWindow is the lookback window used when none is configured.
const DefaultWindow = 24 * time.Hour

// BannedSource returns the usernames of a provider banned within window.
type BannedSource interface {
	BannedUsernames(ctx context.Context, provider string, window time.Duration) ([]string, error)
}

// BannedConfig configures a banned-accounts watcher.
type BannedConfig struct {
	Provider string
	Window   time.Duration
	Source   BannedSource
	Store    snapshot.Store
	Sink     notify.Sink
	Logger   *slog.Logger
	Observer Observer
}

// BannedJob notifies about accounts newly banned for one provider.
type BannedJob struct {
	provider string
	window   time.Duration
	source   BannedSource
	shell    shell
}

// Compile-time interface check.
var _ Job = (*BannedJob)(nil)

// NewBannedJob validates cfg and builds the job.
func NewBannedJob(cfg BannedConfig) (*BannedJob, error) {
	provider := strings.TrimSpace(cfg.Provider)
	if provider == "" {
		return nil, errors.New("watch: banned: provider is required")
	}
	if cfg.Source == nil {
		return nil, errors.New("watch: banned: source is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("watch: banned: store is required")
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}

	name := "banned_" + provider
	return &BannedJob{
		provider: provider,
		window:   cfg.Window,
		source:   cfg.Source,
		shell:    newShell(name, BannedKey(provider), cfg.Store, cfg.Sink, cfg.Logger, cfg.Observer),
	}, nil
}

// BannedKey returns the snapshot key for provider.
func BannedKey(provider string) string {
	return "banned_seen_" + provider
}

// Name implements Job.
func (j *BannedJob) Name() string { return j.shell.name }

// Key implements Job.
func (j *BannedJob) Key() string { return j.shell.key }

// Run implements Job.
func (j *BannedJob) Run(ctx context.Context) error {
	j.Tick(ctx)
	return nil
}

// Tick runs one tick and returns its result.
func (j *BannedJob) Tick(ctx context.Context) TickResult {
	return j.shell.tick(ctx, j.fetch, j.render)
}

func (j *BannedJob) fetch(ctx context.Context) (snapshot.Set, error) {
	rows, err := j.source.BannedUsernames(ctx, j.provider, j.window)
	if err != nil {
		return nil, err
	}
	current := snapshot.NewSet()
	for _, u := range rows {
		if u = strings.TrimSpace(u); u != "" {
			current.Add(u)
		}
	}
	return current, nil
}

func (j *BannedJob) render(d Delta) []notify.Notification {
	if len(d.Added) == 0 {
		return nil
	}
	return []notify.Notification{{
		Header:   fmt.Sprintf("🚫 **Banned** new (%s, last %s) — **%d**", j.provider, formatWindow(j.window), len(d.Added)),
		Lines:    d.Added,
		Filename: "banned_" + j.provider,
	}}
}
