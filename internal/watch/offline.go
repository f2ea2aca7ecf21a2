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

const (
	// OfflineKeyName is the snapshot key of the offline-device watcher.
	OfflineKeyName = "rotom_offline_devices"

	// DefaultOfflineThreshold is how long a device may stay silent.
	DefaultOfflineThreshold = 10 * time.Minute
)

// DeviceLastSeen is the most recent message time of a device. A zero
// LastSeen means the device never reported.
type DeviceLastSeen struct {
	DeviceID string
	LastSeen time.Time
}

// DeviceSource lists devices with their last activity.
type DeviceSource interface {
	DevicesLastSeen(ctx context.Context) ([]DeviceLastSeen, error)
}

// OfflineConfig configures the offline-device watcher.
type OfflineConfig struct {
	Threshold time.Duration
	Source    DeviceSource
	Store     snapshot.Store
	Sink      notify.Sink
	Logger    *slog.Logger
	Observer  Observer
	Now       func() time.Time
}

// OfflineJob notifies about devices going offline and recovering.
type OfflineJob struct {
	threshold time.Duration
	source    DeviceSource
	now       func() time.Time
	shell     shell
}

// Compile-time interface check.
var _ Job = (*OfflineJob)(nil)

// NewOfflineJob validates cfg and builds the job.
func NewOfflineJob(cfg OfflineConfig) (*OfflineJob, error) {
	if cfg.Source == nil {
		return nil, errors.New("watch: rotom_offline: source is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("watch: rotom_offline: store is required")
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultOfflineThreshold
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &OfflineJob{
		threshold: cfg.Threshold,
		source:    cfg.Source,
		now:       cfg.Now,
		shell:     newShell("rotom_offline", OfflineKeyName, cfg.Store, cfg.Sink, cfg.Logger, cfg.Observer),
	}, nil
}

// IsOffline reports whether a device last seen at lastSeen counts as offline
// at now.
func IsOffline(lastSeen, now time.Time, threshold time.Duration) bool {
	if lastSeen.IsZero() || lastSeen.UnixMilli() <= 0 {
		return true
	}
	return now.Sub(lastSeen) > threshold
}

// Name implements Job.
func (j *OfflineJob) Name() string { return j.shell.name }

// Key implements Job.
func (j *OfflineJob) Key() string { return j.shell.key }

// Run implements Job.
func (j *OfflineJob) Run(ctx context.Context) error {
	j.Tick(ctx)
	return nil
}

// Tick runs one tick and returns its result.
func (j *OfflineJob) Tick(ctx context.Context) TickResult {
	return j.shell.tick(ctx, j.fetch, j.render)
}

func (j *OfflineJob) fetch(ctx context.Context) (snapshot.Set, error) {
	devices, err := j.source.DevicesLastSeen(ctx)
	if err != nil {
		return nil, err
	}
	now := j.now()
	offline := snapshot.NewSet()
	for _, d := range devices {
		id := strings.TrimSpace(d.DeviceID)
		if id == "" {
			continue
		}
		if IsOffline(d.LastSeen, now, j.threshold) {
			offline.Add(id)
		}
	}
	return offline, nil
}

func (j *OfflineJob) render(d Delta) []notify.Notification {
	var out []notify.Notification
	if len(d.Added) > 0 {
		out = append(out, notify.Notification{
			Header:   fmt.Sprintf("⚠️ **Rotom devices offline** (> %dm): **%d**", int(j.threshold/time.Minute), len(d.Added)),
			Lines:    d.Added,
			Filename: "rotom_offline",
		})
	}
	if len(d.Removed) > 0 {
		out = append(out, notify.Notification{
			Header:   fmt.Sprintf("🟢 **Rotom devices recovered**: **%d**", len(d.Removed)),
			Lines:    d.Removed,
			Filename: "rotom_recovered",
		})
	}
	return out
}
