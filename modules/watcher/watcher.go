// Package watcher implements the watch module: it builds the delta watchers
// from configuration and hands them to the scheduler.
package watcher

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/flemzord/pulse/internal/core"
	"github.com/flemzord/pulse/internal/metrics"
	"github.com/flemzord/pulse/internal/notify"
	"github.com/flemzord/pulse/internal/scheduler"
	"github.com/flemzord/pulse/internal/snapshot"
	"github.com/flemzord/pulse/internal/watch"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Module{})
}

// Service names resolved in Start.
const (
	StatusServiceName = "watch.status"

	storeService     = "snapshot.store"
	sinkService      = "notify.sink"
	dragoniteService = "dragonite.source"
	rotomService     = "rotom.source"
	schedulerService = "scheduler"
)

// Compile-time interface guards.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Starter      = (*Module)(nil)
)

// Module registers the configured watchers with the scheduler.
type Module struct {
	config Config
	logger *slog.Logger
	appCtx *core.AppContext
	status *watch.StatusRecorder
	jobs   []watch.Job
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "watch",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("watch: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger
	m.appCtx = ctx

	if err := m.config.validate(); err != nil {
		return err
	}

	m.status = watch.NewStatusRecorder()
	ctx.RegisterService(StatusServiceName, m.status)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if m.config.enabledCount() == 0 {
		m.logger.Warn("watch: no watcher enabled")
	}
	return nil
}

// Start implements core.Starter. Sources are resolved here because every
// module has been provisioned by now.
func (m *Module) Start() error {
	sched, ok := core.ServiceAs[*scheduler.Scheduler](m.appCtx, schedulerService)
	if !ok {
		return errors.New("watch: scheduler service not available")
	}

	jobs, err := m.buildJobs()
	if err != nil {
		return err
	}

	for _, j := range jobs {
		s := m.scheduleFor(j)
		opts := []scheduler.JobOption{scheduler.RunImmediately(s.immediate())}
		if s.StartDelay > 0 {
			opts = append(opts, scheduler.StartDelay(s.StartDelay))
		}
		if s.Cron != "" {
			if err := sched.Cron(j.Name(), s.Cron, j.Run, opts...); err != nil {
				m.logger.Warn("watch: job not scheduled", "job", j.Name(), "error", err)
				continue
			}
		} else if !sched.Every(j.Name(), s.Interval, j.Run, opts...) {
			m.logger.Warn("watch: job not scheduled", "job", j.Name())
			continue
		}
		m.logger.Info("watch: job scheduled", "job", j.Name(), "key", j.Key(), "schedule", s.describe())
	}
	m.jobs = jobs
	return nil
}

// Jobs returns the watchers built by Start.
func (m *Module) Jobs() []watch.Job {
	return m.jobs
}

func (m *Module) buildJobs() ([]watch.Job, error) {
	store, ok := core.ServiceAs[snapshot.Store](m.appCtx, storeService)
	if !ok {
		return nil, errors.New("watch: snapshot.store service not available")
	}

	sink, ok := core.ServiceAs[notify.Sink](m.appCtx, sinkService)
	if !ok {
		m.logger.Warn("watch: no notification sink configured, notifications go to the log")
		sink = notify.NewLogSink(m.logger)
	}

	observer := watch.Observers{m.status, watch.ObserverFunc(observeMetrics)}

	var jobs []watch.Job

	if b := m.config.Banned; b != nil && b.on() {
		src, ok := core.ServiceAs[watch.BannedSource](m.appCtx, dragoniteService)
		if !ok {
			return nil, errors.New("watch: banned watcher requires module source.dragonite")
		}
		for _, p := range b.Providers {
			j, err := watch.NewBannedJob(watch.BannedConfig{
				Provider: p,
				Window:   b.Window,
				Source:   src,
				Store:    store,
				Sink:     sink,
				Logger:   m.logger,
				Observer: observer,
			})
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, j)
		}
	}

	if d := m.config.Disabled; d != nil && d.on() {
		src, ok := core.ServiceAs[watch.DisabledSource](m.appCtx, dragoniteService)
		if !ok {
			return nil, errors.New("watch: disabled watcher requires module source.dragonite")
		}
		j, err := watch.NewDisabledJob(watch.DisabledConfig{
			Window:   d.Window,
			Source:   src,
			Store:    store,
			Sink:     sink,
			Logger:   m.logger,
			Observer: observer,
		})
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}

	if o := m.config.Offline; o != nil && o.on() {
		src, ok := core.ServiceAs[watch.DeviceSource](m.appCtx, rotomService)
		if !ok {
			return nil, errors.New("watch: offline watcher requires module source.rotom")
		}
		j, err := watch.NewOfflineJob(watch.OfflineConfig{
			Threshold: o.Threshold,
			Source:    src,
			Store:     store,
			Sink:      sink,
			Logger:    m.logger,
			Observer:  observer,
		})
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}

	return jobs, nil
}

func (m *Module) scheduleFor(j watch.Job) Schedule {
	switch j.(type) {
	case *watch.BannedJob:
		return m.config.Banned.Schedule
	case *watch.DisabledJob:
		return m.config.Disabled.Schedule
	default:
		return m.config.Offline.Schedule
	}
}

// observeMetrics exports a tick result to Prometheus.
func observeMetrics(res watch.TickResult) {
	metrics.ObserveDelta(res.Job, res.Added, res.Removed)
	metrics.AddNotifications(res.Job, res.Notified)
	if res.Err != nil && res.Fetched == 0 {
		metrics.IncFetchFailure(res.Job)
	}
	if res.SaveFailed {
		metrics.IncSnapshotSaveFailure(res.Key)
	}
}
