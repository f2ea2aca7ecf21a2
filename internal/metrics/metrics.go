// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Tick results used as label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
	ResultPanic = "panic"
)

var (
	SchedulerTicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_scheduler_ticks_total",
		Help: "Total number of scheduled job ticks by job and result",
	}, []string{"job", "result"})

	SchedulerTickDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pulse_scheduler_tick_duration_seconds",
		Help:    "Duration of scheduled job ticks",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})

	SchedulerJobsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pulse_scheduler_jobs_active",
		Help: "Number of live job loops",
	})

	WatchDeltaItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_watch_delta_items_total",
		Help: "Identifiers added to or removed from a watcher snapshot",
	}, []string{"job", "direction"})

	WatchFetchFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_watch_fetch_failures_total",
		Help: "Watcher ticks aborted because the identifier source failed",
	}, []string{"job"})

	WatchNotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_watch_notifications_total",
		Help: "Notifications delivered by watchers",
	}, []string{"job"})

	SnapshotSaveFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_snapshot_save_failures_total",
		Help: "Snapshot writes that failed",
	}, []string{"key"})

	DiscordRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_discord_requests_total",
		Help: "Discord API requests by status code class",
	}, []string{"code"})
)

// ObserveTick records one scheduler tick.
func ObserveTick(job, result string, d time.Duration) {
	if job == "" {
		job = "unknown"
	}
	SchedulerTicksTotal.WithLabelValues(job, result).Inc()
	SchedulerTickDuration.WithLabelValues(job).Observe(d.Seconds())
}

// ObserveDelta records the size of a watcher delta.
func ObserveDelta(job string, added, removed int) {
	if added > 0 {
		WatchDeltaItemsTotal.WithLabelValues(job, "added").Add(float64(added))
	}
	if removed > 0 {
		WatchDeltaItemsTotal.WithLabelValues(job, "removed").Add(float64(removed))
	}
}

// IncFetchFailure records an aborted watcher tick.
func IncFetchFailure(job string) {
	WatchFetchFailuresTotal.WithLabelValues(job).Inc()
}

// AddNotifications records delivered notifications.
func AddNotifications(job string, n int) {
	if n > 0 {
		WatchNotificationsTotal.WithLabelValues(job).Add(float64(n))
	}
}

// IncSnapshotSaveFailure records a failed snapshot write.
func IncSnapshotSaveFailure(key string) {
	SnapshotSaveFailuresTotal.WithLabelValues(key).Inc()
}

// IncDiscordRequest records a Discord API response by status class ("2xx",
// "4xx", "429", "5xx", "error").
func IncDiscordRequest(code string) {
	DiscordRequestsTotal.WithLabelValues(code).Inc()
}
