package scheduler

import (
	"sync"
	"time"
)

// JobOption configures a single registration.
type JobOption func(*jobConfig)

type jobConfig struct {
	runImmediately bool
	startDelay     *time.Duration
}

// RunImmediately controls whether the first tick happens right away (true,
// the default for Every) or after one interval.
func RunImmediately(v bool) JobOption {
	return func(c *jobConfig) { c.runImmediately = v }
}

// StartDelay delays the first tick by d. It takes precedence over
// RunImmediately.
func StartDelay(d time.Duration) JobOption {
	return func(c *jobConfig) { c.startDelay = &d }
}

// intervalSchedule is a cron.Schedule firing every fixed duration after the
// previous tick ended.
type intervalSchedule struct {
	every time.Duration
}

// Next implements cron.Schedule.
func (s intervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.every)
}

// JobStatus is a point-in-time view of a job.
type JobStatus struct {
	Name         string        `json:"name"`
	Schedule     string        `json:"schedule"`
	Running      bool          `json:"running"`
	Ticks        uint64        `json:"ticks"`
	Failures     uint64        `json:"failures"`
	LastRun      time.Time     `json:"last_run,omitzero"`
	LastDuration time.Duration `json:"last_duration"`
	LastError    string        `json:"last_error,omitempty"`
	NextRun      time.Time     `json:"next_run,omitzero"`
}

type entry struct {
	name     string
	schedule string
	done     chan struct{}

	mu     sync.Mutex
	status JobStatus
}

func newEntry(name, schedule string) *entry {
	return &entry{
		name:     name,
		schedule: schedule,
		done:     make(chan struct{}),
		status:   JobStatus{Name: name, Schedule: schedule},
	}
}

func (e *entry) finished() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

func (e *entry) setNext(t time.Time) {
	e.mu.Lock()
	e.status.NextRun = t
	e.mu.Unlock()
}

func (e *entry) record(at time.Time, d time.Duration, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status.Ticks++
	e.status.LastRun = at
	e.status.LastDuration = d
	e.status.LastError = ""
	if err != nil {
		e.status.Failures++
		e.status.LastError = err.Error()
	}
}

func (e *entry) snapshot() JobStatus {
	e.mu.Lock()
	st := e.status
	e.mu.Unlock()
	st.Running = !e.finished()
	return st
}
