// Package scheduler runs named jobs on a fixed interval or a cron schedule
// until a global stop. A job that fails or panics is logged and keeps its
// schedule; it never takes other jobs down.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/pulse/internal/metrics"
)

var (
	// ErrStopped is returned when registering on a stopped scheduler.
	ErrStopped = errors.New("scheduler: stopped")

	// ErrDuplicate is returned when a live job already uses the name.
	ErrDuplicate = errors.New("scheduler: job already running")
)

// never marks a schedule without a future activation.
const never = time.Duration(1<<63 - 1)

// JobFunc is the body of a scheduled job. Ticks of one job never overlap.
type JobFunc func(ctx context.Context) error

// Scheduler owns one goroutine per registered job.
type Scheduler struct {
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	stopCh chan struct{}

	mu      sync.Mutex
	stopped bool
	jobs    map[string]*entry
	wg      sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTracer overrides the tracer used for tick spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Scheduler) { s.tracer = t }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a running scheduler with no jobs.
func New(logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		logger: logger,
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
		stopCh: make(chan struct{}),
		jobs:   make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("github.com/flemzord/pulse/internal/scheduler")
	}
	return s
}

// Every registers job to run every interval. It returns false, with a
// warning, when a live job already uses name, when interval is not positive
// or when the scheduler is stopped.
func (s *Scheduler) Every(name string, interval time.Duration, job JobFunc, opts ...JobOption) bool {
	if interval <= 0 {
		s.logger.Warn("scheduler: interval must be positive", "job", name, "interval", interval)
		return false
	}

	cfg := jobConfig{runImmediately: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	first := time.Duration(0)
	switch {
	case cfg.startDelay != nil:
		first = max(*cfg.startDelay, 0)
	case !cfg.runImmediately:
		first = interval
	}

	err := s.register(name, interval.String(), job, intervalSchedule{every: interval}, first)
	if err != nil {
		s.logger.Warn("scheduler: registration ignored", "job", name, "error", err)
		return false
	}
	return true
}

// ValidateCron reports whether expr is a valid standard 5-field cron
// expression.
func ValidateCron(expr string) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("scheduler: invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// Cron registers job on a standard 5-field cron expression. Unless
// RunImmediately(true) or StartDelay is given, the first tick waits for the
// next matching time.
func (s *Scheduler) Cron(name, expr string, job JobFunc, opts ...JobOption) error {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return fmt.Errorf("scheduler: invalid schedule for job %q: %w", name, err)
	}

	cfg := jobConfig{runImmediately: false}
	for _, opt := range opts {
		opt(&cfg)
	}

	first := time.Duration(-1)
	switch {
	case cfg.startDelay != nil:
		first = max(*cfg.startDelay, 0)
	case cfg.runImmediately:
		first = 0
	}

	return s.register(name, expr, job, sched, first)
}

// register starts the loop for name. A negative first delay means "wait for
// the schedule's next activation".
func (s *Scheduler) register(name, schedule string, job JobFunc, sched cron.Schedule, first time.Duration) error {
	if name == "" {
		return errors.New("scheduler: job name is required")
	}
	if job == nil {
		return fmt.Errorf("scheduler: job %q has no body", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if e, ok := s.jobs[name]; ok && !e.finished() {
		return fmt.Errorf("%w: %q", ErrDuplicate, name)
	}

	e := newEntry(name, schedule)
	s.jobs[name] = e
	s.wg.Add(1)
	metrics.SchedulerJobsActive.Inc()

	go s.loop(e, job, sched, first)

	s.logger.Info("scheduler: job started", "job", name, "schedule", schedule)
	return nil
}

// Stop signals every loop to exit, cancels in-flight ticks and waits for all
// loops to finish or for ctx to expire. The registry is cleared. Stop may be
// called any number of times.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		close(s.stopCh)
		s.cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("scheduler: stop: %w", ctx.Err())
	}

	s.mu.Lock()
	n := len(s.jobs)
	clear(s.jobs)
	s.mu.Unlock()

	if n > 0 {
		s.logger.Info("scheduler: stopped", "jobs", n)
	}
	return err
}

// Jobs returns the status of every registered job, sorted by name.
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.Lock()
	entries := make([]*entry, 0, len(s.jobs))
	for _, e := range s.jobs {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	out := make([]JobStatus, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// loop drives one job until stop. A panic outside the job body ends the loop
// after being logged.
func (s *Scheduler) loop(e *entry, job JobFunc, sched cron.Schedule, first time.Duration) {
	defer s.wg.Done()
	defer metrics.SchedulerJobsActive.Dec()
	defer close(e.done)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler: loop failed",
				"job", e.name,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	if first < 0 {
		first = s.untilNext(sched)
	}
	if first > 0 && !s.wait(e, first) {
		return
	}

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		s.tick(e, job)

		if !s.wait(e, s.untilNext(sched)) {
			return
		}
	}
}

// untilNext returns the wait before the next activation, or never when the
// schedule has no future activation (e.g. "0 0 30 2 *").
func (s *Scheduler) untilNext(sched cron.Schedule) time.Duration {
	now := s.now()
	next := sched.Next(now)
	if next.IsZero() {
		return never
	}
	return max(next.Sub(now), 0)
}

// wait sleeps for d or until stop. It reports false when stopped. With
// d == never it only returns on stop.
func (s *Scheduler) wait(e *entry, d time.Duration) bool {
	if d == never {
		e.setNext(time.Time{})
		<-s.stopCh
		return false
	}
	e.setNext(s.now().Add(d))

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-s.stopCh:
		return false
	}
}

// tick runs the job body once. Errors and panics are logged and counted.
func (s *Scheduler) tick(e *entry, job JobFunc) {
	tickID := uuid.NewString()
	logger := s.logger.With("job", e.name, "tick", tickID)

	ctx, span := s.tracer.Start(s.ctx, "scheduler.tick", trace.WithAttributes(
		attribute.String("job.name", e.name),
		attribute.String("tick.id", tickID),
	))
	defer span.End()

	start := s.now()
	logger.Debug("scheduler: tick started")

	panicked, err := runGuarded(ctx, job)
	elapsed := s.now().Sub(start)

	result := metrics.ResultOK
	switch {
	case panicked:
		result = metrics.ResultPanic
		logger.Error("scheduler: job panicked", "error", err)
	case err != nil:
		result = metrics.ResultError
		logger.Error("scheduler: job failed", "error", err)
	default:
		logger.Debug("scheduler: tick completed", "duration", elapsed)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.ObserveTick(e.name, result, elapsed)
	e.record(start, elapsed, err)
}

func runGuarded(ctx context.Context, job JobFunc) (panicked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return false, job(ctx)
}
