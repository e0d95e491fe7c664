// Package maintenance runs periodic pruning of quota and correlation records.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
)

// Pruner removes records that can no longer affect a decision.
type Pruner interface {
	Prune(ctx context.Context) (int, error)
}

// Job is a named pruner.
type Job struct {
	Name   string
	Pruner Pruner
}

type Metrics struct {
	Pruned   *prometheus.CounterVec
	Failures *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Pruned: f.NewCounterVec(prometheus.CounterOpts{
			Name: "anonid_maintenance_pruned_records_total",
			Help: "Records removed by scheduled pruning",
		}, []string{"job"}),
		Failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "anonid_maintenance_failures_total",
			Help: "Scheduled pruning runs that returned an error",
		}, []string{"job"}),
	}
}

// Scheduler runs every job on a cron schedule. Runs never overlap.
type Scheduler struct {
	schedule string
	jobs     []Job
	cron     *cron.Cron
	logger   *slog.Logger
	metrics  *Metrics

	mu      sync.Mutex
	running bool
}

type Option func(*Scheduler)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// WithLocation sets the zone the schedule is evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.cron = cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
		}
	}
}

// New validates schedule (standard five-field cron syntax) and builds a
// stopped scheduler.
func New(schedule string, jobs []Job, opts ...Option) (*Scheduler, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	for _, j := range jobs {
		if j.Name == "" || j.Pruner == nil {
			return nil, errors.New("maintenance job needs a name and a pruner")
		}
	}
	s := &Scheduler{
		schedule: schedule,
		jobs:     jobs,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:   slog.Default().With("component", "maintenance.scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run starts the cron loop and blocks until ctx is cancelled, then waits for
// an in-flight run to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("maintenance scheduler already running")
	}
	if _, err := s.cron.AddFunc(s.schedule, func() { s.RunOnce(ctx) }); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}
	s.cron.Start()
	s.running = true
	s.mu.Unlock()

	s.logger.Info("maintenance scheduler started", "schedule", s.schedule, "jobs", len(s.jobs))
	<-ctx.Done()

	stopped := s.cron.Stop()
	<-stopped.Done()

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.logger.Info("maintenance scheduler stopped")
	return nil
}

// RunOnce runs every job once. A failing job does not stop the others.
func (s *Scheduler) RunOnce(ctx context.Context) {
	for _, j := range s.jobs {
		if ctx.Err() != nil {
			return
		}
		n, err := j.Pruner.Prune(ctx)
		if err != nil {
			s.logger.ErrorContext(ctx, "scheduled pruning failed", "job", j.Name, "error", err)
			if s.metrics != nil {
				s.metrics.Failures.WithLabelValues(j.Name).Inc()
			}
			continue
		}
		if s.metrics != nil {
			s.metrics.Pruned.WithLabelValues(j.Name).Add(float64(n))
		}
		if n > 0 {
			s.logger.InfoContext(ctx, "scheduled pruning completed", "job", j.Name, "deleted_count", n)
		} else {
			s.logger.DebugContext(ctx, "scheduled pruning completed, no records deleted", "job", j.Name)
		}
	}
}

// IsRunning reports whether Run is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled run, or nil when not running.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.cron.Entries()
	if !s.running || len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
