package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"anonid/pkg/platform/ring"
)

// ArchiveStore persists committed entries.
type ArchiveStore interface {
	Append(ctx context.Context, e Entry) error
}

// ArchiveMetrics counts archive outcomes.
type ArchiveMetrics struct {
	Archived prometheus.Counter
	Failures prometheus.Counter
	Dropped  prometheus.Counter
}

func NewArchiveMetrics(reg prometheus.Registerer) *ArchiveMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &ArchiveMetrics{
		Archived: f.NewCounter(prometheus.CounterOpts{
			Name: "anonid_audit_archived_total",
			Help: "Total number of audit entries written to the archive",
		}),
		Failures: f.NewCounter(prometheus.CounterOpts{
			Name: "anonid_audit_archive_failures_total",
			Help: "Total number of failed audit archive writes",
		}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "anonid_audit_archive_dropped_total",
			Help: "Total number of audit entries dropped by archive queue overflow",
		}),
	}
}

// ArchiveWorker drains a bounded queue of committed entries into an
// ArchiveStore. A slow or failing store only ever loses archive copies; the
// in-memory trail is unaffected.
type ArchiveWorker struct {
	store   ArchiveStore
	queue   *ring.Buffer[Entry]
	notify  chan struct{}
	logger  *slog.Logger
	metrics *ArchiveMetrics
	timeout time.Duration
}

type ArchiveOption func(*ArchiveWorker)

func WithArchiveLogger(logger *slog.Logger) ArchiveOption {
	return func(w *ArchiveWorker) {
		w.logger = logger
	}
}

func WithArchiveMetrics(m *ArchiveMetrics) ArchiveOption {
	return func(w *ArchiveWorker) {
		w.metrics = m
	}
}

func WithQueueSize(n int) ArchiveOption {
	return func(w *ArchiveWorker) {
		if n > 0 {
			w.queue = ring.New[Entry](n)
		}
	}
}

func WithWriteTimeout(d time.Duration) ArchiveOption {
	return func(w *ArchiveWorker) {
		if d > 0 {
			w.timeout = d
		}
	}
}

func NewArchiveWorker(store ArchiveStore, opts ...ArchiveOption) (*ArchiveWorker, error) {
	if store == nil {
		return nil, errors.New("archive store is required")
	}
	w := &ArchiveWorker{
		store:   store,
		queue:   ring.New[Entry](1000),
		notify:  make(chan struct{}, 1),
		logger:  slog.Default(),
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Enqueue implements Archiver. It never blocks.
func (w *ArchiveWorker) Enqueue(e Entry) {
	if w.queue.Push(e) && w.metrics != nil {
		w.metrics.Dropped.Inc()
	}
	select {
	case w.notify <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued entries.
func (w *ArchiveWorker) Pending() int {
	return w.queue.Len()
}

// Run archives queued entries until ctx is cancelled, then drains what is
// left with a bounded timeout.
func (w *ArchiveWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
			w.drain(drainCtx)
			cancel()
			return nil
		case <-w.notify:
			w.drain(ctx)
		}
	}
}

func (w *ArchiveWorker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		batch := w.queue.PopBatch(50)
		if len(batch) == 0 {
			return
		}
		for _, e := range batch {
			w.write(ctx, e)
		}
	}
}

func (w *ArchiveWorker) write(ctx context.Context, e Entry) {
	wctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	if err := w.store.Append(wctx, e); err != nil {
		if w.metrics != nil {
			w.metrics.Failures.Inc()
		}
		w.logger.WarnContext(ctx, "audit archive write failed",
			"sequence", e.Sequence,
			"error", err,
		)
		return
	}
	if w.metrics != nil {
		w.metrics.Archived.Inc()
	}
}
