// Package security implements the security event bus.
//
// Publish never blocks on I/O and never fails: events are scrubbed, stamped
// and placed in a bounded drop-oldest buffer. A background worker (Run)
// dispatches batches to a Sink. Sink failures are logged, counted and trip a
// circuit breaker; they are never reported to the publishing caller.
package security

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	audit "anonid/pkg/platform/audit"
	"anonid/pkg/platform/circuit"
	"anonid/pkg/platform/privacy"
	"anonid/pkg/platform/ring"
	"anonid/pkg/requestcontext"
)

const (
	defaultBufferSize    = 10000
	defaultBatchSize     = 100
	defaultFlushInterval = time.Second
	defaultWriteTimeout  = 5 * time.Second
)

// Publisher is the security event bus.
type Publisher struct {
	sink    Sink
	buffer  *ring.Buffer[audit.SecurityEvent]
	breaker *circuit.Breaker
	sampler *Sampler
	logger  *slog.Logger
	metrics *Metrics
	secrets []string
	now     func() time.Time

	bufferSize    int
	batchSize     int
	flushInterval time.Duration
	writeTimeout  time.Duration

	notify  chan struct{}
	flushMu sync.Mutex
	closed  atomic.Bool
}

// Option configures the Publisher.
type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithBufferSize sets how many undelivered events are retained before the
// oldest are dropped.
func WithBufferSize(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.bufferSize = n
		}
	}
}

func WithBatchSize(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

func WithFlushInterval(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.flushInterval = d
		}
	}
}

// WithWriteTimeout bounds a single sink write.
func WithWriteTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.writeTimeout = d
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(p *Publisher) {
		p.breaker = b
	}
}

func WithSampler(s *Sampler) Option {
	return func(p *Publisher) {
		p.sampler = s
	}
}

// WithScrubSecrets registers values that must never appear in an event
// message, such as the hashing secret.
func WithScrubSecrets(secrets ...string) Option {
	return func(p *Publisher) {
		p.secrets = append(p.secrets, secrets...)
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		p.now = now
	}
}

// New creates a publisher that dispatches to sink. Call Run to start the
// dispatch loop.
func New(sink Sink, opts ...Option) (*Publisher, error) {
	if sink == nil {
		return nil, errors.New("security sink is required")
	}
	p := &Publisher{
		sink:          sink,
		logger:        slog.Default(),
		now:           time.Now,
		bufferSize:    defaultBufferSize,
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		writeTimeout:  defaultWriteTimeout,
		notify:        make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.breaker == nil {
		p.breaker = circuit.New("security-sink")
	}
	p.buffer = ring.New[audit.SecurityEvent](p.bufferSize)
	return p, nil
}

// Publish records a security event. It never blocks and never fails.
func (p *Publisher) Publish(ctx context.Context, eventType audit.EventType, severity audit.Severity, message string) {
	p.Emit(ctx, audit.SecurityEvent{
		Type:     eventType,
		Severity: severity,
		Message:  message,
	})
}

// Emit records a fully or partially populated event. Missing identifiers,
// timestamps and caller metadata are filled from ctx.
func (p *Publisher) Emit(ctx context.Context, event audit.SecurityEvent) {
	if p.closed.Load() {
		p.metrics.addDropped(1)
		return
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now().UTC()
	}
	if event.Severity == "" {
		event.Severity = audit.SeverityInfo
	}
	if event.Category == "" {
		event.Category = event.Type.Category()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.TenantID == "" {
		event.TenantID = requestcontext.TenantID(ctx).String()
	}
	if event.Subject == "" {
		event.Subject = requestcontext.UserID(ctx).String()
	}
	event.Message = privacy.Scrub(event.Message, p.secrets...)
	event.Subject = privacy.Scrub(event.Subject, p.secrets...)

	if p.sampler != nil && !p.sampler.Keep(event) {
		p.metrics.incSampled()
		return
	}

	if p.buffer.Push(event) {
		p.metrics.addDropped(1)
	}
	p.metrics.incPublished(string(event.Type), string(event.Severity))
	p.metrics.setDepth(p.buffer.Len())

	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Run dispatches buffered events until ctx is cancelled, then performs a
// final bounded drain.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.writeTimeout)
			_ = p.flush(drainCtx)
			cancel()
			return nil
		case <-p.notify:
			_ = p.flush(ctx)
		case <-ticker.C:
			_ = p.flush(ctx)
		}
	}
}

// Flush synchronously drains the buffer. It returns the joined sink errors so
// operators can observe delivery problems; publishers never see them.
func (p *Publisher) Flush(ctx context.Context) error {
	return p.flush(ctx)
}

// Close stops accepting events and drains what is buffered.
func (p *Publisher) Close(ctx context.Context) error {
	p.closed.Store(true)
	return p.flush(ctx)
}

// Pending returns the number of buffered events.
func (p *Publisher) Pending() int {
	return p.buffer.Len()
}

// Dropped returns the number of events evicted by buffer overflow.
func (p *Publisher) Dropped() int64 {
	return p.buffer.Dropped()
}

func (p *Publisher) flush(ctx context.Context) error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()
	defer func() { p.metrics.setDepth(p.buffer.Len()) }()

	var errs []error
	for {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		batch := p.buffer.PopBatch(p.batchSize)
		if len(batch) == 0 {
			break
		}
		if !p.breaker.AllowPrimary() {
			p.metrics.addDropped(len(batch))
			continue
		}
		if err := p.write(ctx, batch); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Publisher) write(ctx context.Context, batch []audit.SecurityEvent) error {
	wctx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()

	err := p.sink.Write(wctx, batch)
	if err != nil {
		p.metrics.incSinkFailures()
		p.metrics.addDropped(len(batch))
		p.logger.WarnContext(ctx, "security sink write failed",
			"batch_size", len(batch),
			"error", err,
		)
		if _, change := p.breaker.RecordFailure(); change.Opened {
			p.metrics.setCircuitOpen(true)
			p.logger.ErrorContext(ctx, "security sink circuit opened", "breaker", p.breaker.Name())
		}
		return err
	}
	if _, change := p.breaker.RecordSuccess(); change.Closed {
		p.metrics.setCircuitOpen(false)
		p.logger.InfoContext(ctx, "security sink circuit closed", "breaker", p.breaker.Name())
	}
	return nil
}
