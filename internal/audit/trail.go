// Package audit keeps the bounded, tamper-evident trail of identity
// resolution attempts.
package audit

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"anonid/pkg/platform/ring"
)

// DefaultCapacity is the number of entries retained in memory.
const DefaultCapacity = 100

// Archiver receives every committed entry. Implementations must not block.
type Archiver interface {
	Enqueue(e Entry)
}

// Trail is a fixed-size, most-recent-first log. Appends are linearizable.
type Trail struct {
	mu       sync.Mutex
	entries  *ring.Buffer[Entry]
	seq      uint64
	lastHash string
	lastTime time.Time

	archive Archiver
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*Trail)

func WithCapacity(n int) Option {
	return func(t *Trail) {
		if n > 0 {
			t.entries = ring.New[Entry](n)
		}
	}
}

// WithArchive mirrors every committed entry to a durable archive.
func WithArchive(a Archiver) Option {
	return func(t *Trail) {
		t.archive = a
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Trail) {
		t.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(t *Trail) {
		t.now = now
	}
}

func NewTrail(opts ...Option) *Trail {
	t := &Trail{
		entries: ring.New[Entry](DefaultCapacity),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Append commits e at the head of the trail, evicting the oldest entry when
// full. Sequence, Timestamp, PrevHash and Hash are always assigned here, under
// the same lock, so timestamps never run backwards against sequence order.
// TraceID is filled when empty. The committed entry is returned.
func (t *Trail) Append(ctx context.Context, e Entry) Entry {
	if e.TraceID == "" {
		e.TraceID = uuid.NewString()
	}

	t.mu.Lock()
	e.Timestamp = t.now().UTC()
	if e.Timestamp.Before(t.lastTime) {
		// Wall clock stepped back.
		e.Timestamp = t.lastTime
	}
	t.lastTime = e.Timestamp
	t.seq++
	e.Sequence = t.seq
	e.PrevHash = t.lastHash
	e.Hash = computeHash(e)
	t.lastHash = e.Hash
	t.entries.Push(e)
	t.mu.Unlock()

	if t.archive != nil {
		t.archive.Enqueue(e)
	}
	t.logger.DebugContext(ctx, "audit entry appended",
		"sequence", e.Sequence,
		"action", string(e.Action),
		"status", string(e.Status),
	)
	return e
}

// Get returns up to limit entries, most recent first. A limit <= 0 returns
// every retained entry.
func (t *Trail) Get(limit int) []Entry {
	if limit <= 0 || limit > t.entries.Cap() {
		limit = t.entries.Cap()
	}
	return t.entries.Newest(limit)
}

// Len returns the number of retained entries.
func (t *Trail) Len() int {
	return t.entries.Len()
}

// Verify recomputes the hash chain over the retained entries. The oldest
// retained entry's predecessor may have been evicted, so its PrevHash is not
// checked.
func (t *Trail) Verify() error {
	t.mu.Lock()
	entries := t.entries.Newest(t.entries.Cap())
	t.mu.Unlock()

	slices.Reverse(entries)
	return verifyChain(entries)
}
