// Package shardmap provides a map guarded by striped mutexes so that
// unrelated keys do not contend on a single lock.
package shardmap

import (
	"hash/maphash"
	"sync"
)

const DefaultShards = 128

type shard[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]V
}

// Map is safe for concurrent use. Operations on one key are serialized.
type Map[K comparable, V any] struct {
	seed   maphash.Seed
	shards []shard[K, V]
}

// New creates a map with n shards (DefaultShards when n <= 0).
func New[K comparable, V any](n int) *Map[K, V] {
	if n <= 0 {
		n = DefaultShards
	}
	m := &Map[K, V]{
		seed:   maphash.MakeSeed(),
		shards: make([]shard[K, V], n),
	}
	for i := range m.shards {
		m.shards[i].m = make(map[K]V)
	}
	return m
}

func (m *Map[K, V]) shardFor(key K) *shard[K, V] {
	h := maphash.Comparable(m.seed, key)
	return &m.shards[h%uint64(len(m.shards))]
}

// Compute atomically replaces the value for key with the result of fn.
// fn receives the current value and whether it exists; returning keep=false
// deletes the key.
func (m *Map[K, V]) Compute(key K, fn func(cur V, exists bool) (next V, keep bool)) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.m[key]
	next, keep := fn(cur, ok)
	if keep {
		s.m[key] = next
		return
	}
	delete(s.m, key)
}

func (m *Map[K, V]) Load(key K) (V, bool) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok
}

func (m *Map[K, V]) Store(key K, v V) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = v
}

func (m *Map[K, V]) Delete(key K) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}

// DeleteFunc removes every entry for which fn returns true and reports how
// many were removed. Shards are locked one at a time.
func (m *Map[K, V]) DeleteFunc(fn func(K, V) bool) int {
	removed := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		for k, v := range s.m {
			if fn(k, v) {
				delete(s.m, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Len returns the total number of entries.
func (m *Map[K, V]) Len() int {
	total := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		total += len(s.m)
		s.mu.Unlock()
	}
	return total
}

// ShardLens returns the entry count of each shard.
func (m *Map[K, V]) ShardLens() []int {
	out := make([]int, len(m.shards))
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		out[i] = len(s.m)
		s.mu.Unlock()
	}
	return out
}
