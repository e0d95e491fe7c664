package shardmap

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap_Compute(t *testing.T) {
	m := New[string, int](4)

	m.Compute("a", func(cur int, ok bool) (int, bool) {
		assert.False(t, ok)
		return cur + 1, true
	})
	m.Compute("a", func(cur int, ok bool) (int, bool) {
		assert.True(t, ok)
		return cur + 1, true
	})
	v, ok := m.Load("a")
	require.True(t, ok)
	assert.Equal(t, 2, v)

	m.Compute("a", func(int, bool) (int, bool) { return 0, false })
	_, ok = m.Load("a")
	assert.False(t, ok)
}

func TestMap_ConcurrentComputeIsAtomic(t *testing.T) {
	m := New[string, int](0)
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				m.Compute("hot", func(cur int, _ bool) (int, bool) { return cur + 1, true })
			}
		}()
	}
	wg.Wait()

	v, _ := m.Load("hot")
	assert.Equal(t, 10000, v)
}

func TestMap_DeleteFunc(t *testing.T) {
	m := New[int, string](8)
	for i := range 20 {
		m.Store(i, fmt.Sprint(i))
	}

	removed := m.DeleteFunc(func(k int, _ string) bool { return k%2 == 0 })
	assert.Equal(t, 10, removed)
	assert.Equal(t, 10, m.Len())
}

func TestMap_Distribution(t *testing.T) {
	m := New[string, struct{}](16)
	for i := range 1600 {
		m.Store(fmt.Sprintf("user:%d", i), struct{}{})
	}
	for _, n := range m.ShardLens() {
		assert.Greater(t, n, 0, "every shard should receive keys")
	}
}
