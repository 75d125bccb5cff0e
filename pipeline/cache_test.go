package pipeline

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInstance struct {
	cleaned atomic.Bool
}

func (f *fakeInstance) Cleanup() { f.cleaned.Store(true) }

func TestCache_GetOrCreate_CachesOnKey(t *testing.T) {
	c := NewCache(10, nil)
	builds := 0
	build := func() (Instance, error) {
		builds++
		return &fakeInstance{}, nil
	}

	inst1, err := c.GetOrCreate("k1", build)
	require.NoError(t, err)
	inst2, err := c.GetOrCreate("k1", build)
	require.NoError(t, err)

	assert.Same(t, inst1, inst2)
	assert.Equal(t, 1, builds)
}

func TestCache_EvictsLRUOnOverflow(t *testing.T) {
	c := NewCache(10, nil)
	var evicted []string
	var mu sync.Mutex

	for i := 0; i < 11; i++ {
		key := string(rune('a' + i))
		_, err := c.GetOrCreate(key, func() (Instance, error) {
			return &trackingInstance{key: key, onCleanup: func(k string) {
				mu.Lock()
				evicted = append(evicted, k)
				mu.Unlock()
			}}, nil
		})
		require.NoError(t, err)
	}

	assert.LessOrEqual(t, c.Len(), 10)

	// Cleanup runs asynchronously; give it a moment.
	deadline := time.Now().Add(time.Second)
	for len(evictedSnapshot(&mu, &evicted)) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	assert.NotEmpty(t, evictedSnapshot(&mu, &evicted))
}

func evictedSnapshot(mu *sync.Mutex, evicted *[]string) []string {
	mu.Lock()
	defer mu.Unlock()
	out := make([]string, len(*evicted))
	copy(out, *evicted)
	return out
}

type trackingInstance struct {
	key       string
	onCleanup func(string)
}

func (t *trackingInstance) Cleanup() { t.onCleanup(t.key) }

func TestCache_Remove_RunsCleanupAsync(t *testing.T) {
	c := NewCache(10, nil)
	inst := &fakeInstance{}
	_, err := c.GetOrCreate("k1", func() (Instance, error) { return inst, nil })
	require.NoError(t, err)

	c.Remove("k1")
	assert.Equal(t, 0, c.Len())

	deadline := time.Now().Add(time.Second)
	for !inst.cleaned.Load() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	assert.True(t, inst.cleaned.Load())
}

func TestCache_RemoveUnknownKeyIsNoOp(t *testing.T) {
	c := NewCache(10, nil)
	assert.NotPanics(t, func() { c.Remove("missing") })
}

func TestCache_DefaultCapacityAppliedWhenZero(t *testing.T) {
	c := NewCache(0, nil)
	assert.Equal(t, DefaultCacheCapacity, c.capacity)
}
