package cache

import (
	"fmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

// fakeClock lets tests advance time without sleeping.
type fakeClock struct {
	current time.Time
}

func (f *fakeClock) now() time.Time { return f.current }

func (f *fakeClock) advance(d time.Duration) { f.current = f.current.Add(d) }

func newTestCache(t *testing.T, maxSize int) (*Cache[string], *fakeClock) {
	t.Helper()
	clock := &fakeClock{current: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	c := New[string](maxSize, time.Hour)
	c.now = clock.now
	return c, clock
}

func TestCache_GetSet(t *testing.T) {
	c, _ := newTestCache(t, 10)

	_, ok := c.Get("missing")
	require.False(t, ok, "expected miss for a key that was never set")

	c.Set("greeting", "hello")
	got, ok := c.Get("greeting")
	require.True(t, ok)
	require.Equal(t, "hello", got)

	c.Invalidate("greeting")
	_, ok = c.Get("greeting")
	require.False(t, ok, "expected miss after invalidation")
}

func TestCache_TTLExpiry(t *testing.T) {
	tests := []struct {
		name    string
		ttl     time.Duration
		advance time.Duration
		wantHit bool
	}{
		{
			name:    "zero ttl expires after any delay",
			ttl:     0,
			advance: time.Nanosecond,
			wantHit: false,
		},
		{
			name:    "entry lives within ttl",
			ttl:     time.Minute,
			advance: 59 * time.Second,
			wantHit: true,
		},
		{
			name:    "entry expires past ttl",
			ttl:     time.Minute,
			advance: 61 * time.Second,
			wantHit: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, clock := newTestCache(t, 10)
			c.SetWithTTL("key", "content", tt.ttl)
			clock.advance(tt.advance)
			_, ok := c.Get("key")
			require.Equal(t, tt.wantHit, ok)
		})
	}
}

func TestCache_CapacityBound(t *testing.T) {
	maxSize := 3
	c, _ := newTestCache(t, maxSize)

	for i := range maxSize + 1 {
		c.Set(fmt.Sprintf("key-%d", i), "content")
	}

	require.Equal(t, maxSize, c.Stats().Size)
	_, ok := c.Get("key-0")
	require.False(t, ok, "first-inserted key should have been evicted")
	for i := 1; i <= maxSize; i++ {
		_, ok = c.Get(fmt.Sprintf("key-%d", i))
		require.True(t, ok, "key-%d should survive eviction", i)
	}
}

func TestCache_AccessRefreshesEvictionOrder(t *testing.T) {
	c, _ := newTestCache(t, 2)

	c.Set("a", "1")
	c.Set("b", "2")

	// Touch "a" so inserting a third entry evicts "b" instead.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("c", "3")

	_, ok = c.Get("a")
	assert.True(t, ok, "recently accessed entry should not be evicted")
	_, ok = c.Get("b")
	assert.False(t, ok, "coldest entry should be evicted")
}

func TestCache_GetOrCompute(t *testing.T) {
	c, _ := newTestCache(t, 10)

	computations := 0
	compute := func() (string, error) {
		computations++
		return "computed", nil
	}

	got, err := c.GetOrCompute("key", compute, time.Hour)
	require.NoError(t, err)
	require.Equal(t, "computed", got)

	got, err = c.GetOrCompute("key", compute, time.Hour)
	require.NoError(t, err)
	require.Equal(t, "computed", got)
	require.Equal(t, 1, computations, "second call should hit the cache")

	computeErr := fmt.Errorf("backend unavailable")
	_, err = c.GetOrCompute("other", func() (string, error) { return "", computeErr }, time.Hour)
	require.ErrorIs(t, err, computeErr)
	_, ok := c.Get("other")
	require.False(t, ok, "failed computation must not be cached")
}

func TestCache_Stats(t *testing.T) {
	c, _ := newTestCache(t, 10)

	c.Set("key", "content")
	_, _ = c.Get("key")
	_, _ = c.Get("key")
	_, _ = c.Get("missing")

	stats := c.Stats()
	require.Equal(t, 1, stats.Size)
	require.Equal(t, 2, stats.Hits)
	require.Equal(t, 1, stats.Misses)
	require.InDelta(t, 2.0/3.0, stats.HitRate, 0.001)

	c.Clear()
	stats = c.Stats()
	require.Equal(t, 0, stats.Size)
	require.Equal(t, 0, stats.Hits)
	require.Equal(t, 0, stats.Misses)
}

func TestCache_CleanupExpired(t *testing.T) {
	c, clock := newTestCache(t, 10)

	c.SetWithTTL("short", "content", time.Second)
	c.SetWithTTL("long", "content", time.Hour)

	clock.advance(time.Minute)
	c.CleanupExpired()

	stats := c.Stats()
	require.Equal(t, 1, stats.Size)
	_, ok := c.Get("long")
	require.True(t, ok)
}
