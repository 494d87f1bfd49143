package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestMemoryStoreSetNXExpiry(t *testing.T) {
	clk := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	s := NewMemoryStore(0, WithClock(clk.Now))
	ctx := context.Background()

	ok, err := s.SetNX(ctx, "k", []byte("a"), time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.SetNX(ctx, "k", []byte("b"), time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	v, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("a"), v)

	clk.Advance(time.Second)
	_, found, _ = s.Get(ctx, "k")
	assert.False(t, found)

	ok, _ = s.SetNX(ctx, "k", []byte("c"), time.Second)
	assert.True(t, ok)
}

func TestMemoryStoreSetDelete(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v1"), time.Minute))
	require.NoError(t, s.Set(ctx, "k", []byte("v2"), time.Minute))
	v, _, _ := s.Get(ctx, "k")
	assert.Equal(t, "v2", string(v))

	require.NoError(t, s.Delete(ctx, "k"))
	_, found, _ := s.Get(ctx, "k")
	assert.False(t, found)
}

func TestMemoryStoreSweep(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	s := NewMemoryStore(0, WithClock(clk.Now))
	ctx := context.Background()

	_ = s.Set(ctx, "short", []byte("x"), time.Second)
	_ = s.Set(ctx, "long", []byte("x"), time.Hour)
	clk.Advance(2 * time.Second)
	s.sweep()

	s.mu.Lock()
	_, short := s.items["short"]
	_, long := s.items["long"]
	s.mu.Unlock()
	assert.False(t, short)
	assert.True(t, long)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStoreSetNXIsAtomic(t *testing.T) {
	s := NewMemoryStore(0)
	defer s.Close()

	var wins atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := s.SetNX(context.Background(), "same", []byte("x"), time.Minute); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins.Load())
}

func TestNonceCacheClaim(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	store := NewMemoryStore(0, WithClock(clk.Now))
	nc := NewNonceCache(store, 5*time.Minute)
	ctx := context.Background()

	ok, err := nc.Claim(ctx, "n-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = nc.Claim(ctx, "n-1")
	require.NoError(t, err)
	assert.False(t, ok, "second claim inside the window is a replay")

	ok, _ = nc.Claim(ctx, "n-2")
	assert.True(t, ok)

	clk.Advance(5 * time.Minute)
	ok, _ = nc.Claim(ctx, "n-1")
	assert.True(t, ok, "nonce is forgotten after its TTL")
}
