package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/securebank/internal/apperrors"
	"github.com/baharkarakas/securebank/internal/cache"
	"github.com/baharkarakas/securebank/internal/models"
)

func newIdem(t *testing.T) *Idempotency {
	t.Helper()
	kv := cache.NewMemoryStore(time.Minute)
	t.Cleanup(kv.Close)
	return NewIdempotency(kv, time.Hour)
}

func TestIdempotencyEmptyKeySkips(t *testing.T) {
	c := newIdem(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		prior, err := c.Begin(ctx, "cli", "", "fp")
		require.NoError(t, err)
		assert.Nil(t, prior)
	}
}

func TestIdempotencyLifecycle(t *testing.T) {
	c := newIdem(t)
	ctx := context.Background()

	prior, err := c.Begin(ctx, "cli", "k1", "fp")
	require.NoError(t, err)
	require.Nil(t, prior)

	_, err = c.Begin(ctx, "cli", "k1", "fp")
	assertKind(t, err, apperrors.IdempotencyInFlight)

	tx := models.Transaction{ID: "t-1", Amount: dec("10.00"), Status: models.TxnCompleted}
	require.NoError(t, c.Complete(ctx, "cli", "k1", "fp", tx))

	prior, err = c.Begin(ctx, "cli", "k1", "fp")
	require.NoError(t, err)
	require.NotNil(t, prior)
	assert.Equal(t, "t-1", prior.ID)
	assert.True(t, prior.Amount.Equal(dec("10")))

	_, err = c.Begin(ctx, "cli", "k1", "other")
	assertKind(t, err, apperrors.IdempotencyMismatch)
}

func TestIdempotencyScopedPerClient(t *testing.T) {
	c := newIdem(t)
	ctx := context.Background()

	_, err := c.Begin(ctx, "a", "shared", "fp")
	require.NoError(t, err)
	prior, err := c.Begin(ctx, "b", "shared", "fp")
	require.NoError(t, err)
	assert.Nil(t, prior)
}

func TestIdempotencyAbortReleasesClaim(t *testing.T) {
	c := newIdem(t)
	ctx := context.Background()

	_, err := c.Begin(ctx, "cli", "k", "fp")
	require.NoError(t, err)
	require.NoError(t, c.Abort(ctx, "cli", "k"))

	prior, err := c.Begin(ctx, "cli", "k", "fp")
	require.NoError(t, err)
	assert.Nil(t, prior)
}

func TestFingerprint(t *testing.T) {
	a := models.TransferInstruction{FromAccountID: "a", ToAccountID: "b", Amount: dec("250.00")}
	b := a
	b.Amount = dec("250")
	assert.Equal(t, Fingerprint(a), Fingerprint(b), "equal amounts fingerprint the same")

	b.ToAccountID = "c"
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))

	// key and client are not part of the request body
	c := a
	c.IdempotencyKey, c.ClientID = "x", "y"
	assert.Equal(t, Fingerprint(a), Fingerprint(c))
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock { return &testClock{t: time.UnixMilli(1_700_000_000_000)} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestIdempotencyPendingClaimExpiresQuickly(t *testing.T) {
	clk := newTestClock()
	kv := cache.NewMemoryStore(0, cache.WithClock(clk.Now))
	c := NewIdempotency(kv, time.Hour, WithPendingTTL(10*time.Second))
	ctx := context.Background()

	_, err := c.Begin(ctx, "cli", "crashed", "fp")
	require.NoError(t, err)

	clk.Advance(9 * time.Second)
	_, err = c.Begin(ctx, "cli", "crashed", "fp")
	assertKind(t, err, apperrors.IdempotencyInFlight)

	// owner never came back
	clk.Advance(2 * time.Second)
	prior, err := c.Begin(ctx, "cli", "crashed", "fp")
	require.NoError(t, err)
	assert.Nil(t, prior)
}

func TestIdempotencyCompleteAndHoldUseFullTTL(t *testing.T) {
	clk := newTestClock()
	kv := cache.NewMemoryStore(0, cache.WithClock(clk.Now))
	c := NewIdempotency(kv, time.Hour, WithPendingTTL(10*time.Second))
	ctx := context.Background()

	_, err := c.Begin(ctx, "cli", "done", "fp")
	require.NoError(t, err)
	require.NoError(t, c.Complete(ctx, "cli", "done", "fp", models.Transaction{ID: "t-1"}))

	_, err = c.Begin(ctx, "cli", "held", "fp")
	require.NoError(t, err)
	require.NoError(t, c.Hold(ctx, "cli", "held", "fp"))

	clk.Advance(59 * time.Minute)
	prior, err := c.Begin(ctx, "cli", "done", "fp")
	require.NoError(t, err)
	require.NotNil(t, prior)
	assert.Equal(t, "t-1", prior.ID)

	_, err = c.Begin(ctx, "cli", "held", "fp")
	assertKind(t, err, apperrors.IdempotencyInFlight)

	clk.Advance(2 * time.Minute)
	prior, err = c.Begin(ctx, "cli", "held", "fp")
	require.NoError(t, err)
	assert.Nil(t, prior)
}

func TestIdempotencyPendingTTLCappedByTTL(t *testing.T) {
	kv := cache.NewMemoryStore(0)
	c := NewIdempotency(kv, time.Second, WithPendingTTL(time.Minute))
	assert.Equal(t, time.Second, c.pendingTTL)

	c = NewIdempotency(kv, time.Hour)
	assert.Equal(t, DefaultPendingTTL, c.pendingTTL)
}
