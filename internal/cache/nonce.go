package cache

import (
	"context"
	"strconv"
	"time"
)

// NonceCache remembers consumed request nonces for a fixed TTL.
type NonceCache struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

func NewNonceCache(store Store, ttl time.Duration) *NonceCache {
	return &NonceCache{store: store, ttl: ttl, now: time.Now}
}

// Claim records nonce as used. It returns false if the nonce was already
// claimed within the TTL window. Check and insert are one atomic step.
func (c *NonceCache) Claim(ctx context.Context, nonce string) (bool, error) {
	firstSeen := strconv.FormatInt(c.now().UnixMilli(), 10)
	return c.store.SetNX(ctx, "nonce:"+nonce, []byte(firstSeen), c.ttl)
}
