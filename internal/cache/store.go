// Package cache provides the TTL key/value store behind the nonce cache and
// the idempotency records. Every implementation must make SetNX atomic.
package cache

import (
	"context"
	"time"
)

type Store interface {
	// SetNX stores value only if key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
