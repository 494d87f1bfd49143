package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/baharkarakas/securebank/internal/apperrors"
	"github.com/baharkarakas/securebank/internal/cache"
	"github.com/baharkarakas/securebank/internal/models"
)

const (
	DefaultIdempotencyTTL = 24 * time.Hour
	// DefaultPendingTTL bounds how long a claim survives a crashed owner.
	DefaultPendingTTL = 30 * time.Second
)

const (
	idemPending   = "pending"
	idemCompleted = "completed"
)

type idemRecord struct {
	Status      string              `json:"status"`
	Fingerprint string              `json:"fingerprint"`
	Transaction *models.Transaction `json:"transaction,omitempty"`
	CreatedAt   int64               `json:"createdAt"`
}

// Idempotency makes sure a (client, key) pair runs the transfer engine at
// most once while its record lives. A claim is a pending record written
// with SetNX and a short TTL; the result replaces it once the transfer
// commits and then lives for the full TTL.
type Idempotency struct {
	store      cache.Store
	ttl        time.Duration
	pendingTTL time.Duration
	now        func() time.Time
}

type IdempotencyOption func(*Idempotency)

// WithPendingTTL sets how long an unfinished claim blocks its key.
func WithPendingTTL(d time.Duration) IdempotencyOption {
	return func(c *Idempotency) {
		if d > 0 {
			c.pendingTTL = d
		}
	}
}

func NewIdempotency(store cache.Store, ttl time.Duration, opts ...IdempotencyOption) *Idempotency {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	c := &Idempotency{store: store, ttl: ttl, pendingTTL: DefaultPendingTTL, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	if c.pendingTTL > c.ttl {
		c.pendingTTL = c.ttl
	}
	return c
}

func idemKey(clientID, key string) string {
	return "idem:" + clientID + ":" + key
}

// Fingerprint identifies the business content of a transfer request.
func Fingerprint(in models.TransferInstruction) string {
	h := sha256.New()
	h.Write([]byte(strings.Join([]string{
		in.FromAccountID,
		in.ToAccountID,
		in.Amount.String(),
		in.Description,
	}, "\x00")))
	return hex.EncodeToString(h.Sum(nil))
}

// Begin claims key for clientID. It returns the stored transaction when the
// key already completed with the same fingerprint, and (nil, nil) when the
// caller now owns the claim or key is empty. A key reused with a different
// fingerprint fails with IdempotencyMismatch; the earlier result is not
// replayed.
func (c *Idempotency) Begin(ctx context.Context, clientID, key, fingerprint string) (*models.Transaction, error) {
	if key == "" {
		return nil, nil
	}
	k := idemKey(clientID, key)
	pending, err := c.pendingRecord(fingerprint)
	if err != nil {
		return nil, err
	}

	// a record can expire between SetNX and Get; retry the claim then
	for attempt := 0; attempt < 3; attempt++ {
		ok, err := c.store.SetNX(ctx, k, pending, c.pendingTTL)
		if err != nil {
			return nil, apperrors.E(apperrors.EngineUnavailable, "idempotency store unavailable", err)
		}
		if ok {
			return nil, nil
		}

		raw, found, err := c.store.Get(ctx, k)
		if err != nil {
			return nil, apperrors.E(apperrors.EngineUnavailable, "idempotency store unavailable", err)
		}
		if !found {
			continue
		}
		var rec idemRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, apperrors.E(apperrors.Internal, "corrupt idempotency record", err)
		}
		switch {
		case rec.Fingerprint != fingerprint:
			return nil, apperrors.New(apperrors.IdempotencyMismatch, "idempotency key reused with a different request")
		case rec.Status == idemCompleted && rec.Transaction != nil:
			return rec.Transaction, nil
		default:
			return nil, apperrors.New(apperrors.IdempotencyInFlight, "request with this idempotency key is in progress")
		}
	}
	return nil, apperrors.New(apperrors.IdempotencyInFlight, "request with this idempotency key is in progress")
}

// Complete stores the outcome for key.
func (c *Idempotency) Complete(ctx context.Context, clientID, key, fingerprint string, tx models.Transaction) error {
	if key == "" {
		return nil
	}
	raw, err := json.Marshal(idemRecord{
		Status:      idemCompleted,
		Fingerprint: fingerprint,
		Transaction: &tx,
		CreatedAt:   c.now().UnixMilli(),
	})
	if err != nil {
		return err
	}
	return c.store.Set(ctx, idemKey(clientID, key), raw, c.ttl)
}

// Hold keeps a pending claim for the full TTL. It is used when the transfer
// may have committed but the outcome was lost, so a retry cannot run it twice.
func (c *Idempotency) Hold(ctx context.Context, clientID, key, fingerprint string) error {
	if key == "" {
		return nil
	}
	raw, err := c.pendingRecord(fingerprint)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, idemKey(clientID, key), raw, c.ttl)
}

func (c *Idempotency) pendingRecord(fingerprint string) ([]byte, error) {
	return json.Marshal(idemRecord{Status: idemPending, Fingerprint: fingerprint, CreatedAt: c.now().UnixMilli()})
}

// Abort drops a pending claim so the key can be retried.
func (c *Idempotency) Abort(ctx context.Context, clientID, key string) error {
	if key == "" {
		return nil
	}
	return c.store.Delete(ctx, idemKey(clientID, key))
}
