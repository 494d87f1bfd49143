// Package security admits signed, encrypted transfer envelopes and turns
// them into plain transfer instructions.
package security

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/baharkarakas/securebank/internal/apperrors"
	"github.com/baharkarakas/securebank/internal/metrics"
	"github.com/baharkarakas/securebank/internal/models"
)

const (
	DefaultDrift         = 120 * time.Second
	DefaultCryptoTimeout = 2 * time.Second
)

// NonceClaimer records a nonce as used. It returns false when the nonce was
// seen before.
type NonceClaimer interface {
	Claim(ctx context.Context, nonce string) (bool, error)
}

type Gateway struct {
	nonces        NonceClaimer
	clients       ClientRegistry
	key           *rsa.PrivateKey
	drift         time.Duration
	cryptoTimeout time.Duration
	now           func() time.Time
	log           *slog.Logger
}

type Option func(*Gateway)

func WithDrift(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.drift = d
		}
	}
}

func WithCryptoTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.cryptoTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.log = l }
}

func NewGateway(nonces NonceClaimer, clients ClientRegistry, key *rsa.PrivateKey, opts ...Option) *Gateway {
	g := &Gateway{
		nonces:        nonces,
		clients:       clients,
		key:           key,
		drift:         DefaultDrift,
		cryptoTimeout: DefaultCryptoTimeout,
		now:           time.Now,
		log:           slog.Default(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Admit validates env and returns the transfer it carries. The nonce is
// consumed as soon as the timestamp passes, so a rejected envelope cannot be
// resubmitted with the same nonce.
func (g *Gateway) Admit(ctx context.Context, env models.SecureEnvelope) (models.TransferInstruction, error) {
	instr, err := g.admit(ctx, env)
	if err != nil {
		kind := apperrors.KindOf(err)
		metrics.GatewayRejections.WithLabelValues(kind.String()).Inc()
		g.log.Debug("envelope rejected", "client_id", env.ClientID, "kind", kind.String(), "err", err)
		return models.TransferInstruction{}, err
	}
	return instr, nil
}

func (g *Gateway) admit(ctx context.Context, env models.SecureEnvelope) (models.TransferInstruction, error) {
	if env.ClientID == "" || env.EncryptedKey == "" || env.IV == "" || env.Tag == "" ||
		env.Payload == "" || env.Signature == "" || env.Timestamp == "" || env.Nonce == "" {
		return models.TransferInstruction{}, apperrors.New(apperrors.MalformedRequest, "missing security fields")
	}

	ts, err := strconv.ParseInt(string(env.Timestamp), 10, 64)
	if err != nil {
		return models.TransferInstruction{}, apperrors.E(apperrors.InvalidTimestamp, "invalid timestamp", err)
	}
	skew := g.now().UnixMilli() - ts
	if skew < 0 {
		skew = -skew
	}
	if skew > g.drift.Milliseconds() {
		return models.TransferInstruction{}, apperrors.New(apperrors.ExpiredRequest, "timestamp outside allowed window")
	}

	fresh, err := g.nonces.Claim(ctx, env.Nonce)
	if err != nil {
		return models.TransferInstruction{}, apperrors.E(apperrors.EngineUnavailable, "nonce store unavailable", err)
	}
	if !fresh {
		return models.TransferInstruction{}, apperrors.New(apperrors.ReplayDetected, "replay detected (nonce used)")
	}

	payload, err := g.openWithDeadline(ctx, env)
	if err != nil {
		return models.TransferInstruction{}, err
	}
	return toInstruction(env, payload)
}

type cryptoResult struct {
	plain []byte
	err   error
}

// openWithDeadline runs the signature check, key unwrap and decryption
// under the crypto timeout.
func (g *Gateway) openWithDeadline(ctx context.Context, env models.SecureEnvelope) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cryptoTimeout)
	defer cancel()

	done := make(chan cryptoResult, 1)
	go func() {
		plain, err := g.open(env)
		done <- cryptoResult{plain, err}
	}()

	select {
	case r := <-done:
		return r.plain, r.err
	case <-ctx.Done():
		return nil, apperrors.E(apperrors.SecurityValidationFailed, "security validation failed", ctx.Err())
	}
}

func (g *Gateway) open(env models.SecureEnvelope) ([]byte, error) {
	encKey, err1 := base64.StdEncoding.DecodeString(env.EncryptedKey)
	iv, err2 := base64.StdEncoding.DecodeString(env.IV)
	ciphertext, err3 := base64.StdEncoding.DecodeString(env.Payload)
	sig, err4 := base64.StdEncoding.DecodeString(env.Signature)
	tag, err5 := base64.StdEncoding.DecodeString(env.Tag)
	for _, err := range []error{err1, err2, err3, err4, err5} {
		if err != nil {
			return nil, apperrors.E(apperrors.SecurityValidationFailed, "security validation failed", err)
		}
	}

	pub, ok := g.clients.PublicKey(env.ClientID)
	if !ok {
		return nil, apperrors.New(apperrors.UnknownClient, "unknown client")
	}
	msg := signingInput(encKey, iv, ciphertext, string(env.Timestamp), env.Nonce)
	if err := verifySignature(pub, msg, sig); err != nil {
		return nil, apperrors.E(apperrors.InvalidSignature, "invalid signature", err)
	}

	key, err := unwrapKey(g.key, encKey)
	if err != nil {
		return nil, apperrors.E(apperrors.SecurityValidationFailed, "security validation failed", err)
	}
	plain, err := openGCM(key, iv, ciphertext, tag)
	if err != nil {
		return nil, apperrors.E(apperrors.SecurityValidationFailed, "security validation failed", err)
	}
	return plain, nil
}

type decodedPayload struct {
	FromAccountID string          `json:"fromAccountId"`
	ToAccountID   string          `json:"toAccountId"`
	Amount        json.RawMessage `json:"amount"`
	Description   string          `json:"description"`
}

func toInstruction(env models.SecureEnvelope, plain []byte) (models.TransferInstruction, error) {
	var p decodedPayload
	if err := json.Unmarshal(plain, &p); err != nil {
		return models.TransferInstruction{}, apperrors.E(apperrors.SecurityValidationFailed, "security validation failed", err)
	}
	amount, ok := parseAmount(p.Amount)
	if p.FromAccountID == "" || p.ToAccountID == "" || !ok || !amount.IsPositive() {
		return models.TransferInstruction{}, apperrors.New(apperrors.InvalidPayload, "invalid decrypted payload")
	}
	return models.TransferInstruction{
		ClientID:       env.ClientID,
		FromAccountID:  p.FromAccountID,
		ToAccountID:    p.ToAccountID,
		Amount:         amount,
		Description:    p.Description,
		IdempotencyKey: env.IdempotencyKey,
	}, nil
}

// parseAmount accepts a JSON number or a numeric string.
func parseAmount(raw json.RawMessage) (decimal.Decimal, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, false
	}
	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, false
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
