package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/securebank/internal/apperrors"
	"github.com/baharkarakas/securebank/internal/cache"
	"github.com/baharkarakas/securebank/internal/logger"
	"github.com/baharkarakas/securebank/internal/models"
	"github.com/baharkarakas/securebank/internal/repository/memory"
)

type sentEvent struct {
	topic, key string
	payload    any
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []sentEvent
}

func (n *recordingNotifier) Notify(topic, key string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sentEvent{topic, key, payload})
}

func (n *recordingNotifier) topics() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.topic)
	}
	return out
}

type fixture struct {
	store     *memory.Store
	notifier  *recordingNotifier
	transfers *TransferService
	accounts  *AccountService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	kv := cache.NewMemoryStore(time.Minute)
	t.Cleanup(kv.Close)

	n := &recordingNotifier{}
	log := logger.Discard()
	return &fixture{
		store:     store,
		notifier:  n,
		transfers: NewTransferService(store, NewIdempotency(kv, time.Hour), n, log, time.Second),
		accounts:  NewAccountService(store, store, store.Transactions(), store.AuditLogs(), n, log, time.Second),
	}
}

func (f *fixture) seed(id, number, balance string, active bool) {
	f.store.Seed(models.Account{
		ID:            id,
		AccountNumber: number,
		UserID:        "user-" + id,
		AccountType:   models.AccountChecking,
		Balance:       decimal.RequireFromString(balance),
		IsActive:      active,
	})
}

func (f *fixture) balance(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	a, err := f.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	return a.Balance
}

func (f *fixture) total(t *testing.T) decimal.Decimal {
	t.Helper()
	sum := decimal.Zero
	for _, a := range f.store.Accounts() {
		sum = sum.Add(a.Balance)
	}
	return sum
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertKind(t *testing.T, err error, kind apperrors.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind.String(), apperrors.KindOf(err).String(), "err: %v", err)
}

func assertBalance(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(dec(want)), "want %s, got %s", want, got)
}
