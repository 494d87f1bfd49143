package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/securebank/internal/models"
	"github.com/baharkarakas/securebank/internal/repository"
)

func seeded(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	s.Seed(models.Account{ID: "a", AccountNumber: "1000000001", Balance: decimal.NewFromInt(100), IsActive: true})
	s.Seed(models.Account{ID: "b", AccountNumber: "1000000002", Balance: decimal.Zero, IsActive: true})
	return s
}

func TestWithTxCommitsStagedWrites(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx repository.LedgerTx) error {
		accs, err := tx.LockAccounts(ctx, "b", "a")
		require.NoError(t, err)
		require.Len(t, accs, 2)
		if err := tx.UpdateBalance(ctx, "a", decimal.NewFromInt(60)); err != nil {
			return err
		}
		return tx.InsertTransaction(ctx, models.Transaction{ID: "t1", FromAccount: "1000000001"})
	})
	require.NoError(t, err)

	a, err := s.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.True(t, a.Balance.Equal(decimal.NewFromInt(60)))
	assert.Equal(t, 1, s.TransactionCount())
}

func TestWithTxDiscardsOnError(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx repository.LedgerTx) error {
		_, _ = tx.LockAccounts(ctx, "a")
		_ = tx.UpdateBalance(ctx, "a", decimal.Zero)
		_ = tx.InsertTransaction(ctx, models.Transaction{ID: "t1"})
		return boom
	})
	require.ErrorIs(t, err, boom)

	a, _ := s.GetByID(ctx, "a")
	assert.True(t, a.Balance.Equal(decimal.NewFromInt(100)))
	assert.Zero(t, s.TransactionCount())
}

func TestLockAccountsMissing(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx repository.LedgerTx) error {
		_, err := tx.LockAccounts(ctx, "a", "zzz")
		return err
	})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	// locks were released, a second unit can take them
	err = s.WithTx(ctx, func(tx repository.LedgerTx) error {
		_, err := tx.LockAccounts(ctx, "a", "b")
		return err
	})
	assert.NoError(t, err)
}

func TestFaultInjection(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	injected := errors.New("disk on fire")
	s.Fault = func(op string, call int) error {
		if op == "update_balance" && call == 2 {
			return injected
		}
		return nil
	}

	err := s.WithTx(ctx, func(tx repository.LedgerTx) error {
		if _, err := tx.LockAccounts(ctx, "a", "b"); err != nil {
			return err
		}
		if err := tx.UpdateBalance(ctx, "a", decimal.NewFromInt(90)); err != nil {
			return err
		}
		return tx.UpdateBalance(ctx, "b", decimal.NewFromInt(10))
	})
	require.ErrorIs(t, err, injected)

	a, _ := s.GetByID(ctx, "a")
	b, _ := s.GetByID(ctx, "b")
	assert.True(t, a.Balance.Equal(decimal.NewFromInt(100)))
	assert.True(t, b.Balance.IsZero())
}

func TestInsertAccountDuplicateNumber(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx repository.LedgerTx) error {
		return tx.InsertAccount(ctx, models.Account{ID: "c", AccountNumber: "1000000001"})
	})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	err = s.WithTx(ctx, func(tx repository.LedgerTx) error {
		return tx.InsertAccount(ctx, models.Account{ID: "c", AccountNumber: "1000000003"})
	})
	require.NoError(t, err)
	c, err := s.GetByNumber(ctx, "1000000003")
	require.NoError(t, err)
	assert.Equal(t, "c", c.ID)
}

func TestListByAccountNewestFirst(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	for _, id := range []string{"t1", "t2", "t3"} {
		id := id
		require.NoError(t, s.WithTx(ctx, func(tx repository.LedgerTx) error {
			return tx.InsertTransaction(ctx, models.Transaction{ID: id, FromAccount: "1000000001", ToAccount: "1000000002"})
		}))
	}

	got, err := s.Transactions().ListByAccount(ctx, "1000000002", 2, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "t3", got[0].ID)
	assert.Equal(t, "t2", got[1].ID)

	got, _ = s.Transactions().ListByAccount(ctx, "1000000001", 10, 2)
	require.Len(t, got, 1)
	assert.Equal(t, "t1", got[0].ID)
}
