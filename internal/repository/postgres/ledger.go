package postgres

import (
	"context"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/baharkarakas/securebank/internal/models"
	"github.com/baharkarakas/securebank/internal/repository"
)

// beginner is the part of *pgxpool.Pool the ledger needs.
type beginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

type ledger struct{ pool beginner }

// WithTx runs fn in one database transaction. Concurrent units touching the
// same account are serialized by the FOR UPDATE row locks, which every
// caller takes in ascending id order.
func (l *ledger) WithTx(ctx context.Context, fn func(repository.LedgerTx) error) error {
	tx, err := l.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return err
	}
	// no-op after Commit; releases the row locks if fn fails or panics
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&ledgerTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type ledgerTx struct{ tx pgx.Tx }

func (t *ledgerTx) LockAccounts(ctx context.Context, ids ...string) (map[string]models.Account, error) {
	ordered := append([]string(nil), ids...)
	sort.Strings(ordered)

	out := make(map[string]models.Account, len(ordered))
	for _, id := range ordered {
		if _, ok := out[id]; ok {
			continue
		}
		a, err := scanAccount(t.tx.QueryRow(ctx,
			`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return nil, err
		}
		out[id] = a
	}
	return out, nil
}

func (t *ledgerTx) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE accounts SET balance = $2::numeric, updated_at = now() WHERE id = $1`,
		id, balance.String())
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (t *ledgerTx) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE accounts SET is_active = $2, updated_at = now() WHERE id = $1`, id, active)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (t *ledgerTx) InsertAccount(ctx context.Context, a models.Account) error {
	_, err := t.tx.Exec(ctx, `
INSERT INTO accounts (id, account_number, user_id, account_type, balance, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8)`,
		a.ID, a.AccountNumber, a.UserID, a.AccountType, a.Balance.String(), a.IsActive, a.CreatedAt, a.UpdatedAt)
	return mapErr(err)
}

func (t *ledgerTx) InsertTransaction(ctx context.Context, tr models.Transaction) error {
	_, err := t.tx.Exec(ctx, `
INSERT INTO transactions (id, type, amount, description, status, reference, from_account, to_account, created_at)
VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8, $9)`,
		tr.ID, tr.Type, tr.Amount.String(), tr.Description, tr.Status, tr.Reference,
		nullIfEmpty(tr.FromAccount), nullIfEmpty(tr.ToAccount), tr.CreatedAt)
	return mapErr(err)
}

func (t *ledgerTx) InsertAudit(ctx context.Context, l models.AuditLog) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO audit_logs (id, entity_type, entity_id, action, details, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		l.ID, l.EntityType, l.EntityID, l.Action, l.Details, l.CreatedAt)
	return mapErr(err)
}
