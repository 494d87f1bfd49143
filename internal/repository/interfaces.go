package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/baharkarakas/securebank/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
)

// Ledger runs atomic units of work. Either every write made through the
// LedgerTx commits or none does.
type Ledger interface {
	WithTx(ctx context.Context, fn func(tx LedgerTx) error) error
}

type LedgerTx interface {
	// LockAccounts loads the accounts and holds a write lock on each until
	// the unit ends. Locks are taken in ascending id order. A missing id
	// yields ErrNotFound.
	LockAccounts(ctx context.Context, ids ...string) (map[string]models.Account, error)
	UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) error
	SetActive(ctx context.Context, id string, active bool) error
	InsertAccount(ctx context.Context, a models.Account) error
	InsertTransaction(ctx context.Context, t models.Transaction) error
	InsertAudit(ctx context.Context, l models.AuditLog) error
}

type Accounts interface {
	GetByID(ctx context.Context, id string) (models.Account, error)
	GetByNumber(ctx context.Context, number string) (models.Account, error)
}

type Transactions interface {
	GetByID(ctx context.Context, id string) (models.Transaction, error)
	ListByAccount(ctx context.Context, accountNumber string, limit, offset int) ([]models.Transaction, error)
}

type AuditLogs interface {
	ListByEntity(ctx context.Context, entityID string) ([]models.AuditLog, error)
}
