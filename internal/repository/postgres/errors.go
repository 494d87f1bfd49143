package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/baharkarakas/securebank/internal/models"
	"github.com/baharkarakas/securebank/internal/repository"
)

const (
	codeUniqueViolation      = "23505"
	codeInvalidTextRepresent = "22P02"
)

// mapErr translates driver errors into repository sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return repository.ErrDuplicate
		case codeInvalidTextRepresent:
			// malformed uuid in a lookup
			return repository.ErrNotFound
		}
	}
	return err
}

const accountColumns = `id::text, account_number, user_id, account_type, balance::text, is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (models.Account, error) {
	var (
		a       models.Account
		balance string
	)
	err := row.Scan(&a.ID, &a.AccountNumber, &a.UserID, &a.AccountType, &balance, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return models.Account{}, mapErr(err)
	}
	if a.Balance, err = decimal.NewFromString(balance); err != nil {
		return models.Account{}, err
	}
	return a, nil
}

const transactionColumns = `id::text, type, amount::text, description, status, reference, coalesce(from_account, ''), coalesce(to_account, ''), created_at`

func scanTransaction(row pgx.Row) (models.Transaction, error) {
	var (
		t      models.Transaction
		amount string
	)
	err := row.Scan(&t.ID, &t.Type, &amount, &t.Description, &t.Status, &t.Reference, &t.FromAccount, &t.ToAccount, &t.CreatedAt)
	if err != nil {
		return models.Transaction{}, mapErr(err)
	}
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return models.Transaction{}, err
	}
	return t, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
