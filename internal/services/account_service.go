package services

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/baharkarakas/securebank/internal/apperrors"
	"github.com/baharkarakas/securebank/internal/metrics"
	"github.com/baharkarakas/securebank/internal/models"
	repo "github.com/baharkarakas/securebank/internal/repository"
)

const (
	accountNumberAttempts = 5
	defaultPageSize       = 20
	maxPageSize           = 100
)

type AccountService struct {
	ledger   repo.Ledger
	accounts repo.Accounts
	trx      repo.Transactions
	audits   repo.AuditLogs
	notifier Notifier
	log      *slog.Logger
	timeout  time.Duration
	now      func() time.Time
}

func NewAccountService(ledger repo.Ledger, accounts repo.Accounts, trx repo.Transactions, audits repo.AuditLogs, n Notifier, log *slog.Logger, timeout time.Duration) *AccountService {
	return &AccountService{
		ledger:   ledger,
		accounts: accounts,
		trx:      trx,
		audits:   audits,
		notifier: n,
		log:      log,
		timeout:  timeout,
		now:      time.Now,
	}
}

// newAccountNumber returns a random 10-digit number without a leading zero.
func newAccountNumber() string {
	return strconv.FormatInt(1_000_000_000+rand.Int64N(9_000_000_000), 10)
}

func accountAudit(id, action string, details map[string]any, at time.Time) models.AuditLog {
	return models.AuditLog{
		ID:         uuid.NewString(),
		EntityType: "account",
		EntityID:   &id,
		Action:     action,
		Details:    details,
		CreatedAt:  at,
	}
}

// Open creates an empty active account for userID.
func (s *AccountService) Open(ctx context.Context, userID string, typ models.AccountType) (models.Account, error) {
	if userID == "" || !typ.Valid() {
		return models.Account{}, apperrors.New(apperrors.InvalidPayload, "userId and a valid accountType are required")
	}

	sctx, cancel := storageCtx(ctx, s.timeout)
	defer cancel()

	for attempt := 0; attempt < accountNumberAttempts; attempt++ {
		now := s.now().UTC()
		a := models.Account{
			ID:            uuid.NewString(),
			AccountNumber: newAccountNumber(),
			UserID:        userID,
			AccountType:   typ,
			Balance:       decimal.Zero,
			IsActive:      true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		err := s.ledger.WithTx(sctx, func(tx repo.LedgerTx) error {
			if err := tx.InsertAccount(sctx, a); err != nil {
				return err
			}
			return tx.InsertAudit(sctx, accountAudit(a.ID, "opened", map[string]any{
				"accountNumber": a.AccountNumber,
				"accountType":   string(typ),
			}, now))
		})
		if errors.Is(err, repo.ErrDuplicate) {
			s.log.Debug("account number collision", "attempt", attempt+1)
			continue
		}
		if err != nil {
			return models.Account{}, storageErr(err, apperrors.AccountNotFound, "account not found")
		}

		s.log.Info("account opened", "account_id", a.ID, "user_id", userID)
		s.notifier.Notify(models.TopicAccountCreated, a.ID, a)
		return a, nil
	}
	return models.Account{}, apperrors.New(apperrors.Internal, "could not allocate an account number")
}

func (s *AccountService) Get(ctx context.Context, id string) (models.Account, error) {
	sctx, cancel := storageCtx(ctx, s.timeout)
	defer cancel()
	a, err := s.accounts.GetByID(sctx, id)
	if err != nil {
		return models.Account{}, storageErr(err, apperrors.AccountNotFound, "account not found")
	}
	return a, nil
}

func (s *AccountService) GetByNumber(ctx context.Context, number string) (models.Account, error) {
	sctx, cancel := storageCtx(ctx, s.timeout)
	defer cancel()
	a, err := s.accounts.GetByNumber(sctx, number)
	if err != nil {
		return models.Account{}, storageErr(err, apperrors.AccountNotFound, "account not found")
	}
	return a, nil
}

// Freeze deactivates an account. The balance is left as is and freezing a
// frozen account is a no-op.
func (s *AccountService) Freeze(ctx context.Context, id string) (models.Account, error) {
	sctx, cancel := storageCtx(ctx, s.timeout)
	defer cancel()

	var out models.Account
	changed := false
	err := s.ledger.WithTx(sctx, func(tx repo.LedgerTx) error {
		accs, err := tx.LockAccounts(sctx, id)
		if err != nil {
			return err
		}
		out = accs[id]
		if !out.IsActive {
			return nil
		}
		if err := tx.SetActive(sctx, id, false); err != nil {
			return err
		}
		out.IsActive = false
		out.UpdatedAt = s.now().UTC()
		changed = true
		return tx.InsertAudit(sctx, accountAudit(id, "frozen", nil, out.UpdatedAt))
	})
	if err != nil {
		return models.Account{}, storageErr(err, apperrors.AccountNotFound, "account not found")
	}
	if changed {
		s.log.Info("account frozen", "account_id", id)
		s.notifier.Notify(models.TopicAccountFrozen, id, out)
	}
	return out, nil
}

// Adjust credits or debits a single account and records it as a DEPOSIT or
// WITHDRAWAL.
func (s *AccountService) Adjust(ctx context.Context, id string, amount decimal.Decimal, dir models.Direction, description string) (models.Transaction, error) {
	if err := validAmount(amount); err != nil {
		return models.Transaction{}, err
	}
	if dir != models.Debit && dir != models.Credit {
		return models.Transaction{}, apperrors.New(apperrors.InvalidPayload, "direction must be DEBIT or CREDIT")
	}

	sctx, cancel := storageCtx(ctx, s.timeout)
	defer cancel()

	now := s.now().UTC()
	var (
		out     models.Transaction
		balance decimal.Decimal
	)
	err := s.ledger.WithTx(sctx, func(tx repo.LedgerTx) error {
		accs, err := tx.LockAccounts(sctx, id)
		if err != nil {
			return err
		}
		a := accs[id]
		if !a.IsActive {
			return apperrors.New(apperrors.AccountFrozen, "account is frozen")
		}

		out = models.Transaction{
			ID:          uuid.NewString(),
			Amount:      amount,
			Description: description,
			Status:      models.TxnCompleted,
			Reference:   reference(now),
			CreatedAt:   now,
		}
		if dir == models.Debit {
			if a.Balance.LessThan(amount) {
				return apperrors.New(apperrors.InsufficientBalance, "insufficient balance")
			}
			balance = a.Balance.Sub(amount)
			out.Type = models.TxnWithdrawal
			out.FromAccount = a.AccountNumber
		} else {
			balance = a.Balance.Add(amount)
			out.Type = models.TxnDeposit
			out.ToAccount = a.AccountNumber
		}

		if err := tx.UpdateBalance(sctx, id, balance); err != nil {
			return err
		}
		if err := tx.InsertTransaction(sctx, out); err != nil {
			return err
		}
		return tx.InsertAudit(sctx, accountAudit(id, "balance_"+string(dir), map[string]any{
			"amount":        amount.StringFixed(moneyScale),
			"transactionId": out.ID,
		}, now))
	})
	if err != nil {
		err = storageErr(err, apperrors.AccountNotFound, "account not found")
		metrics.TransactionsFailed.WithLabelValues(apperrors.KindOf(err).String()).Inc()
		return models.Transaction{}, err
	}

	metrics.TransactionsTotal.WithLabelValues(string(out.Type)).Inc()
	s.notifier.Notify(models.TopicBalanceUpdated, id, map[string]any{
		"accountId":     id,
		"balance":       balance,
		"transactionId": out.ID,
	})
	return out, nil
}

// Transactions lists the account's ledger entries, newest first.
func (s *AccountService) Transactions(ctx context.Context, accountID string, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	a, err := s.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}

	sctx, cancel := storageCtx(ctx, s.timeout)
	defer cancel()
	list, err := s.trx.ListByAccount(sctx, a.AccountNumber, limit, offset)
	if err != nil {
		return nil, storageErr(err, apperrors.AccountNotFound, "account not found")
	}
	return list, nil
}

func (s *AccountService) Transaction(ctx context.Context, id string) (models.Transaction, error) {
	sctx, cancel := storageCtx(ctx, s.timeout)
	defer cancel()
	t, err := s.trx.GetByID(sctx, id)
	if err != nil {
		return models.Transaction{}, storageErr(err, apperrors.TransactionNotFound, "transaction not found")
	}
	return t, nil
}

// History returns the audit trail recorded for an account.
func (s *AccountService) History(ctx context.Context, accountID string) ([]models.AuditLog, error) {
	if _, err := s.Get(ctx, accountID); err != nil {
		return nil, err
	}
	sctx, cancel := storageCtx(ctx, s.timeout)
	defer cancel()
	logs, err := s.audits.ListByEntity(sctx, accountID)
	if err != nil {
		return nil, storageErr(err, apperrors.AccountNotFound, "account not found")
	}
	return logs, nil
}
