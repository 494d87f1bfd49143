package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/baharkarakas/securebank/internal/apperrors"
	"github.com/baharkarakas/securebank/internal/metrics"
	"github.com/baharkarakas/securebank/internal/models"
	repo "github.com/baharkarakas/securebank/internal/repository"
)

// Money carries two fractional digits end to end.
const moneyScale = 2

type TransferService struct {
	ledger   repo.Ledger
	idem     *Idempotency
	notifier Notifier
	log      *slog.Logger
	timeout  time.Duration
	now      func() time.Time
}

func NewTransferService(ledger repo.Ledger, idem *Idempotency, n Notifier, log *slog.Logger, timeout time.Duration) *TransferService {
	return &TransferService{ledger: ledger, idem: idem, notifier: n, log: log, timeout: timeout, now: time.Now}
}

func validAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperrors.New(apperrors.InvalidAmount, "amount must be greater than zero")
	}
	if amount.Exponent() < -moneyScale && !amount.Equal(amount.Truncate(moneyScale)) {
		return apperrors.New(apperrors.InvalidAmount, "amount has more than two decimal places")
	}
	return nil
}

// reference returns a time-ordered human-readable transaction reference.
func reference(now time.Time) string {
	return fmt.Sprintf("TXN%d%s", now.UnixMilli(), strings.ToUpper(uuid.NewString()[:8]))
}

// Execute runs an admitted transfer instruction at most once per
// idempotency key.
func (s *TransferService) Execute(ctx context.Context, in models.TransferInstruction) (models.Transaction, error) {
	fp := Fingerprint(in)
	prior, err := s.idem.Begin(ctx, in.ClientID, in.IdempotencyKey, fp)
	if err != nil {
		return models.Transaction{}, err
	}
	if prior != nil {
		metrics.IdempotentReplays.Inc()
		s.log.Info("idempotent replay", "client_id", in.ClientID, "transaction_id", prior.ID)
		return *prior, nil
	}

	tx, err := s.Transfer(ctx, in.FromAccountID, in.ToAccountID, in.Amount, in.Description)
	bg, cancel := storageCtx(ctx, s.timeout)
	defer cancel()
	if err != nil {
		s.settleFailedClaim(bg, in, fp, err)
		return models.Transaction{}, err
	}
	if cerr := s.idem.Complete(bg, in.ClientID, in.IdempotencyKey, fp, tx); cerr != nil {
		s.log.Error("idempotency record not stored", "client_id", in.ClientID, "transaction_id", tx.ID, "err", cerr)
	}
	return tx, nil
}

// settleFailedClaim releases the claim when the transfer certainly did not
// commit. Otherwise the claim is kept for the full TTL.
func (s *TransferService) settleFailedClaim(ctx context.Context, in models.TransferInstruction, fp string, err error) {
	if notCommitted(err) {
		if aerr := s.idem.Abort(ctx, in.ClientID, in.IdempotencyKey); aerr != nil {
			s.log.Warn("idempotency abort failed", "client_id", in.ClientID, "err", aerr)
		}
		return
	}
	s.log.Error("transfer outcome unknown, holding idempotency key",
		"client_id", in.ClientID, "idempotency_key", in.IdempotencyKey, "err", err)
	if herr := s.idem.Hold(ctx, in.ClientID, in.IdempotencyKey, fp); herr != nil {
		s.log.Error("idempotency hold failed", "client_id", in.ClientID, "err", herr)
	}
}

// errNotStarted marks failures raised before the ledger is opened.
var errNotStarted = errors.New("transfer not started")

// notCommitted reports whether err proves the ledger was left untouched.
func notCommitted(err error) bool {
	switch apperrors.KindOf(err) {
	case apperrors.InvalidAmount, apperrors.InvalidPayload, apperrors.AccountNotFound,
		apperrors.AccountFrozen, apperrors.InsufficientBalance:
		return true
	}
	return errors.Is(err, errNotStarted)
}

// Transfer moves amount from one account to another in a single unit of
// work. Accounts are addressed by id.
func (s *TransferService) Transfer(ctx context.Context, fromID, toID string, amount decimal.Decimal, description string) (models.Transaction, error) {
	tx, err := s.transfer(ctx, fromID, toID, amount, description)
	if err != nil {
		metrics.TransactionsFailed.WithLabelValues(apperrors.KindOf(err).String()).Inc()
		s.log.Warn("transfer failed", "from", fromID, "to", toID, "kind", apperrors.KindOf(err).String(), "err", err)
		return models.Transaction{}, err
	}

	metrics.TransactionsTotal.WithLabelValues(string(models.TxnTransfer)).Inc()
	s.log.Info("transfer completed", "transaction_id", tx.ID, "reference", tx.Reference, "amount", tx.Amount.StringFixed(moneyScale))
	s.notifier.Notify(models.TopicTransferComplete, fromID, map[string]any{
		"transaction":   tx,
		"fromAccountId": fromID,
		"toAccountId":   toID,
	})
	return tx, nil
}

func (s *TransferService) transfer(ctx context.Context, fromID, toID string, amount decimal.Decimal, description string) (models.Transaction, error) {
	if err := validAmount(amount); err != nil {
		return models.Transaction{}, err
	}
	if fromID == toID {
		return models.Transaction{}, apperrors.New(apperrors.InvalidPayload, "cannot transfer to the same account")
	}
	if err := ctx.Err(); err != nil {
		return models.Transaction{}, apperrors.E(apperrors.EngineUnavailable, "request cancelled", fmt.Errorf("%w: %w", errNotStarted, err))
	}

	sctx, cancel := storageCtx(ctx, s.timeout)
	defer cancel()

	now := s.now().UTC()
	var out models.Transaction
	err := s.ledger.WithTx(sctx, func(tx repo.LedgerTx) error {
		accs, err := tx.LockAccounts(sctx, fromID, toID)
		if err != nil {
			return storageErr(err, apperrors.AccountNotFound, "account not found")
		}
		from, to := accs[fromID], accs[toID]
		if !from.IsActive || !to.IsActive {
			return apperrors.New(apperrors.AccountFrozen, "account is frozen")
		}
		if from.Balance.LessThan(amount) {
			return apperrors.New(apperrors.InsufficientBalance, "insufficient balance")
		}

		if err := tx.UpdateBalance(sctx, fromID, from.Balance.Sub(amount)); err != nil {
			return err
		}
		if err := tx.UpdateBalance(sctx, toID, to.Balance.Add(amount)); err != nil {
			return err
		}

		out = models.Transaction{
			ID:          uuid.NewString(),
			Type:        models.TxnTransfer,
			Amount:      amount,
			Description: description,
			Status:      models.TxnCompleted,
			Reference:   reference(now),
			FromAccount: from.AccountNumber,
			ToAccount:   to.AccountNumber,
			CreatedAt:   now,
		}
		if err := tx.InsertTransaction(sctx, out); err != nil {
			return err
		}
		return tx.InsertAudit(sctx, models.AuditLog{
			ID:         uuid.NewString(),
			EntityType: "transaction",
			EntityID:   &out.ID,
			Action:     "transfer",
			Details: map[string]any{
				"from":   from.AccountNumber,
				"to":     to.AccountNumber,
				"amount": amount.StringFixed(moneyScale),
			},
			CreatedAt: now,
		})
	})
	if err != nil {
		return models.Transaction{}, storageErr(err, apperrors.AccountNotFound, "account not found")
	}
	return out, nil
}
