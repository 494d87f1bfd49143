package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TxnTransfer   TransactionType = "TRANSFER"
	TxnPurchase   TransactionType = "PURCHASE"
	TxnDeposit    TransactionType = "DEPOSIT"
	TxnWithdrawal TransactionType = "WITHDRAWAL"
)

type TransactionStatus string

const (
	TxnPending   TransactionStatus = "PENDING"
	TxnCompleted TransactionStatus = "COMPLETED"
	TxnFailed    TransactionStatus = "FAILED"
)

// Transaction is an immutable ledger entry. FromAccount and ToAccount hold
// account numbers, denormalized for audit; one of them is empty for
// deposits and withdrawals.
type Transaction struct {
	ID          string            `json:"id"`
	Type        TransactionType   `json:"type"`
	Amount      decimal.Decimal   `json:"amount"`
	Description string            `json:"description"`
	Status      TransactionStatus `json:"status"`
	Reference   string            `json:"reference"`
	FromAccount string            `json:"fromAccount,omitempty"`
	ToAccount   string            `json:"toAccount,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}
