package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountSavings  AccountType = "SAVINGS"
	AccountChecking AccountType = "CHECKING"
)

func (t AccountType) Valid() bool {
	return t == AccountSavings || t == AccountChecking
}

// Account balance never goes negative. It is only mutated by the transfer
// engine or the debit/credit primitive, both inside a ledger transaction.
type Account struct {
	ID            string          `json:"id"`
	AccountNumber string          `json:"accountNumber"`
	UserID        string          `json:"userId"`
	AccountType   AccountType     `json:"accountType"`
	Balance       decimal.Decimal `json:"balance"`
	IsActive      bool            `json:"isActive"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

type Direction string

const (
	Debit  Direction = "DEBIT"
	Credit Direction = "CREDIT"
)
