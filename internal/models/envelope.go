package models

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"
)

// SecureEnvelope is the encrypted, signed wire form of a transfer request.
// It is consumed once by the security gateway and never stored.
type SecureEnvelope struct {
	ClientID       string    `json:"clientId"`
	EncryptedKey   string    `json:"encryptedKey"`
	IV             string    `json:"iv"`
	Tag            string    `json:"tag"`
	Payload        string    `json:"payload"`
	Signature      string    `json:"signature"`
	Timestamp      Timestamp `json:"timestamp"`
	Nonce          string    `json:"nonce"`
	IdempotencyKey string    `json:"idempotencyKey,omitempty"`
}

// Timestamp keeps the literal text the client sent, whether it arrived as a
// JSON string or a JSON number. The signature covers that exact text.
type Timestamp string

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Timestamp(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("timestamp must be a string or a number")
	}
	*t = Timestamp(n.String())
	return nil
}

// TransferPayload is the plaintext carried inside SecureEnvelope.Payload.
type TransferPayload struct {
	FromAccountID string           `json:"fromAccountId"`
	ToAccountID   string           `json:"toAccountId"`
	Amount        *decimal.Decimal `json:"amount"`
	Description   string           `json:"description,omitempty"`
}

// TransferInstruction is a decrypted, authenticated transfer request.
type TransferInstruction struct {
	ClientID       string          `json:"clientId"`
	FromAccountID  string          `json:"fromAccountId"`
	ToAccountID    string          `json:"toAccountId"`
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description,omitempty"`
	IdempotencyKey string          `json:"idempotencyKey,omitempty"`
}
