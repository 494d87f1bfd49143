// Package apperrors holds the error taxonomy shared by the gateway, the
// transfer engine and the HTTP layer.
package apperrors

import (
	"errors"
	"net/http"
)

type Kind int

const (
	Internal Kind = iota
	MalformedRequest
	InvalidTimestamp
	ExpiredRequest
	ReplayDetected
	UnknownClient
	InvalidSignature
	SecurityValidationFailed
	InvalidPayload
	InvalidAmount
	AccountNotFound
	TransactionNotFound
	AccountFrozen
	InsufficientBalance
	IdempotencyInFlight
	IdempotencyMismatch
	EngineUnavailable
)

var kindNames = map[Kind]string{
	Internal:                 "internal_error",
	MalformedRequest:         "malformed_request",
	InvalidTimestamp:         "invalid_timestamp",
	ExpiredRequest:           "expired_request",
	ReplayDetected:           "replay_detected",
	UnknownClient:            "unknown_client",
	InvalidSignature:         "invalid_signature",
	SecurityValidationFailed: "security_validation_failed",
	InvalidPayload:           "invalid_payload",
	InvalidAmount:            "invalid_amount",
	AccountNotFound:          "account_not_found",
	TransactionNotFound:      "transaction_not_found",
	AccountFrozen:            "account_frozen",
	InsufficientBalance:      "insufficient_balance",
	IdempotencyInFlight:      "idempotency_in_flight",
	IdempotencyMismatch:      "idempotency_mismatch",
	EngineUnavailable:        "engine_unavailable",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Error carries a Kind and a caller-safe message. Err is kept for logs and
// errors.Is/As; it is never rendered to clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func E(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

// KindOf reports the Kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// Message returns the client-facing message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case MalformedRequest, InvalidTimestamp, ExpiredRequest, InvalidPayload,
		InvalidAmount, SecurityValidationFailed:
		return http.StatusBadRequest
	case UnknownClient, InvalidSignature:
		return http.StatusUnauthorized
	case AccountNotFound, TransactionNotFound:
		return http.StatusNotFound
	case ReplayDetected, IdempotencyInFlight:
		return http.StatusConflict
	case InsufficientBalance, AccountFrozen, IdempotencyMismatch:
		return http.StatusUnprocessableEntity
	case EngineUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
