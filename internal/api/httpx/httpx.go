package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/baharkarakas/securebank/internal/apperrors"
)

const maxBody = 1 << 20

// Envelope is the body shape of every API response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func OK(w http.ResponseWriter, status int, data any) {
	WriteJSON(w, status, Envelope{Success: true, Data: data})
}

func WriteError(w http.ResponseWriter, status int, code, msg string) {
	WriteJSON(w, status, Envelope{Message: msg, Code: code})
}

// ErrorBody maps err to its status and client-facing body.
func ErrorBody(err error) (int, Envelope) {
	kind := apperrors.KindOf(err)
	return apperrors.HTTPStatus(kind), Envelope{Message: apperrors.Message(err), Code: kind.String()}
}

func Fail(w http.ResponseWriter, err error) {
	status, body := ErrorBody(err)
	WriteJSON(w, status, body)
}

// Decode reads a JSON body of at most 1 MiB. Unknown fields are ignored.
func Decode(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(v)
	if errors.Is(err, io.EOF) {
		return apperrors.New(apperrors.MalformedRequest, "request body is empty")
	}
	if err != nil {
		return apperrors.E(apperrors.MalformedRequest, "malformed JSON body", err)
	}
	return nil
}
