package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/baharkarakas/securebank/internal/api/httpx"
	"github.com/baharkarakas/securebank/internal/apperrors"
	"github.com/baharkarakas/securebank/internal/models"
	"github.com/baharkarakas/securebank/internal/security"
)

type admitter interface {
	Admit(ctx context.Context, env models.SecureEnvelope) (models.TransferInstruction, error)
}

type executor interface {
	Execute(ctx context.Context, in models.TransferInstruction) (models.Transaction, error)
}

type bodySealer interface {
	Seal(body []byte) (security.SealedBody, error)
}

type TransferHandler struct {
	gw     admitter
	svc    executor
	sealer bodySealer
	log    *slog.Logger
}

// NewTransferHandler wires the secure transfer endpoint. A nil sealer
// sends plain JSON responses.
func NewTransferHandler(gw admitter, svc executor, sealer bodySealer, log *slog.Logger) *TransferHandler {
	return &TransferHandler{gw: gw, svc: svc, sealer: sealer, log: log}
}

func (h *TransferHandler) Create(w http.ResponseWriter, r *http.Request) {
	var env models.SecureEnvelope
	if err := httpx.Decode(r, &env); err != nil {
		h.fail(w, err)
		return
	}
	if env.IdempotencyKey == "" {
		env.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}

	in, err := h.gw.Admit(r.Context(), env)
	if err != nil {
		h.fail(w, err)
		return
	}
	tx, err := h.svc.Execute(r.Context(), in)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, httpx.Envelope{Success: true, Data: tx})
}

func (h *TransferHandler) fail(w http.ResponseWriter, err error) {
	status, body := httpx.ErrorBody(err)
	if apperrors.KindOf(err) == apperrors.Internal {
		h.log.Error("transfer request failed", "err", err)
	}
	h.respond(w, status, body)
}

func (h *TransferHandler) respond(w http.ResponseWriter, status int, body httpx.Envelope) {
	if h.sealer == nil {
		httpx.WriteJSON(w, status, body)
		return
	}
	raw, err := json.Marshal(body)
	if err == nil {
		var sealed security.SealedBody
		if sealed, err = h.sealer.Seal(raw); err == nil {
			httpx.WriteJSON(w, status, sealed)
			return
		}
	}
	h.log.Error("response sealing failed", "err", err)
	httpx.WriteError(w, http.StatusInternalServerError, apperrors.Internal.String(), "internal error")
}
