package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/baharkarakas/securebank/internal/api/httpx"
	"github.com/baharkarakas/securebank/internal/apperrors"
	"github.com/baharkarakas/securebank/internal/models"
	"github.com/baharkarakas/securebank/internal/validate"
)

type accountService interface {
	Open(ctx context.Context, userID string, typ models.AccountType) (models.Account, error)
	Get(ctx context.Context, id string) (models.Account, error)
	GetByNumber(ctx context.Context, number string) (models.Account, error)
	Freeze(ctx context.Context, id string) (models.Account, error)
	Adjust(ctx context.Context, id string, amount decimal.Decimal, dir models.Direction, description string) (models.Transaction, error)
	Transactions(ctx context.Context, accountID string, limit, offset int) ([]models.Transaction, error)
	Transaction(ctx context.Context, id string) (models.Transaction, error)
	History(ctx context.Context, accountID string) ([]models.AuditLog, error)
}

type AccountHandler struct {
	svc accountService
}

func NewAccountHandler(svc accountService) *AccountHandler {
	return &AccountHandler{svc: svc}
}

type openAccountReq struct {
	UserID      string `json:"userId"`
	AccountType string `json:"accountType"`
}

func (h *AccountHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req openAccountReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Fail(w, err)
		return
	}
	var ve validate.Errs
	ve.Check(validate.Required("userId", req.UserID))
	ve.Check(validate.OneOf("accountType", req.AccountType, string(models.AccountSavings), string(models.AccountChecking)))
	if err := ve.Err(); err != nil {
		httpx.Fail(w, apperrors.E(apperrors.InvalidPayload, err.Error(), err))
		return
	}

	a, err := h.svc.Open(r.Context(), req.UserID, models.AccountType(req.AccountType))
	if err != nil {
		httpx.Fail(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, a)
}

func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, a)
}

func (h *AccountHandler) GetByNumber(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.GetByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		httpx.Fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, a)
}

func (h *AccountHandler) Freeze(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.Freeze(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, a)
}

type adjustReq struct {
	Amount      decimal.Decimal  `json:"amount"`
	Direction   models.Direction `json:"direction"`
	Description string           `json:"description"`
}

func (h *AccountHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Fail(w, err)
		return
	}
	tx, err := h.svc.Adjust(r.Context(), chi.URLParam(r, "id"), req.Amount, req.Direction, req.Description)
	if err != nil {
		httpx.Fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, tx)
}

func (h *AccountHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	list, err := h.svc.Transactions(r.Context(), chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		httpx.Fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, list)
}

func (h *AccountHandler) History(w http.ResponseWriter, r *http.Request) {
	logs, err := h.svc.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, logs)
}

func (h *AccountHandler) Transaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.svc.Transaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Fail(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, tx)
}
