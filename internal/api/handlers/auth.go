package handlers

import (
	"net/http"
	"time"

	"github.com/baharkarakas/securebank/internal/api/httpx"
	"github.com/baharkarakas/securebank/internal/auth"
)

type AuthHandler struct {
	tm  *auth.TokenManager
	dir auth.Directory
}

func NewAuthHandler(tm *auth.TokenManager, dir auth.Directory) *AuthHandler {
	return &AuthHandler{tm: tm, dir: dir}
}

type tokenReq struct {
	OperatorID string `json:"operatorId"`
	Password   string `json:"password"`
}

type tokenResp struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Token exchanges operator credentials for an access token.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req tokenReq
	if err := httpx.Decode(r, &req); err != nil || req.OperatorID == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "malformed_request", "operatorId and password are required")
		return
	}
	role, err := h.dir.Authenticate(req.OperatorID, req.Password)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
		return
	}
	tok, exp, err := h.tm.Issue(req.OperatorID, role)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "token generation failed")
		return
	}
	httpx.OK(w, http.StatusOK, tokenResp{AccessToken: tok, ExpiresAt: exp})
}
