package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/adminotp/internal/adminotp/domain"
	"github.com/aussiebroadwan/adminotp/internal/adminotp/service"
	"github.com/aussiebroadwan/adminotp/internal/adminotp/store"
	"github.com/aussiebroadwan/adminotp/pkg/authsdk"
	"github.com/aussiebroadwan/adminotp/pkg/httpx"
	"github.com/aussiebroadwan/adminotp/pkg/slogx"
)

type AccountHandler struct {
	Accounts  *service.AccountService
	Passwords *service.PasswordService
}

// HandleMe returns the signed-in account.
//
//	@Summary		Current account
//	@Tags			Account
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	authsdk.AccountInfo		"Signed-in account"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Missing or invalid session"
//	@Router			/v1/me [get]
func (h *AccountHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	accountID, ok := httpx.AccountIDFromContext(r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	acct, err := h.Accounts.GetAccountByID(r.Context(), accountID)
	if errors.Is(err, store.ErrNotFound) {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	} else if err != nil {
		slogx.FromContext(r.Context()).Error("failed to load account", "error", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.AccountInfo{
		ID:          acct.ID,
		Email:       acct.Email,
		HasPassword: acct.HasUsablePassword(),
		CreatedAt:   acct.CreatedAt,
	})
}

// HandleChangePassword applies the password pair.
//
//	@Summary		Change password
//	@Description	Both fields empty is a no-op. One empty field or two different values are rejected.
//	@Tags			Account
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		authsdk.PasswordChangeRequest	true	"Password pair"
//	@Success		200		{object}	authsdk.PasswordChangeResponse	"Whether the password changed"
//	@Failure		400		{object}	authsdk.ValidationErrorResponse	"Password pair rejected"
//	@Failure		401		{object}	authsdk.ErrorResponse			"Missing or invalid session"
//	@Router			/v1/me/password [post]
func (h *AccountHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	accountID, ok := httpx.AccountIDFromContext(r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	var req authsdk.PasswordChangeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	changed, err := h.Passwords.ChangePassword(r.Context(), accountID, domain.PasswordPair{
		Password1: req.Password1,
		Password2: req.Password2,
	})
	switch {
	case errors.Is(err, service.ErrProvideBoth), errors.Is(err, service.ErrPasswordMismatch):
		authsdk.WriteValidationError(w, map[string]string{"password_2": err.Error()})
		return
	case errors.Is(err, store.ErrNotFound):
		authsdk.ErrInvalidToken.WriteError(w)
		return
	case err != nil:
		slogx.FromContext(r.Context()).Error("password change failed", "error", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.PasswordChangeResponse{Changed: changed})
}
