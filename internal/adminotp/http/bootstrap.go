package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/adminotp/internal/adminotp/domain"
	"github.com/aussiebroadwan/adminotp/internal/adminotp/service"
	"github.com/aussiebroadwan/adminotp/pkg/authsdk"
	"github.com/aussiebroadwan/adminotp/pkg/httpx"
	"github.com/aussiebroadwan/adminotp/pkg/slogx"
)

const BootstrapTokenHeader = "X-Bootstrap-Token"

type BootstrapHandler struct {
	BootstrapService *service.BootstrapService
}

// ServeHTTP creates the first admin account.
//
//	@Summary		Bootstrap the console
//	@Description	Creates the first admin account. Only available when a bootstrap token is configured and only while no account exists.
//	@Tags			Bootstrap
//	@Accept			json
//	@Produce		json
//	@Param			X-Bootstrap-Token	header		string							true	"Bootstrap token"
//	@Param			request				body		authsdk.BootstrapRequest		true	"Admin account"
//	@Success		201					{object}	authsdk.BootstrapResponse		"Admin account created"
//	@Failure		400					{object}	authsdk.ValidationErrorResponse	"Invalid request body or validation failed"
//	@Failure		401					{object}	authsdk.ErrorResponse			"Missing or invalid bootstrap token"
//	@Failure		404					{object}	authsdk.ErrorResponse			"Bootstrap not enabled"
//	@Failure		409					{object}	authsdk.ErrorResponse			"Already bootstrapped"
//	@Router			/v1/bootstrap [post]
func (h *BootstrapHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l := slogx.FromContext(r.Context())

	if h.BootstrapService.Token == "" {
		httpx.WriteJSON(w, http.StatusNotFound, authsdk.ErrorResponse{
			Error:            "not_found",
			ErrorDescription: "Bootstrap endpoint is not enabled",
		})
		return
	}

	token := r.Header.Get(BootstrapTokenHeader)
	if token == "" {
		httpx.WriteJSON(w, http.StatusUnauthorized, authsdk.ErrorResponse{
			Error:            "unauthorized",
			ErrorDescription: "Bootstrap token is required in X-Bootstrap-Token header",
		})
		return
	}

	var req authsdk.BootstrapRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		var apiErr *authsdk.APIError
		if errors.As(err, &apiErr) {
			authsdk.WriteValidationError(w, apiErr.Fields)
			return
		}
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	accountID, err := h.BootstrapService.Bootstrap(r.Context(), token, domain.BootstrapData{
		AdminEmail:    req.AdminEmail,
		AdminPassword: req.AdminPassword,
	})
	switch {
	case errors.Is(err, service.ErrBootstrapAlready):
		authsdk.ErrAlreadyBootstrapped.WriteError(w)
		return
	case errors.Is(err, service.ErrBootstrapUnauthorized):
		httpx.WriteJSON(w, http.StatusUnauthorized, authsdk.ErrorResponse{
			Error:            "unauthorized",
			ErrorDescription: "Invalid bootstrap token",
		})
		return
	case err != nil:
		l.Error("bootstrap failed", "error", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, authsdk.BootstrapResponse{
		AccountID: accountID,
		Email:     req.AdminEmail,
	})
}
