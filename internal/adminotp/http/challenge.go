package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/aussiebroadwan/adminotp/internal/adminotp/service"
	"github.com/aussiebroadwan/adminotp/pkg/authsdk"
	"github.com/aussiebroadwan/adminotp/pkg/httpx"
	"github.com/aussiebroadwan/adminotp/pkg/slogx"
	"github.com/aussiebroadwan/adminotp/pkg/validatex"
)

// ChallengeHandler is the JSON face of the sign-in flow.
type ChallengeHandler struct {
	Challenges *service.ChallengeService
	Sessions   *service.SessionService
}

// HandleRequest issues a one-time code.
//
//	@Summary		Request a sign-in code
//	@Description	Emails a one-time code to the address if it belongs to an active account.
//	@Description	The response is the same whether or not the account exists.
//	@Tags			Challenge
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ChallengeRequest		true	"Email address"
//	@Success		202		{object}	authsdk.ChallengeResponse		"Challenge issued"
//	@Failure		400		{object}	authsdk.ValidationErrorResponse	"Malformed email address"
//	@Failure		429		{object}	authsdk.ErrorResponse			"Rate limit exceeded"
//	@Router			/v1/otp/request [post]
func (h *ChallengeHandler) HandleRequest(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ChallengeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	err := h.Challenges.RequestChallenge(r.Context(), req.Email)
	var verr *validatex.Error
	switch {
	case errors.As(err, &verr):
		authsdk.WriteValidationError(w, verr.Fields)
		return
	case err != nil:
		slogx.FromContext(r.Context()).Error("challenge request failed", "error", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusAccepted, authsdk.ChallengeResponse{Status: authsdk.ChallengeStatusIssued})
}

// HandleVerify exchanges a code for a console session token.
//
//	@Summary		Verify a sign-in code
//	@Description	Checks the emailed code and returns a session token. Every failure reports the same invalid_credentials error.
//	@Tags			Challenge
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.VerifyRequest			true	"Email address and code"
//	@Success		200		{object}	authsdk.SessionResponse			"Session token"
//	@Failure		400		{object}	authsdk.ValidationErrorResponse	"Malformed email address or code"
//	@Failure		401		{object}	authsdk.ErrorResponse			"Invalid credentials"
//	@Failure		429		{object}	authsdk.ErrorResponse			"Rate limit exceeded"
//	@Router			/v1/otp/verify [post]
func (h *ChallengeHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req authsdk.VerifyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	acct, err := h.Challenges.VerifyChallenge(r.Context(), req.Email, req.OTP)
	var verr *validatex.Error
	switch {
	case errors.As(err, &verr):
		authsdk.WriteValidationError(w, verr.Fields)
		return
	case errors.Is(err, service.ErrInvalidCredentials):
		authsdk.ErrInvalidCredentials.WriteError(w)
		return
	case err != nil:
		slogx.FromContext(r.Context()).Error("challenge verify failed", "error", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	sess, err := h.Sessions.Issue(acct)
	if err != nil {
		slogx.FromContext(r.Context()).Error("failed to issue session", "error", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.SessionResponse{
		AccessToken: sess.Token,
		TokenType:   "Bearer",
		ExpiresIn:   int(sess.TTL / time.Second),
	})
}
