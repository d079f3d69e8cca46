package authsdk

import (
	"time"

	"github.com/aussiebroadwan/adminotp/pkg/jwtx"
)

// ErrorResponse is the JSON error body: {"error", "error_description"}.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// ValidationErrorResponse is returned with 400 when request fields fail
// validation.
type ValidationErrorResponse struct {
	// Code is always "validation_error".
	Code string `json:"code"`

	Message string `json:"message"`

	// Details maps field name to message.
	Details map[string]string `json:"details,omitempty"`
}

// ============================================================================
// Challenge Types
// ============================================================================

// ChallengeRequest asks for a one-time code to be emailed.
type ChallengeRequest struct {
	Email string `json:"email"`
}

// ChallengeResponse is identical for known and unknown addresses.
type ChallengeResponse struct {
	Status string `json:"status"`
}

// ChallengeStatusIssued is the only status ever reported.
const ChallengeStatusIssued = "challenge_issued"

// VerifyRequest submits the emailed code.
type VerifyRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// SessionResponse carries a console session token.
type SessionResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// ============================================================================
// Account Types
// ============================================================================

// AccountInfo describes the signed-in account.
type AccountInfo struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	HasPassword bool      `json:"has_password"`
	CreatedAt   time.Time `json:"created_at"`
}

// PasswordChangeRequest mirrors the console profile form. Leaving both
// fields empty is a no-op.
type PasswordChangeRequest struct {
	Password1 string `json:"password_1"`
	Password2 string `json:"password_2"`
}

// PasswordChangeResponse reports whether the stored password changed.
type PasswordChangeResponse struct {
	Changed bool `json:"changed"`
}

// ============================================================================
// Bootstrap Types
// ============================================================================

// BootstrapRequest creates the first admin account.
type BootstrapRequest struct {
	AdminEmail string `json:"admin_email" validate:"required,email"`

	// AdminPassword is optional; console sign-in only needs the email.
	AdminPassword string `json:"admin_password,omitempty" validate:"omitempty,min=8,max=72"`
}

// BootstrapResponse identifies the created account.
type BootstrapResponse struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse is returned by /livez and /readyz (readyz adds Checks).
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports each dependency the service needs to serve traffic.
type HealthChecks struct {
	Database    string `json:"database"`
	Credentials string `json:"credentials"`
	Signer      string `json:"signer"`
	Delivery    string `json:"delivery"`
}

// JWKSResponse contains the keys that verify console session tokens.
type JWKSResponse jwtx.JWKS
