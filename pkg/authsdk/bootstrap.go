package authsdk

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/adminotp/pkg/validatex"
)

var requestValidator = validatex.MustNew()

// Normalize trims the request and lower-cases the email.
func (b BootstrapRequest) Normalize() BootstrapRequest {
	b.AdminEmail = strings.ToLower(strings.TrimSpace(b.AdminEmail))
	return b
}

// Validate checks the request fields. It returns an *APIError with Fields
// set, or nil.
func (b BootstrapRequest) Validate() error {
	err := requestValidator.Struct(b.Normalize())
	if err == nil {
		return nil
	}

	verr, ok := err.(*validatex.Error)
	if !ok {
		return err
	}
	return &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeValidation,
		Description: "request validation failed",
		Fields:      verr.Fields,
	}
}
