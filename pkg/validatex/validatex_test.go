package validatex_test

import (
	"errors"
	"testing"

	"github.com/aussiebroadwan/adminotp/pkg/validatex"
	"github.com/stretchr/testify/require"
)

type challengeInput struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,numeric,min=4,max=10"`
}

func TestStruct_Valid(t *testing.T) {
	v := validatex.MustNew()
	require.NoError(t, v.Struct(challengeInput{Email: "ops@example.com", OTP: "012345"}))
}

func TestStruct_FieldMessages(t *testing.T) {
	v := validatex.MustNew()

	tests := []struct {
		name  string
		in    challengeInput
		field string
		msg   string
	}{
		{"bad email", challengeInput{Email: "not-an-email", OTP: "123456"}, "email", "Enter a valid email address."},
		{"missing email", challengeInput{OTP: "123456"}, "email", "email is a required field"},
		{"letters in otp", challengeInput{Email: "a@example.com", OTP: "12ab56"}, "otp", "otp must be a valid numeric value"},
		{"short otp", challengeInput{Email: "a@example.com", OTP: "12"}, "otp", "otp must be at least 4 characters in length"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Struct(tc.in)

			var verr *validatex.Error
			require.True(t, errors.As(err, &verr))
			require.Equal(t, tc.msg, verr.Field(tc.field))
		})
	}
}

func TestStruct_ReportsEveryField(t *testing.T) {
	err := validatex.MustNew().Struct(challengeInput{})

	var verr *validatex.Error
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Fields, 2)
	require.Contains(t, verr.Error(), "validation error")
}

func TestStruct_FormTagFallback(t *testing.T) {
	type form struct {
		Password string `form:"password_1" validate:"required"`
	}

	var verr *validatex.Error
	require.ErrorAs(t, validatex.MustNew().Struct(form{}), &verr)
	require.NotEmpty(t, verr.Field("password_1"))
}
