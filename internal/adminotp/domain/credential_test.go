package domain_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/adminotp/internal/adminotp/domain"
	"github.com/stretchr/testify/require"
)

func TestOTPCredential_Usable(t *testing.T) {
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	consumed := now.Add(-time.Minute)

	base := domain.OTPCredential{
		AccountID:  "acct",
		SecretHash: "$argon2id$...",
		IssuedAt:   now.Add(-time.Minute),
		ExpiresAt:  now.Add(4 * time.Minute),
	}

	tests := []struct {
		name   string
		mutate func(c *domain.OTPCredential)
		want   bool
	}{
		{"fresh", func(c *domain.OTPCredential) {}, true},
		{"empty slot", func(c *domain.OTPCredential) { c.SecretHash = "" }, false},
		{"consumed", func(c *domain.OTPCredential) { c.ConsumedAt = &consumed }, false},
		{"expired exactly now", func(c *domain.OTPCredential) { c.ExpiresAt = now }, false},
		{"attempts exhausted", func(c *domain.OTPCredential) { c.Attempts = 5 }, false},
		{"attempts remaining", func(c *domain.OTPCredential) { c.Attempts = 4 }, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := base
			tc.mutate(&c)
			require.Equal(t, tc.want, c.Usable(now, 5))
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	require.Equal(t, "ops@example.com", domain.NormalizeEmail("  Ops@Example.COM "))
}
