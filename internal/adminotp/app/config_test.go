package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/adminotp/pkg/httpx"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("ENV", "")
	cfg := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))

	require.Equal(t, "adminotp", cfg.Issuer)
	require.Equal(t, CredentialStoreSQLite, cfg.CredentialStore)
	require.Equal(t, "adminotp:", cfg.RedisKeyPrefix)
	require.Equal(t, otp.DigitsSix, cfg.OTPDigits)
	require.Equal(t, 5*time.Minute, cfg.OTPTTL)
	require.Equal(t, 5, cfg.OTPMaxAttempts)
	require.Equal(t, 3, cfg.OTPIssueLimit)
	require.Equal(t, 10*time.Minute, cfg.OTPIssueWindow)
	require.Equal(t, 8*time.Hour, cfg.SessionTTL)
	require.Equal(t, "/admin", cfg.URLPrefix)
	require.Equal(t, "dev", cfg.Env)
	require.False(t, cfg.CookieSecure)
	require.Equal(t, 8080, cfg.Port)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("ENV", "prod")
	t.Setenv("ADMINOTP_OTP_DIGITS", "8")
	t.Setenv("ADMINOTP_OTP_TTL", "90s")
	t.Setenv("ADMINOTP_OTP_ISSUE_WINDOW", "15")
	t.Setenv("ADMINOTP_CREDENTIAL_STORE", "Redis")
	t.Setenv("ADMINOTP_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("ADMINOTP_REDIS_KEY_PREFIX", "tenant-a:")
	t.Setenv("PORT", "not-a-number")

	cfg := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.Equal(t, otp.DigitsEight, cfg.OTPDigits)
	require.Equal(t, 90*time.Second, cfg.OTPTTL)
	require.Equal(t, 15*time.Minute, cfg.OTPIssueWindow)
	require.Equal(t, CredentialStoreRedis, cfg.CredentialStore)
	require.Equal(t, "tenant-a:", cfg.RedisKeyPrefix)
	require.True(t, cfg.CookieSecure)
	require.Equal(t, 8080, cfg.Port)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_DotEnv(t *testing.T) {
	file := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(file, []byte(
		"ADMINOTP_SITE_HEADER=Ops Console\nADMINOTP_ISSUER=from-file\nRATELIMIT_STRICT_REQUESTS=7\n",
	), 0o600))

	t.Setenv("ADMINOTP_ISSUER", "from-env")
	// Register for cleanup; godotenv sets these directly.
	t.Setenv("ADMINOTP_SITE_HEADER", "")
	t.Setenv("RATELIMIT_STRICT_REQUESTS", "")
	require.NoError(t, os.Unsetenv("ADMINOTP_SITE_HEADER"))
	require.NoError(t, os.Unsetenv("RATELIMIT_STRICT_REQUESTS"))

	strict := httpx.StrictLimit
	t.Cleanup(func() { httpx.StrictLimit = strict })

	cfg := LoadConfig(file)
	require.Equal(t, "Ops Console", cfg.SiteHeader)
	require.Equal(t, "from-env", cfg.Issuer)
	require.Equal(t, 7, httpx.StrictLimit.RequestsPerWindow)
}

func TestConfigValidate(t *testing.T) {
	cfg := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))

	bad := cfg
	bad.OTPDigits = 3
	bad.OTPMaxAttempts = 0
	err := bad.Validate()
	require.ErrorContains(t, err, "ADMINOTP_OTP_DIGITS")
	require.ErrorContains(t, err, "ADMINOTP_OTP_MAX_ATTEMPTS")

	bad = cfg
	bad.CredentialStore = CredentialStoreRedis
	bad.RedisURL = ""
	require.ErrorContains(t, bad.Validate(), "ADMINOTP_REDIS_URL")

	bad = cfg
	bad.CredentialStore = "memcached"
	require.ErrorContains(t, bad.Validate(), "memcached")
}
