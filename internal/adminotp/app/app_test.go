package app

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/adminotp/internal/adminotp/store/drivers/redis"
	"github.com/aussiebroadwan/adminotp/pkg/authsdk"
	"github.com/aussiebroadwan/adminotp/pkg/mailx"
)

const testBootstrapToken = "app-test-bootstrap-token"

var codePattern = regexp.MustCompile(`sign-in code is (\d+)\.`)

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	cfg := LoadConfig(filepath.Join(dir, "missing.env"))
	cfg.DatabaseFile = filepath.Join(dir, "adminotp.db")
	cfg.PepperFile = filepath.Join(dir, "pepper")
	cfg.SigningKeyFile = filepath.Join(dir, "signing.pem")
	cfg.BootstrapToken = testBootstrapToken
	cfg.SMTPHost = ""
	cfg.LogLevel = "error"
	cfg.ShutdownGracePeriod = time.Second
	return cfg
}

// waitForCode polls the outbox until the delivery worker has sent a code.
func waitForCode(t *testing.T, outbox *mailx.Outbox, addr string) string {
	t.Helper()
	var code string
	require.Eventually(t, func() bool {
		msg, ok := outbox.Last(addr)
		if !ok {
			return false
		}
		m := codePattern.FindStringSubmatch(msg.TextBody)
		if m == nil {
			return false
		}
		code = m[1]
		return true
	}, 5*time.Second, 10*time.Millisecond)
	return code
}

func runSignIn(t *testing.T, cfg Config) {
	t.Helper()
	ctx := context.Background()

	application, err := New(cfg)
	require.NoError(t, err)
	application.Start()
	t.Cleanup(func() { _ = application.Shutdown() })

	outbox, ok := application.Outbox()
	require.True(t, ok)

	srv := httptest.NewServer(application.Handler())
	t.Cleanup(srv.Close)
	client := authsdk.NewSDKClient(srv.URL)

	_, err = client.Bootstrap(ctx, testBootstrapToken, authsdk.BootstrapRequest{AdminEmail: "ops@example.com"})
	require.NoError(t, err)

	require.NoError(t, client.RequestChallenge(ctx, "ops@example.com"))
	code := waitForCode(t, outbox, "ops@example.com")
	require.Len(t, code, int(cfg.OTPDigits))

	sess, err := client.VerifyChallenge(ctx, "ops@example.com", code)
	require.NoError(t, err)

	me, err := sess.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, "ops@example.com", me.Email)

	ready, err := client.GetReadiness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Status)
}

func TestApplication_SignInWithSQLite(t *testing.T) {
	runSignIn(t, testConfig(t))
}

func TestApplication_SignInWithRedisCredentials(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig(t)
	cfg.CredentialStore = CredentialStoreRedis
	cfg.RedisURL = "redis://" + mr.Addr()
	cfg.OTPDigits = 8

	runSignIn(t, cfg)
	require.NotEmpty(t, mr.Keys())
}

func TestApplication_RedisKeyPrefixAndSharedLimiter(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig(t)
	cfg.CredentialStore = CredentialStoreRedis
	cfg.RedisURL = "redis://" + mr.Addr()
	cfg.RedisKeyPrefix = "tenant:"

	application, err := New(cfg)
	require.NoError(t, err)
	require.IsType(t, &redis.IssueLimiter{}, application.challengeService.Limiter)
	require.NoError(t, application.closeStores())

	runSignIn(t, cfg)

	keys := mr.Keys()
	require.NotEmpty(t, keys)
	for _, k := range keys {
		require.True(t, strings.HasPrefix(k, "tenant:otp:"), "unexpected key %q", k)
	}
}

func TestApplication_StableKeyID(t *testing.T) {
	cfg := testConfig(t)

	first, err := New(cfg)
	require.NoError(t, err)
	kid := first.signer.KID()
	require.NoError(t, first.closeStores())

	second, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.closeStores() })
	require.Equal(t, kid, second.signer.KID())
}

func TestApplication_RejectsBadConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.CredentialStore = CredentialStoreRedis
	cfg.RedisURL = ""

	_, err := New(cfg)
	require.ErrorContains(t, err, "invalid configuration")
}
