package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/adminotp/internal/adminotp/domain"
	"github.com/aussiebroadwan/adminotp/pkg/cryptox"
	"github.com/aussiebroadwan/adminotp/pkg/jwtx"
)

func newTestSessions(t *testing.T) *SessionService {
	t.Helper()
	pem, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	signer, err := jwtx.NewSignerEdDSA("test-kid", pem)
	require.NoError(t, err)

	keys := jwtx.NewKeySet()
	require.NoError(t, keys.AddSigner(signer))

	return NewSessionService(signer, jwtx.NewCommonEdDSA(keys, "adminotp", []string{"adminotp"}), "adminotp", 0)
}

func TestSessionService_IssueAuthenticate(t *testing.T) {
	svc := newTestSessions(t)
	acct := domain.Account{ID: "acct-1", Email: "ops@example.com"}

	sess, err := svc.Issue(acct)
	require.NoError(t, err)
	require.Equal(t, jwtx.DefaultSessionTTL, sess.TTL)
	require.WithinDuration(t, time.Now().Add(jwtx.DefaultSessionTTL), sess.ExpiresAt, 5*time.Second)

	claims, err := svc.Authenticate(sess.Token)
	require.NoError(t, err)
	require.Equal(t, "acct-1", claims.Subject)
	require.Equal(t, "ops@example.com", claims.Email)
	require.Equal(t, []string{"otp"}, claims.AMR)
	require.True(t, claims.HasScope(ScopeAdmin))
}

func TestSessionService_RejectsGarbage(t *testing.T) {
	svc := newTestSessions(t)
	_, err := svc.Authenticate("not.a.jwt")
	require.ErrorIs(t, err, ErrSessionInvalid)
}

func TestSessionService_RejectsNonOTPSession(t *testing.T) {
	svc := newTestSessions(t)
	claims := jwtx.NewSessionClaims("acct-1", "", []string{ScopeAdmin}, []string{"pwd"},
		time.Hour, "adminotp", []string{"adminotp"}, time.Now())
	token, err := svc.Signer.Sign(claims)
	require.NoError(t, err)

	_, err = svc.Authenticate(token)
	require.ErrorIs(t, err, ErrSessionInvalid)
}
