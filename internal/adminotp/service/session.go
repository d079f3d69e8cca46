package service

import (
	"errors"
	"slices"
	"time"

	"github.com/aussiebroadwan/adminotp/internal/adminotp/domain"
	"github.com/aussiebroadwan/adminotp/pkg/jwtx"
)

const (
	ScopeAdmin = "admin"
	AMROTP     = "otp"
)

var ErrSessionInvalid = errors.New("session invalid")

// Session is a signed console session token.
type Session struct {
	Token     string
	ExpiresAt time.Time
	TTL       time.Duration
}

// SessionService mints and checks console session tokens.
type SessionService struct {
	Signer   jwtx.Signer
	Verifier jwtx.Verifier
	Issuer   string
	Audience []string
	TTL      time.Duration
	Now      func() time.Time
}

func NewSessionService(signer jwtx.Signer, verifier jwtx.Verifier, issuer string, ttl time.Duration) *SessionService {
	if ttl <= 0 {
		ttl = jwtx.DefaultSessionTTL
	}
	return &SessionService{
		Signer:   signer,
		Verifier: verifier,
		Issuer:   issuer,
		Audience: []string{issuer},
		TTL:      ttl,
		Now:      time.Now,
	}
}

// Issue signs a session for an account that just passed a challenge.
func (s *SessionService) Issue(acct domain.Account) (Session, error) {
	now := s.Now()
	claims := jwtx.NewSessionClaims(
		acct.ID, acct.Email,
		[]string{ScopeAdmin}, []string{AMROTP},
		s.TTL, s.Issuer, s.Audience, now,
	)

	token, err := s.Signer.Sign(claims)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: now.Add(s.TTL), TTL: s.TTL}, nil
}

// Authenticate verifies token and requires an OTP-backed admin session.
func (s *SessionService) Authenticate(token string) (jwtx.Claims, error) {
	claims, err := s.Verifier.Verify(token)
	if err != nil {
		return jwtx.Claims{}, errors.Join(ErrSessionInvalid, err)
	}
	if !claims.HasScope(ScopeAdmin) || !slices.Contains(claims.AMR, AMROTP) {
		return jwtx.Claims{}, ErrSessionInvalid
	}
	return claims, nil
}

// Verify makes SessionService a jwtx.Verifier for the authn middleware.
func (s *SessionService) Verify(token string) (jwtx.Claims, error) {
	return s.Authenticate(token)
}
