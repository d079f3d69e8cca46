package authsdk

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"
)

// ErrSessionExpired is returned once the session token is past its expiry.
// Run the challenge again to obtain a new one.
var ErrSessionExpired = errors.New("authsdk: session expired")

// Session wraps a console session token.
type Session struct {
	client *SDKClient

	mu          sync.RWMutex
	accessToken string
	expiresAt   time.Time
}

// NewSessionFromToken wraps an existing token, e.g. one read from a cookie.
func (c *SDKClient) NewSessionFromToken(accessToken string, expiresIn int) *Session {
	return &Session{
		client:      c,
		accessToken: accessToken,
		expiresAt:   time.Now().Add(time.Duration(expiresIn) * time.Second),
	}
}

// AccessToken returns the raw bearer token.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// ExpiresAt is when the server will stop accepting the token.
func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

func (s *Session) validToken() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !time.Now().Before(s.expiresAt) {
		return "", ErrSessionExpired
	}
	return s.accessToken, nil
}

// Me returns the signed-in account.
func (s *Session) Me(ctx context.Context) (*AccountInfo, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/me", nil)
	if err != nil {
		return nil, err
	}

	var info AccountInfo
	if err := decodeJSON(resp, &info, http.StatusOK); err != nil {
		return nil, err
	}
	return &info, nil
}

// ChangePassword submits the password pair. Both empty is a no-op and
// reports changed=false.
func (s *Session) ChangePassword(ctx context.Context, password1, password2 string) (bool, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/me/password", PasswordChangeRequest{
		Password1: password1,
		Password2: password2,
	})
	if err != nil {
		return false, err
	}

	var out PasswordChangeResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return false, err
	}
	return out.Changed, nil
}
