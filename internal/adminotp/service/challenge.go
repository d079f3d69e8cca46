package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pquerna/otp"

	"github.com/aussiebroadwan/adminotp/internal/adminotp/domain"
	"github.com/aussiebroadwan/adminotp/internal/adminotp/store"
	"github.com/aussiebroadwan/adminotp/pkg/cryptox"
	"github.com/aussiebroadwan/adminotp/pkg/ratex"
	"github.com/aussiebroadwan/adminotp/pkg/slogx"
	"github.com/aussiebroadwan/adminotp/pkg/validatex"
)

// ErrInvalidCredentials is the only rejection a verification ever reports,
// whatever the underlying reason.
//
//nolint:staticcheck // user-facing message, punctuation intended
var ErrInvalidCredentials = errors.New("Invalid credentials.")

const (
	DefaultOTPDigits      = otp.DigitsSix
	DefaultOTPTTL         = 5 * time.Minute
	DefaultOTPMaxAttempts = 5
	DefaultIssueLimit     = 3
	DefaultIssueWindow    = 10 * time.Minute
)

// Dispatcher hands a code to whatever delivers it. Implementations must not
// block on the delivery itself.
type Dispatcher interface {
	Dispatch(ctx context.Context, destination, code string) error
}

// IssueLimiter caps how many codes one account is issued. The in-memory
// default is per process; replicas that share a credential store should
// share a limiter too.
type IssueLimiter interface {
	// Allow records one issuance for key at now if the cap permits it.
	Allow(ctx context.Context, key string, now time.Time) (bool, error)
	Reset(ctx context.Context, key string) error
}

// MemoryIssueLimiter adapts a ratex.WindowLimiter to IssueLimiter.
type MemoryIssueLimiter struct {
	*ratex.WindowLimiter
}

func NewMemoryIssueLimiter(cfg ratex.Config) MemoryIssueLimiter {
	return MemoryIssueLimiter{ratex.NewWindowLimiter(cfg)}
}

func (m MemoryIssueLimiter) Allow(_ context.Context, key string, now time.Time) (bool, error) {
	return m.AllowAt(key, now), nil
}

func (m MemoryIssueLimiter) Reset(_ context.Context, key string) error {
	m.WindowLimiter.Reset(key)
	return nil
}

// decoyAccountID names a credential slot no account can own. Rejections
// touch it so every branch makes the same store round-trips.
const decoyAccountID = "-"

type ChallengeConfig struct {
	Digits      otp.Digits
	TTL         time.Duration
	MaxAttempts int

	// IssueLimit caps how many codes one account is issued in any sliding
	// window. Burst is ignored.
	IssueLimit ratex.Config
}

func (c ChallengeConfig) withDefaults() ChallengeConfig {
	if c.Digits == 0 {
		c.Digits = DefaultOTPDigits
	}
	if c.TTL <= 0 {
		c.TTL = DefaultOTPTTL
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultOTPMaxAttempts
	}
	if c.IssueLimit.Events <= 0 {
		c.IssueLimit.Events = DefaultIssueLimit
	}
	if c.IssueLimit.Window <= 0 {
		c.IssueLimit.Window = DefaultIssueWindow
	}
	return c
}

// ChallengeService issues and verifies emailed one-time passcodes.
//
// RequestChallenge never reveals whether an account exists: both branches
// generate and hash one code, and the response is the same. VerifyChallenge
// collapses every rejection into ErrInvalidCredentials after one hash
// comparison.
type ChallengeService struct {
	Store      store.Store
	Dispatcher Dispatcher
	Hasher     Hasher
	Validator  *validatex.Validator
	Limiter    IssueLimiter
	Now        func() time.Time

	cfg           ChallengeConfig
	unsatisfiable string
}

func NewChallengeService(st store.Store, d Dispatcher, cfg ChallengeConfig) (*ChallengeService, error) {
	return newChallengeService(st, d, Argon2Hasher{}, cfg)
}

func newChallengeService(st store.Store, d Dispatcher, h Hasher, cfg ChallengeConfig) (*ChallengeService, error) {
	cfg = cfg.withDefaults()
	if l := cfg.Digits.Length(); l < cryptox.MinOTPDigits || l > cryptox.MaxOTPDigits {
		return nil, fmt.Errorf("otp digits must be between %d and %d", cryptox.MinOTPDigits, cryptox.MaxOTPDigits)
	}

	v, err := validatex.New()
	if err != nil {
		return nil, err
	}

	unsat, err := unsatisfiableHash(h)
	if err != nil {
		return nil, fmt.Errorf("prepare unsatisfiable hash: %w", err)
	}

	return &ChallengeService{
		Store:         st,
		Dispatcher:    d,
		Hasher:        h,
		Validator:     v,
		Limiter:       NewMemoryIssueLimiter(cfg.IssueLimit),
		Now:           time.Now,
		cfg:           cfg,
		unsatisfiable: unsat,
	}, nil
}

func (s *ChallengeService) Config() ChallengeConfig { return s.cfg }

type challengeRequest struct {
	Email string `json:"email" form:"email" validate:"required,email"`
}

type challengeAttempt struct {
	Email string `json:"email" form:"email" validate:"required,email"`
	OTP   string `json:"otp" form:"otp" validate:"required,numeric,min=4,max=10"`
}

// RequestChallenge issues a fresh code to identifier if it names an active
// account. The only error tied to the input is *validatex.Error.
func (s *ChallengeService) RequestChallenge(ctx context.Context, identifier string) error {
	l := slogx.FromContext(ctx)
	email := domain.NormalizeEmail(identifier)

	if err := s.Validator.Struct(challengeRequest{Email: email}); err != nil {
		return err
	}

	acct, err := s.Store.Accounts().GetAccountByEmail(ctx, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.burn(ctx)
		return nil
	case err != nil:
		l.Error("failed to look up account", slog.Any("error", err))
		return fmt.Errorf("look up account: %w", err)
	}

	if !acct.IsActive {
		s.burn(ctx)
		return nil
	}

	allowed, err := s.Limiter.Allow(ctx, acct.ID, s.Now())
	if err != nil {
		l.Error("failed to check otp issue limit", slog.String("account_id", acct.ID), slog.Any("error", err))
	}
	if !allowed {
		l.Warn("otp issuance rate limited", slog.String("account_id", acct.ID))
		s.burn(ctx)
		return nil
	}

	code, hash, err := s.newCode()
	if err != nil {
		l.Error("failed to generate otp", slog.Any("error", err))
		return nil
	}

	now := s.Now()
	err = s.Store.Credentials().PutCredential(ctx, domain.OTPCredential{
		AccountID:  acct.ID,
		SecretHash: hash,
		IssuedAt:   now,
		ExpiresAt:  now.Add(s.cfg.TTL),
	})
	if err != nil {
		// Only existing accounts get here, so the caller must not see it.
		l.Error("failed to store otp credential", slog.String("account_id", acct.ID), slog.Any("error", err))
		return nil
	}

	if err := s.Dispatcher.Dispatch(ctx, acct.Email, code); err != nil {
		l.Error("failed to dispatch otp", slog.String("account_id", acct.ID), slog.Any("error", err))
		return nil
	}

	l.Info("otp issued", slog.String("account_id", acct.ID))
	return nil
}

// VerifyChallenge checks otp against the account's active credential and
// consumes it on success.
func (s *ChallengeService) VerifyChallenge(ctx context.Context, identifier, code string) (domain.Account, error) {
	l := slogx.FromContext(ctx)
	email := domain.NormalizeEmail(identifier)

	if err := s.Validator.Struct(challengeAttempt{Email: email, OTP: code}); err != nil {
		return domain.Account{}, err
	}

	acct, err := s.Store.Accounts().GetAccountByEmail(ctx, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.decoyLookup(ctx)
		return domain.Account{}, s.reject(ctx, code)
	case err != nil:
		l.Error("failed to look up account", slog.Any("error", err))
		return domain.Account{}, fmt.Errorf("look up account: %w", err)
	}
	if !acct.IsActive {
		s.decoyLookup(ctx)
		return domain.Account{}, s.reject(ctx, code)
	}

	now := s.Now()
	cred, err := s.Store.Credentials().GetCredential(ctx, acct.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return domain.Account{}, s.reject(ctx, code)
	case err != nil:
		l.Error("failed to load otp credential", slog.String("account_id", acct.ID), slog.Any("error", err))
		return domain.Account{}, fmt.Errorf("load credential: %w", err)
	}
	if !cred.Usable(now, s.cfg.MaxAttempts) {
		return domain.Account{}, s.reject(ctx, code)
	}

	if err := s.Hasher.Verify(code, cred.SecretHash); err != nil {
		if !isMismatch(err) {
			l.Error("stored otp hash unusable", slog.String("account_id", acct.ID), slog.Any("error", err))
			return domain.Account{}, ErrInvalidCredentials
		}
		attempts, err := s.Store.Credentials().RecordFailedAttempt(ctx, acct.ID, cred.SecretHash)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			l.Error("failed to record otp attempt", slog.String("account_id", acct.ID), slog.Any("error", err))
		}
		l.Info("otp rejected", slog.String("account_id", acct.ID), slog.Int("attempts", attempts))
		return domain.Account{}, ErrInvalidCredentials
	}

	err = s.Store.Credentials().ConsumeCredential(ctx, acct.ID, cred.SecretHash, now, s.cfg.MaxAttempts)
	switch {
	case errors.Is(err, store.ErrNotFound):
		l.Info("otp already consumed or superseded", slog.String("account_id", acct.ID))
		return domain.Account{}, ErrInvalidCredentials
	case err != nil:
		l.Error("failed to consume otp credential", slog.String("account_id", acct.ID), slog.Any("error", err))
		return domain.Account{}, fmt.Errorf("consume credential: %w", err)
	}

	if err := s.Limiter.Reset(ctx, acct.ID); err != nil {
		l.Error("failed to reset otp issue limit", slog.String("account_id", acct.ID), slog.Any("error", err))
	}
	l.Info("otp verified", slog.String("account_id", acct.ID))
	return acct, nil
}

func (s *ChallengeService) newCode() (code, hash string, err error) {
	code, err = cryptox.GenerateOTP(s.cfg.Digits)
	if err != nil {
		return "", "", err
	}
	hash, err = s.Hasher.Hash(code)
	if err != nil {
		return "", "", err
	}
	return code, hash, nil
}

// burn spends the same work as a real issuance and throws the result away.
func (s *ChallengeService) burn(ctx context.Context) {
	if _, _, err := s.newCode(); err != nil {
		slogx.FromContext(ctx).Error("failed to generate decoy otp", slog.Any("error", err))
	}
}

// decoyLookup stands in for the credential read of a known account.
func (s *ChallengeService) decoyLookup(ctx context.Context) {
	_, _ = s.Store.Credentials().GetCredential(ctx, decoyAccountID)
}

// reject compares code against a hash nothing can satisfy, then makes the
// attempt write a wrong guess makes, against the decoy slot.
func (s *ChallengeService) reject(ctx context.Context, code string) error {
	_ = s.Hasher.Verify(code, s.unsatisfiable)
	_, _ = s.Store.Credentials().RecordFailedAttempt(ctx, decoyAccountID, s.unsatisfiable)
	return ErrInvalidCredentials
}
