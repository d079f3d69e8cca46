package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pquerna/otp"

	"github.com/aussiebroadwan/adminotp/internal/adminotp/service"
	"github.com/aussiebroadwan/adminotp/pkg/httpx"
	"github.com/aussiebroadwan/adminotp/pkg/jwtx"
)

const (
	CredentialStoreSQLite = "sqlite"
	CredentialStoreRedis  = "redis"
)

type Config struct {
	Issuer         string // Issuer and audience of session tokens (default: adminotp)
	BootstrapToken string // Optional: enables POST /v1/bootstrap when set

	DatabaseFile    string // Path to SQLite database file (default: ./adminotp.db)
	PepperFile      string // Path to file containing pepper for hashing (default: ./pepper)
	SigningKeyFile  string // Optional: PEM Ed25519 key; empty means a new key per start
	CredentialStore string // sqlite or redis (default: sqlite)
	RedisURL        string // Required when CredentialStore is redis
	RedisKeyPrefix  string // Namespace for redis keys (default: adminotp:)

	OTPDigits      otp.Digits    // Code length, 4 to 9 (default: 6)
	OTPTTL         time.Duration // Code lifetime (default: 5m)
	OTPMaxAttempts int           // Wrong guesses tolerated per code (default: 5)
	OTPIssueLimit  int           // Codes issued per account per window (default: 3)
	OTPIssueWindow time.Duration // (default: 10m)
	SessionTTL     time.Duration // Console session lifetime (default: 8h)

	SiteName     string // CurrentApp in page context (default: admin)
	SiteHeader   string // Header text (default: Administration)
	URLPrefix    string // Console mount point (default: /admin)
	CookieSecure bool   // Mark the session cookie Secure (default: true outside dev)

	SMTPHost          string // Empty means codes are kept in an in-memory outbox
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	SMTPFrom          string
	DeliveryWorkers   int
	DeliveryQueueSize int

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

// LoadConfig reads the environment, after loading envFiles (default ".env")
// when they exist. Variables already set win over file entries.
func LoadConfig(envFiles ...string) Config {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}

	// httpx reads its profiles at init, before any .env file was loaded.
	httpx.StrictLimit = httpx.ParseRateLimitFromEnv("STRICT", httpx.StrictLimit)
	httpx.ModerateLimit = httpx.ParseRateLimitFromEnv("MODERATE", httpx.ModerateLimit)
	httpx.LenientLimit = httpx.ParseRateLimitFromEnv("LENIENT", httpx.LenientLimit)
	httpx.PublicLimit = httpx.ParseRateLimitFromEnv("PUBLIC", httpx.PublicLimit)

	env := getEnvOrDefault("ENV", "dev")
	cfg := Config{
		Issuer:         getEnvOrDefault("ADMINOTP_ISSUER", "adminotp"),
		BootstrapToken: os.Getenv("BOOTSTRAP_TOKEN"),

		DatabaseFile:    getEnvOrDefault("ADMINOTP_DATABASE_FILE", "adminotp.db"),
		PepperFile:      getEnvOrDefault("ADMINOTP_PEPPER_FILE", "pepper"),
		SigningKeyFile:  os.Getenv("ADMINOTP_SIGNING_KEY_FILE"),
		CredentialStore: strings.ToLower(getEnvOrDefault("ADMINOTP_CREDENTIAL_STORE", CredentialStoreSQLite)),
		RedisURL:        os.Getenv("ADMINOTP_REDIS_URL"),
		RedisKeyPrefix:  getEnvOrDefault("ADMINOTP_REDIS_KEY_PREFIX", "adminotp:"),

		OTPDigits:      otp.Digits(getEnvIntOrDefault("ADMINOTP_OTP_DIGITS", int(service.DefaultOTPDigits))),
		OTPTTL:         getEnvDurationOrDefault("ADMINOTP_OTP_TTL", service.DefaultOTPTTL),
		OTPMaxAttempts: getEnvIntOrDefault("ADMINOTP_OTP_MAX_ATTEMPTS", service.DefaultOTPMaxAttempts),
		OTPIssueLimit:  getEnvIntOrDefault("ADMINOTP_OTP_ISSUE_LIMIT", service.DefaultIssueLimit),
		OTPIssueWindow: getEnvDurationOrDefault("ADMINOTP_OTP_ISSUE_WINDOW", service.DefaultIssueWindow),
		SessionTTL:     getEnvDurationOrDefault("ADMINOTP_SESSION_TTL", jwtx.DefaultSessionTTL),

		SiteName:     os.Getenv("ADMINOTP_SITE_NAME"),
		SiteHeader:   os.Getenv("ADMINOTP_SITE_HEADER"),
		URLPrefix:    getEnvOrDefault("ADMINOTP_URL_PREFIX", "/admin"),
		CookieSecure: getEnvBoolOrDefault("ADMINOTP_COOKIE_SECURE", env != "dev"),

		SMTPHost:          os.Getenv("SMTP_HOST"),
		SMTPPort:          getEnvIntOrDefault("SMTP_PORT", 587),
		SMTPUsername:      os.Getenv("SMTP_USERNAME"),
		SMTPPassword:      os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:          getEnvOrDefault("SMTP_FROM", "no-reply@localhost"),
		DeliveryWorkers:   getEnvIntOrDefault("DELIVERY_WORKERS", 2),
		DeliveryQueueSize: getEnvIntOrDefault("DELIVERY_QUEUE_SIZE", 64),

		Env:                  env,
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	return cfg
}

// Validate reports settings the service cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.OTPDigits < 4 || c.OTPDigits > 9 {
		errs = append(errs, fmt.Errorf("ADMINOTP_OTP_DIGITS must be between 4 and 9, got %d", c.OTPDigits))
	}
	if c.OTPTTL <= 0 {
		errs = append(errs, errors.New("ADMINOTP_OTP_TTL must be positive"))
	}
	if c.OTPMaxAttempts < 1 {
		errs = append(errs, errors.New("ADMINOTP_OTP_MAX_ATTEMPTS must be at least 1"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("ADMINOTP_SESSION_TTL must be positive"))
	}
	switch c.CredentialStore {
	case CredentialStoreSQLite:
	case CredentialStoreRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("ADMINOTP_REDIS_URL is required for the redis credential store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ADMINOTP_CREDENTIAL_STORE %q", c.CredentialStore))
	}
	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
