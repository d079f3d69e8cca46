package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	httpapi "github.com/aussiebroadwan/adminotp/internal/adminotp/http"
	"github.com/aussiebroadwan/adminotp/internal/adminotp/service"
	"github.com/aussiebroadwan/adminotp/internal/adminotp/store"
	"github.com/aussiebroadwan/adminotp/internal/adminotp/store/drivers/redis"
	"github.com/aussiebroadwan/adminotp/internal/adminotp/store/drivers/sqlite"
	"github.com/aussiebroadwan/adminotp/pkg/cryptox"
	"github.com/aussiebroadwan/adminotp/pkg/idx"
	"github.com/aussiebroadwan/adminotp/pkg/jwtx"
	"github.com/aussiebroadwan/adminotp/pkg/mailx"
	"github.com/aussiebroadwan/adminotp/pkg/ratex"
	"github.com/aussiebroadwan/adminotp/pkg/slogx"
)

// BuildVersion is overridden at build time via -ldflags "-X ...BuildVersion=".
var BuildVersion = "v0.1.0"

// Application encapsulates the service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	sqlite   *sqlite.Store
	redis    *goredis.Client
	keys     *jwtx.KeySet
	signer   jwtx.Signer
	verifier jwtx.Verifier
	sender   mailx.Sender

	// issueLimiter is nil unless codes live in redis.
	issueLimiter service.IssueLimiter

	// Services
	challengeService    *service.ChallengeService
	sessionService      *service.SessionService
	passwordService     *service.PasswordService
	accountService      *service.AccountService
	bootstrapService    *service.BootstrapService
	deliveryWorker      *service.DeliveryWorker
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "adminotp",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set pepper path for password and code hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initCredentialStore(); err != nil {
		_ = app.closeStores()
		return nil, err
	}
	if err := app.initKeys(); err != nil {
		_ = app.closeStores()
		return nil, err
	}
	if err := app.initDelivery(); err != nil {
		_ = app.closeStores()
		return nil, err
	}
	if err := app.initServices(); err != nil {
		_ = app.closeStores()
		return nil, err
	}
	if err := app.initHTTP(); err != nil {
		_ = app.closeStores()
		return nil, err
	}

	return app, nil
}

// Handler exposes the router, mostly for tests.
func (app *Application) Handler() http.Handler { return app.router }

// Outbox returns the in-memory mailbox when no SMTP host is configured.
func (app *Application) Outbox() (*mailx.Outbox, bool) {
	o, ok := app.sender.(*mailx.Outbox)
	return o, ok
}

// Start launches the background workers without serving HTTP.
func (app *Application) Start() {
	app.deliveryWorker.Start()
	app.housekeepingService.Start()
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	ln, err := net.Listen("tcp", app.server.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return app.Serve(ln)
}

// Serve is Run on an existing listener.
func (app *Application) Serve(ln net.Listener) error {
	app.Start()

	app.logger.Info("adminotp starting",
		"addr", ln.Addr().String(),
		"version", BuildVersion,
		"console", app.router.Site().Prefix,
		"credential_store", app.cfg.CredentialStore,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.Serve(ln)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down adminotp...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()
	// Flush codes that were accepted before the server stopped.
	app.deliveryWorker.Stop()

	if err := app.closeStores(); err != nil {
		return err
	}

	app.logger.Info("adminotp stopped")
	return nil
}

func (app *Application) closeStores() error {
	var errs []error
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
			errs = append(errs, err)
		}
	}
	if app.sqlite != nil {
		if err := app.sqlite.Close(); err != nil {
			app.logger.Error("error closing database", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// initDatabase opens SQLite and applies migrations
func (app *Application) initDatabase() error {
	dsn := app.cfg.DatabaseFile
	if dsn != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
	}
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.sqlite = db
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		app.sqlite, app.db = nil, nil
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initCredentialStore moves the code slot to redis when configured.
func (app *Application) initCredentialStore() error {
	if app.cfg.CredentialStore != CredentialStoreRedis {
		return nil
	}

	client, err := redis.NewClientFromURL(app.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to initialize redis: %w", err)
	}
	app.redis = client

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to reach redis: %w", err)
	}

	prefix := app.cfg.RedisKeyPrefix
	app.db = store.WithCredentials(app.sqlite, redis.NewCredentials(client).WithKeyPrefix(prefix+"otp:"))
	app.issueLimiter = redis.NewIssueLimiter(client, app.cfg.OTPIssueLimit, app.cfg.OTPIssueWindow).
		WithKeyPrefix(prefix + "issue:")
	app.logger.Info("credential store: redis", slog.String("key_prefix", prefix))
	return nil
}

func (app *Application) initKeys() error {
	pemKey, err := cryptox.LoadOrGenerateEd25519Key(app.cfg.SigningKeyFile)
	if err != nil {
		return fmt.Errorf("failed to load signing key: %w", err)
	}

	kid, err := keyID(pemKey, app.cfg.SigningKeyFile != "")
	if err != nil {
		return fmt.Errorf("failed to initialize signer: %w", err)
	}
	signer, err := jwtx.NewSignerEdDSA(kid, pemKey)
	if err != nil {
		return fmt.Errorf("failed to initialize signer: %w", err)
	}

	keys := jwtx.NewKeySet()
	if err := keys.AddSigner(signer); err != nil {
		return fmt.Errorf("failed to publish signing key: %w", err)
	}

	app.keys = keys
	app.signer = signer
	app.verifier = jwtx.NewCommonEdDSA(keys, app.cfg.Issuer, []string{app.cfg.Issuer})

	if app.cfg.SigningKeyFile == "" {
		app.logger.Warn("no signing key file configured; console sessions end when the service restarts")
	}
	return nil
}

// keyID names a key after its public half so a key loaded from disk keeps
// its kid across restarts. Throwaway keys get a fresh ULID.
func keyID(pemKey []byte, persistent bool) (string, error) {
	if !persistent {
		return idx.New().String(), nil
	}
	tmp, err := jwtx.NewSignerEdDSA("", pemKey)
	if err != nil {
		return "", err
	}
	return cryptox.FingerprintToken(tmp.PublicJWK().X)[:16], nil
}

func (app *Application) initDelivery() error {
	if app.cfg.SMTPHost == "" {
		app.sender = mailx.NewOutbox()
		app.logger.Warn("SMTP_HOST not set; sign-in codes are kept in memory and never delivered")
		return nil
	}

	sender, err := mailx.NewSMTP(mailx.SMTPConfig{
		Host:     app.cfg.SMTPHost,
		Port:     app.cfg.SMTPPort,
		Username: app.cfg.SMTPUsername,
		Password: app.cfg.SMTPPassword,
		From:     app.cfg.SMTPFrom,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize smtp: %w", err)
	}
	app.sender = sender
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() error {
	site := app.site()

	app.deliveryWorker = service.NewDeliveryWorker(app.sender, app.logger, service.DeliveryConfig{
		From:      app.cfg.SMTPFrom,
		SiteName:  site.Header,
		Workers:   app.cfg.DeliveryWorkers,
		QueueSize: app.cfg.DeliveryQueueSize,
		CodeTTL:   app.cfg.OTPTTL,
	})

	challenges, err := service.NewChallengeService(app.db, app.deliveryWorker, service.ChallengeConfig{
		Digits:      app.cfg.OTPDigits,
		TTL:         app.cfg.OTPTTL,
		MaxAttempts: app.cfg.OTPMaxAttempts,
		IssueLimit: ratex.Config{
			Events: app.cfg.OTPIssueLimit,
			Window: app.cfg.OTPIssueWindow,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize challenge service: %w", err)
	}
	if app.issueLimiter != nil {
		challenges.Limiter = app.issueLimiter
	}
	app.challengeService = challenges

	app.sessionService = service.NewSessionService(app.signer, app.verifier, app.cfg.Issuer, app.cfg.SessionTTL)
	app.passwordService = service.NewPasswordService(app.db)
	app.accountService = &service.AccountService{Store: app.db}
	app.bootstrapService = &service.BootstrapService{
		Store: app.db,
		Token: app.cfg.BootstrapToken,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
	return nil
}

func (app *Application) site() httpapi.Site {
	return httpapi.Site{
		Name:         app.cfg.SiteName,
		Header:       app.cfg.SiteHeader,
		Prefix:       app.cfg.URLPrefix,
		CookieSecure: app.cfg.CookieSecure,
	}.WithDefaults()
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() error {
	router := httpapi.NewRouter(
		app.keys,
		app.site(),
		BuildVersion,
		app.db,
		app.logger,
	)

	router.ChallengeService = app.challengeService
	router.SessionService = app.sessionService
	router.PasswordService = app.passwordService
	router.AccountService = app.accountService
	router.BootstrapService = app.bootstrapService
	router.DeliveryWorker = app.deliveryWorker
	if err := router.ApplyRoutes(); err != nil {
		return fmt.Errorf("failed to register routes: %w", err)
	}

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return nil
}
