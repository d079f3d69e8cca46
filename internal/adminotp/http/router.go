package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/adminotp/internal/adminotp/service"
	"github.com/aussiebroadwan/adminotp/internal/adminotp/store"
	"github.com/aussiebroadwan/adminotp/pkg/httpx"
	"github.com/aussiebroadwan/adminotp/pkg/jwtx"
	"github.com/aussiebroadwan/adminotp/pkg/slogx"

	_ "github.com/aussiebroadwan/adminotp/api/adminotp" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// ConsoleRoute is an extra console page mounted under the site prefix.
type ConsoleRoute struct {
	// Method and Path form the mux pattern, Path relative to the prefix
	// (e.g. "GET", "/reports/{$}").
	Method  string
	Path    string
	Handler http.Handler

	// Public routes skip the session check.
	Public bool
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	site         Site
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store            store.Store
	ChallengeService *service.ChallengeService
	SessionService   *service.SessionService
	PasswordService  *service.PasswordService
	AccountService   *service.AccountService
	BootstrapService *service.BootstrapService
	DeliveryWorker   *service.DeliveryWorker

	// ConsoleRoutes are registered ahead of the built-in console pages and
	// replace any built-in page with the same method and path.
	ConsoleRoutes []ConsoleRoute
}

func NewRouter(
	keys *jwtx.KeySet,
	site Site,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		site:         site.WithDefaults(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

// Site returns the console settings after defaults were applied.
func (r *Router) Site() Site { return r.site }

func (r *Router) ApplyRoutes() error {
	if err := r.registerConsole(); err != nil {
		return err
	}
	r.registerChallenge()
	r.registerAccount()
	r.registerSystem()
	r.registerBootstrap()

	r.Mux.Handle("GET /swagger/", httpx.Chain(httpSwagger.Handler(),
		httpx.RateLimitByIP(httpx.PublicLimit),
	))
	return nil
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Admin OTP Sign-in API
//	@version		0.1.0
//	@description	Email one-time-passcode sign-in for the admin console.
//	@description
//	@description				Session tokens are EdDSA-signed JWTs and can be verified using the JWKS endpoint.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/adminotp
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Session token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerConsole() error {
	h, err := NewConsoleHandler(r.site, r.ChallengeService, r.SessionService, r.PasswordService)
	if err != nil {
		return err
	}
	p := r.site.Prefix

	session := httpx.AuthnMiddleware(r.SessionService, httpx.AuthnOptions{
		CookieName: SessionCookieName,
		OnFailure:  http.HandlerFunc(h.RedirectToLogin),
	})
	secured := func(next http.Handler) http.Handler {
		return httpx.Chain(next,
			session,
			httpx.RequireAnyScope(service.ScopeAdmin),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		)
	}

	// A custom route replaces the built-in page with the same pattern.
	custom := make(map[string]bool, len(r.ConsoleRoutes))
	for _, cr := range r.ConsoleRoutes {
		pattern := strings.TrimSpace(cr.Method + " " + p + "/" + strings.TrimPrefix(cr.Path, "/"))
		if custom[pattern] {
			return fmt.Errorf("console route %q registered twice", pattern)
		}
		custom[pattern] = true

		handler := cr.Handler
		if !cr.Public {
			handler = secured(handler)
		}
		if err := handle(r.Mux, pattern, handler); err != nil {
			return err
		}
	}

	builtin := []struct {
		pattern string
		handler http.Handler
	}{
		// Sign-in pages
		{"GET " + p + "/login", httpx.Chain(http.HandlerFunc(h.HandleLoginGet),
			httpx.RateLimitByIP(httpx.LenientLimit),
		)},
		{"POST " + p + "/login", httpx.Chain(http.HandlerFunc(h.HandleLoginPost),
			httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "email"),
		)},
		{"GET " + p + "/check-otp/{$}", httpx.Chain(http.HandlerFunc(h.HandleCheckOTPGet),
			httpx.RateLimitByIP(httpx.LenientLimit),
		)},
		{"POST " + p + "/check-otp/{$}", httpx.Chain(http.HandlerFunc(h.HandleCheckOTPPost),
			httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "email"),
		)},

		// Signed-in pages
		{"GET " + p + "/{$}", secured(http.HandlerFunc(h.HandleIndex))},
		{"GET " + p + "/password/{$}", secured(http.HandlerFunc(h.HandlePasswordGet))},
		{"POST " + p + "/password/{$}", secured(http.HandlerFunc(h.HandlePasswordPost))},
		{"POST " + p + "/logout/{$}", httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		)},

		{"GET " + p, http.RedirectHandler(p+"/", http.StatusMovedPermanently)},
	}
	for _, b := range builtin {
		if custom[b.pattern] {
			continue
		}
		if err := handle(r.Mux, b.pattern, b.handler); err != nil {
			return err
		}
	}
	return nil
}

// handle registers pattern on mux, reporting the conflicts ServeMux panics on
// as an error.
func handle(mux *http.ServeMux, pattern string, h http.Handler) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("console route %q: %v", pattern, v)
		}
	}()
	mux.Handle(pattern, h)
	return nil
}

func (r *Router) registerChallenge() {
	h := &ChallengeHandler{Challenges: r.ChallengeService, Sessions: r.SessionService}

	// POST /otp/request - strict rate limit (each call may send an email)
	r.Mux.Handle("POST /v1/otp/request",
		httpx.Chain(http.HandlerFunc(h.HandleRequest),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /otp/verify - strict rate limit (guessing codes)
	r.Mux.Handle("POST /v1/otp/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerify),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerAccount() {
	h := &AccountHandler{Accounts: r.AccountService, Passwords: r.PasswordService}

	secured := func(next http.HandlerFunc) http.Handler {
		return httpx.Chain(next,
			httpx.AuthnMiddleware(r.SessionService, httpx.AuthnOptions{}),
			httpx.RequireAnyScope(service.ScopeAdmin),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		)
	}

	r.Mux.Handle("GET /v1/me", secured(h.HandleMe))
	r.Mux.Handle("POST /v1/me/password", secured(h.HandleChangePassword))
}

func (r *Router) registerBootstrap() {
	// POST /bootstrap - very strict rate limit by IP (one-time setup endpoint)
	bootstrapHandler := &BootstrapHandler{BootstrapService: r.BootstrapService}
	r.Mux.Handle("POST /v1/bootstrap",
		httpx.Chain(bootstrapHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerSystem() {
	var deliveryReady func() error
	if r.DeliveryWorker != nil {
		deliveryReady = r.DeliveryWorker.Ready
	}

	// Health check endpoints - monitoring systems may poll frequently
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys, deliveryReady),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}
