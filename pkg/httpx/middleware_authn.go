package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/adminotp/pkg/jwtx"
	"github.com/aussiebroadwan/adminotp/pkg/slogx"
)

// AuthnOptions tune where the session token is read from and what happens
// when it is missing or invalid.
type AuthnOptions struct {
	// CookieName, when set, is consulted if no bearer token is present.
	CookieName string

	// OnFailure replaces the default RFC 6750 401 response. The HTML console
	// uses it to redirect to the login form.
	OnFailure http.Handler
}

// AuthnMiddleware verifies a session token and injects its claims.
func AuthnMiddleware(v jwtx.Verifier, opts AuthnOptions) Middleware {
	fail := func(w http.ResponseWriter, r *http.Request, desc string) {
		if opts.OnFailure != nil {
			opts.OnFailure.ServeHTTP(w, r)
			return
		}
		writeBearerError(w, desc)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw := tokenFromRequest(r, opts.CookieName)
			if raw == "" {
				fail(w, r, "missing session token")
				return
			}

			claims, err := v.Verify(raw)
			if err != nil {
				log.Warn("session verify failed", "err", err)
				fail(w, r, "token verification failed")
				return
			}

			next.ServeHTTP(w, r.WithContext(contextWithAuth(ctx, claims)))
		})
	}
}

func tokenFromRequest(r *http.Request, cookieName string) string {
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}
	if cookieName == "" {
		return ""
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return c.Value
	}
	return ""
}

func contextWithAuth(ctx context.Context, c jwtx.Claims) context.Context {
	ctx = context.WithValue(ctx, CtxKeyAccountID, c.Subject)
	ctx = context.WithValue(ctx, CtxKeyScopes, c.Scopes)
	ctx = context.WithValue(ctx, CtxKeyClaims, c)
	return slogx.With(ctx, "account_id", c.Subject)
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	w.WriteHeader(http.StatusUnauthorized)
}
