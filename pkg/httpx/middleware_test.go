package httpx_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/adminotp/pkg/cryptox"
	"github.com/aussiebroadwan/adminotp/pkg/httpx"
	"github.com/aussiebroadwan/adminotp/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestChain_Order(t *testing.T) {
	var trace []string
	mark := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				trace = append(trace, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trace = append(trace, "handler")
	}), mark("outer"), mark("inner"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"outer", "inner", "handler"}, trace)
}

func newSession(t *testing.T, scopes ...string) (jwtx.Verifier, string) {
	t.Helper()
	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	signer, err := jwtx.NewSignerEdDSA("k1", pemKey)
	require.NoError(t, err)

	keys := jwtx.NewKeySet()
	require.NoError(t, keys.AddSigner(signer))

	token, err := signer.Sign(jwtx.NewSessionClaims("acct-1", "ops@example.com",
		scopes, []string{"otp"}, time.Hour, "adminotp", nil, time.Now().UTC()))
	require.NoError(t, err)

	return jwtx.NewCommonEdDSA(keys, "adminotp", nil), token
}

func TestAuthnMiddleware(t *testing.T) {
	verifier, token := newSession(t, "admin")

	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := httpx.AccountIDFromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(id))
	})

	t.Run("bearer header", func(t *testing.T) {
		h := httpx.AuthnMiddleware(verifier, httpx.AuthnOptions{})(echo)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "acct-1", rec.Body.String())
	})

	t.Run("session cookie", func(t *testing.T) {
		h := httpx.AuthnMiddleware(verifier, httpx.AuthnOptions{CookieName: "console_session"})(echo)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "console_session", Value: token})
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		h := httpx.AuthnMiddleware(verifier, httpx.AuthnOptions{})(echo)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.True(t, strings.HasPrefix(rec.Header().Get("WWW-Authenticate"), "Bearer "))
	})

	t.Run("custom failure handler", func(t *testing.T) {
		h := httpx.AuthnMiddleware(verifier, httpx.AuthnOptions{
			CookieName: "console_session",
			OnFailure:  http.RedirectHandler("/admin/login", http.StatusSeeOther),
		})(echo)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "console_session", Value: "tampered"})
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusSeeOther, rec.Code)
		require.Equal(t, "/admin/login", rec.Header().Get("Location"))
	})
}

func TestRequireAnyScope(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	t.Run("granted", func(t *testing.T) {
		verifier, token := newSession(t, "admin")
		h := httpx.Chain(ok, httpx.AuthnMiddleware(verifier, httpx.AuthnOptions{}), httpx.RequireAnyScope("admin"))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("denied", func(t *testing.T) {
		verifier, token := newSession(t, "viewer")
		h := httpx.Chain(ok, httpx.AuthnMiddleware(verifier, httpx.AuthnOptions{}), httpx.RequireAnyScope("admin"))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Contains(t, rec.Header().Get("WWW-Authenticate"), `scope="admin"`)
	})
}

func TestDecodeJSON(t *testing.T) {
	var body struct {
		Email string `json:"email"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.c"}`))
	require.NoError(t, httpx.DecodeJSON(req, &body))
	require.Equal(t, "a@b.c", body.Email)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.c","extra":1}`))
	require.Error(t, httpx.DecodeJSON(req, &body))
}
