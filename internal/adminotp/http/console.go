package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/adminotp/internal/adminotp/domain"
	"github.com/aussiebroadwan/adminotp/internal/adminotp/service"
	"github.com/aussiebroadwan/adminotp/pkg/httpx"
	"github.com/aussiebroadwan/adminotp/pkg/slogx"
	"github.com/aussiebroadwan/adminotp/pkg/validatex"
)

// nonFieldErrors is the key for form-wide messages.
const nonFieldErrors = "__all__"

type emailForm struct {
	Email string
}

// ConsoleHandler serves the HTML sign-in flow and the signed-in pages.
type ConsoleHandler struct {
	Site       Site
	Challenges *service.ChallengeService
	Sessions   *service.SessionService
	Passwords  *service.PasswordService

	views views
}

func NewConsoleHandler(site Site, challenges *service.ChallengeService, sessions *service.SessionService, passwords *service.PasswordService) (*ConsoleHandler, error) {
	v, err := parseViews()
	if err != nil {
		return nil, err
	}
	return &ConsoleHandler{
		Site:       site.WithDefaults(),
		Challenges: challenges,
		Sessions:   sessions,
		Passwords:  passwords,
		views:      v,
	}, nil
}

func (h *ConsoleHandler) home() string { return h.Site.Prefix + "/" }

// HandleLoginGet renders the request-challenge form.
func (h *ConsoleHandler) HandleLoginGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.views.render(w, r, http.StatusOK, "login.html", h.Site.Context(map[string]any{
		"Form": emailForm{Email: q.Get("email")},
		"Next": q.Get("next"),
	}))
}

// HandleLoginPost issues a challenge and moves on to the code form. The
// redirect happens whether or not the address has an account.
func (h *ConsoleHandler) HandleLoginPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderLogin(w, r, http.StatusBadRequest, "", "", map[string]string{nonFieldErrors: "Invalid form submission."})
		return
	}
	email := domain.NormalizeEmail(r.PostForm.Get("email"))
	next := r.PostForm.Get("next")

	err := h.Challenges.RequestChallenge(r.Context(), email)
	var verr *validatex.Error
	switch {
	case errors.As(err, &verr):
		h.renderLogin(w, r, http.StatusBadRequest, email, next, verr.Fields)
		return
	case err != nil:
		slogx.FromContext(r.Context()).Error("challenge request failed", "error", err)
		h.renderLogin(w, r, http.StatusInternalServerError, email, next,
			map[string]string{nonFieldErrors: "Something went wrong. Please try again."})
		return
	}

	target := url.Values{"email": {email}}
	if next != "" {
		target.Set("next", next)
	}
	http.Redirect(w, r, h.Site.Prefix+"/check-otp/?"+target.Encode(), http.StatusSeeOther)
}

func (h *ConsoleHandler) renderLogin(w http.ResponseWriter, r *http.Request, status int, email, next string, errs map[string]string) {
	h.views.render(w, r, status, "login.html", h.Site.Context(map[string]any{
		"Form":   emailForm{Email: email},
		"Next":   next,
		"Errors": errs,
	}))
}

// HandleCheckOTPGet renders the submit-challenge form.
func (h *ConsoleHandler) HandleCheckOTPGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.renderCheckOTP(w, r, http.StatusOK, q.Get("email"), q.Get("next"), nil)
}

// HandleCheckOTPPost verifies the code and starts a console session.
func (h *ConsoleHandler) HandleCheckOTPPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderCheckOTP(w, r, http.StatusBadRequest, "", "", map[string]string{nonFieldErrors: "Invalid form submission."})
		return
	}
	email := domain.NormalizeEmail(r.PostForm.Get("email"))
	code := strings.TrimSpace(r.PostForm.Get("otp"))
	next := r.PostForm.Get("next")

	acct, err := h.Challenges.VerifyChallenge(r.Context(), email, code)
	var verr *validatex.Error
	switch {
	case errors.As(err, &verr):
		h.renderCheckOTP(w, r, http.StatusBadRequest, email, next, verr.Fields)
		return
	case errors.Is(err, service.ErrInvalidCredentials):
		h.renderCheckOTP(w, r, http.StatusUnauthorized, email, next,
			map[string]string{nonFieldErrors: service.ErrInvalidCredentials.Error()})
		return
	case err != nil:
		slogx.FromContext(r.Context()).Error("challenge verify failed", "error", err)
		h.renderCheckOTP(w, r, http.StatusInternalServerError, email, next,
			map[string]string{nonFieldErrors: "Something went wrong. Please try again."})
		return
	}

	sess, err := h.Sessions.Issue(acct)
	if err != nil {
		slogx.FromContext(r.Context()).Error("failed to issue session", "error", err)
		h.renderCheckOTP(w, r, http.StatusInternalServerError, email, next,
			map[string]string{nonFieldErrors: "Something went wrong. Please try again."})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sess.Token,
		Path:     h.Site.Prefix,
		Expires:  sess.ExpiresAt,
		MaxAge:   int(sess.TTL / time.Second),
		HttpOnly: true,
		Secure:   h.Site.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, safeNext(next, h.home()), http.StatusSeeOther)
}

func (h *ConsoleHandler) renderCheckOTP(w http.ResponseWriter, r *http.Request, status int, email, next string, errs map[string]string) {
	h.views.render(w, r, status, "check_otp.html", h.Site.Context(map[string]any{
		"Form":   emailForm{Email: email},
		"Next":   next,
		"Errors": errs,
	}))
}

// HandleIndex is the signed-in landing page.
func (h *ConsoleHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	h.views.render(w, r, http.StatusOK, "index.html", h.Site.Context(h.accountContext(r, nil)))
}

// HandlePasswordGet renders the password-pair form.
func (h *ConsoleHandler) HandlePasswordGet(w http.ResponseWriter, r *http.Request) {
	h.views.render(w, r, http.StatusOK, "password.html", h.Site.Context(h.accountContext(r, nil)))
}

// HandlePasswordPost changes the password when both fields are filled in
// and equal. Both empty saves nothing.
func (h *ConsoleHandler) HandlePasswordPost(w http.ResponseWriter, r *http.Request) {
	accountID, _ := httpx.AccountIDFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		h.views.render(w, r, http.StatusBadRequest, "password.html", h.Site.Context(h.accountContext(r, map[string]any{
			"Errors": map[string]string{nonFieldErrors: "Invalid form submission."},
		})))
		return
	}

	pair := domain.PasswordPair{
		Password1: r.PostForm.Get("password_1"),
		Password2: r.PostForm.Get("password_2"),
	}
	changed, err := h.Passwords.ChangePassword(r.Context(), accountID, pair)
	switch {
	case errors.Is(err, service.ErrProvideBoth), errors.Is(err, service.ErrPasswordMismatch):
		h.views.render(w, r, http.StatusBadRequest, "password.html", h.Site.Context(h.accountContext(r, map[string]any{
			"Errors": map[string]string{nonFieldErrors: err.Error()},
		})))
		return
	case err != nil:
		slogx.FromContext(r.Context()).Error("password change failed", "error", err)
		h.views.render(w, r, http.StatusInternalServerError, "password.html", h.Site.Context(h.accountContext(r, map[string]any{
			"Errors": map[string]string{nonFieldErrors: "Something went wrong. Please try again."},
		})))
		return
	}

	msg := "No changes were made."
	if changed {
		msg = "Your password was changed."
	}
	h.views.render(w, r, http.StatusOK, "password.html", h.Site.Context(h.accountContext(r, map[string]any{
		"Messages": []string{msg},
	})))
}

// HandleLogout drops the session cookie.
func (h *ConsoleHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     h.Site.Prefix,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.Site.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.Site.Prefix+"/login", http.StatusSeeOther)
}

// RedirectToLogin is the authn failure handler for console pages.
func (h *ConsoleHandler) RedirectToLogin(w http.ResponseWriter, r *http.Request) {
	target := url.Values{}
	if r.Method == http.MethodGet {
		target.Set("next", r.URL.RequestURI())
	}
	loc := h.Site.Prefix + "/login"
	if len(target) > 0 {
		loc += "?" + target.Encode()
	}
	http.Redirect(w, r, loc, http.StatusSeeOther)
}

type accountView struct {
	ID    string
	Email string
}

func (h *ConsoleHandler) accountContext(r *http.Request, extra map[string]any) map[string]any {
	out := map[string]any{}
	if claims, ok := httpx.ClaimsFromContext(r.Context()); ok {
		out["Account"] = accountView{ID: claims.Subject, Email: claims.Email}
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
