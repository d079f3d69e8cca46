package http

import (
	"embed"
	"fmt"
	"html/template"
	"maps"
	"net/http"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/adminotp/pkg/slogx"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	DefaultURLPrefix  = "/admin"
	SessionCookieName = "adminotp_session"
)

// Site describes the console the challenge views belong to.
type Site struct {
	Name   string // CurrentApp
	Header string // SiteHeader
	Title  string // SiteTitle

	// Prefix is where the console is mounted, e.g. "/admin".
	Prefix string

	CookieSecure bool
}

// WithDefaults fills in the stock names and normalises Prefix.
func (s Site) WithDefaults() Site {
	if s.Name == "" {
		s.Name = "admin"
	}
	if s.Header == "" {
		s.Header = "Administration"
	}
	if s.Title == "" {
		s.Title = "Site administration"
	}
	s.Prefix = "/" + strings.Trim(s.Prefix, "/")
	if s.Prefix == "/" {
		s.Prefix = DefaultURLPrefix
	}
	return s
}

// Context returns the site context merged with extra. Keys in extra win.
func (s Site) Context(extra map[string]any) map[string]any {
	ctx := map[string]any{
		"SiteHeader": s.Header,
		"SiteTitle":  s.Title,
		"CurrentApp": s.Name,
		"Prefix":     s.Prefix,
	}
	maps.Copy(ctx, extra)
	return ctx
}

// views holds one parsed template set per page.
type views map[string]*template.Template

func parseViews() (views, error) {
	out := views{}
	for _, page := range []string{"login.html", "check_otp.html", "index.html", "password.html"} {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", page, err)
		}
		out[page] = t
	}
	return out, nil
}

func (v views) render(w http.ResponseWriter, r *http.Request, status int, page string, data map[string]any) {
	t, ok := v[page]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}

	var b strings.Builder
	if err := t.ExecuteTemplate(&b, "layout", data); err != nil {
		slogx.FromContext(r.Context()).Error("failed to render view", "page", page, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Frame-Options", "DENY")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(b.String()))
}

// safeNext returns next when it is a same-site absolute path, else fallback.
func safeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, `/\`) {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return next
}
