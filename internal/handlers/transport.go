package handlers

import (
	"net/http"
	"time"

	"github.com/devsketch/apiserver/internal/session"
)

// cookieTransport adapts an HTTP exchange to session.Transport.
type cookieTransport struct {
	w      http.ResponseWriter
	r      *http.Request
	policy session.CookiePolicy
}

func newCookieTransport(w http.ResponseWriter, r *http.Request, policy session.CookiePolicy) *cookieTransport {
	return &cookieTransport{w: w, r: r, policy: policy}
}

func (t *cookieTransport) Cookie(name string) string {
	c, err := t.r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func (t *cookieTransport) AuthorizationHeader() string {
	return t.r.Header.Get("Authorization")
}

func (t *cookieTransport) SetCookie(name, value string, opts session.CookieOptions) {
	maxAge := int(opts.MaxAge / time.Second)
	if opts.MaxAge < 0 {
		maxAge = -1
	}
	http.SetCookie(t.w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     opts.Path,
		MaxAge:   maxAge,
		HttpOnly: opts.HTTPOnly,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	})
}

func (t *cookieTransport) ClearCookie(name string) {
	t.SetCookie(name, "", t.policy.Cleared())
}
