package session

import (
	"net/http"
	"time"
)

const (
	AccessCookieName  = "accessToken"
	RefreshCookieName = "refreshToken"
)

// CookieOptions are the attributes written with a session cookie.
type CookieOptions struct {
	MaxAge   time.Duration
	HTTPOnly bool
	Secure   bool
	SameSite http.SameSite
	Path     string
}

// Transport gives the session manager access to the credentials of one
// inbound operation and lets it hand new ones back.
type Transport interface {
	// Cookie returns the named cookie value, or "" when absent.
	Cookie(name string) string
	// AuthorizationHeader returns the raw Authorization header, or "".
	AuthorizationHeader() string
	SetCookie(name, value string, opts CookieOptions)
	ClearCookie(name string)
}

// CookiePolicy produces the fixed cookie attributes for session cookies.
type CookiePolicy struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Secure     bool
}

func (p CookiePolicy) base() CookieOptions {
	return CookieOptions{
		HTTPOnly: true,
		Secure:   p.Secure,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
	}
}

// Access returns the options of the access token cookie.
func (p CookiePolicy) Access() CookieOptions {
	opts := p.base()
	opts.MaxAge = p.AccessTTL
	return opts
}

// Refresh returns the options of the refresh token cookie.
func (p CookiePolicy) Refresh() CookieOptions {
	opts := p.base()
	opts.MaxAge = p.RefreshTTL
	return opts
}

// Cleared returns the options used to delete a session cookie.
func (p CookiePolicy) Cleared() CookieOptions {
	opts := p.base()
	opts.MaxAge = -1
	return opts
}

// WriteTokens stores both tokens of a pair as cookies.
func (p CookiePolicy) WriteTokens(t Transport, access, refresh string) {
	t.SetCookie(AccessCookieName, access, p.Access())
	t.SetCookie(RefreshCookieName, refresh, p.Refresh())
}

// ClearTokens removes both session cookies.
func ClearTokens(t Transport) {
	t.ClearCookie(AccessCookieName)
	t.ClearCookie(RefreshCookieName)
}
