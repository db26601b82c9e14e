package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/devsketch/apiserver/internal/apperr"
	"github.com/devsketch/apiserver/types"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type setCookie struct {
	value string
	opts  CookieOptions
}

type fakeTransport struct {
	mu      sync.Mutex
	cookies map[string]string
	auth    string
	set     map[string]setCookie
	cleared []string
}

func newTransport(cookies map[string]string, auth string) *fakeTransport {
	if cookies == nil {
		cookies = map[string]string{}
	}
	return &fakeTransport{cookies: cookies, auth: auth, set: map[string]setCookie{}}
}

func (f *fakeTransport) Cookie(name string) string  { return f.cookies[name] }
func (f *fakeTransport) AuthorizationHeader() string { return f.auth }

func (f *fakeTransport) SetCookie(name, value string, opts CookieOptions) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.set[name] = setCookie{value: value, opts: opts}
}

func (f *fakeTransport) ClearCookie(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, name)
}

type fakeVerifier map[string]error

var validClaims = map[string]types.AccessClaims{
	"good":      {UserID: 1, Email: "ada@example.com"},
	"refreshed": {UserID: 1, Email: "ada@example.com"},
}

func (v fakeVerifier) VerifyAccess(token string) (types.AccessClaims, error) {
	if err, ok := v[token]; ok {
		return types.AccessClaims{}, err
	}
	if claims, ok := validClaims[token]; ok {
		return claims, nil
	}
	return types.AccessClaims{}, errors.New("unknown token")
}

type fakeRefresher struct {
	calls atomic.Int32
	pair  types.TokenPair
	err   error
}

func (r *fakeRefresher) RefreshOnce(context.Context, string) (types.TokenPair, error) {
	r.calls.Add(1)
	return r.pair, r.err
}

type fakeRoles struct {
	err error
}

func (r fakeRoles) ResolveRoles(context.Context, int64) (types.RoleSet, error) {
	if r.err != nil {
		return types.RoleSet{}, r.err
	}
	return types.NewRoleSet([]types.Role{{Name: types.RoleAdmin}}), nil
}

var testPolicy = CookiePolicy{AccessTTL: 15 * time.Minute, RefreshTTL: 15 * 24 * time.Hour}

func newTestManager(verifier fakeVerifier, refresher *fakeRefresher, roles fakeRoles) *Manager {
	return NewManager(verifier, refresher, roles, testPolicy, zap.NewNop())
}

var expiredErr = fmt.Errorf("token expired: %w", jwt.ErrTokenExpired)

func TestAuthenticateNoToken(t *testing.T) {
	refresher := &fakeRefresher{}
	m := newTestManager(fakeVerifier{}, refresher, fakeRoles{})

	_, err := m.Authenticate(context.Background(), newTransport(map[string]string{RefreshCookieName: "r"}, "Basic abc"))
	assert.ErrorIs(t, err, ErrNoToken)
	assert.True(t, apperr.IsKind(err, apperr.Unauthorized))
	assert.Zero(t, refresher.calls.Load())
}

func TestAuthenticateValidToken(t *testing.T) {
	refresher := &fakeRefresher{}
	m := newTestManager(fakeVerifier{}, refresher, fakeRoles{})

	tests := []struct {
		name      string
		transport *fakeTransport
	}{
		{"cookie", newTransport(map[string]string{AccessCookieName: "good"}, "")},
		{"bearer header", newTransport(nil, "Bearer good")},
		{"cookie wins over header", newTransport(map[string]string{AccessCookieName: "good"}, "Bearer garbage")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := m.Authenticate(context.Background(), tt.transport)
			require.NoError(t, err)
			assert.Equal(t, int64(1), id.UserID)
			assert.True(t, id.Roles.IsGlobalAdmin())
			assert.False(t, id.Refreshed)
			assert.Empty(t, tt.transport.set)
		})
	}
	assert.Zero(t, refresher.calls.Load())
}

func TestAuthenticateRefreshesExpiredAndInvalid(t *testing.T) {
	verifier := fakeVerifier{
		"expired":  expiredErr,
		"tampered": errors.New("signature is invalid"),
	}
	for _, token := range []string{"expired", "tampered"} {
		t.Run(token, func(t *testing.T) {
			refresher := &fakeRefresher{pair: types.TokenPair{AccessToken: "refreshed", RefreshToken: "next-refresh"}}
			m := newTestManager(verifier, refresher, fakeRoles{})
			transport := newTransport(map[string]string{AccessCookieName: token, RefreshCookieName: "refresh"}, "")

			id, err := m.Authenticate(context.Background(), transport)
			require.NoError(t, err)
			assert.True(t, id.Refreshed)
			assert.Equal(t, int64(1), id.UserID)
			assert.Equal(t, int32(1), refresher.calls.Load())

			access := transport.set[AccessCookieName]
			assert.Equal(t, "refreshed", access.value)
			assert.Equal(t, CookieOptions{MaxAge: 15 * time.Minute, HTTPOnly: true, SameSite: http.SameSiteLaxMode, Path: "/"}, access.opts)

			refresh := transport.set[RefreshCookieName]
			assert.Equal(t, "next-refresh", refresh.value)
			assert.Equal(t, 15*24*time.Hour, refresh.opts.MaxAge)
			assert.True(t, refresh.opts.HTTPOnly)
		})
	}
}

func TestAuthenticateWithoutRefreshCookie(t *testing.T) {
	refresher := &fakeRefresher{}
	m := newTestManager(fakeVerifier{"expired": expiredErr}, refresher, fakeRoles{})

	_, err := m.Authenticate(context.Background(), newTransport(map[string]string{AccessCookieName: "expired"}, ""))
	assert.ErrorIs(t, err, ErrNoRefreshToken)
	assert.NotErrorIs(t, err, ErrRefreshFailed)
	assert.Zero(t, refresher.calls.Load())
}

func TestAuthenticateRefreshFailure(t *testing.T) {
	rejected := apperr.New(apperr.Unauthorized, "invalid refresh token")
	refresher := &fakeRefresher{err: rejected}
	m := newTestManager(fakeVerifier{"expired": expiredErr}, refresher, fakeRoles{})
	transport := newTransport(map[string]string{AccessCookieName: "expired", RefreshCookieName: "stale"}, "")

	_, err := m.Authenticate(context.Background(), transport)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRefreshFailed)
	assert.ErrorIs(t, err, rejected)
	assert.True(t, apperr.IsKind(err, apperr.Unauthorized))
	assert.Equal(t, int32(1), refresher.calls.Load(), "no refresh after a failed refresh")
	assert.Empty(t, transport.set)
}

func TestAuthenticateRejectsUnverifiableRefreshedToken(t *testing.T) {
	refresher := &fakeRefresher{pair: types.TokenPair{AccessToken: "broken", RefreshToken: "next"}}
	m := newTestManager(fakeVerifier{"expired": expiredErr, "broken": errors.New("bad")}, refresher, fakeRoles{})

	_, err := m.Authenticate(context.Background(), newTransport(map[string]string{AccessCookieName: "expired", RefreshCookieName: "r"}, ""))
	assert.ErrorIs(t, err, ErrRefreshFailed)
	assert.Equal(t, int32(1), refresher.calls.Load())
}

func TestAuthenticateRoleResolutionError(t *testing.T) {
	boom := apperr.New(apperr.Internal, "failed to resolve roles")
	m := newTestManager(fakeVerifier{}, &fakeRefresher{}, fakeRoles{err: boom})

	_, err := m.Authenticate(context.Background(), newTransport(map[string]string{AccessCookieName: "good"}, ""))
	assert.ErrorIs(t, err, boom)
}

func TestAccessToken(t *testing.T) {
	tests := []struct {
		name    string
		cookies map[string]string
		auth    string
		want    string
	}{
		{name: "cookie", cookies: map[string]string{AccessCookieName: " good "}, want: "good"},
		{name: "cookie wins", cookies: map[string]string{AccessCookieName: "good"}, auth: "Bearer other", want: "good"},
		{name: "bearer", auth: "Bearer good", want: "good"},
		{name: "scheme case", auth: "bEaReR good", want: "good"},
		{name: "other scheme", auth: "Basic good"},
		{name: "scheme only", auth: "Bearer"},
		{name: "nothing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AccessToken(newTransport(tt.cookies, tt.auth)))
		})
	}
}

func TestIdentityContext(t *testing.T) {
	_, ok := IdentityFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), Identity{Actor: types.Actor{UserID: 7}})
	id, ok := IdentityFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(7), id.UserID)
}

func TestCookiePolicy(t *testing.T) {
	p := CookiePolicy{AccessTTL: time.Minute, RefreshTTL: time.Hour, Secure: true}
	assert.True(t, p.Access().Secure)
	assert.Equal(t, time.Hour, p.Refresh().MaxAge)
	assert.Equal(t, time.Duration(-1), p.Cleared().MaxAge)

	transport := newTransport(nil, "")
	ClearTokens(transport)
	assert.Equal(t, []string{AccessCookieName, RefreshCookieName}, transport.cleared)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "refresh_pending", StateRefreshPending.String())
	assert.Equal(t, "State(42)", State(42).String())
}
