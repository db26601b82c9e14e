// Package session authenticates one inbound operation at a time: it reads the
// access token from the transport, falls back to a coordinated refresh when
// the token no longer verifies, and resolves the caller's roles.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/devsketch/apiserver/internal/apperr"
	"github.com/devsketch/apiserver/types"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// State is a step of the per-operation authentication state machine.
type State int

const (
	StateNoToken State = iota
	StateTokenPresent
	StateValid
	StateExpired
	StateInvalid
	StateRefreshPending
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateNoToken:
		return "no_token"
	case StateTokenPresent:
		return "token_present"
	case StateValid:
		return "valid"
	case StateExpired:
		return "expired"
	case StateInvalid:
		return "invalid"
	case StateRefreshPending:
		return "refresh_pending"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	ErrNoToken        = apperr.New(apperr.Unauthorized, "missing access token")
	ErrNoRefreshToken = apperr.New(apperr.Unauthorized, "refresh token not found")
	ErrSessionExpired = apperr.New(apperr.Unauthorized, "session expired")

	// ErrRefreshFailed is in the chain of every error caused by a failed
	// refresh. Transport adapters clear the session cookies when they see it.
	ErrRefreshFailed = errors.New("session refresh failed")
)

type AccessVerifier interface {
	VerifyAccess(token string) (types.AccessClaims, error)
}

type Refresher interface {
	RefreshOnce(ctx context.Context, refreshToken string) (types.TokenPair, error)
}

type RoleResolver interface {
	ResolveRoles(ctx context.Context, userID int64) (types.RoleSet, error)
}

// Identity is what downstream handlers learn about the caller.
type Identity struct {
	types.Actor
	Claims types.AccessClaims
	// Refreshed is set when new tokens were issued during authentication.
	Refreshed bool
}

type Manager struct {
	verifier  AccessVerifier
	refresher Refresher
	roles     RoleResolver
	cookies   CookiePolicy
	logger    *zap.Logger
}

func NewManager(verifier AccessVerifier, refresher Refresher, roles RoleResolver, cookies CookiePolicy, logger *zap.Logger) *Manager {
	return &Manager{
		verifier:  verifier,
		refresher: refresher,
		roles:     roles,
		cookies:   cookies,
		logger:    logger.Named("session"),
	}
}

// Cookies returns the cookie policy the manager writes with.
func (m *Manager) Cookies() CookiePolicy {
	return m.cookies
}

// Authenticate runs the state machine for one operation. Expired and invalid
// access tokens take the same path: one refresh through the coordinator, and
// never a second.
func (m *Manager) Authenticate(ctx context.Context, t Transport) (Identity, error) {
	state := StateNoToken
	move := func(next State) {
		m.logger.Debug("session transition", zap.Stringer("from", state), zap.Stringer("to", next))
		state = next
	}

	token := AccessToken(t)
	if token == "" {
		move(StateUnauthenticated)
		return Identity{}, ErrNoToken
	}
	move(StateTokenPresent)

	claims, err := m.verifier.VerifyAccess(token)
	if err == nil {
		move(StateValid)
		return m.identity(ctx, claims, false)
	}
	if errors.Is(err, jwt.ErrTokenExpired) {
		move(StateExpired)
	} else {
		move(StateInvalid)
	}

	refreshToken := t.Cookie(RefreshCookieName)
	if refreshToken == "" {
		move(StateUnauthenticated)
		return Identity{}, apperr.Wrap(apperr.Unauthorized, ErrNoRefreshToken.Message, err)
	}

	move(StateRefreshPending)
	pair, err := m.refresher.RefreshOnce(ctx, refreshToken)
	if err != nil {
		move(StateUnauthenticated)
		m.logger.Info("session refresh failed", zap.Error(err))
		return Identity{}, apperr.Wrap(apperr.Unauthorized, ErrSessionExpired.Message, fmt.Errorf("%w: %w", ErrRefreshFailed, err))
	}
	m.cookies.WriteTokens(t, pair.AccessToken, pair.RefreshToken)

	claims, err = m.verifier.VerifyAccess(pair.AccessToken)
	if err != nil {
		move(StateUnauthenticated)
		return Identity{}, apperr.Wrap(apperr.Unauthorized, ErrSessionExpired.Message, fmt.Errorf("%w: %w", ErrRefreshFailed, err))
	}
	move(StateValid)
	return m.identity(ctx, claims, true)
}

func (m *Manager) identity(ctx context.Context, claims types.AccessClaims, refreshed bool) (Identity, error) {
	roles, err := m.roles.ResolveRoles(ctx, claims.UserID)
	if err != nil {
		return Identity{}, err
	}
	return Identity{
		Actor: types.Actor{
			UserID: claims.UserID,
			Email:  claims.Email,
			Roles:  roles,
		},
		Claims:    claims,
		Refreshed: refreshed,
	}, nil
}

// AccessToken returns the presented access token. The cookie wins over a
// bearer Authorization header.
func AccessToken(t Transport) string {
	if token := strings.TrimSpace(t.Cookie(AccessCookieName)); token != "" {
		return token
	}
	auth := strings.TrimSpace(t.AuthorizationHeader())
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

type contextKey struct{}

// WithIdentity attaches id to ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// IdentityFromContext returns the identity attached by WithIdentity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}
