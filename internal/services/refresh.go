package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/devsketch/apiserver/types"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Rotator exchanges a refresh token for a new pair.
type Rotator interface {
	Rotate(ctx context.Context, refreshToken string) (types.TokenPair, error)
}

// RefreshCoordinator collapses concurrent refreshes of the same session into
// one rotation whose outcome every waiting caller receives. Sessions are keyed
// by their refresh token, so different sessions never wait on each other.
// Only callers inside this process are coordinated.
type RefreshCoordinator struct {
	rotator Rotator
	group   singleflight.Group
	logger  *zap.Logger
}

func NewRefreshCoordinator(rotator Rotator, logger *zap.Logger) *RefreshCoordinator {
	return &RefreshCoordinator{rotator: rotator, logger: logger.Named("refresh")}
}

// RefreshOnce rotates refreshToken, or joins a rotation of the same token that
// is already in flight. The in-flight entry is dropped as soon as the rotation
// returns, fails or panics, so the next expiry starts a fresh one.
func (c *RefreshCoordinator) RefreshOnce(ctx context.Context, refreshToken string) (types.TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return types.TokenPair{}, ErrRefreshInvalid
	}

	key := sessionKey(refreshToken)
	// Detached so a caller that goes away does not fail the others.
	detached := context.WithoutCancel(ctx)
	v, err, shared := c.group.Do(key, func() (any, error) {
		return c.rotator.Rotate(detached, refreshToken)
	})
	if shared {
		c.logger.Debug("joined in-flight refresh", zap.String("session", key[:12]))
	}
	if err != nil {
		return types.TokenPair{}, err
	}
	return v.(types.TokenPair), nil
}

func sessionKey(refreshToken string) string {
	sum := sha256.Sum256([]byte(refreshToken))
	return hex.EncodeToString(sum[:])
}
