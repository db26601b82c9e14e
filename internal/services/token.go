package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/devsketch/apiserver/config"
	"github.com/devsketch/apiserver/internal/apperr"
	"github.com/devsketch/apiserver/internal/store"
	"github.com/devsketch/apiserver/types"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrTokenExpired   = apperr.New(apperr.Unauthorized, "token expired")
	ErrTokenInvalid   = apperr.New(apperr.Unauthorized, "invalid token")
	ErrRefreshInvalid = apperr.New(apperr.Unauthorized, "invalid refresh token")
)

// RefreshSlotStore is the part of the credential store the token service
// needs: user lookup and the single refresh token slot.
type RefreshSlotStore interface {
	GetByID(ctx context.Context, id int64) (types.User, error)
	SetRefreshToken(ctx context.Context, id int64, token string) error
	CompareAndSwapRefreshToken(ctx context.Context, id int64, expected, next string) (bool, error)
	ClearRefreshToken(ctx context.Context, id int64) error
}

type accessTokenClaims struct {
	UserID int64  `json:"id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

type refreshTokenClaims struct {
	UserID int64 `json:"id"`
	jwt.RegisteredClaims
}

// TokenService issues, verifies, rotates and revokes token pairs.
type TokenService struct {
	users         RefreshSlotStore
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	events        EventPublisher
	logger        *zap.Logger
	now           func() time.Time
}

func NewTokenService(users RefreshSlotStore, cfg config.AuthConfig, events EventPublisher, logger *zap.Logger) *TokenService {
	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = config.DefaultAccessTokenTTL
	}
	refreshTTL := cfg.RefreshTokenTTL
	if refreshTTL <= 0 {
		refreshTTL = config.DefaultRefreshTokenTTL
	}
	return &TokenService{
		users:         users,
		accessSecret:  []byte(cfg.AccessTokenSecret),
		refreshSecret: []byte(cfg.RefreshTokenSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		events:        publisherOrNop(events),
		logger:        logger.Named("token"),
		now:           time.Now,
	}
}

// AccessTTL is the lifetime of issued access tokens.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL is the lifetime of issued refresh tokens.
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// Issue signs a new pair for user and stores the refresh token as the user's
// only valid one, replacing whatever was there.
func (s *TokenService) Issue(ctx context.Context, user types.User) (types.TokenPair, error) {
	pair, err := s.sign(user)
	if err != nil {
		return types.TokenPair{}, err
	}
	if err := s.users.SetRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.TokenPair{}, apperr.Wrap(apperr.NotFound, "user not found", err)
		}
		return types.TokenPair{}, apperr.Wrap(apperr.Internal, "failed to store refresh token", err)
	}
	return pair, nil
}

// VerifyAccess checks the signature and expiry of an access token. It never
// reads storage.
func (s *TokenService) VerifyAccess(token string) (types.AccessClaims, error) {
	claims := accessTokenClaims{}
	if err := s.parse(token, s.accessSecret, &claims); err != nil {
		return types.AccessClaims{}, err
	}
	if claims.UserID < 1 {
		return types.AccessClaims{}, ErrTokenInvalid
	}
	return types.AccessClaims{
		UserID:    claims.UserID,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Rotate exchanges a refresh token for a new pair. The presented token must
// be the one currently stored for its user, and the new token is written only
// if the slot still holds it.
func (s *TokenService) Rotate(ctx context.Context, refreshToken string) (types.TokenPair, error) {
	claims := refreshTokenClaims{}
	if err := s.parse(refreshToken, s.refreshSecret, &claims); err != nil {
		return types.TokenPair{}, apperr.Wrap(apperr.Unauthorized, ErrRefreshInvalid.Message, err)
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.TokenPair{}, apperr.Wrap(apperr.Unauthorized, ErrRefreshInvalid.Message, err)
		}
		return types.TokenPair{}, apperr.Wrap(apperr.Internal, "failed to load user", err)
	}
	if user.RefreshToken == nil || *user.RefreshToken != refreshToken {
		s.logger.Info("stale refresh token presented", zap.Int64("user_id", user.ID))
		return types.TokenPair{}, ErrRefreshInvalid
	}

	pair, err := s.sign(user)
	if err != nil {
		return types.TokenPair{}, err
	}
	swapped, err := s.users.CompareAndSwapRefreshToken(ctx, user.ID, refreshToken, pair.RefreshToken)
	if err != nil {
		return types.TokenPair{}, apperr.Wrap(apperr.Internal, "failed to store refresh token", err)
	}
	if !swapped {
		s.logger.Info("refresh token rotated concurrently", zap.Int64("user_id", user.ID))
		return types.TokenPair{}, ErrRefreshInvalid
	}

	s.events.Publish(ctx, newEvent(types.EventTokenRotated, user.ID))
	return pair, nil
}

// Revoke empties the user's refresh slot. Revoking twice is not an error.
func (s *TokenService) Revoke(ctx context.Context, userID int64) error {
	if err := s.users.ClearRefreshToken(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.Wrap(apperr.NotFound, "user not found", err)
		}
		return apperr.Wrap(apperr.Internal, "failed to revoke refresh token", err)
	}
	return nil
}

func (s *TokenService) sign(user types.User) (types.TokenPair, error) {
	now := s.now()
	accessExp := now.Add(s.accessTTL)
	refreshExp := now.Add(s.refreshTTL)

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, accessTokenClaims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExp),
		},
	})
	accessToken, err := access.SignedString(s.accessSecret)
	if err != nil {
		return types.TokenPair{}, apperr.Wrap(apperr.Internal, "failed to sign access token", err)
	}

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshTokenClaims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExp),
		},
	})
	refreshToken, err := refresh.SignedString(s.refreshSecret)
	if err != nil {
		return types.TokenPair{}, apperr.Wrap(apperr.Internal, "failed to sign refresh token", err)
	}

	return types.TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *TokenService) parse(token string, secret []byte, claims jwt.Claims) error {
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperr.Wrap(apperr.Unauthorized, ErrTokenExpired.Message, err)
	default:
		return apperr.Wrap(apperr.Unauthorized, ErrTokenInvalid.Message, err)
	}
}
