package services

import (
	"context"
	"errors"
	"strings"

	"github.com/devsketch/apiserver/internal/apperr"
	"github.com/devsketch/apiserver/internal/store"
	"github.com/devsketch/apiserver/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailTaken         = apperr.New(apperr.Conflict, "email already registered")
	ErrInvalidCredentials = apperr.New(apperr.Unauthorized, "invalid credentials")
)

// UserStore persists user accounts.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}

// TokenManager is the token lifecycle used by AuthService.
type TokenManager interface {
	Issue(ctx context.Context, user types.User) (types.TokenPair, error)
	VerifyAccess(token string) (types.AccessClaims, error)
	Revoke(ctx context.Context, userID int64) error
}

// Refresher performs a coordinated refresh.
type Refresher interface {
	RefreshOnce(ctx context.Context, refreshToken string) (types.TokenPair, error)
}

type SignUpInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type ChangePasswordInput struct {
	UserID          int64  `json:"user_id"`
	CurrentPassword string `json:"current_password" validate:"max=128"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=128"`
}

// VerifyResult is the outcome of VerifyToken.
type VerifyResult struct {
	Success bool             `json:"success"`
	User    types.PublicUser `json:"user"`
}

// AuthService implements account and session use-cases.
type AuthService struct {
	users     UserStore
	tokens    TokenManager
	refresher Refresher
	events    EventPublisher
	logger    *zap.Logger
}

func NewAuthService(users UserStore, tokens TokenManager, refresher Refresher, events EventPublisher, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		refresher: refresher,
		events:    publisherOrNop(events),
		logger:    logger.Named("auth"),
	}
}

func (s *AuthService) SignUp(ctx context.Context, input SignUpInput) (types.User, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Name = strings.TrimSpace(input.Name)
	if err := validateInput(input); err != nil {
		return types.User{}, err
	}
	email, name := input.Email, input.Name

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return types.User{}, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, apperr.Wrap(apperr.Internal, "failed to check user", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, apperr.Wrap(apperr.Internal, "failed to create user", err)
	}

	user, err := s.users.Create(ctx, types.User{
		Email:        email,
		Name:         name,
		PasswordHash: string(hashed),
	})
	switch {
	case errors.Is(err, store.ErrConflict):
		return types.User{}, ErrEmailTaken
	case err != nil:
		return types.User{}, apperr.Wrap(apperr.Internal, "failed to create user", err)
	}

	s.logger.Info("user signed up", zap.Int64("user_id", user.ID))
	s.events.Publish(ctx, newEvent(types.EventSignUp, user.ID))
	return user, nil
}

// LogIn checks credentials and issues a new pair, replacing any session the
// user already had.
func (s *AuthService) LogIn(ctx context.Context, email, password string) (types.TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return types.TokenPair{}, apperr.New(apperr.Invalid, "missing credentials")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.TokenPair{}, ErrUserNotFound
		}
		return types.TokenPair{}, apperr.Wrap(apperr.Internal, "failed to authenticate", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.TokenPair{}, ErrInvalidCredentials
	}

	pair, err := s.tokens.Issue(ctx, user)
	if err != nil {
		return types.TokenPair{}, err
	}
	s.logger.Info("user logged in", zap.Int64("user_id", user.ID))
	s.events.Publish(ctx, newEvent(types.EventLogIn, user.ID))
	return pair, nil
}

// Refresh rotates the session identified by refreshToken through the
// coordinator.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (types.TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return types.TokenPair{}, apperr.New(apperr.Unauthorized, "refresh token not found")
	}
	return s.refresher.RefreshOnce(ctx, refreshToken)
}

// LogOut revokes the user's refresh token. It succeeds when already logged out.
func (s *AuthService) LogOut(ctx context.Context, userID int64) error {
	if err := s.tokens.Revoke(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("user logged out", zap.Int64("user_id", userID))
	s.events.Publish(ctx, newEvent(types.EventLogOut, userID))
	return nil
}

// VerifyToken validates an access token and loads the user it names. A bad
// or expired token yields Success=false rather than an error.
func (s *AuthService) VerifyToken(ctx context.Context, accessToken string) (VerifyResult, error) {
	if strings.TrimSpace(accessToken) == "" {
		return VerifyResult{}, nil
	}
	claims, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		return VerifyResult{}, nil
	}
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return VerifyResult{}, nil
		}
		return VerifyResult{}, apperr.Wrap(apperr.Internal, "failed to load user", err)
	}
	return VerifyResult{Success: true, User: user.Public()}, nil
}

// ChangePassword lets a user change their own password, proving the current
// one, or lets a super_admin reset anyone's.
func (s *AuthService) ChangePassword(ctx context.Context, input ChangePasswordInput, actor types.Actor) error {
	self := input.UserID == actor.UserID
	if !self && !actor.Roles.IsSuperAdmin() {
		return apperr.New(apperr.Forbidden, "you do not have permission to change this user's password")
	}
	if err := validateInput(input); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, input.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return apperr.Wrap(apperr.Internal, "failed to load user", err)
	}

	if self {
		if user.PasswordHash == "" {
			return apperr.New(apperr.Internal, "user password data is incomplete")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.CurrentPassword)); err != nil {
			return apperr.New(apperr.Unauthorized, "current password is incorrect")
		}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "failed to change password", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, string(hashed)); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to change password", err)
	}

	s.logger.Info("password changed", zap.Int64("user_id", user.ID), zap.Int64("actor_id", actor.UserID))
	event := newEvent(types.EventPasswordChanged, user.ID)
	event.ActorID = actor.UserID
	s.events.Publish(ctx, event)
	return nil
}

// Me returns the profile of the given user.
func (s *AuthService) Me(ctx context.Context, userID int64) (types.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrUserNotFound
		}
		return types.User{}, apperr.Wrap(apperr.Internal, "failed to load user", err)
	}
	return user, nil
}
