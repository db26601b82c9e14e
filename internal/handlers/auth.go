package handlers

import (
	"net/http"

	"github.com/devsketch/apiserver/internal/apperr"
	"github.com/devsketch/apiserver/internal/services"
	"github.com/devsketch/apiserver/internal/session"
	"github.com/devsketch/apiserver/types"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AuthHandler provides the account and session endpoints.
type AuthHandler struct {
	authService *services.AuthService
	cookies     session.CookiePolicy
	logger      *zap.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(authService *services.AuthService, cookies session.CookiePolicy, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cookies:     cookies,
		logger:      logger,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, authService *services.AuthService, manager *session.Manager, logger *zap.Logger) {
	handler := NewAuthHandler(authService, manager.Cookies(), logger)
	requireSession := RequireSession(manager, logger)

	r.Post("/signup", handler.SignUp)
	r.Post("/login", handler.LogIn)
	r.Post("/refresh", handler.Refresh)
	r.Post("/verify", handler.Verify)
	r.With(requireSession).Post("/logout", handler.LogOut)
	r.With(requireSession).Post("/password", handler.ChangePassword)
	r.With(requireSession).Get("/me", handler.Me)
}

// SignUp creates a new, unverified account.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req services.SignUpInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	user, err := h.authService.SignUp(r.Context(), req)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, user.Public())
}

// LogIn verifies credentials, sets the session cookies and returns the pair.
func (h *AuthHandler) LogIn(w http.ResponseWriter, r *http.Request) {
	var req LogInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	pair, err := h.authService.LogIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	h.cookies.WriteTokens(newCookieTransport(w, r, h.cookies), pair.AccessToken, pair.RefreshToken)
	writeJSON(w, http.StatusOK, pair)
}

// Refresh rotates the refresh token taken from the cookie. A rejected refresh
// token clears both cookies; other failures leave them for a retry.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	transport := newCookieTransport(w, r, h.cookies)
	refreshToken := transport.Cookie(session.RefreshCookieName)

	pair, err := h.authService.Refresh(r.Context(), refreshToken)
	if err != nil {
		if apperr.KindOf(err) == apperr.Unauthorized {
			session.ClearTokens(transport)
		}
		writeAppError(w, r, h.logger, err)
		return
	}
	h.cookies.WriteTokens(transport, pair.AccessToken, pair.RefreshToken)
	writeJSON(w, http.StatusOK, pair)
}

// Verify reports whether the presented access token is valid.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token := session.AccessToken(newCookieTransport(w, r, h.cookies))

	result, err := h.authService.VerifyToken(r.Context(), token)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// LogOut revokes the caller's refresh token and clears the cookies.
func (h *AuthHandler) LogOut(w http.ResponseWriter, r *http.Request) {
	id, err := identityFromRequest(r)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	if err := h.authService.LogOut(r.Context(), id.UserID); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	session.ClearTokens(newCookieTransport(w, r, h.cookies))
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// ChangePassword changes the caller's password, or another user's when the
// caller is super_admin.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, err := identityFromRequest(r)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	var req services.ChangePasswordInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	if req.UserID == 0 {
		req.UserID = id.UserID
	}

	if err := h.authService.ChangePassword(r.Context(), req, id.Actor); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// Me returns the current authenticated user with their primary role.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, err := identityFromRequest(r)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	user, err := h.authService.Me(r.Context(), id.UserID)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MeResponse{
		User:       user,
		Role:       id.Roles.PrimaryRole(),
		ProjectIDs: id.Roles.ProjectIDs(),
	})
}

type LogInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type MeResponse struct {
	User       types.User     `json:"user"`
	Role       types.RoleName `json:"role,omitempty"`
	ProjectIDs []int64        `json:"project_ids"`
}
