package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/devsketch/apiserver/internal/session"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RequestLogger logs one line per request.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Duration("duration", time.Since(start)),
				zap.Int("size", ww.BytesWritten()),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// RequireSession authenticates the request through the session manager and
// puts the identity into the request context. When a refresh fails the
// session cookies are cleared.
func RequireSession(manager *session.Manager, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			transport := newCookieTransport(w, r, manager.Cookies())
			id, err := manager.Authenticate(r.Context(), transport)
			if err != nil {
				if errors.Is(err, session.ErrRefreshFailed) {
					session.ClearTokens(transport)
				}
				writeAppError(w, r, logger, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(session.WithIdentity(r.Context(), id)))
		})
	}
}
