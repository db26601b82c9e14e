package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/devsketch/apiserver/internal/apperr"
	"github.com/devsketch/apiserver/internal/session"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// writeAppError renders err by its kind. Causes are logged, never sent.
func writeAppError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.Internal {
		logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	} else {
		logger.Debug("request rejected", zap.String("kind", kind.String()), zap.Error(err))
	}
	writeJSON(w, kind.HTTPStatus(), ErrorResponse{Error: apperr.Message(err), Code: kind.String()})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return apperr.Wrap(apperr.Invalid, "invalid request", err)
	}
	return nil
}

func parseIDParam(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, apperr.New(apperr.Invalid, "invalid "+name)
	}
	return id, nil
}

func identityFromRequest(r *http.Request) (session.Identity, error) {
	id, ok := session.IdentityFromContext(r.Context())
	if !ok || id.UserID < 1 {
		return session.Identity{}, apperr.Wrap(apperr.Unauthorized, "unauthorized", errors.New("no identity in context"))
	}
	return id, nil
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
