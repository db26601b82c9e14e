package handlers

import (
	"net/http"

	"github.com/devsketch/apiserver/internal/services"
	"github.com/devsketch/apiserver/types"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// OperatorRoleHandler exposes role assignment management.
type OperatorRoleHandler struct {
	authz  *services.AuthzService
	logger *zap.Logger
}

func NewOperatorRoleHandler(authz *services.AuthzService, logger *zap.Logger) *OperatorRoleHandler {
	return &OperatorRoleHandler{authz: authz, logger: logger}
}

// OperatorRoleRouter registers role assignment routes on the given router.
func OperatorRoleRouter(r chi.Router, authz *services.AuthzService, authMiddleware func(http.Handler) http.Handler, logger *zap.Logger) {
	handler := NewOperatorRoleHandler(authz, logger)

	r.Use(authMiddleware)
	r.Get("/", handler.List)
	r.Post("/", handler.Create)
	r.Delete("/", handler.Delete)
}

func (h *OperatorRoleHandler) List(w http.ResponseWriter, r *http.Request) {
	id, err := identityFromRequest(r)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	grants, err := h.authz.ListRoleAssignments(r.Context(), id.Actor)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, RoleGrantListResponse{Items: grants})
}

func (h *OperatorRoleHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, err := identityFromRequest(r)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	var req types.RoleAssignment
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	created, err := h.authz.CreateRoleAssignment(r.Context(), req, id.Actor)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *OperatorRoleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := identityFromRequest(r)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	var req types.RoleAssignment
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	if err := h.authz.DeleteRoleAssignment(r.Context(), req, id.Actor); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RoleGrantListResponse is the list response payload.
type RoleGrantListResponse struct {
	Items []types.RoleGrant `json:"items"`
}
