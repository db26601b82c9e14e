package handlers

import (
	"net/http"

	"github.com/devsketch/apiserver/internal/services"
	"github.com/devsketch/apiserver/types"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ProjectHandler provides HTTP handlers for projects. Every route requires a
// session.
type ProjectHandler struct {
	projectService *services.ProjectService
	logger         *zap.Logger
}

func NewProjectHandler(projectService *services.ProjectService, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{projectService: projectService, logger: logger}
}

// ProjectRouter registers project routes on the given router.
func ProjectRouter(r chi.Router, projectService *services.ProjectService, authMiddleware func(http.Handler) http.Handler, logger *zap.Logger) {
	handler := NewProjectHandler(projectService, logger)

	r.Use(authMiddleware)
	r.Get("/", handler.ListProjects)
	r.Post("/", handler.CreateProject)
	r.Route("/{projectID}", func(r chi.Router) {
		r.Get("/", handler.GetProject)
		r.Put("/", handler.UpdateProject)
		r.Delete("/", handler.DeleteProject)
	})
}

func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	id, err := identityFromRequest(r)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	projects, err := h.projectService.List(r.Context(), id.Actor)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ProjectListResponse{Items: projects})
}

func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	id, err := identityFromRequest(r)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	var req types.ProjectInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	project, err := h.projectService.Create(r.Context(), id.Actor, req)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	id, err := identityFromRequest(r)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	projectID, err := parseIDParam(r, "projectID")
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	project, err := h.projectService.Get(r.Context(), id.Actor, projectID)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *ProjectHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	id, err := identityFromRequest(r)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	projectID, err := parseIDParam(r, "projectID")
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	var req types.ProjectInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	project, err := h.projectService.Update(r.Context(), id.Actor, projectID, req)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *ProjectHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := identityFromRequest(r)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	projectID, err := parseIDParam(r, "projectID")
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	if err := h.projectService.Delete(r.Context(), id.Actor, projectID); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ProjectListResponse is the list response payload.
type ProjectListResponse struct {
	Items []types.Project `json:"items"`
}
