package services

import (
	"context"
	"errors"
	"strings"

	"github.com/devsketch/apiserver/internal/apperr"
	"github.com/devsketch/apiserver/internal/store"
	"github.com/devsketch/apiserver/types"
	"go.uber.org/zap"
)

// ProjectStore persists projects.
type ProjectStore interface {
	ProjectReader
	CreateWithDefaultRoles(ctx context.Context, project types.Project) (types.Project, []types.Role, error)
	Update(ctx context.Context, project types.Project) (types.Project, error)
	Delete(ctx context.Context, id int64) error
}

// ProjectAuthorizer answers visibility and mutation questions.
type ProjectAuthorizer interface {
	ListVisibleProjects(ctx context.Context, actor types.Actor) ([]types.Project, error)
	CanViewProject(actor types.Actor, project types.Project) bool
	AuthorizeProjectMutation(ctx context.Context, actor types.Actor, projectID int64) (types.Project, error)
}

// ProjectService implements project use-cases on top of the authorization
// engine.
type ProjectService struct {
	projects ProjectStore
	authz    ProjectAuthorizer
	logger   *zap.Logger
}

func NewProjectService(projects ProjectStore, authz ProjectAuthorizer, logger *zap.Logger) *ProjectService {
	return &ProjectService{projects: projects, authz: authz, logger: logger.Named("project")}
}

// Create stores a project owned by actor along with its default roles.
func (s *ProjectService) Create(ctx context.Context, actor types.Actor, input types.ProjectInput) (types.Project, error) {
	project := types.Project{OwnerID: actor.UserID, Public: true}
	if err := applyProjectInput(&project, input); err != nil {
		return types.Project{}, err
	}

	created, roles, err := s.projects.CreateWithDefaultRoles(ctx, project)
	if err != nil {
		return types.Project{}, apperr.Wrap(apperr.Internal, "failed to create project", err)
	}
	s.logger.Info("project created",
		zap.Int64("project_id", created.ID),
		zap.Int64("owner_id", created.OwnerID),
		zap.Int("roles", len(roles)),
	)
	return created, nil
}

func (s *ProjectService) List(ctx context.Context, actor types.Actor) ([]types.Project, error) {
	return s.authz.ListVisibleProjects(ctx, actor)
}

// Get returns the project when actor can see it. Projects the actor cannot
// see are reported as missing.
func (s *ProjectService) Get(ctx context.Context, actor types.Actor, id int64) (types.Project, error) {
	project, err := s.projects.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Project{}, ErrProjectNotFound
		}
		return types.Project{}, apperr.Wrap(apperr.Internal, "failed to load project", err)
	}
	if !s.authz.CanViewProject(actor, project) {
		return types.Project{}, ErrProjectNotFound
	}
	return project, nil
}

func (s *ProjectService) Update(ctx context.Context, actor types.Actor, id int64, input types.ProjectInput) (types.Project, error) {
	project, err := s.authz.AuthorizeProjectMutation(ctx, actor, id)
	if err != nil {
		return types.Project{}, err
	}
	if err := applyProjectInput(&project, input); err != nil {
		return types.Project{}, err
	}

	updated, err := s.projects.Update(ctx, project)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Project{}, ErrProjectNotFound
		}
		return types.Project{}, apperr.Wrap(apperr.Internal, "failed to update project", err)
	}
	return updated, nil
}

func (s *ProjectService) Delete(ctx context.Context, actor types.Actor, id int64) error {
	if _, err := s.authz.AuthorizeProjectMutation(ctx, actor, id); err != nil {
		return err
	}
	if err := s.projects.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrProjectNotFound
		}
		return apperr.Wrap(apperr.Internal, "failed to delete project", err)
	}
	s.logger.Info("project deleted", zap.Int64("project_id", id), zap.Int64("actor_id", actor.UserID))
	return nil
}

func applyProjectInput(project *types.Project, input types.ProjectInput) error {
	input.Name = strings.TrimSpace(input.Name)
	if err := validateInput(input); err != nil {
		return err
	}
	project.Name = input.Name
	project.Description = input.Description
	if input.Public != nil {
		project.Public = *input.Public
	}
	return nil
}
