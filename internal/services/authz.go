package services

import (
	"context"
	"errors"

	"github.com/devsketch/apiserver/internal/apperr"
	"github.com/devsketch/apiserver/internal/store"
	"github.com/devsketch/apiserver/types"
	"go.uber.org/zap"
)

var (
	ErrForbidden        = apperr.New(apperr.Forbidden, "forbidden")
	ErrProjectNotFound  = apperr.New(apperr.NotFound, "project not found")
	ErrRoleNotFound     = apperr.New(apperr.NotFound, "role not found")
	ErrUserNotFound     = apperr.New(apperr.NotFound, "user not found")
	ErrUserNotVerified  = apperr.New(apperr.Forbidden, "user is not verified")
	ErrAssignmentExists = apperr.New(apperr.Conflict, "role assignment already exists")
	ErrAssignmentAbsent = apperr.New(apperr.NotFound, "role assignment not found")
)

// RoleStore persists roles and operator role assignments.
type RoleStore interface {
	GetRole(ctx context.Context, id int64) (types.Role, error)
	ListRolesForUser(ctx context.Context, userID int64) ([]types.Role, error)
	AssignmentExists(ctx context.Context, a types.RoleAssignment) (bool, error)
	CreateAssignment(ctx context.Context, a types.RoleAssignment) (types.RoleAssignment, error)
	DeleteAssignment(ctx context.Context, a types.RoleAssignment) error
	ListAssignments(ctx context.Context) ([]types.RoleGrant, error)
}

// UserLookup loads users by id.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (types.User, error)
}

// ProjectReader reads projects for visibility and ownership checks.
type ProjectReader interface {
	Get(ctx context.Context, id int64) (types.Project, error)
	ListAll(ctx context.Context) ([]types.Project, error)
	ListForMember(ctx context.Context, ownerID int64, memberOf []int64) ([]types.Project, error)
}

// AuthzService decides what an actor may see and change.
//
// Project visibility: global admins see everything, everyone else sees the
// projects they own plus the projects they hold any role on. Project mutation
// is narrower: only super_admin or the owner. Role assignments are guarded per
// role name, see canManageRole.
type AuthzService struct {
	roles    RoleStore
	users    UserLookup
	projects ProjectReader
	events   EventPublisher
	logger   *zap.Logger
}

func NewAuthzService(roles RoleStore, users UserLookup, projects ProjectReader, events EventPublisher, logger *zap.Logger) *AuthzService {
	return &AuthzService{
		roles:    roles,
		users:    users,
		projects: projects,
		events:   publisherOrNop(events),
		logger:   logger.Named("authz"),
	}
}

// ResolveRoles loads the enabled roles the user holds.
func (s *AuthzService) ResolveRoles(ctx context.Context, userID int64) (types.RoleSet, error) {
	roles, err := s.roles.ListRolesForUser(ctx, userID)
	if err != nil {
		return types.RoleSet{}, apperr.Wrap(apperr.Internal, "failed to resolve roles", err)
	}
	return types.NewRoleSet(roles), nil
}

func (s *AuthzService) ListVisibleProjects(ctx context.Context, actor types.Actor) ([]types.Project, error) {
	var (
		projects []types.Project
		err      error
	)
	if actor.Roles.IsGlobalAdmin() {
		projects, err = s.projects.ListAll(ctx)
	} else {
		projects, err = s.projects.ListForMember(ctx, actor.UserID, actor.Roles.ProjectIDs())
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to list projects", err)
	}
	return projects, nil
}

// CanViewProject mirrors the visibility rule of ListVisibleProjects for a
// single project.
func (s *AuthzService) CanViewProject(actor types.Actor, project types.Project) bool {
	if actor.Roles.IsGlobalAdmin() || project.OwnerID == actor.UserID {
		return true
	}
	_, member := actor.Roles.Project[project.ID]
	return member
}

// CanMutateProject reports whether actor may update or delete project. Plain
// admin is not enough.
func (s *AuthzService) CanMutateProject(actor types.Actor, project types.Project) bool {
	return actor.Roles.IsSuperAdmin() || project.OwnerID == actor.UserID
}

// AuthorizeProjectMutation loads the project and checks CanMutateProject.
func (s *AuthzService) AuthorizeProjectMutation(ctx context.Context, actor types.Actor, projectID int64) (types.Project, error) {
	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return types.Project{}, err
	}
	if !s.CanMutateProject(actor, project) {
		return types.Project{}, ErrForbidden
	}
	return project, nil
}

func (s *AuthzService) CreateRoleAssignment(ctx context.Context, input types.RoleAssignment, actor types.Actor) (types.RoleAssignment, error) {
	role, err := s.loadRole(ctx, input.RoleID)
	if err != nil {
		return types.RoleAssignment{}, err
	}
	if err := s.canManageRole(ctx, actor, role); err != nil {
		return types.RoleAssignment{}, err
	}

	user, err := s.users.GetByID(ctx, input.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.RoleAssignment{}, ErrUserNotFound
		}
		return types.RoleAssignment{}, apperr.Wrap(apperr.Internal, "failed to load user", err)
	}
	if !user.IsVerified {
		return types.RoleAssignment{}, ErrUserNotVerified
	}

	exists, err := s.roles.AssignmentExists(ctx, input)
	if err != nil {
		return types.RoleAssignment{}, apperr.Wrap(apperr.Internal, "failed to check role assignment", err)
	}
	if exists {
		return types.RoleAssignment{}, ErrAssignmentExists
	}

	created, err := s.roles.CreateAssignment(ctx, input)
	switch {
	case errors.Is(err, store.ErrConflict):
		return types.RoleAssignment{}, ErrAssignmentExists
	case errors.Is(err, store.ErrNoRow):
		return types.RoleAssignment{}, apperr.Wrap(apperr.Internal, "role assignment was not stored", err)
	case err != nil:
		return types.RoleAssignment{}, apperr.Wrap(apperr.Internal, "failed to create role assignment", err)
	}

	s.logger.Info("role granted",
		zap.Int64("user_id", created.UserID),
		zap.Int64("role_id", created.RoleID),
		zap.String("role", string(role.Name)),
		zap.Int64("actor_id", actor.UserID),
	)
	s.publishRoleEvent(ctx, types.EventRoleGranted, created, actor)
	return created, nil
}

func (s *AuthzService) DeleteRoleAssignment(ctx context.Context, input types.RoleAssignment, actor types.Actor) error {
	role, err := s.loadRole(ctx, input.RoleID)
	if err != nil {
		return err
	}
	if err := s.canManageRole(ctx, actor, role); err != nil {
		return err
	}

	if err := s.roles.DeleteAssignment(ctx, input); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrAssignmentAbsent
		}
		return apperr.Wrap(apperr.Internal, "failed to delete role assignment", err)
	}

	s.logger.Info("role revoked",
		zap.Int64("user_id", input.UserID),
		zap.Int64("role_id", input.RoleID),
		zap.String("role", string(role.Name)),
		zap.Int64("actor_id", actor.UserID),
	)
	s.publishRoleEvent(ctx, types.EventRoleRevoked, input, actor)
	return nil
}

// ListRoleAssignments returns every assignment. Global admins only.
func (s *AuthzService) ListRoleAssignments(ctx context.Context, actor types.Actor) ([]types.RoleGrant, error) {
	if !actor.Roles.IsGlobalAdmin() {
		return nil, ErrForbidden
	}
	grants, err := s.roles.ListAssignments(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to list role assignments", err)
	}
	return grants, nil
}

// canManageRole decides whether actor may grant or revoke role:
//   - super_admin: never
//   - admin: acting super_admin
//   - user: acting super_admin or admin
//   - project roles: acting super_admin or admin, the project owner, or a
//     prj_admin of that project
func (s *AuthzService) canManageRole(ctx context.Context, actor types.Actor, role types.Role) error {
	switch role.Name {
	case types.RoleSuperAdmin:
		return ErrForbidden
	case types.RoleAdmin:
		if actor.Roles.IsSuperAdmin() {
			return nil
		}
		return ErrForbidden
	case types.RoleUser:
		if actor.Roles.IsGlobalAdmin() {
			return nil
		}
		return ErrForbidden
	case types.RoleProjectAdmin, types.RoleProjectWrite, types.RoleProjectRead:
		if actor.Roles.IsGlobalAdmin() {
			return nil
		}
		if role.ProjectID == nil {
			return apperr.New(apperr.Internal, "project role without project")
		}
		if actor.Roles.HasProjectRole(*role.ProjectID, types.RoleProjectAdmin) {
			return nil
		}
		project, err := s.loadProject(ctx, *role.ProjectID)
		if err != nil {
			return err
		}
		if project.OwnerID == actor.UserID {
			return nil
		}
		return ErrForbidden
	default:
		return apperr.New(apperr.Internal, "unknown role name "+string(role.Name))
	}
}

func (s *AuthzService) loadRole(ctx context.Context, id int64) (types.Role, error) {
	role, err := s.roles.GetRole(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Role{}, ErrRoleNotFound
		}
		return types.Role{}, apperr.Wrap(apperr.Internal, "failed to load role", err)
	}
	return role, nil
}

func (s *AuthzService) loadProject(ctx context.Context, id int64) (types.Project, error) {
	project, err := s.projects.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Project{}, ErrProjectNotFound
		}
		return types.Project{}, apperr.Wrap(apperr.Internal, "failed to load project", err)
	}
	return project, nil
}

func (s *AuthzService) publishRoleEvent(ctx context.Context, typ types.SecurityEventType, a types.RoleAssignment, actor types.Actor) {
	event := newEvent(typ, a.UserID)
	event.ActorID = actor.UserID
	event.RoleID = a.RoleID
	s.events.Publish(ctx, event)
}
