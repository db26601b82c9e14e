package types

import (
	"fmt"
	"sort"
)

// RoleName is the closed set of role categories.
type RoleName string

const (
	// RoleSuperAdmin sees and mutates every project and is the only role that
	// may grant or revoke admin. It can never be granted through the API.
	RoleSuperAdmin RoleName = "super_admin"

	// RoleAdmin sees every project. It does not grant project mutation.
	RoleAdmin RoleName = "admin"

	// RoleUser is the baseline global role.
	RoleUser RoleName = "user"

	// RoleProjectAdmin administers a single project.
	RoleProjectAdmin RoleName = "prj_admin"

	// RoleProjectWrite grants write access to a single project.
	RoleProjectWrite RoleName = "prj_write"

	// RoleProjectRead grants read access to a single project.
	RoleProjectRead RoleName = "prj_read"
)

// RoleScope distinguishes global roles from project-scoped roles.
type RoleScope int

const (
	ScopeGlobal RoleScope = iota
	ScopeProject
)

func (s RoleScope) String() string {
	switch s {
	case ScopeGlobal:
		return "global"
	case ScopeProject:
		return "project"
	default:
		return fmt.Sprintf("RoleScope(%d)", int(s))
	}
}

// GlobalRoleNames are seeded once and never tied to a project.
var GlobalRoleNames = []RoleName{RoleSuperAdmin, RoleAdmin, RoleUser}

// DefaultProjectRoles are created together with every project.
var DefaultProjectRoles = []struct {
	Name        RoleName
	Description string
}{
	{RoleProjectAdmin, "Project Administrator"},
	{RoleProjectWrite, "Project Write Access"},
	{RoleProjectRead, "Project Read Access"},
}

// ParseRoleName converts a stored or user-supplied name into a RoleName.
func ParseRoleName(s string) (RoleName, error) {
	name := RoleName(s)
	switch name {
	case RoleSuperAdmin, RoleAdmin, RoleUser, RoleProjectAdmin, RoleProjectWrite, RoleProjectRead:
		return name, nil
	default:
		return "", fmt.Errorf("unknown role name %q", s)
	}
}

// Scope reports whether the role is global or project-scoped.
func (r RoleName) Scope() RoleScope {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleUser:
		return ScopeGlobal
	case RoleProjectAdmin, RoleProjectWrite, RoleProjectRead:
		return ScopeProject
	default:
		panic(fmt.Sprintf("types: unhandled role name %q", string(r)))
	}
}

// Valid reports whether r is one of the known role names.
func (r RoleName) Valid() bool {
	_, err := ParseRoleName(string(r))
	return err == nil
}

// Role is a row of the roles table. Global roles have a nil ProjectID.
type Role struct {
	ID          int64    `json:"id" db:"id"`
	Name        RoleName `json:"role_name" db:"role_name"`
	Description string   `json:"role_desc" db:"role_desc"`
	Enabled     bool     `json:"enabled" db:"enabled"`
	ProjectID   *int64   `json:"prj_id,omitempty" db:"project_id"`
}

// RoleAssignment links a user to a role (operator_roles).
type RoleAssignment struct {
	UserID int64 `json:"user_id" db:"user_id"`
	RoleID int64 `json:"role_id" db:"role_id"`
}

// RoleSet is the resolved authorization context of a user: the global roles
// they hold and, per project, the project roles they hold.
type RoleSet struct {
	Global  map[RoleName]struct{}
	Project map[int64]map[RoleName]struct{}
}

// NewRoleSet builds a RoleSet from the roles a user holds. Unknown names are
// ignored.
func NewRoleSet(roles []Role) RoleSet {
	set := RoleSet{
		Global:  make(map[RoleName]struct{}),
		Project: make(map[int64]map[RoleName]struct{}),
	}
	for _, role := range roles {
		if !role.Name.Valid() {
			continue
		}
		switch role.Name.Scope() {
		case ScopeGlobal:
			set.Global[role.Name] = struct{}{}
		case ScopeProject:
			if role.ProjectID == nil {
				continue
			}
			roles, ok := set.Project[*role.ProjectID]
			if !ok {
				roles = make(map[RoleName]struct{})
				set.Project[*role.ProjectID] = roles
			}
			roles[role.Name] = struct{}{}
		}
	}
	return set
}

// HasGlobal reports whether the set holds the given global role.
func (s RoleSet) HasGlobal(name RoleName) bool {
	_, ok := s.Global[name]
	return ok
}

// IsSuperAdmin reports whether the set holds super_admin.
func (s RoleSet) IsSuperAdmin() bool {
	return s.HasGlobal(RoleSuperAdmin)
}

// IsGlobalAdmin reports whether the set holds super_admin or admin.
func (s RoleSet) IsGlobalAdmin() bool {
	return s.HasGlobal(RoleSuperAdmin) || s.HasGlobal(RoleAdmin)
}

// HasProjectRole reports whether the set holds name on the given project.
func (s RoleSet) HasProjectRole(projectID int64, name RoleName) bool {
	roles, ok := s.Project[projectID]
	if !ok {
		return false
	}
	_, ok = roles[name]
	return ok
}

// ProjectIDs returns the projects the set holds any role on, ascending.
func (s RoleSet) ProjectIDs() []int64 {
	ids := make([]int64, 0, len(s.Project))
	for id := range s.Project {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// PrimaryRole returns the most privileged global role, or "" when none is held.
func (s RoleSet) PrimaryRole() RoleName {
	for _, name := range GlobalRoleNames {
		if s.HasGlobal(name) {
			return name
		}
	}
	return ""
}

// RoleGrant is an assignment joined with the role it grants.
type RoleGrant struct {
	UserID    int64    `json:"user_id" db:"user_id"`
	UserEmail string   `json:"user_email" db:"email"`
	RoleID    int64    `json:"role_id" db:"role_id"`
	RoleName  RoleName `json:"role_name" db:"role_name"`
	ProjectID *int64   `json:"prj_id,omitempty" db:"project_id"`
}
