package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/devsketch/apiserver/types"
	"github.com/jmoiron/sqlx"
)

const roleColumns = `id, role_name, role_desc, enabled, project_id`

// RoleRepository handles persistence for roles and operator role assignments.
type RoleRepository struct {
	db *sqlx.DB
}

func NewRoleRepository(db *sqlx.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

func (r *RoleRepository) GetRole(ctx context.Context, id int64) (types.Role, error) {
	query := r.db.Rebind(`SELECT ` + roleColumns + ` FROM roles WHERE id = ?`)
	var role types.Role
	if err := r.db.GetContext(ctx, &role, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Role{}, ErrNotFound
		}
		return types.Role{}, err
	}
	return role, nil
}

func (r *RoleRepository) GetGlobalRole(ctx context.Context, name types.RoleName) (types.Role, error) {
	query := r.db.Rebind(`SELECT ` + roleColumns + ` FROM roles WHERE role_name = ? AND project_id IS NULL`)
	var role types.Role
	if err := r.db.GetContext(ctx, &role, query, string(name)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Role{}, ErrNotFound
		}
		return types.Role{}, err
	}
	return role, nil
}

// EnsureGlobalRole returns the global role with the given name, creating it
// when missing.
func (r *RoleRepository) EnsureGlobalRole(ctx context.Context, name types.RoleName, description string) (types.Role, error) {
	role, err := r.GetGlobalRole(ctx, name)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return role, err
	}

	query := r.db.Rebind(`
		INSERT INTO roles (role_name, role_desc, enabled)
		VALUES (?, ?, ?)
		RETURNING ` + roleColumns)
	if err := r.db.GetContext(ctx, &role, query, string(name), description, true); err != nil {
		if isUniqueViolation(err) {
			return r.GetGlobalRole(ctx, name)
		}
		return types.Role{}, err
	}
	return role, nil
}

// ListRolesForUser returns the enabled roles held by the user.
func (r *RoleRepository) ListRolesForUser(ctx context.Context, userID int64) ([]types.Role, error) {
	query := r.db.Rebind(`
		SELECT r.id, r.role_name, r.role_desc, r.enabled, r.project_id
		FROM roles r
		JOIN operator_roles o ON o.role_id = r.id
		WHERE o.user_id = ? AND r.enabled = ?
		ORDER BY r.id`)
	roles := []types.Role{}
	if err := r.db.SelectContext(ctx, &roles, query, userID, true); err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *RoleRepository) AssignmentExists(ctx context.Context, a types.RoleAssignment) (bool, error) {
	query := r.db.Rebind(`SELECT COUNT(1) FROM operator_roles WHERE user_id = ? AND role_id = ?`)
	var n int
	if err := r.db.GetContext(ctx, &n, query, a.UserID, a.RoleID); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RoleRepository) CreateAssignment(ctx context.Context, a types.RoleAssignment) (types.RoleAssignment, error) {
	query := r.db.Rebind(`
		INSERT INTO operator_roles (user_id, role_id)
		VALUES (?, ?)
		RETURNING user_id, role_id`)
	var created types.RoleAssignment
	if err := r.db.GetContext(ctx, &created, query, a.UserID, a.RoleID); err != nil {
		if isUniqueViolation(err) {
			return types.RoleAssignment{}, ErrConflict
		}
		if errors.Is(err, sql.ErrNoRows) {
			return types.RoleAssignment{}, ErrNoRow
		}
		return types.RoleAssignment{}, err
	}
	return created, nil
}

func (r *RoleRepository) DeleteAssignment(ctx context.Context, a types.RoleAssignment) error {
	query := r.db.Rebind(`DELETE FROM operator_roles WHERE user_id = ? AND role_id = ?`)
	result, err := r.db.ExecContext(ctx, query, a.UserID, a.RoleID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RoleRepository) ListAssignments(ctx context.Context) ([]types.RoleGrant, error) {
	const query = `
		SELECT o.user_id, u.email, o.role_id, r.role_name, r.project_id
		FROM operator_roles o
		JOIN users u ON u.id = o.user_id
		JOIN roles r ON r.id = o.role_id
		ORDER BY o.user_id, o.role_id`
	grants := []types.RoleGrant{}
	if err := r.db.SelectContext(ctx, &grants, query); err != nil {
		return nil, err
	}
	return grants, nil
}
