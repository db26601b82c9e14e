package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/devsketch/apiserver/types"
	"github.com/jmoiron/sqlx"
)

const projectColumns = `id, name, description, public, owner_id, created_at, updated_at`

// ProjectRepository handles persistence for projects and their default roles.
type ProjectRepository struct {
	db *sqlx.DB
}

func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// CreateWithDefaultRoles inserts the project and its three default roles in
// one transaction. Either all four rows exist afterwards or none do.
func (r *ProjectRepository) CreateWithDefaultRoles(ctx context.Context, project types.Project) (types.Project, []types.Role, error) {
	now := time.Now().UTC()
	project.CreatedAt = now
	project.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return types.Project{}, nil, err
	}
	defer tx.Rollback()

	insertProject := tx.Rebind(`
		INSERT INTO projects (name, description, public, owner_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`)
	err = tx.QueryRowxContext(
		ctx,
		insertProject,
		project.Name,
		project.Description,
		project.Public,
		project.OwnerID,
		project.CreatedAt,
		project.UpdatedAt,
	).Scan(&project.ID)
	if err != nil {
		return types.Project{}, nil, fmt.Errorf("insert project: %w", err)
	}

	insertRole := tx.Rebind(`
		INSERT INTO roles (role_name, role_desc, enabled, project_id)
		VALUES (?, ?, ?, ?)
		RETURNING ` + roleColumns)
	roles := make([]types.Role, 0, len(types.DefaultProjectRoles))
	for _, def := range types.DefaultProjectRoles {
		var role types.Role
		if err := tx.GetContext(ctx, &role, insertRole, string(def.Name), def.Description, true, project.ID); err != nil {
			return types.Project{}, nil, fmt.Errorf("insert role %s: %w", def.Name, err)
		}
		roles = append(roles, role)
	}

	if err := tx.Commit(); err != nil {
		return types.Project{}, nil, err
	}
	return project, roles, nil
}

func (r *ProjectRepository) Get(ctx context.Context, id int64) (types.Project, error) {
	query := r.db.Rebind(`SELECT ` + projectColumns + ` FROM projects WHERE id = ?`)
	var project types.Project
	if err := r.db.GetContext(ctx, &project, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Project{}, ErrNotFound
		}
		return types.Project{}, err
	}
	return project, nil
}

func (r *ProjectRepository) ListAll(ctx context.Context) ([]types.Project, error) {
	const query = `SELECT ` + projectColumns + ` FROM projects ORDER BY id`
	projects := []types.Project{}
	if err := r.db.SelectContext(ctx, &projects, query); err != nil {
		return nil, err
	}
	return projects, nil
}

// ListForMember returns the projects owned by ownerID together with the
// projects listed in memberOf, ordered by id.
func (r *ProjectRepository) ListForMember(ctx context.Context, ownerID int64, memberOf []int64) ([]types.Project, error) {
	var (
		query string
		args  []any
		err   error
	)
	if len(memberOf) == 0 {
		query = `SELECT ` + projectColumns + ` FROM projects WHERE owner_id = ? ORDER BY id`
		args = []any{ownerID}
	} else {
		query, args, err = sqlx.In(
			`SELECT `+projectColumns+` FROM projects WHERE owner_id = ? OR id IN (?) ORDER BY id`,
			ownerID, memberOf,
		)
		if err != nil {
			return nil, err
		}
	}

	projects := []types.Project{}
	if err := r.db.SelectContext(ctx, &projects, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return projects, nil
}

func (r *ProjectRepository) Update(ctx context.Context, project types.Project) (types.Project, error) {
	project.UpdatedAt = time.Now().UTC()

	query := r.db.Rebind(`
		UPDATE projects
		SET name = ?,
			description = ?,
			public = ?,
			updated_at = ?
		WHERE id = ?`)
	result, err := r.db.ExecContext(
		ctx,
		query,
		project.Name,
		project.Description,
		project.Public,
		project.UpdatedAt,
		project.ID,
	)
	if err != nil {
		return types.Project{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Project{}, err
	}
	if affected == 0 {
		return types.Project{}, ErrNotFound
	}
	return project, nil
}

// Delete removes the project. Its roles and their assignments cascade.
func (r *ProjectRepository) Delete(ctx context.Context, id int64) error {
	query := r.db.Rebind(`DELETE FROM projects WHERE id = ?`)
	result, err := r.db.ExecContext(ctx, query, id)
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
