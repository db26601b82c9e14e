package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/devsketch/apiserver/types"
	"github.com/jmoiron/sqlx"
)

const userColumns = `id, email, name, password_hash, refresh_token, is_verified, created_at, updated_at`

// UserRepository handles persistence for users and their refresh token slot.
type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (types.User, error) {
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)
	var user types.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE email = ?`)
	var user types.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := r.db.Rebind(`
		INSERT INTO users (email, name, password_hash, is_verified, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`)
	err := r.db.QueryRowxContext(
		ctx,
		query,
		user.Email,
		user.Name,
		user.PasswordHash,
		user.IsVerified,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return types.User{}, ErrConflict
		}
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNoRow
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	query := r.db.Rebind(`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`)
	return r.execOne(ctx, query, passwordHash, time.Now().UTC(), id)
}

func (r *UserRepository) SetVerified(ctx context.Context, id int64, verified bool) error {
	query := r.db.Rebind(`UPDATE users SET is_verified = ?, updated_at = ? WHERE id = ?`)
	return r.execOne(ctx, query, verified, time.Now().UTC(), id)
}

// SetRefreshToken overwrites the user's refresh slot unconditionally.
func (r *UserRepository) SetRefreshToken(ctx context.Context, id int64, token string) error {
	query := r.db.Rebind(`UPDATE users SET refresh_token = ? WHERE id = ?`)
	return r.execOne(ctx, query, token, id)
}

// CompareAndSwapRefreshToken replaces the slot only while it still holds
// expected. It reports false when another writer got there first.
func (r *UserRepository) CompareAndSwapRefreshToken(ctx context.Context, id int64, expected, next string) (bool, error) {
	query := r.db.Rebind(`UPDATE users SET refresh_token = ? WHERE id = ? AND refresh_token = ?`)
	result, err := r.db.ExecContext(ctx, query, next, id, expected)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// ClearRefreshToken empties the slot. Clearing an empty slot is not an error.
func (r *UserRepository) ClearRefreshToken(ctx context.Context, id int64) error {
	query := r.db.Rebind(`UPDATE users SET refresh_token = NULL WHERE id = ?`)
	return r.execOne(ctx, query, id)
}

func (r *UserRepository) execOne(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
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
