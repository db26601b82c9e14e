// Package storetest opens throwaway SQLite databases carrying the same schema
// as the Postgres migrations, for repository and service tests.
package storetest

import (
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
	CREATE TABLE users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		email         TEXT NOT NULL UNIQUE,
		name          TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		refresh_token TEXT,
		is_verified   BOOLEAN NOT NULL DEFAULT 0,
		created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE projects (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		public      BOOLEAN NOT NULL DEFAULT 1,
		owner_id    INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE roles (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		role_name  TEXT NOT NULL CHECK (role_name IN ('super_admin', 'admin', 'user', 'prj_admin', 'prj_write', 'prj_read')),
		role_desc  TEXT NOT NULL DEFAULT '',
		enabled    BOOLEAN NOT NULL DEFAULT 1,
		project_id INTEGER REFERENCES projects (id) ON DELETE CASCADE
	);

	CREATE UNIQUE INDEX idx_roles_global_name ON roles (role_name) WHERE project_id IS NULL;
	CREATE UNIQUE INDEX idx_roles_project_name ON roles (project_id, role_name) WHERE project_id IS NOT NULL;

	CREATE TABLE operator_roles (
		user_id INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		role_id INTEGER NOT NULL REFERENCES roles (id) ON DELETE CASCADE,
		PRIMARY KEY (user_id, role_id)
	);

	INSERT INTO roles (role_name, role_desc) VALUES
		('super_admin', 'super admin'),
		('admin', 'admin'),
		('user', 'user');
`

// Open creates a temporary database with the schema applied. It is removed
// when the test completes.
func Open(t testing.TB) *sqlx.DB {
	t.Helper()

	f, err := os.CreateTemp("", "apiserver-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sqlx.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	// One connection keeps concurrent tests from tripping over SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("applying schema: %v", err)
	}
	return db
}

// InsertUser adds a user row directly and returns its id.
func InsertUser(t testing.TB, db *sqlx.DB, email, passwordHash string, verified bool) int64 {
	t.Helper()

	now := time.Now().UTC()
	var id int64
	err := db.QueryRowx(
		`INSERT INTO users (email, name, password_hash, is_verified, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		email, email, passwordHash, verified, now, now,
	).Scan(&id)
	if err != nil {
		t.Fatalf("inserting user %s: %v", email, err)
	}
	return id
}

// GlobalRoleID returns the id of a seeded global role.
func GlobalRoleID(t testing.TB, db *sqlx.DB, name string) int64 {
	t.Helper()

	var id int64
	if err := db.Get(&id, `SELECT id FROM roles WHERE role_name = ? AND project_id IS NULL`, name); err != nil {
		t.Fatalf("looking up role %s: %v", name, err)
	}
	return id
}

// ProjectRoleID returns the id of a project role.
func ProjectRoleID(t testing.TB, db *sqlx.DB, projectID int64, name string) int64 {
	t.Helper()

	var id int64
	if err := db.Get(&id, `SELECT id FROM roles WHERE role_name = ? AND project_id = ?`, name, projectID); err != nil {
		t.Fatalf("looking up role %s on project %d: %v", name, projectID, err)
	}
	return id
}

// Grant links a user to a role.
func Grant(t testing.TB, db *sqlx.DB, userID, roleID int64) {
	t.Helper()

	if _, err := db.Exec(`INSERT INTO operator_roles (user_id, role_id) VALUES (?, ?)`, userID, roleID); err != nil {
		t.Fatalf("granting role %d to user %d: %v", roleID, userID, err)
	}
}
