// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which means you need a C compiler installed and
// cross-compilation becomes painful. modernc.org/sqlite is a pure Go translation
// of the SQLite C code: no C compiler needed, works everywhere Go works.
//
// SEARCH AND CASE FOLDING:
// Every match query filters on fold_case(column) LIKE ? ESCAPE '\'. SQLite's own
// lower() and LIKE only fold ASCII, so "Émile" would never match "émile".
// fold_case is a Go function registered with the driver that applies
// strings.ToLower, the same folding the search patterns get, so both sides of
// the LIKE are already lower-case and non-ASCII letters compare byte for byte.
//
// None of these queries use an index on the matched column: the LIKE
// optimization needs a plain indexed column, not an expression. Each query is
// scoped by course through idx_enrollments_course_state, so the scan only
// covers one course roster.
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"

	"modernc.org/sqlite"

	"github.com/sakif/roster-search/internal/model"
)

// foldCaseFunc is the SQL name of the Unicode-aware lower-casing function.
const foldCaseFunc = "fold_case"

func init() {
	// Registration is process wide and applies to every connection opened
	// afterwards, so it has to happen before New.
	sqlite.MustRegisterDeterministicScalarFunction(foldCaseFunc, 1, foldCase)
}

// foldCase lower-cases TEXT and BLOB values with strings.ToLower. NULL stays
// NULL so "sis_user_id IS NOT NULL" style filters keep working.
func foldCase(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return nil, fmt.Errorf("%s: unsupported argument type %T", foldCaseFunc, v)
	}
}

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/roster.db"  → file-based database (persistent)
//   - ":memory:"        → in-memory database (great for tests, lost on close)
//
// ONE CONNECTION:
// Each connection to ":memory:" gets its own private database, and SQLite
// serialises writers anyway, so the pool is pinned to a single connection.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL mode lets readers proceed while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite (for backwards compatibility).
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the database is still reachable. Used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent, so
// it runs on every start.
func (db *DB) migrate() error {
	steps := []struct {
		name string
		sql  string
	}{
		{"users", `
			CREATE TABLE IF NOT EXISTS users (
				id            INTEGER PRIMARY KEY AUTOINCREMENT,
				name          TEXT NOT NULL,
				sortable_name TEXT NOT NULL DEFAULT '',
				created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			DROP INDEX IF EXISTS idx_users_lower_name;
		`},
		{"courses", `
			CREATE TABLE IF NOT EXISTS courses (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				name       TEXT NOT NULL,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
		`},
		// Built-in roles are rows too, so custom and built-in names resolve
		// through the same lookup.
		{"roles", `
			CREATE TABLE IF NOT EXISTS roles (
				name      TEXT PRIMARY KEY,
				base_type TEXT NOT NULL
			);
		`},
		{"enrollments", `
			CREATE TABLE IF NOT EXISTS enrollments (
				id             TEXT PRIMARY KEY,
				user_id        INTEGER NOT NULL REFERENCES users(id),
				course_id      INTEGER NOT NULL REFERENCES courses(id),
				type           TEXT NOT NULL,
				role_name      TEXT NOT NULL REFERENCES roles(name),
				workflow_state TEXT NOT NULL DEFAULT 'active',
				created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_enrollments_course_state
				ON enrollments(course_id, workflow_state);
			CREATE INDEX IF NOT EXISTS idx_enrollments_user ON enrollments(user_id);
		`},
		{"pseudonyms", `
			CREATE TABLE IF NOT EXISTS pseudonyms (
				id             TEXT PRIMARY KEY,
				user_id        INTEGER NOT NULL REFERENCES users(id),
				unique_id      TEXT NOT NULL,
				sis_user_id    TEXT,
				workflow_state TEXT NOT NULL DEFAULT 'active'
			);
			CREATE INDEX IF NOT EXISTS idx_pseudonyms_user ON pseudonyms(user_id);
			DROP INDEX IF EXISTS idx_pseudonyms_lower_sis;
		`},
		{"communication_channels", `
			CREATE TABLE IF NOT EXISTS communication_channels (
				id             TEXT PRIMARY KEY,
				user_id        INTEGER NOT NULL REFERENCES users(id),
				path           TEXT NOT NULL,
				path_type      TEXT NOT NULL DEFAULT 'email',
				workflow_state TEXT NOT NULL DEFAULT 'active'
			);
			CREATE INDEX IF NOT EXISTS idx_channels_user ON communication_channels(user_id);
		`},
		{"settings", `
			CREATE TABLE IF NOT EXISTS settings (
				name       TEXT PRIMARY KEY,
				value      TEXT NOT NULL,
				updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
		`},
	}

	for _, step := range steps {
		if _, err := db.conn.Exec(step.sql); err != nil {
			return fmt.Errorf("creating %s table: %w", step.name, err)
		}
	}

	for _, base := range model.BaseEnrollmentTypes {
		if _, err := db.conn.Exec(
			`INSERT OR IGNORE INTO roles (name, base_type) VALUES (?, ?)`, base, base,
		); err != nil {
			return fmt.Errorf("seeding role %s: %w", base, err)
		}
	}

	return nil
}
