// Package sqlite implements the repository interfaces on an embedded
// SQLite database.
//
// WHY SQLITE?
// The registry is a single-server app with a handful of tables and modest
// write volume. An embedded database means no separate server to run, a
// single file to back up, and ":memory:" databases for fast tests.
//
// WHY modernc.org/sqlite?
// It's a pure-Go translation of SQLite — no CGo, no C toolchain, trivial
// cross-compilation. Importing the package registers the "sqlite" driver
// with database/sql; we also use its Error type to detect constraint
// violations by code instead of by message text.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB wraps the sql.DB pool and implements the repository interfaces
// (compile-time checks sit next to each implementation file).
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
// Use ":memory:" for an in-memory database in tests.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Force a real connection now — a bad path or permissions problem
	// should fail here, not on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets reads proceed while a write is in flight — without it the
	// whole file locks on every registration insert.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// SQLite ships with foreign keys off; the registrations → passwords
	// reference is intentionally NOT a foreign key (deleting a password
	// must not cascade), but we enable enforcement for anything added
	// later.
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

// Close closes the connection pool. Callers should defer this right after
// New so the WAL is flushed and the file lock released on shutdown.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps this
// idempotent, so it's safe on every startup.
//
// Deliberate schema choices:
//   - whitelist_registrations.wallet_address is UNIQUE: this constraint is
//     the real duplicate protection; application pre-checks are advisory.
//   - whitelist_registrations.password_id is a plain TEXT column, not a
//     foreign key: admins may hard-delete a password while registrations
//     that used it live on with the stored reference intact.
//   - community_passwords.secret is looked up, not declared unique: two
//     communities could in principle share a secret string; the active
//     lookup returns the first match.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS community_passwords (
			id             TEXT PRIMARY KEY,
			secret         TEXT NOT NULL,
			community_name TEXT NOT NULL,
			max_uses       INTEGER,
			current_uses   INTEGER NOT NULL DEFAULT 0,
			active         INTEGER NOT NULL DEFAULT 1,
			created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_passwords_secret ON community_passwords(secret);
	`)
	if err != nil {
		return fmt.Errorf("creating community_passwords table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS whitelist_registrations (
			id               TEXT PRIMARY KEY,
			wallet_address   TEXT NOT NULL UNIQUE,
			discord_username TEXT NOT NULL DEFAULT '',
			discord_verified INTEGER NOT NULL DEFAULT 0,
			password_id      TEXT NOT NULL,
			created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_registrations_created_at ON whitelist_registrations(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating whitelist_registrations table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS admin_users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating admin_users table: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err is SQLite's UNIQUE constraint
// failure. We check the driver's error code rather than matching message
// substrings, so the detection survives driver message changes.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
