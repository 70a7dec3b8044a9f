package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/whitelist-registry/internal/apperror"
	"github.com/sakif/whitelist-registry/internal/model"
	"github.com/sakif/whitelist-registry/internal/repository"
)

// compile-time check that *DB implements repository.AdminRepository
var _ repository.AdminRepository = (*DB)(nil)

// CreateAdmin inserts a new admin account. Emails are stored lowercased so
// login lookups don't depend on how the address was typed.
func (db *DB) CreateAdmin(ctx context.Context, a *model.AdminUser) error {
	a.ID = xid.New().String()
	a.Email = strings.ToLower(a.Email)
	a.CreatedAt = time.Now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO admin_users (id, email, password_hash, created_at)
		 VALUES (?, ?, ?, ?)`,
		a.ID, a.Email, a.PasswordHash, a.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("admin", "an admin with this email already exists")
		}
		return fmt.Errorf("sqlite: inserting admin: %w", err)
	}

	return nil
}

func (db *DB) GetAdminByID(ctx context.Context, id string) (*model.AdminUser, error) {
	var a model.AdminUser
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM admin_users WHERE id = ?`,
		id,
	).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("admin", id)
		}
		return nil, fmt.Errorf("sqlite: getting admin %s: %w", id, err)
	}

	return &a, nil
}

func (db *DB) GetAdminByEmail(ctx context.Context, email string) (*model.AdminUser, error) {
	email = strings.ToLower(email)

	var a model.AdminUser
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM admin_users WHERE email = ?`,
		email,
	).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("admin", email)
		}
		return nil, fmt.Errorf("sqlite: getting admin by email: %w", err)
	}

	return &a, nil
}

// CountAdmins reports how many admin accounts exist. The bootstrap flow
// uses this to decide whether first-run self-registration is still open.
func (db *DB) CountAdmins(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM admin_users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting admins: %w", err)
	}
	return n, nil
}
