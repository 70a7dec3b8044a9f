package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/whitelist-registry/internal/apperror"
	"github.com/sakif/whitelist-registry/internal/model"
	"github.com/sakif/whitelist-registry/internal/repository"
)

// compile-time check that *DB implements repository.PasswordRepository
var _ repository.PasswordRepository = (*DB)(nil)

// CreatePassword inserts a new community password. The caller's struct is
// filled in-place with the generated ID and timestamps.
func (db *DB) CreatePassword(ctx context.Context, p *model.CommunityPassword) error {
	p.ID = xid.New().String()
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO community_passwords
		   (id, secret, community_name, max_uses, current_uses, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.Secret,
		p.CommunityName,
		nullableInt(p.MaxUses),
		p.CurrentUses,
		p.Active,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating password: %w", err)
	}

	return nil
}

// FindActivePassword looks up the single active row matching the secret.
//
// SQLite TEXT comparison with `=` is byte-wise, so the match is
// case-sensitive by default — "Demo123" does not find "demo123". The
// active filter lives in the SQL, not in application code, so an inactive
// password can never leak through this method.
func (db *DB) FindActivePassword(ctx context.Context, secret string) (*model.CommunityPassword, error) {
	p, err := db.scanPassword(db.conn.QueryRowContext(ctx,
		`SELECT id, secret, community_name, max_uses, current_uses, active, created_at, updated_at
		 FROM community_passwords
		 WHERE secret = ? AND active = 1
		 LIMIT 1`,
		secret,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			// Do not echo the attempted secret back in the error.
			return nil, apperror.NotFound("active password", "matching secret")
		}
		return nil, fmt.Errorf("sqlite: finding active password: %w", err)
	}
	return p, nil
}

// GetPasswordByID retrieves a password row regardless of active state.
func (db *DB) GetPasswordByID(ctx context.Context, id string) (*model.CommunityPassword, error) {
	p, err := db.scanPassword(db.conn.QueryRowContext(ctx,
		`SELECT id, secret, community_name, max_uses, current_uses, active, created_at, updated_at
		 FROM community_passwords
		 WHERE id = ?`,
		id,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("password", id)
		}
		return nil, fmt.Errorf("sqlite: getting password %s: %w", id, err)
	}
	return p, nil
}

// ListPasswords returns every password, newest first, for the admin
// dashboard.
func (db *DB) ListPasswords(ctx context.Context) ([]model.CommunityPassword, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, secret, community_name, max_uses, current_uses, active, created_at, updated_at
		 FROM community_passwords
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing passwords: %w", err)
	}
	defer rows.Close()

	passwords := []model.CommunityPassword{}
	for rows.Next() {
		var p model.CommunityPassword
		var maxUses sql.NullInt64
		if err := rows.Scan(
			&p.ID, &p.Secret, &p.CommunityName, &maxUses,
			&p.CurrentUses, &p.Active, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning password row: %w", err)
		}
		p.MaxUses = intPointer(maxUses)
		passwords = append(passwords, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating passwords: %w", err)
	}

	return passwords, nil
}

// DeletePassword hard-deletes the row. Registrations that reference the
// password are untouched.
func (db *DB) DeletePassword(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM community_passwords WHERE id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting password %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("password", id)
	}

	return nil
}

// IncrementPasswordUse bumps the usage counter with the capacity guard in
// the UPDATE itself:
//
//	SET current_uses = current_uses + 1
//	WHERE id = ? AND (max_uses IS NULL OR current_uses < max_uses)
//
// The guard makes increment-past-capacity impossible even when two
// submissions race: SQLite serializes the writes and the second one
// matches zero rows. A zero-row result is then disambiguated — row missing
// entirely → NotFound, row present but full → LimitReached.
func (db *DB) IncrementPasswordUse(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE community_passwords
		 SET current_uses = current_uses + 1, updated_at = ?
		 WHERE id = ? AND (max_uses IS NULL OR current_uses < max_uses)`,
		time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: incrementing password use %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		var exists int
		err := db.conn.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM community_passwords WHERE id = ?`, id,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("sqlite: checking password %s: %w", id, err)
		}
		if exists == 0 {
			return apperror.NotFound("password", id)
		}
		return apperror.LimitReached("password", id)
	}

	return nil
}

// scanPassword reads one password row from a QueryRow result, translating
// the nullable max_uses column into the model's pointer field.
func (db *DB) scanPassword(row *sql.Row) (*model.CommunityPassword, error) {
	var p model.CommunityPassword
	var maxUses sql.NullInt64
	err := row.Scan(
		&p.ID, &p.Secret, &p.CommunityName, &maxUses,
		&p.CurrentUses, &p.Active, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.MaxUses = intPointer(maxUses)
	return &p, nil
}

func nullableInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPointer(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
