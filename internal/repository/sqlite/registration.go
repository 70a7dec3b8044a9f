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

// compile-time check that *DB implements repository.RegistrationRepository
var _ repository.RegistrationRepository = (*DB)(nil)

// InsertRegistration creates the registration row.
//
// The UNIQUE constraint on wallet_address is the authoritative "one
// registration per wallet" enforcement. The orchestrator pre-checks for
// duplicates to produce a friendly message without burning an insert, but
// two concurrent submissions can both pass that pre-check — only one of
// them survives this INSERT, and the loser gets the same ErrConflict the
// pre-check would have produced.
func (db *DB) InsertRegistration(ctx context.Context, reg *model.WhitelistRegistration) error {
	reg.ID = xid.New().String()
	reg.CreatedAt = time.Now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO whitelist_registrations
		   (id, wallet_address, discord_username, discord_verified, password_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		reg.ID,
		reg.WalletAddress,
		reg.DiscordUsername,
		reg.DiscordVerified,
		reg.PasswordID,
		reg.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("registration", "this wallet address is already registered")
		}
		return fmt.Errorf("sqlite: inserting registration: %w", err)
	}

	return nil
}

// GetRegistrationByWallet fetches the registration for a wallet address,
// exact match. Returns apperror.ErrNotFound when the wallet has not
// registered.
func (db *DB) GetRegistrationByWallet(ctx context.Context, wallet string) (*model.WhitelistRegistration, error) {
	var reg model.WhitelistRegistration
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, wallet_address, discord_username, discord_verified, password_id, created_at
		 FROM whitelist_registrations
		 WHERE wallet_address = ?`,
		wallet,
	).Scan(
		&reg.ID,
		&reg.WalletAddress,
		&reg.DiscordUsername,
		&reg.DiscordVerified,
		&reg.PasswordID,
		&reg.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("registration", wallet)
		}
		return nil, fmt.Errorf("sqlite: getting registration for wallet %s: %w", wallet, err)
	}

	return &reg, nil
}

// ListRegistrations returns registrations newest first, paginated for the
// admin viewer.
func (db *DB) ListRegistrations(ctx context.Context, opts repository.ListOptions) ([]model.WhitelistRegistration, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, wallet_address, discord_username, discord_verified, password_id, created_at
		 FROM whitelist_registrations
		 ORDER BY created_at DESC
		 LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing registrations: %w", err)
	}
	defer rows.Close()

	regs := make([]model.WhitelistRegistration, 0, limit)
	for rows.Next() {
		var r model.WhitelistRegistration
		if err := rows.Scan(
			&r.ID, &r.WalletAddress, &r.DiscordUsername,
			&r.DiscordVerified, &r.PasswordID, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning registration row: %w", err)
		}
		regs = append(regs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating registrations: %w", err)
	}

	return regs, nil
}

// SetDiscordVerified flips the discord_verified flag — the only mutation a
// registration ever receives after insert.
func (db *DB) SetDiscordVerified(ctx context.Context, id string, verified bool) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE whitelist_registrations SET discord_verified = ? WHERE id = ?`,
		verified, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating discord_verified for %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("registration", id)
	}

	return nil
}
