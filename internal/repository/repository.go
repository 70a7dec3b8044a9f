// Package repository defines the typed storage contracts for the whitelist
// registry. The interfaces encode the access rules themselves — a service
// can't forget the active filter or the capacity guard, because the only
// methods available already apply them.
package repository

import (
	"context"

	"github.com/sakif/whitelist-registry/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// PasswordRepository stores community passwords.
type PasswordRepository interface {
	CreatePassword(ctx context.Context, p *model.CommunityPassword) error

	// FindActivePassword returns the one active row whose secret is an
	// exact, case-sensitive match. apperror.ErrNotFound when no active row
	// matches — inactive rows are invisible to this lookup by contract.
	FindActivePassword(ctx context.Context, secret string) (*model.CommunityPassword, error)

	GetPasswordByID(ctx context.Context, id string) (*model.CommunityPassword, error)
	ListPasswords(ctx context.Context) ([]model.CommunityPassword, error)

	// DeletePassword is a hard delete. Registrations referencing the row
	// keep their password_id unchanged (no cascade).
	DeletePassword(ctx context.Context, id string) error

	// IncrementPasswordUse bumps current_uses by one, atomically guarded
	// by the capacity ceiling: the update applies only while
	// max_uses IS NULL OR current_uses < max_uses. Returns
	// apperror.ErrLimitReached when the password is at capacity and
	// apperror.ErrNotFound when the row doesn't exist.
	IncrementPasswordUse(ctx context.Context, id string) error
}

// RegistrationRepository stores whitelist registrations.
type RegistrationRepository interface {
	// InsertRegistration creates the row. A duplicate wallet address
	// returns apperror.ErrConflict — the UNIQUE constraint is the
	// authoritative duplicate check; the orchestrator's pre-check only
	// gives a friendlier fast path.
	InsertRegistration(ctx context.Context, reg *model.WhitelistRegistration) error

	GetRegistrationByWallet(ctx context.Context, wallet string) (*model.WhitelistRegistration, error)

	// ListRegistrations returns registrations newest first.
	ListRegistrations(ctx context.Context, opts ListOptions) ([]model.WhitelistRegistration, error)

	// SetDiscordVerified updates the one mutable field of a registration,
	// used when a deferred membership re-check completes after insert.
	SetDiscordVerified(ctx context.Context, id string, verified bool) error
}

// AdminRepository stores admin accounts.
type AdminRepository interface {
	CreateAdmin(ctx context.Context, a *model.AdminUser) error
	GetAdminByID(ctx context.Context, id string) (*model.AdminUser, error)
	GetAdminByEmail(ctx context.Context, email string) (*model.AdminUser, error)
	CountAdmins(ctx context.Context) (int, error)
}
