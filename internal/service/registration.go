package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/whitelist-registry/internal/apperror"
	"github.com/sakif/whitelist-registry/internal/model"
	"github.com/sakif/whitelist-registry/internal/repository"
)

// PasswordCheck is the outcome of a community-password verification.
// PasswordID is set only when Valid — it is the reference the submission
// later stores and increments, so callers never need the raw secret again.
type PasswordCheck struct {
	Valid      bool   `json:"valid"`
	PasswordID string `json:"passwordId,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Gates is the full set of verification gate states presented with a
// submission. The orchestrator owns the decision; handlers only collect
// the raw inputs (wallet address from the request, X flag from its cookie,
// Discord result from the server-side check).
type Gates struct {
	WalletAddress   string
	XFollowed       bool
	Discord         GateResult
	DiscordUsername string
}

// RegistrationService is the registration orchestrator: it composes the
// four gates and runs the submission sequence against the store.
type RegistrationService struct {
	passwords     repository.PasswordRepository
	registrations repository.RegistrationRepository
	logger        *slog.Logger
}

func NewRegistrationService(
	passwords repository.PasswordRepository,
	registrations repository.RegistrationRepository,
	logger *slog.Logger,
) *RegistrationService {
	return &RegistrationService{
		passwords:     passwords,
		registrations: registrations,
		logger:        logger,
	}
}

// VerifyPassword checks a community password: exactly one active row whose
// secret matches byte-for-byte, with capacity remaining.
//
// Invalid secrets produce a Valid=false result, not an error — a wrong
// guess is a normal outcome, and the caller renders the reason. Errors are
// reserved for the store failing. The check is stateless, so a client
// editing the secret after a successful check cannot carry the old result
// forward: Submit re-verifies from scratch regardless.
//
// There is deliberately no rate limit or lockout here, matching the
// product's current posture; the secret is a community gate, not an
// account credential.
func (s *RegistrationService) VerifyPassword(ctx context.Context, secret string) (*PasswordCheck, error) {
	if secret == "" {
		return nil, apperror.ValidationFailed("secret", "community password is required")
	}

	p, err := s.passwords.FindActivePassword(ctx, secret)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return &PasswordCheck{Valid: false, Reason: "invalid community password"}, nil
		}
		s.logger.Error("password lookup failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("verifying password: %w", err)
	}

	if !p.HasCapacity() {
		return &PasswordCheck{Valid: false, Reason: "this password has reached its maximum usage limit"}, nil
	}

	return &PasswordCheck{Valid: true, PasswordID: p.ID}, nil
}

// Submit runs the registration sequence. All four gates must hold, then:
//
//  1. Re-fetch the password by secret and re-validate active + capacity.
//     The earlier VerifyPassword call may be minutes stale; this narrows
//     the check-to-insert window to a single request.
//  2. Pre-check for an existing registration on this wallet, for a clean
//     "already registered" outcome without attempting the insert.
//  3. Insert. The store's UNIQUE constraint backstops the pre-check: a
//     concurrent duplicate comes back as the same ErrConflict.
//  4. Increment the password's usage counter via the guarded atomic
//     update. A failure here is logged and swallowed — the registration
//     is already durable and authoritative, and losing one counter tick
//     is preferable to failing a completed registration.
//
// None of the failures retry; the caller re-triggers submission manually.
func (s *RegistrationService) Submit(ctx context.Context, gates Gates, secret string) (*model.WhitelistRegistration, error) {
	wallet := strings.TrimSpace(gates.WalletAddress)
	if wallet == "" {
		return nil, apperror.ValidationFailed("walletAddress", "please connect your wallet to register")
	}
	if !gates.XFollowed {
		return nil, apperror.ValidationFailed("x", "please follow us on X first")
	}
	if gates.Discord.Status != GateVerified {
		reason := gates.Discord.Reason
		if reason == "" {
			reason = "please verify your Discord membership first"
		}
		return nil, apperror.ValidationFailed("discord", reason)
	}

	// Step 1: re-validate the password at submission time.
	p, err := s.passwords.FindActivePassword(ctx, secret)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.ValidationFailed("secret", "please verify your community password first")
		}
		return nil, fmt.Errorf("re-checking password: %w", err)
	}
	if !p.HasCapacity() {
		return nil, apperror.LimitReached("password", p.ID)
	}

	// Step 2: duplicate pre-check.
	if _, err := s.registrations.GetRegistrationByWallet(ctx, wallet); err == nil {
		return nil, apperror.Conflict("registration", "this wallet address is already registered")
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("checking existing registration: %w", err)
	}

	// Step 3: insert. ErrConflict from the constraint gets the same
	// treatment as the pre-check hit.
	reg := &model.WhitelistRegistration{
		WalletAddress:   wallet,
		DiscordUsername: gates.DiscordUsername,
		DiscordVerified: true,
		PasswordID:      p.ID,
	}
	if err := s.registrations.InsertRegistration(ctx, reg); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		s.logger.Error("registration insert failed",
			slog.String("wallet", wallet),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("inserting registration: %w", err)
	}

	// Step 4: best-effort counter increment. The one accepted silent
	// partial failure in the app.
	if err := s.passwords.IncrementPasswordUse(ctx, p.ID); err != nil {
		s.logger.Warn("password use counter not incremented",
			slog.String("passwordID", p.ID),
			slog.String("registrationID", reg.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("registration accepted",
		slog.String("registrationID", reg.ID),
		slog.String("wallet", wallet),
		slog.String("passwordID", p.ID),
	)

	return reg, nil
}

// ConfirmDiscord records the outcome of a deferred Discord re-check
// against an existing registration — the flag flip that happens when a
// sign-in event completes after the initial insert.
func (s *RegistrationService) ConfirmDiscord(ctx context.Context, registrationID string, verified bool) error {
	if registrationID == "" {
		return apperror.ValidationFailed("id", "registration ID is required")
	}

	if err := s.registrations.SetDiscordVerified(ctx, registrationID, verified); err != nil {
		return err
	}

	s.logger.Info("discord verification updated",
		slog.String("registrationID", registrationID),
		slog.Bool("verified", verified),
	)
	return nil
}
