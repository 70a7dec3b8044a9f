// Package service contains the business rules of the whitelist registry.
//
// The layering follows the usual three-tier split:
//
//	Handler (HTTP)      → parses requests, writes responses, owns cookies
//	Service (this pkg)  → gates, orchestration, validation, admin rules
//	Repository (data)   → typed reads/writes against the store
//
// Services accept repository interfaces, not concrete types, so tests
// swap in in-memory mocks and the HTTP layer never touches SQL.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sakif/whitelist-registry/internal/auth"
)

// GateStatus is the tri-state outcome of a verification gate.
//
// Gates are explicit values passed to the orchestrator — never ambient
// flags. "error" is distinct from "unverified": an unverified gate tells
// the user what to do next (join the server, connect the wallet), while an
// errored gate tells them the check itself failed and to try again.
type GateStatus string

const (
	GateUnverified GateStatus = "unverified"
	GateVerified   GateStatus = "verified"
	GateError      GateStatus = "error"
)

// GateResult pairs a gate's status with the reason shown to the user when
// the gate is not verified.
type GateResult struct {
	Status GateStatus `json:"status"`
	Reason string     `json:"reason,omitempty"`
}

func Verified() GateResult {
	return GateResult{Status: GateVerified}
}

func Unverified(reason string) GateResult {
	return GateResult{Status: GateUnverified, Reason: reason}
}

func GateFailed(reason string) GateResult {
	return GateResult{Status: GateError, Reason: reason}
}

// VerificationService runs the social gates.
//
// Of the four gates only Discord has real enforcement. The wallet gate is
// the presence of a connected address (the wallet widget is entirely
// client-side), and the X gate is a click-through: following is
// self-reported and never confirmed against X's API.
type VerificationService struct {
	guilds      *auth.GuildChecker
	xProfileURL string
	logger      *slog.Logger
}

func NewVerificationService(guilds *auth.GuildChecker, xProfileURL string, logger *slog.Logger) *VerificationService {
	return &VerificationService{
		guilds:      guilds,
		xProfileURL: xProfileURL,
		logger:      logger,
	}
}

// XProfileURL returns the profile the visitor is asked to follow. The
// handler opens it client-side and marks the gate verified in the same
// action.
func (s *VerificationService) XProfileURL() string {
	return s.xProfileURL
}

// CheckDiscord evaluates the Discord gate for the given visitor session.
//
// Outcomes:
//   - no session / no provider token → unverified, "verify with Discord"
//   - token valid, not in the guild  → unverified, "join the server"
//   - token valid, in the guild     → verified
//   - Discord rejected the token    → unverified + auth.ErrTokenExpired;
//     the caller must clear the session cookie so the user re-authenticates
//   - any other API failure         → error status, non-fatal "try again"
//
// Only the expired-token case returns a non-nil error: it is the one
// outcome that demands a side effect (forced sign-out) from the caller.
func (s *VerificationService) CheckDiscord(ctx context.Context, sess *auth.Session) (GateResult, error) {
	if sess == nil || sess.ProviderToken == "" {
		return Unverified("please verify with Discord to continue"), nil
	}

	member, err := s.guilds.IsMember(ctx, sess.ProviderToken)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			s.logger.Info("discord token expired, forcing sign-out",
				slog.String("discordUser", sess.DiscordUsername),
			)
			return Unverified("your Discord session has expired, please verify again"), auth.ErrTokenExpired
		}
		s.logger.Error("discord membership check failed", slog.String("error", err.Error()))
		return GateFailed("error verifying Discord server membership, please try again"), nil
	}

	if !member {
		return Unverified("please join the required Discord server to continue"), nil
	}

	return Verified(), nil
}
