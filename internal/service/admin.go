package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/whitelist-registry/internal/apperror"
	"github.com/sakif/whitelist-registry/internal/auth"
	"github.com/sakif/whitelist-registry/internal/model"
	"github.com/sakif/whitelist-registry/internal/repository"
)

const (
	MaxCommunityNameLength = 100
	MaxSecretLength        = 200
	MinAdminPasswordLength = 12
)

// AdminService holds the admin-side rules: login, first-run bootstrap,
// password CRUD, and the registration viewer.
type AdminService struct {
	admins        repository.AdminRepository
	passwords     repository.PasswordRepository
	registrations repository.RegistrationRepository
	tokens        *auth.TokenService
	hasher        *auth.PasswordService
	logger        *slog.Logger
}

func NewAdminService(
	admins repository.AdminRepository,
	passwords repository.PasswordRepository,
	registrations repository.RegistrationRepository,
	tokens *auth.TokenService,
	hasher *auth.PasswordService,
	logger *slog.Logger,
) *AdminService {
	return &AdminService{
		admins:        admins,
		passwords:     passwords,
		registrations: registrations,
		tokens:        tokens,
		hasher:        hasher,
		logger:        logger,
	}
}

// AuthResult bundles the admin record and the issued session token so the
// handler can set the cookie and respond in one step.
type AuthResult struct {
	Admin *model.AdminUser
	Token string
}

// Login authenticates an admin by email and password.
//
// Unknown email and wrong password both return the same Unauthorized
// message, so the endpoint doesn't confirm which admin emails exist.
// Admin capability remains conditional on the admin row existing at
// request time — the middleware re-checks it on every admin call.
func (s *AdminService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperror.Unauthorized("invalid email or password")
	}

	admin, err := s.admins.GetAdminByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("invalid email or password")
		}
		return nil, fmt.Errorf("looking up admin: %w", err)
	}

	if err := s.hasher.Verify(admin.PasswordHash, password); err != nil {
		s.logger.Warn("failed admin login", slog.String("email", admin.Email))
		return nil, apperror.Unauthorized("invalid email or password")
	}

	token, err := s.tokens.GenerateAdmin(admin.ID)
	if err != nil {
		return nil, fmt.Errorf("issuing admin session: %w", err)
	}

	s.logger.Info("admin logged in", slog.String("adminID", admin.ID))
	return &AuthResult{Admin: admin, Token: token}, nil
}

// Bootstrap creates the first admin account. It is open only while the
// admin table is empty — once any admin exists the flow closes with a
// conflict.
func (s *AdminService) Bootstrap(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperror.ValidationFailed("email", "a valid email address is required")
	}
	if len(password) < MinAdminPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("admin password must be at least %d characters", MinAdminPasswordLength))
	}

	n, err := s.admins.CountAdmins(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting admins: %w", err)
	}
	if n > 0 {
		return nil, apperror.Conflict("admin", "an admin account already exists")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hashing admin password: %w", err)
	}

	admin := &model.AdminUser{Email: email, PasswordHash: hash}
	if err := s.admins.CreateAdmin(ctx, admin); err != nil {
		return nil, fmt.Errorf("creating admin: %w", err)
	}

	token, err := s.tokens.GenerateAdmin(admin.ID)
	if err != nil {
		return nil, fmt.Errorf("issuing admin session: %w", err)
	}

	s.logger.Info("admin bootstrapped", slog.String("adminID", admin.ID))
	return &AuthResult{Admin: admin, Token: token}, nil
}

// CreatePassword creates a community password. maxUses nil means
// unlimited; when present it must be a positive integer.
func (s *AdminService) CreatePassword(ctx context.Context, communityName, secret string, maxUses *int) (*model.CommunityPassword, error) {
	communityName = strings.TrimSpace(communityName)
	if communityName == "" {
		return nil, apperror.ValidationFailed("communityName", "community name is required")
	}
	if len(communityName) > MaxCommunityNameLength {
		return nil, apperror.ValidationFailed("communityName",
			fmt.Sprintf("community name must be %d characters or less", MaxCommunityNameLength))
	}
	// The secret is matched byte-for-byte at verification time, so it is
	// stored exactly as entered — no trimming.
	if secret == "" {
		return nil, apperror.ValidationFailed("secret", "password is required")
	}
	if len(secret) > MaxSecretLength {
		return nil, apperror.ValidationFailed("secret",
			fmt.Sprintf("password must be %d characters or less", MaxSecretLength))
	}
	if maxUses != nil && *maxUses <= 0 {
		return nil, apperror.ValidationFailed("maxUses", "maximum uses must be a positive number")
	}

	p := &model.CommunityPassword{
		Secret:        secret,
		CommunityName: communityName,
		MaxUses:       maxUses,
		CurrentUses:   0,
		Active:        true,
	}
	if err := s.passwords.CreatePassword(ctx, p); err != nil {
		s.logger.Error("password create failed",
			slog.String("community", communityName),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating password: %w", err)
	}

	s.logger.Info("community password created",
		slog.String("passwordID", p.ID),
		slog.String("community", communityName),
	)
	return p, nil
}

func (s *AdminService) ListPasswords(ctx context.Context) ([]model.CommunityPassword, error) {
	passwords, err := s.passwords.ListPasswords(ctx)
	if err != nil {
		s.logger.Error("password list failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing passwords: %w", err)
	}
	return passwords, nil
}

// DeletePassword hard-deletes a password. Registrations that used it are
// untouched — their stored password_id simply no longer resolves.
func (s *AdminService) DeletePassword(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "password ID is required")
	}

	if err := s.passwords.DeletePassword(ctx, id); err != nil {
		return err
	}

	s.logger.Info("community password deleted", slog.String("passwordID", id))
	return nil
}

// ListRegistrations returns the read-only recency-ordered view for the
// admin dashboard. Limits are clamped to keep a single request from
// dragging the whole table over the wire.
func (s *AdminService) ListRegistrations(ctx context.Context, limit, offset int) ([]model.WhitelistRegistration, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	regs, err := s.registrations.ListRegistrations(ctx, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		s.logger.Error("registration list failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing registrations: %w", err)
	}
	return regs, nil
}
