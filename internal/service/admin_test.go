package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/whitelist-registry/internal/apperror"
	"github.com/sakif/whitelist-registry/internal/auth"
)

func newTestAdminService(t *testing.T) (*AdminService, *mockAdminRepo, *mockPasswordRepo, *mockRegistrationRepo) {
	t.Helper()
	admins := newMockAdminRepo()
	passwords := newMockPasswordRepo()
	registrations := newMockRegistrationRepo()

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars")
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}
	hasher := auth.NewPasswordServiceWithCost(4) // min bcrypt cost, fast in tests

	svc := NewAdminService(admins, passwords, registrations, tokens, hasher, discardLogger())
	return svc, admins, passwords, registrations
}

func bootstrapTestAdmin(t *testing.T, svc *AdminService) *AuthResult {
	t.Helper()
	res, err := svc.Bootstrap(context.Background(), "ops@example.com", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	return res
}

func TestBootstrap(t *testing.T) {
	svc, admins, _, _ := newTestAdminService(t)

	res := bootstrapTestAdmin(t, svc)
	if res.Admin.ID == "" {
		t.Error("Bootstrap() did not set the admin ID")
	}
	if res.Token == "" {
		t.Error("Bootstrap() did not issue a session token")
	}
	if n, _ := admins.CountAdmins(context.Background()); n != 1 {
		t.Errorf("CountAdmins() = %d after bootstrap, want 1", n)
	}
}

// Bootstrap is a one-shot door: it closes permanently once any admin
// exists.
func TestBootstrap_ClosedAfterFirstAdmin(t *testing.T) {
	svc, _, _, _ := newTestAdminService(t)
	bootstrapTestAdmin(t, svc)

	_, err := svc.Bootstrap(context.Background(), "second@example.com", "another-long-password")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("second Bootstrap() error = %v, want ErrConflict", err)
	}
}

func TestBootstrap_Validation(t *testing.T) {
	svc, _, _, _ := newTestAdminService(t)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"empty email", "", "a-long-enough-password"},
		{"not an email", "not-an-email", "a-long-enough-password"},
		{"short password", "ops@example.com", "short"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Bootstrap(context.Background(), tt.email, tt.password)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("Bootstrap() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	svc, _, _, _ := newTestAdminService(t)
	created := bootstrapTestAdmin(t, svc)

	res, err := svc.Login(context.Background(), "ops@example.com", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if res.Admin.ID != created.Admin.ID {
		t.Errorf("Login().Admin.ID = %q, want %q", res.Admin.ID, created.Admin.ID)
	}
	if res.Token == "" {
		t.Fatal("Login() did not issue a session token")
	}
}

// Unknown email and wrong password are indistinguishable to the caller.
func TestLogin_BadCredentials(t *testing.T) {
	svc, _, _, _ := newTestAdminService(t)
	bootstrapTestAdmin(t, svc)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"unknown email", "stranger@example.com", "correct-horse-battery"},
		{"wrong password", "ops@example.com", "wrong-password-here"},
		{"empty email", "", "correct-horse-battery"},
		{"empty password", "ops@example.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), tt.email, tt.password)
			if !errors.Is(err, apperror.ErrUnauthorized) {
				t.Errorf("Login() error = %v, want ErrUnauthorized", err)
			}
			var appErr *apperror.AppError
			if errors.As(err, &appErr) && appErr.Message != "invalid email or password" {
				t.Errorf("Login() message = %q, want the generic one", appErr.Message)
			}
		})
	}
}

func TestCreatePassword(t *testing.T) {
	svc, _, passwords, _ := newTestAdminService(t)

	maxUses := 50
	p, err := svc.CreatePassword(context.Background(), "  Degen DAO  ", "alpha-pass", &maxUses)
	if err != nil {
		t.Fatalf("CreatePassword() error = %v", err)
	}
	if p.CommunityName != "Degen DAO" {
		t.Errorf("CommunityName = %q, want trimmed", p.CommunityName)
	}
	if !p.Active {
		t.Error("new password not active")
	}
	if p.CurrentUses != 0 {
		t.Errorf("CurrentUses = %d, want 0", p.CurrentUses)
	}
	if len(passwords.passwords) != 1 {
		t.Errorf("stored %d passwords, want 1", len(passwords.passwords))
	}
}

func TestCreatePassword_Unlimited(t *testing.T) {
	svc, _, _, _ := newTestAdminService(t)

	p, err := svc.CreatePassword(context.Background(), "Open House", "come-on-in", nil)
	if err != nil {
		t.Fatalf("CreatePassword() error = %v", err)
	}
	if p.MaxUses != nil {
		t.Errorf("MaxUses = %v, want nil for unlimited", *p.MaxUses)
	}
}

func TestCreatePassword_Validation(t *testing.T) {
	svc, _, _, _ := newTestAdminService(t)

	zero := 0
	negative := -3
	tests := []struct {
		name      string
		community string
		secret    string
		maxUses   *int
	}{
		{"empty community name", "", "secret", nil},
		{"empty secret", "Community", "", nil},
		{"zero max uses", "Community", "secret", &zero},
		{"negative max uses", "Community", "secret", &negative},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreatePassword(context.Background(), tt.community, tt.secret, tt.maxUses)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("CreatePassword() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestDeletePassword(t *testing.T) {
	svc, _, passwords, _ := newTestAdminService(t)
	p, err := svc.CreatePassword(context.Background(), "Community", "secret", nil)
	if err != nil {
		t.Fatalf("CreatePassword() error = %v", err)
	}

	if err := svc.DeletePassword(context.Background(), p.ID); err != nil {
		t.Fatalf("DeletePassword() error = %v", err)
	}
	if len(passwords.passwords) != 0 {
		t.Error("password still stored after delete")
	}

	if err := svc.DeletePassword(context.Background(), p.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("DeletePassword() again error = %v, want ErrNotFound", err)
	}
	if err := svc.DeletePassword(context.Background(), "  "); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("DeletePassword(blank) error = %v, want ErrValidation", err)
	}
}

func TestListRegistrations_ClampsLimits(t *testing.T) {
	svc, _, _, registrations := newTestAdminService(t)

	tests := []struct {
		name                  string
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{"defaults", 0, 0, 20, 0},
		{"negative", -5, -2, 20, 0},
		{"over cap", 5000, 10, 100, 10},
		{"in range", 30, 60, 30, 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.ListRegistrations(context.Background(), tt.limit, tt.offset); err != nil {
				t.Fatalf("ListRegistrations() error = %v", err)
			}
			got := registrations.lastListOpts
			if got.Limit != tt.wantLimit || got.Offset != tt.wantOffset {
				t.Errorf("opts = {%d %d}, want {%d %d}", got.Limit, got.Offset, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}
