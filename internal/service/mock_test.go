package service

import (
	"context"
	"io"
	"log/slog"
	"strconv"

	"github.com/sakif/whitelist-registry/internal/apperror"
	"github.com/sakif/whitelist-registry/internal/model"
	"github.com/sakif/whitelist-registry/internal/repository"
)

// In-memory repository fakes. Error fields, when set, are returned from
// the corresponding method so tests can exercise failure paths without a
// real database.

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockPasswordRepo struct {
	passwords map[string]*model.CommunityPassword // keyed by ID
	nextID    int

	findErr      error
	incrementErr error

	incrementCalls int
}

func newMockPasswordRepo() *mockPasswordRepo {
	return &mockPasswordRepo{passwords: make(map[string]*model.CommunityPassword)}
}

func (m *mockPasswordRepo) CreatePassword(_ context.Context, p *model.CommunityPassword) error {
	m.nextID++
	p.ID = "pw-" + strconv.Itoa(m.nextID)
	cp := *p
	m.passwords[p.ID] = &cp
	return nil
}

func (m *mockPasswordRepo) FindActivePassword(_ context.Context, secret string) (*model.CommunityPassword, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, p := range m.passwords {
		if p.Secret == secret && p.Active {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("password", secret)
}

func (m *mockPasswordRepo) GetPasswordByID(_ context.Context, id string) (*model.CommunityPassword, error) {
	p, ok := m.passwords[id]
	if !ok {
		return nil, apperror.NotFound("password", id)
	}
	cp := *p
	return &cp, nil
}

func (m *mockPasswordRepo) ListPasswords(_ context.Context) ([]model.CommunityPassword, error) {
	out := make([]model.CommunityPassword, 0, len(m.passwords))
	for _, p := range m.passwords {
		out = append(out, *p)
	}
	return out, nil
}

func (m *mockPasswordRepo) DeletePassword(_ context.Context, id string) error {
	if _, ok := m.passwords[id]; !ok {
		return apperror.NotFound("password", id)
	}
	delete(m.passwords, id)
	return nil
}

func (m *mockPasswordRepo) IncrementPasswordUse(_ context.Context, id string) error {
	m.incrementCalls++
	if m.incrementErr != nil {
		return m.incrementErr
	}
	p, ok := m.passwords[id]
	if !ok {
		return apperror.NotFound("password", id)
	}
	if !p.HasCapacity() {
		return apperror.LimitReached("password", id)
	}
	p.CurrentUses++
	return nil
}

type mockRegistrationRepo struct {
	registrations map[string]*model.WhitelistRegistration // keyed by wallet
	nextID        int

	insertErr error

	lastListOpts repository.ListOptions
}

func newMockRegistrationRepo() *mockRegistrationRepo {
	return &mockRegistrationRepo{registrations: make(map[string]*model.WhitelistRegistration)}
}

func (m *mockRegistrationRepo) InsertRegistration(_ context.Context, reg *model.WhitelistRegistration) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	if _, ok := m.registrations[reg.WalletAddress]; ok {
		return apperror.Conflict("registration", "this wallet address is already registered")
	}
	m.nextID++
	reg.ID = "reg-" + strconv.Itoa(m.nextID)
	cp := *reg
	m.registrations[reg.WalletAddress] = &cp
	return nil
}

func (m *mockRegistrationRepo) GetRegistrationByWallet(_ context.Context, wallet string) (*model.WhitelistRegistration, error) {
	reg, ok := m.registrations[wallet]
	if !ok {
		return nil, apperror.NotFound("registration", wallet)
	}
	cp := *reg
	return &cp, nil
}

func (m *mockRegistrationRepo) ListRegistrations(_ context.Context, opts repository.ListOptions) ([]model.WhitelistRegistration, error) {
	m.lastListOpts = opts
	out := make([]model.WhitelistRegistration, 0, len(m.registrations))
	for _, reg := range m.registrations {
		out = append(out, *reg)
	}
	return out, nil
}

func (m *mockRegistrationRepo) SetDiscordVerified(_ context.Context, id string, verified bool) error {
	for _, reg := range m.registrations {
		if reg.ID == id {
			reg.DiscordVerified = verified
			return nil
		}
	}
	return apperror.NotFound("registration", id)
}

type mockAdminRepo struct {
	admins map[string]*model.AdminUser // keyed by ID
	nextID int
}

func newMockAdminRepo() *mockAdminRepo {
	return &mockAdminRepo{admins: make(map[string]*model.AdminUser)}
}

func (m *mockAdminRepo) CreateAdmin(_ context.Context, a *model.AdminUser) error {
	for _, existing := range m.admins {
		if existing.Email == a.Email {
			return apperror.Conflict("admin", "email already registered")
		}
	}
	m.nextID++
	a.ID = "admin-" + strconv.Itoa(m.nextID)
	cp := *a
	m.admins[a.ID] = &cp
	return nil
}

func (m *mockAdminRepo) GetAdminByID(_ context.Context, id string) (*model.AdminUser, error) {
	a, ok := m.admins[id]
	if !ok {
		return nil, apperror.NotFound("admin", id)
	}
	cp := *a
	return &cp, nil
}

func (m *mockAdminRepo) GetAdminByEmail(_ context.Context, email string) (*model.AdminUser, error) {
	for _, a := range m.admins {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("admin", email)
}

func (m *mockAdminRepo) CountAdmins(_ context.Context) (int, error) {
	return len(m.admins), nil
}
