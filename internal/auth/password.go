package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor for admin credentials.
//
// Cost 12 takes roughly 250ms on current server hardware — negligible for
// the handful of admin logins this app sees, brutal for offline cracking.
// Note this applies to ADMIN passwords only; community passwords are
// shared secrets compared in the database, not credentials, and are
// stored as entered so admins can read them back from the dashboard.
const defaultCost = 12

// PasswordService provides bcrypt hashing and verification for admin
// credentials. It's a struct rather than free functions so the cost can be
// lowered in tests (cost 4 runs in milliseconds).
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the default cost.
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceWithCost creates a PasswordService with a custom cost.
// Intended for tests; do not lower the cost in production.
func NewPasswordServiceWithCost(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash hashes the given plaintext with bcrypt. The output embeds the salt
// and cost, so it can be stored as a single column and verified later
// without any extra bookkeeping.
//
// Plaintexts longer than 72 bytes are rejected: bcrypt silently truncates
// at 72, and silent truncation of a password is worse than an error.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		return "", fmt.Errorf("auth: password must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify checks a plaintext against a stored bcrypt hash. Returns nil on
// match. bcrypt's comparison is constant-time, so response timing doesn't
// leak how close a guess was.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("auth: invalid password")
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
