package model

import "time"

// AdminUser is an account allowed to manage passwords and view
// registrations. Admin capability requires BOTH a valid session token and
// a row in the admin_users table — deleting the row revokes access even
// while a token is still unexpired.
//
// PasswordHash is a bcrypt hash and is never serialized. The `json:"-"`
// tag tells encoding/json to skip the field entirely, so it can't leak
// through any handler that writes the struct.
type AdminUser struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}
