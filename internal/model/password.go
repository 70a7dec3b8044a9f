// Package model defines the data structures used throughout the application.
package model

import "time"

// CommunityPassword is a shared secret that admits members of one community
// to whitelist registration.
//
// WHY MaxUses *int (a pointer)?
// A password may be capacity-limited or unlimited. We need three-valued
// semantics: "no limit" vs "limit of N". A plain int can't distinguish
// "no limit" from "limit of 0", so we use a nil pointer for unlimited.
// This mirrors the nullable max_uses column in the database.
//
// Invariants:
//   - CurrentUses never exceeds MaxUses when MaxUses is set. The store
//     enforces this with a guarded UPDATE (see sqlite.IncrementPasswordUse).
//   - Active=false passwords never validate, regardless of capacity.
//   - CurrentUses is only ever mutated by a successful registration.
type CommunityPassword struct {
	ID            string    `json:"id"`
	Secret        string    `json:"secret"` // the password value itself; shown in the admin list
	CommunityName string    `json:"communityName"`
	MaxUses       *int      `json:"maxUses"` // nil = unlimited
	CurrentUses   int       `json:"currentUses"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// HasCapacity reports whether the password can admit one more registration.
func (p *CommunityPassword) HasCapacity() bool {
	return p.MaxUses == nil || p.CurrentUses < *p.MaxUses
}
