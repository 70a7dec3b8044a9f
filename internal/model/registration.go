package model

import "time"

// WhitelistRegistration is the durable record of one wallet's accepted
// submission. At most one registration exists per wallet address — the
// database enforces this with a UNIQUE constraint on wallet_address.
//
// PasswordID always references the community password row's ID, never the
// raw secret. DiscordUsername may be empty: the OAuth flow identifies the
// user by session, and the username is recorded only when known.
//
// A registration is created once and never updated afterwards, with one
// exception: DiscordVerified may flip to true when a deferred membership
// re-check completes after the initial insert.
type WhitelistRegistration struct {
	ID              string    `json:"id"`
	WalletAddress   string    `json:"walletAddress"`
	DiscordUsername string    `json:"discordUsername"`
	DiscordVerified bool      `json:"discordVerified"`
	PasswordID      string    `json:"passwordId"`
	CreatedAt       time.Time `json:"createdAt"`
}
