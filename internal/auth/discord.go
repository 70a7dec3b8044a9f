package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrTokenExpired signals that Discord rejected the provider access token
// (401). The caller must invalidate the visitor session so the user
// re-authenticates — retrying with the same token can never succeed.
var ErrTokenExpired = errors.New("auth: discord token expired or revoked")

// discordAPIBase is the production Discord REST API root. Tests override
// GuildChecker.BaseURL with an httptest server.
const discordAPIBase = "https://discord.com/api"

// guild is one entry of the /users/@me/guilds response.
type guild struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GuildChecker confirms membership of the target Discord server using a
// visitor's delegated access token.
//
// This is the only gate with real server-side enforcement: it lists the
// guilds the token's user belongs to and compares IDs against the
// configured community server. A matching guild means verified; a clean
// response without a match means the user still has to join.
type GuildChecker struct {
	GuildID string       // snowflake ID of the community server
	BaseURL string       // defaults to the Discord API; overridable in tests
	Client  *http.Client // defaults to a client with a 10s timeout
}

// NewGuildChecker creates a GuildChecker for the given server ID.
func NewGuildChecker(guildID string) *GuildChecker {
	return &GuildChecker{
		GuildID: guildID,
		BaseURL: discordAPIBase,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// IsMember reports whether the token's user belongs to the target guild.
//
// Error semantics:
//   - 401 from Discord → ErrTokenExpired (caller must force a sign-out)
//   - any other non-200 → a plain error, surfaced as "please try again"
//   - 200 without the guild → (false, nil): the user must join first
func (c *GuildChecker) IsMember(ctx context.Context, accessToken string) (bool, error) {
	if accessToken == "" {
		return false, fmt.Errorf("auth: empty discord access token")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/users/@me/guilds", nil)
	if err != nil {
		return false, fmt.Errorf("auth: building guilds request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.Client.Do(req)
	if err != nil {
		return false, fmt.Errorf("auth: calling Discord guilds API: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		// Drain the body so the connection can be reused, then report the
		// token as dead.
		io.Copy(io.Discard, resp.Body)
		return false, ErrTokenExpired
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("auth: Discord guilds API returned status %d: %s", resp.StatusCode, body)
	}

	var guilds []guild
	if err := json.NewDecoder(resp.Body).Decode(&guilds); err != nil {
		return false, fmt.Errorf("auth: decoding guilds response: %w", err)
	}

	for _, g := range guilds {
		if g.ID == c.GuildID {
			return true, nil
		}
	}
	return false, nil
}
