package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// DiscordUser is the portion of the Discord /users/@me response we care
// about. Discord returns a much larger object — we only unmarshal what we
// need.
//
// Discord API docs: https://discord.com/developers/docs/resources/user
type DiscordUser struct {
	ID       string `json:"id"`       // Discord's snowflake user ID, as a string
	Username string `json:"username"` // e.g. "gaibfan"
	Avatar   string `json:"avatar"`   // avatar hash, may be empty
}

// DiscordProvider wraps golang.org/x/oauth2 for the Discord Authorization
// Code flow.
//
// FLOW:
//  1. The server redirects the visitor to Discord's authorization endpoint
//     with our ClientID and the requested scopes.
//  2. The visitor approves on Discord.
//  3. Discord redirects back to our callback URL with a short-lived code.
//  4. The server exchanges the code for an access token (server-to-server,
//     using the ClientSecret — the token never touches the browser as such;
//     it travels onward only inside the signed session cookie).
//  5. The server calls /users/@me with the token to identify the visitor.
//
// The "guilds" scope matters: the registration flow later calls
// /users/@me/guilds with the same token to confirm membership of the
// target community server.
type DiscordProvider struct {
	config *oauth2.Config
}

// NewDiscordProvider creates a DiscordProvider with the given credentials.
//
// ClientID and ClientSecret come from a Discord application registered at
// https://discord.com/developers/applications. callbackURL must exactly
// match one of the app's configured redirect URIs, e.g.
// "http://localhost:8080/auth/callback".
func NewDiscordProvider(clientID, clientSecret, callbackURL string) *DiscordProvider {
	return &DiscordProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"identify", "guilds"},
			Endpoint:     endpoints.Discord,
		},
	}
}

// AuthURL returns the URL to redirect the visitor to for authorization.
//
// The state is a random nonce stored in a short-lived cookie before the
// redirect; the callback handler verifies the returned state matches the
// cookie, which stops CSRF attacks from completing an OAuth flow the user
// never started.
func (p *DiscordProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange completes the OAuth flow: trades the authorization code for the
// visitor's Discord profile and access token.
//
// The returned token is what the guild-membership check uses later, so the
// caller must keep it (the auth handler folds it into the visitor session).
func (p *DiscordProvider) Exchange(ctx context.Context, code string) (*DiscordUser, *oauth2.Token, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// oauth2.Config.Client returns an *http.Client that adds the
	// "Authorization: Bearer <token>" header to every request.
	client := p.config.Client(ctx, oauthToken)

	resp, err := client.Get("https://discord.com/api/users/@me")
	if err != nil {
		return nil, nil, fmt.Errorf("auth: calling Discord /users/@me: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("auth: Discord /users/@me returned status %d", resp.StatusCode)
	}

	var du DiscordUser
	if err := json.NewDecoder(resp.Body).Decode(&du); err != nil {
		return nil, nil, fmt.Errorf("auth: decoding Discord /users/@me response: %w", err)
	}

	if du.ID == "" {
		return nil, nil, fmt.Errorf("auth: Discord returned an invalid user (empty ID)")
	}

	return &du, oauthToken, nil
}
