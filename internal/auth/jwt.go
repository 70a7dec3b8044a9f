// Package auth provides session tokens, the Discord OAuth flow, and the
// guild-membership check for the whitelist registry.
//
// SESSION MODEL:
// The app issues two kinds of stateless JWT sessions, both HS256-signed and
// stored in HttpOnly cookies:
//
//   - VISITOR sessions are created by the Discord OAuth callback. They carry
//     the Discord user identity plus the provider access token, which the
//     server later uses to call Discord's guilds API on the visitor's behalf.
//   - ADMIN sessions are created by the admin login. They carry only the
//     admin's internal ID; admin capability additionally requires a live row
//     in the admin_users table (checked by the middleware on every request).
//
// The two kinds are distinguished by the JWT "aud" claim so a visitor token
// can never be replayed against an admin route.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Audience values for the "aud" claim.
const (
	AudienceVisitor = "visitor"
	AudienceAdmin   = "admin"
)

// Default session lifetimes. Visitor sessions are long-lived because the
// Discord provider token inside them stays usable for days; the membership
// check re-validates it on every use anyway. Admin sessions are short.
const (
	VisitorSessionDuration = 24 * time.Hour
	AdminSessionDuration   = time.Hour
)

const issuer = "whitelist-registry"

// Session is the decoded content of a session token.
type Session struct {
	Subject         string // admin's internal ID, or the Discord user ID
	ProviderToken   string // Discord OAuth access token (visitor sessions only)
	DiscordUsername string // Discord username, may be empty
}

// claims is the JWT payload. The provider token and username ride along as
// private claims; everything else lives in the registered claims.
//
// Carrying the provider token inside the signed, HttpOnly session cookie
// means the server never stores it and the browser's scripts never see it.
type claims struct {
	ProviderToken   string `json:"pvt,omitempty"`
	DiscordUsername string `json:"dun,omitempty"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies session tokens with a shared HMAC secret.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// GenerateAdmin issues an admin session token for the given admin ID.
func (s *TokenService) GenerateAdmin(adminID string) (string, error) {
	return s.generate(Session{Subject: adminID}, AudienceAdmin, AdminSessionDuration)
}

// GenerateVisitor issues a visitor session token carrying the Discord
// identity and provider access token from a completed OAuth exchange.
func (s *TokenService) GenerateVisitor(sess Session) (string, error) {
	return s.generate(sess, AudienceVisitor, VisitorSessionDuration)
}

func (s *TokenService) generate(sess Session, audience string, d time.Duration) (string, error) {
	if sess.Subject == "" {
		return "", errors.New("auth: session subject must not be empty")
	}

	now := time.Now()
	c := claims{
		ProviderToken:   sess.ProviderToken,
		DiscordUsername: sess.DiscordUsername,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.Subject,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a session token for the expected audience.
//
// The jwt library enforces signature, expiry, and issuer; passing
// jwt.WithValidMethods pins the algorithm to HS256 so a token signed with
// "none" (or any other algorithm) is rejected outright. The audience check
// is what keeps visitor tokens out of admin routes.
func (s *TokenService) Validate(tokenStr, audience string) (*Session, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("auth: token has no subject")
	}

	return &Session{
		Subject:         c.Subject,
		ProviderToken:   c.ProviderToken,
		DiscordUsername: c.DiscordUsername,
	}, nil
}
