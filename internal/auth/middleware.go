package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/whitelist-registry/internal/apperror"
	"github.com/sakif/whitelist-registry/internal/model"
)

// Cookie names. Both session cookies are HttpOnly so scripts can't read
// them; the state cookie is single-use during the OAuth redirect dance.
const (
	VisitorCookie = "session"
	AdminCookie   = "admin_session"
	StateCookie   = "oauth_state"
)

// contextKey is an unexported type for context keys in this package.
// A package-private key type means only this package can read or write
// these context values — a plain string key could be shadowed by any
// package that happens to know the name.
type contextKey string

const (
	sessionKey contextKey = "session"
	adminIDKey contextKey = "adminID"
)

// AdminStore is the slice of the repository the middleware needs: a live
// lookup of the admin row. Declared here (consumer side) so the auth
// package doesn't depend on the repository package.
type AdminStore interface {
	GetAdminByID(ctx context.Context, id string) (*model.AdminUser, error)
}

// RequireAdmin enforces an authenticated admin on protected routes.
//
// Two checks, both required:
//  1. a valid admin-audience JWT in the admin cookie;
//  2. the admin row still exists in the store.
//
// The second check means deleting an admin row revokes access immediately,
// not at token expiry. Failures surface as a distinct 401
// "authentication required" body so the client prompts a re-login instead
// of showing a data-layer error.
func RequireAdmin(tokens *TokenService, admins AdminStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(AdminCookie)
			if err != nil || cookie.Value == "" {
				writeUnauthorized(w)
				return
			}

			sess, err := tokens.Validate(cookie.Value, AudienceAdmin)
			if err != nil {
				writeUnauthorized(w)
				return
			}

			if _, err := admins.GetAdminByID(r.Context(), sess.Subject); err != nil {
				if !errors.Is(err, apperror.ErrNotFound) {
					logger.Error("admin lookup failed",
						slog.String("adminID", sess.Subject),
						slog.String("error", err.Error()),
					)
				}
				writeUnauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), adminIDKey, sess.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalSession extracts the visitor session if a valid cookie is
// present, but never blocks the request. Public routes use this: the
// Discord gate needs the session when it exists, and reports "please
// verify with Discord" when it doesn't.
func OptionalSession(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cookie, err := r.Cookie(VisitorCookie); err == nil && cookie.Value != "" {
				if sess, err := tokens.Validate(cookie.Value, AudienceVisitor); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), sessionKey, sess))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SessionFromContext returns the visitor session, or (nil, false) when the
// request is anonymous.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(sessionKey).(*Session)
	return sess, ok && sess != nil
}

// AdminIDFromContext returns the authenticated admin's ID. On routes
// behind RequireAdmin this always succeeds.
func AdminIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(adminIDKey).(string)
	return id, ok && id != ""
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized","message":"authentication required"}`))
}
