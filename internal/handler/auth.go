package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/whitelist-registry/internal/apperror"
	"github.com/sakif/whitelist-registry/internal/auth"
	"github.com/sakif/whitelist-registry/internal/service"
)

// AuthHandler owns the two authentication surfaces:
//
//   - the Discord OAuth flow that produces visitor sessions
//     (HandleDiscordLogin → Discord → HandleDiscordCallback), and
//   - admin email/password sessions (HandleAdminLogin, HandleAdminBootstrap).
//
// Both session kinds are JWTs in HttpOnly cookies; HandleLogout clears
// whichever are present.
type AuthHandler struct {
	discord *auth.DiscordProvider
	tokens  *auth.TokenService
	admins  *service.AdminService
	logger  *slog.Logger
}

func NewAuthHandler(
	discord *auth.DiscordProvider,
	tokens *auth.TokenService,
	admins *service.AdminService,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		discord: discord,
		tokens:  tokens,
		admins:  admins,
		logger:  logger,
	}
}

// HandleDiscordLogin redirects the visitor to Discord's authorization
// page.
//
// HTTP: GET /auth/discord/login
//
// The random state lands in a short-lived cookie; the callback refuses
// any state that doesn't match it, so a forged callback can't complete a
// flow this server never started.
func (h *AuthHandler) HandleDiscordLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     auth.StateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.discord.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleDiscordCallback completes the OAuth flow.
//
// HTTP: GET /auth/callback?code=xxx&state=yyy
//
// On success the visitor gets a session cookie carrying their Discord
// identity and the provider access token, then lands back on the app.
// The guild-membership gate is NOT checked here — the registration page
// asks for it explicitly via /api/verify/discord, which keeps this
// handler a pure sign-in step.
func (h *AuthHandler) HandleDiscordCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(auth.StateCookie)
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// The state cookie is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:   auth.StateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization",
			slog.String("error", errParam),
		)
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	user, token, err := h.discord.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: Discord exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	sessionToken, err := h.tokens.GenerateVisitor(auth.Session{
		Subject:         user.ID,
		ProviderToken:   token.AccessToken,
		DiscordUsername: user.Username,
	})
	if err != nil {
		h.logger.Error("auth callback: token generation failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	h.logger.Info("visitor authenticated",
		slog.String("discordID", user.ID),
		slog.String("username", user.Username),
	)

	http.SetCookie(w, &http.Cookie{
		Name:     auth.VisitorCookie,
		Value:    sessionToken,
		Path:     "/",
		MaxAge:   int(auth.VisitorSessionDuration / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		// Secure: true, // requires HTTPS
	})

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleAdminLogin authenticates an admin and sets the admin session
// cookie.
//
// HTTP: POST /auth/admin/login {email, password}
func (h *AuthHandler) HandleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON in request body"))
		return
	}

	res, err := h.admins.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setAdminCookie(w, res.Token)
	writeJSON(w, http.StatusOK, res.Admin)
}

// HandleAdminBootstrap creates the first admin account. 409 once any
// admin exists.
//
// HTTP: POST /auth/admin/bootstrap {email, password}
func (h *AuthHandler) HandleAdminBootstrap(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON in request body"))
		return
	}

	res, err := h.admins.Bootstrap(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setAdminCookie(w, res.Token)
	writeJSON(w, http.StatusCreated, res.Admin)
}

// HandleLogout clears both session cookies.
//
// HTTP: POST /auth/logout
//
// POST, not GET: logout changes state, and GETs are pre-fetchable. The
// tokens themselves stay valid until expiry — stateless sessions have no
// revocation list — but without the cookies the browser can't present
// them.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	for _, name := range []string{auth.VisitorCookie, auth.AdminCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *AuthHandler) setAdminCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.AdminCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.AdminSessionDuration / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
