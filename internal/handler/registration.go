package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sakif/whitelist-registry/internal/apperror"
	"github.com/sakif/whitelist-registry/internal/auth"
	"github.com/sakif/whitelist-registry/internal/service"
)

// XFollowedCookie is the durable click-through flag for the X gate. It
// replaces the browser-local flag the product previously kept: one year
// of MaxAge, never cleared by the app, so the gate stays verified across
// visits.
const XFollowedCookie = "x_followed"

const xCookieMaxAge = 365 * 24 * 60 * 60

// RegistrationHandler serves the visitor-facing registration flow: the
// password check, the X and Discord gates, and the final submission.
type RegistrationHandler struct {
	registrations *service.RegistrationService
	verification  *service.VerificationService
	logger        *slog.Logger
}

func NewRegistrationHandler(
	registrations *service.RegistrationService,
	verification *service.VerificationService,
	logger *slog.Logger,
) *RegistrationHandler {
	return &RegistrationHandler{
		registrations: registrations,
		verification:  verification,
		logger:        logger,
	}
}

// HandleVerifyPassword checks a community password.
//
// HTTP: POST /api/password/verify {secret}
//
// A wrong secret is a 200 with valid=false, not an error status: the
// client renders the reason inline and the distinction between "bad
// input" and "server failed" stays crisp.
func (h *RegistrationHandler) HandleVerifyPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Secret string `json:"secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON in request body"))
		return
	}

	check, err := h.registrations.VerifyPassword(r.Context(), req.Secret)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, check)
}

// HandleVerifyX marks the X gate verified and returns the profile URL
// for the client to open.
//
// HTTP: POST /api/verify/x
//
// This is an honor-system gate: there is no X API call behind it, the
// click is the verification. The flag rides in a durable cookie.
func (h *RegistrationHandler) HandleVerifyX(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     XFollowedCookie,
		Value:    "1",
		Path:     "/",
		MaxAge:   xCookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{
		"status":     string(service.GateVerified),
		"profileUrl": h.verification.XProfileURL(),
	})
}

// HandleCheckDiscord evaluates the Discord gate for the current session.
//
// HTTP: GET /api/verify/discord
//
// Always a 200 with the gate result; the gate's status field carries the
// outcome. When Discord rejects the stored provider token the visitor
// session cookie is cleared in the same response — the forced sign-out —
// so the next check starts from "please verify with Discord".
func (h *RegistrationHandler) HandleCheckDiscord(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())

	result, err := h.verification.CheckDiscord(r.Context(), sess)
	if errors.Is(err, auth.ErrTokenExpired) {
		h.clearVisitorCookie(w)
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleSubmit runs the registration submission.
//
// HTTP: POST /api/register {walletAddress, secret, xVerified}
//
// The handler only collects gate inputs — wallet from the body, the X
// flag from its cookie (or the body, for clients that kept their own
// flag), the Discord result from a live membership check — and hands the
// decision to the orchestrator. 201 with the stored registration on
// success.
func (h *RegistrationHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WalletAddress string `json:"walletAddress"`
		Secret        string `json:"secret"`
		XVerified     bool   `json:"xVerified"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON in request body"))
		return
	}

	xFollowed := req.XVerified
	if c, err := r.Cookie(XFollowedCookie); err == nil && c.Value == "1" {
		xFollowed = true
	}

	sess, _ := auth.SessionFromContext(r.Context())
	discordGate, err := h.verification.CheckDiscord(r.Context(), sess)
	if errors.Is(err, auth.ErrTokenExpired) {
		h.clearVisitorCookie(w)
	}

	gates := service.Gates{
		WalletAddress: req.WalletAddress,
		XFollowed:     xFollowed,
		Discord:       discordGate,
	}
	if sess != nil {
		gates.DiscordUsername = sess.DiscordUsername
	}

	reg, err := h.registrations.Submit(r.Context(), gates, req.Secret)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, reg)
}

// HandleConfirmDiscord records a deferred Discord re-check outcome
// against an existing registration.
//
// HTTP: PATCH /api/register/{id}/discord {verified}
func (h *RegistrationHandler) HandleConfirmDiscord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Verified bool `json:"verified"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON in request body"))
		return
	}

	if err := h.registrations.ConfirmDiscord(r.Context(), id, req.Verified); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "updated"})
}

func (h *RegistrationHandler) clearVisitorCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.VisitorCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
