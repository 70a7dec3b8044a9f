package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sakif/whitelist-registry/internal/apperror"
	"github.com/sakif/whitelist-registry/internal/service"
)

// AdminHandler serves the dashboard API: community-password CRUD and the
// read-only registration viewer. Every route here sits behind the
// RequireAdmin middleware; the handler itself never re-checks the
// session.
type AdminHandler struct {
	admins *service.AdminService
	logger *slog.Logger
}

func NewAdminHandler(admins *service.AdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{admins: admins, logger: logger}
}

// HandleListPasswords returns all community passwords, newest first.
//
// HTTP: GET /api/admin/passwords
func (h *AdminHandler) HandleListPasswords(w http.ResponseWriter, r *http.Request) {
	passwords, err := h.admins.ListPasswords(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, passwords)
}

// HandleCreatePassword creates a community password.
//
// HTTP: POST /api/admin/passwords {communityName, secret, maxUses?}
//
// maxUses absent or null means unlimited; when present it must be a
// positive integer.
func (h *AdminHandler) HandleCreatePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CommunityName string `json:"communityName"`
		Secret        string `json:"secret"`
		MaxUses       *int   `json:"maxUses"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON in request body"))
		return
	}

	p, err := h.admins.CreatePassword(r.Context(), req.CommunityName, req.Secret, req.MaxUses)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

// HandleDeletePassword hard-deletes a password.
//
// HTTP: DELETE /api/admin/passwords/{id}
func (h *AdminHandler) HandleDeletePassword(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.admins.DeletePassword(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleListRegistrations returns registrations, newest first.
//
// HTTP: GET /api/admin/registrations?limit&offset
func (h *AdminHandler) HandleListRegistrations(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	regs, err := h.admins.ListRegistrations(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, regs)
}
