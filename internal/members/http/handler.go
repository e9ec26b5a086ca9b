// Package membershttp serves the signed-in member's own profile.
package membershttp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/memberhub/portal/internal/access"
	"github.com/memberhub/portal/internal/members"
	"github.com/memberhub/portal/internal/platform/httpx"
)

// Handler exposes profile endpoints. Routes expect a caller stored by
// access.Middleware.Identify.
type Handler struct {
	logger  *slog.Logger
	service *members.Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *members.Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers profile routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.current)
	r.Patch("/", h.update)
	r.Post("/setup", h.setup)
}

type profileResponse struct {
	UserID            string           `json:"user_id"`
	Email             string           `json:"email"`
	Role              members.Role     `json:"role,omitempty"`
	IsAdmin           bool             `json:"is_admin"`
	IsSuperAdmin      bool             `json:"is_super_admin"`
	NeedsProfileSetup bool             `json:"needs_profile_setup"`
	Profile           *members.Profile `json:"profile"`
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	caller := access.CallerFromContext(r.Context())
	if caller == nil {
		httpx.Error(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	httpx.JSON(w, http.StatusOK, responseFor(caller, caller.Profile))
}

func (h *Handler) setup(w http.ResponseWriter, r *http.Request) {
	caller := access.CallerFromContext(r.Context())
	if caller == nil {
		httpx.Error(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	profile, err := h.service.CompleteSetup(r.Context(), caller.User.ID, caller.User.Email)
	switch {
	case err == nil:
		caller.Role = profile.Role
		httpx.JSON(w, http.StatusOK, responseFor(caller, profile))
	case errors.Is(err, members.ErrAlreadyLinked):
		httpx.Error(w, http.StatusConflict, "profile already linked")
	case errors.Is(err, members.ErrNotFound):
		httpx.Error(w, http.StatusNotFound, "no member record for this email")
	default:
		h.logger.Error("profile setup", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	caller := access.CallerFromContext(r.Context())
	if caller == nil {
		httpx.Error(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	if caller.Profile == nil {
		httpx.Error(w, http.StatusConflict, "profile setup required")
		return
	}
	var upd members.SelfUpdate
	if err := httpx.DecodeJSON(r, &upd); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	profile, err := h.service.UpdateSelf(r.Context(), caller.User.ID, upd)
	switch {
	case err == nil:
		httpx.JSON(w, http.StatusOK, responseFor(caller, profile))
	case errors.Is(err, members.ErrInvalidUpdate):
		httpx.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, members.ErrNotFound):
		httpx.Error(w, http.StatusNotFound, "profile not found")
	default:
		h.logger.Error("profile update", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func responseFor(caller *access.Caller, profile *members.Profile) profileResponse {
	return profileResponse{
		UserID:            caller.User.ID.String(),
		Email:             caller.User.Email,
		Role:              caller.Role,
		IsAdmin:           caller.IsAdmin(),
		IsSuperAdmin:      caller.IsSuperAdmin(),
		NeedsProfileSetup: profile == nil,
		Profile:           profile,
	}
}
