package permissions

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/memberhub/portal/internal/access"
	"github.com/memberhub/portal/internal/audit"
	"github.com/memberhub/portal/internal/events"
	"github.com/memberhub/portal/internal/platform/httpx"
)

// Handler exposes permission administration. Routes expect an admin caller
// stored by access.Middleware.
type Handler struct {
	logger   *slog.Logger
	store    Store
	recorder audit.Recorder
	changes  *events.Registry[Changed]
	grants   *GrantAdmin
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, store Store, recorder audit.Recorder, changes *events.Registry[Changed]) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:   logger,
		store:    store,
		recorder: recorder,
		changes:  changes,
		grants:   NewGrantAdmin(store, recorder, changes, logger),
	}
}

// MountRoutes registers permission routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/permissions", h.listPermissions)
	r.Put("/permissions/{key}", h.togglePermission)
	r.Get("/grants", h.listGrants)
	r.Post("/grants", h.createGrant)
	r.Delete("/grants/{adminID}/{key}", h.revokeGrant)
}

// PermissionView carries both permission signals for one key. They are not
// combined; callers decide which applies.
type PermissionView struct {
	Catalog
	CatalogAllowed bool `json:"catalog_allowed"`
	Granted        bool `json:"granted"`
}

type permissionsResponse struct {
	Role        string           `json:"role"`
	Permissions []PermissionView `json:"permissions"`
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	caller := access.CallerFromContext(r.Context())
	subject := subjectOf(caller)

	catalog := NewCatalogModel(h.store, h.recorder, nil, h.logger)
	catalog.SetSubject(r.Context(), subject)
	grants := NewGrantModel(h.store, h.logger)
	grants.SetSubject(r.Context(), subject)
	if err := errors.Join(catalog.Err(), grants.Err()); err != nil {
		httpx.RespondError(w, err)
		return
	}

	rows := catalog.Catalog()
	views := make([]PermissionView, 0, len(rows))
	for _, row := range rows {
		views = append(views, PermissionView{
			Catalog:        row,
			CatalogAllowed: catalog.HasPermission(row.Key),
			Granted:        grants.HasPermission(row.Key),
		})
	}
	httpx.JSON(w, http.StatusOK, permissionsResponse{Role: string(subject.Role), Permissions: views})
}

type toggleRequest struct {
	IsEnabled *bool `json:"is_enabled"`
}

func (h *Handler) togglePermission(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.IsEnabled == nil {
		httpx.Error(w, http.StatusBadRequest, "is_enabled must be a boolean")
		return
	}
	caller := access.CallerFromContext(r.Context())
	if !caller.IsSuperAdmin() {
		httpx.Error(w, http.StatusForbidden, "super admin access required")
		return
	}
	model := NewCatalogModel(h.store, h.recorder, h.changes, h.logger)
	model.SetSubject(r.Context(), subjectOf(caller))

	key := chi.URLParam(r, "key")
	if err := model.Toggle(r.Context(), key, *req.IsEnabled); err != nil {
		h.respond(w, "toggle permission", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"key": NormalizeKey(key), "is_enabled": *req.IsEnabled})
}

func (h *Handler) listGrants(w http.ResponseWriter, r *http.Request) {
	grants, err := h.grants.List(r.Context())
	if err != nil {
		h.respond(w, "list grants", err)
		return
	}
	if grants == nil {
		grants = []Grant{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"grants": grants})
}

type grantRequest struct {
	AdminID       uuid.UUID `json:"admin_id"`
	PermissionKey string    `json:"permission_key"`
}

func (h *Handler) createGrant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.AdminID == uuid.Nil || req.PermissionKey == "" {
		httpx.Error(w, http.StatusBadRequest, "admin_id and permission_key are required")
		return
	}
	actor := subjectOf(access.CallerFromContext(r.Context()))
	if err := h.grants.Grant(r.Context(), actor, req.AdminID, req.PermissionKey); err != nil {
		h.respond(w, "grant permission", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) revokeGrant(w http.ResponseWriter, r *http.Request) {
	adminID, err := uuid.Parse(chi.URLParam(r, "adminID"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid admin id")
		return
	}
	actor := subjectOf(access.CallerFromContext(r.Context()))
	if err := h.grants.Revoke(r.Context(), actor, adminID, chi.URLParam(r, "key")); err != nil {
		h.respond(w, "revoke permission", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respond(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, ErrForbidden):
		httpx.Error(w, http.StatusForbidden, "super admin access required")
	case errors.Is(err, ErrUnknownKey):
		httpx.Error(w, http.StatusNotFound, "unknown permission key")
	case errors.Is(err, ErrGrantNotFound):
		httpx.Error(w, http.StatusNotFound, "grant not found")
	default:
		h.logger.Error(msg, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func subjectOf(caller *access.Caller) Subject {
	if caller == nil {
		return Subject{}
	}
	return Subject{UserID: caller.User.ID, Role: caller.Role}
}
