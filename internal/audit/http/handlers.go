package audithttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/memberhub/portal/internal/audit"
	"github.com/memberhub/portal/internal/platform/httpx"
)

// Service lists audit entries.
type Service interface {
	Recent(ctx context.Context, filters audit.Filters) (audit.Result, error)
}

// Handler serves the audit listing.
type Handler struct {
	logger  *slog.Logger
	service Service
}

// NewHandler creates an audit handler.
func NewHandler(logger *slog.Logger, service Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

type validationError struct {
	field string
}

func (e validationError) Error() string {
	return "invalid " + e.field
}

func (h *Handler) handleRecent(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		var vErr validationError
		if errors.As(err, &vErr) {
			httpx.Error(w, http.StatusBadRequest, vErr.Error())
			return
		}
		httpx.Error(w, http.StatusBadRequest, "invalid filters")
		return
	}
	result, err := h.service.Recent(r.Context(), filters)
	if err != nil {
		h.logger.Error("load audit log", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func parseFilters(r *http.Request) (audit.Filters, error) {
	q := r.URL.Query()
	page, err := positiveInt(q.Get("page"), "page")
	if err != nil {
		return audit.Filters{}, err
	}
	pageSize, err := positiveInt(q.Get("page_size"), "page_size")
	if err != nil {
		return audit.Filters{}, err
	}
	return audit.Filters{
		Actor:      strings.TrimSpace(q.Get("actor")),
		Action:     strings.TrimSpace(q.Get("action")),
		EntityType: strings.TrimSpace(q.Get("entity_type")),
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

func positiveInt(raw, field string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, validationError{field: field}
	}
	return v, nil
}
