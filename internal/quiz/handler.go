package quiz

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/memberhub/portal/internal/access"
	"github.com/memberhub/portal/internal/platform/httpx"
)

// Handler exposes quizzes. Routes expect a caller stored by
// access.Middleware.Identify.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers quiz routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{id}", h.get)
	r.Post("/{id}/attempts", h.submit)
	r.Get("/{id}/results", h.results)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := quizID(w, r)
	if !ok {
		return
	}
	q, err := h.service.Get(r.Context(), access.CallerFromContext(r.Context()), id)
	if err != nil {
		h.respond(w, "load quiz", err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

type attemptRequest struct {
	Answers []int `json:"answers"`
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	id, ok := quizID(w, r)
	if !ok {
		return
	}
	var req attemptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	attempt, err := h.service.Submit(r.Context(), access.CallerFromContext(r.Context()), id, req.Answers)
	if err != nil {
		h.respond(w, "submit quiz", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, attempt)
}

func (h *Handler) results(w http.ResponseWriter, r *http.Request) {
	id, ok := quizID(w, r)
	if !ok {
		return
	}
	rows, err := h.service.Results(r.Context(), access.CallerFromContext(r.Context()), id)
	if err != nil {
		h.respond(w, "quiz results", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"results": rows})
}

func (h *Handler) respond(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Error(w, http.StatusNotFound, "quiz not found")
	case errors.Is(err, ErrInvalidAnswers):
		httpx.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrAlreadyAttempted):
		httpx.Error(w, http.StatusConflict, "quiz already attempted")
	case errors.Is(err, ErrResultsHidden):
		httpx.Error(w, http.StatusForbidden, "results are not published yet")
	case errors.Is(err, ErrProfileRequired):
		httpx.Error(w, http.StatusForbidden, "member profile required")
	default:
		h.logger.Error(msg, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func quizID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Error(w, http.StatusBadRequest, "invalid quiz id")
		return 0, false
	}
	return id, true
}
