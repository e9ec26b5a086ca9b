package identity

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"github.com/memberhub/portal/internal/platform/httpx"
)

// Handler exposes the provider over HTTP.
type Handler struct {
	logger   *slog.Logger
	auth     Authenticator
	limiter  *ipLimiter
	validate *validator.Validate
}

// NewHandler constructs a Handler. attemptsPerMinute bounds password
// sign-ins per client address.
func NewHandler(logger *slog.Logger, auth Authenticator, attemptsPerMinute int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if attemptsPerMinute <= 0 {
		attemptsPerMinute = 10
	}
	return &Handler{
		logger:   logger,
		auth:     auth,
		limiter:  newIPLimiter(rate.Every(time.Minute/time.Duration(attemptsPerMinute)), attemptsPerMinute, 10*time.Minute),
		validate: validator.New(),
	}
}

// MountRoutes registers identity endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.limiter.middleware).Post("/token", h.handleToken)
	r.Post("/logout", h.handleLogout)
	r.Get("/user", h.handleUser)
	r.Post("/refresh", h.handleRefresh)
}

// Close stops the limiter's background eviction.
func (h *Handler) Close() {
	h.limiter.Close()
}

type tokenRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil {
		httpx.RespondError(w, httpx.ErrMisconfigured)
		return
	}
	var req tokenRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}
	sess, err := h.auth.SignInWithPassword(r.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		httpx.JSON(w, http.StatusOK, sess)
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrEmailNotConfirmed):
		httpx.Error(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("identity sign in", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := h.bearer(w, r)
	if !ok {
		return
	}
	if err := h.auth.SignOut(r.Context(), token); err != nil {
		h.fail(w, "identity sign out", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUser(w http.ResponseWriter, r *http.Request) {
	token, ok := h.bearer(w, r)
	if !ok {
		return
	}
	user, err := h.auth.GetUser(r.Context(), token)
	if err != nil {
		h.fail(w, "identity get user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	token, ok := h.bearer(w, r)
	if !ok {
		return
	}
	sess, err := h.auth.Refresh(r.Context(), token)
	if err != nil {
		h.fail(w, "identity refresh", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sess)
}

func (h *Handler) bearer(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.auth == nil {
		httpx.RespondError(w, httpx.ErrMisconfigured)
		return "", false
	}
	token, ok := BearerToken(r)
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "missing bearer token")
		return "", false
	}
	return token, true
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if errors.Is(err, ErrInvalidToken) {
		httpx.Error(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	h.logger.Error(msg, slog.Any("error", err))
	httpx.RespondError(w, err)
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
