package functions

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/memberhub/portal/internal/feedback"
	"github.com/memberhub/portal/internal/identity"
	"github.com/memberhub/portal/internal/members"
	"github.com/memberhub/portal/internal/platform/httpx"
	"github.com/memberhub/portal/internal/settings"
	"github.com/memberhub/portal/internal/shared"
)

type existsRequest struct {
	Email string `json:"email"`
}

type existsResponse struct {
	Exists bool          `json:"exists"`
	Role   *members.Role `json:"role"`
}

// checkMemberExists answers 200 whether or not the email is known.
func (h *Handlers) checkMemberExists(ctx context.Context, inv *invocation) (int, any, error) {
	email := inv.r.URL.Query().Get("email")
	if inv.r.Method == http.MethodPost {
		var req existsRequest
		if err := inv.decode(&req); err != nil {
			return 0, nil, fail(http.StatusBadRequest, "Invalid JSON body")
		}
		email = req.Email
	}
	email = shared.NormalizeEmail(email)
	if email == "" {
		return 0, nil, fail(http.StatusBadRequest, "Email is required")
	}

	profile, err := h.deps.Members.FindByEmail(ctx, email)
	if errors.Is(err, members.ErrNotFound) {
		return http.StatusOK, existsResponse{}, nil
	}
	if err != nil {
		return 0, nil, err
	}
	role := profile.Role
	return http.StatusOK, existsResponse{Exists: true, Role: &role}, nil
}

type signupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type signupResponse struct {
	UserID    uuid.UUID `json:"userId"`
	Bootstrap bool      `json:"bootstrap"`
}

// signup creates a pre-confirmed account when signups are open or no member
// exists yet. The first account is flagged super admin in its metadata so the
// bootstrapping operator can reach the admin surface before a member row is
// seeded.
func (h *Handlers) signup(ctx context.Context, inv *invocation) (int, any, error) {
	var req signupRequest
	if err := inv.decode(&req); err != nil {
		return 0, nil, fail(http.StatusBadRequest, "Invalid JSON body")
	}
	req.Email = shared.NormalizeEmail(req.Email)
	if err := h.validate.Struct(req); err != nil {
		return 0, nil, fail(http.StatusBadRequest, "A valid email and password are required")
	}
	if len([]rune(req.Password)) < h.cfg.MinPasswordLength {
		return 0, nil, fail(http.StatusBadRequest, "Password is too short")
	}

	count, err := h.deps.Members.Count(ctx)
	if err != nil {
		return 0, nil, err
	}
	bootstrap := count == 0
	if !bootstrap {
		current, err := h.deps.Settings.Get(ctx)
		switch {
		case errors.Is(err, settings.ErrNotFound):
		case err != nil:
			return 0, nil, err
		}
		if !current.AllowSignup {
			return 0, nil, fail(http.StatusForbidden, "Signups are currently disabled")
		}
	}

	params := identity.CreateUserParams{
		Email:        req.Email,
		Password:     req.Password,
		EmailConfirm: true,
	}
	if bootstrap {
		params.AppMetadata = identity.Metadata{IsSuperAdmin: true}
	}
	user, err := inv.elevated.CreateUser(ctx, params)
	if errors.Is(err, identity.ErrEmailTaken) {
		return 0, nil, fail(http.StatusConflict, "User already registered")
	}
	if err != nil {
		return 0, nil, err
	}
	h.logger.Info("account created", "user_id", user.ID, "bootstrap", bootstrap)
	return http.StatusCreated, signupResponse{UserID: user.ID, Bootstrap: bootstrap}, nil
}

type listResponse struct {
	Members []members.Profile `json:"members"`
}

func (h *Handlers) listMembers(ctx context.Context, _ *invocation) (int, any, error) {
	rows, err := h.deps.Members.ListNewestFirst(ctx)
	if err != nil {
		return 0, nil, err
	}
	if rows == nil {
		rows = []members.Profile{}
	}
	return http.StatusOK, listResponse{Members: rows}, nil
}

type toggleRequest struct {
	AllowResultsView *bool `json:"allow_results_view"`
}

type toggleResponse struct {
	Updated []settings.AppSettings `json:"updated"`
}

func (h *Handlers) toggleResults(ctx context.Context, inv *invocation) (int, any, error) {
	var req toggleRequest
	if err := inv.decode(&req); err != nil || req.AllowResultsView == nil {
		return 0, nil, fail(http.StatusBadRequest, "allow_results_view must be a boolean")
	}
	updated, err := h.deps.Settings.SetResultsView(ctx, *req.AllowResultsView)
	if errors.Is(err, settings.ErrNotFound) {
		h.logger.Warn("results toggle: settings row missing")
		return http.StatusOK, toggleResponse{Updated: []settings.AppSettings{}}, nil
	}
	if err != nil {
		return 0, nil, err
	}
	h.logger.Info("results visibility changed",
		"allow_results_view", updated.AllowResultsView,
		"actor", inv.caller.User.ID,
	)
	return http.StatusOK, toggleResponse{Updated: []settings.AppSettings{updated}}, nil
}

type feedbackRequest struct {
	Message string `json:"message"`
}

type feedbackResponse struct {
	Success bool `json:"success"`
}

func (h *Handlers) submitFeedback(ctx context.Context, inv *invocation) (int, any, error) {
	var req feedbackRequest
	if err := inv.decode(&req); err != nil {
		return 0, nil, fail(http.StatusBadRequest, "Invalid JSON body")
	}
	_, err := h.feedback.Submit(ctx, feedback.Submission{
		Message:   req.Message,
		IPAddress: httpx.ClientIP(inv.r),
		UserAgent: strings.TrimSpace(inv.r.UserAgent()),
	})
	switch {
	case err == nil:
		return http.StatusCreated, feedbackResponse{Success: true}, nil
	case errors.Is(err, feedback.ErrEmptyMessage):
		return 0, nil, fail(http.StatusBadRequest, "Message is required")
	case errors.Is(err, feedback.ErrMessageTooLong):
		return 0, nil, fail(http.StatusBadRequest, "Message is too long")
	case errors.Is(err, feedback.ErrRateLimited):
		return 0, nil, fail(http.StatusTooManyRequests, "Too many submissions. Please try again later.")
	default:
		return 0, nil, err
	}
}
