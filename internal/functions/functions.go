// Package functions implements the stateless privileged request handlers.
// Every handler runs the same protocol: CORS preflight, configuration check,
// method check, JSON parse, caller authentication and role re-derivation,
// an operation predicate, then a single store operation.
package functions

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/memberhub/portal/internal/access"
	"github.com/memberhub/portal/internal/feedback"
	"github.com/memberhub/portal/internal/identity"
	"github.com/memberhub/portal/internal/members"
	"github.com/memberhub/portal/internal/platform/httpx"
	"github.com/memberhub/portal/internal/settings"
)

// DefaultMinPasswordLength applies when Config.MinPasswordLength is zero.
const DefaultMinPasswordLength = 6

// genericFailure is the only detail callers see for unexpected errors.
const genericFailure = "Internal server error"

// Config carries the elevated credentials and tunables. Credentials are read
// on every invocation; either one missing fails the request.
type Config struct {
	ServiceURL        string
	ServiceRoleKey    string
	AccessTokenTTL    time.Duration
	PasswordCost      int
	MinPasswordLength int
	FeedbackLimit     int
	FeedbackWindow    time.Duration
}

// Deps are the stores the handlers operate on.
type Deps struct {
	Members  members.Repository
	Settings settings.Repository
	Feedback feedback.Repository
	Notifier feedback.Notifier
	Users    identity.UserStore
	Sessions identity.SessionBackend
	Logger   *slog.Logger
	// Decisions, when set, counts authorization outcomes.
	Decisions DecisionRecorder
}

// DecisionRecorder observes the outcome of privileged caller checks.
type DecisionRecorder interface {
	ObserveAuthDecision(outcome string)
}

// Handlers serves the function endpoints.
type Handlers struct {
	cfg      Config
	deps     Deps
	logger   *slog.Logger
	feedback *feedback.Service
	validate *validator.Validate
}

// New constructs the handler set.
func New(cfg Config, deps Deps) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinPasswordLength <= 0 {
		cfg.MinPasswordLength = DefaultMinPasswordLength
	}
	return &Handlers{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		feedback: feedback.NewService(deps.Feedback, deps.Notifier, feedback.Config{
			Limit:  cfg.FeedbackLimit,
			Window: cfg.FeedbackWindow,
		}, logger),
		validate: validator.New(),
	}
}

// MountRoutes registers the function endpoints.
func (h *Handlers) MountRoutes(r chi.Router) {
	r.Use(httpx.CORS)
	r.Handle("/check-member-exists", h.wrap(endpoint{
		name:         "check-member-exists",
		methods:      []string{http.MethodGet, http.MethodPost},
		optionalBody: true,
		run:          h.checkMemberExists,
	}))
	r.Handle("/signup", h.wrap(endpoint{
		name:    "signup",
		methods: []string{http.MethodPost},
		run:     h.signup,
	}))
	r.Handle("/list-members", h.wrap(endpoint{
		name:         "list-members",
		methods:      []string{http.MethodPost},
		optionalBody: true,
		allow:        adminOnly,
		run:          h.listMembers,
	}))
	r.Handle("/toggle-results", h.wrap(endpoint{
		name:    "toggle-results",
		methods: []string{http.MethodPost},
		allow:   adminOnly,
		run:     h.toggleResults,
	}))
	r.Handle("/submit-feedback", h.wrap(endpoint{
		name:    "submit-feedback",
		methods: []string{http.MethodPost},
		run:     h.submitFeedback,
	}))
}

// predicate decides whether an authenticated caller may run the operation.
// A non-empty message means refusal.
type predicate func(caller *access.Caller) string

func adminOnly(caller *access.Caller) string {
	if caller.IsAdmin() {
		return ""
	}
	return "Admin access required"
}

type endpoint struct {
	name         string
	methods      []string
	optionalBody bool
	// allow is set for privileged endpoints.
	allow predicate
	run   func(ctx context.Context, inv *invocation) (int, any, error)
}

// invocation is the per-request state handed to an operation.
type invocation struct {
	r        *http.Request
	body     json.RawMessage
	elevated *identity.Provider
	caller   *access.Caller
}

// decode unmarshals the body into target. An absent body leaves target
// untouched.
func (inv *invocation) decode(target any) error {
	if len(inv.body) == 0 {
		return nil
	}
	return json.Unmarshal(inv.body, target)
}

// statusError carries a caller-facing status and message.
type statusError struct {
	status  int
	message string
}

func (e *statusError) Error() string {
	return e.message
}

func fail(status int, message string) error {
	return &statusError{status: status, message: message}
}

func (h *Handlers) wrap(ep endpoint) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimSpace(h.cfg.ServiceURL) == "" || strings.TrimSpace(h.cfg.ServiceRoleKey) == "" {
			h.logger.Error("function misconfigured", slog.String("function", ep.name))
			httpx.Error(w, http.StatusInternalServerError, httpx.MisconfiguredMessage)
			return
		}
		if !slices.Contains(ep.methods, r.Method) {
			w.Header().Set("Allow", strings.Join(ep.methods, ", "))
			httpx.Error(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		inv := &invocation{r: r}
		if r.Method != http.MethodGet {
			body, err := readJSON(r)
			if err != nil {
				httpx.Error(w, http.StatusBadRequest, "Invalid JSON body")
				return
			}
			if len(body) == 0 && !ep.optionalBody {
				httpx.Error(w, http.StatusBadRequest, "Invalid JSON body")
				return
			}
			inv.body = body
		}

		elevated, err := identity.NewProvider(identity.ProviderConfig{
			Issuer:       h.cfg.ServiceURL,
			Secret:       h.cfg.ServiceRoleKey,
			TokenTTL:     h.cfg.AccessTokenTTL,
			Users:        h.deps.Users,
			Sessions:     h.deps.Sessions,
			PasswordCost: h.cfg.PasswordCost,
		})
		if err != nil {
			h.logger.Error("function elevated client", slog.String("function", ep.name), slog.Any("error", err))
			httpx.Error(w, http.StatusInternalServerError, httpx.MisconfiguredMessage)
			return
		}
		inv.elevated = elevated

		if ep.allow != nil {
			token, ok := identity.BearerToken(r)
			if !ok {
				h.observe("unauthenticated")
				httpx.Error(w, http.StatusUnauthorized, "Missing authorization")
				return
			}
			caller, err := access.NewAuthorizer(elevated, h.deps.Members, h.logger).Authenticate(r.Context(), token)
			switch {
			case err == nil:
			case errors.Is(err, access.ErrUnauthenticated):
				h.observe("unauthenticated")
				httpx.Error(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			case errors.Is(err, access.ErrNoRole):
				h.observe("forbidden")
				httpx.Error(w, http.StatusForbidden, "No role assigned")
				return
			default:
				h.logger.Error("function authorize", slog.String("function", ep.name), slog.Any("error", err))
				httpx.Error(w, http.StatusInternalServerError, genericFailure)
				return
			}
			if msg := ep.allow(caller); msg != "" {
				h.observe("forbidden")
				httpx.Error(w, http.StatusForbidden, msg)
				return
			}
			h.observe("allowed")
			inv.caller = caller
		}

		status, payload, err := ep.run(r.Context(), inv)
		if err != nil {
			var se *statusError
			if errors.As(err, &se) {
				httpx.Error(w, se.status, se.message)
				return
			}
			h.logger.Error("function failed", slog.String("function", ep.name), slog.Any("error", err))
			httpx.Error(w, http.StatusInternalServerError, genericFailure)
			return
		}
		httpx.JSON(w, status, payload)
	})
}

func (h *Handlers) observe(outcome string) {
	if h.deps.Decisions != nil {
		h.deps.Decisions.ObserveAuthDecision(outcome)
	}
}

// readJSON returns the raw body after checking that it is one JSON value.
// An empty body yields nil.
func readJSON(r *http.Request) (json.RawMessage, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	var raw json.RawMessage
	if err := httpx.DecodeJSON(r, &raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	return raw, nil
}
