package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/memberhub/portal/internal/access"
	audithttp "github.com/memberhub/portal/internal/audit/http"
	"github.com/memberhub/portal/internal/functions"
	"github.com/memberhub/portal/internal/identity"
	membershttp "github.com/memberhub/portal/internal/members/http"
	"github.com/memberhub/portal/internal/observability"
	"github.com/memberhub/portal/internal/permissions"
	"github.com/memberhub/portal/internal/platform/httpx"
	"github.com/memberhub/portal/internal/quiz"
	"github.com/memberhub/portal/internal/settings"
	"github.com/memberhub/portal/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics

	// Access resolves bearer tokens for the /api routes. Without an
	// Authorizer only the public /api routes are mounted.
	Access access.Middleware

	IdentityHandler    *identity.Handler
	Functions          *functions.Handlers
	ProfileHandler     *membershttp.Handler
	SettingsHandler    *settings.Handler
	QuizHandler        *quiz.Handler
	PermissionsHandler *permissions.Handler
	AuditHandler       *audithttp.Handler
	JobHandler         *jobs.Handler
}

// NewRouter constructs the chi.Router with portal defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Error(w, http.StatusNotFound, "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Error(w, http.StatusMethodNotAllowed, "")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if params.IdentityHandler != nil {
		r.Route("/auth/v1", params.IdentityHandler.MountRoutes)
	}
	if params.Functions != nil {
		r.Route("/functions/v1", params.Functions.MountRoutes)
	}

	r.Route("/api", func(r chi.Router) {
		if params.SettingsHandler != nil {
			params.SettingsHandler.MountRoutes(r)
		}
		if params.Access.Authorizer == nil {
			return
		}
		r.Group(func(r chi.Router) {
			r.Use(params.Access.Identify)
			if params.ProfileHandler != nil {
				r.Route("/profile", params.ProfileHandler.MountRoutes)
			}
			if params.QuizHandler != nil {
				r.Route("/quizzes", params.QuizHandler.MountRoutes)
			}
			r.Route("/admin", func(r chi.Router) {
				r.Use(params.Access.RequireAdmin())
				if params.PermissionsHandler != nil {
					params.PermissionsHandler.MountRoutes(r)
				}
				r.Group(func(r chi.Router) {
					r.Use(params.Access.RequireSuperAdmin())
					if params.AuditHandler != nil {
						params.AuditHandler.MountRoutes(r)
					}
					if params.JobHandler != nil {
						r.Route("/jobs", params.JobHandler.MountRoutes)
					}
				})
			})
		})
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
