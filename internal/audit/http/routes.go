// Package audithttp exposes the audit log to super admins.
package audithttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/memberhub/portal/internal/access"
	"github.com/memberhub/portal/internal/platform/httpx"
)

const rateLimit = 30
const rateWindow = time.Minute

// MountRoutes registers the audit listing. Callers must already be
// authorised as super admins.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(rateLimit, rateWindow,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Error(w, http.StatusTooManyRequests, "too many audit requests")
		}),
	)
	r.With(limiter).Get("/audit", h.handleRecent)
}

func rateLimitKey(r *http.Request) (string, error) {
	if caller := access.CallerFromContext(r.Context()); caller != nil {
		return "user:" + caller.User.ID.String(), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
