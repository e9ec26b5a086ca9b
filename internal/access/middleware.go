package access

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/memberhub/portal/internal/identity"
	"github.com/memberhub/portal/internal/members"
	"github.com/memberhub/portal/internal/platform/httpx"
)

type callerKey struct{}

// ContextWithCaller stores the caller on ctx.
func ContextWithCaller(ctx context.Context, caller *Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFromContext returns the caller stored by the middleware.
func CallerFromContext(ctx context.Context) *Caller {
	caller, _ := ctx.Value(callerKey{}).(*Caller)
	return caller
}

// Middleware wires caller resolution into HTTP routes.
type Middleware struct {
	Authorizer *Authorizer
	Logger     *slog.Logger
}

// Identify resolves the bearer token and stores the caller. Requests without
// a valid token get 401.
func (m Middleware) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := identity.BearerToken(r)
		if !ok {
			httpx.Error(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		caller, err := m.Authorizer.Identify(r.Context(), token)
		if err != nil {
			if errors.Is(err, ErrUnauthenticated) {
				httpx.Error(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			m.logger().Error("access identify", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithCaller(r.Context(), caller)))
	})
}

// RequireRole allows callers whose role satisfies allow. It must run after
// Identify.
func (m Middleware) RequireRole(allow func(members.Role) bool, message string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := CallerFromContext(r.Context())
			if caller == nil {
				httpx.Error(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			if !caller.HasRole() || !allow(caller.Role) {
				httpx.Error(w, http.StatusForbidden, message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin allows admin and super_admin callers.
func (m Middleware) RequireAdmin() func(http.Handler) http.Handler {
	return m.RequireRole(members.Role.IsAdmin, "admin access required")
}

// RequireSuperAdmin allows super_admin callers only.
func (m Middleware) RequireSuperAdmin() func(http.Handler) http.Handler {
	return m.RequireRole(members.Role.IsSuperAdmin, "super admin access required")
}

func (m Middleware) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}
