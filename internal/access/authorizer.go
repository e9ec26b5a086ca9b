// Package access authenticates bearer callers and re-derives their role from
// the member table. It is the single authority check shared by every
// privileged endpoint.
package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/memberhub/portal/internal/identity"
	"github.com/memberhub/portal/internal/members"
)

var (
	// ErrUnauthenticated indicates a missing, invalid or unresolvable token.
	ErrUnauthenticated = errors.New("access: unauthenticated")
	// ErrNoRole indicates a valid identity with neither a member role nor
	// a metadata role hint.
	ErrNoRole = errors.New("access: no role for caller")
)

// Identities resolves access tokens to identity users.
type Identities interface {
	GetUser(ctx context.Context, accessToken string) (*identity.User, error)
}

// Profiles looks up member records by identity.
type Profiles interface {
	FindByAuthUserID(ctx context.Context, authUserID uuid.UUID) (*members.Profile, error)
}

// Caller is an authenticated requester.
type Caller struct {
	User    identity.User
	Profile *members.Profile
	// Role is empty when neither the member table nor metadata yields one.
	Role members.Role
}

// HasRole reports whether the caller resolved to any role.
func (c *Caller) HasRole() bool {
	return c != nil && c.Role != ""
}

// IsAdmin reports whether the caller is admin or super_admin.
func (c *Caller) IsAdmin() bool {
	return c != nil && c.Role.IsAdmin()
}

// IsSuperAdmin reports whether the caller is super_admin.
func (c *Caller) IsSuperAdmin() bool {
	return c != nil && c.Role.IsSuperAdmin()
}

// Authorizer resolves callers. Role claims in request bodies or headers are
// never consulted.
type Authorizer struct {
	identities Identities
	profiles   Profiles
	logger     *slog.Logger
}

// NewAuthorizer constructs an Authorizer.
func NewAuthorizer(identities Identities, profiles Profiles, logger *slog.Logger) *Authorizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authorizer{identities: identities, profiles: profiles, logger: logger}
}

// Identify resolves the token and loads the caller's profile. The caller's
// role may be empty.
func (a *Authorizer) Identify(ctx context.Context, token string) (*Caller, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	user, err := a.identities.GetUser(ctx, token)
	if err != nil {
		if !errors.Is(err, identity.ErrInvalidToken) {
			a.logger.Warn("access resolve token", slog.Any("error", err))
		}
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	profile, err := a.profiles.FindByAuthUserID(ctx, user.ID)
	if err != nil {
		if !errors.Is(err, members.ErrNotFound) {
			return nil, fmt.Errorf("access: load member: %w", err)
		}
		profile = nil
	}
	role, _ := ResolveRole(profile, user.AppMetadata)
	return &Caller{User: *user, Profile: profile, Role: role}, nil
}

// Authenticate is Identify plus the requirement that a role was resolved.
func (a *Authorizer) Authenticate(ctx context.Context, token string) (*Caller, error) {
	caller, err := a.Identify(ctx, token)
	if err != nil {
		return nil, err
	}
	if !caller.HasRole() {
		return nil, ErrNoRole
	}
	return caller, nil
}

// ResolveRole derives the caller's role in a fixed order: member-table role,
// then the is_super_admin flag, then "super_admin" in roles, then "admin" in
// roles.
func ResolveRole(profile *members.Profile, meta identity.Metadata) (members.Role, bool) {
	if profile != nil {
		if role, ok := members.ParseRole(string(profile.Role)); ok {
			return role, true
		}
	}
	switch {
	case meta.IsSuperAdmin:
		return members.RoleSuperAdmin, true
	case meta.HasRole(string(members.RoleSuperAdmin)):
		return members.RoleSuperAdmin, true
	case meta.HasRole(string(members.RoleAdmin)):
		return members.RoleAdmin, true
	}
	return "", false
}
