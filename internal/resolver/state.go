// Package resolver tracks who is signed in and what they may do, for one
// client session.
package resolver

import (
	"github.com/memberhub/portal/internal/identity"
	"github.com/memberhub/portal/internal/members"
	"github.com/memberhub/portal/internal/permissions"
)

// Phase is the resolver's position in its state machine.
type Phase string

// Resolver phases.
const (
	PhaseInitializing  Phase = "INITIALIZING"
	PhaseAnonymous     Phase = "ANONYMOUS"
	PhaseNeedsProfile  Phase = "AUTHENTICATED_NO_PROFILE"
	PhaseAuthenticated Phase = "AUTHENTICATED_WITH_PROFILE"
	// PhaseProfileUnavailable is a session whose profile could not be
	// loaded and that has no earlier resolution to fall back on. It
	// carries no role until a later resolution succeeds.
	PhaseProfileUnavailable Phase = "PROFILE_UNAVAILABLE"
)

// State is an immutable snapshot of the resolver.
type State struct {
	Phase   Phase
	Session *identity.Session
	Profile *members.Profile
	Role    members.Role
	// NeedsProfileSetup is true for a valid session without a member record.
	NeedsProfileSetup bool
	// Err holds the last resolution failure. Role and Profile keep their
	// previous values when it is set and the session user is unchanged.
	Err error
}

// IsAdmin reports whether the role is admin or super_admin.
func (s State) IsAdmin() bool {
	return s.Role.IsAdmin()
}

// IsSuperAdmin reports whether the role is super_admin.
func (s State) IsSuperAdmin() bool {
	return s.Role.IsSuperAdmin()
}

// Subject is the permission subject for this state.
func (s State) Subject() permissions.Subject {
	if s.Session == nil {
		return permissions.Subject{}
	}
	return permissions.Subject{UserID: s.Session.User.ID, Role: s.Role}
}

// SignInResult reports the outcome of SignIn. Err is nil on success.
type SignInResult struct {
	Session *identity.Session
	Err     error
}

// OK reports whether sign-in succeeded.
func (r SignInResult) OK() bool {
	return r.Err == nil && r.Session != nil
}
