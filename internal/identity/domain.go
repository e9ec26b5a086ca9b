// Package identity implements the portal's identity provider: password
// accounts, server-side sessions and signed access tokens.
package identity

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidCredentials indicates an unknown email or wrong password.
	ErrInvalidCredentials = errors.New("identity: invalid login credentials")
	// ErrEmailNotConfirmed indicates the account exists but cannot sign in yet.
	ErrEmailNotConfirmed = errors.New("identity: email not confirmed")
	// ErrInvalidToken indicates a missing, malformed, expired or revoked token.
	ErrInvalidToken = errors.New("identity: invalid token")
	// ErrUserNotFound indicates no account matched the lookup.
	ErrUserNotFound = errors.New("identity: user not found")
	// ErrEmailTaken indicates an account already uses the email.
	ErrEmailTaken = errors.New("identity: user already registered")
	// ErrSessionNotFound indicates the session expired or was revoked.
	ErrSessionNotFound = errors.New("identity: session not found")
	// ErrMisconfigured indicates the provider lacks its issuer or signing secret.
	ErrMisconfigured = errors.New("identity: issuer and secret are required")
)

// Metadata carries provider-side role hints for a user.
type Metadata struct {
	Roles        []string `json:"roles,omitempty"`
	IsSuperAdmin bool     `json:"is_super_admin,omitempty"`
}

// HasRole reports whether name appears in the roles list.
func (m Metadata) HasRole(name string) bool {
	for _, r := range m.Roles {
		if r == name {
			return true
		}
	}
	return false
}

// User is an identity-provider account.
type User struct {
	ID               uuid.UUID  `json:"id"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at,omitempty"`
	AppMetadata      Metadata   `json:"app_metadata"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Session is an issued credential identifying a signed-in user.
type Session struct {
	ID          string    `json:"-"`
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        User      `json:"user"`
}

// EventKind names a session change.
type EventKind string

// Session change notifications.
const (
	EventSignedIn       EventKind = "SIGNED_IN"
	EventSignedOut      EventKind = "SIGNED_OUT"
	EventTokenRefreshed EventKind = "TOKEN_REFRESHED"
)

// AuthEvent is delivered to session-change subscribers. Session is nil for
// EventSignedOut.
type AuthEvent struct {
	Kind    EventKind
	Session *Session
}

// CreateUserParams describes an account created with elevated credentials.
type CreateUserParams struct {
	Email        string
	Password     string
	EmailConfirm bool
	AppMetadata  Metadata
}
