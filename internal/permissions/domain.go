// Package permissions holds the admin permission catalog and per-admin
// grants, the read models over them, and their administration endpoints.
package permissions

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/memberhub/portal/internal/members"
)

var (
	// ErrForbidden indicates the actor may not change permissions.
	ErrForbidden = errors.New("permissions: super admin required")
	// ErrUnknownKey indicates no catalog row exists for the key.
	ErrUnknownKey = errors.New("permissions: unknown permission key")
	// ErrGrantNotFound indicates no active grant matched.
	ErrGrantNotFound = errors.New("permissions: grant not found")
)

// Audit vocabulary for permission changes.
const (
	ActionToggle     = "toggle_permission"
	ActionGrant      = "grant_permission"
	ActionRevoke     = "revoke_permission"
	EntityPermission = "admin_permission"
	EntityGrant      = "admin_granted_permission"
)

// Catalog is a global on/off switch for a feature area.
type Catalog struct {
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsEnabled   bool      `json:"is_enabled"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Grant is a per-admin allow-list entry.
type Grant struct {
	AdminID       uuid.UUID  `json:"admin_id"`
	PermissionKey string     `json:"permission_key"`
	IsActive      bool       `json:"is_active"`
	GrantedBy     *uuid.UUID `json:"granted_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Subject is the identity a read model answers for.
type Subject struct {
	UserID uuid.UUID
	Role   members.Role
}

// Changed is published after a catalog toggle or grant change so that
// read models can refresh.
type Changed struct {
	Key     string
	AdminID uuid.UUID
}
