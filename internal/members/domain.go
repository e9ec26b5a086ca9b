package members

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Role is a member's authority level.
type Role string

// Roles ordered from least to most authority.
const (
	RoleMember     Role = "member"
	RoleHonourable Role = "honourable"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

var (
	// ErrNotFound indicates no member matched the lookup.
	ErrNotFound = errors.New("members: not found")
	// ErrAlreadyLinked indicates the identity or member row is already linked.
	ErrAlreadyLinked = errors.New("members: profile already linked")
)

// ParseRole converts a stored role name. Unknown values report false.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleMember, RoleHonourable, RoleAdmin, RoleSuperAdmin:
		return Role(s), true
	default:
		return "", false
	}
}

// Rank returns the role's position in the authority order; 0 for unknown roles.
func (r Role) Rank() int {
	switch r {
	case RoleMember:
		return 1
	case RoleHonourable:
		return 2
	case RoleAdmin:
		return 3
	case RoleSuperAdmin:
		return 4
	default:
		return 0
	}
}

// AtLeast reports whether r carries at least the authority of other.
func (r Role) AtLeast(other Role) bool {
	return r.Rank() > 0 && r.Rank() >= other.Rank()
}

// IsAdmin reports whether r is admin or super_admin.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// IsSuperAdmin reports whether r is super_admin.
func (r Role) IsSuperAdmin() bool {
	return r == RoleSuperAdmin
}

// Profile is the organisation's record for a person.
type Profile struct {
	ID          int64      `json:"id"`
	FullName    string     `json:"full_name"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	NationalID  string     `json:"national_id"`
	Gender      bool       `json:"gender"`
	Role        Role       `json:"role"`
	BatchYear   int        `json:"batch"`
	University  string     `json:"university"`
	School      string     `json:"school"`
	Phone       string     `json:"phone"`
	Designation string     `json:"designation"`
	AuthUserID  *uuid.UUID `json:"auth_user_id"`
	ImageBucket string     `json:"profile_image_bucket,omitempty"`
	ImagePath   string     `json:"profile_image_path,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// SelfUpdate lists the fields a member may change on their own profile.
// Nil fields are left untouched.
type SelfUpdate struct {
	FullName    *string `json:"full_name" validate:"omitempty,min=2,max=120"`
	Username    *string `json:"username" validate:"omitempty,min=3,max=40,alphanum"`
	Phone       *string `json:"phone" validate:"omitempty,max=20"`
	Designation *string `json:"designation" validate:"omitempty,max=120"`
	University  *string `json:"university" validate:"omitempty,max=160"`
	School      *string `json:"school" validate:"omitempty,max=160"`
	BatchYear   *int    `json:"batch" validate:"omitempty,min=1950,max=2100"`
}

// Empty reports whether the update changes nothing.
func (u SelfUpdate) Empty() bool {
	return u.FullName == nil && u.Username == nil && u.Phone == nil && u.Designation == nil &&
		u.University == nil && u.School == nil && u.BatchYear == nil
}
