package auth

import "time"

// Role is a named authorization level. Authorization checks compare the
// integer level against a required threshold, higher means more privileged.
type Role struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Level int    `json:"level"`
}

// Administrative routes require at least this role level.
const AdminLevel = 2

// User is a principal able to authenticate. The password hash never leaves
// this package. Deleted users are soft-deleted (DeletedAt set) so audit
// history stays intact.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	RoleID       string
	RoleName     string
	RoleLevel    int
	Settings     []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// Identity is the outward-facing view of an authenticated user. It carries no
// secret material and is safe to serialize in responses.
type Identity struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	RoleLevel int    `json:"role_level"`
}

// IdentityOf projects a user row onto its public identity.
func IdentityOf(u *User) Identity {
	return Identity{
		ID:        u.ID,
		Username:  u.Username,
		Role:      u.RoleName,
		RoleLevel: u.RoleLevel,
	}
}

// UserUpdate carries optional field updates for administrative edits.
type UserUpdate struct {
	Username     *string
	PasswordHash *string
	RoleID       *string
}
