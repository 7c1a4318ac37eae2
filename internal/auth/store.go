package auth

import "context"

// Store describes persistence operations required by the auth subsystem.
type Store interface {
	Users(ctx context.Context) UserStore
	Roles(ctx context.Context) RoleStore
}

// UserStore manages user rows. Lookups never return soft-deleted users and
// always resolve the role join (RoleName/RoleLevel populated).
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Update(ctx context.Context, id string, upd UserUpdate) error
	SoftDelete(ctx context.Context, id string) error
	Settings(ctx context.Context, id string) ([]byte, error)
	UpdateSettings(ctx context.Context, id string, raw []byte) error
}

// RoleStore reads the seeded role catalog.
type RoleStore interface {
	Find(ctx context.Context, id string) (*Role, error)
	List(ctx context.Context) ([]*Role, error)
}
