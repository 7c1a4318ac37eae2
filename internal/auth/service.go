package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	minUsernameLen = 3
	minPasswordLen = 6
)

// Service owns the login/refresh protocol and administrative user management
// on top of a Store and a Tokens signer.
type Service struct {
	store  Store
	tokens *Tokens
	now    func() time.Time
}

// NewService constructs the auth service.
func NewService(store Store, tokens *Tokens) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if tokens == nil {
		return nil, errors.New("auth: token service is required")
	}
	return &Service{store: store, tokens: tokens, now: time.Now}, nil
}

// Tokens exposes the underlying signer, used by the HTTP layer for cookie
// lifetimes and gate verification.
func (s *Service) Tokens() *Tokens { return s.tokens }

// Login verifies credentials and issues a fresh token pair. Unknown usernames
// and wrong passwords produce the same ErrBadCredentials.
func (s *Service) Login(ctx context.Context, username, password string) (Pair, Identity, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Pair{}, Identity{}, ErrBadCredentials
	}
	user, err := s.store.Users(ctx).FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Pair{}, Identity{}, ErrBadCredentials
		}
		return Pair{}, Identity{}, err
	}
	if !VerifyPassword(password, user.PasswordHash) {
		return Pair{}, Identity{}, ErrBadCredentials
	}
	identity := IdentityOf(user)
	pair, err := s.tokens.IssuePair(payloadOf(identity))
	if err != nil {
		return Pair{}, Identity{}, err
	}
	return pair, identity, nil
}

// Refresh exchanges a valid refresh token for a new pair. The identity is
// reloaded from the store so role changes and deletions take effect at the
// next refresh at the latest. The new pair includes a rotated refresh token;
// the presented one stays verifiable until its natural expiry (tokens are
// stateless, no server-side session table).
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Pair, Identity, error) {
	payload, err := s.tokens.Verify(KindRefresh, refreshToken)
	if err != nil {
		return Pair{}, Identity{}, ErrInvalidToken
	}
	user, err := s.store.Users(ctx).Find(ctx, payload.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Pair{}, Identity{}, ErrInvalidToken
		}
		return Pair{}, Identity{}, err
	}
	identity := IdentityOf(user)
	pair, err := s.tokens.IssuePair(payloadOf(identity))
	if err != nil {
		return Pair{}, Identity{}, err
	}
	return pair, identity, nil
}

// VerifyAccess validates an access token for the request gate.
func (s *Service) VerifyAccess(token string) (Payload, error) {
	return s.tokens.Verify(KindAccess, token)
}

// Identity loads the current public identity for a user id.
func (s *Service) Identity(ctx context.Context, userID string) (Identity, error) {
	user, err := s.store.Users(ctx).Find(ctx, userID)
	if err != nil {
		return Identity{}, err
	}
	return IdentityOf(user), nil
}

// CreateUser registers a new user with a hashed password. Administrative
// operation; the caller is responsible for the role-level check.
func (s *Service) CreateUser(ctx context.Context, username, password, roleID string) (Identity, error) {
	username = strings.TrimSpace(username)
	if len(username) < minUsernameLen {
		return Identity{}, fmt.Errorf("%w: username must have at least %d characters", ErrInvalidInput, minUsernameLen)
	}
	if len(password) < minPasswordLen {
		return Identity{}, fmt.Errorf("%w: password must have at least %d characters", ErrInvalidInput, minPasswordLen)
	}
	role, err := s.store.Roles(ctx).Find(ctx, roleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, fmt.Errorf("%w: unknown role", ErrInvalidInput)
		}
		return Identity{}, err
	}
	if _, err := s.store.Users(ctx).FindByUsername(ctx, username); err == nil {
		return Identity{}, ErrAlreadyExists
	} else if !errors.Is(err, ErrNotFound) {
		return Identity{}, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return Identity{}, err
	}
	user := &User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		RoleID:       role.ID,
		RoleName:     role.Name,
		RoleLevel:    role.Level,
	}
	if err := s.store.Users(ctx).Create(ctx, user); err != nil {
		return Identity{}, err
	}
	return IdentityOf(user), nil
}

// UpdateUser applies optional username/password/role changes.
func (s *Service) UpdateUser(ctx context.Context, id string, username, password, roleID *string) error {
	upd := UserUpdate{}
	if username != nil {
		name := strings.TrimSpace(*username)
		if len(name) < minUsernameLen {
			return fmt.Errorf("%w: username must have at least %d characters", ErrInvalidInput, minUsernameLen)
		}
		if existing, err := s.store.Users(ctx).FindByUsername(ctx, name); err == nil {
			if existing.ID != id {
				return ErrAlreadyExists
			}
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		upd.Username = &name
	}
	if password != nil {
		if len(*password) < minPasswordLen {
			return fmt.Errorf("%w: password must have at least %d characters", ErrInvalidInput, minPasswordLen)
		}
		hash, err := HashPassword(*password)
		if err != nil {
			return err
		}
		upd.PasswordHash = &hash
	}
	if roleID != nil {
		if _, err := s.store.Roles(ctx).Find(ctx, *roleID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: unknown role", ErrInvalidInput)
			}
			return err
		}
		upd.RoleID = roleID
	}
	if upd.Username == nil && upd.PasswordHash == nil && upd.RoleID == nil {
		return fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	return s.store.Users(ctx).Update(ctx, id, upd)
}

// DeleteUser marks a user deleted. The row is kept for audit history.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	return s.store.Users(ctx).SoftDelete(ctx, id)
}

// ListUsers returns all active users as identities.
func (s *Service) ListUsers(ctx context.Context) ([]Identity, error) {
	users, err := s.store.Users(ctx).List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Identity, 0, len(users))
	for _, u := range users {
		out = append(out, IdentityOf(u))
	}
	return out, nil
}

// ListRoles returns the seeded role catalog ordered by level.
func (s *Service) ListRoles(ctx context.Context) ([]*Role, error) {
	return s.store.Roles(ctx).List(ctx)
}

// Settings returns the raw per-user settings document.
func (s *Service) Settings(ctx context.Context, userID string) ([]byte, error) {
	return s.store.Users(ctx).Settings(ctx, userID)
}

// UpdateSettings replaces the per-user settings document.
func (s *Service) UpdateSettings(ctx context.Context, userID string, raw []byte) error {
	return s.store.Users(ctx).UpdateSettings(ctx, userID, raw)
}

func payloadOf(id Identity) Payload {
	return Payload{
		UserID:    id.ID,
		Username:  id.Username,
		Role:      id.Role,
		RoleLevel: id.RoleLevel,
	}
}
