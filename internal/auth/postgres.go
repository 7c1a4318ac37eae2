package auth

import (
	"context"
	"database/sql"
	"errors"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Users(context.Context) UserStore { return &userStore{db: s.db} }
func (s *PGStore) Roles(context.Context) RoleStore { return &roleStore{db: s.db} }

// User store ---------------------------------------------------------------
type userStore struct{ db *sql.DB }

const userColumns = `u.id, u.username, u.password_hash, u.role_id, r.name, r.level, u.created_at, u.updated_at`

func (s *userStore) Create(ctx context.Context, u *User) error {
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, username, password_hash, role_id) values($1,$2,$3,$4)`,
		u.ID, u.Username, u.PasswordHash, u.RoleID,
	)
	return err
}

func (s *userStore) Find(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users u
		 join roles r on r.id = u.role_id
		 where u.id=$1 and u.deleted_at is null`, id)
	return scanUser(row)
}

func (s *userStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users u
		 join roles r on r.id = u.role_id
		 where u.username=$1 and u.deleted_at is null`, username)
	return scanUser(row)
}

func (s *userStore) List(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+userColumns+` from users u
		 join roles r on r.id = u.role_id
		 where u.deleted_at is null
		 order by u.created_at desc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *userStore) Update(ctx context.Context, id string, upd UserUpdate) error {
	res, err := s.db.ExecContext(ctx,
		`update users set
			username = coalesce($2, username),
			password_hash = coalesce($3, password_hash),
			role_id = coalesce($4, role_id),
			updated_at = now()
		 where id=$1 and deleted_at is null`,
		id, upd.Username, upd.PasswordHash, upd.RoleID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *userStore) SoftDelete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set deleted_at = now(), updated_at = now()
		 where id=$1 and deleted_at is null`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *userStore) Settings(ctx context.Context, id string) ([]byte, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`select settings from users where id=$1 and deleted_at is null`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (s *userStore) UpdateSettings(ctx context.Context, id string, raw []byte) error {
	res, err := s.db.ExecContext(ctx,
		`update users set settings=$2, updated_at = now()
		 where id=$1 and deleted_at is null`, id, raw)
	if err != nil {
		return err
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.RoleID,
		&u.RoleName, &u.RoleLevel, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Role store ---------------------------------------------------------------
type roleStore struct{ db *sql.DB }

func (s *roleStore) Find(ctx context.Context, id string) (*Role, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, name, level from roles where id=$1`, id)
	var role Role
	if err := row.Scan(&role.ID, &role.Name, &role.Level); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &role, nil
}

func (s *roleStore) List(ctx context.Context) ([]*Role, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, name, level from roles order by level asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []*Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Level); err != nil {
			return nil, err
		}
		roles = append(roles, &role)
	}
	return roles, rows.Err()
}
