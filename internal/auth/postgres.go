package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"voltmesh.io/internal/ids"
)

var _ UserStore = (*PGStore)(nil)

// PGStore implements UserStore using PostgreSQL via database/sql
// (the pgx stdlib driver is registered by the caller).
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const userColumns = `id, email, role, company_id, permissions, active, email_verified, password_hash, last_login_at, created_at, updated_at`

func (s *PGStore) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	u.Email = NormalizeEmail(u.Email)
	perms, _ := json.Marshal(u.Permissions)
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, email, role, company_id, permissions, active, email_verified, password_hash)
		 values($1,$2,$3,$4,$5,$6,$7,$8)`,
		u.ID, u.Email, u.Role, u.CompanyID, perms, u.Active, u.EmailVerified, u.PasswordHash,
	)
	return err
}

func (s *PGStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email=$1`, NormalizeEmail(email))
	return scanUser(row)
}

func (s *PGStore) FindByID(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id)
	return scanUser(row)
}

func (s *PGStore) SetActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`update users set active=$1, updated_at=now() where id=$2`, active, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`update users set last_login_at=$1 where id=$2`, at.UTC(), id)
	return err
}

func (s *PGStore) List(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+userColumns+` from users order by created_at asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var (
		u         User
		companyID sql.NullString
		perms     []byte
		lastLogin sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.Role, &companyID, &perms, &u.Active,
		&u.EmailVerified, &u.PasswordHash, &lastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if companyID.Valid {
		u.CompanyID = companyID.String
	}
	if len(perms) > 0 {
		_ = json.Unmarshal(perms, &u.Permissions)
	}
	if lastLogin.Valid {
		at := lastLogin.Time
		u.LastLoginAt = &at
	}
	return &u, nil
}
