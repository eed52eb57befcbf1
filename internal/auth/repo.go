package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/backoffice/backoffice/internal/platform/db"
	"github.com/backoffice/backoffice/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	Create(ctx context.Context, user User) (*User, error)
	UpdateProfile(ctx context.Context, id int64, name, avatar string) (*User, error)
	ListMemberships(ctx context.Context, userID int64) ([]Membership, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, email, COALESCE(password_hash, ''), name, COALESCE(avatar, ''), created_at, updated_at`

// FindByEmail fetches a user by email, case-insensitively.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, strings.TrimSpace(email))
	return scanUser(row)
}

// FindByID fetches a user by id.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// Create inserts a user. An empty password hash is stored as NULL.
func (r *PGRepository) Create(ctx context.Context, user User) (*User, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO users (email, password_hash, name, avatar)
		VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''))
		RETURNING `+userColumns, user.Email, user.PasswordHash, user.Name, user.Avatar)
	created, err := scanUser(row)
	if err != nil {
		return nil, db.MapError(err, "user "+user.Email)
	}
	return created, nil
}

// UpdateProfile overwrites name and avatar.
func (r *PGRepository) UpdateProfile(ctx context.Context, id int64, name, avatar string) (*User, error) {
	row := r.pool.QueryRow(ctx, `UPDATE users SET name = $2, avatar = NULLIF($3, ''), updated_at = now()
		WHERE id = $1 RETURNING `+userColumns, id, name, avatar)
	return scanUser(row)
}

// ListMemberships returns the user's organizations with the role held in each.
func (r *PGRepository) ListMemberships(ctx context.Context, userID int64) ([]Membership, error) {
	rows, err := r.pool.Query(ctx, `SELECT o.id, o.name, o.slug, r.id, r.name, r.slug
		FROM user_organization_roles uor
		JOIN organizations o ON o.id = uor.organization_id
		JOIN roles r ON r.id = uor.role_id
		WHERE uor.user_id = $1
		ORDER BY o.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	out := []Membership{}
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.OrganizationID, &m.OrganizationName, &m.OrganizationSlug, &m.RoleID, &m.RoleName, &m.RoleSlug); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Avatar, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

var _ Repository = (*PGRepository)(nil)
