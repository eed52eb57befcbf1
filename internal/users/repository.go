package users

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

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const memberSelect = `SELECT u.id, u.email, u.name, COALESCE(u.avatar, ''), r.id, r.name, r.slug, uor.created_at
	FROM user_organization_roles uor
	JOIN users u ON u.id = uor.user_id
	JOIN roles r ON r.id = uor.role_id`

// ListMembers returns the organization's members ordered by name.
func (r *Repository) ListMembers(ctx context.Context, organizationID int64) ([]Member, error) {
	rows, err := r.pool.Query(ctx, memberSelect+`
		WHERE uor.organization_id = $1
		ORDER BY u.name, u.id`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()
	out := []Member{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetMember returns one membership.
func (r *Repository) GetMember(ctx context.Context, organizationID, userID int64) (*Member, error) {
	m, err := scanMember(r.pool.QueryRow(ctx, memberSelect+`
		WHERE uor.organization_id = $1 AND uor.user_id = $2`, organizationID, userID))
	if err != nil {
		return nil, db.MapError(err, fmt.Sprintf("member %d", userID))
	}
	return &m, nil
}

// FindUserIDByEmail resolves a user account by email.
func (r *Repository) FindUserIDByEmail(ctx context.Context, email string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `SELECT id FROM users WHERE lower(email) = lower($1)`, strings.TrimSpace(email)).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("no user with email %s: %w", email, shared.ErrNotFound)
		}
		return 0, err
	}
	return id, nil
}

// RoleBelongs reports whether roleID is a role of the organization.
func (r *Repository) RoleBelongs(ctx context.Context, organizationID, roleID int64) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE id = $1 AND organization_id = $2)`,
		roleID, organizationID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check role: %w", err)
	}
	return ok, nil
}

// OwnerID returns the organization's owner user id, 0 if unset.
func (r *Repository) OwnerID(ctx context.Context, organizationID int64) (int64, error) {
	var owner int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(owner_id, 0) FROM organizations WHERE id = $1`, organizationID).Scan(&owner)
	if err != nil {
		return 0, db.MapError(err, fmt.Sprintf("organization %d", organizationID))
	}
	return owner, nil
}

// InsertMember creates a membership. An existing membership is a conflict.
func (r *Repository) InsertMember(ctx context.Context, organizationID, userID, roleID int64) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO user_organization_roles (user_id, organization_id, role_id)
		VALUES ($1, $2, $3)`, userID, organizationID, roleID)
	if err != nil {
		return db.MapError(err, "membership")
	}
	return nil
}

// UpdateMemberRole switches the member to another role.
func (r *Repository) UpdateMemberRole(ctx context.Context, organizationID, userID, roleID int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE user_organization_roles SET role_id = $3
		WHERE organization_id = $1 AND user_id = $2`, organizationID, userID, roleID)
	if err != nil {
		return db.MapError(err, "membership")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("member %d: %w", userID, shared.ErrNotFound)
	}
	return nil
}

// DeleteMember removes a membership.
func (r *Repository) DeleteMember(ctx context.Context, organizationID, userID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM user_organization_roles WHERE organization_id = $1 AND user_id = $2`,
		organizationID, userID)
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("member %d: %w", userID, shared.ErrNotFound)
	}
	return nil
}

func scanMember(row pgx.Row) (Member, error) {
	var m Member
	err := row.Scan(&m.UserID, &m.Email, &m.Name, &m.Avatar, &m.RoleID, &m.RoleName, &m.RoleSlug, &m.JoinedAt)
	return m, err
}
