package rbac

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/backoffice/backoffice/internal/permissions"
)

// Repository resolves memberships from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// IsMember reports whether the user holds a role in the organization.
func (r *Repository) IsMember(ctx context.Context, userID, organizationID int64) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
		SELECT 1 FROM user_organization_roles WHERE user_id = $1 AND organization_id = $2
	)`, userID, organizationID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("rbac: is member: %w", err)
	}
	return ok, nil
}

// GetRole loads the membership role and its permissions in one statement so
// the permission set comes from a single snapshot.
func (r *Repository) GetRole(ctx context.Context, userID, organizationID int64) (*Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT r.id, r.organization_id, r.name, r.slug, p.action::text, p.subject::text
		FROM user_organization_roles uor
		JOIN roles r ON r.id = uor.role_id AND r.organization_id = uor.organization_id
		LEFT JOIN role_permissions rp ON rp.role_id = r.id
		LEFT JOIN permissions p ON p.id = rp.permission_id
		WHERE uor.user_id = $1 AND uor.organization_id = $2
		ORDER BY p.id`, userID, organizationID)
	if err != nil {
		return nil, fmt.Errorf("rbac: get role: %w", err)
	}
	defer rows.Close()

	var role *Role
	for rows.Next() {
		var (
			current         Role
			action, subject *string
		)
		if err := rows.Scan(&current.ID, &current.OrganizationID, &current.Name, &current.Slug, &action, &subject); err != nil {
			return nil, fmt.Errorf("rbac: scan role: %w", err)
		}
		if role == nil {
			current.Permissions = []permissions.Config{}
			role = &current
		}
		if action != nil && subject != nil {
			role.Permissions = append(role.Permissions, permissions.Config{
				Action:  permissions.Action(*action),
				Subject: permissions.Subject(*subject),
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rbac: read role: %w", err)
	}
	return role, nil
}
