package roles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/backoffice/backoffice/internal/permissions"
	"github.com/backoffice/backoffice/internal/platform/db"
	"github.com/backoffice/backoffice/internal/shared"
)

// Repository is the persistence contract of the role store.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, organizationID, roleID int64) (*Role, error)
	List(ctx context.Context, organizationID int64, filters SearchFilters) ([]Role, error)
	SlugTaken(ctx context.Context, organizationID int64, slug string, exceptRoleID int64) (bool, error)
	Insert(ctx context.Context, organizationID int64, name, slug string) (int64, error)
	UpdateFields(ctx context.Context, organizationID, roleID int64, name, slug string) error
	ReplacePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
	Delete(ctx context.Context, organizationID, roleID int64) error
	HeldByOwner(ctx context.Context, organizationID, roleID int64) (bool, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const roleWithPermissions = `SELECT r.id, r.organization_id, r.name, r.slug, r.created_at, r.updated_at,
		p.action::text, p.subject::text
	FROM roles r
	LEFT JOIN role_permissions rp ON rp.role_id = r.id
	LEFT JOIN permissions p ON p.id = rp.permission_id`

func (r *repository) Get(ctx context.Context, organizationID, roleID int64) (*Role, error) {
	rows, err := r.db.Query(ctx, roleWithPermissions+`
		WHERE r.organization_id = $1 AND r.id = $2
		ORDER BY p.id`, organizationID, roleID)
	if err != nil {
		return nil, fmt.Errorf("get role: %w", err)
	}
	list, err := collectRoles(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("role %d does not belong to organization %d: %w", roleID, organizationID, shared.ErrNotFound)
	}
	return &list[0], nil
}

func (r *repository) List(ctx context.Context, organizationID int64, filters SearchFilters) ([]Role, error) {
	rows, err := r.db.Query(ctx, roleWithPermissions+`
		WHERE r.organization_id = $1
		  AND ($2 = '' OR r.name ILIKE '%' || $2 || '%')
		  AND ($3 = '' OR r.slug = $3)
		ORDER BY r.id, p.id`, organizationID, filters.Name, filters.Slug)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return collectRoles(rows)
}

func (r *repository) SlugTaken(ctx context.Context, organizationID int64, slug string, exceptRoleID int64) (bool, error) {
	var taken bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (
		SELECT 1 FROM roles WHERE organization_id = $1 AND slug = $2 AND id <> $3
	)`, organizationID, slug, exceptRoleID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check role slug: %w", err)
	}
	return taken, nil
}

func (r *repository) Insert(ctx context.Context, organizationID int64, name, slug string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO roles (organization_id, name, slug)
		VALUES ($1, $2, $3) RETURNING id`, organizationID, name, slug).Scan(&id)
	if err != nil {
		return 0, db.MapError(err, "role "+slug)
	}
	return id, nil
}

func (r *repository) UpdateFields(ctx context.Context, organizationID, roleID int64, name, slug string) error {
	tag, err := r.db.Exec(ctx, `UPDATE roles SET name = $3, slug = $4, updated_at = now()
		WHERE organization_id = $1 AND id = $2`, organizationID, roleID, name, slug)
	if err != nil {
		return db.MapError(err, "role "+slug)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("role %d: %w", roleID, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) ReplacePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("clear role permissions: %w", err)
	}
	if len(permissionIDs) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `INSERT INTO role_permissions (role_id, permission_id)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT DO NOTHING`, roleID, permissionIDs)
	if err != nil {
		return db.MapError(err, "role permission")
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, organizationID, roleID int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("delete role permissions: %w", err)
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM user_organization_roles
		WHERE organization_id = $1 AND role_id = $2`, organizationID, roleID); err != nil {
		return fmt.Errorf("delete role memberships: %w", err)
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM roles WHERE organization_id = $1 AND id = $2`, organizationID, roleID)
	if err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("role %d: %w", roleID, shared.ErrNotFound)
	}
	return nil
}

// HeldByOwner reports whether the organization owner's membership uses roleID.
func (r *repository) HeldByOwner(ctx context.Context, organizationID, roleID int64) (bool, error) {
	var held bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (
		SELECT 1 FROM organizations o
		JOIN user_organization_roles uor
		  ON uor.organization_id = o.id AND uor.user_id = o.owner_id
		WHERE o.id = $1 AND uor.role_id = $2
	)`, organizationID, roleID).Scan(&held)
	if err != nil {
		return false, fmt.Errorf("check owner role: %w", err)
	}
	return held, nil
}

func collectRoles(rows pgx.Rows) ([]Role, error) {
	defer rows.Close()

	out := []Role{}
	index := map[int64]int{}
	for rows.Next() {
		var (
			role            Role
			action, subject *string
		)
		if err := rows.Scan(&role.ID, &role.OrganizationID, &role.Name, &role.Slug,
			&role.CreatedAt, &role.UpdatedAt, &action, &subject); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		i, ok := index[role.ID]
		if !ok {
			role.Permissions = []permissions.Config{}
			out = append(out, role)
			i = len(out) - 1
			index[role.ID] = i
		}
		if action != nil && subject != nil {
			out[i].Permissions = append(out[i].Permissions, permissions.Config{
				Action:  permissions.Action(*action),
				Subject: permissions.Subject(*subject),
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read roles: %w", err)
	}
	return out, nil
}
