package organizations

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/backoffice/backoffice/internal/platform/db"
	"github.com/backoffice/backoffice/internal/shared"
)

// Repository is the persistence contract for organizations.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Organization, error)
	ListForUser(ctx context.Context, userID int64) ([]Organization, error)
	NameOrSlugTaken(ctx context.Context, name, slug string, exceptID int64) (bool, error)
	Insert(ctx context.Context, name, slug string, ownerID int64) (*Organization, error)
	Update(ctx context.Context, id int64, name, slug string) (*Organization, error)
	Delete(ctx context.Context, id int64) error
	InsertRole(ctx context.Context, organizationID int64, name, slug string, permissionIDs []int64) (int64, error)
	InsertMembership(ctx context.Context, userID, organizationID, roleID int64) error
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

const orgColumns = `id, name, slug, COALESCE(owner_id, 0), created_at, updated_at`

func scanOrganization(row pgx.Row) (*Organization, error) {
	var o Organization
	if err := row.Scan(&o.ID, &o.Name, &o.Slug, &o.OwnerID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*Organization, error) {
	org, err := scanOrganization(r.db.QueryRow(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id))
	if err != nil {
		return nil, db.MapError(err, fmt.Sprintf("organization %d", id))
	}
	return org, nil
}

func (r *repository) ListForUser(ctx context.Context, userID int64) ([]Organization, error) {
	rows, err := r.db.Query(ctx, `SELECT o.id, o.name, o.slug, COALESCE(o.owner_id, 0), o.created_at, o.updated_at
		FROM organizations o
		JOIN user_organization_roles uor ON uor.organization_id = o.id
		WHERE uor.user_id = $1
		ORDER BY o.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()
	out := []Organization{}
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		out = append(out, *org)
	}
	return out, rows.Err()
}

func (r *repository) NameOrSlugTaken(ctx context.Context, name, slug string, exceptID int64) (bool, error) {
	var taken bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (
		SELECT 1 FROM organizations WHERE (lower(name) = lower($1) OR slug = $2) AND id <> $3
	)`, name, slug, exceptID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check organization uniqueness: %w", err)
	}
	return taken, nil
}

func (r *repository) Insert(ctx context.Context, name, slug string, ownerID int64) (*Organization, error) {
	org, err := scanOrganization(r.db.QueryRow(ctx, `INSERT INTO organizations (name, slug, owner_id)
		VALUES ($1, $2, $3) RETURNING `+orgColumns, name, slug, ownerID))
	if err != nil {
		return nil, db.MapError(err, "organization "+slug)
	}
	return org, nil
}

func (r *repository) Update(ctx context.Context, id int64, name, slug string) (*Organization, error) {
	org, err := scanOrganization(r.db.QueryRow(ctx, `UPDATE organizations SET name = $2, slug = $3, updated_at = now()
		WHERE id = $1 RETURNING `+orgColumns, id, name, slug))
	if err != nil {
		return nil, db.MapError(err, "organization "+slug)
	}
	return org, nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	statements := []string{
		`DELETE FROM user_organization_roles WHERE organization_id = $1`,
		`DELETE FROM role_permissions WHERE role_id IN (SELECT id FROM roles WHERE organization_id = $1)`,
		`DELETE FROM roles WHERE organization_id = $1`,
	}
	for _, stmt := range statements {
		if _, err := r.db.Exec(ctx, stmt, id); err != nil {
			return fmt.Errorf("delete organization %d: %w", id, err)
		}
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete organization %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("organization %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) InsertRole(ctx context.Context, organizationID int64, name, slug string, permissionIDs []int64) (int64, error) {
	var roleID int64
	err := r.db.QueryRow(ctx, `INSERT INTO roles (organization_id, name, slug) VALUES ($1, $2, $3) RETURNING id`,
		organizationID, name, slug).Scan(&roleID)
	if err != nil {
		return 0, db.MapError(err, "role "+slug)
	}
	if len(permissionIDs) > 0 {
		if _, err := r.db.Exec(ctx, `INSERT INTO role_permissions (role_id, permission_id)
			SELECT $1, unnest($2::bigint[]) ON CONFLICT DO NOTHING`, roleID, permissionIDs); err != nil {
			return 0, db.MapError(err, "role permission")
		}
	}
	return roleID, nil
}

func (r *repository) InsertMembership(ctx context.Context, userID, organizationID, roleID int64) error {
	_, err := r.db.Exec(ctx, `INSERT INTO user_organization_roles (user_id, organization_id, role_id)
		VALUES ($1, $2, $3)`, userID, organizationID, roleID)
	if err != nil {
		return db.MapError(err, "membership")
	}
	return nil
}
