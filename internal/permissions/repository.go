package permissions

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/backoffice/backoffice/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for the catalog.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const permissionColumns = `id, action::text, subject::text, created_at, updated_at`

// FindByConfig looks up the catalog row for cfg.
func (r *Repository) FindByConfig(ctx context.Context, cfg Config) (Permission, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+permissionColumns+`
		FROM permissions WHERE action = $1 AND subject = $2`, string(cfg.Action), string(cfg.Subject))
	p, err := scanPermission(row)
	if err != nil {
		return Permission{}, db.MapError(err, "permission "+cfg.String())
	}
	return p, nil
}

// List returns the catalog ordered by subject then action.
func (r *Repository) List(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+permissionColumns+`
		FROM permissions ORDER BY subject, action`)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	defer rows.Close()

	var out []Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Upsert inserts the configs that are missing. Existing rows are untouched.
func (r *Repository) Upsert(ctx context.Context, configs []Config) (int, error) {
	inserted := 0
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, cfg := range configs {
			batch.Queue(`INSERT INTO permissions (action, subject)
				VALUES ($1::permission_action, $2::permission_subject)
				ON CONFLICT (action, subject) DO NOTHING`, string(cfg.Action), string(cfg.Subject))
		}
		results := tx.SendBatch(ctx, batch)
		defer results.Close()
		for range configs {
			tag, err := results.Exec()
			if err != nil {
				return fmt.Errorf("upsert permission: %w", err)
			}
			inserted += int(tag.RowsAffected())
		}
		return results.Close()
	})
	return inserted, err
}

func scanPermission(row pgx.Row) (Permission, error) {
	var (
		p       Permission
		action  string
		subject string
	)
	if err := row.Scan(&p.ID, &action, &subject, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Permission{}, err
	}
	p.Action = Action(action)
	p.Subject = Subject(subject)
	return p, nil
}
