package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WindowParams selects one page of an organization's trail.
type WindowParams struct {
	OrganizationID int64
	FromAt         pgtype.Timestamptz
	ToAt           pgtype.Timestamptz
	Entity         pgtype.Text
	Action         pgtype.Text
	OffsetRows     int32
	LimitRows      int32
}

// Repository stores and reads audit entries.
type Repository interface {
	Insert(ctx context.Context, e Entry) error
	Window(ctx context.Context, arg WindowParams) ([]Entry, error)
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) Insert(ctx context.Context, e Entry) error {
	meta, err := json.Marshal(e.Meta)
	if err != nil {
		return fmt.Errorf("audit: encode meta: %w", err)
	}
	var actor pgtype.Int8
	if e.ActorID > 0 {
		actor = pgtype.Int8{Int64: e.ActorID, Valid: true}
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO audit_logs (id, organization_id, actor_id, action, entity, entity_id, meta, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.OrganizationID, actor, e.Action, e.Entity, e.EntityID, meta, e.At)
	if err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

func (r *pgRepository) Window(ctx context.Context, arg WindowParams) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, organization_id, COALESCE(actor_id, 0), action, entity, entity_id, meta, occurred_at
		FROM audit_logs
		WHERE organization_id = $1
		  AND ($2::timestamptz IS NULL OR occurred_at >= $2)
		  AND ($3::timestamptz IS NULL OR occurred_at < $3)
		  AND ($4::text IS NULL OR entity = $4)
		  AND ($5::text IS NULL OR action = $5)
		ORDER BY occurred_at DESC, id
		OFFSET $6 LIMIT $7`,
		arg.OrganizationID, arg.FromAt, arg.ToAt, arg.Entity, arg.Action, arg.OffsetRows, arg.LimitRows)
	if err != nil {
		return nil, fmt.Errorf("audit: window: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var meta []byte
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.ActorID, &e.Action, &e.Entity, &e.EntityID, &meta, &e.At); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Meta); err != nil {
				return nil, fmt.Errorf("audit: decode meta: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}
