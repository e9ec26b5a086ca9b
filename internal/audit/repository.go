package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository reads admin_audit_logs from PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL audit repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Window lists rows matching q, newest first.
func (r *PGRepository) Window(ctx context.Context, q Query) ([]Row, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, created_at, COALESCE(actor_id::text, ''), action, entity_type, entity_id, details
		FROM admin_audit_logs
		WHERE ($1 = '' OR actor_id::text = $1)
		  AND ($2 = '' OR action = $2)
		  AND ($3 = '' OR entity_type = $3)
		ORDER BY created_at DESC, id DESC
		OFFSET $4 LIMIT $5`, q.Actor, q.Action, q.EntityType, q.Offset, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query window: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Row, error) {
		var (
			out     Row
			at      time.Time
			details []byte
		)
		if err := row.Scan(&out.ID, &at, &out.ActorID, &out.Action, &out.EntityType, &out.EntityID, &details); err != nil {
			return Row{}, err
		}
		out.At = at
		if len(details) > 0 {
			if err := json.Unmarshal(details, &out.Details); err != nil {
				return Row{}, fmt.Errorf("audit: decode details: %w", err)
			}
		}
		return out, nil
	})
}

var _ Repository = (*PGRepository)(nil)
