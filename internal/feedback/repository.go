package feedback

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL feedback repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// CountSince counts submissions from ip at or after since.
func (r *PGRepository) CountSince(ctx context.Context, ip string, since time.Time) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM feedback WHERE ip_address = $1 AND created_at >= $2`, ip, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("feedback: count: %w", err)
	}
	return n, nil
}

// Insert stores entry and returns it with id and timestamp set.
func (r *PGRepository) Insert(ctx context.Context, entry Entry) (Entry, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO feedback (message, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		entry.Message, entry.IPAddress, entry.UserAgent, entry.CreatedAt).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("feedback: insert: %w", err)
	}
	return entry, nil
}

// DeleteOlderThan removes entries created before cutoff.
func (r *PGRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM feedback WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("feedback: prune: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ Repository = (*PGRepository)(nil)
