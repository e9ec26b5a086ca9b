// Package settings manages the singleton application settings row.
package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the singleton row has not been seeded.
var ErrNotFound = errors.New("settings: row not found")

// AppSettings holds process-wide switches.
type AppSettings struct {
	AllowSignup      bool      `json:"allow_signup"`
	AllowResultsView bool      `json:"allow_results_view"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Repository reads and updates the singleton row.
type Repository interface {
	Get(ctx context.Context) (AppSettings, error)
	SetAllowSignup(ctx context.Context, allow bool) (AppSettings, error)
	SetResultsView(ctx context.Context, allow bool) (AppSettings, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL settings repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const singletonID = 1

// Get loads the singleton row.
func (r *PGRepository) Get(ctx context.Context) (AppSettings, error) {
	return scan(r.pool.QueryRow(ctx, `SELECT allow_signup, allow_results_view, updated_at FROM app_settings WHERE id = $1`, singletonID))
}

// SetAllowSignup updates the signup switch.
func (r *PGRepository) SetAllowSignup(ctx context.Context, allow bool) (AppSettings, error) {
	return scan(r.pool.QueryRow(ctx, `UPDATE app_settings SET allow_signup = $2, updated_at = NOW()
		WHERE id = $1 RETURNING allow_signup, allow_results_view, updated_at`, singletonID, allow))
}

// SetResultsView updates the results publication switch.
func (r *PGRepository) SetResultsView(ctx context.Context, allow bool) (AppSettings, error) {
	return scan(r.pool.QueryRow(ctx, `UPDATE app_settings SET allow_results_view = $2, updated_at = NOW()
		WHERE id = $1 RETURNING allow_signup, allow_results_view, updated_at`, singletonID, allow))
}

func scan(row pgx.Row) (AppSettings, error) {
	var s AppSettings
	if err := row.Scan(&s.AllowSignup, &s.AllowResultsView, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AppSettings{}, ErrNotFound
		}
		return AppSettings{}, fmt.Errorf("settings: %w", err)
	}
	return s, nil
}

var _ Repository = (*PGRepository)(nil)
