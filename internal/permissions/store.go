package permissions

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists the catalog and grants.
type Store interface {
	ListCatalog(ctx context.Context) ([]Catalog, error)
	SetEnabled(ctx context.Context, key string, enabled bool) (Catalog, error)
	ActiveGrants(ctx context.Context, adminID uuid.UUID) ([]string, error)
	ListGrants(ctx context.Context) ([]Grant, error)
	UpsertGrant(ctx context.Context, adminID uuid.UUID, key string, grantedBy uuid.UUID) error
	DeactivateGrant(ctx context.Context, adminID uuid.UUID, key string) error
}

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs a PostgreSQL permission store.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// ListCatalog returns every catalog row ordered by key.
func (s *PGStore) ListCatalog(ctx context.Context) ([]Catalog, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, name, description, is_enabled, updated_at FROM admin_permissions ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("permissions: list catalog: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Catalog, error) {
		var c Catalog
		err := row.Scan(&c.Key, &c.Name, &c.Description, &c.IsEnabled, &c.UpdatedAt)
		return c, err
	})
}

// SetEnabled flips the catalog switch for key.
func (s *PGStore) SetEnabled(ctx context.Context, key string, enabled bool) (Catalog, error) {
	var c Catalog
	err := s.pool.QueryRow(ctx, `UPDATE admin_permissions SET is_enabled = $2, updated_at = NOW()
		WHERE key = $1
		RETURNING key, name, description, is_enabled, updated_at`, key, enabled).
		Scan(&c.Key, &c.Name, &c.Description, &c.IsEnabled, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Catalog{}, ErrUnknownKey
		}
		return Catalog{}, fmt.Errorf("permissions: set enabled: %w", err)
	}
	return c, nil
}

// ActiveGrants lists the keys individually granted to adminID.
func (s *PGStore) ActiveGrants(ctx context.Context, adminID uuid.UUID) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT permission_key FROM admin_granted_permissions
		WHERE admin_id = $1 AND is_active ORDER BY permission_key`, adminID)
	if err != nil {
		return nil, fmt.Errorf("permissions: active grants: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// ListGrants returns every grant row.
func (s *PGStore) ListGrants(ctx context.Context) ([]Grant, error) {
	rows, err := s.pool.Query(ctx, `SELECT admin_id, permission_key, is_active, granted_by, created_at
		FROM admin_granted_permissions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("permissions: list grants: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Grant, error) {
		var g Grant
		err := row.Scan(&g.AdminID, &g.PermissionKey, &g.IsActive, &g.GrantedBy, &g.CreatedAt)
		return g, err
	})
}

// UpsertGrant creates or reactivates a grant.
func (s *PGStore) UpsertGrant(ctx context.Context, adminID uuid.UUID, key string, grantedBy uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO admin_granted_permissions (admin_id, permission_key, is_active, granted_by, created_at)
		VALUES ($1, $2, TRUE, $3, NOW())
		ON CONFLICT (admin_id, permission_key) DO UPDATE SET is_active = TRUE, granted_by = EXCLUDED.granted_by`,
		adminID, key, grantedBy)
	if err != nil {
		return fmt.Errorf("permissions: upsert grant: %w", err)
	}
	return nil
}

// DeactivateGrant revokes an active grant.
func (s *PGStore) DeactivateGrant(ctx context.Context, adminID uuid.UUID, key string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE admin_granted_permissions SET is_active = FALSE
		WHERE admin_id = $1 AND permission_key = $2 AND is_active`, adminID, key)
	if err != nil {
		return fmt.Errorf("permissions: deactivate grant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrGrantNotFound
	}
	return nil
}

var _ Store = (*PGStore)(nil)
