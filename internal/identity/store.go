package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserStore persists identity accounts.
type UserStore interface {
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	FindUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	InsertUser(ctx context.Context, user User) error
}

// PGUserStore implements UserStore using PostgreSQL.
type PGUserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore constructs a PostgreSQL user store.
func NewUserStore(pool *pgxpool.Pool) *PGUserStore {
	return &PGUserStore{pool: pool}
}

const userColumns = `id, email, password_hash, email_confirmed_at, app_metadata, created_at, updated_at`

// FindUserByEmail fetches an account by normalised email.
func (s *PGUserStore) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM auth_users WHERE email = $1`, email))
}

// FindUserByID fetches an account by id.
func (s *PGUserStore) FindUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM auth_users WHERE id = $1`, id))
}

// InsertUser stores a new account.
func (s *PGUserStore) InsertUser(ctx context.Context, user User) error {
	meta, err := json.Marshal(user.AppMetadata)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO auth_users (id, email, password_hash, email_confirmed_at, app_metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		user.ID, user.Email, user.PasswordHash, user.EmailConfirmedAt, meta, user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrEmailTaken
		}
		return fmt.Errorf("identity: insert user: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		user      User
		confirmed *time.Time
		meta      []byte
	)
	if err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &confirmed, &meta, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("identity: scan user: %w", err)
	}
	user.EmailConfirmedAt = confirmed
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &user.AppMetadata); err != nil {
			return nil, fmt.Errorf("identity: decode app_metadata: %w", err)
		}
	}
	return &user, nil
}

var _ UserStore = (*PGUserStore)(nil)
