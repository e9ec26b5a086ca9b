package members

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines persistence operations for member profiles.
type Repository interface {
	FindByAuthUserID(ctx context.Context, authUserID uuid.UUID) (*Profile, error)
	FindByEmail(ctx context.Context, email string) (*Profile, error)
	Count(ctx context.Context) (int64, error)
	ListNewestFirst(ctx context.Context) ([]Profile, error)
	LinkAuthUser(ctx context.Context, memberID int64, authUserID uuid.UUID) (*Profile, error)
	UpdateSelf(ctx context.Context, authUserID uuid.UUID, upd SelfUpdate) (*Profile, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const profileColumns = `id, full_name, username, email, national_id, gender, role, batch, university, school,
	phone, designation, auth_user_id, profile_image_bucket, profile_image_path, created_at, updated_at`

// FindByAuthUserID fetches the profile linked to an identity user.
func (r *PGRepository) FindByAuthUserID(ctx context.Context, authUserID uuid.UUID) (*Profile, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM members WHERE auth_user_id = $1`, authUserID)
	return scanProfile(row)
}

// FindByEmail fetches a profile by normalised email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*Profile, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM members WHERE lower(email) = lower($1) LIMIT 1`, email)
	return scanProfile(row)
}

// Count returns the number of member rows.
func (r *PGRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM members`).Scan(&n); err != nil {
		return 0, fmt.Errorf("members: count: %w", err)
	}
	return n, nil
}

// ListNewestFirst returns every member ordered by creation time, newest first.
func (r *PGRepository) ListNewestFirst(ctx context.Context) ([]Profile, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+profileColumns+` FROM members ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("members: list: %w", err)
	}
	defer rows.Close()
	profiles := make([]Profile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("members: list: %w", err)
	}
	return profiles, nil
}

// LinkAuthUser sets auth_user_id on an unlinked member row.
func (r *PGRepository) LinkAuthUser(ctx context.Context, memberID int64, authUserID uuid.UUID) (*Profile, error) {
	row := r.pool.QueryRow(ctx, `UPDATE members SET auth_user_id = $2, updated_at = NOW()
		WHERE id = $1 AND auth_user_id IS NULL RETURNING `+profileColumns, memberID, authUserID)
	p, err := scanProfile(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrAlreadyLinked
		}
		if errors.Is(err, ErrNotFound) {
			return nil, ErrAlreadyLinked
		}
		return nil, err
	}
	return p, nil
}

// UpdateSelf applies a member's own edits.
func (r *PGRepository) UpdateSelf(ctx context.Context, authUserID uuid.UUID, upd SelfUpdate) (*Profile, error) {
	row := r.pool.QueryRow(ctx, `UPDATE members SET
		full_name = COALESCE($2, full_name),
		username = COALESCE($3, username),
		phone = COALESCE($4, phone),
		designation = COALESCE($5, designation),
		university = COALESCE($6, university),
		school = COALESCE($7, school),
		batch = COALESCE($8, batch),
		updated_at = NOW()
		WHERE auth_user_id = $1 RETURNING `+profileColumns,
		authUserID, upd.FullName, upd.Username, upd.Phone, upd.Designation, upd.University, upd.School, upd.BatchYear)
	return scanProfile(row)
}

func scanProfile(row pgx.Row) (*Profile, error) {
	var (
		p          Profile
		role       string
		authUserID *uuid.UUID
		bucket     *string
		path       *string
	)
	err := row.Scan(&p.ID, &p.FullName, &p.Username, &p.Email, &p.NationalID, &p.Gender, &role, &p.BatchYear,
		&p.University, &p.School, &p.Phone, &p.Designation, &authUserID, &bucket, &path, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("members: scan: %w", err)
	}
	if parsed, ok := ParseRole(role); ok {
		p.Role = parsed
	} else {
		p.Role = RoleMember
	}
	p.AuthUserID = authUserID
	if bucket != nil {
		p.ImageBucket = *bucket
	}
	if path != nil {
		p.ImagePath = *path
	}
	return &p, nil
}

var _ Repository = (*PGRepository)(nil)
