package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/memberhub/portal/internal/members"
	"github.com/memberhub/portal/internal/platform/db"
	"github.com/memberhub/portal/internal/shared"
)

// SeedMember describes a member row created by an operator.
type SeedMember struct {
	FullName string
	Email    string
	Role     members.Role
	Batch    int
}

// Validate normalises the email and checks required fields.
func (m *SeedMember) Validate() error {
	m.Email = shared.NormalizeEmail(m.Email)
	m.FullName = strings.TrimSpace(m.FullName)
	if m.Email == "" || !strings.Contains(m.Email, "@") {
		return fmt.Errorf("seed: valid email required")
	}
	if m.FullName == "" {
		return fmt.Errorf("seed: full name required")
	}
	if m.Role == "" {
		m.Role = members.RoleMember
	}
	if _, ok := members.ParseRole(string(m.Role)); !ok {
		return fmt.Errorf("seed: unknown role %q", m.Role)
	}
	return nil
}

// Seed inserts or updates member rows by email in one transaction. An
// existing row keeps its identity link.
func Seed(ctx context.Context, conn db.Beginner, rows []SeedMember) (int, error) {
	for i := range rows {
		if err := rows[i].Validate(); err != nil {
			return 0, fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	written := 0
	err := db.WithTx(ctx, conn, func(tx pgx.Tx) error {
		for _, m := range rows {
			tag, err := tx.Exec(ctx, `UPDATE members SET full_name = $2, role = $3, batch = $4, updated_at = NOW()
				WHERE lower(email) = $1`, m.Email, m.FullName, string(m.Role), m.Batch)
			if err != nil {
				return fmt.Errorf("seed: update %s: %w", m.Email, err)
			}
			if tag.RowsAffected() == 0 {
				if _, err := tx.Exec(ctx, `INSERT INTO members (full_name, email, role, batch) VALUES ($1, $2, $3, $4)`,
					m.FullName, m.Email, string(m.Role), m.Batch); err != nil {
					return fmt.Errorf("seed: insert %s: %w", m.Email, err)
				}
			}
			written++
		}
		_, err := tx.Exec(ctx, `INSERT INTO app_settings (id) VALUES (1) ON CONFLICT (id) DO NOTHING`)
		return err
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}
