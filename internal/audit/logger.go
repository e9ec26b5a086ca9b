package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is satisfied by *pgxpool.Pool and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Recorder appends audit entries.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Logger writes entries into admin_audit_logs.
type Logger struct {
	db Execer
}

// NewLogger returns a Logger writing through db.
func NewLogger(db Execer) *Logger {
	return &Logger{db: db}
}

// Record persists the entry. Action, entity type and entity id are required.
func (l *Logger) Record(ctx context.Context, entry Entry) error {
	if l == nil || l.db == nil {
		return errors.New("audit: logger not initialised")
	}
	if entry.Action == "" || entry.EntityType == "" || entry.EntityID == "" {
		return errors.New("audit: entry requires action, entity type and entity id")
	}
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("audit: encode details: %w", err)
	}
	var actor *uuid.UUID
	if entry.ActorID != uuid.Nil {
		actor = &entry.ActorID
	}
	var at *time.Time
	if !entry.At.IsZero() {
		at = &entry.At
	}
	_, err = l.db.Exec(ctx, `INSERT INTO admin_audit_logs (actor_id, action, entity_type, entity_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`,
		actor, entry.Action, entry.EntityType, entry.EntityID, details, at)
	if err != nil {
		return fmt.Errorf("audit: insert entry: %w", err)
	}
	return nil
}

var _ Recorder = (*Logger)(nil)
