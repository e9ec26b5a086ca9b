package permissions

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/memberhub/portal/internal/audit"
	"github.com/memberhub/portal/internal/events"
)

// GrantAdmin creates and revokes individual grants on behalf of super admins.
type GrantAdmin struct {
	store    Store
	recorder audit.Recorder
	changes  *events.Registry[Changed]
	logger   *slog.Logger
}

// NewGrantAdmin constructs a GrantAdmin. changes may be nil.
func NewGrantAdmin(store Store, recorder audit.Recorder, changes *events.Registry[Changed], logger *slog.Logger) *GrantAdmin {
	if logger == nil {
		logger = slog.Default()
	}
	return &GrantAdmin{store: store, recorder: recorder, changes: changes, logger: logger}
}

// Grant allows adminID to use key.
func (g *GrantAdmin) Grant(ctx context.Context, actor Subject, adminID uuid.UUID, key string) error {
	key, err := g.check(actor, adminID, key)
	if err != nil {
		return err
	}
	if err := g.store.UpsertGrant(ctx, adminID, key, actor.UserID); err != nil {
		return err
	}
	g.after(ctx, actor, ActionGrant, adminID, key)
	return nil
}

// Revoke withdraws adminID's grant for key.
func (g *GrantAdmin) Revoke(ctx context.Context, actor Subject, adminID uuid.UUID, key string) error {
	key, err := g.check(actor, adminID, key)
	if err != nil {
		return err
	}
	if err := g.store.DeactivateGrant(ctx, adminID, key); err != nil {
		return err
	}
	g.after(ctx, actor, ActionRevoke, adminID, key)
	return nil
}

// List returns every grant row.
func (g *GrantAdmin) List(ctx context.Context) ([]Grant, error) {
	return g.store.ListGrants(ctx)
}

func (g *GrantAdmin) check(actor Subject, adminID uuid.UUID, key string) (string, error) {
	if !actor.Role.IsSuperAdmin() {
		return "", ErrForbidden
	}
	key = NormalizeKey(key)
	if !IsKnownKey(key) {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	if adminID == uuid.Nil {
		return "", fmt.Errorf("permissions: admin id required")
	}
	return key, nil
}

func (g *GrantAdmin) after(ctx context.Context, actor Subject, action string, adminID uuid.UUID, key string) {
	if g.recorder != nil {
		entry := audit.Entry{
			ActorID:    actor.UserID,
			Action:     action,
			EntityType: EntityGrant,
			EntityID:   adminID.String() + ":" + key,
			Details:    map[string]any{"admin_id": adminID.String(), "permission_key": key},
		}
		if err := g.recorder.Record(ctx, entry); err != nil {
			g.logger.Error("audit permission grant", slog.String("action", action), slog.Any("error", err))
		}
	}
	g.changes.Publish(Changed{Key: key, AdminID: adminID})
}
