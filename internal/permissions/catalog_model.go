package permissions

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/memberhub/portal/internal/audit"
	"github.com/memberhub/portal/internal/events"
)

// CatalogModel answers whether a feature area is globally enabled for the
// subject's role, and lets super admins flip the switch.
type CatalogModel struct {
	store    Store
	recorder audit.Recorder
	changes  *events.Registry[Changed]
	logger   *slog.Logger

	mu      sync.RWMutex
	subject Subject
	catalog map[string]Catalog
	err     error
}

// NewCatalogModel constructs a CatalogModel. changes may be nil.
func NewCatalogModel(store Store, recorder audit.Recorder, changes *events.Registry[Changed], logger *slog.Logger) *CatalogModel {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogModel{
		store:    store,
		recorder: recorder,
		changes:  changes,
		logger:   logger,
		catalog:  map[string]Catalog{},
	}
}

// SetSubject switches the model to subject and reloads.
func (m *CatalogModel) SetSubject(ctx context.Context, subject Subject) {
	m.mu.Lock()
	m.subject = subject
	m.mu.Unlock()
	m.Refresh(ctx)
}

// Refresh reloads the catalog. Subjects below admin never need it. On
// failure the previous catalog is kept and Err reports the failure.
func (m *CatalogModel) Refresh(ctx context.Context) {
	m.mu.RLock()
	subject := m.subject
	m.mu.RUnlock()

	catalog := map[string]Catalog{}
	if subject.Role.IsAdmin() {
		rows, err := m.store.ListCatalog(ctx)
		if err != nil {
			m.logger.Error("load permission catalog", slog.Any("error", err))
			m.mu.Lock()
			m.err = err
			m.mu.Unlock()
			return
		}
		for _, row := range rows {
			catalog[NormalizeKey(row.Key)] = row
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subject != subject {
		return
	}
	m.catalog = catalog
	m.err = nil
}

// HasPermission reports whether the subject may use the feature area:
// always for super admins, the row's is_enabled for admins, never otherwise.
func (m *CatalogModel) HasPermission(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	switch {
	case m.subject.Role.IsSuperAdmin():
		return true
	case m.subject.Role.IsAdmin():
		return m.catalog[NormalizeKey(key)].IsEnabled
	default:
		return false
	}
}

// Catalog returns the loaded rows in KnownKeys order followed by any
// unrecognised keys.
func (m *CatalogModel) Catalog() []Catalog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Catalog, 0, len(m.catalog))
	seen := map[string]struct{}{}
	for _, k := range KnownKeys() {
		if row, ok := m.catalog[k]; ok {
			out = append(out, row)
			seen[k] = struct{}{}
		}
	}
	for k, row := range m.catalog {
		if _, ok := seen[k]; !ok {
			out = append(out, row)
		}
	}
	return out
}

// Err returns the last refresh failure, if any.
func (m *CatalogModel) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}

// TogglePermission sets the catalog switch for key and reports success.
func (m *CatalogModel) TogglePermission(ctx context.Context, key string, value bool) bool {
	if err := m.Toggle(ctx, key, value); err != nil {
		m.logger.Warn("toggle permission", slog.String("key", key), slog.Any("error", err))
		return false
	}
	return true
}

// Toggle is TogglePermission with the failure reason. Only super admins may
// toggle. A failed audit write is logged and does not undo the toggle.
func (m *CatalogModel) Toggle(ctx context.Context, key string, value bool) error {
	m.mu.RLock()
	subject := m.subject
	m.mu.RUnlock()
	if !subject.Role.IsSuperAdmin() {
		return ErrForbidden
	}
	key = NormalizeKey(key)
	row, err := m.store.SetEnabled(ctx, key, value)
	if err != nil {
		return fmt.Errorf("toggle %s: %w", key, err)
	}

	m.mu.Lock()
	if m.subject == subject {
		m.catalog[key] = row
	}
	m.mu.Unlock()

	if m.recorder != nil {
		entry := audit.Entry{
			ActorID:    subject.UserID,
			Action:     ActionToggle,
			EntityType: EntityPermission,
			EntityID:   key,
			Details:    map[string]any{"is_enabled": value, "name": row.Name},
		}
		if err := m.recorder.Record(ctx, entry); err != nil {
			m.logger.Error("audit permission toggle", slog.String("key", key), slog.Any("error", err))
		}
	}
	m.changes.Publish(Changed{Key: key})
	return nil
}

// Watch refreshes the model whenever a change is published. It returns the
// unsubscribe function.
func (m *CatalogModel) Watch(ctx context.Context, changes *events.Registry[Changed]) func() {
	return changes.Subscribe(func(Changed) { m.Refresh(ctx) })
}
