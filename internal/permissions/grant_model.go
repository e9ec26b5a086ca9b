package permissions

import (
	"context"
	"log/slog"
	"sync"

	"github.com/memberhub/portal/internal/events"
)

// GrantModel answers whether the subject holds an individual grant. Answers
// come from a map loaded on SetSubject and Refresh; lookups never touch the
// store.
type GrantModel struct {
	store  Store
	logger *slog.Logger

	mu      sync.RWMutex
	subject Subject
	granted map[string]struct{}
	err     error
}

// NewGrantModel constructs a GrantModel with no subject.
func NewGrantModel(store Store, logger *slog.Logger) *GrantModel {
	if logger == nil {
		logger = slog.Default()
	}
	return &GrantModel{store: store, logger: logger, granted: map[string]struct{}{}}
}

// SetSubject switches the model to subject and reloads.
func (m *GrantModel) SetSubject(ctx context.Context, subject Subject) {
	m.mu.Lock()
	m.subject = subject
	m.mu.Unlock()
	m.Refresh(ctx)
}

// Refresh reloads grants for the current subject. On failure the previous
// grants are kept and Err reports the failure.
func (m *GrantModel) Refresh(ctx context.Context) {
	m.mu.RLock()
	subject := m.subject
	m.mu.RUnlock()

	granted := map[string]struct{}{}
	switch {
	case subject.Role.IsSuperAdmin():
		for _, k := range KnownKeys() {
			granted[k] = struct{}{}
		}
	case subject.Role.IsAdmin():
		keys, err := m.store.ActiveGrants(ctx, subject.UserID)
		if err != nil {
			m.logger.Error("load permission grants", slog.String("admin_id", subject.UserID.String()), slog.Any("error", err))
			m.mu.Lock()
			m.err = err
			m.mu.Unlock()
			return
		}
		for _, k := range normalizeKeys(keys) {
			granted[k] = struct{}{}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subject != subject {
		return
	}
	m.granted = granted
	m.err = nil
}

// HasPermission reports whether key is granted.
func (m *GrantModel) HasPermission(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.granted[NormalizeKey(key)]
	return ok
}

// HasAnyPermission reports whether any of keys is granted.
func (m *GrantModel) HasAnyPermission(keys ...string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, k := range normalizeKeys(keys) {
		if _, ok := m.granted[k]; ok {
			return true
		}
	}
	return false
}

// Granted lists granted keys in KnownKeys order.
func (m *GrantModel) Granted() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.granted))
	for _, k := range KnownKeys() {
		if _, ok := m.granted[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// Err returns the last refresh failure, if any.
func (m *GrantModel) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}

// Watch refreshes the model whenever a change is published. It returns the
// unsubscribe function.
func (m *GrantModel) Watch(ctx context.Context, changes *events.Registry[Changed]) func() {
	return changes.Subscribe(func(Changed) { m.Refresh(ctx) })
}
