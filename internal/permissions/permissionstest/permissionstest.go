// Package permissionstest provides an in-memory permissions.Store and audit
// recorder for tests outside the permissions package.
package permissionstest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/memberhub/portal/internal/audit"
	"github.com/memberhub/portal/internal/permissions"
)

type grantKey struct {
	admin uuid.UUID
	key   string
}

// Store is a concurrency-safe in-memory permissions.Store seeded with every
// known key disabled.
type Store struct {
	mu      sync.Mutex
	catalog map[string]permissions.Catalog
	grants  map[grantKey]permissions.Grant
}

// New constructs a seeded store.
func New() *Store {
	s := &Store{catalog: map[string]permissions.Catalog{}, grants: map[grantKey]permissions.Grant{}}
	for _, k := range permissions.KnownKeys() {
		s.catalog[k] = permissions.Catalog{Key: k, Name: k}
	}
	return s
}

func (s *Store) ListCatalog(context.Context) ([]permissions.Catalog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]permissions.Catalog, 0, len(s.catalog))
	for _, c := range s.catalog {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) SetEnabled(_ context.Context, key string, enabled bool) (permissions.Catalog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.catalog[key]
	if !ok {
		return permissions.Catalog{}, permissions.ErrUnknownKey
	}
	c.IsEnabled = enabled
	c.UpdatedAt = time.Now()
	s.catalog[key] = c
	return c, nil
}

func (s *Store) ActiveGrants(_ context.Context, adminID uuid.UUID) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for k, g := range s.grants {
		if k.admin == adminID && g.IsActive {
			out = append(out, k.key)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) ListGrants(context.Context) ([]permissions.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]permissions.Grant, 0, len(s.grants))
	for _, g := range s.grants {
		out = append(out, g)
	}
	return out, nil
}

func (s *Store) UpsertGrant(_ context.Context, adminID uuid.UUID, key string, grantedBy uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := permissions.Grant{AdminID: adminID, PermissionKey: key, IsActive: true, CreatedAt: time.Now()}
	if grantedBy != uuid.Nil {
		by := grantedBy
		g.GrantedBy = &by
	}
	s.grants[grantKey{adminID, key}] = g
	return nil
}

func (s *Store) DeactivateGrant(_ context.Context, adminID uuid.UUID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grants[grantKey{adminID, key}]
	if !ok || !g.IsActive {
		return permissions.ErrGrantNotFound
	}
	g.IsActive = false
	s.grants[grantKey{adminID, key}] = g
	return nil
}

// Recorder collects audit entries.
type Recorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *Recorder) Record(_ context.Context, entry audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

// Entries returns a copy of the recorded entries.
func (r *Recorder) Entries() []audit.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]audit.Entry(nil), r.entries...)
}
