package permissions

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/memberhub/portal/internal/audit"
)

type grantKey struct {
	admin uuid.UUID
	key   string
}

type memStore struct {
	mu       sync.Mutex
	catalog  map[string]Catalog
	grants   map[grantKey]Grant
	reads    int
	failList error
}

func newMemStore() *memStore {
	s := &memStore{catalog: map[string]Catalog{}, grants: map[grantKey]Grant{}}
	for _, k := range KnownKeys() {
		s.catalog[k] = Catalog{Key: k, Name: k + " area", UpdatedAt: time.Unix(0, 0)}
	}
	return s
}

func (s *memStore) ListCatalog(ctx context.Context) ([]Catalog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.failList != nil {
		return nil, s.failList
	}
	out := make([]Catalog, 0, len(s.catalog))
	for _, c := range s.catalog {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *memStore) SetEnabled(ctx context.Context, key string, enabled bool) (Catalog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.catalog[key]
	if !ok {
		return Catalog{}, ErrUnknownKey
	}
	c.IsEnabled = enabled
	c.UpdatedAt = time.Now()
	s.catalog[key] = c
	return c, nil
}

func (s *memStore) ActiveGrants(ctx context.Context, adminID uuid.UUID) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.failList != nil {
		return nil, s.failList
	}
	var out []string
	for k, g := range s.grants {
		if k.admin == adminID && g.IsActive {
			out = append(out, k.key)
		}
	}
	return out, nil
}

func (s *memStore) ListGrants(ctx context.Context) ([]Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Grant, 0, len(s.grants))
	for _, g := range s.grants {
		out = append(out, g)
	}
	return out, nil
}

func (s *memStore) UpsertGrant(ctx context.Context, adminID uuid.UUID, key string, grantedBy uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	by := grantedBy
	s.grants[grantKey{adminID, key}] = Grant{AdminID: adminID, PermissionKey: key, IsActive: true, GrantedBy: &by, CreatedAt: time.Now()}
	return nil
}

func (s *memStore) DeactivateGrant(ctx context.Context, adminID uuid.UUID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grants[grantKey{adminID, key}]
	if !ok || !g.IsActive {
		return ErrGrantNotFound
	}
	g.IsActive = false
	s.grants[grantKey{adminID, key}] = g
	return nil
}

type memRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
	fail    bool
}

func (r *memRecorder) Record(ctx context.Context, entry audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("audit table unavailable")
	}
	r.entries = append(r.entries, entry)
	return nil
}
