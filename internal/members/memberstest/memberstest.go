// Package memberstest provides an in-memory member repository for tests.
package memberstest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/memberhub/portal/internal/members"
)

// Repo is a concurrency-safe in-memory members.Repository.
type Repo struct {
	mu       sync.Mutex
	profiles []members.Profile
	nextID   int64
	clock    time.Time

	// Err, when set, is returned by every method.
	Err error
	// Lists counts ListNewestFirst calls.
	Lists int
}

// New constructs an empty repository.
func New() *Repo {
	return &Repo{clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Add stores p with a fresh id and a creation time later than every
// previously added profile.
func (r *Repo) Add(p members.Profile) members.Profile {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.clock = r.clock.Add(time.Minute)
	p.ID = r.nextID
	if p.Role == "" {
		p.Role = members.RoleMember
	}
	p.CreatedAt = r.clock
	p.UpdatedAt = r.clock
	r.profiles = append(r.profiles, p)
	return p
}

// AddLinked stores a profile already linked to an identity user.
func (r *Repo) AddLinked(email string, role members.Role, authUserID uuid.UUID) members.Profile {
	id := authUserID
	return r.Add(members.Profile{FullName: email, Email: email, Role: role, AuthUserID: &id})
}

func (r *Repo) FindByAuthUserID(_ context.Context, id uuid.UUID) (*members.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	for i := range r.profiles {
		if r.profiles[i].AuthUserID != nil && *r.profiles[i].AuthUserID == id {
			p := r.profiles[i]
			return &p, nil
		}
	}
	return nil, members.ErrNotFound
}

func (r *Repo) FindByEmail(_ context.Context, email string) (*members.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	for i := range r.profiles {
		if r.profiles[i].Email == email {
			p := r.profiles[i]
			return &p, nil
		}
	}
	return nil, members.ErrNotFound
}

func (r *Repo) Count(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return 0, r.Err
	}
	return int64(len(r.profiles)), nil
}

func (r *Repo) ListNewestFirst(context.Context) ([]members.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Lists++
	if r.Err != nil {
		return nil, r.Err
	}
	out := append([]members.Profile(nil), r.profiles...)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *Repo) LinkAuthUser(_ context.Context, memberID int64, authUserID uuid.UUID) (*members.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	for i := range r.profiles {
		if r.profiles[i].AuthUserID != nil && *r.profiles[i].AuthUserID == authUserID {
			return nil, members.ErrAlreadyLinked
		}
	}
	for i := range r.profiles {
		if r.profiles[i].ID != memberID {
			continue
		}
		if r.profiles[i].AuthUserID != nil {
			return nil, members.ErrAlreadyLinked
		}
		id := authUserID
		r.profiles[i].AuthUserID = &id
		p := r.profiles[i]
		return &p, nil
	}
	return nil, members.ErrAlreadyLinked
}

func (r *Repo) UpdateSelf(_ context.Context, authUserID uuid.UUID, upd members.SelfUpdate) (*members.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	for i := range r.profiles {
		p := &r.profiles[i]
		if p.AuthUserID == nil || *p.AuthUserID != authUserID {
			continue
		}
		if upd.FullName != nil {
			p.FullName = *upd.FullName
		}
		if upd.Username != nil {
			p.Username = *upd.Username
		}
		if upd.Phone != nil {
			p.Phone = *upd.Phone
		}
		if upd.Designation != nil {
			p.Designation = *upd.Designation
		}
		if upd.University != nil {
			p.University = *upd.University
		}
		if upd.School != nil {
			p.School = *upd.School
		}
		if upd.BatchYear != nil {
			p.BatchYear = *upd.BatchYear
		}
		out := *p
		return &out, nil
	}
	return nil, members.ErrNotFound
}

var _ members.Repository = (*Repo)(nil)
