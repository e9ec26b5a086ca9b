package members

import (
	"context"
	"sort"

	"github.com/google/uuid"
)

type memRepo struct {
	profiles []Profile
	updates  []SelfUpdate
}

func (m *memRepo) FindByAuthUserID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	for i := range m.profiles {
		if m.profiles[i].AuthUserID != nil && *m.profiles[i].AuthUserID == id {
			p := m.profiles[i]
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memRepo) FindByEmail(ctx context.Context, email string) (*Profile, error) {
	for i := range m.profiles {
		if m.profiles[i].Email == email {
			p := m.profiles[i]
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memRepo) Count(ctx context.Context) (int64, error) {
	return int64(len(m.profiles)), nil
}

func (m *memRepo) ListNewestFirst(ctx context.Context) ([]Profile, error) {
	out := append([]Profile(nil), m.profiles...)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memRepo) LinkAuthUser(ctx context.Context, memberID int64, authUserID uuid.UUID) (*Profile, error) {
	for i := range m.profiles {
		if m.profiles[i].ID == memberID {
			if m.profiles[i].AuthUserID != nil {
				return nil, ErrAlreadyLinked
			}
			id := authUserID
			m.profiles[i].AuthUserID = &id
			p := m.profiles[i]
			return &p, nil
		}
	}
	return nil, ErrAlreadyLinked
}

func (m *memRepo) UpdateSelf(ctx context.Context, authUserID uuid.UUID, upd SelfUpdate) (*Profile, error) {
	m.updates = append(m.updates, upd)
	p, err := m.FindByAuthUserID(ctx, authUserID)
	if err != nil {
		return nil, err
	}
	if upd.FullName != nil {
		p.FullName = *upd.FullName
	}
	return p, nil
}
