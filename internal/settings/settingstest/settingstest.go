// Package settingstest provides an in-memory settings repository for tests.
package settingstest

import (
	"context"
	"sync"
	"time"

	"github.com/memberhub/portal/internal/settings"
)

// Repo is an in-memory settings.Repository.
type Repo struct {
	mu      sync.Mutex
	current settings.AppSettings
	// Missing makes every method report settings.ErrNotFound.
	Missing bool
	// Err, when set, is returned by every method.
	Err error
	// Writes counts successful updates.
	Writes int
}

// New returns a repository holding s.
func New(s settings.AppSettings) *Repo {
	return &Repo{current: s}
}

func (r *Repo) Get(context.Context) (settings.AppSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return settings.AppSettings{}, r.Err
	}
	if r.Missing {
		return settings.AppSettings{}, settings.ErrNotFound
	}
	return r.current, nil
}

func (r *Repo) SetAllowSignup(_ context.Context, allow bool) (settings.AppSettings, error) {
	return r.update(func(s *settings.AppSettings) { s.AllowSignup = allow })
}

func (r *Repo) SetResultsView(_ context.Context, allow bool) (settings.AppSettings, error) {
	return r.update(func(s *settings.AppSettings) { s.AllowResultsView = allow })
}

func (r *Repo) update(fn func(*settings.AppSettings)) (settings.AppSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return settings.AppSettings{}, r.Err
	}
	if r.Missing {
		return settings.AppSettings{}, settings.ErrNotFound
	}
	fn(&r.current)
	r.current.UpdatedAt = time.Now().UTC()
	r.Writes++
	return r.current, nil
}

var _ settings.Repository = (*Repo)(nil)
