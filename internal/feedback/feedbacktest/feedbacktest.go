// Package feedbacktest provides an in-memory feedback repository for tests.
package feedbacktest

import (
	"context"
	"sync"
	"time"

	"github.com/memberhub/portal/internal/feedback"
)

// Repo is an in-memory feedback.Repository.
type Repo struct {
	mu      sync.Mutex
	entries []feedback.Entry
	nextID  int64
	// Err, when set, is returned by every method.
	Err error
}

// New constructs an empty repository.
func New() *Repo {
	return &Repo{}
}

// Entries returns a copy of the stored entries.
func (r *Repo) Entries() []feedback.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]feedback.Entry(nil), r.entries...)
}

func (r *Repo) CountSince(_ context.Context, ip string, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return 0, r.Err
	}
	var n int64
	for _, e := range r.entries {
		if e.IPAddress == ip && !e.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *Repo) Insert(_ context.Context, entry feedback.Entry) (feedback.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return feedback.Entry{}, r.Err
	}
	r.nextID++
	entry.ID = r.nextID
	r.entries = append(r.entries, entry)
	return entry, nil
}

func (r *Repo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return 0, r.Err
	}
	kept := r.entries[:0]
	var removed int64
	for _, e := range r.entries {
		if e.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return removed, nil
}

var _ feedback.Repository = (*Repo)(nil)
