// Package feedback accepts anonymous feedback under a per-address rate limit.
package feedback

import (
	"context"
	"errors"
	"time"
)

// MaxMessageLength bounds a message in characters.
const MaxMessageLength = 5000

// Defaults for the per-address limit.
const (
	DefaultLimit  = 5
	DefaultWindow = time.Hour
)

var (
	// ErrEmptyMessage indicates a blank message.
	ErrEmptyMessage = errors.New("feedback: message is required")
	// ErrMessageTooLong indicates a message over MaxMessageLength.
	ErrMessageTooLong = errors.New("feedback: message is too long")
	// ErrRateLimited indicates the address used up its submissions.
	ErrRateLimited = errors.New("feedback: too many submissions")
)

// Entry is a stored feedback message.
type Entry struct {
	ID        int64     `json:"id"`
	Message   string    `json:"message"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
}

// Submission is an incoming message with its origin.
type Submission struct {
	Message   string
	IPAddress string
	UserAgent string
}

// Repository persists feedback.
type Repository interface {
	CountSince(ctx context.Context, ip string, since time.Time) (int64, error)
	Insert(ctx context.Context, entry Entry) (Entry, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Notifier is told about accepted feedback.
type Notifier interface {
	NotifyFeedback(ctx context.Context, entry Entry) error
}
