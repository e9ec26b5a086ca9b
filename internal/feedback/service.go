package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

// Config tunes the per-address limit.
type Config struct {
	Limit  int
	Window time.Duration
}

// Service validates, rate limits and stores feedback.
type Service struct {
	repo     Repository
	notifier Notifier
	logger   *slog.Logger
	limit    int
	window   time.Duration
	now      func() time.Time
}

// NewService constructs a Service. notifier may be nil.
func NewService(repo Repository, notifier Notifier, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return &Service{
		repo:     repo,
		notifier: notifier,
		logger:   logger,
		limit:    cfg.Limit,
		window:   cfg.Window,
		now:      time.Now,
	}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Validate checks the message alone.
func Validate(message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyMessage
	}
	if utf8.RuneCountInString(message) > MaxMessageLength {
		return "", ErrMessageTooLong
	}
	return message, nil
}

// Submit stores the message unless its address already sent Limit messages
// within the trailing Window. The count and insert are separate statements,
// so concurrent submissions may exceed the limit slightly.
func (s *Service) Submit(ctx context.Context, sub Submission) (Entry, error) {
	message, err := Validate(sub.Message)
	if err != nil {
		return Entry{}, err
	}
	now := s.now().UTC()
	count, err := s.repo.CountSince(ctx, sub.IPAddress, now.Add(-s.window))
	if err != nil {
		return Entry{}, err
	}
	if count >= int64(s.limit) {
		return Entry{}, fmt.Errorf("%w: %d in the last %s", ErrRateLimited, count, s.window)
	}
	entry, err := s.repo.Insert(ctx, Entry{
		Message:   message,
		IPAddress: sub.IPAddress,
		UserAgent: sub.UserAgent,
		CreatedAt: now,
	})
	if err != nil {
		return Entry{}, err
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyFeedback(ctx, entry); err != nil {
			s.logger.Warn("notify feedback", slog.Int64("feedback_id", entry.ID), slog.Any("error", err))
		}
	}
	return entry, nil
}

// Prune deletes entries older than retention.
func (s *Service) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, fmt.Errorf("feedback: retention must be positive")
	}
	return s.repo.DeleteOlderThan(ctx, s.now().UTC().Add(-retention))
}
