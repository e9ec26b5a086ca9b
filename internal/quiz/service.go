package quiz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/memberhub/portal/internal/access"
	"github.com/memberhub/portal/internal/settings"
)

// Settings reads the results publication switch.
type Settings interface {
	Get(ctx context.Context) (settings.AppSettings, error)
}

// Service implements quiz rules.
type Service struct {
	repo     Repository
	settings Settings
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, settings Settings) *Service {
	return &Service{repo: repo, settings: settings, now: time.Now}
}

// Get returns a quiz. Unpublished quizzes are visible to admins only.
func (s *Service) Get(ctx context.Context, caller *access.Caller, id int64) (*Quiz, error) {
	q, err := s.repo.GetQuiz(ctx, id)
	if err != nil {
		return nil, err
	}
	if !q.Published && !caller.IsAdmin() {
		return nil, ErrNotFound
	}
	return q, nil
}

// Submit scores answers, one per question in order, and records the
// member's single attempt.
func (s *Service) Submit(ctx context.Context, caller *access.Caller, id int64, answers []int) (Attempt, error) {
	if caller == nil || caller.Profile == nil {
		return Attempt{}, ErrProfileRequired
	}
	q, err := s.Get(ctx, caller, id)
	if err != nil {
		return Attempt{}, err
	}
	score, err := Score(q, answers)
	if err != nil {
		return Attempt{}, err
	}
	return s.repo.InsertAttempt(ctx, Attempt{
		QuizID:      q.ID,
		MemberID:    caller.Profile.ID,
		Score:       score,
		Total:       len(q.Questions),
		SubmittedAt: s.now().UTC(),
	})
}

// Results returns the board. Admins always see it; other members only once
// results are published.
func (s *Service) Results(ctx context.Context, caller *access.Caller, id int64) ([]ResultRow, error) {
	if !caller.IsAdmin() {
		if !caller.HasRole() {
			return nil, ErrProfileRequired
		}
		cfg, err := s.settings.Get(ctx)
		if err != nil && !errors.Is(err, settings.ErrNotFound) {
			return nil, err
		}
		if !cfg.AllowResultsView {
			return nil, ErrResultsHidden
		}
	}
	if _, err := s.Get(ctx, caller, id); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListResults(ctx, id)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []ResultRow{}
	}
	return rows, nil
}

// Score counts correct answers.
func Score(q *Quiz, answers []int) (int, error) {
	if len(answers) != len(q.Questions) {
		return 0, fmt.Errorf("%w: expected %d answers, got %d", ErrInvalidAnswers, len(q.Questions), len(answers))
	}
	score := 0
	for i, question := range q.Questions {
		a := answers[i]
		if a < 0 || a >= len(question.Options) {
			return 0, fmt.Errorf("%w: answer %d out of range", ErrInvalidAnswers, i+1)
		}
		if a == question.AnswerIndex {
			score++
		}
	}
	return score, nil
}
