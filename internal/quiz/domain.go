// Package quiz serves member quizzes, scores attempts and publishes results.
package quiz

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates no published quiz matched.
	ErrNotFound = errors.New("quiz: not found")
	// ErrAlreadyAttempted indicates the member already submitted this quiz.
	ErrAlreadyAttempted = errors.New("quiz: already attempted")
	// ErrResultsHidden indicates results are not yet published to members.
	ErrResultsHidden = errors.New("quiz: results are not published")
	// ErrInvalidAnswers indicates answers that do not fit the quiz.
	ErrInvalidAnswers = errors.New("quiz: invalid answers")
	// ErrProfileRequired indicates the caller has no member profile.
	ErrProfileRequired = errors.New("quiz: member profile required")
)

// Quiz is a set of multiple-choice questions.
type Quiz struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Published   bool       `json:"published"`
	Questions   []Question `json:"questions"`
}

// Question is one multiple-choice item. The answer never leaves the server.
type Question struct {
	ID          int64    `json:"id"`
	Prompt      string   `json:"prompt"`
	Options     []string `json:"options"`
	AnswerIndex int      `json:"-"`
	Position    int      `json:"position"`
}

// Attempt is a scored submission.
type Attempt struct {
	ID          int64     `json:"id"`
	QuizID      int64     `json:"quiz_id"`
	MemberID    int64     `json:"member_id"`
	Score       int       `json:"score"`
	Total       int       `json:"total"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// ResultRow is one line of the results board.
type ResultRow struct {
	MemberID    int64     `json:"member_id"`
	FullName    string    `json:"full_name"`
	Score       int       `json:"score"`
	Total       int       `json:"total"`
	SubmittedAt time.Time `json:"submitted_at"`
}
