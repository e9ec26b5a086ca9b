package quiz

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists quizzes and attempts.
type Repository interface {
	GetQuiz(ctx context.Context, id int64) (*Quiz, error)
	InsertAttempt(ctx context.Context, attempt Attempt) (Attempt, error)
	ListResults(ctx context.Context, quizID int64) ([]ResultRow, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL quiz repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// GetQuiz loads a quiz with its questions in position order.
func (r *PGRepository) GetQuiz(ctx context.Context, id int64) (*Quiz, error) {
	var q Quiz
	err := r.pool.QueryRow(ctx, `SELECT id, title, description, published FROM quizzes WHERE id = $1`, id).
		Scan(&q.ID, &q.Title, &q.Description, &q.Published)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("quiz: load: %w", err)
	}
	rows, err := r.pool.Query(ctx, `SELECT id, prompt, options, answer_index, position
		FROM quiz_questions WHERE quiz_id = $1 ORDER BY position, id`, id)
	if err != nil {
		return nil, fmt.Errorf("quiz: load questions: %w", err)
	}
	q.Questions, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (Question, error) {
		var qq Question
		err := row.Scan(&qq.ID, &qq.Prompt, &qq.Options, &qq.AnswerIndex, &qq.Position)
		return qq, err
	})
	if err != nil {
		return nil, fmt.Errorf("quiz: scan questions: %w", err)
	}
	return &q, nil
}

// InsertAttempt stores a scored attempt. A second attempt by the same
// member yields ErrAlreadyAttempted.
func (r *PGRepository) InsertAttempt(ctx context.Context, a Attempt) (Attempt, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO quiz_attempts (quiz_id, member_id, score, total, submitted_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`, a.QuizID, a.MemberID, a.Score, a.Total, a.SubmittedAt).Scan(&a.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Attempt{}, ErrAlreadyAttempted
		}
		return Attempt{}, fmt.Errorf("quiz: insert attempt: %w", err)
	}
	return a, nil
}

// ListResults returns attempts best score first.
func (r *PGRepository) ListResults(ctx context.Context, quizID int64) ([]ResultRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT a.member_id, m.full_name, a.score, a.total, a.submitted_at
		FROM quiz_attempts a JOIN members m ON m.id = a.member_id
		WHERE a.quiz_id = $1
		ORDER BY a.score DESC, a.submitted_at ASC`, quizID)
	if err != nil {
		return nil, fmt.Errorf("quiz: list results: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[ResultRow])
}

var _ Repository = (*PGRepository)(nil)
