package quiz

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memberhub/portal/internal/access"
	"github.com/memberhub/portal/internal/identity"
	"github.com/memberhub/portal/internal/members"
	"github.com/memberhub/portal/internal/settings"
	"github.com/memberhub/portal/internal/settings/settingstest"
)

type stubRepo struct {
	mu       sync.Mutex
	quizzes  map[int64]*Quiz
	attempts []Attempt
}

func newStubRepo() *stubRepo {
	return &stubRepo{quizzes: map[int64]*Quiz{
		1: {ID: 1, Title: "Alumni trivia", Published: true, Questions: []Question{
			{ID: 10, Prompt: "Founded?", Options: []string{"1990", "1995"}, AnswerIndex: 1},
			{ID: 11, Prompt: "Motto?", Options: []string{"a", "b", "c"}, AnswerIndex: 2},
		}},
		2: {ID: 2, Title: "Draft", Published: false},
	}}
}

func (s *stubRepo) GetQuiz(ctx context.Context, id int64) (*Quiz, error) {
	q, ok := s.quizzes[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *q
	return &cp, nil
}

func (s *stubRepo) InsertAttempt(ctx context.Context, a Attempt) (Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.attempts {
		if existing.QuizID == a.QuizID && existing.MemberID == a.MemberID {
			return Attempt{}, ErrAlreadyAttempted
		}
	}
	a.ID = int64(len(s.attempts) + 1)
	s.attempts = append(s.attempts, a)
	return a, nil
}

func (s *stubRepo) ListResults(ctx context.Context, quizID int64) ([]ResultRow, error) {
	var out []ResultRow
	for _, a := range s.attempts {
		if a.QuizID == quizID {
			out = append(out, ResultRow{MemberID: a.MemberID, Score: a.Score, Total: a.Total})
		}
	}
	return out, nil
}

func memberCaller(id int64, role members.Role) *access.Caller {
	return &access.Caller{
		User:    identity.User{ID: uuid.New()},
		Profile: &members.Profile{ID: id, Role: role},
		Role:    role,
	}
}

func TestScore(t *testing.T) {
	q, _ := newStubRepo().GetQuiz(context.Background(), 1)
	score, err := Score(q, []int{1, 0})
	require.NoError(t, err)
	assert.Equal(t, 1, score)

	_, err = Score(q, []int{1})
	require.ErrorIs(t, err, ErrInvalidAnswers)
	_, err = Score(q, []int{1, 3})
	require.ErrorIs(t, err, ErrInvalidAnswers)
}

func TestSubmitOncePerMember(t *testing.T) {
	svc := NewService(newStubRepo(), settingstest.New(settings.AppSettings{}))
	ctx := context.Background()
	caller := memberCaller(7, members.RoleMember)

	attempt, err := svc.Submit(ctx, caller, 1, []int{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 2, attempt.Score)
	assert.Equal(t, 2, attempt.Total)

	_, err = svc.Submit(ctx, caller, 1, []int{0, 0})
	require.ErrorIs(t, err, ErrAlreadyAttempted)

	_, err = svc.Submit(ctx, &access.Caller{Role: members.RoleAdmin}, 1, []int{1, 2})
	require.ErrorIs(t, err, ErrProfileRequired)
}

func TestUnpublishedQuizHiddenFromMembers(t *testing.T) {
	svc := NewService(newStubRepo(), settingstest.New(settings.AppSettings{}))
	_, err := svc.Get(context.Background(), memberCaller(1, members.RoleHonourable), 2)
	require.ErrorIs(t, err, ErrNotFound)
	q, err := svc.Get(context.Background(), memberCaller(2, members.RoleAdmin), 2)
	require.NoError(t, err)
	assert.Equal(t, "Draft", q.Title)
}

func TestResultsVisibility(t *testing.T) {
	store := settingstest.New(settings.AppSettings{})
	svc := NewService(newStubRepo(), store)
	ctx := context.Background()

	_, err := svc.Results(ctx, memberCaller(1, members.RoleMember), 1)
	require.ErrorIs(t, err, ErrResultsHidden)

	rows, err := svc.Results(ctx, memberCaller(2, members.RoleAdmin), 1)
	require.NoError(t, err)
	assert.NotNil(t, rows)

	_, _ = store.SetResultsView(ctx, true)
	_, err = svc.Results(ctx, memberCaller(1, members.RoleMember), 1)
	require.NoError(t, err)

	_, err = svc.Results(ctx, &access.Caller{}, 1)
	require.ErrorIs(t, err, ErrProfileRequired)
}

func TestQuizHandlerHidesAnswers(t *testing.T) {
	h := NewHandler(nil, NewService(newStubRepo(), settingstest.New(settings.AppSettings{})))
	caller := memberCaller(3, members.RoleMember)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(access.ContextWithCaller(req.Context(), caller)))
		})
	})
	r.Route("/api/quizzes", h.MountRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/quizzes/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "answer")
	assert.Contains(t, rec.Body.String(), "Founded?")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/quizzes/1/attempts", strings.NewReader(`{"answers":[1,2]}`)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/quizzes/1/attempts", strings.NewReader(`{"answers":[1,2]}`)))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/quizzes/1/attempts", strings.NewReader(`{"answers":`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/quizzes/1/results", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/quizzes/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
