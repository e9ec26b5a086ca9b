package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memberhub/portal/internal/feedback"
	jobmetrics "github.com/memberhub/portal/internal/jobs"
)

type recordingEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (r *recordingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.tasks = append(r.tasks, task)
	return &asynq.TaskInfo{Type: task.Type(), Queue: QueueDefault}, nil
}

func (r *recordingEnqueuer) Close() error { return nil }

type captureMailer struct {
	sent []SendEmailPayload
	err  error
}

func (m *captureMailer) HandleSendEmailTask(_ context.Context, t *asynq.Task) error {
	if m.err != nil {
		return m.err
	}
	var p SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	m.sent = append(m.sent, p)
	return nil
}

type stubPruner struct {
	retention time.Duration
	removed   int64
	err       error
}

func (s *stubPruner) Prune(_ context.Context, retention time.Duration) (int64, error) {
	s.retention = retention
	return s.removed, s.err
}

func TestClientNotifyFeedbackEnqueuesTask(t *testing.T) {
	enq := &recordingEnqueuer{}
	client := NewClientWith(enq)
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	err := client.NotifyFeedback(context.Background(), feedback.Entry{ID: 7, Message: "hi", IPAddress: "198.51.100.4", CreatedAt: at})
	require.NoError(t, err)
	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TaskFeedbackNotify, enq.tasks[0].Type())

	var payload FeedbackNotifyPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	assert.Equal(t, int64(7), payload.FeedbackID)
	assert.True(t, payload.ReceivedAt.Equal(at))

	enq.err = errors.New("redis down")
	assert.Error(t, client.NotifyFeedback(context.Background(), feedback.Entry{ID: 8}))
}

func TestFeedbackNotifyJobSendsEmail(t *testing.T) {
	mailer := &captureMailer{}
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	job := &FeedbackNotifyJob{To: "ops@example.org", Mailer: mailer, Metrics: metrics}
	task, err := NewFeedbackNotifyTask(FeedbackNotifyPayload{FeedbackID: 3, Message: strings.Repeat("a", 400), IPAddress: "203.0.113.1"})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "ops@example.org", mailer.sent[0].To)
	assert.Equal(t, "New feedback #3", mailer.sent[0].Subject)
	assert.Contains(t, mailer.sent[0].Body, "203.0.113.1")
	assert.Less(t, len(mailer.sent[0].Body), 400)
}

func TestFeedbackNotifyJobWithoutAddressSkipsMail(t *testing.T) {
	mailer := &captureMailer{}
	job := &FeedbackNotifyJob{Mailer: mailer}
	task, err := NewFeedbackNotifyTask(FeedbackNotifyPayload{FeedbackID: 1})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Empty(t, mailer.sent)
}

func TestFeedbackNotifyJobRejectsGarbage(t *testing.T) {
	job := &FeedbackNotifyJob{To: "ops@example.org", Mailer: &captureMailer{}}
	err := job.Handle(context.Background(), asynq.NewTask(TaskFeedbackNotify, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestFeedbackPruneJob(t *testing.T) {
	pruner := &stubPruner{removed: 4}
	job := &FeedbackPruneJob{Pruner: pruner, Metrics: jobmetrics.NewMetrics(prometheus.NewRegistry())}

	task, err := NewFeedbackPruneTask(30)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 30*24*time.Hour, pruner.retention)

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskFeedbackPrune, nil)))
	assert.Equal(t, DefaultRetentionDays*24*time.Hour, pruner.retention)

	pruner.err = errors.New("timeout")
	assert.Error(t, job.Handle(context.Background(), task))
}

func TestHealthWithoutInspector(t *testing.T) {
	h := NewHandler(nil, nil)
	rr := httptest.NewRecorder()
	h.health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"queue":"default","pending":0}`, rr.Body.String())
}
