package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskFeedbackNotify tells the operator inbox about accepted feedback.
	TaskFeedbackNotify = "feedback:notify"
	// TaskFeedbackPrune removes feedback older than the retention window.
	TaskFeedbackPrune = "feedback:prune"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// LogMailer delivers email by writing it to the structured log. The portal
// has no outbound mail relay.
type LogMailer struct {
	Logger *slog.Logger
}

// HandleSendEmailTask processes TaskTypeSendEmail tasks.
func (m LogMailer) HandleSendEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "send email",
		slog.String("to", payload.To),
		slog.String("subject", payload.Subject),
		slog.Int("body_bytes", len(payload.Body)),
	)
	return nil
}

// FeedbackNotifyPayload identifies an accepted feedback entry.
type FeedbackNotifyPayload struct {
	FeedbackID int64     `json:"feedback_id"`
	Message    string    `json:"message"`
	IPAddress  string    `json:"ip_address"`
	ReceivedAt time.Time `json:"received_at"`
}

// NewFeedbackNotifyTask constructs the notification task.
func NewFeedbackNotifyTask(payload FeedbackNotifyPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFeedbackNotify, data, asynq.MaxRetry(5)), nil
}

// FeedbackPrunePayload configures a retention sweep.
type FeedbackPrunePayload struct {
	RetentionDays int `json:"retention_days"`
}

// NewFeedbackPruneTask constructs the retention task.
func NewFeedbackPruneTask(retentionDays int) (*asynq.Task, error) {
	data, err := json.Marshal(FeedbackPrunePayload{RetentionDays: retentionDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFeedbackPrune, data), nil
}
