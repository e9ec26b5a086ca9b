package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/memberhub/portal/internal/jobs"
)

// DefaultRetentionDays applies when a prune payload omits the window.
const DefaultRetentionDays = 90

const previewRunes = 280

// Pruner deletes feedback older than a retention window.
type Pruner interface {
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

// Mailer sends a rendered email.
type Mailer interface {
	HandleSendEmailTask(ctx context.Context, t *asynq.Task) error
}

// FeedbackNotifyJob renders accepted feedback into an operator email.
type FeedbackNotifyJob struct {
	To      string
	Mailer  Mailer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle executes the notification.
func (j *FeedbackNotifyJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Mailer == nil {
		return errors.New("feedback notify: handler not configured")
	}
	var payload FeedbackNotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.Metrics.Track(TaskFeedbackNotify)
	defer func() {
		err = tracker.End(err)
	}()
	if j.To == "" {
		j.logger().Info("feedback received, no notify address configured", slog.Int64("feedback_id", payload.FeedbackID))
		return nil
	}
	mail, err := NewSendEmailTask(SendEmailPayload{
		To:      j.To,
		Subject: fmt.Sprintf("New feedback #%d", payload.FeedbackID),
		Body: fmt.Sprintf("Received %s from %s\n\n%s",
			payload.ReceivedAt.UTC().Format(time.RFC3339), payload.IPAddress, preview(payload.Message)),
	})
	if err != nil {
		return err
	}
	if err := j.Mailer.HandleSendEmailTask(ctx, mail); err != nil {
		return fmt.Errorf("feedback notify: %w", err)
	}
	j.Metrics.IncNotified()
	return nil
}

func (j *FeedbackNotifyJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}

func preview(message string) string {
	if utf8.RuneCountInString(message) <= previewRunes {
		return message
	}
	runes := []rune(message)
	return string(runes[:previewRunes]) + "…"
}

// FeedbackPruneJob applies the feedback retention window.
type FeedbackPruneJob struct {
	Pruner  Pruner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle executes the retention sweep.
func (j *FeedbackPruneJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Pruner == nil {
		return errors.New("feedback prune: handler not configured")
	}
	var payload FeedbackPrunePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.RetentionDays <= 0 {
		payload.RetentionDays = DefaultRetentionDays
	}
	tracker := j.Metrics.Track(TaskFeedbackPrune)
	defer func() {
		err = tracker.End(err)
	}()

	removed, err := j.Pruner.Prune(ctx, time.Duration(payload.RetentionDays)*24*time.Hour)
	if err != nil {
		return fmt.Errorf("feedback prune: %w", err)
	}
	j.Metrics.AddPruned(removed)
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("feedback pruned", slog.Int("retention_days", payload.RetentionDays), slog.Int64("removed", removed))
	return nil
}
