package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/memberhub/portal/internal/app"
	"github.com/memberhub/portal/internal/feedback"
	jobmetrics "github.com/memberhub/portal/internal/jobs"
	"github.com/memberhub/portal/internal/platform/cache"
	"github.com/memberhub/portal/internal/platform/db"
	"github.com/memberhub/portal/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: 4, ApplicationName: "portal-worker"})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisOpts := cache.Options{Addr: cfg.RedisAddr}
	metrics := jobmetrics.NewMetrics(prometheus.DefaultRegisterer)
	var mailer jobs.Mailer = jobs.LogMailer{Logger: logger}
	if cfg.SMTPHost != "" {
		mailer = jobs.SMTPMailer{Config: jobs.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			From:     cfg.SMTPFrom,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			TLS:      cfg.SMTPTLS,
		}}
	}

	feedbackService := feedback.NewService(feedback.NewRepository(pool), nil, feedback.Config{
		Limit:  cfg.FeedbackLimit,
		Window: cfg.FeedbackWindow,
	}, logger)
	notifyJob := &jobs.FeedbackNotifyJob{To: cfg.FeedbackNotifyEmail, Mailer: mailer, Logger: logger, Metrics: metrics}
	pruneJob := &jobs.FeedbackPruneJob{Pruner: feedbackService, Logger: logger, Metrics: metrics}

	pruneTask, err := jobs.NewFeedbackPruneTask(cfg.RetentionDays())
	if err != nil {
		logger.Error("build prune task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts.Asynq(),
		Logger:    logger,
		Mailer:    mailer,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskFeedbackNotify, Handler: notifyJob.Handle},
			{Type: jobs.TaskFeedbackPrune, Handler: pruneJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "20 3 * * *", Task: pruneTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
