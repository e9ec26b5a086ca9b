package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/memberhub/portal/internal/access"
	"github.com/memberhub/portal/internal/app"
	"github.com/memberhub/portal/internal/audit"
	audithttp "github.com/memberhub/portal/internal/audit/http"
	"github.com/memberhub/portal/internal/events"
	"github.com/memberhub/portal/internal/feedback"
	"github.com/memberhub/portal/internal/functions"
	"github.com/memberhub/portal/internal/identity"
	"github.com/memberhub/portal/internal/members"
	membershttp "github.com/memberhub/portal/internal/members/http"
	"github.com/memberhub/portal/internal/observability"
	"github.com/memberhub/portal/internal/permissions"
	"github.com/memberhub/portal/internal/platform/cache"
	"github.com/memberhub/portal/internal/platform/db"
	"github.com/memberhub/portal/internal/quiz"
	"github.com/memberhub/portal/internal/settings"
	"github.com/memberhub/portal/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns, ApplicationName: "portal"})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisOpts := cache.Options{Addr: cfg.RedisAddr}
	redisClient, err := cache.New(ctx, redisOpts)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	// The composition root owns the admin refresh signal.
	changes := events.NewRegistry[permissions.Changed]()
	unsubscribe := changes.Subscribe(func(c permissions.Changed) {
		logger.Info("admin permissions changed", slog.String("key", c.Key), slog.String("admin_id", c.AdminID.String()))
	})
	defer unsubscribe()

	users := identity.NewUserStore(dbpool)
	sessions := identity.NewRedisSessions(redisClient, cfg.SessionTTL)
	memberRepo := members.NewRepository(dbpool)
	settingsRepo := settings.NewRepository(dbpool)
	auditLogger := audit.NewLogger(dbpool)
	permissionStore := permissions.NewStore(dbpool)

	jobClient, err := jobs.NewClient(redisOpts.Asynq())
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	params := app.RouterParams{
		Logger:  logger,
		Config:  cfg,
		Metrics: metrics,
		Functions: functions.New(functions.Config{
			ServiceURL:        cfg.ServiceURL,
			ServiceRoleKey:    cfg.ServiceRoleKey,
			AccessTokenTTL:    cfg.AccessTokenTTL,
			MinPasswordLength: cfg.SignupMinPassword,
			FeedbackLimit:     cfg.FeedbackLimit,
			FeedbackWindow:    cfg.FeedbackWindow,
		}, functions.Deps{
			Members:   memberRepo,
			Settings:  settingsRepo,
			Feedback:  feedback.NewRepository(dbpool),
			Notifier:  jobClient,
			Users:     users,
			Sessions:  sessions,
			Logger:    logger,
			Decisions: metrics,
		}),
		SettingsHandler: settings.NewHandler(logger, settingsRepo),
	}

	if cfg.HasServiceCredentials() {
		provider, err := identity.NewProvider(identity.ProviderConfig{
			Issuer:   cfg.ServiceURL,
			Secret:   cfg.ServiceRoleKey,
			TokenTTL: cfg.AccessTokenTTL,
			Users:    users,
			Sessions: sessions,
		})
		if err != nil {
			logger.Error("init identity provider", slog.Any("error", err))
			os.Exit(1)
		}
		identityHandler := identity.NewHandler(logger, provider, cfg.LoginPerMinute)
		defer identityHandler.Close()

		inspector := asynq.NewInspector(redisOpts.Asynq())
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()

		params.IdentityHandler = identityHandler
		params.Access = access.Middleware{
			Authorizer: access.NewAuthorizer(provider, memberRepo, logger),
			Logger:     logger,
		}
		params.ProfileHandler = membershttp.NewHandler(logger, members.NewService(memberRepo))
		params.QuizHandler = quiz.NewHandler(logger, quiz.NewService(quiz.NewRepository(dbpool), settingsRepo))
		params.PermissionsHandler = permissions.NewHandler(logger, permissionStore, auditLogger, changes)
		params.AuditHandler = audithttp.NewHandler(logger, audit.NewService(audit.NewRepository(dbpool)))
		params.JobHandler = jobs.NewHandler(inspector, logger)
	} else {
		logger.Warn("SERVICE_URL or SERVICE_ROLE_KEY missing; identity and member APIs disabled")
	}

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      app.NewRouter(params),
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
