package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/insiderwatch/insiderwatch/internal/activity"
	"github.com/insiderwatch/insiderwatch/internal/alerts"
	"github.com/insiderwatch/insiderwatch/internal/app"
	"github.com/insiderwatch/insiderwatch/internal/behavior"
	"github.com/insiderwatch/insiderwatch/internal/observability"
	"github.com/insiderwatch/insiderwatch/internal/platform/cache"
	"github.com/insiderwatch/insiderwatch/internal/platform/db"
	"github.com/insiderwatch/insiderwatch/internal/posture"
	"github.com/insiderwatch/insiderwatch/internal/risk"
	"github.com/insiderwatch/insiderwatch/jobs"
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

	logger := app.NewLogger(cfg, "api")

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		// Postures are served uncached until Redis is back.
		logger.Warn("redis unavailable, posture cache disabled", slog.Any("error", err))
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	policies, err := risk.NewPolicyStore(cfg.Policy(), cfg.RiskPolicyFile, logger)
	if err != nil {
		logger.Error("load risk policy", slog.Any("error", err))
		os.Exit(1)
	}
	go func() {
		if err := policies.Watch(ctx); err != nil {
			logger.Error("policy watcher stopped", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	repo := behavior.NewRepository(dbpool)
	engine := risk.NewEngine(repo, policies)
	postureService := posture.NewService(repo, redisClient, cfg.PostureCacheTTL, logger)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	activityService := activity.NewService(activity.Deps{
		Assessor: engine,
		Store:    repo,
		Notifier: jobClient,
		Postures: postureService,
		Metrics:  metrics,
		Logger:   logger,
	})

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		ActivityHandler: activity.NewHandler(logger, activityService),
		AlertsHandler:   alerts.NewHandler(logger, alerts.NewService(repo)),
		PostureHandler:  posture.NewHandler(logger, postureService),
		JobHandler:      jobs.NewHandler(inspector, logger),
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
