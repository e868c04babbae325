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
	"golang.org/x/sync/errgroup"

	"github.com/farmwise/farmwise/internal/app"
	"github.com/farmwise/farmwise/internal/audit"
	"github.com/farmwise/farmwise/internal/auth"
	"github.com/farmwise/farmwise/internal/authz"
	"github.com/farmwise/farmwise/internal/farms"
	"github.com/farmwise/farmwise/internal/memberships"
	"github.com/farmwise/farmwise/internal/observability"
	"github.com/farmwise/farmwise/internal/platform/cache"
	"github.com/farmwise/farmwise/internal/platform/db"
	"github.com/farmwise/farmwise/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	tokens := auth.NewTokenStore(redisClient, cfg.TokenTTL)
	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo, tokens)
	authHandler := auth.NewHandler(logger, authService)

	metrics := observability.NewMetrics()

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	// Decisions fan out to metrics, the structured log, and either the
	// job queue (drained by the worker) or Postgres directly.
	sinks := audit.Fanout{metrics, audit.NewLogSink(logger)}
	if cfg.AuditQueueEnabled {
		sinks = append(sinks, audit.NewAsynqSink(jobClient, logger))
	} else {
		sinks = append(sinks, audit.NewPGSink(dbpool, logger))
	}

	membershipRepo := memberships.NewRepository(dbpool)
	catalog := authz.NewCatalog()
	registry := authz.NewRegistry()
	evaluator := authz.NewEvaluator(catalog, registry, membershipRepo, sinks, logger)
	authzHandler := authz.NewHandler(logger, evaluator)

	members := authz.NewMembers(membershipRepo, catalog)
	farmRepo := farms.NewRepository(dbpool)
	farmService := farms.NewService(farmRepo, members, membershipRepo, logger)
	timeline := audit.NewService(audit.NewRepository(dbpool))
	farmsHandler := farms.NewHandler(logger, farmService, evaluator, timeline)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:       logger,
		Config:       cfg,
		AuthHandler:  authHandler,
		AuthzHandler: authzHandler,
		FarmsHandler: farmsHandler,
		JobHandler:   jobHandler,
		Metrics:      metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}
