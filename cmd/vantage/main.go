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
	"github.com/redis/go-redis/v9"

	"github.com/vantage-admin/vantage-admin/internal/app"
	"github.com/vantage-admin/vantage-admin/internal/audit"
	"github.com/vantage-admin/vantage-admin/internal/catalog"
	"github.com/vantage-admin/vantage-admin/internal/observability"
	"github.com/vantage-admin/vantage-admin/internal/permissions"
	"github.com/vantage-admin/vantage-admin/internal/platform/db"
	"github.com/vantage-admin/vantage-admin/internal/platform/httpx"
	"github.com/vantage-admin/vantage-admin/internal/roles"
	"github.com/vantage-admin/vantage-admin/internal/shared"
	"github.com/vantage-admin/vantage-admin/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	catalogRepo := catalog.NewRepository(pool)
	rolesRepo := roles.NewRepository(pool)
	rolesService := roles.NewService(rolesRepo)

	grantStore := permissions.NewStore(pool)
	viewCache := permissions.NewCache(redisClient, cfg.ViewCacheTTL)
	if err := viewCache.ListenForInvalidation(ctx); err != nil {
		logger.Warn("cache invalidation listener", slog.Any("error", err))
	}

	queryService := permissions.NewQueryService(rolesRepo, catalogRepo, grantStore, viewCache)
	assignService := permissions.NewAssignmentService(logger, rolesRepo, catalogRepo, grantStore, viewCache, auditLogger, metrics)

	guard := permissions.Guard{
		Checker: queryService,
		Catalog: catalogRepo,
		Logger:  logger,
	}

	permissionsHandler := permissions.NewHandler(logger, queryService, assignService)
	rolesHandler := roles.NewHandler(logger, rolesService, guard)
	auditHandler := audit.NewHandler(logger, audit.NewService(audit.NewRepository(pool)), guard)

	sweepClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := sweepClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	adminSweep := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := jobs.GrantSweepPayload{DryRun: r.URL.Query().Get("dryRun") == "true"}
		info, err := sweepClient.EnqueueGrantSweep(r.Context(), payload)
		if err != nil {
			logger.Error("enqueue grant sweep", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusAccepted, map[string]string{"taskId": info.ID})
	})

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		PermissionsHandler: permissionsHandler,
		RolesHandler:       rolesHandler,
		AuditHandler:       auditHandler,
		Metrics:            metrics,
		AdminSweep:         adminSweep,
		AdminGuard:         guard.Require("permissions", "edit"),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
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
		logger.Error("server shutdown", slog.Any("error", err))
	}
}
