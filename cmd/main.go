package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cboydstun/bounce-v3-sub014/internal/app/registry"
	"github.com/cboydstun/bounce-v3-sub014/internal/app/server"
	"github.com/cboydstun/bounce-v3-sub014/internal/app/worker"
	"github.com/cboydstun/bounce-v3-sub014/internal/config"
	"github.com/cboydstun/bounce-v3-sub014/internal/core/services"
	"github.com/cboydstun/bounce-v3-sub014/internal/geo"
	"github.com/cboydstun/bounce-v3-sub014/internal/platform/logger"
	"github.com/cboydstun/bounce-v3-sub014/internal/platform/telemetry"
	"github.com/cboydstun/bounce-v3-sub014/internal/plugins/postgres"
	"github.com/cboydstun/bounce-v3-sub014/internal/plugins/push"
	redisPlugin "github.com/cboydstun/bounce-v3-sub014/internal/plugins/redis"

	"github.com/redis/go-redis/v9"
)

func main() {
	// Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Config
	cfg := config.Load()

	// Logger
	log := logger.NewLogger(*cfg)
	log.Info("starting application")

	otelShutdown, err := telemetry.InitTelemetry(ctx, *cfg)
	if err != nil {
		log.Error("failed to initialize telemetry", "err", err)
	}
	defer func() {
		log.Info("flushing telemetry...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", "err", err)
		}
	}()

	// Infra
	var pdb *sql.DB
	if pdb, err = postgres.New(ctx, *cfg.Postgres); err != nil {
		log.Error("postgres connection failed", "DSN", cfg.Postgres.DSN)
		return
	}
	log.Info("postgres connected")
	var rdb *redis.Client
	if rdb, err = redisPlugin.NewRedisClient(ctx, *cfg.Redis); err != nil {
		log.Error("redis connection failed", "url", cfg.Redis.URL)
		return
	}
	log.Info("redis connected")

	// Adapters
	contractorRepo := postgres.NewContractorRepo(pdb)
	notificationRepo := postgres.NewNotificationRepo(pdb)
	txManager := postgres.NewTxManager(pdb)
	presStore := redisPlugin.NewRedisPresenceStore(rdb, cfg.Broadcast.PresenceTTL)
	eventQueue := redisPlugin.NewRedisEventQueue(log, rdb, cfg.Worker.Stream)
	pushGateway := push.NewClient(*cfg.Push)

	// Core services
	rooms := registry.NewRegistry(geo.NewKeyer(cfg.Broadcast.GridPrecision))
	contractorSvc := services.NewContractorService(log, contractorRepo)
	tokenSvc := services.NewTokenService(cfg.SecretToken)
	gateway := services.NewConnectionGateway(
		log, rooms, presStore,
		cfg.Broadcast.DefaultRadiusKm,
		cfg.Broadcast.HeartbeatInterval,
		cfg.Broadcast.PresenceTTL,
	)
	notifier := services.NewOfflineNotifier(log, pushGateway, cfg.Broadcast.MaxAttempts, cfg.Broadcast.RetryDelay)
	dispatcher := services.NewBroadcastDispatcher(
		log, rooms, notifier, notificationRepo,
		services.RetryPolicy{MaxAttempts: cfg.Broadcast.MaxAttempts, Delay: cfg.Broadcast.RetryDelay},
		cfg.Broadcast.SendTimeout,
	)

	// Event intake
	wrkr := worker.NewTaskEventWorker(log, eventQueue, dispatcher, cfg.Worker.Group)
	if err := wrkr.Run(ctx); err != nil {
		log.Error("event worker failed to start", "err", err)
	}

	// Server
	srv := server.NewServer(
		log, cfg.Service.Name, cfg.Service.Addr,
		contractorSvc, tokenSvc, gateway, dispatcher, rooms, presStore,
		notificationRepo, txManager,
	)
	if err := srv.Start(); err != nil {
		log.Error("server stopped", "err", err)
	}
}
