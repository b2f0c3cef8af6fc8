package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"guildwarden/internal/analytics"
	"guildwarden/internal/bot"
	"guildwarden/internal/config"
	"guildwarden/internal/health"
	"guildwarden/internal/modules/audit"
	"guildwarden/internal/storage"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := storage.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	auditLogger := audit.NewLogger(store, logger.Named("audit"))
	analyticsSvc := analytics.New(store)

	botSvc, err := bot.New(cfg, logger, store, auditLogger, analyticsSvc)
	if err != nil {
		logger.Fatal("bot init failed", zap.Error(err))
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = botSvc.Start(startCtx)
	startCancel()
	if err != nil {
		logger.Fatal("bot start failed", zap.Error(err))
	}
	logger.Info("bot started")

	var server *health.Server
	if cfg.Health.Enabled {
		server = health.New(cfg.Health.Addr, store, botSvc.Giveaways(), logger)
		server.Start()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown requested")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if server != nil {
		_ = server.Shutdown(ctx)
	}
	botSvc.Close(ctx)
}
