package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/agentops/telegram-mcp-server/internal/app"
	"github.com/agentops/telegram-mcp-server/internal/approval"
	"github.com/agentops/telegram-mcp-server/internal/audit"
	"github.com/agentops/telegram-mcp-server/internal/channel/telegram"
	"github.com/agentops/telegram-mcp-server/internal/config"
	"github.com/agentops/telegram-mcp-server/internal/http/health"
	"github.com/agentops/telegram-mcp-server/internal/idempotency"
	"github.com/agentops/telegram-mcp-server/internal/log"
	"github.com/agentops/telegram-mcp-server/internal/notify"
	"github.com/agentops/telegram-mcp-server/internal/runtime"
	"github.com/agentops/telegram-mcp-server/internal/storage"
)

const idempotencyMaxEntries = 1024

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := log.New(cfg.LogLevel)

	store, closeStore, err := buildStore(cfg, logger)
	if err != nil {
		logger.Error("open store failed", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	messenger, err := telegram.New(telegram.Config{
		Token:     cfg.BotToken,
		ChatID:    cfg.ChatID,
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("telegram init failed", "error", err)
		os.Exit(1)
	}

	auditLog := audit.New(logger)
	notifier := notify.New(messenger, auditLog)
	orchestrator := approval.NewOrchestrator(store, messenger, approval.Options{
		Audit:            auditLog,
		Logger:           logger,
		PollInterval:     cfg.PollInterval,
		InstructionGrace: cfg.InstructionGrace,
	})
	router := approval.NewRouter(store, messenger, notifier, cfg.ChatID, auditLog, logger)

	builder := runtime.Builder{
		Logger:         logger,
		Audit:          auditLog,
		Orchestrator:   orchestrator,
		Notifier:       notifier,
		Cache:          idempotency.NewCache(cfg.IdempotencyTTL, idempotencyMaxEntries),
		DefaultTimeout: cfg.DefaultApprovalTimeout,
	}
	server := builder.Build()

	baseCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
	go func() {
		sig := <-sigCh
		logger.Warn("shutdown requested", "signal", sig.String())
		cancel()
	}()

	healthHandler := health.New()
	go func() {
		healthHandler.SetReady()
		messenger.Start(baseCtx)
		healthHandler.SetNotReady()
	}()
	go router.Run(baseCtx)

	switch cfg.Transport {
	case "stdio":
		if err := runStdio(baseCtx, server); err != nil {
			logger.Error("runtime error", "error", err)
			os.Exit(1)
		}
	default:
		if err := runHTTP(baseCtx, cfg, server, healthHandler, logger); err != nil {
			logger.Error("runtime error", "error", err)
			os.Exit(1)
		}
	}
}

func buildStore(cfg config.Config, logger *slog.Logger) (storage.Store, func(), error) {
	mem := storage.NewMemory()
	if cfg.DBPath == "" {
		return mem, func() {}, nil
	}
	durable, err := storage.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("durable approval tier enabled", "path", cfg.DBPath)
	closeStore := func() {
		if err := durable.Close(); err != nil {
			logger.Error("close store failed", "error", err)
		}
	}
	return storage.NewLayered(mem, durable), closeStore, nil
}

func runStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

func runHTTP(ctx context.Context, cfg config.Config, server *mcp.Server, healthHandler *health.Handler, logger *slog.Logger) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)

	application, err := app.New(ctx, cfg, handler, healthHandler, logger)
	if err != nil {
		return err
	}

	return application.Run(ctx)
}
