package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eventora/chat-service/config"
	"github.com/eventora/chat-service/internal/postgres"
	"github.com/eventora/chat-service/internal/queue"
	"github.com/eventora/chat-service/internal/security"
	"github.com/eventora/chat-service/internal/service"
	httpx "github.com/eventora/chat-service/internal/transport/http"
	"github.com/eventora/chat-service/internal/transport/ws"
	"github.com/eventora/chat-service/pkg/logger"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.Env(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting chat-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	// --- postgres ---
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		DSN:             cfg.Postgres.DSN,
		ApplicationName: cfg.Logging.Service,
	})
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	// --- repos ---
	convRepo := postgres.NewConversationRepository(pool)
	msgRepo := postgres.NewMessageRepository(pool)

	// --- registry & service ---
	registry := ws.NewRegistry()
	convSvc := service.NewConversationService(convRepo, msgRepo, registry)

	// --- auth ---
	verifier := security.NewJWTVerifier([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer, cfg.Auth.Leeway)

	// --- relay & HTTP ---
	wsServer := ws.NewServer(registry, convSvc, verifier)
	handler := httpx.NewHandler(convSvc)
	router := httpx.NewRouter(handler, wsServer, verifier)
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 2)

	// --- booking-notice worker (optional) ---
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	if cfg.Redis.Addr != "" {
		worker := queue.NewServer(cfg.Redis.Addr, convSvc)
		go func() {
			slog.Info("booking-notice worker started", "redis", cfg.Redis.Addr)
			if err := worker.Run(workerCtx); err != nil {
				errCh <- err
			}
		}()
	}

	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stopWorker()
	_ = httpSrv.Shutdown(ctxShutdown)
	slog.Info("stopped")
}
