package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"service-availability-backend/config"
	"service-availability-backend/internal/api"
	"service-availability-backend/internal/cleanup"
	"service-availability-backend/internal/db"
	"service-availability-backend/internal/logging"
	"service-availability-backend/internal/media"
	"service-availability-backend/internal/remote"
	"service-availability-backend/internal/session"
	"service-availability-backend/internal/store"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}

	logger, err := logging.New(cfg.Log.Env, cfg.Log.Level)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()
	logger.Info("configuration loaded", zap.String("path", configPath))

	// Initialize database
	gormDB, err := db.Init(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	journal := store.NewGormStore(gormDB)

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := remote.NewClient(cfg.Remote, logger)

	pool := cleanup.NewWorkerPool(cfg.WorkerPool.Size, client, logger)
	pool.Start(ctx)

	files, err := media.NewStore(cfg.Media.Dir)
	if err != nil {
		logger.Fatal("failed to prepare media directory", zap.Error(err))
	}

	repo, err := newRepository(ctx, cfg.Sessions)
	if err != nil {
		logger.Fatal("failed to initialize session storage", zap.Error(err))
	}
	logger.Info("session storage ready", zap.String("backend", cfg.Sessions.Backend))

	opts, err := session.OptionsFromConfig(cfg.Engine, cfg.Remote)
	if err != nil {
		logger.Fatal("invalid engine configuration", zap.Error(err))
	}
	sessions := session.NewService(repo, client, pool, journal, files, opts, logger)

	// Initialize router
	router := api.NewRouter(api.Deps{
		Sessions: sessions,
		Services: client,
		Journal:  journal,
		Options:  opts,
		Server:   cfg.Server,
		Logger:   logger,
	})
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server ListenAndServe", zap.Error(err))
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	logger.Info("shutdown signal received, stopping services")

	// Create a deadline to wait for.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server Shutdown", zap.Error(err))
	}
	cancel()

	logger.Info("server gracefully stopped")
}

func newRepository(ctx context.Context, cfg config.SessionConfig) (session.Repository, error) {
	switch cfg.Backend {
	case "", "memory":
		return session.NewMemoryRepository(cfg.TTL), nil
	case "redis":
		client, err := session.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return session.NewRedisRepository(client, cfg.KeyPrefix, cfg.TTL), nil
	}
	return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
}
