package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"portfolio-edge/internal/config"
	"portfolio-edge/internal/logging"
	"portfolio-edge/internal/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	logger.Info("Starting portfolio edge server",
		zap.String("port", cfg.Port),
		zap.String("model", cfg.Model),
		zap.Int("chat_rate_limit", cfg.ChatRateLimit),
		zap.Duration("chat_rate_window", cfg.ChatRateWindow),
	)

	chatService, err := cfg.NewChatService(logger)
	if err != nil {
		logger.Fatal("Failed to create chat service", zap.Error(err))
	}

	cacheStore := cfg.NewCacheStore(logger)
	defer cacheStore.Close()

	githubClient := cfg.NewGitHubClient(cacheStore, logger)

	limits := cfg.NewRateLimits()

	// Expired rate limit entries are swept until shutdown
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		limits.Registry.Run(sweepCtx, cfg.SweepInterval, func(removed int) {
			metrics.RateLimitExpired.Add(float64(removed))
			metrics.RateLimitKeys.Set(float64(limits.Registry.Len()))
			if removed > 0 {
				logger.Debug("Expired rate limit entries", zap.Int("removed", removed))
			}
		})
	}()

	handler := cfg.NewHandler(chatService, githubClient, limits, logger)

	router := cfg.NewRouter(handler, limits, logger)

	srv := cfg.NewHTTPServer(router)

	// Start server in goroutine
	go func() {
		logger.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	stopSweep()
	<-sweepDone

	logger.Info("Server stopped")
}
