package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/joshua-takyi/meetsweeper/internal/config"
	"github.com/joshua-takyi/meetsweeper/internal/container"
	"github.com/joshua-takyi/meetsweeper/internal/routes"
)

func main() {
	// Load environment variables
	_ = godotenv.Load(".env.local")

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := config.NewLogger(cfg, os.Stdout)
	slog.SetDefault(logger)
	logger.Info("Starting meetsweeper API server",
		"environment", cfg.Environment,
		"store_backend", cfg.StoreBackend,
		"audit_backend", cfg.AuditBackend,
		"platform_fee_percent", cfg.PlatformFeePercent,
		"earnings_hold_period", cfg.EarningsHoldPeriod,
	)
	if !cfg.SchedulerAuthConfigured() {
		logger.Warn("No scheduler credential configured; the cron endpoint is open")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clients, err := container.Connect(cfg, logger)
	if err != nil {
		logger.Error("Failed to connect to backends", "error", err)
		os.Exit(1)
	}

	appContainer, err := container.NewContainer(ctx, logger, cfg, clients)
	if err != nil {
		logger.Error("Failed to build container", "error", err)
		container.Release(logger)
		os.Exit(1)
	}
	defer appContainer.Close()

	router := routes.SetupRoutes(appContainer)

	// A sweep can take longer than a normal request.
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed to start", "error", err)
			stop()
		}
	}()

	sweeperDone := make(chan struct{})
	if cfg.SweepInterval > 0 {
		logger.Info("In-process sweep scheduler enabled", "interval", cfg.SweepInterval)
		go func() {
			defer close(sweeperDone)
			appContainer.LifecycleService.RunEvery(ctx, cfg.SweepInterval)
		}()
	} else {
		close(sweeperDone)
	}

	<-ctx.Done()
	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	// Connections close on return; let a meet already being settled finish first.
	select {
	case <-sweeperDone:
	case <-shutdownCtx.Done():
		logger.Warn("Scheduled sweep still running at shutdown")
	}

	logger.Info("Server exited")
}
