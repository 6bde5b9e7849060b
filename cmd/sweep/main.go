// Command sweep runs the meeting lifecycle sweep once and prints the summary as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/joshua-takyi/meetsweeper/internal/config"
	"github.com/joshua-takyi/meetsweeper/internal/container"
	"github.com/joshua-takyi/meetsweeper/internal/models"
)

func main() {
	verbose := flag.Bool("verbose", false, "include per-session results")
	timeout := flag.Duration("timeout", 10*time.Minute, "abort the sweep after this long")
	flag.Parse()

	_ = godotenv.Load(".env.local")

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// stdout carries the JSON summary, so logs go to stderr.
	logger := config.NewLogger(cfg, os.Stderr)
	slog.SetDefault(logger)

	os.Exit(run(cfg, logger, *verbose, *timeout))
}

func run(cfg *config.Config, logger *slog.Logger, verbose bool, timeout time.Duration) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	clients, err := container.Connect(cfg, logger)
	if err != nil {
		logger.Error("Failed to connect to backends", "error", err)
		return 1
	}
	// Scheduler auth is an HTTP concern; the one-shot run needs no JWKS.
	cfg.SupabaseJWKSURL = ""
	appContainer, err := container.NewContainer(ctx, logger, cfg, clients)
	if err != nil {
		logger.Error("Failed to build container", "error", err)
		container.Release(logger)
		return 1
	}
	defer appContainer.Close()

	summary, err := appContainer.LifecycleService.RunNow(ctx)
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err != nil {
		logger.Error("Meeting lifecycle sweep failed", "error", err)
		_ = encoder.Encode(models.ErrorResponse(err.Error()))
		return 1
	}

	if !verbose {
		summary = summary.Compact()
	}
	if err := encoder.Encode(summary); err != nil {
		logger.Error("Failed to write summary", "error", err)
		return 1
	}
	return 0
}
