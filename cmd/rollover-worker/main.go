package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bilancio/internal/cli"
	"bilancio/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting rollover-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// Publishing the snapshot export after each rollover needs the broker,
	// but the rollover math itself does not.
	amqpClient := cli.InitAMQP(logger, cfg)
	if amqpClient != nil {
		defer amqpClient.Close()
	}

	defaults, err := cfg.BudgetDefaults()
	if err != nil {
		logger.Error("Invalid budget defaults", "error", err)
		os.Exit(1)
	}

	budget, err := services.NewBudgetService(context.Background(), repo, amqpClient, defaults)
	if err != nil {
		logger.Error("Failed to initialize budget service", "error", err)
		os.Exit(1)
	}
	defer budget.Close()

	processor := services.NewRolloverProcessor(budget, cfg.RolloverInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Rollover processor configured",
		"interval", cfg.RolloverInterval,
		"period_type", cfg.BudgetPeriodType,
		"sqlite_db", cfg.SQLiteDBPath)

	go processor.Run(ctx)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("Shutting down rollover-worker...")
	cancel()

	select {
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown timeout reached")
	case <-time.After(2 * time.Second):
		logger.Info("Rollover-worker shutdown complete")
	}
}
