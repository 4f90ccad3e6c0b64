package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"bilancio/internal/amqp"
	"bilancio/internal/cli"
	"bilancio/internal/engine"
	"bilancio/internal/services"
	gsheet "bilancio/internal/sheets/google"
	"bilancio/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting bilancio-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// The worker is driven by the broker; unlike the server it cannot run
	// without one.
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for bilancio-worker")
		os.Exit(1)
	}
	amqpClient := cli.InitAMQP(logger, cfg)
	defer amqpClient.Close()

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

	matcher := engine.NewSourceMatcher(cfg.MatchMinCommonLength)
	transactions := services.NewTransactionService(repo, budget, matcher, nil)
	ingestWorker := worker.NewIngestWorker(transactions)

	// Google Sheets export is optional; without it the export queue is
	// left alone so another worker instance can drain it.
	var exportWorker *worker.ExportWorker
	if cfg.ExportEnabled() {
		sheetsClient, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		exportWorker = worker.NewExportWorker(budget, sheetsClient, sheetsClient)
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqpClient.ConsumeTransactionIngest(gctx, func(msg *amqp.TransactionIngestMessage) error {
			return ingestWorker.HandleIngestMessage(gctx, msg)
		})
	})

	if exportWorker != nil {
		// Backstop for export messages lost while the worker was down.
		if err := exportWorker.StartupExport(gctx); err != nil {
			logger.Error("Startup export failed", "error", err)
		}

		g.Go(func() error {
			return amqpClient.ConsumeSnapshotExport(gctx, func(msg *amqp.SnapshotExportMessage) error {
				return exportWorker.HandleExportMessage(gctx, msg)
			})
		})
	}

	go func() {
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
		}
		cancel()
	}()

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

	logger.Info("Shutting down worker...")
	cancel()

	select {
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown timeout reached")
	case <-time.After(5 * time.Second):
		logger.Info("Worker shutdown complete")
	}
}
