package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"bilancio/internal/cli"
	"bilancio/internal/engine"
	apphttp "bilancio/internal/http"
	"bilancio/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting bilancio server")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

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

	matcher := engine.NewSourceMatcher(cfg.MatchMinCommonLength)
	transactions := services.NewTransactionService(repo, budget, matcher, amqpClient)

	srv := apphttp.NewServer(":"+cfg.Port, budget, transactions)

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// The in-process rollover loop keeps a single-binary deployment
	// complete; cmd/rollover-worker runs the same loop standalone.
	processor := services.NewRolloverProcessor(budget, cfg.RolloverInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(ctx)

	go func() {
		sigCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Server shutdown error", "error", err)
			}
		})
		cli.WaitForShutdown(sigCtx, done)
		cancel()
	}()

	logger.Info("Starting bilancio server", "port", cfg.Port, "period_type", cfg.BudgetPeriodType)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
