package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"sangha/internal/amqp"
	"sangha/internal/cli"
	"sangha/internal/services"
	gsheet "sangha/internal/sheets/google"
	"sangha/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting sangha-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	st := cli.InitStore(logger, cfg)

	dues := services.NewDues(st, cli.LoadLocation(logger, cfg))
	ledger := services.NewLedger(st, dues)
	presence := services.NewPresence(st)

	// Import requests need a configured sheet; without one they are
	// dropped with a warning.
	var importer *services.Importer
	if cfg.GoogleSpreadsheetID != "" {
		src, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		importer = services.NewImporter(st, src, ledger, cfg.ImportBatchSize)
		logger.Info("Google Sheets import enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	w := worker.NewRefreshWorker(st, ledger, importer, presence)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeRefresh(gctx, func(msg *amqp.RefreshMessage) error {
			return w.HandleMessage(gctx, msg)
		})
	})
	g.Go(func() error {
		return w.RunPeriodic(gctx, cfg.RefreshInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker failed", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
