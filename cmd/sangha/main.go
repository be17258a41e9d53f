package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"sangha/internal/amqp"
	"sangha/internal/auth"
	"sangha/internal/cli"
	apphttp "sangha/internal/http"
	"sangha/internal/services"
	gsheet "sangha/internal/sheets/google"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting sangha server")

	cfg := cli.LoadAndValidateConfig(logger)
	st := cli.InitStore(logger, cfg)

	dues := services.NewDues(st, cli.LoadLocation(logger, cfg))
	ledger := services.NewLedger(st, dues)

	// With AMQP configured, mutations hand the recalculation to the
	// worker; otherwise it runs inline on the request path.
	var refresher services.Refresher = ledger
	var queue *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		queue, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer queue.Close()
		refresher = services.NewAsyncRefresher(queue, ledger)
		logger.Info("AMQP refresh queue initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - recalculation runs inline")
	}

	deps := apphttp.Deps{
		Members:      services.NewMembers(st, refresher),
		Payments:     services.NewPayments(st, refresher),
		Transactions: services.NewTransactions(st, refresher),
		Ledger:       ledger,
		Search:       services.NewSearch(st, dues),
		Presence:     services.NewPresence(st),
		Intake:       services.NewIntake(st),
		Store:        st,
	}

	if cfg.AdminEmail != "" {
		deps.Sessions = auth.NewSessions(cfg.SessionSecret, cfg.AdminEmail, cfg.AdminPasswordHash, cfg.SessionTTL)
		logger.Info("Admin access enabled", "email", cfg.AdminEmail)
	} else {
		logger.Warn("Admin access disabled - no ADMIN_EMAIL provided")
	}

	if cfg.GoogleSpreadsheetID != "" {
		if queue != nil {
			// The worker owns the sheets client; imports travel the queue.
			deps.ImportQueue = queue
		} else {
			src, err := gsheet.NewFromEnv(context.Background())
			if err != nil {
				logger.Error("Failed to initialize Google Sheets client", "error", err)
				os.Exit(1)
			}
			deps.Importer = services.NewImporter(st, src, refresher, cfg.ImportBatchSize)
		}
		logger.Info("Google Sheets import enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	}

	srv := apphttp.NewServer(":"+cfg.Port, deps)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 0 // the SSE stream holds its connection open
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	logger.Info("Starting sangha server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
