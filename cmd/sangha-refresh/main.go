// Command sangha-refresh publishes a refresh request to the worker queue.
// Meant for cron: a nightly recalc keeps every member's dues aligned with
// the running month even when nothing was mutated, and -import triggers a
// scheduled re-import from the configured sheet.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"sangha/internal/amqp"
	"sangha/internal/cli"
)

func main() {
	doImport := flag.Bool("import", false, "request a sheet import instead of a recalc")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required to publish refresh requests")
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if *doImport {
		err = client.PublishImport(ctx)
	} else {
		err = client.PublishRecalc(ctx, nil)
	}
	if err != nil {
		logger.Error("Failed to publish refresh request", "error", err, "import", *doImport)
		os.Exit(1)
	}
	logger.Info("Refresh request published", "import", *doImport)
}
