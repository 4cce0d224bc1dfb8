package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"ledger/internal/amqp"
	"ledger/internal/backend"
	"ledger/internal/cli"
	"ledger/internal/ledger"
	"ledger/internal/log"
	"ledger/internal/notion"
	"ledger/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting ledger-worker", log.FieldOperation, log.OpStartup)

	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}
	if cfg.DataBackend != string(backend.SQLiteBackend) {
		logger.Warn("Worker is not using the sqlite backend; it will not see the API's data",
			"backend", cfg.DataBackend)
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	// The worker only consumes; it never publishes.
	bcfg.AMQPURL = ""

	be, err := backend.NewFactory(logger).CreateBackend(context.Background(), bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err)
		os.Exit(1)
	}
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	}()

	consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer consumer.Close()

	svc := ledger.NewService(be.Store, ledger.WithSyncer(notion.NewSyncer(cfg.NotionDatabaseID)))
	w := worker.NewIngestWorker(svc)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.ConsumeTransactionsIngested(gctx, w.HandleIngested)
	})
	g.Go(func() error {
		return w.RunSweeps(gctx, cfg.WorkerSweepInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete", log.FieldOperation, log.OpShutdown)
}
