package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"time"

	"ledger/internal/backend"
	"ledger/internal/cli"
	"ledger/internal/core"
	"ledger/internal/export/sheets"
	apphttp "ledger/internal/http"
	"ledger/internal/ingest"
	"ledger/internal/ledger"
	"ledger/internal/log"
	"ledger/internal/notion"
	"ledger/internal/storage"
)

func main() {
	resetDB := flag.Bool("reset-db", false, "drop the SQLite schema before starting")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)
	ctx := context.Background()

	if *resetDB && cfg.DataBackend == string(backend.SQLiteBackend) {
		if err := storage.DropSchema(cfg.SQLiteDBPath); err != nil {
			logger.Error("Failed to reset database", log.FieldError, err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		logger.Warn("Database schema dropped", "path", cfg.SQLiteDBPath)
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	be, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	opts := []ledger.Option{ledger.WithSyncer(notion.NewSyncer(cfg.NotionDatabaseID))}
	if be.Publisher != nil {
		opts = append(opts, ledger.WithPublisher(be.Publisher))
	}
	if cfg.SampleDataFile != "" {
		path := cfg.SampleDataFile
		opts = append(opts, ledger.WithSampleSource(func() ([]core.RawRecord, error) {
			return ingest.LoadRecords(path)
		}))
		logger.Info("Using sample feed from file", "path", path)
	}
	svc := ledger.NewService(be.Store, opts...)

	srvOpts := []apphttp.Option{
		apphttp.WithLogger(logger),
		apphttp.WithReportCache(cfg.ReportCacheSize, cfg.ReportCacheTTL),
		apphttp.WithTrustedProxies(cfg.TrustedProxies...),
	}
	exporter, err := sheets.NewFromEnv(ctx)
	switch {
	case err != nil:
		logger.Error("Failed to initialize report exporter", log.FieldError, err)
		os.Exit(1)
	case exporter != nil:
		srvOpts = append(srvOpts, apphttp.WithExporter(exporter))
	default:
		logger.Info("Report export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc, srvOpts...)

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting ledger server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"amqp_enabled", be.Publisher != nil,
		"export_enabled", exporter != nil,
		log.FieldOperation, log.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
