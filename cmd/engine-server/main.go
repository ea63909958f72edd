// Package main provides the engine server entry point: the HTTP API, the
// sync worker pool, and the audit retention worker in a single process.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hrsignal/temporal-engine/internal/db"
	"github.com/hrsignal/temporal-engine/pkg/audit"
	"github.com/hrsignal/temporal-engine/pkg/directory"
	"github.com/hrsignal/temporal-engine/pkg/facts"
	"github.com/hrsignal/temporal-engine/pkg/ingest"
	"github.com/hrsignal/temporal-engine/pkg/metrics"
	"github.com/hrsignal/temporal-engine/pkg/query"
	"github.com/hrsignal/temporal-engine/pkg/service"
	"github.com/hrsignal/temporal-engine/pkg/temporal"
	"github.com/hrsignal/temporal-engine/pkg/tenancy"
	"github.com/hrsignal/temporal-engine/pkg/validator"
)

func main() {
	var (
		listenAddr   string
		databaseType string
		databaseDSN  string
		batchDir     string
	)

	flag.StringVar(&listenAddr, "listen", ":8080", "Address to listen on")
	flag.StringVar(&databaseType, "db-type", "sqlite", "Database type (sqlite, postgres, or mysql)")
	flag.StringVar(&databaseDSN, "db-dsn", "", "Database connection string")
	flag.StringVar(&batchDir, "batch-dir", "", "Directory of sync batch files (one subdirectory per source)")
	flag.Parse()

	if databaseDSN == "" {
		databaseDSN = os.Getenv("DATABASE_DSN")
	}
	if v := os.Getenv("DATABASE_TYPE"); databaseType == "sqlite" && v != "" {
		databaseType = v
	}
	if batchDir == "" {
		batchDir = os.Getenv("ENGINE_SYNC_BATCH_DIR")
	}
	if databaseDSN == "" && databaseType == db.TypeSQLite {
		databaseDSN = "engine.db"
	}

	// Set up structured logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting engine server",
		"listen", listenAddr,
		"dbType", databaseType,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	gormDB, err := db.Open(databaseType, databaseDSN)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	// Stores
	records := temporal.NewDBStore(gormDB, logger)
	subjects := directory.NewStore(gormDB)
	factStore := facts.NewStore(gormDB)
	auditStore := audit.NewStore(gormDB)
	syncStore := ingest.NewSyncStore(gormDB)
	history := metrics.NewHistoryStore(gormDB)
	for name, migrate := range map[string]func() error{
		"versioned_records": records.AutoMigrate,
		"subjects":          subjects.AutoMigrate,
		"daily_facts":       factStore.AutoMigrate,
		"audit_events":      auditStore.AutoMigrate,
		"sync_runs":         syncStore.AutoMigrate,
		"metrics_history":   history.AutoMigrate,
	} {
		if err := migrate(); err != nil {
			logger.Error("failed to migrate", "table", name, "error", err)
			os.Exit(1)
		}
	}

	// Engine components
	auditCfg := audit.ConfigFromEnv()
	var recorder *audit.Recorder
	if auditCfg.Enabled {
		recorder = audit.NewRecorder(auditStore, logger)
	}
	v := validator.New(subjects, records, factStore, recorder, logger)
	engine := query.NewEngine(records, query.ConfigFromEnv(), logger)
	v.SetInvalidator(engine)
	reporter := metrics.NewReporter(records, factStore, subjects, history, logger)

	// Background workers
	syncCfg := ingest.SyncConfigFromEnv()
	runner := ingest.NewRunner(v, logger)
	pool := ingest.NewWorkerPool(syncStore, runner, ingest.FileSourceLookup(batchDir), recorder, syncCfg, logger)
	go pool.Run(ctx)

	if auditCfg.Enabled {
		retention := audit.NewRetentionWorker(auditStore, auditCfg.RetentionDays, logger)
		go retention.Run(ctx)
	}

	svc := service.New(service.Config{
		Validator: v,
		Engine:    engine,
		Reporter:  reporter,
		History:   history,
		Subjects:  subjects,
		Facts:     factStore,
		AuditLog:  auditStore,
		Syncs:     syncStore,
		Tenancy:   tenancy.ConfigFromEnv(),
		Logger:    logger,
	})

	logger.Info("engine server ready", "listen", listenAddr)

	// Create HTTP server with graceful shutdown
	httpServer := &http.Server{
		Addr:    listenAddr,
		Handler: svc.Router(),
	}

	// Start HTTP server in goroutine
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	logger.Info("shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("engine server stopped")
}
