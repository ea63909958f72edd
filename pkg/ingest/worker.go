package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hrsignal/temporal-engine/pkg/audit"
)

// WorkerPool processes queued sync runs using a pool of goroutines. Each
// claimed run fetches one batch from its source and applies it through the
// runner.
type WorkerPool struct {
	store        *SyncStore
	runner       *Runner
	sourceLookup SourceLookup
	recorder     *audit.Recorder
	cfg          *SyncConfig
	logger       *slog.Logger
	wg           sync.WaitGroup
}

// NewWorkerPool creates a new worker pool. recorder may be nil.
func NewWorkerPool(store *SyncStore, runner *Runner, sourceLookup SourceLookup, recorder *audit.Recorder, cfg *SyncConfig, logger *slog.Logger) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool{
		store:        store,
		runner:       runner,
		sourceLookup: sourceLookup,
		recorder:     recorder,
		cfg:          cfg,
		logger:       logger,
	}
}

// Run starts the worker pool. It spawns cfg.Concurrency goroutines, each
// polling for runs. It blocks until the context is cancelled, then waits for
// all workers to finish.
func (wp *WorkerPool) Run(ctx context.Context) {
	if wp.store == nil || !wp.cfg.Enabled {
		wp.logger.Info("sync worker pool disabled")
		return
	}

	wp.logger.Info("sync worker pool starting",
		"concurrency", wp.cfg.Concurrency,
		"maxRetries", wp.cfg.MaxRetries,
		"pollInterval", wp.cfg.PollInterval.String())

	// Start stuck run cleanup goroutine.
	wp.wg.Add(1)
	go func() {
		defer wp.wg.Done()
		wp.cleanupLoop(ctx)
	}()

	// Start worker goroutines.
	for i := 0; i < wp.cfg.Concurrency; i++ {
		wp.wg.Add(1)
		go func(workerID int) {
			defer wp.wg.Done()
			wp.workerLoop(ctx, workerID)
		}(i)
	}

	<-ctx.Done()
	wp.logger.Info("sync worker pool shutting down, waiting for workers to finish")
	wp.wg.Wait()
	wp.logger.Info("sync worker pool stopped")
}

// workerLoop is the main loop for a single worker goroutine.
func (wp *WorkerPool) workerLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(wp.cfg.PollInterval)
	defer ticker.Stop()

	wp.logger.Info("sync worker started", "workerID", workerID)

	for {
		select {
		case <-ctx.Done():
			wp.logger.Info("sync worker stopped", "workerID", workerID)
			return
		case <-ticker.C:
			wp.ProcessOne(ctx, workerID)
		}
	}
}

// ProcessOne tries to claim and process a single run.
func (wp *WorkerPool) ProcessOne(ctx context.Context, workerID int) {
	run, err := wp.store.Claim(wp.cfg.MaxRetries)
	if err != nil {
		wp.logger.Error("failed to claim run", "workerID", workerID, "error", err)
		return
	}
	if run == nil {
		return // No runs available.
	}

	wp.logger.Info("processing sync run",
		"workerID", workerID,
		"runID", run.ID,
		"tenant", run.Tenant,
		"source", run.Source,
		"attempt", run.AttemptCount)

	source, ok := wp.sourceLookup(run.Source)
	if !ok {
		errMsg := "unknown sync source: " + run.Source
		wp.logger.Error(errMsg, "runID", run.ID)
		wp.fail(run, errMsg)
		return
	}

	started := time.Now()
	batch, err := source.Fetch(ctx, run.Tenant)
	if err != nil {
		wp.logger.Error("sync fetch failed",
			"workerID", workerID,
			"runID", run.ID,
			"error", err)
		wp.fail(run, err.Error())
		return
	}

	result, err := wp.runner.Apply(batch)
	if err != nil {
		wp.logger.Error("sync apply failed",
			"workerID", workerID,
			"runID", run.ID,
			"error", err)
		wp.fail(run, err.Error())
		return
	}

	duration := time.Since(started)
	wp.logger.Info("sync run completed",
		"workerID", workerID,
		"runID", run.ID,
		"recordsApplied", result.RecordsApplied,
		"recordsFailed", len(result.RecordFailures),
		"factsApplied", result.FactsApplied,
		"factsFailed", len(result.FactFailures),
		"duration", duration.String())

	if err := wp.store.Complete(run.ID, *result, duration.Milliseconds()); err != nil {
		wp.logger.Error("failed to mark run as complete", "runID", run.ID, "error", err)
	}

	wp.recorder.Record(audit.EventRecord{
		Tenant:    run.Tenant,
		EventType: audit.EventSyncCompleted,
		Details: audit.JSONDetails{
			"runId":          run.ID,
			"source":         run.Source,
			"recordsApplied": result.RecordsApplied,
			"recordsFailed":  len(result.RecordFailures),
			"factsApplied":   result.FactsApplied,
			"factsFailed":    len(result.FactFailures),
		},
	})
}

func (wp *WorkerPool) fail(run *SyncRun, errMsg string) {
	if err := wp.store.Fail(run.ID, errMsg, wp.cfg.MaxRetries); err != nil {
		wp.logger.Error("failed to mark run as failed", "runID", run.ID, "error", err)
	}
	wp.recorder.Record(audit.EventRecord{
		Tenant:    run.Tenant,
		EventType: audit.EventSyncFailed,
		Details: audit.JSONDetails{
			"runId":  run.ID,
			"source": run.Source,
			"error":  errMsg,
		},
	})
}

// cleanupLoop periodically recovers stuck runs and deletes old terminal runs.
func (wp *WorkerPool) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if wp.cfg.ClaimTimeout > 0 {
				recovered, err := wp.store.CleanupStuckRuns(wp.cfg.ClaimTimeout)
				if err != nil {
					wp.logger.Error("failed to cleanup stuck runs", "error", err)
				} else if recovered > 0 {
					wp.logger.Info("recovered stuck runs", "count", recovered)
				}
			}

			if wp.cfg.RetentionDays > 0 {
				cutoff := time.Now().AddDate(0, 0, -wp.cfg.RetentionDays)
				deleted, err := wp.store.DeleteOlderThan(cutoff)
				if err != nil {
					wp.logger.Error("failed to delete old runs", "error", err)
				} else if deleted > 0 {
					wp.logger.Info("deleted old runs", "count", deleted)
				}
			}
		}
	}
}
