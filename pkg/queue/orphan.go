package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codeready-toolchain/docproc/pkg/config"
	"github.com/codeready-toolchain/docproc/pkg/models"
	"github.com/codeready-toolchain/docproc/pkg/store"
)

// orphanState tracks orphan detection metrics (thread-safe).
type orphanState struct {
	mu              sync.Mutex
	lastOrphanScan  time.Time
	orphansRequeued int
}

// runOrphanDetection periodically scans for orphaned tasks.
// All pods run this independently — operations are idempotent.
func (p *WorkerPool) runOrphanDetection(ctx context.Context) {
	ticker := time.NewTicker(p.config.OrphanDetectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			if err := p.detectAndRecoverOrphans(ctx); err != nil {
				slog.Error("Orphan detection failed", "error", err)
			}
		}
	}
}

// detectAndRecoverOrphans finds claimed tasks with stale heartbeats and
// puts them back through the broker retry policy. Unlike a terminal
// timeout, the queue is ack-late: a crashed worker's task is redelivered
// until its attempts are exhausted.
func (p *WorkerPool) detectAndRecoverOrphans(ctx context.Context) error {
	threshold := time.Now().Add(-p.config.OrphanThreshold)

	orphans, err := p.stores.Tasks.Stale(ctx, threshold)
	if err != nil {
		return fmt.Errorf("failed to query orphaned tasks: %w", err)
	}

	if len(orphans) == 0 {
		p.orphans.mu.Lock()
		p.orphans.lastOrphanScan = time.Now()
		p.orphans.mu.Unlock()
		return nil
	}

	slog.Warn("Detected orphaned tasks", "count", len(orphans))

	requeued := 0
	failed := 0
	for _, task := range orphans {
		if err := recoverOrphanedTask(ctx, p.stores, p.config, task); err != nil {
			slog.Error("Failed to recover orphaned task", "task_id", task.ID, "error", err)
			failed++
			continue
		}
		requeued++
	}

	p.orphans.mu.Lock()
	p.orphans.lastOrphanScan = time.Now()
	p.orphans.orphansRequeued += requeued
	p.orphans.mu.Unlock()

	if failed > 0 {
		slog.Warn("Orphan recovery completed with failures",
			"total_orphans", len(orphans), "requeued", requeued, "failed", failed)
	}

	return nil
}

// CleanupStartupOrphans performs a one-time recovery of tasks claimed by
// this pod's workers before a previous crash. Called once during startup,
// before the worker pool begins processing.
func CleanupStartupOrphans(ctx context.Context, stores *store.Stores, cfg *config.QueueConfig, podID string) error {
	orphans, err := stores.Tasks.ClaimedBy(ctx, podID)
	if err != nil {
		return fmt.Errorf("failed to query startup orphans: %w", err)
	}

	if len(orphans) == 0 {
		return nil
	}

	slog.Warn("Found startup orphans from previous run", "pod_id", podID, "count", len(orphans))

	for _, task := range orphans {
		if err := recoverOrphanedTask(ctx, stores, cfg, task); err != nil {
			slog.Error("Failed to recover startup orphan", "task_id", task.ID, "error", err)
			continue
		}
		slog.Info("Startup orphan recovered", "task_id", task.ID)
	}

	return nil
}

// recoverOrphanedTask applies the broker retry policy to a task whose
// worker disappeared: requeue with backoff while attempts remain,
// otherwise fail the task together with its job and document.
func recoverOrphanedTask(ctx context.Context, stores *store.Stores, cfg *config.QueueConfig, task *models.ProcessTask) error {
	const errTag = "worker_lost"

	if task.Attempts < task.MaxAttempts {
		delay := cfg.RetryBackoffBase
		if task.Attempts > 1 {
			delay = cfg.RetryBackoffBase << uint(task.Attempts-1)
		}
		return stores.WithTx(ctx, func(tx *store.Stores) error {
			if err := tx.Tasks.Requeue(ctx, task.ID, delay, errTag); err != nil {
				return err
			}
			if err := tx.Jobs.SetStatus(ctx, task.JobID, models.StatusQueued, errTag); err != nil {
				return err
			}
			if err := tx.Documents.SetStatus(ctx, task.DocumentID, models.StatusQueued); err != nil {
				return err
			}
			return tx.Audit.Append(ctx, task.DocumentID, models.ActorSystem, models.AuditTaskRequeued,
				map[string]any{"attempt": task.Attempts, "error": errTag}, task.JobID)
		})
	}

	return stores.WithTx(ctx, func(tx *store.Stores) error {
		if err := tx.Tasks.MarkFailed(ctx, task.ID, errTag); err != nil {
			return err
		}
		if err := tx.Jobs.SetStatus(ctx, task.JobID, models.StatusFailed, errTag); err != nil {
			return err
		}
		if err := tx.Jobs.MarkCompleted(ctx, task.JobID, models.StatusFailed); err != nil {
			return err
		}
		if err := tx.Documents.SetStatus(ctx, task.DocumentID, models.StatusFailed); err != nil {
			return err
		}
		return tx.Audit.Append(ctx, task.DocumentID, models.ActorSystem, models.AuditProcessingFailed,
			map[string]any{"error": errTag, "attempts": task.Attempts}, task.JobID)
	})
}
