package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/codeready-toolchain/docproc/pkg/config"
	"github.com/codeready-toolchain/docproc/pkg/models"
	"github.com/codeready-toolchain/docproc/pkg/monitoring"
	"github.com/codeready-toolchain/docproc/pkg/store"
)

// Worker is a single queue worker that polls for and processes tasks.
type Worker struct {
	id       string
	podID    string
	stores   *store.Stores
	config   *config.QueueConfig
	executor TaskExecutor
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Health tracking
	mu             sync.RWMutex
	status         WorkerStatus
	currentTaskID  string
	tasksProcessed int
	lastActivity   time.Time
}

// NewWorker creates a new queue worker.
func NewWorker(id, podID string, stores *store.Stores, cfg *config.QueueConfig, executor TaskExecutor) *Worker {
	return &Worker{
		id:           id,
		podID:        podID,
		stores:       stores,
		config:       cfg,
		executor:     executor,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker polling loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for it to finish.
// It is safe to call Stop multiple times.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health returns the current worker health status.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:             w.id,
		Status:         w.status,
		CurrentTaskID:  w.currentTaskID,
		TasksProcessed: w.tasksProcessed,
		LastActivity:   w.lastActivity,
	}
}

// run is the main worker loop.
func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("worker_id", w.id, "pod_id", w.podID)
	log.Info("Worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("Worker shutting down")
			return
		case <-ctx.Done():
			log.Info("Context cancelled, worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, ErrNoTasksAvailable) || errors.Is(err, ErrAtCapacity) {
					w.sleep(w.pollInterval())
					continue
				}
				log.Error("Error processing task", "error", err)
				w.sleep(time.Second) // Brief backoff on error
			}
		}
	}
}

// sleep waits for the given duration or until stop is signalled.
func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// pollAndProcess checks capacity, claims a task, and processes it.
func (w *Worker) pollAndProcess(ctx context.Context) error {
	// 1. Check global capacity (best-effort; racy with concurrent workers
	//    but bounded by WorkerCount and mitigated by poll jitter).
	activeCount, err := w.stores.Tasks.CountByStatus(ctx, models.TaskClaimed)
	if err != nil {
		return fmt.Errorf("checking active tasks: %w", err)
	}
	if activeCount >= w.config.MaxConcurrentTasks {
		return ErrAtCapacity
	}

	// 2. Claim next due task
	task, err := w.stores.Tasks.ClaimNext(ctx, w.id)
	if err != nil {
		return err
	}
	if task == nil {
		return ErrNoTasksAvailable
	}

	log := slog.With("task_id", task.ID, "job_id", task.JobID, "worker_id", w.id)
	log.Info("Task claimed", "attempt", task.Attempts, "max_attempts", task.MaxAttempts)

	w.setStatus(WorkerStatusWorking, task.ID)
	defer w.setStatus(WorkerStatusIdle, "")

	// 3. Create task context with timeout
	taskCtx, cancelTask := context.WithTimeout(ctx, w.config.TaskTimeout)
	defer cancelTask()

	// 4. Start heartbeat
	heartbeatCtx, cancelHeartbeat := context.WithCancel(taskCtx)
	defer cancelHeartbeat()
	go w.runHeartbeat(heartbeatCtx, task.ID)

	// 5. Execute
	result := w.executor.Execute(taskCtx, task)
	if result == nil {
		result = &ExecutionResult{
			Status: models.StatusFailed,
			Error:  fmt.Errorf("executor returned nil result"),
		}
	}
	if result.Status == models.StatusFailed && result.Error == nil {
		result.Error = taskCtx.Err()
	}

	// 6. Stop heartbeat before finalizing
	cancelHeartbeat()

	// 7. Finalize (use background context — task ctx may be cancelled)
	if err := w.finalize(context.Background(), task, result); err != nil {
		log.Error("Failed to finalize task", "error", err)
		return err
	}

	w.mu.Lock()
	w.tasksProcessed++
	w.mu.Unlock()

	log.Info("Task processing complete", "status", result.Status)
	return nil
}

// finalize completes a successful task, or applies the broker retry policy
// to a failed one: requeue with exponential backoff while attempts remain,
// otherwise mark the task, job, and document failed.
func (w *Worker) finalize(ctx context.Context, task *models.ProcessTask, result *ExecutionResult) error {
	if result.Status != models.StatusFailed {
		return w.stores.Tasks.MarkCompleted(ctx, task.ID)
	}

	monitoring.ProcessingErrors.Inc()
	errTag := shortErrorTag(result.Error)

	if task.Attempts < task.MaxAttempts {
		delay := w.retryDelay(task.Attempts)
		slog.Warn("Task attempt failed, requeueing",
			"task_id", task.ID, "attempt", task.Attempts,
			"max_attempts", task.MaxAttempts, "delay", delay, "error", result.Error)

		return w.stores.WithTx(ctx, func(tx *store.Stores) error {
			if err := tx.Tasks.Requeue(ctx, task.ID, delay, errTag); err != nil {
				return err
			}
			// The next attempt starts the job fresh from queued.
			if err := tx.Jobs.SetStatus(ctx, task.JobID, models.StatusQueued, errTag); err != nil {
				return err
			}
			if err := tx.Documents.SetStatus(ctx, task.DocumentID, models.StatusQueued); err != nil {
				return err
			}
			return tx.Audit.Append(ctx, task.DocumentID, models.ActorSystem, models.AuditTaskRequeued,
				map[string]any{"attempt": task.Attempts, "error": errTag, "delay_seconds": delay.Seconds()}, task.JobID)
		})
	}

	slog.Error("Task attempts exhausted, failing job",
		"task_id", task.ID, "attempts", task.Attempts, "error", result.Error)

	err := w.stores.WithTx(ctx, func(tx *store.Stores) error {
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
	if err != nil {
		return err
	}
	monitoring.DocsProcessed.WithLabelValues(string(models.StatusFailed)).Inc()
	return nil
}

// retryDelay is the broker-level backoff: base * 2^(attempt-1).
func (w *Worker) retryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return w.config.RetryBackoffBase << uint(attempt-1)
}

// runHeartbeat periodically refreshes the claim for orphan detection.
func (w *Worker) runHeartbeat(ctx context.Context, taskID string) {
	ticker := time.NewTicker(w.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.stores.Tasks.Heartbeat(ctx, taskID); err != nil {
				slog.Warn("Heartbeat update failed", "task_id", taskID, "error", err)
			}
		}
	}
}

// pollInterval returns the poll duration with jitter.
func (w *Worker) pollInterval() time.Duration {
	base := w.config.PollInterval
	jitter := w.config.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	// Range: [base - jitter, base + jitter]
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

// setStatus updates the worker's health tracking state.
func (w *Worker) setStatus(status WorkerStatus, taskID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentTaskID = taskID
	w.lastActivity = time.Now()
}
