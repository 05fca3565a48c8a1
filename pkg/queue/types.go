// Package queue provides the DB-backed task queue: worker pool, claim and
// heartbeat protocol, broker-level retry, and orphan recovery.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/codeready-toolchain/docproc/pkg/models"
)

// Sentinel errors for queue operations.
var (
	// ErrNoTasksAvailable indicates no due pending tasks are in the queue.
	ErrNoTasksAvailable = errors.New("no tasks available")

	// ErrAtCapacity indicates the global concurrent task limit has been reached.
	ErrAtCapacity = errors.New("at capacity")
)

// TaskExecutor runs one claimed task to a terminal result. The executor
// owns the whole workflow lifecycle and writes intermediate state (document
// and job status, artifacts, review items) progressively; the worker only
// handles claiming, heartbeat, retry bookkeeping, and task finalization.
type TaskExecutor interface {
	Execute(ctx context.Context, task *models.ProcessTask) *ExecutionResult
}

// ExecutionResult is the terminal state of one task attempt.
type ExecutionResult struct {
	Status models.Status // completed, review_pending, or failed
	Error  error         // set when Status is failed
}

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// PoolHealth contains health information for the entire worker pool.
type PoolHealth struct {
	IsHealthy       bool           `json:"is_healthy"`
	DBReachable     bool           `json:"db_reachable"`
	DBError         string         `json:"db_error,omitempty"`
	PodID           string         `json:"pod_id"`
	ActiveWorkers   int            `json:"active_workers"`
	TotalWorkers    int            `json:"total_workers"`
	ActiveTasks     int            `json:"active_tasks"`
	MaxConcurrent   int            `json:"max_concurrent"`
	QueueDepth      int            `json:"queue_depth"`
	WorkerStats     []WorkerHealth `json:"worker_stats"`
	LastOrphanScan  time.Time      `json:"last_orphan_scan"`
	OrphansRequeued int            `json:"orphans_requeued"`
}

// WorkerHealth contains health information for a single worker.
type WorkerHealth struct {
	ID             string       `json:"id"`
	Status         WorkerStatus `json:"status"`
	CurrentTaskID  string       `json:"current_task_id,omitempty"`
	TasksProcessed int          `json:"tasks_processed"`
	LastActivity   time.Time    `json:"last_activity"`
}
