package config

import (
	"fmt"
	"time"
)

// QueueConfig contains task queue and worker pool configuration.
// These values control how processing tasks are polled, claimed, and retried.
type QueueConfig struct {
	// WorkerCount is the number of worker goroutines per replica/pod.
	// Each worker independently polls and processes tasks.
	WorkerCount int `yaml:"worker_count"`

	// MaxConcurrentTasks is the global limit of tasks being processed
	// across ALL replicas/pods. Enforced by database COUNT(*) check.
	MaxConcurrentTasks int `yaml:"max_concurrent_tasks"`

	// PollInterval is the base interval for checking pending tasks.
	PollInterval time.Duration `yaml:"poll_interval"`

	// PollIntervalJitter is the random jitter added to PollInterval.
	// Actual interval: PollInterval ± PollIntervalJitter.
	PollIntervalJitter time.Duration `yaml:"poll_interval_jitter"`

	// TaskTimeout is the maximum time a single task attempt may run.
	TaskTimeout time.Duration `yaml:"task_timeout"`

	// GracefulShutdownTimeout is the max time to wait for active tasks
	// to complete during shutdown. Should match TaskTimeout.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`

	// HeartbeatInterval is how often a worker refreshes its claim.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// OrphanDetectionInterval is how often to scan for orphaned tasks.
	OrphanDetectionInterval time.Duration `yaml:"orphan_detection_interval"`

	// OrphanThreshold is how long a task can go without a heartbeat
	// before it is considered orphaned and requeued.
	OrphanThreshold time.Duration `yaml:"orphan_threshold"`

	// MaxTaskAttempts bounds broker-level retries of a whole task.
	// Distinct from per-step retries inside the workflow runner.
	MaxTaskAttempts int `yaml:"max_task_attempts"`

	// RetryBackoffBase is the base delay before re-running a failed task.
	// Attempt n is delayed RetryBackoffBase * 2^(n-1).
	RetryBackoffBase time.Duration `yaml:"retry_backoff_base"`
}

// DefaultQueueConfig returns the built-in queue defaults.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		WorkerCount:             5,
		MaxConcurrentTasks:      5,
		PollInterval:            1 * time.Second,
		PollIntervalJitter:      500 * time.Millisecond,
		TaskTimeout:             10 * time.Minute,
		GracefulShutdownTimeout: 10 * time.Minute,
		HeartbeatInterval:       30 * time.Second,
		OrphanDetectionInterval: 5 * time.Minute,
		OrphanThreshold:         5 * time.Minute,
		MaxTaskAttempts:         5,
		RetryBackoffBase:        30 * time.Second,
	}
}

func validateQueue(q *QueueConfig) error {
	if q == nil {
		return fmt.Errorf("queue configuration is nil")
	}
	if q.WorkerCount < 1 || q.WorkerCount > 50 {
		return fmt.Errorf("worker_count must be between 1 and 50, got %d", q.WorkerCount)
	}
	if q.MaxConcurrentTasks < 1 {
		return fmt.Errorf("max_concurrent_tasks must be at least 1, got %d", q.MaxConcurrentTasks)
	}
	if q.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", q.PollInterval)
	}
	if q.TaskTimeout <= 0 {
		return fmt.Errorf("task_timeout must be positive, got %v", q.TaskTimeout)
	}
	if q.HeartbeatInterval <= 0 || q.HeartbeatInterval >= q.OrphanThreshold {
		return fmt.Errorf("heartbeat_interval must be positive and below orphan_threshold")
	}
	if q.MaxTaskAttempts < 1 {
		return fmt.Errorf("max_task_attempts must be at least 1, got %d", q.MaxTaskAttempts)
	}
	if q.RetryBackoffBase <= 0 {
		return fmt.Errorf("retry_backoff_base must be positive, got %v", q.RetryBackoffBase)
	}
	return nil
}
