package models

import "time"

// TaskStatus is the lifecycle of a broker task.
type TaskStatus string

// Task states. A pending task becomes visible to workers once
// next_attempt_at has passed.
const (
	TaskPending   TaskStatus = "pending"
	TaskClaimed   TaskStatus = "claimed"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// ProcessTask is one unit of worker handoff: process this document under
// this job. Payload carries the uploaded bytes; they are cleared when the
// task completes or fails and never stored elsewhere.
type ProcessTask struct {
	ID              string     `json:"id"`
	JobID           string     `json:"job_id"`
	DocumentID      string     `json:"document_id"`
	ContentType     string     `json:"content_type"`
	Payload         []byte     `json:"-"`
	Status          TaskStatus `json:"status"`
	Attempts        int        `json:"attempts"`
	MaxAttempts     int        `json:"max_attempts"`
	NextAttemptAt   time.Time  `json:"next_attempt_at"`
	ClaimedBy       string     `json:"claimed_by,omitempty"`
	LastHeartbeatAt *time.Time `json:"last_heartbeat_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Error           string     `json:"error,omitempty"`
}
