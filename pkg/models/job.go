package models

import "time"

// Job is one processing run of a Document. Step retries stay inside a Job.
// A broker-level retry requeues the same Job row (reset to queued); no new
// Job is created for it.
type Job struct {
	ID           string            `json:"id"`
	DocumentID   string            `json:"document_id"`
	Status       Status            `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	StartedAt    *time.Time        `json:"started_at,omitempty"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
	Outputs      map[string]string `json:"outputs"`
	Error        string            `json:"error,omitempty"`
	ReviewItemID *string           `json:"review_item_id,omitempty"`
}
