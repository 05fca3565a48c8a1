// Package models defines the domain records shared by the store, services,
// queue, and API layers.
package models

import "time"

// Status is the shared lifecycle vocabulary of Documents and Jobs.
type Status string

// Document and Job statuses. A Document mirrors the status of its latest
// Job ("latest job wins").
const (
	StatusQueued        Status = "queued"
	StatusProcessing    Status = "processing"
	StatusCompleted     Status = "completed"
	StatusReviewPending Status = "review_pending"
	StatusFailed        Status = "failed"
)

// Terminal reports whether s is a terminal processing status.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusReviewPending, StatusFailed:
		return true
	}
	return false
}

// Document is the canonical record for a piece of content. Original file
// bytes are not retained beyond processing.
type Document struct {
	ID             string         `json:"id"`
	ContentHash    string         `json:"content_hash"`
	Status         Status         `json:"status"`
	ReceivedAt     time.Time      `json:"received_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	ExtractionJSON map[string]any `json:"extraction_json"`
	// LockedFields pins values set by human reviewers. The key set is
	// monotone: keys are never removed, values only overwritten by a
	// later completed review.
	LockedFields map[string]any `json:"locked_fields"`
}
