package api

import (
	"time"

	"github.com/codeready-toolchain/docproc/pkg/database"
	"github.com/codeready-toolchain/docproc/pkg/models"
	"github.com/codeready-toolchain/docproc/pkg/queue"
)

// ProcessResponse is the body of POST /v1/process.
type ProcessResponse struct {
	JobID      string `json:"job_id"`
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
}

// JobStatusResponse is the body of GET /v1/jobs/:id.
type JobStatusResponse struct {
	JobID        string            `json:"job_id"`
	DocumentID   string            `json:"document_id"`
	Status       string            `json:"status"`
	Error        string            `json:"error,omitempty"`
	Outputs      map[string]string `json:"outputs"`
	ReviewItemID *string           `json:"review_item_id,omitempty"`
	Extraction   map[string]any    `json:"extraction,omitempty"`
}

// ReviewItemResponse is one queue item in list and claim responses.
type ReviewItemResponse struct {
	ID          string         `json:"id"`
	DocumentID  string         `json:"document_id"`
	JobID       string         `json:"job_id"`
	CreatedAt   time.Time      `json:"created_at"`
	SLADeadline time.Time      `json:"sla_deadline"`
	Priority    int            `json:"priority"`
	Status      string         `json:"status"`
	AssignedTo  string         `json:"assigned_to,omitempty"`
	Reason      string         `json:"reason"`
	Extraction  map[string]any `json:"extraction"`
	Locked      map[string]any `json:"locked_fields"`
}

func reviewItemResponse(item *models.ReviewItem) *ReviewItemResponse {
	return &ReviewItemResponse{
		ID:          item.ID,
		DocumentID:  item.DocumentID,
		JobID:       item.JobID,
		CreatedAt:   item.CreatedAt,
		SLADeadline: item.SLADeadline,
		Priority:    item.Priority,
		Status:      string(item.Status),
		AssignedTo:  item.AssignedTo,
		Reason:      item.Reason,
		Extraction:  item.ExtractionJSON,
		Locked:      item.LockedFields,
	}
}

// ListQueueResponse is the body of GET /v1/queue.
type ListQueueResponse struct {
	Items []*ReviewItemResponse `json:"items"`
}

// ClaimResponse is the body of POST /v1/queue/claim. ReviewItem is null
// when the queue has no pending items.
type ClaimResponse struct {
	ReviewItem *ReviewItemResponse `json:"review_item"`
}

// SubmitResponse is the body of POST /v1/queue/:id/submit.
type SubmitResponse struct {
	OK           bool           `json:"ok"`
	ReviewItemID string         `json:"review_item_id"`
	DocumentID   string         `json:"document_id"`
	JobID        string         `json:"job_id"`
	Status       string         `json:"status"`
	LockedFields map[string]any `json:"locked_fields"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string                `json:"status"`
	Version  string                `json:"version,omitempty"`
	Database database.HealthStatus `json:"database"`
	Pool     *queue.PoolHealth     `json:"worker_pool,omitempty"`
}
