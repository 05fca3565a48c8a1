// Package services implements the application services between the HTTP
// layer and the stores.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/docproc/pkg/models"
	"github.com/codeready-toolchain/docproc/pkg/store"
)

// IntakeService accepts uploads: it creates the Document and Job records
// and enqueues the broker task the worker pool will pick up. The handoff is
// fire-and-forget from the caller's perspective.
type IntakeService struct {
	stores      *store.Stores
	maxAttempts int
}

// NewIntakeService creates an intake service. maxAttempts bounds
// broker-level retries of the whole task.
func NewIntakeService(stores *store.Stores, maxAttempts int) *IntakeService {
	if stores == nil {
		panic("stores is required")
	}
	return &IntakeService{stores: stores, maxAttempts: maxAttempts}
}

// IntakeResult identifies the created records.
type IntakeResult struct {
	JobID      string
	DocumentID string
}

// Accept registers one uploaded file and schedules its processing. The
// document, job, audit entry, and task are created in a single transaction
// so a crash can never leave a job without its task.
func (s *IntakeService) Accept(ctx context.Context, filename, contentType string, fileBytes []byte) (*IntakeResult, error) {
	if len(fileBytes) == 0 {
		return nil, NewValidationError("file", "empty file")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	documentID := uuid.New().String()
	jobID := uuid.New().String()

	err := s.stores.WithTx(ctx, func(tx *store.Stores) error {
		if _, err := tx.Documents.Create(ctx, documentID, models.StatusQueued); err != nil {
			return err
		}
		if _, err := tx.Jobs.Create(ctx, jobID, documentID); err != nil {
			return err
		}
		if err := tx.Audit.Append(ctx, documentID, models.ActorSystem, models.AuditReceived,
			map[string]any{"filename": filename, "content_type": contentType}, jobID); err != nil {
			return err
		}
		if _, err := tx.Tasks.Enqueue(ctx, jobID, documentID, contentType, fileBytes, s.maxAttempts); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to accept document: %w", err)
	}

	slog.Info("Document accepted",
		"document_id", documentID, "job_id", jobID,
		"content_type", contentType, "bytes", len(fileBytes))

	return &IntakeResult{JobID: jobID, DocumentID: documentID}, nil
}
