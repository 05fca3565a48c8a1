package steps

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/docproc/pkg/models"
	"github.com/codeready-toolchain/docproc/pkg/store"
	"github.com/codeready-toolchain/docproc/pkg/workflow"
)

// PersistStep writes the run's outcome to the database in one transaction:
// the document's extraction payload and status, the job's status and
// artifact paths, and a "persisted" audit entry.
type PersistStep struct {
	stores *store.Stores
}

// Run implements workflow.Handler.
func (s *PersistStep) Run(ctx context.Context, wf *workflow.Context, opts workflow.Options) error {
	status := models.StatusCompleted
	if wf.NeedsReview {
		status = models.StatusReviewPending
	}

	contentHash, _ := wf.ExtractionPayload["content_hash"].(string)
	if contentHash == "" {
		return workflow.Fatalf("extraction payload missing content_hash")
	}

	err := s.stores.WithTx(ctx, func(tx *store.Stores) error {
		if err := tx.Documents.SetExtraction(ctx, wf.DocumentID, contentHash, wf.ExtractionPayload); err != nil {
			return err
		}
		if err := tx.Documents.SetStatus(ctx, wf.DocumentID, status); err != nil {
			return err
		}
		if err := tx.Jobs.SetStatus(ctx, wf.JobID, status, ""); err != nil {
			return err
		}
		if err := tx.Jobs.SetOutputs(ctx, wf.JobID, wf.Outputs); err != nil {
			return err
		}
		return tx.Audit.Append(ctx, wf.DocumentID, models.ActorSystem, models.AuditPersisted,
			map[string]any{"status": string(status), "outputs": wf.Outputs}, wf.JobID)
	})
	if err != nil {
		return fmt.Errorf("persisting run outcome: %w", err)
	}
	return nil
}
