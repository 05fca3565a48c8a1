package steps

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codeready-toolchain/docproc/pkg/config"
	"github.com/codeready-toolchain/docproc/pkg/extraction"
	"github.com/codeready-toolchain/docproc/pkg/models"
	"github.com/codeready-toolchain/docproc/pkg/store"
	"github.com/codeready-toolchain/docproc/pkg/workflow"
)

// ReviewGateStep enqueues a review item when validation flagged the run.
// The reason tag is classified from the validation errors so the dashboard
// can distinguish schema failures from low-confidence escalations.
type ReviewGateStep struct {
	stores *store.Stores
	review *config.ReviewConfig
}

// Run implements workflow.Handler.
func (s *ReviewGateStep) Run(ctx context.Context, wf *workflow.Context, opts workflow.Options) error {
	if !wf.NeedsReview {
		return nil
	}

	reason := extraction.ClassifyReviewReason(wf.ValidationErrors)
	slaMinutes := s.review.SLAMinutes
	if m := opts.Int("sla_minutes", 0); m > 0 {
		slaMinutes = m
	}

	var item *models.ReviewItem
	err := s.stores.WithTx(ctx, func(tx *store.Stores) error {
		var err error
		item, err = tx.Reviews.Create(ctx, wf.DocumentID, wf.JobID, reason,
			wf.ExtractionPayload, wf.LockedFields, slaMinutes)
		if err != nil {
			return err
		}
		if err := tx.Jobs.SetReviewItem(ctx, wf.JobID, item.ID); err != nil {
			return err
		}
		return tx.Audit.Append(ctx, wf.DocumentID, models.ActorSystem, models.AuditReviewEnqueued,
			map[string]any{"review_item_id": item.ID, "reason": reason}, wf.JobID)
	})
	if err != nil {
		return fmt.Errorf("enqueueing review item: %w", err)
	}

	slog.Info("Review item enqueued",
		"document_id", wf.DocumentID, "job_id", wf.JobID,
		"review_item_id", item.ID, "reason", reason, "priority", item.Priority)
	return nil
}
