package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/docproc/pkg/models"
	"github.com/codeready-toolchain/docproc/pkg/store"
)

// ReviewService coordinates the human-review queue: claiming, submission
// with locked-field write-back, and dashboard stats.
type ReviewService struct {
	stores *store.Stores
}

// NewReviewService creates a review service.
func NewReviewService(stores *store.Stores) *ReviewService {
	if stores == nil {
		panic("stores is required")
	}
	return &ReviewService{stores: stores}
}

// ClaimNext claims the highest-priority pending item for user, or returns
// nil when the queue is empty (not an error).
func (s *ReviewService) ClaimNext(ctx context.Context, user string) (*models.ReviewItem, error) {
	if user == "" {
		return nil, NewValidationError("user", "user is required")
	}

	var item *models.ReviewItem
	err := s.stores.WithTx(ctx, func(tx *store.Stores) error {
		var err error
		item, err = tx.Reviews.ClaimNext(ctx, user)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to claim review item: %w", err)
	}
	if item != nil {
		slog.Info("Review item claimed", "review_item_id", item.ID, "user", user, "priority", item.Priority)
	}
	return item, nil
}

// List returns pending items (plus user's claimed items when user is set).
func (s *ReviewService) List(ctx context.Context, limit, offset int, user string) ([]*models.ReviewItem, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.stores.Reviews.ListPending(ctx, limit, offset, user)
}

// Submission is one reviewer decision.
type Submission struct {
	ReviewID     string
	Decision     string // approve, correct, or reject
	User         string
	Corrections  map[string]any
	RejectReason string
}

// Submit applies a reviewer decision. Approve/correct complete the item and
// propagate corrections into the Document's locked_fields (monotone merge);
// reject closes the item with the reject reason appended. Terminal items
// reject further submissions with ErrIllegalState. The whole submission is
// one transaction.
func (s *ReviewService) Submit(ctx context.Context, sub Submission) (*models.ReviewItem, error) {
	switch sub.Decision {
	case models.DecisionApprove, models.DecisionCorrect, models.DecisionReject:
	default:
		return nil, NewValidationError("decision", fmt.Sprintf("unknown decision %q", sub.Decision))
	}
	if sub.User == "" {
		return nil, NewValidationError("user", "user is required")
	}

	var item *models.ReviewItem
	err := s.stores.WithTx(ctx, func(tx *store.Stores) error {
		var err error
		item, err = tx.Reviews.Get(ctx, sub.ReviewID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("review %s: %w", sub.ReviewID, ErrNotFound)
			}
			return err
		}
		if item.Status.Terminal() {
			return fmt.Errorf("review %s is %s: %w", item.ID, item.Status, ErrIllegalState)
		}

		if sub.Decision == models.DecisionReject {
			if err := tx.Reviews.Reject(ctx, item, sub.User, sub.RejectReason); err != nil {
				return err
			}
			return tx.Audit.Append(ctx, item.DocumentID, sub.User, models.AuditReviewSubmitted,
				map[string]any{"decision": sub.Decision, "reason": sub.RejectReason}, item.JobID)
		}

		if err := tx.Reviews.Complete(ctx, item, sub.User, sub.Corrections); err != nil {
			return err
		}
		details := map[string]any{"decision": sub.Decision}
		if len(sub.Corrections) > 0 {
			if err := tx.Documents.MergeLockedFields(ctx, item.DocumentID, sub.Corrections); err != nil {
				return err
			}
			details["corrections"] = keys(sub.Corrections)
		}
		return tx.Audit.Append(ctx, item.DocumentID, sub.User, models.AuditReviewCompleted,
			details, item.JobID)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Review submitted",
		"review_item_id", item.ID, "decision", sub.Decision, "user", sub.User)
	return item, nil
}

// Stats returns the dashboard numbers for the trailing 24 hours.
func (s *ReviewService) Stats(ctx context.Context) (*models.ReviewStats, error) {
	return s.stores.Reviews.Stats(ctx, time.Now())
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
