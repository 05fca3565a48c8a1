package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/codeready-toolchain/docproc/pkg/models"
)

// ReviewStore persists review queue items.
type ReviewStore struct {
	db Querier
}

const reviewColumns = `id, document_id, job_id, created_at, claimed_at, completed_at,
	sla_deadline, priority, status, assigned_to, reason, extraction_json, locked_fields`

// Create enqueues a pending review item. Priority is computed from the time
// remaining until the SLA deadline and fixed for the item's lifetime.
func (s *ReviewStore) Create(ctx context.Context, documentID, jobID, reason string, extraction, locked map[string]any, slaMinutes int) (*models.ReviewItem, error) {
	now := time.Now().UTC()
	deadline := now.Add(time.Duration(slaMinutes) * time.Minute)
	if extraction == nil {
		extraction = map[string]any{}
	}
	if locked == nil {
		locked = map[string]any{}
	}
	item := &models.ReviewItem{
		ID:             uuid.New().String(),
		DocumentID:     documentID,
		JobID:          jobID,
		CreatedAt:      now,
		SLADeadline:    deadline,
		Priority:       models.PriorityFor(deadline, now),
		Status:         models.ReviewPending,
		Reason:         reason,
		ExtractionJSON: extraction,
		LockedFields:   locked,
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO review_items (id, document_id, job_id, created_at, sla_deadline,
			priority, status, reason, extraction_json, locked_fields)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		item.ID, item.DocumentID, item.JobID, item.CreatedAt, item.SLADeadline,
		item.Priority, item.Status, item.Reason, item.ExtractionJSON, item.LockedFields,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert review item: %w", err)
	}
	return item, nil
}

// Get fetches a review item by id.
func (s *ReviewStore) Get(ctx context.Context, id string) (*models.ReviewItem, error) {
	row := s.db.QueryRow(ctx, `SELECT `+reviewColumns+` FROM review_items WHERE id = $1`, id)
	return scanReview(row)
}

// ClaimNext atomically claims the single highest-priority pending item
// (ties broken by earliest sla_deadline) for user. FOR UPDATE SKIP LOCKED
// makes concurrent claims at-most-once: callers racing on the same row skip
// it and take the next one. Returns nil when no pending items exist.
func (s *ReviewStore) ClaimNext(ctx context.Context, user string) (*models.ReviewItem, error) {
	row := s.db.QueryRow(ctx, `
		WITH next_item AS (
			SELECT id
			FROM review_items
			WHERE status = 'pending'
			ORDER BY priority DESC, sla_deadline ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE review_items
		SET status = 'claimed', assigned_to = $1, claimed_at = NOW()
		WHERE id IN (SELECT id FROM next_item)
		RETURNING `+reviewColumns,
		user,
	)
	item, err := scanReview(row)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return item, err
}

// ListPending returns pending items ordered by priority then deadline.
// When user is non-empty, that user's claimed items are included too.
func (s *ReviewStore) ListPending(ctx context.Context, limit, offset int, user string) ([]*models.ReviewItem, error) {
	query := `SELECT ` + reviewColumns + ` FROM review_items WHERE status = 'pending'`
	args := []any{limit, offset}
	if user != "" {
		query += ` OR (status = 'claimed' AND assigned_to = $3)`
		args = append(args, user)
	}
	query += ` ORDER BY priority DESC, sla_deadline ASC LIMIT $1 OFFSET $2`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list review items: %w", err)
	}
	defer rows.Close()

	var items []*models.ReviewItem
	for rows.Next() {
		item, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Complete marks the item completed for user, merging corrections into the
// item's locked_fields snapshot (caller-supplied keys override).
func (s *ReviewStore) Complete(ctx context.Context, item *models.ReviewItem, user string, corrections map[string]any) error {
	locked := item.LockedFields
	if locked == nil {
		locked = map[string]any{}
	}
	for k, v := range corrections {
		locked[k] = v
	}
	now := time.Now().UTC()
	_, err := s.db.Exec(ctx, `
		UPDATE review_items
		SET status = $2, assigned_to = $3, completed_at = $4, locked_fields = $5
		WHERE id = $1`,
		item.ID, models.ReviewCompleted, user, now, locked,
	)
	if err != nil {
		return fmt.Errorf("failed to complete review item: %w", err)
	}
	item.Status = models.ReviewCompleted
	item.AssignedTo = user
	item.CompletedAt = &now
	item.LockedFields = locked
	return nil
}

// Reject marks the item rejected for user, appending the reject reason to
// the reason tag when present.
func (s *ReviewStore) Reject(ctx context.Context, item *models.ReviewItem, user, rejectReason string) error {
	reason := item.Reason
	if rejectReason != "" {
		reason = fmt.Sprintf("%s | rejected_reason=%s", reason, rejectReason)
	}
	now := time.Now().UTC()
	_, err := s.db.Exec(ctx, `
		UPDATE review_items
		SET status = $2, assigned_to = $3, completed_at = $4, reason = $5
		WHERE id = $1`,
		item.ID, models.ReviewRejected, user, now, reason,
	)
	if err != nil {
		return fmt.Errorf("failed to reject review item: %w", err)
	}
	item.Status = models.ReviewRejected
	item.AssignedTo = user
	item.CompletedAt = &now
	item.Reason = reason
	return nil
}

// PendingCount returns the current queue depth.
func (s *ReviewStore) PendingCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM review_items WHERE status = 'pending'`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending items: %w", err)
	}
	return count, nil
}

// Stats computes the dashboard numbers over the trailing 24-hour window
// ending now: queue depth, reviews finished since local midnight, average
// claim-to-completion seconds, and on-deadline completion percentage
// (100.0 when the window is empty).
func (s *ReviewStore) Stats(ctx context.Context, now time.Time) (*models.ReviewStats, error) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	windowStart := now.Add(-24 * time.Hour)

	stats := &models.ReviewStats{}

	depth, err := s.PendingCount(ctx)
	if err != nil {
		return nil, err
	}
	stats.QueueDepth = depth

	err = s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM review_items
		WHERE status IN ('completed', 'rejected') AND completed_at >= $1`,
		midnight,
	).Scan(&stats.ReviewedToday)
	if err != nil {
		return nil, fmt.Errorf("failed to count reviews today: %w", err)
	}

	var avgSeconds *float64
	err = s.db.QueryRow(ctx, `
		SELECT AVG(EXTRACT(EPOCH FROM completed_at - claimed_at))
		FROM review_items
		WHERE status IN ('completed', 'rejected')
		  AND completed_at >= $1
		  AND claimed_at IS NOT NULL
		  AND completed_at IS NOT NULL`,
		windowStart,
	).Scan(&avgSeconds)
	if err != nil {
		return nil, fmt.Errorf("failed to average review time: %w", err)
	}
	if avgSeconds != nil {
		stats.AvgReviewTimeSeconds = *avgSeconds
	}

	var total, onTime int
	err = s.db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE completed_at <= sla_deadline)
		FROM review_items
		WHERE status IN ('completed', 'rejected') AND completed_at >= $1`,
		windowStart,
	).Scan(&total, &onTime)
	if err != nil {
		return nil, fmt.Errorf("failed to compute sla compliance: %w", err)
	}
	if total == 0 {
		stats.SLACompliancePct = 100.0
	} else {
		stats.SLACompliancePct = float64(onTime) / float64(total) * 100.0
	}

	return stats, nil
}

func scanReview(row pgx.Row) (*models.ReviewItem, error) {
	var (
		item       models.ReviewItem
		assignedTo *string
	)
	err := row.Scan(&item.ID, &item.DocumentID, &item.JobID, &item.CreatedAt,
		&item.ClaimedAt, &item.CompletedAt, &item.SLADeadline, &item.Priority,
		&item.Status, &assignedTo, &item.Reason, &item.ExtractionJSON, &item.LockedFields)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan review item: %w", err)
	}
	if assignedTo != nil {
		item.AssignedTo = *assignedTo
	}
	return &item, nil
}
