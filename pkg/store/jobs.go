package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/codeready-toolchain/docproc/pkg/models"
)

// JobStore persists Job records.
type JobStore struct {
	db Querier
}

const jobColumns = `id, document_id, status, created_at, updated_at, started_at, completed_at, outputs, error, review_item_id`

// Create inserts a new queued job for a document.
func (s *JobStore) Create(ctx context.Context, id, documentID string) (*models.Job, error) {
	now := time.Now().UTC()
	job := &models.Job{
		ID:         id,
		DocumentID: documentID,
		Status:     models.StatusQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
		Outputs:    map[string]string{},
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO jobs (id, document_id, status, created_at, updated_at, outputs)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		job.ID, job.DocumentID, job.Status, job.CreatedAt, job.UpdatedAt, job.Outputs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert job: %w", err)
	}
	return job, nil
}

// Get fetches a job by id.
func (s *JobStore) Get(ctx context.Context, id string) (*models.Job, error) {
	row := s.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	return scanJob(row)
}

// MarkStarted transitions the job to processing and stamps started_at.
func (s *JobStore) MarkStarted(ctx context.Context, id string) error {
	now := time.Now().UTC()
	tag, err := s.db.Exec(ctx, `
		UPDATE jobs SET status = $2, started_at = $3, updated_at = $3 WHERE id = $1`,
		id, models.StatusProcessing, now,
	)
	if err != nil {
		return fmt.Errorf("failed to mark job started: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return nil
}

// MarkCompleted writes a terminal status and stamps completed_at.
func (s *JobStore) MarkCompleted(ctx context.Context, id string, status models.Status) error {
	now := time.Now().UTC()
	tag, err := s.db.Exec(ctx, `
		UPDATE jobs SET status = $2, completed_at = $3, updated_at = $3 WHERE id = $1`,
		id, status, now,
	)
	if err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return nil
}

// SetStatus updates the status and error tag without touching timestamps
// other than updated_at.
func (s *JobStore) SetStatus(ctx context.Context, id string, status models.Status, errTag string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE jobs SET status = $2, error = NULLIF($3, ''), updated_at = $4 WHERE id = $1`,
		id, status, errTag, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to set job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return nil
}

// SetOutputs stores the artifact paths produced by the workflow.
func (s *JobStore) SetOutputs(ctx context.Context, id string, outputs map[string]string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE jobs SET outputs = $2, updated_at = $3 WHERE id = $1`,
		id, outputs, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to set job outputs: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return nil
}

// SetReviewItem links the job to its review item (bidirectional with
// review_items.job_id).
func (s *JobStore) SetReviewItem(ctx context.Context, id, reviewItemID string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE jobs SET review_item_id = $2, updated_at = $3 WHERE id = $1`,
		id, reviewItemID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to link review item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return nil
}

// CompletedSince returns the full rows of jobs whose completed_at falls in
// the window, for SLA latency computations.
func (s *JobStore) CompletedSince(ctx context.Context, since time.Time) ([]*models.Job, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE completed_at IS NOT NULL AND completed_at >= $1`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query completed jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// CountByStatusSince counts jobs with completed_at in the window per status.
func (s *JobStore) CountByStatusSince(ctx context.Context, since time.Time, statuses ...models.Status) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM jobs
		WHERE completed_at IS NOT NULL AND completed_at >= $1 AND status = ANY($2)`,
		since, statusStrings(statuses),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return count, nil
}

func statusStrings(statuses []models.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func scanJob(row pgx.Row) (*models.Job, error) {
	var (
		j      models.Job
		errTag *string
	)
	err := row.Scan(&j.ID, &j.DocumentID, &j.Status, &j.CreatedAt, &j.UpdatedAt,
		&j.StartedAt, &j.CompletedAt, &j.Outputs, &errTag, &j.ReviewItemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}
	if errTag != nil {
		j.Error = *errTag
	}
	if j.Outputs == nil {
		j.Outputs = map[string]string{}
	}
	return &j, nil
}
