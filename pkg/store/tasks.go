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

// TaskStore persists broker tasks: the DB-backed handoff between intake and
// the worker pool.
type TaskStore struct {
	db Querier
}

const taskColumns = `id, job_id, document_id, content_type, payload, status, attempts,
	max_attempts, next_attempt_at, claimed_by, last_heartbeat_at, created_at, updated_at, error`

// Enqueue inserts a pending task carrying the uploaded bytes.
func (s *TaskStore) Enqueue(ctx context.Context, jobID, documentID, contentType string, payload []byte, maxAttempts int) (*models.ProcessTask, error) {
	now := time.Now().UTC()
	task := &models.ProcessTask{
		ID:            uuid.New().String(),
		JobID:         jobID,
		DocumentID:    documentID,
		ContentType:   contentType,
		Payload:       payload,
		Status:        models.TaskPending,
		MaxAttempts:   maxAttempts,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO process_tasks (id, job_id, document_id, content_type, payload,
			status, attempts, max_attempts, next_attempt_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $9, $9)`,
		task.ID, task.JobID, task.DocumentID, task.ContentType, task.Payload,
		task.Status, task.MaxAttempts, task.NextAttemptAt, task.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}
	return task, nil
}

// ClaimNext atomically claims the oldest due pending task for worker.
// FOR UPDATE SKIP LOCKED keeps concurrent workers from double-claiming.
// Returns nil when nothing is due.
func (s *TaskStore) ClaimNext(ctx context.Context, worker string) (*models.ProcessTask, error) {
	row := s.db.QueryRow(ctx, `
		WITH next_task AS (
			SELECT id
			FROM process_tasks
			WHERE status = 'pending' AND next_attempt_at <= NOW()
			ORDER BY created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE process_tasks
		SET status = 'claimed', claimed_by = $1, attempts = attempts + 1,
		    last_heartbeat_at = NOW(), updated_at = NOW()
		WHERE id IN (SELECT id FROM next_task)
		RETURNING `+taskColumns,
		worker,
	)
	task, err := scanTask(row)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return task, err
}

// Heartbeat refreshes the worker's claim on a task.
func (s *TaskStore) Heartbeat(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE process_tasks SET last_heartbeat_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to heartbeat task: %w", err)
	}
	return nil
}

// MarkCompleted finishes the task and drops its payload so uploaded bytes
// are not retained beyond processing.
func (s *TaskStore) MarkCompleted(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE process_tasks
		SET status = 'completed', payload = ''::bytea, updated_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to complete task: %w", err)
	}
	return nil
}

// Requeue puts a claimed task back to pending with the given delay, keeping
// its attempt count. Used for both failed attempts and orphan recovery.
func (s *TaskStore) Requeue(ctx context.Context, id string, delay time.Duration, errTag string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE process_tasks
		SET status = 'pending', claimed_by = NULL, last_heartbeat_at = NULL,
		    next_attempt_at = NOW() + make_interval(secs => $2), error = NULLIF($3, ''), updated_at = NOW()
		WHERE id = $1`,
		id, delay.Seconds(), errTag,
	)
	if err != nil {
		return fmt.Errorf("failed to requeue task: %w", err)
	}
	return nil
}

// MarkFailed finishes the task as failed after its attempts are exhausted,
// dropping the payload.
func (s *TaskStore) MarkFailed(ctx context.Context, id, errTag string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE process_tasks
		SET status = 'failed', payload = ''::bytea, error = NULLIF($2, ''), updated_at = NOW()
		WHERE id = $1`,
		id, errTag,
	)
	if err != nil {
		return fmt.Errorf("failed to mark task failed: %w", err)
	}
	return nil
}

// Stale returns claimed tasks whose heartbeat is older than threshold.
func (s *TaskStore) Stale(ctx context.Context, threshold time.Time) ([]*models.ProcessTask, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+taskColumns+` FROM process_tasks
		WHERE status = 'claimed' AND last_heartbeat_at < $1`,
		threshold,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

// ClaimedBy returns the tasks currently claimed by worker prefix (pod).
func (s *TaskStore) ClaimedBy(ctx context.Context, workerPrefix string) ([]*models.ProcessTask, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+taskColumns+` FROM process_tasks
		WHERE status = 'claimed' AND claimed_by LIKE $1 || '%'`,
		workerPrefix,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query claimed tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

// CountByStatus counts tasks in the given status.
func (s *TaskStore) CountByStatus(ctx context.Context, status models.TaskStatus) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM process_tasks WHERE status = $1`, status,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return count, nil
}

func collectTasks(rows pgx.Rows) ([]*models.ProcessTask, error) {
	var tasks []*models.ProcessTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func scanTask(row pgx.Row) (*models.ProcessTask, error) {
	var (
		t         models.ProcessTask
		claimedBy *string
		errTag    *string
	)
	err := row.Scan(&t.ID, &t.JobID, &t.DocumentID, &t.ContentType, &t.Payload,
		&t.Status, &t.Attempts, &t.MaxAttempts, &t.NextAttemptAt, &claimedBy,
		&t.LastHeartbeatAt, &t.CreatedAt, &t.UpdatedAt, &errTag)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}
	if claimedBy != nil {
		t.ClaimedBy = *claimedBy
	}
	if errTag != nil {
		t.Error = *errTag
	}
	return &t, nil
}
