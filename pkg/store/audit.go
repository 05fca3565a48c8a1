package store

import (
	"context"
	"fmt"
	"time"

	"github.com/codeready-toolchain/docproc/pkg/models"
)

// AuditStore appends to the audit trail. Entries are append-only; nothing
// here mutates past rows.
type AuditStore struct {
	db Querier
}

// Append records one event for a document. jobID may be empty.
func (s *AuditStore) Append(ctx context.Context, documentID, actor, action string, details map[string]any, jobID string) error {
	if details == nil {
		details = map[string]any{}
	}
	var job *string
	if jobID != "" {
		job = &jobID
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO audit_logs (document_id, job_id, at, actor, action, details)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		documentID, job, time.Now().UTC(), actor, action, details,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// ForDocument lists a document's audit trail in chronological order.
func (s *AuditStore) ForDocument(ctx context.Context, documentID string) ([]*models.AuditEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, document_id, job_id, at, actor, action, details
		FROM audit_logs WHERE document_id = $1 ORDER BY at ASC, id ASC`,
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit trail: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.JobID, &e.At, &e.Actor, &e.Action, &e.Details); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
