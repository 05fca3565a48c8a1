package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/codeready-toolchain/docproc/pkg/models"
)

// DocumentStore persists Document records.
type DocumentStore struct {
	db Querier
}

const documentColumns = `id, content_hash, status, received_at, updated_at, extraction_json, locked_fields`

// Create inserts a new document in the given status.
func (s *DocumentStore) Create(ctx context.Context, id string, status models.Status) (*models.Document, error) {
	now := time.Now().UTC()
	doc := &models.Document{
		ID:             id,
		ContentHash:    "pending",
		Status:         status,
		ReceivedAt:     now,
		UpdatedAt:      now,
		ExtractionJSON: map[string]any{},
		LockedFields:   map[string]any{},
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO documents (id, content_hash, status, received_at, updated_at, extraction_json, locked_fields)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		doc.ID, doc.ContentHash, doc.Status, doc.ReceivedAt, doc.UpdatedAt, doc.ExtractionJSON, doc.LockedFields,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert document: %w", err)
	}
	return doc, nil
}

// Get fetches a document by id.
func (s *DocumentStore) Get(ctx context.Context, id string) (*models.Document, error) {
	row := s.db.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	return scanDocument(row)
}

// SetStatus updates the document status.
func (s *DocumentStore) SetStatus(ctx context.Context, id string, status models.Status) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE documents SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return nil
}

// SetExtraction stores the last-successful extraction payload together with
// the content hash it was computed from.
func (s *DocumentStore) SetExtraction(ctx context.Context, id, contentHash string, extraction map[string]any) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE documents SET extraction_json = $2, content_hash = $3, updated_at = $4 WHERE id = $1`,
		id, extraction, contentHash, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update document extraction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return nil
}

// MergeLockedFields merges locked into the document's locked_fields.
// The merge is monotone: existing keys are kept, incoming keys override.
// Callers must run this inside a transaction (Stores.WithTx) so concurrent
// merges are serialized by row ordering; the row is locked for the merge.
func (s *DocumentStore) MergeLockedFields(ctx context.Context, id string, locked map[string]any) error {
	if len(locked) == 0 {
		return nil
	}
	row := s.db.QueryRow(ctx, `SELECT locked_fields FROM documents WHERE id = $1 FOR UPDATE`, id)
	var current map[string]any
	if err := row.Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("document %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("failed to read locked fields: %w", err)
	}
	if current == nil {
		current = map[string]any{}
	}
	for k, v := range locked {
		current[k] = v
	}
	_, err := s.db.Exec(ctx, `
		UPDATE documents SET locked_fields = $2, updated_at = $3 WHERE id = $1`,
		id, current, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to merge locked fields: %w", err)
	}
	return nil
}

func scanDocument(row pgx.Row) (*models.Document, error) {
	var d models.Document
	err := row.Scan(&d.ID, &d.ContentHash, &d.Status, &d.ReceivedAt, &d.UpdatedAt, &d.ExtractionJSON, &d.LockedFields)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}
	return &d, nil
}
