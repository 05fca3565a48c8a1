// Package store implements the PostgreSQL repositories for documents, jobs,
// review items, audit entries, and broker tasks.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the query surface shared by *pgxpool.Pool and pgx.Tx, so every
// store method works both standalone and inside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Stores bundles all repositories over one query surface.
type Stores struct {
	db   Querier
	pool *pgxpool.Pool // nil when the bundle is transaction-scoped

	Documents *DocumentStore
	Jobs      *JobStore
	Reviews   *ReviewStore
	Audit     *AuditStore
	Tasks     *TaskStore
}

// New creates the store bundle over a connection pool.
func New(pool *pgxpool.Pool) *Stores {
	s := newOver(pool)
	s.pool = pool
	return s
}

func newOver(db Querier) *Stores {
	return &Stores{
		db:        db,
		Documents: &DocumentStore{db: db},
		Jobs:      &JobStore{db: db},
		Reviews:   &ReviewStore{db: db},
		Audit:     &AuditStore{db: db},
		Tasks:     &TaskStore{db: db},
	}
}

// WithTx runs fn with a transaction-scoped store bundle, committing on nil
// and rolling back on error. Monotone locked-field merges and the
// persist/review-gate writes must go through here.
func (s *Stores) WithTx(ctx context.Context, fn func(tx *Stores) error) error {
	if s.pool == nil {
		// Already inside a transaction; just reuse it.
		return fn(s)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(newOver(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
