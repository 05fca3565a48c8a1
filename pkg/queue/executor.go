package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/docproc/pkg/models"
	"github.com/codeready-toolchain/docproc/pkg/monitoring"
	"github.com/codeready-toolchain/docproc/pkg/store"
	"github.com/codeready-toolchain/docproc/pkg/workflow"
)

// WorkflowExecutor implements TaskExecutor by running the invoice workflow
// against a claimed task.
type WorkflowExecutor struct {
	stores *store.Stores
	runner *workflow.Runner
}

// NewWorkflowExecutor creates the executor.
func NewWorkflowExecutor(stores *store.Stores, runner *workflow.Runner) *WorkflowExecutor {
	return &WorkflowExecutor{stores: stores, runner: runner}
}

// Execute implements TaskExecutor. It marks the job and document as
// processing in their own transaction before the long-running steps, so
// GET /v1/jobs/{id} observes the transition; the terminal write happens in
// the persist step and is finalized here with completed_at.
func (e *WorkflowExecutor) Execute(ctx context.Context, task *models.ProcessTask) *ExecutionResult {
	log := slog.With("job_id", task.JobID, "document_id", task.DocumentID)

	err := e.stores.WithTx(ctx, func(tx *store.Stores) error {
		if err := tx.Jobs.MarkStarted(ctx, task.JobID); err != nil {
			return err
		}
		if err := tx.Documents.SetStatus(ctx, task.DocumentID, models.StatusProcessing); err != nil {
			return err
		}
		return tx.Audit.Append(ctx, task.DocumentID, models.ActorSystem, models.AuditProcessingStarted,
			map[string]any{"content_type": task.ContentType, "attempt": task.Attempts}, task.JobID)
	})
	if err != nil {
		return &ExecutionResult{Status: models.StatusFailed, Error: fmt.Errorf("marking processing started: %w", err)}
	}

	doc, err := e.stores.Documents.Get(ctx, task.DocumentID)
	if err != nil {
		return &ExecutionResult{Status: models.StatusFailed, Error: fmt.Errorf("loading document: %w", err)}
	}

	wf := workflow.NewContext(task.JobID, task.DocumentID, task.ContentType, task.Payload, doc.LockedFields)

	start := time.Now()
	err = e.runner.Run(ctx, wf)
	monitoring.DocProcessingSeconds.Observe(time.Since(start).Seconds())

	if err != nil {
		log.Error("Workflow failed", "error", err)
		return &ExecutionResult{Status: models.StatusFailed, Error: err}
	}

	status := models.StatusCompleted
	if wf.NeedsReview {
		status = models.StatusReviewPending
	}

	// The persist step already wrote the terminal status; stamp
	// completed_at on the job here, mirroring the intake/claim split.
	if err := e.stores.Jobs.MarkCompleted(ctx, task.JobID, status); err != nil {
		return &ExecutionResult{Status: models.StatusFailed, Error: fmt.Errorf("marking job completed: %w", err)}
	}

	monitoring.DocsProcessed.WithLabelValues(string(status)).Inc()
	log.Info("Workflow finished", "status", status, "needs_review", wf.NeedsReview)

	return &ExecutionResult{Status: status}
}

// shortErrorTag converts an execution error to the short machine-readable
// tag exposed via the API; stack traces and wrapped chains stay internal.
func shortErrorTag(err error) string {
	if err == nil {
		return ""
	}
	var stepErr *workflow.StepError
	if errors.As(err, &stepErr) {
		return "step_failed:" + stepErr.Step
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	return "processing_error"
}
