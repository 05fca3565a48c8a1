package queue

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/docproc/pkg/config"
	"github.com/codeready-toolchain/docproc/pkg/extraction"
	"github.com/codeready-toolchain/docproc/pkg/models"
	"github.com/codeready-toolchain/docproc/pkg/output"
	"github.com/codeready-toolchain/docproc/pkg/services"
	"github.com/codeready-toolchain/docproc/pkg/store"
	"github.com/codeready-toolchain/docproc/pkg/workflow"
	"github.com/codeready-toolchain/docproc/pkg/workflow/steps"
	"github.com/codeready-toolchain/docproc/test/util"
)

type stubText struct {
	text string
	err  error
}

func (s *stubText) ExtractText(ctx context.Context, fileBytes []byte, contentType string) (string, error) {
	return s.text, s.err
}

type stubStructured struct {
	result *extraction.Result
}

func (s *stubStructured) Extract(ctx context.Context, text string) (*extraction.Result, error) {
	if s.result == nil {
		return extraction.NullResult(), nil
	}
	return s.result, nil
}

type harness struct {
	stores   *store.Stores
	executor *WorkflowExecutor
	cfg      *config.Config
}

func newHarness(t *testing.T, text extraction.TextExtractor, structured extraction.StructuredExtractor) *harness {
	t.Helper()

	stores := store.New(util.SetupTestPool(t))
	cfg := config.Default()
	cfg.Output.Root = t.TempDir()

	registry := workflow.NewRegistry()
	steps.RegisterAll(registry, steps.Deps{
		Text:       text,
		Structured: structured,
		Writer:     output.NewFileWriter(cfg.Output.Root),
		Validator:  extraction.NewValidator(cfg.Validation),
		Stores:     stores,
		Review:     cfg.Review,
	})

	runner, err := workflow.NewRunner(cfg.Workflow.Specs(), cfg.Workflow.StepOptions(), registry)
	require.NoError(t, err)

	return &harness{
		stores:   stores,
		executor: NewWorkflowExecutor(stores, runner),
		cfg:      cfg,
	}
}

func (h *harness) intake(t *testing.T, fileBytes []byte) *models.ProcessTask {
	t.Helper()
	ctx := context.Background()
	intake := services.NewIntakeService(h.stores, h.cfg.Queue.MaxTaskAttempts)
	_, err := intake.Accept(ctx, "invoice.pdf", "application/pdf", fileBytes)
	require.NoError(t, err)
	task, err := h.stores.Tasks.ClaimNext(ctx, "test-worker")
	require.NoError(t, err)
	require.NotNil(t, task)
	return task
}

func cleanInvoiceResult() *extraction.Result {
	return &extraction.Result{
		Fields: map[string]any{
			"invoice_number": "INV-1",
			"vendor_name":    "ACME",
			"total_amount":   123.45,
			"currency":       "USD",
			"invoice_date":   "2025-01-01",
			"tax_amount":     10.0,
			"line_items":     []any{map[string]any{"qty": 1, "unitPrice": 123.45}},
		},
		Confidence: map[string]float64{
			"invoice_number": 0.95, "vendor_name": 0.9, "total_amount": 0.9,
			"currency": 0.95, "invoice_date": 0.9, "tax_amount": 0.8, "line_items": 0.75,
		},
	}
}

func TestExecutorCompletesCleanInvoice(t *testing.T) {
	h := newHarness(t, &stubText{text: "Invoice INV-1 from ACME"}, &stubStructured{result: cleanInvoiceResult()})
	ctx := context.Background()
	task := h.intake(t, []byte("pdf bytes"))

	result := h.executor.Execute(ctx, task)
	require.NotNil(t, result)
	require.NoError(t, result.Error)
	assert.Equal(t, models.StatusCompleted, result.Status)

	job, err := h.stores.Jobs.Get(ctx, task.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, job.Status)
	assert.NotNil(t, job.StartedAt)
	assert.NotNil(t, job.CompletedAt)
	assert.Nil(t, job.ReviewItemID)
	assert.Contains(t, job.Outputs, "json_path")
	assert.Contains(t, job.Outputs, "parquet_path")

	// Artifacts exist on disk.
	for _, path := range job.Outputs {
		_, err := os.Stat(path)
		assert.NoError(t, err, path)
	}

	doc, err := h.stores.Documents.Get(ctx, task.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, doc.Status)
	assert.Equal(t, "completed", doc.ExtractionJSON["status"])
	assert.NotEqual(t, "pending", doc.ContentHash)

	// Line items were normalized before persisting.
	fields := doc.ExtractionJSON["fields"].(map[string]any)
	items := fields["line_items"].([]any)
	first := items[0].(map[string]any)
	assert.Contains(t, first, "quantity")
	assert.Contains(t, first, "unit_price")

	// Audit trail: received, processing_started, persisted.
	entries, err := h.stores.Audit.ForDocument(ctx, task.DocumentID)
	require.NoError(t, err)
	actions := make([]string, len(entries))
	for i, e := range entries {
		actions[i] = e.Action
	}
	assert.Equal(t, []string{models.AuditReceived, models.AuditProcessingStarted, models.AuditPersisted}, actions)
}

func TestExecutorEscalatesToReview(t *testing.T) {
	// Unsupported currency and a missing date: schema failures.
	bad := cleanInvoiceResult()
	bad.Fields["currency"] = "NGN"
	bad.Fields["invoice_date"] = ""
	h := newHarness(t, &stubText{text: "blurry scan"}, &stubStructured{result: bad})
	ctx := context.Background()
	task := h.intake(t, []byte("pdf bytes"))

	result := h.executor.Execute(ctx, task)
	require.NoError(t, result.Error)
	assert.Equal(t, models.StatusReviewPending, result.Status)

	job, err := h.stores.Jobs.Get(ctx, task.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReviewPending, job.Status)
	require.NotNil(t, job.ReviewItemID)

	// Bidirectional link between job and review item.
	item, err := h.stores.Reviews.Get(ctx, *job.ReviewItemID)
	require.NoError(t, err)
	assert.Equal(t, task.JobID, item.JobID)
	assert.Equal(t, models.ReviewPending, item.Status)
	assert.Equal(t, "validation_failed", item.Reason)
	assert.Equal(t, models.PriorityLow, item.Priority, "240m deadline lands in the lowest band")

	// The item snapshots the extraction payload at enqueue time.
	assert.Equal(t, "review_pending", item.ExtractionJSON["status"])

	entries, err := h.stores.Audit.ForDocument(ctx, task.DocumentID)
	require.NoError(t, err)
	last := entries[len(entries)-1]
	assert.Equal(t, models.AuditReviewEnqueued, last.Action)
}

func TestExecutorHonorsLockedFields(t *testing.T) {
	// Extraction says 123.45 USD, but a past review locked total_amount=999.
	h := newHarness(t, &stubText{text: "scan"}, &stubStructured{result: cleanInvoiceResult()})
	ctx := context.Background()
	task := h.intake(t, []byte("pdf bytes"))

	require.NoError(t, h.stores.WithTx(ctx, func(tx *store.Stores) error {
		return tx.Documents.MergeLockedFields(ctx, task.DocumentID, map[string]any{"total_amount": 999})
	}))

	result := h.executor.Execute(ctx, task)
	require.NoError(t, result.Error)
	assert.Equal(t, models.StatusCompleted, result.Status)

	doc, err := h.stores.Documents.Get(ctx, task.DocumentID)
	require.NoError(t, err)
	fields := doc.ExtractionJSON["fields"].(map[string]any)
	assert.EqualValues(t, 999, fields["total_amount"])
	assert.Equal(t, "ACME", fields["vendor_name"])
}

func TestExecutorNullExtractionEscalates(t *testing.T) {
	// The extractor soft-fails into the all-null shape; validation flags
	// every required field and the run lands in review.
	h := newHarness(t, &stubText{text: ""}, &stubStructured{result: nil})
	ctx := context.Background()
	task := h.intake(t, []byte("pdf bytes"))

	result := h.executor.Execute(ctx, task)
	require.NoError(t, result.Error)
	assert.Equal(t, models.StatusReviewPending, result.Status)

	job, err := h.stores.Jobs.Get(ctx, task.JobID)
	require.NoError(t, err)
	require.NotNil(t, job.ReviewItemID)
	item, err := h.stores.Reviews.Get(ctx, *job.ReviewItemID)
	require.NoError(t, err)
	assert.Equal(t, "validation_failed", item.Reason)
}

func TestWorkerFinalizeRetriesThenFails(t *testing.T) {
	h := newHarness(t, &stubText{err: errors.New("boom")}, &stubStructured{})
	ctx := context.Background()

	cfg := config.DefaultQueueConfig()
	cfg.MaxTaskAttempts = 2
	worker := NewWorker("pod-worker-0", "pod", h.stores, cfg, h.executor)

	task := h.intake(t, []byte("pdf bytes"))
	result := &ExecutionResult{Status: models.StatusFailed, Error: errors.New("step failed")}
	task.MaxAttempts = cfg.MaxTaskAttempts

	t.Run("first failure requeues with backoff", func(t *testing.T) {
		require.NoError(t, worker.finalize(ctx, task, result))

		job, err := h.stores.Jobs.Get(ctx, task.JobID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusQueued, job.Status)

		doc, err := h.stores.Documents.Get(ctx, task.DocumentID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusQueued, doc.Status)

		entries, err := h.stores.Audit.ForDocument(ctx, task.DocumentID)
		require.NoError(t, err)
		assert.Equal(t, models.AuditTaskRequeued, entries[len(entries)-1].Action)

		// Not immediately due again.
		next, err := h.stores.Tasks.ClaimNext(ctx, "other")
		require.NoError(t, err)
		assert.Nil(t, next)
	})

	t.Run("exhausted attempts fail job and document", func(t *testing.T) {
		task.Attempts = cfg.MaxTaskAttempts
		require.NoError(t, worker.finalize(ctx, task, result))

		job, err := h.stores.Jobs.Get(ctx, task.JobID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusFailed, job.Status)
		assert.NotNil(t, job.CompletedAt)
		assert.NotEmpty(t, job.Error)

		doc, err := h.stores.Documents.Get(ctx, task.DocumentID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusFailed, doc.Status)

		entries, err := h.stores.Audit.ForDocument(ctx, task.DocumentID)
		require.NoError(t, err)
		assert.Equal(t, models.AuditProcessingFailed, entries[len(entries)-1].Action)
	})
}

func TestShortErrorTag(t *testing.T) {
	assert.Equal(t, "", shortErrorTag(nil))
	assert.Equal(t, "step_failed:ocr", shortErrorTag(&workflow.StepError{Step: "ocr", Err: errors.New("x")}))
	assert.Equal(t, "timeout", shortErrorTag(context.DeadlineExceeded))
	assert.Equal(t, "cancelled", shortErrorTag(context.Canceled))
	assert.Equal(t, "processing_error", shortErrorTag(errors.New("anything")))
}
