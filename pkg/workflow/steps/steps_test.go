package steps

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/docproc/pkg/config"
	"github.com/codeready-toolchain/docproc/pkg/extraction"
	"github.com/codeready-toolchain/docproc/pkg/workflow"
)

type fakeTextExtractor struct {
	text string
	err  error
}

func (f *fakeTextExtractor) ExtractText(ctx context.Context, fileBytes []byte, contentType string) (string, error) {
	return f.text, f.err
}

type fakeStructuredExtractor struct {
	result *extraction.Result
	err    error
	gotLen int
}

func (f *fakeStructuredExtractor) Extract(ctx context.Context, text string) (*extraction.Result, error) {
	f.gotLen = len(text)
	return f.result, f.err
}

type fakeWriter struct {
	payload map[string]any
	outputs map[string]string
}

func (f *fakeWriter) Write(ctx context.Context, documentID string, payload map[string]any) (map[string]string, error) {
	f.payload = payload
	if f.outputs == nil {
		f.outputs = map[string]string{
			"json_path":    "outputs/json/" + documentID + ".json",
			"parquet_path": "outputs/parquet/" + documentID + ".parquet",
		}
	}
	return f.outputs, nil
}

func TestOCRStep(t *testing.T) {
	t.Run("sets text", func(t *testing.T) {
		step := &OCRStep{extractor: &fakeTextExtractor{text: "hello invoice"}}
		wf := workflow.NewContext("j", "d", "image/png", []byte("x"), nil)
		require.NoError(t, step.Run(context.Background(), wf, nil))
		assert.Equal(t, "hello invoice", wf.Text)
	})

	t.Run("empty text is not an error", func(t *testing.T) {
		step := &OCRStep{extractor: &fakeTextExtractor{text: ""}}
		wf := workflow.NewContext("j", "d", "application/pdf", []byte("x"), nil)
		require.NoError(t, step.Run(context.Background(), wf, nil))
		assert.Empty(t, wf.Text)
	})

	t.Run("programmer errors propagate", func(t *testing.T) {
		step := &OCRStep{extractor: &fakeTextExtractor{err: errors.New("nil deref")}}
		wf := workflow.NewContext("j", "d", "application/pdf", []byte("x"), nil)
		assert.Error(t, step.Run(context.Background(), wf, nil))
	})
}

func TestExtractStepLockedFieldsWin(t *testing.T) {
	// Scenario: extractor returns vendor/total/currency, total_amount is
	// human-locked at 999.
	step := &ExtractStep{extractor: &fakeStructuredExtractor{
		result: &extraction.Result{
			Fields: map[string]any{
				"vendor_name":  "ACME",
				"total_amount": 100,
				"currency":     "USD",
			},
			Confidence: map[string]float64{
				"vendor_name":  0.8,
				"total_amount": 0.9,
				"currency":     0.95,
			},
		},
	}}

	wf := workflow.NewContext("j", "d", "application/pdf", []byte("x"),
		map[string]any{"total_amount": 999})
	wf.Text = "hello"

	require.NoError(t, step.Run(context.Background(), wf, nil))

	assert.Equal(t, 999, wf.Fields["total_amount"])
	assert.Equal(t, "ACME", wf.Fields["vendor_name"])
	assert.Equal(t, 0.99, wf.FieldConfidence["total_amount"])
	assert.Equal(t, 0.8, wf.FieldConfidence["vendor_name"])
}

func TestExtractStepTruncatesText(t *testing.T) {
	fake := &fakeStructuredExtractor{result: extraction.NullResult()}
	step := &ExtractStep{extractor: fake}

	wf := workflow.NewContext("j", "d", "application/pdf", nil, nil)
	wf.Text = string(make([]byte, 30000))

	require.NoError(t, step.Run(context.Background(), wf, nil))
	assert.Equal(t, 20000, fake.gotLen)

	wf.Text = "short"
	require.NoError(t, step.Run(context.Background(), wf, workflow.Options{"truncate_chars": 3}))
	assert.Equal(t, 3, fake.gotLen)
}

func TestExtractStepNilResultBecomesNullShape(t *testing.T) {
	step := &ExtractStep{extractor: &fakeStructuredExtractor{result: nil}}
	wf := workflow.NewContext("j", "d", "application/pdf", nil, nil)

	require.NoError(t, step.Run(context.Background(), wf, nil))
	for _, name := range extraction.InvoiceFieldNames {
		assert.Contains(t, wf.Fields, name)
		assert.Nil(t, wf.Fields[name])
		assert.Equal(t, 0.0, wf.FieldConfidence[name])
	}
}

func TestNormalizeStep(t *testing.T) {
	t.Run("renames qty and unitPrice", func(t *testing.T) {
		wf := workflow.NewContext("j", "d", "application/pdf", nil, nil)
		wf.Fields["line_items"] = []any{
			map[string]any{"qty": 2, "unitPrice": 9.5, "description": "widget"},
			map[string]any{"quantity": 1, "unit_price": 3.0},
		}

		require.NoError(t, (&NormalizeStep{}).Run(context.Background(), wf, nil))

		items := wf.Fields["line_items"].([]any)
		first := items[0].(map[string]any)
		assert.Equal(t, 2, first["quantity"])
		assert.Equal(t, 9.5, first["unit_price"])
		assert.NotContains(t, first, "qty")
		assert.NotContains(t, first, "unitPrice")
		assert.Equal(t, "widget", first["description"])

		second := items[1].(map[string]any)
		assert.Equal(t, 1, second["quantity"])
	})

	t.Run("existing canonical keys are not clobbered", func(t *testing.T) {
		wf := workflow.NewContext("j", "d", "application/pdf", nil, nil)
		wf.Fields["line_items"] = []any{
			map[string]any{"qty": 5, "quantity": 2},
		}
		require.NoError(t, (&NormalizeStep{}).Run(context.Background(), wf, nil))

		item := wf.Fields["line_items"].([]any)[0].(map[string]any)
		assert.Equal(t, 2, item["quantity"])
		assert.Equal(t, 5, item["qty"])
	})

	t.Run("absent list is a no-op", func(t *testing.T) {
		wf := workflow.NewContext("j", "d", "application/pdf", nil, nil)
		require.NoError(t, (&NormalizeStep{}).Run(context.Background(), wf, nil))
		assert.NotContains(t, wf.Fields, "line_items")
	})

	t.Run("bounded concurrency handles many items", func(t *testing.T) {
		items := make([]any, 100)
		for i := range items {
			items[i] = map[string]any{"qty": i}
		}
		wf := workflow.NewContext("j", "d", "application/pdf", nil, nil)
		wf.Fields["line_items"] = items

		require.NoError(t, (&NormalizeStep{}).Run(context.Background(), wf,
			workflow.Options{"max_concurrency": 3}))

		out := wf.Fields["line_items"].([]any)
		require.Len(t, out, 100)
		for i, raw := range out {
			assert.Equal(t, i, raw.(map[string]any)["quantity"])
		}
	})
}

func TestValidateStep(t *testing.T) {
	step := &ValidateStep{validator: extraction.NewValidator(config.DefaultValidationConfig())}

	t.Run("clean document needs no review", func(t *testing.T) {
		wf := workflow.NewContext("j", "d", "application/pdf", nil, nil)
		wf.Fields = map[string]any{
			"invoice_number": "INV-1", "vendor_name": "ACME", "total_amount": 10,
			"currency": "USD", "invoice_date": "2025-01-01",
		}
		wf.FieldConfidence = map[string]float64{
			"invoice_number": 1, "vendor_name": 1, "total_amount": 1, "currency": 1, "invoice_date": 1,
		}
		require.NoError(t, step.Run(context.Background(), wf, nil))
		assert.False(t, wf.NeedsReview)
		assert.Empty(t, wf.ValidationErrors)
	})

	t.Run("errors set needs_review", func(t *testing.T) {
		wf := workflow.NewContext("j", "d", "application/pdf", nil, nil)
		wf.Fields = map[string]any{"invoice_number": ""}
		require.NoError(t, step.Run(context.Background(), wf, nil))
		assert.True(t, wf.NeedsReview)
		assert.NotEmpty(t, wf.ValidationErrors)
	})
}

func TestWriteOutputsStep(t *testing.T) {
	writer := &fakeWriter{}
	step := &WriteOutputsStep{writer: writer}

	wf := workflow.NewContext("j", "doc-1", "application/pdf", []byte("bytes"), nil)
	wf.Fields = map[string]any{"invoice_number": "INV-1"}
	wf.NeedsReview = true
	wf.ValidationErrors = []string{"currency_unsupported"}

	require.NoError(t, step.Run(context.Background(), wf, nil))

	assert.Equal(t, "1.0.0", wf.ExtractionPayload["schema_version"])
	assert.Equal(t, "doc-1", wf.ExtractionPayload["document_id"])
	assert.Equal(t, ContentHash("doc-1", []byte("bytes")), wf.ExtractionPayload["content_hash"])
	assert.Equal(t, "review_pending", wf.ExtractionPayload["status"])
	assert.Equal(t, []string{"currency_unsupported"}, wf.ExtractionPayload["validation_errors"])
	assert.Equal(t, writer.payload, wf.ExtractionPayload)
	assert.Contains(t, wf.Outputs, "json_path")
	assert.Contains(t, wf.Outputs, "parquet_path")
}

func TestContentHashDeterministic(t *testing.T) {
	bytes := []byte("same bytes every time")
	assert.Equal(t, ContentHash("doc-123", bytes), ContentHash("doc-123", bytes))
	assert.NotEqual(t, ContentHash("doc-123", bytes), ContentHash("doc-124", bytes))
	assert.NotEqual(t, ContentHash("doc-123", bytes), ContentHash("doc-123", []byte("other")))
	assert.Len(t, ContentHash("doc-123", bytes), 64)
}
