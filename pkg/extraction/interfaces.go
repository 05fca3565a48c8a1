// Package extraction holds the provider contracts and the validation and
// confidence logic of the invoice pipeline.
package extraction

import "context"

// InvoiceFieldNames lists the seven canonical invoice fields, in the order
// they appear in output artifacts.
var InvoiceFieldNames = []string{
	"invoice_number",
	"vendor_name",
	"total_amount",
	"currency",
	"invoice_date",
	"tax_amount",
	"line_items",
}

// TextExtractor turns raw document bytes into plain text (OCR boundary).
// Provider failures must yield an empty string so the pipeline can escalate
// to human review; only programmer errors may be returned.
type TextExtractor interface {
	ExtractText(ctx context.Context, fileBytes []byte, contentType string) (string, error)
}

// Result is what a structured extractor returns: the invoice fields and a
// per-field confidence score in [0, 1].
type Result struct {
	Fields     map[string]any
	Confidence map[string]float64
}

// StructuredExtractor turns OCR text into invoice fields (LLM boundary).
// Implementations must never fail on provider errors; they return the
// all-null, zero-confidence shape instead so validation escalates the run.
type StructuredExtractor interface {
	Extract(ctx context.Context, text string) (*Result, error)
}

// OutputWriter persists the extraction payload to durable artifacts and
// returns their locations keyed by artifact kind.
type OutputWriter interface {
	Write(ctx context.Context, documentID string, payload map[string]any) (map[string]string, error)
}

// NullResult returns the soft-failure extraction shape: every invoice field
// present as nil with confidence 0.0.
func NullResult() *Result {
	fields := make(map[string]any, len(InvoiceFieldNames))
	confidence := make(map[string]float64, len(InvoiceFieldNames))
	for _, name := range InvoiceFieldNames {
		fields[name] = nil
		confidence[name] = 0.0
	}
	return &Result{Fields: fields, Confidence: confidence}
}
