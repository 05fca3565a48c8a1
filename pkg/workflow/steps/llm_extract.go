package steps

import (
	"context"

	"github.com/codeready-toolchain/docproc/pkg/extraction"
	"github.com/codeready-toolchain/docproc/pkg/workflow"
)

// defaultTruncateChars bounds the text handed to the structured extractor.
const defaultTruncateChars = 20000

// ExtractStep invokes the structured extractor and merges the result with
// the document's locked fields. Locked values always win, and their
// confidence is pinned at 0.99 so the confidence gate never re-escalates a
// field a human already fixed.
type ExtractStep struct {
	extractor extraction.StructuredExtractor
}

// Run implements workflow.Handler.
func (s *ExtractStep) Run(ctx context.Context, wf *workflow.Context, opts workflow.Options) error {
	text := wf.Text
	if limit := opts.Int("truncate_chars", defaultTruncateChars); len(text) > limit {
		text = text[:limit]
	}

	result, err := s.extractor.Extract(ctx, text)
	if err != nil {
		return err
	}
	if result == nil || result.Fields == nil {
		result = extraction.NullResult()
	}

	fields := make(map[string]any, len(result.Fields))
	for k, v := range result.Fields {
		fields[k] = v
	}
	confidence := make(map[string]float64, len(result.Confidence))
	for k, v := range result.Confidence {
		confidence[k] = v
	}

	for name, value := range wf.LockedFields {
		fields[name] = value
		confidence[name] = 0.99
	}

	wf.Fields = fields
	wf.FieldConfidence = confidence
	return nil
}
