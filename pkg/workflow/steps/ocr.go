package steps

import (
	"context"
	"log/slog"

	"github.com/codeready-toolchain/docproc/pkg/extraction"
	"github.com/codeready-toolchain/docproc/pkg/workflow"
)

// OCRStep turns the uploaded bytes into plain text. Provider failures
// surface as empty text (the extractor contract), so a broken OCR backend
// still lets the run escalate to human review instead of failing the job.
type OCRStep struct {
	extractor extraction.TextExtractor
}

// Run implements workflow.Handler.
func (s *OCRStep) Run(ctx context.Context, wf *workflow.Context, opts workflow.Options) error {
	text, err := s.extractor.ExtractText(ctx, wf.FileBytes, wf.ContentType)
	if err != nil {
		return err
	}
	if text == "" {
		slog.Warn("OCR produced no text", "document_id", wf.DocumentID, "content_type", wf.ContentType)
	}
	wf.Text = text
	return nil
}
