package steps

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/codeready-toolchain/docproc/pkg/extraction"
	"github.com/codeready-toolchain/docproc/pkg/models"
	"github.com/codeready-toolchain/docproc/pkg/workflow"
)

// payloadSchemaVersion versions the extraction payload written to disk and
// to the documents table.
const payloadSchemaVersion = "1.0.0"

// WriteOutputsStep builds the canonical extraction payload and writes the
// JSON and columnar artifacts.
type WriteOutputsStep struct {
	writer extraction.OutputWriter
}

// Run implements workflow.Handler.
func (s *WriteOutputsStep) Run(ctx context.Context, wf *workflow.Context, opts workflow.Options) error {
	status := models.StatusCompleted
	if wf.NeedsReview {
		status = models.StatusReviewPending
	}

	validationErrors := wf.ValidationErrors
	if validationErrors == nil {
		validationErrors = []string{}
	}

	payload := map[string]any{
		"schema_version":    payloadSchemaVersion,
		"document_id":       wf.DocumentID,
		"content_hash":      ContentHash(wf.DocumentID, wf.FileBytes),
		"fields":            wf.Fields,
		"validation_errors": validationErrors,
		"status":            string(status),
	}

	outputs, err := s.writer.Write(ctx, wf.DocumentID, payload)
	if err != nil {
		return err
	}

	wf.ExtractionPayload = payload
	wf.Outputs = outputs
	return nil
}

// ContentHash is the deterministic identity of a processed upload:
// SHA256(document_id || "|" || file_bytes), hex-encoded.
func ContentHash(documentID string, fileBytes []byte) string {
	h := sha256.New()
	h.Write([]byte(documentID))
	h.Write([]byte("|"))
	h.Write(fileBytes)
	return hex.EncodeToString(h.Sum(nil))
}
