package steps

import (
	"context"

	"github.com/codeready-toolchain/docproc/pkg/extraction"
	"github.com/codeready-toolchain/docproc/pkg/workflow"
)

// ValidateStep runs schema checks and the confidence gate, deciding whether
// the run escalates to human review.
type ValidateStep struct {
	validator *extraction.Validator
}

// Run implements workflow.Handler.
func (s *ValidateStep) Run(ctx context.Context, wf *workflow.Context, opts workflow.Options) error {
	wf.ValidationErrors = s.validator.Validate(wf.Fields, wf.FieldConfidence)
	wf.NeedsReview = len(wf.ValidationErrors) > 0
	return nil
}
