package llm

import (
	"context"

	"github.com/codeready-toolchain/docproc/pkg/extraction"
)

// NullExtractor is the stand-in when no LLM provider is configured: every
// document extracts to the all-null, zero-confidence shape and therefore
// escalates to human review.
type NullExtractor struct{}

// Extract implements extraction.StructuredExtractor.
func (NullExtractor) Extract(ctx context.Context, text string) (*extraction.Result, error) {
	return extraction.NullResult(), nil
}
