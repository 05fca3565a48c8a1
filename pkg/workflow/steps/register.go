// Package steps provides the built-in invoice pipeline step handlers.
package steps

import (
	"github.com/codeready-toolchain/docproc/pkg/config"
	"github.com/codeready-toolchain/docproc/pkg/extraction"
	"github.com/codeready-toolchain/docproc/pkg/store"
	"github.com/codeready-toolchain/docproc/pkg/workflow"
)

// Step kinds understood by the built-in pipeline.
const (
	KindOCR       = "ocr"
	KindExtract   = "llm_extract"
	KindNormalize = "normalize_line_items"
	KindValidate  = "validate"
	KindOutputs   = "write_outputs"
	KindPersist   = "persist"
	KindReview    = "review_gate"
)

// Deps are the runner-injected dependencies shared by the step handlers.
type Deps struct {
	Text       extraction.TextExtractor
	Structured extraction.StructuredExtractor
	Writer     extraction.OutputWriter
	Validator  *extraction.Validator
	Stores     *store.Stores
	Review     *config.ReviewConfig
}

// RegisterAll binds every built-in step kind into the registry. Called once
// at startup.
func RegisterAll(reg *workflow.Registry, deps Deps) {
	reg.Register(KindOCR, &OCRStep{extractor: deps.Text})
	reg.Register(KindExtract, &ExtractStep{extractor: deps.Structured})
	reg.Register(KindNormalize, &NormalizeStep{})
	reg.Register(KindValidate, &ValidateStep{validator: deps.Validator})
	reg.Register(KindOutputs, &WriteOutputsStep{writer: deps.Writer})
	reg.Register(KindPersist, &PersistStep{stores: deps.Stores})
	reg.Register(KindReview, &ReviewGateStep{stores: deps.Stores, review: deps.Review})
}
