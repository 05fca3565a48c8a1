package steps

import (
	"context"
	"sync"

	"github.com/codeready-toolchain/docproc/pkg/workflow"
)

// defaultNormalizeConcurrency bounds per-item normalization goroutines.
const defaultNormalizeConcurrency = 10

// NormalizeStep canonicalizes line item entries: qty → quantity,
// unitPrice → unit_price. An absent or empty list is a no-op.
type NormalizeStep struct{}

// Run implements workflow.Handler.
func (s *NormalizeStep) Run(ctx context.Context, wf *workflow.Context, opts workflow.Options) error {
	items, ok := wf.Fields["line_items"].([]any)
	if !ok || len(items) == 0 {
		return nil
	}

	maxConcurrency := opts.Int("max_concurrency", defaultNormalizeConcurrency)
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}

	normalized := make([]any, len(items))
	sem := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup
	for i, raw := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			normalized[i] = normalizeLineItem(raw)
		}()
	}
	wg.Wait()

	wf.Fields["line_items"] = normalized
	return nil
}

func normalizeLineItem(raw any) any {
	item, ok := raw.(map[string]any)
	if !ok {
		return raw
	}
	out := make(map[string]any, len(item))
	for k, v := range item {
		out[k] = v
	}
	if v, has := out["qty"]; has {
		if _, conflict := out["quantity"]; !conflict {
			out["quantity"] = v
			delete(out, "qty")
		}
	}
	if v, has := out["unitPrice"]; has {
		if _, conflict := out["unit_price"]; !conflict {
			out["unit_price"] = v
			delete(out, "unitPrice")
		}
	}
	return out
}
