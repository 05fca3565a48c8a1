package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

const maxBackoff = 6 * time.Second

// Runner executes a validated step graph layer by layer. Steps within a
// layer run concurrently; a layer must fully quiesce before the next one
// starts. A step failure does not cancel its layer peers, but no later
// layer runs and the first error (in layer order) is surfaced.
type Runner struct {
	graph    *Graph
	layers   [][]string
	registry *Registry
	options  map[string]Options
	limiters map[string]*StepLimiter
}

// NewRunner validates the graph, precomputes its layers, and builds one
// rate limiter per step that configures both rate_limit_rps and
// rate_limit_burst.
func NewRunner(steps map[string]*StepSpec, options map[string]Options, registry *Registry) (*Runner, error) {
	graph := NewGraph(steps)
	if err := graph.Validate(); err != nil {
		return nil, err
	}
	layers, err := graph.TopologicalLayers()
	if err != nil {
		return nil, err
	}

	limiters := make(map[string]*StepLimiter)
	for name, spec := range steps {
		if spec.RateLimitRPS > 0 && spec.RateLimitBurst > 0 {
			limiters[name] = NewStepLimiter(spec.RateLimitRPS, spec.RateLimitBurst)
		}
	}

	if options == nil {
		options = map[string]Options{}
	}

	return &Runner{
		graph:    graph,
		layers:   layers,
		registry: registry,
		options:  options,
		limiters: limiters,
	}, nil
}

// Layers returns the precomputed execution layers.
func (r *Runner) Layers() [][]string {
	return r.layers
}

// Run executes every layer in order against wf. It returns when the last
// layer completes, or with the first unrecovered step error after that
// step's layer has quiesced.
func (r *Runner) Run(ctx context.Context, wf *Context) error {
	log := slog.With("job_id", wf.JobID, "document_id", wf.DocumentID)

	for i, layer := range r.layers {
		errs := make([]error, len(layer))
		var wg sync.WaitGroup

		for slot, name := range layer {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[slot] = r.runStep(ctx, name, wf)
			}()
		}
		wg.Wait()

		for slot, err := range errs {
			if err != nil {
				log.Error("Layer failed, halting workflow", "layer", i, "step", layer[slot], "error", err)
				return &StepError{Step: layer[slot], Err: err}
			}
		}
	}
	return nil
}

// runStep executes one step with rate limiting and retry. Attempt i sleeps
// jitter(min(6s, 0.5s * 2^i)) before retrying; the limiter token is
// re-acquired on every attempt.
func (r *Runner) runStep(ctx context.Context, name string, wf *Context) error {
	spec := r.graph.Step(name)
	handler, err := r.registry.Get(spec.Kind)
	if err != nil {
		return err
	}

	opts := r.options[name]
	limiter := r.limiters[name]
	attempts := spec.Retries + 1

	var lastErr error
	for i := 0; i < attempts; i++ {
		if limiter != nil {
			if err := limiter.Take(ctx, 1); err != nil {
				return fmt.Errorf("acquiring rate limit token: %w", err)
			}
		}

		lastErr = handler.Run(ctx, wf, opts)
		if lastErr == nil {
			return nil
		}
		if IsFatal(lastErr) {
			return lastErr
		}
		if i == attempts-1 {
			break
		}

		delay := backoff(i)
		slog.Warn("Step attempt failed, retrying",
			"step", name, "attempt", i+1, "of", attempts, "backoff", delay, "error", lastErr)
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
	return lastErr
}

// backoff returns the jittered delay before retry attempt i:
// base = min(6s, 0.5s * 2^i), jittered by a uniform factor in [0.5, 1.5).
func backoff(i int) time.Duration {
	base := 500 * time.Millisecond << uint(i)
	if base > maxBackoff {
		base = maxBackoff
	}
	factor := 0.5 + rand.Float64()
	return time.Duration(float64(base) * factor)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
