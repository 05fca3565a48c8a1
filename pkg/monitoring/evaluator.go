package monitoring

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/codeready-toolchain/docproc/pkg/config"
)

// evaluationInterval is the fixed cadence of SLA evaluation.
const evaluationInterval = 60 * time.Second

// Result is the outcome of evaluating one SLA definition.
type Result struct {
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Breaching bool    `json:"breaching"`
	Severity  string  `json:"severity"`
}

// Evaluator periodically computes SLA metric values, compares them against
// their thresholds, and publishes the results.
type Evaluator struct {
	defs     []*config.SLADefinition
	computer *Computer

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewEvaluator creates an evaluator over the configured definitions.
func NewEvaluator(cfg *config.SLAConfig, computer *Computer) *Evaluator {
	return &Evaluator{
		defs:     cfg.SLAs,
		computer: computer,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the evaluation loop in a goroutine.
func (e *Evaluator) Start(ctx context.Context) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(evaluationInterval)
		defer ticker.Stop()

		slog.Info("SLA evaluator started", "definitions", len(e.defs), "interval", evaluationInterval)
		for {
			select {
			case <-ctx.Done():
				return
			case <-e.stopCh:
				return
			case <-ticker.C:
				if _, err := e.EvaluateOnce(ctx, time.Now()); err != nil {
					slog.Error("SLA evaluation failed", "error", err)
				}
			}
		}
	}()
}

// Stop terminates the evaluation loop and waits for it to finish.
// Safe to call multiple times.
func (e *Evaluator) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.wg.Wait()
}

// EvaluateOnce computes all metric values as of now, publishes gauges, and
// increments the breach counter for breaching definitions.
func (e *Evaluator) EvaluateOnce(ctx context.Context, now time.Time) ([]Result, error) {
	values, err := e.computer.Values(ctx, now)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(e.defs))
	for _, def := range e.defs {
		value := values[def.Name]
		breaching := def.IsBreaching(value)

		SLACurrentValue.WithLabelValues(def.Name).Set(value)
		if breaching {
			SLAIsBreaching.WithLabelValues(def.Name).Set(1)
			SLABreaches.WithLabelValues(def.Name).Inc()
			slog.Warn("SLA breaching",
				"sla", def.Name, "value", value,
				"threshold", def.Threshold, "severity", def.Severity)
		} else {
			SLAIsBreaching.WithLabelValues(def.Name).Set(0)
		}

		results = append(results, Result{
			Name:      def.Name,
			Value:     value,
			Breaching: breaching,
			Severity:  def.Severity,
		})
	}

	ReviewQueueDepth.Set(values["review_queue_depth"])
	return results, nil
}
