package monitoring

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/codeready-toolchain/docproc/pkg/models"
)

// Windows the SLA metrics are computed over.
const (
	latencyWindow    = 5 * time.Minute
	throughputWindow = 15 * time.Minute
	errorWindow      = 5 * time.Minute
	breachWindow     = time.Hour

	// breachLatency is the per-job latency above which a job counts
	// against sla_breach_percent.
	breachLatency = 30 * time.Second
)

// JobSource is the job-store subset the computer reads.
type JobSource interface {
	CompletedSince(ctx context.Context, since time.Time) ([]*models.Job, error)
	CountByStatusSince(ctx context.Context, since time.Time, statuses ...models.Status) (int, error)
}

// ReviewSource is the review-store subset the computer reads.
type ReviewSource interface {
	PendingCount(ctx context.Context) (int, error)
}

// Computer derives the scalar SLA metric values from the stores.
type Computer struct {
	jobs    JobSource
	reviews ReviewSource
}

// NewComputer creates an SLA metric computer.
func NewComputer(jobs JobSource, reviews ReviewSource) *Computer {
	return &Computer{jobs: jobs, reviews: reviews}
}

// Values computes every SLA metric as of now.
func (c *Computer) Values(ctx context.Context, now time.Time) (map[string]float64, error) {
	values := map[string]float64{}

	// p95 latency over jobs completed in the last 5 minutes.
	recent, err := c.jobs.CompletedSince(ctx, now.Add(-latencyWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to load recent jobs: %w", err)
	}
	var latencies []float64
	for _, job := range recent {
		if job.StartedAt != nil && job.CompletedAt != nil {
			latencies = append(latencies, job.CompletedAt.Sub(*job.StartedAt).Seconds())
		}
	}
	values["p95_latency_seconds"] = P95(latencies)

	// 15-minute throughput extrapolated to documents per hour.
	completed15m, err := c.jobs.CountByStatusSince(ctx, now.Add(-throughputWindow),
		models.StatusCompleted, models.StatusReviewPending)
	if err != nil {
		return nil, fmt.Errorf("failed to count throughput: %w", err)
	}
	values["docs_per_hour"] = float64(completed15m) / (throughputWindow.Hours())

	// 5-minute error rate.
	total5m, err := c.jobs.CountByStatusSince(ctx, now.Add(-errorWindow),
		models.StatusCompleted, models.StatusReviewPending, models.StatusFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs for error rate: %w", err)
	}
	failed5m, err := c.jobs.CountByStatusSince(ctx, now.Add(-errorWindow), models.StatusFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to count failed jobs: %w", err)
	}
	if total5m > 0 {
		values["error_rate_percent"] = float64(failed5m) / float64(total5m) * 100.0
	} else {
		values["error_rate_percent"] = 0.0
	}

	// Current review queue depth.
	depth, err := c.reviews.PendingCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count review queue: %w", err)
	}
	values["review_queue_depth"] = float64(depth)

	// 1-hour breach percentage: failed, or slower than 30 seconds.
	hourly, err := c.jobs.CompletedSince(ctx, now.Add(-breachWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to load hourly jobs: %w", err)
	}
	breaches := 0
	for _, job := range hourly {
		if job.Status == models.StatusFailed {
			breaches++
			continue
		}
		if job.StartedAt != nil && job.CompletedAt != nil &&
			job.CompletedAt.Sub(*job.StartedAt) > breachLatency {
			breaches++
		}
	}
	if len(hourly) > 0 {
		values["sla_breach_percent"] = float64(breaches) / float64(len(hourly)) * 100.0
	} else {
		values["sla_breach_percent"] = 0.0
	}

	return values, nil
}

// P95 is the 95th percentile by the nearest-rank method: index
// max(0, ceil(0.95·n) − 1) of the sorted values. A single sample yields
// that sample; no interpolation.
func P95(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	k := int(math.Ceil(0.95*float64(len(sorted)))) - 1
	if k < 0 {
		k = 0
	}
	return sorted[k]
}
