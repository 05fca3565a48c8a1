package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/docproc/pkg/config"
	"github.com/codeready-toolchain/docproc/pkg/models"
)

type fakeJobSource struct {
	jobs   []*models.Job
	counts map[string]int // keyed by joined statuses
}

func (f *fakeJobSource) CompletedSince(ctx context.Context, since time.Time) ([]*models.Job, error) {
	var out []*models.Job
	for _, j := range f.jobs {
		if j.CompletedAt != nil && !j.CompletedAt.Before(since) {
			out = append(out, j)
		}
	}
	return out, nil
}

func (f *fakeJobSource) CountByStatusSince(ctx context.Context, since time.Time, statuses ...models.Status) (int, error) {
	count := 0
	for _, j := range f.jobs {
		if j.CompletedAt == nil || j.CompletedAt.Before(since) {
			continue
		}
		for _, s := range statuses {
			if j.Status == s {
				count++
				break
			}
		}
	}
	return count, nil
}

type fakeReviewSource struct{ pending int }

func (f *fakeReviewSource) PendingCount(ctx context.Context) (int, error) {
	return f.pending, nil
}

func job(status models.Status, started, completed time.Time) *models.Job {
	return &models.Job{Status: status, StartedAt: &started, CompletedAt: &completed}
}

func TestP95(t *testing.T) {
	assert.Equal(t, 0.0, P95(nil))
	assert.Equal(t, 7.0, P95([]float64{7}), "a single job yields that job's latency")
	assert.Equal(t, 2.0, P95([]float64{2, 1}))

	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i + 1)
	}
	assert.Equal(t, 95.0, P95(values))

	// Unsorted input.
	assert.Equal(t, 9.0, P95([]float64{9, 1, 5, 3, 7}))
}

func TestComputerValues(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	jobs := &fakeJobSource{jobs: []*models.Job{
		// Completed 2 minutes ago, 10s latency: in every window.
		job(models.StatusCompleted, now.Add(-3*time.Minute), now.Add(-3*time.Minute).Add(10*time.Second)),
		// Completed 2 minutes ago, 40s latency: slow, breaches.
		job(models.StatusReviewPending, now.Add(-3*time.Minute), now.Add(-3*time.Minute).Add(40*time.Second)),
		// Failed 4 minutes ago: error rate + breach.
		job(models.StatusFailed, now.Add(-5*time.Minute), now.Add(-4*time.Minute)),
		// Completed 30 minutes ago: only the 1h breach window sees it.
		job(models.StatusCompleted, now.Add(-31*time.Minute), now.Add(-31*time.Minute).Add(5*time.Second)),
		// Completed 2 hours ago: out of every window.
		job(models.StatusCompleted, now.Add(-2*time.Hour), now.Add(-2*time.Hour).Add(time.Second)),
	}}
	reviews := &fakeReviewSource{pending: 7}

	values, err := NewComputer(jobs, reviews).Values(context.Background(), now)
	require.NoError(t, err)

	// Latencies in the 5m window: [10, 40, 60]; nearest-rank p95 index is
	// ceil(0.95*3)-1 = 2.
	assert.InDelta(t, 60.0, values["p95_latency_seconds"], 1e-9)

	assert.InDelta(t, 8.0, values["docs_per_hour"], 1e-9, "2 docs in 15m → 8/hour")

	// 5m window: 2 ok + 1 failed.
	assert.InDelta(t, 100.0/3.0, values["error_rate_percent"], 1e-9)

	assert.InDelta(t, 7.0, values["review_queue_depth"], 1e-9)

	// 1h window: 4 jobs; breaches = slow (40s) + failed = 2.
	assert.InDelta(t, 50.0, values["sla_breach_percent"], 1e-9)
}

func TestComputerEmptyWindows(t *testing.T) {
	values, err := NewComputer(&fakeJobSource{}, &fakeReviewSource{}).Values(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0.0, values["p95_latency_seconds"])
	assert.Equal(t, 0.0, values["docs_per_hour"])
	assert.Equal(t, 0.0, values["error_rate_percent"])
	assert.Equal(t, 0.0, values["sla_breach_percent"])
}

func TestEvaluateOnce(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	jobs := &fakeJobSource{jobs: []*models.Job{
		job(models.StatusFailed, now.Add(-2*time.Minute), now.Add(-time.Minute)),
	}}
	computer := NewComputer(jobs, &fakeReviewSource{pending: 99})

	cfg := &config.SLAConfig{SLAs: []*config.SLADefinition{
		{Name: "error_rate_percent", Threshold: 5, Comparator: config.ComparatorLT, Window: "5m", Severity: "critical"},
		{Name: "review_queue_depth", Threshold: 100, Comparator: config.ComparatorLT, Window: "5m", Severity: "warning"},
	}}

	results, err := NewEvaluator(cfg, computer).EvaluateOnce(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, results, 2)

	byName := map[string]Result{}
	for _, r := range results {
		byName[r.Name] = r
	}
	assert.True(t, byName["error_rate_percent"].Breaching, "100% errors >= 5%% threshold")
	assert.InDelta(t, 100.0, byName["error_rate_percent"].Value, 1e-9)
	assert.False(t, byName["review_queue_depth"].Breaching)
}
