package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/docproc/pkg/workflow"
)

func TestParseWindow(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "5m", want: 5 * time.Minute},
		{in: "15m", want: 15 * time.Minute},
		{in: "1h", want: time.Hour},
		{in: "24H", want: 24 * time.Hour},
		{in: "5s", wantErr: true},
		{in: "m", wantErr: true},
		{in: "", wantErr: true},
		{in: "-5m", wantErr: true},
		{in: "0h", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseWindow(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrUnsupportedWindow)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSLAIsBreaching(t *testing.T) {
	lt := &SLADefinition{Threshold: 30, Comparator: ComparatorLT}
	assert.False(t, lt.IsBreaching(29.9))
	assert.True(t, lt.IsBreaching(30))
	assert.True(t, lt.IsBreaching(31))

	gt := &SLADefinition{Threshold: 100, Comparator: ComparatorGT}
	assert.True(t, gt.IsBreaching(99))
	assert.True(t, gt.IsBreaching(100))
	assert.False(t, gt.IsBreaching(101))
}

func TestValidateSLA(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		require.NoError(t, validateSLA(DefaultSLAConfig()))
	})

	t.Run("bad comparator", func(t *testing.T) {
		cfg := &SLAConfig{SLAs: []*SLADefinition{
			{Name: "x", Comparator: "ge", Window: "5m"},
		}}
		err := validateSLA(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad_comparator")
	})

	t.Run("bad window", func(t *testing.T) {
		cfg := &SLAConfig{SLAs: []*SLADefinition{
			{Name: "x", Comparator: ComparatorLT, Window: "5s"},
		}}
		err := validateSLA(cfg)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnsupportedWindow)
	})
}

func TestValidateWorkflow(t *testing.T) {
	t.Run("default pipeline is valid", func(t *testing.T) {
		require.NoError(t, validateWorkflow(DefaultWorkflowConfig()))
	})

	t.Run("cycle is fatal at startup", func(t *testing.T) {
		cfg := &WorkflowConfig{Steps: map[string]*WorkflowStepConfig{
			"a": {Kind: "x", DependsOn: []string{"b"}},
			"b": {Kind: "x", DependsOn: []string{"a"}},
		}}
		err := validateWorkflow(cfg)
		require.Error(t, err)
		assert.ErrorIs(t, err, workflow.ErrCycleDetected)
	})

	t.Run("unknown dependency is fatal at startup", func(t *testing.T) {
		cfg := &WorkflowConfig{Steps: map[string]*WorkflowStepConfig{
			"a": {Kind: "x", DependsOn: []string{"ghost"}},
		}}
		assert.ErrorIs(t, validateWorkflow(cfg), workflow.ErrUnknownDependency)
	})

	t.Run("rate limit halves must come together", func(t *testing.T) {
		cfg := &WorkflowConfig{Steps: map[string]*WorkflowStepConfig{
			"a": {Kind: "x", RateLimitRPS: 2},
		}}
		assert.Error(t, validateWorkflow(cfg))
	})
}

func TestValidationThreshold(t *testing.T) {
	cfg := DefaultValidationConfig()
	cfg.Confidence.FieldThresholds["invoice_number"] = 0.9

	assert.Equal(t, 0.9, cfg.Threshold("invoice_number"))
	assert.Equal(t, 0.75, cfg.Threshold("vendor_name"))
}

func TestValidateQueue(t *testing.T) {
	t.Run("valid defaults", func(t *testing.T) {
		require.NoError(t, validateQueue(DefaultQueueConfig()))
	})

	t.Run("worker count bounds", func(t *testing.T) {
		q := DefaultQueueConfig()
		q.WorkerCount = 0
		assert.ErrorContains(t, validateQueue(q), "worker_count")
		q.WorkerCount = 51
		assert.ErrorContains(t, validateQueue(q), "worker_count")
	})

	t.Run("heartbeat must stay below orphan threshold", func(t *testing.T) {
		q := DefaultQueueConfig()
		q.HeartbeatInterval = q.OrphanThreshold
		assert.ErrorContains(t, validateQueue(q), "heartbeat_interval")
	})
}

func TestInitialize(t *testing.T) {
	t.Run("empty dir falls back to defaults", func(t *testing.T) {
		cfg, err := Initialize(t.TempDir())
		require.NoError(t, err)
		assert.Len(t, cfg.Workflow.Steps, 7)
		assert.Equal(t, 240, cfg.Review.SLAMinutes)
	})

	t.Run("yaml overrides and env expansion", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("TEST_OUTPUT_ROOT", "/data/artifacts")
		doc := `
queue:
  worker_count: 2
  max_concurrent_tasks: 3
  poll_interval: 2s
  poll_interval_jitter: 250ms
  task_timeout: 5m
  graceful_shutdown_timeout: 5m
  heartbeat_interval: 15s
  orphan_detection_interval: 1m
  orphan_threshold: 2m
  max_task_attempts: 5
  retry_backoff_base: 10s
output:
  root: ${TEST_OUTPUT_ROOT}
review:
  sla_minutes: 120
`
		require.NoError(t, os.WriteFile(filepath.Join(dir, "docproc.yaml"), []byte(doc), 0o644))

		cfg, err := Initialize(dir)
		require.NoError(t, err)
		assert.Equal(t, 2, cfg.Queue.WorkerCount)
		assert.Equal(t, "/data/artifacts", cfg.Output.Root)
		assert.Equal(t, 120, cfg.Review.SLAMinutes)
	})

	t.Run("workflow yaml with step options", func(t *testing.T) {
		dir := t.TempDir()
		wf := `
workflow:
  steps:
    ocr:
      kind: ocr
      retries: 1
    extract:
      kind: llm_extract
      depends_on: [ocr]
      rate_limit_rps: 1
      rate_limit_burst: 2
      truncate_chars: 20000
    normalize:
      kind: normalize_line_items
      depends_on: [extract]
      max_concurrency: 4
    validate:
      kind: validate
      depends_on: [normalize]
    outputs:
      kind: write_outputs
      depends_on: [validate]
    persist:
      kind: persist
      depends_on: [outputs]
    review:
      kind: review_gate
      depends_on: [persist]
`
		require.NoError(t, os.WriteFile(filepath.Join(dir, "workflow.yaml"), []byte(wf), 0o644))

		cfg, err := Initialize(dir)
		require.NoError(t, err)
		require.Len(t, cfg.Workflow.Steps, 7)

		opts := cfg.Workflow.StepOptions()
		assert.Equal(t, 20000, opts["extract"].Int("truncate_chars", 0))
		assert.Equal(t, 4, cfg.Workflow.Steps["normalize"].MaxConcurrency)
	})

	t.Run("invalid workflow is a startup failure", func(t *testing.T) {
		dir := t.TempDir()
		wf := `
workflow:
  steps:
    a:
      kind: x
      depends_on: [b]
    b:
      kind: x
      depends_on: [a]
`
		require.NoError(t, os.WriteFile(filepath.Join(dir, "workflow.yaml"), []byte(wf), 0o644))
		_, err := Initialize(dir)
		require.Error(t, err)
		assert.ErrorIs(t, err, workflow.ErrCycleDetected)
	})
}
