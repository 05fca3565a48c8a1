// Package monitoring publishes pipeline metrics and evaluates SLA
// definitions on a fixed cadence.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Core pipeline metrics.
var (
	DocsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docs_processed_total",
		Help: "Total documents processed",
	}, []string{"status"})

	DocProcessingSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "doc_processing_seconds",
		Help:    "Document processing latency seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
	})

	ProcessingErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "doc_processing_errors_total",
		Help: "Total processing errors",
	})

	ReviewQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "review_queue_depth",
		Help: "Pending human review items",
	})
)

// SLA evaluation metrics (computed in-app).
var (
	SLABreaches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sla_breaches_total",
		Help: "Total SLA breaches detected",
	}, []string{"sla"})

	SLACurrentValue = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sla_current_value",
		Help: "Current computed SLA value",
	}, []string{"sla"})

	SLAIsBreaching = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sla_is_breaching",
		Help: "Whether the SLA is currently breaching (0/1)",
	}, []string{"sla"})
)
