// Package metrics is the observability sink the pipeline reports counters
// and durations into. It is never consulted for control flow.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the pipeline's prometheus collectors.
type Registry struct {
	reg *prometheus.Registry

	RecordsProcessed   *prometheus.CounterVec
	RecordsValid       *prometheus.CounterVec
	RecordsInvalid     *prometheus.CounterVec
	RecordsAnonymized  prometheus.Counter
	ErasureFailed      prometheus.Counter
	StageErrors        prometheus.Counter
	MessagesConsumed   prometheus.Counter
	ProcessingDuration *prometheus.HistogramVec
}

// NewRegistry creates and registers the pipeline collectors.
func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "etl_records_processed_total",
		Help: "Records read per dataset.",
	}, []string{"dataset"})
	valid := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "etl_records_valid_total",
		Help: "Records accepted per dataset.",
	}, []string{"dataset"})
	invalid := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "etl_records_invalid_total",
		Help: "Records quarantined per dataset.",
	}, []string{"dataset"})
	anonymized := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "etl_records_anonymized_total",
		Help: "Customer records anonymized by erasure requests.",
	})
	erasureFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "etl_erasure_failed_total",
		Help: "Erasure requests classified as failed.",
	})
	stageErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "etl_stage_errors_total",
		Help: "Processor stage failures caught by the orchestrator.",
	})
	consumed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "etl_messages_consumed_total",
		Help: "Bus messages consumed by the streaming service.",
	})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "etl_processing_duration_seconds",
		Help:    "Per-partition processing duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"dataset"})

	r.MustRegister(processed, valid, invalid, anonymized, erasureFailed, stageErrors, consumed, duration)

	return &Registry{
		reg:                r,
		RecordsProcessed:   processed,
		RecordsValid:       valid,
		RecordsInvalid:     invalid,
		RecordsAnonymized:  anonymized,
		ErasureFailed:      erasureFailed,
		StageErrors:        stageErrors,
		MessagesConsumed:   consumed,
		ProcessingDuration: duration,
	}
}

// Handler returns the scrape endpoint for this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
