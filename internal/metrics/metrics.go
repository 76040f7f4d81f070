// Package metrics exposes Prometheus collectors for the enrichment pipeline.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pipelineRecordsTotal        *prometheus.CounterVec
	pipelineStageRunsTotal      *prometheus.CounterVec
	providerCallsTotal          *prometheus.CounterVec
	providerCallDurationSeconds *prometheus.HistogramVec
	checkpointWritesTotal       prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pipelineRecordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_records_total",
				Help: "Total records handled per stage, labeled by outcome.",
			},
			[]string{"stage", "outcome"},
		)

		pipelineStageRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_stage_runs_total",
				Help: "Total stage executions, labeled by stage and status.",
			},
			[]string{"stage", "status"},
		)

		providerCallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provider_calls_total",
				Help: "Total outbound provider calls, labeled by provider and outcome.",
			},
			[]string{"provider", "outcome"},
		)

		providerCallDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "provider_call_duration_seconds",
				Help:    "Histogram of provider call latencies including retries.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider"},
		)

		checkpointWritesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "checkpoint_writes_total",
				Help: "Total checkpoint documents persisted.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRecord increments the per-stage record counter.
func ObserveRecord(stage, outcome string) {
	if pipelineRecordsTotal == nil {
		return
	}
	pipelineRecordsTotal.WithLabelValues(stage, outcome).Inc()
}

// ObserveStageRun increments the stage execution counter.
func ObserveStageRun(stage, status string) {
	if pipelineStageRunsTotal == nil {
		return
	}
	pipelineStageRunsTotal.WithLabelValues(stage, status).Inc()
}

// ObserveProviderCall records one provider call with its total duration.
func ObserveProviderCall(provider, outcome string, duration time.Duration) {
	if providerCallsTotal == nil {
		return
	}
	providerCallsTotal.WithLabelValues(provider, outcome).Inc()
	providerCallDurationSeconds.WithLabelValues(provider).Observe(duration.Seconds())
}

// ObserveCheckpointWrite increments the checkpoint write counter.
func ObserveCheckpointWrite() {
	if checkpointWritesTotal == nil {
		return
	}
	checkpointWritesTotal.Inc()
}
