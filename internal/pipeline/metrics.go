package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kiranshivaraju/incidentradar/internal/ai"
)

// Metrics holds Prometheus metrics for the triage pipeline.
type Metrics struct {
	StageCalls      *prometheus.CounterVec
	StageDuration   *prometheus.HistogramVec
	FallbacksTotal  *prometheus.CounterVec
	RecordsTotal    *prometheus.CounterVec
	ProcessDuration prometheus.Histogram
	BatchSize       prometheus.Histogram
	IndexBuilds     *prometheus.CounterVec
}

// NewMetrics registers and returns pipeline metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StageCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "radar_stage_calls_total",
			Help: "Generative stage calls by stage and result.",
		}, []string{"stage", "result"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "radar_stage_call_duration_seconds",
			Help:    "Duration of individual generative calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 0.25s .. ~32s
		}, []string{"stage"}),
		FallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "radar_stage_fallbacks_total",
			Help: "Stages that settled on their heuristic, by stage and reason.",
		}, []string{"stage", "reason"}),
		RecordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "radar_records_total",
			Help: "Records emitted by final status.",
		}, []string{"status"}),
		ProcessDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "radar_process_duration_seconds",
			Help:    "End-to-end duration of processing one incident.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms .. ~82s
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "radar_batch_size",
			Help:    "Incidents submitted per batch.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1 .. 512
		}),
		IndexBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "radar_index_builds_total",
			Help: "Retrieval index builds by final status.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		m.StageCalls,
		m.StageDuration,
		m.FallbacksTotal,
		m.RecordsTotal,
		m.ProcessDuration,
		m.BatchSize,
		m.IndexBuilds,
	)

	return m
}

// Hooks returns ai.Hooks that record every generative call and fallback.
func (m *Metrics) Hooks() ai.Hooks {
	if m == nil {
		return ai.Hooks{}
	}
	return ai.Hooks{
		OnCall: func(stage string, d time.Duration, err error) {
			result := "success"
			if err != nil {
				result = "error"
			}
			m.StageCalls.WithLabelValues(stage, result).Inc()
			m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
		},
		OnFallback: func(stage, reason string) {
			m.FallbacksTotal.WithLabelValues(stage, reason).Inc()
		},
	}
}

func (m *Metrics) observeRecord(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RecordsTotal.WithLabelValues(status).Inc()
	m.ProcessDuration.Observe(d.Seconds())
}

func (m *Metrics) observeBatch(n int) {
	if m == nil {
		return
	}
	m.BatchSize.Observe(float64(n))
}

func (m *Metrics) observeBuild(status string) {
	if m == nil {
		return
	}
	m.IndexBuilds.WithLabelValues(status).Inc()
}
