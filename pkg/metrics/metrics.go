package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for pipeline runs.
type Metrics struct {
	RunsTotal        *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	StageRecords     *prometheus.GaugeVec
	DocumentsIndexed prometheus.Counter
	LastRunTimestamp *prometheus.GaugeVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "etl_runs_total",
			Help: "Completed pipeline runs by final state.",
		}, []string{"state"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "etl_stage_duration_seconds",
			Help:    "Duration of pipeline stages.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900},
		}, []string{"stage", "outcome"}),
		StageRecords: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "etl_stage_records",
			Help: "Records produced by the last successful execution of each stage.",
		}, []string{"stage"}),
		DocumentsIndexed: f.NewCounter(prometheus.CounterOpts{
			Name: "etl_documents_indexed_total",
			Help: "Documents accepted by the search index.",
		}),
		LastRunTimestamp: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "etl_last_run_timestamp_seconds",
			Help: "Unix time at which a run last finished, by final state.",
		}, []string{"state"}),
	}
}

// ObserveStage records one stage execution.
func (m *Metrics) ObserveStage(stage string, d time.Duration, records int, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.StageDuration.WithLabelValues(stage, outcome).Observe(d.Seconds())
	if err == nil {
		m.StageRecords.WithLabelValues(stage).Set(float64(records))
	}
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(state string, documents int, finished time.Time) {
	m.RunsTotal.WithLabelValues(state).Inc()
	m.LastRunTimestamp.WithLabelValues(state).Set(float64(finished.Unix()))
	if documents > 0 {
		m.DocumentsIndexed.Add(float64(documents))
	}
}
