package importer

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/resilience"
)

// Metrics holds the Prometheus collectors of the import pipeline.
type Metrics struct {
	DocumentsTotal   *prometheus.CounterVec
	OCRDuration      *prometheus.HistogramVec
	ConfidenceScore  prometheus.Histogram
	CommitsTotal     *prometheus.CounterVec
	EntitiesCreated  *prometheus.CounterVec
	ActiveBatches    prometheus.Gauge
	OCRCircuitState  prometheus.Gauge
	OCRFailureStreak prometheus.Gauge
	LookupRetries    prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DocumentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "policy_import_documents_total",
				Help: "Documents processed by outcome (extracted, empty, ocr_failed, cancelled).",
			},
			[]string{"outcome"},
		),
		OCRDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "policy_import_ocr_duration_seconds",
				Help:    "OCR call latency in seconds, including retries.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"status"},
		),
		ConfidenceScore: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "policy_import_confidence_score",
				Help:    "Confidence score of extracted records.",
				Buckets: []float64{10, 30, 50, 70, 80, 90, 95, 100},
			},
		),
		CommitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "policy_import_commits_total",
				Help: "Committed batch items by status and error kind.",
			},
			[]string{"status", "kind"},
		),
		EntitiesCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "policy_import_entities_created_total",
				Help: "Catalog entities created during commit, and reuses within a batch.",
			},
			[]string{"entity", "result"},
		),
		ActiveBatches: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "policy_import_active_batches",
				Help: "Batches currently held in memory.",
			},
		),
		OCRCircuitState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "policy_import_ocr_circuit_state",
				Help: "OCR circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
		),
		OCRFailureStreak: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "policy_import_ocr_consecutive_failures",
				Help: "Consecutive OCR failures counted by the circuit breaker.",
			},
		),
		LookupRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "policy_import_lookup_retries_total",
				Help: "Catalog lookups retried after a transient store error.",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.DocumentsTotal,
			m.OCRDuration,
			m.ConfidenceScore,
			m.CommitsTotal,
			m.EntitiesCreated,
			m.ActiveBatches,
			m.OCRCircuitState,
			m.OCRFailureStreak,
			m.LookupRetries,
		)
	}
	return m
}

func (m *Metrics) observeCircuit(_, to resilience.CircuitState) {
	m.OCRCircuitState.Set(float64(to))
}
