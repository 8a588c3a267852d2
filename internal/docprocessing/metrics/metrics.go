package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the extraction pipeline and profile evaluation.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Extraction outcomes by processor and result
	Extractions *prometheus.CounterVec

	// Vision/processor latency by processor
	ExtractionLatency *prometheus.HistogramVec

	// Jobs waiting for the sequential worker
	QueueDepth prometheus.Gauge

	// Recomputations by trigger
	Recomputations *prometheus.CounterVec

	// Latest compliance score distribution by overall status
	ComplianceScore *prometheus.HistogramVec
}

// New creates a new Metrics instance registered on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Extractions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "regdocs_extractions_total",
			Help: "Document extractions by processor and outcome",
		}, []string{"processor", "outcome"}), // outcome: "success", "failure", "discarded"

		ExtractionLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "regdocs_extraction_duration_seconds",
			Help:    "Duration of a single processor call",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}, []string{"processor"}),

		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "regdocs_extraction_queue_depth",
			Help: "Uploaded documents waiting for extraction",
		}),

		Recomputations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "regdocs_profile_recomputations_total",
			Help: "Profile and compliance recomputations by trigger",
		}, []string{"trigger"}),

		ComplianceScore: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "regdocs_compliance_score",
			Help:    "Compliance score after each recomputation",
			Buckets: []float64{0, 20, 40, 60, 80, 90, 99, 100},
		}, []string{"status"}),
	}
}

// IncrementExtraction records the outcome of one extraction.
func (m *Metrics) IncrementExtraction(processor, outcome string) {
	if m != nil {
		m.Extractions.WithLabelValues(processor, outcome).Inc()
	}
}

// ObserveExtractionLatency records how long a processor call took.
func (m *Metrics) ObserveExtractionLatency(processor string, d time.Duration) {
	if m != nil {
		m.ExtractionLatency.WithLabelValues(processor).Observe(d.Seconds())
	}
}

// SetQueueDepth records the number of queued jobs.
func (m *Metrics) SetQueueDepth(n int) {
	if m != nil {
		m.QueueDepth.Set(float64(n))
	}
}

// ObserveRecompute records a recomputation and its resulting score.
func (m *Metrics) ObserveRecompute(trigger, status string, score int) {
	if m != nil {
		m.Recomputations.WithLabelValues(trigger).Inc()
		m.ComplianceScore.WithLabelValues(status).Observe(float64(score))
	}
}
