package engine

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/medsim/case-eval/grader/report"
)

// Evaluation outcome labels.
const (
	OutcomeOK                  = "ok"
	OutcomeConfigError         = "config_error"
	OutcomeClassificationError = "classification_error"
	OutcomeInvalidInput        = "invalid_input"
)

// Metrics exposes Prometheus collectors that report evaluator activity.
type Metrics struct {
	evaluations    *prometheus.CounterVec
	composites     *prometheus.HistogramVec
	dimensionScore *prometheus.CounterVec
	zeroOverrides  prometheus.Counter
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// Registering the same collectors twice reuses the existing ones; any other
// registration error panics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "case_eval",
				Subsystem: "engine",
				Name:      "evaluations_total",
				Help:      "Evaluation runs by outcome.",
			},
			[]string{"outcome"},
		),
		composites: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "case_eval",
				Subsystem: "engine",
				Name:      "composite_score",
				Help:      "Clamped composite scores of successful runs.",
				Buckets:   []float64{0, 1, 2, 3, 4, 5},
			},
			[]string{"composite"},
		),
		dimensionScore: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "case_eval",
				Subsystem: "engine",
				Name:      "dimension_points_total",
				Help:      "Selected point values per dimension.",
			},
			[]string{"dimension", "points"},
		),
		zeroOverrides: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "case_eval",
				Subsystem: "engine",
				Name:      "zero_override_total",
				Help:      "Runs whose composites were forced to zero for lack of clinical action units.",
			},
		),
	}

	for _, collector := range []prometheus.Collector{m.evaluations, m.composites, m.dimensionScore, m.zeroOverrides} {
		if err := reg.Register(collector); err != nil {
			already, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				panic(err)
			}
			switch existing := already.ExistingCollector.(type) {
			case *prometheus.HistogramVec:
				m.composites = existing
			case prometheus.Counter:
				m.zeroOverrides = existing
			case *prometheus.CounterVec:
				if collector == prometheus.Collector(m.evaluations) {
					m.evaluations = existing
				} else {
					m.dimensionScore = existing
				}
			}
		}
	}
	return m
}

// observeOutcome counts one finished run.
func (m *Metrics) observeOutcome(outcome string) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(outcome).Inc()
}

// observeReport records the scores of a successful run.
func (m *Metrics) observeReport(r *report.ScoreReport) {
	if m == nil || r == nil {
		return
	}
	m.composites.WithLabelValues("communication").Observe(float64(r.CommunicationScore))
	m.composites.WithLabelValues("medical_decision_making").Observe(float64(r.MDMScore))
	for dim, res := range r.Dimensions {
		m.dimensionScore.WithLabelValues(string(dim), strconv.Itoa(res.Points)).Inc()
	}
	if r.ZeroOverride {
		m.zeroOverrides.Inc()
	}
}
