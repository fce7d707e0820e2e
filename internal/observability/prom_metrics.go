package observability

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"smart-garden/internal/engine"
	"smart-garden/internal/models"
)

// Error kinds counted by garden_decision_errors_total
const (
	ErrorInvalidInput     = "invalid_input"
	ErrorModelUnavailable = "model_unavailable"
	ErrorModelFailure     = "model_failure"
	ErrorUnknownZone      = "unknown_zone"
	ErrorStore            = "store"
	ErrorPublish          = "publish"
)

// PromMetrics implements engine.Observer on top of Prometheus collectors
type PromMetrics struct {
	decisions *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	lastWater *prometheus.GaugeVec
}

// NewPromMetrics creates the collectors and registers them with reg
func NewPromMetrics(reg prometheus.Registerer) *PromMetrics {
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "garden_decisions_total",
		Help: "Irrigation decisions by outcome.",
	}, []string{"decision"})
	errs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "garden_decision_errors_total",
		Help: "Requests that did not produce a decision, and side-effect failures.",
	}, []string{"kind"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "garden_model_latency_seconds",
		Help:    "Time spent in a single model prediction.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
	}, []string{"model"})
	lastWater := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "garden_last_water_timestamp_seconds",
		Help: "Unix time of the last WATER decision per zone.",
	}, []string{"zone"})

	reg.MustRegister(decisions, errs, latency, lastWater)

	return &PromMetrics{
		decisions: decisions,
		errors:    errs,
		latency:   latency,
		lastWater: lastWater,
	}
}

// ObserveModel records one prediction latency
func (p *PromMetrics) ObserveModel(model string, elapsed time.Duration) {
	p.latency.WithLabelValues(model).Observe(elapsed.Seconds())
}

// ObserveDecision counts the outcome and tracks the zone's last watering
func (p *PromMetrics) ObserveDecision(zone string, d models.Decision) {
	p.decisions.WithLabelValues(string(d.Decision)).Inc()
	if d.Decision == models.DecisionWater && !d.DecidedAt.IsZero() {
		p.lastWater.WithLabelValues(zone).Set(float64(d.DecidedAt.Unix()))
	}
}

// IncError counts a failure of the given kind
func (p *PromMetrics) IncError(kind string) {
	p.errors.WithLabelValues(kind).Inc()
}

// ErrorKind maps a Decide error to its garden_decision_errors_total label
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, engine.ErrModelUnavailable):
		return ErrorModelUnavailable
	case errors.Is(err, engine.ErrModelFailure):
		return ErrorModelFailure
	case errors.Is(err, models.ErrInvalidReading):
		return ErrorInvalidInput
	case errors.Is(err, engine.ErrUnknownZone):
		return ErrorUnknownZone
	default:
		return ErrorModelFailure
	}
}
