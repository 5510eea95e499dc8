// Package metrics defines the Prometheus collectors of the intake service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors groups the intake metrics. A nil *Collectors records nothing.
type Collectors struct {
	Turns         *prometheus.CounterVec
	StageAdvances *prometheus.CounterVec
	Rewrites      *prometheus.CounterVec
	TurnDuration  prometheus.Histogram
	InFlight      prometheus.Gauge
}

// NewCollectors registers the intake collectors on reg.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	factory := promauto.With(reg)

	return &Collectors{
		Turns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hire_intake_turns_total",
				Help: "Total number of processed turns by stored stage",
			},
			[]string{"stage"},
		),
		StageAdvances: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hire_intake_stage_advances_total",
				Help: "Total number of stage transitions",
			},
			[]string{"from", "to"},
		),
		Rewrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hire_intake_rewrite_total",
				Help: "Total number of reply rewrite attempts by outcome",
			},
			[]string{"outcome"},
		),
		TurnDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "hire_intake_turn_duration_seconds",
				Help:    "Duration of turn processing in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		InFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "hire_intake_turns_in_flight",
				Help: "Number of turns currently being processed",
			},
		),
	}
}

// ObserveTurn records a finished turn.
func (c *Collectors) ObserveTurn(from, to string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Turns.WithLabelValues(to).Inc()
	if from != to {
		c.StageAdvances.WithLabelValues(from, to).Inc()
	}
	c.TurnDuration.Observe(elapsed.Seconds())
}

// ObserveRewrite records the outcome of a rewrite attempt.
func (c *Collectors) ObserveRewrite(outcome string) {
	if c == nil {
		return
	}
	c.Rewrites.WithLabelValues(outcome).Inc()
}

// TrackInFlight increments the in-flight gauge and returns its decrement.
func (c *Collectors) TrackInFlight() func() {
	if c == nil {
		return func() {}
	}
	c.InFlight.Inc()
	return c.InFlight.Dec
}
