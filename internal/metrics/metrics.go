package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder counts scheduling attempts per strategy in its own registry.
type Recorder struct {
	registry *prometheus.Registry
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
	matches  prometheus.Gauge
	playoffs prometheus.Gauge
}

// New creates a Recorder with a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "podsched",
			Name:      "strategy_attempts_total",
			Help:      "Scheduling strategy runs by outcome.",
		}, []string{"strategy", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "podsched",
			Name:      "strategy_duration_seconds",
			Help:      "Time spent in each scheduling strategy run.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"strategy"}),
		matches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "podsched",
			Name:      "scheduled_matches",
			Help:      "Matches placed by the last successful schedule.",
		}),
		playoffs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "podsched",
			Name:      "playoff_matches",
			Help:      "Matches in the last generated bracket.",
		}),
	}
	r.registry.MustRegister(r.attempts, r.duration, r.matches, r.playoffs)
	return r
}

// Attempt records one strategy run.
func (r *Recorder) Attempt(strategy string, ok bool, elapsed time.Duration) {
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	r.attempts.WithLabelValues(strategy, outcome).Inc()
	r.duration.WithLabelValues(strategy).Observe(elapsed.Seconds())
}

// Scheduled records how many matches the final schedule holds.
func (r *Recorder) Scheduled(n int) { r.matches.Set(float64(n)) }

// Bracket records how many playoff matches were generated.
func (r *Recorder) Bracket(n int) { r.playoffs.Set(float64(n)) }

// Registry exposes the underlying registry for gathering.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// WriteFile writes the metrics in the text exposition format, suitable for
// the node exporter's textfile collector.
func (r *Recorder) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}
