package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for snippet runs
type Metrics struct {
	RunsTotal       *prometheus.CounterVec
	ViolationsTotal *prometheus.CounterVec
	RunDuration     *prometheus.HistogramVec
	OrphanedWorkers prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. A nil
// registerer leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snippetbox_runs_total",
				Help: "Total number of snippet runs by outcome",
			},
			[]string{"outcome"},
		),
		ViolationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snippetbox_policy_violations_total",
				Help: "Total number of snippets rejected by the policy checker, by violation kind",
			},
			[]string{"kind"},
		),
		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "snippetbox_run_duration_seconds",
				Help:    "Wall-clock duration of snippet runs",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"outcome"},
		),
		OrphanedWorkers: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "snippetbox_orphaned_workers",
				Help: "Workers abandoned after a timeout that have not exited yet",
			},
		),
	}
}
