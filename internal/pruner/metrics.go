package pruner

import "github.com/prometheus/client_golang/prometheus"

// metrics groups the prometheus collectors a Pruner registers, matching
// the package-struct-of-collectors style of internal/pushscheduler/metrics.go.
type metrics struct {
	runsTotal     prometheus.Counter
	removedTotal  prometheus.Counter
	failuresTotal prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		runsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hsm_pruner_runs_total",
			Help: "Total number of retention passes executed.",
		}),
		removedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hsm_pruner_snapshots_removed_total",
			Help: "Total number of snapshots removed by retention passes.",
		}),
		failuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hsm_pruner_failures_total",
			Help: "Total number of retention passes that failed to list or remove snapshots.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.runsTotal, m.removedTotal, m.failuresTotal)
	}
	return m
}
