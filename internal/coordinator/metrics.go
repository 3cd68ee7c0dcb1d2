package coordinator

import "github.com/prometheus/client_golang/prometheus"

// metrics groups the prometheus collectors a Registry/HealthMonitor pair
// registers, matching the package-struct-of-collectors style used
// throughout the pack's metrics packages (cuemby-warren/pkg/metrics).
type metrics struct {
	workersRegistered prometheus.Gauge
	assignmentsTotal  prometheus.Counter
	unhealthyTotal    prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		workersRegistered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hsm_coordinator_workers_registered",
			Help: "Number of workers currently registered with the coordinator.",
		}),
		assignmentsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hsm_coordinator_assignment_queries_total",
			Help: "Total number of document assignment lookups served.",
		}),
		unhealthyTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hsm_coordinator_worker_unhealthy_total",
			Help: "Total number of times a worker crossed into the unhealthy state.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.workersRegistered, m.assignmentsTotal, m.unhealthyTotal)
	}
	return m
}
