package pushscheduler

import "github.com/prometheus/client_golang/prometheus"

// metrics groups the prometheus collectors a Scheduler registers, in the
// GaugeVec/CounterVec-as-package-level-struct-fields style used throughout
// the pack's metrics packages.
type metrics struct {
	pushesTotal   prometheus.Counter
	failuresTotal prometheus.Counter
	inflightGauge prometheus.Gauge
	pushDuration  prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		pushesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hsm_pushscheduler_pushes_total",
			Help: "Total number of document pushes that completed successfully.",
		}),
		failuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hsm_pushscheduler_push_failures_total",
			Help: "Total number of push attempts that failed (including retried ones).",
		}),
		inflightGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hsm_pushscheduler_inflight_uploads",
			Help: "Number of document uploads currently in flight.",
		}),
		pushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "hsm_pushscheduler_push_duration_seconds",
			Help: "Duration of successful document pushes.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.pushesTotal, m.failuresTotal, m.inflightGauge, m.pushDuration)
	}
	return m
}
