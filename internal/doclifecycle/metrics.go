package doclifecycle

import "github.com/prometheus/client_golang/prometheus"

// metrics groups the prometheus collectors a Lifecycle registers, matching
// the package-struct-of-collectors style of internal/pushscheduler/metrics.go.
type metrics struct {
	fetchesTotal       prometheus.Counter
	fetchFailuresTotal prometheus.Counter
	fetchDuration      prometheus.Histogram
	consistencyRetries prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		fetchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hsm_doclifecycle_fetches_total",
			Help: "Total number of fetchDoc calls that returned a ready handle.",
		}),
		fetchFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hsm_doclifecycle_fetch_failures_total",
			Help: "Total number of fetchDoc calls that failed.",
		}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "hsm_doclifecycle_fetch_duration_seconds",
			Help: "Duration of fetchDoc calls, including any reconciliation work.",
		}),
		consistencyRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hsm_doclifecycle_consistency_retries_total",
			Help: "Total number of download/verify retries caused by a checksum mismatch.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.fetchesTotal, m.fetchFailuresTotal, m.fetchDuration, m.consistencyRetries)
	}
	return m
}
