package jobs

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes job counters on a prometheus registry.
type Metrics struct {
	runs    *prometheus.CounterVec
	charges *prometheus.CounterVec
}

// NewMetrics registers job metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "subkit",
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Completed job runs by job name and outcome.",
		}, []string{"job", "status"}),
		charges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "subkit",
			Subsystem: "jobs",
			Name:      "charge_attempts_total",
			Help:      "Offline charge attempts by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.runs, m.charges)
	}
	return m
}

func (m *Metrics) runFinished(job string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.runs.WithLabelValues(job, status).Inc()
}

func (m *Metrics) chargeAttempt(result string) {
	if m == nil {
		return
	}
	m.charges.WithLabelValues(result).Inc()
}
