// Package metrics exposes Prometheus collectors for the client.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the collectors of one client. Each client registers its own
// set, so several clients may share a registry only with distinct
// namespaces.
type Metrics struct {
	queryDuration *prometheus.HistogramVec
	queryErrors   *prometheus.CounterVec
	transactions  *prometheus.CounterVec
	cacheRequests *prometheus.CounterVec
}

// New creates the collectors under namespace and registers them with reg.
// A nil reg leaves them unregistered.
func New(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Duration of client operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"model", "action"}),
		queryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "errors_total",
			Help:      "Failed client operations by error code.",
		}, []string{"model", "action", "code"}),
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transaction",
			Name:      "total",
			Help:      "Finished transactions by kind and outcome.",
		}, []string{"kind", "outcome"}),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "Read cache lookups by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		for _, c := range m.Collectors() {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// Collectors returns every collector, for custom registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.queryDuration, m.queryErrors, m.transactions, m.cacheRequests}
}

// ObserveQuery records one operation. code is empty on success.
func (m *Metrics) ObserveQuery(model, action string, d time.Duration, code string) {
	if m == nil {
		return
	}
	m.queryDuration.WithLabelValues(model, action).Observe(d.Seconds())
	if code != "" {
		m.queryErrors.WithLabelValues(model, action, code).Inc()
	}
}

// ObserveTransaction records a finished transaction. kind is "batch" or
// "interactive"; outcome is "commit", "rollback", "timeout" or "max_wait".
func (m *Metrics) ObserveTransaction(kind, outcome string) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(kind, outcome).Inc()
}

// ObserveCache records a cache lookup.
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheRequests.WithLabelValues(result).Inc()
}
