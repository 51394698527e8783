package metrics

import "github.com/prometheus/client_golang/prometheus"

// IdempotencyMetrics описывает очистку просроченных idempotency-key.
type IdempotencyMetrics struct {
	cleanupRuns *prometheus.CounterVec
	deleted     prometheus.Counter
	lastDeleted prometheus.Gauge
}

func NewIdempotencyMetrics(registerer prometheus.Registerer) *IdempotencyMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &IdempotencyMetrics{
		cleanupRuns: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "fulfillment_idempotency_cleanup_runs_total",
			Help: "Total number of idempotency cleanup runs grouped by result",
		}, []string{"result"}),
		deleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "fulfillment_idempotency_cleanup_deleted_total",
			Help: "Total number of deleted expired idempotency keys",
		}),
		lastDeleted: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "fulfillment_idempotency_cleanup_last_deleted",
			Help: "Number of keys deleted during the last cleanup run",
		}),
	}
}

// RecordRun фиксирует завершение цикла очистки.
func (m *IdempotencyMetrics) RecordRun(result string, deleted int) {
	m.cleanupRuns.WithLabelValues(result).Inc()
	if result == "ok" {
		m.lastDeleted.Set(float64(deleted))
	}
}

// RecordDeleted увеличивает счётчик удалённых ключей.
func (m *IdempotencyMetrics) RecordDeleted(n int) {
	m.deleted.Add(float64(n))
}
