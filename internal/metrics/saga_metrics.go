package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SagaMetrics содержит метрики оркестратора заказов.
type SagaMetrics struct {
	sagaStarted     prometheus.Counter
	sagaCompleted   prometheus.Counter
	sagaFailed      *prometheus.CounterVec
	sagaCompensated *prometheus.CounterVec
	sagaCanceled    prometheus.Counter
	sagaRefunded    prometheus.Counter
	compensationErr *prometheus.CounterVec

	sagaDuration prometheus.Histogram
	stepDuration *prometheus.HistogramVec

	activeSagas prometheus.Gauge
}

// NewSagaMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewSagaMetrics() *SagaMetrics {
	return NewSagaMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewSagaMetricsWithRegisterer регистрирует метрики в переданном реестре.
func NewSagaMetricsWithRegisterer(registerer prometheus.Registerer) *SagaMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &SagaMetrics{
		sagaStarted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "fulfillment_saga_started_total",
			Help: "Total number of order creation sagas started",
		}),
		sagaCompleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "fulfillment_saga_completed_total",
			Help: "Total number of orders confirmed",
		}),
		sagaFailed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "fulfillment_saga_failed_total",
			Help: "Total number of failed sagas by error kind",
		}, []string{"reason"}),
		sagaCompensated: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "fulfillment_saga_compensations_total",
			Help: "Total number of compensation actions executed by step",
		}, []string{"step"}),
		sagaCanceled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "fulfillment_saga_canceled_total",
			Help: "Total number of orders cancelled",
		}),
		sagaRefunded: registerCounter(registerer, prometheus.CounterOpts{
			Name: "fulfillment_saga_refunded_total",
			Help: "Total number of refunds issued by the orchestrator",
		}),
		compensationErr: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "fulfillment_saga_compensation_failures_total",
			Help: "Total number of failed compensation actions by step",
		}, []string{"step"}),
		sagaDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "fulfillment_saga_duration_seconds",
			Help:    "Duration of order creation sagas in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		stepDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "fulfillment_saga_step_duration_seconds",
			Help:    "Duration of individual saga steps in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"step"}),
		activeSagas: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "fulfillment_active_sagas",
			Help: "Number of sagas currently in flight",
		}),
	}
}

// RecordSagaStarted увеличивает счётчик запущенных саг и число активных.
func (m *SagaMetrics) RecordSagaStarted() {
	m.sagaStarted.Inc()
	m.activeSagas.Inc()
}

// RecordSagaFinished уменьшает число активных саг и записывает длительность.
func (m *SagaMetrics) RecordSagaFinished(duration time.Duration) {
	m.activeSagas.Dec()
	m.sagaDuration.Observe(duration.Seconds())
}

// RecordSagaCompleted увеличивает счётчик подтверждённых заказов.
func (m *SagaMetrics) RecordSagaCompleted() {
	m.sagaCompleted.Inc()
}

// RecordSagaFailed увеличивает счётчик неудачных саг с причиной.
func (m *SagaMetrics) RecordSagaFailed(reason string) {
	m.sagaFailed.WithLabelValues(reason).Inc()
}

// RecordCompensation фиксирует выполненную компенсацию.
func (m *SagaMetrics) RecordCompensation(step string) {
	m.sagaCompensated.WithLabelValues(step).Inc()
}

// RecordCompensationFailure фиксирует неуспешную компенсацию.
func (m *SagaMetrics) RecordCompensationFailure(step string) {
	m.compensationErr.WithLabelValues(step).Inc()
}

// RecordSagaCanceled увеличивает счётчик отменённых заказов.
func (m *SagaMetrics) RecordSagaCanceled() {
	m.sagaCanceled.Inc()
}

// RecordSagaRefunded увеличивает счётчик возвратов.
func (m *SagaMetrics) RecordSagaRefunded() {
	m.sagaRefunded.Inc()
}

// RecordStepDuration записывает время выполнения шага саги.
func (m *SagaMetrics) RecordStepDuration(step string, duration time.Duration) {
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}
