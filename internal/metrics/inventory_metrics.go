package metrics

import "github.com/prometheus/client_golang/prometheus"

// InventoryMetrics считает операции резервирования склада.
type InventoryMetrics struct {
	reservations *prometheus.CounterVec
	releases     prometheus.Counter
	reservedQty  prometheus.Gauge
}

// NewInventoryMetrics регистрирует метрики склада в переданном реестре.
func NewInventoryMetrics(registerer prometheus.Registerer) *InventoryMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &InventoryMetrics{
		reservations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "fulfillment_inventory_reservations_total",
			Help: "Total number of reservation attempts by result",
		}, []string{"result"}),
		releases: registerCounter(registerer, prometheus.CounterOpts{
			Name: "fulfillment_inventory_releases_total",
			Help: "Total number of reservations released",
		}),
		reservedQty: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "fulfillment_inventory_reserved_units",
			Help: "Units currently held by active reservations",
		}),
	}
}

// RecordReserved фиксирует успешный резерв.
func (m *InventoryMetrics) RecordReserved(units int64) {
	m.reservations.WithLabelValues("reserved").Inc()
	m.reservedQty.Add(float64(units))
}

// RecordRejected фиксирует отказ в резерве.
func (m *InventoryMetrics) RecordRejected() {
	m.reservations.WithLabelValues("rejected").Inc()
}

// RecordReleased фиксирует снятие резерва.
func (m *InventoryMetrics) RecordReleased(units int64) {
	m.releases.Inc()
	m.reservedQty.Sub(float64(units))
}
