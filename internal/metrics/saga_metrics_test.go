package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	var m dto.Metric
	if err := (<-ch).Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	case m.Histogram != nil:
		return float64(m.Histogram.GetSampleCount())
	}
	t.Fatal("unsupported metric type")
	return 0
}

func TestSagaMetrics_Lifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSagaMetricsWithRegisterer(reg)

	m.RecordSagaStarted()
	if got := counterValue(t, m.activeSagas); got != 1 {
		t.Fatalf("expected 1 active saga, got %v", got)
	}

	m.RecordStepDuration("reserve", 10*time.Millisecond)
	m.RecordSagaCompleted()
	m.RecordSagaFinished(50 * time.Millisecond)

	if got := counterValue(t, m.sagaStarted); got != 1 {
		t.Fatalf("expected started=1, got %v", got)
	}
	if got := counterValue(t, m.sagaCompleted); got != 1 {
		t.Fatalf("expected completed=1, got %v", got)
	}
	if got := counterValue(t, m.activeSagas); got != 0 {
		t.Fatalf("expected 0 active sagas, got %v", got)
	}
	if got := counterValue(t, m.sagaDuration); got != 1 {
		t.Fatalf("expected one duration sample, got %v", got)
	}
	if got := counterValue(t, m.stepDuration.WithLabelValues("reserve").(prometheus.Histogram)); got != 1 {
		t.Fatalf("expected one step sample, got %v", got)
	}
}

func TestSagaMetrics_FailuresAndCompensations(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSagaMetricsWithRegisterer(reg)

	m.RecordSagaFailed("payment_failed")
	m.RecordSagaFailed("payment_failed")
	m.RecordCompensation("release")
	m.RecordCompensationFailure("refund")
	m.RecordSagaCanceled()
	m.RecordSagaRefunded()

	if got := counterValue(t, m.sagaFailed.WithLabelValues("payment_failed")); got != 2 {
		t.Fatalf("expected failed=2, got %v", got)
	}
	if got := counterValue(t, m.sagaCompensated.WithLabelValues("release")); got != 1 {
		t.Fatalf("expected compensations=1, got %v", got)
	}
	if got := counterValue(t, m.compensationErr.WithLabelValues("refund")); got != 1 {
		t.Fatalf("expected compensation failures=1, got %v", got)
	}
	if got := counterValue(t, m.sagaCanceled); got != 1 {
		t.Fatalf("expected canceled=1, got %v", got)
	}
	if got := counterValue(t, m.sagaRefunded); got != 1 {
		t.Fatalf("expected refunded=1, got %v", got)
	}
}

func TestSagaMetrics_ReRegistrationReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewSagaMetricsWithRegisterer(reg)
	second := NewSagaMetricsWithRegisterer(reg)

	first.RecordSagaCompleted()
	second.RecordSagaCompleted()

	if got := counterValue(t, first.sagaCompleted); got != 2 {
		t.Fatalf("expected shared counter value 2, got %v", got)
	}
}

func TestInventoryMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewInventoryMetrics(reg)

	m.RecordReserved(5)
	m.RecordRejected()
	m.RecordReleased(3)

	if got := counterValue(t, m.reservations.WithLabelValues("reserved")); got != 1 {
		t.Fatalf("expected reserved=1, got %v", got)
	}
	if got := counterValue(t, m.reservations.WithLabelValues("rejected")); got != 1 {
		t.Fatalf("expected rejected=1, got %v", got)
	}
	if got := counterValue(t, m.reservedQty); got != 2 {
		t.Fatalf("expected 2 reserved units, got %v", got)
	}
}
