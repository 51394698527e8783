package inventory

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/metrics"
	"github.com/vladislavdragonenkov/fulfillment/internal/storage/memory"
)

func newTestLedger(audit domain.AuditRecorder) *Ledger {
	l := NewLedger(
		WithAuditRecorder(audit),
		WithMetrics(metrics.NewInventoryMetrics(prometheus.NewRegistry())),
	)
	l.SetStock("P1", 10)
	l.SetStock("P2", 3)
	return l
}

func TestLedger_ReserveDecrementsStock(t *testing.T) {
	audit := memory.NewAuditRepository()
	l := newTestLedger(audit)

	res, err := l.Reserve(context.Background(), "order-1", []domain.ReservationItem{{ProductID: "P1", Quantity: 4}, {ProductID: "P2", Quantity: 1}})
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if !res.Reserved || res.ReservationID == "" {
		t.Fatalf("expected successful reservation, got %+v", res)
	}

	if got, _ := l.Available("P1"); got != 6 {
		t.Fatalf("expected P1 stock 6, got %d", got)
	}
	if got, _ := l.Available("P2"); got != 2 {
		t.Fatalf("expected P2 stock 2, got %d", got)
	}

	stored, ok := l.Reservation(res.ReservationID)
	if !ok || stored.OrderID != "order-1" || stored.Status != domain.ReservationStatusActive {
		t.Fatalf("unexpected reservation: %+v", stored)
	}

	entries, _ := audit.List(context.Background(), res.ReservationID)
	if len(entries) != 1 || entries[0].EventType != domain.AuditInventoryReserved {
		t.Fatalf("expected inventory_reserved audit entry, got %+v", entries)
	}
}

func TestLedger_AllOrNothing(t *testing.T) {
	l := newTestLedger(nil)

	res, err := l.Reserve(context.Background(), "order-1", []domain.ReservationItem{
		{ProductID: "P1", Quantity: 5},
		{ProductID: "P2", Quantity: 4},
		{ProductID: "P9", Quantity: 1},
	})
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if res.Reserved {
		t.Fatal("expected rejected reservation")
	}
	if len(res.Failures) != 2 {
		t.Fatalf("expected 2 failures, got %+v", res.Failures)
	}
	if res.Failures[0].ProductID != "P2" || res.Failures[0].Reason != domain.StockFailureInsufficient || res.Failures[0].Available != 3 {
		t.Fatalf("unexpected first failure: %+v", res.Failures[0])
	}
	if res.Failures[1].ProductID != "P9" || res.Failures[1].Reason != domain.StockFailureProductNotFound {
		t.Fatalf("unexpected second failure: %+v", res.Failures[1])
	}

	if got, _ := l.Available("P1"); got != 10 {
		t.Fatalf("P1 stock must be untouched, got %d", got)
	}
}

func TestLedger_DuplicateItemsAreSummed(t *testing.T) {
	l := newTestLedger(nil)

	res, err := l.Reserve(context.Background(), "", []domain.ReservationItem{{ProductID: "P2", Quantity: 2}, {ProductID: "P2", Quantity: 2}})
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if res.Reserved {
		t.Fatal("expected rejection: 4 units requested, 3 available")
	}
	if res.Failures[0].Requested != 4 {
		t.Fatalf("expected aggregated request of 4, got %d", res.Failures[0].Requested)
	}
}

func TestLedger_ReleaseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(nil)

	res, err := l.Reserve(ctx, "order-1", []domain.ReservationItem{{ProductID: "P1", Quantity: 4}})
	if err != nil || !res.Reserved {
		t.Fatalf("reserve failed: %v %+v", err, res)
	}

	for i := 0; i < 3; i++ {
		if err := l.Release(ctx, res.ReservationID); err != nil {
			t.Fatalf("release #%d failed: %v", i+1, err)
		}
	}
	if got, _ := l.Available("P1"); got != 10 {
		t.Fatalf("expected stock restored exactly once, got %d", got)
	}

	if err := l.Release(ctx, "unknown"); err != nil {
		t.Fatalf("release of unknown reservation must be a no-op, got %v", err)
	}

	stored, _ := l.Reservation(res.ReservationID)
	if stored.Status != domain.ReservationStatusReleased {
		t.Fatalf("expected released status, got %s", stored.Status)
	}
}

func TestLedger_ReserveIsIdempotentPerOrder(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(nil)
	items := []domain.ReservationItem{{ProductID: "P1", Quantity: 4}}

	first, _ := l.Reserve(ctx, "order-1", items)
	second, _ := l.Reserve(ctx, "order-1", items)
	if first.ReservationID != second.ReservationID {
		t.Fatalf("expected same reservation, got %s and %s", first.ReservationID, second.ReservationID)
	}
	if got, _ := l.Available("P1"); got != 6 {
		t.Fatalf("expected single decrement, got stock %d", got)
	}

	if err := l.ReleaseByOrder(ctx, "order-1"); err != nil {
		t.Fatalf("release by order failed: %v", err)
	}
	if got, _ := l.Available("P1"); got != 10 {
		t.Fatalf("expected restored stock, got %d", got)
	}
	if err := l.ReleaseByOrder(ctx, "order-1"); err != nil {
		t.Fatalf("second release by order failed: %v", err)
	}
}

func TestLedger_RejectsInvalidItems(t *testing.T) {
	l := newTestLedger(nil)

	if _, err := l.Reserve(context.Background(), "order-1", nil); err == nil {
		t.Fatal("expected error for empty items")
	}
	if _, err := l.Reserve(context.Background(), "order-1", []domain.ReservationItem{{ProductID: "P1", Quantity: 0}}); err == nil {
		t.Fatal("expected error for zero quantity")
	}
}

func TestLedger_ConcurrentReservationsNeverOversell(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	l.SetStock("A", 50)
	l.SetStock("B", 50)

	var (
		wg       sync.WaitGroup
		reserved atomic.Int32
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			items := []domain.ReservationItem{{ProductID: "A", Quantity: 1}, {ProductID: "B", Quantity: 1}}
			if i%2 == 1 {
				items[0], items[1] = items[1], items[0]
			}
			res, err := l.Reserve(ctx, "", items)
			if err != nil {
				t.Errorf("reserve failed: %v", err)
				return
			}
			if res.Reserved {
				reserved.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if reserved.Load() != 50 {
		t.Fatalf("expected exactly 50 successful reservations, got %d", reserved.Load())
	}
	a, _ := l.Available("A")
	b, _ := l.Available("B")
	if a != 0 || b != 0 {
		t.Fatalf("expected stock exhausted, got A=%d B=%d", a, b)
	}
}

func TestLedger_OverflowingDuplicateLinesAreRejected(t *testing.T) {
	l := NewLedger()
	l.SetStock("P1", 5)
	l.SetStock("P2", math.MaxInt32)

	res, err := l.Reserve(context.Background(), "order-big", []domain.ReservationItem{
		{ProductID: "P1", Quantity: math.MaxInt32},
		{ProductID: "P1", Quantity: math.MaxInt32},
		{ProductID: "P2", Quantity: math.MaxInt32},
		{ProductID: "P2", Quantity: 1},
	})
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if res.Reserved {
		t.Fatal("overflowing demand must not be reserved")
	}
	if len(res.Failures) != 2 {
		t.Fatalf("expected failures for P1 and P2, got %+v", res.Failures)
	}
	for _, f := range res.Failures {
		if f.Reason != domain.StockFailureInsufficient || f.Requested != math.MaxInt32 {
			t.Fatalf("unexpected failure: %+v", f)
		}
	}

	if got, _ := l.Available("P1"); got != 5 {
		t.Fatalf("P1 stock must stay 5, got %d", got)
	}
	if got, _ := l.Available("P2"); got != math.MaxInt32 {
		t.Fatalf("P2 stock must stay untouched, got %d", got)
	}
}
