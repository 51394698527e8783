package notification_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/metrics"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/notification"
	"github.com/vladislavdragonenkov/fulfillment/internal/storage/memory"
)

func newNotifier() (*memory.OutboxRepository, *notification.OutboxNotifier) {
	repo := memory.NewOutboxRepository()
	return repo, notification.NewOutboxNotifier(repo, metrics.NewOutboxMetrics(prometheus.NewRegistry()), nil)
}

func order(status domain.OrderStatus) domain.Order {
	return domain.Order{
		ID:         "order-1",
		CustomerID: "C1",
		Total:      decimal.RequireFromString("22"),
		Currency:   "usd",
		Status:     status,
	}
}

func decodeOnly(t *testing.T, repo *memory.OutboxRepository) (domain.OutboxMessage, notification.Payload) {
	t.Helper()
	pending := repo.AllPending()
	if len(pending) != 1 {
		t.Fatalf("expected 1 outbox message, got %d", len(pending))
	}
	var payload notification.Payload
	if err := json.Unmarshal(pending[0].Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	return pending[0], payload
}

func TestNotifyOrderConfirmed(t *testing.T) {
	repo, notifier := newNotifier()

	if err := notifier.NotifyOrderConfirmed(context.Background(), order(domain.OrderStatusConfirmed)); err != nil {
		t.Fatalf("notify failed: %v", err)
	}

	msg, payload := decodeOnly(t, repo)
	if msg.EventType != notification.EventOrderConfirmed || msg.AggregateID != "order-1" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if payload.Total != "22.00" || payload.InternalAlert {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestNotifyStatusChanged_InternalAlert(t *testing.T) {
	cases := []struct {
		status domain.OrderStatus
		alert  bool
	}{
		{domain.OrderStatusShipped, false},
		{domain.OrderStatusCancelled, true},
		{domain.OrderStatusRefunded, true},
	}

	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			repo, notifier := newNotifier()
			if err := notifier.NotifyStatusChanged(context.Background(), order(tc.status)); err != nil {
				t.Fatalf("notify failed: %v", err)
			}
			msg, payload := decodeOnly(t, repo)
			if msg.EventType != notification.EventOrderStatusChanged {
				t.Fatalf("unexpected event type %s", msg.EventType)
			}
			if payload.InternalAlert != tc.alert {
				t.Fatalf("expected internal_alert=%v, got %v", tc.alert, payload.InternalAlert)
			}
		})
	}
}

func TestNotify_CancelledContext(t *testing.T) {
	repo, notifier := newNotifier()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := notifier.NotifyOrderConfirmed(ctx, order(domain.OrderStatusConfirmed)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(repo.AllPending()) != 0 {
		t.Fatal("nothing must be enqueued for cancelled context")
	}
}
