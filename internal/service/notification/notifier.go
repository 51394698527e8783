package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/metrics"
)

// Типы уведомлений в outbox.
const (
	EventOrderConfirmed     = "notification.order_confirmed"
	EventOrderStatusChanged = "notification.order_status_changed"

	aggregateOrder = "order"
)

// Payload — содержимое уведомления. Оформление (шаблоны, каналы) выполняется
// downstream-потребителем топика.
type Payload struct {
	OrderID    string `json:"order_id"`
	CustomerID string `json:"customer_id"`
	Status     string `json:"status"`
	Total      string `json:"total"`
	Currency   string `json:"currency"`
	Template   string `json:"template"`

	// InternalAlert помечает события, о которых нужно сообщить команде (отмена, возврат).
	InternalAlert bool      `json:"internal_alert"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// OutboxNotifier ставит уведомления в transactional outbox;
// доставку выполняет outbox worker.
type OutboxNotifier struct {
	outbox  domain.OutboxRepository
	metrics *metrics.OutboxMetrics
	logger  *log.Entry
	now     func() time.Time
}

// NewOutboxNotifier создаёт notifier поверх outbox.
func NewOutboxNotifier(outbox domain.OutboxRepository, m *metrics.OutboxMetrics, logger *log.Entry) *OutboxNotifier {
	if logger == nil {
		logger = log.New().WithField("component", "notifier")
	}
	return &OutboxNotifier{
		outbox:  outbox,
		metrics: m,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// NotifyOrderConfirmed ставит в очередь подтверждение заказа.
func (n *OutboxNotifier) NotifyOrderConfirmed(ctx context.Context, order domain.Order) error {
	return n.enqueue(ctx, EventOrderConfirmed, "order_confirmation", order)
}

// NotifyStatusChanged ставит в очередь уведомление о смене статуса.
func (n *OutboxNotifier) NotifyStatusChanged(ctx context.Context, order domain.Order) error {
	return n.enqueue(ctx, EventOrderStatusChanged, "order_status_update", order)
}

func (n *OutboxNotifier) enqueue(ctx context.Context, eventType, template string, order domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(Payload{
		OrderID:       order.ID,
		CustomerID:    order.CustomerID,
		Status:        string(order.Status),
		Total:         order.Total.StringFixed(2),
		Currency:      order.Currency,
		Template:      template,
		InternalAlert: order.Status == domain.OrderStatusCancelled || order.Status == domain.OrderStatusRefunded,
		OccurredAt:    n.now(),
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	msg, err := n.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: aggregateOrder,
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       payload,
	})
	if err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}

	if n.metrics != nil {
		n.metrics.RecordNotification(eventType)
	}
	n.logger.WithFields(log.Fields{
		"order_id":   order.ID,
		"outbox_id":  msg.ID,
		"event_type": eventType,
	}).Debug("notification enqueued")
	return nil
}

var _ domain.Notifier = (*OutboxNotifier)(nil)
