package saga

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/fulfillment/internal/metrics"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/pricing"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/validation"
)

// OrderValidator проверяет входные данные заказа.
type OrderValidator interface {
	Validate(ctx context.Context, customerID string, items []domain.ItemRequest, shippingAddress string) (validation.Result, error)
}

// PriceQuoter рассчитывает стоимость позиций.
type PriceQuoter interface {
	Quote(ctx context.Context, items []domain.ItemRequest) (pricing.Quote, error)
}

// EventPublisher публикует события жизненного цикла саги (например, *kafka.Producer).
type EventPublisher interface {
	PublishEvent(topic string, key string, event any) error
}

// CompensationQueue принимает заказы, компенсации которых нужно повторить.
type CompensationQueue interface {
	Enqueue(orderID string)
}

// Dependencies — коллабораторы оркестратора. Events, Metrics, Redriver и Logger опциональны.
type Dependencies struct {
	Validator OrderValidator
	Pricing   PriceQuoter
	Inventory domain.InventoryService
	Payments  domain.PaymentService
	Orders    domain.OrderRepository
	Audit     domain.AuditRecorder
	Notifier  domain.Notifier

	Events   EventPublisher
	Metrics  *metrics.SagaMetrics
	Redriver CompensationQueue
	Logger   *log.Entry
}

// CreateOrderRequest — входные данные для оформления заказа.
type CreateOrderRequest struct {
	CustomerID      string
	Items           []domain.ItemRequest
	ShippingAddress string
}

// Orchestrator выполняет сагу оформления заказа и компенсации при отмене.
// Каждый вызов работает только со своими локальными переменными, блокировок нет.
type Orchestrator struct {
	validator OrderValidator
	pricing   PriceQuoter
	inventory domain.InventoryService
	payments  domain.PaymentService
	orders    domain.OrderRepository
	audit     domain.AuditRecorder
	notifier  domain.Notifier
	events    EventPublisher
	metrics   *metrics.SagaMetrics
	redriver  CompensationQueue
	logger    *log.Entry

	cfg Config
	now func() time.Time
	ids func() string

	// onTransition вызывается при смене состояния саги (для тестов).
	onTransition func(orderID string, state State)
}

// NewOrchestrator создаёт оркестратор.
func NewOrchestrator(deps Dependencies, cfg Config) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = log.New().WithField("component", "saga")
	}
	return &Orchestrator{
		validator: deps.Validator,
		pricing:   deps.Pricing,
		inventory: deps.Inventory,
		payments:  deps.Payments,
		orders:    deps.Orders,
		audit:     deps.Audit,
		notifier:  deps.Notifier,
		events:    deps.Events,
		metrics:   deps.Metrics,
		redriver:  deps.Redriver,
		logger:    logger,
		cfg:       cfg.withDefaults(),
		now:       func() time.Time { return time.Now().UTC() },
		ids:       uuid.NewString,
	}
}

// SetCompensationQueue подключает очередь повторных компенсаций после создания оркестратора.
func (o *Orchestrator) SetCompensationQueue(queue CompensationQueue) {
	o.redriver = queue
}

// CreateOrder проводит заказ через validate → price → reserve → charge → persist → audit → notify.
func (o *Orchestrator) CreateOrder(ctx context.Context, req CreateOrderRequest) (domain.Order, error) {
	started := time.Now()
	if o.metrics != nil {
		o.metrics.RecordSagaStarted()
		defer func() { o.metrics.RecordSagaFinished(time.Since(started)) }()
	}

	r := newRun(o.ids())
	logger := o.logger.WithFields(log.Fields{"order_id": r.orderID, "customer_id": req.CustomerID})
	o.publishSagaEvent(ctx, kafka.EventTypeSagaStarted, r.orderID, map[string]any{"customer_id": req.CustomerID})

	// 1. Validate
	o.enter(r, StateValidating)
	var checked validation.Result
	err := o.runStep(ctx, domain.SagaStepValidate, o.cfg.ValidateTimeout, func(ctx context.Context) error {
		var err error
		checked, err = o.validator.Validate(ctx, req.CustomerID, req.Items, req.ShippingAddress)
		return err
	})
	if err != nil {
		return domain.Order{}, o.fail(ctx, r, upstreamError(domain.SagaStepValidate, err))
	}
	if !checked.Valid {
		return domain.Order{}, o.fail(ctx, r, domain.NewError(domain.ErrValidationFailed, "order validation failed", checked.Messages()...))
	}

	// 2. Price
	o.enter(r, StatePricing)
	var quote pricing.Quote
	err = o.runStep(ctx, domain.SagaStepPrice, o.cfg.PriceTimeout, func(ctx context.Context) error {
		var err error
		quote, err = o.pricing.Quote(ctx, req.Items)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) || errors.Is(err, domain.ErrItemQtyInvalid) {
			return domain.Order{}, o.fail(ctx, r, domain.NewError(domain.ErrValidationFailed, "order validation failed", err.Error()).WithCause(err))
		}
		return domain.Order{}, o.fail(ctx, r, upstreamError(domain.SagaStepPrice, err))
	}

	order := domain.Order{
		ID:              r.orderID,
		CustomerID:      req.CustomerID,
		Items:           quote.Lines,
		Subtotal:        quote.Subtotal,
		Discount:        quote.Discount,
		Tax:             quote.Tax,
		Total:           quote.Total,
		Currency:        o.cfg.Currency,
		ShippingAddress: req.ShippingAddress,
		Status:          domain.OrderStatusConfirmed,
	}

	// 3. Reserve
	o.enter(r, StateReservingInventory)
	var reservation domain.ReservationResult
	err = o.runStep(ctx, domain.SagaStepReserve, o.cfg.ReserveTimeout, func(ctx context.Context) error {
		var err error
		reservation, err = o.inventory.Reserve(ctx, order.ID, order.ReservationItems())
		return err
	})
	if err != nil {
		// Резерв мог успеть примениться до таймаута: снимаем его по ID заказа.
		o.enter(r, StateCompensating)
		o.compensate(ctx, order.ID, domain.SagaStepRelease, o.cfg.ReleaseTimeout, func(ctx context.Context) error {
			return o.inventory.ReleaseByOrder(ctx, order.ID)
		})
		return domain.Order{}, o.fail(ctx, r, upstreamError(domain.SagaStepReserve, err))
	}
	if !reservation.Reserved {
		sagaErr := domain.NewError(domain.ErrInsufficientStock, "insufficient stock", stockDetails(reservation.Failures)...)
		sagaErr.StockFailures = reservation.Failures
		return domain.Order{}, o.fail(ctx, r, sagaErr)
	}
	order.ReservationID = reservation.ReservationID
	o.publishSagaEvent(ctx, kafka.EventTypeStepReserved, order.ID, map[string]any{"reservation_id": reservation.ReservationID})

	// 4. Charge. Заказ с нулевой суммой не списывается и не получает payment reference.
	// Если списание завершилось таймаутом, провайдер мог его всё же провести: повтор
	// с тем же ключом (order.ID) вернёт ту же ссылку, но сага такой повтор не делает.
	o.enter(r, StateChargingPayment)
	if order.Total.IsZero() {
		logger.Debug("zero total, charge skipped")
	} else {
		var charge domain.ChargeResult
		err = o.runStep(ctx, domain.SagaStepCharge, o.cfg.ChargeTimeout, func(ctx context.Context) error {
			var err error
			charge, err = o.payments.Charge(ctx, domain.ChargeRequest{
				Amount:         order.Total,
				CustomerID:     order.CustomerID,
				Currency:       order.Currency,
				IdempotencyKey: order.ID,
			})
			return err
		})
		if err != nil {
			logger.WithError(err).Warn("charge failed, releasing reservation")
			o.enter(r, StateCompensating)
			released := o.compensate(ctx, order.ID, domain.SagaStepRelease, o.cfg.ReleaseTimeout, func(ctx context.Context) error {
				return o.inventory.Release(ctx, order.ReservationID)
			})
			sagaErr := chargeError(err)
			if !released {
				sagaErr.Details = append(sagaErr.Details, "reservation "+order.ReservationID+" release pending")
			}
			return domain.Order{}, o.fail(ctx, r, sagaErr)
		}
		order.PaymentReference = charge.Reference
		o.publishSagaEvent(ctx, kafka.EventTypeStepCharged, order.ID, map[string]any{"payment_ref": charge.Reference})
	}

	// 5. Persist
	o.enter(r, StatePersisting)
	now := o.now()
	order.CreatedAt, order.UpdatedAt = now, now
	err = o.runStep(ctx, domain.SagaStepPersist, o.cfg.StoreTimeout, func(ctx context.Context) error {
		if errs := order.ValidateInvariants(); len(errs) > 0 {
			return errors.Join(errs...)
		}
		return o.orders.Insert(ctx, order)
	})
	if err != nil {
		logger.WithError(err).Error("persist failed, refunding charge and releasing reservation")
		o.enter(r, StateCompensating)
		refunded := true
		if order.PaymentReference != "" {
			refunded = o.compensate(ctx, order.ID, domain.SagaStepRefund, o.cfg.RefundTimeout, func(ctx context.Context) error {
				return o.payments.Refund(ctx, order.PaymentReference, order.Total)
			})
		}
		released := o.compensate(ctx, order.ID, domain.SagaStepRelease, o.cfg.ReleaseTimeout, func(ctx context.Context) error {
			return o.inventory.Release(ctx, order.ReservationID)
		})
		if !refunded || !released {
			var pending []string
			if !refunded {
				pending = append(pending, "refund of "+order.PaymentReference+" pending")
			}
			if !released {
				pending = append(pending, "release of "+order.ReservationID+" pending")
			}
			return domain.Order{}, o.fail(ctx, r, domain.NewError(domain.ErrCompensationIncomplete, "order not persisted", pending...).WithCause(err))
		}
		return domain.Order{}, o.fail(ctx, r, upstreamError(domain.SagaStepPersist, err))
	}

	// 6-7. Audit и notify не влияют на результат.
	o.enter(r, StateAuditingNotifying)
	o.bestEffort(ctx, domain.SagaStepAudit, order.ID, o.cfg.AuditTimeout, func(ctx context.Context) error {
		return o.audit.Record(ctx, domain.AuditOrderCreated, order.ID, orderAuditPayload(order))
	})
	o.bestEffort(ctx, domain.SagaStepNotify, order.ID, o.cfg.NotifyTimeout, func(ctx context.Context) error {
		return o.notifier.NotifyOrderConfirmed(ctx, order)
	})

	o.enter(r, StateConfirmed)
	if o.metrics != nil {
		o.metrics.RecordSagaCompleted()
	}
	o.publishSagaEvent(ctx, kafka.EventTypeSagaCompleted, order.ID, map[string]any{
		"customer_id": order.CustomerID,
		"total":       order.Total.StringFixed(2),
		"currency":    order.Currency,
	})
	logger.WithFields(log.Fields{
		"total":          order.Total.StringFixed(2),
		"reservation_id": order.ReservationID,
		"payment_ref":    order.PaymentReference,
	}).Info("order confirmed")

	return order, nil
}

// GetOrder возвращает заказ по ID.
func (o *Orchestrator) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return domain.Order{}, domain.NewError(domain.ErrValidationFailed, "order id is required")
	}
	return o.loadOrder(ctx, orderID)
}

// ListOrders возвращает заказы клиента, новые первыми. Пустой customerID — все заказы.
func (o *Orchestrator) ListOrders(ctx context.Context, customerID string, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = o.cfg.DefaultListLimit
	}
	if limit > o.cfg.MaxListLimit {
		limit = o.cfg.MaxListLimit
	}

	var orders []domain.Order
	err := o.runStep(ctx, domain.SagaStepPersist, o.cfg.StoreTimeout, func(ctx context.Context) error {
		var err error
		orders, err = o.orders.ListByCustomer(ctx, customerID, limit)
		return err
	})
	if err != nil {
		return nil, upstreamError(domain.SagaStepPersist, err)
	}
	return orders, nil
}

// UpdateOrderStatus меняет статус заказа. Отмена выполняется только через CancelOrder,
// чтобы отработали компенсации.
func (o *Orchestrator) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) (domain.Order, error) {
	if !status.Valid() {
		return domain.Order{}, domain.NewError(domain.ErrValidationFailed, "invalid status", fmt.Sprintf("unknown status %q", status))
	}
	if status == domain.OrderStatusCancelled {
		return domain.Order{}, domain.NewError(domain.ErrValidationFailed, "invalid status", "use CancelOrder to cancel an order")
	}

	var previous domain.OrderStatus
	updated, changed, err := o.transition(ctx, orderID, status, func(current domain.Order) error {
		if current.Status == domain.OrderStatusCancelled {
			return domain.NewError(domain.ErrConflict, "order is cancelled", "cancelled orders cannot change status")
		}
		previous = current.Status
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	if !changed {
		return updated, nil
	}

	o.bestEffort(ctx, domain.SagaStepAudit, orderID, o.cfg.AuditTimeout, func(ctx context.Context) error {
		return o.audit.Record(ctx, domain.AuditOrderStatusChanged, orderID, map[string]any{
			"from": string(previous),
			"to":   string(status),
		})
	})
	o.bestEffort(ctx, domain.SagaStepNotify, orderID, o.cfg.NotifyTimeout, func(ctx context.Context) error {
		return o.notifier.NotifyStatusChanged(ctx, updated)
	})
	o.publishSagaEvent(ctx, kafka.EventTypeOrderStatusChanged, orderID, map[string]any{
		"from": string(previous),
		"to":   string(status),
	})

	return updated, nil
}

// CancelOrder отменяет заказ: mark cancelled → release → refund → audit → notify.
// Статус не откатывается; при сбое компенсации возвращается CompensationIncomplete вместе с заказом.
func (o *Orchestrator) CancelOrder(ctx context.Context, orderID string) (domain.Order, error) {
	cancelled, _, err := o.transition(ctx, orderID, domain.OrderStatusCancelled, func(current domain.Order) error {
		switch current.Status {
		case domain.OrderStatusShipped:
			return domain.NewError(domain.ErrConflict, "order already shipped", "shipped orders cannot be cancelled")
		case domain.OrderStatusCancelled:
			return domain.NewError(domain.ErrConflict, "order already cancelled")
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	if o.metrics != nil {
		o.metrics.RecordSagaCanceled()
	}

	failures := o.runCancelCompensations(ctx, cancelled)

	o.bestEffort(ctx, domain.SagaStepAudit, orderID, o.cfg.AuditTimeout, func(ctx context.Context) error {
		return o.audit.Record(ctx, domain.AuditOrderCancelled, orderID, map[string]any{
			"reservation_id":        cancelled.ReservationID,
			"payment_ref":           cancelled.PaymentReference,
			"compensation_failures": failures,
		})
	})
	o.bestEffort(ctx, domain.SagaStepNotify, orderID, o.cfg.NotifyTimeout, func(ctx context.Context) error {
		return o.notifier.NotifyStatusChanged(ctx, cancelled)
	})
	o.publishSagaEvent(ctx, kafka.EventTypeSagaCanceled, orderID, map[string]any{
		"customer_id":  cancelled.CustomerID,
		"compensation": len(failures) == 0,
	})

	if len(failures) > 0 {
		if o.redriver != nil {
			o.redriver.Enqueue(orderID)
		}
		return cancelled, domain.NewError(domain.ErrCompensationIncomplete, "order cancelled, compensation incomplete", failures...)
	}

	o.logger.WithField("order_id", orderID).Info("order cancelled")
	return cancelled, nil
}

// RetryCompensation повторяет release и refund для отменённого заказа.
// Обе операции идемпотентны, поэтому повтор безопасен.
func (o *Orchestrator) RetryCompensation(ctx context.Context, orderID string) error {
	order, err := o.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != domain.OrderStatusCancelled {
		return domain.NewError(domain.ErrConflict, "order is not cancelled", fmt.Sprintf("status %s", order.Status))
	}

	if failures := o.runCancelCompensations(ctx, order); len(failures) > 0 {
		return domain.NewError(domain.ErrCompensationIncomplete, "compensation retry failed", failures...)
	}
	return nil
}

// runCancelCompensations выполняет release, затем refund; обе попытки делаются независимо.
func (o *Orchestrator) runCancelCompensations(ctx context.Context, order domain.Order) []string {
	var failures []string

	released := o.compensate(ctx, order.ID, domain.SagaStepRelease, o.cfg.ReleaseTimeout, func(ctx context.Context) error {
		if order.ReservationID != "" {
			return o.inventory.Release(ctx, order.ReservationID)
		}
		return o.inventory.ReleaseByOrder(ctx, order.ID)
	})
	if !released {
		failures = append(failures, "inventory release failed")
	}

	if order.PaymentReference != "" {
		refunded := o.compensate(ctx, order.ID, domain.SagaStepRefund, o.cfg.RefundTimeout, func(ctx context.Context) error {
			return o.payments.Refund(ctx, order.PaymentReference, order.Total)
		})
		if !refunded {
			failures = append(failures, "payment refund failed")
		} else {
			if o.metrics != nil {
				o.metrics.RecordSagaRefunded()
			}
			o.bestEffort(ctx, domain.SagaStepAudit, order.ID, o.cfg.AuditTimeout, func(ctx context.Context) error {
				return o.audit.Record(ctx, domain.AuditPaymentRefunded, order.ID, map[string]any{
					"payment_ref": order.PaymentReference,
					"amount":      order.Total.StringFixed(2),
				})
			})
		}
	}

	return failures
}

// transition применяет смену статуса с optimistic locking. check вызывается на
// каждой свежей версии заказа; при конфликте версий заказ перечитывается.
// changed=false означает, что заказ уже находился в целевом статусе.
func (o *Orchestrator) transition(ctx context.Context, orderID string, status domain.OrderStatus, check func(domain.Order) error) (domain.Order, bool, error) {
	const maxAttempts = 3

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		current, err := o.loadOrder(ctx, orderID)
		if err != nil {
			return domain.Order{}, false, err
		}
		if err := check(current); err != nil {
			return domain.Order{}, false, err
		}
		if current.Status == status {
			return current, false, nil
		}

		var updated domain.Order
		err = o.runStep(ctx, domain.SagaStepUpdate, o.cfg.StoreTimeout, func(ctx context.Context) error {
			var err error
			updated, err = o.orders.UpdateStatus(ctx, orderID, current.Version, status)
			return err
		})
		switch {
		case err == nil:
			return updated, true, nil
		case domain.IsVersionConflict(err):
			o.logger.WithFields(log.Fields{
				"order_id": orderID,
				"attempt":  attempt,
				"version":  current.Version,
			}).Warn("version conflict detected, retrying")
			continue
		case errors.Is(err, domain.ErrOrderNotFound):
			return domain.Order{}, false, domain.NewError(domain.ErrNotFound, "order not found", orderID)
		default:
			return domain.Order{}, false, upstreamError(domain.SagaStepUpdate, err)
		}
	}

	return domain.Order{}, false, domain.NewError(domain.ErrConflict, "order was modified concurrently").WithCause(domain.ErrOrderVersionConflict)
}

func (o *Orchestrator) loadOrder(ctx context.Context, orderID string) (domain.Order, error) {
	var order domain.Order
	err := o.runStep(ctx, domain.SagaStepPersist, o.cfg.StoreTimeout, func(ctx context.Context) error {
		var err error
		order, err = o.orders.Get(ctx, orderID)
		return err
	})
	switch {
	case err == nil:
		return order, nil
	case errors.Is(err, domain.ErrOrderNotFound):
		return domain.Order{}, domain.NewError(domain.ErrNotFound, "order not found", orderID)
	default:
		return domain.Order{}, upstreamError(domain.SagaStepPersist, err)
	}
}

// runStep выполняет шаг с собственным таймаутом и пишет длительность в метрики.
func (o *Orchestrator) runStep(ctx context.Context, step domain.SagaStep, timeout time.Duration, fn func(context.Context) error) error {
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	err := fn(stepCtx)
	if o.metrics != nil {
		o.metrics.RecordStepDuration(string(step), time.Since(started))
	}
	return err
}

// compensate выполняет компенсацию даже если контекст вызывающего уже отменён.
func (o *Orchestrator) compensate(ctx context.Context, orderID string, step domain.SagaStep, timeout time.Duration, fn func(context.Context) error) bool {
	err := o.runStep(context.WithoutCancel(ctx), step, timeout, fn)
	if err != nil {
		o.logger.WithError(err).WithFields(log.Fields{"order_id": orderID, "step": step}).Error("compensation failed")
		if o.metrics != nil {
			o.metrics.RecordCompensationFailure(string(step))
		}
		return false
	}
	if o.metrics != nil {
		o.metrics.RecordCompensation(string(step))
	}
	return true
}

// bestEffort выполняет побочный шаг (audit, notify): ошибка логируется и отбрасывается.
func (o *Orchestrator) bestEffort(ctx context.Context, step domain.SagaStep, orderID string, timeout time.Duration, fn func(context.Context) error) {
	if err := o.runStep(context.WithoutCancel(ctx), step, timeout, fn); err != nil {
		o.logger.WithError(err).WithFields(log.Fields{"order_id": orderID, "step": step}).Warn("best-effort step failed")
	}
}

// fail переводит сагу в Failed, пишет метрики, аудит и событие.
func (o *Orchestrator) fail(ctx context.Context, r *run, sagaErr *domain.Error) error {
	o.enter(r, StateFailed)
	reason := kindLabel(sagaErr.Kind)
	if o.metrics != nil {
		o.metrics.RecordSagaFailed(reason)
	}

	o.logger.WithFields(log.Fields{
		"order_id": r.orderID,
		"reason":   reason,
	}).WithError(sagaErr).Warn("saga failed")

	o.bestEffort(ctx, domain.SagaStepAudit, r.orderID, o.cfg.AuditTimeout, func(ctx context.Context) error {
		return o.audit.Record(ctx, domain.AuditOrderFailed, r.orderID, map[string]any{
			"reason":  reason,
			"details": sagaErr.Details,
		})
	})
	o.publishSagaEvent(ctx, kafka.EventTypeSagaFailed, r.orderID, map[string]any{"reason": reason})

	return sagaErr
}

func (o *Orchestrator) enter(r *run, state State) {
	r.enter(state)
	o.logger.WithFields(log.Fields{"order_id": r.orderID, "state": state}).Debug("saga state changed")
	if o.onTransition != nil {
		o.onTransition(r.orderID, state)
	}
}

// publishSagaEvent публикует событие саги (если publisher настроен).
func (o *Orchestrator) publishSagaEvent(ctx context.Context, eventType kafka.EventType, orderID string, metadata map[string]any) {
	if o.events == nil {
		return
	}
	o.bestEffort(ctx, "event", orderID, o.cfg.EventTimeout, func(context.Context) error {
		return o.events.PublishEvent(kafka.TopicSagaEvents, orderID, kafka.NewSagaEvent(eventType, orderID, metadata))
	})
}

func upstreamError(step domain.SagaStep, err error) *domain.Error {
	var sagaErr *domain.Error
	if errors.As(err, &sagaErr) && sagaErr.Kind != nil {
		return sagaErr
	}
	return domain.NewError(domain.ErrUpstreamUnavailable, fmt.Sprintf("%s step failed", step)).WithCause(err)
}

func chargeError(err error) *domain.Error {
	var sagaErr *domain.Error
	switch {
	case errors.As(err, &sagaErr) && sagaErr.Kind != nil:
		return domain.NewError(sagaErr.Kind, sagaErr.Message, sagaErr.Details...).WithCause(err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled), errors.Is(err, domain.ErrPaymentTemporary):
		return domain.NewError(domain.ErrUpstreamUnavailable, "payment provider unavailable").WithCause(err)
	default:
		return domain.NewError(domain.ErrPaymentFailed, "payment failed", err.Error()).WithCause(err)
	}
}

func stockDetails(failures []domain.StockFailure) []string {
	details := make([]string, 0, len(failures))
	for _, f := range failures {
		details = append(details, fmt.Sprintf("%s: %s", f.ProductID, f.Reason))
	}
	return details
}

func orderAuditPayload(order domain.Order) map[string]any {
	items := make([]map[string]any, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, map[string]any{
			"product_id": item.ProductID,
			"quantity":   item.Quantity,
			"unit_price": item.UnitPrice.StringFixed(2),
		})
	}
	return map[string]any{
		"customer_id":    order.CustomerID,
		"items":          items,
		"subtotal":       order.Subtotal.StringFixed(2),
		"discount":       order.Discount.StringFixed(2),
		"tax":            order.Tax.StringFixed(2),
		"total":          order.Total.StringFixed(2),
		"reservation_id": order.ReservationID,
		"payment_ref":    order.PaymentReference,
	}
}

func kindLabel(kind error) string {
	switch {
	case errors.Is(kind, domain.ErrValidationFailed):
		return "validation_failed"
	case errors.Is(kind, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(kind, domain.ErrPaymentFailed):
		return "payment_failed"
	case errors.Is(kind, domain.ErrNotFound):
		return "not_found"
	case errors.Is(kind, domain.ErrConflict):
		return "conflict"
	case errors.Is(kind, domain.ErrCompensationIncomplete):
		return "compensation_incomplete"
	case errors.Is(kind, domain.ErrUpstreamUnavailable):
		return "upstream_unavailable"
	default:
		return "unknown"
	}
}
