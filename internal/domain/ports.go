package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// CustomerDirectory ищет клиентов по идентификатору.
type CustomerDirectory interface {
	// GetCustomer возвращает клиента или ErrCustomerNotFound.
	GetCustomer(ctx context.Context, id string) (Customer, error)
}

// ProductCatalog ищет товары по идентификатору.
type ProductCatalog interface {
	// GetProduct возвращает товар с текущей ценой или ErrProductNotFound.
	GetProduct(ctx context.Context, id string) (Product, error)
}

// PromotionSource отдаёт активные акции.
type PromotionSource interface {
	ActivePromotions(ctx context.Context) ([]Promotion, error)
}

// TaxRateSource отдаёт ставку налога по региону; found=false, если ставка не настроена.
type TaxRateSource interface {
	TaxRate(ctx context.Context, region string) (rate decimal.Decimal, found bool, err error)
}

// InventoryService описывает взаимодействие со складом.
type InventoryService interface {
	// Reserve атомарно резервирует все позиции или ни одной.
	Reserve(ctx context.Context, orderID string, items []ReservationItem) (ReservationResult, error)
	// Release снимает резерв; повторный вызов и неизвестный ID — no-op.
	Release(ctx context.Context, reservationID string) error
	// ReleaseByOrder снимает активный резерв заказа, если он есть.
	ReleaseByOrder(ctx context.Context, orderID string) error
}

// PaymentService описывает взаимодействие с платёжным провайдером.
type PaymentService interface {
	// Charge списывает средства; отказ — ErrPaymentDeclined.
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
	// Refund возвращает средства; провайдер гарантирует идемпотентность по reference.
	Refund(ctx context.Context, paymentReference string, amount decimal.Decimal) error
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Insert сохраняет новый заказ. ErrOrderAlreadyExists, если ID занят.
	Insert(ctx context.Context, order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound.
	Get(ctx context.Context, id string) (Order, error)
	// ListByCustomer возвращает заказы клиента (новые первыми); пустой customerID — все заказы.
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]Order, error)
	// UpdateStatus меняет статус при совпадении версии (optimistic locking).
	UpdateStatus(ctx context.Context, id string, expectedVersion int64, status OrderStatus) (Order, error)
}

// AuditRecorder дописывает записи в журнал аудита.
type AuditRecorder interface {
	Record(ctx context.Context, eventType, subjectID string, payload map[string]any) error
}

// AuditLog — журнал аудита с чтением (для API и тестов).
type AuditLog interface {
	AuditRecorder
	List(ctx context.Context, subjectID string) ([]AuditEntry, error)
}

// Notifier отправляет уведомления клиенту. Ошибки не должны влиять на бизнес-операцию.
type Notifier interface {
	NotifyOrderConfirmed(ctx context.Context, order Order) error
	NotifyStatusChanged(ctx context.Context, order Order) error
}

// IdempotencyStore связывает idempotency-key запроса с созданным заказом.
// Вместе с ключом хранится хеш запроса: повтор ключа с другим запросом отклоняется.
type IdempotencyStore interface {
	// Begin захватывает ключ. Если ключ уже завершён, возвращает orderID и done=true.
	// Если ключ занят незавершённым запросом — ErrIdempotencyInProgress,
	// если ключ записан с другим requestHash — ErrIdempotencyKeyReused.
	Begin(ctx context.Context, key, requestHash string) (orderID string, done bool, err error)
	// Complete фиксирует результат.
	Complete(ctx context.Context, key, requestHash, orderID string) error
	// Abort освобождает ключ после неуспешной обработки.
	Abort(ctx context.Context, key string) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// SagaStep задаёт константы шагов для метрик/логов.
type SagaStep string

const (
	SagaStepValidate SagaStep = "validate"
	SagaStepPrice    SagaStep = "price"
	SagaStepReserve  SagaStep = "reserve"
	SagaStepCharge   SagaStep = "charge"
	SagaStepPersist  SagaStep = "persist"
	SagaStepAudit    SagaStep = "audit"
	SagaStepNotify   SagaStep = "notify"
	SagaStepCancel   SagaStep = "cancel"
	SagaStepRelease  SagaStep = "release"
	SagaStepRefund   SagaStep = "refund"
	SagaStepUpdate   SagaStep = "update_status"
)

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
