package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// Saga события
	EventTypeSagaStarted     EventType = "saga.started"
	EventTypeSagaCompleted   EventType = "saga.completed"
	EventTypeSagaFailed      EventType = "saga.failed"
	EventTypeSagaCompensated EventType = "saga.compensated"
	EventTypeSagaCanceled    EventType = "saga.canceled"

	// Step события
	EventTypeStepReserved EventType = "step.reserved"
	EventTypeStepCharged  EventType = "step.charged"

	// Order события
	EventTypeOrderStatusChanged EventType = "order.status_changed"
)

// Topics для Kafka
const (
	TopicSagaEvents      = "fulfillment.saga.events"
	TopicOrderEvents     = "fulfillment.order.events"
	TopicDeadLetterQueue = "fulfillment.dlq"
)

// SagaEvent — событие жизненного цикла саги.
type SagaEvent struct {
	EventType EventType      `json:"event_type"`
	OrderID   string         `json:"order_id"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewSagaEvent создает новое событие саги
func NewSagaEvent(eventType EventType, orderID string, metadata map[string]any) *SagaEvent {
	return &SagaEvent{
		EventType: eventType,
		OrderID:   orderID,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}
}
