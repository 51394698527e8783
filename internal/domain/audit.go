package domain

import "time"

// Типы событий аудита.
const (
	AuditOrderCreated       = "order_created"
	AuditOrderStatusChanged = "order_status_changed"
	AuditOrderCancelled     = "order_cancelled"
	AuditOrderFailed        = "order_failed"
	AuditInventoryReserved  = "inventory_reserved"
	AuditInventoryReleased  = "inventory_released"
	AuditPaymentRefunded    = "payment_refunded"
)

// AuditEntry — неизменяемая запись журнала аудита.
type AuditEntry struct {
	ID        string
	EventType string
	SubjectID string
	Payload   []byte
	Occurred  time.Time
}
