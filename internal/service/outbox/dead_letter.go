package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// DeadLetter — payload сообщения в DLQ: исходное событие и причина отказа.
// Формат читает cmd/dlq-reprocess при повторной публикации.
type DeadLetter struct {
	OutboxID       string          `json:"outbox_id"`
	AggregateType  string          `json:"aggregate_type"`
	AggregateID    string          `json:"aggregate_id"`
	EventType      string          `json:"event_type"`
	Payload        json.RawMessage `json:"payload"`
	PublishError   string          `json:"publish_error"`
	DLQPublishedAt time.Time       `json:"dlq_published_at"`
}

// NewDeadLetter фиксирует событие, которое не удалось опубликовать.
func NewDeadLetter(event domain.OutboxMessage, publishErr error, now time.Time) DeadLetter {
	reason := ""
	if publishErr != nil {
		reason = publishErr.Error()
	}
	return DeadLetter{
		OutboxID:       event.ID,
		AggregateType:  event.AggregateType,
		AggregateID:    event.AggregateID,
		EventType:      event.EventType,
		Payload:        json.RawMessage(event.Payload),
		PublishError:   reason,
		DLQPublishedAt: now.UTC(),
	}
}

// Message упаковывает DeadLetter в outbox-сообщение с теми же ключами, что у исходного.
func (d DeadLetter) Message() (domain.OutboxMessage, error) {
	payload, err := json.Marshal(d)
	if err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("marshal dlq payload: %w", err)
	}
	return domain.OutboxMessage{
		ID:            d.OutboxID,
		AggregateType: d.AggregateType,
		AggregateID:   d.AggregateID,
		EventType:     d.EventType,
		Payload:       payload,
	}, nil
}

// Original восстанавливает исходное событие.
func (d DeadLetter) Original() domain.OutboxMessage {
	return domain.OutboxMessage{
		ID:            d.OutboxID,
		AggregateType: d.AggregateType,
		AggregateID:   d.AggregateID,
		EventType:     d.EventType,
		Payload:       []byte(d.Payload),
	}
}

// DecodeDeadLetter разбирает payload DLQ-сообщения.
func DecodeDeadLetter(raw []byte) (DeadLetter, error) {
	var d DeadLetter
	if err := json.Unmarshal(raw, &d); err != nil {
		return DeadLetter{}, fmt.Errorf("decode dlq payload: %w", err)
	}
	if len(d.Payload) == 0 {
		return DeadLetter{}, errors.New("dlq payload does not contain original event payload")
	}
	return d, nil
}
