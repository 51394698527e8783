package outbox

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// LogPublisher пишет события в лог. Используется, когда брокер не настроен:
// доставка уведомлений тогда сводится к записи, которую подхватывает сборщик логов.
type LogPublisher struct {
	logger *log.Entry
}

// NewLogPublisher создаёт publisher поверх логгера.
func NewLogPublisher(logger *log.Entry) *LogPublisher {
	if logger == nil {
		logger = log.New().WithField("component", "outbox-log-publisher")
	}
	return &LogPublisher{logger: logger}
}

// Publish логирует событие и всегда завершается успешно.
func (p *LogPublisher) Publish(event domain.OutboxMessage) error {
	p.logger.WithFields(log.Fields{
		"outbox_id":    event.ID,
		"aggregate_id": event.AggregateID,
		"event_type":   event.EventType,
		"payload":      string(event.Payload),
	}).Info("outbox event delivered")
	return nil
}

var _ domain.OutboxPublisher = (*LogPublisher)(nil)
