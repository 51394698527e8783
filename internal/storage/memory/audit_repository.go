package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// auditRepositoryInMemory хранит журнал аудита в памяти (для разработки/тестов).
type auditRepositoryInMemory struct {
	mu      sync.RWMutex
	entries []domain.AuditEntry
}

// NewAuditRepository создаёт in-memory реализацию AuditLog.
func NewAuditRepository() domain.AuditLog {
	return &auditRepositoryInMemory{}
}

// Record дописывает запись в конец журнала.
func (r *auditRepositoryInMemory) Record(_ context.Context, eventType, subjectID string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, domain.AuditEntry{
		ID:        uuid.NewString(),
		EventType: eventType,
		SubjectID: subjectID,
		Payload:   data,
		Occurred:  time.Now().UTC(),
	})
	return nil
}

// List возвращает записи по субъекту в порядке добавления; пустой subjectID — все записи.
func (r *auditRepositoryInMemory) List(_ context.Context, subjectID string) ([]domain.AuditEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.AuditEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		if subjectID != "" && entry.SubjectID != subjectID {
			continue
		}
		entry.Payload = append([]byte(nil), entry.Payload...)
		result = append(result, entry)
	}
	return result, nil
}

var _ domain.AuditLog = (*auditRepositoryInMemory)(nil)
