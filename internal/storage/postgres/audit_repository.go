package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

type auditRepository struct {
	db *sql.DB
}

// NewAuditRepository создаёт PostgreSQL-реализацию журнала аудита.
func NewAuditRepository(store *Store) domain.AuditLog {
	return &auditRepository{db: store.DB()}
}

func (r *auditRepository) Record(ctx context.Context, eventType, subjectID string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, event_type, subject_id, payload, occurred_at)
		VALUES ($1,$2,$3,$4,$5)
	`, uuid.NewString(), eventType, subjectID, body, time.Now().UTC()); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (r *auditRepository) List(ctx context.Context, subjectID string) ([]domain.AuditEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, event_type, subject_id, payload, occurred_at
		FROM audit_log
		WHERE subject_id = $1
		ORDER BY occurred_at ASC, id ASC
	`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.AuditEntry, 0)
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(&e.ID, &e.EventType, &e.SubjectID, &e.Payload, &e.Occurred); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Occurred = e.Occurred.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

var _ domain.AuditLog = (*auditRepository)(nil)
