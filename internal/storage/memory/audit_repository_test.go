package memory_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/storage/memory"
)

func TestAuditRepository_RecordList(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewAuditRepository()

	if err := repo.Record(ctx, domain.AuditOrderCreated, "order-1", map[string]any{"total": "22.00"}); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if err := repo.Record(ctx, domain.AuditOrderCancelled, "order-2", nil); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	entries, err := repo.List(ctx, "order-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].EventType != domain.AuditOrderCreated || entries[0].ID == "" {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}

	var payload map[string]string
	if err := json.Unmarshal(entries[0].Payload, &payload); err != nil {
		t.Fatalf("payload is not json: %v", err)
	}
	if payload["total"] != "22.00" {
		t.Fatalf("unexpected payload: %v", payload)
	}

	all, _ := repo.List(ctx, "")
	if len(all) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(all))
	}
}

func TestAuditRepository_RejectsUnserializablePayload(t *testing.T) {
	repo := memory.NewAuditRepository()

	err := repo.Record(context.Background(), domain.AuditOrderCreated, "order-1", map[string]any{"bad": make(chan int)})
	if err == nil {
		t.Fatal("expected marshal error")
	}
}
