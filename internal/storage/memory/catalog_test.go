package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/storage/memory"
)

func TestCatalog_Lookups(t *testing.T) {
	ctx := context.Background()
	catalog := memory.NewCatalog()
	catalog.PutCustomer(domain.Customer{ID: "C1", Name: "Ann"})
	catalog.PutProduct(domain.Product{ID: "P1", Price: decimal.RequireFromString("10.00"), Stock: 5})

	if _, err := catalog.GetCustomer(ctx, "C1"); err != nil {
		t.Fatalf("get customer failed: %v", err)
	}
	if _, err := catalog.GetCustomer(ctx, "C2"); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
	if _, err := catalog.GetProduct(ctx, "P2"); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
	if len(catalog.Products()) != 1 {
		t.Fatal("expected one product")
	}
}

func TestCatalog_ActivePromotionsAndTax(t *testing.T) {
	ctx := context.Background()
	catalog := memory.NewCatalog()
	catalog.PutPromotion(domain.Promotion{ID: "b", Active: true, DiscountPct: decimal.NewFromInt(10)})
	catalog.PutPromotion(domain.Promotion{ID: "a", Active: true, DiscountPct: decimal.NewFromInt(5)})
	catalog.PutPromotion(domain.Promotion{ID: "off", Active: false, DiscountPct: decimal.NewFromInt(50)})

	promos, err := catalog.ActivePromotions(ctx)
	if err != nil {
		t.Fatalf("active promotions failed: %v", err)
	}
	if len(promos) != 2 || promos[0].ID != "a" {
		t.Fatalf("unexpected promotions: %+v", promos)
	}

	if _, found, _ := catalog.TaxRate(ctx, "eu"); found {
		t.Fatal("expected missing tax rate")
	}
	catalog.SetTaxRate("eu", decimal.RequireFromString("0.2"))
	rate, found, err := catalog.TaxRate(ctx, "eu")
	if err != nil || !found || !rate.Equal(decimal.RequireFromString("0.2")) {
		t.Fatalf("unexpected tax rate: %s found=%v err=%v", rate, found, err)
	}
}

func TestIdempotencyStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := memory.NewIdempotencyStore(time.Minute)

	if _, done, err := store.Begin(ctx, "key-1", "hash-a"); err != nil || done {
		t.Fatalf("expected fresh key, done=%v err=%v", done, err)
	}
	if _, _, err := store.Begin(ctx, "key-1", "hash-a"); !errors.Is(err, domain.ErrIdempotencyInProgress) {
		t.Fatalf("expected ErrIdempotencyInProgress, got %v", err)
	}
	if err := store.Complete(ctx, "key-1", "hash-a", "order-1"); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	orderID, done, err := store.Begin(ctx, "key-1", "hash-a")
	if err != nil || !done || orderID != "order-1" {
		t.Fatalf("expected completed key, got order=%s done=%v err=%v", orderID, done, err)
	}
	if _, _, err := store.Begin(ctx, "key-1", "hash-b"); !errors.Is(err, domain.ErrIdempotencyKeyReused) {
		t.Fatalf("expected ErrIdempotencyKeyReused for another request, got %v", err)
	}

	if _, _, err := store.Begin(ctx, "key-2", "hash-a"); err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	if _, _, err := store.Begin(ctx, "key-2", "hash-b"); !errors.Is(err, domain.ErrIdempotencyKeyReused) {
		t.Fatalf("in-progress key must reject another request, got %v", err)
	}
	if err := store.Abort(ctx, "key-2"); err != nil {
		t.Fatalf("abort failed: %v", err)
	}
	if _, done, err := store.Begin(ctx, "key-2", "hash-a"); err != nil || done {
		t.Fatalf("expected key to be free after abort, done=%v err=%v", done, err)
	}
}

func TestIdempotencyStore_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	store := memory.NewIdempotencyStore(time.Minute)

	for _, key := range []string{"a", "b", "c"} {
		if _, _, err := store.Begin(ctx, key, "hash"); err != nil {
			t.Fatalf("begin %s: %v", key, err)
		}
	}

	deleted, err := store.DeleteExpired(time.Now().UTC(), 0)
	if err != nil || deleted != 0 {
		t.Fatalf("live keys must survive, deleted=%d err=%v", deleted, err)
	}

	later := time.Now().UTC().Add(2 * time.Minute)
	deleted, err = store.DeleteExpired(later, 2)
	if err != nil || deleted != 2 {
		t.Fatalf("expected batch of 2, deleted=%d err=%v", deleted, err)
	}
	deleted, _ = store.DeleteExpired(later, 2)
	if deleted != 1 || store.Len() != 0 {
		t.Fatalf("expected remaining key deleted, deleted=%d len=%d", deleted, store.Len())
	}
}
