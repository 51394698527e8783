package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/inventory"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/pricing"
	"github.com/vladislavdragonenkov/fulfillment/internal/storage/memory"
	"github.com/vladislavdragonenkov/fulfillment/internal/storage/postgres"
)

// demoCatalog — справочник для локального запуска и e2e-тестов.
type demoCatalog struct {
	customers  []domain.Customer
	products   []domain.Product
	promotions []domain.Promotion
	taxRates   map[string]decimal.Decimal
}

func newDemoCatalog(taxRegion string) demoCatalog {
	if taxRegion == "" {
		taxRegion = pricing.DefaultTaxRegion
	}
	return demoCatalog{
		customers: []domain.Customer{
			{ID: "C1", Name: "Alice Example", Email: "alice@example.com", Phone: "+15550001"},
			{ID: "C2", Name: "Bob Example", Email: "bob@example.com"},
		},
		products: []domain.Product{
			{ID: "P1", SKU: "WID-001", Name: "Widget", Price: decimal.RequireFromString("10.00"), Stock: 100},
			{ID: "P2", SKU: "GAD-001", Name: "Gadget", Price: decimal.RequireFromString("24.99"), Stock: 50},
			{ID: "P3", SKU: "GIZ-001", Name: "Gizmo", Price: decimal.RequireFromString("99.00"), Stock: 10},
		},
		promotions: []domain.Promotion{
			{ID: "GIZMO10", Active: true, MinAmount: decimal.RequireFromString("150.00"), DiscountPct: decimal.NewFromInt(10), ProductIDs: []string{"P3"}},
		},
		taxRates: map[string]decimal.Decimal{taxRegion: pricing.DefaultTaxRate},
	}
}

func (d demoCatalog) seedMemory(catalog *memory.Catalog, ledger *inventory.Ledger) {
	for _, c := range d.customers {
		catalog.PutCustomer(c)
	}
	for _, p := range d.products {
		catalog.PutProduct(p)
		ledger.SetStock(p.ID, p.Stock)
	}
	for _, promo := range d.promotions {
		catalog.PutPromotion(promo)
	}
	for region, rate := range d.taxRates {
		catalog.SetTaxRate(region, rate)
	}
}

func (d demoCatalog) seedPostgres(ctx context.Context, catalog *postgres.Catalog) error {
	for _, c := range d.customers {
		if err := catalog.UpsertCustomer(ctx, c); err != nil {
			return fmt.Errorf("seed customer %s: %w", c.ID, err)
		}
	}
	for _, p := range d.products {
		if err := catalog.UpsertProduct(ctx, p); err != nil {
			return fmt.Errorf("seed product %s: %w", p.ID, err)
		}
	}
	for _, promo := range d.promotions {
		if err := catalog.UpsertPromotion(ctx, promo); err != nil {
			return fmt.Errorf("seed promotion %s: %w", promo.ID, err)
		}
	}
	for region, rate := range d.taxRates {
		if err := catalog.SetTaxRate(ctx, region, rate); err != nil {
			return fmt.Errorf("seed tax rate %s: %w", region, err)
		}
	}
	return nil
}
