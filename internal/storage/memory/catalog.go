package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// Catalog — in-memory справочник клиентов, товаров, акций и налоговых ставок.
// Заменяет внешние CRUD-сервисы в локальном режиме и тестах.
type Catalog struct {
	mu         sync.RWMutex
	customers  map[string]domain.Customer
	products   map[string]domain.Product
	promotions map[string]domain.Promotion
	taxRates   map[string]decimal.Decimal
}

// NewCatalog создаёт пустой справочник.
func NewCatalog() *Catalog {
	return &Catalog{
		customers:  make(map[string]domain.Customer),
		products:   make(map[string]domain.Product),
		promotions: make(map[string]domain.Promotion),
		taxRates:   make(map[string]decimal.Decimal),
	}
}

// PutCustomer добавляет или заменяет клиента.
func (c *Catalog) PutCustomer(customer domain.Customer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.customers[customer.ID] = customer
}

// PutProduct добавляет или заменяет товар.
func (c *Catalog) PutProduct(product domain.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[product.ID] = product
}

// PutPromotion добавляет или заменяет акцию.
func (c *Catalog) PutPromotion(promo domain.Promotion) {
	c.mu.Lock()
	defer c.mu.Unlock()
	promo.ProductIDs = append([]string(nil), promo.ProductIDs...)
	c.promotions[promo.ID] = promo
}

// SetTaxRate задаёт ставку налога для региона.
func (c *Catalog) SetTaxRate(region string, rate decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.taxRates[region] = rate
}

// GetCustomer возвращает клиента или ErrCustomerNotFound.
func (c *Catalog) GetCustomer(_ context.Context, id string) (domain.Customer, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	customer, ok := c.customers[id]
	if !ok {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	return customer, nil
}

// GetProduct возвращает товар или ErrProductNotFound.
func (c *Catalog) GetProduct(_ context.Context, id string) (domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	product, ok := c.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

// Products возвращает все товары, отсортированные по ID.
func (c *Catalog) Products() []domain.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]domain.Product, 0, len(c.products))
	for _, p := range c.products {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// ActivePromotions возвращает активные акции, отсортированные по ID.
func (c *Catalog) ActivePromotions(_ context.Context) ([]domain.Promotion, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]domain.Promotion, 0, len(c.promotions))
	for _, promo := range c.promotions {
		if !promo.Active {
			continue
		}
		promo.ProductIDs = append([]string(nil), promo.ProductIDs...)
		result = append(result, promo)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// TaxRate возвращает ставку региона; found=false, если ставка не задана.
func (c *Catalog) TaxRate(_ context.Context, region string) (decimal.Decimal, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rate, ok := c.taxRates[region]
	return rate, ok, nil
}

var (
	_ domain.CustomerDirectory = (*Catalog)(nil)
	_ domain.ProductCatalog    = (*Catalog)(nil)
	_ domain.PromotionSource   = (*Catalog)(nil)
	_ domain.TaxRateSource     = (*Catalog)(nil)
)
