package pricing

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

const (
	// DefaultTaxRegion — регион, ставка которого применяется по умолчанию.
	DefaultTaxRegion = "default"
	moneyPlaces      = 2
)

// DefaultTaxRate используется, если для региона ставка не настроена.
var DefaultTaxRate = decimal.RequireFromString("0.10")

var hundred = decimal.NewFromInt(100)

// Quote — результат расчёта стоимости заказа.
type Quote struct {
	// Lines содержат цены из каталога, зафиксированные на момент расчёта.
	Lines       []domain.LineItem
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	Tax         decimal.Decimal
	Total       decimal.Decimal
	TaxRate     decimal.Decimal
	PromotionID string
}

// Engine считает subtotal, скидку, налог и итог по текущим ценам каталога.
type Engine struct {
	products   domain.ProductCatalog
	promotions domain.PromotionSource
	taxes      domain.TaxRateSource

	region      string
	defaultRate decimal.Decimal
	logger      *log.Entry
}

// Option настраивает Engine.
type Option func(*Engine)

// WithTaxRegion задаёт регион для выбора налоговой ставки.
func WithTaxRegion(region string) Option {
	return func(e *Engine) {
		if region != "" {
			e.region = region
		}
	}
}

// WithDefaultTaxRate переопределяет ставку по умолчанию.
func WithDefaultTaxRate(rate decimal.Decimal) Option {
	return func(e *Engine) {
		if !rate.IsNegative() {
			e.defaultRate = rate
		}
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine создаёт движок расчёта цены.
func NewEngine(products domain.ProductCatalog, promotions domain.PromotionSource, taxes domain.TaxRateSource, opts ...Option) *Engine {
	e := &Engine{
		products:    products,
		promotions:  promotions,
		taxes:       taxes,
		region:      DefaultTaxRegion,
		defaultRate: DefaultTaxRate,
		logger:      log.New().WithField("component", "pricing-engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Quote рассчитывает стоимость позиций.
func (e *Engine) Quote(ctx context.Context, items []domain.ItemRequest) (Quote, error) {
	if len(items) == 0 {
		return Quote{}, domain.ErrItemsRequired
	}

	lines := make([]domain.LineItem, 0, len(items))
	subtotal := decimal.Zero
	for _, item := range items {
		if item.Quantity <= 0 {
			return Quote{}, fmt.Errorf("product %s: %w", item.ProductID, domain.ErrItemQtyInvalid)
		}
		product, err := e.products.GetProduct(ctx, item.ProductID)
		if err != nil {
			return Quote{}, fmt.Errorf("price product %s: %w", item.ProductID, err)
		}
		line := domain.LineItem{ProductID: item.ProductID, Quantity: item.Quantity, UnitPrice: product.Price}
		lines = append(lines, line)
		subtotal = subtotal.Add(line.LineTotal())
	}

	discount, promoID, err := e.discount(ctx, subtotal, lines)
	if err != nil {
		return Quote{}, err
	}

	rate, err := e.taxRate(ctx)
	if err != nil {
		return Quote{}, err
	}
	tax := subtotal.Sub(discount).Mul(rate).Round(moneyPlaces)

	quote := Quote{
		Lines:       lines,
		Subtotal:    subtotal,
		Discount:    discount,
		Tax:         tax,
		Total:       subtotal.Sub(discount).Add(tax),
		TaxRate:     rate,
		PromotionID: promoID,
	}

	e.logger.WithFields(log.Fields{
		"subtotal":  quote.Subtotal.StringFixed(moneyPlaces),
		"discount":  quote.Discount.StringFixed(moneyPlaces),
		"tax":       quote.Tax.StringFixed(moneyPlaces),
		"total":     quote.Total.StringFixed(moneyPlaces),
		"promotion": promoID,
	}).Debug("order priced")

	return quote, nil
}

// discount выбирает одну акцию с максимальным процентом среди подходящих по сумме.
// Если в корзине нет товаров этой акции, скидка равна нулю.
func (e *Engine) discount(ctx context.Context, subtotal decimal.Decimal, lines []domain.LineItem) (decimal.Decimal, string, error) {
	if e.promotions == nil {
		return decimal.Zero, "", nil
	}

	promos, err := e.promotions.ActivePromotions(ctx)
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("load promotions: %w", err)
	}

	best, ok := selectPromotion(promos, subtotal)
	if !ok {
		return decimal.Zero, "", nil
	}

	var eligibleQty int64
	for _, line := range lines {
		if best.Eligible(line.ProductID) {
			eligibleQty += int64(line.Quantity)
		}
	}
	if eligibleQty == 0 {
		return decimal.Zero, "", nil
	}

	return subtotal.Mul(best.DiscountPct).Div(hundred).Round(moneyPlaces), best.ID, nil
}

func selectPromotion(promos []domain.Promotion, subtotal decimal.Decimal) (domain.Promotion, bool) {
	candidates := make([]domain.Promotion, 0, len(promos))
	for _, promo := range promos {
		if promo.Active && promo.MinAmount.LessThanOrEqual(subtotal) {
			candidates = append(candidates, promo)
		}
	}
	if len(candidates) == 0 {
		return domain.Promotion{}, false
	}

	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].DiscountPct.Equal(candidates[j].DiscountPct) {
			return candidates[i].DiscountPct.GreaterThan(candidates[j].DiscountPct)
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates[0], true
}

func (e *Engine) taxRate(ctx context.Context) (decimal.Decimal, error) {
	if e.taxes == nil {
		return e.defaultRate, nil
	}
	rate, found, err := e.taxes.TaxRate(ctx, e.region)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load tax rate for %s: %w", e.region, err)
	}
	if !found {
		return e.defaultRate, nil
	}
	return rate, nil
}
