package domain

import "github.com/shopspring/decimal"

// Customer — запись клиента из внешнего справочника.
type Customer struct {
	ID    string
	Name  string
	Email string
	Phone string
}

// Product — товар каталога с текущей ценой и свободным остатком.
type Product struct {
	ID    string
	SKU   string
	Name  string
	Price decimal.Decimal
	Stock int32
}

// Promotion — правило скидки; используется только как вход для расчёта цены.
type Promotion struct {
	ID          string
	Active      bool
	MinAmount   decimal.Decimal
	DiscountPct decimal.Decimal
	ProductIDs  []string
}

// Eligible сообщает, участвует ли товар в акции.
func (p Promotion) Eligible(productID string) bool {
	for _, id := range p.ProductIDs {
		if id == productID {
			return true
		}
	}
	return false
}
