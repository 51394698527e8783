package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа после успешного оформления.
type OrderStatus string

const (
	// OrderStatusConfirmed — заказ оплачен, товар зарезервирован.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusShipped — заказ передан в доставку; отмена больше невозможна.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusCancelled — заказ отменён, выполнены компенсации. Конечный статус.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusRefunded — деньги по заказу возвращены клиенту.
	OrderStatusRefunded OrderStatus = "refunded"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusConfirmed, OrderStatusShipped, OrderStatusCancelled, OrderStatusRefunded:
		return true
	default:
		return false
	}
}

// Terminal сообщает, что заказ в этом статусе больше не меняется.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCancelled
}

// LineItem представляет одну позицию заказа.
type LineItem struct {
	ProductID string
	Quantity  int32
	// UnitPrice фиксируется в момент оформления и дальше не меняется.
	UnitPrice decimal.Decimal
}

// LineTotal возвращает UnitPrice * Quantity.
func (li LineItem) LineTotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt32(li.Quantity))
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID               string
	CustomerID       string
	Items            []LineItem
	Subtotal         decimal.Decimal
	Discount         decimal.Decimal
	Tax              decimal.Decimal
	Total            decimal.Decimal
	Currency         string
	ShippingAddress  string
	PaymentReference string
	ReservationID    string
	Status           OrderStatus
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.ShippingAddress == "" {
		errs = append(errs, ErrShippingAddressRequired)
	}
	if !o.Status.Valid() {
		errs = append(errs, ErrStatusInvalid)
	}

	for _, item := range o.Items {
		if item.ProductID == "" {
			errs = append(errs, ErrProductIDRequired)
		}
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.UnitPrice.IsNegative() {
			errs = append(errs, ErrItemPriceInvalid)
		}
	}

	if o.Subtotal.IsNegative() || o.Discount.IsNegative() || o.Tax.IsNegative() || o.Total.IsNegative() {
		errs = append(errs, ErrAmountNegative)
	}
	// total = subtotal - discount + tax без допусков на округление.
	if !o.Subtotal.Sub(o.Discount).Add(o.Tax).Equal(o.Total) {
		errs = append(errs, ErrTotalMismatch)
	}

	return errs
}

// ReservationItems переводит позиции заказа в запрос к складу.
func (o *Order) ReservationItems() []ReservationItem {
	items := make([]ReservationItem, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, ReservationItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return items
}

// ItemRequest — позиция заказа в том виде, в котором её прислал клиент.
// Цена клиента не принимается: она берётся из каталога при расчёте.
type ItemRequest struct {
	ProductID string
	Quantity  int32
}
