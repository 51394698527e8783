package domain

import (
	"math"
	"sort"
	"time"
)

// ReservationStatus отражает статус резерва на складе.
type ReservationStatus string

const (
	// ReservationStatusActive — товар списан со свободного остатка и удерживается за заказом.
	ReservationStatusActive ReservationStatus = "active"
	// ReservationStatusReleased — резерв снят, остаток возвращён.
	ReservationStatusReleased ReservationStatus = "released"
)

// Причины отказа в резерве.
const (
	StockFailureProductNotFound = "Product not found"
	StockFailureInsufficient    = "Insufficient stock"
)

// ReservationItem — одна строка запроса на резерв.
type ReservationItem struct {
	ProductID string
	Quantity  int32
}

// Reservation описывает резерв товаров под заказ.
type Reservation struct {
	ID        string
	OrderID   string
	Items     []ReservationItem
	Status    ReservationStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StockFailure описывает позицию, которую не удалось зарезервировать.
type StockFailure struct {
	ProductID string
	Reason    string
	Requested int32
	Available int32
}

// ReservationResult — ответ склада на Reserve.
// При Reserved=false ничего не списано, а Failures перечисляет все проблемные позиции.
type ReservationResult struct {
	Reserved      bool
	ReservationID string
	Failures      []StockFailure
}

// ValidateReservationItems проверяет запрос на резерв.
func ValidateReservationItems(items []ReservationItem) []error {
	var errs []error
	if len(items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	for _, item := range items {
		if item.ProductID == "" {
			errs = append(errs, ErrProductIDRequired)
		}
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
	}
	return errs
}

// StockDemand — суммарный спрос по одному товару. Сумма считается в int64:
// несколько строк одного товара не должны переполнять int32.
type StockDemand struct {
	ProductID string
	Quantity  int64
}

// AggregateDemand суммирует повторяющиеся товары и сортирует результат по ProductID.
func AggregateDemand(items []ReservationItem) []StockDemand {
	totals := make(map[string]int64, len(items))
	for _, item := range items {
		totals[item.ProductID] += int64(item.Quantity)
	}
	result := make([]StockDemand, 0, len(totals))
	for id, qty := range totals {
		result = append(result, StockDemand{ProductID: id, Quantity: qty})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ProductID < result[j].ProductID })
	return result
}

// CoveredBy сообщает, можно ли списать спрос со свободного остатка.
// Неположительный спрос не покрывается никогда.
func (d StockDemand) CoveredBy(available int32) bool {
	return d.Quantity > 0 && d.Quantity <= int64(available)
}

// Requested — спрос для StockFailure, ограниченный сверху math.MaxInt32.
func (d StockDemand) Requested() int32 {
	if d.Quantity > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(d.Quantity)
}

// Item переводит покрытый спрос в позицию резерва.
func (d StockDemand) Item() ReservationItem {
	return ReservationItem{ProductID: d.ProductID, Quantity: d.Requested()}
}
