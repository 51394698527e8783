package inventory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/metrics"
)

// stockCell — свободный остаток одного товара под собственной блокировкой.
type stockCell struct {
	mu        sync.Mutex
	available int32
}

// Ledger — in-process реализация InventoryService.
// Проверка и списание остатка выполняются под блокировками всех товаров резерва,
// которые берутся в порядке возрастания ID, поэтому параллельные резервы не
// приводят к overselling и не дают взаимных блокировок.
type Ledger struct {
	cellsMu sync.RWMutex
	cells   map[string]*stockCell

	resMu        sync.Mutex
	reservations map[string]*domain.Reservation
	byOrder      map[string]string

	audit   domain.AuditRecorder
	metrics *metrics.InventoryMetrics
	logger  *log.Entry
	now     func() time.Time
}

// Option настраивает Ledger.
type Option func(*Ledger)

// WithAuditRecorder включает аудит резервов.
func WithAuditRecorder(audit domain.AuditRecorder) Option {
	return func(l *Ledger) { l.audit = audit }
}

// WithMetrics подключает метрики склада.
func WithMetrics(m *metrics.InventoryMetrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLedger создаёт пустой склад.
func NewLedger(opts ...Option) *Ledger {
	l := &Ledger{
		cells:        make(map[string]*stockCell),
		reservations: make(map[string]*domain.Reservation),
		byOrder:      make(map[string]string),
		logger:       log.New().WithField("component", "inventory-ledger"),
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetStock задаёт свободный остаток товара.
func (l *Ledger) SetStock(productID string, qty int32) {
	l.cellsMu.Lock()
	cell, ok := l.cells[productID]
	if !ok {
		cell = &stockCell{}
		l.cells[productID] = cell
	}
	l.cellsMu.Unlock()

	cell.mu.Lock()
	cell.available = qty
	cell.mu.Unlock()
}

// Available возвращает свободный остаток товара.
func (l *Ledger) Available(productID string) (int32, bool) {
	cell := l.cell(productID)
	if cell == nil {
		return 0, false
	}
	cell.mu.Lock()
	defer cell.mu.Unlock()
	return cell.available, true
}

// Reservation возвращает копию резерва по ID.
func (l *Ledger) Reservation(id string) (domain.Reservation, bool) {
	l.resMu.Lock()
	defer l.resMu.Unlock()

	res, ok := l.reservations[id]
	if !ok {
		return domain.Reservation{}, false
	}
	return cloneReservation(res), true
}

// Reserve резервирует все позиции или ни одной.
func (l *Ledger) Reserve(ctx context.Context, orderID string, items []domain.ReservationItem) (domain.ReservationResult, error) {
	if errs := domain.ValidateReservationItems(items); len(errs) > 0 {
		return domain.ReservationResult{}, errs[0]
	}
	if err := ctx.Err(); err != nil {
		return domain.ReservationResult{}, err
	}

	if existing, ok := l.activeForOrder(orderID); ok {
		return domain.ReservationResult{Reserved: true, ReservationID: existing}, nil
	}

	demand := domain.AggregateDemand(items)
	failures := l.take(demand)
	if len(failures) > 0 {
		if l.metrics != nil {
			l.metrics.RecordRejected()
		}
		l.logger.WithFields(log.Fields{"order_id": orderID, "failures": len(failures)}).Info("reservation rejected")
		return domain.ReservationResult{Reserved: false, Failures: failures}, nil
	}

	now := l.now()
	res := &domain.Reservation{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		Items:     append([]domain.ReservationItem(nil), items...),
		Status:    domain.ReservationStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	l.resMu.Lock()
	if orderID != "" {
		if existingID, ok := l.byOrder[orderID]; ok && l.reservations[existingID].Status == domain.ReservationStatusActive {
			l.resMu.Unlock()
			l.put(demand)
			return domain.ReservationResult{Reserved: true, ReservationID: existingID}, nil
		}
		l.byOrder[orderID] = res.ID
	}
	l.reservations[res.ID] = res
	l.resMu.Unlock()

	if l.metrics != nil {
		l.metrics.RecordReserved(totalUnits(demand))
	}
	l.recordAudit(ctx, domain.AuditInventoryReserved, res)

	l.logger.WithFields(log.Fields{"order_id": orderID, "reservation_id": res.ID}).Debug("stock reserved")
	return domain.ReservationResult{Reserved: true, ReservationID: res.ID}, nil
}

// Release возвращает остаток по резерву. Повторный вызов и неизвестный ID — no-op.
func (l *Ledger) Release(ctx context.Context, reservationID string) error {
	l.resMu.Lock()
	res, ok := l.reservations[reservationID]
	if !ok || res.Status != domain.ReservationStatusActive {
		l.resMu.Unlock()
		return nil
	}
	res.Status = domain.ReservationStatusReleased
	res.UpdatedAt = l.now()
	snapshot := cloneReservation(res)
	l.resMu.Unlock()

	demand := domain.AggregateDemand(snapshot.Items)
	l.put(demand)

	if l.metrics != nil {
		l.metrics.RecordReleased(totalUnits(demand))
	}
	l.recordAudit(ctx, domain.AuditInventoryReleased, &snapshot)

	l.logger.WithFields(log.Fields{"order_id": snapshot.OrderID, "reservation_id": snapshot.ID}).Debug("reservation released")
	return nil
}

// ReleaseByOrder снимает активный резерв заказа, если он есть.
func (l *Ledger) ReleaseByOrder(ctx context.Context, orderID string) error {
	id, ok := l.activeForOrder(orderID)
	if !ok {
		return nil
	}
	return l.Release(ctx, id)
}

func (l *Ledger) activeForOrder(orderID string) (string, bool) {
	if orderID == "" {
		return "", false
	}
	l.resMu.Lock()
	defer l.resMu.Unlock()

	id, ok := l.byOrder[orderID]
	if !ok || l.reservations[id].Status != domain.ReservationStatusActive {
		return "", false
	}
	return id, true
}

// take списывает остаток под блокировками всех затронутых товаров.
// При любой нехватке ничего не списывается и возвращаются все проблемные позиции.
func (l *Ledger) take(demand []domain.StockDemand) []domain.StockFailure {
	cells := make([]*stockCell, len(demand))
	var failures []domain.StockFailure

	for i, item := range demand {
		cell := l.cell(item.ProductID)
		if cell == nil {
			failures = append(failures, domain.StockFailure{
				ProductID: item.ProductID,
				Reason:    domain.StockFailureProductNotFound,
				Requested: item.Requested(),
			})
			continue
		}
		cells[i] = cell
	}

	for _, cell := range cells {
		if cell != nil {
			cell.mu.Lock()
		}
	}
	defer func() {
		for _, cell := range cells {
			if cell != nil {
				cell.mu.Unlock()
			}
		}
	}()

	for i, item := range demand {
		if cells[i] == nil {
			continue
		}
		if !item.CoveredBy(cells[i].available) {
			failures = append(failures, domain.StockFailure{
				ProductID: item.ProductID,
				Reason:    domain.StockFailureInsufficient,
				Requested: item.Requested(),
				Available: cells[i].available,
			})
		}
	}
	if len(failures) > 0 {
		sort.SliceStable(failures, func(i, j int) bool { return failures[i].ProductID < failures[j].ProductID })
		return failures
	}

	for i, item := range demand {
		cells[i].available -= item.Item().Quantity
	}
	return nil
}

func (l *Ledger) put(demand []domain.StockDemand) {
	for _, item := range demand {
		cell := l.cell(item.ProductID)
		if cell == nil {
			continue
		}
		cell.mu.Lock()
		cell.available += item.Item().Quantity
		cell.mu.Unlock()
	}
}

func (l *Ledger) cell(productID string) *stockCell {
	l.cellsMu.RLock()
	defer l.cellsMu.RUnlock()
	return l.cells[productID]
}

func (l *Ledger) recordAudit(ctx context.Context, eventType string, res *domain.Reservation) {
	if l.audit == nil {
		return
	}
	items := make([]map[string]any, 0, len(res.Items))
	for _, item := range res.Items {
		items = append(items, map[string]any{"product_id": item.ProductID, "quantity": item.Quantity})
	}
	payload := map[string]any{"reservation_id": res.ID, "order_id": res.OrderID, "items": items}
	if err := l.audit.Record(ctx, eventType, res.ID, payload); err != nil {
		l.logger.WithError(err).WithField("reservation_id", res.ID).Warn("inventory audit failed")
	}
}

func totalUnits(demand []domain.StockDemand) int64 {
	var total int64
	for _, item := range demand {
		total += item.Quantity
	}
	return total
}

func cloneReservation(res *domain.Reservation) domain.Reservation {
	dst := *res
	dst.Items = append([]domain.ReservationItem(nil), res.Items...)
	return dst
}

var _ domain.InventoryService = (*Ledger)(nil)
