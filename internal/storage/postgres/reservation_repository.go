package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// ReservationRepository резервирует остатки в PostgreSQL. Строки товаров
// блокируются через SELECT ... FOR UPDATE в порядке product_id, поэтому
// параллельные резервы не приводят к дедлокам и перепродаже.
type ReservationRepository struct {
	db     *sql.DB
	audit  domain.AuditRecorder
	logger *log.Entry
}

// NewReservationRepository создаёт PostgreSQL-реализацию InventoryService.
// audit может быть nil.
func NewReservationRepository(store *Store, audit domain.AuditRecorder, logger *log.Entry) *ReservationRepository {
	if logger == nil {
		logger = log.New().WithField("component", "postgres-inventory")
	}
	return &ReservationRepository{db: store.DB(), audit: audit, logger: logger}
}

// Reserve списывает все позиции со свободного остатка или ни одной.
func (r *ReservationRepository) Reserve(ctx context.Context, orderID string, items []domain.ReservationItem) (result domain.ReservationResult, err error) {
	if errs := domain.ValidateReservationItems(items); len(errs) > 0 {
		return domain.ReservationResult{}, errs[0]
	}
	demand := domain.AggregateDemand(items)

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.ReservationResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil || !result.Reserved {
			_ = tx.Rollback()
		}
	}()

	if orderID != "" {
		var existing string
		scanErr := tx.QueryRowContext(ctx, `
			SELECT id FROM reservations WHERE order_id = $1 AND status = 'active'
		`, orderID).Scan(&existing)
		switch {
		case scanErr == nil:
			if err = tx.Commit(); err != nil {
				return domain.ReservationResult{}, fmt.Errorf("commit reservation lookup: %w", err)
			}
			return domain.ReservationResult{Reserved: true, ReservationID: existing}, nil
		case !errors.Is(scanErr, sql.ErrNoRows):
			return domain.ReservationResult{}, fmt.Errorf("lookup reservation: %w", scanErr)
		}
	}

	var failures []domain.StockFailure
	for _, item := range demand {
		var stock int32
		scanErr := tx.QueryRowContext(ctx, `
			SELECT stock FROM products WHERE id = $1 FOR UPDATE
		`, item.ProductID).Scan(&stock)
		switch {
		case errors.Is(scanErr, sql.ErrNoRows):
			failures = append(failures, domain.StockFailure{
				ProductID: item.ProductID,
				Reason:    domain.StockFailureProductNotFound,
				Requested: item.Requested(),
			})
		case scanErr != nil:
			return domain.ReservationResult{}, fmt.Errorf("lock product %s: %w", item.ProductID, scanErr)
		case !item.CoveredBy(stock):
			failures = append(failures, domain.StockFailure{
				ProductID: item.ProductID,
				Reason:    domain.StockFailureInsufficient,
				Requested: item.Requested(),
				Available: stock,
			})
		}
	}
	if len(failures) > 0 {
		r.logger.WithFields(log.Fields{"order_id": orderID, "failures": len(failures)}).Info("reservation rejected")
		return domain.ReservationResult{Reserved: false, Failures: failures}, nil
	}

	now := time.Now().UTC()
	reservationID := uuid.NewString()
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO reservations (id, order_id, status, created_at, updated_at)
		VALUES ($1,$2,'active',$3,$3)
	`, reservationID, orderID, now); err != nil {
		return domain.ReservationResult{}, fmt.Errorf("insert reservation: %w", err)
	}

	reserved := make([]domain.ReservationItem, 0, len(demand))
	for _, d := range demand {
		item := d.Item()
		reserved = append(reserved, item)
		if _, err = tx.ExecContext(ctx, `
			UPDATE products SET stock = stock - $1, updated_at = $2 WHERE id = $3
		`, item.Quantity, now, item.ProductID); err != nil {
			return domain.ReservationResult{}, fmt.Errorf("decrement stock %s: %w", item.ProductID, err)
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO reservation_items (reservation_id, product_id, quantity) VALUES ($1,$2,$3)
		`, reservationID, item.ProductID, item.Quantity); err != nil {
			return domain.ReservationResult{}, fmt.Errorf("insert reservation item: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return domain.ReservationResult{}, fmt.Errorf("commit reservation: %w", err)
	}

	r.recordAudit(ctx, domain.AuditInventoryReserved, orderID, reservationID, reserved)
	result = domain.ReservationResult{Reserved: true, ReservationID: reservationID}
	return result, nil
}

// Release возвращает остаток по резерву. Повторный вызов и неизвестный ID — no-op.
func (r *ReservationRepository) Release(ctx context.Context, reservationID string) (err error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var orderID string
	err = tx.QueryRowContext(ctx, `
		UPDATE reservations
		SET status = 'released', updated_at = $2
		WHERE id = $1 AND status = 'active'
		RETURNING order_id
	`, reservationID, time.Now().UTC()).Scan(&orderID)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		_ = tx.Rollback()
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark reservation released: %w", err)
	}

	items, err := loadReservationItems(ctx, tx, reservationID)
	if err != nil {
		return err
	}
	for _, item := range items {
		if _, err = tx.ExecContext(ctx, `
			UPDATE products SET stock = stock + $1, updated_at = NOW() WHERE id = $2
		`, item.Quantity, item.ProductID); err != nil {
			return fmt.Errorf("restore stock %s: %w", item.ProductID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit release: %w", err)
	}

	r.recordAudit(ctx, domain.AuditInventoryReleased, orderID, reservationID, items)
	return nil
}

// ReleaseByOrder снимает активный резерв заказа, если он есть.
func (r *ReservationRepository) ReleaseByOrder(ctx context.Context, orderID string) error {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var reservationID string
	err := r.db.QueryRowContext(queryCtx, `
		SELECT id FROM reservations WHERE order_id = $1 AND status = 'active'
	`, orderID).Scan(&reservationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup reservation by order: %w", err)
	}
	return r.Release(ctx, reservationID)
}

// Reservation возвращает резерв по ID.
func (r *ReservationRepository) Reservation(ctx context.Context, reservationID string) (domain.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		res    domain.Reservation
		status string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, order_id, status, created_at, updated_at FROM reservations WHERE id = $1
	`, reservationID).Scan(&res.ID, &res.OrderID, &status, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("select reservation: %w", err)
	}
	res.Status = domain.ReservationStatus(status)

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res.Items, err = loadReservationItems(ctx, tx, reservationID)
	if err != nil {
		return domain.Reservation{}, err
	}
	return res, nil
}

func (r *ReservationRepository) recordAudit(ctx context.Context, eventType, orderID, reservationID string, items []domain.ReservationItem) {
	if r.audit == nil {
		return
	}
	lines := make([]map[string]any, 0, len(items))
	for _, item := range items {
		lines = append(lines, map[string]any{"product_id": item.ProductID, "quantity": item.Quantity})
	}
	if err := r.audit.Record(context.WithoutCancel(ctx), eventType, orderID, map[string]any{
		"reservation_id": reservationID,
		"items":          lines,
	}); err != nil {
		r.logger.WithError(err).WithField("reservation_id", reservationID).Warn("inventory audit failed")
	}
}

func loadReservationItems(ctx context.Context, tx *sql.Tx, reservationID string) ([]domain.ReservationItem, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT product_id, quantity FROM reservation_items
		WHERE reservation_id = $1
		ORDER BY product_id
	`, reservationID)
	if err != nil {
		return nil, fmt.Errorf("load reservation items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.ReservationItem, 0)
	for rows.Next() {
		var item domain.ReservationItem
		if err := rows.Scan(&item.ProductID, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan reservation item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reservation items: %w", err)
	}
	return items, nil
}

var _ domain.InventoryService = (*ReservationRepository)(nil)
