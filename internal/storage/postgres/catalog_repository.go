package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// Catalog — справочник клиентов, товаров, акций и налоговых ставок в PostgreSQL.
type Catalog struct {
	db *sql.DB
}

// NewCatalog создаёт PostgreSQL-каталог.
func NewCatalog(store *Store) *Catalog {
	return &Catalog{db: store.DB()}
}

// UpsertCustomer создаёт или обновляет клиента.
func (c *Catalog) UpsertCustomer(ctx context.Context, customer domain.Customer) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := c.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, email, phone)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, email = EXCLUDED.email, phone = EXCLUDED.phone
	`, customer.ID, customer.Name, customer.Email, customer.Phone); err != nil {
		return fmt.Errorf("upsert customer: %w", err)
	}
	return nil
}

// UpsertProduct создаёт или обновляет товар вместе с остатком.
func (c *Catalog) UpsertProduct(ctx context.Context, product domain.Product) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := c.db.ExecContext(ctx, `
		INSERT INTO products (id, sku, name, price, stock)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE
		SET sku = EXCLUDED.sku,
		    name = EXCLUDED.name,
		    price = EXCLUDED.price,
		    stock = EXCLUDED.stock,
		    updated_at = NOW()
	`, product.ID, product.SKU, product.Name, product.Price, product.Stock); err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

// UpsertPromotion сохраняет акцию и полностью заменяет список её товаров.
func (c *Catalog) UpsertPromotion(ctx context.Context, promo domain.Promotion) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return inTx(ctx, c.db, nil, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO promotions (id, active, min_amount, discount_pct)
			VALUES ($1,$2,$3,$4)
			ON CONFLICT (id) DO UPDATE
			SET active = EXCLUDED.active,
			    min_amount = EXCLUDED.min_amount,
			    discount_pct = EXCLUDED.discount_pct
		`, promo.ID, promo.Active, promo.MinAmount, promo.DiscountPct); err != nil {
			return fmt.Errorf("upsert promotion: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM promotion_products WHERE promotion_id = $1`, promo.ID); err != nil {
			return fmt.Errorf("reset promotion products: %w", err)
		}
		for _, productID := range promo.ProductIDs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO promotion_products (promotion_id, product_id) VALUES ($1,$2)
				ON CONFLICT DO NOTHING
			`, promo.ID, productID); err != nil {
				return fmt.Errorf("insert promotion product: %w", err)
			}
		}
		return nil
	})
}

// SetTaxRate задаёт ставку налога для региона.
func (c *Catalog) SetTaxRate(ctx context.Context, region string, rate decimal.Decimal) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := c.db.ExecContext(ctx, `
		INSERT INTO tax_rates (region, rate) VALUES ($1,$2)
		ON CONFLICT (region) DO UPDATE SET rate = EXCLUDED.rate
	`, region, rate); err != nil {
		return fmt.Errorf("set tax rate: %w", err)
	}
	return nil
}

func (c *Catalog) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var customer domain.Customer
	err := c.db.QueryRowContext(ctx, `
		SELECT id, name, email, phone FROM customers WHERE id = $1
	`, id).Scan(&customer.ID, &customer.Name, &customer.Email, &customer.Phone)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Customer{}, domain.ErrCustomerNotFound
		}
		return domain.Customer{}, fmt.Errorf("select customer: %w", err)
	}
	return customer, nil
}

func (c *Catalog) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var product domain.Product
	err := c.db.QueryRowContext(ctx, `
		SELECT id, sku, name, price, stock FROM products WHERE id = $1
	`, id).Scan(&product.ID, &product.SKU, &product.Name, &product.Price, &product.Stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}
	return product, nil
}

func (c *Catalog) ActivePromotions(ctx context.Context) ([]domain.Promotion, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, `
		SELECT p.id, p.min_amount, p.discount_pct, pp.product_id
		FROM promotions p
		LEFT JOIN promotion_products pp ON pp.promotion_id = p.id
		WHERE p.active
		ORDER BY p.id, pp.product_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list promotions: %w", err)
	}
	defer rows.Close()

	promos := make([]domain.Promotion, 0)
	for rows.Next() {
		var (
			id        string
			minAmount decimal.Decimal
			pct       decimal.Decimal
			productID sql.NullString
		)
		if err := rows.Scan(&id, &minAmount, &pct, &productID); err != nil {
			return nil, fmt.Errorf("scan promotion: %w", err)
		}
		if len(promos) == 0 || promos[len(promos)-1].ID != id {
			promos = append(promos, domain.Promotion{ID: id, Active: true, MinAmount: minAmount, DiscountPct: pct})
		}
		if productID.Valid {
			last := &promos[len(promos)-1]
			last.ProductIDs = append(last.ProductIDs, productID.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate promotions: %w", err)
	}
	return promos, nil
}

func (c *Catalog) TaxRate(ctx context.Context, region string) (decimal.Decimal, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var rate decimal.Decimal
	err := c.db.QueryRowContext(ctx, `SELECT rate FROM tax_rates WHERE region = $1`, region).Scan(&rate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, fmt.Errorf("select tax rate: %w", err)
	}
	return rate, true, nil
}

var (
	_ domain.CustomerDirectory = (*Catalog)(nil)
	_ domain.ProductCatalog    = (*Catalog)(nil)
	_ domain.PromotionSource   = (*Catalog)(nil)
	_ domain.TaxRateSource     = (*Catalog)(nil)
)
