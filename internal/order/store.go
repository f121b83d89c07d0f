package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-sneakers/internal/db"
	"github.com/noah-isme/backend-sneakers/internal/pricing"
)

var (
	// ErrNotFound indicates the order does not exist or is not visible to the caller.
	ErrNotFound = errors.New("order not found")
	// ErrInvalidState indicates a status transition that is not allowed.
	ErrInvalidState = errors.New("invalid order state")
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPendingPayment Status = "PENDING_PAYMENT"
	StatusPaid           Status = "PAID"
	StatusPacked         Status = "PACKED"
	StatusShipped        Status = "SHIPPED"
	StatusDelivered      Status = "DELIVERED"
	StatusCanceled       Status = "CANCELED"
)

// Item is a materialized order line. Prices are a snapshot taken at checkout
// and are never recomputed.
type Item struct {
	ID            uuid.UUID
	Position      int
	ProductID     uuid.UUID
	ProductName   string
	ProductSlug   string
	UnitBasePrice pricing.Money
	Quantity      int
	Discount      *pricing.Discount
	Breakdown     pricing.PriceBreakdown
}

// LineItem returns the engine input the line was priced from.
func (it Item) LineItem() pricing.LineItem {
	return pricing.LineItem{UnitBasePrice: it.UnitBasePrice, Quantity: it.Quantity, Discount: it.Discount}
}

// Order is an order header with its lines.
type Order struct {
	ID        uuid.UUID
	UserID    string
	Email     string
	Status    Status
	Currency  pricing.Currency
	Totals    pricing.Totals
	TaxBps    int
	Summary   pricing.Summary
	Notes     string
	CreatedAt time.Time
	Items     []Item
}

// Store persists orders.
type Store interface {
	Insert(ctx context.Context, o *Order) error
	Get(ctx context.Context, id uuid.UUID) (Order, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, int, error)
	ListAll(ctx context.Context, status Status, limit, offset int) ([]Order, int, error)
	SetStatus(ctx context.Context, id uuid.UUID, from, to Status) error
	RestoreStock(ctx context.Context, items []Item) error
}

// PGStore implements Store on Postgres, on a pool or inside a transaction.
type PGStore struct {
	db db.DBTX
}

// NewPGStore constructs a PGStore.
func NewPGStore(conn db.DBTX) *PGStore {
	return &PGStore{db: conn}
}

// Insert writes the header and every item. IDs and positions are assigned when missing.
func (s *PGStore) Insert(ctx context.Context, o *Order) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO orders (id, user_id, email, status, currency_symbol, minor_units,
			total_quantity, total_base_price, total_discount, total_final_price,
			tax_bps, tax, shipping, grand_total, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at`,
		o.ID, o.UserID, o.Email, string(o.Status), o.Currency.Symbol, o.Currency.MinorUnits,
		o.Totals.TotalQuantity, o.Totals.TotalBasePrice, o.Totals.TotalDiscount, o.Totals.TotalFinalPrice,
		o.TaxBps, o.Summary.Tax, o.Summary.Shipping, o.Summary.Total, o.Notes,
	).Scan(&o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	for i := range o.Items {
		it := &o.Items[i]
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		if it.Position == 0 {
			it.Position = i + 1
		}
		var dType *string
		var dValue *int64
		if it.Discount != nil {
			t := string(it.Discount.Type)
			v := it.Discount.Value
			dType, dValue = &t, &v
		}
		_, err := s.db.Exec(ctx, `
			INSERT INTO order_items (id, order_id, position, product_id, product_name, product_slug,
				unit_base_price, quantity, discount_type, discount_value, base_price, discount_amount, final_price)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			it.ID, o.ID, it.Position, it.ProductID, it.ProductName, it.ProductSlug,
			it.UnitBasePrice, it.Quantity, dType, dValue,
			it.Breakdown.BasePrice, it.Breakdown.DiscountAmount, it.Breakdown.FinalPrice,
		)
		if err != nil {
			return fmt.Errorf("insert order item %d: %w", it.Position, err)
		}
	}
	return nil
}

const orderColumns = `id, user_id, email, status, currency_symbol, minor_units, total_quantity,
	total_base_price, total_discount, total_final_price, tax_bps, tax, shipping, grand_total, notes, created_at`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o      Order
		status string
	)
	err := row.Scan(&o.ID, &o.UserID, &o.Email, &status, &o.Currency.Symbol, &o.Currency.MinorUnits,
		&o.Totals.TotalQuantity, &o.Totals.TotalBasePrice, &o.Totals.TotalDiscount, &o.Totals.TotalFinalPrice,
		&o.TaxBps, &o.Summary.Tax, &o.Summary.Shipping, &o.Summary.Total, &o.Notes, &o.CreatedAt)
	if err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	o.Summary.Subtotal = o.Totals.TotalBasePrice
	if o.Totals.TotalDiscount != nil {
		o.Summary.Discount = *o.Totals.TotalDiscount
	}
	return o, nil
}

func (s *PGStore) Get(ctx context.Context, id uuid.UUID) (Order, error) {
	o, err := scanOrder(s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("get order: %w", err)
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, position, product_id, product_name, product_slug, unit_base_price, quantity,
			discount_type, discount_value, base_price, discount_amount, final_price
		FROM order_items WHERE order_id = $1 ORDER BY position`, id)
	if err != nil {
		return Order{}, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			it     Item
			dType  *string
			dValue *int64
		)
		if err := rows.Scan(&it.ID, &it.Position, &it.ProductID, &it.ProductName, &it.ProductSlug,
			&it.UnitBasePrice, &it.Quantity, &dType, &dValue,
			&it.Breakdown.BasePrice, &it.Breakdown.DiscountAmount, &it.Breakdown.FinalPrice); err != nil {
			return Order{}, fmt.Errorf("scan order item: %w", err)
		}
		if dType != nil && dValue != nil {
			it.Discount = &pricing.Discount{Type: pricing.DiscountType(*dType), Value: *dValue, Active: true}
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return Order{}, fmt.Errorf("iterate order items: %w", err)
	}
	return o, nil
}

func (s *PGStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, int, error) {
	return s.list(ctx, `user_id = $1`, userID, limit, offset)
}

func (s *PGStore) ListAll(ctx context.Context, status Status, limit, offset int) ([]Order, int, error) {
	return s.list(ctx, `($1 = '' OR status = $1)`, string(status), limit, offset)
}

func (s *PGStore) list(ctx context.Context, where string, arg any, limit, offset int) ([]Order, int, error) {
	var total int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM orders WHERE `+where, arg).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	rows, err := s.db.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+where+`
		ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`, arg, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

// SetStatus moves the order from one status to another. ErrInvalidState is
// returned when the order is no longer in from.
func (s *PGStore) SetStatus(ctx context.Context, id uuid.UUID, from, to Status) error {
	tag, err := s.db.Exec(ctx, `UPDATE orders SET status = $3 WHERE id = $1 AND status = $2`, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// RestoreStock puts the quantities of items back on their products.
func (s *PGStore) RestoreStock(ctx context.Context, items []Item) error {
	for _, it := range items {
		if _, err := s.db.Exec(ctx, `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`, it.ProductID, it.Quantity); err != nil {
			return fmt.Errorf("restore stock: %w", err)
		}
	}
	return nil
}

// TxRunner runs fn against a Store bound to one transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(Store) error) error
}

// PGTx is the Postgres TxRunner.
type PGTx struct {
	Pool db.TxBeginner
}

func (p PGTx) InTx(ctx context.Context, fn func(Store) error) error {
	return db.InTx(ctx, p.Pool, func(tx pgx.Tx) error {
		return fn(NewPGStore(tx))
	})
}
