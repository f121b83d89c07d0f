package cart

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
	// ErrNotFound indicates the requested cart could not be located.
	ErrNotFound = errors.New("cart not found")
	// ErrItemNotFound indicates the cart has no such item.
	ErrItemNotFound = errors.New("cart item not found")
	// ErrProductNotFound indicates the product being added does not exist.
	ErrProductNotFound = errors.New("product not found")
	// ErrInvalidInput is returned when the provided payload is invalid.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInsufficientStock is returned when the requested quantity exceeds stock.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Cart is a cart header row.
type Cart struct {
	ID        uuid.UUID
	UserID    *string
	AnonID    *string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item is a bare cart item row.
type Item struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	Quantity  int
}

// Line is a cart item joined with its product and the product's active discount.
type Line struct {
	ItemID        uuid.UUID
	ProductID     uuid.UUID
	Name          string
	Slug          string
	ImageURL      string
	UnitBasePrice pricing.Money
	Stock         int
	Quantity      int
	Discount      *pricing.Discount
}

// LineItem converts the line into the pricing engine's input.
func (l Line) LineItem() pricing.LineItem {
	return pricing.LineItem{UnitBasePrice: l.UnitBasePrice, Quantity: l.Quantity, Discount: l.Discount}
}

// Store is the persistence contract used by Service.
type Store interface {
	GetCart(ctx context.Context, id uuid.UUID) (Cart, error)
	FindActiveCart(ctx context.Context, userID, anonID string, now time.Time) (Cart, error)
	CreateCart(ctx context.Context, userID, anonID *string, expiresAt time.Time) (Cart, error)
	Touch(ctx context.Context, id uuid.UUID, expiresAt time.Time) error
	ProductStock(ctx context.Context, productID uuid.UUID) (int, error)
	GetItem(ctx context.Context, cartID, itemID uuid.UUID) (Item, error)
	FindItem(ctx context.Context, cartID, productID uuid.UUID) (Item, error)
	AddQuantity(ctx context.Context, cartID, productID uuid.UUID, qty int) error
	SetQuantity(ctx context.Context, cartID, itemID uuid.UUID, qty int) error
	RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) error
	ListLines(ctx context.Context, cartID uuid.UUID) ([]Line, error)
	MergeInto(ctx context.Context, fromID, toID uuid.UUID) error
	ClearItems(ctx context.Context, cartID uuid.UUID) error
}

// PGStore implements Store on Postgres. It runs equally on a pool or inside a transaction.
type PGStore struct {
	db db.DBTX
}

// NewPGStore constructs a PGStore.
func NewPGStore(conn db.DBTX) *PGStore {
	return &PGStore{db: conn}
}

const cartColumns = `id, user_id, anon_id, expires_at, created_at, updated_at`

func scanCart(row pgx.Row) (Cart, error) {
	var c Cart
	err := row.Scan(&c.ID, &c.UserID, &c.AnonID, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Cart{}, ErrNotFound
	}
	return c, err
}

func (s *PGStore) GetCart(ctx context.Context, id uuid.UUID) (Cart, error) {
	c, err := scanCart(s.db.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE id = $1`, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Cart{}, fmt.Errorf("get cart: %w", err)
	}
	return c, err
}

// GetCartForUpdate locks the cart row for the rest of the transaction.
func (s *PGStore) GetCartForUpdate(ctx context.Context, id uuid.UUID) (Cart, error) {
	c, err := scanCart(s.db.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE id = $1 FOR UPDATE`, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Cart{}, fmt.Errorf("lock cart: %w", err)
	}
	return c, err
}

func (s *PGStore) FindActiveCart(ctx context.Context, userID, anonID string, now time.Time) (Cart, error) {
	var row pgx.Row
	if userID != "" {
		row = s.db.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts
			WHERE user_id = $1 AND expires_at > $2 ORDER BY updated_at DESC LIMIT 1`, userID, now)
	} else {
		row = s.db.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts
			WHERE anon_id = $1 AND user_id IS NULL AND expires_at > $2 ORDER BY updated_at DESC LIMIT 1`, anonID, now)
	}
	c, err := scanCart(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Cart{}, fmt.Errorf("find cart: %w", err)
	}
	return c, err
}

func (s *PGStore) CreateCart(ctx context.Context, userID, anonID *string, expiresAt time.Time) (Cart, error) {
	c, err := scanCart(s.db.QueryRow(ctx, `INSERT INTO carts (id, user_id, anon_id, expires_at)
		VALUES ($1, $2, $3, $4) RETURNING `+cartColumns, uuid.New(), userID, anonID, expiresAt))
	if err != nil {
		return Cart{}, fmt.Errorf("create cart: %w", err)
	}
	return c, nil
}

func (s *PGStore) Touch(ctx context.Context, id uuid.UUID, expiresAt time.Time) error {
	if _, err := s.db.Exec(ctx, `UPDATE carts SET expires_at = $2, updated_at = now() WHERE id = $1`, id, expiresAt); err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}
	return nil
}

func (s *PGStore) ProductStock(ctx context.Context, productID uuid.UUID) (int, error) {
	var stock int
	err := s.db.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrProductNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("product stock: %w", err)
	}
	return stock, nil
}

func (s *PGStore) scanItem(row pgx.Row) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.ProductID, &it.Quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrItemNotFound
	}
	if err != nil {
		return Item{}, fmt.Errorf("get cart item: %w", err)
	}
	return it, nil
}

func (s *PGStore) GetItem(ctx context.Context, cartID, itemID uuid.UUID) (Item, error) {
	return s.scanItem(s.db.QueryRow(ctx, `SELECT id, product_id, quantity FROM cart_items
		WHERE cart_id = $1 AND id = $2`, cartID, itemID))
}

func (s *PGStore) FindItem(ctx context.Context, cartID, productID uuid.UUID) (Item, error) {
	return s.scanItem(s.db.QueryRow(ctx, `SELECT id, product_id, quantity FROM cart_items
		WHERE cart_id = $1 AND product_id = $2`, cartID, productID))
}

func (s *PGStore) AddQuantity(ctx context.Context, cartID, productID uuid.UUID, qty int) error {
	_, err := s.db.Exec(ctx, `INSERT INTO cart_items (id, cart_id, product_id, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cart_id, product_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`,
		uuid.New(), cartID, productID, qty)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrProductNotFound
		}
		return fmt.Errorf("add cart item: %w", err)
	}
	return nil
}

func (s *PGStore) SetQuantity(ctx context.Context, cartID, itemID uuid.UUID, qty int) error {
	tag, err := s.db.Exec(ctx, `UPDATE cart_items SET quantity = $3 WHERE cart_id = $1 AND id = $2`, cartID, itemID, qty)
	if err != nil {
		return fmt.Errorf("update cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (s *PGStore) RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1 AND id = $2`, cartID, itemID)
	if err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

// ListLines returns the cart's items with their product's current base price
// and active discount, oldest first.
func (s *PGStore) ListLines(ctx context.Context, cartID uuid.UUID) ([]Line, error) {
	rows, err := s.db.Query(ctx, `SELECT ci.id, ci.product_id, p.name, p.slug, p.image_url, p.base_price, p.stock,
			ci.quantity, d.type, d.value
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		LEFT JOIN discounts d ON d.product_id = p.id AND d.active
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at, ci.id`, cartID)
	if err != nil {
		return nil, fmt.Errorf("list cart lines: %w", err)
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var (
			l         Line
			discType  *string
			discValue *int64
		)
		if err := rows.Scan(&l.ItemID, &l.ProductID, &l.Name, &l.Slug, &l.ImageURL, &l.UnitBasePrice, &l.Stock,
			&l.Quantity, &discType, &discValue); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		if discType != nil && discValue != nil {
			l.Discount = &pricing.Discount{Type: pricing.DiscountType(*discType), Value: *discValue, Active: true}
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// MergeInto moves items from one cart into another, keeping the larger
// quantity when both hold the same product, and empties the source.
func (s *PGStore) MergeInto(ctx context.Context, fromID, toID uuid.UUID) error {
	if _, err := s.db.Exec(ctx, `INSERT INTO cart_items (id, cart_id, product_id, quantity)
		SELECT gen_random_uuid(), $2, product_id, quantity FROM cart_items WHERE cart_id = $1
		ON CONFLICT (cart_id, product_id) DO UPDATE SET quantity = GREATEST(cart_items.quantity, EXCLUDED.quantity)`,
		fromID, toID); err != nil {
		return fmt.Errorf("merge cart items: %w", err)
	}
	return s.ClearItems(ctx, fromID)
}

func (s *PGStore) ClearItems(ctx context.Context, cartID uuid.UUID) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
