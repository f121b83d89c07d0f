package checkout

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-sneakers/internal/cart"
	"github.com/noah-isme/backend-sneakers/internal/db"
	"github.com/noah-isme/backend-sneakers/internal/order"
)

// Tx is the transactional view checkout works against.
type Tx interface {
	LockCart(ctx context.Context, cartID uuid.UUID) (cart.Cart, error)
	ListLines(ctx context.Context, cartID uuid.UUID) ([]cart.Line, error)
	DecrementStock(ctx context.Context, productID uuid.UUID, qty int) error
	InsertOrder(ctx context.Context, o *order.Order) error
	ClearItems(ctx context.Context, cartID uuid.UUID) error
}

// TxRunner runs fn in a single database transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(Tx) error) error
}

// PGTx runs checkout transactions on Postgres.
type PGTx struct {
	Pool db.TxBeginner
}

func (p PGTx) InTx(ctx context.Context, fn func(Tx) error) error {
	return db.InTx(ctx, p.Pool, func(tx pgx.Tx) error {
		return fn(pgTx{tx: tx, carts: cart.NewPGStore(tx), orders: order.NewPGStore(tx)})
	})
}

type pgTx struct {
	tx     pgx.Tx
	carts  *cart.PGStore
	orders *order.PGStore
}

func (t pgTx) LockCart(ctx context.Context, cartID uuid.UUID) (cart.Cart, error) {
	return t.carts.GetCartForUpdate(ctx, cartID)
}

func (t pgTx) ListLines(ctx context.Context, cartID uuid.UUID) ([]cart.Line, error) {
	return t.carts.ListLines(ctx, cartID)
}

// DecrementStock takes qty units off the product, refusing to go below zero.
func (t pgTx) DecrementStock(ctx context.Context, productID uuid.UUID, qty int) error {
	tag, err := t.tx.Exec(ctx, `UPDATE products SET stock = stock - $2, updated_at = now() WHERE id = $1 AND stock >= $2`, productID, qty)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &StockError{ProductID: productID}
	}
	return nil
}

func (t pgTx) InsertOrder(ctx context.Context, o *order.Order) error {
	return t.orders.Insert(ctx, o)
}

func (t pgTx) ClearItems(ctx context.Context, cartID uuid.UUID) error {
	return t.carts.ClearItems(ctx, cartID)
}
