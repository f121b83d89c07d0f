// Package checkout turns a cart into a priced, materialized order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-sneakers/internal/cart"
	"github.com/noah-isme/backend-sneakers/internal/common"
	"github.com/noah-isme/backend-sneakers/internal/lock"
	"github.com/noah-isme/backend-sneakers/internal/obs"
	"github.com/noah-isme/backend-sneakers/internal/order"
	"github.com/noah-isme/backend-sneakers/internal/pricing"
)

var (
	// ErrEmptyCart is returned when the cart has no items.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrCartNotOwned is returned when the cart belongs to another user.
	ErrCartNotOwned = errors.New("cart belongs to another user")
	// ErrInProgress is returned when another checkout of the same cart holds the lock.
	ErrInProgress = errors.New("checkout already in progress")
)

// StockError reports a product that cannot cover the requested quantity.
type StockError struct {
	ProductID uuid.UUID
	Requested int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s", e.ProductID)
}

func (e *StockError) Unwrap() error { return cart.ErrInsufficientStock }

// Locker serializes work on a key.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Enqueuer schedules follow-up work for a placed order.
type Enqueuer interface {
	EnqueueOrderConfirmation(ctx context.Context, orderID uuid.UUID) error
}

// Input is the checkout request.
type Input struct {
	CartID string `json:"cartId" validate:"required,uuid"`
	Notes  string `json:"notes" validate:"max=500"`
}

// Result describes the placed order.
type Result struct {
	OrderID   string                 `json:"orderId"`
	Status    order.Status           `json:"status"`
	Lines     []pricing.LineQuote    `json:"lines"`
	Totals    pricing.Totals         `json:"totals"`
	Summary   pricing.Summary        `json:"summary"`
	Formatted pricing.SummaryDisplay `json:"formatted"`
}

// Service places orders.
type Service struct {
	Tx       TxRunner
	Locker   Locker
	Tasks    Enqueuer
	Engine   pricing.Engine
	Metrics  *obs.CommerceMetrics
	Logger   zerolog.Logger
	Now      func() time.Time
	LockTTL  time.Duration
	TaxBps   int
	Shipping ShippingPolicy
}

// ShippingPolicy is a flat fee waived above a threshold.
type ShippingPolicy struct {
	Flat          pricing.Money
	FreeThreshold pricing.Money
}

// Create checks out the cart for userID. Concurrent checkouts of one cart are
// serialized by a Redis lock; the order, stock and cart changes commit together.
func (s *Service) Create(ctx context.Context, userID, email string, in Input) (Result, error) {
	if userID == "" {
		return Result{}, common.NewAppError("UNAUTHORIZED", "authentication required", http.StatusUnauthorized, nil)
	}
	if err := common.ValidateStruct(in); err != nil {
		return Result{}, err
	}
	cartID, err := uuid.Parse(in.CartID)
	if err != nil {
		return Result{}, common.BadRequest("invalid cartId", err)
	}

	var placed order.Order
	err = s.Locker.WithLock(ctx, lockKey(cartID), s.lockTTL(), func(ctx context.Context) error {
		return s.Tx.InTx(ctx, func(tx Tx) error {
			placed, err = s.place(ctx, tx, userID, email, cartID, in.Notes)
			return err
		})
	})
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			err = ErrInProgress
		}
		s.Metrics.Checkout(outcome(err))
		return Result{}, err
	}

	s.Metrics.Checkout("success")
	s.Metrics.Order(placed.Summary.Total)
	for _, it := range placed.Items {
		if it.Breakdown.DiscountAmount != nil {
			s.Metrics.DiscountedLine(string(it.Discount.Type))
		}
	}
	if s.Tasks != nil {
		if err := s.Tasks.EnqueueOrderConfirmation(ctx, placed.ID); err != nil {
			s.Logger.Error().Err(err).Str("order_id", placed.ID.String()).Msg("enqueue_order_confirmation_failed")
		}
	}
	s.Logger.Info().
		Str("order_id", placed.ID.String()).
		Str("user_id", userID).
		Int64("total", placed.Summary.Total).
		Int("quantity", placed.Totals.TotalQuantity).
		Msg("order_placed")
	return s.result(placed), nil
}

func (s *Service) place(ctx context.Context, tx Tx, userID, email string, cartID uuid.UUID, notes string) (order.Order, error) {
	c, err := tx.LockCart(ctx, cartID)
	if err != nil {
		return order.Order{}, err
	}
	if !c.ExpiresAt.After(s.now()) {
		return order.Order{}, cart.ErrNotFound
	}
	if c.UserID != nil && *c.UserID != userID {
		return order.Order{}, ErrCartNotOwned
	}
	lines, err := tx.ListLines(ctx, cartID)
	if err != nil {
		return order.Order{}, err
	}
	if len(lines) == 0 {
		return order.Order{}, ErrEmptyCart
	}

	items := make([]pricing.LineItem, 0, len(lines))
	materialized := make([]order.Item, 0, len(lines))
	for i, line := range lines {
		if line.Quantity > line.Stock {
			return order.Order{}, &StockError{ProductID: line.ProductID, Requested: line.Quantity, Available: line.Stock}
		}
		item := line.LineItem()
		items = append(items, item)
		materialized = append(materialized, order.Item{
			Position:      i + 1,
			ProductID:     line.ProductID,
			ProductName:   line.Name,
			ProductSlug:   line.Slug,
			UnitBasePrice: line.UnitBasePrice,
			Quantity:      line.Quantity,
			Discount:      snapshotDiscount(line.Discount),
			Breakdown:     pricing.PriceLineItem(item),
		})
	}

	totals := pricing.Aggregate(items)
	shipping := pricing.ShippingCost(totals.TotalFinalPrice, s.Shipping.Flat, s.Shipping.FreeThreshold)
	o := order.Order{
		UserID:   userID,
		Email:    email,
		Status:   order.StatusPendingPayment,
		Currency: s.Engine.Currency(),
		Totals:   totals,
		TaxBps:   s.TaxBps,
		Summary:  pricing.Summarize(totals, s.TaxBps, shipping),
		Notes:    notes,
		Items:    materialized,
	}
	if err := tx.InsertOrder(ctx, &o); err != nil {
		return order.Order{}, err
	}
	for _, it := range o.Items {
		if err := tx.DecrementStock(ctx, it.ProductID, it.Quantity); err != nil {
			return order.Order{}, err
		}
	}
	if err := tx.ClearItems(ctx, cartID); err != nil {
		return order.Order{}, err
	}
	return o, nil
}

// snapshotDiscount keeps only discounts that affected the price.
func snapshotDiscount(d *pricing.Discount) *pricing.Discount {
	if d == nil || !d.Active || !d.Type.Known() {
		return nil
	}
	copied := *d
	return &copied
}

func (s *Service) result(o order.Order) Result {
	lines := make([]pricing.LineQuote, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, s.Engine.PriceLine(it.LineItem()))
	}
	return Result{
		OrderID:   o.ID.String(),
		Status:    o.Status,
		Lines:     lines,
		Totals:    o.Totals,
		Summary:   o.Summary,
		Formatted: s.Engine.FormatSummary(o.Summary),
	}
}

func (s *Service) lockTTL() time.Duration {
	if s.LockTTL <= 0 {
		return 15 * time.Second
	}
	return s.LockTTL
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func lockKey(cartID uuid.UUID) string {
	return "checkout:cart:" + cartID.String()
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, cart.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrInProgress):
		return "locked"
	case errors.Is(err, cart.ErrNotFound), errors.Is(err, ErrCartNotOwned):
		return "rejected"
	default:
		return "error"
	}
}

// MapError converts checkout errors into AppErrors.
func MapError(err error) error {
	var stockErr *StockError
	switch {
	case errors.As(err, &stockErr):
		appErr := common.NewAppError("INSUFFICIENT_STOCK", "insufficient stock", http.StatusConflict, err)
		appErr.Details = map[string]any{"productId": stockErr.ProductID.String(), "requested": stockErr.Requested, "available": stockErr.Available}
		return appErr
	case errors.Is(err, ErrEmptyCart):
		return common.NewAppError("CART_EMPTY", "cart is empty", http.StatusUnprocessableEntity, err)
	case errors.Is(err, ErrCartNotOwned):
		return common.NewAppError("FORBIDDEN", "cart belongs to another user", http.StatusForbidden, err)
	case errors.Is(err, ErrInProgress):
		return common.NewAppError("CHECKOUT_IN_PROGRESS", "checkout already in progress", http.StatusConflict, err)
	case errors.Is(err, cart.ErrNotFound):
		return common.NotFound("cart not found", err)
	case common.IsAppError(err):
		return err
	default:
		return fmt.Errorf("checkout: %w", err)
	}
}
