package cart

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-sneakers/internal/common"
	"github.com/noah-isme/backend-sneakers/internal/pricing"
)

// Service encapsulates cart domain operations.
type Service struct {
	Store  Store
	Engine pricing.Engine
	TTL    time.Duration
	Now    func() time.Time
}

// LineView is one priced cart line.
type LineView struct {
	ItemID    string `json:"itemId"`
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	ImageURL  string `json:"imageUrl,omitempty"`
	InStock   bool   `json:"inStock"`
	pricing.LineQuote
}

// View is the priced cart payload. Totals.TotalDiscount and
// Formatted.Discount are null when no line carries an active discount.
type View struct {
	ID        string                `json:"id"`
	UserID    *string               `json:"userId"`
	AnonID    *string               `json:"anonId"`
	ExpiresAt time.Time             `json:"expiresAt"`
	Items     []LineView            `json:"items"`
	Totals    pricing.Totals        `json:"totals"`
	Formatted pricing.TotalsDisplay `json:"formatted"`
}

func (s *Service) ttl() time.Duration {
	if s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Ensure loads or creates the active cart for the user, or for anonID when
// the caller is anonymous.
func (s *Service) Ensure(ctx context.Context, userID, anonID string) (Cart, error) {
	userID, anonID = strings.TrimSpace(userID), strings.TrimSpace(anonID)
	if userID == "" && anonID == "" {
		return Cart{}, fmt.Errorf("user or anonymous id required: %w", ErrInvalidInput)
	}
	if userID != "" {
		anonID = ""
	}
	now := s.now()
	expires := now.Add(s.ttl())
	c, err := s.Store.FindActiveCart(ctx, userID, anonID, now)
	switch {
	case err == nil:
		if err := s.Store.Touch(ctx, c.ID, expires); err != nil {
			return Cart{}, err
		}
		c.ExpiresAt = expires
		return c, nil
	case errors.Is(err, ErrNotFound):
		return s.Store.CreateCart(ctx, optional(userID), optional(anonID), expires)
	default:
		return Cart{}, err
	}
}

// AddItem adds qty units of the product, incrementing an existing line.
func (s *Service) AddItem(ctx context.Context, callerID string, cartID, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("quantity must be positive: %w", ErrInvalidInput)
	}
	if _, err := s.load(ctx, callerID, cartID); err != nil {
		return err
	}
	stock, err := s.Store.ProductStock(ctx, productID)
	if err != nil {
		return err
	}
	current := 0
	if it, err := s.Store.FindItem(ctx, cartID, productID); err == nil {
		current = it.Quantity
	} else if !errors.Is(err, ErrItemNotFound) {
		return err
	}
	if current+qty > stock {
		return ErrInsufficientStock
	}
	if err := s.Store.AddQuantity(ctx, cartID, productID, qty); err != nil {
		return err
	}
	return s.Store.Touch(ctx, cartID, s.now().Add(s.ttl()))
}

// UpdateQty sets an item's quantity.
func (s *Service) UpdateQty(ctx context.Context, callerID string, cartID, itemID uuid.UUID, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("quantity must be positive: %w", ErrInvalidInput)
	}
	if _, err := s.load(ctx, callerID, cartID); err != nil {
		return err
	}
	it, err := s.Store.GetItem(ctx, cartID, itemID)
	if err != nil {
		return err
	}
	stock, err := s.Store.ProductStock(ctx, it.ProductID)
	if err != nil {
		return err
	}
	if qty > stock {
		return ErrInsufficientStock
	}
	if err := s.Store.SetQuantity(ctx, cartID, itemID, qty); err != nil {
		return err
	}
	return s.Store.Touch(ctx, cartID, s.now().Add(s.ttl()))
}

// RemoveItem deletes an item from the cart.
func (s *Service) RemoveItem(ctx context.Context, callerID string, cartID, itemID uuid.UUID) error {
	if _, err := s.load(ctx, callerID, cartID); err != nil {
		return err
	}
	if err := s.Store.RemoveItem(ctx, cartID, itemID); err != nil {
		return err
	}
	return s.Store.Touch(ctx, cartID, s.now().Add(s.ttl()))
}

// View prices the cart through the engine using current prices and discounts.
func (s *Service) View(ctx context.Context, callerID string, cartID uuid.UUID) (View, error) {
	c, err := s.load(ctx, callerID, cartID)
	if err != nil {
		return View{}, err
	}
	lines, err := s.Store.ListLines(ctx, cartID)
	if err != nil {
		return View{}, err
	}
	items := make([]pricing.LineItem, len(lines))
	for i, l := range lines {
		items[i] = l.LineItem()
	}
	quote := s.Engine.Quote(items)

	view := View{
		ID:        c.ID.String(),
		UserID:    c.UserID,
		AnonID:    c.AnonID,
		ExpiresAt: c.ExpiresAt,
		Items:     make([]LineView, len(lines)),
		Totals:    quote.Totals,
		Formatted: quote.Formatted,
	}
	for i, l := range lines {
		view.Items[i] = LineView{
			ItemID:    l.ItemID.String(),
			ProductID: l.ProductID.String(),
			Name:      l.Name,
			Slug:      l.Slug,
			ImageURL:  l.ImageURL,
			InStock:   l.Stock >= l.Quantity,
			LineQuote: quote.Lines[i],
		}
	}
	return view, nil
}

// Merge moves a guest cart's items into the user's active cart.
func (s *Service) Merge(ctx context.Context, userID string, guestCartID uuid.UUID) (Cart, error) {
	if strings.TrimSpace(userID) == "" {
		return Cart{}, fmt.Errorf("user id required: %w", ErrInvalidInput)
	}
	guest, err := s.load(ctx, "", guestCartID)
	if err != nil {
		return Cart{}, err
	}
	target, err := s.Ensure(ctx, userID, "")
	if err != nil {
		return Cart{}, err
	}
	if target.ID == guest.ID {
		return target, nil
	}
	if err := s.Store.MergeInto(ctx, guest.ID, target.ID); err != nil {
		return Cart{}, err
	}
	if err := s.Store.Touch(ctx, guest.ID, s.now()); err != nil {
		return Cart{}, err
	}
	return target, nil
}

// load fetches the cart and hides carts that are expired or owned by another user.
func (s *Service) load(ctx context.Context, callerID string, cartID uuid.UUID) (Cart, error) {
	c, err := s.Store.GetCart(ctx, cartID)
	if err != nil {
		return Cart{}, err
	}
	if !c.ExpiresAt.After(s.now()) {
		return Cart{}, ErrNotFound
	}
	if c.UserID != nil && *c.UserID != callerID {
		return Cart{}, ErrNotFound
	}
	return c, nil
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// MapError converts cart errors into AppErrors.
func MapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return common.NotFound("cart not found", err)
	case errors.Is(err, ErrItemNotFound):
		return common.NotFound("cart item not found", err)
	case errors.Is(err, ErrProductNotFound):
		return common.NotFound("product not found", err)
	case errors.Is(err, ErrInsufficientStock):
		return common.NewAppError("INSUFFICIENT_STOCK", "insufficient stock", http.StatusConflict, err)
	case errors.Is(err, ErrInvalidInput):
		return common.BadRequest(err.Error(), err)
	case common.IsAppError(err):
		return err
	default:
		return fmt.Errorf("cart: %w", err)
	}
}
