// Package discount manages per-product discount descriptors and lets admins
// preview how the pricing engine treats them.
package discount

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-sneakers/internal/common"
	"github.com/noah-isme/backend-sneakers/internal/pricing"
)

// Invalidator drops cached views of a product after its discounts change.
type Invalidator interface {
	InvalidateProduct(ctx context.Context, productID uuid.UUID)
}

// Input is the create payload.
type Input struct {
	Type   string `json:"type" validate:"required,oneof=PERCENTAGE FIXED"`
	Value  int64  `json:"value" validate:"gt=0"`
	Active *bool  `json:"active"`
}

// Patch is the partial update payload.
type Patch struct {
	Type   *string `json:"type" validate:"omitempty,oneof=PERCENTAGE FIXED"`
	Value  *int64  `json:"value" validate:"omitempty,gt=0"`
	Active *bool   `json:"active"`
}

// PreviewInput prices an arbitrary line without touching storage.
type PreviewInput struct {
	UnitBasePrice *int64            `json:"unitBasePrice" validate:"required,gte=0"`
	Quantity      int               `json:"quantity" validate:"gte=0,lte=10000"`
	Discount      *pricing.Discount `json:"discount"`
}

// maxPreviewLine caps unit price times quantity for previews.
const maxPreviewLine int64 = 1_000_000_000_000_000

// Service implements discount management.
type Service struct {
	store       Store
	engine      pricing.Engine
	invalidator Invalidator
}

// NewService constructs a Service. invalidator may be nil.
func NewService(store Store, engine pricing.Engine, invalidator Invalidator) *Service {
	return &Service{store: store, engine: engine, invalidator: invalidator}
}

// Create stores a discount for productID. An active discount replaces the
// product's current active one.
func (s *Service) Create(ctx context.Context, productID uuid.UUID, in Input) (Record, error) {
	in.Type = normalizeType(in.Type)
	if err := common.ValidateStruct(in); err != nil {
		return Record{}, err
	}
	d := pricing.Discount{Type: pricing.DiscountType(in.Type), Value: in.Value, Active: in.Active == nil || *in.Active}
	if err := checkRange(d); err != nil {
		return Record{}, err
	}
	rec, err := s.store.Create(ctx, productID, d)
	if err != nil {
		return Record{}, err
	}
	s.invalidate(ctx, productID)
	return rec, nil
}

// Update applies patch to the discount with the given id.
func (s *Service) Update(ctx context.Context, id uuid.UUID, patch Patch) (Record, error) {
	if patch.Type != nil {
		t := normalizeType(*patch.Type)
		patch.Type = &t
	}
	if err := common.ValidateStruct(patch); err != nil {
		return Record{}, err
	}
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if patch.Type != nil {
		rec.Type = pricing.DiscountType(*patch.Type)
	}
	if patch.Value != nil {
		rec.Value = *patch.Value
	}
	if patch.Active != nil {
		rec.Active = *patch.Active
	}
	if err := checkRange(rec.Discount); err != nil {
		return Record{}, err
	}
	saved, err := s.store.Save(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	s.invalidate(ctx, saved.ProductID)
	return saved, nil
}

// Deactivate turns the discount off. Deactivating an inactive discount is a no-op.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) (Record, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if !rec.Active {
		return rec, nil
	}
	rec.Active = false
	saved, err := s.store.Save(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	s.invalidate(ctx, saved.ProductID)
	return saved, nil
}

// ListByProduct returns every discount of the product, active first.
func (s *Service) ListByProduct(ctx context.Context, productID uuid.UUID) ([]Record, error) {
	return s.store.ListByProduct(ctx, productID)
}

// Preview prices the input line through the engine. Unknown discount types
// are passed through so the preview shows they leave the price unchanged.
func (s *Service) Preview(_ context.Context, in PreviewInput) (pricing.LineQuote, error) {
	if err := common.ValidateStruct(in); err != nil {
		return pricing.LineQuote{}, err
	}
	qty := in.Quantity
	if qty == 0 {
		qty = 1
	}
	if limit := maxPreviewLine / int64(qty); *in.UnitBasePrice > limit {
		return pricing.LineQuote{}, validationFailed("unitBasePrice", "lte", strconv.FormatInt(limit, 10))
	}
	var d *pricing.Discount
	if in.Discount != nil {
		copied := *in.Discount
		if copied.Value <= 0 {
			return pricing.LineQuote{}, validationFailed("discount.value", "gt", "0")
		}
		if t, ok := pricing.ParseDiscountType(string(copied.Type)); ok {
			copied.Type = t
		}
		if err := checkRange(copied); err != nil {
			return pricing.LineQuote{}, err
		}
		d = &copied
	}
	return s.engine.PriceLine(pricing.LineItem{UnitBasePrice: *in.UnitBasePrice, Quantity: qty, Discount: d}), nil
}

func (s *Service) invalidate(ctx context.Context, productID uuid.UUID) {
	if s.invalidator != nil {
		s.invalidator.InvalidateProduct(ctx, productID)
	}
}

func normalizeType(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}

// checkRange rejects percentages above 100.
func checkRange(d pricing.Discount) error {
	if d.Type == pricing.DiscountPercentage && d.Value > 100 {
		return validationFailed("value", "lte", "100")
	}
	return nil
}

func validationFailed(field, rule, param string) error {
	appErr := common.NewAppError("VALIDATION_FAILED", "validation failed", http.StatusBadRequest, nil)
	appErr.Details = []common.FieldError{{Field: field, Rule: rule, Param: param}}
	return appErr
}

// MapError converts discount errors into AppErrors.
func MapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return common.NotFound("discount not found", err)
	case errors.Is(err, ErrProductNotFound):
		return common.NotFound("product not found", err)
	case common.IsAppError(err):
		return err
	default:
		return fmt.Errorf("discount: %w", err)
	}
}
