package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value stored in minor units.
type Money = int64

// DiscountType tags how a discount value is interpreted.
type DiscountType string

const (
	// DiscountPercentage reduces the price by a whole-number percent of the base.
	DiscountPercentage DiscountType = "PERCENTAGE"
	// DiscountFixed subtracts a fixed amount expressed in minor units.
	DiscountFixed DiscountType = "FIXED"
)

// Known reports whether t is one of the supported discount types.
func (t DiscountType) Known() bool {
	return t == DiscountPercentage || t == DiscountFixed
}

// ParseDiscountType normalises a stored or submitted discount type.
func ParseDiscountType(value string) (DiscountType, bool) {
	t := DiscountType(strings.ToUpper(strings.TrimSpace(value)))
	return t, t.Known()
}

// Discount describes a discount attached to a priced entity.
type Discount struct {
	Type   DiscountType `json:"type"`
	Value  int64        `json:"value"`
	Active bool         `json:"active"`
}

func (d *Discount) applies() bool {
	return d != nil && d.Active && d.Type.Known()
}

// LineItem describes a priced line: a unit price, a quantity and an optional discount.
type LineItem struct {
	UnitBasePrice Money     `json:"unitBasePrice"`
	Quantity      int       `json:"quantity"`
	Discount      *Discount `json:"discount,omitempty"`
}

// PriceBreakdown is the computed price of one line.
type PriceBreakdown struct {
	BasePrice      Money  `json:"basePrice"`
	DiscountAmount *Money `json:"discountAmount"`
	FinalPrice     Money  `json:"finalPrice"`
}

// Totals aggregates many line breakdowns. TotalDiscount stays nil unless at
// least one line carried an active discount.
type Totals struct {
	TotalBasePrice  Money  `json:"totalBasePrice"`
	TotalDiscount   *Money `json:"totalDiscount"`
	TotalFinalPrice Money  `json:"totalFinalPrice"`
	TotalQuantity   int    `json:"totalQuantity"`
}

var hundred = decimal.NewFromInt(100)

// ApplyDiscount returns the price left after applying discount to base.
//
// Percentage results are truncated toward zero, fixed results are clamped at
// zero. Percentages above 100 are clamped at zero as well. An unknown discount
// type leaves the price untouched on purpose: price display must not fail on a
// malformed row.
func ApplyDiscount(base Money, discount *Discount) Money {
	if discount == nil || !discount.Active {
		return base
	}
	switch discount.Type {
	case DiscountPercentage:
		remaining := hundred.Sub(decimal.NewFromInt(discount.Value))
		final := decimal.NewFromInt(base).Mul(remaining).Div(hundred).Truncate(0)
		return nonNegative(final.IntPart())
	case DiscountFixed:
		return nonNegative(base - discount.Value)
	default:
		return base
	}
}

// PriceLineItem prices a line. The discount is applied once to the line total
// (unit price times quantity), never per unit.
func PriceLineItem(item LineItem) PriceBreakdown {
	base := item.UnitBasePrice * Money(item.Quantity)
	final := ApplyDiscount(base, item.Discount)
	out := PriceBreakdown{BasePrice: base, FinalPrice: final}
	if item.Discount.applies() {
		amount := base - final
		out.DiscountAmount = &amount
	}
	return out
}

// Aggregate sums the breakdowns of all items.
func Aggregate(items []LineItem) Totals {
	var totals Totals
	for _, item := range items {
		line := PriceLineItem(item)
		totals.TotalQuantity += item.Quantity
		totals.TotalBasePrice += line.BasePrice
		totals.TotalFinalPrice += line.FinalPrice
		if line.DiscountAmount != nil {
			if totals.TotalDiscount == nil {
				totals.TotalDiscount = new(Money)
			}
			*totals.TotalDiscount += *line.DiscountAmount
		}
	}
	return totals
}

func nonNegative(v Money) Money {
	if v < 0 {
		return 0
	}
	return v
}
