package pricing

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// Currency configures how minor units are displayed.
type Currency struct {
	Symbol     string
	MinorUnits int64
}

// DefaultCurrency is a cent-based dollar currency.
var DefaultCurrency = Currency{Symbol: "$", MinorUnits: 100}

// Engine renders prices for display. It holds no mutable state and may be
// shared across goroutines.
type Engine struct {
	currency Currency
}

// NewEngine returns an Engine for the given currency. Zero fields fall back to
// DefaultCurrency.
func NewEngine(c Currency) Engine {
	return Engine{currency: c.orDefault()}
}

func (c Currency) orDefault() Currency {
	if c.Symbol == "" {
		c.Symbol = DefaultCurrency.Symbol
	}
	if c.MinorUnits <= 0 {
		c.MinorUnits = DefaultCurrency.MinorUnits
	}
	return c
}

// Currency returns the currency the engine formats with. The zero Engine
// formats with DefaultCurrency.
func (e Engine) Currency() Currency {
	if e.currency.MinorUnits > 0 {
		return e.currency
	}
	return e.currency.orDefault()
}

// FormatMoney converts minor units to a display string such as "$450" or "$450.99".
func (e Engine) FormatMoney(amount Money) string {
	c := e.Currency()
	major := decimal.NewFromInt(amount).Div(decimal.NewFromInt(c.MinorUnits)).Round(2)
	sign := ""
	if major.IsNegative() {
		sign = "-"
		major = major.Abs()
	}
	if major.IsInteger() {
		return sign + c.Symbol + major.StringFixed(0)
	}
	return sign + c.Symbol + major.StringFixed(2)
}

// FormatDiscount renders a discount label, or nil when nothing applies.
func (e Engine) FormatDiscount(discount *Discount) *string {
	if !discount.applies() {
		return nil
	}
	var label string
	switch discount.Type {
	case DiscountFixed:
		label = e.FormatMoney(discount.Value)
	case DiscountPercentage:
		label = strconv.FormatInt(discount.Value, 10) + "%"
	}
	return &label
}

func (e Engine) formatOptional(amount *Money) *string {
	if amount == nil {
		return nil
	}
	s := e.FormatMoney(*amount)
	return &s
}

// LineDisplay carries the display strings of a priced line.
type LineDisplay struct {
	UnitBasePrice  string  `json:"unitBasePrice"`
	BasePrice      string  `json:"basePrice"`
	Discount       *string `json:"discount"`
	DiscountAmount *string `json:"discountAmount"`
	FinalPrice     string  `json:"finalPrice"`
}

// LineQuote is a priced line together with its display strings.
type LineQuote struct {
	LineItem
	PriceBreakdown
	Formatted LineDisplay `json:"formatted"`
}

// TotalsDisplay carries the display strings of aggregated totals.
type TotalsDisplay struct {
	BasePrice  string  `json:"basePrice"`
	Discount   *string `json:"discount"`
	FinalPrice string  `json:"finalPrice"`
}

// Quote is the priced view of a collection of lines.
type Quote struct {
	Lines     []LineQuote   `json:"lines"`
	Totals    Totals        `json:"totals"`
	Formatted TotalsDisplay `json:"formatted"`
}

// PriceLine prices a single item and renders it.
func (e Engine) PriceLine(item LineItem) LineQuote {
	breakdown := PriceLineItem(item)
	return LineQuote{
		LineItem:       item,
		PriceBreakdown: breakdown,
		Formatted: LineDisplay{
			UnitBasePrice:  e.FormatMoney(item.UnitBasePrice),
			BasePrice:      e.FormatMoney(breakdown.BasePrice),
			Discount:       e.FormatDiscount(item.Discount),
			DiscountAmount: e.formatOptional(breakdown.DiscountAmount),
			FinalPrice:     e.FormatMoney(breakdown.FinalPrice),
		},
	}
}

// Quote prices every item and renders the totals.
func (e Engine) Quote(items []LineItem) Quote {
	lines := make([]LineQuote, 0, len(items))
	for _, item := range items {
		lines = append(lines, e.PriceLine(item))
	}
	totals := Aggregate(items)
	return Quote{
		Lines:     lines,
		Totals:    totals,
		Formatted: e.FormatTotals(totals),
	}
}

// FormatTotals renders aggregated totals.
func (e Engine) FormatTotals(t Totals) TotalsDisplay {
	return TotalsDisplay{
		BasePrice:  e.FormatMoney(t.TotalBasePrice),
		Discount:   e.formatOptional(t.TotalDiscount),
		FinalPrice: e.FormatMoney(t.TotalFinalPrice),
	}
}
