package pricing

// Summary is the checkout-level breakdown of an order.
type Summary struct {
	Subtotal Money `json:"subtotal"`
	Discount Money `json:"discount"`
	Tax      Money `json:"tax"`
	Shipping Money `json:"shipping"`
	Total    Money `json:"total"`
}

// Summarize adds tax (in basis points, truncated) and shipping on top of the
// discounted totals.
func Summarize(t Totals, taxBps int, shipping Money) Summary {
	var discount Money
	if t.TotalDiscount != nil {
		discount = *t.TotalDiscount
	}
	taxable := nonNegative(t.TotalFinalPrice)
	if taxBps < 0 {
		taxBps = 0
	}
	tax := (taxable * Money(taxBps)) / 10000
	shipping = nonNegative(shipping)
	return Summary{
		Subtotal: t.TotalBasePrice,
		Discount: discount,
		Tax:      tax,
		Shipping: shipping,
		Total:    taxable + tax + shipping,
	}
}

// ShippingCost returns the flat shipping fee, waived once the discounted
// subtotal reaches freeThreshold. A zero threshold disables the waiver.
func ShippingCost(subtotal, flat, freeThreshold Money) Money {
	if flat <= 0 {
		return 0
	}
	if freeThreshold > 0 && subtotal >= freeThreshold {
		return 0
	}
	return flat
}

// SummaryDisplay renders a Summary.
type SummaryDisplay struct {
	Subtotal string `json:"subtotal"`
	Discount string `json:"discount"`
	Tax      string `json:"tax"`
	Shipping string `json:"shipping"`
	Total    string `json:"total"`
}

// FormatSummary renders every component of s.
func (e Engine) FormatSummary(s Summary) SummaryDisplay {
	return SummaryDisplay{
		Subtotal: e.FormatMoney(s.Subtotal),
		Discount: e.FormatMoney(s.Discount),
		Tax:      e.FormatMoney(s.Tax),
		Shipping: e.FormatMoney(s.Shipping),
		Total:    e.FormatMoney(s.Total),
	}
}
