package order

import (
	"fmt"
	"strings"

	"github.com/noah-isme/backend-sneakers/internal/pricing"
)

// ConfirmationLine is one rendered order line.
type ConfirmationLine struct {
	Position       int     `json:"position"`
	Name           string  `json:"name"`
	Quantity       int     `json:"quantity"`
	UnitBasePrice  string  `json:"unitBasePrice"`
	BasePrice      string  `json:"basePrice"`
	Discount       *string `json:"discount"`
	DiscountAmount *string `json:"discountAmount"`
	FinalPrice     string  `json:"finalPrice"`
}

// Confirmation is the customer-facing rendering of an order.
type Confirmation struct {
	OrderID string                 `json:"orderId"`
	Status  Status                 `json:"status"`
	Lines   []ConfirmationLine     `json:"lines"`
	Totals  pricing.TotalsDisplay  `json:"totals"`
	Summary pricing.SummaryDisplay `json:"summary"`
}

// RenderConfirmation formats the stored snapshot with the currency the order
// was placed in. Amounts come from the snapshot, never from a fresh pricing run.
func RenderConfirmation(o Order) Confirmation {
	engine := pricing.NewEngine(o.Currency)
	lines := make([]ConfirmationLine, 0, len(o.Items))
	for _, it := range o.Items {
		var amount *string
		if it.Breakdown.DiscountAmount != nil {
			s := engine.FormatMoney(*it.Breakdown.DiscountAmount)
			amount = &s
		}
		lines = append(lines, ConfirmationLine{
			Position:       it.Position,
			Name:           it.ProductName,
			Quantity:       it.Quantity,
			UnitBasePrice:  engine.FormatMoney(it.UnitBasePrice),
			BasePrice:      engine.FormatMoney(it.Breakdown.BasePrice),
			Discount:       engine.FormatDiscount(it.Discount),
			DiscountAmount: amount,
			FinalPrice:     engine.FormatMoney(it.Breakdown.FinalPrice),
		})
	}
	return Confirmation{
		OrderID: o.ID.String(),
		Status:  o.Status,
		Lines:   lines,
		Totals:  engine.FormatTotals(o.Totals),
		Summary: engine.FormatSummary(o.Summary),
	}
}

// Subject is the email subject line.
func (c Confirmation) Subject() string {
	return fmt.Sprintf("Order %s confirmed", shortID(c.OrderID))
}

// PlainText renders the confirmation as an email body.
func (c Confirmation) PlainText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order %s\n\n", c.OrderID)
	for _, l := range c.Lines {
		fmt.Fprintf(&b, "%d x %s @ %s = %s", l.Quantity, l.Name, l.UnitBasePrice, l.BasePrice)
		if l.Discount != nil && l.DiscountAmount != nil {
			fmt.Fprintf(&b, " (-%s, %s off) -> %s", *l.DiscountAmount, *l.Discount, l.FinalPrice)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Subtotal: %s\n", c.Summary.Subtotal)
	if c.Totals.Discount != nil {
		fmt.Fprintf(&b, "Discount: -%s\n", *c.Totals.Discount)
	}
	fmt.Fprintf(&b, "Tax: %s\n", c.Summary.Tax)
	fmt.Fprintf(&b, "Shipping: %s\n", c.Summary.Shipping)
	fmt.Fprintf(&b, "Total: %s\n", c.Summary.Total)
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return strings.ToUpper(id[:8])
	}
	return strings.ToUpper(id)
}
