package pricing

import "testing"

func TestSummarize(t *testing.T) {
	discount := Money(500)
	totals := Totals{TotalBasePrice: 2500, TotalDiscount: &discount, TotalFinalPrice: 2000, TotalQuantity: 3}

	got := Summarize(totals, 1000, 700)
	want := Summary{Subtotal: 2500, Discount: 500, Tax: 200, Shipping: 700, Total: 2900}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestSummarizeTruncatesTax(t *testing.T) {
	got := Summarize(Totals{TotalBasePrice: 999, TotalFinalPrice: 999, TotalQuantity: 1}, 825, 0)
	if got.Tax != 82 {
		t.Fatalf("expected tax 82, got %d", got.Tax)
	}
	if got.Discount != 0 {
		t.Fatalf("expected zero discount, got %d", got.Discount)
	}
	if got.Total != 1081 {
		t.Fatalf("expected total 1081, got %d", got.Total)
	}
}

func TestSummarizeIgnoresNegativeInputs(t *testing.T) {
	got := Summarize(Totals{TotalBasePrice: 1000, TotalFinalPrice: 1000}, -50, -300)
	if got.Tax != 0 || got.Shipping != 0 || got.Total != 1000 {
		t.Fatalf("unexpected summary %+v", got)
	}
}

func TestShippingCost(t *testing.T) {
	cases := []struct {
		subtotal, flat, threshold, want Money
	}{
		{subtotal: 5000, flat: 700, threshold: 4000, want: 0},
		{subtotal: 4000, flat: 700, threshold: 4000, want: 0},
		{subtotal: 3000, flat: 700, threshold: 4000, want: 700},
		{subtotal: 3000, flat: 700, threshold: 0, want: 700},
		{subtotal: 3000, flat: 0, threshold: 0, want: 0},
	}
	for _, tc := range cases {
		if got := ShippingCost(tc.subtotal, tc.flat, tc.threshold); got != tc.want {
			t.Fatalf("ShippingCost(%d, %d, %d) = %d, want %d", tc.subtotal, tc.flat, tc.threshold, got, tc.want)
		}
	}
}

func TestFormatSummary(t *testing.T) {
	got := NewEngine(DefaultCurrency).FormatSummary(Summary{Subtotal: 2500, Discount: 500, Tax: 205, Shipping: 0, Total: 2205})
	want := SummaryDisplay{Subtotal: "$25", Discount: "$5", Tax: "$2.05", Shipping: "$0", Total: "$22.05"}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}
