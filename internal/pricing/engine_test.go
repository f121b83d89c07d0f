package pricing

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func percent(v int64) *Discount { return &Discount{Type: DiscountPercentage, Value: v, Active: true} }
func fixed(v int64) *Discount   { return &Discount{Type: DiscountFixed, Value: v, Active: true} }

func TestApplyDiscountWithoutActiveDiscount(t *testing.T) {
	for _, base := range []Money{0, 1, 999, 1099, 45000} {
		require.Equal(t, base, ApplyDiscount(base, nil))
		require.Equal(t, base, ApplyDiscount(base, &Discount{Type: DiscountPercentage, Value: 25, Active: false}))
		require.Equal(t, base, ApplyDiscount(base, &Discount{Type: DiscountFixed, Value: 500, Active: false}))
	}
}

func TestApplyDiscount(t *testing.T) {
	cases := []struct {
		name     string
		base     Money
		discount *Discount
		want     Money
	}{
		{name: "fixed", base: 1000, discount: fixed(250), want: 750},
		{name: "fixed clamps at zero", base: 100, discount: fixed(150), want: 0},
		{name: "fixed equal to base", base: 500, discount: fixed(500), want: 0},
		{name: "percentage truncates", base: 1099, discount: percent(25), want: 824},
		{name: "percentage exact", base: 45000, discount: percent(10), want: 40500},
		{name: "percentage truncates small remainder", base: 1, discount: percent(50), want: 0},
		{name: "percentage full", base: 1099, discount: percent(100), want: 0},
		{name: "percentage above hundred clamps at zero", base: 1099, discount: percent(150), want: 0},
		{name: "unknown type keeps base", base: 1099, discount: &Discount{Type: "BOGO", Value: 50, Active: true}, want: 1099},
		{name: "empty type keeps base", base: 1099, discount: &Discount{Value: 50, Active: true}, want: 1099},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ApplyDiscount(tc.base, tc.discount))
		})
	}
}

func TestPriceLineItemDiscountsLineTotal(t *testing.T) {
	item := LineItem{UnitBasePrice: 333, Quantity: 3, Discount: percent(10)}

	got := PriceLineItem(item)
	require.Equal(t, Money(999), got.BasePrice)
	require.Equal(t, Money(899), got.FinalPrice)
	require.NotNil(t, got.DiscountAmount)
	require.Equal(t, Money(100), *got.DiscountAmount)

	perUnit := 3 * ApplyDiscount(333, item.Discount)
	require.Equal(t, Money(897), perUnit)
	require.NotEqual(t, perUnit, got.FinalPrice)
}

func TestPriceLineItemWithoutDiscount(t *testing.T) {
	got := PriceLineItem(LineItem{UnitBasePrice: 12500, Quantity: 2})
	require.Equal(t, PriceBreakdown{BasePrice: 25000, FinalPrice: 25000}, got)

	unknown := PriceLineItem(LineItem{UnitBasePrice: 12500, Quantity: 1, Discount: &Discount{Type: "BOGO", Value: 1, Active: true}})
	require.Nil(t, unknown.DiscountAmount)
	require.Equal(t, Money(12500), unknown.FinalPrice)
}

func TestAggregateEmpty(t *testing.T) {
	got := Aggregate(nil)
	require.Equal(t, Totals{}, got)
	require.Nil(t, got.TotalDiscount)

	require.Equal(t, Totals{}, Aggregate([]LineItem{}))
}

func TestAggregateMixedDiscounts(t *testing.T) {
	got := Aggregate([]LineItem{
		{UnitBasePrice: 1000, Quantity: 2, Discount: percent(25)},
		{UnitBasePrice: 500, Quantity: 1},
	})
	require.Equal(t, 3, got.TotalQuantity)
	require.Equal(t, Money(2500), got.TotalBasePrice)
	require.Equal(t, Money(2000), got.TotalFinalPrice)
	require.NotNil(t, got.TotalDiscount)
	require.Equal(t, Money(500), *got.TotalDiscount)
}

func TestAggregateDistinguishesZeroDiscountFromNone(t *testing.T) {
	none := Aggregate([]LineItem{
		{UnitBasePrice: 1000, Quantity: 1, Discount: &Discount{Type: DiscountFixed, Value: 100, Active: false}},
	})
	require.Nil(t, none.TotalDiscount)

	zero := Aggregate([]LineItem{
		{UnitBasePrice: 0, Quantity: 1, Discount: fixed(100)},
	})
	require.NotNil(t, zero.TotalDiscount)
	require.Equal(t, Money(0), *zero.TotalDiscount)
}

func TestAggregateConcurrentCallsAreIndependent(t *testing.T) {
	items := []LineItem{
		{UnitBasePrice: 1099, Quantity: 1, Discount: percent(25)},
		{UnitBasePrice: 333, Quantity: 3, Discount: percent(10)},
	}
	want := Aggregate(items)

	var wg sync.WaitGroup
	results := make([]Totals, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = Aggregate(items)
		}(i)
	}
	wg.Wait()
	for _, got := range results {
		require.Equal(t, want, got)
	}
}

func TestParseDiscountType(t *testing.T) {
	got, ok := ParseDiscountType(" percentage ")
	require.True(t, ok)
	require.Equal(t, DiscountPercentage, got)

	_, ok = ParseDiscountType("bogo")
	require.False(t, ok)
}
