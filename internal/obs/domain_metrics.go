package obs

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CommerceMetrics holds storefront counters and histograms. A nil
// *CommerceMetrics is valid and records nothing.
type CommerceMetrics struct {
	CheckoutTotal        *prometheus.CounterVec
	OrderValue           prometheus.Histogram
	DiscountedLinesTotal *prometheus.CounterVec
	CatalogCacheTotal    *prometheus.CounterVec
	ConfirmationTotal    *prometheus.CounterVec
}

// NewCommerceMetrics registers the storefront collectors on reg (default registerer when nil).
func NewCommerceMetrics(namespace string, reg prometheus.Registerer) *CommerceMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &CommerceMetrics{
		CheckoutTotal: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Checkout attempts by outcome.",
		}, []string{"result"})),
		OrderValue: register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_value_minor_units",
			Help:      "Grand total of created orders in minor currency units.",
			Buckets:   []float64{1000, 5000, 10000, 25000, 50000, 100000, 250000, 500000},
		})),
		DiscountedLinesTotal: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_discounted_lines_total",
			Help:      "Order lines materialized with an active discount, by discount type.",
		}, []string{"type"})),
		CatalogCacheTotal: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_cache_total",
			Help:      "Catalog cache lookups by result.",
		}, []string{"result"})),
		ConfirmationTotal: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_confirmation_total",
			Help:      "Order confirmation task outcomes.",
		}, []string{"result"})),
	}
}

// Checkout records a checkout outcome.
func (m *CommerceMetrics) Checkout(result string) {
	if m == nil {
		return
	}
	m.CheckoutTotal.WithLabelValues(result).Inc()
}

// Order records the value of a created order.
func (m *CommerceMetrics) Order(total int64) {
	if m == nil {
		return
	}
	m.OrderValue.Observe(float64(total))
}

// DiscountedLine records a line priced with an active discount.
func (m *CommerceMetrics) DiscountedLine(discountType string) {
	if m == nil {
		return
	}
	m.DiscountedLinesTotal.WithLabelValues(discountType).Inc()
}

// CatalogCache records a cache lookup result (hit, miss, error).
func (m *CommerceMetrics) CatalogCache(result string) {
	if m == nil {
		return
	}
	m.CatalogCacheTotal.WithLabelValues(result).Inc()
}

// Confirmation records an order confirmation task outcome.
func (m *CommerceMetrics) Confirmation(result string) {
	if m == nil {
		return
	}
	m.ConfirmationTotal.WithLabelValues(result).Inc()
}
