package obs_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-sneakers/internal/obs"
)

func TestHTTPMetricsLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("sneakers", []float64{1, 10}, registry)
	handler := obs.HTTPObs{Metrics: metrics}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/health/ready"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/health/ready", "204")))
	require.NotZero(t, testutil.CollectAndCount(metrics.ReqDur))
	require.Equal(t, float64(0), testutil.ToFloat64(metrics.InFlight))
}

func TestHTTPMetricsUseChiPattern(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("sneakers", nil, registry)

	r := chi.NewRouter()
	r.Use(obs.HTTPObs{Metrics: metrics}.Middleware)
	r.Get("/api/v1/products/{slug}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, slug := range []string{"air-max", "samba"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/products/"+slug, nil))
		require.Equal(t, http.StatusOK, rr.Code)
	}
	require.Equal(t, float64(2), testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/api/v1/products/{slug}", "200")))
}

func TestNewHTTPMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := obs.NewHTTPMetrics("sneakers", nil, registry)
	second := obs.NewHTTPMetrics("sneakers", nil, registry)
	require.Same(t, first.ReqTotal, second.ReqTotal)
}

func TestCommerceMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := obs.NewCommerceMetrics("sneakers", registry)

	m.Checkout("created")
	m.Checkout("created")
	m.Checkout("empty_cart")
	m.DiscountedLine("PERCENTAGE")
	m.Order(2500)
	m.CatalogCache("hit")

	require.Equal(t, float64(2), testutil.ToFloat64(m.CheckoutTotal.WithLabelValues("created")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.CheckoutTotal.WithLabelValues("empty_cart")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.DiscountedLinesTotal.WithLabelValues("PERCENTAGE")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.CatalogCacheTotal.WithLabelValues("hit")))
	require.Equal(t, 1, testutil.CollectAndCount(m.OrderValue))

	var none *obs.CommerceMetrics
	require.NotPanics(t, func() {
		none.Checkout("created")
		none.Order(1)
		none.DiscountedLine("FIXED")
		none.CatalogCache("miss")
		none.Confirmation("sent")
	})
}

func TestParseBucketsCSV(t *testing.T) {
	require.Equal(t, []float64{5, 50.5}, obs.ParseBucketsCSV("5, x, -1, 50.5"))
	require.Nil(t, obs.ParseBucketsCSV("  "))
}
