package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-sneakers/internal/auth"
	"github.com/noah-isme/backend-sneakers/internal/cart"
	"github.com/noah-isme/backend-sneakers/internal/catalog"
	"github.com/noah-isme/backend-sneakers/internal/checkout"
	"github.com/noah-isme/backend-sneakers/internal/common"
	"github.com/noah-isme/backend-sneakers/internal/discount"
	"github.com/noah-isme/backend-sneakers/internal/health"
	"github.com/noah-isme/backend-sneakers/internal/obs"
	"github.com/noah-isme/backend-sneakers/internal/order"
	"github.com/noah-isme/backend-sneakers/internal/ratelimit"
	"github.com/noah-isme/backend-sneakers/internal/rbac"
	"github.com/noah-isme/backend-sneakers/internal/security"
	"github.com/ulule/limiter/v3"
)

type routerDeps struct {
	Logger         zerolog.Logger
	Redis          *redis.Client
	Auth           auth.Middleware
	Policy         rbac.Policy
	HTTPMetrics    *obs.HTTPMetrics
	Gatherer       prometheus.Gatherer
	Tracing        bool
	AllowedOrigins []string
	BodyLimit      int64
	HSTS           bool
	PublicLimiter  *limiter.Limiter
	CheckoutLimit  ratelimit.Config
	IdempotencyTTL time.Duration

	Health   *health.Handler
	Catalog  *catalog.Handler
	Discount *discount.Handler
	Cart     *cart.Handler
	Checkout *checkout.Handler
	Orders   *order.Handler
	Admin    *order.AdminHandler
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if d.Tracing {
		r.Use(obs.Tracing("sneakers-api"))
	}
	if d.HTTPMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.HTTPMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(security.Headers{HSTS: d.HSTS, HSTSMaxAge: 31536000, HSTSIncludeSubdomains: true}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(d.AllowedOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-Total-Count", "Link", common.ReplayedHeader},
		AllowCredentials: len(d.AllowedOrigins) > 0,
		MaxAge:           300,
	}))

	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/health/live", d.Health.Live)
	r.Get("/health/ready", d.Health.Ready)

	idem := common.Idem{R: d.Redis, TTL: d.IdempotencyTTL}
	checkoutLimit := ratelimit.Handler{
		Limiter: ratelimit.SlidingWindow{Client: d.Redis, Prefix: "rl:"},
		Config:  d.CheckoutLimit,
	}

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(security.BodyLimit{Max: d.BodyLimit}.Middleware)
		v.Use(d.Auth.Authenticate)
		if d.PublicLimiter != nil {
			v.Use(ratelimit.PublicMiddleware(d.PublicLimiter))
		}

		v.Get("/products", d.Catalog.Products)
		v.Get("/products/{slug}", d.Catalog.ProductDetail)

		v.Route("/carts", func(c chi.Router) {
			c.Get("/{id}", d.Cart.Get)
			c.Group(func(g chi.Router) {
				g.Use(idem.Middleware)
				g.Post("/", d.Cart.Create)
				g.Post("/{id}/items", d.Cart.AddItem)
				g.Patch("/{id}/items/{itemId}", d.Cart.UpdateItem)
				g.Delete("/{id}/items/{itemId}", d.Cart.RemoveItem)
				g.With(d.Auth.RequireAuth).Post("/{id}/merge", d.Cart.Merge)
			})
		})

		v.With(
			d.Auth.RequireAuth,
			d.Policy.RequirePermission(rbac.ActionCreate, rbac.SubjectCheckout),
			checkoutLimit.Middleware,
			idem.Middleware,
		).Post("/checkout", d.Checkout.Checkout)

		v.Group(func(o chi.Router) {
			o.Use(d.Auth.RequireAuth)
			o.Get("/orders", d.Orders.List)
			o.Get("/orders/{orderId}", d.Orders.Get)
			o.Get("/orders/{orderId}/confirmation", d.Orders.Confirmation)
			o.Post("/orders/{orderId}/cancel", d.Orders.Cancel)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(d.Auth.RequireAuth)

			admin.Group(func(p chi.Router) {
				p.Use(d.Policy.RequirePermission(rbac.ActionManage, rbac.SubjectProduct))
				p.Post("/products", d.Catalog.CreateProduct)
				p.Patch("/products/{id}", d.Catalog.UpdateProduct)
			})

			admin.Group(func(p chi.Router) {
				p.Use(d.Policy.RequirePermission(rbac.ActionManage, rbac.SubjectDiscount))
				p.Get("/products/{productId}/discounts", d.Discount.List)
				p.Post("/products/{productId}/discounts", d.Discount.Create)
				p.Patch("/discounts/{id}", d.Discount.Update)
				p.Delete("/discounts/{id}", d.Discount.Deactivate)
				p.Post("/discounts/preview", d.Discount.Preview)
			})

			admin.Group(func(p chi.Router) {
				p.Use(d.Policy.RequirePermission(rbac.ActionRead, rbac.SubjectOrder))
				p.Get("/orders", d.Admin.List)
			})
			admin.With(d.Policy.RequirePermission(rbac.ActionManage, rbac.SubjectOrder)).
				Patch("/orders/{orderId}/status", d.Admin.PatchStatus)
		})
	})

	return r
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
