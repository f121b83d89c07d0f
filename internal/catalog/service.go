package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-sneakers/internal/common"
	"github.com/noah-isme/backend-sneakers/internal/obs"
	"github.com/noah-isme/backend-sneakers/internal/pricing"
)

// Service orchestrates catalog queries, priced views and caching.
type Service struct {
	store        Store
	cache        *Cache
	engine       pricing.Engine
	metrics      *obs.CommerceMetrics
	logger       zerolog.Logger
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store        Store
	Cache        *Cache
	Engine       pricing.Engine
	Metrics      *obs.CommerceMetrics
	Logger       zerolog.Logger
	DefaultLimit int
	MaxLimit     int
}

// ListParams captures filters for product listing.
type ListParams struct {
	Query string
	Brand string
	Sort  string
	Page  int
	Limit int
}

// PriceDisplay holds the customer-facing price strings.
type PriceDisplay struct {
	Base     string  `json:"base"`
	Final    string  `json:"final"`
	Discount *string `json:"discount"`
}

// PriceView is a single unit of a product priced through the engine.
type PriceView struct {
	BasePrice      pricing.Money     `json:"basePrice"`
	FinalPrice     pricing.Money     `json:"finalPrice"`
	DiscountAmount *pricing.Money    `json:"discountAmount"`
	Discount       *pricing.Discount `json:"discount"`
	Formatted      PriceDisplay      `json:"formatted"`
}

// ProductView is the public product payload.
type ProductView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Brand       string    `json:"brand"`
	Description string    `json:"description"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	Stock       int       `json:"stock"`
	InStock     bool      `json:"inStock"`
	Price       PriceView `json:"price"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ListResult contains one page of products plus the total match count.
type ListResult struct {
	Items []ProductView `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"-"`
	Limit int           `json:"-"`
}

// ProductInput is the admin create payload.
type ProductInput struct {
	Name        string `json:"name" validate:"required,max=200"`
	Slug        string `json:"slug" validate:"omitempty,max=160"`
	Brand       string `json:"brand" validate:"max=100"`
	Description string `json:"description" validate:"max=5000"`
	ImageURL    string `json:"imageUrl" validate:"omitempty,url"`
	BasePrice   *int64 `json:"basePrice" validate:"required,gte=0"`
	Stock       *int   `json:"stock" validate:"required,gte=0"`
}

// ProductPatch is the admin partial update payload.
type ProductPatch struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=200"`
	Slug        *string `json:"slug" validate:"omitempty,min=1,max=160"`
	Brand       *string `json:"brand" validate:"omitempty,max=100"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	ImageURL    *string `json:"imageUrl" validate:"omitempty,url"`
	BasePrice   *int64  `json:"basePrice" validate:"omitempty,gte=0"`
	Stock       *int    `json:"stock" validate:"omitempty,gte=0"`
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: store is required")
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 20
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &Service{
		store:        cfg.Store,
		cache:        cfg.Cache,
		engine:       cfg.Engine,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}, nil
}

// Engine returns the pricing engine used for product views.
func (s *Service) Engine() pricing.Engine { return s.engine }

// ParseListParams normalises raw query values into typed filters.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{
		Query: strings.TrimSpace(values.Get("q")),
		Brand: strings.TrimSpace(values.Get("brand")),
		Sort:  normalizeSort(values.Get("sort")),
		Page:  1,
		Limit: s.defaultLimit,
	}
	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, fieldError("page", "page must be a positive integer", err)
		}
		params.Page = page
	}
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return params, fieldError("limit", "limit must be a positive integer", err)
		}
		params.Limit = min(limit, s.maxLimit)
	}
	return params, nil
}

// List returns one page of priced products.
func (s *Service) List(ctx context.Context, params ListParams) (ListResult, error) {
	version, err := s.cache.ListVersion(ctx)
	useCache := err == nil
	if err != nil {
		s.cacheFailure(err, "catalog_list_version")
	}
	key := listKey(version, params)
	if useCache {
		var cached ListResult
		if s.lookup(ctx, key, &cached) {
			cached.Page, cached.Limit = params.Page, params.Limit
			return cached, nil
		}
	}

	filter := Filter{Query: params.Query, Brand: params.Brand, Sort: params.Sort}
	total, err := s.store.CountProducts(ctx, filter)
	if err != nil {
		return ListResult{}, err
	}
	rows, err := s.store.ListProducts(ctx, filter, params.Limit, common.Offset(params.Page, params.Limit))
	if err != nil {
		return ListResult{}, err
	}
	items := make([]ProductView, 0, len(rows))
	for _, p := range rows {
		items = append(items, s.View(p))
	}
	result := ListResult{Items: items, Total: total, Page: params.Page, Limit: params.Limit}
	if useCache {
		s.remember(ctx, key, result)
	}
	return result, nil
}

// Get returns a priced product by slug.
func (s *Service) Get(ctx context.Context, slug string) (ProductView, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return ProductView{}, fieldError("slug", "slug is required", nil)
	}
	var cached ProductView
	if s.lookup(ctx, detailKey(slug), &cached) {
		return cached, nil
	}
	p, err := s.store.GetProductBySlug(ctx, slug)
	if err != nil {
		return ProductView{}, err
	}
	view := s.View(p)
	s.remember(ctx, detailKey(slug), view)
	return view, nil
}

// Create inserts a product. An empty slug is derived from the name.
func (s *Service) Create(ctx context.Context, in ProductInput) (ProductView, error) {
	if err := common.ValidateStruct(in); err != nil {
		return ProductView{}, err
	}
	slug := Slugify(in.Slug)
	if slug == "" {
		slug = Slugify(in.Name)
	}
	if slug == "" {
		return ProductView{}, fieldError("slug", "slug must contain letters or digits", nil)
	}
	p, err := s.store.CreateProduct(ctx, NewProduct{
		Name:        strings.TrimSpace(in.Name),
		Slug:        slug,
		Brand:       strings.TrimSpace(in.Brand),
		Description: strings.TrimSpace(in.Description),
		ImageURL:    strings.TrimSpace(in.ImageURL),
		BasePrice:   *in.BasePrice,
		Stock:       *in.Stock,
	})
	if err != nil {
		return ProductView{}, err
	}
	s.invalidate(ctx, p.Slug)
	return s.View(p), nil
}

// Update applies a partial update and drops cached views of the product.
func (s *Service) Update(ctx context.Context, id uuid.UUID, patch ProductPatch) (ProductView, error) {
	if err := common.ValidateStruct(patch); err != nil {
		return ProductView{}, err
	}
	before, err := s.store.GetProductByID(ctx, id)
	if err != nil {
		return ProductView{}, err
	}
	changes := ProductChanges{
		Name:        trimmed(patch.Name),
		Brand:       trimmed(patch.Brand),
		Description: trimmed(patch.Description),
		ImageURL:    trimmed(patch.ImageURL),
		BasePrice:   patch.BasePrice,
		Stock:       patch.Stock,
	}
	if patch.Slug != nil {
		slug := Slugify(*patch.Slug)
		if slug == "" {
			return ProductView{}, fieldError("slug", "slug must contain letters or digits", nil)
		}
		changes.Slug = &slug
	}
	p, err := s.store.UpdateProduct(ctx, id, changes)
	if err != nil {
		return ProductView{}, err
	}
	s.invalidate(ctx, before.Slug, p.Slug)
	return s.View(p), nil
}

// InvalidateProduct drops cached views for the product with the given id.
func (s *Service) InvalidateProduct(ctx context.Context, id uuid.UUID) {
	p, err := s.store.GetProductByID(ctx, id)
	if err != nil {
		s.invalidate(ctx)
		return
	}
	s.invalidate(ctx, p.Slug)
}

// View prices one unit of p through the engine.
func (s *Service) View(p Product) ProductView {
	line := s.engine.PriceLine(pricing.LineItem{UnitBasePrice: p.BasePrice, Quantity: 1, Discount: p.Discount})
	var discount *pricing.Discount
	if line.DiscountAmount != nil {
		discount = p.Discount
	}
	return ProductView{
		ID:          p.ID.String(),
		Name:        p.Name,
		Slug:        p.Slug,
		Brand:       p.Brand,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		Stock:       p.Stock,
		InStock:     p.Stock > 0,
		UpdatedAt:   p.UpdatedAt,
		Price: PriceView{
			BasePrice:      line.BasePrice,
			FinalPrice:     line.FinalPrice,
			DiscountAmount: line.DiscountAmount,
			Discount:       discount,
			Formatted: PriceDisplay{
				Base:     line.Formatted.BasePrice,
				Final:    line.Formatted.FinalPrice,
				Discount: line.Formatted.Discount,
			},
		},
	}
}

func (s *Service) lookup(ctx context.Context, key string, dst any) bool {
	if !s.cache.enabled() {
		return false
	}
	ok, err := s.cache.GetJSON(ctx, key, dst)
	switch {
	case err != nil:
		s.metrics.CatalogCache("error")
		s.cacheFailure(err, "catalog_cache_get")
		return false
	case ok:
		s.metrics.CatalogCache("hit")
		return true
	default:
		s.metrics.CatalogCache("miss")
		return false
	}
}

func (s *Service) remember(ctx context.Context, key string, v any) {
	if err := s.cache.SetJSON(ctx, key, v); err != nil {
		s.cacheFailure(err, "catalog_cache_set")
	}
}

func (s *Service) invalidate(ctx context.Context, slugs ...string) {
	if err := s.cache.Invalidate(ctx, slugs...); err != nil {
		s.cacheFailure(err, "catalog_cache_invalidate")
	}
}

func (s *Service) cacheFailure(err error, msg string) {
	s.logger.Warn().Err(err).Msg(msg)
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases s and joins runs of letters and digits with hyphens.
func Slugify(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-"), "-")
}

func normalizeSort(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "price:asc", "price:desc", "name:asc", "name:desc":
		return s
	default:
		return ""
	}
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

func fieldError(field, message string, err error) *common.AppError {
	appErr := common.BadRequest(message, err)
	appErr.Details = map[string]any{"field": field}
	return appErr
}

// MapError converts catalog errors into AppErrors.
func MapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return common.NotFound("product not found", err)
	case errors.Is(err, ErrSlugTaken):
		return common.Conflict("slug already in use", err)
	case common.IsAppError(err):
		return err
	default:
		return fmt.Errorf("catalog: %w", err)
	}
}
