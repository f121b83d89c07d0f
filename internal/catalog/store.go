package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-sneakers/internal/db"
	"github.com/noah-isme/backend-sneakers/internal/pricing"
)

var (
	// ErrNotFound is returned when a product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrSlugTaken is returned when another product already uses the slug.
	ErrSlugTaken = errors.New("slug already in use")
)

// Product is a catalog row joined with its active discount, if any.
type Product struct {
	ID          uuid.UUID
	Name        string
	Slug        string
	Brand       string
	Description string
	ImageURL    string
	BasePrice   pricing.Money
	Stock       int
	Discount    *pricing.Discount
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Filter narrows product listings.
type Filter struct {
	Query string
	Brand string
	Sort  string
}

// NewProduct carries the columns of an inserted product.
type NewProduct struct {
	Name        string
	Slug        string
	Brand       string
	Description string
	ImageURL    string
	BasePrice   pricing.Money
	Stock       int
}

// ProductChanges holds optional column updates; nil fields are left untouched.
type ProductChanges struct {
	Name        *string
	Slug        *string
	Brand       *string
	Description *string
	ImageURL    *string
	BasePrice   *pricing.Money
	Stock       *int
}

// Store is the persistence contract used by Service.
type Store interface {
	CountProducts(ctx context.Context, f Filter) (int64, error)
	ListProducts(ctx context.Context, f Filter, limit, offset int) ([]Product, error)
	GetProductBySlug(ctx context.Context, slug string) (Product, error)
	GetProductByID(ctx context.Context, id uuid.UUID) (Product, error)
	CreateProduct(ctx context.Context, p NewProduct) (Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, c ProductChanges) (Product, error)
}

// PGStore implements Store on Postgres.
type PGStore struct {
	db db.DBTX
}

// NewPGStore constructs a PGStore.
func NewPGStore(conn db.DBTX) *PGStore {
	return &PGStore{db: conn}
}

const productColumns = `p.id, p.name, p.slug, p.brand, p.description, p.image_url, p.base_price, p.stock,
	p.created_at, p.updated_at, d.type, d.value`

const productFrom = `FROM products p
	LEFT JOIN discounts d ON d.product_id = p.id AND d.active`

func (f Filter) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+q+"%")
		clauses = append(clauses, fmt.Sprintf("(p.name ILIKE $%d OR p.brand ILIKE $%d)", len(args), len(args)))
	}
	if b := strings.TrimSpace(f.Brand); b != "" {
		args = append(args, b)
		clauses = append(clauses, fmt.Sprintf("lower(p.brand) = lower($%d)", len(args)))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (f Filter) orderBy() string {
	switch f.Sort {
	case "price:asc":
		return " ORDER BY p.base_price ASC, p.id"
	case "price:desc":
		return " ORDER BY p.base_price DESC, p.id"
	case "name:asc":
		return " ORDER BY p.name ASC, p.id"
	case "name:desc":
		return " ORDER BY p.name DESC, p.id"
	default:
		return " ORDER BY p.created_at DESC, p.id"
	}
}

func (s *PGStore) CountProducts(ctx context.Context, f Filter) (int64, error) {
	where, args := f.where()
	var total int64
	if err := s.db.QueryRow(ctx, "SELECT count(*) FROM products p"+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return total, nil
}

func (s *PGStore) ListProducts(ctx context.Context, f Filter, limit, offset int) ([]Product, error) {
	where, args := f.where()
	args = append(args, limit, offset)
	sql := "SELECT " + productColumns + " " + productFrom + where + f.orderBy() +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PGStore) GetProductBySlug(ctx context.Context, slug string) (Product, error) {
	row := s.db.QueryRow(ctx, "SELECT "+productColumns+" "+productFrom+" WHERE p.slug = $1", slug)
	return getOne(row)
}

func (s *PGStore) GetProductByID(ctx context.Context, id uuid.UUID) (Product, error) {
	row := s.db.QueryRow(ctx, "SELECT "+productColumns+" "+productFrom+" WHERE p.id = $1", id)
	return getOne(row)
}

func (s *PGStore) CreateProduct(ctx context.Context, p NewProduct) (Product, error) {
	id := uuid.New()
	_, err := s.db.Exec(ctx, `INSERT INTO products (id, name, slug, brand, description, image_url, base_price, stock)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, p.Name, p.Slug, p.Brand, p.Description, p.ImageURL, p.BasePrice, p.Stock)
	if err != nil {
		if db.IsUniqueViolation(err, "products_slug_key") {
			return Product{}, ErrSlugTaken
		}
		return Product{}, fmt.Errorf("insert product: %w", err)
	}
	return s.GetProductByID(ctx, id)
}

func (s *PGStore) UpdateProduct(ctx context.Context, id uuid.UUID, c ProductChanges) (Product, error) {
	tag, err := s.db.Exec(ctx, `UPDATE products SET
			name = COALESCE($2, name),
			slug = COALESCE($3, slug),
			brand = COALESCE($4, brand),
			description = COALESCE($5, description),
			image_url = COALESCE($6, image_url),
			base_price = COALESCE($7, base_price),
			stock = COALESCE($8, stock),
			updated_at = now()
		WHERE id = $1`,
		id, c.Name, c.Slug, c.Brand, c.Description, c.ImageURL, c.BasePrice, c.Stock)
	if err != nil {
		if db.IsUniqueViolation(err, "products_slug_key") {
			return Product{}, ErrSlugTaken
		}
		return Product{}, fmt.Errorf("update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Product{}, ErrNotFound
	}
	return s.GetProductByID(ctx, id)
}

func getOne(row pgx.Row) (Product, error) {
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p         Product
		discType  *string
		discValue *int64
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.Brand, &p.Description, &p.ImageURL, &p.BasePrice, &p.Stock,
		&p.CreatedAt, &p.UpdatedAt, &discType, &discValue); err != nil {
		return Product{}, err
	}
	if discType != nil && discValue != nil {
		p.Discount = &pricing.Discount{Type: pricing.DiscountType(*discType), Value: *discValue, Active: true}
	}
	return p, nil
}
