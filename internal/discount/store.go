package discount

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-sneakers/internal/db"
	"github.com/noah-isme/backend-sneakers/internal/pricing"
)

var (
	// ErrNotFound is returned when a discount does not exist.
	ErrNotFound = errors.New("discount not found")
	// ErrProductNotFound is returned when the target product does not exist.
	ErrProductNotFound = errors.New("product not found")
)

// Record is a stored discount descriptor.
type Record struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"productId"`
	pricing.Discount
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store persists discounts. Implementations guarantee at most one active
// discount per product: activating one deactivates the others atomically.
type Store interface {
	Create(ctx context.Context, productID uuid.UUID, d pricing.Discount) (Record, error)
	Get(ctx context.Context, id uuid.UUID) (Record, error)
	Save(ctx context.Context, rec Record) (Record, error)
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]Record, error)
}

type pool interface {
	db.DBTX
	db.TxBeginner
}

// PGStore implements Store on Postgres.
type PGStore struct {
	pool pool
}

// NewPGStore constructs a PGStore.
func NewPGStore(p pool) *PGStore {
	return &PGStore{pool: p}
}

const discountColumns = `id, product_id, type, value, active, created_at, updated_at`

func (s *PGStore) Create(ctx context.Context, productID uuid.UUID, d pricing.Discount) (Record, error) {
	var rec Record
	err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := lockProduct(ctx, tx, productID); err != nil {
			return err
		}
		if d.Active {
			if err := deactivateOthers(ctx, tx, productID, uuid.Nil); err != nil {
				return err
			}
		}
		row := tx.QueryRow(ctx, `INSERT INTO discounts (id, product_id, type, value, active)
			VALUES ($1, $2, $3, $4, $5) RETURNING `+discountColumns,
			uuid.New(), productID, string(d.Type), d.Value, d.Active)
		var err error
		rec, err = scanRecord(row)
		if err != nil {
			return fmt.Errorf("insert discount: %w", err)
		}
		return nil
	})
	return rec, err
}

func (s *PGStore) Get(ctx context.Context, id uuid.UUID) (Record, error) {
	rec, err := scanRecord(s.pool.QueryRow(ctx, `SELECT `+discountColumns+` FROM discounts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("get discount: %w", err)
	}
	return rec, nil
}

func (s *PGStore) Save(ctx context.Context, in Record) (Record, error) {
	var rec Record
	err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := lockProduct(ctx, tx, in.ProductID); err != nil {
			return err
		}
		if in.Active {
			if err := deactivateOthers(ctx, tx, in.ProductID, in.ID); err != nil {
				return err
			}
		}
		row := tx.QueryRow(ctx, `UPDATE discounts SET type = $2, value = $3, active = $4, updated_at = now()
			WHERE id = $1 RETURNING `+discountColumns,
			in.ID, string(in.Type), in.Value, in.Active)
		var err error
		rec, err = scanRecord(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("update discount: %w", err)
		}
		return nil
	})
	return rec, err
}

func (s *PGStore) ListByProduct(ctx context.Context, productID uuid.UUID) ([]Record, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check product: %w", err)
	}
	if !exists {
		return nil, ErrProductNotFound
	}
	rows, err := s.pool.Query(ctx, `SELECT `+discountColumns+` FROM discounts
		WHERE product_id = $1 ORDER BY active DESC, created_at DESC`, productID)
	if err != nil {
		return nil, fmt.Errorf("list discounts: %w", err)
	}
	defer rows.Close()
	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan discount: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// lockProduct serializes discount writes per product.
func lockProduct(ctx context.Context, tx pgx.Tx, productID uuid.UUID) error {
	var id uuid.UUID
	err := tx.QueryRow(ctx, `SELECT id FROM products WHERE id = $1 FOR UPDATE`, productID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrProductNotFound
	}
	if err != nil {
		return fmt.Errorf("lock product: %w", err)
	}
	return nil
}

func deactivateOthers(ctx context.Context, tx pgx.Tx, productID, keep uuid.UUID) error {
	_, err := tx.Exec(ctx, `UPDATE discounts SET active = FALSE, updated_at = now()
		WHERE product_id = $1 AND active AND id <> $2`, productID, keep)
	if err != nil {
		return fmt.Errorf("deactivate discounts: %w", err)
	}
	return nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec   Record
		dtype string
	)
	if err := row.Scan(&rec.ID, &rec.ProductID, &dtype, &rec.Value, &rec.Active, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return Record{}, err
	}
	rec.Type = pricing.DiscountType(dtype)
	return rec, nil
}
