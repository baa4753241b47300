package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/internal/domain"
	"github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/pkg/database"
	apperrors "github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/pkg/errors"
)

// InventoryRepository implements repository.InventoryRepository on the
// product_variants stock counters.
type InventoryRepository struct {
	pool database.DBTX
}

// NewInventoryRepository creates a new PostgreSQL-backed inventory repository.
func NewInventoryRepository(pool database.DBTX) *InventoryRepository {
	return &InventoryRepository{pool: pool}
}

// Reserve atomically decrements stock when enough units are available. The
// availability check and the decrement happen in one statement, so two
// concurrent reservations can never both succeed on the last unit.
func (r *InventoryRepository) Reserve(ctx context.Context, variantID string, qty int) error {
	if qty <= 0 {
		return apperrors.InvalidInput("reservation quantity must be positive")
	}

	query := `
		UPDATE product_variants
		SET stock_quantity = stock_quantity - $1, updated_at = now()
		WHERE id = $2 AND stock_quantity >= $1`

	ct, err := r.pool.Exec(ctx, query, qty, variantID)
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}

	if ct.RowsAffected() == 0 {
		var (
			available   int
			productName string
		)
		checkQuery := `
			SELECT v.stock_quantity, p.name
			FROM product_variants v
			JOIN products p ON p.id = v.product_id
			WHERE v.id = $1`
		err := r.pool.QueryRow(ctx, checkQuery, variantID).Scan(&available, &productName)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NotFound("variant", variantID)
			}
			return fmt.Errorf("check stock: %w", err)
		}
		return &domain.InsufficientStockError{
			VariantID:   variantID,
			ProductName: productName,
			Requested:   qty,
			Available:   available,
		}
	}
	return nil
}

// Release returns previously reserved units to stock.
func (r *InventoryRepository) Release(ctx context.Context, variantID string, qty int) error {
	if qty <= 0 {
		return apperrors.InvalidInput("release quantity must be positive")
	}

	query := `
		UPDATE product_variants
		SET stock_quantity = stock_quantity + $1, updated_at = now()
		WHERE id = $2`

	ct, err := r.pool.Exec(ctx, query, qty, variantID)
	if err != nil {
		return fmt.Errorf("release stock: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("variant", variantID)
	}
	return nil
}

// IncrementPurchaseCount bumps the variant's lifetime purchase counter.
func (r *InventoryRepository) IncrementPurchaseCount(ctx context.Context, variantID string, qty int) error {
	query := `
		UPDATE product_variants
		SET purchase_count = purchase_count + $1, updated_at = now()
		WHERE id = $2`

	ct, err := r.pool.Exec(ctx, query, qty, variantID)
	if err != nil {
		return fmt.Errorf("increment purchase count: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("variant", variantID)
	}
	return nil
}
