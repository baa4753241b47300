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

const variantColumns = `v.id, v.product_id, p.name, v.sku, v.price, v.sale_price,
	v.stock_quantity, v.purchase_count, p.is_active, p.deleted_at IS NOT NULL, v.updated_at`

// VariantRepository reads purchasable variants joined with their product flags.
type VariantRepository struct {
	pool database.DBTX
}

// NewVariantRepository creates a new PostgreSQL-backed variant repository.
func NewVariantRepository(pool database.DBTX) *VariantRepository {
	return &VariantRepository{pool: pool}
}

// GetByID retrieves a single variant.
func (r *VariantRepository) GetByID(ctx context.Context, id string) (*domain.Variant, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.id = $1`, variantColumns)

	var v domain.Variant
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&v.ID, &v.ProductID, &v.ProductName, &v.SKU, &v.Price, &v.SalePrice,
		&v.StockQuantity, &v.PurchaseCount, &v.ProductActive, &v.ProductDeleted, &v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("variant", id)
		}
		return nil, fmt.Errorf("get variant: %w", err)
	}
	return &v, nil
}

// GetByIDs retrieves a batch of variants keyed by ID.
func (r *VariantRepository) GetByIDs(ctx context.Context, ids []string) (map[string]domain.Variant, error) {
	result := make(map[string]domain.Variant, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.id = ANY($1)`, variantColumns)

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("get variants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v domain.Variant
		if err := rows.Scan(
			&v.ID, &v.ProductID, &v.ProductName, &v.SKU, &v.Price, &v.SalePrice,
			&v.StockQuantity, &v.PurchaseCount, &v.ProductActive, &v.ProductDeleted, &v.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan variant row: %w", err)
		}
		result[v.ID] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variant rows: %w", err)
	}

	return result, nil
}
