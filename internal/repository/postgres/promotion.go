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

// PromotionRepository implements repository.PromotionRepository using
// PostgreSQL. Redemptions are journaled in promotion_redemptions with a
// uniqueness constraint per order, which makes Redeem idempotent.
type PromotionRepository struct {
	pool database.DBTX
}

// NewPromotionRepository creates a new PostgreSQL-backed promotion repository.
func NewPromotionRepository(pool database.DBTX) *PromotionRepository {
	return &PromotionRepository{pool: pool}
}

// GetByCode retrieves a promotion by its case-insensitive code.
func (r *PromotionRepository) GetByCode(ctx context.Context, code string) (*domain.Promotion, error) {
	query := `
		SELECT id, code, discount_type, discount_value, max_discount,
			min_order_value, max_usage, used_count, is_active, expires_at,
			created_at, updated_at
		FROM promotions
		WHERE lower(code) = lower($1)`

	var p domain.Promotion
	err := r.pool.QueryRow(ctx, query, code).Scan(
		&p.ID, &p.Code, &p.DiscountType, &p.DiscountValue, &p.MaxDiscount,
		&p.MinOrderValue, &p.MaxUsage, &p.UsedCount, &p.IsActive, &p.ExpiresAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("promotion", code)
		}
		return nil, fmt.Errorf("get promotion: %w", err)
	}
	return &p, nil
}

// Redeem consumes one usage of the promotion for the given order. The
// redemption journal row and the counter increment commit together; a repeat
// call for the same order hits the journal's uniqueness constraint and
// becomes a no-op.
func (r *PromotionRepository) Redeem(ctx context.Context, promotionID, orderCode string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	journalQuery := `
		INSERT INTO promotion_redemptions (promotion_id, order_code, redeemed_at)
		VALUES ($1, $2, now())
		ON CONFLICT (promotion_id, order_code) DO NOTHING`

	ct, err := tx.Exec(ctx, journalQuery, promotionID, orderCode)
	if err != nil {
		return fmt.Errorf("journal redemption: %w", err)
	}
	if ct.RowsAffected() == 0 {
		// Already redeemed for this order.
		return tx.Commit(ctx)
	}

	counterQuery := `
		UPDATE promotions
		SET used_count = used_count + 1, updated_at = now()
		WHERE id = $1 AND used_count < max_usage`

	ct, err = tx.Exec(ctx, counterQuery, promotionID)
	if err != nil {
		return fmt.Errorf("increment usage count: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.Conflict("promotion usage limit reached")
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ReleaseRedemption undoes a redemption when order creation fails after the
// promotion was consumed.
func (r *PromotionRepository) ReleaseRedemption(ctx context.Context, promotionID, orderCode string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx,
		`DELETE FROM promotion_redemptions WHERE promotion_id = $1 AND order_code = $2`,
		promotionID, orderCode)
	if err != nil {
		return fmt.Errorf("delete redemption: %w", err)
	}
	if ct.RowsAffected() == 0 {
		// Nothing was redeemed; nothing to release.
		return tx.Commit(ctx)
	}

	_, err = tx.Exec(ctx,
		`UPDATE promotions SET used_count = GREATEST(used_count - 1, 0), updated_at = now() WHERE id = $1`,
		promotionID)
	if err != nil {
		return fmt.Errorf("decrement usage count: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
