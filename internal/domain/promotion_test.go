package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/DoMinHoo/Du-An-Tot-Nghiep--sub000/pkg/errors"
)

func activePromotion() *Promotion {
	return &Promotion{
		ID:            "promo-1",
		Code:          "SAVE10",
		DiscountType:  DiscountTypePercentage,
		DiscountValue: 10,
		MaxDiscount:   50000,
		MinOrderValue: 200000,
		MaxUsage:      100,
		UsedCount:     5,
		IsActive:      true,
		ExpiresAt:     time.Now().Add(24 * time.Hour),
	}
}

// ============================================================================
// Promotion.Validate Tests
// ============================================================================

func TestPromotionValidate_Valid(t *testing.T) {
	p := activePromotion()
	assert.NoError(t, p.Validate(500000, time.Now()))
}

func TestPromotionValidate_Inactive(t *testing.T) {
	p := activePromotion()
	p.IsActive = false
	err := p.Validate(500000, time.Now())
	assert.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestPromotionValidate_Expired(t *testing.T) {
	p := activePromotion()
	p.ExpiresAt = time.Now().Add(-time.Minute)
	err := p.Validate(500000, time.Now())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestPromotionValidate_UsageExhausted(t *testing.T) {
	p := activePromotion()
	p.UsedCount = p.MaxUsage
	err := p.Validate(500000, time.Now())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "usage limit")
}

func TestPromotionValidate_UnknownDiscountType(t *testing.T) {
	p := activePromotion()
	p.DiscountType = "percent"
	err := p.Validate(500000, time.Now())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown discount type")
}

func TestPromotionValidate_SubtotalBelowMinimum(t *testing.T) {
	p := activePromotion()
	err := p.Validate(199999, time.Now())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "below the promotion minimum")
}

func TestPromotionValidate_SubtotalAtMinimum(t *testing.T) {
	p := activePromotion()
	assert.NoError(t, p.Validate(200000, time.Now()))
}

// ============================================================================
// Discount Computation Tests
// ============================================================================

func TestComputeDiscount_PercentageUnderCap(t *testing.T) {
	p := activePromotion()
	// 10% of 300,000 = 30,000, under the 50,000 cap.
	assert.Equal(t, int64(30000), p.ComputeDiscount(300000))
}

func TestComputeDiscount_PercentageHitsCap(t *testing.T) {
	p := activePromotion()
	// 10% of 1,000,000 = 100,000, capped at 50,000.
	assert.Equal(t, int64(50000), p.ComputeDiscount(1000000))
}

func TestComputeDiscount_PercentageNoCap(t *testing.T) {
	p := activePromotion()
	p.MaxDiscount = 0
	assert.Equal(t, int64(100000), p.ComputeDiscount(1000000))
}

func TestComputeDiscount_Fixed(t *testing.T) {
	p := activePromotion()
	p.DiscountType = DiscountTypeFixed
	p.DiscountValue = 30000
	p.MaxDiscount = 0
	assert.Equal(t, int64(30000), p.ComputeDiscount(500000))
}

func TestComputeDiscount_FixedCappedBySubtotal(t *testing.T) {
	p := activePromotion()
	p.DiscountType = DiscountTypeFixed
	p.DiscountValue = 300000
	p.MaxDiscount = 0
	// Discount can never exceed the subtotal.
	assert.Equal(t, int64(250000), p.ComputeDiscount(250000))
}

func TestComputeDiscount_ZeroSubtotal(t *testing.T) {
	p := activePromotion()
	assert.Equal(t, int64(0), p.ComputeDiscount(0))
}

func TestComputeDiscount_UnknownType(t *testing.T) {
	p := activePromotion()
	p.DiscountType = "bogus"
	assert.Equal(t, int64(0), p.ComputeDiscount(500000))
}

// ============================================================================
// Snapshot Tests
// ============================================================================

func TestSnapshot_FreezesTerms(t *testing.T) {
	p := activePromotion()
	snap := p.Snapshot()

	// Editing the promotion afterwards must not change the snapshot's result.
	p.DiscountValue = 50
	p.MaxDiscount = 0

	assert.Equal(t, "SAVE10", snap.Code)
	assert.Equal(t, int64(50000), snap.Discount(1000000))
}

func TestSnapshotDiscount_MatchesPromotion(t *testing.T) {
	p := activePromotion()
	for _, subtotal := range []int64{0, 100000, 300000, 1000000} {
		assert.Equal(t, p.ComputeDiscount(subtotal), p.Snapshot().Discount(subtotal))
	}
}
