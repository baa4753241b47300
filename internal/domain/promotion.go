package domain

import "time"

// Discount type constants.
const (
	DiscountTypePercentage = "percentage"
	DiscountTypeFixed      = "fixed"
)

// Promotion is a redeemable discount code with a bounded usage budget.
type Promotion struct {
	ID            string    `json:"id"`
	Code          string    `json:"code"`
	DiscountType  string    `json:"discount_type"`
	DiscountValue int64     `json:"discount_value"`
	MaxDiscount   int64     `json:"max_discount"`
	MinOrderValue int64     `json:"min_order_value"`
	MaxUsage      int       `json:"max_usage"`
	UsedCount     int       `json:"used_count"`
	IsActive      bool      `json:"is_active"`
	ExpiresAt     time.Time `json:"expires_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Validate checks whether the promotion can be applied against the given
// order subtotal at the given instant.
func (p *Promotion) Validate(subtotal int64, now time.Time) error {
	switch {
	case !p.IsActive:
		return &PromotionInvalidError{Code: p.Code, Reason: "promotion is not active"}
	case p.DiscountType != DiscountTypePercentage && p.DiscountType != DiscountTypeFixed:
		return &PromotionInvalidError{Code: p.Code, Reason: "unknown discount type"}
	case now.After(p.ExpiresAt):
		return &PromotionInvalidError{Code: p.Code, Reason: "promotion has expired"}
	case p.UsedCount >= p.MaxUsage:
		return &PromotionInvalidError{Code: p.Code, Reason: "promotion usage limit reached"}
	case subtotal < p.MinOrderValue:
		return &PromotionInvalidError{Code: p.Code, Reason: "order subtotal is below the promotion minimum"}
	}
	return nil
}

// ComputeDiscount returns the discount amount for the given subtotal. The
// result is clamped to [0, subtotal].
func (p *Promotion) ComputeDiscount(subtotal int64) int64 {
	snap := p.Snapshot()
	return snap.Discount(subtotal)
}

// Snapshot freezes the pricing terms of the promotion for embedding in an
// order. A snapshot stays valid even after the promotion is edited or deleted.
func (p *Promotion) Snapshot() *PromotionSnapshot {
	return &PromotionSnapshot{
		PromotionID:   p.ID,
		Code:          p.Code,
		DiscountType:  p.DiscountType,
		DiscountValue: p.DiscountValue,
		MaxDiscount:   p.MaxDiscount,
	}
}

// PromotionSnapshot is the frozen promotion terms embedded in an order.
// MaxDiscount of zero means no cap.
type PromotionSnapshot struct {
	PromotionID   string `json:"promotion_id"`
	Code          string `json:"code"`
	DiscountType  string `json:"discount_type"`
	DiscountValue int64  `json:"discount_value"`
	MaxDiscount   int64  `json:"max_discount"`
}

// Discount computes the discount amount for the given subtotal using only
// the frozen terms.
func (s *PromotionSnapshot) Discount(subtotal int64) int64 {
	if subtotal <= 0 {
		return 0
	}
	var discount int64
	switch s.DiscountType {
	case DiscountTypePercentage:
		discount = subtotal * s.DiscountValue / 100
		if s.MaxDiscount > 0 && discount > s.MaxDiscount {
			discount = s.MaxDiscount
		}
	case DiscountTypeFixed:
		discount = s.DiscountValue
		if s.MaxDiscount > 0 && discount > s.MaxDiscount {
			discount = s.MaxDiscount
		}
	default:
		return 0
	}
	if discount < 0 {
		return 0
	}
	if discount > subtotal {
		return subtotal
	}
	return discount
}
