package domain

import "time"

// Variant is the read model of a purchasable product variation exposed by the
// catalog. Stock and purchase counters live on the variant row.
type Variant struct {
	ID             string    `json:"id"`
	ProductID      string    `json:"product_id"`
	ProductName    string    `json:"product_name"`
	SKU            string    `json:"sku"`
	Price          int64     `json:"price"`
	SalePrice      int64     `json:"sale_price"`
	StockQuantity  int       `json:"stock_quantity"`
	PurchaseCount  int       `json:"purchase_count"`
	ProductActive  bool      `json:"product_active"`
	ProductDeleted bool      `json:"product_deleted"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CurrentPrice returns the effective unit price, preferring the sale price
// when one is set.
func (v *Variant) CurrentPrice() int64 {
	if v.SalePrice > 0 && v.SalePrice < v.Price {
		return v.SalePrice
	}
	return v.Price
}

// Purchasable reports whether the variant can still be bought: its product
// must be active and not soft-deleted.
func (v *Variant) Purchasable() bool {
	return v.ProductActive && !v.ProductDeleted
}
