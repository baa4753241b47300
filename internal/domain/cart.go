package domain

import (
	"fmt"
	"time"
)

// Cart limits.
const (
	MaxCartLines       = 50
	MaxQuantityPerLine = 20
)

// Identity names the owner of a cart or order. Exactly one of UserID or
// GuestID must be set.
type Identity struct {
	UserID  string
	GuestID string
	Role    string
}

// Valid reports whether exactly one owner side is set.
func (id Identity) Valid() bool {
	return (id.UserID != "") != (id.GuestID != "")
}

// IsAdmin reports whether the identity carries the admin role.
func (id Identity) IsAdmin() bool {
	return id.Role == "admin"
}

// Key returns the storage key for the identity's cart.
func (id Identity) Key() string {
	if id.UserID != "" {
		return fmt.Sprintf("cart:user:%s", id.UserID)
	}
	return fmt.Sprintf("cart:guest:%s", id.GuestID)
}

// Cart holds the variant references a shopper intends to buy. Prices are
// never stored here; they are resolved against the catalog on every read.
type Cart struct {
	UserID    string     `json:"user_id,omitempty"`
	GuestID   string     `json:"guest_id,omitempty"`
	Items     []CartItem `json:"items"`
	Version   int64      `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CartItem references a purchasable variant by ID only.
type CartItem struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

// FindItem returns the index of the line holding variantID, or -1.
func (c *Cart) FindItem(variantID string) int {
	for i := range c.Items {
		if c.Items[i].VariantID == variantID {
			return i
		}
	}
	return -1
}

// TotalQuantity returns the summed quantity across all lines.
func (c *Cart) TotalQuantity() int {
	total := 0
	for i := range c.Items {
		total += c.Items[i].Quantity
	}
	return total
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}
