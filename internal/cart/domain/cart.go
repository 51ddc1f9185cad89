package domain

import "time"

type Item struct {
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	Variant   *string   `json:"variant,omitempty"`
	AddedAt   time.Time `json:"addedAt"`
}

// Cart holds at most one item per product and variant, in insertion order.
type Cart struct {
	UserID    string
	Items     []Item
	UpdatedAt time.Time
}

func New(userID string) Cart {
	return Cart{UserID: userID}
}

// Add merges into an existing line for the same product and variant.
func (c *Cart) Add(productID string, quantity int, variant *string, now time.Time) Item {
	variant = NormalizeVariant(variant)
	for i := range c.Items {
		if c.Items[i].ProductID == productID && SameVariant(c.Items[i].Variant, variant) {
			c.Items[i].Quantity += quantity
			c.UpdatedAt = now
			return c.Items[i]
		}
	}
	item := Item{ProductID: productID, Quantity: quantity, Variant: variant, AddedAt: now}
	c.Items = append(c.Items, item)
	c.UpdatedAt = now
	return item
}

// SetQuantity replaces the quantity of the first line matching productID
// (and variant, when given). Zero removes the line. An empty variant selects
// the line without one.
func (c *Cart) SetQuantity(productID string, variant *string, quantity int, now time.Time) bool {
	for i := range c.Items {
		if !matches(c.Items[i], productID, variant) {
			continue
		}
		if quantity == 0 {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
		} else {
			c.Items[i].Quantity = quantity
		}
		c.UpdatedAt = now
		return true
	}
	return false
}

// Remove drops every line for productID.
func (c *Cart) Remove(productID string, now time.Time) bool {
	kept := c.Items[:0]
	for _, it := range c.Items {
		if it.ProductID != productID {
			kept = append(kept, it)
		}
	}
	removed := len(kept) != len(c.Items)
	c.Items = kept
	if removed {
		c.UpdatedAt = now
	}
	return removed
}

func (c *Cart) Clear(now time.Time) {
	c.Items = nil
	c.UpdatedAt = now
}

// Find returns the first line for productID.
func (c Cart) Find(productID string) (Item, bool) {
	for _, it := range c.Items {
		if it.ProductID == productID {
			return it, true
		}
	}
	return Item{}, false
}

// NormalizeVariant maps an empty variant to nil; storage keeps both as ''.
func NormalizeVariant(v *string) *string {
	if v == nil || *v == "" {
		return nil
	}
	return v
}

func SameVariant(a, b *string) bool {
	a, b = NormalizeVariant(a), NormalizeVariant(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func matches(it Item, productID string, variant *string) bool {
	if it.ProductID != productID {
		return false
	}
	return variant == nil || SameVariant(it.Variant, variant)
}
