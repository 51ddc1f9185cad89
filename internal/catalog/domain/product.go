package domain

import "errors"

var (
	ErrProductNotFound = errors.New("product not found")
	ErrAddressNotFound = errors.New("address not found")
)

// Product is the catalog view used by the order engine. Stock fields are
// read-only here; only the inventory reconciler writes them.
type Product struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Image           string `json:"image"`
	Price           int64  `json:"price"`
	FinalPrice      int64  `json:"finalPrice"`
	DiscountPercent int    `json:"discountPercent"`
	StockQuantity   int    `json:"stockQuantity"`
	SoldCount       int    `json:"soldCount"`
}

func (p Product) InStock() bool { return p.StockQuantity > 0 }

type Address struct {
	ID         string `json:"id"`
	UserID     string `json:"userId"`
	FullName   string `json:"fullName"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}
