package domain

import "errors"

var ErrUnknownProduct = errors.New("unknown product")

// Line is one product/quantity pair moved between stock and sold counters.
// Release must be called with exactly the lines that were reserved.
type Line struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Result of a conditional decrement. Available is the stock seen when the
// reservation was refused.
type ReserveResult struct {
	Reserved  bool
	Available int
}
