package domain

import (
	"errors"
	"time"

	payment "github.com/dmehra2102/furniture-store/internal/payment/domain"
)

const DefaultTTL = 60 * time.Minute

var (
	ErrSessionNotFound    = errors.New("checkout session not found")
	ErrNoValidItems       = errors.New("no valid items in checkout session")
	ErrSelectionNotInCart = errors.New("selected product not in cart")
)

type Item struct {
	ProductID    string  `json:"productId"`
	Quantity     int     `json:"quantity"`
	HasInsurance bool    `json:"hasInsurance"`
	Variant      *string `json:"variant,omitempty"`
}

// Session is a view over a cart subset. It holds no stock and is re-validated
// on every read.
type Session struct {
	ID                    string          `json:"sessionId"`
	UserID                string          `json:"userId"`
	Items                 []Item          `json:"items"`
	SelectedAddressID     *string         `json:"selectedAddressId,omitempty"`
	SelectedPaymentMethod *payment.Method `json:"selectedPaymentMethod,omitempty"`
	CouponCode            *string         `json:"couponCode,omitempty"`
	CreatedAt             time.Time       `json:"createdAt"`
	ExpiresAt             time.Time       `json:"expiresAt"`
}

func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

func (s Session) InsuredSet() map[string]bool {
	out := make(map[string]bool, len(s.Items))
	for _, it := range s.Items {
		if it.HasInsurance {
			out[it.ProductID] = true
		}
	}
	return out
}

func (s Session) ProductIDs() []string {
	ids := make([]string, 0, len(s.Items))
	seen := map[string]bool{}
	for _, it := range s.Items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}
	return ids
}

// Selection holds the partial update applied by Update; nil fields are left alone.
type Selection struct {
	AddressID     *string
	PaymentMethod *payment.Method
	CouponCode    *string
}
