package domain

import (
	"errors"
	"time"

	payment "github.com/dmehra2102/furniture-store/internal/payment/domain"
	"github.com/dmehra2102/furniture-store/internal/pricing"
)

var (
	ErrOrderNotFound         = errors.New("order not found")
	ErrDuplicateOrderNumber  = errors.New("duplicate order number")
	ErrInvalidTransition     = errors.New("invalid order status transition")
	ErrShippingAddressNeeded = errors.New("shipping address is required")
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// Insurance is present on an item only when the customer opted in.
type Insurance struct {
	Cost int64 `json:"cost"`
}

// Item is a purchased line frozen at creation time.
type Item struct {
	ProductID       string     `json:"productId"`
	Name            string     `json:"name"`
	ProductImage    string     `json:"productImage"`
	Price           int64      `json:"price"`
	OriginalPrice   int64      `json:"originalPrice"`
	Quantity        int        `json:"quantity"`
	DiscountPercent int        `json:"discountPercent"`
	Variant         *string    `json:"variant,omitempty"`
	Insurance       *Insurance `json:"insurance,omitempty"`
}

// Address is a copy of the address book entry, not a reference to it.
type Address struct {
	FullName   string `json:"fullName"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type Order struct {
	ID              string            `json:"orderId"`
	OrderNumber     string            `json:"orderNumber"`
	UserID          string            `json:"userId"`
	Items           []Item            `json:"items"`
	ShippingAddress Address           `json:"shippingAddress"`
	PaymentMethod   payment.Method    `json:"paymentMethod"`
	PaymentStatus   PaymentStatus     `json:"paymentStatus"`
	Status          Status            `json:"orderStatus"`
	PriceBreakdown  pricing.Breakdown `json:"priceBreakdown"`
	TotalAmount     int64             `json:"totalAmount"`
	Notes           *string           `json:"notes,omitempty"`
	TrackingNumber  *string           `json:"trackingNumber,omitempty"`
	CancelReason    *string           `json:"cancelReason,omitempty"`
	RefundAmount    *int64            `json:"refundAmount,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
	ConfirmedAt     *time.Time        `json:"confirmedAt,omitempty"`
	ShippedAt       *time.Time        `json:"shippedAt,omitempty"`
	DeliveredAt     *time.Time        `json:"deliveredAt,omitempty"`
	CancelledAt     *time.Time        `json:"cancelledAt,omitempty"`
	ReturnedAt      *time.Time        `json:"returnedAt,omitempty"`
	RefundedAt      *time.Time        `json:"refundedAt,omitempty"`
}

// NewOrder builds a freshly placed order. Cash on delivery orders skip the
// payment step and start confirmed.
func NewOrder(id, userID string, items []Item, addr Address, method payment.Method, breakdown pricing.Breakdown, now time.Time) Order {
	o := Order{
		ID:              id,
		UserID:          userID,
		Items:           items,
		ShippingAddress: addr,
		PaymentMethod:   method,
		PaymentStatus:   PaymentPending,
		Status:          StatusPending,
		PriceBreakdown:  breakdown,
		TotalAmount:     breakdown.GrandTotal,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if method == payment.MethodCOD {
		o.Status = StatusConfirmed
		o.ConfirmedAt = &now
	}
	return o
}

// Advance moves the order one step along the fulfilment chain.
func (o *Order) Advance(to Status, trackingNumber *string, now time.Time) error {
	if !CanAdvance(o.Status, to) {
		return ErrInvalidTransition
	}
	o.Status = to
	o.UpdatedAt = now
	switch to {
	case StatusConfirmed:
		o.ConfirmedAt = &now
	case StatusShipped:
		o.ShippedAt = &now
		if trackingNumber != nil && *trackingNumber != "" {
			o.TrackingNumber = trackingNumber
		}
	case StatusDelivered:
		o.DeliveredAt = &now
		if o.PaymentMethod == payment.MethodCOD {
			o.PaymentStatus = PaymentPaid
		}
	case StatusReturned:
		o.ReturnedAt = &now
	}
	return nil
}

// Cancel diverts the order to cancelled and reports whether money has to go
// back to the customer.
func (o *Order) Cancel(reason string, now time.Time) (refund bool, err error) {
	if !o.CanCancel() {
		return false, ErrInvalidTransition
	}
	o.Status = StatusCancelled
	o.CancelledAt = &now
	o.UpdatedAt = now
	if reason != "" {
		o.CancelReason = &reason
	}
	if o.PaymentStatus == PaymentPaid {
		amount := o.TotalAmount
		o.PaymentStatus = PaymentRefunded
		o.RefundAmount = &amount
		o.RefundedAt = &now
		return true, nil
	}
	return false, nil
}

// MarkPaid records a verified online payment; a pending order becomes confirmed.
func (o *Order) MarkPaid(now time.Time) {
	o.PaymentStatus = PaymentPaid
	o.UpdatedAt = now
	if o.Status == StatusPending {
		o.Status = StatusConfirmed
		o.ConfirmedAt = &now
	}
}

func (o Order) Deletable() bool {
	return o.Status == StatusCancelled || o.Status == StatusReturned
}
