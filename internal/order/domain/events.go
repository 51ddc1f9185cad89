package domain

import "time"

const (
	AggregateType = "order"

	EventOrderCreated    = "OrderCreated"
	EventOrderCancelled  = "OrderCancelled"
	EventPaymentVerified = "PaymentVerified"
)

type OrderCreated struct {
	OrderID       string    `json:"orderId"`
	OrderNumber   string    `json:"orderNumber"`
	UserID        string    `json:"userId"`
	Email         string    `json:"email"`
	Items         []Item    `json:"items"`
	Address       Address   `json:"shippingAddress"`
	PaymentMethod string    `json:"paymentMethod"`
	TotalAmount   int64     `json:"totalAmount"`
	CreatedAt     time.Time `json:"createdAt"`
}

func NewOrderCreated(o Order, email string) OrderCreated {
	return OrderCreated{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID,
		Email:         email,
		Items:         o.Items,
		Address:       o.ShippingAddress,
		PaymentMethod: string(o.PaymentMethod),
		TotalAmount:   o.TotalAmount,
		CreatedAt:     o.CreatedAt,
	}
}

type OrderCancelled struct {
	OrderID      string `json:"orderId"`
	OrderNumber  string `json:"orderNumber"`
	UserID       string `json:"userId"`
	Reason       string `json:"reason,omitempty"`
	RefundAmount int64  `json:"refundAmount"`
}

type PaymentVerified struct {
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	PaymentID   string `json:"paymentId"`
	Amount      int64  `json:"amount"`
}
