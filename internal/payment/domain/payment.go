package domain

import (
	"errors"
	"time"
)

var ErrPaymentNotFound = errors.New("payment not found")

type Status string

const (
	StatusPending   Status = "pending"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
	StatusCancelled Status = "cancelled"
)

type Method string

const (
	MethodCOD        Method = "cod"
	MethodCard       Method = "card"
	MethodUPI        Method = "upi"
	MethodNetBanking Method = "netbanking"
	MethodWallet     Method = "wallet"
)

func (m Method) Valid() bool {
	switch m {
	case MethodCOD, MethodCard, MethodUPI, MethodNetBanking, MethodWallet:
		return true
	}
	return false
}

// UsesGateway reports whether the method is settled through the payment gateway.
func (m Method) UsesGateway() bool { return m.Valid() && m != MethodCOD }

const GatewayNone = "none"

// Payment is the one-to-one companion of an order.
type Payment struct {
	ID                   string    `json:"paymentId"`
	OrderID              string    `json:"orderId"`
	UserID               string    `json:"userId"`
	Amount               int64     `json:"amount"`
	Currency             string    `json:"currency"`
	Method               Method    `json:"method"`
	Gateway              string    `json:"gateway"`
	Status               Status    `json:"status"`
	GatewayOrderID       *string   `json:"gatewayOrderId,omitempty"`
	GatewayTransactionID *string   `json:"gatewayTransactionId,omitempty"`
	FailureReason        *string   `json:"failureReason,omitempty"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

var transitions = map[Status][]Status{
	StatusPending: {StatusSuccess, StatusFailed, StatusCancelled},
	StatusFailed:  {StatusPending, StatusCancelled},
	StatusSuccess: {StatusRefunded},
}

// CanTransition reports whether from -> to is a legal move. A failed payment
// may go back to pending when the customer retries.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
