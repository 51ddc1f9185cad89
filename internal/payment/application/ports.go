package application

import (
	"context"

	order "github.com/dmehra2102/furniture-store/internal/order/domain"
	"github.com/dmehra2102/furniture-store/internal/payment/domain"
	"github.com/dmehra2102/furniture-store/pkg/outbox"
)

type PaymentRepository interface {
	Create(ctx context.Context, p domain.Payment) error
	Get(ctx context.Context, id string) (domain.Payment, error)
	GetForUpdate(ctx context.Context, id string) (domain.Payment, error)
	GetByOrder(ctx context.Context, orderID string) (domain.Payment, error)
	Update(ctx context.Context, p domain.Payment) error
}

type Orders interface {
	Get(ctx context.Context, id string) (order.Order, error)
	GetForUpdate(ctx context.Context, id string) (order.Order, error)
	Update(ctx context.Context, o order.Order) error
}

// GatewayOrder is the provider-side handle the client pays against.
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type Gateway interface {
	Name() string
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (GatewayOrder, error)
	VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) bool
}

type EventSink interface {
	Append(ctx context.Context, event outbox.Event) error
}

type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
