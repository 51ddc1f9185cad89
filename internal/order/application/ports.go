package application

import (
	"context"

	catalog "github.com/dmehra2102/furniture-store/internal/catalog/domain"
	checkout "github.com/dmehra2102/furniture-store/internal/checkout/domain"
	inventory "github.com/dmehra2102/furniture-store/internal/inventory/domain"
	"github.com/dmehra2102/furniture-store/internal/order/domain"
	payment "github.com/dmehra2102/furniture-store/internal/payment/domain"
	"github.com/dmehra2102/furniture-store/internal/pricing"
	"github.com/dmehra2102/furniture-store/pkg/outbox"
)

type OrderRepository interface {
	// Insert fails with domain.ErrDuplicateOrderNumber when the number is taken.
	Insert(ctx context.Context, o domain.Order) error
	Get(ctx context.Context, id string) (domain.Order, error)
	// GetForUpdate locks the order row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id string) (domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	// Update persists the mutable fields only. Items and breakdown never change.
	Update(ctx context.Context, o domain.Order) error
	Delete(ctx context.Context, id string) error
}

type Sessions interface {
	// Claim reads the session and holds it until the transaction ends.
	Claim(ctx context.Context, userID, sessionID string) (checkout.Session, error)
	Price(ctx context.Context, sess checkout.Session, products map[string]catalog.Product) (pricing.Breakdown, error)
	Delete(ctx context.Context, userID, sessionID string) error
}

type Carts interface {
	RemoveProducts(ctx context.Context, userID string, productIDs []string) error
}

type Catalog interface {
	GetProducts(ctx context.Context, ids []string) (map[string]catalog.Product, error)
	GetAddress(ctx context.Context, userID, addressID string) (catalog.Address, error)
}

type Inventory interface {
	ReserveAll(ctx context.Context, lines []inventory.Line) error
	ReleaseAll(ctx context.Context, lines []inventory.Line) error
}

// Payments is the companion payment record store.
type Payments interface {
	GetByOrder(ctx context.Context, orderID string) (payment.Payment, error)
	Create(ctx context.Context, p payment.Payment) error
	Update(ctx context.Context, p payment.Payment) error
	DeleteByOrder(ctx context.Context, orderID string) error
}

type EventSink interface {
	Append(ctx context.Context, event outbox.Event) error
}

type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
