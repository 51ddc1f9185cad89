package application

import (
	"context"

	"github.com/dmehra2102/furniture-store/internal/cart/domain"
	catalog "github.com/dmehra2102/furniture-store/internal/catalog/domain"
)

type CartRepository interface {
	// Load returns the user's cart, empty when none exists yet. Inside a
	// transaction the cart row stays locked until commit.
	Load(ctx context.Context, userID string) (domain.Cart, error)
	Save(ctx context.Context, c domain.Cart) error
}

type Catalog interface {
	GetProduct(ctx context.Context, id string) (catalog.Product, error)
	GetProducts(ctx context.Context, ids []string) (map[string]catalog.Product, error)
}

type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
