package application

import (
	"context"
	"time"

	cart "github.com/dmehra2102/furniture-store/internal/cart/domain"
	catalog "github.com/dmehra2102/furniture-store/internal/catalog/domain"
	"github.com/dmehra2102/furniture-store/internal/checkout/domain"
)

type SessionRepository interface {
	// Replace stores s as the user's only session, superseding any other.
	Replace(ctx context.Context, s domain.Session) error
	// Get and Latest ignore expired sessions.
	Get(ctx context.Context, userID, id string, now time.Time) (domain.Session, error)
	Latest(ctx context.Context, userID string, now time.Time) (domain.Session, error)
	// GetForUpdate locks the session row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, userID, id string, now time.Time) (domain.Session, error)
	// Update and Delete fail with domain.ErrSessionNotFound when no row matched.
	Update(ctx context.Context, s domain.Session) error
	Delete(ctx context.Context, userID, id string) error
	DeleteForUser(ctx context.Context, userID string) (int64, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type Carts interface {
	Snapshot(ctx context.Context, userID string) (cart.Cart, error)
}

type Catalog interface {
	GetProducts(ctx context.Context, ids []string) (map[string]catalog.Product, error)
	GetAddress(ctx context.Context, userID, addressID string) (catalog.Address, error)
}
