package memory

import (
	"context"
	"sync"

	"github.com/dmehra2102/furniture-store/internal/cart/domain"
)

type Repository struct {
	mu    sync.Mutex
	carts map[string]domain.Cart
}

func NewRepository() *Repository {
	return &Repository{carts: map[string]domain.Cart{}}
}

func (r *Repository) Load(_ context.Context, userID string) (domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[userID]
	if !ok {
		return domain.New(userID), nil
	}
	c.Items = append([]domain.Item(nil), c.Items...)
	return c, nil
}

func (r *Repository) Save(_ context.Context, c domain.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.Items = append([]domain.Item(nil), c.Items...)
	r.carts[c.UserID] = c
	return nil
}
