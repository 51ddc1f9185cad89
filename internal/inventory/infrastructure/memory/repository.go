package memory

import (
	"context"
	"sync"

	"github.com/dmehra2102/furniture-store/internal/inventory/domain"
)

type counters struct {
	stock int
	sold  int
}

// Repository keeps stock counters in process. Each update holds the lock for
// the compare and the write together.
type Repository struct {
	mu       sync.Mutex
	products map[string]*counters
}

func NewRepository() *Repository {
	return &Repository{products: map[string]*counters{}}
}

func (r *Repository) Seed(productID string, stock, sold int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[productID] = &counters{stock: stock, sold: sold}
}

func (r *Repository) Counts(productID string) (stock, sold int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.products[productID]
	if !ok {
		return 0, 0
	}
	return c.stock, c.sold
}

func (r *Repository) Reserve(_ context.Context, line domain.Line) (domain.ReserveResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.products[line.ProductID]
	if !ok {
		return domain.ReserveResult{}, domain.ErrUnknownProduct
	}
	if c.stock < line.Quantity {
		return domain.ReserveResult{Available: c.stock}, nil
	}
	c.stock -= line.Quantity
	c.sold += line.Quantity
	return domain.ReserveResult{Reserved: true}, nil
}

func (r *Repository) Release(_ context.Context, line domain.Line) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.products[line.ProductID]
	if !ok {
		return domain.ErrUnknownProduct
	}
	c.stock += line.Quantity
	c.sold -= line.Quantity
	return nil
}
