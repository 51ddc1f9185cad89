package memory

import (
	"context"
	"sync"

	"github.com/dmehra2102/furniture-store/internal/payment/domain"
	"github.com/dmehra2102/furniture-store/pkg/apperr"
)

type Repository struct {
	mu       sync.Mutex
	payments map[string]domain.Payment
}

func NewRepository() *Repository {
	return &Repository{payments: map[string]domain.Payment{}}
}

func notFound() error {
	return apperr.Wrap(apperr.NotFound, "payment not found", domain.ErrPaymentNotFound)
}

func (r *Repository) Create(_ context.Context, p domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cur := range r.payments {
		if cur.OrderID == p.OrderID {
			return apperr.Newf(apperr.ConcurrencyConflict, "payment for order %s already exists", p.OrderID)
		}
	}
	r.payments[p.ID] = p
	return nil
}

func (r *Repository) Get(_ context.Context, id string) (domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return domain.Payment{}, notFound()
	}
	return p, nil
}

func (r *Repository) GetForUpdate(ctx context.Context, id string) (domain.Payment, error) {
	return r.Get(ctx, id)
}

func (r *Repository) GetByOrder(_ context.Context, orderID string) (domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.OrderID == orderID {
			return p, nil
		}
	}
	return domain.Payment{}, notFound()
}

func (r *Repository) Update(_ context.Context, p domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.payments[p.ID]; !ok {
		return notFound()
	}
	r.payments[p.ID] = p
	return nil
}

func (r *Repository) DeleteByOrder(_ context.Context, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, p := range r.payments {
		if p.OrderID == orderID {
			delete(r.payments, id)
		}
	}
	return nil
}
