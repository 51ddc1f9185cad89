package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/dmehra2102/furniture-store/internal/order/domain"
	"github.com/dmehra2102/furniture-store/pkg/apperr"
)

type Repository struct {
	mu       sync.Mutex
	orders   map[string]domain.Order
	byNumber map[string]string
}

func NewRepository() *Repository {
	return &Repository{orders: map[string]domain.Order{}, byNumber: map[string]string{}}
}

// Reserve marks an order number as taken, for collision tests.
func (r *Repository) Reserve(number string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byNumber[number] = ""
}

func (r *Repository) Insert(_ context.Context, o domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byNumber[o.OrderNumber]; ok {
		return domain.ErrDuplicateOrderNumber
	}
	r.byNumber[o.OrderNumber] = o.ID
	r.orders[o.ID] = o
	return nil
}

func (r *Repository) Get(_ context.Context, id string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return domain.Order{}, apperr.Wrap(apperr.NotFound, "order not found", domain.ErrOrderNotFound)
	}
	return o, nil
}

func (r *Repository) GetForUpdate(ctx context.Context, id string) (domain.Order, error) {
	return r.Get(ctx, id)
}

func (r *Repository) ListByUser(_ context.Context, userID string) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Order
	for _, o := range r.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Update keeps the stored items and breakdown, as the postgres repository does.
func (r *Repository) Update(_ context.Context, o domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.orders[o.ID]
	if !ok {
		return apperr.Wrap(apperr.NotFound, "order not found", domain.ErrOrderNotFound)
	}
	o.Items = cur.Items
	o.PriceBreakdown = cur.PriceBreakdown
	o.TotalAmount = cur.TotalAmount
	o.ShippingAddress = cur.ShippingAddress
	o.OrderNumber = cur.OrderNumber
	r.orders[o.ID] = o
	return nil
}

func (r *Repository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return apperr.Wrap(apperr.NotFound, "order not found", domain.ErrOrderNotFound)
	}
	delete(r.byNumber, o.OrderNumber)
	delete(r.orders, id)
	return nil
}
