// Package testenv holds shared fakes and container setup for tests.
package testenv

import (
	"context"
	"io"
	"log/slog"
	"sync"

	catalog "github.com/dmehra2102/furniture-store/internal/catalog/domain"
	"github.com/dmehra2102/furniture-store/pkg/apperr"
	"github.com/dmehra2102/furniture-store/pkg/outbox"
)

func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Tx runs the function directly. Atomicity in unit tests comes from the
// services' own compensation.
type Tx struct{}

func (Tx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Catalog is an in-memory product and address book. Stock shown here is
// whatever the test sets; it is not linked to inventory counters unless the
// test wires StockFunc.
type Catalog struct {
	mu        sync.Mutex
	products  map[string]catalog.Product
	addresses map[string]catalog.Address
	StockFunc func(productID string) (int, bool)
}

func NewCatalog() *Catalog {
	return &Catalog{products: map[string]catalog.Product{}, addresses: map[string]catalog.Address{}}
}

func (c *Catalog) PutProduct(p catalog.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}

func (c *Catalog) DeleteProduct(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.products, id)
}

func (c *Catalog) PutAddress(a catalog.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addresses[a.ID] = a
}

func (c *Catalog) GetProduct(_ context.Context, id string) (catalog.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return catalog.Product{}, apperr.Wrap(apperr.NotFound, "product "+id+" not found", catalog.ErrProductNotFound)
	}
	return c.withStock(p), nil
}

func (c *Catalog) GetProducts(_ context.Context, ids []string) (map[string]catalog.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := map[string]catalog.Product{}
	for _, id := range ids {
		if p, ok := c.products[id]; ok {
			out[id] = c.withStock(p)
		}
	}
	return out, nil
}

func (c *Catalog) GetAddress(_ context.Context, userID, addressID string) (catalog.Address, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.addresses[addressID]
	if !ok || a.UserID != userID {
		return catalog.Address{}, apperr.Wrap(apperr.NotFound, "address not found", catalog.ErrAddressNotFound)
	}
	return a, nil
}

func (c *Catalog) withStock(p catalog.Product) catalog.Product {
	if c.StockFunc != nil {
		if stock, ok := c.StockFunc(p.ID); ok {
			p.StockQuantity = stock
		}
	}
	return p
}

// Events records appended outbox events.
type Events struct {
	mu     sync.Mutex
	events []outbox.Event
}

func (e *Events) Append(_ context.Context, ev outbox.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return nil
}

func (e *Events) Types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.Type)
	}
	return out
}

func (e *Events) All() []outbox.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]outbox.Event(nil), e.events...)
}
