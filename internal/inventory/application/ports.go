package application

import (
	"context"

	"github.com/dmehra2102/furniture-store/internal/inventory/domain"
)

// StockRepository owns the conditional counter updates. Reserve must be a
// single compare-and-decrement, never read then write.
type StockRepository interface {
	Reserve(ctx context.Context, line domain.Line) (domain.ReserveResult, error)
	Release(ctx context.Context, line domain.Line) error
}
