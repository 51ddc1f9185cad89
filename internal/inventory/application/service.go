package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dmehra2102/furniture-store/internal/inventory/domain"
	"github.com/dmehra2102/furniture-store/pkg/apperr"
)

// Reconciler is the only writer of product stock and sold counters outside
// catalog administration.
type Reconciler struct {
	log  *slog.Logger
	repo StockRepository
}

func NewReconciler(log *slog.Logger, repo StockRepository) *Reconciler {
	return &Reconciler{log: log, repo: repo}
}

func (r *Reconciler) Reserve(ctx context.Context, productID string, quantity int) error {
	line := domain.Line{ProductID: productID, Quantity: quantity}
	if err := validate(line); err != nil {
		return err
	}
	res, err := r.repo.Reserve(ctx, line)
	if err != nil {
		return mapErr(err, productID)
	}
	if !res.Reserved {
		return apperr.Insufficient(apperr.Shortfall{ProductID: productID, Requested: quantity, Available: res.Available})
	}
	return nil
}

func (r *Reconciler) Release(ctx context.Context, productID string, quantity int) error {
	line := domain.Line{ProductID: productID, Quantity: quantity}
	if err := validate(line); err != nil {
		return err
	}
	if err := r.repo.Release(ctx, line); err != nil {
		return mapErr(err, productID)
	}
	return nil
}

// ReserveAll reserves every line or none. On failure the lines already
// reserved by this call are released before the error is returned.
func (r *Reconciler) ReserveAll(ctx context.Context, lines []domain.Line) error {
	done := make([]domain.Line, 0, len(lines))
	for _, l := range lines {
		if err := r.Reserve(ctx, l.ProductID, l.Quantity); err != nil {
			if cerr := r.ReleaseAll(ctx, done); cerr != nil {
				r.log.Error("compensating release failed", "err", cerr)
			}
			return err
		}
		done = append(done, l)
	}
	return nil
}

// ReleaseAll releases every line. Products that no longer exist are skipped
// so a cancellation is not blocked by a catalog deletion.
func (r *Reconciler) ReleaseAll(ctx context.Context, lines []domain.Line) error {
	var errs []error
	for _, l := range lines {
		err := r.Release(ctx, l.ProductID, l.Quantity)
		switch {
		case err == nil:
		case apperr.Is(err, apperr.NotFound):
			r.log.Warn("release skipped for missing product", "product_id", l.ProductID, "quantity", l.Quantity)
		default:
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func validate(l domain.Line) error {
	if l.ProductID == "" {
		return apperr.New(apperr.InvalidInput, "product id is required")
	}
	if l.Quantity <= 0 {
		return apperr.Newf(apperr.InvalidInput, "quantity must be positive, got %d", l.Quantity)
	}
	return nil
}

func mapErr(err error, productID string) error {
	if errors.Is(err, domain.ErrUnknownProduct) {
		return apperr.Wrap(apperr.NotFound, "product "+productID+" not found", err)
	}
	return err
}
