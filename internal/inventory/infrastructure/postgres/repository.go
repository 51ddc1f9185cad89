package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/furniture-store/internal/inventory/domain"
	"github.com/dmehra2102/furniture-store/pkg/postgres"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{
		log:  log,
		pool: pool,
	}
}

func (r *Repository) Reserve(ctx context.Context, line domain.Line) (domain.ReserveResult, error) {
	q := postgres.Conn(ctx, r.pool)

	var left int
	err := q.QueryRow(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity - $2, sold_count = sold_count + $2, updated_at = now()
		WHERE id = $1 AND stock_quantity >= $2
		RETURNING stock_quantity`, line.ProductID, line.Quantity).Scan(&left)
	if err == nil {
		r.log.Debug("stock reserved", "product_id", line.ProductID, "quantity", line.Quantity, "left", left)
		return domain.ReserveResult{Reserved: true}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.ReserveResult{}, err
	}

	var available int
	err = q.QueryRow(ctx, `SELECT stock_quantity FROM products WHERE id = $1`, line.ProductID).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ReserveResult{}, domain.ErrUnknownProduct
	}
	if err != nil {
		return domain.ReserveResult{}, err
	}
	return domain.ReserveResult{Reserved: false, Available: available}, nil
}

func (r *Repository) Release(ctx context.Context, line domain.Line) error {
	ct, err := postgres.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity + $2, sold_count = sold_count - $2, updated_at = now()
		WHERE id = $1`, line.ProductID, line.Quantity)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrUnknownProduct
	}
	return nil
}
