package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/furniture-store/internal/cart/domain"
	"github.com/dmehra2102/furniture-store/pkg/postgres"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// Load creates the cart row on first use and locks it for the rest of the
// surrounding transaction.
func (r *Repository) Load(ctx context.Context, userID string) (domain.Cart, error) {
	q := postgres.Conn(ctx, r.pool)

	_, err := q.Exec(ctx, `INSERT INTO carts (user_id, updated_at) VALUES ($1, now()) ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		return domain.Cart{}, err
	}

	c := domain.New(userID)
	if err := q.QueryRow(ctx, `SELECT updated_at FROM carts WHERE user_id=$1 FOR UPDATE`, userID).Scan(&c.UpdatedAt); err != nil {
		return domain.Cart{}, err
	}

	rows, err := q.Query(ctx, `
		SELECT product_id, quantity, variant, added_at
		FROM cart_items WHERE user_id=$1 ORDER BY position`, userID)
	if err != nil {
		return domain.Cart{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.Item
		var variant string
		if err := rows.Scan(&it.ProductID, &it.Quantity, &variant, &it.AddedAt); err != nil {
			return domain.Cart{}, err
		}
		if variant != "" {
			it.Variant = &variant
		}
		c.Items = append(c.Items, it)
	}
	return c, rows.Err()
}

func (r *Repository) Save(ctx context.Context, c domain.Cart) error {
	q := postgres.Conn(ctx, r.pool)

	updated := c.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	if _, err := q.Exec(ctx, `UPDATE carts SET updated_at=$2 WHERE user_id=$1`, c.UserID, updated); err != nil {
		return err
	}
	if _, err := q.Exec(ctx, `DELETE FROM cart_items WHERE user_id=$1`, c.UserID); err != nil {
		return err
	}
	if len(c.Items) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i, it := range c.Items {
		variant := ""
		if it.Variant != nil {
			variant = *it.Variant
		}
		batch.Queue(`INSERT INTO cart_items (user_id, product_id, variant, quantity, added_at, position)
			VALUES ($1,$2,$3,$4,$5,$6)`, c.UserID, it.ProductID, variant, it.Quantity, it.AddedAt, i)
	}
	return q.SendBatch(ctx, batch).Close()
}
