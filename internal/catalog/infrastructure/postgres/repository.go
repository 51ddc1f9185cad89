package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/furniture-store/internal/catalog/domain"
	"github.com/dmehra2102/furniture-store/pkg/apperr"
	"github.com/dmehra2102/furniture-store/pkg/postgres"
)

// Repository reads products and saved addresses. Catalog and address book
// management live outside this service.
type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

const productColumns = `id, name, image, price, final_price, discount_percent, stock_quantity, sold_count`

func (r *Repository) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	var p domain.Product
	err := postgres.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.Image, &p.Price, &p.FinalPrice, &p.DiscountPercent, &p.StockQuantity, &p.SoldCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, apperr.Wrap(apperr.NotFound, "product "+id+" not found", domain.ErrProductNotFound)
	}
	return p, err
}

// GetProducts returns the products that exist; missing ids are absent from the map.
func (r *Repository) GetProducts(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := postgres.Conn(ctx, r.pool).Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Image, &p.Price, &p.FinalPrice, &p.DiscountPercent, &p.StockQuantity, &p.SoldCount); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (r *Repository) GetAddress(ctx context.Context, userID, addressID string) (domain.Address, error) {
	var a domain.Address
	err := postgres.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, user_id, full_name, phone, line1, line2, city, state, postal_code, country
		FROM addresses WHERE id=$1 AND user_id=$2`, addressID, userID).
		Scan(&a.ID, &a.UserID, &a.FullName, &a.Phone, &a.Line1, &a.Line2, &a.City, &a.State, &a.PostalCode, &a.Country)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Address{}, apperr.Wrap(apperr.NotFound, "address not found", domain.ErrAddressNotFound)
	}
	return a, err
}
