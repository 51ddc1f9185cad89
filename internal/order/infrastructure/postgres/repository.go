package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/furniture-store/internal/order/domain"
	"github.com/dmehra2102/furniture-store/pkg/apperr"
	"github.com/dmehra2102/furniture-store/pkg/postgres"
)

const orderNumberConstraint = "orders_order_number_key"

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

const orderColumns = `id, order_number, user_id, items, shipping_address, payment_method, payment_status,
	order_status, price_breakdown, total_amount, notes, tracking_number, cancel_reason, refund_amount,
	created_at, updated_at, confirmed_at, shipped_at, delivered_at, cancelled_at, returned_at, refunded_at`

// Insert runs in a savepoint so a duplicate order number leaves the caller's
// transaction usable for the retry.
func (r *Repository) Insert(ctx context.Context, o domain.Order) error {
	err := postgres.Savepoint(ctx, postgres.Conn(ctx, r.pool), func(q postgres.Querier) error {
		_, err := q.Exec(ctx, `
			INSERT INTO orders (`+orderColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)`,
			o.ID, o.OrderNumber, o.UserID, o.Items, o.ShippingAddress, o.PaymentMethod, o.PaymentStatus,
			o.Status, o.PriceBreakdown, o.TotalAmount, o.Notes, o.TrackingNumber, o.CancelReason, o.RefundAmount,
			o.CreatedAt, o.UpdatedAt, o.ConfirmedAt, o.ShippedAt, o.DeliveredAt, o.CancelledAt, o.ReturnedAt, o.RefundedAt)
		return err
	})
	if postgres.IsUniqueViolation(err, orderNumberConstraint) {
		return domain.ErrDuplicateOrderNumber
	}
	return err
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Order, error) {
	row := postgres.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id)
	return scan(row)
}

func (r *Repository) GetForUpdate(ctx context.Context, id string) (domain.Order, error) {
	row := postgres.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, id)
	return scan(row)
}

func (r *Repository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := postgres.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Update writes status, notes, tracking and timestamp columns. Items, address
// and price breakdown are not part of the statement.
func (r *Repository) Update(ctx context.Context, o domain.Order) error {
	ct, err := postgres.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE orders SET
			payment_status=$2, order_status=$3, notes=$4, tracking_number=$5, cancel_reason=$6,
			refund_amount=$7, updated_at=$8, confirmed_at=$9, shipped_at=$10, delivered_at=$11,
			cancelled_at=$12, returned_at=$13, refunded_at=$14
		WHERE id=$1`,
		o.ID, o.PaymentStatus, o.Status, o.Notes, o.TrackingNumber, o.CancelReason,
		o.RefundAmount, o.UpdatedAt, o.ConfirmedAt, o.ShippedAt, o.DeliveredAt,
		o.CancelledAt, o.ReturnedAt, o.RefundedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperr.Wrap(apperr.NotFound, "order not found", domain.ErrOrderNotFound)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	ct, err := postgres.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM orders WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperr.Wrap(apperr.NotFound, "order not found", domain.ErrOrderNotFound)
	}
	return nil
}

func scan(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.Items, &o.ShippingAddress, &o.PaymentMethod, &o.PaymentStatus,
		&o.Status, &o.PriceBreakdown, &o.TotalAmount, &o.Notes, &o.TrackingNumber, &o.CancelReason, &o.RefundAmount,
		&o.CreatedAt, &o.UpdatedAt, &o.ConfirmedAt, &o.ShippedAt, &o.DeliveredAt, &o.CancelledAt, &o.ReturnedAt, &o.RefundedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, apperr.Wrap(apperr.NotFound, "order not found", domain.ErrOrderNotFound)
	}
	return o, err
}
