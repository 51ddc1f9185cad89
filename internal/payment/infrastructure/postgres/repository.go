package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/furniture-store/internal/payment/domain"
	"github.com/dmehra2102/furniture-store/pkg/apperr"
	"github.com/dmehra2102/furniture-store/pkg/postgres"
)

const orderIDConstraint = "payments_order_id_key"

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

const paymentColumns = `id, order_id, user_id, amount, currency, method, gateway, status,
	gateway_order_id, gateway_transaction_id, failure_reason, created_at, updated_at`

func (r *Repository) Create(ctx context.Context, p domain.Payment) error {
	_, err := postgres.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		p.ID, p.OrderID, p.UserID, p.Amount, p.Currency, p.Method, p.Gateway, p.Status,
		p.GatewayOrderID, p.GatewayTransactionID, p.FailureReason, p.CreatedAt, p.UpdatedAt)
	if postgres.IsUniqueViolation(err, orderIDConstraint) {
		return apperr.Wrap(apperr.ConcurrencyConflict, "payment for order "+p.OrderID+" already exists", err)
	}
	return err
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Payment, error) {
	return scan(postgres.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id=$1`, id))
}

func (r *Repository) GetForUpdate(ctx context.Context, id string) (domain.Payment, error) {
	return scan(postgres.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id=$1 FOR UPDATE`, id))
}

func (r *Repository) GetByOrder(ctx context.Context, orderID string) (domain.Payment, error) {
	return scan(postgres.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_id=$1`, orderID))
}

func (r *Repository) Update(ctx context.Context, p domain.Payment) error {
	ct, err := postgres.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE payments SET status=$2, gateway_order_id=$3, gateway_transaction_id=$4, failure_reason=$5, updated_at=$6
		WHERE id=$1`,
		p.ID, p.Status, p.GatewayOrderID, p.GatewayTransactionID, p.FailureReason, p.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperr.Wrap(apperr.NotFound, "payment not found", domain.ErrPaymentNotFound)
	}
	return nil
}

func (r *Repository) DeleteByOrder(ctx context.Context, orderID string) error {
	_, err := postgres.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM payments WHERE order_id=$1`, orderID)
	return err
}

func scan(row pgx.Row) (domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.UserID, &p.Amount, &p.Currency, &p.Method, &p.Gateway, &p.Status,
		&p.GatewayOrderID, &p.GatewayTransactionID, &p.FailureReason, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Payment{}, apperr.Wrap(apperr.NotFound, "payment not found", domain.ErrPaymentNotFound)
	}
	return p, err
}
