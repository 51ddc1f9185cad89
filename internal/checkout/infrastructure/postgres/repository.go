package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/furniture-store/internal/checkout/domain"
	payment "github.com/dmehra2102/furniture-store/internal/payment/domain"
	"github.com/dmehra2102/furniture-store/pkg/postgres"
)

// Repository keeps one row per user (unique user_id), so replacing a session
// is a single upsert and two sessions can never be live at once.
type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

const sessionColumns = `id, user_id, items, selected_address_id, selected_payment_method, coupon_code, created_at, expires_at`

func (r *Repository) Replace(ctx context.Context, s domain.Session) error {
	_, err := postgres.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO checkout_sessions (`+sessionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (user_id) DO UPDATE SET
			id = EXCLUDED.id,
			items = EXCLUDED.items,
			selected_address_id = EXCLUDED.selected_address_id,
			selected_payment_method = EXCLUDED.selected_payment_method,
			coupon_code = EXCLUDED.coupon_code,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at`,
		s.ID, s.UserID, s.Items, s.SelectedAddressID, methodArg(s.SelectedPaymentMethod), s.CouponCode, s.CreatedAt, s.ExpiresAt)
	return err
}

func (r *Repository) Get(ctx context.Context, userID, id string, now time.Time) (domain.Session, error) {
	row := postgres.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM checkout_sessions
		WHERE id=$1 AND user_id=$2 AND expires_at > $3`, id, userID, now)
	return scan(row)
}

// GetForUpdate is Get with the row locked until the surrounding transaction
// ends. A session deleted by the lock holder reads as ErrSessionNotFound.
func (r *Repository) GetForUpdate(ctx context.Context, userID, id string, now time.Time) (domain.Session, error) {
	row := postgres.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM checkout_sessions
		WHERE id=$1 AND user_id=$2 AND expires_at > $3
		FOR UPDATE`, id, userID, now)
	return scan(row)
}

func (r *Repository) Latest(ctx context.Context, userID string, now time.Time) (domain.Session, error) {
	row := postgres.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM checkout_sessions
		WHERE user_id=$1 AND expires_at > $2
		ORDER BY created_at DESC LIMIT 1`, userID, now)
	return scan(row)
}

func (r *Repository) Update(ctx context.Context, s domain.Session) error {
	ct, err := postgres.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE checkout_sessions
		SET items=$3, selected_address_id=$4, selected_payment_method=$5, coupon_code=$6
		WHERE id=$1 AND user_id=$2`,
		s.ID, s.UserID, s.Items, s.SelectedAddressID, methodArg(s.SelectedPaymentMethod), s.CouponCode)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, userID, id string) error {
	ct, err := postgres.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM checkout_sessions WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *Repository) DeleteForUser(ctx context.Context, userID string) (int64, error) {
	ct, err := postgres.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM checkout_sessions WHERE user_id=$1`, userID)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (r *Repository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	ct, err := postgres.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM checkout_sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func scan(row pgx.Row) (domain.Session, error) {
	var s domain.Session
	var method *string
	err := row.Scan(&s.ID, &s.UserID, &s.Items, &s.SelectedAddressID, &method, &s.CouponCode, &s.CreatedAt, &s.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, err
	}
	if method != nil {
		m := payment.Method(*method)
		s.SelectedPaymentMethod = &m
	}
	return s, nil
}

func methodArg(m *payment.Method) *string {
	if m == nil {
		return nil
	}
	v := string(*m)
	return &v
}
