package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

type stubTx struct{ pgx.Tx }

func TestInTx(t *testing.T) {
	ctx := context.Background()
	assert.False(t, InTx(ctx))
	assert.True(t, InTx(context.WithValue(ctx, txKey{}, pgx.Tx(stubTx{}))))
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert order: %w", &pgconn.PgError{Code: "23505", ConstraintName: "orders_order_number_key"})
	assert.True(t, IsUniqueViolation(err, "orders_order_number_key"))
	assert.True(t, IsUniqueViolation(err, ""))
	assert.False(t, IsUniqueViolation(err, "payments_order_id_key"))
	assert.False(t, IsUniqueViolation(errors.New("boom"), ""))
}
