package domain

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	payment "github.com/dmehra2102/furniture-store/internal/payment/domain"
	"github.com/dmehra2102/furniture-store/internal/pricing"
)

var now = time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)

func newOrder(method payment.Method) Order {
	return NewOrder("o1", "u1", []Item{{ProductID: "sofa", Quantity: 1, Price: 5000}}, Address{City: "Pune"}, method, pricing.Breakdown{GrandTotal: 5000}, now)
}

func TestNewOrderInitialStatus(t *testing.T) {
	cod := newOrder(payment.MethodCOD)
	assert.Equal(t, StatusConfirmed, cod.Status)
	assert.NotNil(t, cod.ConfirmedAt)
	assert.Equal(t, PaymentPending, cod.PaymentStatus)

	card := newOrder(payment.MethodCard)
	assert.Equal(t, StatusPending, card.Status)
	assert.Nil(t, card.ConfirmedAt)
	assert.Equal(t, int64(5000), card.TotalAmount)
}

func TestAdvanceForwardOnly(t *testing.T) {
	chain := []Status{StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered}
	all := []Status{StatusPending, StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled, StatusReturned}

	from := StatusPending
	for _, next := range chain {
		for _, to := range all {
			assert.Equal(t, to == next, CanAdvance(from, to), "%s -> %s", from, to)
		}
		from = next
	}
	assert.True(t, CanAdvance(StatusDelivered, StatusReturned))
	assert.False(t, CanAdvance(StatusCancelled, StatusConfirmed))
	assert.False(t, CanAdvance(StatusReturned, StatusDelivered))
}

func TestAdvanceSetsTimestamps(t *testing.T) {
	o := newOrder(payment.MethodCOD)
	tracking := "TRK123"

	require.NoError(t, o.Advance(StatusProcessing, nil, now))
	require.NoError(t, o.Advance(StatusShipped, &tracking, now))
	assert.Equal(t, "TRK123", *o.TrackingNumber)
	assert.NotNil(t, o.ShippedAt)

	require.NoError(t, o.Advance(StatusDelivered, nil, now))
	assert.NotNil(t, o.DeliveredAt)
	assert.Equal(t, PaymentPaid, o.PaymentStatus)

	assert.ErrorIs(t, o.Advance(StatusShipped, nil, now), ErrInvalidTransition)
}

func TestDeliveredCardOrderKeepsPaymentStatus(t *testing.T) {
	o := newOrder(payment.MethodCard)
	o.MarkPaid(now)
	for _, s := range []Status{StatusProcessing, StatusShipped, StatusDelivered} {
		require.NoError(t, o.Advance(s, nil, now))
	}
	assert.Equal(t, PaymentPaid, o.PaymentStatus)
}

func TestCancel(t *testing.T) {
	o := newOrder(payment.MethodCard)
	refund, err := o.Cancel("changed my mind", now)
	require.NoError(t, err)
	assert.False(t, refund)
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, "changed my mind", *o.CancelReason)
	assert.Nil(t, o.RefundAmount)

	_, err = o.Cancel("", now)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelPaidOrderRefunds(t *testing.T) {
	o := newOrder(payment.MethodCard)
	o.MarkPaid(now)
	assert.Equal(t, StatusConfirmed, o.Status)

	refund, err := o.Cancel("", now)
	require.NoError(t, err)
	assert.True(t, refund)
	assert.Equal(t, PaymentRefunded, o.PaymentStatus)
	assert.Equal(t, int64(5000), *o.RefundAmount)
	assert.NotNil(t, o.RefundedAt)
	assert.Nil(t, o.CancelReason)
}

func TestCannotCancelAfterProcessing(t *testing.T) {
	o := newOrder(payment.MethodCOD)
	require.NoError(t, o.Advance(StatusProcessing, nil, now))
	assert.False(t, o.CanCancel())
	_, err := o.Cancel("", now)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDeletable(t *testing.T) {
	o := newOrder(payment.MethodCOD)
	assert.False(t, o.Deletable())
	o.Status = StatusCancelled
	assert.True(t, o.Deletable())
	o.Status = StatusReturned
	assert.True(t, o.Deletable())
}

func TestNewOrderNumber(t *testing.T) {
	n := NewOrderNumber(now)
	assert.Regexp(t, regexp.MustCompile(`^FUR-20260301101500-[0-9A-F]{6}$`), n)
	assert.NotEqual(t, n, NewOrderNumber(now))
}
