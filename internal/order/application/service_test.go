package application

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cartapp "github.com/dmehra2102/furniture-store/internal/cart/application"
	cartmem "github.com/dmehra2102/furniture-store/internal/cart/infrastructure/memory"
	catalog "github.com/dmehra2102/furniture-store/internal/catalog/domain"
	checkoutapp "github.com/dmehra2102/furniture-store/internal/checkout/application"
	checkout "github.com/dmehra2102/furniture-store/internal/checkout/domain"
	checkoutmem "github.com/dmehra2102/furniture-store/internal/checkout/infrastructure/memory"
	invapp "github.com/dmehra2102/furniture-store/internal/inventory/application"
	invmem "github.com/dmehra2102/furniture-store/internal/inventory/infrastructure/memory"
	"github.com/dmehra2102/furniture-store/internal/order/domain"
	"github.com/dmehra2102/furniture-store/internal/order/infrastructure/memory"
	payment "github.com/dmehra2102/furniture-store/internal/payment/domain"
	paymentmem "github.com/dmehra2102/furniture-store/internal/payment/infrastructure/memory"
	"github.com/dmehra2102/furniture-store/internal/pricing"
	"github.com/dmehra2102/furniture-store/internal/testenv"
	"github.com/dmehra2102/furniture-store/pkg/apperr"
)

type fixture struct {
	svc      *Service
	orders   *memory.Repository
	stock    *invmem.Repository
	carts    *cartapp.Service
	checkout *checkoutapp.Service
	sessions *checkoutmem.Repository
	payments *paymentmem.Repository
	events   *testenv.Events
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	stock := invmem.NewRepository()
	stock.Seed("sofa", 4, 0)
	stock.Seed("chair", 10, 3)
	stock.Seed("lamp", 2, 0)

	cat := testenv.NewCatalog()
	cat.PutProduct(catalog.Product{ID: "sofa", Name: "Sofa", Image: "sofa.jpg", Price: 12000, FinalPrice: 9000, DiscountPercent: 25})
	cat.PutProduct(catalog.Product{ID: "chair", Name: "Chair", Image: "chair.jpg", Price: 1000, FinalPrice: 1000})
	cat.PutProduct(catalog.Product{ID: "lamp", Name: "Lamp", Image: "lamp.jpg", Price: 900, FinalPrice: 800})
	cat.PutAddress(catalog.Address{ID: "addr-1", UserID: "u1", FullName: "Asha Rao", Line1: "12 MG Road", City: "Pune", PostalCode: "411001", Country: "IN"})
	cat.StockFunc = func(id string) (int, bool) {
		s, _ := stock.Counts(id)
		return s, true
	}

	log := testenv.Logger()
	carts := cartapp.NewService(log, cartmem.NewRepository(), cat, testenv.Tx{})
	sessions := checkoutmem.NewRepository()
	co := checkoutapp.NewService(log, sessions, carts, cat, pricing.StaticCoupons{"WELCOME": 500}, time.Hour)

	f := &fixture{
		orders:   memory.NewRepository(),
		stock:    stock,
		carts:    carts,
		checkout: co,
		sessions: sessions,
		payments: paymentmem.NewRepository(),
		events:   &testenv.Events{},
	}
	f.svc = NewService(log, Deps{
		Repo:      f.orders,
		Sessions:  co,
		Carts:     carts,
		Catalog:   cat,
		Inventory: invapp.NewReconciler(log, stock),
		Payments:  f.payments,
		Events:    f.events,
		Tx:        testenv.Tx{},
		Currency:  "INR",
	})
	return f
}

type pick struct {
	id      string
	qty     int
	insured bool
}

// session fills the cart and opens a checkout session with address and method selected.
func (f *fixture) session(t *testing.T, method payment.Method, picks ...pick) checkout.Session {
	t.Helper()
	ctx := context.Background()
	var ids, insured []string
	for _, p := range picks {
		_, err := f.carts.AddItem(ctx, "u1", p.id, 1, nil)
		require.NoError(t, err)
		if p.qty != 1 {
			_, err = f.carts.UpdateQuantity(ctx, "u1", p.id, nil, p.qty)
			require.NoError(t, err)
		}
		ids = append(ids, p.id)
		if p.insured {
			insured = append(insured, p.id)
		}
	}
	sess, err := f.checkout.Create(ctx, "u1", ids, insured)
	require.NoError(t, err)

	addr := "addr-1"
	sess, err = f.checkout.Update(ctx, "u1", sess.ID, checkout.Selection{AddressID: &addr, PaymentMethod: &method})
	require.NoError(t, err)
	return sess
}

func (f *fixture) place(t *testing.T, sess checkout.Session) domain.Order {
	t.Helper()
	o, err := f.svc.Create(context.Background(), CreateInput{UserID: "u1", Email: "asha@example.com", SessionID: sess.ID})
	require.NoError(t, err)
	return o
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.session(t, payment.MethodCard, pick{"sofa", 2, true}, pick{"chair", 1, false})

	preview, err := f.checkout.Read(ctx, "u1", sess.ID)
	require.NoError(t, err)

	o := f.place(t, sess)
	assert.Equal(t, domain.StatusPending, o.Status)
	assert.Equal(t, domain.PaymentPending, o.PaymentStatus)
	assert.Equal(t, preview.Breakdown, o.PriceBreakdown)
	assert.Equal(t, preview.Breakdown.GrandTotal, o.TotalAmount)
	assert.NotEmpty(t, o.OrderNumber)

	require.Len(t, o.Items, 2)
	assert.Equal(t, domain.Item{
		ProductID: "sofa", Name: "Sofa", ProductImage: "sofa.jpg", Price: 9000, OriginalPrice: 12000,
		Quantity: 2, DiscountPercent: 25, Insurance: &domain.Insurance{Cost: 360},
	}, o.Items[0])
	assert.Nil(t, o.Items[1].Insurance)
	assert.Equal(t, domain.Address{FullName: "Asha Rao", Line1: "12 MG Road", City: "Pune", PostalCode: "411001", Country: "IN"}, o.ShippingAddress)

	stock, sold := f.stock.Counts("sofa")
	assert.Equal(t, 2, stock)
	assert.Equal(t, 2, sold)
	stock, sold = f.stock.Counts("chair")
	assert.Equal(t, 9, stock)
	assert.Equal(t, 4, sold)

	assert.Equal(t, 0, f.sessions.Count())
	c, err := f.carts.Snapshot(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, c.Items)
	assert.Equal(t, []string{domain.EventOrderCreated}, f.events.Types())

	ev := f.events.All()[0]
	assert.Equal(t, o.ID, ev.AggregateID)
	var created domain.OrderCreated
	require.NoError(t, json.Unmarshal(ev.Payload, &created))
	assert.Equal(t, "asha@example.com", created.Email)
	assert.Equal(t, o.OrderNumber, created.OrderNumber)
	assert.Equal(t, o.TotalAmount, created.TotalAmount)
}

func TestCreateCashOnDeliveryIsConfirmed(t *testing.T) {
	f := newFixture(t)
	o := f.place(t, f.session(t, payment.MethodCOD, pick{"chair", 1, false}))
	assert.Equal(t, domain.StatusConfirmed, o.Status)
	assert.Equal(t, domain.PaymentPending, o.PaymentStatus)
	assert.NotNil(t, o.ConfirmedAt)
}

func TestCreateInsufficientStockChangesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.session(t, payment.MethodUPI, pick{"sofa", 1, false}, pick{"lamp", 3, false})

	_, err := f.svc.Create(ctx, CreateInput{UserID: "u1", SessionID: sess.ID})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.InsufficientStock))
	var e *apperr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, []apperr.Shortfall{{ProductID: "lamp", Requested: 3, Available: 2}}, e.Shortfalls)

	for id, want := range map[string]int{"sofa": 4, "lamp": 2} {
		stock, sold := f.stock.Counts(id)
		assert.Equal(t, want, stock, id)
		assert.Equal(t, 0, sold, id)
	}
	orders, err := f.svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Equal(t, 1, f.sessions.Count())
	assert.Empty(t, f.events.Types())
}

func TestCreateRequiresAddressAndMethod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.carts.AddItem(ctx, "u1", "chair", 1, nil)
	require.NoError(t, err)
	sess, err := f.checkout.Create(ctx, "u1", []string{"chair"}, nil)
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, CreateInput{UserID: "u1", SessionID: sess.ID})
	assert.ErrorIs(t, err, domain.ErrShippingAddressNeeded)

	addr := "addr-1"
	_, err = f.svc.Create(ctx, CreateInput{UserID: "u1", SessionID: sess.ID, AddressID: &addr})
	assert.True(t, apperr.Is(err, apperr.InvalidInput))

	cod := payment.MethodCOD
	o, err := f.svc.Create(ctx, CreateInput{UserID: "u1", SessionID: sess.ID, AddressID: &addr, PaymentMethod: &cod})
	require.NoError(t, err)
	assert.Equal(t, payment.MethodCOD, o.PaymentMethod)
}

func TestCreateWithUnknownSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), CreateInput{UserID: "u1", SessionID: "missing"})
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestOrderNumberCollisionRetries(t *testing.T) {
	f := newFixture(t)
	f.orders.Reserve("FUR-TAKEN")
	numbers := []string{"FUR-TAKEN", "FUR-FRESH"}
	f.svc.newNumber = func(time.Time) string {
		n := numbers[0]
		numbers = numbers[1:]
		return n
	}

	o := f.place(t, f.session(t, payment.MethodCard, pick{"chair", 1, false}))
	assert.Equal(t, "FUR-FRESH", o.OrderNumber)
}

func TestOrderNumberExhaustionRollsBackStock(t *testing.T) {
	f := newFixture(t)
	f.orders.Reserve("FUR-TAKEN")
	f.svc.newNumber = func(time.Time) string { return "FUR-TAKEN" }
	sess := f.session(t, payment.MethodCard, pick{"sofa", 2, false})

	_, err := f.svc.Create(context.Background(), CreateInput{UserID: "u1", SessionID: sess.ID})
	assert.True(t, apperr.Is(err, apperr.ConcurrencyConflict))

	stock, sold := f.stock.Counts("sofa")
	assert.Equal(t, 4, stock)
	assert.Equal(t, 0, sold)
}

// claimBarrier lets each Claim return only after both callers have read the
// session, so neither has consumed it yet.
type claimBarrier struct {
	Sessions
	wg sync.WaitGroup
}

func (b *claimBarrier) Claim(ctx context.Context, userID, sessionID string) (checkout.Session, error) {
	sess, err := b.Sessions.Claim(ctx, userID, sessionID)
	b.wg.Done()
	b.wg.Wait()
	return sess, err
}

func TestConcurrentCreateConsumesSessionOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.session(t, payment.MethodCard, pick{"chair", 3, false})

	barrier := &claimBarrier{Sessions: f.svc.sessions}
	barrier.wg.Add(2)
	f.svc.sessions = barrier

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Create(ctx, CreateInput{UserID: "u1", SessionID: sess.ID})
		}(i)
	}
	wg.Wait()

	var placed, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			placed++
		case apperr.Is(err, apperr.ConcurrencyConflict):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, placed)
	assert.Equal(t, 1, conflicts)

	orders, err := f.svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	stock, sold := f.stock.Counts("chair")
	assert.Equal(t, 7, stock)
	assert.Equal(t, 6, sold)
	assert.Equal(t, []string{domain.EventOrderCreated}, f.events.Types())
}

func TestCancelRestoresStockOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t, f.session(t, payment.MethodCOD, pick{"sofa", 3, false}, pick{"chair", 2, false}))

	cancelled, err := f.svc.Cancel(ctx, "u1", o.ID, "ordered by mistake")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Equal(t, "ordered by mistake", *cancelled.CancelReason)

	again, err := f.svc.Cancel(ctx, "u1", o.ID, "")
	require.NoError(t, err)
	assert.Equal(t, cancelled.Status, again.Status)
	assert.Equal(t, cancelled.CancelledAt, again.CancelledAt)

	stock, sold := f.stock.Counts("sofa")
	assert.Equal(t, 4, stock)
	assert.Equal(t, 0, sold)
	stock, sold = f.stock.Counts("chair")
	assert.Equal(t, 10, stock)
	assert.Equal(t, 3, sold)

	assert.Equal(t, []string{domain.EventOrderCreated, domain.EventOrderCancelled}, f.events.Types())
}

func TestCancelAfterPaymentRefunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t, f.session(t, payment.MethodCard, pick{"chair", 1, false}))

	now := time.Now().UTC()
	require.NoError(t, f.payments.Create(ctx, payment.Payment{
		ID: "p1", OrderID: o.ID, UserID: "u1", Amount: o.TotalAmount, Method: payment.MethodCard,
		Gateway: "razorpay", Status: payment.StatusSuccess, CreatedAt: now, UpdatedAt: now,
	}))
	o.MarkPaid(now)
	require.NoError(t, f.orders.Update(ctx, o))

	cancelled, err := f.svc.Cancel(ctx, "u1", o.ID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentRefunded, cancelled.PaymentStatus)
	require.NotNil(t, cancelled.RefundAmount)
	assert.Equal(t, o.TotalAmount, *cancelled.RefundAmount)
	assert.NotNil(t, cancelled.RefundedAt)

	p, err := f.payments.GetByOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusRefunded, p.Status)
}

func TestCancelUnpaidCancelsPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t, f.session(t, payment.MethodUPI, pick{"chair", 1, false}))
	require.NoError(t, f.payments.Create(ctx, payment.Payment{ID: "p1", OrderID: o.ID, Status: payment.StatusPending}))

	_, err := f.svc.Cancel(ctx, "u1", o.ID, "")
	require.NoError(t, err)
	p, err := f.payments.GetByOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCancelled, p.Status)
}

func TestCancelRejectedOnceProcessing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t, f.session(t, payment.MethodCOD, pick{"chair", 1, false}))
	_, err := f.svc.AdvanceStatus(ctx, o.ID, domain.StatusProcessing, nil)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, "u1", o.ID, "")
	assert.True(t, apperr.Is(err, apperr.InvalidStateTransition))
	stock, _ := f.stock.Counts("chair")
	assert.Equal(t, 9, stock)
}

func TestAdvanceStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t, f.session(t, payment.MethodCard, pick{"chair", 1, false}))

	_, err := f.svc.AdvanceStatus(ctx, o.ID, domain.StatusShipped, nil)
	assert.True(t, apperr.Is(err, apperr.InvalidStateTransition))

	_, err = f.svc.AdvanceStatus(ctx, o.ID, domain.StatusCancelled, nil)
	assert.True(t, apperr.Is(err, apperr.InvalidStateTransition))

	_, err = f.svc.AdvanceStatus(ctx, o.ID, "lost", nil)
	assert.True(t, apperr.Is(err, apperr.InvalidInput))

	tracking := "BLR-1234"
	for _, s := range []domain.Status{domain.StatusConfirmed, domain.StatusProcessing, domain.StatusShipped} {
		o, err = f.svc.AdvanceStatus(ctx, o.ID, s, &tracking)
		require.NoError(t, err)
	}
	assert.Equal(t, "BLR-1234", *o.TrackingNumber)

	same, err := f.svc.AdvanceStatus(ctx, o.ID, domain.StatusShipped, nil)
	require.NoError(t, err)
	assert.Equal(t, o.ShippedAt, same.ShippedAt)

	_, err = f.svc.AdvanceStatus(ctx, o.ID, domain.StatusConfirmed, nil)
	assert.True(t, apperr.Is(err, apperr.InvalidStateTransition))
}

func TestDeliveringCashOrderSettlesPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t, f.session(t, payment.MethodCOD, pick{"chair", 1, false}))

	for _, s := range []domain.Status{domain.StatusProcessing, domain.StatusShipped, domain.StatusDelivered} {
		var err error
		o, err = f.svc.AdvanceStatus(ctx, o.ID, s, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, domain.PaymentPaid, o.PaymentStatus)
	assert.NotNil(t, o.DeliveredAt)

	p, err := f.payments.GetByOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSuccess, p.Status)
	assert.Equal(t, o.TotalAmount, p.Amount)
	assert.Equal(t, payment.GatewayNone, p.Gateway)
}

func TestDeleteOnlyClosedOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t, f.session(t, payment.MethodUPI, pick{"chair", 1, false}))
	require.NoError(t, f.payments.Create(ctx, payment.Payment{ID: "p1", OrderID: o.ID, Status: payment.StatusPending}))

	err := f.svc.Delete(ctx, "u1", o.ID)
	assert.True(t, apperr.Is(err, apperr.InvalidStateTransition))

	_, err = f.svc.Cancel(ctx, "u1", o.ID, "")
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, "u1", o.ID))

	_, err = f.svc.Get(ctx, "u1", o.ID)
	assert.True(t, apperr.Is(err, apperr.NotFound))
	_, err = f.payments.GetByOrder(ctx, o.ID)
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestOrdersAreScopedToOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t, f.session(t, payment.MethodCOD, pick{"chair", 1, false}))

	_, err := f.svc.Get(ctx, "u2", o.ID)
	assert.True(t, apperr.Is(err, apperr.NotFound))
	_, err = f.svc.Cancel(ctx, "u2", o.ID, "")
	assert.True(t, apperr.Is(err, apperr.NotFound))

	admin, err := f.svc.Get(ctx, "", o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, admin.ID)

	list, err := f.svc.List(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUpdateNotesLeavesItemsAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.place(t, f.session(t, payment.MethodCOD, pick{"sofa", 1, false}))

	updated, err := f.svc.UpdateNotes(ctx, "u1", o.ID, "  leave at the gate ")
	require.NoError(t, err)
	assert.Equal(t, "leave at the gate", *updated.Notes)

	stored, err := f.svc.Get(ctx, "u1", o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Items, stored.Items)
	assert.Equal(t, o.PriceBreakdown, stored.PriceBreakdown)

	cleared, err := f.svc.UpdateNotes(ctx, "u1", o.ID, "")
	require.NoError(t, err)
	assert.Nil(t, cleared.Notes)
}
