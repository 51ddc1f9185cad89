package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cartapp "github.com/dmehra2102/furniture-store/internal/cart/application"
	cartmem "github.com/dmehra2102/furniture-store/internal/cart/infrastructure/memory"
	catalog "github.com/dmehra2102/furniture-store/internal/catalog/domain"
	"github.com/dmehra2102/furniture-store/internal/checkout/domain"
	"github.com/dmehra2102/furniture-store/internal/checkout/infrastructure/memory"
	payment "github.com/dmehra2102/furniture-store/internal/payment/domain"
	"github.com/dmehra2102/furniture-store/internal/pricing"
	"github.com/dmehra2102/furniture-store/internal/testenv"
	"github.com/dmehra2102/furniture-store/pkg/apperr"
)

type fixture struct {
	svc     *Service
	carts   *cartapp.Service
	repo    *memory.Repository
	catalog *testenv.Catalog
	clock   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat := testenv.NewCatalog()
	cat.PutProduct(catalog.Product{ID: "sofa", Name: "Sofa", Price: 12000, FinalPrice: 9000, StockQuantity: 4})
	cat.PutProduct(catalog.Product{ID: "chair", Name: "Chair", Price: 1000, FinalPrice: 1000, StockQuantity: 10})
	cat.PutProduct(catalog.Product{ID: "rug", Name: "Rug", Price: 2500, FinalPrice: 2000, StockQuantity: 2})
	cat.PutAddress(catalog.Address{ID: "addr-1", UserID: "u1", FullName: "Asha Rao", City: "Pune"})

	carts := cartapp.NewService(testenv.Logger(), cartmem.NewRepository(), cat, testenv.Tx{})
	repo := memory.NewRepository()
	f := &fixture{carts: carts, repo: repo, catalog: cat, clock: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	f.svc = NewService(testenv.Logger(), repo, carts, cat, pricing.StaticCoupons{"WELCOME": 500}, time.Hour)
	f.svc.now = func() time.Time { return f.clock }

	ctx := context.Background()
	for _, id := range []string{"sofa", "chair", "rug"} {
		_, err := carts.AddItem(ctx, "u1", id, 2, nil)
		require.NoError(t, err)
	}
	return f
}

func TestCreateStoresSelectionOnly(t *testing.T) {
	f := newFixture(t)
	sess, err := f.svc.Create(context.Background(), "u1", []string{"sofa", "chair"}, []string{"sofa"})
	require.NoError(t, err)

	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, f.clock.Add(time.Hour), sess.ExpiresAt)
	assert.Equal(t, []domain.Item{
		{ProductID: "sofa", Quantity: 2, HasInsurance: true},
		{ProductID: "chair", Quantity: 2},
	}, sess.Items)
}

func TestCreateRejectsSelectionNotInCart(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), "u1", []string{"sofa", "wardrobe"}, nil)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.InvalidInput))
	assert.ErrorIs(t, err, domain.ErrSelectionNotInCart)

	_, err = f.svc.Create(context.Background(), "u1", nil, nil)
	assert.True(t, apperr.Is(err, apperr.InvalidInput))
}

func TestCreateSupersedesPreviousSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, "u1", []string{"sofa"}, nil)
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, "u1", []string{"chair"}, nil)
	require.NoError(t, err)

	current, err := f.svc.Read(ctx, "u1", "")
	require.NoError(t, err)
	assert.Equal(t, second.ID, current.Session.ID)

	_, err = f.svc.Read(ctx, "u1", first.ID)
	assert.True(t, apperr.Is(err, apperr.NotFound))
	assert.Equal(t, 1, f.repo.Count())
}

func TestReadPricesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, err := f.svc.Create(ctx, "u1", []string{"sofa", "chair"}, []string{"chair"})
	require.NoError(t, err)

	view, err := f.svc.Read(ctx, "u1", sess.ID)
	require.NoError(t, err)

	want := pricing.Compute([]pricing.Line{
		{ProductID: "sofa", OriginalPrice: 12000, FinalPrice: 9000, Quantity: 2},
		{ProductID: "chair", OriginalPrice: 1000, FinalPrice: 1000, Quantity: 2},
	}, map[string]bool{"chair": true}, nil)
	assert.Equal(t, want, view.Breakdown)
	assert.Equal(t, int64(40), view.Lines[1].InsuranceCost)
	assert.Equal(t, int64(0), view.Breakdown.ShippingCost)
}

func TestReadDropsOutOfStockAndPersists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, err := f.svc.Create(ctx, "u1", []string{"sofa", "rug"}, nil)
	require.NoError(t, err)

	f.catalog.PutProduct(catalog.Product{ID: "rug", Name: "Rug", Price: 2500, FinalPrice: 2000, StockQuantity: 0})

	view, err := f.svc.Read(ctx, "u1", sess.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"rug"}, view.Dropped)
	require.Len(t, view.Lines, 1)

	stored, err := f.repo.Get(ctx, "u1", sess.ID, f.clock)
	require.NoError(t, err)
	assert.Len(t, stored.Items, 1)
}

func TestReadWithNoValidItemsDeletesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, err := f.svc.Create(ctx, "u1", []string{"rug"}, nil)
	require.NoError(t, err)
	f.catalog.DeleteProduct("rug")

	_, err = f.svc.Read(ctx, "u1", sess.ID)
	assert.ErrorIs(t, err, domain.ErrNoValidItems)
	assert.Equal(t, 0, f.repo.Count())
}

func TestExpiredSessionIsNotFoundAndPurged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, err := f.svc.Create(ctx, "u1", []string{"sofa"}, nil)
	require.NoError(t, err)

	f.clock = f.clock.Add(time.Hour)
	_, err = f.svc.Read(ctx, "u1", sess.ID)
	assert.True(t, apperr.Is(err, apperr.NotFound))
	assert.Equal(t, 0, f.repo.Count())
}

func TestUpdateSelection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, err := f.svc.Create(ctx, "u1", []string{"chair"}, nil)
	require.NoError(t, err)

	addr := "addr-1"
	upi := payment.MethodUPI
	coupon := "welcome"
	updated, err := f.svc.Update(ctx, "u1", sess.ID, domain.Selection{AddressID: &addr, PaymentMethod: &upi, CouponCode: &coupon})
	require.NoError(t, err)
	assert.Equal(t, "addr-1", *updated.SelectedAddressID)
	assert.Equal(t, payment.MethodUPI, *updated.SelectedPaymentMethod)
	assert.Equal(t, "WELCOME", *updated.CouponCode)
	assert.Equal(t, sess.Items, updated.Items)

	view, err := f.svc.Read(ctx, "u1", sess.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), view.Breakdown.CouponDiscount)

	bad := payment.Method("barter")
	_, err = f.svc.Update(ctx, "u1", sess.ID, domain.Selection{PaymentMethod: &bad})
	assert.True(t, apperr.Is(err, apperr.InvalidInput))

	other := "addr-2"
	_, err = f.svc.Update(ctx, "u1", sess.ID, domain.Selection{AddressID: &other})
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, err := f.svc.Create(ctx, "u1", []string{"chair"}, nil)
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, "u1", sess.ID))
	_, err = f.svc.Read(ctx, "u1", "")
	assert.True(t, apperr.Is(err, apperr.NotFound))

	_, err = f.svc.Create(ctx, "u1", []string{"chair"}, nil)
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, "u1", ""))
	assert.Equal(t, 0, f.repo.Count())
}

func TestDeleteMissingSessionIsNotFound(t *testing.T) {
	f := newFixture(t)
	err := f.svc.Delete(context.Background(), "u1", "missing")
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

// supersedingRepo replaces the user's session right before each update, as a
// concurrent Create would.
type supersedingRepo struct {
	*memory.Repository
}

func (r supersedingRepo) Update(ctx context.Context, s domain.Session) error {
	next := s
	next.ID = "replacement"
	if err := r.Repository.Replace(ctx, next); err != nil {
		return err
	}
	return r.Repository.Update(ctx, s)
}

func TestUpdateOfSupersededSessionIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, err := f.svc.Create(ctx, "u1", []string{"chair"}, nil)
	require.NoError(t, err)
	f.svc.repo = supersedingRepo{f.repo}

	addr := "addr-1"
	_, err = f.svc.Update(ctx, "u1", sess.ID, domain.Selection{AddressID: &addr})
	assert.True(t, apperr.Is(err, apperr.NotFound))
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestClaimReturnsLiveSessionOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, err := f.svc.Create(ctx, "u1", []string{"chair"}, nil)
	require.NoError(t, err)

	got, err := f.svc.Claim(ctx, "u1", sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)

	_, err = f.svc.Claim(ctx, "u2", sess.ID)
	assert.True(t, apperr.Is(err, apperr.NotFound))

	f.clock = f.clock.Add(2 * time.Hour)
	_, err = f.svc.Claim(ctx, "u1", sess.ID)
	assert.True(t, apperr.Is(err, apperr.NotFound))
}
