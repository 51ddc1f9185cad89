package application

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	catalog "github.com/dmehra2102/furniture-store/internal/catalog/domain"
	"github.com/dmehra2102/furniture-store/internal/checkout/domain"
	"github.com/dmehra2102/furniture-store/internal/pricing"
	"github.com/dmehra2102/furniture-store/pkg/apperr"
)

type Service struct {
	log     *slog.Logger
	repo    SessionRepository
	carts   Carts
	catalog Catalog
	coupons pricing.CouponResolver
	ttl     time.Duration
	now     func() time.Time
}

func NewService(log *slog.Logger, repo SessionRepository, carts Carts, catalog Catalog, coupons pricing.CouponResolver, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = domain.DefaultTTL
	}
	return &Service{log: log, repo: repo, carts: carts, catalog: catalog, coupons: coupons, ttl: ttl, now: time.Now}
}

// Line is a session item joined with live product data.
type Line struct {
	domain.Item
	Name            string `json:"name"`
	Image           string `json:"image"`
	Price           int64  `json:"price"`
	FinalPrice      int64  `json:"finalPrice"`
	DiscountPercent int    `json:"discountPercent"`
	StockQuantity   int    `json:"stockQuantity"`
	InsuranceCost   int64  `json:"insuranceCost"`
}

type View struct {
	Session   domain.Session    `json:"session"`
	Lines     []Line            `json:"lines"`
	Breakdown pricing.Breakdown `json:"priceBreakdown"`
	Dropped   []string          `json:"droppedProductIds,omitempty"`
}

func (s *Service) Create(ctx context.Context, userID string, productIDs, insuredIDs []string) (domain.Session, error) {
	if userID == "" {
		return domain.Session{}, apperr.New(apperr.Unauthorized, "user id is required")
	}
	selected := toSet(productIDs)
	insured := toSet(insuredIDs)
	if len(selected) == 0 {
		return domain.Session{}, apperr.New(apperr.InvalidInput, "select at least one product")
	}

	c, err := s.carts.Snapshot(ctx, userID)
	if err != nil {
		return domain.Session{}, err
	}

	var missing []string
	for id := range selected {
		if _, ok := c.Find(id); !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return domain.Session{}, apperr.Wrap(apperr.InvalidInput, "selection not in cart: "+strings.Join(missing, ", "), domain.ErrSelectionNotInCart)
	}

	now := s.now().UTC()
	sess := domain.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	for _, it := range c.Items {
		if !selected[it.ProductID] {
			continue
		}
		sess.Items = append(sess.Items, domain.Item{
			ProductID:    it.ProductID,
			Quantity:     it.Quantity,
			HasInsurance: insured[it.ProductID],
			Variant:      it.Variant,
		})
	}

	if err := s.repo.Replace(ctx, sess); err != nil {
		return domain.Session{}, err
	}
	s.log.Info("checkout session created", "user_id", userID, "session_id", sess.ID, "items", len(sess.Items))
	return sess, nil
}

// Read loads the session (the latest one when sessionID is empty), drops
// items that are no longer purchasable and prices what is left.
func (s *Service) Read(ctx context.Context, userID, sessionID string) (View, error) {
	sess, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return View{}, err
	}

	products, err := s.catalog.GetProducts(ctx, sess.ProductIDs())
	if err != nil {
		return View{}, err
	}

	var dropped []string
	valid := sess.Items[:0:0]
	for _, it := range sess.Items {
		p, ok := products[it.ProductID]
		if !ok || !p.InStock() {
			dropped = append(dropped, it.ProductID)
			continue
		}
		valid = append(valid, it)
	}

	if len(valid) == 0 {
		if err := s.repo.Delete(ctx, userID, sess.ID); err != nil {
			s.log.Warn("delete empty session failed", "session_id", sess.ID, "err", err)
		}
		return View{}, apperr.Wrap(apperr.NotFound, "no valid items in checkout session", domain.ErrNoValidItems)
	}
	if len(dropped) > 0 {
		sess.Items = valid
		if err := s.repo.Update(ctx, sess); err != nil {
			return View{}, notFound(err)
		}
		s.log.Info("checkout session refreshed", "session_id", sess.ID, "dropped", dropped)
	}

	breakdown, err := s.Price(ctx, sess, products)
	if err != nil {
		return View{}, err
	}

	view := View{Session: sess, Breakdown: breakdown, Dropped: dropped}
	for _, it := range sess.Items {
		p := products[it.ProductID]
		line := Line{
			Item:            it,
			Name:            p.Name,
			Image:           p.Image,
			Price:           p.Price,
			FinalPrice:      p.FinalPrice,
			DiscountPercent: p.DiscountPercent,
			StockQuantity:   p.StockQuantity,
		}
		if it.HasInsurance {
			line.InsuranceCost = pricing.InsuranceCost(p.FinalPrice, it.Quantity)
		}
		view.Lines = append(view.Lines, line)
	}
	return view, nil
}

// Price is the single place a session is turned into a breakdown; order
// creation calls it with the same inputs so the charged total equals the
// previewed one.
func (s *Service) Price(ctx context.Context, sess domain.Session, products map[string]catalog.Product) (pricing.Breakdown, error) {
	lines := make([]pricing.Line, 0, len(sess.Items))
	for _, it := range sess.Items {
		p, ok := products[it.ProductID]
		if !ok {
			return pricing.Breakdown{}, apperr.New(apperr.NotFound, "product "+it.ProductID+" not found")
		}
		lines = append(lines, pricing.Line{
			ProductID:     it.ProductID,
			OriginalPrice: p.Price,
			FinalPrice:    p.FinalPrice,
			Quantity:      it.Quantity,
		})
	}

	var coupon *pricing.Coupon
	if sess.CouponCode != nil {
		c, err := s.coupons.Resolve(ctx, *sess.CouponCode)
		if err != nil {
			return pricing.Breakdown{}, err
		}
		coupon = c
	}
	return pricing.Compute(lines, sess.InsuredSet(), coupon), nil
}

func (s *Service) Update(ctx context.Context, userID, sessionID string, sel domain.Selection) (domain.Session, error) {
	sess, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return domain.Session{}, err
	}

	if sel.AddressID != nil {
		if _, err := s.catalog.GetAddress(ctx, userID, *sel.AddressID); err != nil {
			return domain.Session{}, err
		}
		sess.SelectedAddressID = sel.AddressID
	}
	if sel.PaymentMethod != nil {
		if !sel.PaymentMethod.Valid() {
			return domain.Session{}, apperr.Newf(apperr.InvalidInput, "unknown payment method %q", *sel.PaymentMethod)
		}
		sess.SelectedPaymentMethod = sel.PaymentMethod
	}
	if sel.CouponCode != nil {
		code := strings.TrimSpace(*sel.CouponCode)
		if code == "" {
			sess.CouponCode = nil
		} else {
			c, err := s.coupons.Resolve(ctx, code)
			if err != nil {
				return domain.Session{}, err
			}
			sess.CouponCode = &c.Code
		}
	}

	if err := s.repo.Update(ctx, sess); err != nil {
		return domain.Session{}, notFound(err)
	}
	return sess, nil
}

// Get returns the raw, unexpired session without re-validation.
func (s *Service) Get(ctx context.Context, userID, sessionID string) (domain.Session, error) {
	return s.load(ctx, userID, sessionID)
}

// Claim is Get for a caller about to consume the session inside a
// transaction: the row stays locked until that transaction ends, so a
// concurrent claim waits and then finds the session gone.
func (s *Service) Claim(ctx context.Context, userID, sessionID string) (domain.Session, error) {
	if userID == "" {
		return domain.Session{}, apperr.New(apperr.Unauthorized, "user id is required")
	}
	sess, err := s.repo.GetForUpdate(ctx, userID, sessionID, s.now().UTC())
	if err != nil {
		return domain.Session{}, notFound(err)
	}
	return sess, nil
}

// Delete removes one session, or every session of the user when sessionID is empty.
func (s *Service) Delete(ctx context.Context, userID, sessionID string) error {
	if sessionID == "" {
		n, err := s.repo.DeleteForUser(ctx, userID)
		if err != nil {
			return err
		}
		s.log.Info("checkout sessions deleted", "user_id", userID, "count", n)
		return nil
	}
	if err := s.repo.Delete(ctx, userID, sessionID); err != nil {
		return notFound(err)
	}
	return nil
}

func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repo.PurgeExpired(ctx, s.now().UTC())
}

func (s *Service) load(ctx context.Context, userID, sessionID string) (domain.Session, error) {
	if userID == "" {
		return domain.Session{}, apperr.New(apperr.Unauthorized, "user id is required")
	}
	now := s.now().UTC()

	var sess domain.Session
	var err error
	if sessionID != "" {
		sess, err = s.repo.Get(ctx, userID, sessionID, now)
	} else {
		sess, err = s.repo.Latest(ctx, userID, now)
	}
	if errors.Is(err, domain.ErrSessionNotFound) {
		// expired rows are invisible to Get/Latest; drop them now
		if _, perr := s.repo.PurgeExpired(ctx, now); perr != nil {
			s.log.Warn("lazy session purge failed", "err", perr)
		}
		return domain.Session{}, apperr.Wrap(apperr.NotFound, "checkout session not found or expired", err)
	}
	return sess, err
}

func notFound(err error) error {
	if errors.Is(err, domain.ErrSessionNotFound) {
		return apperr.Wrap(apperr.NotFound, "checkout session not found or expired", err)
	}
	return err
}

func toSet(ids []string) map[string]bool {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out[id] = true
		}
	}
	return out
}
