package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmehra2102/furniture-store/internal/cart/domain"
	"github.com/dmehra2102/furniture-store/pkg/apperr"
)

type Service struct {
	log     *slog.Logger
	repo    CartRepository
	catalog Catalog
	tx      Transactor
	now     func() time.Time
}

func NewService(log *slog.Logger, repo CartRepository, catalog Catalog, tx Transactor) *Service {
	return &Service{log: log, repo: repo, catalog: catalog, tx: tx, now: time.Now}
}

// ViewItem is a cart line joined with live product data.
type ViewItem struct {
	domain.Item
	Name            string `json:"name"`
	Image           string `json:"image"`
	Price           int64  `json:"price"`
	FinalPrice      int64  `json:"finalPrice"`
	DiscountPercent int    `json:"discountPercent"`
	InStock         bool   `json:"inStock"`
	StockQuantity   int    `json:"stockQuantity"`
	LineTotal       int64  `json:"lineTotal"`
}

type View struct {
	UserID     string     `json:"userId"`
	Items      []ViewItem `json:"items"`
	TotalItems int        `json:"totalItems"`
	Subtotal   int64      `json:"subtotal"`
}

// AddItem checks the requested quantity against current stock, but nothing is
// held: the merged line may exceed stock later and is only enforced at order
// creation.
func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int, variant *string) (View, error) {
	if productID == "" {
		return View{}, apperr.New(apperr.InvalidInput, "product id is required")
	}
	if quantity <= 0 {
		return View{}, apperr.Newf(apperr.InvalidInput, "quantity must be positive, got %d", quantity)
	}
	p, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return View{}, err
	}
	if p.StockQuantity < quantity {
		return View{}, apperr.Insufficient(apperr.Shortfall{ProductID: productID, Requested: quantity, Available: p.StockQuantity})
	}

	err = s.mutate(ctx, userID, func(c *domain.Cart) error {
		item := c.Add(productID, quantity, variant, s.now().UTC())
		s.log.Info("cart item added", "user_id", userID, "product_id", productID, "quantity", item.Quantity)
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return s.Read(ctx, userID)
}

func (s *Service) UpdateQuantity(ctx context.Context, userID, productID string, variant *string, quantity int) (View, error) {
	if quantity < 0 {
		return View{}, apperr.Newf(apperr.InvalidInput, "quantity cannot be negative, got %d", quantity)
	}
	err := s.mutate(ctx, userID, func(c *domain.Cart) error {
		if !c.SetQuantity(productID, variant, quantity, s.now().UTC()) {
			return apperr.New(apperr.NotFound, "item not in cart")
		}
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return s.Read(ctx, userID)
}

func (s *Service) RemoveItem(ctx context.Context, userID, productID string) (View, error) {
	err := s.mutate(ctx, userID, func(c *domain.Cart) error {
		if !c.Remove(productID, s.now().UTC()) {
			return apperr.New(apperr.NotFound, "item not in cart")
		}
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return s.Read(ctx, userID)
}

func (s *Service) Clear(ctx context.Context, userID string) error {
	return s.mutate(ctx, userID, func(c *domain.Cart) error {
		c.Clear(s.now().UTC())
		return nil
	})
}

// RemoveProducts drops purchased products. It joins the caller's transaction.
func (s *Service) RemoveProducts(ctx context.Context, userID string, productIDs []string) error {
	return s.mutate(ctx, userID, func(c *domain.Cart) error {
		for _, id := range productIDs {
			c.Remove(id, s.now().UTC())
		}
		return nil
	})
}

// Snapshot returns the raw cart lines without joining product data.
func (s *Service) Snapshot(ctx context.Context, userID string) (domain.Cart, error) {
	return s.repo.Load(ctx, userID)
}

// Read joins live product data. Lines whose product has been removed from the
// catalog are dropped and the cart is saved compacted.
func (s *Service) Read(ctx context.Context, userID string) (View, error) {
	c, err := s.repo.Load(ctx, userID)
	if err != nil {
		return View{}, err
	}
	ids := make([]string, 0, len(c.Items))
	for _, it := range c.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := s.catalog.GetProducts(ctx, ids)
	if err != nil {
		return View{}, err
	}

	view := View{UserID: userID, Items: make([]ViewItem, 0, len(c.Items))}
	var stale []string
	for _, it := range c.Items {
		p, ok := products[it.ProductID]
		if !ok {
			stale = append(stale, it.ProductID)
			continue
		}
		vi := ViewItem{
			Item:            it,
			Name:            p.Name,
			Image:           p.Image,
			Price:           p.Price,
			FinalPrice:      p.FinalPrice,
			DiscountPercent: p.DiscountPercent,
			InStock:         p.InStock(),
			StockQuantity:   p.StockQuantity,
			LineTotal:       p.FinalPrice * int64(it.Quantity),
		}
		view.Items = append(view.Items, vi)
		view.TotalItems += it.Quantity
		view.Subtotal += vi.LineTotal
	}

	if len(stale) > 0 {
		s.log.Info("cart compacted", "user_id", userID, "dropped", stale)
		if err := s.RemoveProducts(ctx, userID, stale); err != nil {
			s.log.Warn("cart compaction failed", "user_id", userID, "err", err)
		}
	}
	return view, nil
}

func (s *Service) mutate(ctx context.Context, userID string, fn func(c *domain.Cart) error) error {
	if userID == "" {
		return apperr.New(apperr.Unauthorized, "user id is required")
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.repo.Load(ctx, userID)
		if err != nil {
			return err
		}
		if err := fn(&c); err != nil {
			return err
		}
		return s.repo.Save(ctx, c)
	})
}
