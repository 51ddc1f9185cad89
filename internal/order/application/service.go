package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	catalog "github.com/dmehra2102/furniture-store/internal/catalog/domain"
	checkout "github.com/dmehra2102/furniture-store/internal/checkout/domain"
	inventory "github.com/dmehra2102/furniture-store/internal/inventory/domain"
	"github.com/dmehra2102/furniture-store/internal/order/domain"
	payment "github.com/dmehra2102/furniture-store/internal/payment/domain"
	"github.com/dmehra2102/furniture-store/internal/pricing"
	"github.com/dmehra2102/furniture-store/pkg/apperr"
	"github.com/dmehra2102/furniture-store/pkg/outbox"
	"github.com/dmehra2102/furniture-store/pkg/postgres"
	"github.com/dmehra2102/furniture-store/pkg/tracing"
)

const maxOrderNumberAttempts = 5

type Service struct {
	log       *slog.Logger
	repo      OrderRepository
	sessions  Sessions
	carts     Carts
	catalog   Catalog
	inventory Inventory
	payments  Payments
	events    EventSink
	tx        Transactor
	currency  string
	now       func() time.Time
	newNumber func(time.Time) string
}

type Deps struct {
	Repo      OrderRepository
	Sessions  Sessions
	Carts     Carts
	Catalog   Catalog
	Inventory Inventory
	Payments  Payments
	Events    EventSink
	Tx        Transactor
	Currency  string
}

func NewService(log *slog.Logger, d Deps) *Service {
	return &Service{
		log:       log,
		repo:      d.Repo,
		sessions:  d.Sessions,
		carts:     d.Carts,
		catalog:   d.Catalog,
		inventory: d.Inventory,
		payments:  d.Payments,
		events:    d.Events,
		tx:        d.Tx,
		currency:  d.Currency,
		now:       time.Now,
		newNumber: domain.NewOrderNumber,
	}
}

// CreateInput overrides the session's address and payment selection when set.
type CreateInput struct {
	UserID        string
	Email         string
	SessionID     string
	AddressID     *string
	PaymentMethod *payment.Method
	Notes         *string
}

// Create turns a checkout session into an order. Stock reservation, the order
// row, cart cleanup, session removal and the OrderCreated event commit together.
func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Order, error) {
	if in.UserID == "" {
		return domain.Order{}, apperr.New(apperr.Unauthorized, "user id is required")
	}
	if in.SessionID == "" {
		return domain.Order{}, apperr.New(apperr.InvalidInput, "checkout session id is required")
	}

	var created domain.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		sess, err := s.sessions.Claim(ctx, in.UserID, in.SessionID)
		if err != nil {
			return err
		}
		addressID, method, err := resolveSelection(in, sess)
		if err != nil {
			return err
		}
		addr, err := s.catalog.GetAddress(ctx, in.UserID, addressID)
		if err != nil {
			return err
		}
		products, err := s.catalog.GetProducts(ctx, sess.ProductIDs())
		if err != nil {
			return err
		}
		if err := checkStock(sess, products); err != nil {
			return err
		}
		if err := s.consume(ctx, in.UserID, sess.ID); err != nil {
			return err
		}

		lines := reserveLines(sess)
		if err := s.inventory.ReserveAll(ctx, lines); err != nil {
			return err
		}

		o, err := s.place(ctx, in, sess, products, addr, method)
		if err != nil {
			s.compensate(ctx, lines)
			return err
		}
		created = o
		return nil
	})
	if err != nil {
		s.log.Warn("order creation failed", "user_id", in.UserID, "session_id", in.SessionID, "err", err)
		return domain.Order{}, err
	}

	s.log.Info("order created", "order_id", created.ID, "order_number", created.OrderNumber,
		"user_id", created.UserID, "total", created.TotalAmount, "payment_method", created.PaymentMethod)
	return created, nil
}

// place runs the steps after stock is reserved.
func (s *Service) place(ctx context.Context, in CreateInput, sess checkout.Session, products map[string]catalog.Product, addr catalog.Address, method payment.Method) (domain.Order, error) {
	breakdown, err := s.sessions.Price(ctx, sess, products)
	if err != nil {
		return domain.Order{}, err
	}

	now := s.now().UTC()
	o := domain.NewOrder(uuid.NewString(), in.UserID, freezeItems(sess, products), freezeAddress(addr), method, breakdown, now)
	if in.Notes != nil && strings.TrimSpace(*in.Notes) != "" {
		o.Notes = in.Notes
	}

	if err := s.insert(ctx, &o); err != nil {
		return domain.Order{}, err
	}
	if err := s.carts.RemoveProducts(ctx, in.UserID, sess.ProductIDs()); err != nil {
		return domain.Order{}, err
	}
	if err := s.emit(ctx, o.ID, domain.EventOrderCreated, domain.NewOrderCreated(o, in.Email)); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

// insert assigns an order number, regenerating it while it collides.
func (s *Service) insert(ctx context.Context, o *domain.Order) error {
	for attempt := 1; attempt <= maxOrderNumberAttempts; attempt++ {
		o.OrderNumber = s.newNumber(o.CreatedAt)
		err := s.repo.Insert(ctx, *o)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrDuplicateOrderNumber) {
			return err
		}
		s.log.Warn("order number collision", "order_number", o.OrderNumber, "attempt", attempt)
	}
	return apperr.New(apperr.ConcurrencyConflict, "could not allocate a unique order number")
}

// consume deletes the session before any stock moves. Losing the delete
// means another request already turned this session into an order.
func (s *Service) consume(ctx context.Context, userID, sessionID string) error {
	err := s.sessions.Delete(ctx, userID, sessionID)
	if apperr.Is(err, apperr.NotFound) {
		return apperr.Wrap(apperr.ConcurrencyConflict, "checkout session already used", err)
	}
	return err
}

// compensate releases stock reserved outside a database transaction. Inside
// one the rollback restores it and the connection may already be aborted.
func (s *Service) compensate(ctx context.Context, lines []inventory.Line) {
	if postgres.InTx(ctx) {
		return
	}
	if err := s.inventory.ReleaseAll(ctx, lines); err != nil {
		s.log.Error("compensating release failed", "err", err)
	}
}

func (s *Service) List(ctx context.Context, userID string) ([]domain.Order, error) {
	if userID == "" {
		return nil, apperr.New(apperr.Unauthorized, "user id is required")
	}
	return s.repo.ListByUser(ctx, userID)
}

// Get returns the order when owner matches. An empty owner skips the check
// and is reserved for admin callers.
func (s *Service) Get(ctx context.Context, owner, orderID string) (domain.Order, error) {
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if err := checkOwner(o, owner); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

// AdvanceStatus moves the order forward. Repeating the current status is a no-op.
func (s *Service) AdvanceStatus(ctx context.Context, orderID string, to domain.Status, trackingNumber *string) (domain.Order, error) {
	if !to.Valid() {
		return domain.Order{}, apperr.Newf(apperr.InvalidInput, "unknown order status %q", to)
	}
	var out domain.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status == to {
			out = o
			return nil
		}
		from := o.Status
		now := s.now().UTC()
		if err := o.Advance(to, trackingNumber, now); err != nil {
			return apperr.Wrap(apperr.InvalidStateTransition, "cannot move order from "+string(from)+" to "+string(to), err)
		}
		if to == domain.StatusDelivered && o.PaymentMethod == payment.MethodCOD {
			if err := s.settleCashPayment(ctx, o, now); err != nil {
				return err
			}
		}
		if err := s.repo.Update(ctx, o); err != nil {
			return err
		}
		s.log.Info("order status advanced", "order_id", o.ID, "from", from, "to", to)
		out = o
		return nil
	})
	return out, err
}

// settleCashPayment marks the cash collected on delivery.
func (s *Service) settleCashPayment(ctx context.Context, o domain.Order, now time.Time) error {
	p, err := s.payments.GetByOrder(ctx, o.ID)
	if apperr.Is(err, apperr.NotFound) {
		return s.payments.Create(ctx, payment.Payment{
			ID:        uuid.NewString(),
			OrderID:   o.ID,
			UserID:    o.UserID,
			Amount:    o.TotalAmount,
			Currency:  s.currency,
			Method:    payment.MethodCOD,
			Gateway:   payment.GatewayNone,
			Status:    payment.StatusSuccess,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	if err != nil {
		return err
	}
	if p.Status == payment.StatusSuccess {
		return nil
	}
	if !payment.CanTransition(p.Status, payment.StatusSuccess) {
		return apperr.Newf(apperr.InvalidStateTransition, "payment %s is %s", p.ID, p.Status)
	}
	p.Status = payment.StatusSuccess
	p.UpdatedAt = now
	return s.payments.Update(ctx, p)
}

// Cancel cancels a pending or confirmed order and returns its stock. A second
// call on a cancelled order returns it unchanged.
func (s *Service) Cancel(ctx context.Context, owner, orderID, reason string) (domain.Order, error) {
	var out domain.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := checkOwner(o, owner); err != nil {
			return err
		}
		if o.Status == domain.StatusCancelled {
			out = o
			return nil
		}

		now := s.now().UTC()
		refund, err := o.Cancel(strings.TrimSpace(reason), now)
		if err != nil {
			return apperr.Wrap(apperr.InvalidStateTransition, "order cannot be cancelled once "+string(o.Status), err)
		}
		if err := s.inventory.ReleaseAll(ctx, itemLines(o)); err != nil {
			return err
		}
		if err := s.closePayment(ctx, o, refund, now); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, o); err != nil {
			return err
		}

		ev := domain.OrderCancelled{OrderID: o.ID, OrderNumber: o.OrderNumber, UserID: o.UserID}
		if o.CancelReason != nil {
			ev.Reason = *o.CancelReason
		}
		if o.RefundAmount != nil {
			ev.RefundAmount = *o.RefundAmount
		}
		if err := s.emit(ctx, o.ID, domain.EventOrderCancelled, ev); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	s.log.Info("order cancelled", "order_id", out.ID, "payment_status", out.PaymentStatus)
	return out, nil
}

// closePayment moves the companion payment to refunded or cancelled.
func (s *Service) closePayment(ctx context.Context, o domain.Order, refund bool, now time.Time) error {
	p, err := s.payments.GetByOrder(ctx, o.ID)
	if apperr.Is(err, apperr.NotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	target := payment.StatusCancelled
	if refund {
		target = payment.StatusRefunded
	}
	if p.Status == target {
		return nil
	}
	if !payment.CanTransition(p.Status, target) {
		s.log.Warn("companion payment left as is", "order_id", o.ID, "payment_id", p.ID, "status", p.Status, "target", target)
		return nil
	}
	p.Status = target
	p.UpdatedAt = now
	return s.payments.Update(ctx, p)
}

// Delete hard-deletes a cancelled or returned order with its payment.
func (s *Service) Delete(ctx context.Context, owner, orderID string) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := checkOwner(o, owner); err != nil {
			return err
		}
		if !o.Deletable() {
			return apperr.Newf(apperr.InvalidStateTransition, "order in status %s cannot be deleted", o.Status)
		}
		if err := s.payments.DeleteByOrder(ctx, o.ID); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, o.ID); err != nil {
			return err
		}
		s.log.Info("order deleted", "order_id", o.ID, "order_number", o.OrderNumber)
		return nil
	})
}

func (s *Service) UpdateNotes(ctx context.Context, owner, orderID, notes string) (domain.Order, error) {
	var out domain.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := checkOwner(o, owner); err != nil {
			return err
		}
		if notes = strings.TrimSpace(notes); notes == "" {
			o.Notes = nil
		} else {
			o.Notes = &notes
		}
		o.UpdatedAt = s.now().UTC()
		if err := s.repo.Update(ctx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	return out, err
}

func (s *Service) emit(ctx context.Context, orderID, eventType string, payload any) error {
	ev, err := outbox.NewEvent(domain.AggregateType, orderID, eventType, payload, tracing.Traceparent(ctx))
	if err != nil {
		return err
	}
	return s.events.Append(ctx, ev)
}

func resolveSelection(in CreateInput, sess checkout.Session) (string, payment.Method, error) {
	addressID := sess.SelectedAddressID
	if in.AddressID != nil {
		addressID = in.AddressID
	}
	if addressID == nil || *addressID == "" {
		return "", "", apperr.Wrap(apperr.InvalidInput, "shipping address is required", domain.ErrShippingAddressNeeded)
	}

	method := sess.SelectedPaymentMethod
	if in.PaymentMethod != nil {
		method = in.PaymentMethod
	}
	if method == nil {
		return "", "", apperr.New(apperr.InvalidInput, "payment method is required")
	}
	if !method.Valid() {
		return "", "", apperr.Newf(apperr.InvalidInput, "unknown payment method %q", *method)
	}
	return *addressID, *method, nil
}

// checkStock reports every short line at once before any counter is touched.
func checkStock(sess checkout.Session, products map[string]catalog.Product) error {
	var short []apperr.Shortfall
	for _, it := range sess.Items {
		p, ok := products[it.ProductID]
		if !ok {
			return apperr.Wrap(apperr.NotFound, "product "+it.ProductID+" not found", catalog.ErrProductNotFound)
		}
		if p.StockQuantity < it.Quantity {
			short = append(short, apperr.Shortfall{ProductID: it.ProductID, Requested: it.Quantity, Available: p.StockQuantity})
		}
	}
	if len(short) > 0 {
		return apperr.Insufficient(short...)
	}
	return nil
}

func reserveLines(sess checkout.Session) []inventory.Line {
	lines := make([]inventory.Line, 0, len(sess.Items))
	for _, it := range sess.Items {
		lines = append(lines, inventory.Line{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return lines
}

func itemLines(o domain.Order) []inventory.Line {
	lines := make([]inventory.Line, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, inventory.Line{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return lines
}

func freezeItems(sess checkout.Session, products map[string]catalog.Product) []domain.Item {
	items := make([]domain.Item, 0, len(sess.Items))
	for _, it := range sess.Items {
		p := products[it.ProductID]
		item := domain.Item{
			ProductID:       p.ID,
			Name:            p.Name,
			ProductImage:    p.Image,
			Price:           p.FinalPrice,
			OriginalPrice:   p.Price,
			Quantity:        it.Quantity,
			DiscountPercent: p.DiscountPercent,
			Variant:         it.Variant,
		}
		if it.HasInsurance {
			item.Insurance = &domain.Insurance{Cost: pricing.InsuranceCost(p.FinalPrice, it.Quantity)}
		}
		items = append(items, item)
	}
	return items
}

func freezeAddress(a catalog.Address) domain.Address {
	return domain.Address{
		FullName:   a.FullName,
		Phone:      a.Phone,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

func checkOwner(o domain.Order, owner string) error {
	if owner != "" && o.UserID != owner {
		return apperr.Wrap(apperr.NotFound, "order not found", domain.ErrOrderNotFound)
	}
	return nil
}
