package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	order "github.com/dmehra2102/furniture-store/internal/order/domain"
	"github.com/dmehra2102/furniture-store/internal/payment/domain"
	"github.com/dmehra2102/furniture-store/pkg/apperr"
	"github.com/dmehra2102/furniture-store/pkg/outbox"
	"github.com/dmehra2102/furniture-store/pkg/tracing"
)

type Service struct {
	log      *slog.Logger
	repo     PaymentRepository
	orders   Orders
	gateway  Gateway
	events   EventSink
	tx       Transactor
	currency string
	timeout  time.Duration
	now      func() time.Time
}

type Deps struct {
	Repo     PaymentRepository
	Orders   Orders
	Gateway  Gateway
	Events   EventSink
	Tx       Transactor
	Currency string
	// Timeout bounds each gateway call.
	Timeout time.Duration
}

func NewService(log *slog.Logger, d Deps) *Service {
	if d.Timeout <= 0 {
		d.Timeout = 10 * time.Second
	}
	return &Service{
		log:      log,
		repo:     d.Repo,
		orders:   d.Orders,
		gateway:  d.Gateway,
		events:   d.Events,
		tx:       d.Tx,
		currency: d.Currency,
		timeout:  d.Timeout,
		now:      time.Now,
	}
}

type InitiateResult struct {
	Payment      domain.Payment `json:"payment"`
	GatewayOrder *GatewayOrder  `json:"gatewayOrder,omitempty"`
	// Confirmed is true when no online payment step follows (cash on delivery).
	Confirmed bool `json:"confirmed"`
}

type VerifyInput struct {
	GatewayOrderID   string `json:"gatewayOrderId"`
	GatewayPaymentID string `json:"gatewayPaymentId"`
	Signature        string `json:"signature"`
}

type OrderSummary struct {
	ID            string              `json:"orderId"`
	OrderNumber   string              `json:"orderNumber"`
	Status        order.Status        `json:"orderStatus"`
	PaymentStatus order.PaymentStatus `json:"paymentStatus"`
	TotalAmount   int64               `json:"totalAmount"`
}

type StatusView struct {
	Payment domain.Payment `json:"payment"`
	Order   OrderSummary   `json:"order"`
}

// Initiate starts payment for an order. The pending record is stored before
// the gateway is called, so a timed out call leaves a retryable payment.
func (s *Service) Initiate(ctx context.Context, owner, orderID string) (InitiateResult, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return InitiateResult{}, err
	}
	if owner != "" && o.UserID != owner {
		return InitiateResult{}, apperr.Wrap(apperr.NotFound, "order not found", order.ErrOrderNotFound)
	}
	switch {
	case o.Status == order.StatusCancelled || o.Status == order.StatusReturned:
		return InitiateResult{}, apperr.Newf(apperr.InvalidStateTransition, "order is %s", o.Status)
	case o.PaymentStatus == order.PaymentPaid || o.PaymentStatus == order.PaymentRefunded:
		return InitiateResult{}, apperr.Newf(apperr.InvalidStateTransition, "order payment is already %s", o.PaymentStatus)
	}
	if o.TotalAmount != o.PriceBreakdown.GrandTotal {
		return InitiateResult{}, s.mismatch(o.ID, o.PriceBreakdown.GrandTotal, o.TotalAmount)
	}

	p, err := s.pendingPayment(ctx, o)
	if err != nil {
		return InitiateResult{}, err
	}
	if !o.PaymentMethod.UsesGateway() {
		return InitiateResult{Payment: p, Confirmed: true}, nil
	}
	if p.GatewayOrderID != nil {
		return InitiateResult{Payment: p, GatewayOrder: &GatewayOrder{ID: *p.GatewayOrderID, Amount: p.Amount, Currency: p.Currency}}, nil
	}

	gctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	gw, err := s.gateway.CreateOrder(gctx, p.Amount, p.Currency, p.ID)
	if err != nil {
		s.log.Warn("gateway order failed", "payment_id", p.ID, "order_id", o.ID, "err", err)
		return InitiateResult{}, apperr.Wrap(apperr.GatewayError, "payment gateway unavailable, retry later", err)
	}
	if gw.Amount != p.Amount {
		return InitiateResult{}, s.mismatch(o.ID, p.Amount, gw.Amount)
	}

	p.GatewayOrderID = &gw.ID
	p.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, p); err != nil {
		return InitiateResult{}, err
	}
	s.log.Info("payment initiated", "payment_id", p.ID, "order_id", o.ID, "gateway_order_id", gw.ID, "amount", p.Amount)
	return InitiateResult{Payment: p, GatewayOrder: &gw}, nil
}

// pendingPayment returns the order's payment in pending state, creating it or
// reopening a failed attempt.
func (s *Service) pendingPayment(ctx context.Context, o order.Order) (domain.Payment, error) {
	now := s.now().UTC()
	p, err := s.repo.GetByOrder(ctx, o.ID)
	if apperr.Is(err, apperr.NotFound) {
		gateway := s.gateway.Name()
		if !o.PaymentMethod.UsesGateway() {
			gateway = domain.GatewayNone
		}
		p = domain.Payment{
			ID:        uuid.NewString(),
			OrderID:   o.ID,
			UserID:    o.UserID,
			Amount:    o.TotalAmount,
			Currency:  s.currency,
			Method:    o.PaymentMethod,
			Gateway:   gateway,
			Status:    domain.StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.Create(ctx, p); err != nil {
			return domain.Payment{}, err
		}
		return p, nil
	}
	if err != nil {
		return domain.Payment{}, err
	}

	if p.Amount != o.TotalAmount {
		return domain.Payment{}, s.mismatch(o.ID, o.TotalAmount, p.Amount)
	}
	switch p.Status {
	case domain.StatusPending:
		return p, nil
	case domain.StatusFailed:
		p.Status = domain.StatusPending
		p.FailureReason = nil
		p.GatewayOrderID = nil
		p.GatewayTransactionID = nil
		p.UpdatedAt = now
		if err := s.repo.Update(ctx, p); err != nil {
			return domain.Payment{}, err
		}
		s.log.Info("payment reopened after failure", "payment_id", p.ID, "order_id", o.ID)
		return p, nil
	default:
		return domain.Payment{}, apperr.Newf(apperr.InvalidStateTransition, "payment is already %s", p.Status)
	}
}

// Verify checks the gateway signature. Verifying a successful payment again
// returns it unchanged. A bad signature marks the payment failed and leaves
// the order pending so the customer can pay again.
func (s *Service) Verify(ctx context.Context, owner, paymentID string, in VerifyInput) (domain.Payment, error) {
	if in.GatewayOrderID == "" || in.GatewayPaymentID == "" || in.Signature == "" {
		return domain.Payment{}, apperr.New(apperr.InvalidInput, "gatewayOrderId, gatewayPaymentId and signature are required")
	}

	var out domain.Payment
	var rejected error
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if owner != "" && p.UserID != owner {
			return apperr.Wrap(apperr.NotFound, "payment not found", domain.ErrPaymentNotFound)
		}
		if p.Status == domain.StatusSuccess {
			out = p
			return nil
		}
		if p.Status != domain.StatusPending || p.GatewayOrderID == nil {
			return apperr.Newf(apperr.InvalidStateTransition, "payment %s cannot be verified while %s", p.ID, p.Status)
		}

		now := s.now().UTC()
		if in.GatewayOrderID != *p.GatewayOrderID || !s.gateway.VerifySignature(in.GatewayOrderID, in.GatewayPaymentID, in.Signature) {
			reason := "signature verification failed"
			p.Status = domain.StatusFailed
			p.FailureReason = &reason
			p.UpdatedAt = now
			if err := s.repo.Update(ctx, p); err != nil {
				return err
			}
			s.log.Warn("payment verification failed", "payment_id", p.ID, "order_id", p.OrderID)
			out = p
			rejected = apperr.New(apperr.InvalidInput, "payment signature is invalid")
			return nil
		}

		o, err := s.orders.GetForUpdate(ctx, p.OrderID)
		if err != nil {
			return err
		}
		if p.Amount != o.TotalAmount {
			return s.mismatch(o.ID, o.TotalAmount, p.Amount)
		}

		p.Status = domain.StatusSuccess
		p.GatewayTransactionID = &in.GatewayPaymentID
		p.FailureReason = nil
		p.UpdatedAt = now
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}

		if o.Status == order.StatusCancelled {
			// money arrived after cancellation; refund is handled out of band
			s.log.Warn("payment verified for cancelled order", "payment_id", p.ID, "order_id", o.ID)
		} else {
			o.MarkPaid(now)
			if err := s.orders.Update(ctx, o); err != nil {
				return err
			}
		}

		ev, err := outbox.NewEvent(order.AggregateType, o.ID, order.EventPaymentVerified, order.PaymentVerified{
			OrderID:     o.ID,
			OrderNumber: o.OrderNumber,
			PaymentID:   p.ID,
			Amount:      p.Amount,
		}, tracing.Traceparent(ctx))
		if err != nil {
			return err
		}
		if err := s.events.Append(ctx, ev); err != nil {
			return err
		}
		s.log.Info("payment verified", "payment_id", p.ID, "order_id", o.ID)
		out = p
		return nil
	})
	if err != nil {
		return domain.Payment{}, err
	}
	if rejected != nil {
		return out, rejected
	}
	return out, nil
}

func (s *Service) GetStatus(ctx context.Context, owner, paymentID string) (StatusView, error) {
	p, err := s.repo.Get(ctx, paymentID)
	if err != nil {
		return StatusView{}, err
	}
	return s.statusView(ctx, owner, p)
}

func (s *Service) GetStatusByOrder(ctx context.Context, owner, orderID string) (StatusView, error) {
	p, err := s.repo.GetByOrder(ctx, orderID)
	if err != nil {
		return StatusView{}, err
	}
	return s.statusView(ctx, owner, p)
}

func (s *Service) statusView(ctx context.Context, owner string, p domain.Payment) (StatusView, error) {
	if owner != "" && p.UserID != owner {
		return StatusView{}, apperr.Wrap(apperr.NotFound, "payment not found", domain.ErrPaymentNotFound)
	}
	o, err := s.orders.Get(ctx, p.OrderID)
	if err != nil {
		return StatusView{}, err
	}
	return StatusView{
		Payment: p,
		Order: OrderSummary{
			ID:            o.ID,
			OrderNumber:   o.OrderNumber,
			Status:        o.Status,
			PaymentStatus: o.PaymentStatus,
			TotalAmount:   o.TotalAmount,
		},
	}, nil
}

func (s *Service) mismatch(orderID string, want, got int64) error {
	s.log.Error("payment amount mismatch", "order_id", orderID, "expected", want, "actual", got)
	return apperr.Newf(apperr.AmountMismatch, "payment amount %d does not match order total %d", got, want)
}
