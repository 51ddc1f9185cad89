package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/furniture-store/internal/auth"
	"github.com/dmehra2102/furniture-store/internal/payment/application"
	"github.com/dmehra2102/furniture-store/pkg/httpx"
)

type Handler struct {
	log        *slog.Logger
	service    *application.Service
	idempotent func(http.Handler) http.Handler
	tracer     trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service, idempotent func(http.Handler) http.Handler) *Handler {
	if idempotent == nil {
		idempotent = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{
		log:        log,
		service:    service,
		idempotent: idempotent,
		tracer:     otel.Tracer("payment-http"),
	}
}

type initiateReq struct {
	OrderID string `json:"orderId"`
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.With(h.idempotent).Post("/", h.initiate)
	r.With(h.idempotent).Post("/{id}/verify", h.verify)
	r.Get("/{id}", h.status)
	return r
}

func (h *Handler) initiate(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "InitiatePayment")
	defer span.End()

	var req initiateReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	span.SetAttributes(attribute.String("order.id", req.OrderID))
	res, err := h.service.Initiate(ctx, owner(r), req.OrderID)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, res)
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "VerifyPayment")
	defer span.End()

	var req application.VerifyInput
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	paymentID := chi.URLParam(r, "id")
	span.SetAttributes(attribute.String("payment.id", paymentID))
	p, err := h.service.Verify(ctx, owner(r), paymentID, req)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PaymentStatus")
	defer span.End()

	view, err := h.service.GetStatus(ctx, owner(r), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

// StatusByOrder serves the payment status under the order routes, where the
// URL parameter is the order id.
func (h *Handler) StatusByOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PaymentStatusByOrder")
	defer span.End()

	view, err := h.service.GetStatusByOrder(ctx, owner(r), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func owner(r *http.Request) string {
	id, _ := auth.FromContext(r.Context())
	if id.Role == auth.RoleAdmin {
		return ""
	}
	return id.UserID
}
