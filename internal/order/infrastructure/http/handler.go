package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/furniture-store/internal/auth"
	"github.com/dmehra2102/furniture-store/internal/order/application"
	"github.com/dmehra2102/furniture-store/internal/order/domain"
	payment "github.com/dmehra2102/furniture-store/internal/payment/domain"
	"github.com/dmehra2102/furniture-store/pkg/httpx"
)

type Handler struct {
	log           *slog.Logger
	service       *application.Service
	idempotent    func(http.Handler) http.Handler
	paymentStatus http.HandlerFunc
	tracer        trace.Tracer
}

// NewHandler wires the order routes. idempotent wraps the mutating routes and
// paymentStatus serves GET /{id}/payment; either may be nil.
func NewHandler(log *slog.Logger, service *application.Service, idempotent func(http.Handler) http.Handler, paymentStatus http.HandlerFunc) *Handler {
	if idempotent == nil {
		idempotent = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{
		log:           log,
		service:       service,
		idempotent:    idempotent,
		paymentStatus: paymentStatus,
		tracer:        otel.Tracer("order-http"),
	}
}

type createOrderReq struct {
	CheckoutSessionID string          `json:"checkoutSessionId"`
	AddressID         *string         `json:"addressId"`
	PaymentMethod     *payment.Method `json:"paymentMethod"`
	Notes             *string         `json:"notes"`
}

type cancelOrderReq struct {
	Reason string `json:"reason"`
}

type notesReq struct {
	Notes string `json:"notes"`
}

type advanceStatusReq struct {
	Status         domain.Status `json:"status"`
	TrackingNumber *string       `json:"trackingNumber"`
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.listOrders)
	r.With(h.idempotent).Post("/", h.createOrder)
	r.Get("/{id}", h.getOrder)
	r.With(h.idempotent).Post("/{id}/cancel", h.cancelOrder)
	r.Delete("/{id}", h.deleteOrder)
	r.Patch("/{id}/notes", h.updateNotes)
	if h.paymentStatus != nil {
		r.Get("/{id}/payment", h.paymentStatus)
	}
	return r
}

// AdminRoutes must be mounted behind auth.RequireAdmin.
func (h *Handler) AdminRoutes() http.Handler {
	r := chi.NewRouter()
	r.Get("/{id}", h.getOrder)
	r.Post("/{id}/status", h.advanceStatus)
	return r
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	var req createOrderReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	id, _ := auth.FromContext(ctx)
	o, err := h.service.Create(ctx, application.CreateInput{
		UserID:        id.UserID,
		Email:         id.Email,
		SessionID:     req.CheckoutSessionID,
		AddressID:     req.AddressID,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
	})
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	span.SetAttributes(attribute.String("order.id", o.ID), attribute.String("order.number", o.OrderNumber))
	httpx.JSON(w, http.StatusCreated, o)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListOrders")
	defer span.End()

	id, _ := auth.FromContext(ctx)
	orders, err := h.service.List(ctx, id.UserID)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	httpx.JSON(w, http.StatusOK, orders)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()

	orderID := chi.URLParam(r, "id")
	span.SetAttributes(attribute.String("order.id", orderID))
	o, err := h.service.Get(ctx, owner(r), orderID)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CancelOrder")
	defer span.End()

	var req cancelOrderReq
	if r.ContentLength != 0 {
		if err := httpx.Decode(r, &req); err != nil {
			httpx.Error(w, h.log, err)
			return
		}
	}
	orderID := chi.URLParam(r, "id")
	span.SetAttributes(attribute.String("order.id", orderID))
	o, err := h.service.Cancel(ctx, owner(r), orderID, req.Reason)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "DeleteOrder")
	defer span.End()

	if err := h.service.Delete(ctx, owner(r), chi.URLParam(r, "id")); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) updateNotes(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateOrderNotes")
	defer span.End()

	var req notesReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	o, err := h.service.UpdateNotes(ctx, owner(r), chi.URLParam(r, "id"), req.Notes)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) advanceStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "AdvanceOrderStatus")
	defer span.End()

	var req advanceStatusReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	orderID := chi.URLParam(r, "id")
	span.SetAttributes(attribute.String("order.id", orderID), attribute.String("order.status", string(req.Status)))
	o, err := h.service.AdvanceStatus(ctx, orderID, req.Status, req.TrackingNumber)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

// owner scopes lookups to the caller; admins see every order.
func owner(r *http.Request) string {
	id, _ := auth.FromContext(r.Context())
	if id.Role == auth.RoleAdmin {
		return ""
	}
	return id.UserID
}
