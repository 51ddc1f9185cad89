package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/furniture-store/internal/auth"
	"github.com/dmehra2102/furniture-store/internal/checkout/application"
	"github.com/dmehra2102/furniture-store/internal/checkout/domain"
	payment "github.com/dmehra2102/furniture-store/internal/payment/domain"
	"github.com/dmehra2102/furniture-store/pkg/httpx"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("checkout-http"),
	}
}

type createSessionReq struct {
	ProductIDs          []string `json:"productIds"`
	InsuranceProductIDs []string `json:"insuranceProductIds"`
}

type updateSessionReq struct {
	AddressID     *string         `json:"addressId"`
	PaymentMethod *payment.Method `json:"paymentMethod"`
	CouponCode    *string         `json:"couponCode"`
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.create)
	r.Delete("/", h.deleteAll)
	r.Get("/current", h.current)
	r.Get("/{sessionId}", h.read)
	r.Patch("/{sessionId}", h.update)
	r.Delete("/{sessionId}", h.delete)
	return r
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateCheckoutSession")
	defer span.End()

	var req createSessionReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	id, _ := auth.FromContext(ctx)
	sess, err := h.service.Create(ctx, id.UserID, req.ProductIDs, req.InsuranceProductIDs)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	span.SetAttributes(attribute.String("session.id", sess.ID))

	view, err := h.service.Read(ctx, id.UserID, sess.ID)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, view)
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CurrentCheckoutSession")
	defer span.End()

	id, _ := auth.FromContext(ctx)
	view, err := h.service.Read(ctx, id.UserID, "")
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) read(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ReadCheckoutSession")
	defer span.End()

	sessionID := chi.URLParam(r, "sessionId")
	span.SetAttributes(attribute.String("session.id", sessionID))

	id, _ := auth.FromContext(ctx)
	view, err := h.service.Read(ctx, id.UserID, sessionID)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateCheckoutSession")
	defer span.End()

	var req updateSessionReq
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	id, _ := auth.FromContext(ctx)
	sessionID := chi.URLParam(r, "sessionId")
	if _, err := h.service.Update(ctx, id.UserID, sessionID, domain.Selection{
		AddressID:     req.AddressID,
		PaymentMethod: req.PaymentMethod,
		CouponCode:    req.CouponCode,
	}); err != nil {
		httpx.Error(w, h.log, err)
		return
	}

	view, err := h.service.Read(ctx, id.UserID, sessionID)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "DeleteCheckoutSession")
	defer span.End()

	id, _ := auth.FromContext(ctx)
	if err := h.service.Delete(ctx, id.UserID, chi.URLParam(r, "sessionId")); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteAll(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "DeleteCheckoutSessions")
	defer span.End()

	id, _ := auth.FromContext(ctx)
	if err := h.service.Delete(ctx, id.UserID, ""); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
