package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/supplynet/api/internal/domain"
	"github.com/supplynet/api/internal/platform/httpx"
	"github.com/supplynet/api/internal/services"
)

type updateDeliveryRequest struct {
	Status              string  `json:"status"`
	TrackingCode        *string `json:"tracking_code,omitempty"`
	EstimatedDeliveryAt *string `json:"estimated_delivery_at,omitempty"`
	ActualDeliveryAt    *string `json:"actual_delivery_at,omitempty"`
}

// DeliveryHandlers exposes delivery tracking reads and provider-side updates.
type DeliveryHandlers struct {
	deliveries services.DeliveryService
}

// NewDeliveryHandlers constructs a new DeliveryHandlers instance.
func NewDeliveryHandlers(deliveries services.DeliveryService) *DeliveryHandlers {
	return &DeliveryHandlers{deliveries: deliveries}
}

// Routes registers the /deliveries endpoints.
func (h *DeliveryHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{deliveryID}", h.getDelivery)
	r.Patch("/{deliveryID}", h.updateDelivery)
}

func (h *DeliveryHandlers) getDelivery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requirePrincipal(ctx, w)
	if !ok {
		return
	}

	delivery, err := h.deliveries.GetDelivery(ctx, principal, chi.URLParam(r, "deliveryID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newDeliveryView(delivery))
}

func (h *DeliveryHandlers) updateDelivery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requirePrincipal(ctx, w)
	if !ok {
		return
	}

	var req updateDeliveryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(ctx, w, err.Error())
		return
	}

	cmd := services.UpdateDeliveryCommand{
		Principal:    principal,
		DeliveryID:   chi.URLParam(r, "deliveryID"),
		Status:       domain.DeliveryStatus(strings.TrimSpace(req.Status)),
		TrackingCode: req.TrackingCode,
	}
	if req.EstimatedDeliveryAt != nil {
		ts, err := time.Parse(time.RFC3339, *req.EstimatedDeliveryAt)
		if err != nil {
			httpx.BadRequest(ctx, w, "estimated_delivery_at must be an RFC3339 timestamp")
			return
		}
		cmd.EstimatedDeliveryAt = &ts
	}
	if req.ActualDeliveryAt != nil {
		ts, err := time.Parse(time.RFC3339, *req.ActualDeliveryAt)
		if err != nil {
			httpx.BadRequest(ctx, w, "actual_delivery_at must be an RFC3339 timestamp")
			return
		}
		cmd.ActualDeliveryAt = &ts
	}

	delivery, err := h.deliveries.UpdateDelivery(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newDeliveryView(delivery))
}
