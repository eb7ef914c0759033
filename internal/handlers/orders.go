package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	domain "github.com/supplynet/api/internal/domain"
	"github.com/supplynet/api/internal/platform/httpx"
	"github.com/supplynet/api/internal/repositories"
	"github.com/supplynet/api/internal/services"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100

	idempotencyKeyHeader = "Idempotency-Key"
)

type placeOrderLineRequest struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	Unit      string          `json:"unit,omitempty"`
}

type placeOrderRequest struct {
	ProviderID            string                  `json:"provider_id"`
	DeliveryLocationID    string                  `json:"delivery_location_id"`
	RequestedDeliveryDate string                  `json:"requested_delivery_date"`
	Notes                 string                  `json:"notes,omitempty"`
	Lines                 []placeOrderLineRequest `json:"lines"`
}

type placeOrderResponse struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Status      string    `json:"status"`
	Total       string    `json:"total"`
	Currency    string    `json:"currency"`
	CreatedAt   time.Time `json:"created_at"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason,omitempty"`
}

type confirmOrderRequest struct {
	InternalNotes *string `json:"internal_notes,omitempty"`
}

type rejectOrderRequest struct {
	Reason string `json:"reason"`
}

type updateOrderRequest struct {
	Status        string  `json:"status"`
	InternalNotes *string `json:"internal_notes,omitempty"`
}

// parseOrderFilter reads the shared list query parameters. Date bounds accept
// RFC3339 timestamps or bare dates.
func parseOrderFilter(r *http.Request) (repositories.OrderListFilter, string) {
	query := r.URL.Query()
	filter := repositories.OrderListFilter{
		Status: domain.OrderStatus(strings.TrimSpace(query.Get("status"))),
	}
	if raw := strings.TrimSpace(query.Get("date_from")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			return filter, "date_from must be an RFC3339 timestamp or YYYY-MM-DD date"
		}
		filter.DateFrom = &ts
	}
	if raw := strings.TrimSpace(query.Get("date_to")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			return filter, "date_to must be an RFC3339 timestamp or YYYY-MM-DD date"
		}
		filter.DateTo = &ts
	}
	page, ok := parsePagination(r)
	if !ok {
		return filter, "limit must be a positive integer"
	}
	if page.Limit == 0 {
		page.Limit = defaultPageSize
	}
	if page.Limit > maxPageSize {
		page.Limit = maxPageSize
	}
	filter.Page = page
	return filter, ""
}

func parseTimeParam(raw string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts, nil
	}
	return time.Parse("2006-01-02", raw)
}

// BuyerHandlers exposes the order and invoice endpoints scoped to the caller's
// business membership.
type BuyerHandlers struct {
	orders   services.OrderService
	invoices services.InvoiceService
}

// NewBuyerHandlers constructs a new BuyerHandlers instance.
func NewBuyerHandlers(orders services.OrderService, invoices services.InvoiceService) *BuyerHandlers {
	return &BuyerHandlers{orders: orders, invoices: invoices}
}

// Routes registers the /buyer endpoints.
func (h *BuyerHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/orders", h.placeOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{orderID}", h.getOrder)
	r.Post("/orders/{orderID}/cancel", h.cancelOrder)
	r.Get("/invoices", h.listInvoices)
}

func (h *BuyerHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requirePrincipal(ctx, w)
	if !ok {
		return
	}
	businessID, ok := businessScope(ctx, w, principal)
	if !ok {
		return
	}

	var req placeOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(ctx, w, err.Error())
		return
	}

	var requestedDate time.Time
	if raw := strings.TrimSpace(req.RequestedDeliveryDate); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.BadRequest(ctx, w, "requested_delivery_date must be an RFC3339 timestamp or YYYY-MM-DD date")
			return
		}
		requestedDate = ts
	}

	cmd := services.PlaceOrderCommand{
		Principal:             principal,
		BusinessID:            businessID,
		ProviderID:            strings.TrimSpace(req.ProviderID),
		DeliveryLocationID:    strings.TrimSpace(req.DeliveryLocationID),
		RequestedDeliveryDate: requestedDate,
		Notes:                 req.Notes,
		IdempotencyKey:        strings.TrimSpace(r.Header.Get(idempotencyKeyHeader)),
	}
	for _, line := range req.Lines {
		cmd.Lines = append(cmd.Lines, services.OrderLineInput{
			ProductID: strings.TrimSpace(line.ProductID),
			Quantity:  line.Quantity,
			Unit:      strings.TrimSpace(line.Unit),
		})
	}

	result, err := h.orders.PlaceOrder(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	httpx.WriteJSON(w, status, placeOrderResponse{
		OrderID:     result.OrderID,
		OrderNumber: result.OrderNumber,
		Status:      string(result.Status),
		Total:       money(result.Total),
		Currency:    result.Currency,
		CreatedAt:   result.CreatedAt,
	})
}

func (h *BuyerHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requirePrincipal(ctx, w)
	if !ok {
		return
	}
	businessID, ok := businessScope(ctx, w, principal)
	if !ok {
		return
	}
	filter, problem := parseOrderFilter(r)
	if problem != "" {
		httpx.BadRequest(ctx, w, problem)
		return
	}

	page, err := h.orders.ListBusinessOrders(ctx, principal, businessID, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newPageView(page, buyerOrderSummary))
}

func (h *BuyerHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requirePrincipal(ctx, w)
	if !ok {
		return
	}
	businessID, ok := businessScope(ctx, w, principal)
	if !ok {
		return
	}

	detail, err := h.orders.GetBusinessOrder(ctx, principal, businessID, chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buyerOrderDetail(detail))
}

func (h *BuyerHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requirePrincipal(ctx, w)
	if !ok {
		return
	}
	businessID, ok := businessScope(ctx, w, principal)
	if !ok {
		return
	}

	var req cancelOrderRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.BadRequest(ctx, w, err.Error())
			return
		}
	}

	order, err := h.orders.CancelOrder(ctx, services.CancelOrderCommand{
		Principal:  principal,
		BusinessID: businessID,
		OrderID:    chi.URLParam(r, "orderID"),
		Reason:     strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buyerOrderSummary(order))
}

func (h *BuyerHandlers) listInvoices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requirePrincipal(ctx, w)
	if !ok {
		return
	}
	businessID, ok := businessScope(ctx, w, principal)
	if !ok {
		return
	}
	filter, problem := parseInvoiceFilter(r)
	if problem != "" {
		httpx.BadRequest(ctx, w, problem)
		return
	}

	page, err := h.invoices.ListBusinessInvoices(ctx, principal, businessID, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newPageView(page, func(inv domain.Invoice) invoiceView {
		return newInvoiceView(inv, false)
	}))
}

// ProviderHandlers exposes the order-handling and invoice endpoints scoped to
// the caller's provider membership.
type ProviderHandlers struct {
	orders   services.OrderService
	invoices services.InvoiceService
}

// NewProviderHandlers constructs a new ProviderHandlers instance.
func NewProviderHandlers(orders services.OrderService, invoices services.InvoiceService) *ProviderHandlers {
	return &ProviderHandlers{orders: orders, invoices: invoices}
}

// Routes registers the /provider endpoints.
func (h *ProviderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{orderID}", h.getOrder)
	r.Post("/orders/{orderID}/confirm", h.confirmOrder)
	r.Post("/orders/{orderID}/reject", h.rejectOrder)
	r.Patch("/orders/{orderID}", h.updateOrder)
	r.Get("/invoices", h.listInvoices)
}

func (h *ProviderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requirePrincipal(ctx, w)
	if !ok {
		return
	}
	providerID, ok := providerScope(ctx, w, principal)
	if !ok {
		return
	}
	filter, problem := parseOrderFilter(r)
	if problem != "" {
		httpx.BadRequest(ctx, w, problem)
		return
	}

	page, err := h.orders.ListProviderOrders(ctx, principal, providerID, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newPageView(page, providerOrderSummary))
}

func (h *ProviderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requirePrincipal(ctx, w)
	if !ok {
		return
	}
	providerID, ok := providerScope(ctx, w, principal)
	if !ok {
		return
	}

	detail, err := h.orders.GetProviderOrder(ctx, principal, providerID, chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, providerOrderDetail(detail))
}

func (h *ProviderHandlers) confirmOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requirePrincipal(ctx, w)
	if !ok {
		return
	}
	providerID, ok := providerScope(ctx, w, principal)
	if !ok {
		return
	}

	var req confirmOrderRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.BadRequest(ctx, w, err.Error())
			return
		}
	}

	order, err := h.orders.ConfirmOrder(ctx, services.ConfirmOrderCommand{
		Principal:     principal,
		ProviderID:    providerID,
		OrderID:       chi.URLParam(r, "orderID"),
		InternalNotes: req.InternalNotes,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, providerOrderSummary(order))
}

func (h *ProviderHandlers) rejectOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requirePrincipal(ctx, w)
	if !ok {
		return
	}
	providerID, ok := providerScope(ctx, w, principal)
	if !ok {
		return
	}

	var req rejectOrderRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.BadRequest(ctx, w, err.Error())
			return
		}
	}

	order, err := h.orders.RejectOrder(ctx, services.RejectOrderCommand{
		Principal:  principal,
		ProviderID: providerID,
		OrderID:    chi.URLParam(r, "orderID"),
		Reason:     strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, providerOrderSummary(order))
}

func (h *ProviderHandlers) updateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requirePrincipal(ctx, w)
	if !ok {
		return
	}
	providerID, ok := providerScope(ctx, w, principal)
	if !ok {
		return
	}

	var req updateOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(ctx, w, err.Error())
		return
	}

	order, err := h.orders.UpdateOrderStatus(ctx, services.UpdateOrderStatusCommand{
		Principal:     principal,
		ProviderID:    providerID,
		OrderID:       chi.URLParam(r, "orderID"),
		Status:        domain.OrderStatus(strings.TrimSpace(req.Status)),
		InternalNotes: req.InternalNotes,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, providerOrderSummary(order))
}

func (h *ProviderHandlers) listInvoices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requirePrincipal(ctx, w)
	if !ok {
		return
	}
	providerID, ok := providerScope(ctx, w, principal)
	if !ok {
		return
	}
	filter, problem := parseInvoiceFilter(r)
	if problem != "" {
		httpx.BadRequest(ctx, w, problem)
		return
	}

	page, err := h.invoices.ListProviderInvoices(ctx, principal, providerID, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newPageView(page, func(inv domain.Invoice) invoiceView {
		return newInvoiceView(inv, false)
	}))
}
