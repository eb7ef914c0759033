package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/supplynet/api/internal/platform/httpx"
	"github.com/supplynet/api/internal/services"
)

const (
	stripeSignatureHeader = "Stripe-Signature"
	maxWebhookBodyBytes   = 256 * 1024
)

type createCheckoutSessionRequest struct {
	InvoiceID string `json:"invoice_id"`
}

type checkoutSessionResponse struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id"`
}

type webhookResponse struct {
	Received  bool   `json:"received"`
	Processed bool   `json:"processed"`
	InvoiceID string `json:"invoice_id,omitempty"`
	PaymentID string `json:"payment_id,omitempty"`
}

// PaymentHandlers exposes checkout-session creation and payment listings.
type PaymentHandlers struct {
	payments services.PaymentService
}

// NewPaymentHandlers constructs a new PaymentHandlers instance.
func NewPaymentHandlers(payments services.PaymentService) *PaymentHandlers {
	return &PaymentHandlers{payments: payments}
}

// Routes registers the /payments endpoints.
func (h *PaymentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/checkout-session", h.createCheckoutSession)
	r.Get("/", h.listPayments)
}

func (h *PaymentHandlers) createCheckoutSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requirePrincipal(ctx, w)
	if !ok {
		return
	}

	var req createCheckoutSessionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(ctx, w, err.Error())
		return
	}
	if strings.TrimSpace(req.InvoiceID) == "" {
		httpx.BadRequest(ctx, w, "invoice_id is required")
		return
	}

	redirect, err := h.payments.CreateCheckoutSession(ctx, services.CreateCheckoutSessionCommand{
		Principal: principal,
		InvoiceID: strings.TrimSpace(req.InvoiceID),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, checkoutSessionResponse{
		URL:       redirect.URL,
		SessionID: redirect.SessionID,
	})
}

func (h *PaymentHandlers) listPayments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requirePrincipal(ctx, w)
	if !ok {
		return
	}
	page, ok := parsePagination(r)
	if !ok {
		httpx.BadRequest(ctx, w, "limit must be a positive integer")
		return
	}
	if page.Limit == 0 {
		page.Limit = defaultPageSize
	}
	if page.Limit > maxPageSize {
		page.Limit = maxPageSize
	}

	result, err := h.payments.ListPayments(ctx, principal, page)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newPageView(result, newPaymentView))
}

// WebhookHandlers receives payment provider callbacks. The endpoint sits
// outside the bearer-token middleware; the raw body signature is the
// authentication.
type WebhookHandlers struct {
	payments services.PaymentService
}

// NewWebhookHandlers constructs a new WebhookHandlers instance.
func NewWebhookHandlers(payments services.PaymentService) *WebhookHandlers {
	return &WebhookHandlers{payments: payments}
}

// Routes registers the webhook endpoint on the API root.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/payments/webhook", h.handleWebhook)
}

func (h *WebhookHandlers) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		httpx.BadRequest(ctx, w, "unable to read webhook payload")
		return
	}

	outcome, err := h.payments.HandleWebhook(ctx, payload, r.Header.Get(stripeSignatureHeader))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, webhookResponse{
		Received:  true,
		Processed: outcome.Processed,
		InvoiceID: outcome.InvoiceID,
		PaymentID: outcome.PaymentID,
	})
}
