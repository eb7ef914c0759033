package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	domain "github.com/supplynet/api/internal/domain"
	"github.com/supplynet/api/internal/platform/requestctx"
	"github.com/supplynet/api/internal/services"
)

func newPaymentsRouter(payments services.PaymentService) chi.Router {
	router := chi.NewRouter()
	router.Route("/payments", NewPaymentHandlers(payments).Routes)
	NewWebhookHandlers(payments).Routes(router)
	return router
}

func TestCreateCheckoutSessionHandler(t *testing.T) {
	var captured services.CreateCheckoutSessionCommand
	payments := &stubPaymentService{
		checkoutFn: func(ctx context.Context, cmd services.CreateCheckoutSessionCommand) (services.CheckoutRedirect, error) {
			captured = cmd
			return services.CheckoutRedirect{URL: "https://checkout.stripe.com/c/pay/cs_test_1", SessionID: "cs_test_1"}, nil
		},
	}
	router := newPaymentsRouter(payments)

	req := httptest.NewRequest(http.MethodPost, "/payments/checkout-session", strings.NewReader(`{"invoice_id": "inv-1"}`))
	rr := serve(router, authed(req, buyerTestPrincipal()))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.InvoiceID != "inv-1" {
		t.Fatalf("expected invoice inv-1, got %q", captured.InvoiceID)
	}

	var resp checkoutSessionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.URL != "https://checkout.stripe.com/c/pay/cs_test_1" || resp.SessionID != "cs_test_1" {
		t.Fatalf("unexpected response: %#v", resp)
	}
}

func TestCreateCheckoutSessionHandlerValidation(t *testing.T) {
	router := newPaymentsRouter(&stubPaymentService{})

	req := httptest.NewRequest(http.MethodPost, "/payments/checkout-session", strings.NewReader(`{"invoice_id": "  "}`))
	rr := serve(router, authed(req, buyerTestPrincipal()))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for blank invoice_id, got %d", rr.Code)
	}
}

func TestCreateCheckoutSessionHandlerProviderDown(t *testing.T) {
	payments := &stubPaymentService{
		checkoutFn: func(ctx context.Context, cmd services.CreateCheckoutSessionCommand) (services.CheckoutRedirect, error) {
			return services.CheckoutRedirect{}, services.ErrPaymentUnavailable
		},
	}
	router := newPaymentsRouter(payments)

	req := httptest.NewRequest(http.MethodPost, "/payments/checkout-session", strings.NewReader(`{"invoice_id": "inv-1"}`))
	rr := serve(router, authed(req, buyerTestPrincipal()))

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", rr.Code)
	}
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("failed to parse error envelope: %v", err)
	}
	if envelope.Error != "payment_provider_unavailable" {
		t.Fatalf("expected payment_provider_unavailable, got %s", envelope.Error)
	}
}

func TestListPaymentsHandler(t *testing.T) {
	paidAt := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	var capturedPage domain.Pagination
	payments := &stubPaymentService{
		listFn: func(ctx context.Context, principal requestctx.Principal, page domain.Pagination) (domain.CursorPage[domain.Payment], error) {
			capturedPage = page
			return domain.CursorPage[domain.Payment]{
				Items: []domain.Payment{{
					ID:              "pay-1",
					InvoiceID:       "inv-1",
					BusinessID:      "biz-1",
					Amount:          decimal.RequireFromString("120"),
					Currency:        "GBP",
					Status:          domain.PaymentStatusCompleted,
					Method:          "stripe",
					PaymentIntentID: "pi_777",
					PaidAt:          &paidAt,
				}},
			}, nil
		},
	}
	router := newPaymentsRouter(payments)

	req := httptest.NewRequest(http.MethodGet, "/payments?limit=5", nil)
	rr := serve(router, authed(req, buyerTestPrincipal()))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if capturedPage.Limit != 5 {
		t.Fatalf("expected limit 5, got %d", capturedPage.Limit)
	}

	var resp pageView[paymentView]
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("expected 1 payment, got %d", len(resp.Items))
	}
	payment := resp.Items[0]
	if payment.Amount != "120.00" || payment.Method != "stripe" || payment.PaymentIntentID != "pi_777" {
		t.Fatalf("unexpected payment view: %#v", payment)
	}
}

func TestWebhookHandlerProcessesEvent(t *testing.T) {
	var capturedPayload []byte
	var capturedSignature string
	payments := &stubPaymentService{
		webhookFn: func(ctx context.Context, payload []byte, signature string) (services.WebhookOutcome, error) {
			capturedPayload = payload
			capturedSignature = signature
			return services.WebhookOutcome{Processed: true, InvoiceID: "inv-1", PaymentID: "pay-1"}, nil
		},
	}
	router := newPaymentsRouter(payments)

	body := `{"type": "checkout.session.completed"}`
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(body))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	rr := serve(router, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if string(capturedPayload) != body {
		t.Fatalf("expected raw payload forwarded, got %q", capturedPayload)
	}
	if capturedSignature != "t=1,v1=abc" {
		t.Fatalf("expected signature header forwarded, got %q", capturedSignature)
	}

	var resp webhookResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if !resp.Received || !resp.Processed || resp.PaymentID != "pay-1" {
		t.Fatalf("unexpected response: %#v", resp)
	}
}

func TestWebhookHandlerNoOpStillReturns200(t *testing.T) {
	payments := &stubPaymentService{
		webhookFn: func(ctx context.Context, payload []byte, signature string) (services.WebhookOutcome, error) {
			return services.WebhookOutcome{Processed: false}, nil
		},
	}
	router := newPaymentsRouter(payments)

	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(`{"type": "invoice.created"}`))
	rr := serve(router, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 for ignored event, got %d", rr.Code)
	}
	var resp webhookResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Processed {
		t.Fatalf("expected processed false for no-op")
	}
}

func TestWebhookHandlerRejectsBadSignature(t *testing.T) {
	payments := &stubPaymentService{
		webhookFn: func(ctx context.Context, payload []byte, signature string) (services.WebhookOutcome, error) {
			return services.WebhookOutcome{}, services.ErrWebhookSignature
		},
	}
	router := newPaymentsRouter(payments)

	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=wrong")
	rr := serve(router, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for bad signature, got %d", rr.Code)
	}
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("failed to parse error envelope: %v", err)
	}
	if envelope.Error != "invalid_signature" {
		t.Fatalf("expected invalid_signature, got %s", envelope.Error)
	}
}
