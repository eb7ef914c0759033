package handlers

import (
	"bytes"
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
	"github.com/supplynet/api/internal/repositories"
	"github.com/supplynet/api/internal/services"
)

func newBuyerRouter(orders services.OrderService, invoices services.InvoiceService) chi.Router {
	router := chi.NewRouter()
	router.Route("/buyer", NewBuyerHandlers(orders, invoices).Routes)
	return router
}

func newProviderRouter(orders services.OrderService, invoices services.InvoiceService) chi.Router {
	router := chi.NewRouter()
	router.Route("/provider", NewProviderHandlers(orders, invoices).Routes)
	return router
}

func TestPlaceOrderHandlerCreatesOrder(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	var captured services.PlaceOrderCommand
	orders := &stubOrderService{
		placeFn: func(ctx context.Context, cmd services.PlaceOrderCommand) (services.PlaceOrderResult, error) {
			captured = cmd
			return services.PlaceOrderResult{
				OrderID:     "ord-1",
				OrderNumber: "ORD-LX2M8K-A3F9QZ",
				Status:      domain.OrderStatusSubmitted,
				Total:       decimal.RequireFromString("120"),
				Currency:    "GBP",
				CreatedAt:   now,
			}, nil
		},
	}
	router := newBuyerRouter(orders, &stubInvoiceService{})

	body := `{
		"provider_id": "prov-1",
		"delivery_location_id": "loc-1",
		"requested_delivery_date": "2026-03-20",
		"notes": "leave at the side door",
		"lines": [
			{"product_id": "prod-flour", "quantity": 10, "unit": "kg"},
			{"product_id": "prod-oil", "quantity": 4, "unit": "500ml"}
		]
	}`
	req := httptest.NewRequest(http.MethodPost, "/buyer/orders", strings.NewReader(body))
	req.Header.Set("Idempotency-Key", "retry-abc")
	rr := serve(router, authed(req, buyerTestPrincipal()))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	if captured.BusinessID != "biz-1" {
		t.Fatalf("expected business scope biz-1, got %q", captured.BusinessID)
	}
	if captured.ProviderID != "prov-1" || captured.DeliveryLocationID != "loc-1" {
		t.Fatalf("unexpected command scope: %#v", captured)
	}
	if captured.IdempotencyKey != "retry-abc" {
		t.Fatalf("expected idempotency key from header, got %q", captured.IdempotencyKey)
	}
	if len(captured.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(captured.Lines))
	}
	if !captured.Lines[0].Quantity.Equal(decimal.NewFromInt(10)) || captured.Lines[0].Unit != "kg" {
		t.Fatalf("unexpected first line: %#v", captured.Lines[0])
	}
	wantDate := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	if !captured.RequestedDeliveryDate.Equal(wantDate) {
		t.Fatalf("expected requested date %s, got %s", wantDate, captured.RequestedDeliveryDate)
	}

	var resp placeOrderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.OrderID != "ord-1" || resp.OrderNumber != "ORD-LX2M8K-A3F9QZ" {
		t.Fatalf("unexpected response: %#v", resp)
	}
	if resp.Total != "120.00" {
		t.Fatalf("expected total rendered at two places, got %q", resp.Total)
	}
}

func TestPlaceOrderHandlerReplayReturns200(t *testing.T) {
	orders := &stubOrderService{
		placeFn: func(ctx context.Context, cmd services.PlaceOrderCommand) (services.PlaceOrderResult, error) {
			return services.PlaceOrderResult{OrderID: "ord-1", Replayed: true}, nil
		},
	}
	router := newBuyerRouter(orders, &stubInvoiceService{})

	body := `{"provider_id": "prov-1", "delivery_location_id": "loc-1", "lines": [{"product_id": "p", "quantity": 1}]}`
	req := httptest.NewRequest(http.MethodPost, "/buyer/orders", strings.NewReader(body))
	req.Header.Set("Idempotency-Key", "retry-abc")
	rr := serve(router, authed(req, buyerTestPrincipal()))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 for replay, got %d", rr.Code)
	}
}

func TestPlaceOrderHandlerRejectsBadBody(t *testing.T) {
	router := newBuyerRouter(&stubOrderService{}, &stubInvoiceService{})

	cases := map[string]string{
		"empty":         "",
		"not json":      "not-json",
		"unknown field": `{"provider_id": "p", "surprise": true}`,
		"bad date":      `{"provider_id": "p", "delivery_location_id": "l", "requested_delivery_date": "soonish", "lines": []}`,
	}
	for name, body := range cases {
		req := httptest.NewRequest(http.MethodPost, "/buyer/orders", strings.NewReader(body))
		rr := serve(router, authed(req, buyerTestPrincipal()))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected status 400, got %d", name, rr.Code)
		}
	}
}

func TestPlaceOrderHandlerMapsServiceErrors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid input", services.ErrInvalidInput, http.StatusBadRequest, "validation_failed"},
		{"provider inactive", services.ErrProviderInactive, http.StatusBadRequest, "validation_failed"},
		{"forbidden", services.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"not found", services.ErrNotFound, http.StatusNotFound, "not_found"},
		{"conflict", services.ErrConflict, http.StatusConflict, "conflict"},
	}
	for _, tc := range cases {
		orders := &stubOrderService{
			placeFn: func(ctx context.Context, cmd services.PlaceOrderCommand) (services.PlaceOrderResult, error) {
				return services.PlaceOrderResult{}, tc.err
			},
		}
		router := newBuyerRouter(orders, &stubInvoiceService{})
		body := `{"provider_id": "p", "delivery_location_id": "l", "lines": [{"product_id": "p", "quantity": 1}]}`
		req := httptest.NewRequest(http.MethodPost, "/buyer/orders", strings.NewReader(body))
		rr := serve(router, authed(req, buyerTestPrincipal()))

		if rr.Code != tc.wantStatus {
			t.Fatalf("%s: expected status %d, got %d", tc.name, tc.wantStatus, rr.Code)
		}
		var envelope struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("%s: failed to parse error envelope: %v", tc.name, err)
		}
		if envelope.Error != tc.wantCode {
			t.Fatalf("%s: expected code %s, got %s", tc.name, tc.wantCode, envelope.Error)
		}
	}
}

func TestBuyerRoutesRequireAuth(t *testing.T) {
	router := newBuyerRouter(&stubOrderService{}, &stubInvoiceService{})

	req := httptest.NewRequest(http.MethodGet, "/buyer/orders", nil)
	rr := serve(router, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 without principal, got %d", rr.Code)
	}

	noMembership := requestctx.Principal{UserID: "user-x"}
	req = httptest.NewRequest(http.MethodGet, "/buyer/orders", nil)
	rr = serve(router, authed(req, noMembership))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 without business membership, got %d", rr.Code)
	}
}

func TestListBuyerOrdersParsesFilter(t *testing.T) {
	var captured repositories.OrderListFilter
	orders := &stubOrderService{
		listBusinessFn: func(ctx context.Context, principal requestctx.Principal, businessID string, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
			captured = filter
			return domain.CursorPage[domain.Order]{
				Items:      []domain.Order{{ID: "ord-1", OrderNumber: "ORD-X", ProviderID: "prov-1", Status: domain.OrderStatusSubmitted, Currency: "GBP"}},
				NextCursor: "ord-1",
			}, nil
		},
	}
	router := newBuyerRouter(orders, &stubInvoiceService{})

	req := httptest.NewRequest(http.MethodGet, "/buyer/orders?status=submitted&date_from=2026-03-01&limit=500&cursor=ord-9", nil)
	rr := serve(router, authed(req, buyerTestPrincipal()))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Status != domain.OrderStatusSubmitted {
		t.Fatalf("expected status filter submitted, got %q", captured.Status)
	}
	if captured.DateFrom == nil || !captured.DateFrom.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date_from: %#v", captured.DateFrom)
	}
	if captured.Page.Limit != maxPageSize {
		t.Fatalf("expected limit capped at %d, got %d", maxPageSize, captured.Page.Limit)
	}
	if captured.Page.Cursor != "ord-9" {
		t.Fatalf("expected cursor ord-9, got %q", captured.Page.Cursor)
	}

	var resp pageView[orderSummaryView]
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].OrderID != "ord-1" {
		t.Fatalf("unexpected page: %#v", resp)
	}
	if resp.NextCursor != "ord-1" {
		t.Fatalf("expected next cursor ord-1, got %q", resp.NextCursor)
	}
}

func TestListBuyerOrdersRejectsBadQuery(t *testing.T) {
	router := newBuyerRouter(&stubOrderService{}, &stubInvoiceService{})

	for name, query := range map[string]string{
		"bad limit": "limit=abc",
		"bad date":  "date_from=yesterday",
	} {
		req := httptest.NewRequest(http.MethodGet, "/buyer/orders?"+query, nil)
		rr := serve(router, authed(req, buyerTestPrincipal()))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected status 400, got %d", name, rr.Code)
		}
	}
}

func TestGetBuyerOrderOmitsInternalNotes(t *testing.T) {
	orders := &stubOrderService{
		getBusinessFn: func(ctx context.Context, principal requestctx.Principal, businessID, orderID string) (services.OrderDetail, error) {
			if orderID != "ord-1" {
				t.Fatalf("unexpected order id %q", orderID)
			}
			return services.OrderDetail{
				Order: domain.Order{
					ID:            "ord-1",
					OrderNumber:   "ORD-X",
					ProviderID:    "prov-1",
					Status:        domain.OrderStatusConfirmed,
					Notes:         "leave at the side door",
					InternalNotes: "credit check pending",
					Currency:      "GBP",
					Lines: []domain.OrderLine{
						{ProductID: "prod-flour", Name: "Bakers Flour", Quantity: decimal.NewFromInt(10), Unit: "kg", UnitPrice: decimal.NewFromInt(10), LineTotal: decimal.NewFromInt(100)},
					},
				},
				Delivery: &domain.Delivery{ID: "del-1", OrderID: "ord-1", Status: domain.DeliveryStatusScheduled},
			}, nil
		},
	}
	router := newBuyerRouter(orders, &stubInvoiceService{})

	req := httptest.NewRequest(http.MethodGet, "/buyer/orders/ord-1", nil)
	rr := serve(router, authed(req, buyerTestPrincipal()))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if bytes.Contains(rr.Body.Bytes(), []byte("internal_notes")) {
		t.Fatalf("buyer view must not expose internal notes: %s", rr.Body.String())
	}

	var resp orderDetailView
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.DeliveryID != "del-1" {
		t.Fatalf("expected delivery reference, got %#v", resp)
	}
	if len(resp.Lines) != 1 || resp.Lines[0].ProductID != "prod-flour" {
		t.Fatalf("unexpected lines: %#v", resp.Lines)
	}
}

func TestCancelBuyerOrder(t *testing.T) {
	var captured services.CancelOrderCommand
	orders := &stubOrderService{
		cancelFn: func(ctx context.Context, cmd services.CancelOrderCommand) (domain.Order, error) {
			captured = cmd
			return domain.Order{ID: cmd.OrderID, Status: domain.OrderStatusCancelled, Currency: "GBP"}, nil
		},
	}
	router := newBuyerRouter(orders, &stubInvoiceService{})

	req := httptest.NewRequest(http.MethodPost, "/buyer/orders/ord-1/cancel", strings.NewReader(`{"reason": "ordered twice"}`))
	rr := serve(router, authed(req, buyerTestPrincipal()))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.OrderID != "ord-1" || captured.Reason != "ordered twice" || captured.BusinessID != "biz-1" {
		t.Fatalf("unexpected cancel command: %#v", captured)
	}
}

func TestProviderOrderDetailIncludesLocationAndInternalNotes(t *testing.T) {
	orders := &stubOrderService{
		getProviderFn: func(ctx context.Context, principal requestctx.Principal, providerID, orderID string) (services.OrderDetail, error) {
			if providerID != "prov-1" {
				t.Fatalf("unexpected provider scope %q", providerID)
			}
			return services.OrderDetail{
				Order: domain.Order{
					ID:            "ord-1",
					BusinessID:    "biz-1",
					Status:        domain.OrderStatusConfirmed,
					InternalNotes: "credit check pending",
					Currency:      "GBP",
				},
				Delivery: &domain.Delivery{ID: "del-1"},
				Location: &domain.Location{AddressLine1: "1 Harbour Road", City: "Bristol", PostalCode: "BS1 4QA", Country: "GB"},
			}, nil
		},
	}
	router := newProviderRouter(orders, &stubInvoiceService{})

	req := httptest.NewRequest(http.MethodGet, "/provider/orders/ord-1", nil)
	rr := serve(router, authed(req, providerTestPrincipal()))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp orderDetailView
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.InternalNotes != "credit check pending" {
		t.Fatalf("expected internal notes in provider view, got %#v", resp)
	}
	if resp.DeliveryLocation == nil || resp.DeliveryLocation.City != "Bristol" {
		t.Fatalf("expected delivery location snapshot, got %#v", resp.DeliveryLocation)
	}
}

func TestConfirmOrderHandler(t *testing.T) {
	var captured services.ConfirmOrderCommand
	orders := &stubOrderService{
		confirmFn: func(ctx context.Context, cmd services.ConfirmOrderCommand) (domain.Order, error) {
			captured = cmd
			return domain.Order{ID: cmd.OrderID, BusinessID: "biz-1", Status: domain.OrderStatusConfirmed, Currency: "GBP"}, nil
		},
	}
	router := newProviderRouter(orders, &stubInvoiceService{})

	req := httptest.NewRequest(http.MethodPost, "/provider/orders/ord-1/confirm", strings.NewReader(`{"internal_notes": "pallet 4"}`))
	rr := serve(router, authed(req, providerTestPrincipal()))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.OrderID != "ord-1" || captured.ProviderID != "prov-1" {
		t.Fatalf("unexpected confirm command: %#v", captured)
	}
	if captured.InternalNotes == nil || *captured.InternalNotes != "pallet 4" {
		t.Fatalf("expected internal notes forwarded, got %#v", captured.InternalNotes)
	}
}

func TestConfirmOrderHandlerAllowsEmptyBody(t *testing.T) {
	orders := &stubOrderService{
		confirmFn: func(ctx context.Context, cmd services.ConfirmOrderCommand) (domain.Order, error) {
			return domain.Order{ID: cmd.OrderID, Status: domain.OrderStatusConfirmed, Currency: "GBP"}, nil
		},
	}
	router := newProviderRouter(orders, &stubInvoiceService{})

	req := httptest.NewRequest(http.MethodPost, "/provider/orders/ord-1/confirm", nil)
	rr := serve(router, authed(req, providerTestPrincipal()))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 for bodyless confirm, got %d", rr.Code)
	}
}

func TestUpdateOrderStatusHandler(t *testing.T) {
	var captured services.UpdateOrderStatusCommand
	orders := &stubOrderService{
		updateFn: func(ctx context.Context, cmd services.UpdateOrderStatusCommand) (domain.Order, error) {
			captured = cmd
			return domain.Order{ID: cmd.OrderID, Status: cmd.Status, Currency: "GBP"}, nil
		},
	}
	router := newProviderRouter(orders, &stubInvoiceService{})

	req := httptest.NewRequest(http.MethodPatch, "/provider/orders/ord-1", strings.NewReader(`{"status": "preparing", "internal_notes": "kitting"}`))
	rr := serve(router, authed(req, providerTestPrincipal()))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Status != domain.OrderStatusPreparing {
		t.Fatalf("expected status preparing, got %q", captured.Status)
	}
	if captured.InternalNotes == nil || *captured.InternalNotes != "kitting" {
		t.Fatalf("expected internal notes forwarded, got %#v", captured.InternalNotes)
	}
}

func TestRejectOrderHandler(t *testing.T) {
	var captured services.RejectOrderCommand
	orders := &stubOrderService{
		rejectFn: func(ctx context.Context, cmd services.RejectOrderCommand) (domain.Order, error) {
			captured = cmd
			return domain.Order{ID: cmd.OrderID, Status: domain.OrderStatusCancelled, Currency: "GBP"}, nil
		},
	}
	router := newProviderRouter(orders, &stubInvoiceService{})

	req := httptest.NewRequest(http.MethodPost, "/provider/orders/ord-1/reject", strings.NewReader(`{"reason": "out of stock"}`))
	rr := serve(router, authed(req, providerTestPrincipal()))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.Reason != "out of stock" {
		t.Fatalf("expected reason forwarded, got %#v", captured)
	}
}
