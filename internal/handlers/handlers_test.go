package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"

	domain "github.com/supplynet/api/internal/domain"
	"github.com/supplynet/api/internal/platform/requestctx"
	"github.com/supplynet/api/internal/repositories"
	"github.com/supplynet/api/internal/services"
)

var errStubNotImplemented = errors.New("not implemented")

func buyerTestPrincipal() requestctx.Principal {
	return requestctx.Principal{
		UserID: "user-buyer",
		Email:  "owner@bakery.example",
		Memberships: []requestctx.Membership{
			{BusinessID: "biz-1", Role: "owner"},
		},
	}
}

func providerTestPrincipal() requestctx.Principal {
	return requestctx.Principal{
		UserID: "user-provider",
		Email:  "ops@harborfoods.example",
		Memberships: []requestctx.Membership{
			{ProviderID: "prov-1", Role: "manager"},
		},
	}
}

func authed(req *http.Request, principal requestctx.Principal) *http.Request {
	return req.WithContext(requestctx.WithPrincipal(req.Context(), principal))
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

type stubOrderService struct {
	placeFn        func(context.Context, services.PlaceOrderCommand) (services.PlaceOrderResult, error)
	getBusinessFn  func(context.Context, requestctx.Principal, string, string) (services.OrderDetail, error)
	getProviderFn  func(context.Context, requestctx.Principal, string, string) (services.OrderDetail, error)
	listBusinessFn func(context.Context, requestctx.Principal, string, repositories.OrderListFilter) (domain.CursorPage[domain.Order], error)
	listProviderFn func(context.Context, requestctx.Principal, string, repositories.OrderListFilter) (domain.CursorPage[domain.Order], error)
	confirmFn      func(context.Context, services.ConfirmOrderCommand) (domain.Order, error)
	rejectFn       func(context.Context, services.RejectOrderCommand) (domain.Order, error)
	updateFn       func(context.Context, services.UpdateOrderStatusCommand) (domain.Order, error)
	cancelFn       func(context.Context, services.CancelOrderCommand) (domain.Order, error)
}

func (s *stubOrderService) PlaceOrder(ctx context.Context, cmd services.PlaceOrderCommand) (services.PlaceOrderResult, error) {
	if s.placeFn != nil {
		return s.placeFn(ctx, cmd)
	}
	return services.PlaceOrderResult{}, errStubNotImplemented
}

func (s *stubOrderService) GetBusinessOrder(ctx context.Context, principal requestctx.Principal, businessID, orderID string) (services.OrderDetail, error) {
	if s.getBusinessFn != nil {
		return s.getBusinessFn(ctx, principal, businessID, orderID)
	}
	return services.OrderDetail{}, errStubNotImplemented
}

func (s *stubOrderService) GetProviderOrder(ctx context.Context, principal requestctx.Principal, providerID, orderID string) (services.OrderDetail, error) {
	if s.getProviderFn != nil {
		return s.getProviderFn(ctx, principal, providerID, orderID)
	}
	return services.OrderDetail{}, errStubNotImplemented
}

func (s *stubOrderService) ListBusinessOrders(ctx context.Context, principal requestctx.Principal, businessID string, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if s.listBusinessFn != nil {
		return s.listBusinessFn(ctx, principal, businessID, filter)
	}
	return domain.CursorPage[domain.Order]{}, nil
}

func (s *stubOrderService) ListProviderOrders(ctx context.Context, principal requestctx.Principal, providerID string, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if s.listProviderFn != nil {
		return s.listProviderFn(ctx, principal, providerID, filter)
	}
	return domain.CursorPage[domain.Order]{}, nil
}

func (s *stubOrderService) ConfirmOrder(ctx context.Context, cmd services.ConfirmOrderCommand) (domain.Order, error) {
	if s.confirmFn != nil {
		return s.confirmFn(ctx, cmd)
	}
	return domain.Order{}, errStubNotImplemented
}

func (s *stubOrderService) RejectOrder(ctx context.Context, cmd services.RejectOrderCommand) (domain.Order, error) {
	if s.rejectFn != nil {
		return s.rejectFn(ctx, cmd)
	}
	return domain.Order{}, errStubNotImplemented
}

func (s *stubOrderService) UpdateOrderStatus(ctx context.Context, cmd services.UpdateOrderStatusCommand) (domain.Order, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, cmd)
	}
	return domain.Order{}, errStubNotImplemented
}

func (s *stubOrderService) CancelOrder(ctx context.Context, cmd services.CancelOrderCommand) (domain.Order, error) {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, cmd)
	}
	return domain.Order{}, errStubNotImplemented
}

type stubInvoiceService struct {
	issueFn        func(context.Context, services.IssueInvoiceCommand) (domain.Invoice, error)
	getFn          func(context.Context, requestctx.Principal, string) (domain.Invoice, error)
	listBusinessFn func(context.Context, requestctx.Principal, string, repositories.InvoiceListFilter) (domain.CursorPage[domain.Invoice], error)
	listProviderFn func(context.Context, requestctx.Principal, string, repositories.InvoiceListFilter) (domain.CursorPage[domain.Invoice], error)
}

func (s *stubInvoiceService) IssueInvoice(ctx context.Context, cmd services.IssueInvoiceCommand) (domain.Invoice, error) {
	if s.issueFn != nil {
		return s.issueFn(ctx, cmd)
	}
	return domain.Invoice{}, errStubNotImplemented
}

func (s *stubInvoiceService) GetInvoice(ctx context.Context, principal requestctx.Principal, invoiceID string) (domain.Invoice, error) {
	if s.getFn != nil {
		return s.getFn(ctx, principal, invoiceID)
	}
	return domain.Invoice{}, errStubNotImplemented
}

func (s *stubInvoiceService) ListBusinessInvoices(ctx context.Context, principal requestctx.Principal, businessID string, filter repositories.InvoiceListFilter) (domain.CursorPage[domain.Invoice], error) {
	if s.listBusinessFn != nil {
		return s.listBusinessFn(ctx, principal, businessID, filter)
	}
	return domain.CursorPage[domain.Invoice]{}, nil
}

func (s *stubInvoiceService) ListProviderInvoices(ctx context.Context, principal requestctx.Principal, providerID string, filter repositories.InvoiceListFilter) (domain.CursorPage[domain.Invoice], error) {
	if s.listProviderFn != nil {
		return s.listProviderFn(ctx, principal, providerID, filter)
	}
	return domain.CursorPage[domain.Invoice]{}, nil
}

type stubDeliveryService struct {
	getFn    func(context.Context, requestctx.Principal, string) (domain.Delivery, error)
	updateFn func(context.Context, services.UpdateDeliveryCommand) (domain.Delivery, error)
}

func (s *stubDeliveryService) GetDelivery(ctx context.Context, principal requestctx.Principal, deliveryID string) (domain.Delivery, error) {
	if s.getFn != nil {
		return s.getFn(ctx, principal, deliveryID)
	}
	return domain.Delivery{}, errStubNotImplemented
}

func (s *stubDeliveryService) UpdateDelivery(ctx context.Context, cmd services.UpdateDeliveryCommand) (domain.Delivery, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, cmd)
	}
	return domain.Delivery{}, errStubNotImplemented
}

type stubPaymentService struct {
	checkoutFn func(context.Context, services.CreateCheckoutSessionCommand) (services.CheckoutRedirect, error)
	webhookFn  func(context.Context, []byte, string) (services.WebhookOutcome, error)
	listFn     func(context.Context, requestctx.Principal, domain.Pagination) (domain.CursorPage[domain.Payment], error)
}

func (s *stubPaymentService) CreateCheckoutSession(ctx context.Context, cmd services.CreateCheckoutSessionCommand) (services.CheckoutRedirect, error) {
	if s.checkoutFn != nil {
		return s.checkoutFn(ctx, cmd)
	}
	return services.CheckoutRedirect{}, errStubNotImplemented
}

func (s *stubPaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) (services.WebhookOutcome, error) {
	if s.webhookFn != nil {
		return s.webhookFn(ctx, payload, signature)
	}
	return services.WebhookOutcome{}, errStubNotImplemented
}

func (s *stubPaymentService) ListPayments(ctx context.Context, principal requestctx.Principal, page domain.Pagination) (domain.CursorPage[domain.Payment], error) {
	if s.listFn != nil {
		return s.listFn(ctx, principal, page)
	}
	return domain.CursorPage[domain.Payment]{}, nil
}
