package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/supplynet/api/internal/domain"
	"github.com/supplynet/api/internal/events"
	"github.com/supplynet/api/internal/platform/idempotency"
	"github.com/supplynet/api/internal/platform/requestctx"
	"github.com/supplynet/api/internal/repositories/memory"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func buyerPrincipal(businessID string) requestctx.Principal {
	return requestctx.Principal{
		UserID:      "user-buyer",
		Memberships: []requestctx.Membership{{BusinessID: businessID, Role: "owner"}},
	}
}

func providerPrincipal(providerID string) requestctx.Principal {
	return requestctx.Principal{
		UserID:      "user-provider",
		Memberships: []requestctx.Membership{{ProviderID: providerID, Role: "staff"}},
	}
}

// seedCatalog populates the registry with an active provider, a business
// location, and two products: flour priced per kg with free quantities, and
// olive oil sold only in fixed bottle sizes against a litre base price.
func seedCatalog(reg *memory.Registry) {
	reg.SeedProvider(domain.Provider{ID: "prov-1", Name: "Harbor Foods", Status: domain.ProviderStatusActive})
	reg.SeedProvider(domain.Provider{ID: "prov-frozen", Name: "Dormant Supply Co", Status: domain.ProviderStatusSuspended})
	reg.SeedLocation(domain.Location{
		ID: "loc-1", OwnerType: "business", OwnerID: "biz-1",
		AddressLine1: "12 Quay Street", City: "Bristol", PostalCode: "BS1 4DB", Country: "GB",
	})
	reg.SeedProduct(domain.Product{
		ID: "prod-flour", ProviderID: "prov-1", Name: "Bakers Flour",
		Unit: "kg", Price: decimal.RequireFromString("10.00"),
		TaxRate: decimal.RequireFromString("0.20"), Currency: "GBP",
	})
	reg.SeedProduct(domain.Product{
		ID: "prod-oil", ProviderID: "prov-1", Name: "Olive Oil",
		Unit: "l", Price: decimal.RequireFromString("8.00"),
		TaxRate: decimal.RequireFromString("0.20"), Currency: "GBP",
		AllowedSizes: []string{"500ml", "1L", "5L"},
	})
}

func newTestOrderService(t *testing.T, reg *memory.Registry, pub events.Publisher) OrderService {
	t.Helper()
	svc, err := NewOrderService(OrderServiceDeps{
		Registry:    reg,
		Idempotency: idempotency.NewMemoryStore(),
		Events:      pub,
		Clock:       fixedClock,
	})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}
	return svc
}

func newTestDeliveryService(t *testing.T, reg *memory.Registry, pub events.Publisher) DeliveryService {
	t.Helper()
	svc, err := NewDeliveryService(DeliveryServiceDeps{Registry: reg, Events: pub, Clock: fixedClock})
	if err != nil {
		t.Fatalf("NewDeliveryService: %v", err)
	}
	return svc
}

func newTestInvoiceService(t *testing.T, reg *memory.Registry, pub events.Publisher) InvoiceService {
	t.Helper()
	svc, err := NewInvoiceService(InvoiceServiceDeps{Registry: reg, Events: pub, Clock: fixedClock})
	if err != nil {
		t.Fatalf("NewInvoiceService: %v", err)
	}
	return svc
}

// placeTestOrder drives a full placement through the order service and returns
// the persisted order.
func placeTestOrder(t *testing.T, svc OrderService, reg *memory.Registry) domain.Order {
	t.Helper()
	result, err := svc.PlaceOrder(context.Background(), PlaceOrderCommand{
		Principal:             buyerPrincipal("biz-1"),
		BusinessID:            "biz-1",
		ProviderID:            "prov-1",
		DeliveryLocationID:    "loc-1",
		RequestedDeliveryDate: fixedNow.AddDate(0, 0, 3),
		Lines: []OrderLineInput{
			{ProductID: "prod-flour", Quantity: decimal.NewFromInt(10)},
		},
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	order, err := reg.Orders().FindByID(context.Background(), result.OrderID)
	if err != nil {
		t.Fatalf("FindByID after placement: %v", err)
	}
	return order
}

// confirmTestOrder confirms the order and returns the refreshed order plus its delivery.
func confirmTestOrder(t *testing.T, svc OrderService, reg *memory.Registry, orderID string) (domain.Order, domain.Delivery) {
	t.Helper()
	order, err := svc.ConfirmOrder(context.Background(), ConfirmOrderCommand{
		Principal:  providerPrincipal("prov-1"),
		ProviderID: "prov-1",
		OrderID:    orderID,
	})
	if err != nil {
		t.Fatalf("ConfirmOrder: %v", err)
	}
	delivery, err := reg.Deliveries().FindByOrderID(context.Background(), orderID)
	if err != nil {
		t.Fatalf("FindByOrderID after confirm: %v", err)
	}
	return order, delivery
}
