package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/supplynet/api/internal/domain"
	"github.com/supplynet/api/internal/events"
	"github.com/supplynet/api/internal/repositories/memory"
)

func TestGetDeliveryVisibleToBothParties(t *testing.T) {
	ctx := context.Background()
	reg := memory.NewRegistry()
	seedCatalog(reg)
	orders := newTestOrderService(t, reg, events.NewMemoryPublisher())
	order := placeTestOrder(t, orders, reg)
	_, delivery := confirmTestOrder(t, orders, reg, order.ID)

	svc := newTestDeliveryService(t, reg, events.NewMemoryPublisher())

	if _, err := svc.GetDelivery(ctx, buyerPrincipal("biz-1"), delivery.ID); err != nil {
		t.Fatalf("buyer GetDelivery: %v", err)
	}
	if _, err := svc.GetDelivery(ctx, providerPrincipal("prov-1"), delivery.ID); err != nil {
		t.Fatalf("provider GetDelivery: %v", err)
	}
	if _, err := svc.GetDelivery(ctx, buyerPrincipal("biz-other"), delivery.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("outsider error = %v, want ErrForbidden", err)
	}
}

func TestUpdateDeliveryProviderOnly(t *testing.T) {
	ctx := context.Background()
	reg := memory.NewRegistry()
	seedCatalog(reg)
	orders := newTestOrderService(t, reg, events.NewMemoryPublisher())
	order := placeTestOrder(t, orders, reg)
	_, delivery := confirmTestOrder(t, orders, reg, order.ID)

	svc := newTestDeliveryService(t, reg, events.NewMemoryPublisher())

	if _, err := svc.UpdateDelivery(ctx, UpdateDeliveryCommand{
		Principal:  buyerPrincipal("biz-1"),
		DeliveryID: delivery.ID,
		Status:     domain.DeliveryStatusInTransit,
	}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("buyer mutation error = %v, want ErrForbidden", err)
	}

	tracking := "TRK-9912"
	eta := fixedNow.Add(48 * time.Hour)
	updated, err := svc.UpdateDelivery(ctx, UpdateDeliveryCommand{
		Principal:           providerPrincipal("prov-1"),
		DeliveryID:          delivery.ID,
		Status:              domain.DeliveryStatusInTransit,
		TrackingCode:        &tracking,
		EstimatedDeliveryAt: &eta,
	})
	if err != nil {
		t.Fatalf("UpdateDelivery: %v", err)
	}
	if updated.Status != domain.DeliveryStatusInTransit {
		t.Fatalf("status = %s, want in_transit", updated.Status)
	}
	if updated.TrackingCode != tracking {
		t.Fatalf("tracking = %q, want %q", updated.TrackingCode, tracking)
	}
	if updated.EstimatedDeliveryAt == nil || !updated.EstimatedDeliveryAt.Equal(eta) {
		t.Fatalf("estimated delivery = %v, want %v", updated.EstimatedDeliveryAt, eta)
	}
}

func TestUpdateDeliveryRejectsUnknownStatus(t *testing.T) {
	ctx := context.Background()
	reg := memory.NewRegistry()
	seedCatalog(reg)
	orders := newTestOrderService(t, reg, events.NewMemoryPublisher())
	order := placeTestOrder(t, orders, reg)
	_, delivery := confirmTestOrder(t, orders, reg, order.ID)

	svc := newTestDeliveryService(t, reg, events.NewMemoryPublisher())
	if _, err := svc.UpdateDelivery(ctx, UpdateDeliveryCommand{
		Principal:  providerPrincipal("prov-1"),
		DeliveryID: delivery.ID,
		Status:     domain.DeliveryStatus("teleported"),
	}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("error = %v, want ErrInvalidInput", err)
	}
}

func TestDeliveredMarksOrderDelivered(t *testing.T) {
	ctx := context.Background()
	reg := memory.NewRegistry()
	seedCatalog(reg)
	orders := newTestOrderService(t, reg, events.NewMemoryPublisher())
	order := placeTestOrder(t, orders, reg)
	_, delivery := confirmTestOrder(t, orders, reg, order.ID)

	pub := events.NewMemoryPublisher()
	svc := newTestDeliveryService(t, reg, pub)

	updated, err := svc.UpdateDelivery(ctx, UpdateDeliveryCommand{
		Principal:  providerPrincipal("prov-1"),
		DeliveryID: delivery.ID,
		Status:     domain.DeliveryStatusDelivered,
	})
	if err != nil {
		t.Fatalf("UpdateDelivery: %v", err)
	}
	if updated.ActualDeliveryAt == nil {
		t.Fatal("actual_delivery_at not defaulted")
	}

	refreshed, err := reg.Orders().FindByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if refreshed.Status != domain.OrderStatusDelivered {
		t.Fatalf("order status = %s, want delivered", refreshed.Status)
	}
	if refreshed.DeliveredAt == nil {
		t.Fatal("order delivered_at not set")
	}
	if got := len(pub.OfType(events.TypeOrderDelivered)); got != 1 {
		t.Fatalf("order.delivered events = %d, want 1", got)
	}
}

func TestDeliveredStatusIdempotent(t *testing.T) {
	ctx := context.Background()
	reg := memory.NewRegistry()
	seedCatalog(reg)
	orders := newTestOrderService(t, reg, events.NewMemoryPublisher())
	order := placeTestOrder(t, orders, reg)
	_, delivery := confirmTestOrder(t, orders, reg, order.ID)

	pub := events.NewMemoryPublisher()
	svc := newTestDeliveryService(t, reg, pub)

	for i := 0; i < 2; i++ {
		if _, err := svc.UpdateDelivery(ctx, UpdateDeliveryCommand{
			Principal:  providerPrincipal("prov-1"),
			DeliveryID: delivery.ID,
			Status:     domain.DeliveryStatusDelivered,
		}); err != nil {
			t.Fatalf("UpdateDelivery round %d: %v", i+1, err)
		}
	}
	if got := len(pub.OfType(events.TypeOrderDelivered)); got != 1 {
		t.Fatalf("order.delivered events = %d, want exactly 1", got)
	}
}
