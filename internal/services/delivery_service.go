package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/supplynet/api/internal/domain"
	"github.com/supplynet/api/internal/events"
	"github.com/supplynet/api/internal/platform/requestctx"
	"github.com/supplynet/api/internal/repositories"
)

// DeliveryServiceDeps wires the dependencies required by the delivery service.
type DeliveryServiceDeps struct {
	Registry repositories.Registry
	Events   events.Publisher
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type deliveryService struct {
	registry repositories.Registry
	events   events.Publisher
	now      func() time.Time
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// NewDeliveryService constructs a DeliveryService validating required dependencies.
func NewDeliveryService(deps DeliveryServiceDeps) (DeliveryService, error) {
	if deps.Registry == nil {
		return nil, errors.New("delivery service: registry is required")
	}
	publisher := deps.Events
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &deliveryService{
		registry: deps.Registry,
		events:   publisher,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// GetDelivery returns the delivery when the principal belongs to either party of
// the underlying order.
func (s *deliveryService) GetDelivery(ctx context.Context, principal requestctx.Principal, deliveryID string) (domain.Delivery, error) {
	delivery, _, err := s.accessibleDelivery(ctx, principal, deliveryID)
	return delivery, err
}

// UpdateDelivery applies a status change and tracking metadata. Only the provider
// side may mutate. Marking the delivery delivered also moves the order to
// delivered; repeating the delivered status is a no-op for the order and emits no
// second event.
func (s *deliveryService) UpdateDelivery(ctx context.Context, cmd UpdateDeliveryCommand) (domain.Delivery, error) {
	if !domain.ValidDeliveryStatus(cmd.Status) {
		return domain.Delivery{}, fmt.Errorf("%w: unknown delivery status %q", ErrInvalidInput, cmd.Status)
	}
	delivery, order, err := s.accessibleDelivery(ctx, cmd.Principal, cmd.DeliveryID)
	if err != nil {
		return domain.Delivery{}, err
	}
	if !cmd.Principal.OwnsProvider(order.ProviderID) {
		return domain.Delivery{}, fmt.Errorf("%w: only the provider can update the delivery", ErrForbidden)
	}

	now := s.now()
	delivery.Status = cmd.Status
	delivery.UpdatedAt = now
	if cmd.TrackingCode != nil {
		delivery.TrackingCode = strings.TrimSpace(*cmd.TrackingCode)
	}
	if cmd.EstimatedDeliveryAt != nil {
		est := cmd.EstimatedDeliveryAt.UTC()
		delivery.EstimatedDeliveryAt = &est
	}
	if cmd.ActualDeliveryAt != nil {
		act := cmd.ActualDeliveryAt.UTC()
		delivery.ActualDeliveryAt = &act
	}

	orderDelivered := false
	if cmd.Status == domain.DeliveryStatusDelivered {
		if delivery.ActualDeliveryAt == nil {
			delivery.ActualDeliveryAt = &now
		}
		if order.Status != domain.OrderStatusDelivered {
			order.Status = domain.OrderStatusDelivered
			order.DeliveredAt = &now
			order.UpdatedAt = now
			orderDelivered = true
		}
	}

	err = s.registry.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.registry.Deliveries().Update(txCtx, delivery); err != nil {
			return fmt.Errorf("update delivery: %w", err)
		}
		if orderDelivered {
			if err := s.registry.Orders().Update(txCtx, order); err != nil {
				return fmt.Errorf("update order: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Delivery{}, err
	}

	if orderDelivered {
		if _, err := s.events.Publish(ctx, events.NewEnvelope(events.TypeOrderDelivered, now, map[string]any{
			"order_id":    order.ID,
			"delivery_id": delivery.ID,
			"business_id": order.BusinessID,
			"provider_id": order.ProviderID,
		})); err != nil {
			s.logger(ctx, "deliveries.event.publish_failed", map[string]any{
				"deliveryId": delivery.ID,
				"error":      err.Error(),
			})
		}
		s.logger(ctx, "deliveries.delivered", map[string]any{
			"deliveryId": delivery.ID,
			"orderId":    order.ID,
		})
	}
	return delivery, nil
}

func (s *deliveryService) accessibleDelivery(ctx context.Context, principal requestctx.Principal, deliveryID string) (domain.Delivery, domain.Order, error) {
	delivery, err := s.registry.Deliveries().FindByID(ctx, strings.TrimSpace(deliveryID))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return domain.Delivery{}, domain.Order{}, fmt.Errorf("%w: delivery", ErrNotFound)
		}
		return domain.Delivery{}, domain.Order{}, fmt.Errorf("load delivery: %w", err)
	}
	order, err := s.registry.Orders().FindByID(ctx, delivery.OrderID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return domain.Delivery{}, domain.Order{}, fmt.Errorf("%w: order", ErrNotFound)
		}
		return domain.Delivery{}, domain.Order{}, fmt.Errorf("load order: %w", err)
	}
	if !principal.OwnsBusiness(order.BusinessID) && !principal.OwnsProvider(order.ProviderID) {
		return domain.Delivery{}, domain.Order{}, fmt.Errorf("%w: no access to this delivery", ErrForbidden)
	}
	return delivery, order, nil
}
