package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/supplynet/api/internal/domain"
	"github.com/supplynet/api/internal/events"
	"github.com/supplynet/api/internal/platform/idempotency"
	"github.com/supplynet/api/internal/platform/requestctx"
	"github.com/supplynet/api/internal/repositories"
)

const placeOrderScope = "orders:place"

// OrderServiceDeps wires the dependencies required by the order service.
type OrderServiceDeps struct {
	Registry    repositories.Registry
	Idempotency idempotency.Store
	Events      events.Publisher
	Clock       func() time.Time
	Logger      func(ctx context.Context, event string, fields map[string]any)
	// IdempotencyTTL bounds how long stored placement results replay; zero means
	// the store default.
	IdempotencyTTL time.Duration
}

type orderService struct {
	registry       repositories.Registry
	idempotency    idempotency.Store
	events         events.Publisher
	idempotencyTTL time.Duration
	now            func() time.Time
	logger         func(ctx context.Context, event string, fields map[string]any)
}

// NewOrderService constructs an OrderService validating required dependencies.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Registry == nil {
		return nil, errors.New("order service: registry is required")
	}
	if deps.Idempotency == nil {
		return nil, errors.New("order service: idempotency store is required")
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
	ttl := deps.IdempotencyTTL
	if ttl <= 0 {
		ttl = idempotency.DefaultTTL
	}
	return &orderService{
		registry:       deps.Registry,
		idempotency:    deps.Idempotency,
		events:         publisher,
		idempotencyTTL: ttl,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// PlaceOrder validates, prices, and persists a new order in the submitted state.
// When an idempotency key is supplied, retries replay the stored summary instead
// of creating a second order.
func (s *orderService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (PlaceOrderResult, error) {
	businessID := strings.TrimSpace(cmd.BusinessID)
	providerID := strings.TrimSpace(cmd.ProviderID)
	locationID := strings.TrimSpace(cmd.DeliveryLocationID)
	if businessID == "" || providerID == "" || locationID == "" {
		return PlaceOrderResult{}, fmt.Errorf("%w: business, provider and delivery location are required", ErrInvalidInput)
	}
	if len(cmd.Lines) == 0 {
		return PlaceOrderResult{}, fmt.Errorf("%w: order has no lines", ErrInvalidInput)
	}
	if cmd.RequestedDeliveryDate.IsZero() {
		return PlaceOrderResult{}, fmt.Errorf("%w: requested delivery date is required", ErrInvalidInput)
	}
	if !cmd.Principal.OwnsBusiness(businessID) {
		return PlaceOrderResult{}, fmt.Errorf("%w: no access to this business", ErrForbidden)
	}

	key := strings.TrimSpace(cmd.IdempotencyKey)
	scope := placeOrderScope + ":" + businessID
	if key != "" {
		record, ok, err := s.idempotency.Get(ctx, scope, key, s.now())
		if err != nil {
			s.logger(ctx, "orders.idempotency.get_failed", map[string]any{"error": err.Error()})
		} else if ok {
			var result PlaceOrderResult
			if err := json.Unmarshal(record.Response, &result); err != nil {
				return PlaceOrderResult{}, fmt.Errorf("decode stored order summary: %w", err)
			}
			result.Replayed = true
			return result, nil
		}
	}

	if _, err := s.registry.Locations().FindBusinessLocation(ctx, locationID, businessID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return PlaceOrderResult{}, fmt.Errorf("%w: delivery location not found or not owned by your business", ErrInvalidInput)
		}
		return PlaceOrderResult{}, fmt.Errorf("load delivery location: %w", err)
	}

	provider, err := s.registry.Catalog().FindProvider(ctx, providerID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return PlaceOrderResult{}, fmt.Errorf("%w: provider not found", ErrInvalidInput)
		}
		return PlaceOrderResult{}, fmt.Errorf("load provider: %w", err)
	}
	if provider.Status != domain.ProviderStatusActive {
		return PlaceOrderResult{}, fmt.Errorf("%w: %s", ErrProviderInactive, providerID)
	}

	productIDs := make([]string, 0, len(cmd.Lines))
	cartLines := make([]domain.CartLine, 0, len(cmd.Lines))
	for _, line := range cmd.Lines {
		productIDs = append(productIDs, line.ProductID)
		cartLines = append(cartLines, domain.CartLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Unit:      line.Unit,
		})
	}
	products, err := s.registry.Catalog().FindProductsByIDs(ctx, providerID, productIDs)
	if err != nil {
		return PlaceOrderResult{}, fmt.Errorf("load products: %w", err)
	}
	productMap := make(map[string]domain.Product, len(products))
	for _, p := range products {
		productMap[p.ID] = p
	}

	pricing, err := domain.PriceOrder(productMap, cartLines)
	if err != nil {
		return PlaceOrderResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	now := s.now()
	order := domain.Order{
		ID:                    newID(),
		OrderNumber:           newOrderNumber(now),
		BusinessID:            businessID,
		ProviderID:            providerID,
		DeliveryLocationID:    locationID,
		Status:                domain.OrderStatusSubmitted,
		Subtotal:              pricing.Subtotal,
		TaxTotal:              pricing.TaxTotal,
		Total:                 pricing.Total,
		Currency:              pricing.Currency,
		RequestedDeliveryDate: cmd.RequestedDeliveryDate.UTC(),
		Notes:                 strings.TrimSpace(cmd.Notes),
		SubmittedAt:           &now,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	for _, pl := range pricing.Lines {
		order.Lines = append(order.Lines, domain.OrderLine{
			ID:        newID(),
			OrderID:   order.ID,
			ProductID: pl.ProductID,
			Name:      pl.Name,
			Quantity:  pl.Quantity,
			Unit:      pl.Unit,
			UnitPrice: pl.UnitPrice,
			TaxRate:   pl.TaxRate,
			LineTotal: pl.LineTotal,
		})
	}

	if err := s.registry.Orders().Insert(ctx, order); err != nil {
		return PlaceOrderResult{}, fmt.Errorf("persist order: %w", err)
	}

	s.publish(ctx, events.TypeOrderPlaced, now, map[string]any{
		"order_id":    order.ID,
		"business_id": order.BusinessID,
		"provider_id": order.ProviderID,
	})

	result := PlaceOrderResult{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		Total:       order.Total,
		Currency:    order.Currency,
		CreatedAt:   order.CreatedAt,
	}

	if key != "" {
		response, err := json.Marshal(result)
		if err == nil {
			err = s.idempotency.Save(ctx, idempotency.Record{
				Scope:      scope,
				Key:        key,
				ResourceID: order.ID,
				Response:   response,
				CreatedAt:  now,
			}, s.idempotencyTTL)
		}
		if err != nil {
			s.logger(ctx, "orders.idempotency.save_failed", map[string]any{
				"orderId": order.ID,
				"error":   err.Error(),
			})
		}
	}

	s.logger(ctx, "orders.placed", map[string]any{
		"orderId":     order.ID,
		"orderNumber": order.OrderNumber,
		"businessId":  order.BusinessID,
		"providerId":  order.ProviderID,
		"total":       order.Total.String(),
	})
	return result, nil
}

// GetBusinessOrder loads an order owned by the business, with its delivery reference.
func (s *orderService) GetBusinessOrder(ctx context.Context, principal requestctx.Principal, businessID, orderID string) (OrderDetail, error) {
	if !principal.OwnsBusiness(businessID) {
		return OrderDetail{}, fmt.Errorf("%w: no access to this business", ErrForbidden)
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return OrderDetail{}, err
	}
	if order.BusinessID != businessID {
		return OrderDetail{}, fmt.Errorf("%w: order", ErrNotFound)
	}
	detail := OrderDetail{Order: order}
	if delivery, err := s.registry.Deliveries().FindByOrderID(ctx, orderID); err == nil {
		detail.Delivery = &delivery
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return OrderDetail{}, fmt.Errorf("load delivery: %w", err)
	}
	return detail, nil
}

// GetProviderOrder loads an order addressed to the provider, with its delivery
// reference and the buyer's delivery location snapshot.
func (s *orderService) GetProviderOrder(ctx context.Context, principal requestctx.Principal, providerID, orderID string) (OrderDetail, error) {
	if !principal.OwnsProvider(providerID) {
		return OrderDetail{}, fmt.Errorf("%w: no access to this provider", ErrForbidden)
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return OrderDetail{}, err
	}
	if order.ProviderID != providerID {
		return OrderDetail{}, fmt.Errorf("%w: order", ErrNotFound)
	}
	detail := OrderDetail{Order: order}
	if delivery, err := s.registry.Deliveries().FindByOrderID(ctx, orderID); err == nil {
		detail.Delivery = &delivery
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return OrderDetail{}, fmt.Errorf("load delivery: %w", err)
	}
	if location, err := s.registry.Locations().FindBusinessLocation(ctx, order.DeliveryLocationID, order.BusinessID); err == nil {
		detail.Location = &location
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return OrderDetail{}, fmt.Errorf("load delivery location: %w", err)
	}
	return detail, nil
}

func (s *orderService) ListBusinessOrders(ctx context.Context, principal requestctx.Principal, businessID string, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if !principal.OwnsBusiness(businessID) {
		return domain.CursorPage[domain.Order]{}, fmt.Errorf("%w: no access to this business", ErrForbidden)
	}
	page, err := s.registry.Orders().ListByBusiness(ctx, businessID, filter)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, fmt.Errorf("list orders: %w", err)
	}
	return page, nil
}

func (s *orderService) ListProviderOrders(ctx context.Context, principal requestctx.Principal, providerID string, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if !principal.OwnsProvider(providerID) {
		return domain.CursorPage[domain.Order]{}, fmt.Errorf("%w: no access to this provider", ErrForbidden)
	}
	page, err := s.registry.Orders().ListByProvider(ctx, providerID, filter)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, fmt.Errorf("list orders: %w", err)
	}
	return page, nil
}

// ConfirmOrder accepts a submitted order and schedules its delivery. The status
// change and the delivery row are written in one transaction.
func (s *orderService) ConfirmOrder(ctx context.Context, cmd ConfirmOrderCommand) (domain.Order, error) {
	order, err := s.providerOrder(ctx, cmd.Principal, cmd.ProviderID, cmd.OrderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.Status != domain.OrderStatusSubmitted {
		return domain.Order{}, fmt.Errorf("%w: order cannot be confirmed from status %s", ErrConflict, order.Status)
	}

	now := s.now()
	order.Status = domain.OrderStatusConfirmed
	order.ConfirmedAt = &now
	order.UpdatedAt = now
	if cmd.InternalNotes != nil {
		order.InternalNotes = *cmd.InternalNotes
	}
	delivery := domain.Delivery{
		ID:        newID(),
		OrderID:   order.ID,
		Status:    domain.DeliveryStatusScheduled,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.registry.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.registry.Orders().Update(txCtx, order); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		if err := s.registry.Deliveries().Insert(txCtx, delivery); err != nil {
			return fmt.Errorf("insert delivery: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.publish(ctx, events.TypeOrderConfirmed, now, map[string]any{
		"order_id":    order.ID,
		"business_id": order.BusinessID,
		"provider_id": order.ProviderID,
	})
	s.logger(ctx, "orders.confirmed", map[string]any{
		"orderId":    order.ID,
		"deliveryId": delivery.ID,
	})
	return order, nil
}

// RejectOrder declines a submitted order, moving it to cancelled.
func (s *orderService) RejectOrder(ctx context.Context, cmd RejectOrderCommand) (domain.Order, error) {
	order, err := s.providerOrder(ctx, cmd.Principal, cmd.ProviderID, cmd.OrderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.Status != domain.OrderStatusSubmitted {
		return domain.Order{}, fmt.Errorf("%w: order cannot be rejected from status %s", ErrConflict, order.Status)
	}

	now := s.now()
	order.Status = domain.OrderStatusCancelled
	order.CancellationReason = strings.TrimSpace(cmd.Reason)
	order.CancelledAt = &now
	order.UpdatedAt = now
	if err := s.registry.Orders().Update(ctx, order); err != nil {
		return domain.Order{}, fmt.Errorf("update order: %w", err)
	}

	s.publish(ctx, events.TypeOrderRejected, now, map[string]any{
		"order_id":    order.ID,
		"business_id": order.BusinessID,
		"provider_id": order.ProviderID,
		"reason":      order.CancellationReason,
	})
	return order, nil
}

// UpdateOrderStatus advances the order to preparing or shipped.
func (s *orderService) UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (domain.Order, error) {
	if cmd.Status != domain.OrderStatusPreparing && cmd.Status != domain.OrderStatusShipped {
		return domain.Order{}, fmt.Errorf("%w: status must be preparing or shipped", ErrInvalidInput)
	}
	order, err := s.providerOrder(ctx, cmd.Principal, cmd.ProviderID, cmd.OrderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !domain.CanTransitionOrder(order.Status, cmd.Status) {
		return domain.Order{}, fmt.Errorf("%w: order cannot move from %s to %s", ErrConflict, order.Status, cmd.Status)
	}

	now := s.now()
	order.Status = cmd.Status
	order.UpdatedAt = now
	if cmd.InternalNotes != nil {
		order.InternalNotes = *cmd.InternalNotes
	}
	if err := s.registry.Orders().Update(ctx, order); err != nil {
		return domain.Order{}, fmt.Errorf("update order: %w", err)
	}

	eventType := events.TypeOrderPrepared
	if cmd.Status == domain.OrderStatusShipped {
		eventType = events.TypeOrderDispatched
	}
	s.publish(ctx, eventType, now, map[string]any{
		"order_id":    order.ID,
		"business_id": order.BusinessID,
		"provider_id": order.ProviderID,
	})
	return order, nil
}

// CancelOrder cancels a draft or submitted order on behalf of the owning business.
func (s *orderService) CancelOrder(ctx context.Context, cmd CancelOrderCommand) (domain.Order, error) {
	if !cmd.Principal.OwnsBusiness(cmd.BusinessID) {
		return domain.Order{}, fmt.Errorf("%w: no access to this business", ErrForbidden)
	}
	order, err := s.loadOrder(ctx, cmd.OrderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.BusinessID != cmd.BusinessID {
		return domain.Order{}, fmt.Errorf("%w: order", ErrNotFound)
	}
	if !domain.CanCancelOrder(order.Status) {
		return domain.Order{}, fmt.Errorf("%w: order cannot be cancelled from status %s", ErrConflict, order.Status)
	}

	now := s.now()
	order.Status = domain.OrderStatusCancelled
	order.CancellationReason = strings.TrimSpace(cmd.Reason)
	order.CancelledAt = &now
	order.UpdatedAt = now
	if err := s.registry.Orders().Update(ctx, order); err != nil {
		return domain.Order{}, fmt.Errorf("update order: %w", err)
	}

	s.publish(ctx, events.TypeOrderCancelled, now, map[string]any{
		"order_id":    order.ID,
		"business_id": order.BusinessID,
		"provider_id": order.ProviderID,
		"reason":      order.CancellationReason,
	})
	return order, nil
}

// providerOrder runs the role check before any state check so unauthorized callers
// learn nothing about the order's state.
func (s *orderService) providerOrder(ctx context.Context, principal requestctx.Principal, providerID, orderID string) (domain.Order, error) {
	if !principal.OwnsProvider(providerID) {
		return domain.Order{}, fmt.Errorf("%w: no access to this provider", ErrForbidden)
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.ProviderID != providerID {
		return domain.Order{}, fmt.Errorf("%w: order", ErrNotFound)
	}
	return order, nil
}

func (s *orderService) loadOrder(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := s.registry.Orders().FindByID(ctx, strings.TrimSpace(orderID))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return domain.Order{}, fmt.Errorf("%w: order", ErrNotFound)
		}
		return domain.Order{}, fmt.Errorf("load order: %w", err)
	}
	return order, nil
}

// publish emits an event envelope; failures are logged and never abort the
// operation that produced the event.
func (s *orderService) publish(ctx context.Context, eventType string, occurredAt time.Time, payload map[string]any) {
	if _, err := s.events.Publish(ctx, events.NewEnvelope(eventType, occurredAt, payload)); err != nil {
		s.logger(ctx, "orders.event.publish_failed", map[string]any{
			"eventType": eventType,
			"error":     err.Error(),
		})
	}
}
