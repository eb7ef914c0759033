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

const invoiceDueDays = 30

// InvoiceServiceDeps wires the dependencies required by the invoice service.
type InvoiceServiceDeps struct {
	Registry repositories.Registry
	Events   events.Publisher
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type invoiceService struct {
	registry repositories.Registry
	events   events.Publisher
	now      func() time.Time
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// NewInvoiceService constructs an InvoiceService validating required dependencies.
func NewInvoiceService(deps InvoiceServiceDeps) (InvoiceService, error) {
	if deps.Registry == nil {
		return nil, errors.New("invoice service: registry is required")
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
	return &invoiceService{
		registry: deps.Registry,
		events:   publisher,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// IssueInvoice derives an invoice from an order. The order must be confirmed or
// later and not yet invoiced; totals and lines are copied verbatim from the order.
func (s *invoiceService) IssueInvoice(ctx context.Context, cmd IssueInvoiceCommand) (domain.Invoice, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return domain.Invoice{}, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}
	order, err := s.registry.Orders().FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return domain.Invoice{}, fmt.Errorf("%w: order", ErrNotFound)
		}
		return domain.Invoice{}, fmt.Errorf("load order: %w", err)
	}
	if !cmd.Principal.OwnsProvider(order.ProviderID) {
		return domain.Invoice{}, fmt.Errorf("%w: no access to this provider", ErrForbidden)
	}
	if !domain.InvoiceableOrderStatus(order.Status) {
		return domain.Invoice{}, fmt.Errorf("%w: invoices require a confirmed or later order", ErrConflict)
	}
	if _, err := s.registry.Invoices().FindByOrderID(ctx, orderID); err == nil {
		return domain.Invoice{}, fmt.Errorf("%w: an invoice already exists for this order", ErrConflict)
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return domain.Invoice{}, fmt.Errorf("check existing invoice: %w", err)
	}

	now := s.now()
	invoice := domain.Invoice{
		ID:            newID(),
		InvoiceNumber: newInvoiceNumber(now),
		OrderID:       order.ID,
		BusinessID:    order.BusinessID,
		ProviderID:    order.ProviderID,
		Status:        domain.InvoiceStatusIssued,
		Subtotal:      order.Subtotal,
		TaxTotal:      order.TaxTotal,
		Total:         order.Total,
		Currency:      order.Currency,
		DueDate:       now.AddDate(0, 0, invoiceDueDays),
		IssuedAt:      &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, line := range order.Lines {
		invoice.Lines = append(invoice.Lines, domain.InvoiceLine{
			ID:          newID(),
			InvoiceID:   invoice.ID,
			OrderID:     order.ID,
			Description: line.Name,
			Quantity:    line.Quantity,
			Unit:        line.Unit,
			UnitPrice:   line.UnitPrice,
			LineTotal:   line.LineTotal,
		})
	}

	if err := s.registry.Invoices().Insert(ctx, invoice); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return domain.Invoice{}, fmt.Errorf("%w: an invoice already exists for this order", ErrConflict)
		}
		return domain.Invoice{}, fmt.Errorf("persist invoice: %w", err)
	}

	if _, err := s.events.Publish(ctx, events.NewEnvelope(events.TypeInvoiceGenerated, now, map[string]any{
		"invoice_id":  invoice.ID,
		"order_id":    order.ID,
		"business_id": invoice.BusinessID,
		"provider_id": invoice.ProviderID,
	})); err != nil {
		s.logger(ctx, "invoices.event.publish_failed", map[string]any{
			"invoiceId": invoice.ID,
			"error":     err.Error(),
		})
	}
	s.logger(ctx, "invoices.issued", map[string]any{
		"invoiceId":     invoice.ID,
		"invoiceNumber": invoice.InvoiceNumber,
		"orderId":       order.ID,
		"total":         invoice.Total.String(),
	})
	return invoice, nil
}

// GetInvoice returns the invoice when the principal belongs to either party.
func (s *invoiceService) GetInvoice(ctx context.Context, principal requestctx.Principal, invoiceID string) (domain.Invoice, error) {
	invoice, err := s.registry.Invoices().FindByID(ctx, strings.TrimSpace(invoiceID))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return domain.Invoice{}, fmt.Errorf("%w: invoice", ErrNotFound)
		}
		return domain.Invoice{}, fmt.Errorf("load invoice: %w", err)
	}
	if !principal.OwnsBusiness(invoice.BusinessID) && !principal.OwnsProvider(invoice.ProviderID) {
		return domain.Invoice{}, fmt.Errorf("%w: no access to this invoice", ErrForbidden)
	}
	return invoice, nil
}

func (s *invoiceService) ListBusinessInvoices(ctx context.Context, principal requestctx.Principal, businessID string, filter repositories.InvoiceListFilter) (domain.CursorPage[domain.Invoice], error) {
	if !principal.OwnsBusiness(businessID) {
		return domain.CursorPage[domain.Invoice]{}, fmt.Errorf("%w: no access to this business", ErrForbidden)
	}
	page, err := s.registry.Invoices().ListByBusiness(ctx, businessID, filter)
	if err != nil {
		return domain.CursorPage[domain.Invoice]{}, fmt.Errorf("list invoices: %w", err)
	}
	return page, nil
}

func (s *invoiceService) ListProviderInvoices(ctx context.Context, principal requestctx.Principal, providerID string, filter repositories.InvoiceListFilter) (domain.CursorPage[domain.Invoice], error) {
	if !principal.OwnsProvider(providerID) {
		return domain.CursorPage[domain.Invoice]{}, fmt.Errorf("%w: no access to this provider", ErrForbidden)
	}
	page, err := s.registry.Invoices().ListByProvider(ctx, providerID, filter)
	if err != nil {
		return domain.CursorPage[domain.Invoice]{}, fmt.Errorf("list invoices: %w", err)
	}
	return page, nil
}
