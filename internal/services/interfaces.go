package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/supplynet/api/internal/domain"
	"github.com/supplynet/api/internal/platform/requestctx"
	"github.com/supplynet/api/internal/repositories"
)

// OrderLineInput is a single requested line on a new order.
type OrderLineInput struct {
	ProductID string
	Quantity  decimal.Decimal
	Unit      string
}

// PlaceOrderCommand carries everything needed to place an order on behalf of a business.
type PlaceOrderCommand struct {
	Principal             requestctx.Principal
	BusinessID            string
	ProviderID            string
	DeliveryLocationID    string
	RequestedDeliveryDate time.Time
	Notes                 string
	Lines                 []OrderLineInput
	IdempotencyKey        string
}

// PlaceOrderResult is the order summary returned to the buyer. Replays of an
// idempotent request return the stored summary unchanged.
type PlaceOrderResult struct {
	OrderID     string             `json:"order_id"`
	OrderNumber string             `json:"order_number"`
	Status      domain.OrderStatus `json:"status"`
	Total       decimal.Decimal    `json:"total"`
	Currency    string             `json:"currency"`
	CreatedAt   time.Time          `json:"created_at"`
	Replayed    bool               `json:"-"`
}

// ConfirmOrderCommand accepts a submitted order on behalf of a provider.
type ConfirmOrderCommand struct {
	Principal     requestctx.Principal
	ProviderID    string
	OrderID       string
	InternalNotes *string
}

// RejectOrderCommand declines a submitted order.
type RejectOrderCommand struct {
	Principal  requestctx.Principal
	ProviderID string
	OrderID    string
	Reason     string
}

// UpdateOrderStatusCommand advances a confirmed order to preparing or shipped.
type UpdateOrderStatusCommand struct {
	Principal     requestctx.Principal
	ProviderID    string
	OrderID       string
	Status        domain.OrderStatus
	InternalNotes *string
}

// CancelOrderCommand cancels an order on behalf of the owning business.
type CancelOrderCommand struct {
	Principal  requestctx.Principal
	BusinessID string
	OrderID    string
	Reason     string
}

// OrderDetail bundles the order with its delivery reference and the delivery
// location snapshot. Delivery is nil before confirmation; Location is only
// resolved for provider views.
type OrderDetail struct {
	Order    domain.Order
	Delivery *domain.Delivery
	Location *domain.Location
}

// OrderService owns the order lifecycle from placement through provider handling.
type OrderService interface {
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (PlaceOrderResult, error)
	GetBusinessOrder(ctx context.Context, principal requestctx.Principal, businessID, orderID string) (OrderDetail, error)
	GetProviderOrder(ctx context.Context, principal requestctx.Principal, providerID, orderID string) (OrderDetail, error)
	ListBusinessOrders(ctx context.Context, principal requestctx.Principal, businessID string, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error)
	ListProviderOrders(ctx context.Context, principal requestctx.Principal, providerID string, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error)
	ConfirmOrder(ctx context.Context, cmd ConfirmOrderCommand) (domain.Order, error)
	RejectOrder(ctx context.Context, cmd RejectOrderCommand) (domain.Order, error)
	UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (domain.Order, error)
	CancelOrder(ctx context.Context, cmd CancelOrderCommand) (domain.Order, error)
}

// UpdateDeliveryCommand mutates a delivery's status and tracking metadata.
type UpdateDeliveryCommand struct {
	Principal           requestctx.Principal
	DeliveryID          string
	Status              domain.DeliveryStatus
	TrackingCode        *string
	EstimatedDeliveryAt *time.Time
	ActualDeliveryAt    *time.Time
}

// DeliveryService exposes delivery tracking to both parties and mutation to the provider.
type DeliveryService interface {
	GetDelivery(ctx context.Context, principal requestctx.Principal, deliveryID string) (domain.Delivery, error)
	UpdateDelivery(ctx context.Context, cmd UpdateDeliveryCommand) (domain.Delivery, error)
}

// IssueInvoiceCommand derives an invoice from a confirmed-or-later order.
type IssueInvoiceCommand struct {
	Principal requestctx.Principal
	OrderID   string
}

// InvoiceService owns invoice issuance and read access.
type InvoiceService interface {
	IssueInvoice(ctx context.Context, cmd IssueInvoiceCommand) (domain.Invoice, error)
	GetInvoice(ctx context.Context, principal requestctx.Principal, invoiceID string) (domain.Invoice, error)
	ListBusinessInvoices(ctx context.Context, principal requestctx.Principal, businessID string, filter repositories.InvoiceListFilter) (domain.CursorPage[domain.Invoice], error)
	ListProviderInvoices(ctx context.Context, principal requestctx.Principal, providerID string, filter repositories.InvoiceListFilter) (domain.CursorPage[domain.Invoice], error)
}

// CreateCheckoutSessionCommand starts a hosted payment flow for an invoice.
type CreateCheckoutSessionCommand struct {
	Principal requestctx.Principal
	InvoiceID string
}

// CheckoutRedirect is returned to the buyer to complete payment externally.
type CheckoutRedirect struct {
	URL       string
	SessionID string
}

// WebhookOutcome reports what a webhook delivery did. Processed is false for
// ignored event types, unknown sessions, and already-paid invoices.
type WebhookOutcome struct {
	Processed bool
	InvoiceID string
	PaymentID string
}

// PaymentService owns checkout-session creation and webhook reconciliation.
type PaymentService interface {
	CreateCheckoutSession(ctx context.Context, cmd CreateCheckoutSessionCommand) (CheckoutRedirect, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) (WebhookOutcome, error)
	ListPayments(ctx context.Context, principal requestctx.Principal, page domain.Pagination) (domain.CursorPage[domain.Payment], error)
}
