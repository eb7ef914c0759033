package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusDraft indicates the order has been assembled but not submitted.
	OrderStatusDraft OrderStatus = "draft"
	// OrderStatusSubmitted indicates the buyer has placed the order and it awaits provider review.
	OrderStatusSubmitted OrderStatus = "submitted"
	// OrderStatusConfirmed indicates the provider has accepted the order.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusPreparing indicates the provider is preparing the order for dispatch.
	OrderStatusPreparing OrderStatus = "preparing"
	// OrderStatusShipped indicates the order has left the provider.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered indicates the order reached the buyer. Terminal.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled indicates the order was cancelled or rejected. Terminal.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Terminal reports whether no further order transitions are possible.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// DeliveryStatus enumerates delivery lifecycle states.
type DeliveryStatus string

const (
	// DeliveryStatusScheduled is the initial state set when the order is confirmed.
	DeliveryStatusScheduled DeliveryStatus = "scheduled"
	// DeliveryStatusPickedUp indicates the carrier collected the goods.
	DeliveryStatusPickedUp DeliveryStatus = "picked_up"
	// DeliveryStatusInTransit indicates the goods are on the way.
	DeliveryStatusInTransit DeliveryStatus = "in_transit"
	// DeliveryStatusDelivered indicates the goods arrived. Drives the order's delivered transition.
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	// DeliveryStatusFailed indicates the delivery attempt failed.
	DeliveryStatusFailed DeliveryStatus = "failed"
)

// InvoiceStatus enumerates invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusIssued    InvoiceStatus = "issued"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// PaymentStatus enumerates payment states.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// ProviderStatus enumerates supplier account states relevant to ordering.
type ProviderStatus string

const (
	ProviderStatusActive    ProviderStatus = "active"
	ProviderStatusSuspended ProviderStatus = "suspended"
)

// Product is the read-only catalog view consumed by the pricing engine. Price is per
// base unit; AllowedSizes, when non-empty, restricts ordering to those discrete sizes.
type Product struct {
	ID           string
	ProviderID   string
	Name         string
	Unit         string
	Price        decimal.Decimal
	TaxRate      decimal.Decimal
	Currency     string
	AllowedSizes []string
}

// Provider is the read-only supplier view consumed by the order service.
type Provider struct {
	ID     string
	Name   string
	Status ProviderStatus
}

// Location is the read-only delivery location view used for ownership checks.
type Location struct {
	ID           string
	OwnerType    string
	OwnerID      string
	AddressLine1 string
	City         string
	PostalCode   string
	Country      string
}

// Order captures the order header. Monetary fields are decimals rounded to the
// currency's minor unit at the totals boundary.
type Order struct {
	ID                    string
	OrderNumber           string
	BusinessID            string
	ProviderID            string
	DeliveryLocationID    string
	Status                OrderStatus
	Subtotal              decimal.Decimal
	TaxTotal              decimal.Decimal
	Total                 decimal.Decimal
	Currency              string
	RequestedDeliveryDate time.Time
	Notes                 string
	InternalNotes         string
	CancellationReason    string
	SubmittedAt           *time.Time
	ConfirmedAt           *time.Time
	DeliveredAt           *time.Time
	CancelledAt           *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
	Lines                 []OrderLine
}

// OrderLine snapshots the priced product at order-creation time and is immutable
// afterwards. Unit is either the product base unit or the chosen size label.
type OrderLine struct {
	ID        string
	OrderID   string
	ProductID string
	Name      string
	Quantity  decimal.Decimal
	Unit      string
	UnitPrice decimal.Decimal
	TaxRate   decimal.Decimal
	LineTotal decimal.Decimal
}

// Delivery tracks the physical fulfilment of a confirmed order. One per order,
// created at confirmation.
type Delivery struct {
	ID                  string
	OrderID             string
	Status              DeliveryStatus
	TrackingCode        string
	EstimatedDeliveryAt *time.Time
	ActualDeliveryAt    *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Invoice is derived from exactly one order at issue time.
type Invoice struct {
	ID                string
	InvoiceNumber     string
	OrderID           string
	BusinessID        string
	ProviderID        string
	Status            InvoiceStatus
	Subtotal          decimal.Decimal
	TaxTotal          decimal.Decimal
	Total             decimal.Decimal
	Currency          string
	DueDate           time.Time
	CheckoutSessionID string
	IssuedAt          *time.Time
	PaidAt            *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Lines             []InvoiceLine
}

// InvoiceLine is copied 1:1 from an order line at issue time; OrderID links back to
// the originating order for audit.
type InvoiceLine struct {
	ID          string
	InvoiceID   string
	OrderID     string
	Description string
	Quantity    decimal.Decimal
	Unit        string
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
}

// Payment records a settlement attempt against an invoice. At most one completed
// payment may exist per invoice.
type Payment struct {
	ID              string
	InvoiceID       string
	BusinessID      string
	Amount          decimal.Decimal
	Currency        string
	Status          PaymentStatus
	Method          string
	PaymentIntentID string
	SessionID       string
	PaidAt          *time.Time
	CreatedAt       time.Time
}

// Pagination carries cursor paging inputs for list operations.
type Pagination struct {
	Limit  int
	Cursor string
}

// CursorPage wraps a page of results with the cursor for the next page, empty when
// there are no further results.
type CursorPage[T any] struct {
	Items      []T
	NextCursor string
}
