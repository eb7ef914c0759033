package repositories

import (
	"context"
	"errors"
	"time"

	domain "github.com/supplynet/api/internal/domain"
)

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict indicates a uniqueness or concurrent-modification conflict.
	ErrConflict = errors.New("repository: conflict")
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Deliveries() DeliveryRepository
	Invoices() InvoiceRepository
	Payments() PaymentRepository
	Catalog() CatalogRepository
	Locations() LocationRepository

	UnitOfWork
}

// UnitOfWork groups repository operations in a transactional boundary. Repository
// methods called with the context passed to fn participate in the same transaction;
// any error rolls the whole transaction back.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderListFilter narrows order listings.
type OrderListFilter struct {
	Status   domain.OrderStatus
	DateFrom *time.Time
	DateTo   *time.Time
	Page     domain.Pagination
}

// InvoiceListFilter narrows invoice listings.
type InvoiceListFilter struct {
	Status domain.InvoiceStatus
	Page   domain.Pagination
}

// OrderRepository persists order headers and their immutable lines.
type OrderRepository interface {
	// Insert writes the order header and all lines atomically; readers never observe
	// an order without its lines.
	Insert(ctx context.Context, order domain.Order) error
	// Update persists header mutations (status, timestamps, notes). Lines are immutable.
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	ListByBusiness(ctx context.Context, businessID string, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	ListByProvider(ctx context.Context, providerID string, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// DeliveryRepository persists delivery rows, one per confirmed order.
type DeliveryRepository interface {
	Insert(ctx context.Context, delivery domain.Delivery) error
	Update(ctx context.Context, delivery domain.Delivery) error
	FindByID(ctx context.Context, deliveryID string) (domain.Delivery, error)
	FindByOrderID(ctx context.Context, orderID string) (domain.Delivery, error)
}

// InvoiceRepository persists invoices and their lines.
type InvoiceRepository interface {
	// Insert writes the invoice header and all lines atomically.
	Insert(ctx context.Context, invoice domain.Invoice) error
	Update(ctx context.Context, invoice domain.Invoice) error
	FindByID(ctx context.Context, invoiceID string) (domain.Invoice, error)
	// FindByIDForUpdate re-reads the invoice under a row-level write lock. Must be
	// called within a RunInTx boundary; the lock is held until commit or rollback.
	FindByIDForUpdate(ctx context.Context, invoiceID string) (domain.Invoice, error)
	// FindByOrderID resolves the invoice derived from an order, ErrNotFound when none exists.
	FindByOrderID(ctx context.Context, orderID string) (domain.Invoice, error)
	// FindByCheckoutSessionID resolves the invoice holding the external session reference.
	FindByCheckoutSessionID(ctx context.Context, sessionID string) (domain.Invoice, error)
	ListByBusiness(ctx context.Context, businessID string, filter InvoiceListFilter) (domain.CursorPage[domain.Invoice], error)
	ListByProvider(ctx context.Context, providerID string, filter InvoiceListFilter) (domain.CursorPage[domain.Invoice], error)
}

// PaymentRepository persists payment rows.
type PaymentRepository interface {
	Insert(ctx context.Context, payment domain.Payment) error
	ListByInvoiceID(ctx context.Context, invoiceID string) ([]domain.Payment, error)
	// ListForAccounts lists payments visible to any of the given business or provider
	// memberships, newest first.
	ListForAccounts(ctx context.Context, businessIDs, providerIDs []string, page domain.Pagination) (domain.CursorPage[domain.Payment], error)
}

// CatalogRepository is the read-only view over the externally managed catalog.
type CatalogRepository interface {
	FindProvider(ctx context.Context, providerID string) (domain.Provider, error)
	// FindProductsByIDs returns the named products restricted to the given provider.
	// Products belonging to other providers are simply absent from the result.
	FindProductsByIDs(ctx context.Context, providerID string, productIDs []string) ([]domain.Product, error)
}

// LocationRepository is the read-only view over externally managed delivery locations.
type LocationRepository interface {
	// FindBusinessLocation resolves a location only when it is owned by the business.
	FindBusinessLocation(ctx context.Context, locationID, businessID string) (domain.Location, error)
}
