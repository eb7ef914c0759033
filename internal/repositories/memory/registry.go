// Package memory provides an in-memory Registry used by tests and local
// development. RunInTx serialises transactional sections behind a single mutex,
// standing in for the row-level locks the Postgres implementation takes; snapshots
// taken at transaction start give rollback-on-error semantics.
package memory

import (
	"context"
	"sort"
	"sync"

	domain "github.com/supplynet/api/internal/domain"
	"github.com/supplynet/api/internal/repositories"
)

const defaultPageLimit = 20

// Registry implements repositories.Registry over process-local maps.
type Registry struct {
	mu   sync.Mutex
	txMu sync.Mutex

	orders     map[string]domain.Order
	deliveries map[string]domain.Delivery
	invoices   map[string]domain.Invoice
	payments   []domain.Payment
	products   map[string]domain.Product
	providers  map[string]domain.Provider
	locations  map[string]domain.Location
}

// NewRegistry constructs an empty in-memory registry.
func NewRegistry() *Registry {
	return &Registry{
		orders:     make(map[string]domain.Order),
		deliveries: make(map[string]domain.Delivery),
		invoices:   make(map[string]domain.Invoice),
		products:   make(map[string]domain.Product),
		providers:  make(map[string]domain.Provider),
		locations:  make(map[string]domain.Location),
	}
}

// Close implements repositories.Registry.
func (r *Registry) Close(context.Context) error { return nil }

// Orders implements repositories.Registry.
func (r *Registry) Orders() repositories.OrderRepository { return orderRepo{r} }

// Deliveries implements repositories.Registry.
func (r *Registry) Deliveries() repositories.DeliveryRepository { return deliveryRepo{r} }

// Invoices implements repositories.Registry.
func (r *Registry) Invoices() repositories.InvoiceRepository { return invoiceRepo{r} }

// Payments implements repositories.Registry.
func (r *Registry) Payments() repositories.PaymentRepository { return paymentRepo{r} }

// Catalog implements repositories.Registry.
func (r *Registry) Catalog() repositories.CatalogRepository { return catalogRepo{r} }

// Locations implements repositories.Registry.
func (r *Registry) Locations() repositories.LocationRepository { return locationRepo{r} }

// RunInTx serialises fn behind the transaction mutex and restores the pre-transaction
// snapshot when fn fails, so partial writes never survive an aborted transaction.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	snapshot := r.snapshot()
	if err := fn(ctx); err != nil {
		r.restore(snapshot)
		return err
	}
	return nil
}

type registrySnapshot struct {
	orders     map[string]domain.Order
	deliveries map[string]domain.Delivery
	invoices   map[string]domain.Invoice
	payments   []domain.Payment
}

func (r *Registry) snapshot() registrySnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := registrySnapshot{
		orders:     make(map[string]domain.Order, len(r.orders)),
		deliveries: make(map[string]domain.Delivery, len(r.deliveries)),
		invoices:   make(map[string]domain.Invoice, len(r.invoices)),
		payments:   append([]domain.Payment(nil), r.payments...),
	}
	for k, v := range r.orders {
		snap.orders[k] = v
	}
	for k, v := range r.deliveries {
		snap.deliveries[k] = v
	}
	for k, v := range r.invoices {
		snap.invoices[k] = v
	}
	return snap
}

func (r *Registry) restore(snap registrySnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.orders = snap.orders
	r.deliveries = snap.deliveries
	r.invoices = snap.invoices
	r.payments = snap.payments
}

// SeedProvider registers a provider in the read-only catalog view.
func (r *Registry) SeedProvider(p domain.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID] = p
}

// SeedProduct registers a product in the read-only catalog view.
func (r *Registry) SeedProduct(p domain.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ID] = p
}

// SeedLocation registers a delivery location in the read-only location view.
func (r *Registry) SeedLocation(l domain.Location) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locations[l.ID] = l
}

type orderRepo struct{ r *Registry }

func (s orderRepo) Insert(_ context.Context, order domain.Order) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	if _, exists := s.r.orders[order.ID]; exists {
		return repositories.ErrConflict
	}
	order.Lines = append([]domain.OrderLine(nil), order.Lines...)
	s.r.orders[order.ID] = order
	return nil
}

func (s orderRepo) Update(_ context.Context, order domain.Order) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	existing, ok := s.r.orders[order.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	// Lines are immutable after insert.
	order.Lines = existing.Lines
	s.r.orders[order.ID] = order
	return nil
}

func (s orderRepo) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	order, ok := s.r.orders[orderID]
	if !ok {
		return domain.Order{}, repositories.ErrNotFound
	}
	order.Lines = append([]domain.OrderLine(nil), order.Lines...)
	return order, nil
}

func (s orderRepo) ListByBusiness(_ context.Context, businessID string, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	return s.list(func(o domain.Order) bool { return o.BusinessID == businessID }, filter)
}

func (s orderRepo) ListByProvider(_ context.Context, providerID string, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	return s.list(func(o domain.Order) bool { return o.ProviderID == providerID }, filter)
}

func (s orderRepo) list(match func(domain.Order) bool, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	var items []domain.Order
	for _, o := range s.r.orders {
		if !match(o) {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.DateFrom != nil && o.CreatedAt.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && o.CreatedAt.After(*filter.DateTo) {
			continue
		}
		items = append(items, o)
	}
	sortNewestFirst(items, func(o domain.Order) string { return o.ID })
	return paginate(items, filter.Page, func(o domain.Order) string { return o.ID }), nil
}

type deliveryRepo struct{ r *Registry }

func (s deliveryRepo) Insert(_ context.Context, delivery domain.Delivery) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	for _, d := range s.r.deliveries {
		if d.OrderID == delivery.OrderID {
			return repositories.ErrConflict
		}
	}
	s.r.deliveries[delivery.ID] = delivery
	return nil
}

func (s deliveryRepo) Update(_ context.Context, delivery domain.Delivery) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	if _, ok := s.r.deliveries[delivery.ID]; !ok {
		return repositories.ErrNotFound
	}
	s.r.deliveries[delivery.ID] = delivery
	return nil
}

func (s deliveryRepo) FindByID(_ context.Context, deliveryID string) (domain.Delivery, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	delivery, ok := s.r.deliveries[deliveryID]
	if !ok {
		return domain.Delivery{}, repositories.ErrNotFound
	}
	return delivery, nil
}

func (s deliveryRepo) FindByOrderID(_ context.Context, orderID string) (domain.Delivery, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	for _, d := range s.r.deliveries {
		if d.OrderID == orderID {
			return d, nil
		}
	}
	return domain.Delivery{}, repositories.ErrNotFound
}

type invoiceRepo struct{ r *Registry }

func (s invoiceRepo) Insert(_ context.Context, invoice domain.Invoice) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	if _, exists := s.r.invoices[invoice.ID]; exists {
		return repositories.ErrConflict
	}
	for _, inv := range s.r.invoices {
		if inv.OrderID == invoice.OrderID {
			return repositories.ErrConflict
		}
	}
	invoice.Lines = append([]domain.InvoiceLine(nil), invoice.Lines...)
	s.r.invoices[invoice.ID] = invoice
	return nil
}

func (s invoiceRepo) Update(_ context.Context, invoice domain.Invoice) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	existing, ok := s.r.invoices[invoice.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	invoice.Lines = existing.Lines
	s.r.invoices[invoice.ID] = invoice
	return nil
}

func (s invoiceRepo) FindByID(_ context.Context, invoiceID string) (domain.Invoice, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	return s.findLocked(invoiceID)
}

func (s invoiceRepo) FindByIDForUpdate(_ context.Context, invoiceID string) (domain.Invoice, error) {
	// The registry-wide transaction mutex held by RunInTx is the lock surrogate.
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	return s.findLocked(invoiceID)
}

func (s invoiceRepo) findLocked(invoiceID string) (domain.Invoice, error) {
	invoice, ok := s.r.invoices[invoiceID]
	if !ok {
		return domain.Invoice{}, repositories.ErrNotFound
	}
	invoice.Lines = append([]domain.InvoiceLine(nil), invoice.Lines...)
	return invoice, nil
}

func (s invoiceRepo) FindByOrderID(_ context.Context, orderID string) (domain.Invoice, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	for _, inv := range s.r.invoices {
		if inv.OrderID == orderID {
			return inv, nil
		}
	}
	return domain.Invoice{}, repositories.ErrNotFound
}

func (s invoiceRepo) FindByCheckoutSessionID(_ context.Context, sessionID string) (domain.Invoice, error) {
	if sessionID == "" {
		return domain.Invoice{}, repositories.ErrNotFound
	}
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	for _, inv := range s.r.invoices {
		if inv.CheckoutSessionID == sessionID {
			return inv, nil
		}
	}
	return domain.Invoice{}, repositories.ErrNotFound
}

func (s invoiceRepo) ListByBusiness(_ context.Context, businessID string, filter repositories.InvoiceListFilter) (domain.CursorPage[domain.Invoice], error) {
	return s.list(func(i domain.Invoice) bool { return i.BusinessID == businessID }, filter)
}

func (s invoiceRepo) ListByProvider(_ context.Context, providerID string, filter repositories.InvoiceListFilter) (domain.CursorPage[domain.Invoice], error) {
	return s.list(func(i domain.Invoice) bool { return i.ProviderID == providerID }, filter)
}

func (s invoiceRepo) list(match func(domain.Invoice) bool, filter repositories.InvoiceListFilter) (domain.CursorPage[domain.Invoice], error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	var items []domain.Invoice
	for _, inv := range s.r.invoices {
		if !match(inv) {
			continue
		}
		if filter.Status != "" && inv.Status != filter.Status {
			continue
		}
		items = append(items, inv)
	}
	sortNewestFirst(items, func(i domain.Invoice) string { return i.ID })
	return paginate(items, filter.Page, func(i domain.Invoice) string { return i.ID }), nil
}

type paymentRepo struct{ r *Registry }

func (s paymentRepo) Insert(_ context.Context, payment domain.Payment) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	s.r.payments = append(s.r.payments, payment)
	return nil
}

func (s paymentRepo) ListByInvoiceID(_ context.Context, invoiceID string) ([]domain.Payment, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	var out []domain.Payment
	for _, p := range s.r.payments {
		if p.InvoiceID == invoiceID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s paymentRepo) ListForAccounts(_ context.Context, businessIDs, providerIDs []string, page domain.Pagination) (domain.CursorPage[domain.Payment], error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	businesses := make(map[string]struct{}, len(businessIDs))
	for _, id := range businessIDs {
		businesses[id] = struct{}{}
	}
	providers := make(map[string]struct{}, len(providerIDs))
	for _, id := range providerIDs {
		providers[id] = struct{}{}
	}

	var items []domain.Payment
	for _, p := range s.r.payments {
		if _, ok := businesses[p.BusinessID]; ok {
			items = append(items, p)
			continue
		}
		if inv, ok := s.r.invoices[p.InvoiceID]; ok {
			if _, match := providers[inv.ProviderID]; match {
				items = append(items, p)
			}
		}
	}
	sortNewestFirst(items, func(p domain.Payment) string { return p.ID })
	return paginate(items, page, func(p domain.Payment) string { return p.ID }), nil
}

type catalogRepo struct{ r *Registry }

func (s catalogRepo) FindProvider(_ context.Context, providerID string) (domain.Provider, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	provider, ok := s.r.providers[providerID]
	if !ok {
		return domain.Provider{}, repositories.ErrNotFound
	}
	return provider, nil
}

func (s catalogRepo) FindProductsByIDs(_ context.Context, providerID string, productIDs []string) ([]domain.Product, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	out := make([]domain.Product, 0, len(productIDs))
	for _, id := range productIDs {
		if p, ok := s.r.products[id]; ok && p.ProviderID == providerID {
			out = append(out, p)
		}
	}
	return out, nil
}

type locationRepo struct{ r *Registry }

func (s locationRepo) FindBusinessLocation(_ context.Context, locationID, businessID string) (domain.Location, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	location, ok := s.r.locations[locationID]
	if !ok || location.OwnerType != "business" || location.OwnerID != businessID {
		return domain.Location{}, repositories.ErrNotFound
	}
	return location, nil
}

// sortNewestFirst orders items by descending identifier. Identifiers are ULIDs, so
// lexicographic order matches creation order.
func sortNewestFirst[T any](items []T, id func(T) string) {
	sort.Slice(items, func(a, b int) bool { return id(items[a]) > id(items[b]) })
}

func paginate[T any](items []T, page domain.Pagination, id func(T) string) domain.CursorPage[T] {
	limit := page.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > 100 {
		limit = 100
	}

	start := 0
	if page.Cursor != "" {
		for i, item := range items {
			if id(item) < page.Cursor {
				start = i
				break
			}
			start = len(items)
		}
	}

	end := start + limit
	if end > len(items) {
		end = len(items)
	}

	out := domain.CursorPage[T]{Items: append([]T(nil), items[start:end]...)}
	if end < len(items) && len(out.Items) > 0 {
		out.NextCursor = id(out.Items[len(out.Items)-1])
	}
	return out
}
