package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/supplynet/api/internal/domain"
	"github.com/supplynet/api/internal/platform/httpx"
	"github.com/supplynet/api/internal/repositories"
	"github.com/supplynet/api/internal/services"
)

func parseInvoiceFilter(r *http.Request) (repositories.InvoiceListFilter, string) {
	filter := repositories.InvoiceListFilter{
		Status: domain.InvoiceStatus(strings.TrimSpace(r.URL.Query().Get("status"))),
	}
	page, ok := parsePagination(r)
	if !ok {
		return filter, "limit must be a positive integer"
	}
	if page.Limit == 0 {
		page.Limit = defaultPageSize
	}
	if page.Limit > maxPageSize {
		page.Limit = maxPageSize
	}
	filter.Page = page
	return filter, ""
}

type issueInvoiceRequest struct {
	OrderID string `json:"order_id"`
}

// InvoiceHandlers exposes invoice issuance and the shared invoice detail view.
type InvoiceHandlers struct {
	invoices services.InvoiceService
}

// NewInvoiceHandlers constructs a new InvoiceHandlers instance.
func NewInvoiceHandlers(invoices services.InvoiceService) *InvoiceHandlers {
	return &InvoiceHandlers{invoices: invoices}
}

// Routes registers the /invoices endpoints.
func (h *InvoiceHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.issueInvoice)
	r.Get("/{invoiceID}", h.getInvoice)
}

func (h *InvoiceHandlers) issueInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requirePrincipal(ctx, w)
	if !ok {
		return
	}

	var req issueInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(ctx, w, err.Error())
		return
	}
	if strings.TrimSpace(req.OrderID) == "" {
		httpx.BadRequest(ctx, w, "order_id is required")
		return
	}

	invoice, err := h.invoices.IssueInvoice(ctx, services.IssueInvoiceCommand{
		Principal: principal,
		OrderID:   strings.TrimSpace(req.OrderID),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, newInvoiceView(invoice, true))
}

func (h *InvoiceHandlers) getInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requirePrincipal(ctx, w)
	if !ok {
		return
	}

	invoice, err := h.invoices.GetInvoice(ctx, principal, chi.URLParam(r, "invoiceID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newInvoiceView(invoice, true))
}
