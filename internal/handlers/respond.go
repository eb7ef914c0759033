package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/supplynet/api/internal/domain"
	"github.com/supplynet/api/internal/platform/httpx"
	"github.com/supplynet/api/internal/services"
)

// writeServiceError maps service sentinels onto the canonical error envelope.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrProviderInactive):
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeValidationFailed, err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrForbidden):
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeForbidden, err.Error(), http.StatusForbidden))
	case errors.Is(err, services.ErrNotFound):
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeNotFound, err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrConflict):
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeConflict, err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrWebhookSignature):
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeInvalidSignature, err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeProviderUnavailable, err.Error(), http.StatusBadGateway))
	default:
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeInternal, "internal error", http.StatusInternalServerError))
	}
}

func parsePagination(r *http.Request) (domain.Pagination, bool) {
	page := domain.Pagination{Cursor: strings.TrimSpace(r.URL.Query().Get("cursor"))}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return domain.Pagination{}, false
		}
		page.Limit = limit
	}
	return page, true
}

// money renders a monetary decimal at two places.
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

type orderLineView struct {
	ProductID string `json:"product_id,omitempty"`
	Name      string `json:"name"`
	Quantity  string `json:"quantity"`
	Unit      string `json:"unit"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

func orderLineViews(lines []domain.OrderLine, includeProductID bool) []orderLineView {
	out := make([]orderLineView, 0, len(lines))
	for _, l := range lines {
		v := orderLineView{
			Name:      l.Name,
			Quantity:  l.Quantity.String(),
			Unit:      l.Unit,
			UnitPrice: l.UnitPrice.String(),
			LineTotal: money(l.LineTotal),
		}
		if includeProductID {
			v.ProductID = l.ProductID
		}
		out = append(out, v)
	}
	return out
}

type orderSummaryView struct {
	OrderID               string    `json:"order_id"`
	OrderNumber           string    `json:"order_number"`
	BusinessID            string    `json:"business_id,omitempty"`
	ProviderID            string    `json:"provider_id,omitempty"`
	Status                string    `json:"status"`
	Total                 string    `json:"total"`
	Currency              string    `json:"currency"`
	RequestedDeliveryDate time.Time `json:"requested_delivery_date"`
	CreatedAt             time.Time `json:"created_at"`
}

func buyerOrderSummary(o domain.Order) orderSummaryView {
	return orderSummaryView{
		OrderID:               o.ID,
		OrderNumber:           o.OrderNumber,
		ProviderID:            o.ProviderID,
		Status:                string(o.Status),
		Total:                 money(o.Total),
		Currency:              o.Currency,
		RequestedDeliveryDate: o.RequestedDeliveryDate,
		CreatedAt:             o.CreatedAt,
	}
}

func providerOrderSummary(o domain.Order) orderSummaryView {
	v := buyerOrderSummary(o)
	v.ProviderID = ""
	v.BusinessID = o.BusinessID
	return v
}

type locationView struct {
	AddressLine1 string `json:"address_line_1"`
	City         string `json:"city"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
}

type orderDetailView struct {
	OrderID               string          `json:"order_id"`
	OrderNumber           string          `json:"order_number"`
	BusinessID            string          `json:"business_id,omitempty"`
	ProviderID            string          `json:"provider_id,omitempty"`
	DeliveryLocationID    string          `json:"delivery_location_id,omitempty"`
	DeliveryID            string          `json:"delivery_id,omitempty"`
	DeliveryLocation      *locationView   `json:"delivery_location,omitempty"`
	Status                string          `json:"status"`
	Lines                 []orderLineView `json:"lines"`
	Subtotal              string          `json:"subtotal"`
	TaxTotal              string          `json:"tax_total"`
	Total                 string          `json:"total"`
	Currency              string          `json:"currency"`
	RequestedDeliveryDate time.Time       `json:"requested_delivery_date"`
	Notes                 string          `json:"notes,omitempty"`
	InternalNotes         string          `json:"internal_notes,omitempty"`
	CancellationReason    string          `json:"cancellation_reason,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
}

// buyerOrderDetail omits internal notes; they are provider-only.
func buyerOrderDetail(d services.OrderDetail) orderDetailView {
	o := d.Order
	v := orderDetailView{
		OrderID:               o.ID,
		OrderNumber:           o.OrderNumber,
		ProviderID:            o.ProviderID,
		DeliveryLocationID:    o.DeliveryLocationID,
		Status:                string(o.Status),
		Lines:                 orderLineViews(o.Lines, true),
		Subtotal:              money(o.Subtotal),
		TaxTotal:              money(o.TaxTotal),
		Total:                 money(o.Total),
		Currency:              o.Currency,
		RequestedDeliveryDate: o.RequestedDeliveryDate,
		Notes:                 o.Notes,
		CancellationReason:    o.CancellationReason,
		CreatedAt:             o.CreatedAt,
	}
	if d.Delivery != nil {
		v.DeliveryID = d.Delivery.ID
	}
	return v
}

func providerOrderDetail(d services.OrderDetail) orderDetailView {
	o := d.Order
	v := orderDetailView{
		OrderID:               o.ID,
		OrderNumber:           o.OrderNumber,
		BusinessID:            o.BusinessID,
		Status:                string(o.Status),
		Lines:                 orderLineViews(o.Lines, false),
		Subtotal:              money(o.Subtotal),
		TaxTotal:              money(o.TaxTotal),
		Total:                 money(o.Total),
		Currency:              o.Currency,
		RequestedDeliveryDate: o.RequestedDeliveryDate,
		Notes:                 o.Notes,
		InternalNotes:         o.InternalNotes,
		CancellationReason:    o.CancellationReason,
		CreatedAt:             o.CreatedAt,
	}
	if d.Delivery != nil {
		v.DeliveryID = d.Delivery.ID
	}
	if d.Location != nil {
		v.DeliveryLocation = &locationView{
			AddressLine1: d.Location.AddressLine1,
			City:         d.Location.City,
			PostalCode:   d.Location.PostalCode,
			Country:      d.Location.Country,
		}
	}
	return v
}

type deliveryView struct {
	DeliveryID          string     `json:"delivery_id"`
	OrderID             string     `json:"order_id"`
	Status              string     `json:"status"`
	TrackingCode        string     `json:"tracking_code,omitempty"`
	EstimatedDeliveryAt *time.Time `json:"estimated_delivery_at,omitempty"`
	ActualDeliveryAt    *time.Time `json:"actual_delivery_at,omitempty"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func newDeliveryView(d domain.Delivery) deliveryView {
	return deliveryView{
		DeliveryID:          d.ID,
		OrderID:             d.OrderID,
		Status:              string(d.Status),
		TrackingCode:        d.TrackingCode,
		EstimatedDeliveryAt: d.EstimatedDeliveryAt,
		ActualDeliveryAt:    d.ActualDeliveryAt,
		UpdatedAt:           d.UpdatedAt,
	}
}

type invoiceLineView struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	Unit        string `json:"unit"`
	UnitPrice   string `json:"unit_price"`
	LineTotal   string `json:"line_total"`
	OrderID     string `json:"order_id"`
}

type invoiceView struct {
	InvoiceID     string            `json:"invoice_id"`
	InvoiceNumber string            `json:"invoice_number"`
	OrderID       string            `json:"order_id"`
	BusinessID    string            `json:"business_id"`
	ProviderID    string            `json:"provider_id"`
	Status        string            `json:"status"`
	Lines         []invoiceLineView `json:"lines,omitempty"`
	Subtotal      string            `json:"subtotal"`
	TaxTotal      string            `json:"tax_total"`
	Total         string            `json:"total"`
	Currency      string            `json:"currency"`
	DueDate       time.Time         `json:"due_date"`
	IssuedAt      *time.Time        `json:"issued_at,omitempty"`
	PaidAt        *time.Time        `json:"paid_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

func newInvoiceView(inv domain.Invoice, includeLines bool) invoiceView {
	v := invoiceView{
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		OrderID:       inv.OrderID,
		BusinessID:    inv.BusinessID,
		ProviderID:    inv.ProviderID,
		Status:        string(inv.Status),
		Subtotal:      money(inv.Subtotal),
		TaxTotal:      money(inv.TaxTotal),
		Total:         money(inv.Total),
		Currency:      inv.Currency,
		DueDate:       inv.DueDate,
		IssuedAt:      inv.IssuedAt,
		PaidAt:        inv.PaidAt,
		CreatedAt:     inv.CreatedAt,
	}
	if includeLines {
		for _, l := range inv.Lines {
			v.Lines = append(v.Lines, invoiceLineView{
				Description: l.Description,
				Quantity:    l.Quantity.String(),
				Unit:        l.Unit,
				UnitPrice:   l.UnitPrice.String(),
				LineTotal:   money(l.LineTotal),
				OrderID:     l.OrderID,
			})
		}
	}
	return v
}

type paymentView struct {
	PaymentID       string     `json:"payment_id"`
	InvoiceID       string     `json:"invoice_id"`
	BusinessID      string     `json:"business_id"`
	Amount          string     `json:"amount"`
	Currency        string     `json:"currency"`
	Status          string     `json:"status"`
	Method          string     `json:"method"`
	PaymentIntentID string     `json:"payment_intent_id,omitempty"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func newPaymentView(p domain.Payment) paymentView {
	return paymentView{
		PaymentID:       p.ID,
		InvoiceID:       p.InvoiceID,
		BusinessID:      p.BusinessID,
		Amount:          money(p.Amount),
		Currency:        p.Currency,
		Status:          string(p.Status),
		Method:          p.Method,
		PaymentIntentID: p.PaymentIntentID,
		PaidAt:          p.PaidAt,
		CreatedAt:       p.CreatedAt,
	}
}

type pageView[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

func newPageView[T, U any](page domain.CursorPage[T], convert func(T) U) pageView[U] {
	out := pageView[U]{Items: make([]U, 0, len(page.Items)), NextCursor: page.NextCursor}
	for _, item := range page.Items {
		out.Items = append(out.Items, convert(item))
	}
	return out
}
