package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	domain "github.com/supplynet/api/internal/domain"
	"github.com/supplynet/api/internal/repositories"
)

type invoiceRepo struct{ r *Registry }

const invoiceColumns = `
	id, invoice_number, order_id, business_id, provider_id, status, subtotal,
	tax_total, total, currency, due_date, checkout_session_id, issued_at, paid_at,
	created_at, updated_at`

func scanInvoice(row pgx.Row) (domain.Invoice, error) {
	var inv domain.Invoice
	err := row.Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.OrderID, &inv.BusinessID, &inv.ProviderID,
		&inv.Status, &inv.Subtotal, &inv.TaxTotal, &inv.Total, &inv.Currency,
		&inv.DueDate, &inv.CheckoutSessionID, &inv.IssuedAt, &inv.PaidAt,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	return inv, err
}

func (s invoiceRepo) Insert(ctx context.Context, invoice domain.Invoice) error {
	return s.r.RunInTx(ctx, func(ctx context.Context) error {
		db := s.r.db(ctx)

		// The unique index on order_id enforces one-invoice-per-order at the storage
		// layer in addition to the service-level precondition check.
		_, err := db.Exec(ctx, `
			INSERT INTO invoices (`+invoiceColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
			invoice.ID, invoice.InvoiceNumber, invoice.OrderID, invoice.BusinessID,
			invoice.ProviderID, invoice.Status, invoice.Subtotal, invoice.TaxTotal,
			invoice.Total, invoice.Currency, invoice.DueDate, invoice.CheckoutSessionID,
			invoice.IssuedAt, invoice.PaidAt, invoice.CreatedAt, invoice.UpdatedAt,
		)
		if err != nil {
			return mapError("insert invoice", err)
		}

		for _, line := range invoice.Lines {
			_, err := db.Exec(ctx, `
				INSERT INTO invoice_lines (id, invoice_id, order_id, description, quantity, unit, unit_price, line_total)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
				line.ID, invoice.ID, line.OrderID, line.Description, line.Quantity,
				line.Unit, line.UnitPrice, line.LineTotal,
			)
			if err != nil {
				return mapError("insert invoice line", err)
			}
		}
		return nil
	})
}

func (s invoiceRepo) Update(ctx context.Context, invoice domain.Invoice) error {
	tag, err := s.r.db(ctx).Exec(ctx, `
		UPDATE invoices SET
			status = $2, checkout_session_id = $3, issued_at = $4, paid_at = $5, updated_at = $6
		WHERE id = $1`,
		invoice.ID, invoice.Status, invoice.CheckoutSessionID, invoice.IssuedAt,
		invoice.PaidAt, invoice.UpdatedAt,
	)
	if err != nil {
		return mapError("update invoice", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update invoice: %w", repositories.ErrNotFound)
	}
	return nil
}

func (s invoiceRepo) FindByID(ctx context.Context, invoiceID string) (domain.Invoice, error) {
	return s.findOne(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, invoiceID)
}

// FindByIDForUpdate takes a row-level write lock that is held until the enclosing
// transaction commits or rolls back. Concurrent webhook deliveries for the same
// invoice serialise here.
func (s invoiceRepo) FindByIDForUpdate(ctx context.Context, invoiceID string) (domain.Invoice, error) {
	return s.findOne(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 FOR UPDATE`, invoiceID)
}

func (s invoiceRepo) FindByOrderID(ctx context.Context, orderID string) (domain.Invoice, error) {
	return s.findOne(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE order_id = $1`, orderID)
}

func (s invoiceRepo) FindByCheckoutSessionID(ctx context.Context, sessionID string) (domain.Invoice, error) {
	if sessionID == "" {
		return domain.Invoice{}, fmt.Errorf("find invoice by session: %w", repositories.ErrNotFound)
	}
	return s.findOne(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE checkout_session_id = $1`, sessionID)
}

func (s invoiceRepo) findOne(ctx context.Context, query, arg string) (domain.Invoice, error) {
	db := s.r.db(ctx)

	invoice, err := scanInvoice(db.QueryRow(ctx, query, arg))
	if err != nil {
		return domain.Invoice{}, mapError("find invoice", err)
	}

	rows, err := db.Query(ctx, `
		SELECT id, invoice_id, order_id, description, quantity, unit, unit_price, line_total
		FROM invoice_lines WHERE invoice_id = $1 ORDER BY id`, invoice.ID)
	if err != nil {
		return domain.Invoice{}, mapError("find invoice lines", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.InvoiceLine
		if err := rows.Scan(&line.ID, &line.InvoiceID, &line.OrderID, &line.Description,
			&line.Quantity, &line.Unit, &line.UnitPrice, &line.LineTotal); err != nil {
			return domain.Invoice{}, mapError("scan invoice line", err)
		}
		invoice.Lines = append(invoice.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return domain.Invoice{}, mapError("iterate invoice lines", err)
	}
	return invoice, nil
}

func (s invoiceRepo) ListByBusiness(ctx context.Context, businessID string, filter repositories.InvoiceListFilter) (domain.CursorPage[domain.Invoice], error) {
	return s.list(ctx, "business_id", businessID, filter)
}

func (s invoiceRepo) ListByProvider(ctx context.Context, providerID string, filter repositories.InvoiceListFilter) (domain.CursorPage[domain.Invoice], error) {
	return s.list(ctx, "provider_id", providerID, filter)
}

func (s invoiceRepo) list(ctx context.Context, ownerColumn, ownerID string, filter repositories.InvoiceListFilter) (domain.CursorPage[domain.Invoice], error) {
	limit := pageLimit(filter.Page)

	var sb strings.Builder
	sb.WriteString(`SELECT ` + invoiceColumns + ` FROM invoices WHERE ` + ownerColumn + ` = $1`)
	args := []any{ownerID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		fmt.Fprintf(&sb, " AND status = $%d", len(args))
	}
	if filter.Page.Cursor != "" {
		args = append(args, filter.Page.Cursor)
		fmt.Fprintf(&sb, " AND id < $%d", len(args))
	}
	args = append(args, limit+1)
	fmt.Fprintf(&sb, " ORDER BY id DESC LIMIT $%d", len(args))

	rows, err := s.r.db(ctx).Query(ctx, sb.String(), args...)
	if err != nil {
		return domain.CursorPage[domain.Invoice]{}, mapError("list invoices", err)
	}
	defer rows.Close()

	var items []domain.Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return domain.CursorPage[domain.Invoice]{}, mapError("scan invoice", err)
		}
		items = append(items, invoice)
	}
	if err := rows.Err(); err != nil {
		return domain.CursorPage[domain.Invoice]{}, mapError("iterate invoices", err)
	}

	return cursorPage(items, limit, func(i domain.Invoice) string { return i.ID }), nil
}
