package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	domain "github.com/supplynet/api/internal/domain"
)

type paymentRepo struct{ r *Registry }

const paymentColumns = `
	id, invoice_id, business_id, amount, currency, status, method,
	payment_intent_id, session_id, paid_at, created_at`

const paymentColumnsPrefixed = `
	p.id, p.invoice_id, p.business_id, p.amount, p.currency, p.status, p.method,
	p.payment_intent_id, p.session_id, p.paid_at, p.created_at`

func scanPayment(row pgx.Row) (domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(
		&p.ID, &p.InvoiceID, &p.BusinessID, &p.Amount, &p.Currency, &p.Status,
		&p.Method, &p.PaymentIntentID, &p.SessionID, &p.PaidAt, &p.CreatedAt,
	)
	return p, err
}

func (s paymentRepo) Insert(ctx context.Context, payment domain.Payment) error {
	_, err := s.r.db(ctx).Exec(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		payment.ID, payment.InvoiceID, payment.BusinessID, payment.Amount,
		payment.Currency, payment.Status, payment.Method, payment.PaymentIntentID,
		payment.SessionID, payment.PaidAt, payment.CreatedAt,
	)
	return mapError("insert payment", err)
}

func (s paymentRepo) ListByInvoiceID(ctx context.Context, invoiceID string) ([]domain.Payment, error) {
	rows, err := s.r.db(ctx).Query(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE invoice_id = $1 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, mapError("list payments by invoice", err)
	}
	defer rows.Close()

	var out []domain.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, mapError("scan payment", err)
		}
		out = append(out, payment)
	}
	return out, rows.Err()
}

func (s paymentRepo) ListForAccounts(ctx context.Context, businessIDs, providerIDs []string, page domain.Pagination) (domain.CursorPage[domain.Payment], error) {
	if len(businessIDs) == 0 && len(providerIDs) == 0 {
		return domain.CursorPage[domain.Payment]{}, nil
	}

	limit := pageLimit(page)
	query := `
		SELECT ` + paymentColumnsPrefixed + `
		FROM payments p
		LEFT JOIN invoices i ON i.id = p.invoice_id
		WHERE (p.business_id = ANY($1) OR i.provider_id = ANY($2))`
	args := []any{businessIDs, providerIDs}

	if page.Cursor != "" {
		args = append(args, page.Cursor)
		query += fmt.Sprintf(" AND p.id < $%d", len(args))
	}
	args = append(args, limit+1)
	query += fmt.Sprintf(" ORDER BY p.id DESC LIMIT $%d", len(args))

	rows, err := s.r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return domain.CursorPage[domain.Payment]{}, mapError("list payments", err)
	}
	defer rows.Close()

	var items []domain.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return domain.CursorPage[domain.Payment]{}, mapError("scan payment", err)
		}
		items = append(items, payment)
	}
	if err := rows.Err(); err != nil {
		return domain.CursorPage[domain.Payment]{}, mapError("iterate payments", err)
	}

	return cursorPage(items, limit, func(p domain.Payment) string { return p.ID }), nil
}
