package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	domain "github.com/supplynet/api/internal/domain"
	"github.com/supplynet/api/internal/repositories"
)

const defaultPageLimit = 20

type orderRepo struct{ r *Registry }

const orderColumns = `
	id, order_number, business_id, provider_id, delivery_location_id, status,
	subtotal, tax_total, total, currency, requested_delivery_date, notes,
	internal_notes, cancellation_reason, submitted_at, confirmed_at, delivered_at,
	cancelled_at, created_at, updated_at`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.BusinessID, &o.ProviderID, &o.DeliveryLocationID, &o.Status,
		&o.Subtotal, &o.TaxTotal, &o.Total, &o.Currency, &o.RequestedDeliveryDate, &o.Notes,
		&o.InternalNotes, &o.CancellationReason, &o.SubmittedAt, &o.ConfirmedAt, &o.DeliveredAt,
		&o.CancelledAt, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

func (s orderRepo) Insert(ctx context.Context, order domain.Order) error {
	// Header and lines are written atomically so readers never observe an order
	// without its lines. Joins the caller's transaction when one is open.
	return s.r.RunInTx(ctx, func(ctx context.Context) error {
		db := s.r.db(ctx)

		_, err := db.Exec(ctx, `
			INSERT INTO orders (`+orderColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
			order.ID, order.OrderNumber, order.BusinessID, order.ProviderID, order.DeliveryLocationID,
			order.Status, order.Subtotal, order.TaxTotal, order.Total, order.Currency,
			order.RequestedDeliveryDate, order.Notes, order.InternalNotes, order.CancellationReason,
			order.SubmittedAt, order.ConfirmedAt, order.DeliveredAt, order.CancelledAt,
			order.CreatedAt, order.UpdatedAt,
		)
		if err != nil {
			return mapError("insert order", err)
		}

		for _, line := range order.Lines {
			_, err := db.Exec(ctx, `
				INSERT INTO order_lines (id, order_id, product_id, name, quantity, unit, unit_price, tax_rate, line_total)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
				line.ID, order.ID, line.ProductID, line.Name, line.Quantity, line.Unit,
				line.UnitPrice, line.TaxRate, line.LineTotal,
			)
			if err != nil {
				return mapError("insert order line", err)
			}
		}
		return nil
	})
}

func (s orderRepo) Update(ctx context.Context, order domain.Order) error {
	tag, err := s.r.db(ctx).Exec(ctx, `
		UPDATE orders SET
			status = $2, notes = $3, internal_notes = $4, cancellation_reason = $5,
			submitted_at = $6, confirmed_at = $7, delivered_at = $8, cancelled_at = $9,
			updated_at = $10
		WHERE id = $1`,
		order.ID, order.Status, order.Notes, order.InternalNotes, order.CancellationReason,
		order.SubmittedAt, order.ConfirmedAt, order.DeliveredAt, order.CancelledAt, order.UpdatedAt,
	)
	if err != nil {
		return mapError("update order", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update order: %w", repositories.ErrNotFound)
	}
	return nil
}

func (s orderRepo) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	db := s.r.db(ctx)

	order, err := scanOrder(db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID))
	if err != nil {
		return domain.Order{}, mapError("find order", err)
	}

	rows, err := db.Query(ctx, `
		SELECT id, order_id, product_id, name, quantity, unit, unit_price, tax_rate, line_total
		FROM order_lines WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return domain.Order{}, mapError("find order lines", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.ID, &line.OrderID, &line.ProductID, &line.Name, &line.Quantity,
			&line.Unit, &line.UnitPrice, &line.TaxRate, &line.LineTotal); err != nil {
			return domain.Order{}, mapError("scan order line", err)
		}
		order.Lines = append(order.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return domain.Order{}, mapError("iterate order lines", err)
	}
	return order, nil
}

func (s orderRepo) ListByBusiness(ctx context.Context, businessID string, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	return s.list(ctx, "business_id", businessID, filter)
}

func (s orderRepo) ListByProvider(ctx context.Context, providerID string, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	return s.list(ctx, "provider_id", providerID, filter)
}

func (s orderRepo) list(ctx context.Context, ownerColumn, ownerID string, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	limit := pageLimit(filter.Page)

	var sb strings.Builder
	sb.WriteString(`SELECT ` + orderColumns + ` FROM orders WHERE ` + ownerColumn + ` = $1`)
	args := []any{ownerID}

	appendArg := func(clause string, value any) {
		args = append(args, value)
		fmt.Fprintf(&sb, " AND %s $%d", clause, len(args))
	}
	if filter.Status != "" {
		appendArg("status =", filter.Status)
	}
	if filter.DateFrom != nil {
		appendArg("created_at >=", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		appendArg("created_at <=", *filter.DateTo)
	}
	if filter.Page.Cursor != "" {
		appendArg("id <", filter.Page.Cursor)
	}
	args = append(args, limit+1)
	fmt.Fprintf(&sb, " ORDER BY id DESC LIMIT $%d", len(args))

	rows, err := s.r.db(ctx).Query(ctx, sb.String(), args...)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, mapError("list orders", err)
	}
	defer rows.Close()

	var items []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, mapError("scan order", err)
		}
		items = append(items, order)
	}
	if err := rows.Err(); err != nil {
		return domain.CursorPage[domain.Order]{}, mapError("iterate orders", err)
	}

	return cursorPage(items, limit, func(o domain.Order) string { return o.ID }), nil
}

func pageLimit(page domain.Pagination) int {
	limit := page.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > 100 {
		limit = 100
	}
	return limit
}

// cursorPage trims the limit+1 sentinel row and derives the next cursor from it.
func cursorPage[T any](items []T, limit int, id func(T) string) domain.CursorPage[T] {
	page := domain.CursorPage[T]{Items: items}
	if len(items) > limit {
		page.Items = items[:limit]
		page.NextCursor = id(page.Items[len(page.Items)-1])
	}
	return page
}
