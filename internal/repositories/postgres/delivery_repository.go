package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	domain "github.com/supplynet/api/internal/domain"
	"github.com/supplynet/api/internal/repositories"
)

type deliveryRepo struct{ r *Registry }

const deliveryColumns = `
	id, order_id, status, tracking_code, estimated_delivery_at, actual_delivery_at,
	created_at, updated_at`

func scanDelivery(row pgx.Row) (domain.Delivery, error) {
	var d domain.Delivery
	err := row.Scan(
		&d.ID, &d.OrderID, &d.Status, &d.TrackingCode, &d.EstimatedDeliveryAt,
		&d.ActualDeliveryAt, &d.CreatedAt, &d.UpdatedAt,
	)
	return d, err
}

func (s deliveryRepo) Insert(ctx context.Context, delivery domain.Delivery) error {
	// order_id carries a unique index: one delivery per confirmed order.
	_, err := s.r.db(ctx).Exec(ctx, `
		INSERT INTO deliveries (`+deliveryColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		delivery.ID, delivery.OrderID, delivery.Status, delivery.TrackingCode,
		delivery.EstimatedDeliveryAt, delivery.ActualDeliveryAt,
		delivery.CreatedAt, delivery.UpdatedAt,
	)
	return mapError("insert delivery", err)
}

func (s deliveryRepo) Update(ctx context.Context, delivery domain.Delivery) error {
	tag, err := s.r.db(ctx).Exec(ctx, `
		UPDATE deliveries SET
			status = $2, tracking_code = $3, estimated_delivery_at = $4,
			actual_delivery_at = $5, updated_at = $6
		WHERE id = $1`,
		delivery.ID, delivery.Status, delivery.TrackingCode,
		delivery.EstimatedDeliveryAt, delivery.ActualDeliveryAt, delivery.UpdatedAt,
	)
	if err != nil {
		return mapError("update delivery", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update delivery: %w", repositories.ErrNotFound)
	}
	return nil
}

func (s deliveryRepo) FindByID(ctx context.Context, deliveryID string) (domain.Delivery, error) {
	delivery, err := scanDelivery(s.r.db(ctx).QueryRow(ctx,
		`SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1`, deliveryID))
	if err != nil {
		return domain.Delivery{}, mapError("find delivery", err)
	}
	return delivery, nil
}

func (s deliveryRepo) FindByOrderID(ctx context.Context, orderID string) (domain.Delivery, error) {
	delivery, err := scanDelivery(s.r.db(ctx).QueryRow(ctx,
		`SELECT `+deliveryColumns+` FROM deliveries WHERE order_id = $1`, orderID))
	if err != nil {
		return domain.Delivery{}, mapError("find delivery by order", err)
	}
	return delivery, nil
}
