package postgres

import (
	"context"

	domain "github.com/supplynet/api/internal/domain"
)

// catalogRepo and locationRepo are read-only views over tables owned by the
// catalog and profile subsystems.
type catalogRepo struct{ r *Registry }

func (s catalogRepo) FindProvider(ctx context.Context, providerID string) (domain.Provider, error) {
	var p domain.Provider
	err := s.r.db(ctx).QueryRow(ctx,
		`SELECT id, name, status FROM providers WHERE id = $1`, providerID,
	).Scan(&p.ID, &p.Name, &p.Status)
	if err != nil {
		return domain.Provider{}, mapError("find provider", err)
	}
	return p, nil
}

func (s catalogRepo) FindProductsByIDs(ctx context.Context, providerID string, productIDs []string) ([]domain.Product, error) {
	rows, err := s.r.db(ctx).Query(ctx, `
		SELECT id, provider_id, name, unit, price, tax_rate, currency, allowed_sizes
		FROM products
		WHERE provider_id = $1 AND id = ANY($2)`,
		providerID, productIDs,
	)
	if err != nil {
		return nil, mapError("find products", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.ProviderID, &p.Name, &p.Unit, &p.Price,
			&p.TaxRate, &p.Currency, &p.AllowedSizes); err != nil {
			return nil, mapError("scan product", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type locationRepo struct{ r *Registry }

func (s locationRepo) FindBusinessLocation(ctx context.Context, locationID, businessID string) (domain.Location, error) {
	var l domain.Location
	err := s.r.db(ctx).QueryRow(ctx, `
		SELECT id, owner_type, owner_id, address_line_1, city, postal_code, country
		FROM locations
		WHERE id = $1 AND owner_type = 'business' AND owner_id = $2`,
		locationID, businessID,
	).Scan(&l.ID, &l.OwnerType, &l.OwnerID, &l.AddressLine1, &l.City, &l.PostalCode, &l.Country)
	if err != nil {
		return domain.Location{}, mapError("find location", err)
	}
	return l, nil
}
