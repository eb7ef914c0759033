package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrUnknownProduct indicates a cart line references a product outside the provider's catalog.
var ErrUnknownProduct = errors.New("product not found in provider catalog")

const moneyPlaces = 2

// CartLine is a buyer-supplied order request line before pricing.
type CartLine struct {
	ProductID string
	Quantity  decimal.Decimal
	Unit      string
}

// PricedLine is a fully resolved and priced order line ready to be snapshotted.
type PricedLine struct {
	ProductID string
	Name      string
	Unit      string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	TaxRate   decimal.Decimal
	LineTotal decimal.Decimal
}

// OrderPricing aggregates the priced lines and order totals.
type OrderPricing struct {
	Currency string
	Subtotal decimal.Decimal
	TaxTotal decimal.Decimal
	Total    decimal.Decimal
	Lines    []PricedLine
}

// PriceOrder resolves and prices every cart line against the product catalog supplied
// by the caller. Rounding to the currency's minor unit happens once per line at the
// line-total stage and once for the subtotal; intermediate unit prices stay exact so
// rounding error does not compound across lines.
//
// Any invalid line fails the whole order; the returned error names the offending
// product and wraps the resolver sentinel so callers can classify it.
func PriceOrder(products map[string]Product, lines []CartLine) (OrderPricing, error) {
	if len(lines) == 0 {
		return OrderPricing{}, errors.New("order has no lines")
	}

	pricing := OrderPricing{Lines: make([]PricedLine, 0, len(lines))}
	subtotal := decimal.Zero
	total := decimal.Zero

	for _, line := range lines {
		p, ok := products[line.ProductID]
		if !ok {
			return OrderPricing{}, fmt.Errorf("product %s: %w", line.ProductID, ErrUnknownProduct)
		}

		resolved, err := ResolveUnit(p, line.Quantity, line.Unit)
		if err != nil {
			return OrderPricing{}, fmt.Errorf("product %q: %w", p.Name, err)
		}

		one := decimal.NewFromInt(1)
		lineNet := resolved.UnitPrice.Mul(resolved.Quantity)
		lineTotal := lineNet.Mul(one.Add(p.TaxRate)).Round(moneyPlaces)

		subtotal = subtotal.Add(lineNet)
		total = total.Add(lineTotal)

		if pricing.Currency == "" {
			pricing.Currency = p.Currency
		}

		pricing.Lines = append(pricing.Lines, PricedLine{
			ProductID: p.ID,
			Name:      p.Name,
			Unit:      resolved.Unit,
			Quantity:  resolved.Quantity,
			UnitPrice: resolved.UnitPrice,
			TaxRate:   p.TaxRate,
			LineTotal: lineTotal,
		})
	}

	pricing.Subtotal = subtotal.Round(moneyPlaces)
	pricing.Total = total
	pricing.TaxTotal = total.Sub(pricing.Subtotal)
	return pricing, nil
}
