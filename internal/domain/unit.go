package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrQuantityInvalid indicates a zero or negative quantity.
	ErrQuantityInvalid = errors.New("quantity must be positive")
	// ErrQuantityNotIntegral indicates a fractional count of a fixed-size pack.
	ErrQuantityNotIntegral = errors.New("quantity must be a whole number of packs")
	// ErrSizeRequired indicates the product is sold only in fixed sizes and no size was chosen.
	ErrSizeRequired = errors.New("size selection required")
	// ErrSizeNotAllowed indicates the chosen size is not in the product's allowed sizes.
	ErrSizeNotAllowed = errors.New("size not offered for this product")
	// ErrSizeUnparseable indicates the size label cannot be converted to the base unit.
	ErrSizeUnparseable = errors.New("size cannot be resolved against the base unit")
	// ErrSizeNotApplicable indicates a size was supplied for a product priced by base unit.
	ErrSizeNotApplicable = errors.New("product is priced by base unit, size not accepted")
)

var thousand = decimal.NewFromInt(1000)

// ResolvedLine is the outcome of resolving a buyer-supplied (quantity, unit) pair
// against a catalog product.
type ResolvedLine struct {
	Unit      string
	UnitPrice decimal.Decimal
	Quantity  decimal.Decimal
}

// ResolveUnit validates quantity and size selection for a product and derives the
// effective unit price. Products with AllowedSizes require one of those sizes and an
// integer quantity; the size label is converted to a multiplier against the base unit
// (for example "500ml" against a litre-priced product yields 0.5). Products without
// AllowedSizes take a positive decimal quantity in the base unit and must not carry a
// size. Prices are left unrounded; rounding happens at the line-total stage.
func ResolveUnit(p Product, quantity decimal.Decimal, chosenUnit string) (ResolvedLine, error) {
	chosenUnit = strings.TrimSpace(chosenUnit)

	if len(p.AllowedSizes) == 0 {
		if chosenUnit != "" {
			return ResolvedLine{}, ErrSizeNotApplicable
		}
		if !quantity.IsPositive() {
			return ResolvedLine{}, ErrQuantityInvalid
		}
		return ResolvedLine{Unit: p.Unit, UnitPrice: p.Price, Quantity: quantity}, nil
	}

	if chosenUnit == "" {
		return ResolvedLine{}, ErrSizeRequired
	}
	allowed := false
	for _, s := range p.AllowedSizes {
		if s == chosenUnit {
			allowed = true
			break
		}
	}
	if !allowed {
		return ResolvedLine{}, ErrSizeNotAllowed
	}
	if !quantity.IsPositive() {
		return ResolvedLine{}, ErrQuantityInvalid
	}
	if !quantity.IsInteger() {
		return ResolvedLine{}, ErrQuantityNotIntegral
	}

	multiplier, err := sizeToBaseUnit(chosenUnit, p.Unit)
	if err != nil {
		return ResolvedLine{}, err
	}

	return ResolvedLine{
		Unit:      chosenUnit,
		UnitPrice: p.Price.Mul(multiplier),
		Quantity:  quantity,
	}, nil
}

// sizeToBaseUnit parses a size label such as "500ml", "2L", "750g" or "1kg" into a
// multiplier against the product's base unit.
func sizeToBaseUnit(size, baseUnit string) (decimal.Decimal, error) {
	s := strings.TrimSpace(size)
	lower := strings.ToLower(s)

	switch strings.ToLower(strings.TrimSpace(baseUnit)) {
	case "l", "lt", "litre", "liter":
		if strings.HasSuffix(lower, "ml") {
			n, err := decimal.NewFromString(strings.TrimSpace(s[:len(s)-2]))
			if err != nil {
				return decimal.Zero, fmt.Errorf("%w: %q", ErrSizeUnparseable, size)
			}
			return n.Div(thousand), nil
		}
		if strings.HasSuffix(lower, "l") {
			n, err := decimal.NewFromString(strings.TrimSpace(s[:len(s)-1]))
			if err != nil {
				return decimal.Zero, fmt.Errorf("%w: %q", ErrSizeUnparseable, size)
			}
			return n, nil
		}
	case "kg":
		if strings.HasSuffix(lower, "kg") {
			n, err := decimal.NewFromString(strings.TrimSpace(s[:len(s)-2]))
			if err != nil {
				return decimal.Zero, fmt.Errorf("%w: %q", ErrSizeUnparseable, size)
			}
			return n, nil
		}
		if strings.HasSuffix(lower, "g") {
			n, err := decimal.NewFromString(strings.TrimSpace(s[:len(s)-1]))
			if err != nil {
				return decimal.Zero, fmt.Errorf("%w: %q", ErrSizeUnparseable, size)
			}
			return n.Div(thousand), nil
		}
	}

	return decimal.Zero, fmt.Errorf("%w: %q against base unit %q", ErrSizeUnparseable, size, baseUnit)
}
