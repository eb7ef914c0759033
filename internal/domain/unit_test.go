package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestResolveUnitFixedSizes(t *testing.T) {
	product := Product{
		ID:           "prod-1",
		Name:         "Olive Oil",
		Unit:         "l",
		Price:        dec("8.00"),
		Currency:     "GBP",
		AllowedSizes: []string{"500ml", "1L"},
	}

	tests := []struct {
		name      string
		quantity  string
		unit      string
		wantPrice string
		wantErr   error
	}{
		{name: "half litre pack", quantity: "2", unit: "500ml", wantPrice: "4"},
		{name: "full litre pack", quantity: "3", unit: "1L", wantPrice: "8"},
		{name: "fractional pack count", quantity: "2.5", unit: "1L", wantErr: ErrQuantityNotIntegral},
		{name: "zero quantity", quantity: "0", unit: "1L", wantErr: ErrQuantityInvalid},
		{name: "size not offered", quantity: "1", unit: "2.3L", wantErr: ErrSizeNotAllowed},
		{name: "missing size", quantity: "1", unit: "", wantErr: ErrSizeRequired},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resolved, err := ResolveUnit(product, dec(tc.quantity), tc.unit)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := resolved.UnitPrice.String(); got != tc.wantPrice {
				t.Fatalf("unit price = %s, want %s", got, tc.wantPrice)
			}
			if resolved.Unit != tc.unit {
				t.Fatalf("resolved unit = %q, want %q", resolved.Unit, tc.unit)
			}
		})
	}
}

func TestResolveUnitContinuous(t *testing.T) {
	product := Product{
		ID:       "prod-2",
		Name:     "Basmati Rice",
		Unit:     "kg",
		Price:    dec("2.40"),
		Currency: "GBP",
	}

	resolved, err := ResolveUnit(product, dec("1.5"), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resolved.UnitPrice.Equal(dec("2.40")) {
		t.Fatalf("unit price = %s, want 2.40", resolved.UnitPrice)
	}
	if resolved.Unit != "kg" {
		t.Fatalf("resolved unit = %q, want kg", resolved.Unit)
	}

	if _, err := ResolveUnit(product, dec("1.5"), "500g"); !errors.Is(err, ErrSizeNotApplicable) {
		t.Fatalf("expected ErrSizeNotApplicable, got %v", err)
	}
	if _, err := ResolveUnit(product, dec("-1"), ""); !errors.Is(err, ErrQuantityInvalid) {
		t.Fatalf("expected ErrQuantityInvalid, got %v", err)
	}
}

func TestSizeToBaseUnitMass(t *testing.T) {
	product := Product{
		ID:           "prod-3",
		Name:         "Flour",
		Unit:         "kg",
		Price:        dec("1.00"),
		AllowedSizes: []string{"750g", "1kg", "5kg"},
	}

	tests := []struct {
		unit string
		want string
	}{
		{unit: "750g", want: "0.75"},
		{unit: "1kg", want: "1"},
		{unit: "5kg", want: "5"},
	}
	for _, tc := range tests {
		resolved, err := ResolveUnit(product, dec("1"), tc.unit)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.unit, err)
		}
		if got := resolved.UnitPrice.String(); got != tc.want {
			t.Fatalf("%s: unit price = %s, want %s", tc.unit, got, tc.want)
		}
	}
}

func TestSizeToBaseUnitUnparseable(t *testing.T) {
	product := Product{
		ID:           "prod-4",
		Name:         "Milk",
		Unit:         "l",
		Price:        dec("1.10"),
		AllowedSizes: []string{"6 pack"},
	}

	// The label is in the allowed list but cannot be converted to litres.
	if _, err := ResolveUnit(product, dec("1"), "6 pack"); !errors.Is(err, ErrSizeUnparseable) {
		t.Fatalf("expected ErrSizeUnparseable, got %v", err)
	}
}
