package payments

import (
	"strings"

	"github.com/shopspring/decimal"
)

// zeroDecimalCurrencies lists ISO 4217 currencies whose minor unit equals the
// major unit, per Stripe's currency handling rules.
var zeroDecimalCurrencies = map[string]struct{}{
	"bif": {}, "clp": {}, "djf": {}, "gnf": {}, "jpy": {}, "kmf": {},
	"krw": {}, "mga": {}, "pyg": {}, "rwf": {}, "ugx": {}, "vnd": {},
	"vuv": {}, "xaf": {}, "xof": {}, "xpf": {},
}

// MinorUnits converts a decimal amount to the PSP's smallest currency unit.
// Two-decimal currencies are multiplied by 100; zero-decimal currencies pass
// through unchanged.
func MinorUnits(amount decimal.Decimal, currency string) int64 {
	if _, ok := zeroDecimalCurrencies[strings.ToLower(currency)]; ok {
		return amount.Round(0).IntPart()
	}
	return amount.Shift(2).Round(0).IntPart()
}

// MajorUnits converts an amount in minor units back to a decimal amount.
func MajorUnits(minor int64, currency string) decimal.Decimal {
	if _, ok := zeroDecimalCurrencies[strings.ToLower(currency)]; ok {
		return decimal.NewFromInt(minor)
	}
	return decimal.NewFromInt(minor).Shift(-2)
}
