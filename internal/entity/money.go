package entity

import "github.com/shopspring/decimal"

// MinorUnits converts a normalized monetary value to integer minor currency
// units (cents). The normalizer guarantees at most two fractional digits, so
// the shift is exact.
func MinorUnits(d decimal.Decimal) int64 {
	return d.Shift(2).IntPart()
}

// FromMinorUnits renders integer minor units back into a two-decimal value.
func FromMinorUnits(m int64) decimal.Decimal {
	return decimal.New(m, -2)
}
