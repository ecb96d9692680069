// Package safemath provides division and rounding with defined behavior for
// zero, missing and non-finite inputs.
package safemath

import (
	"math"

	"github.com/shopspring/decimal"
)

// Finite returns v, or 0 when v is NaN or infinite.
func Finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Divide returns num/den. The quotient is 0 and ok is false when the
// denominator is zero or either operand is not finite.
func Divide(num, den float64) (quotient float64, ok bool) {
	if den == 0 || math.IsNaN(den) || math.IsInf(den, 0) {
		return 0, false
	}
	if math.IsNaN(num) || math.IsInf(num, 0) {
		return 0, false
	}
	q := num / den
	if math.IsNaN(q) || math.IsInf(q, 0) {
		return 0, false
	}
	return q, true
}

// Percent returns num/den*100 with the same zero semantics as Divide.
func Percent(num, den float64) (float64, bool) {
	q, ok := Divide(num, den)
	return q * 100, ok
}

// Round rounds v half away from zero to the given number of decimal places.
// Rounding goes through a decimal representation so 0.8333499999 and
// 43.25 round the way a spreadsheet would. Non-finite input rounds to 0.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	r := decimal.NewFromFloat(v).Round(places).InexactFloat64()
	if r == 0 {
		return 0 // drop negative zero
	}
	return r
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
