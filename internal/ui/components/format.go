package components

import (
	"fmt"
	"math"
)

// FormatAmount abbreviates a yuan amount, e.g. 1234567 -> "1.23M".
func FormatAmount(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	abs := math.Abs(v)
	switch {
	case abs >= 1e8:
		return fmt.Sprintf("%.2f亿", v/1e8)
	case abs >= 1e6:
		return fmt.Sprintf("%.2fM", v/1e6)
	case abs >= 1e4:
		return fmt.Sprintf("%.1fK", v/1e3)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}

// FormatPercent renders a percentage with one decimal, or n/a.
func FormatPercent(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", v)
}
