package domain

import "math"

// RoundTons rounds a tonnage to two decimals, matching the decimal(18,2)
// columns it is stored in.
func RoundTons(t float64) float64 {
	return math.Round(t*100) / 100
}
