package domain

import (
	"fmt"
	"math"
)

// Prices cross the HTTP boundary as float64 dollars and live internally
// as int64 cents, so matching and persistence never touch floating
// point. Admission rejects non-positive prices before conversion;
// DollarsToCents only guards precision.

// DollarsToCents converts a dollar amount to cents, rejecting values
// with more than 2 decimal places. Rounding absorbs float artifacts
// like 1.10*100 = 110.00000000000001.
func DollarsToCents(dollars float64) (int64, error) {
	// A third decimal place survives a round to tenths of a cent.
	tenths := math.Round(dollars * 1000)
	if math.Mod(tenths, 10) != 0 {
		return 0, fmt.Errorf("monetary values must have at most 2 decimal places")
	}
	return int64(math.Round(dollars * 100)), nil
}

// CentsToDollars converts a cent amount back to dollars for responses.
func CentsToDollars(cents int64) float64 {
	return float64(cents) / 100.0
}
