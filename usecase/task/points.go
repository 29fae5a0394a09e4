package task

import (
	"fmt"
	"math"

	"github.com/shiftline/backend/domain"
)

// Calculator turns an approval's (basePoints, multiplier, adjustment)
// into the final integer award. It holds the configured multiplier
// bounds and has no state beyond them.
type Calculator struct {
	MinMultiplier float64
	MaxMultiplier float64
}

// NewCalculator builds a calculator, falling back to the default
// 0.5 to 2.0 multiplier range when the bounds are unset or inverted.
func NewCalculator(min, max float64) Calculator {
	if min <= 0 || max <= 0 || min > max {
		min, max = 0.5, 2.0
	}
	return Calculator{MinMultiplier: min, MaxMultiplier: max}
}

// ValidateMultiplier rejects multipliers outside the configured bounds.
func (c Calculator) ValidateMultiplier(multiplier float64) error {
	if multiplier < c.MinMultiplier || multiplier > c.MaxMultiplier {
		return domain.NewValidationError("multiplier",
			fmt.Sprintf("must be between %.2f and %.2f", c.MinMultiplier, c.MaxMultiplier))
	}
	return nil
}

// FinalPoints computes round(basePoints*multiplier) + adjustment,
// clamped so the award is never negative.
func (c Calculator) FinalPoints(basePoints int, multiplier float64, adjustment int) int {
	points := int(math.Round(float64(basePoints)*multiplier)) + adjustment
	if points < 0 {
		return 0
	}
	return points
}
