package reconciliation

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const DefaultDurationDays = 7

// ResolveDuration returns the campaign length in days, never less than 1.
//
// Both timestamps present with stop not before start: whole days between them, counting both ends.
// Otherwise positive daily and total budgets: ceil(total / daily). Otherwise fallback.
func ResolveDuration(start, stop *time.Time, daily, total decimal.Decimal, fallback int) int {
	if start != nil && stop != nil && !stop.Before(*start) {
		days := int(math.Floor(stop.Sub(*start).Hours()/24)) + 1
		return atLeastOne(days)
	}

	if daily.IsPositive() && total.IsPositive() {
		days := total.Div(daily).Ceil().IntPart()
		if days > math.MaxInt32 {
			days = math.MaxInt32
		}
		return atLeastOne(int(days))
	}

	if fallback < 1 {
		fallback = DefaultDurationDays
	}
	return fallback
}

func atLeastOne(days int) int {
	if days < 1 {
		return 1
	}
	return days
}
