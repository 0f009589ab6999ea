package reconciliation

import (
	"time"

	"adagency-backoffice/services/campaign"

	"github.com/shopspring/decimal"
)

// Figures are the normalized numbers a reconciliation is built from.
type Figures struct {
	Daily        decimal.Decimal
	Total        decimal.Decimal
	DurationDays int
	Start        *time.Time
	End          *time.Time
	// Consistent is false when the budgets could not be normalized into positive values.
	Consistent bool
}

// DeriveFigures normalizes the stored projection of a campaign. A missing daily budget is spread from the
// total over the duration; a missing total is the daily budget over the duration.
func DeriveFigures(c *campaign.ActiveCampaign, unit campaign.BudgetUnit, defaultDays int) Figures {
	if c.BudgetUnit != campaign.BudgetUnitUnknown {
		unit = c.BudgetUnit
	}

	b := ResolveBudget(c, unit)
	start := firstTime(c.CampaignStartTime, c.AdSetStartTime)
	stop := firstTime(c.CampaignStopTime, c.AdSetStopTime)

	days := ResolveDuration(start, stop, b.Daily.Decimal, b.Total.Decimal, defaultDays)

	f := Figures{
		Daily:        b.Daily.Decimal,
		Total:        b.Total.Decimal,
		DurationDays: days,
		Start:        start,
		End:          stop,
	}

	switch {
	case !b.Daily.Valid && b.Total.Valid:
		f.Daily = b.Total.Decimal.Div(decimal.NewFromInt(int64(days))).Round(2)
	case b.Daily.Valid && !b.Total.Valid:
		f.Total = b.Daily.Decimal.Mul(decimal.NewFromInt(int64(days))).Round(2)
	}

	f.Consistent = f.Daily.IsPositive() && f.Total.IsPositive()
	if !f.Consistent {
		f.DurationDays = ResolveDuration(nil, nil, decimal.Zero, decimal.Zero, defaultDays)
	}

	if f.End == nil && f.Start != nil {
		end := f.Start.AddDate(0, 0, f.DurationDays-1)
		f.End = &end
	}

	return f
}

func firstTime(primary, fallback *time.Time) *time.Time {
	if primary != nil {
		return primary
	}
	return fallback
}
