package reconciliation

import (
	"adagency-backoffice/services/campaign"

	"github.com/shopspring/decimal"
)

var (
	// raw values above this are taken as minor units when the unit is not declared
	minorUnitThreshold = decimal.NewFromInt(1000)
	minorUnitsPerMajor = decimal.NewFromInt(100)
)

// NormalizeBudget converts a raw platform budget into major units rounded to cents. A declared unit is
// authoritative; without one, values above 1000 are treated as minor units. ok is false for absent values.
func NormalizeBudget(raw decimal.NullDecimal, unit campaign.BudgetUnit) (decimal.Decimal, bool) {
	if !raw.Valid {
		return decimal.Zero, false
	}

	v := raw.Decimal
	switch unit {
	case campaign.BudgetUnitMinor:
		v = v.Div(minorUnitsPerMajor)
	case campaign.BudgetUnitMajor:
	default:
		if v.GreaterThan(minorUnitThreshold) {
			v = v.Div(minorUnitsPerMajor)
		}
	}

	return v.Round(2), true
}

// Budget is the pair of normalized budgets of a campaign. Absent values are not valid.
type Budget struct {
	Daily decimal.NullDecimal
	Total decimal.NullDecimal
}

// ResolveBudget prefers campaign-level budgets and falls back to the ad set, field by field.
func ResolveBudget(c *campaign.ActiveCampaign, unit campaign.BudgetUnit) Budget {
	pick := func(primary, fallback decimal.NullDecimal) decimal.NullDecimal {
		raw := primary
		if !raw.Valid {
			raw = fallback
		}
		v, ok := NormalizeBudget(raw, unit)
		return decimal.NullDecimal{Decimal: v, Valid: ok}
	}

	return Budget{
		Daily: pick(c.CampaignDailyBudget, c.AdSetDailyBudget),
		Total: pick(c.CampaignLifetimeBudget, c.AdSetLifetimeBudget),
	}
}
