package reconciliation

import (
	"adagency-backoffice/services/plan"

	"github.com/shopspring/decimal"
)

type MatchKind string

const (
	MatchExact   MatchKind = "exact"
	MatchNearest MatchKind = "nearest"
	MatchNone    MatchKind = "none"
)

// Thresholds bound how far a nearest match may sit from the campaign.
type Thresholds struct {
	MaxDailyDelta    decimal.Decimal
	MaxDurationDelta int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxDailyDelta:    decimal.NewFromInt(1),
		MaxDurationDelta: 2,
	}
}

type MatchResult struct {
	Plan     *plan.AdvertisingPlan
	Kind     MatchKind
	Distance decimal.Decimal
}

// MatchPlan finds the active catalog plan a campaign corresponds to. Plans are considered in id order: the
// first exact hit wins, otherwise the closest plan by |Δdaily| + |Δdays| is accepted only when it is within th.
func MatchPlan(daily decimal.Decimal, days int, plans []*plan.AdvertisingPlan, th Thresholds) MatchResult {
	sorted := make([]*plan.AdvertisingPlan, 0, len(plans))
	for _, p := range plans {
		if p != nil && p.IsActive {
			sorted = append(sorted, p)
		}
	}
	plan.SortByID(sorted)

	for _, p := range sorted {
		if p.DailyBudget.Equal(daily) && p.DurationDays == days {
			return MatchResult{Plan: p, Kind: MatchExact, Distance: decimal.Zero}
		}
	}

	var (
		best      *plan.AdvertisingPlan
		bestDist  decimal.Decimal
		bestDaily decimal.Decimal
		bestDays  int
	)
	for _, p := range sorted {
		dDaily := p.DailyBudget.Sub(daily).Abs()
		dDays := absInt(p.DurationDays - days)
		dist := dDaily.Add(decimal.NewFromInt(int64(dDays)))

		// strict less keeps the lowest id on ties
		if best == nil || dist.LessThan(bestDist) {
			best, bestDist, bestDaily, bestDays = p, dist, dDaily, dDays
		}
	}

	if best == nil {
		return MatchResult{Kind: MatchNone}
	}

	if bestDaily.LessThanOrEqual(th.MaxDailyDelta) && bestDays <= th.MaxDurationDelta {
		return MatchResult{Plan: best, Kind: MatchNearest, Distance: bestDist}
	}

	return MatchResult{Kind: MatchNone, Distance: bestDist}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
