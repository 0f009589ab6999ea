package plan

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestRecalculate(t *testing.T) {
	p := &AdvertisingPlan{
		DailyBudget:  decimal.RequireFromString("3.00"),
		DurationDays: 7,
		ClientPrice:  decimal.RequireFromString("43.00"),
	}
	p.Recalculate()

	require.True(t, p.TotalBudget.Equal(decimal.RequireFromString("21.00")))
	require.True(t, p.ProfitMargin.Equal(decimal.RequireFromString("22.00")))
	require.True(t, p.ProfitPercentage.Equal(decimal.RequireFromString("104.7619")), p.ProfitPercentage.String())
}

func TestRecalculateZeroTotal(t *testing.T) {
	p := &AdvertisingPlan{DurationDays: 5, ClientPrice: decimal.NewFromInt(10)}
	p.Recalculate()

	require.True(t, p.TotalBudget.IsZero())
	require.True(t, p.ProfitPercentage.IsZero())
	require.True(t, p.ProfitMargin.Equal(decimal.NewFromInt(10)))
}

func TestRecalculateInvariantsHoldForArbitraryInputs(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tolerance := decimal.RequireFromString("0.0001")

	for i := 0; i < 500; i++ {
		p := &AdvertisingPlan{
			DailyBudget:  decimal.New(rng.Int63n(100000), -2),
			DurationDays: rng.Intn(90) + 1,
			ClientPrice:  decimal.New(rng.Int63n(1000000), -2),
		}
		p.Recalculate()

		require.True(t, p.TotalBudget.Equal(p.DailyBudget.Mul(decimal.NewFromInt(int64(p.DurationDays)))))
		require.True(t, p.ProfitMargin.Equal(p.ClientPrice.Sub(p.TotalBudget)))

		if p.TotalBudget.IsPositive() {
			want := p.ProfitMargin.Div(p.TotalBudget).Mul(hundred)
			require.True(t, p.ProfitPercentage.Sub(want).Abs().LessThanOrEqual(tolerance),
				"got %s want %s", p.ProfitPercentage, want)
		} else {
			require.True(t, p.ProfitPercentage.IsZero())
		}
	}
}

func TestSortByID(t *testing.T) {
	plans := []*AdvertisingPlan{{ID: "30"}, {ID: "100"}, {ID: "4"}, {ID: "21"}}
	SortByID(plans)

	ids := make([]string, 0, len(plans))
	for _, p := range plans {
		ids = append(ids, p.ID)
	}
	require.Equal(t, []string{"4", "21", "30", "100"}, ids)
}
