package plan

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

// AdvertisingPlan is a sellable package: a fixed daily budget run for a fixed number of days at a client price.
type AdvertisingPlan struct {
	ID               string          `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	PlanName         string          `gorm:"column:plan_name;type:varchar(255);not null" json:"plan_name"`
	DailyBudget      decimal.Decimal `gorm:"column:daily_budget;type:decimal(18,2);not null" json:"daily_budget"`
	DurationDays     int             `gorm:"column:duration_days;not null" json:"duration_days"`
	TotalBudget      decimal.Decimal `gorm:"column:total_budget;type:decimal(18,2);not null" json:"total_budget"`
	ClientPrice      decimal.Decimal `gorm:"column:client_price;type:decimal(18,2);not null" json:"client_price"`
	ProfitMargin     decimal.Decimal `gorm:"column:profit_margin;type:decimal(18,2);not null" json:"profit_margin"`
	ProfitPercentage decimal.Decimal `gorm:"column:profit_percentage;type:decimal(9,4);not null" json:"profit_percentage"`
	IsActive         bool            `gorm:"column:is_active;not null;index" json:"is_active"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// Recalculate derives total budget and profit figures from daily budget, duration and client price.
func (p *AdvertisingPlan) Recalculate() {
	p.DailyBudget = p.DailyBudget.Round(2)
	p.ClientPrice = p.ClientPrice.Round(2)
	p.TotalBudget = p.DailyBudget.Mul(decimal.NewFromInt(int64(p.DurationDays))).Round(2)
	p.ProfitMargin = p.ClientPrice.Sub(p.TotalBudget)

	if p.TotalBudget.IsPositive() {
		p.ProfitPercentage = p.ProfitMargin.Div(p.TotalBudget).Mul(hundred).Round(4)
	} else {
		p.ProfitPercentage = decimal.Zero
	}
}

// BeforeSave keeps the derived columns consistent on every create and save.
func (p *AdvertisingPlan) BeforeSave(tx *gorm.DB) error {
	p.Recalculate()
	return nil
}

// Priced reports whether the plan already carries a client price.
func (p *AdvertisingPlan) Priced() bool {
	return p.ClientPrice.IsPositive()
}
