package campaign

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ActiveCampaign is the stored projection of the latest platform snapshot. Budgets are kept raw.
type ActiveCampaign struct {
	ID                     string              `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	CampaignID             string              `gorm:"column:campaign_id;type:varchar(64);not null;uniqueIndex:idx_active_campaign_hierarchy,priority:1" json:"campaign_id"`
	AdSetID                string              `gorm:"column:adset_id;type:varchar(64);not null;uniqueIndex:idx_active_campaign_hierarchy,priority:2" json:"adset_id"`
	AdID                   string              `gorm:"column:ad_id;type:varchar(64);not null;uniqueIndex:idx_active_campaign_hierarchy,priority:3" json:"ad_id"`
	CampaignName           string              `gorm:"column:campaign_name;type:varchar(512)" json:"campaign_name"`
	CampaignStatus         string              `gorm:"column:campaign_status;type:varchar(32)" json:"campaign_status"`
	AdSetStatus            string              `gorm:"column:adset_status;type:varchar(32)" json:"adset_status"`
	Objective              string              `gorm:"column:objective;type:varchar(64)" json:"objective"`
	CampaignDailyBudget    decimal.NullDecimal `gorm:"column:campaign_daily_budget;type:decimal(20,4)" json:"campaign_daily_budget"`
	CampaignLifetimeBudget decimal.NullDecimal `gorm:"column:campaign_lifetime_budget;type:decimal(20,4)" json:"campaign_lifetime_budget"`
	AdSetDailyBudget       decimal.NullDecimal `gorm:"column:adset_daily_budget;type:decimal(20,4)" json:"adset_daily_budget"`
	AdSetLifetimeBudget    decimal.NullDecimal `gorm:"column:adset_lifetime_budget;type:decimal(20,4)" json:"adset_lifetime_budget"`
	CampaignStartTime      *time.Time          `gorm:"column:campaign_start_time" json:"campaign_start_time"`
	CampaignStopTime       *time.Time          `gorm:"column:campaign_stop_time" json:"campaign_stop_time"`
	AdSetStartTime         *time.Time          `gorm:"column:adset_start_time" json:"adset_start_time"`
	AdSetStopTime          *time.Time          `gorm:"column:adset_stop_time" json:"adset_stop_time"`
	Spend                  decimal.Decimal     `gorm:"column:spend;type:decimal(18,2);not null" json:"spend"`
	PageName               string              `gorm:"column:page_name;type:varchar(255)" json:"page_name"`
	BudgetUnit             BudgetUnit          `gorm:"column:budget_unit;type:varchar(8)" json:"budget_unit"`
	CampaignPayload        datatypes.JSON      `gorm:"column:campaign_payload" json:"campaign_payload,omitempty"`
	AdSetPayload           datatypes.JSON      `gorm:"column:adset_payload" json:"adset_payload,omitempty"`
	AdPayload              datatypes.JSON      `gorm:"column:ad_payload" json:"ad_payload,omitempty"`
	SyncedAt               time.Time           `gorm:"column:synced_at;not null" json:"synced_at"`
}

// Projection flattens a snapshot into its stored form. ID and SyncedAt are left to the caller.
func Projection(s *Snapshot) *ActiveCampaign {
	c := &ActiveCampaign{
		CampaignID:             strings.TrimSpace(s.Campaign.ID),
		AdID:                   strings.TrimSpace(s.AdID),
		CampaignName:           s.Campaign.Name,
		CampaignStatus:         s.Campaign.Status,
		Objective:              s.Campaign.Objective,
		CampaignDailyBudget:    s.Campaign.DailyBudget.NullDecimal(),
		CampaignLifetimeBudget: s.Campaign.LifetimeBudget.NullDecimal(),
		CampaignStartTime:      ParseTimestamp(s.Campaign.StartTime),
		CampaignStopTime:       ParseTimestamp(s.Campaign.StopTime),
		Spend:                  s.Spend(),
		PageName:               strings.TrimSpace(s.PageName),
		BudgetUnit:             s.BudgetUnit,
		CampaignPayload:        jsonOrNil(s.Campaign.Payload),
		AdPayload:              jsonOrNil(s.AdPayload),
	}

	if a := s.AdSet; a != nil {
		c.AdSetID = strings.TrimSpace(a.ID)
		c.AdSetStatus = a.Status
		c.AdSetDailyBudget = a.DailyBudget.NullDecimal()
		c.AdSetLifetimeBudget = a.LifetimeBudget.NullDecimal()
		c.AdSetStartTime = ParseTimestamp(a.StartTime)
		c.AdSetStopTime = ParseTimestamp(a.StopTime)
		c.AdSetPayload = jsonOrNil(a.Payload)
	}

	return c
}

func jsonOrNil(raw json.RawMessage) datatypes.JSON {
	if len(raw) == 0 {
		return nil
	}
	return datatypes.JSON(raw)
}
