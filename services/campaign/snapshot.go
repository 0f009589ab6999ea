package campaign

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrMissingCampaignID = errors.New("snapshot has no campaign id")

// BudgetUnit declares how raw platform budgets are denominated.
type BudgetUnit string

const (
	// BudgetUnitUnknown leaves the decision to the magnitude heuristic.
	BudgetUnitUnknown BudgetUnit = ""
	BudgetUnitMinor   BudgetUnit = "minor"
	BudgetUnitMajor   BudgetUnit = "major"
)

func ParseBudgetUnit(s string) BudgetUnit {
	switch BudgetUnit(strings.ToLower(strings.TrimSpace(s))) {
	case BudgetUnitMinor:
		return BudgetUnitMinor
	case BudgetUnitMajor:
		return BudgetUnitMajor
	default:
		return BudgetUnitUnknown
	}
}

// RawAmount is a platform amount that may arrive as a JSON number or a numeric string.
type RawAmount string

func (a *RawAmount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = RawAmount(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*a = RawAmount(n.String())
	return nil
}

func (a RawAmount) MarshalJSON() ([]byte, error) {
	if a == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseFloat(string(a), 64); err == nil {
		return []byte(a), nil
	}
	return json.Marshal(string(a))
}

// Decimal parses the amount. Empty and non-numeric values are reported as absent.
func (a RawAmount) Decimal() (decimal.Decimal, bool) {
	s := strings.TrimSpace(string(a))
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func (a RawAmount) NullDecimal() decimal.NullDecimal {
	d, ok := a.Decimal()
	return decimal.NullDecimal{Decimal: d, Valid: ok}
}

type Insights struct {
	Spend RawAmount `json:"spend"`
}

type CampaignNode struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Status         string          `json:"status"`
	Objective      string          `json:"objective"`
	DailyBudget    RawAmount       `json:"daily_budget"`
	LifetimeBudget RawAmount       `json:"lifetime_budget"`
	StartTime      string          `json:"start_time"`
	StopTime       string          `json:"stop_time"`
	Insights       *Insights       `json:"insights,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

type AdSetNode struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Status         string          `json:"status"`
	DailyBudget    RawAmount       `json:"daily_budget"`
	LifetimeBudget RawAmount       `json:"lifetime_budget"`
	StartTime      string          `json:"start_time"`
	StopTime       string          `json:"stop_time"`
	Insights       *Insights       `json:"insights,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// Snapshot is one point-in-time read of a platform campaign, optionally narrowed to an ad set and ad.
type Snapshot struct {
	Campaign   CampaignNode    `json:"campaign"`
	AdSet      *AdSetNode      `json:"adset,omitempty"`
	AdID       string          `json:"ad_id,omitempty"`
	PageName   string          `json:"page_name,omitempty"`
	BudgetUnit BudgetUnit      `json:"budget_unit,omitempty"`
	AdPayload  json.RawMessage `json:"ad_payload,omitempty"`
}

func (s *Snapshot) Validate() error {
	if s == nil || strings.TrimSpace(s.Campaign.ID) == "" {
		return ErrMissingCampaignID
	}
	return nil
}

// Spend prefers campaign-level insights and falls back to the ad set. Spend is always in major units.
func (s *Snapshot) Spend() decimal.Decimal {
	if s.Campaign.Insights != nil {
		if d, ok := s.Campaign.Insights.Spend.Decimal(); ok {
			return d
		}
	}
	if s.AdSet != nil && s.AdSet.Insights != nil {
		if d, ok := s.AdSet.Insights.Spend.Decimal(); ok {
			return d
		}
	}
	return decimal.Zero
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02",
}

// ParseTimestamp accepts RFC3339, the platform's numeric-offset form and bare dates. Anything else is absent.
func ParseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
