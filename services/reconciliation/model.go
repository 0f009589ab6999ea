package reconciliation

import (
	"time"

	"adagency-backoffice/services/plan"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

var hundred = decimal.NewFromInt(100)

// MatchManual marks a plan assigned by an operator rather than by the matcher.
const MatchManual MatchKind = "manual"

// CampaignReconciliation pairs one stored campaign projection with at most one advertising plan.
type CampaignReconciliation struct {
	ID                    string          `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	Code                  string          `gorm:"column:code;type:varchar(64);not null;uniqueIndex" json:"code"`
	CampaignRef           string          `gorm:"column:campaign_ref;type:varchar(32);not null;uniqueIndex:idx_reconciliation_campaign_run,priority:1" json:"campaign_ref"`
	DetectionRunID        string          `gorm:"column:detection_run_id;type:varchar(64);not null;uniqueIndex:idx_reconciliation_campaign_run,priority:2" json:"detection_run_id"`
	MetaCampaignID        string          `gorm:"column:meta_campaign_id;type:varchar(64);not null;index" json:"meta_campaign_id"`
	AdvertisingPlanID     *string         `gorm:"column:advertising_plan_id;type:varchar(32);index" json:"advertising_plan_id"`
	Status                Status          `gorm:"column:status;type:varchar(20);not null;index" json:"status"`
	PausedFrom            Status          `gorm:"column:paused_from;type:varchar(20)" json:"paused_from,omitempty"`
	MatchKind             MatchKind       `gorm:"column:match_kind;type:varchar(16);not null" json:"match_kind"`
	MatchDistance         decimal.Decimal `gorm:"column:match_distance;type:decimal(18,2);not null" json:"match_distance"`
	PlannedBudget         decimal.Decimal `gorm:"column:planned_budget;type:decimal(18,2);not null" json:"planned_budget"`
	ActualSpent           decimal.Decimal `gorm:"column:actual_spent;type:decimal(18,2);not null" json:"actual_spent"`
	Variance              decimal.Decimal `gorm:"column:variance;type:decimal(18,2);not null" json:"variance"`
	VariancePercentage    decimal.Decimal `gorm:"column:variance_percentage;type:decimal(12,4);not null" json:"variance_percentage"`
	NormalizedDailyBudget decimal.Decimal `gorm:"column:normalized_daily_budget;type:decimal(18,2);not null" json:"normalized_daily_budget"`
	NormalizedTotalBudget decimal.Decimal `gorm:"column:normalized_total_budget;type:decimal(18,2);not null" json:"normalized_total_budget"`
	DurationDays          int             `gorm:"column:duration_days;not null" json:"duration_days"`
	ClientName            string          `gorm:"column:client_name;type:varchar(255);not null" json:"client_name"`
	ClientType            ClientType      `gorm:"column:client_type;type:varchar(16);not null" json:"client_type"`
	NeedsReview           bool            `gorm:"column:needs_review;not null;index" json:"needs_review"`
	ReviewReason          string          `gorm:"column:review_reason;type:varchar(255)" json:"review_reason,omitempty"`
	CampaignStartDate     *time.Time      `gorm:"column:campaign_start_date" json:"campaign_start_date"`
	CampaignEndDate       *time.Time      `gorm:"column:campaign_end_date" json:"campaign_end_date"`
	ReconciliationDate    time.Time       `gorm:"column:reconciliation_date;not null" json:"reconciliation_date"`
	CreatedAt             time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Plan *plan.AdvertisingPlan `gorm:"-" json:"plan,omitempty"`
}

func (r *CampaignReconciliation) PlanID() string {
	if r.AdvertisingPlanID == nil {
		return ""
	}
	return *r.AdvertisingPlanID
}

// ApplyPlanned sets the planned budget and recomputes the variance against actual spend.
func (r *CampaignReconciliation) ApplyPlanned(planned decimal.Decimal) {
	r.PlannedBudget = planned.Round(2)
	r.Variance = r.ActualSpent.Sub(r.PlannedBudget)
	if r.PlannedBudget.IsPositive() {
		r.VariancePercentage = r.Variance.Div(r.PlannedBudget).Mul(hundred).Round(4)
	} else {
		r.VariancePercentage = decimal.Zero
	}
}

// ReconciliationPurge is the audit row left behind when a reconciliation is hard-deleted.
type ReconciliationPurge struct {
	ID                  string         `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	ReconciliationID    string         `gorm:"column:reconciliation_id;type:varchar(32);not null;index" json:"reconciliation_id"`
	ReconciliationCode  string         `gorm:"column:reconciliation_code;type:varchar(64);not null" json:"reconciliation_code"`
	Verb                PurgeVerb      `gorm:"column:verb;type:varchar(16);not null" json:"verb"`
	Reason              string         `gorm:"column:reason;type:text" json:"reason,omitempty"`
	Actor               string         `gorm:"column:actor;type:varchar(128)" json:"actor"`
	Snapshot            datatypes.JSON `gorm:"column:snapshot" json:"snapshot"`
	TransactionsDeleted int64          `gorm:"column:transactions_deleted;not null" json:"transactions_deleted"`
	PurgedAt            time.Time      `gorm:"column:purged_at;not null" json:"purged_at"`
}

type PurgeVerb string

const (
	PurgeVerbReject PurgeVerb = "reject"
	PurgeVerbDelete PurgeVerb = "delete"
)
