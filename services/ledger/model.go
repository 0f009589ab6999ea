package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	StatusCompleted = "completed"

	GenesisHash = "GENESIS"
)

// Audit actions recorded on a transaction.
const (
	ActionApprove       = "approve"
	ActionConfigurePlan = "configure_plan"
)

// AccountingTransaction is the single financial record of a reconciled campaign.
type AccountingTransaction struct {
	ID                       string                                  `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	TransactionCode          string                                  `gorm:"column:transaction_code;type:varchar(64);not null;uniqueIndex" json:"transaction_code"`
	CampaignReconciliationID string                                  `gorm:"column:campaign_reconciliation_id;type:varchar(32);not null;uniqueIndex:idx_txn_reconciliation_campaign,priority:1" json:"campaign_reconciliation_id"`
	MetaCampaignID           string                                  `gorm:"column:meta_campaign_id;type:varchar(64);not null;uniqueIndex:idx_txn_reconciliation_campaign,priority:2" json:"meta_campaign_id"`
	Income                   decimal.Decimal                         `gorm:"column:income;type:decimal(18,2);not null" json:"income"`
	Expense                  decimal.Decimal                         `gorm:"column:expense;type:decimal(18,2);not null" json:"expense"`
	Profit                   decimal.Decimal                         `gorm:"column:profit;type:decimal(18,2);not null" json:"profit"`
	ClientName               string                                  `gorm:"column:client_name;type:varchar(255);not null" json:"client_name"`
	ClientSlug               string                                  `gorm:"column:client_slug;type:varchar(255);index" json:"client_slug"`
	CampaignStartDate        *time.Time                              `gorm:"column:campaign_start_date" json:"campaign_start_date"`
	CampaignEndDate          *time.Time                              `gorm:"column:campaign_end_date" json:"campaign_end_date"`
	Status                   string                                  `gorm:"column:status;type:varchar(20);not null" json:"status"`
	Metadata                 datatypes.JSONType[TransactionMetadata] `gorm:"column:metadata" json:"metadata"`
	CreatedAt                time.Time                               `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt                time.Time                               `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

type TransactionMetadata struct {
	Audit []AuditEntry   `json:"audit"`
	Extra map[string]any `json:"extra,omitempty"`
}

// AuditEntry records one write to a transaction and how its figures were derived.
type AuditEntry struct {
	ID            string          `json:"id"`
	Action        string          `json:"action"`
	Actor         string          `json:"actor,omitempty"`
	Income        decimal.Decimal `json:"income"`
	Expense       decimal.Decimal `json:"expense"`
	Profit        decimal.Decimal `json:"profit"`
	ClientName    string          `json:"client_name"`
	PlanID        string          `json:"plan_id,omitempty"`
	IncomeSource  string          `json:"income_source,omitempty"`
	ExpenseSource string          `json:"expense_source,omitempty"`
	RecordedAt    time.Time       `json:"recorded_at"`
	PreviousHash  string          `json:"previous_hash"`
	Hash          string          `json:"hash"`
}

func (e *AuditEntry) HashFields() map[string]string {
	return map[string]string{
		"id":             e.ID,
		"action":         e.Action,
		"actor":          e.Actor,
		"income":         e.Income.String(),
		"expense":        e.Expense.String(),
		"profit":         e.Profit.String(),
		"client_name":    e.ClientName,
		"plan_id":        e.PlanID,
		"income_source":  e.IncomeSource,
		"expense_source": e.ExpenseSource,
		"recorded_at":    e.RecordedAt.UTC().Format(time.RFC3339Nano),
		"previous_hash":  e.PreviousHash,
	}
}

func (e *AuditEntry) GenerateHash() string {
	fields := e.HashFields()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, fields[k]))
	}

	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(hash[:])
}

// AuditVerification is the outcome of walking a transaction's audit chain.
// BrokenAt is the index of the first entry that fails, or -1.
type AuditVerification struct {
	Valid    bool `json:"valid"`
	Entries  int  `json:"entries"`
	BrokenAt int  `json:"broken_at"`
}

func VerifyChain(entries []AuditEntry) AuditVerification {
	lastHash := GenesisHash
	for i := range entries {
		entry := &entries[i]
		if entry.PreviousHash != lastHash || entry.Hash != entry.GenerateHash() {
			return AuditVerification{Valid: false, Entries: len(entries), BrokenAt: i}
		}
		lastHash = entry.Hash
	}
	return AuditVerification{Valid: true, Entries: len(entries), BrokenAt: -1}
}

// appendAudit chains entry onto meta and returns the updated document.
func appendAudit(meta TransactionMetadata, entry AuditEntry) TransactionMetadata {
	entry.PreviousHash = GenesisHash
	if n := len(meta.Audit); n > 0 {
		entry.PreviousHash = meta.Audit[n-1].Hash
	}
	entry.Hash = entry.GenerateHash()

	audit := make([]AuditEntry, 0, len(meta.Audit)+1)
	audit = append(audit, meta.Audit...)
	meta.Audit = append(audit, entry)
	return meta
}
