package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"adagency-backoffice/pkg/config"
	"adagency-backoffice/pkg/db/pagination"
	"adagency-backoffice/pkg/middleware"
	"adagency-backoffice/pkg/sequence"
	"adagency-backoffice/services/campaign"
	"adagency-backoffice/services/ledger"
	"adagency-backoffice/services/plan"
	"adagency-backoffice/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fixture struct {
	svc    *Service
	db     *gorm.DB
	plans  *plan.Service
	ledger *ledger.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t,
		&plan.AdvertisingPlan{},
		&campaign.ActiveCampaign{},
		&CampaignReconciliation{},
		&ReconciliationPurge{},
		&ledger.AccountingTransaction{},
	)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	var recSeq, txnSeq atomic.Int64
	seq := sequence.NewMockGenerator(gomock.NewController(t))
	seq.EXPECT().NextReconciliationCode(gomock.Any()).DoAndReturn(func(context.Context) (string, error) {
		return sequence.FormatCode(sequence.PrefixReconciliation, "241015", recSeq.Add(1), "AA"), nil
	}).AnyTimes()
	seq.EXPECT().NextTransactionCode(gomock.Any()).DoAndReturn(func(context.Context) (string, error) {
		return sequence.FormatCode(sequence.PrefixTransaction, "241015", txnSeq.Add(1), "AA"), nil
	}).AnyTimes()

	cfg := &config.Config{}
	cfg.Reconciliation.DefaultDurationDays = 7

	plans := plan.NewService(plan.ServiceParams{DB: db, Node: node, Usage: NewPlanUsage(db)})
	ledgers := ledger.NewService(ledger.ServiceParams{DB: db, Node: node, Seq: seq})
	svc := NewService(ServiceParams{
		DB:        db,
		Node:      node,
		Seq:       seq,
		Config:    cfg,
		Plans:     plans,
		Campaigns: campaign.NewService(campaign.ServiceParams{DB: db, Node: node}),
		Ledger:    ledgers,
	})

	return &fixture{svc: svc, db: db, plans: plans, ledger: ledgers}
}

func (f *fixture) seedPlan(t *testing.T, name, daily string, days int, price string) *plan.AdvertisingPlan {
	t.Helper()
	p, err := f.plans.Create(context.Background(), plan.Input{
		PlanName:     name,
		DailyBudget:  decimal.RequireFromString(daily),
		DurationDays: days,
		ClientPrice:  decimal.RequireFromString(price),
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

// weekSnapshot runs 300 minor units a day over 2024-01-01..2024-01-07.
func weekSnapshot(id string) *campaign.Snapshot {
	return &campaign.Snapshot{
		Campaign: campaign.CampaignNode{
			ID:          id,
			Name:        "Kopi Kenangan promo oktober",
			Status:      "ACTIVE",
			DailyBudget: "300",
			StartTime:   "2024-01-01T00:00:00+0000",
			StopTime:    "2024-01-07T00:00:00+0000",
			Insights:    &campaign.Insights{Spend: "18.50"},
		},
		PageName:   "Kopi Kenangan Official",
		BudgetUnit: campaign.BudgetUnitMinor,
	}
}

func operatorCtx() context.Context {
	return middleware.WithOperator(context.Background(), middleware.Operator{ID: "ops-1", Role: "operator"})
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDetectAndConfigureEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := operatorCtx()
	starter := f.seedPlan(t, "Starter 7", "3.00", 7, "0")
	f.seedPlan(t, "Growth 14", "5.00", 14, "0")

	det, err := f.svc.DetectAndReconcile(ctx, DetectInput{
		Snapshot: weekSnapshot("120200001"),
		PageIDs:  []string{"page-1"},
	})
	require.NoError(t, err)
	require.NoError(t, det.Issue)
	require.True(t, det.Created)
	require.Equal(t, MatchExact, det.Match.Kind)

	rec := det.Reconciliation
	require.Equal(t, StatusPending, rec.Status)
	require.Equal(t, starter.ID, rec.PlanID())
	require.Equal(t, 7, rec.DurationDays)
	require.True(t, rec.NormalizedDailyBudget.Equal(dec("3")))
	require.True(t, rec.PlannedBudget.Equal(dec("21")))
	require.True(t, rec.ActualSpent.Equal(dec("18.5")))
	require.True(t, rec.Variance.Equal(dec("-2.5")))
	require.True(t, rec.VariancePercentage.Equal(dec("-11.9048")))
	require.Equal(t, "Kopi Kenangan", rec.ClientName)
	require.Equal(t, ClientTypeFanpage, rec.ClientType)
	require.False(t, rec.NeedsReview)

	txn, err := f.svc.ConfigurePlan(ctx, rec.ID, dec("43.00"))
	require.NoError(t, err)
	require.True(t, txn.Income.Equal(dec("43")))
	require.True(t, txn.Expense.Equal(dec("21")))
	require.True(t, txn.Profit.Equal(dec("22")))
	require.Equal(t, "kopi-kenangan", txn.ClientSlug)

	audit := txn.Metadata.Data().Audit
	require.Len(t, audit, 1)
	require.Equal(t, ledger.ActionConfigurePlan, audit[0].Action)
	require.Equal(t, "ops-1", audit[0].Actor)

	got, err := f.svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, got.Status)
	require.NotNil(t, got.Plan)
	require.True(t, got.Plan.ProfitMargin.Equal(dec("22")))
}

func TestConfigurePlanTwiceKeepsOneTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := operatorCtx()
	f.seedPlan(t, "Starter 7", "3.00", 7, "0")

	det, err := f.svc.DetectAndReconcile(ctx, DetectInput{Snapshot: weekSnapshot("120200001")})
	require.NoError(t, err)

	first, err := f.svc.ConfigurePlan(ctx, det.Reconciliation.ID, dec("43"))
	require.NoError(t, err)
	second, err := f.svc.ConfigurePlan(ctx, det.Reconciliation.ID, dec("50"))
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.TransactionCode, second.TransactionCode)
	require.True(t, second.Profit.Equal(dec("29")))
	require.EqualValues(t, 1, f.count(t, &ledger.AccountingTransaction{}))

	stored, err := f.ledger.FindByReconciliation(ctx, det.Reconciliation.ID)
	require.NoError(t, err)
	audit := stored.Metadata.Data().Audit
	require.Len(t, audit, 2)
	require.True(t, ledger.VerifyChain(audit).Valid)
}

func TestConfigurePlanRequiresPlan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPlan(t, "Starter 7", "3.00", 7, "0")

	snap := weekSnapshot("120200002")
	snap.Campaign.DailyBudget = "1000"
	snap.BudgetUnit = campaign.BudgetUnitMajor

	det, err := f.svc.DetectAndReconcile(ctx, DetectInput{Snapshot: snap})
	require.NoError(t, err)
	require.ErrorIs(t, det.Issue, ErrNoPlanMatch)
	require.Nil(t, det.Reconciliation.AdvertisingPlanID)

	_, err = f.svc.ConfigurePlan(ctx, det.Reconciliation.ID, dec("43"))
	require.ErrorIs(t, err, ErrPlanRequired)
	require.EqualValues(t, 0, f.count(t, &ledger.AccountingTransaction{}))
}

func TestConfigurePlanRejectsNonPositivePrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPlan(t, "Starter 7", "3.00", 7, "0")

	det, err := f.svc.DetectAndReconcile(ctx, DetectInput{Snapshot: weekSnapshot("120200001")})
	require.NoError(t, err)

	_, err = f.svc.ConfigurePlan(ctx, det.Reconciliation.ID, decimal.Zero)
	require.Error(t, err)

	got, err := f.svc.Get(ctx, det.Reconciliation.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, got.Status)
	require.EqualValues(t, 0, f.count(t, &ledger.AccountingTransaction{}))
}

func TestDetectIsIdempotentPerRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPlan(t, "Starter 7", "3.00", 7, "0")

	first, err := f.svc.DetectAndReconcile(ctx, DetectInput{Snapshot: weekSnapshot("120200001"), RunID: "run-1"})
	require.NoError(t, err)

	snap := weekSnapshot("120200001")
	snap.Campaign.Insights = &campaign.Insights{Spend: "20"}
	second, err := f.svc.DetectAndReconcile(ctx, DetectInput{Snapshot: snap, RunID: "run-1"})
	require.NoError(t, err)

	require.False(t, second.Created)
	require.Equal(t, first.Reconciliation.ID, second.Reconciliation.ID)
	require.Equal(t, first.Reconciliation.Code, second.Reconciliation.Code)
	require.True(t, second.Reconciliation.ActualSpent.Equal(dec("20")))
	require.EqualValues(t, 1, f.count(t, &CampaignReconciliation{}))
	require.EqualValues(t, 1, f.count(t, &campaign.ActiveCampaign{}))

	other, err := f.svc.DetectAndReconcile(ctx, DetectInput{Snapshot: weekSnapshot("120200001"), RunID: "run-2"})
	require.NoError(t, err)
	require.True(t, other.Created)
	require.EqualValues(t, 2, f.count(t, &CampaignReconciliation{}))
}

func TestDetectLeavesDecidedReconciliationAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPlan(t, "Starter 7", "3.00", 7, "0")

	det, err := f.svc.DetectAndReconcile(ctx, DetectInput{Snapshot: weekSnapshot("120200001")})
	require.NoError(t, err)
	_, err = f.svc.ConfigurePlan(ctx, det.Reconciliation.ID, dec("43"))
	require.NoError(t, err)

	snap := weekSnapshot("120200001")
	snap.Campaign.Insights = &campaign.Insights{Spend: "99"}
	again, err := f.svc.DetectAndReconcile(ctx, DetectInput{Snapshot: snap})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, again.Reconciliation.Status)
	require.True(t, again.Reconciliation.ActualSpent.Equal(dec("18.5")))
}

func TestDetectMissingInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.DetectAndReconcile(ctx, DetectInput{})
	require.ErrorIs(t, err, ErrMissingInput)

	// empty catalog aborts before anything is written
	_, err = f.svc.DetectAndReconcile(ctx, DetectInput{Snapshot: weekSnapshot("120200001")})
	require.ErrorIs(t, err, ErrMissingInput)
	require.EqualValues(t, 0, f.count(t, &campaign.ActiveCampaign{}))
	require.EqualValues(t, 0, f.count(t, &CampaignReconciliation{}))
}

func TestDetectFlagsInconsistentBudget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPlan(t, "Starter 7", "3.00", 7, "0")

	snap := weekSnapshot("120200003")
	snap.Campaign.DailyBudget = ""
	snap.Campaign.StopTime = "2024-01-30T00:00:00+0000"

	det, err := f.svc.DetectAndReconcile(ctx, DetectInput{Snapshot: snap})
	require.NoError(t, err)
	require.ErrorIs(t, det.Issue, ErrInconsistentBudget)

	rec := det.Reconciliation
	require.True(t, rec.NeedsReview)
	require.NotEmpty(t, rec.ReviewReason)
	require.Equal(t, 7, rec.DurationDays)
	require.Equal(t, MatchNone, rec.MatchKind)
	require.Nil(t, rec.AdvertisingPlanID)
}

func TestDetectBatchToleratesFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPlan(t, "Starter 7", "3.00", 7, "0")

	unmatched := weekSnapshot("120200002")
	unmatched.Campaign.DailyBudget = "10"
	unmatched.Campaign.StartTime = "2024-02-01"
	unmatched.Campaign.StopTime = "2024-03-01"
	unmatched.BudgetUnit = campaign.BudgetUnitMajor

	flagged := weekSnapshot("120200003")
	flagged.Campaign.DailyBudget = ""

	invalid := weekSnapshot("")

	result, err := f.svc.DetectBatch(ctx, BatchInput{
		PageIDs:      []string{"page-1"},
		InstagramIDs: []string{"ig-1"},
		Snapshots:    []*campaign.Snapshot{weekSnapshot("120200001"), unmatched, invalid, flagged},
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.RunID)
	require.Equal(t, 3, result.Succeeded)
	require.Equal(t, 1, result.Failed)
	require.Equal(t, 1, result.Unmatched)
	require.Equal(t, 1, result.Flagged)
	require.Len(t, result.Items, 4)

	require.Equal(t, OutcomeReconciled, result.Items[0].Outcome)
	require.Equal(t, MatchExact, result.Items[0].MatchKind)
	require.Equal(t, OutcomeUnmatched, result.Items[1].Outcome)
	require.Equal(t, OutcomeFailed, result.Items[2].Outcome)
	require.NotEmpty(t, result.Items[2].Error)
	require.Equal(t, OutcomeFlagged, result.Items[3].Outcome)

	require.EqualValues(t, 3, f.count(t, &CampaignReconciliation{}))

	runID := result.RunID
	rows, _, err := f.svc.List(ctx, ListFilter{DetectionRunID: runID, Unmatched: true}, pagination.Pagination{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, r := range rows {
		require.Equal(t, ClientTypeBoth, r.ClientType)
	}
}

func TestDetectBatchWithoutCatalogAborts(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.DetectBatch(context.Background(), BatchInput{
		Snapshots: []*campaign.Snapshot{weekSnapshot("120200001")},
	})
	require.ErrorIs(t, err, ErrMissingInput)
	require.EqualValues(t, 0, f.count(t, &campaign.ActiveCampaign{}))
}

func TestApprove(t *testing.T) {
	f := newFixture(t)
	ctx := operatorCtx()

	t.Run("unpriced plan writes no transaction", func(t *testing.T) {
		f.seedPlan(t, "Starter 7", "3.00", 7, "0")
		det, err := f.svc.DetectAndReconcile(ctx, DetectInput{Snapshot: weekSnapshot("120200001")})
		require.NoError(t, err)

		rec, txn, err := f.svc.Approve(ctx, det.Reconciliation.ID)
		require.NoError(t, err)
		require.Nil(t, txn)
		require.Equal(t, StatusApproved, rec.Status)

		_, _, err = f.svc.Approve(ctx, det.Reconciliation.ID)
		require.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("priced plan writes the transaction", func(t *testing.T) {
		f.seedPlan(t, "Growth 10", "4.00", 10, "60")
		snap := weekSnapshot("120200009")
		snap.Campaign.DailyBudget = "400"
		snap.Campaign.StopTime = "2024-01-10T00:00:00+0000"

		det, err := f.svc.DetectAndReconcile(ctx, DetectInput{Snapshot: snap})
		require.NoError(t, err)
		require.Equal(t, MatchExact, det.Match.Kind)

		_, txn, err := f.svc.Approve(ctx, det.Reconciliation.ID)
		require.NoError(t, err)
		require.NotNil(t, txn)
		require.True(t, txn.Income.Equal(dec("60")))
		require.True(t, txn.Expense.Equal(dec("40")))
		require.Equal(t, ledger.ActionApprove, txn.Metadata.Data().Audit[0].Action)
	})
}

func TestApproveRequiresPlan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPlan(t, "Starter 7", "3.00", 7, "0")

	snap := weekSnapshot("120200002")
	snap.Campaign.DailyBudget = "1000"
	snap.BudgetUnit = campaign.BudgetUnitMajor
	det, err := f.svc.DetectAndReconcile(ctx, DetectInput{Snapshot: snap})
	require.NoError(t, err)

	_, _, err = f.svc.Approve(ctx, det.Reconciliation.ID)
	require.ErrorIs(t, err, ErrPlanRequired)
}

func TestRejectAndPurgeCascades(t *testing.T) {
	f := newFixture(t)
	ctx := operatorCtx()
	f.seedPlan(t, "Starter 7", "3.00", 7, "43")

	det, err := f.svc.DetectAndReconcile(ctx, DetectInput{Snapshot: weekSnapshot("120200001")})
	require.NoError(t, err)
	_, txn, err := f.svc.Approve(ctx, det.Reconciliation.ID)
	require.NoError(t, err)
	require.NotNil(t, txn)

	_, err = f.svc.RejectAndPurge(ctx, det.Reconciliation.ID, PurgeRequest{})
	require.ErrorIs(t, err, ErrPurgeNotConfirmed)
	require.EqualValues(t, 1, f.count(t, &CampaignReconciliation{}))

	audit, err := f.svc.RejectAndPurge(ctx, det.Reconciliation.ID, PurgeRequest{Confirm: true, Reason: "duplicate"})
	require.NoError(t, err)
	require.Equal(t, PurgeVerbReject, audit.Verb)
	require.EqualValues(t, 1, audit.TransactionsDeleted)
	require.Equal(t, "ops-1", audit.Actor)
	require.Equal(t, det.Reconciliation.Code, audit.ReconciliationCode)

	require.EqualValues(t, 0, f.count(t, &ledger.AccountingTransaction{}))
	require.EqualValues(t, 0, f.count(t, &CampaignReconciliation{}))
	require.EqualValues(t, 1, f.count(t, &ReconciliationPurge{}))

	_, err = f.svc.Get(ctx, det.Reconciliation.ID)
	require.ErrorIs(t, err, ErrReconciliationNotFound)
}

func TestRejectCompletedIsInvalidButPurgeWorks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPlan(t, "Starter 7", "3.00", 7, "0")

	det, err := f.svc.DetectAndReconcile(ctx, DetectInput{Snapshot: weekSnapshot("120200001")})
	require.NoError(t, err)
	_, err = f.svc.ConfigurePlan(ctx, det.Reconciliation.ID, dec("43"))
	require.NoError(t, err)

	_, err = f.svc.RejectAndPurge(ctx, det.Reconciliation.ID, PurgeRequest{Confirm: true})
	require.ErrorIs(t, err, ErrInvalidTransition)

	audit, err := f.svc.Purge(ctx, det.Reconciliation.ID, PurgeRequest{Confirm: true})
	require.NoError(t, err)
	require.Equal(t, PurgeVerbDelete, audit.Verb)
	require.EqualValues(t, 0, f.count(t, &ledger.AccountingTransaction{}))
	require.EqualValues(t, 0, f.count(t, &CampaignReconciliation{}))
}

func TestPurgeAbortsWhenLedgerDeleteFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPlan(t, "Starter 7", "3.00", 7, "0")

	det, err := f.svc.DetectAndReconcile(ctx, DetectInput{Snapshot: weekSnapshot("120200001")})
	require.NoError(t, err)

	require.NoError(t, f.db.Migrator().DropTable(&ledger.AccountingTransaction{}))

	_, err = f.svc.Purge(ctx, det.Reconciliation.ID, PurgeRequest{Confirm: true})
	require.Error(t, err)

	_, err = f.svc.Get(ctx, det.Reconciliation.ID)
	require.NoError(t, err)
	require.EqualValues(t, 0, f.count(t, &ReconciliationPurge{}))
}

func TestAssignPlan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPlan(t, "Starter 7", "3.00", 7, "0")
	big := f.seedPlan(t, "Big 30", "10.00", 30, "400")

	snap := weekSnapshot("120200002")
	snap.Campaign.DailyBudget = "10"
	snap.Campaign.StopTime = "2024-01-25T00:00:00+0000"
	snap.BudgetUnit = campaign.BudgetUnitMajor

	det, err := f.svc.DetectAndReconcile(ctx, DetectInput{Snapshot: snap})
	require.NoError(t, err)
	require.ErrorIs(t, det.Issue, ErrNoPlanMatch)

	rec, err := f.svc.AssignPlan(ctx, det.Reconciliation.ID, big.ID)
	require.NoError(t, err)
	require.Equal(t, MatchManual, rec.MatchKind)
	require.Equal(t, big.ID, rec.PlanID())
	require.True(t, rec.PlannedBudget.Equal(dec("300")))
	require.True(t, rec.MatchDistance.Equal(dec("5")))

	// a later detection keeps the manual assignment
	again, err := f.svc.DetectAndReconcile(ctx, DetectInput{Snapshot: snap})
	require.NoError(t, err)
	require.NoError(t, again.Issue)
	require.Equal(t, big.ID, again.Reconciliation.PlanID())
	require.Equal(t, MatchManual, again.Reconciliation.MatchKind)

	_, err = f.svc.AssignPlan(ctx, det.Reconciliation.ID, "missing")
	require.ErrorIs(t, err, plan.ErrPlanNotFound)
}

func TestPauseAndResume(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPlan(t, "Starter 7", "3.00", 7, "0")

	det, err := f.svc.DetectAndReconcile(ctx, DetectInput{Snapshot: weekSnapshot("120200001")})
	require.NoError(t, err)
	id := det.Reconciliation.ID

	_, _, err = f.svc.Approve(ctx, id)
	require.NoError(t, err)

	rec, err := f.svc.Pause(ctx, id)
	require.NoError(t, err)
	require.Equal(t, StatusPaused, rec.Status)
	require.Equal(t, StatusApproved, rec.PausedFrom)

	_, err = f.svc.Pause(ctx, id)
	require.ErrorIs(t, err, ErrInvalidTransition)

	rec, err = f.svc.Resume(ctx, id, "")
	require.NoError(t, err)
	require.Equal(t, StatusApproved, rec.Status)
	require.Empty(t, rec.PausedFrom)

	_, err = f.svc.Pause(ctx, id)
	require.NoError(t, err)
	_, err = f.svc.Resume(ctx, id, StatusCompleted)
	require.ErrorIs(t, err, ErrInvalidTransition)

	rec, err = f.svc.Resume(ctx, id, StatusPending)
	require.NoError(t, err)
	require.Equal(t, StatusPending, rec.Status)
}

func TestListPagesNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPlan(t, "Starter 7", "3.00", 7, "0")

	var ids []string
	for i := 0; i < 3; i++ {
		det, err := f.svc.DetectAndReconcile(ctx, DetectInput{Snapshot: weekSnapshot(fmt.Sprintf("12020000%d", i))})
		require.NoError(t, err)
		ids = append(ids, det.Reconciliation.ID)
	}

	first, info, err := f.svc.List(ctx, ListFilter{Status: StatusPending}, pagination.Pagination{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.True(t, info.HasMore)
	require.Equal(t, ids[2], first[0].ID)

	rest, info, err := f.svc.List(ctx, ListFilter{}, pagination.Pagination{Limit: 2, Cursor: info.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.False(t, info.HasMore)
	require.Equal(t, ids[0], rest[0].ID)

	_, _, err = f.svc.List(ctx, ListFilter{Status: "bogus"}, pagination.Pagination{})
	require.True(t, errors.Is(err, ErrInvalidFilter))
}

func TestDetectSkipsInactiveAndUnstoredCatalogPlans(t *testing.T) {
	f := newFixture(t)
	ctx := operatorCtx()

	retired := &plan.AdvertisingPlan{ID: "1", DailyBudget: dec("3.00"), DurationDays: 7, IsActive: false}
	retired.Recalculate()

	_, err := f.svc.DetectAndReconcile(ctx, DetectInput{
		Snapshot: weekSnapshot("120200001"),
		Catalog:  []*plan.AdvertisingPlan{retired},
	})
	require.ErrorIs(t, err, ErrMissingInput)
	require.Zero(t, f.count(t, &CampaignReconciliation{}))

	unsaved := &plan.AdvertisingPlan{ID: "424242", DailyBudget: dec("3.00"), DurationDays: 7, IsActive: true}
	unsaved.Recalculate()

	det, err := f.svc.DetectAndReconcile(ctx, DetectInput{
		Snapshot: weekSnapshot("120200001"),
		Catalog:  []*plan.AdvertisingPlan{retired, unsaved},
	})
	require.NoError(t, err)
	require.ErrorIs(t, det.Issue, ErrNoPlanMatch)
	require.Equal(t, MatchNone, det.Match.Kind)
	require.Nil(t, det.Reconciliation.AdvertisingPlanID)
}

func TestDetectUsesStoredPlanFigures(t *testing.T) {
	f := newFixture(t)
	ctx := operatorCtx()
	starter := f.seedPlan(t, "Starter 7", "3.00", 7, "0")

	supplied := &plan.AdvertisingPlan{ID: starter.ID, DailyBudget: dec("3.00"), DurationDays: 7, IsActive: true}

	det, err := f.svc.DetectAndReconcile(ctx, DetectInput{
		Snapshot: weekSnapshot("120200001"),
		Catalog:  []*plan.AdvertisingPlan{supplied},
	})
	require.NoError(t, err)
	require.Equal(t, MatchExact, det.Match.Kind)
	require.Equal(t, starter.ID, det.Reconciliation.PlanID())
	require.True(t, det.Reconciliation.PlannedBudget.Equal(dec("21")))
}

func TestCompletedReconciliationFreezesPlan(t *testing.T) {
	f := newFixture(t)
	ctx := operatorCtx()
	starter := f.seedPlan(t, "Starter 7", "3.00", 7, "0")

	det, err := f.svc.DetectAndReconcile(ctx, DetectInput{Snapshot: weekSnapshot("120200001")})
	require.NoError(t, err)

	editable, err := f.plans.Update(ctx, starter.ID, plan.Input{
		PlanName:     "Starter 7",
		DailyBudget:  dec("3.00"),
		DurationDays: 7,
		ClientPrice:  dec("40.00"),
	})
	require.NoError(t, err, "a plan only referenced by a pending reconciliation stays editable")
	require.True(t, editable.ClientPrice.Equal(dec("40")))

	_, err = f.svc.ConfigurePlan(ctx, det.Reconciliation.ID, dec("43.00"))
	require.NoError(t, err)

	_, err = f.plans.Update(ctx, starter.ID, plan.Input{
		PlanName:     "Starter 7",
		DailyBudget:  dec("9.00"),
		DurationDays: 30,
		ClientPrice:  dec("43.00"),
	})
	require.ErrorIs(t, err, plan.ErrPlanLocked)

	_, _, err = f.plans.Upsert(ctx, plan.Input{PlanName: "Starter 7", DailyBudget: dec("9.00"), DurationDays: 30})
	require.ErrorIs(t, err, plan.ErrPlanLocked)

	stored, err := f.plans.Get(ctx, starter.ID)
	require.NoError(t, err)
	require.True(t, stored.DailyBudget.Equal(dec("3")))
	require.Equal(t, 7, stored.DurationDays)
	require.True(t, stored.TotalBudget.Equal(dec("21")))

	retired, err := f.plans.Update(ctx, starter.ID, plan.Input{
		PlanName:     "Starter 7",
		DailyBudget:  dec("3.00"),
		DurationDays: 7,
		ClientPrice:  dec("43.00"),
		IsActive:     boolPtr(false),
	})
	require.NoError(t, err)
	require.False(t, retired.IsActive)

	txn, err := f.svc.ConfigurePlan(ctx, det.Reconciliation.ID, dec("50.00"))
	require.NoError(t, err)
	require.True(t, txn.Income.Equal(dec("50")))
	require.True(t, txn.Expense.Equal(dec("21")))
}

func boolPtr(b bool) *bool { return &b }
