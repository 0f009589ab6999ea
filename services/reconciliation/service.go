package reconciliation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"adagency-backoffice/pkg/config"
	"adagency-backoffice/pkg/db/option"
	"adagency-backoffice/pkg/db/pagination"
	"adagency-backoffice/pkg/middleware"
	"adagency-backoffice/pkg/repository"
	"adagency-backoffice/pkg/sequence"
	"adagency-backoffice/services/campaign"
	"adagency-backoffice/services/ledger"
	"adagency-backoffice/services/plan"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PlanCatalog is the part of the plan service the engine depends on.
type PlanCatalog interface {
	ActivePlans(ctx context.Context) ([]*plan.AdvertisingPlan, error)
	GetTx(ctx context.Context, tx *gorm.DB, id string) (*plan.AdvertisingPlan, error)
	ApplyClientPrice(ctx context.Context, tx *gorm.DB, id string, price decimal.Decimal) (*plan.AdvertisingPlan, error)
}

// Settings tune normalization and matching.
type Settings struct {
	BudgetUnit          campaign.BudgetUnit
	DefaultDurationDays int
	Thresholds          Thresholds
}

func SettingsFromConfig(cfg *config.Config) Settings {
	s := Settings{
		BudgetUnit:          campaign.ParseBudgetUnit(cfg.Reconciliation.DefaultBudgetUnit),
		DefaultDurationDays: cfg.Reconciliation.DefaultDurationDays,
		Thresholds:          DefaultThresholds(),
	}
	if s.DefaultDurationDays < 1 {
		s.DefaultDurationDays = DefaultDurationDays
	}
	if cfg.Reconciliation.MaxDailyDelta > 0 {
		s.Thresholds.MaxDailyDelta = decimal.NewFromFloat(cfg.Reconciliation.MaxDailyDelta)
	}
	if cfg.Reconciliation.MaxDurationDelta > 0 {
		s.Thresholds.MaxDurationDelta = cfg.Reconciliation.MaxDurationDelta
	}
	return s
}

type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	seq      sequence.Generator
	now      func() time.Time
	settings Settings

	catalog   PlanCatalog
	campaigns *campaign.Service
	ledger    *ledger.Service

	reconciliations repository.Repository[CampaignReconciliation]
	purges          repository.Repository[ReconciliationPurge]
}

type ServiceParams struct {
	fx.In
	DB        *gorm.DB
	Node      *snowflake.Node
	Seq       sequence.Generator
	Config    *config.Config
	Plans     *plan.Service
	Campaigns *campaign.Service
	Ledger    *ledger.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:              p.DB,
		node:            p.Node,
		seq:             p.Seq,
		now:             time.Now,
		settings:        SettingsFromConfig(p.Config),
		catalog:         p.Plans,
		campaigns:       p.Campaigns,
		ledger:          p.Ledger,
		reconciliations: repository.ProvideStore[CampaignReconciliation](p.DB),
		purges:          repository.ProvideStore[ReconciliationPurge](p.DB),
	}
}

func logFields(ctx context.Context) []zap.Field {
	span := trace.SpanFromContext(ctx)
	return []zap.Field{
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
	}
}

func actor(ctx context.Context) string {
	return middleware.OperatorFromContext(ctx).Actor()
}

type DetectInput struct {
	Snapshot *campaign.Snapshot `json:"snapshot"`
	// Catalog overrides the active plan catalog when non-empty.
	Catalog      []*plan.AdvertisingPlan `json:"-"`
	RunID        string                  `json:"detection_run_id"`
	PageIDs      []string                `json:"page_ids"`
	InstagramIDs []string                `json:"instagram_ids"`
}

// Detection is the outcome of reconciling one snapshot. Issue carries ErrNoPlanMatch or ErrInconsistentBudget
// when the reconciliation was stored but needs an operator.
type Detection struct {
	Reconciliation *CampaignReconciliation
	Match          MatchResult
	Created        bool
	Issue          error
}

// DetectAndReconcile stores the snapshot projection and creates or refreshes its reconciliation for the run.
// Only pending reconciliations are refreshed; decided ones are returned untouched.
func (s *Service) DetectAndReconcile(ctx context.Context, in DetectInput) (*Detection, error) {
	if in.Snapshot == nil {
		return nil, fmt.Errorf("%w: snapshot is required", ErrMissingInput)
	}
	if err := in.Snapshot.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingInput, err)
	}

	catalog, err := s.loadCatalog(ctx, in.Catalog)
	if err != nil {
		return nil, err
	}

	run := detectionRun{
		id:         strings.TrimSpace(in.RunID),
		clientType: ClientTypeOf(in.PageIDs, in.InstagramIDs),
	}

	det, err := s.detectOne(ctx, in.Snapshot, catalog, run)
	if err != nil {
		detectionsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	detectionsTotal.WithLabelValues(string(outcomeOf(det))).Inc()

	return det, nil
}

type detectionRun struct {
	id         string
	clientType ClientType
}

// loadCatalog keeps the active plans of a caller-supplied catalog, or loads the stored active catalog.
func (s *Service) loadCatalog(ctx context.Context, provided []*plan.AdvertisingPlan) ([]*plan.AdvertisingPlan, error) {
	var catalog []*plan.AdvertisingPlan
	for _, p := range provided {
		if p != nil && p.IsActive {
			catalog = append(catalog, p)
		}
	}
	if len(provided) == 0 {
		loaded, err := s.catalog.ActivePlans(ctx)
		if err != nil {
			return nil, err
		}
		catalog = loaded
	}
	if len(catalog) == 0 {
		return nil, fmt.Errorf("%w: plan catalog is empty", ErrMissingInput)
	}
	return catalog, nil
}

func (s *Service) detectOne(ctx context.Context, snap *campaign.Snapshot, catalog []*plan.AdvertisingPlan, run detectionRun) (*Detection, error) {
	var det *Detection
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		d, err := s.detect(ctx, tx, snap, catalog, run)
		if err != nil {
			return err
		}
		det = d
		return nil
	})
	if err != nil {
		zap.L().With(logFields(ctx)...).Error("failed to reconcile campaign",
			zap.String("campaign_id", snap.Campaign.ID),
			zap.String("detection_run_id", run.id),
			zap.Error(err),
		)
		return nil, err
	}
	return det, nil
}

func (s *Service) detect(ctx context.Context, tx *gorm.DB, snap *campaign.Snapshot, catalog []*plan.AdvertisingPlan, run detectionRun) (*Detection, error) {
	row, err := s.campaigns.Upsert(ctx, tx, snap)
	if err != nil {
		return nil, err
	}

	fig := DeriveFigures(row, s.settings.BudgetUnit, s.settings.DefaultDurationDays)

	match := MatchResult{Kind: MatchNone, Distance: decimal.Zero}
	var issue error
	if fig.Consistent {
		match = MatchPlan(fig.Daily, fig.DurationDays, catalog, s.settings.Thresholds)
		if match.Plan != nil {
			stored, err := s.storedPlan(ctx, tx, match.Plan.ID)
			if err != nil {
				return nil, err
			}
			if stored == nil {
				match = MatchResult{Kind: MatchNone, Distance: decimal.Zero}
			} else {
				match.Plan = stored
			}
		}
		if match.Kind == MatchNone {
			issue = ErrNoPlanMatch
		}
	} else {
		issue = ErrInconsistentBudget
	}

	repo := s.reconciliations.WithTrx(tx)
	existing, err := s.findForRun(ctx, repo, row.ID, run.id)
	if err != nil {
		return nil, err
	}

	if existing != nil && existing.Status != StatusPending {
		zap.L().With(logFields(ctx)...).Info("reconciliation already decided, leaving it unchanged",
			zap.String("reconciliation_id", existing.ID),
			zap.String("status", string(existing.Status)),
		)
		return &Detection{Reconciliation: existing, Match: match, Issue: issue}, nil
	}

	rec := existing
	if rec == nil {
		code, err := s.seq.NextReconciliationCode(ctx)
		if err != nil {
			return nil, err
		}
		rec = &CampaignReconciliation{
			ID:             s.node.Generate().String(),
			Code:           code,
			CampaignRef:    row.ID,
			DetectionRunID: run.id,
			Status:         StatusPending,
		}
	}

	if rec.MatchKind == MatchManual {
		p, err := s.catalog.GetTx(ctx, tx, rec.PlanID())
		if err != nil {
			return nil, err
		}
		rec.Plan = p
		if issue == ErrNoPlanMatch {
			issue = nil
		}
	} else {
		rec.AdvertisingPlanID = nil
		rec.Plan = nil
		if match.Plan != nil {
			id := match.Plan.ID
			rec.AdvertisingPlanID = &id
			rec.Plan = match.Plan
		}
		rec.MatchKind = match.Kind
		rec.MatchDistance = match.Distance.Round(2)
	}

	s.applyFigures(rec, row, fig, run.clientType, issue)

	if existing != nil {
		if err := repo.Save(ctx, rec); err != nil {
			return nil, err
		}
		return &Detection{Reconciliation: rec, Match: match, Issue: issue}, nil
	}

	// savepoint so a concurrent detection of the same campaign does not abort the enclosing transaction
	err = tx.Transaction(func(stx *gorm.DB) error {
		return repo.WithTrx(stx).Create(ctx, rec)
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		winner, ferr := s.findForRun(ctx, repo, row.ID, run.id)
		if ferr != nil {
			return nil, ferr
		}
		if winner != nil {
			return &Detection{Reconciliation: winner, Match: match, Issue: issue}, nil
		}
	}
	if err != nil {
		return nil, err
	}

	return &Detection{Reconciliation: rec, Match: match, Created: true, Issue: issue}, nil
}

// storedPlan resolves a matched plan against the database so only persisted, active plans are referenced.
// It returns nil when the plan is unknown or inactive.
func (s *Service) storedPlan(ctx context.Context, tx *gorm.DB, id string) (*plan.AdvertisingPlan, error) {
	p, err := s.catalog.GetTx(ctx, tx, id)
	if plan.IsNotFound(err) {
		zap.L().With(logFields(ctx)...).Warn("matched plan is not stored, treating campaign as unmatched", zap.String("plan_id", id))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, nil
	}
	return p, nil
}

// findForRun looks a reconciliation up by its natural key. The run id may be empty for ad hoc detections,
// which a struct query would drop.
func (s *Service) findForRun(ctx context.Context, repo repository.Repository[CampaignReconciliation], campaignRef, runID string) (*CampaignReconciliation, error) {
	return repo.FindOne(ctx, nil,
		option.ApplyOperator(option.Condition{Field: "campaign_ref", Operator: option.EQ, Value: campaignRef}),
		option.ApplyOperator(option.Condition{Field: "detection_run_id", Operator: option.EQ, Value: runID}),
	)
}

func (s *Service) applyFigures(rec *CampaignReconciliation, row *campaign.ActiveCampaign, fig Figures, clientType ClientType, issue error) {
	rec.MetaCampaignID = row.CampaignID
	rec.NormalizedDailyBudget = fig.Daily
	rec.NormalizedTotalBudget = fig.Total
	rec.DurationDays = fig.DurationDays
	rec.CampaignStartDate = fig.Start
	rec.CampaignEndDate = fig.End
	rec.ActualSpent = row.Spend.Round(2)
	rec.ClientName = ExtractClientName(row.CampaignName, row.PageName)
	rec.ClientType = clientType
	rec.ReconciliationDate = s.now().UTC()

	planned := fig.Total
	if rec.Plan != nil {
		planned = rec.Plan.TotalBudget
	}
	rec.ApplyPlanned(planned)

	rec.NeedsReview = errors.Is(issue, ErrInconsistentBudget)
	rec.ReviewReason = ""
	if rec.NeedsReview {
		rec.ReviewReason = ErrInconsistentBudget.Error()
	}
}

type BatchInput struct {
	RunID        string                  `json:"detection_run_id"`
	PageIDs      []string                `json:"page_ids"`
	InstagramIDs []string                `json:"instagram_ids"`
	Snapshots    []*campaign.Snapshot    `json:"snapshots"`
	Catalog      []*plan.AdvertisingPlan `json:"-"`
}

type Outcome string

const (
	OutcomeReconciled Outcome = "reconciled"
	OutcomeUnmatched  Outcome = "unmatched"
	OutcomeFlagged    Outcome = "flagged"
	OutcomeFailed     Outcome = "failed"
)

type BatchItem struct {
	CampaignID       string    `json:"campaign_id"`
	ReconciliationID string    `json:"reconciliation_id,omitempty"`
	Code             string    `json:"code,omitempty"`
	Outcome          Outcome   `json:"outcome"`
	MatchKind        MatchKind `json:"match_kind,omitempty"`
	Error            string    `json:"error,omitempty"`
}

// BatchResult tallies a detection run. Succeeded counts every stored reconciliation, including the unmatched
// and flagged ones.
type BatchResult struct {
	RunID     string      `json:"detection_run_id"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Unmatched int         `json:"unmatched"`
	Flagged   int         `json:"flagged"`
	Items     []BatchItem `json:"items"`
}

func outcomeOf(det *Detection) Outcome {
	switch {
	case errors.Is(det.Issue, ErrInconsistentBudget):
		return OutcomeFlagged
	case errors.Is(det.Issue, ErrNoPlanMatch):
		return OutcomeUnmatched
	default:
		return OutcomeReconciled
	}
}

// DetectBatch reconciles every snapshot of a run, each in its own transaction. A failing snapshot is
// recorded in the result and does not stop the others.
func (s *Service) DetectBatch(ctx context.Context, in BatchInput) (*BatchResult, error) {
	if len(in.Snapshots) == 0 {
		return nil, fmt.Errorf("%w: no snapshots in run", ErrMissingInput)
	}

	catalog, err := s.loadCatalog(ctx, in.Catalog)
	if err != nil {
		return nil, err
	}

	run := detectionRun{
		id:         strings.TrimSpace(in.RunID),
		clientType: ClientTypeOf(in.PageIDs, in.InstagramIDs),
	}
	if run.id == "" {
		run.id = uuid.NewString()
	}

	result := &BatchResult{RunID: run.id, Items: make([]BatchItem, 0, len(in.Snapshots))}
	for _, snap := range in.Snapshots {
		item := BatchItem{}
		if snap != nil {
			item.CampaignID = snap.Campaign.ID
		}

		det, err := s.detectItem(ctx, snap, catalog, run)
		if err != nil {
			item.Outcome = OutcomeFailed
			item.Error = err.Error()
			result.Failed++
		} else {
			item.ReconciliationID = det.Reconciliation.ID
			item.Code = det.Reconciliation.Code
			item.MatchKind = det.Reconciliation.MatchKind
			item.Outcome = outcomeOf(det)
			if det.Issue != nil {
				item.Error = det.Issue.Error()
			}

			result.Succeeded++
			switch item.Outcome {
			case OutcomeUnmatched:
				result.Unmatched++
			case OutcomeFlagged:
				result.Flagged++
			}
		}

		detectionsTotal.WithLabelValues(string(item.Outcome)).Inc()
		result.Items = append(result.Items, item)
	}

	zap.L().With(logFields(ctx)...).Info("detection run finished",
		zap.String("detection_run_id", run.id),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Int("unmatched", result.Unmatched),
		zap.Int("flagged", result.Flagged),
	)

	return result, nil
}

func (s *Service) detectItem(ctx context.Context, snap *campaign.Snapshot, catalog []*plan.AdvertisingPlan, run detectionRun) (*Detection, error) {
	if snap == nil {
		return nil, fmt.Errorf("%w: snapshot is required", ErrMissingInput)
	}
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingInput, err)
	}
	return s.detectOne(ctx, snap, catalog, run)
}

// mutate loads a reconciliation for update inside one transaction and hands it to fn.
func (s *Service) mutate(ctx context.Context, id string, fn func(tx *gorm.DB, rec *CampaignReconciliation) error) (*CampaignReconciliation, error) {
	var out *CampaignReconciliation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := s.lock(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(tx, rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) lock(ctx context.Context, tx *gorm.DB, id string) (*CampaignReconciliation, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrReconciliationNotFound
	}
	rec, err := s.reconciliations.WithTrx(tx).FindOne(ctx, &CampaignReconciliation{ID: id}, option.WithLockingUpdate())
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrReconciliationNotFound
	}
	return rec, nil
}

func (s *Service) assignedPlan(ctx context.Context, tx *gorm.DB, rec *CampaignReconciliation) (*plan.AdvertisingPlan, error) {
	if rec.PlanID() == "" {
		return nil, ErrPlanRequired
	}
	p, err := s.catalog.GetTx(ctx, tx, rec.PlanID())
	if err != nil {
		return nil, err
	}
	rec.Plan = p
	return p, nil
}

func (s *Service) ledgerInput(ctx context.Context, rec *CampaignReconciliation, p *plan.AdvertisingPlan, action string) ledger.UpsertInput {
	return ledger.UpsertInput{
		ReconciliationID: rec.ID,
		MetaCampaignID:   rec.MetaCampaignID,
		Income:           p.ClientPrice,
		Expense:          p.TotalBudget,
		ClientName:       rec.ClientName,
		StartDate:        rec.CampaignStartDate,
		EndDate:          rec.CampaignEndDate,
		PlanID:           p.ID,
		Action:           action,
		Actor:            actor(ctx),
		IncomeSource:     "plan.client_price",
		ExpenseSource:    "plan.total_budget",
		Extra: map[string]any{
			"reconciliation_code": rec.Code,
			"match_kind":          string(rec.MatchKind),
		},
	}
}

// Approve accepts the matched plan. When the plan is already priced the accounting record is written too;
// the returned transaction is nil otherwise.
func (s *Service) Approve(ctx context.Context, id string) (*CampaignReconciliation, *ledger.AccountingTransaction, error) {
	var txn *ledger.AccountingTransaction
	rec, err := s.mutate(ctx, id, func(tx *gorm.DB, rec *CampaignReconciliation) error {
		if err := checkTransition(rec.Status, StatusApproved); err != nil {
			return err
		}
		p, err := s.assignedPlan(ctx, tx, rec)
		if err != nil {
			return err
		}

		rec.Status = StatusApproved
		rec.PausedFrom = ""
		if err := s.reconciliations.WithTrx(tx).Save(ctx, rec); err != nil {
			return err
		}

		if p.Priced() {
			txn, err = s.ledger.WithTrx(tx).Upsert(ctx, s.ledgerInput(ctx, rec, p, ledger.ActionApprove))
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		zap.L().With(logFields(ctx)...).Error("failed to approve reconciliation", zap.String("reconciliation_id", id), zap.Error(err))
		return nil, nil, err
	}

	transitionsTotal.WithLabelValues(string(StatusApproved)).Inc()
	return rec, txn, nil
}

// ConfigurePlan prices the assigned plan for the client and writes the accounting record: income is the
// client price, expense the plan's total budget. Repeating it updates the same record.
func (s *Service) ConfigurePlan(ctx context.Context, id string, clientPrice decimal.Decimal) (*ledger.AccountingTransaction, error) {
	var txn *ledger.AccountingTransaction
	_, err := s.mutate(ctx, id, func(tx *gorm.DB, rec *CampaignReconciliation) error {
		if err := checkTransition(rec.Status, StatusCompleted); err != nil {
			return err
		}
		if rec.PlanID() == "" {
			return ErrPlanRequired
		}

		p, err := s.catalog.ApplyClientPrice(ctx, tx, rec.PlanID(), clientPrice)
		if err != nil {
			return err
		}

		rec.Plan = p
		rec.ApplyPlanned(p.TotalBudget)
		rec.Status = StatusCompleted
		rec.PausedFrom = ""
		if err := s.reconciliations.WithTrx(tx).Save(ctx, rec); err != nil {
			return err
		}

		txn, err = s.ledger.WithTrx(tx).Upsert(ctx, s.ledgerInput(ctx, rec, p, ledger.ActionConfigurePlan))
		return err
	})
	if err != nil {
		zap.L().With(logFields(ctx)...).Error("failed to configure plan", zap.String("reconciliation_id", id), zap.Error(err))
		return nil, err
	}

	transitionsTotal.WithLabelValues(string(StatusCompleted)).Inc()
	return txn, nil
}

type PurgeRequest struct {
	Confirm bool   `json:"confirm" form:"confirm"`
	Reason  string `json:"reason" form:"reason"`
}

// RejectAndPurge rejects an undecided reconciliation by hard-deleting it with its accounting records.
func (s *Service) RejectAndPurge(ctx context.Context, id string, req PurgeRequest) (*ReconciliationPurge, error) {
	return s.purge(ctx, id, req, PurgeVerbReject)
}

// Purge hard-deletes a reconciliation in any state together with its accounting records.
func (s *Service) Purge(ctx context.Context, id string, req PurgeRequest) (*ReconciliationPurge, error) {
	return s.purge(ctx, id, req, PurgeVerbDelete)
}

func (s *Service) purge(ctx context.Context, id string, req PurgeRequest, verb PurgeVerb) (*ReconciliationPurge, error) {
	if !req.Confirm {
		return nil, ErrPurgeNotConfirmed
	}

	var audit *ReconciliationPurge
	_, err := s.mutate(ctx, id, func(tx *gorm.DB, rec *CampaignReconciliation) error {
		if verb == PurgeVerbReject {
			if err := checkTransition(rec.Status, StatusRejected); err != nil {
				return err
			}
		}

		snapshot, err := json.Marshal(rec)
		if err != nil {
			return err
		}

		deleted, err := s.ledger.WithTrx(tx).DeleteByReconciliation(ctx, rec.ID)
		if err != nil {
			return fmt.Errorf("delete accounting transactions: %w", err)
		}

		if _, err := s.reconciliations.WithTrx(tx).Delete(ctx, &CampaignReconciliation{ID: rec.ID}); err != nil {
			return fmt.Errorf("delete reconciliation: %w", err)
		}

		audit = &ReconciliationPurge{
			ID:                  s.node.Generate().String(),
			ReconciliationID:    rec.ID,
			ReconciliationCode:  rec.Code,
			Verb:                verb,
			Reason:              strings.TrimSpace(req.Reason),
			Actor:               actor(ctx),
			Snapshot:            datatypes.JSON(snapshot),
			TransactionsDeleted: deleted,
			PurgedAt:            s.now().UTC(),
		}
		return s.purges.WithTrx(tx).Create(ctx, audit)
	})
	if err != nil {
		zap.L().With(logFields(ctx)...).Error("failed to purge reconciliation",
			zap.String("reconciliation_id", id),
			zap.String("verb", string(verb)),
			zap.Error(err),
		)
		return nil, err
	}

	purgesTotal.WithLabelValues(string(verb)).Inc()
	zap.L().With(logFields(ctx)...).Info("reconciliation purged",
		zap.String("reconciliation_id", id),
		zap.String("verb", string(verb)),
		zap.Int64("transactions_deleted", audit.TransactionsDeleted),
	)
	return audit, nil
}

// AssignPlan attaches a plan chosen by an operator, typically to an unmatched reconciliation.
func (s *Service) AssignPlan(ctx context.Context, id, planID string) (*CampaignReconciliation, error) {
	rec, err := s.mutate(ctx, id, func(tx *gorm.DB, rec *CampaignReconciliation) error {
		switch rec.Status {
		case StatusPending, StatusApproved, StatusPaused:
		default:
			return &TransitionError{From: rec.Status, To: rec.Status}
		}

		p, err := s.catalog.GetTx(ctx, tx, planID)
		if err != nil {
			return err
		}

		assigned := p.ID
		rec.AdvertisingPlanID = &assigned
		rec.Plan = p
		rec.MatchKind = MatchManual
		rec.MatchDistance = p.DailyBudget.Sub(rec.NormalizedDailyBudget).Abs().
			Add(decimal.NewFromInt(int64(absInt(p.DurationDays - rec.DurationDays)))).Round(2)
		rec.ApplyPlanned(p.TotalBudget)
		rec.NeedsReview = false
		rec.ReviewReason = ""

		return s.reconciliations.WithTrx(tx).Save(ctx, rec)
	})
	if err != nil {
		zap.L().With(logFields(ctx)...).Error("failed to assign plan",
			zap.String("reconciliation_id", id), zap.String("plan_id", planID), zap.Error(err))
		return nil, err
	}
	return rec, nil
}

// Pause holds a reconciliation and remembers where it came from.
func (s *Service) Pause(ctx context.Context, id string) (*CampaignReconciliation, error) {
	rec, err := s.mutate(ctx, id, func(tx *gorm.DB, rec *CampaignReconciliation) error {
		if err := checkTransition(rec.Status, StatusPaused); err != nil {
			return err
		}
		rec.PausedFrom = rec.Status
		rec.Status = StatusPaused
		return s.reconciliations.WithTrx(tx).Save(ctx, rec)
	})
	if err != nil {
		return nil, err
	}

	transitionsTotal.WithLabelValues(string(StatusPaused)).Inc()
	return rec, nil
}

// Resume moves a paused reconciliation back to pending or approved. An empty target returns it to the status
// it was paused from.
func (s *Service) Resume(ctx context.Context, id string, to Status) (*CampaignReconciliation, error) {
	rec, err := s.mutate(ctx, id, func(tx *gorm.DB, rec *CampaignReconciliation) error {
		target := to
		if target == "" {
			target = rec.PausedFrom
		}
		if target == "" {
			target = StatusPending
		}
		if target != StatusPending && target != StatusApproved {
			return &TransitionError{From: rec.Status, To: target}
		}
		if err := checkTransition(rec.Status, target); err != nil {
			return err
		}
		if target == StatusApproved && rec.PlanID() == "" {
			return ErrPlanRequired
		}

		rec.Status = target
		rec.PausedFrom = ""
		return s.reconciliations.WithTrx(tx).Save(ctx, rec)
	})
	if err != nil {
		return nil, err
	}

	transitionsTotal.WithLabelValues(string(rec.Status)).Inc()
	return rec, nil
}

// Get returns a reconciliation with its plan attached when one is assigned.
func (s *Service) Get(ctx context.Context, id string) (*CampaignReconciliation, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrReconciliationNotFound
	}

	rec, err := s.reconciliations.FindOne(ctx, &CampaignReconciliation{ID: id})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrReconciliationNotFound
	}

	if rec.PlanID() != "" {
		p, err := s.catalog.GetTx(ctx, s.db, rec.PlanID())
		switch {
		case err == nil:
			rec.Plan = p
		case !plan.IsNotFound(err):
			return nil, err
		}
	}

	return rec, nil
}

type ListFilter struct {
	Status         Status `form:"status"`
	MetaCampaignID string `form:"meta_campaign_id"`
	DetectionRunID string `form:"detection_run_id"`
	PlanID         string `form:"plan_id"`
	NeedsReview    *bool  `form:"needs_review"`
	Unmatched      bool   `form:"unmatched"`
}

func (f ListFilter) options() []option.QueryOption {
	var opts []option.QueryOption
	eq := func(field string, value any) {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: field, Operator: option.EQ, Value: value}))
	}

	if f.Status != "" {
		eq("status", f.Status)
	}
	if f.MetaCampaignID != "" {
		eq("meta_campaign_id", f.MetaCampaignID)
	}
	if f.DetectionRunID != "" {
		eq("detection_run_id", f.DetectionRunID)
	}
	if f.PlanID != "" {
		eq("advertising_plan_id", f.PlanID)
	}
	if f.NeedsReview != nil {
		eq("needs_review", *f.NeedsReview)
	}
	if f.Unmatched {
		opts = append(opts, func(db *gorm.DB) *gorm.DB {
			return db.Where("advertising_plan_id IS NULL")
		})
	}
	return opts
}

// List pages through reconciliations newest first.
func (s *Service) List(ctx context.Context, filter ListFilter, page pagination.Pagination) ([]*CampaignReconciliation, *pagination.PageInfo, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, fmt.Errorf("%w: unknown status %q", ErrInvalidFilter, filter.Status)
	}

	page = page.Normalize()
	cursorID, err := pagination.CursorID(page.Cursor)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: bad cursor", ErrInvalidFilter)
	}

	opts := append(filter.options(),
		option.WithSortBy(option.QuerySortBy{OrderBy: "desc"}),
		option.WithLimit(page.Limit+1),
	)
	if cursorID != "" {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "id", Operator: option.LT, Value: cursorID}))
	}

	rows, err := s.reconciliations.Find(ctx, nil, opts...)
	if err != nil {
		zap.L().With(logFields(ctx)...).Error("failed to list reconciliations", zap.Error(err))
		return nil, nil, err
	}

	data, info := pagination.BuildCursorPageInfo(rows, page.Limit, func(r *CampaignReconciliation) string { return r.ID })
	return data, info, nil
}
