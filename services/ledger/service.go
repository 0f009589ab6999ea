package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"adagency-backoffice/pkg/db/option"
	"adagency-backoffice/pkg/db/pagination"
	"adagency-backoffice/pkg/repository"
	"adagency-backoffice/pkg/sequence"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	seq  sequence.Generator
	now  func() time.Time

	transactions repository.Repository[AccountingTransaction]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
	Seq  sequence.Generator
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:           p.DB,
		node:         p.Node,
		seq:          p.Seq,
		now:          time.Now,
		transactions: repository.ProvideStore[AccountingTransaction](p.DB),
	}
}

// WithTrx returns a copy bound to tx. Upserts made through it use savepoints inside tx.
func (s *Service) WithTrx(tx *gorm.DB) *Service {
	if tx == nil {
		return s
	}
	clone := *s
	clone.db = tx
	clone.transactions = s.transactions.WithTrx(tx)
	return &clone
}

func logFields(ctx context.Context) []zap.Field {
	span := trace.SpanFromContext(ctx)
	return []zap.Field{
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
	}
}

type UpsertInput struct {
	ReconciliationID string
	MetaCampaignID   string
	Income           decimal.Decimal
	Expense          decimal.Decimal
	ClientName       string
	StartDate        *time.Time
	EndDate          *time.Time
	PlanID           string
	Action           string
	Actor            string
	IncomeSource     string
	ExpenseSource    string
	Extra            map[string]any
}

func (in UpsertInput) validate() error {
	switch {
	case strings.TrimSpace(in.ReconciliationID) == "":
		return fmt.Errorf("%w: reconciliation id is required", ErrInvalidEntry)
	case strings.TrimSpace(in.MetaCampaignID) == "":
		return fmt.Errorf("%w: meta campaign id is required", ErrInvalidEntry)
	case in.Income.IsNegative() || in.Expense.IsNegative():
		return fmt.Errorf("%w: amounts must not be negative", ErrInvalidEntry)
	}
	return nil
}

// Upsert writes the one transaction of a reconciliation. An existing row is updated in place and an audit
// entry appended; otherwise a row is inserted. An insert that loses a race on the unique key is retried once
// as an update.
func (s *Service) Upsert(ctx context.Context, in UpsertInput) (*AccountingTransaction, error) {
	opts := append(logFields(ctx),
		zap.String("reconciliation_id", in.ReconciliationID),
		zap.String("meta_campaign_id", in.MetaCampaignID),
	)

	if err := in.validate(); err != nil {
		return nil, err
	}

	existing, err := s.findByReconciliation(ctx, in.ReconciliationID)
	if err != nil {
		zap.L().With(opts...).Error("failed to look up accounting transaction", zap.Error(err))
		return nil, err
	}

	if existing != nil {
		txn, err := s.update(ctx, existing, in)
		if err == nil {
			upsertsTotal.WithLabelValues("update").Inc()
		}
		return txn, err
	}

	txn, err := s.insert(ctx, in)
	if err == nil {
		upsertsTotal.WithLabelValues("insert").Inc()
		return txn, nil
	}
	if !isUniqueViolation(err) {
		zap.L().With(opts...).Error("failed to insert accounting transaction", zap.Error(err))
		return nil, err
	}

	zap.L().With(opts...).Warn("accounting transaction inserted concurrently, retrying as update", zap.Error(err))

	existing, err = s.findByReconciliation(ctx, in.ReconciliationID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: %s", ErrConstraintViolation, in.ReconciliationID)
	}

	txn, err = s.update(ctx, existing, in)
	if err == nil {
		upsertsTotal.WithLabelValues("retry_update").Inc()
	}
	return txn, err
}

func (s *Service) findByReconciliation(ctx context.Context, reconciliationID string) (*AccountingTransaction, error) {
	return s.transactions.FindOne(ctx, &AccountingTransaction{CampaignReconciliationID: reconciliationID})
}

func (s *Service) auditEntry(in UpsertInput) AuditEntry {
	return AuditEntry{
		ID:            uuid.NewString(),
		Action:        in.Action,
		Actor:         in.Actor,
		Income:        in.Income,
		Expense:       in.Expense,
		Profit:        in.Income.Sub(in.Expense),
		ClientName:    in.ClientName,
		PlanID:        in.PlanID,
		IncomeSource:  in.IncomeSource,
		ExpenseSource: in.ExpenseSource,
		RecordedAt:    s.now().UTC(),
	}
}

func (s *Service) insert(ctx context.Context, in UpsertInput) (*AccountingTransaction, error) {
	code, err := s.seq.NextTransactionCode(ctx)
	if err != nil {
		zap.L().With(logFields(ctx)...).Error("failed to generate transaction code", zap.Error(err))
		return nil, err
	}

	meta := appendAudit(TransactionMetadata{Extra: in.Extra}, s.auditEntry(in))
	txn := &AccountingTransaction{
		ID:                       s.node.Generate().String(),
		TransactionCode:          code,
		CampaignReconciliationID: in.ReconciliationID,
		MetaCampaignID:           in.MetaCampaignID,
		Income:                   in.Income,
		Expense:                  in.Expense,
		Profit:                   in.Income.Sub(in.Expense),
		ClientName:               in.ClientName,
		ClientSlug:               slug.Make(in.ClientName),
		CampaignStartDate:        in.StartDate,
		CampaignEndDate:          in.EndDate,
		Status:                   StatusCompleted,
		Metadata:                 datatypes.NewJSONType(meta),
	}

	// savepoint so a duplicate key does not poison an enclosing transaction
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.transactions.WithTrx(tx).Create(ctx, txn)
	}); err != nil {
		return nil, err
	}

	return txn, nil
}

func (s *Service) update(ctx context.Context, txn *AccountingTransaction, in UpsertInput) (*AccountingTransaction, error) {
	meta := txn.Metadata.Data()
	if len(in.Extra) > 0 {
		if meta.Extra == nil {
			meta.Extra = make(map[string]any, len(in.Extra))
		}
		for k, v := range in.Extra {
			meta.Extra[k] = v
		}
	}

	txn.Income = in.Income
	txn.Expense = in.Expense
	txn.Profit = in.Income.Sub(in.Expense)
	txn.ClientName = in.ClientName
	txn.ClientSlug = slug.Make(in.ClientName)
	txn.CampaignStartDate = in.StartDate
	txn.CampaignEndDate = in.EndDate
	txn.Status = StatusCompleted
	txn.Metadata = datatypes.NewJSONType(appendAudit(meta, s.auditEntry(in)))

	if err := s.transactions.Save(ctx, txn); err != nil {
		zap.L().With(logFields(ctx)...).Error("failed to update accounting transaction",
			zap.String("transaction_id", txn.ID), zap.Error(err))
		return nil, err
	}

	return txn, nil
}

// DeleteByReconciliation removes every transaction of a reconciliation and reports how many went.
func (s *Service) DeleteByReconciliation(ctx context.Context, reconciliationID string) (int64, error) {
	if strings.TrimSpace(reconciliationID) == "" {
		return 0, fmt.Errorf("%w: reconciliation id is required", ErrInvalidEntry)
	}

	n, err := s.transactions.Delete(ctx, &AccountingTransaction{CampaignReconciliationID: reconciliationID})
	if err != nil {
		zap.L().With(logFields(ctx)...).Error("failed to delete accounting transactions",
			zap.String("reconciliation_id", reconciliationID), zap.Error(err))
		return 0, err
	}
	return n, nil
}

func (s *Service) Get(ctx context.Context, id string) (*AccountingTransaction, error) {
	txn, err := s.transactions.FindOne(ctx, &AccountingTransaction{ID: id})
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, ErrTransactionNotFound
	}
	return txn, nil
}

// FindByReconciliation returns the transaction of a reconciliation, or ErrTransactionNotFound.
func (s *Service) FindByReconciliation(ctx context.Context, reconciliationID string) (*AccountingTransaction, error) {
	txn, err := s.findByReconciliation(ctx, reconciliationID)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, ErrTransactionNotFound
	}
	return txn, nil
}

type AuditReport struct {
	TransactionID   string            `json:"transaction_id"`
	TransactionCode string            `json:"transaction_code"`
	Entries         []AuditEntry      `json:"entries"`
	Verification    AuditVerification `json:"verification"`
}

// Audit returns the audit trail of a transaction together with its chain verification.
func (s *Service) Audit(ctx context.Context, id string) (*AuditReport, error) {
	txn, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	entries := txn.Metadata.Data().Audit
	return &AuditReport{
		TransactionID:   txn.ID,
		TransactionCode: txn.TransactionCode,
		Entries:         entries,
		Verification:    VerifyChain(entries),
	}, nil
}

type ListFilter struct {
	ReconciliationID string `form:"reconciliation_id"`
	MetaCampaignID   string `form:"meta_campaign_id"`
	ClientSlug       string `form:"client_slug"`
}

// List pages through transactions newest first.
func (s *Service) List(ctx context.Context, filter ListFilter, page pagination.Pagination) ([]*AccountingTransaction, *pagination.PageInfo, error) {
	page = page.Normalize()

	cursorID, err := pagination.CursorID(page.Cursor)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: bad cursor", ErrInvalidEntry)
	}

	opts := []option.QueryOption{
		option.WithSortBy(option.QuerySortBy{OrderBy: "desc"}),
		option.WithLimit(page.Limit + 1),
	}
	if cursorID != "" {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "id", Operator: option.LT, Value: cursorID}))
	}

	rows, err := s.transactions.Find(ctx, &AccountingTransaction{
		CampaignReconciliationID: filter.ReconciliationID,
		MetaCampaignID:           filter.MetaCampaignID,
		ClientSlug:               filter.ClientSlug,
	}, opts...)
	if err != nil {
		zap.L().With(logFields(ctx)...).Error("failed to list accounting transactions", zap.Error(err))
		return nil, nil, err
	}

	data, info := pagination.BuildCursorPageInfo(rows, page.Limit, func(t *AccountingTransaction) string { return t.ID })
	return data, info, nil
}
