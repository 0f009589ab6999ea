package plan

import (
	"context"
	"errors"
	"sort"
	"strings"

	"adagency-backoffice/pkg/db/option"
	"adagency-backoffice/pkg/errutil"
	"adagency-backoffice/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// Usage reports how many completed reconciliations pin a plan. Those plans only change through a
// re-configuration of the reconciliation itself.
type Usage interface {
	CompletedReferences(ctx context.Context, tx *gorm.DB, planID string) (int64, error)
}

type Service struct {
	db    *gorm.DB
	node  *snowflake.Node
	usage Usage

	plans    repository.Repository[AdvertisingPlan]
	validate *validator.Validate
	group    singleflight.Group
}

type ServiceParams struct {
	fx.In
	DB    *gorm.DB
	Node  *snowflake.Node
	Usage Usage `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		usage:    p.Usage,
		plans:    repository.ProvideStore[AdvertisingPlan](p.DB),
		validate: newValidator(),
	}
}

func logFields(ctx context.Context) []zap.Field {
	span := trace.SpanFromContext(ctx)
	return []zap.Field{
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
	}
}

func (s *Service) Create(ctx context.Context, in Input) (*AdvertisingPlan, error) {
	if err := validateInput(s.validate, in); err != nil {
		return nil, err
	}

	p := &AdvertisingPlan{
		ID:           s.node.Generate().String(),
		PlanName:     strings.TrimSpace(in.PlanName),
		DailyBudget:  in.DailyBudget,
		DurationDays: in.DurationDays,
		ClientPrice:  in.ClientPrice,
		IsActive:     in.IsActive == nil || *in.IsActive,
	}

	if err := s.plans.Create(ctx, p); err != nil {
		zap.L().With(logFields(ctx)...).Error("failed to create plan", zap.Error(err))
		return nil, err
	}

	return p, nil
}

// Update rewrites a plan. Once a completed reconciliation references the plan its name and figures are
// frozen and only is_active may still change.
func (s *Service) Update(ctx context.Context, id string, in Input) (*AdvertisingPlan, error) {
	if err := validateInput(s.validate, in); err != nil {
		return nil, err
	}

	var p *AdvertisingPlan
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.plans.WithTrx(tx)
		found, err := s.get(ctx, repo, id, option.WithLockingUpdate())
		if err != nil {
			return err
		}

		if changesFigures(found, in) {
			if err := s.ensureUnreferenced(ctx, tx, id); err != nil {
				return err
			}
		}

		found.PlanName = strings.TrimSpace(in.PlanName)
		found.DailyBudget = in.DailyBudget
		found.DurationDays = in.DurationDays
		found.ClientPrice = in.ClientPrice
		if in.IsActive != nil {
			found.IsActive = *in.IsActive
		}

		if err := repo.Save(ctx, found); err != nil {
			return err
		}
		p = found
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrPlanLocked) && !IsNotFound(err) {
			zap.L().With(logFields(ctx)...).Error("failed to update plan", zap.String("plan_id", id), zap.Error(err))
		}
		return nil, err
	}

	return p, nil
}

func changesFigures(p *AdvertisingPlan, in Input) bool {
	return p.PlanName != strings.TrimSpace(in.PlanName) ||
		!p.DailyBudget.Equal(in.DailyBudget) ||
		p.DurationDays != in.DurationDays ||
		!p.ClientPrice.Equal(in.ClientPrice)
}

func (s *Service) ensureUnreferenced(ctx context.Context, tx *gorm.DB, id string) error {
	if s.usage == nil {
		return nil
	}

	n, err := s.usage.CompletedReferences(ctx, tx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		zap.L().With(logFields(ctx)...).Warn("refusing to edit a plan with completed reconciliations",
			zap.String("plan_id", id),
			zap.Int64("completed", n),
		)
		return ErrPlanLocked
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*AdvertisingPlan, error) {
	return s.get(ctx, s.plans, id)
}

func (s *Service) get(ctx context.Context, repo repository.Repository[AdvertisingPlan], id string, opts ...option.QueryOption) (*AdvertisingPlan, error) {
	if id == "" {
		return nil, ErrPlanNotFound
	}

	p, err := repo.FindOne(ctx, &AdvertisingPlan{ID: id}, opts...)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPlanNotFound
	}
	return p, nil
}

// GetTx reads a plan inside the caller's transaction.
func (s *Service) GetTx(ctx context.Context, tx *gorm.DB, id string) (*AdvertisingPlan, error) {
	return s.get(ctx, s.plans.WithTrx(tx), id)
}

// List returns plans ordered by id. activeOnly restricts the result to the matchable catalog.
func (s *Service) List(ctx context.Context, activeOnly bool) ([]*AdvertisingPlan, error) {
	opts := []option.QueryOption{
		option.WithSortBy(option.QuerySortBy{OrderBy: "asc"}),
	}
	if activeOnly {
		opts = append(opts, option.ApplyOperator(option.Condition{
			Field:    "is_active",
			Operator: option.EQ,
			Value:    true,
		}))
	}

	return s.plans.Find(ctx, nil, opts...)
}

// ActivePlans loads the matchable catalog sorted by id ascending. Concurrent callers share one query, which
// does not inherit any single caller's cancellation; each caller still stops waiting when its own ctx ends.
func (s *Service) ActivePlans(ctx context.Context) ([]*AdvertisingPlan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	flight := context.WithoutCancel(ctx)
	ch := s.group.DoChan("active-plans", func() (any, error) {
		return s.List(flight, true)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		zap.L().With(logFields(ctx)...).Error("failed to load active plans", zap.Error(res.Err))
		return nil, res.Err
	}

	shared := res.Val.([]*AdvertisingPlan)
	plans := make([]*AdvertisingPlan, len(shared))
	copy(plans, shared)
	SortByID(plans)

	return plans, nil
}

// ApplyClientPrice stores a new client price and the recomputed profit figures inside tx.
func (s *Service) ApplyClientPrice(ctx context.Context, tx *gorm.DB, id string, price decimal.Decimal) (*AdvertisingPlan, error) {
	if !price.IsPositive() {
		return nil, errutil.ValidationFailed("invalid client price", nil, errutil.WithDetails(errutil.Detail{
			Field:   "client_price",
			Message: "must be greater than 0",
		}))
	}

	repo := s.plans.WithTrx(tx)
	p, err := s.get(ctx, repo, id)
	if err != nil {
		return nil, err
	}

	p.ClientPrice = price
	if err := repo.Save(ctx, p); err != nil {
		zap.L().With(logFields(ctx)...).Error("failed to apply client price", zap.String("plan_id", id), zap.Error(err))
		return nil, err
	}

	return p, nil
}

// Upsert creates a plan or updates the one with the same name. It reports whether a row was created.
func (s *Service) Upsert(ctx context.Context, in Input) (*AdvertisingPlan, bool, error) {
	if err := validateInput(s.validate, in); err != nil {
		return nil, false, err
	}

	existing, err := s.plans.FindOne(ctx, &AdvertisingPlan{PlanName: strings.TrimSpace(in.PlanName)})
	if err != nil {
		return nil, false, err
	}

	if existing == nil {
		p, err := s.Create(ctx, in)
		return p, err == nil, err
	}

	p, err := s.Update(ctx, existing.ID, in)
	return p, false, err
}

// SortByID orders plans by id ascending. Snowflake ids of different lengths compare by length first.
func SortByID(plans []*AdvertisingPlan) {
	sort.SliceStable(plans, func(i, j int) bool {
		a, b := plans[i].ID, plans[j].ID
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return a < b
	})
}

// IsNotFound reports whether err means the plan does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPlanNotFound)
}
