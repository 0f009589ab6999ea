package campaign

import (
	"context"
	"errors"
	"time"

	"adagency-backoffice/pkg/db/option"
	"adagency-backoffice/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrCampaignNotFound = errors.New("active campaign not found")

// columns refreshed when a snapshot lands on an existing hierarchy key
var refreshColumns = []string{
	"campaign_name", "campaign_status", "adset_status", "objective",
	"campaign_daily_budget", "campaign_lifetime_budget", "adset_daily_budget", "adset_lifetime_budget",
	"campaign_start_time", "campaign_stop_time", "adset_start_time", "adset_stop_time",
	"spend", "page_name", "budget_unit", "campaign_payload", "adset_payload", "ad_payload", "synced_at",
}

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	now  func() time.Time

	campaigns repository.Repository[ActiveCampaign]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:        p.DB,
		node:      p.Node,
		now:       time.Now,
		campaigns: repository.ProvideStore[ActiveCampaign](p.DB),
	}
}

// Upsert stores the snapshot projection on its (campaign, adset, ad) key and returns the stored row.
// tx may be nil to run outside a transaction.
func (s *Service) Upsert(ctx context.Context, tx *gorm.DB, snap *Snapshot) (*ActiveCampaign, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}

	if tx == nil {
		tx = s.db
	}

	span := trace.SpanFromContext(ctx)
	opts := []zap.Field{
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
		zap.String("campaign_id", snap.Campaign.ID),
	}

	row := Projection(snap)
	row.ID = s.node.Generate().String()
	row.SyncedAt = s.now().UTC()

	err := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "campaign_id"},
			{Name: "adset_id"},
			{Name: "ad_id"},
		},
		DoUpdates: clause.AssignmentColumns(refreshColumns),
	}).Create(row).Error
	if err != nil {
		zap.L().With(opts...).Error("failed to upsert active campaign", zap.Error(err))
		return nil, err
	}

	// empty adset/ad ids are part of the key, so they cannot go through a struct query
	stored, err := s.campaigns.WithTrx(tx).FindOne(ctx, nil,
		option.ApplyOperator(option.Condition{Field: "campaign_id", Operator: option.EQ, Value: row.CampaignID}),
		option.ApplyOperator(option.Condition{Field: "adset_id", Operator: option.EQ, Value: row.AdSetID}),
		option.ApplyOperator(option.Condition{Field: "ad_id", Operator: option.EQ, Value: row.AdID}),
	)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, ErrCampaignNotFound
	}

	// keep the in-memory values; the stored copy only contributes its id
	row.ID = stored.ID
	return row, nil
}

func (s *Service) Get(ctx context.Context, id string) (*ActiveCampaign, error) {
	c, err := s.campaigns.FindOne(ctx, &ActiveCampaign{ID: id})
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrCampaignNotFound
	}
	return c, nil
}

// FindByCampaignID returns every stored projection of a platform campaign.
func (s *Service) FindByCampaignID(ctx context.Context, campaignID string) ([]*ActiveCampaign, error) {
	return s.campaigns.Find(ctx, &ActiveCampaign{CampaignID: campaignID})
}
