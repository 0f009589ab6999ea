package bootstrap

import (
	"context"
	"fmt"

	"adagency-backoffice/pkg/config"
	"adagency-backoffice/services/campaign"
	"adagency-backoffice/services/ledger"
	"adagency-backoffice/services/plan"
	"adagency-backoffice/services/reconciliation"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Models lists every table the engine owns, in dependency order.
func Models() []any {
	return []any{
		&plan.AdvertisingPlan{},
		&campaign.ActiveCampaign{},
		&reconciliation.CampaignReconciliation{},
		&ledger.AccountingTransaction{},
		&reconciliation.ReconciliationPurge{},
	}
}

type Service struct {
	db     *gorm.DB
	config *config.Config
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Config *config.Config
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:     p.DB,
		config: p.Config,
	}
}

// Migrate brings the schema up to date when DATABASE.AUTO_MIGRATE is set.
func (s *Service) Migrate(ctx context.Context) error {
	if !s.config.Database.AutoMigrate {
		zap.L().Info("[bootstrap] Auto migration disabled, skipping")
		return nil
	}

	if err := s.db.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		zap.L().Error("[bootstrap] Failed to migrate schema", zap.Error(err))
		return fmt.Errorf("auto migrate: %w", err)
	}

	zap.L().Info("[bootstrap] Schema migrated", zap.Int("tables", len(Models())))
	return nil
}
