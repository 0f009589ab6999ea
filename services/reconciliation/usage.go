package reconciliation

import (
	"context"

	"adagency-backoffice/pkg/repository"

	"gorm.io/gorm"
)

// PlanUsage answers the plan service's question of whether a plan already backs finished accounting.
type PlanUsage struct {
	reconciliations repository.Repository[CampaignReconciliation]
}

func NewPlanUsage(db *gorm.DB) *PlanUsage {
	return &PlanUsage{reconciliations: repository.ProvideStore[CampaignReconciliation](db)}
}

func (u *PlanUsage) CompletedReferences(ctx context.Context, tx *gorm.DB, planID string) (int64, error) {
	repo := u.reconciliations
	if tx != nil {
		repo = repo.WithTrx(tx)
	}
	return repo.Count(ctx, &CampaignReconciliation{AdvertisingPlanID: &planID, Status: StatusCompleted})
}
