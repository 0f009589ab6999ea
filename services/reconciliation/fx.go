package reconciliation

import (
	"adagency-backoffice/pkg/accesscontrol"
	"adagency-backoffice/services/plan"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

// PlanGuard lets the plan service refuse edits to plans that completed reconciliations depend on.
var PlanGuard = fx.Module("reconciliation.planguard",
	fx.Provide(fx.Annotate(NewPlanUsage, fx.As(new(plan.Usage)))),
)

var Module = fx.Module("reconciliation.service",
	PlanGuard,
	fx.Provide(NewService),
)

var HTTP = fx.Module("reconciliation.http",
	fx.Provide(NewHandler),
	fx.Invoke(registerRoutes),
)

func registerRoutes(r *gin.Engine, h *Handler, authz *accesscontrol.Authorizer) {
	h.Register(r, authz)
}
