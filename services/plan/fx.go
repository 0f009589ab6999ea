package plan

import (
	"adagency-backoffice/pkg/accesscontrol"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("plan.service",
	fx.Provide(NewService),
)

var HTTP = fx.Module("plan.http",
	fx.Provide(NewHandler),
	fx.Invoke(registerRoutes),
)

func registerRoutes(r *gin.Engine, h *Handler, authz *accesscontrol.Authorizer) {
	h.Register(r, authz)
}
