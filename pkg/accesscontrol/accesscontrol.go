package accesscontrol

import (
	"errors"
	"os"

	"adagency-backoffice/pkg/config"
	"adagency-backoffice/pkg/errutil"
	"adagency-backoffice/pkg/middleware"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("accesscontrol", fx.Provide(New))

// Objects and actions guarded by the policy.
const (
	ObjectPlans           = "plans"
	ObjectReconciliations = "reconciliations"
	ObjectTransactions    = "transactions"

	ActionRead  = "read"
	ActionWrite = "write"
	// ActionPurge covers reject-and-purge and hard delete.
	ActionPurge = "purge"
)

const DefaultModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && (p.obj == "*" || r.obj == p.obj) && (p.act == "*" || r.act == p.act)
`

// DefaultPolicy is loaded when no policy file is configured or found.
var DefaultPolicy = [][]string{
	{"viewer", ObjectPlans, ActionRead},
	{"viewer", ObjectReconciliations, ActionRead},
	{"viewer", ObjectTransactions, ActionRead},
	{"operator", ObjectPlans, ActionWrite},
	{"operator", ObjectReconciliations, ActionWrite},
	{"operator", ObjectReconciliations, ActionPurge},
	{"admin", "*", "*"},
}

var DefaultRoles = [][]string{
	{"operator", "viewer"},
	{"admin", "operator"},
}

type Authorizer struct {
	enforcer *casbin.Enforcer
}

// New loads the configured model and policy files, falling back to the built-in defaults when either is missing.
func New(cfg *config.Config) (*Authorizer, error) {
	modelPath := cfg.AccessControl.Model
	policyPath := cfg.AccessControl.Policy

	if fileExists(modelPath) && fileExists(policyPath) {
		e, err := casbin.NewEnforcer(modelPath, policyPath)
		if err != nil {
			return nil, err
		}
		zap.L().Info("[AccessControl] Loaded policy", zap.String("model", modelPath), zap.String("policy", policyPath))
		return &Authorizer{enforcer: e}, nil
	}

	zap.L().Warn("[AccessControl] Policy files not found, using built-in policy",
		zap.String("model", modelPath),
		zap.String("policy", policyPath),
	)
	return NewDefault()
}

func NewDefault() (*Authorizer, error) {
	m, err := model.NewModelFromString(DefaultModel)
	if err != nil {
		return nil, err
	}

	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}

	if _, err := e.AddPolicies(DefaultPolicy); err != nil {
		return nil, err
	}
	if _, err := e.AddGroupingPolicies(DefaultRoles); err != nil {
		return nil, err
	}

	return &Authorizer{enforcer: e}, nil
}

func (a *Authorizer) Allowed(role, object, action string) (bool, error) {
	return a.enforcer.Enforce(role, object, action)
}

// Require rejects the request unless the operator's role may perform action on object.
func (a *Authorizer) Require(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		op := middleware.OperatorFromContext(c.Request.Context())

		ok, err := a.Allowed(op.Role, object, action)
		if err != nil {
			_ = c.Error(errutil.Internal("failed to evaluate access policy", err))
			c.Abort()
			return
		}

		if !ok {
			_ = c.Error(errutil.Forbidden("operation not permitted", errors.New(op.Role+" cannot "+action+" "+object)))
			c.Abort()
			return
		}

		c.Next()
	}
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
