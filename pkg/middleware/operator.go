package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	HeaderOperatorID   = "X-Operator-ID"
	HeaderOperatorRole = "X-Operator-Role"

	// RoleAnonymous is assigned when the caller does not identify a role.
	RoleAnonymous = "anonymous"
)

type operatorKey struct{}

// Operator is the back-office user acting on a request.
type Operator struct {
	ID   string
	Role string
}

// OperatorContext reads the operator headers into the request context.
func OperatorContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		op := Operator{
			ID:   strings.TrimSpace(c.GetHeader(HeaderOperatorID)),
			Role: strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderOperatorRole))),
		}
		if op.Role == "" {
			op.Role = RoleAnonymous
		}

		ctx := WithOperator(c.Request.Context(), op)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func WithOperator(ctx context.Context, op Operator) context.Context {
	return context.WithValue(ctx, operatorKey{}, op)
}

// OperatorFromContext returns the operator on ctx, or an anonymous one.
func OperatorFromContext(ctx context.Context) Operator {
	op, ok := ctx.Value(operatorKey{}).(Operator)
	if !ok {
		return Operator{Role: RoleAnonymous}
	}
	return op
}

// Actor is the audit label for the operator: the id when known, otherwise the role.
func (o Operator) Actor() string {
	if o.ID != "" {
		return o.ID
	}
	return o.Role
}
