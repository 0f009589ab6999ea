package middleware

import (
	"errors"
	"net/http"

	"adagency-backoffice/pkg/errutil"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error renders the last handler error. Anything that is not an errutil.BaseError is reported as INTERNAL.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		var be errutil.BaseError
		if !errors.As(last.Err, &be) {
			be = errutil.BaseError{
				Code:    errutil.StatusInternal,
				Message: "internal error",
				Err:     last.Err,
			}
		}

		status := be.Code.HTTPStatus()
		if status >= http.StatusInternalServerError {
			zap.L().Error("request failed",
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
				zap.Error(last.Err),
			)
		}

		c.AbortWithStatusJSON(status, be.JSON())
	}
}
