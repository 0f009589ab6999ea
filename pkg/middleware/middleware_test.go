package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"adagency-backoffice/pkg/errutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
	gin.SetMode(gin.TestMode)
}

func TestErrorRendersBaseError(t *testing.T) {
	r := gin.New()
	r.Use(Error())
	r.GET("/x", func(c *gin.Context) {
		_ = c.Error(errutil.NotFound("reconciliation not found", nil))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), `"NOT_FOUND"`)
}

func TestErrorHidesUnknownErrors(t *testing.T) {
	r := gin.New()
	r.Use(Error())
	r.GET("/x", func(c *gin.Context) {
		_ = c.Error(errors.New("boom"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), `"INTERNAL"`)
}

func TestOperatorContext(t *testing.T) {
	r := gin.New()
	r.Use(OperatorContext())

	var got Operator
	r.GET("/x", func(c *gin.Context) {
		got = OperatorFromContext(c.Request.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderOperatorID, "ops-7")
	req.Header.Set(HeaderOperatorRole, " Admin ")
	r.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, Operator{ID: "ops-7", Role: "admin"}, got)
	require.Equal(t, "ops-7", got.Actor())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	require.Equal(t, RoleAnonymous, got.Role)
	require.Equal(t, RoleAnonymous, got.Actor())
}
