package plan

import (
	"errors"
	"net/http"
	"strconv"

	"adagency-backoffice/pkg/accesscontrol"
	"adagency-backoffice/pkg/errutil"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(r gin.IRouter, authz *accesscontrol.Authorizer) {
	plans := r.Group("/v1/plans")
	plans.GET("", authz.Require(accesscontrol.ObjectPlans, accesscontrol.ActionRead), h.List)
	plans.GET("/:id", authz.Require(accesscontrol.ObjectPlans, accesscontrol.ActionRead), h.Get)
	plans.POST("", authz.Require(accesscontrol.ObjectPlans, accesscontrol.ActionWrite), h.Create)
	plans.PUT("/:id", authz.Require(accesscontrol.ObjectPlans, accesscontrol.ActionWrite), h.Update)
	plans.POST("/import", authz.Require(accesscontrol.ObjectPlans, accesscontrol.ActionWrite), h.Import)
}

func (h *Handler) List(c *gin.Context) {
	activeOnly, _ := strconv.ParseBool(c.Query("active"))

	plans, err := h.service.List(c.Request.Context(), activeOnly)
	if err != nil {
		_ = c.Error(errutil.Internal("failed to list plans", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": plans})
}

func (h *Handler) Get(c *gin.Context) {
	p, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(toHTTPError(err))
		return
	}

	c.JSON(http.StatusOK, p)
}

func (h *Handler) Create(c *gin.Context) {
	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	p, err := h.service.Create(c.Request.Context(), in)
	if err != nil {
		_ = c.Error(toHTTPError(err))
		return
	}

	c.JSON(http.StatusCreated, p)
}

func (h *Handler) Update(c *gin.Context) {
	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	p, err := h.service.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		_ = c.Error(toHTTPError(err))
		return
	}

	c.JSON(http.StatusOK, p)
}

// Import accepts a multipart "file" field holding an .xlsx or .csv catalog.
func (h *Handler) Import(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		_ = c.Error(errutil.BadRequest("missing catalog file", err))
		return
	}

	f, err := fh.Open()
	if err != nil {
		_ = c.Error(errutil.BadRequest("unreadable catalog file", err))
		return
	}
	defer f.Close()

	result, err := h.service.Import(c.Request.Context(), fh.Filename, f)
	if err != nil {
		_ = c.Error(toHTTPError(err))
		return
	}

	c.JSON(http.StatusOK, result)
}

func toHTTPError(err error) error {
	var be errutil.BaseError
	switch {
	case errors.As(err, &be):
		return be
	case errors.Is(err, ErrPlanNotFound):
		return errutil.NotFound("advertising plan not found", nil)
	case errors.Is(err, ErrPlanLocked):
		return errutil.Conflict("advertising plan is referenced by a completed reconciliation", err)
	case errors.Is(err, ErrUnsupportedFormat):
		return errutil.UnsupportedMediaType("catalog must be .xlsx or .csv", err)
	case errors.Is(err, ErrInvalidCatalog):
		return errutil.BadRequest("invalid catalog file", err)
	default:
		return errutil.Internal("plan operation failed", err)
	}
}
