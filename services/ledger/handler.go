package ledger

import (
	"errors"
	"net/http"

	"adagency-backoffice/pkg/accesscontrol"
	"adagency-backoffice/pkg/db/pagination"
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
	read := authz.Require(accesscontrol.ObjectTransactions, accesscontrol.ActionRead)

	txns := r.Group("/v1/transactions")
	txns.GET("", read, h.List)
	txns.GET("/:id", read, h.Get)
	txns.GET("/:id/audit", read, h.Audit)
}

func (h *Handler) List(c *gin.Context) {
	var filter ListFilter
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&filter); err != nil {
		_ = c.Error(errutil.BadRequest("invalid filter", err))
		return
	}
	if err := c.ShouldBindQuery(&page); err != nil {
		_ = c.Error(errutil.BadRequest("invalid pagination", err))
		return
	}

	data, info, err := h.service.List(c.Request.Context(), filter, page)
	if err != nil {
		_ = c.Error(toHTTPError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": data, "page_info": info})
}

func (h *Handler) Get(c *gin.Context) {
	txn, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(toHTTPError(err))
		return
	}

	c.JSON(http.StatusOK, txn)
}

func (h *Handler) Audit(c *gin.Context) {
	report, err := h.service.Audit(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(toHTTPError(err))
		return
	}

	c.JSON(http.StatusOK, report)
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrTransactionNotFound):
		return errutil.NotFound("accounting transaction not found", nil)
	case errors.Is(err, ErrInvalidEntry):
		return errutil.BadRequest("invalid accounting request", err)
	case errors.Is(err, ErrConstraintViolation):
		return errutil.Conflict("accounting transaction changed concurrently", err)
	default:
		return errutil.Internal("accounting operation failed", err)
	}
}
