package reconciliation

import (
	"errors"
	"net/http"
	"strconv"

	"adagency-backoffice/pkg/accesscontrol"
	"adagency-backoffice/pkg/db/pagination"
	"adagency-backoffice/pkg/errutil"
	"adagency-backoffice/services/campaign"
	"adagency-backoffice/services/ledger"
	"adagency-backoffice/services/plan"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Register(r gin.IRouter, authz *accesscontrol.Authorizer) {
	read := authz.Require(accesscontrol.ObjectReconciliations, accesscontrol.ActionRead)
	write := authz.Require(accesscontrol.ObjectReconciliations, accesscontrol.ActionWrite)
	purge := authz.Require(accesscontrol.ObjectReconciliations, accesscontrol.ActionPurge)

	recs := r.Group("/v1/reconciliations")
	recs.GET("", read, h.List)
	recs.GET("/:id", read, h.Get)
	recs.POST("/detect", write, h.Detect)
	recs.POST("/detect/batch", write, h.DetectBatch)
	recs.POST("/:id/approve", write, h.Approve)
	recs.POST("/:id/configure-plan", write, h.ConfigurePlan)
	recs.POST("/:id/assign-plan", write, h.AssignPlan)
	recs.POST("/:id/pause", write, h.Pause)
	recs.POST("/:id/resume", write, h.Resume)
	recs.POST("/:id/reject", purge, h.Reject)
	recs.DELETE("/:id", purge, h.Purge)
}

type detectRequest struct {
	Snapshot     *campaign.Snapshot `json:"snapshot"`
	RunID        string             `json:"detection_run_id"`
	PageIDs      []string           `json:"page_ids"`
	InstagramIDs []string           `json:"instagram_ids"`
}

type detectResponse struct {
	Reconciliation *CampaignReconciliation `json:"reconciliation"`
	MatchKind      MatchKind               `json:"match_kind"`
	Created        bool                    `json:"created"`
	Outcome        Outcome                 `json:"outcome"`
	Warning        string                  `json:"warning,omitempty"`
}

func (h *Handler) Detect(c *gin.Context) {
	var req detectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	det, err := h.service.DetectAndReconcile(c.Request.Context(), DetectInput{
		Snapshot:     req.Snapshot,
		RunID:        req.RunID,
		PageIDs:      req.PageIDs,
		InstagramIDs: req.InstagramIDs,
	})
	if err != nil {
		_ = c.Error(toHTTPError(err))
		return
	}

	resp := detectResponse{
		Reconciliation: det.Reconciliation,
		MatchKind:      det.Reconciliation.MatchKind,
		Created:        det.Created,
		Outcome:        outcomeOf(det),
	}
	if det.Issue != nil {
		resp.Warning = det.Issue.Error()
	}

	status := http.StatusOK
	if det.Created {
		status = http.StatusCreated
	}
	c.JSON(status, resp)
}

func (h *Handler) DetectBatch(c *gin.Context) {
	var in BatchInput
	if err := c.ShouldBindJSON(&in); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	result, err := h.service.DetectBatch(c.Request.Context(), in)
	if err != nil {
		_ = c.Error(toHTTPError(err))
		return
	}

	c.JSON(http.StatusOK, result)
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
	rec, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(toHTTPError(err))
		return
	}

	c.JSON(http.StatusOK, rec)
}

func (h *Handler) Approve(c *gin.Context) {
	rec, txn, err := h.service.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(toHTTPError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"reconciliation": rec, "transaction": txn})
}

type configurePlanRequest struct {
	ClientPrice decimal.Decimal `json:"client_price"`
}

func (h *Handler) ConfigurePlan(c *gin.Context) {
	var req configurePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	txn, err := h.service.ConfigurePlan(c.Request.Context(), c.Param("id"), req.ClientPrice)
	if err != nil {
		_ = c.Error(toHTTPError(err))
		return
	}

	c.JSON(http.StatusOK, txn)
}

type assignPlanRequest struct {
	PlanID string `json:"plan_id" binding:"required"`
}

func (h *Handler) AssignPlan(c *gin.Context) {
	var req assignPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	rec, err := h.service.AssignPlan(c.Request.Context(), c.Param("id"), req.PlanID)
	if err != nil {
		_ = c.Error(toHTTPError(err))
		return
	}

	c.JSON(http.StatusOK, rec)
}

func (h *Handler) Pause(c *gin.Context) {
	rec, err := h.service.Pause(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(toHTTPError(err))
		return
	}

	c.JSON(http.StatusOK, rec)
}

type resumeRequest struct {
	To Status `json:"to"`
}

func (h *Handler) Resume(c *gin.Context) {
	var req resumeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(errutil.BadRequest("invalid request body", err))
			return
		}
	}

	rec, err := h.service.Resume(c.Request.Context(), c.Param("id"), req.To)
	if err != nil {
		_ = c.Error(toHTTPError(err))
		return
	}

	c.JSON(http.StatusOK, rec)
}

func (h *Handler) Reject(c *gin.Context) {
	var req PurgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	audit, err := h.service.RejectAndPurge(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		_ = c.Error(toHTTPError(err))
		return
	}

	c.JSON(http.StatusOK, audit)
}

// Purge takes confirm and reason from the query string.
func (h *Handler) Purge(c *gin.Context) {
	confirm, _ := strconv.ParseBool(c.Query("confirm"))

	audit, err := h.service.Purge(c.Request.Context(), c.Param("id"), PurgeRequest{
		Confirm: confirm,
		Reason:  c.Query("reason"),
	})
	if err != nil {
		_ = c.Error(toHTTPError(err))
		return
	}

	c.JSON(http.StatusOK, audit)
}

func toHTTPError(err error) error {
	var be errutil.BaseError
	var te *TransitionError
	switch {
	case errors.As(err, &be):
		return be
	case errors.As(err, &te):
		return errutil.Conflict("status transition not allowed", err)
	case errors.Is(err, ErrReconciliationNotFound):
		return errutil.NotFound("campaign reconciliation not found", nil)
	case errors.Is(err, plan.ErrPlanNotFound):
		return errutil.NotFound("advertising plan not found", nil)
	case errors.Is(err, ErrMissingInput), errors.Is(err, ErrInvalidFilter):
		return errutil.BadRequest(err.Error(), nil)
	case errors.Is(err, ErrPurgeNotConfirmed):
		return errutil.BadRequest("purge must be confirmed", err)
	case errors.Is(err, ErrPlanRequired):
		return errutil.UnprocessableEntity("assign a plan first", err)
	case errors.Is(err, ledger.ErrInvalidEntry):
		return errutil.BadRequest("invalid accounting entry", err)
	case errors.Is(err, ledger.ErrConstraintViolation):
		return errutil.Conflict("accounting transaction changed concurrently", err)
	default:
		return errutil.Internal("reconciliation operation failed", err)
	}
}
