// Package http 期末结算批次的 HTTP 接口层。
package http

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/fundadmin/internal/periodclose/application"
	"github.com/wyfcoding/fundadmin/pkg/finerrors"
	"github.com/wyfcoding/fundadmin/pkg/period"
	"github.com/wyfcoding/pkg/response"
)

// CloseHandler 期末结算 HTTP 处理器。
type CloseHandler struct {
	svc *application.CloseService
}

// NewCloseHandler 创建期末结算 HTTP 处理器。
func NewCloseHandler(svc *application.CloseService) *CloseHandler {
	return &CloseHandler{svc: svc}
}

// RegisterRoutes 注册路由。
func (h *CloseHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/period-close/runs", h.Run)
	rg.GET("/period-close/runs/:id", h.GetRun)
	rg.GET("/funds/:id/period-close-runs", h.ListRuns)
}

// RunRequest 触发批次请求
type RunRequest struct {
	FundID      string `json:"fund_id" binding:"required"`
	PeriodStart string `json:"period_start" binding:"required"`
	PeriodEnd   string `json:"period_end" binding:"required"`
}

// Run 触发一次期末结算批次
func (h *CloseHandler) Run(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, 400, err.Error(), "")
		return
	}
	start, err := time.Parse("2006-01-02", req.PeriodStart)
	if err != nil {
		response.ErrorWithStatus(c, 400, "invalid period_start", "")
		return
	}
	end, err := time.Parse("2006-01-02", req.PeriodEnd)
	if err != nil {
		response.ErrorWithStatus(c, 400, "invalid period_end", "")
		return
	}
	run, err := h.svc.Run(c.Request.Context(), req.FundID, period.Period{
		Start: period.Day(start), End: period.Day(end),
	})
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, run)
}

// GetRun 查询批次
func (h *CloseHandler) GetRun(c *gin.Context) {
	run, err := h.svc.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, run)
}

// ListRuns 查询基金批次历史（?limit=50）
func (h *CloseHandler) ListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := h.svc.ListRuns(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, runs)
}
