// Package http 附带权益引擎的 HTTP 接口层。
package http

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/fundadmin/internal/carry/application"
	"github.com/wyfcoding/fundadmin/pkg/finerrors"
	"github.com/wyfcoding/pkg/response"
)

// CarryHandler 附带权益 HTTP 处理器。
type CarryHandler struct {
	svc *application.CarryService
}

// NewCarryHandler 创建附带权益 HTTP 处理器。
func NewCarryHandler(svc *application.CarryService) *CarryHandler {
	return &CarryHandler{svc: svc}
}

// RegisterRoutes 注册路由。
func (h *CarryHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/carry-accounts", h.OpenAccount)
	rg.GET("/carry-accounts/:id", h.GetAccount)
	rg.POST("/carry-accounts/:id/suspend", h.Suspend)
	rg.POST("/carry-accounts/:id/terminate", h.Terminate)
	rg.POST("/carry-accounts/:id/distributions", h.RecordDistribution)
	rg.POST("/carry-accounts/:id/detect-clawback", h.DetectClawback)
	rg.GET("/carry-accounts/:id/clawbacks", h.ListClawbacks)
	rg.POST("/waterfalls", h.IngestWaterfall)
	rg.GET("/funds/:id/waterfalls", h.ListWaterfalls)
	rg.GET("/funds/:id/carry-account", h.GetAccountByFund)
	rg.POST("/funds/:id/carry-accrue", h.Accrue)
	rg.POST("/clawbacks/:id/notify", h.NotifyClawback)
	rg.POST("/clawbacks/:id/pay", h.PayClawback)
	rg.POST("/clawbacks/:id/waive", h.WaiveClawback)
}

// OpenAccount 开立附带权益账户
func (h *CarryHandler) OpenAccount(c *gin.Context) {
	var req application.OpenCarryAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, 400, err.Error(), "")
		return
	}
	account, err := h.svc.OpenAccount(c.Request.Context(), &req)
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, account)
}

// GetAccount 查询附带权益账户
func (h *CarryHandler) GetAccount(c *gin.Context) {
	account, err := h.svc.GetAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, account)
}

// GetAccountByFund 按基金查询附带权益账户
func (h *CarryHandler) GetAccountByFund(c *gin.Context) {
	account, err := h.svc.GetAccountByFund(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, account)
}

// Accrue 触发附带权益计提（?as_of=2025-03-31，缺省为当日）
func (h *CarryHandler) Accrue(c *gin.Context) {
	asOf := time.Now()
	if raw := c.Query("as_of"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.ErrorWithStatus(c, 400, "invalid as_of date", "")
			return
		}
		asOf = parsed
	}
	result, err := h.svc.Accrue(c.Request.Context(), c.Param("id"), asOf)
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, result)
}

// Suspend 暂停附带权益账户
func (h *CarryHandler) Suspend(c *gin.Context) {
	account, err := h.svc.Suspend(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, account)
}

// Terminate 终止附带权益账户
func (h *CarryHandler) Terminate(c *gin.Context) {
	account, err := h.svc.Terminate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, account)
}

// RecordDistribution 记录一笔附带权益分配
func (h *CarryHandler) RecordDistribution(c *gin.Context) {
	var req application.RecordDistributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, 400, err.Error(), "")
		return
	}
	account, err := h.svc.RecordDistribution(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, account)
}

// DetectClawback 检测回拨（?as_of=2025-12-31，缺省为当日）
func (h *CarryHandler) DetectClawback(c *gin.Context) {
	asOf := time.Now()
	if raw := c.Query("as_of"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.ErrorWithStatus(c, 400, "invalid as_of date", "")
			return
		}
		asOf = parsed
	}
	provision, err := h.svc.DetectClawback(c.Request.Context(), c.Param("id"), asOf)
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	if provision == nil {
		response.Success(c, gin.H{"clawback_required": false})
		return
	}
	response.Success(c, provision)
}

// ListClawbacks 查询账户回拨历史
func (h *CarryHandler) ListClawbacks(c *gin.Context) {
	provisions, err := h.svc.ListClawbacks(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, provisions)
}

// IngestWaterfall 录入瀑布计算结果
func (h *CarryHandler) IngestWaterfall(c *gin.Context) {
	var req application.IngestWaterfallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, 400, err.Error(), "")
		return
	}
	wf, err := h.svc.IngestWaterfall(c.Request.Context(), &req)
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, wf)
}

// ListWaterfalls 查询基金瀑布历史（?limit=100）
func (h *CarryHandler) ListWaterfalls(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	wfs, err := h.svc.ListWaterfalls(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, wfs)
}

// NotifyClawback 回拨通知
func (h *CarryHandler) NotifyClawback(c *gin.Context) {
	provision, err := h.svc.NotifyClawback(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, provision)
}

// PayClawback 回拨支付
func (h *CarryHandler) PayClawback(c *gin.Context) {
	var req application.PayClawbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, 400, err.Error(), "")
		return
	}
	provision, err := h.svc.PayClawback(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, provision)
}

// WaiveClawback 回拨豁免
func (h *CarryHandler) WaiveClawback(c *gin.Context) {
	provision, err := h.svc.WaiveClawback(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, provision)
}
