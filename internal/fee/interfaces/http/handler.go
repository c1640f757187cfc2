// Package http 费用引擎的 HTTP 接口层。
package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/fundadmin/internal/fee/application"
	"github.com/wyfcoding/fundadmin/pkg/finerrors"
	"github.com/wyfcoding/fundadmin/pkg/period"
	"github.com/wyfcoding/pkg/response"
)

// FeeHandler 费用引擎 HTTP 处理器。
type FeeHandler struct {
	svc *application.FeeService
}

// NewFeeHandler 创建费用引擎 HTTP 处理器。
func NewFeeHandler(svc *application.FeeService) *FeeHandler {
	return &FeeHandler{svc: svc}
}

// RegisterRoutes 注册路由。
func (h *FeeHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/fee-schedules", h.CreateSchedule)
	rg.GET("/fee-schedules/:id", h.GetSchedule)
	rg.POST("/fee-schedules/:id/deactivate", h.DeactivateSchedule)
	rg.POST("/fees/evaluate", h.EvaluatePeriod)
	rg.POST("/fee-schedules/:id/evaluate", h.EvaluateOne)
	rg.POST("/fees/:id/invoice", h.Invoice)
	rg.POST("/fees/:id/pay", h.MarkPaid)
	rg.POST("/fees/:id/waive", h.Waive)
	rg.GET("/funds/:id/fees", h.ListByFundPeriod)
}

// CreateSchedule 创建费率表
func (h *FeeHandler) CreateSchedule(c *gin.Context) {
	var req application.CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, 400, err.Error(), "")
		return
	}
	schedule, err := h.svc.CreateSchedule(c.Request.Context(), &req)
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, schedule)
}

// GetSchedule 查询费率表
func (h *FeeHandler) GetSchedule(c *gin.Context) {
	schedule, err := h.svc.GetSchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, schedule)
}

// DeactivateSchedule 停用费率表
func (h *FeeHandler) DeactivateSchedule(c *gin.Context) {
	if err := h.svc.DeactivateSchedule(c.Request.Context(), c.Param("id")); err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, gin.H{"schedule_id": c.Param("id")})
}

// EvaluatePeriod 批量计提一个期间的费用
func (h *FeeHandler) EvaluatePeriod(c *gin.Context) {
	var req application.EvaluatePeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, 400, err.Error(), "")
		return
	}
	p, err := parsePeriod(req.PeriodStart, req.PeriodEnd)
	if err != nil {
		response.ErrorWithStatus(c, 400, err.Error(), "")
		return
	}
	summary, err := h.svc.EvaluatePeriod(c.Request.Context(), req.FundID, p)
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, summary)
}

// EvaluateOne 对单账户计提一个期间的费用（?account_id=&period_start=&period_end=）
func (h *FeeHandler) EvaluateOne(c *gin.Context) {
	accountID := c.Query("account_id")
	if accountID == "" {
		response.ErrorWithStatus(c, 400, "account_id is required", "")
		return
	}
	p, err := parsePeriod(c.Query("period_start"), c.Query("period_end"))
	if err != nil {
		response.ErrorWithStatus(c, 400, err.Error(), "")
		return
	}
	txn, err := h.svc.EvaluateOne(c.Request.Context(), c.Param("id"), accountID, p)
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, txn)
}

// Invoice 费用开票
func (h *FeeHandler) Invoice(c *gin.Context) {
	txn, err := h.svc.Invoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, txn)
}

// MarkPaid 费用支付
func (h *FeeHandler) MarkPaid(c *gin.Context) {
	var req application.MarkPaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, 400, err.Error(), "")
		return
	}
	txn, err := h.svc.MarkPaid(c.Request.Context(), c.Param("id"), req.Amount)
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, txn)
}

// Waive 费用豁免
func (h *FeeHandler) Waive(c *gin.Context) {
	txn, err := h.svc.Waive(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, txn)
}

// ListByFundPeriod 查询基金期间费用（?period_start=&period_end=）
func (h *FeeHandler) ListByFundPeriod(c *gin.Context) {
	p, err := parsePeriod(c.Query("period_start"), c.Query("period_end"))
	if err != nil {
		response.ErrorWithStatus(c, 400, err.Error(), "")
		return
	}
	txns, err := h.svc.ListByFundPeriod(c.Request.Context(), c.Param("id"), p)
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, txns)
}

func parsePeriod(start, end string) (period.Period, error) {
	s, err := time.Parse("2006-01-02", start)
	if err != nil {
		return period.Period{}, finerrors.Validationf("invalid period_start %q", start)
	}
	e, err := time.Parse("2006-01-02", end)
	if err != nil {
		return period.Period{}, finerrors.Validationf("invalid period_end %q", end)
	}
	p := period.Period{Start: period.Day(s), End: period.Day(e)}
	if err := p.Validate(); err != nil {
		return period.Period{}, err
	}
	return p, nil
}
