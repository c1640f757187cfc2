// Package http 对账单的 HTTP 接口层。
package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/fundadmin/internal/statement/application"
	"github.com/wyfcoding/fundadmin/pkg/finerrors"
	"github.com/wyfcoding/fundadmin/pkg/period"
	"github.com/wyfcoding/pkg/response"
)

// StatementHandler 对账单 HTTP 处理器。
type StatementHandler struct {
	svc *application.StatementService
}

// NewStatementHandler 创建对账单 HTTP 处理器。
func NewStatementHandler(svc *application.StatementService) *StatementHandler {
	return &StatementHandler{svc: svc}
}

// RegisterRoutes 注册路由。
func (h *StatementHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/statements/generate", h.GeneratePeriod)
	rg.GET("/statements/:id", h.Get)
	rg.POST("/statements/:id/finalize", h.Finalize)
	rg.POST("/statements/:id/send", h.MarkSent)
	rg.POST("/statements/:id/revise", h.Revise)
	rg.GET("/funds/:id/statements", h.ListByFundPeriod)
	rg.GET("/accounts/:id/statements", h.ListByAccount)
}

// GeneratePeriodRequest 批量生成请求
type GeneratePeriodRequest struct {
	FundID      string `json:"fund_id" binding:"required"`
	PeriodStart string `json:"period_start" binding:"required"`
	PeriodEnd   string `json:"period_end" binding:"required"`
	// 可选：只生成单一账户
	AccountID string `json:"account_id"`
}

// GeneratePeriod 批量生成一个期间的对账单
func (h *StatementHandler) GeneratePeriod(c *gin.Context) {
	var req GeneratePeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, 400, err.Error(), "")
		return
	}
	p, err := parsePeriod(req.PeriodStart, req.PeriodEnd)
	if err != nil {
		response.ErrorWithStatus(c, 400, err.Error(), "")
		return
	}
	if req.AccountID != "" {
		st, err := h.svc.GenerateAccount(c.Request.Context(), req.FundID, req.AccountID, p)
		if err != nil {
			response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
			return
		}
		response.Success(c, st)
		return
	}
	summary, err := h.svc.GeneratePeriod(c.Request.Context(), req.FundID, p)
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, summary)
}

// Get 查询对账单
func (h *StatementHandler) Get(c *gin.Context) {
	st, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, st)
}

// Finalize 定稿对账单
func (h *StatementHandler) Finalize(c *gin.Context) {
	st, err := h.svc.Finalize(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, st)
}

// MarkSent 标记对账单已发送
func (h *StatementHandler) MarkSent(c *gin.Context) {
	st, err := h.svc.MarkSent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, st)
}

// Revise 修订对账单，生成下一版本草稿
func (h *StatementHandler) Revise(c *gin.Context) {
	st, err := h.svc.Revise(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, st)
}

// ListByFundPeriod 查询基金期间对账单（?period_start=&period_end=）
func (h *StatementHandler) ListByFundPeriod(c *gin.Context) {
	p, err := parsePeriod(c.Query("period_start"), c.Query("period_end"))
	if err != nil {
		response.ErrorWithStatus(c, 400, err.Error(), "")
		return
	}
	sts, err := h.svc.ListByFundPeriod(c.Request.Context(), c.Param("id"), p)
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, sts)
}

// ListByAccount 查询账户对账单历史
func (h *StatementHandler) ListByAccount(c *gin.Context) {
	sts, err := h.svc.ListByAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, sts)
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
