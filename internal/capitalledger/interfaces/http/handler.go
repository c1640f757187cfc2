// Package http 资本台账的 HTTP 接口层。
package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/fundadmin/internal/capitalledger/application"
	"github.com/wyfcoding/fundadmin/pkg/finerrors"
	"github.com/wyfcoding/fundadmin/pkg/period"
	"github.com/wyfcoding/pkg/response"
)

// LedgerHandler 台账 HTTP 处理器。
type LedgerHandler struct {
	svc   *application.LedgerService
	query *application.LedgerQueryService
}

// NewLedgerHandler 创建台账 HTTP 处理器。
func NewLedgerHandler(svc *application.LedgerService, query *application.LedgerQueryService) *LedgerHandler {
	return &LedgerHandler{svc: svc, query: query}
}

// RegisterRoutes 注册路由。
func (h *LedgerHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/funds", h.CreateFund)
	rg.GET("/funds/:id", h.GetFund)
	rg.POST("/share-classes", h.CreateShareClass)
	rg.POST("/accounts", h.OpenAccount)
	rg.GET("/accounts/:id", h.GetAccount)
	rg.GET("/accounts/:id/snapshot", h.SnapshotAccount)
	rg.GET("/accounts/:id/transactions", h.ListTransactions)
	rg.POST("/accounts/:id/close", h.CloseAccount)
	rg.POST("/transactions", h.RecordTransaction)
}

// CreateFund 创建基金
func (h *LedgerHandler) CreateFund(c *gin.Context) {
	var req application.CreateFundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, 400, err.Error(), "")
		return
	}
	fund, err := h.svc.CreateFund(c.Request.Context(), &req)
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, fund)
}

// GetFund 获取基金
func (h *LedgerHandler) GetFund(c *gin.Context) {
	fund, err := h.query.GetFund(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, fund)
}

// CreateShareClass 创建份额类别
func (h *LedgerHandler) CreateShareClass(c *gin.Context) {
	var req application.CreateShareClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, 400, err.Error(), "")
		return
	}
	class, err := h.svc.CreateShareClass(c.Request.Context(), &req)
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, class)
}

// OpenAccount 开立资本账户
func (h *LedgerHandler) OpenAccount(c *gin.Context) {
	var req application.OpenAccountRequest
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

// GetAccount 获取资本账户
func (h *LedgerHandler) GetAccount(c *gin.Context) {
	account, err := h.query.GetAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, account)
}

// SnapshotAccount 回放账户到截止日（?as_of=2025-03-31，缺省为当日）
func (h *LedgerHandler) SnapshotAccount(c *gin.Context) {
	cutoff := period.Day(time.Now())
	if raw := c.Query("as_of"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.ErrorWithStatus(c, 400, "invalid as_of date", "")
			return
		}
		cutoff = period.Day(parsed)
	}
	snap, err := h.query.SnapshotAsOf(c.Request.Context(), c.Param("id"), cutoff)
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, snap)
}

// ListTransactions 返回账户交易历史
func (h *LedgerHandler) ListTransactions(c *gin.Context) {
	txns, err := h.query.ListTransactions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, txns)
}

// CloseAccount 关闭资本账户
func (h *LedgerHandler) CloseAccount(c *gin.Context) {
	if err := h.svc.CloseAccount(c.Request.Context(), c.Param("id")); err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, gin.H{"account_id": c.Param("id"), "status": "CLOSED"})
}

// RecordTransaction 追加资本交易
func (h *LedgerHandler) RecordTransaction(c *gin.Context) {
	var req application.RecordTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, 400, err.Error(), "")
		return
	}
	txn, err := h.svc.RecordTransaction(c.Request.Context(), &req)
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, txn)
}
