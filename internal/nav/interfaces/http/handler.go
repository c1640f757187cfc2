// Package http 净值服务的 HTTP 接口层。
package http

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/fundadmin/internal/nav/application"
	"github.com/wyfcoding/fundadmin/pkg/finerrors"
	"github.com/wyfcoding/pkg/response"
)

// NAVHandler 净值 HTTP 处理器。
type NAVHandler struct {
	svc *application.NAVService
}

// NewNAVHandler 创建净值 HTTP 处理器。
func NewNAVHandler(svc *application.NAVService) *NAVHandler {
	return &NAVHandler{svc: svc}
}

// RegisterRoutes 注册路由。
func (h *NAVHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/nav-marks", h.RecordMark)
	rg.GET("/funds/:id/nav", h.NAVAsOf)
	rg.GET("/funds/:id/nav-history", h.History)
}

// RecordMark 记录净值标记
func (h *NAVHandler) RecordMark(c *gin.Context) {
	var req application.RecordMarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, 400, err.Error(), "")
		return
	}
	mark, err := h.svc.RecordMark(c.Request.Context(), &req)
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, mark)
}

// NAVAsOf 查询截止日最近净值（?as_of=2025-03-31，缺省为当日）
func (h *NAVHandler) NAVAsOf(c *gin.Context) {
	cutoff := time.Now()
	if raw := c.Query("as_of"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.ErrorWithStatus(c, 400, "invalid as_of date", "")
			return
		}
		cutoff = parsed
	}
	mark, err := h.svc.NAVAsOf(c.Request.Context(), c.Param("id"), cutoff)
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, mark)
}

// History 查询净值历史（?limit=100）
func (h *NAVHandler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	marks, err := h.svc.History(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		response.ErrorWithStatus(c, finerrors.HTTPStatus(err), err.Error(), "")
		return
	}
	response.Success(c, marks)
}
