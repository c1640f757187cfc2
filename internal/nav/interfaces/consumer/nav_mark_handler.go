// Package consumer 净值标记的 Kafka 入站处理。
package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"github.com/wyfcoding/fundadmin/internal/nav/application"
)

const navMarkPublishedTopic = "nav.mark.published"

// NAVMarkHandler 消费外部估值系统发布的净值标记。
type NAVMarkHandler struct {
	svc    *application.NAVService
	logger *slog.Logger
}

// NewNAVMarkHandler 创建净值标记消费处理器。
func NewNAVMarkHandler(svc *application.NAVService, logger *slog.Logger) *NAVMarkHandler {
	return &NAVMarkHandler{svc: svc, logger: logger}
}

// Topic 返回订阅的主题。
func (h *NAVMarkHandler) Topic() string { return navMarkPublishedTopic }

// Handle 处理一条净值标记消息。RecordMark 按 (基金, 计算日) 幂等，重复投递无害。
func (h *NAVMarkHandler) Handle(ctx context.Context, msg kafka.Message) error {
	if msg.Topic != navMarkPublishedTopic {
		return nil
	}

	var payload struct {
		FundID      string `json:"fund_id"`
		CalcDate    string `json:"calc_date"`
		NAVPerShare string `json:"nav_per_share"`
		TotalShares string `json:"total_shares"`
	}
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		h.logger.ErrorContext(ctx, "failed to unmarshal nav mark event", "error", err)
		return err
	}
	if payload.FundID == "" {
		return nil
	}

	_, err := h.svc.RecordMark(ctx, &application.RecordMarkRequest{
		FundID:      payload.FundID,
		CalcDate:    payload.CalcDate,
		NAVPerShare: payload.NAVPerShare,
		TotalShares: payload.TotalShares,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to record nav mark from event",
			"fund_id", payload.FundID, "calc_date", payload.CalcDate, "error", err)
		return err
	}
	return nil
}
