// Package consumer 瀑布计算结果的 Kafka 入站处理。
package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"github.com/wyfcoding/fundadmin/internal/carry/application"
)

const waterfallCalculatedTopic = "waterfall.calculated"

// WaterfallHandler 消费外部瀑布系统发布的计算结果。
type WaterfallHandler struct {
	svc    *application.CarryService
	logger *slog.Logger
}

// NewWaterfallHandler 创建瀑布结果消费处理器。
func NewWaterfallHandler(svc *application.CarryService, logger *slog.Logger) *WaterfallHandler {
	return &WaterfallHandler{svc: svc, logger: logger}
}

// Topic 返回订阅的主题。
func (h *WaterfallHandler) Topic() string { return waterfallCalculatedTopic }

// Handle 处理一条瀑布结果消息。录入按 (基金, 计算日) 幂等，重复投递无害。
func (h *WaterfallHandler) Handle(ctx context.Context, msg kafka.Message) error {
	if msg.Topic != waterfallCalculatedTopic {
		return nil
	}

	var payload struct {
		FundID           string `json:"fund_id"`
		CalcDate         string `json:"calc_date"`
		GPAllocation     string `json:"gp_allocation"`
		LPAllocation     string `json:"lp_allocation"`
		TotalDistributed string `json:"total_distributed"`
	}
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		h.logger.ErrorContext(ctx, "failed to unmarshal waterfall event", "error", err)
		return err
	}
	if payload.FundID == "" {
		return nil
	}

	_, err := h.svc.IngestWaterfall(ctx, &application.IngestWaterfallRequest{
		FundID:           payload.FundID,
		CalcDate:         payload.CalcDate,
		GPAllocation:     payload.GPAllocation,
		LPAllocation:     payload.LPAllocation,
		TotalDistributed: payload.TotalDistributed,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to ingest waterfall from event",
			"fund_id", payload.FundID, "calc_date", payload.CalcDate, "error", err)
		return err
	}
	return nil
}
