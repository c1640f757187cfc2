package application

import (
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/fundadmin/pkg/period"
)

// CreateScheduleRequest 创建费率表请求
type CreateScheduleRequest struct {
	FundID        string `json:"fund_id" binding:"required"`
	ClassID       string `json:"class_id"`
	Type          string `json:"type" binding:"required"`
	Method        string `json:"method" binding:"required"`
	AnnualRate    string `json:"annual_rate" binding:"required"`
	Frequency     string `json:"frequency" binding:"required"`
	HurdleRate    string `json:"hurdle_rate"`
	HighWaterMark bool   `json:"high_water_mark"`
	EffectiveFrom string `json:"effective_from" binding:"required"`
	EffectiveTo   string `json:"effective_to"`
}

// EvaluatePeriodRequest 期间费用评估请求
type EvaluatePeriodRequest struct {
	FundID      string `json:"fund_id" binding:"required"`
	PeriodStart string `json:"period_start" binding:"required"`
	PeriodEnd   string `json:"period_end" binding:"required"`
}

// MarkPaidRequest 费用支付请求
type MarkPaidRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// SkippedAssessment 一条被跳过的评估及原因
type SkippedAssessment struct {
	ScheduleID string `json:"schedule_id"`
	AccountID  string `json:"account_id,omitempty"`
	Reason     string `json:"reason"`
}

// EvaluationSummary 一次期间费用评估的汇总结果
type EvaluationSummary struct {
	FundID           string              `json:"fund_id"`
	Period           period.Period       `json:"period"`
	SchedulesApplied int                 `json:"schedules_applied"`
	FeesEmitted      int                 `json:"fees_emitted"`
	AlreadyProcessed int                 `json:"already_processed"`
	TotalFeeAmount   decimal.Decimal     `json:"total_fee_amount"`
	Skipped          []SkippedAssessment `json:"skipped,omitempty"`
}
