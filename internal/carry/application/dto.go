package application

import "github.com/shopspring/decimal"

// OpenCarryAccountRequest 开立附带权益账户请求
type OpenCarryAccountRequest struct {
	FundID     string `json:"fund_id" binding:"required"`
	GPEntityID string `json:"gp_entity_id" binding:"required"`
}

// IngestWaterfallRequest 瀑布计算结果录入请求
type IngestWaterfallRequest struct {
	FundID           string `json:"fund_id" binding:"required"`
	CalcDate         string `json:"calc_date" binding:"required"`
	GPAllocation     string `json:"gp_allocation" binding:"required"`
	LPAllocation     string `json:"lp_allocation" binding:"required"`
	TotalDistributed string `json:"total_distributed" binding:"required"`
}

// RecordDistributionRequest 附带权益分配请求
type RecordDistributionRequest struct {
	Amount string `json:"amount" binding:"required"`
	Date   string `json:"date" binding:"required"`
}

// PayClawbackRequest 回拨支付请求
type PayClawbackRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// AccrualResult 一次计提的结果
type AccrualResult struct {
	CarryAccountID string          `json:"carry_account_id"`
	EarnedToDate   decimal.Decimal `json:"earned_to_date"`
	AccrualDelta   decimal.Decimal `json:"accrual_delta"`
	TotalAccrued   decimal.Decimal `json:"total_accrued"`
	HighWaterMark  decimal.Decimal `json:"high_water_mark"`
}
