package application

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/fundadmin/internal/capitalledger/domain"
)

// CreateFundRequest 创建基金请求。
type CreateFundRequest struct {
	Name          string `json:"name" binding:"required"`
	BaseCurrency  string `json:"base_currency" binding:"required"`
	NAVFrequency  string `json:"nav_frequency" binding:"required"` // MONTHLY / QUARTERLY / ANNUAL
	InceptionDate string `json:"inception_date" binding:"required"`
}

// CreateShareClassRequest 创建份额类别请求。
type CreateShareClassRequest struct {
	FundID             string `json:"fund_id" binding:"required"`
	Name               string `json:"name" binding:"required"`
	DefaultMgmtFeeRate string `json:"default_mgmt_fee_rate"`
	DefaultPerfFeeRate string `json:"default_perf_fee_rate"`
	PriceScale         int32  `json:"price_scale"`
}

// OpenAccountRequest 开立资本账户请求。
type OpenAccountRequest struct {
	FundID        string `json:"fund_id" binding:"required"`
	ClassID       string `json:"class_id" binding:"required"`
	InvestorID    string `json:"investor_id" binding:"required"`
	Commitment    string `json:"commitment" binding:"required"`
	InceptionDate string `json:"inception_date" binding:"required"`
}

// RecordTransactionRequest 追加资本交易请求。
// 金额与份额使用字符串以保持精度。
type RecordTransactionRequest struct {
	AccountID  string `json:"account_id" binding:"required"`
	Type       string `json:"type" binding:"required"` // CONTRIBUTION / DISTRIBUTION / FEE_DEBIT
	Amount     string `json:"amount" binding:"required"`
	ShareDelta string `json:"share_delta" binding:"required"`
	TradeDate  string `json:"trade_date" binding:"required"`
	// ReferenceID 可选幂等键：同一引用重复提交返回首次写入的交易，不追加第二笔
	ReferenceID string `json:"reference_id"`
}

// AccountSnapshot 截止日的账户回放快照，费用引擎与报表生成的唯一读取口径。
type AccountSnapshot struct {
	AccountID           string
	FundID              string
	ClassID             string
	InvestorID          string
	Status              domain.AccountStatus
	InceptionDate       time.Time
	Commitment          decimal.Decimal
	Shares              decimal.Decimal
	CostBasis           decimal.Decimal
	RealizedGain        decimal.Decimal
	ContributionsToDate decimal.Decimal
}
