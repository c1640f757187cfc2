package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionType 资本交易类型
type TransactionType int8

const (
	TransactionTypeContribution TransactionType = 1 // 出资
	TransactionTypeDistribution TransactionType = 2 // 分配
	TransactionTypeFeeDebit     TransactionType = 3 // 费用扣收
)

func (t TransactionType) String() string {
	switch t {
	case TransactionTypeContribution:
		return "CONTRIBUTION"
	case TransactionTypeDistribution:
		return "DISTRIBUTION"
	case TransactionTypeFeeDebit:
		return "FEE_DEBIT"
	default:
		return "UNKNOWN"
	}
}

// CapitalTransaction 资本交易，账户上的不可变事件。
// Amount 一律为正数金额，方向由 Type 决定；ShareDelta 带符号。
// Seq 是写入时分配的单调序号，同日多笔交易按 Seq 定序回放。
type CapitalTransaction struct {
	gorm.Model
	// 交易 ID（业务主键）
	TransactionID string `gorm:"column:transaction_id;type:varchar(32);uniqueIndex;not null" json:"transaction_id"`
	// 账户 ID
	AccountID string `gorm:"column:account_id;type:varchar(32);index:idx_capital_txns_account_date;not null" json:"account_id"`
	// 基金 ID（冗余，便于按基金扫描）
	FundID string `gorm:"column:fund_id;type:varchar(32);index;not null" json:"fund_id"`
	// 交易类型
	Type TransactionType `gorm:"column:type;type:tinyint;not null" json:"type"`
	// 金额（正数）
	Amount decimal.Decimal `gorm:"column:amount;type:decimal(32,18);not null" json:"amount"`
	// 份额变动（带符号）
	ShareDelta decimal.Decimal `gorm:"column:share_delta;type:decimal(32,18);not null" json:"share_delta"`
	// 交易日
	TradeDate time.Time `gorm:"column:trade_date;type:date;index:idx_capital_txns_account_date;not null" json:"trade_date"`
	// 同日定序序号
	Seq int64 `gorm:"column:seq;type:bigint;not null" json:"seq"`
}

func (CapitalTransaction) TableName() string { return "capital_transactions" }

// TransactionRepository 资本交易仓储接口，只追加。
type TransactionRepository interface {
	// Append 追加一笔交易，并在同一事务内更新账户投影；
	// 交易 ID 唯一索引冲突返回 ConflictError
	Append(ctx context.Context, txn *CapitalTransaction, projected *CapitalAccount) error
	// GetByTransactionID 根据业务主键获取，不存在返回 (nil, nil)
	GetByTransactionID(ctx context.Context, transactionID string) (*CapitalTransaction, error)
	// ListByAccount 按 (交易日, 序号) 升序返回账户全部交易
	ListByAccount(ctx context.Context, accountID string) ([]*CapitalTransaction, error)
	// ListByAccountThrough 返回交易日不晚于 cutoff 的交易
	ListByAccountThrough(ctx context.Context, accountID string, cutoff time.Time) ([]*CapitalTransaction, error)
}
