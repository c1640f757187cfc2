package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AccountStatus 资本账户状态
type AccountStatus int8

const (
	AccountStatusActive AccountStatus = 1 // 有效
	AccountStatusClosed AccountStatus = 2 // 已关闭
)

func (s AccountStatus) String() string {
	switch s {
	case AccountStatusActive:
		return "ACTIVE"
	case AccountStatusClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// CapitalAccount 资本账户，每个 (基金, 份额类别, 投资人) 一条。
// shares_owned/cost_basis 是交易回放的物化投影，仅由台账回放更新；
// 任何用于报表或费用基数的读取都必须以回放结果为准。
type CapitalAccount struct {
	gorm.Model
	// 账户 ID（业务主键）
	AccountID string `gorm:"column:account_id;type:varchar(32);uniqueIndex;not null" json:"account_id"`
	// 所属基金 ID
	FundID string `gorm:"column:fund_id;type:varchar(32);index;not null" json:"fund_id"`
	// 份额类别 ID
	ClassID string `gorm:"column:class_id;type:varchar(32);index;not null" json:"class_id"`
	// 投资人 ID
	InvestorID string `gorm:"column:investor_id;type:varchar(32);index;not null" json:"investor_id"`
	// 认缴金额
	Commitment decimal.Decimal `gorm:"column:commitment;type:decimal(32,18);not null;default:0" json:"commitment"`
	// 持有份额（投影）
	SharesOwned decimal.Decimal `gorm:"column:shares_owned;type:decimal(32,18);not null;default:0" json:"shares_owned"`
	// 成本基础（投影）
	CostBasis decimal.Decimal `gorm:"column:cost_basis;type:decimal(32,18);not null;default:0" json:"cost_basis"`
	// 已实现损益（投影）
	RealizedGain decimal.Decimal `gorm:"column:realized_gain;type:decimal(32,18);not null;default:0" json:"realized_gain"`
	// 账户状态
	Status AccountStatus `gorm:"column:status;type:tinyint;not null;default:1" json:"status"`
	// 成立日，早于该日期的交易一律拒绝
	InceptionDate time.Time `gorm:"column:inception_date;type:date;not null" json:"inception_date"`
}

func (CapitalAccount) TableName() string { return "capital_accounts" }

// AccountRepository 资本账户仓储接口。
type AccountRepository interface {
	// Save 保存或更新账户
	Save(ctx context.Context, account *CapitalAccount) error
	// Get 根据账户 ID 获取账户
	Get(ctx context.Context, accountID string) (*CapitalAccount, error)
	// ListActiveByFund 列出基金下全部有效账户
	ListActiveByFund(ctx context.Context, fundID string) ([]*CapitalAccount, error)
	// UpdateProjection 在交易写入的同一事务内更新投影字段
	UpdateProjection(ctx context.Context, accountID string, shares, costBasis, realizedGain decimal.Decimal) error
}
