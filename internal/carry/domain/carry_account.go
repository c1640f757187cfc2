// Package domain 附带权益引擎的领域模型。
// CarriedInterestAccount 跟踪 GP 的累计计提、累计分配与回拨准备金，
// 已赚取口径来自外部瀑布计算结果，引擎本身不做瀑布分配。
package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/fundadmin/pkg/finerrors"
	"gorm.io/gorm"
)

// CarryStatus 附带权益账户状态
type CarryStatus int8

const (
	CarryStatusActive     CarryStatus = 1 // 正常
	CarryStatusSuspended  CarryStatus = 2 // 暂停
	CarryStatusTerminated CarryStatus = 3 // 终止（终态）
)

func (s CarryStatus) String() string {
	switch s {
	case CarryStatusActive:
		return "ACTIVE"
	case CarryStatusSuspended:
		return "SUSPENDED"
	case CarryStatusTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// CarriedInterestAccount 附带权益账户，每只基金一个。
type CarriedInterestAccount struct {
	gorm.Model
	// 附带权益账户 ID（业务主键）
	CarryAccountID string `gorm:"column:carry_account_id;type:varchar(32);uniqueIndex;not null" json:"carry_account_id"`
	// 基金 ID
	FundID string `gorm:"column:fund_id;type:varchar(32);uniqueIndex;not null" json:"fund_id"`
	// GP 主体 ID
	GPEntityID string `gorm:"column:gp_entity_id;type:varchar(32);not null" json:"gp_entity_id"`
	// 累计计提
	TotalAccrued decimal.Decimal `gorm:"column:total_accrued;type:decimal(32,18);not null;default:0" json:"total_accrued"`
	// 累计实际分配
	TotalDistributed decimal.Decimal `gorm:"column:total_distributed;type:decimal(32,18);not null;default:0" json:"total_distributed"`
	// 回拨准备金（已收回金额的累计）
	ClawbackReserve decimal.Decimal `gorm:"column:clawback_reserve;type:decimal(32,18);not null;default:0" json:"clawback_reserve"`
	// 基金总值高水位，只升不降
	HighWaterMark decimal.Decimal `gorm:"column:high_water_mark;type:decimal(32,18);not null;default:0" json:"high_water_mark"`
	// 状态
	Status CarryStatus `gorm:"column:status;type:tinyint;not null;default:1" json:"status"`
}

func (CarriedInterestAccount) TableName() string { return "carried_interest_accounts" }

// ApplyAccrual 用外部瀑布的已赚取口径推进累计计提。
// 计提只增不减：已赚取低于累计计提时增量为零。
func (a *CarriedInterestAccount) ApplyAccrual(earnedToDate decimal.Decimal) decimal.Decimal {
	delta := earnedToDate.Sub(a.TotalAccrued)
	if !delta.IsPositive() {
		return decimal.Zero
	}
	a.TotalAccrued = a.TotalAccrued.Add(delta)
	return delta
}

// RaiseHighWaterMark 抬升基金总值高水位，只升不降。
func (a *CarriedInterestAccount) RaiseHighWaterMark(fundValue decimal.Decimal) {
	if fundValue.GreaterThan(a.HighWaterMark) {
		a.HighWaterMark = fundValue
	}
}

// AddDistribution 记录一笔实际分配。
func (a *CarriedInterestAccount) AddDistribution(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return finerrors.Validationf("distribution amount must be positive, got %s", amount)
	}
	a.TotalDistributed = a.TotalDistributed.Add(amount)
	return nil
}

// Suspend 状态流转：正常 → 暂停。
func (a *CarriedInterestAccount) Suspend() error {
	if a.Status != CarryStatusActive {
		return finerrors.Validationf("carry account %s cannot be suspended from status %s", a.CarryAccountID, a.Status)
	}
	a.Status = CarryStatusSuspended
	return nil
}

// Terminate 状态流转：正常/暂停 → 终止。单向，不可恢复。
func (a *CarriedInterestAccount) Terminate() error {
	if a.Status == CarryStatusTerminated {
		return finerrors.Validationf("carry account %s is already terminated", a.CarryAccountID)
	}
	a.Status = CarryStatusTerminated
	return nil
}

// WaterfallCalculation 外部瀑布计算结果，按 (基金, 计算日) 唯一，对引擎只读。
type WaterfallCalculation struct {
	gorm.Model
	WaterfallID string    `gorm:"column:waterfall_id;type:varchar(32);uniqueIndex;not null" json:"waterfall_id"`
	FundID      string    `gorm:"column:fund_id;type:varchar(32);uniqueIndex:idx_waterfalls_key;not null" json:"fund_id"`
	CalcDate    time.Time `gorm:"column:calc_date;type:date;uniqueIndex:idx_waterfalls_key;not null" json:"calc_date"`
	// GP 分配额（即附带权益已赚取口径）
	GPAllocation decimal.Decimal `gorm:"column:gp_allocation;type:decimal(32,18);not null" json:"gp_allocation"`
	// LP 分配额
	LPAllocation decimal.Decimal `gorm:"column:lp_allocation;type:decimal(32,18);not null" json:"lp_allocation"`
	// 瀑布覆盖的累计分配总额
	TotalDistributed decimal.Decimal `gorm:"column:total_distributed;type:decimal(32,18);not null" json:"total_distributed"`
}

func (WaterfallCalculation) TableName() string { return "waterfall_calculations" }

// CarryAccountRepository 附带权益账户仓储接口。
type CarryAccountRepository interface {
	// Save 保存账户
	Save(ctx context.Context, account *CarriedInterestAccount) error
	// Get 根据业务主键获取，不存在返回 (nil, nil)
	Get(ctx context.Context, carryAccountID string) (*CarriedInterestAccount, error)
	// GetByFund 根据基金获取，不存在返回 (nil, nil)
	GetByFund(ctx context.Context, fundID string) (*CarriedInterestAccount, error)
}

// WaterfallRepository 瀑布计算结果仓储接口。
type WaterfallRepository interface {
	// Save 保存瀑布结果，(基金, 计算日) 幂等覆盖
	Save(ctx context.Context, wf *WaterfallCalculation) error
	// LatestAsOf 返回基金截止日前最近的瀑布结果，不存在返回 (nil, nil)
	LatestAsOf(ctx context.Context, fundID string, asOf time.Time) (*WaterfallCalculation, error)
	// ListByFund 返回基金的瀑布历史，计算日倒序
	ListByFund(ctx context.Context, fundID string, limit int) ([]*WaterfallCalculation, error)
}

// FundValueProvider 附带权益引擎对净值服务的出站端口。
// 返回基金在截止日的总净值；缺失净值返回 PreconditionFailed 分类错误。
type FundValueProvider interface {
	FundValueAsOf(ctx context.Context, fundID string, asOf time.Time) (decimal.Decimal, error)
}
