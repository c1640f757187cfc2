package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/fundadmin/pkg/finerrors"
	"github.com/wyfcoding/fundadmin/pkg/period"
	"gorm.io/gorm"
)

// FeeStatus 费用记录状态
type FeeStatus int8

const (
	FeeStatusCalculated FeeStatus = 1 // 已计提
	FeeStatusInvoiced   FeeStatus = 2 // 已开票
	FeeStatusPaid       FeeStatus = 3 // 已支付（终态）
	FeeStatusWaived     FeeStatus = 4 // 已豁免（终态）
)

func (s FeeStatus) String() string {
	switch s {
	case FeeStatusCalculated:
		return "CALCULATED"
	case FeeStatusInvoiced:
		return "INVOICED"
	case FeeStatusPaid:
		return "PAID"
	case FeeStatusWaived:
		return "WAIVED"
	default:
		return "UNKNOWN"
	}
}

// FeeTransaction 一次 (费率表, 账户, 期间) 评估的不可变结果。
// 组合唯一索引是批次幂等性的数据库兜底。
type FeeTransaction struct {
	gorm.Model
	// 费用记录 ID（业务主键）
	FeeTxnID string `gorm:"column:fee_txn_id;type:varchar(32);uniqueIndex;not null" json:"fee_txn_id"`
	// 费率表 ID
	ScheduleID string `gorm:"column:schedule_id;type:varchar(32);uniqueIndex:idx_fee_txns_key;not null" json:"schedule_id"`
	// 账户 ID
	AccountID string `gorm:"column:account_id;type:varchar(32);uniqueIndex:idx_fee_txns_key;index;not null" json:"account_id"`
	// 基金 ID（冗余）
	FundID string `gorm:"column:fund_id;type:varchar(32);index;not null" json:"fund_id"`
	// 期间边界
	PeriodStart time.Time `gorm:"column:period_start;type:date;uniqueIndex:idx_fee_txns_key;not null" json:"period_start"`
	PeriodEnd   time.Time `gorm:"column:period_end;type:date;uniqueIndex:idx_fee_txns_key;not null" json:"period_end"`
	// 计费基数
	BaseAmount decimal.Decimal `gorm:"column:base_amount;type:decimal(32,18);not null" json:"base_amount"`
	// 本期实际费率
	RateApplied decimal.Decimal `gorm:"column:rate_applied;type:decimal(10,6);not null" json:"rate_applied"`
	// 费用金额
	FeeAmount decimal.Decimal `gorm:"column:fee_amount;type:decimal(32,18);not null" json:"fee_amount"`
	// 已支付金额
	PaidAmount decimal.Decimal `gorm:"column:paid_amount;type:decimal(32,18);not null;default:0" json:"paid_amount"`
	// 状态
	Status FeeStatus `gorm:"column:status;type:tinyint;not null;default:1" json:"status"`
}

func (FeeTransaction) TableName() string { return "fee_transactions" }

// Invoice 状态流转：已计提 → 已开票。
func (t *FeeTransaction) Invoice() error {
	if t.Status != FeeStatusCalculated {
		return finerrors.Validationf("fee %s cannot be invoiced from status %s", t.FeeTxnID, t.Status)
	}
	t.Status = FeeStatusInvoiced
	return nil
}

// MarkPaid 状态流转：已开票 → 已支付。支付金额不得超过费用金额。
func (t *FeeTransaction) MarkPaid(amount decimal.Decimal) error {
	if t.Status != FeeStatusInvoiced {
		return finerrors.Validationf("fee %s cannot be paid from status %s", t.FeeTxnID, t.Status)
	}
	if amount.IsNegative() || amount.GreaterThan(t.FeeAmount) {
		return finerrors.Validationf("fee %s paid amount %s exceeds fee amount %s", t.FeeTxnID, amount, t.FeeAmount)
	}
	t.PaidAmount = amount
	t.Status = FeeStatusPaid
	return nil
}

// Waive 状态流转：已计提/已开票 → 已豁免。
func (t *FeeTransaction) Waive() error {
	if t.Status == FeeStatusPaid || t.Status == FeeStatusWaived {
		return finerrors.Validationf("fee %s cannot be waived from terminal status %s", t.FeeTxnID, t.Status)
	}
	t.Status = FeeStatusWaived
	return nil
}

// FeeWatermark 业绩报酬的 (费率表, 账户) 每份净值基线。
type FeeWatermark struct {
	gorm.Model
	ScheduleID string `gorm:"column:schedule_id;type:varchar(32);uniqueIndex:idx_fee_watermarks_key;not null" json:"schedule_id"`
	AccountID  string `gorm:"column:account_id;type:varchar(32);uniqueIndex:idx_fee_watermarks_key;not null" json:"account_id"`
	// 基线每份净值
	Value decimal.Decimal `gorm:"column:value;type:decimal(32,18);not null" json:"value"`
}

func (FeeWatermark) TableName() string { return "fee_watermarks" }

// Advance 推进基线。ratchet 为真时只升不降。
func (w *FeeWatermark) Advance(v decimal.Decimal, ratchet bool) {
	if ratchet && v.LessThan(w.Value) {
		return
	}
	w.Value = v
}

// FeeTransactionRepository 费用记录仓储接口。
type FeeTransactionRepository interface {
	// Create 插入一条费用记录；(费率表, 账户, 期间) 冲突返回 ConflictError
	Create(ctx context.Context, txn *FeeTransaction) error
	// Get 根据业务主键获取
	Get(ctx context.Context, feeTxnID string) (*FeeTransaction, error)
	// GetByKey 根据 (费率表, 账户, 期间) 获取，不存在返回 (nil, nil)
	GetByKey(ctx context.Context, scheduleID, accountID string, p period.Period) (*FeeTransaction, error)
	// ListByFundPeriod 返回基金在期间内的全部费用记录
	ListByFundPeriod(ctx context.Context, fundID string, p period.Period) ([]*FeeTransaction, error)
	// Update 更新状态字段
	Update(ctx context.Context, txn *FeeTransaction) error
}

// WatermarkRepository 业绩报酬基线仓储接口。
type WatermarkRepository interface {
	// Get 返回 (费率表, 账户) 的基线，不存在返回 (nil, nil)
	Get(ctx context.Context, scheduleID, accountID string) (*FeeWatermark, error)
	// Save 保存基线，组合键幂等覆盖
	Save(ctx context.Context, wm *FeeWatermark) error
}
