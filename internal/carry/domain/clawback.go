package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/fundadmin/pkg/finerrors"
	"gorm.io/gorm"
)

// ClawbackStatus 回拨计提状态
type ClawbackStatus int8

const (
	ClawbackStatusCalculated ClawbackStatus = 1 // 已计算
	ClawbackStatusNotified   ClawbackStatus = 2 // 已通知
	ClawbackStatusPaid       ClawbackStatus = 3 // 已支付（终态）
	ClawbackStatusWaived     ClawbackStatus = 4 // 已豁免（终态）
)

func (s ClawbackStatus) String() string {
	switch s {
	case ClawbackStatusCalculated:
		return "CALCULATED"
	case ClawbackStatusNotified:
		return "NOTIFIED"
	case ClawbackStatusPaid:
		return "PAID"
	case ClawbackStatusWaived:
		return "WAIVED"
	default:
		return "UNKNOWN"
	}
}

// ClawbackProvision 回拨计提，固化检测时点的分配与已赚取快照。
type ClawbackProvision struct {
	gorm.Model
	// 回拨计提 ID（业务主键）
	ProvisionID string `gorm:"column:provision_id;type:varchar(32);uniqueIndex;not null" json:"provision_id"`
	// 附带权益账户 ID
	CarryAccountID string `gorm:"column:carry_account_id;type:varchar(32);index;not null" json:"carry_account_id"`
	// 检测时点
	AsOf time.Time `gorm:"column:as_of;type:date;not null" json:"as_of"`
	// 检测时点的累计分配快照
	DistributedSnapshot decimal.Decimal `gorm:"column:distributed_snapshot;type:decimal(32,18);not null" json:"distributed_snapshot"`
	// 检测时点的已赚取快照
	EarnedSnapshot decimal.Decimal `gorm:"column:earned_snapshot;type:decimal(32,18);not null" json:"earned_snapshot"`
	// 回拨金额 = max(0, 分配 − 已赚取)，创建时必为正
	ClawbackAmount decimal.Decimal `gorm:"column:clawback_amount;type:decimal(32,18);not null" json:"clawback_amount"`
	// 已支付金额
	PaidAmount decimal.Decimal `gorm:"column:paid_amount;type:decimal(32,18);not null;default:0" json:"paid_amount"`
	// 状态
	Status ClawbackStatus `gorm:"column:status;type:tinyint;not null;default:1" json:"status"`
}

func (ClawbackProvision) TableName() string { return "clawback_provisions" }

// Notify 状态流转：已计算 → 已通知。
func (p *ClawbackProvision) Notify() error {
	if p.Status != ClawbackStatusCalculated {
		return finerrors.Validationf("clawback %s cannot be notified from status %s", p.ProvisionID, p.Status)
	}
	p.Status = ClawbackStatusNotified
	return nil
}

// Pay 状态流转：已通知 → 已支付。支付金额不得超过回拨金额。
func (p *ClawbackProvision) Pay(amount decimal.Decimal) error {
	if p.Status != ClawbackStatusNotified {
		return finerrors.Validationf("clawback %s cannot be paid from status %s", p.ProvisionID, p.Status)
	}
	if amount.IsNegative() || amount.GreaterThan(p.ClawbackAmount) {
		return finerrors.Validationf("clawback %s paid amount %s exceeds clawback amount %s", p.ProvisionID, amount, p.ClawbackAmount)
	}
	p.PaidAmount = amount
	p.Status = ClawbackStatusPaid
	return nil
}

// Waive 状态流转：已计算/已通知 → 已豁免。
func (p *ClawbackProvision) Waive() error {
	if p.Status == ClawbackStatusPaid || p.Status == ClawbackStatusWaived {
		return finerrors.Validationf("clawback %s cannot be waived from terminal status %s", p.ProvisionID, p.Status)
	}
	p.Status = ClawbackStatusWaived
	return nil
}

// ClawbackRepository 回拨计提仓储接口。
type ClawbackRepository interface {
	// Create 创建回拨计提
	Create(ctx context.Context, provision *ClawbackProvision) error
	// Get 根据业务主键获取，不存在返回 (nil, nil)
	Get(ctx context.Context, provisionID string) (*ClawbackProvision, error)
	// ListByAccount 返回账户的回拨计提历史
	ListByAccount(ctx context.Context, carryAccountID string) ([]*ClawbackProvision, error)
	// Update 更新状态字段
	Update(ctx context.Context, provision *ClawbackProvision) error
	// UpdateWithAccount 在同一事务内更新计提与账户，支付落账与准备金累积原子提交
	UpdateWithAccount(ctx context.Context, provision *ClawbackProvision, account *CarriedInterestAccount) error
}
