// Package domain 净值标记的领域模型。
// NAVMark 是外部净值计算子系统产出的权威时点估值，本引擎只读取，
// 全部"截止日最近净值"查询都经由 Provider 单一入口，保证舍入与缺失处理一致。
package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// NAVMark 净值标记：(基金, 计算日) 的每份净值与总份额。
type NAVMark struct {
	gorm.Model
	// 基金 ID
	FundID string `gorm:"column:fund_id;type:varchar(32);uniqueIndex:idx_nav_marks_fund_date;not null" json:"fund_id"`
	// 计算日
	CalcDate time.Time `gorm:"column:calc_date;type:date;uniqueIndex:idx_nav_marks_fund_date;not null" json:"calc_date"`
	// 每份净值
	NAVPerShare decimal.Decimal `gorm:"column:nav_per_share;type:decimal(32,18);not null" json:"nav_per_share"`
	// 在外总份额
	TotalShares decimal.Decimal `gorm:"column:total_shares;type:decimal(32,18);not null" json:"total_shares"`
}

func (NAVMark) TableName() string { return "nav_marks" }

// TotalValue 基金时点总值 = 每份净值 × 总份额。
func (m *NAVMark) TotalValue() decimal.Decimal {
	return m.NAVPerShare.Mul(m.TotalShares)
}

// NAVRepository 净值标记仓储接口。
type NAVRepository interface {
	// Save 保存净值标记，(基金, 计算日) 幂等覆盖
	Save(ctx context.Context, mark *NAVMark) error
	// LatestAsOf 返回计算日不晚于 cutoff 的最近标记，不存在时返回 (nil, nil)
	LatestAsOf(ctx context.Context, fundID string, cutoff time.Time) (*NAVMark, error)
	// ListByFund 按计算日倒序返回基金的净值历史
	ListByFund(ctx context.Context, fundID string, limit int) ([]*NAVMark, error)
}

// NAVReadCache 净值读缓存接口，cache-aside。
type NAVReadCache interface {
	Get(ctx context.Context, fundID string, cutoff time.Time) (*NAVMark, error)
	Set(ctx context.Context, fundID string, cutoff time.Time, mark *NAVMark) error
	Invalidate(ctx context.Context, fundID string) error
}

// Provider 是全引擎唯一的"截止日最近净值"查询口径。
// 缺失净值返回 PreconditionFailed 分类错误，调用方不得退化为陈旧值或零值。
type Provider interface {
	NAVAsOf(ctx context.Context, fundID string, cutoff time.Time) (*NAVMark, error)
}
