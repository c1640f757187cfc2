// Package domain 资本台账的领域模型。
// 基金、份额类别、资本账户与资本交易构成台账的全部事实，
// 账户的点时状态一律由交易回放推导，严禁直接改写。
package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/fundadmin/pkg/period"
	"gorm.io/gorm"
)

// FundStatus 基金状态
type FundStatus int8

const (
	FundStatusActive FundStatus = 1 // 运作中
	FundStatusClosed FundStatus = 2 // 已清盘
)

func (s FundStatus) String() string {
	switch s {
	case FundStatusActive:
		return "ACTIVE"
	case FundStatusClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Fund 基金主数据。创建后除管理字段外不可变。
type Fund struct {
	gorm.Model
	// 基金 ID（业务主键）
	FundID string `gorm:"column:fund_id;type:varchar(32);uniqueIndex;not null" json:"fund_id"`
	// 基金名称
	Name string `gorm:"column:name;type:varchar(128);not null" json:"name"`
	// 基础货币（如 USD）
	BaseCurrency string `gorm:"column:base_currency;type:varchar(10);not null" json:"base_currency"`
	// 净值频率，决定期末结算的期间划分
	NAVFrequency period.Frequency `gorm:"column:nav_frequency;type:tinyint;not null" json:"nav_frequency"`
	// 基金状态
	Status FundStatus `gorm:"column:status;type:tinyint;not null;default:1" json:"status"`
	// 成立日
	InceptionDate time.Time `gorm:"column:inception_date;type:date;not null" json:"inception_date"`
}

func (Fund) TableName() string { return "funds" }

// ShareClass 份额类别，属于单一基金，携带默认费率与净值精度。
type ShareClass struct {
	gorm.Model
	// 类别 ID（业务主键）
	ClassID string `gorm:"column:class_id;type:varchar(32);uniqueIndex;not null" json:"class_id"`
	// 所属基金 ID
	FundID string `gorm:"column:fund_id;type:varchar(32);index;not null" json:"fund_id"`
	// 类别名称（如 Class A）
	Name string `gorm:"column:name;type:varchar(64);not null" json:"name"`
	// 默认管理费年化费率
	DefaultMgmtFeeRate decimal.Decimal `gorm:"column:default_mgmt_fee_rate;type:decimal(10,6);not null;default:0" json:"default_mgmt_fee_rate"`
	// 默认业绩报酬费率
	DefaultPerfFeeRate decimal.Decimal `gorm:"column:default_perf_fee_rate;type:decimal(10,6);not null;default:0" json:"default_perf_fee_rate"`
	// 份额净值保留小数位
	PriceScale int32 `gorm:"column:price_scale;type:int;not null;default:2" json:"price_scale"`
}

func (ShareClass) TableName() string { return "share_classes" }

// FundRepository 基金主数据仓储接口。
type FundRepository interface {
	// SaveFund 保存基金
	SaveFund(ctx context.Context, fund *Fund) error
	// GetFund 根据基金 ID 获取基金
	GetFund(ctx context.Context, fundID string) (*Fund, error)
	// ListFunds 列出全部基金
	ListFunds(ctx context.Context) ([]*Fund, error)
	// SaveShareClass 保存份额类别
	SaveShareClass(ctx context.Context, class *ShareClass) error
	// GetShareClass 根据类别 ID 获取份额类别
	GetShareClass(ctx context.Context, classID string) (*ShareClass, error)
	// ListShareClasses 列出基金下的份额类别
	ListShareClasses(ctx context.Context, fundID string) ([]*ShareClass, error)
}
