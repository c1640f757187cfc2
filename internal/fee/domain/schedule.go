// Package domain 费用引擎的领域模型。
// FeeSchedule 携带计费方法与费率，Assess 封装单账户单期间的费用评估规则；
// FeeTransaction 对 (费率表, 账户, 期间) 唯一，是批次幂等性的落点。
package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/fundadmin/pkg/period"
	"gorm.io/gorm"
)

// FeeType 费用类型
type FeeType int8

const (
	FeeTypeManagement  FeeType = 1 // 管理费
	FeeTypePerformance FeeType = 2 // 业绩报酬
	FeeTypeAdmin       FeeType = 3 // 行政费
	FeeTypeCustodian   FeeType = 4 // 托管费
	FeeTypeOther       FeeType = 5 // 其他
)

func (t FeeType) String() string {
	switch t {
	case FeeTypeManagement:
		return "MANAGEMENT"
	case FeeTypePerformance:
		return "PERFORMANCE"
	case FeeTypeAdmin:
		return "ADMIN"
	case FeeTypeCustodian:
		return "CUSTODIAN"
	case FeeTypeOther:
		return "OTHER"
	default:
		return "UNKNOWN"
	}
}

// CalcMethod 计费方法
type CalcMethod int8

const (
	CalcMethodPctOfNAV       CalcMethod = 1 // 按净值
	CalcMethodPctOfCommitted CalcMethod = 2 // 按认缴
	CalcMethodPctOfInvested  CalcMethod = 3 // 按累计出资
	CalcMethodPctOfGains     CalcMethod = 4 // 按累计损益
)

func (m CalcMethod) String() string {
	switch m {
	case CalcMethodPctOfNAV:
		return "PCT_OF_NAV"
	case CalcMethodPctOfCommitted:
		return "PCT_OF_COMMITTED"
	case CalcMethodPctOfInvested:
		return "PCT_OF_INVESTED"
	case CalcMethodPctOfGains:
		return "PCT_OF_GAINS"
	default:
		return "UNKNOWN"
	}
}

// RequiresNAV 该方法是否依赖期末净值。
func (m CalcMethod) RequiresNAV() bool {
	return m == CalcMethodPctOfNAV || m == CalcMethodPctOfGains
}

// ScheduleStatus 费率表状态
type ScheduleStatus int8

const (
	ScheduleStatusActive   ScheduleStatus = 1 // 生效
	ScheduleStatusInactive ScheduleStatus = 2 // 停用
)

func (s ScheduleStatus) String() string {
	switch s {
	case ScheduleStatusActive:
		return "ACTIVE"
	case ScheduleStatusInactive:
		return "INACTIVE"
	default:
		return "UNKNOWN"
	}
}

// FeeSchedule 费率表。作用域为整只基金，或限定到单一份额类别。
type FeeSchedule struct {
	gorm.Model
	// 费率表 ID（业务主键）
	ScheduleID string `gorm:"column:schedule_id;type:varchar(32);uniqueIndex;not null" json:"schedule_id"`
	// 基金 ID
	FundID string `gorm:"column:fund_id;type:varchar(32);index;not null" json:"fund_id"`
	// 份额类别 ID，空串表示作用于全基金
	ClassID string `gorm:"column:class_id;type:varchar(32);index" json:"class_id"`
	// 费用类型
	Type FeeType `gorm:"column:type;type:tinyint;not null" json:"type"`
	// 计费方法
	Method CalcMethod `gorm:"column:method;type:tinyint;not null" json:"method"`
	// 年化费率，0.02 表示 2%
	AnnualRate decimal.Decimal `gorm:"column:annual_rate;type:decimal(10,6);not null" json:"annual_rate"`
	// 计费频率
	Frequency period.Frequency `gorm:"column:frequency;type:tinyint;not null" json:"frequency"`
	// 门槛收益率（仅业绩报酬），0 表示无门槛
	HurdleRate decimal.Decimal `gorm:"column:hurdle_rate;type:decimal(10,6);not null;default:0" json:"hurdle_rate"`
	// 是否启用高水位
	HighWaterMark bool `gorm:"column:high_water_mark;not null;default:0" json:"high_water_mark"`
	// 生效区间，EffectiveTo 零值表示开放
	EffectiveFrom time.Time `gorm:"column:effective_from;type:date;not null" json:"effective_from"`
	EffectiveTo   time.Time `gorm:"column:effective_to;type:date" json:"effective_to"`
	// 状态
	Status ScheduleStatus `gorm:"column:status;type:tinyint;not null;default:1" json:"status"`
}

func (FeeSchedule) TableName() string { return "fee_schedules" }

// ProratedRate 年化费率折算到单期：月度 ÷12、季度 ÷4、年度 ÷1。
func (s *FeeSchedule) ProratedRate() decimal.Decimal {
	return s.AnnualRate.Div(decimal.NewFromInt(s.Frequency.PeriodsPerYear()))
}

// AppliesTo 费率表是否作用于给定份额类别。
func (s *FeeSchedule) AppliesTo(classID string) bool {
	return s.ClassID == "" || s.ClassID == classID
}

// AccountBasis 单账户的费用基数输入，由台账快照与期末净值组装。
type AccountBasis struct {
	AccountID           string
	ClassID             string
	Commitment          decimal.Decimal
	Shares              decimal.Decimal
	ContributionsToDate decimal.Decimal
	GainSinceInception  decimal.Decimal
	// 期末每份净值；依赖净值的方法在净值缺失时不会走到 Assess
	NAVPerShare decimal.Decimal
}

// Assessment 一次费用评估的结果。
type Assessment struct {
	BaseAmount  decimal.Decimal // 计费基数
	RateApplied decimal.Decimal // 本期实际费率
	FeeAmount   decimal.Decimal // 费用金额
	// 业绩报酬成功计提后的新高水位；非业绩报酬为零值
	NewWatermark decimal.Decimal
}

// Assess 评估单账户单期间的费用。
// 基数不为正时返回 emit=false，调用方不得写入零金额记录。
// 业绩报酬：有效基数 = max(0, 期末每份净值 − 门槛下限) × 份额，
// 门槛下限 = 基线×(1+门槛收益率)；启用高水位时基线只升不降，
// 未启用时基线每期重置为期末净值。首次评估只建立基线，不计提。
// NewWatermark 为正时调用方必须持久化，即使本期未计提。
func (s *FeeSchedule) Assess(basis AccountBasis, watermark decimal.Decimal) (Assessment, bool) {
	rate := s.ProratedRate()

	var base decimal.Decimal
	newWatermark := decimal.Zero

	if s.Type == FeeTypePerformance {
		if watermark.IsZero() {
			// 首期建立基线
			return Assessment{NewWatermark: basis.NAVPerShare}, false
		}
		floor := watermark
		if s.HurdleRate.IsPositive() {
			floor = watermark.Mul(decimal.NewFromInt(1).Add(s.HurdleRate))
		}
		excess := basis.NAVPerShare.Sub(floor)
		if !excess.IsPositive() {
			if !s.HighWaterMark {
				// 非高水位方案：基线随期末净值重置
				return Assessment{NewWatermark: basis.NAVPerShare}, false
			}
			return Assessment{}, false
		}
		base = excess.Mul(basis.Shares)
		newWatermark = basis.NAVPerShare
	} else {
		switch s.Method {
		case CalcMethodPctOfNAV:
			base = basis.Shares.Mul(basis.NAVPerShare)
		case CalcMethodPctOfCommitted:
			base = basis.Commitment
		case CalcMethodPctOfInvested:
			base = basis.ContributionsToDate
		case CalcMethodPctOfGains:
			base = basis.GainSinceInception
		}
	}

	if !base.IsPositive() {
		return Assessment{}, false
	}

	amount := base.Mul(rate).Round(2)
	if !amount.IsPositive() {
		return Assessment{}, false
	}

	return Assessment{
		BaseAmount:   base,
		RateApplied:  rate,
		FeeAmount:    amount,
		NewWatermark: newWatermark,
	}, true
}

// ScheduleRepository 费率表仓储接口。
type ScheduleRepository interface {
	// Save 保存费率表
	Save(ctx context.Context, schedule *FeeSchedule) error
	// Get 根据费率表 ID 获取
	Get(ctx context.Context, scheduleID string) (*FeeSchedule, error)
	// ListActiveOverlapping 返回基金下生效且与期间有交集的费率表
	ListActiveOverlapping(ctx context.Context, fundID string, p period.Period) ([]*FeeSchedule, error)
}
