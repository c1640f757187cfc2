// Package domain 期末结算批次的领域模型。
// PeriodCloseRun 按 (基金, 期间) 唯一，认领行是并发批次互斥的数据库落点。
package domain

import (
	"context"
	"time"

	"github.com/wyfcoding/fundadmin/pkg/period"
	"gorm.io/gorm"
)

// RunStatus 批次状态
type RunStatus int8

const (
	RunStatusRunning   RunStatus = 1 // 运行中
	RunStatusCompleted RunStatus = 2 // 已完成
	RunStatusFailed    RunStatus = 3 // 失败
)

func (s RunStatus) String() string {
	switch s {
	case RunStatusRunning:
		return "RUNNING"
	case RunStatusCompleted:
		return "COMPLETED"
	case RunStatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// CloseStage 结算阶段
type CloseStage int8

const (
	StageFee       CloseStage = 1 // 费用计提
	StageCarry     CloseStage = 2 // 附带权益计提
	StageStatement CloseStage = 3 // 对账单生成
)

func (s CloseStage) String() string {
	switch s {
	case StageFee:
		return "FEE"
	case StageCarry:
		return "CARRY"
	case StageStatement:
		return "STATEMENT"
	default:
		return "UNKNOWN"
	}
}

// StageError 单阶段单账户的失败记录
type StageError struct {
	Stage     CloseStage `json:"stage"`
	AccountID string     `json:"account_id,omitempty"`
	Reason    string     `json:"reason"`
}

// PeriodCloseRun 一次期末结算批次。
type PeriodCloseRun struct {
	gorm.Model
	// 批次 ID（业务主键）
	RunID string `gorm:"column:run_id;type:varchar(32);uniqueIndex;not null" json:"run_id"`
	// 基金 ID
	FundID string `gorm:"column:fund_id;type:varchar(32);uniqueIndex:idx_close_runs_key;not null" json:"fund_id"`
	// 期间边界
	PeriodStart time.Time `gorm:"column:period_start;type:date;uniqueIndex:idx_close_runs_key;not null" json:"period_start"`
	PeriodEnd   time.Time `gorm:"column:period_end;type:date;uniqueIndex:idx_close_runs_key;not null" json:"period_end"`
	// 状态
	Status RunStatus `gorm:"column:status;type:tinyint;not null;default:1" json:"status"`
	// 各阶段计数
	FeesEmitted         int `gorm:"column:fees_emitted;not null;default:0" json:"fees_emitted"`
	FeesSkipped         int `gorm:"column:fees_skipped;not null;default:0" json:"fees_skipped"`
	StatementsGenerated int `gorm:"column:statements_generated;not null;default:0" json:"statements_generated"`
	StatementsSkipped   int `gorm:"column:statements_skipped;not null;default:0" json:"statements_skipped"`
	// 附带权益是否完成计提
	CarryAccrued bool `gorm:"column:carry_accrued;not null;default:0" json:"carry_accrued"`
	// 各阶段失败明细，JSON 编码的 []StageError
	Errors string `gorm:"column:errors;type:text" json:"errors"`
	// 起止时间
	StartedAt   time.Time  `gorm:"column:started_at;not null" json:"started_at"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at"`
}

func (PeriodCloseRun) TableName() string { return "period_close_runs" }

// RunRepository 结算批次仓储接口。
type RunRepository interface {
	// Claim 以 DO NOTHING 插入认领 (基金, 期间)；已被认领返回 ConflictError
	Claim(ctx context.Context, run *PeriodCloseRun) error
	// Get 根据业务主键获取，不存在返回 (nil, nil)
	Get(ctx context.Context, runID string) (*PeriodCloseRun, error)
	// GetByKey 根据 (基金, 期间) 获取，不存在返回 (nil, nil)
	GetByKey(ctx context.Context, fundID string, p period.Period) (*PeriodCloseRun, error)
	// ListByFund 返回基金的批次历史
	ListByFund(ctx context.Context, fundID string, limit int) ([]*PeriodCloseRun, error)
	// Update 更新批次进度与状态
	Update(ctx context.Context, run *PeriodCloseRun) error
	// UpdateInTx 在单个数据库事务内更新批次并执行回调，回调失败整体回滚
	UpdateInTx(ctx context.Context, run *PeriodCloseRun, fn func(tx any) error) error
}
