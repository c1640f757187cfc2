package domain

import (
	"context"
	"time"

	"github.com/wyfcoding/fundadmin/pkg/period"
)

// FundSchedule 调度器可见的基金结算节奏。
type FundSchedule struct {
	FundID    string
	Frequency period.Frequency
}

// Preflight 批次前置校验的出站端口。
// 基金不存在、无有效账户或期末净值缺失时返回 PreconditionFailed 分类错误。
type Preflight interface {
	Check(ctx context.Context, fundID string, p period.Period) error
	// ListFundSchedules 返回全部在运作基金及其净值频率，调度器用
	ListFundSchedules(ctx context.Context) ([]FundSchedule, error)
}

// FeeStageResult 费用阶段结果
type FeeStageResult struct {
	Emitted          int
	AlreadyProcessed int
	Skipped          int
	Errors           []StageError
}

// FeeStage 费用计提阶段的出站端口。
type FeeStage interface {
	EvaluateFees(ctx context.Context, fundID string, p period.Period) (FeeStageResult, error)
}

// CarryStageResult 附带权益阶段结果
type CarryStageResult struct {
	Accrued bool
	// 基金没有附带权益账户时为真，阶段按空操作处理
	NoCarryAccount bool
}

// CarryStage 附带权益计提阶段的出站端口。
type CarryStage interface {
	AccrueCarry(ctx context.Context, fundID string, asOf time.Time) (CarryStageResult, error)
}

// StatementStageResult 对账单阶段结果
type StatementStageResult struct {
	Generated    int
	AlreadyFinal int
	Errors       []StageError
}

// StatementStage 对账单生成阶段的出站端口。
type StatementStage interface {
	GenerateStatements(ctx context.Context, fundID string, p period.Period) (StatementStageResult, error)
}

// EventPublisher 批次完成事件的出站端口。
type EventPublisher interface {
	// PublishInTx 在给定数据库事务内登记事件，与业务写入一同提交；
	// tx 为 nil 时使用默认连接
	PublishInTx(ctx context.Context, tx any, topic, key string, event any) error
}
