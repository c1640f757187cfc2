// Package adapter 将结算批次的阶段端口落到同进程的各上下文应用服务上。
package adapter

import (
	"context"
	"time"

	carryapp "github.com/wyfcoding/fundadmin/internal/carry/application"
	ledgerapp "github.com/wyfcoding/fundadmin/internal/capitalledger/application"
	ledgerdomain "github.com/wyfcoding/fundadmin/internal/capitalledger/domain"
	feeapp "github.com/wyfcoding/fundadmin/internal/fee/application"
	navapp "github.com/wyfcoding/fundadmin/internal/nav/application"
	"github.com/wyfcoding/fundadmin/internal/periodclose/domain"
	stmtapp "github.com/wyfcoding/fundadmin/internal/statement/application"
	"github.com/wyfcoding/fundadmin/pkg/finerrors"
	"github.com/wyfcoding/fundadmin/pkg/period"
)

type preflightAdapter struct {
	query *ledgerapp.LedgerQueryService
	nav   *navapp.NAVService
}

// NewPreflight 创建批次前置校验端口。
func NewPreflight(query *ledgerapp.LedgerQueryService, nav *navapp.NAVService) domain.Preflight {
	return &preflightAdapter{query: query, nav: nav}
}

// Check 实现 domain.Preflight.Check
// 基金存在、有有效账户、期末当日有净值标记，三者缺一即拒绝开批。
func (a *preflightAdapter) Check(ctx context.Context, fundID string, p period.Period) error {
	fund, err := a.query.GetFund(ctx, fundID)
	if finerrors.IsNotFound(err) {
		return finerrors.Preconditionf("fund %s does not exist", fundID)
	}
	if err != nil {
		return err
	}
	if fund.Status != ledgerdomain.FundStatusActive {
		return finerrors.Preconditionf("fund %s is not active", fundID)
	}

	snapshots, err := a.query.SnapshotFundAsOf(ctx, fundID, p.End)
	if err != nil {
		return err
	}
	if len(snapshots) == 0 {
		return finerrors.Preconditionf("fund %s has no active accounts", fundID)
	}

	mark, err := a.nav.NAVAsOf(ctx, fundID, p.End)
	if err != nil {
		return err
	}
	if !mark.CalcDate.Equal(p.End) {
		return finerrors.Preconditionf("no nav mark for fund %s on period end %s", fundID, p.End.Format("2006-01-02"))
	}
	return nil
}

// ListFundSchedules 实现 domain.Preflight.ListFundSchedules
func (a *preflightAdapter) ListFundSchedules(ctx context.Context) ([]domain.FundSchedule, error) {
	funds, err := a.query.ListFunds(ctx)
	if err != nil {
		return nil, err
	}
	schedules := make([]domain.FundSchedule, 0, len(funds))
	for _, fund := range funds {
		if fund.Status != ledgerdomain.FundStatusActive {
			continue
		}
		schedules = append(schedules, domain.FundSchedule{
			FundID:    fund.FundID,
			Frequency: fund.NAVFrequency,
		})
	}
	return schedules, nil
}

type feeStageAdapter struct {
	fees *feeapp.FeeService
}

// NewFeeStage 创建费用计提阶段端口。
func NewFeeStage(fees *feeapp.FeeService) domain.FeeStage {
	return &feeStageAdapter{fees: fees}
}

// EvaluateFees 实现 domain.FeeStage.EvaluateFees
func (a *feeStageAdapter) EvaluateFees(ctx context.Context, fundID string, p period.Period) (domain.FeeStageResult, error) {
	summary, err := a.fees.EvaluatePeriod(ctx, fundID, p)
	if err != nil {
		return domain.FeeStageResult{}, err
	}
	result := domain.FeeStageResult{
		Emitted:          summary.FeesEmitted,
		AlreadyProcessed: summary.AlreadyProcessed,
		Skipped:          len(summary.Skipped),
	}
	for _, skip := range summary.Skipped {
		result.Errors = append(result.Errors, domain.StageError{
			Stage:     domain.StageFee,
			AccountID: skip.AccountID,
			Reason:    skip.Reason,
		})
	}
	return result, nil
}

type carryStageAdapter struct {
	carry *carryapp.CarryService
}

// NewCarryStage 创建附带权益计提阶段端口。
func NewCarryStage(carry *carryapp.CarryService) domain.CarryStage {
	return &carryStageAdapter{carry: carry}
}

// AccrueCarry 实现 domain.CarryStage.AccrueCarry
// 基金没有附带权益账户时按空操作处理，不算阶段失败。
func (a *carryStageAdapter) AccrueCarry(ctx context.Context, fundID string, asOf time.Time) (domain.CarryStageResult, error) {
	if _, err := a.carry.Accrue(ctx, fundID, asOf); err != nil {
		if finerrors.IsNotFound(err) {
			return domain.CarryStageResult{NoCarryAccount: true}, nil
		}
		return domain.CarryStageResult{}, err
	}
	return domain.CarryStageResult{Accrued: true}, nil
}

type statementStageAdapter struct {
	statements *stmtapp.StatementService
}

// NewStatementStage 创建对账单生成阶段端口。
func NewStatementStage(statements *stmtapp.StatementService) domain.StatementStage {
	return &statementStageAdapter{statements: statements}
}

// GenerateStatements 实现 domain.StatementStage.GenerateStatements
func (a *statementStageAdapter) GenerateStatements(ctx context.Context, fundID string, p period.Period) (domain.StatementStageResult, error) {
	summary, err := a.statements.GeneratePeriod(ctx, fundID, p)
	if err != nil {
		return domain.StatementStageResult{}, err
	}
	result := domain.StatementStageResult{
		Generated:    summary.Generated,
		AlreadyFinal: summary.AlreadyFinal,
	}
	for _, failed := range summary.Failed {
		result.Errors = append(result.Errors, domain.StageError{
			Stage:     domain.StageStatement,
			AccountID: failed.AccountID,
			Reason:    failed.Reason,
		})
	}
	return result, nil
}
