// Package application 期末结算批次的编排服务。
// 批次按 费用 → (附带权益 ∥ 对账单) 推进：费用计提必须先行，
// 因为费用扣收会改变对账单口径的期间资金流；后两个阶段互不依赖，并行执行。
package application

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/wyfcoding/fundadmin/internal/periodclose/domain"
	"github.com/wyfcoding/fundadmin/pkg/finerrors"
	"github.com/wyfcoding/fundadmin/pkg/period"
	"github.com/wyfcoding/pkg/idgen"
	"github.com/wyfcoding/pkg/logging"
	"golang.org/x/sync/errgroup"
)

// TopicPeriodCloseCompleted 批次完成事件主题。
const TopicPeriodCloseCompleted = "fund.periodclose.completed"

// PeriodCloseCompletedEvent 批次完成事件载荷
type PeriodCloseCompletedEvent struct {
	RunID               string    `json:"run_id"`
	FundID              string    `json:"fund_id"`
	PeriodStart         time.Time `json:"period_start"`
	PeriodEnd           time.Time `json:"period_end"`
	FeesEmitted         int       `json:"fees_emitted"`
	StatementsGenerated int       `json:"statements_generated"`
	CarryAccrued        bool      `json:"carry_accrued"`
	CompletedAt         time.Time `json:"completed_at"`
}

// CloseService 期末结算应用服务。
type CloseService struct {
	runs       domain.RunRepository
	preflight  domain.Preflight
	fees       domain.FeeStage
	carry      domain.CarryStage
	statements domain.StatementStage
	publisher  domain.EventPublisher
}

// NewCloseService 创建期末结算应用服务。
func NewCloseService(
	runs domain.RunRepository,
	preflight domain.Preflight,
	fees domain.FeeStage,
	carry domain.CarryStage,
	statements domain.StatementStage,
	publisher domain.EventPublisher,
) *CloseService {
	return &CloseService{
		runs:       runs,
		preflight:  preflight,
		fees:       fees,
		carry:      carry,
		statements: statements,
		publisher:  publisher,
	}
}

// Run 执行一次期末结算批次。
// 前置校验失败返回 PreconditionFailed 且不留认领行；
// (基金, 期间) 已有运行中或已完成的批次返回 ConflictError；
// 失败批次重入时复用原批次行，子操作的唯一键使已覆盖的账户成为空操作。
func (s *CloseService) Run(ctx context.Context, fundID string, p period.Period) (*domain.PeriodCloseRun, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.preflight.Check(ctx, fundID, p); err != nil {
		return nil, err
	}

	run, err := s.claim(ctx, fundID, p)
	if err != nil {
		return nil, err
	}

	var (
		mu          sync.Mutex
		stageErrors []domain.StageError
	)
	collect := func(batch ...domain.StageError) {
		mu.Lock()
		stageErrors = append(stageErrors, batch...)
		mu.Unlock()
	}

	// 阶段一：费用计提。失败则中止，对账单口径依赖费用扣收。
	feeResult, err := s.fees.EvaluateFees(ctx, fundID, p)
	if err != nil {
		collect(domain.StageError{Stage: domain.StageFee, Reason: err.Error()})
		return s.finish(ctx, run, stageErrors)
	}
	run.FeesEmitted = feeResult.Emitted
	run.FeesSkipped = feeResult.Skipped
	collect(feeResult.Errors...)

	// 阶段二/三：附带权益与对账单互不依赖，并行执行
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(2)
	g.Go(func() error {
		carryResult, err := s.carry.AccrueCarry(gctx, fundID, p.End)
		if err != nil {
			collect(domain.StageError{Stage: domain.StageCarry, Reason: err.Error()})
			return nil
		}
		run.CarryAccrued = carryResult.Accrued
		return nil
	})
	g.Go(func() error {
		stmtResult, err := s.statements.GenerateStatements(gctx, fundID, p)
		if err != nil {
			collect(domain.StageError{Stage: domain.StageStatement, Reason: err.Error()})
			return nil
		}
		run.StatementsGenerated = stmtResult.Generated
		run.StatementsSkipped = stmtResult.AlreadyFinal
		collect(stmtResult.Errors...)
		return nil
	})
	_ = g.Wait()

	return s.finish(ctx, run, stageErrors)
}

func (s *CloseService) claim(ctx context.Context, fundID string, p period.Period) (*domain.PeriodCloseRun, error) {
	existing, err := s.runs.GetByKey(ctx, fundID, p)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		switch existing.Status {
		case domain.RunStatusCompleted:
			return nil, finerrors.Conflictf("period close for fund %s period %s already completed as run %s", fundID, p, existing.RunID)
		case domain.RunStatusRunning:
			return nil, finerrors.Conflictf("period close for fund %s period %s already in flight as run %s", fundID, p, existing.RunID)
		}
		// 失败批次重入
		existing.Status = domain.RunStatusRunning
		existing.Errors = ""
		existing.CompletedAt = nil
		if err := s.runs.Update(ctx, existing); err != nil {
			return nil, err
		}
		logging.Info(ctx, "period close run resumed", "run_id", existing.RunID, "fund_id", fundID)
		return existing, nil
	}

	run := &domain.PeriodCloseRun{
		RunID:       fmt.Sprintf("RUN-%d", idgen.GenID()),
		FundID:      fundID,
		PeriodStart: p.Start,
		PeriodEnd:   p.End,
		Status:      domain.RunStatusRunning,
		StartedAt:   time.Now(),
	}
	if err := s.runs.Claim(ctx, run); err != nil {
		return nil, err
	}
	logging.Info(ctx, "period close run claimed", "run_id", run.RunID, "fund_id", fundID, "period", p.String())
	return run, nil
}

func (s *CloseService) finish(ctx context.Context, run *domain.PeriodCloseRun, stageErrors []domain.StageError) (*domain.PeriodCloseRun, error) {
	now := time.Now()
	run.CompletedAt = &now
	if len(stageErrors) > 0 {
		run.Status = domain.RunStatusFailed
		raw, err := json.Marshal(stageErrors)
		if err != nil {
			return nil, fmt.Errorf("marshal stage errors: %w", err)
		}
		run.Errors = string(raw)
		if err := s.runs.Update(ctx, run); err != nil {
			return nil, err
		}
	} else {
		run.Status = domain.RunStatusCompleted
		event := &PeriodCloseCompletedEvent{
			RunID:               run.RunID,
			FundID:              run.FundID,
			PeriodStart:         run.PeriodStart,
			PeriodEnd:           run.PeriodEnd,
			FeesEmitted:         run.FeesEmitted,
			StatementsGenerated: run.StatementsGenerated,
			CarryAccrued:        run.CarryAccrued,
			CompletedAt:         now,
		}
		// 完成状态与完成事件在同一事务内提交，任一失败整体回滚
		err := s.runs.UpdateInTx(ctx, run, func(tx any) error {
			return s.publisher.PublishInTx(ctx, tx, TopicPeriodCloseCompleted, run.FundID, event)
		})
		if err != nil {
			logging.Error(ctx, "period close completion commit failed", "run_id", run.RunID, "error", err)
			// 批次行退回失败态，重入走复用路径而非永久冲突
			run.Status = domain.RunStatusFailed
			raw, merr := json.Marshal([]domain.StageError{{Reason: "completion commit: " + err.Error()}})
			if merr == nil {
				run.Errors = string(raw)
			}
			if derr := s.runs.Update(ctx, run); derr != nil {
				logging.Error(ctx, "period close demotion failed", "run_id", run.RunID, "error", derr)
			}
			return nil, fmt.Errorf("commit period close completion: %w", err)
		}
	}

	logging.Info(ctx, "period close run finished",
		"run_id", run.RunID, "fund_id", run.FundID, "status", run.Status.String(),
		"fees_emitted", run.FeesEmitted, "statements_generated", run.StatementsGenerated,
		"errors", len(stageErrors))
	return run, nil
}

// GetRun 查询批次。
func (s *CloseService) GetRun(ctx context.Context, runID string) (*domain.PeriodCloseRun, error) {
	run, err := s.runs.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, finerrors.NotFoundf("period close run %s not found", runID)
	}
	return run, nil
}

// ListRuns 查询基金批次历史。
func (s *CloseService) ListRuns(ctx context.Context, fundID string, limit int) ([]*domain.PeriodCloseRun, error) {
	return s.runs.ListByFund(ctx, fundID, limit)
}
