// Package mysql 提供结算批次仓储的 MySQL GORM 实现。
package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/fundadmin/internal/periodclose/domain"
	"github.com/wyfcoding/fundadmin/pkg/finerrors"
	"github.com/wyfcoding/fundadmin/pkg/period"
	"github.com/wyfcoding/pkg/logging"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type runRepositoryImpl struct {
	db *gorm.DB
}

// NewRunRepository 创建结算批次仓储实例。
func NewRunRepository(db *gorm.DB) domain.RunRepository {
	return &runRepositoryImpl{db: db}
}

// Claim 实现 domain.RunRepository.Claim
// DO NOTHING 插入认领 (基金, 期间)，零行写入说明键已被占用。
func (r *runRepositoryImpl) Claim(ctx context.Context, run *domain.PeriodCloseRun) error {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "fund_id"}, {Name: "period_start"}, {Name: "period_end"}},
		DoNothing: true,
	}).Create(run)
	if result.Error != nil {
		logging.Error(ctx, "run_repository.Claim failed", "run_id", run.RunID, "error", result.Error)
		return fmt.Errorf("failed to claim period close run: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return finerrors.Conflictf("period close for fund %s period %s~%s already claimed",
			run.FundID, run.PeriodStart.Format("2006-01-02"), run.PeriodEnd.Format("2006-01-02"))
	}
	return nil
}

// Get 实现 domain.RunRepository.Get
func (r *runRepositoryImpl) Get(ctx context.Context, runID string) (*domain.PeriodCloseRun, error) {
	var run domain.PeriodCloseRun
	err := r.db.WithContext(ctx).Where("run_id = ?", runID).First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logging.Error(ctx, "run_repository.Get failed", "run_id", runID, "error", err)
		return nil, fmt.Errorf("failed to get period close run: %w", err)
	}
	return &run, nil
}

// GetByKey 实现 domain.RunRepository.GetByKey
func (r *runRepositoryImpl) GetByKey(ctx context.Context, fundID string, p period.Period) (*domain.PeriodCloseRun, error) {
	var run domain.PeriodCloseRun
	err := r.db.WithContext(ctx).
		Where("fund_id = ? AND period_start = ? AND period_end = ?", fundID, p.Start, p.End).
		First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logging.Error(ctx, "run_repository.GetByKey failed", "fund_id", fundID, "error", err)
		return nil, fmt.Errorf("failed to get period close run by key: %w", err)
	}
	return &run, nil
}

// ListByFund 实现 domain.RunRepository.ListByFund
func (r *runRepositoryImpl) ListByFund(ctx context.Context, fundID string, limit int) ([]*domain.PeriodCloseRun, error) {
	var runs []*domain.PeriodCloseRun
	err := r.db.WithContext(ctx).
		Where("fund_id = ?", fundID).
		Order("period_start desc").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		logging.Error(ctx, "run_repository.ListByFund failed", "fund_id", fundID, "error", err)
		return nil, fmt.Errorf("failed to list period close runs: %w", err)
	}
	return runs, nil
}

func runColumns(run *domain.PeriodCloseRun) map[string]any {
	return map[string]any{
		"status":               run.Status,
		"fees_emitted":         run.FeesEmitted,
		"fees_skipped":         run.FeesSkipped,
		"statements_generated": run.StatementsGenerated,
		"statements_skipped":   run.StatementsSkipped,
		"carry_accrued":        run.CarryAccrued,
		"errors":               run.Errors,
		"completed_at":         run.CompletedAt,
	}
}

// Update 实现 domain.RunRepository.Update
func (r *runRepositoryImpl) Update(ctx context.Context, run *domain.PeriodCloseRun) error {
	err := r.db.WithContext(ctx).Model(&domain.PeriodCloseRun{}).
		Where("run_id = ?", run.RunID).
		Updates(runColumns(run)).Error
	if err != nil {
		logging.Error(ctx, "run_repository.Update failed", "run_id", run.RunID, "error", err)
		return fmt.Errorf("failed to update period close run: %w", err)
	}
	return nil
}

// UpdateInTx 实现 domain.RunRepository.UpdateInTx
// 状态更新与回调（如 outbox 事件登记）在同一事务内提交。
func (r *runRepositoryImpl) UpdateInTx(ctx context.Context, run *domain.PeriodCloseRun, fn func(tx any) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.PeriodCloseRun{}).
			Where("run_id = ?", run.RunID).
			Updates(runColumns(run)).Error; err != nil {
			return err
		}
		return fn(tx)
	})
	if err != nil {
		logging.Error(ctx, "run_repository.UpdateInTx failed", "run_id", run.RunID, "error", err)
		return fmt.Errorf("failed to update period close run in tx: %w", err)
	}
	return nil
}
