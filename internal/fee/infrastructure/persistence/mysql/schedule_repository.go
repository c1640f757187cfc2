// Package mysql 提供费用引擎仓储的 MySQL GORM 实现。
package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/fundadmin/internal/fee/domain"
	"github.com/wyfcoding/fundadmin/pkg/period"
	"github.com/wyfcoding/pkg/logging"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type scheduleRepositoryImpl struct {
	db *gorm.DB
}

// NewScheduleRepository 创建费率表仓储实例。
func NewScheduleRepository(db *gorm.DB) domain.ScheduleRepository {
	return &scheduleRepositoryImpl{db: db}
}

// Save 实现 domain.ScheduleRepository.Save
func (r *scheduleRepositoryImpl) Save(ctx context.Context, schedule *domain.FeeSchedule) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "schedule_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"annual_rate", "hurdle_rate", "high_water_mark", "effective_to", "status"}),
	}).Create(schedule).Error
	if err != nil {
		logging.Error(ctx, "schedule_repository.Save failed", "schedule_id", schedule.ScheduleID, "error", err)
		return fmt.Errorf("failed to save fee schedule: %w", err)
	}
	return nil
}

// Get 实现 domain.ScheduleRepository.Get
func (r *scheduleRepositoryImpl) Get(ctx context.Context, scheduleID string) (*domain.FeeSchedule, error) {
	var schedule domain.FeeSchedule
	err := r.db.WithContext(ctx).Where("schedule_id = ?", scheduleID).First(&schedule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logging.Error(ctx, "schedule_repository.Get failed", "schedule_id", scheduleID, "error", err)
		return nil, fmt.Errorf("failed to get fee schedule: %w", err)
	}
	return &schedule, nil
}

// ListActiveOverlapping 实现 domain.ScheduleRepository.ListActiveOverlapping
// effective_to 零值日期按开放区间处理。
func (r *scheduleRepositoryImpl) ListActiveOverlapping(ctx context.Context, fundID string, p period.Period) ([]*domain.FeeSchedule, error) {
	var schedules []*domain.FeeSchedule
	err := r.db.WithContext(ctx).
		Where("fund_id = ? AND status = ?", fundID, domain.ScheduleStatusActive).
		Where("effective_from <= ?", p.End).
		Where("effective_to IS NULL OR effective_to = ? OR effective_to >= ?", "0001-01-01", p.Start).
		Order("schedule_id").
		Find(&schedules).Error
	if err != nil {
		logging.Error(ctx, "schedule_repository.ListActiveOverlapping failed", "fund_id", fundID, "error", err)
		return nil, fmt.Errorf("failed to list fee schedules: %w", err)
	}
	return schedules, nil
}
