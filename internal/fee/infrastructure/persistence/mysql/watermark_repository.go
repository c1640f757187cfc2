package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/fundadmin/internal/fee/domain"
	"github.com/wyfcoding/pkg/logging"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type watermarkRepositoryImpl struct {
	db *gorm.DB
}

// NewWatermarkRepository 创建业绩报酬基线仓储实例。
func NewWatermarkRepository(db *gorm.DB) domain.WatermarkRepository {
	return &watermarkRepositoryImpl{db: db}
}

// Get 实现 domain.WatermarkRepository.Get
func (r *watermarkRepositoryImpl) Get(ctx context.Context, scheduleID, accountID string) (*domain.FeeWatermark, error) {
	var wm domain.FeeWatermark
	err := r.db.WithContext(ctx).
		Where("schedule_id = ? AND account_id = ?", scheduleID, accountID).
		First(&wm).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logging.Error(ctx, "watermark_repository.Get failed",
			"schedule_id", scheduleID, "account_id", accountID, "error", err)
		return nil, fmt.Errorf("failed to get fee watermark: %w", err)
	}
	return &wm, nil
}

// Save 实现 domain.WatermarkRepository.Save
func (r *watermarkRepositoryImpl) Save(ctx context.Context, wm *domain.FeeWatermark) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "schedule_id"}, {Name: "account_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(wm).Error
	if err != nil {
		logging.Error(ctx, "watermark_repository.Save failed",
			"schedule_id", wm.ScheduleID, "account_id", wm.AccountID, "error", err)
		return fmt.Errorf("failed to save fee watermark: %w", err)
	}
	return nil
}
