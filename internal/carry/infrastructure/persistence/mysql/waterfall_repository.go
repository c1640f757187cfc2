package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wyfcoding/fundadmin/internal/carry/domain"
	"github.com/wyfcoding/pkg/logging"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type waterfallRepositoryImpl struct {
	db *gorm.DB
}

// NewWaterfallRepository 创建瀑布结果仓储实例。
func NewWaterfallRepository(db *gorm.DB) domain.WaterfallRepository {
	return &waterfallRepositoryImpl{db: db}
}

// Save 实现 domain.WaterfallRepository.Save
func (r *waterfallRepositoryImpl) Save(ctx context.Context, wf *domain.WaterfallCalculation) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "fund_id"}, {Name: "calc_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"gp_allocation", "lp_allocation", "total_distributed"}),
	}).Create(wf).Error
	if err != nil {
		logging.Error(ctx, "waterfall_repository.Save failed", "fund_id", wf.FundID, "error", err)
		return fmt.Errorf("failed to save waterfall calculation: %w", err)
	}
	return nil
}

// LatestAsOf 实现 domain.WaterfallRepository.LatestAsOf
func (r *waterfallRepositoryImpl) LatestAsOf(ctx context.Context, fundID string, asOf time.Time) (*domain.WaterfallCalculation, error) {
	var wf domain.WaterfallCalculation
	err := r.db.WithContext(ctx).
		Where("fund_id = ? AND calc_date <= ?", fundID, asOf).
		Order("calc_date desc").
		First(&wf).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logging.Error(ctx, "waterfall_repository.LatestAsOf failed", "fund_id", fundID, "error", err)
		return nil, fmt.Errorf("failed to get latest waterfall: %w", err)
	}
	return &wf, nil
}

// ListByFund 实现 domain.WaterfallRepository.ListByFund
func (r *waterfallRepositoryImpl) ListByFund(ctx context.Context, fundID string, limit int) ([]*domain.WaterfallCalculation, error) {
	var wfs []*domain.WaterfallCalculation
	err := r.db.WithContext(ctx).
		Where("fund_id = ?", fundID).
		Order("calc_date desc").
		Limit(limit).
		Find(&wfs).Error
	if err != nil {
		logging.Error(ctx, "waterfall_repository.ListByFund failed", "fund_id", fundID, "error", err)
		return nil, fmt.Errorf("failed to list waterfalls: %w", err)
	}
	return wfs, nil
}
