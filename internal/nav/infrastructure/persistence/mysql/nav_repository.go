// Package mysql 提供净值标记仓储的 MySQL GORM 实现。
package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wyfcoding/fundadmin/internal/nav/domain"
	"github.com/wyfcoding/pkg/logging"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type navRepositoryImpl struct {
	db *gorm.DB
}

// NewNAVRepository 创建净值标记仓储实例。
func NewNAVRepository(db *gorm.DB) domain.NAVRepository {
	return &navRepositoryImpl{db: db}
}

// Save 实现 domain.NAVRepository.Save
func (r *navRepositoryImpl) Save(ctx context.Context, mark *domain.NAVMark) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "fund_id"}, {Name: "calc_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"nav_per_share", "total_shares"}),
	}).Create(mark).Error
	if err != nil {
		logging.Error(ctx, "nav_repository.Save failed", "fund_id", mark.FundID, "error", err)
		return fmt.Errorf("failed to save nav mark: %w", err)
	}
	return nil
}

// LatestAsOf 实现 domain.NAVRepository.LatestAsOf
func (r *navRepositoryImpl) LatestAsOf(ctx context.Context, fundID string, cutoff time.Time) (*domain.NAVMark, error) {
	var mark domain.NAVMark
	err := r.db.WithContext(ctx).
		Where("fund_id = ? AND calc_date <= ?", fundID, cutoff).
		Order("calc_date desc").
		First(&mark).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logging.Error(ctx, "nav_repository.LatestAsOf failed", "fund_id", fundID, "error", err)
		return nil, fmt.Errorf("failed to get latest nav mark: %w", err)
	}
	return &mark, nil
}

// ListByFund 实现 domain.NAVRepository.ListByFund
func (r *navRepositoryImpl) ListByFund(ctx context.Context, fundID string, limit int) ([]*domain.NAVMark, error) {
	var marks []*domain.NAVMark
	err := r.db.WithContext(ctx).
		Where("fund_id = ?", fundID).
		Order("calc_date desc").
		Limit(limit).
		Find(&marks).Error
	if err != nil {
		logging.Error(ctx, "nav_repository.ListByFund failed", "fund_id", fundID, "error", err)
		return nil, fmt.Errorf("failed to list nav marks: %w", err)
	}
	return marks, nil
}
