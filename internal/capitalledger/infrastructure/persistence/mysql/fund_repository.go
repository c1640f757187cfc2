// Package mysql 提供资本台账仓储接口的 MySQL GORM 实现。
package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/fundadmin/internal/capitalledger/domain"
	"github.com/wyfcoding/pkg/logging"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type fundRepositoryImpl struct {
	db *gorm.DB
}

// NewFundRepository 创建基金主数据仓储实例。
func NewFundRepository(db *gorm.DB) domain.FundRepository {
	return &fundRepositoryImpl{db: db}
}

// SaveFund 实现 domain.FundRepository.SaveFund
func (r *fundRepositoryImpl) SaveFund(ctx context.Context, fund *domain.Fund) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "fund_id"}},
		UpdateAll: true,
	}).Create(fund).Error
	if err != nil {
		logging.Error(ctx, "fund_repository.SaveFund failed", "fund_id", fund.FundID, "error", err)
		return fmt.Errorf("failed to save fund: %w", err)
	}
	return nil
}

// GetFund 实现 domain.FundRepository.GetFund
func (r *fundRepositoryImpl) GetFund(ctx context.Context, fundID string) (*domain.Fund, error) {
	var fund domain.Fund
	if err := r.db.WithContext(ctx).Where("fund_id = ?", fundID).First(&fund).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logging.Error(ctx, "fund_repository.GetFund failed", "fund_id", fundID, "error", err)
		return nil, fmt.Errorf("failed to get fund: %w", err)
	}
	return &fund, nil
}

// ListFunds 实现 domain.FundRepository.ListFunds
func (r *fundRepositoryImpl) ListFunds(ctx context.Context) ([]*domain.Fund, error) {
	var funds []*domain.Fund
	if err := r.db.WithContext(ctx).Order("fund_id").Find(&funds).Error; err != nil {
		logging.Error(ctx, "fund_repository.ListFunds failed", "error", err)
		return nil, fmt.Errorf("failed to list funds: %w", err)
	}
	return funds, nil
}

// SaveShareClass 实现 domain.FundRepository.SaveShareClass
func (r *fundRepositoryImpl) SaveShareClass(ctx context.Context, class *domain.ShareClass) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "class_id"}},
		UpdateAll: true,
	}).Create(class).Error
	if err != nil {
		logging.Error(ctx, "fund_repository.SaveShareClass failed", "class_id", class.ClassID, "error", err)
		return fmt.Errorf("failed to save share class: %w", err)
	}
	return nil
}

// GetShareClass 实现 domain.FundRepository.GetShareClass
func (r *fundRepositoryImpl) GetShareClass(ctx context.Context, classID string) (*domain.ShareClass, error) {
	var class domain.ShareClass
	if err := r.db.WithContext(ctx).Where("class_id = ?", classID).First(&class).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logging.Error(ctx, "fund_repository.GetShareClass failed", "class_id", classID, "error", err)
		return nil, fmt.Errorf("failed to get share class: %w", err)
	}
	return &class, nil
}

// ListShareClasses 实现 domain.FundRepository.ListShareClasses
func (r *fundRepositoryImpl) ListShareClasses(ctx context.Context, fundID string) ([]*domain.ShareClass, error) {
	var classes []*domain.ShareClass
	if err := r.db.WithContext(ctx).Where("fund_id = ?", fundID).Order("class_id").Find(&classes).Error; err != nil {
		logging.Error(ctx, "fund_repository.ListShareClasses failed", "fund_id", fundID, "error", err)
		return nil, fmt.Errorf("failed to list share classes: %w", err)
	}
	return classes, nil
}
