// Package mysql 提供附带权益引擎仓储的 MySQL GORM 实现。
package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/fundadmin/internal/carry/domain"
	"github.com/wyfcoding/pkg/logging"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type carryAccountRepositoryImpl struct {
	db *gorm.DB
}

// NewCarryAccountRepository 创建附带权益账户仓储实例。
func NewCarryAccountRepository(db *gorm.DB) domain.CarryAccountRepository {
	return &carryAccountRepositoryImpl{db: db}
}

// Save 实现 domain.CarryAccountRepository.Save
func (r *carryAccountRepositoryImpl) Save(ctx context.Context, account *domain.CarriedInterestAccount) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "carry_account_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"total_accrued", "total_distributed", "clawback_reserve", "high_water_mark", "status",
		}),
	}).Create(account).Error
	if err != nil {
		logging.Error(ctx, "carry_account_repository.Save failed", "carry_account_id", account.CarryAccountID, "error", err)
		return fmt.Errorf("failed to save carry account: %w", err)
	}
	return nil
}

// Get 实现 domain.CarryAccountRepository.Get
func (r *carryAccountRepositoryImpl) Get(ctx context.Context, carryAccountID string) (*domain.CarriedInterestAccount, error) {
	var account domain.CarriedInterestAccount
	err := r.db.WithContext(ctx).Where("carry_account_id = ?", carryAccountID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logging.Error(ctx, "carry_account_repository.Get failed", "carry_account_id", carryAccountID, "error", err)
		return nil, fmt.Errorf("failed to get carry account: %w", err)
	}
	return &account, nil
}

// GetByFund 实现 domain.CarryAccountRepository.GetByFund
func (r *carryAccountRepositoryImpl) GetByFund(ctx context.Context, fundID string) (*domain.CarriedInterestAccount, error) {
	var account domain.CarriedInterestAccount
	err := r.db.WithContext(ctx).Where("fund_id = ?", fundID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logging.Error(ctx, "carry_account_repository.GetByFund failed", "fund_id", fundID, "error", err)
		return nil, fmt.Errorf("failed to get carry account by fund: %w", err)
	}
	return &account, nil
}
