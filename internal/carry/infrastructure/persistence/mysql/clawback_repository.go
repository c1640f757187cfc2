package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/fundadmin/internal/carry/domain"
	"github.com/wyfcoding/pkg/logging"
	"gorm.io/gorm"
)

type clawbackRepositoryImpl struct {
	db *gorm.DB
}

// NewClawbackRepository 创建回拨计提仓储实例。
func NewClawbackRepository(db *gorm.DB) domain.ClawbackRepository {
	return &clawbackRepositoryImpl{db: db}
}

// Create 实现 domain.ClawbackRepository.Create
func (r *clawbackRepositoryImpl) Create(ctx context.Context, provision *domain.ClawbackProvision) error {
	if err := r.db.WithContext(ctx).Create(provision).Error; err != nil {
		logging.Error(ctx, "clawback_repository.Create failed", "provision_id", provision.ProvisionID, "error", err)
		return fmt.Errorf("failed to create clawback provision: %w", err)
	}
	return nil
}

// Get 实现 domain.ClawbackRepository.Get
func (r *clawbackRepositoryImpl) Get(ctx context.Context, provisionID string) (*domain.ClawbackProvision, error) {
	var provision domain.ClawbackProvision
	err := r.db.WithContext(ctx).Where("provision_id = ?", provisionID).First(&provision).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logging.Error(ctx, "clawback_repository.Get failed", "provision_id", provisionID, "error", err)
		return nil, fmt.Errorf("failed to get clawback provision: %w", err)
	}
	return &provision, nil
}

// ListByAccount 实现 domain.ClawbackRepository.ListByAccount
func (r *clawbackRepositoryImpl) ListByAccount(ctx context.Context, carryAccountID string) ([]*domain.ClawbackProvision, error) {
	var provisions []*domain.ClawbackProvision
	err := r.db.WithContext(ctx).
		Where("carry_account_id = ?", carryAccountID).
		Order("as_of desc").
		Find(&provisions).Error
	if err != nil {
		logging.Error(ctx, "clawback_repository.ListByAccount failed", "carry_account_id", carryAccountID, "error", err)
		return nil, fmt.Errorf("failed to list clawback provisions: %w", err)
	}
	return provisions, nil
}

// Update 实现 domain.ClawbackRepository.Update
func (r *clawbackRepositoryImpl) Update(ctx context.Context, provision *domain.ClawbackProvision) error {
	err := r.db.WithContext(ctx).Model(&domain.ClawbackProvision{}).
		Where("provision_id = ?", provision.ProvisionID).
		Updates(map[string]any{
			"status":      provision.Status,
			"paid_amount": provision.PaidAmount,
		}).Error
	if err != nil {
		logging.Error(ctx, "clawback_repository.Update failed", "provision_id", provision.ProvisionID, "error", err)
		return fmt.Errorf("failed to update clawback provision: %w", err)
	}
	return nil
}

// UpdateWithAccount 实现 domain.ClawbackRepository.UpdateWithAccount
// 计提终态与账户准备金在同一事务内落库，不留只写一半的状态。
func (r *clawbackRepositoryImpl) UpdateWithAccount(ctx context.Context, provision *domain.ClawbackProvision, account *domain.CarriedInterestAccount) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.ClawbackProvision{}).
			Where("provision_id = ?", provision.ProvisionID).
			Updates(map[string]any{
				"status":      provision.Status,
				"paid_amount": provision.PaidAmount,
			}).Error; err != nil {
			return err
		}
		return tx.Model(&domain.CarriedInterestAccount{}).
			Where("carry_account_id = ?", account.CarryAccountID).
			Updates(map[string]any{
				"total_accrued":     account.TotalAccrued,
				"total_distributed": account.TotalDistributed,
				"clawback_reserve":  account.ClawbackReserve,
				"high_water_mark":   account.HighWaterMark,
				"status":            account.Status,
			}).Error
	})
	if err != nil {
		logging.Error(ctx, "clawback_repository.UpdateWithAccount failed",
			"provision_id", provision.ProvisionID, "carry_account_id", account.CarryAccountID, "error", err)
		return fmt.Errorf("failed to update clawback provision with account: %w", err)
	}
	return nil
}
