package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/fundadmin/internal/capitalledger/domain"
	"github.com/wyfcoding/pkg/logging"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type accountRepositoryImpl struct {
	db *gorm.DB
}

// NewAccountRepository 创建资本账户仓储实例。
func NewAccountRepository(db *gorm.DB) domain.AccountRepository {
	return &accountRepositoryImpl{db: db}
}

// Save 实现 domain.AccountRepository.Save
func (r *accountRepositoryImpl) Save(ctx context.Context, account *domain.CapitalAccount) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}},
		UpdateAll: true,
	}).Create(account).Error
	if err != nil {
		logging.Error(ctx, "account_repository.Save failed", "account_id", account.AccountID, "error", err)
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

// Get 实现 domain.AccountRepository.Get
func (r *accountRepositoryImpl) Get(ctx context.Context, accountID string) (*domain.CapitalAccount, error) {
	var account domain.CapitalAccount
	if err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logging.Error(ctx, "account_repository.Get failed", "account_id", accountID, "error", err)
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

// ListActiveByFund 实现 domain.AccountRepository.ListActiveByFund
func (r *accountRepositoryImpl) ListActiveByFund(ctx context.Context, fundID string) ([]*domain.CapitalAccount, error) {
	var accounts []*domain.CapitalAccount
	err := r.db.WithContext(ctx).
		Where("fund_id = ? AND status = ?", fundID, domain.AccountStatusActive).
		Order("account_id").
		Find(&accounts).Error
	if err != nil {
		logging.Error(ctx, "account_repository.ListActiveByFund failed", "fund_id", fundID, "error", err)
		return nil, fmt.Errorf("failed to list active accounts: %w", err)
	}
	return accounts, nil
}

// UpdateProjection 实现 domain.AccountRepository.UpdateProjection
func (r *accountRepositoryImpl) UpdateProjection(ctx context.Context, accountID string, shares, costBasis, realizedGain decimal.Decimal) error {
	result := r.db.WithContext(ctx).Model(&domain.CapitalAccount{}).
		Where("account_id = ?", accountID).
		Updates(map[string]any{
			"shares_owned":  shares,
			"cost_basis":    costBasis,
			"realized_gain": realizedGain,
		})
	if result.Error != nil {
		logging.Error(ctx, "account_repository.UpdateProjection failed", "account_id", accountID, "error", result.Error)
		return fmt.Errorf("failed to update account projection: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("account %s not found for projection update", accountID)
	}
	return nil
}
