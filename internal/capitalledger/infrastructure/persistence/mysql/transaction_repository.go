package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/wyfcoding/fundadmin/internal/capitalledger/domain"
	"github.com/wyfcoding/fundadmin/pkg/finerrors"
	"github.com/wyfcoding/pkg/logging"
	"gorm.io/gorm"
)

const mysqlErrDuplicateEntry = 1062

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *gomysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlErrDuplicateEntry
}

type transactionRepositoryImpl struct {
	db *gorm.DB
}

// NewTransactionRepository 创建资本交易仓储实例。
func NewTransactionRepository(db *gorm.DB) domain.TransactionRepository {
	return &transactionRepositoryImpl{db: db}
}

// Append 实现 domain.TransactionRepository.Append
// 交易写入与账户投影更新在同一数据库事务内完成，保证投影与回放锁步。
func (r *transactionRepositoryImpl) Append(ctx context.Context, txn *domain.CapitalTransaction, projected *domain.CapitalAccount) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(txn).Error; err != nil {
			return err
		}
		result := tx.Model(&domain.CapitalAccount{}).
			Where("account_id = ?", projected.AccountID).
			Updates(map[string]any{
				"shares_owned":  projected.SharesOwned,
				"cost_basis":    projected.CostBasis,
				"realized_gain": projected.RealizedGain,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("account %s not found for projection update", projected.AccountID)
		}
		return nil
	})
	if err != nil {
		if isDuplicateKey(err) {
			return finerrors.Conflictf("capital transaction %s already recorded", txn.TransactionID)
		}
		logging.Error(ctx, "transaction_repository.Append failed",
			"transaction_id", txn.TransactionID, "account_id", txn.AccountID, "error", err)
		return fmt.Errorf("failed to append capital transaction: %w", err)
	}
	return nil
}

// GetByTransactionID 实现 domain.TransactionRepository.GetByTransactionID
func (r *transactionRepositoryImpl) GetByTransactionID(ctx context.Context, transactionID string) (*domain.CapitalTransaction, error) {
	var txn domain.CapitalTransaction
	err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logging.Error(ctx, "transaction_repository.GetByTransactionID failed", "transaction_id", transactionID, "error", err)
		return nil, fmt.Errorf("failed to get capital transaction: %w", err)
	}
	return &txn, nil
}

// ListByAccount 实现 domain.TransactionRepository.ListByAccount
func (r *transactionRepositoryImpl) ListByAccount(ctx context.Context, accountID string) ([]*domain.CapitalTransaction, error) {
	var txns []*domain.CapitalTransaction
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("trade_date, seq").
		Find(&txns).Error
	if err != nil {
		logging.Error(ctx, "transaction_repository.ListByAccount failed", "account_id", accountID, "error", err)
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txns, nil
}

// ListByAccountThrough 实现 domain.TransactionRepository.ListByAccountThrough
func (r *transactionRepositoryImpl) ListByAccountThrough(ctx context.Context, accountID string, cutoff time.Time) ([]*domain.CapitalTransaction, error) {
	var txns []*domain.CapitalTransaction
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND trade_date <= ?", accountID, cutoff).
		Order("trade_date, seq").
		Find(&txns).Error
	if err != nil {
		logging.Error(ctx, "transaction_repository.ListByAccountThrough failed", "account_id", accountID, "error", err)
		return nil, fmt.Errorf("failed to list transactions through cutoff: %w", err)
	}
	return txns, nil
}
