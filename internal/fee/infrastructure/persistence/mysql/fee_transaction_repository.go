package mysql

import (
	"context"
	"errors"
	"fmt"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/wyfcoding/fundadmin/internal/fee/domain"
	"github.com/wyfcoding/fundadmin/pkg/finerrors"
	"github.com/wyfcoding/fundadmin/pkg/period"
	"github.com/wyfcoding/pkg/logging"
	"gorm.io/gorm"
)

const mysqlErrDuplicateEntry = 1062

type feeTransactionRepositoryImpl struct {
	db *gorm.DB
}

// NewFeeTransactionRepository 创建费用记录仓储实例。
func NewFeeTransactionRepository(db *gorm.DB) domain.FeeTransactionRepository {
	return &feeTransactionRepositoryImpl{db: db}
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *gomysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlErrDuplicateEntry
}

// Create 实现 domain.FeeTransactionRepository.Create
// (费率表, 账户, 期间) 唯一索引冲突映射为 ConflictError。
func (r *feeTransactionRepositoryImpl) Create(ctx context.Context, txn *domain.FeeTransaction) error {
	err := r.db.WithContext(ctx).Create(txn).Error
	if err != nil {
		if isDuplicateKey(err) {
			return finerrors.Conflictf("fee for schedule %s account %s period %s~%s already exists",
				txn.ScheduleID, txn.AccountID,
				txn.PeriodStart.Format("2006-01-02"), txn.PeriodEnd.Format("2006-01-02"))
		}
		logging.Error(ctx, "fee_transaction_repository.Create failed", "fee_txn_id", txn.FeeTxnID, "error", err)
		return fmt.Errorf("failed to create fee transaction: %w", err)
	}
	return nil
}

// Get 实现 domain.FeeTransactionRepository.Get
func (r *feeTransactionRepositoryImpl) Get(ctx context.Context, feeTxnID string) (*domain.FeeTransaction, error) {
	var txn domain.FeeTransaction
	err := r.db.WithContext(ctx).Where("fee_txn_id = ?", feeTxnID).First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logging.Error(ctx, "fee_transaction_repository.Get failed", "fee_txn_id", feeTxnID, "error", err)
		return nil, fmt.Errorf("failed to get fee transaction: %w", err)
	}
	return &txn, nil
}

// GetByKey 实现 domain.FeeTransactionRepository.GetByKey
func (r *feeTransactionRepositoryImpl) GetByKey(ctx context.Context, scheduleID, accountID string, p period.Period) (*domain.FeeTransaction, error) {
	var txn domain.FeeTransaction
	err := r.db.WithContext(ctx).
		Where("schedule_id = ? AND account_id = ? AND period_start = ? AND period_end = ?",
			scheduleID, accountID, p.Start, p.End).
		First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logging.Error(ctx, "fee_transaction_repository.GetByKey failed",
			"schedule_id", scheduleID, "account_id", accountID, "error", err)
		return nil, fmt.Errorf("failed to get fee transaction by key: %w", err)
	}
	return &txn, nil
}

// ListByFundPeriod 实现 domain.FeeTransactionRepository.ListByFundPeriod
func (r *feeTransactionRepositoryImpl) ListByFundPeriod(ctx context.Context, fundID string, p period.Period) ([]*domain.FeeTransaction, error) {
	var txns []*domain.FeeTransaction
	err := r.db.WithContext(ctx).
		Where("fund_id = ? AND period_start >= ? AND period_end <= ?", fundID, p.Start, p.End).
		Order("schedule_id, account_id").
		Find(&txns).Error
	if err != nil {
		logging.Error(ctx, "fee_transaction_repository.ListByFundPeriod failed", "fund_id", fundID, "error", err)
		return nil, fmt.Errorf("failed to list fee transactions: %w", err)
	}
	return txns, nil
}

// Update 实现 domain.FeeTransactionRepository.Update
func (r *feeTransactionRepositoryImpl) Update(ctx context.Context, txn *domain.FeeTransaction) error {
	err := r.db.WithContext(ctx).Model(&domain.FeeTransaction{}).
		Where("fee_txn_id = ?", txn.FeeTxnID).
		Updates(map[string]any{
			"status":      txn.Status,
			"paid_amount": txn.PaidAmount,
		}).Error
	if err != nil {
		logging.Error(ctx, "fee_transaction_repository.Update failed", "fee_txn_id", txn.FeeTxnID, "error", err)
		return fmt.Errorf("failed to update fee transaction: %w", err)
	}
	return nil
}
