// Package mysql 提供对账单仓储的 MySQL GORM 实现。
package mysql

import (
	"context"
	"errors"
	"fmt"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/wyfcoding/fundadmin/internal/statement/domain"
	"github.com/wyfcoding/fundadmin/pkg/finerrors"
	"github.com/wyfcoding/fundadmin/pkg/period"
	"github.com/wyfcoding/pkg/logging"
	"gorm.io/gorm"
)

const mysqlErrDuplicateEntry = 1062

type statementRepositoryImpl struct {
	db *gorm.DB
}

// NewStatementRepository 创建对账单仓储实例。
func NewStatementRepository(db *gorm.DB) domain.StatementRepository {
	return &statementRepositoryImpl{db: db}
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *gomysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlErrDuplicateEntry
}

// Create 实现 domain.StatementRepository.Create
// (账户, 期间, 版本) 唯一索引冲突映射为 ConflictError。
func (r *statementRepositoryImpl) Create(ctx context.Context, st *domain.InvestorStatement) error {
	if err := r.db.WithContext(ctx).Create(st).Error; err != nil {
		if isDuplicateKey(err) {
			return finerrors.Conflictf("statement for account %s period %s~%s version %d already exists",
				st.AccountID, st.PeriodStart.Format("2006-01-02"), st.PeriodEnd.Format("2006-01-02"), st.Version)
		}
		logging.Error(ctx, "statement_repository.Create failed", "statement_id", st.StatementID, "error", err)
		return fmt.Errorf("failed to create statement: %w", err)
	}
	return nil
}

// Get 实现 domain.StatementRepository.Get
func (r *statementRepositoryImpl) Get(ctx context.Context, statementID string) (*domain.InvestorStatement, error) {
	var st domain.InvestorStatement
	err := r.db.WithContext(ctx).Where("statement_id = ?", statementID).First(&st).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logging.Error(ctx, "statement_repository.Get failed", "statement_id", statementID, "error", err)
		return nil, fmt.Errorf("failed to get statement: %w", err)
	}
	return &st, nil
}

// LatestByKey 实现 domain.StatementRepository.LatestByKey
func (r *statementRepositoryImpl) LatestByKey(ctx context.Context, accountID string, p period.Period) (*domain.InvestorStatement, error) {
	var st domain.InvestorStatement
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND period_start = ? AND period_end = ?", accountID, p.Start, p.End).
		Order("version desc").
		First(&st).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logging.Error(ctx, "statement_repository.LatestByKey failed", "account_id", accountID, "error", err)
		return nil, fmt.Errorf("failed to get latest statement: %w", err)
	}
	return &st, nil
}

// ListByFundPeriod 实现 domain.StatementRepository.ListByFundPeriod
func (r *statementRepositoryImpl) ListByFundPeriod(ctx context.Context, fundID string, p period.Period) ([]*domain.InvestorStatement, error) {
	var sts []*domain.InvestorStatement
	err := r.db.WithContext(ctx).
		Where("fund_id = ? AND period_start = ? AND period_end = ?", fundID, p.Start, p.End).
		Order("account_id, version").
		Find(&sts).Error
	if err != nil {
		logging.Error(ctx, "statement_repository.ListByFundPeriod failed", "fund_id", fundID, "error", err)
		return nil, fmt.Errorf("failed to list statements: %w", err)
	}
	return sts, nil
}

// ListByAccount 实现 domain.StatementRepository.ListByAccount
func (r *statementRepositoryImpl) ListByAccount(ctx context.Context, accountID string) ([]*domain.InvestorStatement, error) {
	var sts []*domain.InvestorStatement
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("period_start desc, version desc").
		Find(&sts).Error
	if err != nil {
		logging.Error(ctx, "statement_repository.ListByAccount failed", "account_id", accountID, "error", err)
		return nil, fmt.Errorf("failed to list statements by account: %w", err)
	}
	return sts, nil
}

func statementColumns(st *domain.InvestorStatement) map[string]any {
	return map[string]any{
		"shares_beginning":  st.SharesBeginning,
		"shares_ending":     st.SharesEnding,
		"beginning_balance": st.BeginningBalance,
		"ending_balance":    st.EndingBalance,
		"contributions":     st.Contributions,
		"distributions":     st.Distributions,
		"fees":              st.Fees,
		"return_amount":     st.ReturnAmount,
		"return_percent":    st.ReturnPercent,
		"status":            st.Status,
	}
}

// Update 实现 domain.StatementRepository.Update
func (r *statementRepositoryImpl) Update(ctx context.Context, st *domain.InvestorStatement) error {
	err := r.db.WithContext(ctx).Model(&domain.InvestorStatement{}).
		Where("statement_id = ?", st.StatementID).
		Updates(statementColumns(st)).Error
	if err != nil {
		logging.Error(ctx, "statement_repository.Update failed", "statement_id", st.StatementID, "error", err)
		return fmt.Errorf("failed to update statement: %w", err)
	}
	return nil
}

// UpdateInTx 实现 domain.StatementRepository.UpdateInTx
// 状态更新与回调（如 outbox 事件登记）在同一事务内提交。
func (r *statementRepositoryImpl) UpdateInTx(ctx context.Context, st *domain.InvestorStatement, fn func(tx any) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.InvestorStatement{}).
			Where("statement_id = ?", st.StatementID).
			Updates(statementColumns(st)).Error; err != nil {
			return err
		}
		return fn(tx)
	})
	if err != nil {
		logging.Error(ctx, "statement_repository.UpdateInTx failed", "statement_id", st.StatementID, "error", err)
		return fmt.Errorf("failed to update statement in tx: %w", err)
	}
	return nil
}
