package application

import (
	"context"
	"time"

	"github.com/wyfcoding/fundadmin/internal/capitalledger/domain"
	"github.com/wyfcoding/fundadmin/pkg/finerrors"
	"github.com/wyfcoding/pkg/logging"
)

// LedgerQueryService 台账查询服务。
// 所有对外的点时状态都经过回放推导，并与投影字段对账。
type LedgerQueryService struct {
	fundRepo    domain.FundRepository
	accountRepo domain.AccountRepository
	txnRepo     domain.TransactionRepository
}

// NewLedgerQueryService 创建台账查询服务。
func NewLedgerQueryService(
	fundRepo domain.FundRepository,
	accountRepo domain.AccountRepository,
	txnRepo domain.TransactionRepository,
) *LedgerQueryService {
	return &LedgerQueryService{
		fundRepo:    fundRepo,
		accountRepo: accountRepo,
		txnRepo:     txnRepo,
	}
}

// GetFund 获取基金主数据。
func (q *LedgerQueryService) GetFund(ctx context.Context, fundID string) (*domain.Fund, error) {
	fund, err := q.fundRepo.GetFund(ctx, fundID)
	if err != nil {
		return nil, err
	}
	if fund == nil {
		return nil, finerrors.NotFoundf("fund %s", fundID)
	}
	return fund, nil
}

// ListFunds 列出全部基金主数据。
func (q *LedgerQueryService) ListFunds(ctx context.Context) ([]*domain.Fund, error) {
	return q.fundRepo.ListFunds(ctx)
}

// GetShareClass 获取份额类别。
func (q *LedgerQueryService) GetShareClass(ctx context.Context, classID string) (*domain.ShareClass, error) {
	class, err := q.fundRepo.GetShareClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	if class == nil {
		return nil, finerrors.NotFoundf("share class %s", classID)
	}
	return class, nil
}

// GetAccount 获取资本账户。
func (q *LedgerQueryService) GetAccount(ctx context.Context, accountID string) (*domain.CapitalAccount, error) {
	account, err := q.accountRepo.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, finerrors.NotFoundf("account %s", accountID)
	}
	return account, nil
}

// ListTransactions 返回账户的交易历史，(交易日, 序号) 升序。
func (q *LedgerQueryService) ListTransactions(ctx context.Context, accountID string) ([]*domain.CapitalTransaction, error) {
	return q.txnRepo.ListByAccount(ctx, accountID)
}

// SnapshotAsOf 回放账户到截止日并返回快照。
// 读取同时与投影对账，投影漂移作为守恒破坏上报，不做静默纠正。
func (q *LedgerQueryService) SnapshotAsOf(ctx context.Context, accountID string, cutoff time.Time) (*AccountSnapshot, error) {
	account, err := q.accountRepo.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, finerrors.NotFoundf("account %s", accountID)
	}
	return q.snapshot(ctx, account, cutoff)
}

// SnapshotFundAsOf 回放基金下全部有效账户到截止日。
func (q *LedgerQueryService) SnapshotFundAsOf(ctx context.Context, fundID string, cutoff time.Time) ([]*AccountSnapshot, error) {
	accounts, err := q.accountRepo.ListActiveByFund(ctx, fundID)
	if err != nil {
		return nil, err
	}
	snapshots := make([]*AccountSnapshot, 0, len(accounts))
	for _, account := range accounts {
		snap, err := q.snapshot(ctx, account, cutoff)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, nil
}

// FlowsInPeriod 返回账户在期间内的分类型资金流。
func (q *LedgerQueryService) FlowsInPeriod(ctx context.Context, accountID string, start, end time.Time) (domain.PeriodFlows, error) {
	txns, err := q.txnRepo.ListByAccount(ctx, accountID)
	if err != nil {
		return domain.PeriodFlows{}, err
	}
	return domain.NewReplay(txns).NetFlowsInPeriod(start, end), nil
}

func (q *LedgerQueryService) snapshot(ctx context.Context, account *domain.CapitalAccount, cutoff time.Time) (*AccountSnapshot, error) {
	txns, err := q.txnRepo.ListByAccount(ctx, account.AccountID)
	if err != nil {
		return nil, err
	}
	replay := domain.NewReplay(txns)

	// 投影对账覆盖全量历史，与截止日无关。
	full := replay.State()
	if !full.Shares.Equal(account.SharesOwned) {
		err := finerrors.Invariantf("account %s projection shares %s diverged from replay %s",
			account.AccountID, account.SharesOwned, full.Shares)
		logging.Error(ctx, "projection drift detected", "account_id", account.AccountID, "error", err)
		return nil, err
	}

	state := replay.StateAsOf(cutoff)
	return &AccountSnapshot{
		AccountID:           account.AccountID,
		FundID:              account.FundID,
		ClassID:             account.ClassID,
		InvestorID:          account.InvestorID,
		Status:              account.Status,
		InceptionDate:       account.InceptionDate,
		Commitment:          account.Commitment,
		Shares:              state.Shares,
		CostBasis:           state.CostBasis,
		RealizedGain:        state.RealizedGain,
		ContributionsToDate: replay.ContributionsThrough(cutoff),
	}, nil
}
