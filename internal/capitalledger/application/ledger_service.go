// Package application 资本台账的用例层，编排领域回放与仓储完成台账维护。
package application

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/fundadmin/internal/capitalledger/domain"
	"github.com/wyfcoding/fundadmin/pkg/finerrors"
	"github.com/wyfcoding/fundadmin/pkg/period"
	"github.com/wyfcoding/pkg/idgen"
	"github.com/wyfcoding/pkg/logging"
)

// LedgerService 资本台账应用服务。
type LedgerService struct {
	fundRepo    domain.FundRepository
	accountRepo domain.AccountRepository
	txnRepo     domain.TransactionRepository
}

// NewLedgerService 创建台账应用服务。
func NewLedgerService(
	fundRepo domain.FundRepository,
	accountRepo domain.AccountRepository,
	txnRepo domain.TransactionRepository,
) *LedgerService {
	return &LedgerService{
		fundRepo:    fundRepo,
		accountRepo: accountRepo,
		txnRepo:     txnRepo,
	}
}

// CreateFund 创建基金主数据。
func (s *LedgerService) CreateFund(ctx context.Context, req *CreateFundRequest) (*domain.Fund, error) {
	freq, err := period.ParseFrequency(req.NAVFrequency)
	if err != nil {
		return nil, finerrors.Validationf("invalid nav_frequency %q", req.NAVFrequency)
	}
	inception, err := time.Parse("2006-01-02", req.InceptionDate)
	if err != nil {
		return nil, finerrors.Validationf("invalid inception_date %q", req.InceptionDate)
	}

	fund := &domain.Fund{
		FundID:        fmt.Sprintf("FND-%d", idgen.GenID()),
		Name:          req.Name,
		BaseCurrency:  req.BaseCurrency,
		NAVFrequency:  freq,
		Status:        domain.FundStatusActive,
		InceptionDate: period.Day(inception),
	}
	if err := s.fundRepo.SaveFund(ctx, fund); err != nil {
		return nil, fmt.Errorf("failed to save fund: %w", err)
	}

	logging.Info(ctx, "fund created", "fund_id", fund.FundID, "nav_frequency", freq.String())
	return fund, nil
}

// CreateShareClass 为基金创建份额类别。
func (s *LedgerService) CreateShareClass(ctx context.Context, req *CreateShareClassRequest) (*domain.ShareClass, error) {
	fund, err := s.fundRepo.GetFund(ctx, req.FundID)
	if err != nil {
		return nil, err
	}
	if fund == nil {
		return nil, finerrors.NotFoundf("fund %s", req.FundID)
	}

	mgmtRate, perfRate := decimal.Zero, decimal.Zero
	if req.DefaultMgmtFeeRate != "" {
		if mgmtRate, err = decimal.NewFromString(req.DefaultMgmtFeeRate); err != nil {
			return nil, finerrors.Validationf("invalid default_mgmt_fee_rate %q", req.DefaultMgmtFeeRate)
		}
	}
	if req.DefaultPerfFeeRate != "" {
		if perfRate, err = decimal.NewFromString(req.DefaultPerfFeeRate); err != nil {
			return nil, finerrors.Validationf("invalid default_perf_fee_rate %q", req.DefaultPerfFeeRate)
		}
	}
	scale := req.PriceScale
	if scale <= 0 {
		scale = 2
	}

	class := &domain.ShareClass{
		ClassID:            fmt.Sprintf("CLS-%d", idgen.GenID()),
		FundID:             fund.FundID,
		Name:               req.Name,
		DefaultMgmtFeeRate: mgmtRate,
		DefaultPerfFeeRate: perfRate,
		PriceScale:         scale,
	}
	if err := s.fundRepo.SaveShareClass(ctx, class); err != nil {
		return nil, fmt.Errorf("failed to save share class: %w", err)
	}
	return class, nil
}

// OpenAccount 开立资本账户。
func (s *LedgerService) OpenAccount(ctx context.Context, req *OpenAccountRequest) (*domain.CapitalAccount, error) {
	fund, err := s.fundRepo.GetFund(ctx, req.FundID)
	if err != nil {
		return nil, err
	}
	if fund == nil {
		return nil, finerrors.NotFoundf("fund %s", req.FundID)
	}
	class, err := s.fundRepo.GetShareClass(ctx, req.ClassID)
	if err != nil {
		return nil, err
	}
	if class == nil || class.FundID != fund.FundID {
		return nil, finerrors.Validationf("share class %s does not belong to fund %s", req.ClassID, req.FundID)
	}

	commitment, err := decimal.NewFromString(req.Commitment)
	if err != nil || commitment.IsNegative() {
		return nil, finerrors.Validationf("invalid commitment %q", req.Commitment)
	}
	inception, err := time.Parse("2006-01-02", req.InceptionDate)
	if err != nil {
		return nil, finerrors.Validationf("invalid inception_date %q", req.InceptionDate)
	}

	account := &domain.CapitalAccount{
		AccountID:     fmt.Sprintf("ACC-%d", idgen.GenID()),
		FundID:        fund.FundID,
		ClassID:       class.ClassID,
		InvestorID:    req.InvestorID,
		Commitment:    commitment,
		SharesOwned:   decimal.Zero,
		CostBasis:     decimal.Zero,
		RealizedGain:  decimal.Zero,
		Status:        domain.AccountStatusActive,
		InceptionDate: period.Day(inception),
	}
	if err := s.accountRepo.Save(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to save account: %w", err)
	}

	logging.Info(ctx, "capital account opened",
		"account_id", account.AccountID, "fund_id", fund.FundID, "investor_id", req.InvestorID)
	return account, nil
}

// CloseAccount 关闭资本账户。仅允许份额为零的账户关闭。
func (s *LedgerService) CloseAccount(ctx context.Context, accountID string) error {
	account, err := s.accountRepo.Get(ctx, accountID)
	if err != nil {
		return err
	}
	if account == nil {
		return finerrors.NotFoundf("account %s", accountID)
	}
	txns, err := s.txnRepo.ListByAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if shares := domain.NewReplay(txns).SharesAsOf(period.Day(time.Now())); !shares.IsZero() {
		return finerrors.Validationf("account %s still holds %s shares", accountID, shares)
	}
	account.Status = domain.AccountStatusClosed
	return s.accountRepo.Save(ctx, account)
}

// RecordTransaction 向台账追加一笔资本交易。
// 追加前用回放校验成立日与份额非负不变量，随后在同一事务内写入交易并更新账户投影。
// 携带 ReferenceID 的请求按引用幂等：交易 ID 由引用派生，重复提交返回首次写入的交易。
func (s *LedgerService) RecordTransaction(ctx context.Context, req *RecordTransactionRequest) (*domain.CapitalTransaction, error) {
	account, err := s.accountRepo.Get(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, finerrors.NotFoundf("account %s", req.AccountID)
	}
	if account.Status != domain.AccountStatusActive {
		return nil, finerrors.Validationf("account %s is not active", req.AccountID)
	}

	txnType, err := parseTransactionType(req.Type)
	if err != nil {
		return nil, err
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return nil, finerrors.Validationf("invalid amount %q", req.Amount)
	}
	shareDelta, err := decimal.NewFromString(req.ShareDelta)
	if err != nil {
		return nil, finerrors.Validationf("invalid share_delta %q", req.ShareDelta)
	}
	tradeDate, err := time.Parse("2006-01-02", req.TradeDate)
	if err != nil {
		return nil, finerrors.Validationf("invalid trade_date %q", req.TradeDate)
	}

	seq := idgen.GenID()
	transactionID := fmt.Sprintf("TXN-%d", seq)
	if req.ReferenceID != "" {
		transactionID = "TXN-" + req.ReferenceID
		prior, err := s.txnRepo.GetByTransactionID(ctx, transactionID)
		if err != nil {
			return nil, err
		}
		if prior != nil {
			return prior, nil
		}
	}
	candidate := &domain.CapitalTransaction{
		TransactionID: transactionID,
		AccountID:     account.AccountID,
		FundID:        account.FundID,
		Type:          txnType,
		Amount:        amount,
		ShareDelta:    shareDelta,
		TradeDate:     period.Day(tradeDate),
		Seq:           int64(seq),
	}

	existing, err := s.txnRepo.ListByAccount(ctx, account.AccountID)
	if err != nil {
		return nil, err
	}
	replay := domain.NewReplay(existing)
	if err := replay.CheckAppend(account, candidate); err != nil {
		logging.Error(ctx, "transaction rejected",
			"account_id", account.AccountID, "transaction_id", candidate.TransactionID, "error", err)
		return nil, err
	}

	// 投影与交易在同一事务内落库，保持与回放的锁步一致。
	merged := append(existing, candidate)
	state := domain.NewReplay(merged).State()
	account.SharesOwned = state.Shares
	account.CostBasis = state.CostBasis
	account.RealizedGain = state.RealizedGain
	if err := s.txnRepo.Append(ctx, candidate, account); err != nil {
		// 引用键交易被并发写入：返回已落库的那笔
		if req.ReferenceID != "" && finerrors.IsConflict(err) {
			prior, gerr := s.txnRepo.GetByTransactionID(ctx, transactionID)
			if gerr == nil && prior != nil {
				return prior, nil
			}
		}
		return nil, fmt.Errorf("failed to append transaction: %w", err)
	}

	logging.Info(ctx, "capital transaction recorded",
		"transaction_id", candidate.TransactionID,
		"account_id", account.AccountID,
		"type", txnType.String(),
		"amount", amount.String(),
		"share_delta", shareDelta.String(),
	)
	return candidate, nil
}

func parseTransactionType(s string) (domain.TransactionType, error) {
	switch s {
	case "CONTRIBUTION":
		return domain.TransactionTypeContribution, nil
	case "DISTRIBUTION":
		return domain.TransactionTypeDistribution, nil
	case "FEE_DEBIT":
		return domain.TransactionTypeFeeDebit, nil
	default:
		return 0, finerrors.Validationf("unknown transaction type %q", s)
	}
}
