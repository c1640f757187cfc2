// Package application 附带权益引擎的应用服务。
// 计提与回拨检测都以最近一次外部瀑布结果为准，从不合成零值瀑布。
package application

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/fundadmin/internal/carry/domain"
	"github.com/wyfcoding/fundadmin/pkg/finerrors"
	"github.com/wyfcoding/fundadmin/pkg/period"
	"github.com/wyfcoding/pkg/idgen"
	"github.com/wyfcoding/pkg/logging"
)

// CarryService 附带权益应用服务。
type CarryService struct {
	accounts   domain.CarryAccountRepository
	waterfalls domain.WaterfallRepository
	clawbacks  domain.ClawbackRepository
	fundValue  domain.FundValueProvider
}

// NewCarryService 创建附带权益应用服务。
func NewCarryService(
	accounts domain.CarryAccountRepository,
	waterfalls domain.WaterfallRepository,
	clawbacks domain.ClawbackRepository,
	fundValue domain.FundValueProvider,
) *CarryService {
	return &CarryService{
		accounts:   accounts,
		waterfalls: waterfalls,
		clawbacks:  clawbacks,
		fundValue:  fundValue,
	}
}

// OpenAccount 为基金开立附带权益账户，每只基金仅一个。
func (s *CarryService) OpenAccount(ctx context.Context, req *OpenCarryAccountRequest) (*domain.CarriedInterestAccount, error) {
	existing, err := s.accounts.GetByFund(ctx, req.FundID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, finerrors.Conflictf("fund %s already has carry account %s", req.FundID, existing.CarryAccountID)
	}

	account := &domain.CarriedInterestAccount{
		CarryAccountID:   fmt.Sprintf("CRY-%d", idgen.GenID()),
		FundID:           req.FundID,
		GPEntityID:       req.GPEntityID,
		TotalAccrued:     decimal.Zero,
		TotalDistributed: decimal.Zero,
		ClawbackReserve:  decimal.Zero,
		HighWaterMark:    decimal.Zero,
		Status:           domain.CarryStatusActive,
	}
	if err := s.accounts.Save(ctx, account); err != nil {
		return nil, err
	}
	logging.Info(ctx, "carry account opened", "carry_account_id", account.CarryAccountID, "fund_id", req.FundID)
	return account, nil
}

// IngestWaterfall 录入外部瀑布计算结果，(基金, 计算日) 幂等覆盖。
func (s *CarryService) IngestWaterfall(ctx context.Context, req *IngestWaterfallRequest) (*domain.WaterfallCalculation, error) {
	calcDate, err := time.Parse("2006-01-02", req.CalcDate)
	if err != nil {
		return nil, finerrors.Validationf("invalid calc_date %q", req.CalcDate)
	}
	gp, err := decimal.NewFromString(req.GPAllocation)
	if err != nil || gp.IsNegative() {
		return nil, finerrors.Validationf("invalid gp_allocation %q", req.GPAllocation)
	}
	lp, err := decimal.NewFromString(req.LPAllocation)
	if err != nil || lp.IsNegative() {
		return nil, finerrors.Validationf("invalid lp_allocation %q", req.LPAllocation)
	}
	total, err := decimal.NewFromString(req.TotalDistributed)
	if err != nil || total.IsNegative() {
		return nil, finerrors.Validationf("invalid total_distributed %q", req.TotalDistributed)
	}

	wf := &domain.WaterfallCalculation{
		WaterfallID:      fmt.Sprintf("WFL-%d", idgen.GenID()),
		FundID:           req.FundID,
		CalcDate:         period.Day(calcDate),
		GPAllocation:     gp,
		LPAllocation:     lp,
		TotalDistributed: total,
	}
	if err := s.waterfalls.Save(ctx, wf); err != nil {
		return nil, err
	}
	logging.Info(ctx, "waterfall ingested",
		"fund_id", req.FundID, "calc_date", req.CalcDate, "gp_allocation", gp.String())
	return wf, nil
}

// Accrue 按最近瀑布结果推进基金的附带权益计提。
// 截止日前没有任何瀑布结果时返回 PreconditionFailed，不合成零值。
func (s *CarryService) Accrue(ctx context.Context, fundID string, asOf time.Time) (*AccrualResult, error) {
	account, err := s.requireAccountByFund(ctx, fundID)
	if err != nil {
		return nil, err
	}
	if account.Status != domain.CarryStatusActive {
		return nil, finerrors.Preconditionf("carry account %s is %s, accrual suspended", account.CarryAccountID, account.Status)
	}

	wf, err := s.waterfalls.LatestAsOf(ctx, fundID, asOf)
	if err != nil {
		return nil, err
	}
	if wf == nil {
		return nil, finerrors.Preconditionf("no waterfall calculation for fund %s at or before %s", fundID, asOf.Format("2006-01-02"))
	}

	delta := account.ApplyAccrual(wf.GPAllocation)

	fundValue, err := s.fundValue.FundValueAsOf(ctx, fundID, asOf)
	switch {
	case finerrors.IsPrecondition(err):
		// 高水位更新依赖净值；净值缺失不阻断计提
		logging.Debug(ctx, "fund value unavailable, high-water mark unchanged", "fund_id", fundID)
	case err != nil:
		return nil, err
	default:
		account.RaiseHighWaterMark(fundValue)
	}

	if err := s.accounts.Save(ctx, account); err != nil {
		return nil, err
	}
	logging.Info(ctx, "carry accrued",
		"carry_account_id", account.CarryAccountID, "fund_id", fundID,
		"earned", wf.GPAllocation.String(), "delta", delta.String())
	return &AccrualResult{
		CarryAccountID: account.CarryAccountID,
		EarnedToDate:   wf.GPAllocation,
		AccrualDelta:   delta,
		TotalAccrued:   account.TotalAccrued,
		HighWaterMark:  account.HighWaterMark,
	}, nil
}

// RecordDistribution 记录一笔向 GP 的实际分配。
func (s *CarryService) RecordDistribution(ctx context.Context, carryAccountID string, req *RecordDistributionRequest) (*domain.CarriedInterestAccount, error) {
	account, err := s.requireAccount(ctx, carryAccountID)
	if err != nil {
		return nil, err
	}
	if account.Status == domain.CarryStatusTerminated {
		return nil, finerrors.Validationf("carry account %s is terminated", carryAccountID)
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return nil, finerrors.Validationf("invalid amount %q", req.Amount)
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		return nil, finerrors.Validationf("invalid date %q", req.Date)
	}
	if err := account.AddDistribution(amount); err != nil {
		return nil, err
	}
	if err := s.accounts.Save(ctx, account); err != nil {
		return nil, err
	}
	logging.Info(ctx, "carry distribution recorded",
		"carry_account_id", carryAccountID, "amount", amount.String())
	return account, nil
}

// DetectClawback 检测超额分配并创建回拨计提。
// 回拨 = max(0, 累计分配 − 已赚取)；为零时不创建计提，返回 (nil, nil)。
// 检测不改变账户状态。
func (s *CarryService) DetectClawback(ctx context.Context, carryAccountID string, asOf time.Time) (*domain.ClawbackProvision, error) {
	account, err := s.requireAccount(ctx, carryAccountID)
	if err != nil {
		return nil, err
	}
	wf, err := s.waterfalls.LatestAsOf(ctx, account.FundID, asOf)
	if err != nil {
		return nil, err
	}
	if wf == nil {
		return nil, finerrors.Preconditionf("no waterfall calculation for fund %s at or before %s", account.FundID, asOf.Format("2006-01-02"))
	}

	earned := wf.GPAllocation
	excess := account.TotalDistributed.Sub(earned)
	if !excess.IsPositive() {
		return nil, nil
	}

	provision := &domain.ClawbackProvision{
		ProvisionID:         fmt.Sprintf("CLW-%d", idgen.GenID()),
		CarryAccountID:      carryAccountID,
		AsOf:                period.Day(asOf),
		DistributedSnapshot: account.TotalDistributed,
		EarnedSnapshot:      earned,
		ClawbackAmount:      excess,
		PaidAmount:          decimal.Zero,
		Status:              domain.ClawbackStatusCalculated,
	}
	if err := s.clawbacks.Create(ctx, provision); err != nil {
		return nil, err
	}
	logging.Info(ctx, "clawback provision created",
		"provision_id", provision.ProvisionID, "carry_account_id", carryAccountID,
		"clawback_amount", excess.String())
	return provision, nil
}

// NotifyClawback 将回拨计提流转为已通知。
func (s *CarryService) NotifyClawback(ctx context.Context, provisionID string) (*domain.ClawbackProvision, error) {
	return s.transition(ctx, provisionID, func(p *domain.ClawbackProvision) error { return p.Notify() })
}

// PayClawback 记录回拨支付并累积账户的回拨准备金。
// 支付落账与准备金累积在同一事务内提交，失败时计提保持已通知态，可重试。
func (s *CarryService) PayClawback(ctx context.Context, provisionID string, req *PayClawbackRequest) (*domain.ClawbackProvision, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return nil, finerrors.Validationf("invalid amount %q", req.Amount)
	}
	provision, err := s.clawbacks.Get(ctx, provisionID)
	if err != nil {
		return nil, err
	}
	if provision == nil {
		return nil, finerrors.NotFoundf("clawback provision %s not found", provisionID)
	}
	account, err := s.requireAccount(ctx, provision.CarryAccountID)
	if err != nil {
		return nil, err
	}
	if err := provision.Pay(amount); err != nil {
		return nil, err
	}
	account.ClawbackReserve = account.ClawbackReserve.Add(amount)
	if err := s.clawbacks.UpdateWithAccount(ctx, provision, account); err != nil {
		return nil, err
	}
	logging.Info(ctx, "clawback paid",
		"provision_id", provision.ProvisionID, "carry_account_id", account.CarryAccountID,
		"paid_amount", amount.String(), "clawback_reserve", account.ClawbackReserve.String())
	return provision, nil
}

// WaiveClawback 豁免回拨计提。
func (s *CarryService) WaiveClawback(ctx context.Context, provisionID string) (*domain.ClawbackProvision, error) {
	return s.transition(ctx, provisionID, func(p *domain.ClawbackProvision) error { return p.Waive() })
}

func (s *CarryService) transition(ctx context.Context, provisionID string, fn func(*domain.ClawbackProvision) error) (*domain.ClawbackProvision, error) {
	provision, err := s.clawbacks.Get(ctx, provisionID)
	if err != nil {
		return nil, err
	}
	if provision == nil {
		return nil, finerrors.NotFoundf("clawback provision %s not found", provisionID)
	}
	if err := fn(provision); err != nil {
		return nil, err
	}
	if err := s.clawbacks.Update(ctx, provision); err != nil {
		return nil, err
	}
	return provision, nil
}

// Suspend 暂停附带权益账户。
func (s *CarryService) Suspend(ctx context.Context, carryAccountID string) (*domain.CarriedInterestAccount, error) {
	return s.accountTransition(ctx, carryAccountID, (*domain.CarriedInterestAccount).Suspend)
}

// Terminate 终止附带权益账户，单向。
func (s *CarryService) Terminate(ctx context.Context, carryAccountID string) (*domain.CarriedInterestAccount, error) {
	return s.accountTransition(ctx, carryAccountID, (*domain.CarriedInterestAccount).Terminate)
}

func (s *CarryService) accountTransition(ctx context.Context, carryAccountID string, fn func(*domain.CarriedInterestAccount) error) (*domain.CarriedInterestAccount, error) {
	account, err := s.requireAccount(ctx, carryAccountID)
	if err != nil {
		return nil, err
	}
	if err := fn(account); err != nil {
		return nil, err
	}
	if err := s.accounts.Save(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// GetAccount 查询附带权益账户。
func (s *CarryService) GetAccount(ctx context.Context, carryAccountID string) (*domain.CarriedInterestAccount, error) {
	return s.requireAccount(ctx, carryAccountID)
}

// GetAccountByFund 查询基金的附带权益账户。
func (s *CarryService) GetAccountByFund(ctx context.Context, fundID string) (*domain.CarriedInterestAccount, error) {
	return s.requireAccountByFund(ctx, fundID)
}

// ListClawbacks 查询账户的回拨计提历史。
func (s *CarryService) ListClawbacks(ctx context.Context, carryAccountID string) ([]*domain.ClawbackProvision, error) {
	if _, err := s.requireAccount(ctx, carryAccountID); err != nil {
		return nil, err
	}
	return s.clawbacks.ListByAccount(ctx, carryAccountID)
}

// ListWaterfalls 查询基金的瀑布历史。
func (s *CarryService) ListWaterfalls(ctx context.Context, fundID string, limit int) ([]*domain.WaterfallCalculation, error) {
	return s.waterfalls.ListByFund(ctx, fundID, limit)
}

func (s *CarryService) requireAccount(ctx context.Context, carryAccountID string) (*domain.CarriedInterestAccount, error) {
	account, err := s.accounts.Get(ctx, carryAccountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, finerrors.NotFoundf("carry account %s not found", carryAccountID)
	}
	return account, nil
}

func (s *CarryService) requireAccountByFund(ctx context.Context, fundID string) (*domain.CarriedInterestAccount, error) {
	account, err := s.accounts.GetByFund(ctx, fundID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, finerrors.NotFoundf("fund %s has no carry account", fundID)
	}
	return account, nil
}
