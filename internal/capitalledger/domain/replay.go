package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/fundadmin/pkg/finerrors"
)

// PeriodFlows 期间内按类型汇总的资金流。三个字段均为正数金额。
type PeriodFlows struct {
	Contributions decimal.Decimal // 出资合计
	Distributions decimal.Decimal // 分配合计
	Fees          decimal.Decimal // 费用扣收合计
	NetShareDelta decimal.Decimal // 期间份额净变动
}

// AccountState 回放到截止日得到的账户状态。
type AccountState struct {
	Shares       decimal.Decimal // 持有份额
	CostBasis    decimal.Decimal // 成本基础（平均成本法）
	RealizedGain decimal.Decimal // 已实现损益
}

// Replay 是账户交易历史的只读回放视图。
// 构造时按 (交易日, 序号) 排序，所有点时状态都是交易日志的纯函数，
// 不依赖任何可能漂移的可变计数器。
type Replay struct {
	txs []*CapitalTransaction
}

// NewReplay 构造回放视图。输入切片不会被修改。
func NewReplay(txs []*CapitalTransaction) Replay {
	sorted := make([]*CapitalTransaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].TradeDate.Equal(sorted[j].TradeDate) {
			return sorted[i].TradeDate.Before(sorted[j].TradeDate)
		}
		return sorted[i].Seq < sorted[j].Seq
	})
	return Replay{txs: sorted}
}

// SharesAsOf 返回截止日（含当日）的持有份额：交易日 ≤ cutoff 的份额变动之和。
func (r Replay) SharesAsOf(cutoff time.Time) decimal.Decimal {
	shares := decimal.Zero
	for _, txn := range r.txs {
		if txn.TradeDate.After(cutoff) {
			break
		}
		shares = shares.Add(txn.ShareDelta)
	}
	return shares
}

// NetFlowsInPeriod 汇总 [start, end] 内的资金流，按交易类型分桶。
func (r Replay) NetFlowsInPeriod(start, end time.Time) PeriodFlows {
	flows := PeriodFlows{
		Contributions: decimal.Zero,
		Distributions: decimal.Zero,
		Fees:          decimal.Zero,
		NetShareDelta: decimal.Zero,
	}
	for _, txn := range r.txs {
		if txn.TradeDate.Before(start) {
			continue
		}
		if txn.TradeDate.After(end) {
			break
		}
		switch txn.Type {
		case TransactionTypeContribution:
			flows.Contributions = flows.Contributions.Add(txn.Amount)
		case TransactionTypeDistribution:
			flows.Distributions = flows.Distributions.Add(txn.Amount)
		case TransactionTypeFeeDebit:
			flows.Fees = flows.Fees.Add(txn.Amount)
		}
		flows.NetShareDelta = flows.NetShareDelta.Add(txn.ShareDelta)
	}
	return flows
}

// ContributionsThrough 返回截止日的累计出资，%-of-invested 费用基数使用。
func (r Replay) ContributionsThrough(cutoff time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, txn := range r.txs {
		if txn.TradeDate.After(cutoff) {
			break
		}
		if txn.Type == TransactionTypeContribution {
			total = total.Add(txn.Amount)
		}
	}
	return total
}

// StateAsOf 回放到截止日，得到份额、成本基础与已实现损益。
// 成本基础采用平均成本法：赎回按份额比例释放基础，释放差额计入已实现损益；
// 无份额变动的现金分配整体计入已实现损益。
func (r Replay) StateAsOf(cutoff time.Time) AccountState {
	state := AccountState{
		Shares:       decimal.Zero,
		CostBasis:    decimal.Zero,
		RealizedGain: decimal.Zero,
	}
	for _, txn := range r.txs {
		if txn.TradeDate.After(cutoff) {
			break
		}
		switch txn.Type {
		case TransactionTypeContribution:
			state.CostBasis = state.CostBasis.Add(txn.Amount)
		case TransactionTypeDistribution:
			if txn.ShareDelta.IsNegative() && state.Shares.IsPositive() {
				released := state.CostBasis.Mul(txn.ShareDelta.Neg()).Div(state.Shares)
				state.CostBasis = state.CostBasis.Sub(released)
				state.RealizedGain = state.RealizedGain.Add(txn.Amount.Sub(released))
			} else {
				state.RealizedGain = state.RealizedGain.Add(txn.Amount)
			}
		case TransactionTypeFeeDebit:
			if txn.ShareDelta.IsNegative() && state.Shares.IsPositive() {
				released := state.CostBasis.Mul(txn.ShareDelta.Neg()).Div(state.Shares)
				state.CostBasis = state.CostBasis.Sub(released)
			}
		}
		state.Shares = state.Shares.Add(txn.ShareDelta)
	}
	return state
}

// State 回放全部交易历史，不设截止日。
func (r Replay) State() AccountState {
	if len(r.txs) == 0 {
		return AccountState{Shares: decimal.Zero, CostBasis: decimal.Zero, RealizedGain: decimal.Zero}
	}
	return r.StateAsOf(r.txs[len(r.txs)-1].TradeDate)
}

// GainSinceInception 返回截止日的累计损益（未实现 + 已实现），%-of-gains 费用基数使用。
func (r Replay) GainSinceInception(cutoff time.Time, navPerShare decimal.Decimal) decimal.Decimal {
	state := r.StateAsOf(cutoff)
	unrealized := state.Shares.Mul(navPerShare).Sub(state.CostBasis)
	return unrealized.Add(state.RealizedGain)
}

// CheckAppend 校验一笔待追加交易。
// 交易日早于账户成立日返回 ValidationError；
// 按定序插入后任一时点份额为负返回 InvariantViolation，绝不截断为零。
func (r Replay) CheckAppend(account *CapitalAccount, candidate *CapitalTransaction) error {
	if candidate.TradeDate.Before(account.InceptionDate) {
		return finerrors.Validationf("transaction %s dated %s predates account %s inception %s",
			candidate.TransactionID, candidate.TradeDate.Format("2006-01-02"),
			account.AccountID, account.InceptionDate.Format("2006-01-02"))
	}
	if candidate.Amount.IsNegative() {
		return finerrors.Validationf("transaction %s has negative amount %s",
			candidate.TransactionID, candidate.Amount)
	}
	switch candidate.Type {
	case TransactionTypeContribution, TransactionTypeDistribution, TransactionTypeFeeDebit:
	default:
		return finerrors.Validationf("transaction %s has unknown type %d", candidate.TransactionID, candidate.Type)
	}

	merged := make([]*CapitalTransaction, 0, len(r.txs)+1)
	merged = append(merged, r.txs...)
	merged = append(merged, candidate)
	replay := NewReplay(merged)

	shares := decimal.Zero
	for _, txn := range replay.txs {
		shares = shares.Add(txn.ShareDelta)
		if shares.IsNegative() {
			return finerrors.Invariantf("transaction %s would drive account %s shares to %s as of %s",
				candidate.TransactionID, account.AccountID, shares, txn.TradeDate.Format("2006-01-02"))
		}
	}
	return nil
}

// CheckProjection 对账投影字段与回放结果。
// 任何用于报表或费用基数的读取路径都必须先通过本校验，不一致即上报守恒破坏。
func (r Replay) CheckProjection(account *CapitalAccount, cutoff time.Time) error {
	replayed := r.SharesAsOf(cutoff)
	if !replayed.Equal(account.SharesOwned) {
		return finerrors.Invariantf("account %s projection shares %s diverged from replay %s as of %s",
			account.AccountID, account.SharesOwned, replayed, cutoff.Format("2006-01-02"))
	}
	return nil
}
