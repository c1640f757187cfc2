// Package adapter 将费用引擎的出站端口落到同进程的台账与净值应用服务上。
package adapter

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	ledgerapp "github.com/wyfcoding/fundadmin/internal/capitalledger/application"
	"github.com/wyfcoding/fundadmin/internal/fee/domain"
	navapp "github.com/wyfcoding/fundadmin/internal/nav/application"
)

type ledgerAdapter struct {
	ledger *ledgerapp.LedgerService
	query  *ledgerapp.LedgerQueryService
}

// NewLedgerGateway 基于台账应用服务创建费用引擎的台账网关。
func NewLedgerGateway(ledger *ledgerapp.LedgerService, query *ledgerapp.LedgerQueryService) domain.LedgerGateway {
	return &ledgerAdapter{ledger: ledger, query: query}
}

// AccountBases 实现 domain.LedgerGateway.AccountBases
// 自成立以来损益 = 份额×期末净值 − 成本 + 已实现损益。
func (a *ledgerAdapter) AccountBases(ctx context.Context, fundID string, cutoff time.Time, navPerShare decimal.Decimal) ([]domain.AccountBasis, error) {
	snapshots, err := a.query.SnapshotFundAsOf(ctx, fundID, cutoff)
	if err != nil {
		return nil, err
	}
	bases := make([]domain.AccountBasis, 0, len(snapshots))
	for _, snap := range snapshots {
		gain := decimal.Zero
		if navPerShare.IsPositive() {
			gain = snap.Shares.Mul(navPerShare).Sub(snap.CostBasis).Add(snap.RealizedGain)
		}
		bases = append(bases, domain.AccountBasis{
			AccountID:           snap.AccountID,
			ClassID:             snap.ClassID,
			Commitment:          snap.Commitment,
			Shares:              snap.Shares,
			ContributionsToDate: snap.ContributionsToDate,
			GainSinceInception:  gain,
			NAVPerShare:         navPerShare,
		})
	}
	return bases, nil
}

// DebitFee 实现 domain.LedgerGateway.DebitFee
// 费用记录 ID 作为台账的引用幂等键，重放不会产生重复扣收。
func (a *ledgerAdapter) DebitFee(ctx context.Context, accountID, feeTxnID string, amount decimal.Decimal, date time.Time) error {
	_, err := a.ledger.RecordTransaction(ctx, &ledgerapp.RecordTransactionRequest{
		AccountID:   accountID,
		Type:        "FEE_DEBIT",
		Amount:      amount.String(),
		ShareDelta:  "0",
		TradeDate:   date.Format("2006-01-02"),
		ReferenceID: feeTxnID,
	})
	return err
}

type navAdapter struct {
	nav *navapp.NAVService
}

// NewNAVGateway 基于净值应用服务创建费用引擎的净值网关。
func NewNAVGateway(nav *navapp.NAVService) domain.NAVGateway {
	return &navAdapter{nav: nav}
}

// NAVPerShare 实现 domain.NAVGateway.NAVPerShare
func (a *navAdapter) NAVPerShare(ctx context.Context, fundID string, cutoff time.Time) (decimal.Decimal, error) {
	mark, err := a.nav.NAVAsOf(ctx, fundID, cutoff)
	if err != nil {
		return decimal.Zero, err
	}
	return mark.NAVPerShare, nil
}
