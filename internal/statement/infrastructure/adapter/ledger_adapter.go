// Package adapter 将对账单生成的出站端口落到同进程的台账与净值应用服务上。
package adapter

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	ledgerapp "github.com/wyfcoding/fundadmin/internal/capitalledger/application"
	navapp "github.com/wyfcoding/fundadmin/internal/nav/application"
	"github.com/wyfcoding/fundadmin/internal/statement/domain"
	"github.com/wyfcoding/fundadmin/pkg/period"
)

type ledgerAdapter struct {
	query *ledgerapp.LedgerQueryService
}

// NewLedgerGateway 基于台账查询服务创建对账单生成的台账网关。
func NewLedgerGateway(query *ledgerapp.LedgerQueryService) domain.LedgerGateway {
	return &ledgerAdapter{query: query}
}

// FundActivity 实现 domain.LedgerGateway.FundActivity
// 期初份额取上期期末快照，期末份额与资金流取本期回放。
func (a *ledgerAdapter) FundActivity(ctx context.Context, fundID string, p period.Period) ([]domain.AccountActivity, error) {
	endSnapshots, err := a.query.SnapshotFundAsOf(ctx, fundID, p.End)
	if err != nil {
		return nil, err
	}

	activities := make([]domain.AccountActivity, 0, len(endSnapshots))
	for _, snap := range endSnapshots {
		inceptionInPeriod := p.Contains(snap.InceptionDate)

		beginning := decimal.Zero
		if !inceptionInPeriod {
			beginSnap, err := a.query.SnapshotAsOf(ctx, snap.AccountID, p.PriorEnd())
			if err != nil {
				return nil, err
			}
			beginning = beginSnap.Shares
		}

		flows, err := a.query.FlowsInPeriod(ctx, snap.AccountID, p.Start, p.End)
		if err != nil {
			return nil, err
		}

		activities = append(activities, domain.AccountActivity{
			AccountID:         snap.AccountID,
			SharesBeginning:   beginning,
			SharesEnding:      snap.Shares,
			Contributions:     flows.Contributions,
			Distributions:     flows.Distributions,
			Fees:              flows.Fees,
			InceptionInPeriod: inceptionInPeriod,
		})
	}
	return activities, nil
}

type navAdapter struct {
	nav *navapp.NAVService
}

// NewNAVGateway 基于净值应用服务创建对账单生成的净值网关。
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
