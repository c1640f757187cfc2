// Package adapter 将附带权益引擎的出站端口落到同进程的净值应用服务上。
package adapter

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/fundadmin/internal/carry/domain"
	navapp "github.com/wyfcoding/fundadmin/internal/nav/application"
)

type fundValueAdapter struct {
	nav *navapp.NAVService
}

// NewFundValueProvider 基于净值应用服务创建基金总值端口。
func NewFundValueProvider(nav *navapp.NAVService) domain.FundValueProvider {
	return &fundValueAdapter{nav: nav}
}

// FundValueAsOf 实现 domain.FundValueProvider.FundValueAsOf
func (a *fundValueAdapter) FundValueAsOf(ctx context.Context, fundID string, asOf time.Time) (decimal.Decimal, error) {
	mark, err := a.nav.NAVAsOf(ctx, fundID, asOf)
	if err != nil {
		return decimal.Zero, err
	}
	return mark.TotalValue(), nil
}
