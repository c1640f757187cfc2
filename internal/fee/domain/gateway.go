package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// LedgerGateway 费用引擎对资本台账的出站端口。
type LedgerGateway interface {
	// AccountBases 返回基金下全部有效账户在截止日的费用基数。
	// navPerShare 为零值时表示期末净值缺失，依赖净值的字段不可用。
	AccountBases(ctx context.Context, fundID string, cutoff time.Time, navPerShare decimal.Decimal) ([]AccountBasis, error)
	// DebitFee 向台账追加一笔费用扣收交易。
	// feeTxnID 作为幂等键：同一费用记录的扣收重放不会追加第二笔。
	DebitFee(ctx context.Context, accountID, feeTxnID string, amount decimal.Decimal, date time.Time) error
}

// NAVGateway 费用引擎对净值服务的出站端口。
// 缺失净值返回 PreconditionFailed 分类错误。
type NAVGateway interface {
	NAVPerShare(ctx context.Context, fundID string, cutoff time.Time) (decimal.Decimal, error)
}
