// Package domain 投资人对账单的领域模型。
// 对账单数字由期初期末份额、净值与期间资金流纯函数推导，
// (账户, 期间, 版本) 唯一，定稿后不可变，修订只追加新版本。
package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/fundadmin/pkg/finerrors"
	"github.com/wyfcoding/fundadmin/pkg/period"
	"gorm.io/gorm"
)

// StatementStatus 对账单状态
type StatementStatus int8

const (
	StatementStatusDraft     StatementStatus = 1 // 草稿
	StatementStatusFinalized StatementStatus = 2 // 已定稿
	StatementStatusSent      StatementStatus = 3 // 已发送（终态）
)

func (s StatementStatus) String() string {
	switch s {
	case StatementStatusDraft:
		return "DRAFT"
	case StatementStatusFinalized:
		return "FINALIZED"
	case StatementStatusSent:
		return "SENT"
	default:
		return "UNKNOWN"
	}
}

// InvestorStatement 投资人期间对账单。
type InvestorStatement struct {
	gorm.Model
	// 对账单 ID（业务主键）
	StatementID string `gorm:"column:statement_id;type:varchar(32);uniqueIndex;not null" json:"statement_id"`
	// 账户 ID
	AccountID string `gorm:"column:account_id;type:varchar(32);uniqueIndex:idx_statements_key;not null" json:"account_id"`
	// 基金 ID（冗余）
	FundID string `gorm:"column:fund_id;type:varchar(32);index;not null" json:"fund_id"`
	// 期间边界
	PeriodStart time.Time `gorm:"column:period_start;type:date;uniqueIndex:idx_statements_key;not null" json:"period_start"`
	PeriodEnd   time.Time `gorm:"column:period_end;type:date;uniqueIndex:idx_statements_key;not null" json:"period_end"`
	// 版本号，修订递增
	Version int `gorm:"column:version;uniqueIndex:idx_statements_key;not null;default:1" json:"version"`
	// 期初/期末份额
	SharesBeginning decimal.Decimal `gorm:"column:shares_beginning;type:decimal(32,18);not null" json:"shares_beginning"`
	SharesEnding    decimal.Decimal `gorm:"column:shares_ending;type:decimal(32,18);not null" json:"shares_ending"`
	// 期初/期末余额
	BeginningBalance decimal.Decimal `gorm:"column:beginning_balance;type:decimal(32,18);not null" json:"beginning_balance"`
	EndingBalance    decimal.Decimal `gorm:"column:ending_balance;type:decimal(32,18);not null" json:"ending_balance"`
	// 期间资金流（均为正数口径）
	Contributions decimal.Decimal `gorm:"column:contributions;type:decimal(32,18);not null" json:"contributions"`
	Distributions decimal.Decimal `gorm:"column:distributions;type:decimal(32,18);not null" json:"distributions"`
	Fees          decimal.Decimal `gorm:"column:fees;type:decimal(32,18);not null" json:"fees"`
	// 期间收益
	ReturnAmount  decimal.Decimal `gorm:"column:return_amount;type:decimal(32,18);not null" json:"return_amount"`
	ReturnPercent decimal.Decimal `gorm:"column:return_percent;type:decimal(16,8);not null" json:"return_percent"`
	// 状态
	Status StatementStatus `gorm:"column:status;type:tinyint;not null;default:1" json:"status"`
}

func (InvestorStatement) TableName() string { return "investor_statements" }

// Finalize 状态流转：草稿 → 已定稿。
func (st *InvestorStatement) Finalize() error {
	if st.Status != StatementStatusDraft {
		return finerrors.Validationf("statement %s cannot be finalized from status %s", st.StatementID, st.Status)
	}
	st.Status = StatementStatusFinalized
	return nil
}

// MarkSent 状态流转：已定稿 → 已发送。
func (st *InvestorStatement) MarkSent() error {
	if st.Status != StatementStatusFinalized {
		return finerrors.Validationf("statement %s cannot be sent from status %s", st.StatementID, st.Status)
	}
	st.Status = StatementStatusSent
	return nil
}

// Immutable 对账单是否已进入不可变状态。
func (st *InvestorStatement) Immutable() bool {
	return st.Status != StatementStatusDraft
}

// StatementInputs 对账单计算的输入。
type StatementInputs struct {
	SharesBeginning decimal.Decimal
	SharesEnding    decimal.Decimal
	// 上期期末净值，期初余额用
	NAVPriorEnd decimal.Decimal
	// 本期期末净值
	NAVEnd decimal.Decimal
	// 期间资金流，正数口径
	Contributions decimal.Decimal
	Distributions decimal.Decimal
	Fees          decimal.Decimal
	// 账户在期间内成立：期初余额按零处理
	InceptionInPeriod bool
}

// StatementFigures 对账单计算的输出。
type StatementFigures struct {
	BeginningBalance decimal.Decimal
	EndingBalance    decimal.Decimal
	ReturnAmount     decimal.Decimal
	ReturnPercent    decimal.Decimal
}

// Compute 计算对账单数字。
// 期间收益 = 期末 − 期初 − 申购 + 分配 + 费用；
// 收益率以期初余额为分母，期初为零时收益率为零。
func Compute(in StatementInputs) StatementFigures {
	beginning := decimal.Zero
	if !in.InceptionInPeriod {
		beginning = in.SharesBeginning.Mul(in.NAVPriorEnd)
	}
	ending := in.SharesEnding.Mul(in.NAVEnd)

	returnAmount := ending.Sub(beginning).
		Sub(in.Contributions).
		Add(in.Distributions).
		Add(in.Fees)

	returnPercent := decimal.Zero
	if beginning.IsPositive() {
		returnPercent = returnAmount.Div(beginning).Mul(decimal.NewFromInt(100)).Round(8)
	}

	return StatementFigures{
		BeginningBalance: beginning,
		EndingBalance:    ending,
		ReturnAmount:     returnAmount,
		ReturnPercent:    returnPercent,
	}
}

// StatementRepository 对账单仓储接口。
type StatementRepository interface {
	// Create 创建对账单；(账户, 期间, 版本) 冲突返回 ConflictError
	Create(ctx context.Context, st *InvestorStatement) error
	// Get 根据业务主键获取，不存在返回 (nil, nil)
	Get(ctx context.Context, statementID string) (*InvestorStatement, error)
	// LatestByKey 返回 (账户, 期间) 的最高版本，不存在返回 (nil, nil)
	LatestByKey(ctx context.Context, accountID string, p period.Period) (*InvestorStatement, error)
	// ListByFundPeriod 返回基金在期间的全部对账单
	ListByFundPeriod(ctx context.Context, fundID string, p period.Period) ([]*InvestorStatement, error)
	// ListByAccount 返回账户的对账单历史
	ListByAccount(ctx context.Context, accountID string) ([]*InvestorStatement, error)
	// Update 覆盖草稿内容或更新状态
	Update(ctx context.Context, st *InvestorStatement) error
	// UpdateInTx 在单个数据库事务内更新对账单并执行回调，回调失败整体回滚
	UpdateInTx(ctx context.Context, st *InvestorStatement, fn func(tx any) error) error
}

// AccountActivity 台账提供的单账户期间活动。
type AccountActivity struct {
	AccountID         string
	SharesBeginning   decimal.Decimal
	SharesEnding      decimal.Decimal
	Contributions     decimal.Decimal
	Distributions     decimal.Decimal
	Fees              decimal.Decimal
	InceptionInPeriod bool
}

// LedgerGateway 对账单生成对资本台账的出站端口。
type LedgerGateway interface {
	// FundActivity 返回基金下全部有效账户的期间活动
	FundActivity(ctx context.Context, fundID string, p period.Period) ([]AccountActivity, error)
}

// NAVGateway 对账单生成对净值服务的出站端口。
// 缺失净值返回 PreconditionFailed 分类错误。
type NAVGateway interface {
	NAVPerShare(ctx context.Context, fundID string, cutoff time.Time) (decimal.Decimal, error)
}

// EventPublisher 对账单领域事件的出站端口。
type EventPublisher interface {
	// PublishInTx 在给定数据库事务内登记事件，与业务写入一同提交；
	// tx 为 nil 时使用默认连接
	PublishInTx(ctx context.Context, tx any, topic, key string, event any) error
}
