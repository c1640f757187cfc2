// Package application 对账单生成的应用服务。
// 批量生成按账户隔离失败，草稿原地重算，定稿版本不可变，修订追加新版本。
package application

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/fundadmin/internal/statement/domain"
	"github.com/wyfcoding/fundadmin/pkg/finerrors"
	"github.com/wyfcoding/fundadmin/pkg/period"
	"github.com/wyfcoding/pkg/idgen"
	"github.com/wyfcoding/pkg/logging"
)

// TopicStatementFinalized 对账单定稿事件主题。
const TopicStatementFinalized = "statement.finalized"

// FailedAccount 一个生成失败的账户及原因
type FailedAccount struct {
	AccountID string `json:"account_id"`
	Reason    string `json:"reason"`
}

// GenerationSummary 一次批量生成的汇总结果
type GenerationSummary struct {
	FundID       string          `json:"fund_id"`
	Period       period.Period   `json:"period"`
	Generated    int             `json:"generated"`
	AlreadyFinal int             `json:"already_final"`
	Failed       []FailedAccount `json:"failed,omitempty"`
}

// StatementFinalizedEvent 对账单定稿事件载荷
type StatementFinalizedEvent struct {
	StatementID string    `json:"statement_id"`
	AccountID   string    `json:"account_id"`
	FundID      string    `json:"fund_id"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	Version     int       `json:"version"`
	FinalizedAt time.Time `json:"finalized_at"`
}

// StatementService 对账单应用服务。
type StatementService struct {
	statements domain.StatementRepository
	ledger     domain.LedgerGateway
	nav        domain.NAVGateway
	publisher  domain.EventPublisher
}

// NewStatementService 创建对账单应用服务。
func NewStatementService(
	statements domain.StatementRepository,
	ledger domain.LedgerGateway,
	nav domain.NAVGateway,
	publisher domain.EventPublisher,
) *StatementService {
	return &StatementService{
		statements: statements,
		ledger:     ledger,
		nav:        nav,
		publisher:  publisher,
	}
}

// GeneratePeriod 为基金的一个期间批量生成对账单。
// 期末净值缺失直接中止；单账户失败不影响其余账户；
// 已定稿的 (账户, 期间) 记为 AlreadyFinal 跳过，草稿原地重算。
func (s *StatementService) GeneratePeriod(ctx context.Context, fundID string, p period.Period) (*GenerationSummary, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	navEnd, err := s.nav.NAVPerShare(ctx, fundID, p.End)
	if err != nil {
		return nil, err
	}
	// 上期期末净值仅期初非零的账户需要
	navPrior, navPriorErr := s.nav.NAVPerShare(ctx, fundID, p.PriorEnd())
	if navPriorErr != nil {
		if !finerrors.IsPrecondition(navPriorErr) {
			return nil, navPriorErr
		}
		navPrior = decimal.Zero
	}

	activities, err := s.ledger.FundActivity(ctx, fundID, p)
	if err != nil {
		return nil, err
	}

	summary := &GenerationSummary{FundID: fundID, Period: p}
	for _, activity := range activities {
		if !activity.InceptionInPeriod && activity.SharesBeginning.IsPositive() && navPriorErr != nil {
			summary.Failed = append(summary.Failed, FailedAccount{
				AccountID: activity.AccountID,
				Reason:    navPriorErr.Error(),
			})
			continue
		}
		_, err := s.generateOne(ctx, fundID, activity, p, navPrior, navEnd)
		switch {
		case finerrors.IsConflict(err):
			summary.AlreadyFinal++
		case err != nil:
			summary.Failed = append(summary.Failed, FailedAccount{AccountID: activity.AccountID, Reason: err.Error()})
		default:
			summary.Generated++
		}
	}

	logging.Info(ctx, "statement period generated",
		"fund_id", fundID, "period", p.String(),
		"generated", summary.Generated, "already_final", summary.AlreadyFinal, "failed", len(summary.Failed))
	return summary, nil
}

// GenerateAccount 为单账户生成一个期间的对账单。
// 已定稿版本存在时返回 ConflictError，修订需走 Revise。
func (s *StatementService) GenerateAccount(ctx context.Context, fundID, accountID string, p period.Period) (*domain.InvestorStatement, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	navEnd, err := s.nav.NAVPerShare(ctx, fundID, p.End)
	if err != nil {
		return nil, err
	}
	activities, err := s.ledger.FundActivity(ctx, fundID, p)
	if err != nil {
		return nil, err
	}
	var activity *domain.AccountActivity
	for i := range activities {
		if activities[i].AccountID == accountID {
			activity = &activities[i]
			break
		}
	}
	if activity == nil {
		return nil, finerrors.NotFoundf("account %s not found in fund %s", accountID, fundID)
	}

	navPrior := decimal.Zero
	if !activity.InceptionInPeriod && activity.SharesBeginning.IsPositive() {
		navPrior, err = s.nav.NAVPerShare(ctx, fundID, p.PriorEnd())
		if err != nil {
			return nil, err
		}
	}
	return s.generateOne(ctx, fundID, *activity, p, navPrior, navEnd)
}

func (s *StatementService) generateOne(ctx context.Context, fundID string, activity domain.AccountActivity, p period.Period, navPrior, navEnd decimal.Decimal) (*domain.InvestorStatement, error) {
	figures := domain.Compute(domain.StatementInputs{
		SharesBeginning:   activity.SharesBeginning,
		SharesEnding:      activity.SharesEnding,
		NAVPriorEnd:       navPrior,
		NAVEnd:            navEnd,
		Contributions:     activity.Contributions,
		Distributions:     activity.Distributions,
		Fees:              activity.Fees,
		InceptionInPeriod: activity.InceptionInPeriod,
	})

	existing, err := s.statements.LatestByKey(ctx, activity.AccountID, p)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Immutable() {
		return nil, finerrors.Conflictf("statement for account %s period %s is %s, use revise",
			activity.AccountID, p, existing.Status)
	}

	if existing != nil {
		// 草稿原地重算
		applyFigures(existing, activity, figures)
		if err := s.statements.Update(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	st := &domain.InvestorStatement{
		StatementID: fmt.Sprintf("STM-%d", idgen.GenID()),
		AccountID:   activity.AccountID,
		FundID:      fundID,
		PeriodStart: p.Start,
		PeriodEnd:   p.End,
		Version:     1,
		Status:      domain.StatementStatusDraft,
	}
	applyFigures(st, activity, figures)
	if err := s.statements.Create(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func applyFigures(st *domain.InvestorStatement, activity domain.AccountActivity, figures domain.StatementFigures) {
	st.SharesBeginning = activity.SharesBeginning
	st.SharesEnding = activity.SharesEnding
	st.BeginningBalance = figures.BeginningBalance
	st.EndingBalance = figures.EndingBalance
	st.Contributions = activity.Contributions
	st.Distributions = activity.Distributions
	st.Fees = activity.Fees
	st.ReturnAmount = figures.ReturnAmount
	st.ReturnPercent = figures.ReturnPercent
}

// Finalize 定稿对账单并发布定稿事件。
// 状态更新与事件登记在同一事务内提交，任一失败则对账单保持草稿，可重试。
func (s *StatementService) Finalize(ctx context.Context, statementID string) (*domain.InvestorStatement, error) {
	st, err := s.requireStatement(ctx, statementID)
	if err != nil {
		return nil, err
	}
	if err := st.Finalize(); err != nil {
		return nil, err
	}
	event := &StatementFinalizedEvent{
		StatementID: st.StatementID,
		AccountID:   st.AccountID,
		FundID:      st.FundID,
		PeriodStart: st.PeriodStart,
		PeriodEnd:   st.PeriodEnd,
		Version:     st.Version,
		FinalizedAt: time.Now(),
	}
	err = s.statements.UpdateInTx(ctx, st, func(tx any) error {
		return s.publisher.PublishInTx(ctx, tx, TopicStatementFinalized, st.AccountID, event)
	})
	if err != nil {
		logging.Error(ctx, "statement finalize failed",
			"statement_id", st.StatementID, "error", err)
		return nil, fmt.Errorf("finalize statement: %w", err)
	}
	logging.Info(ctx, "statement finalized", "statement_id", st.StatementID, "version", st.Version)
	return st, nil
}

// MarkSent 标记对账单已发送。
func (s *StatementService) MarkSent(ctx context.Context, statementID string) (*domain.InvestorStatement, error) {
	st, err := s.requireStatement(ctx, statementID)
	if err != nil {
		return nil, err
	}
	if err := st.MarkSent(); err != nil {
		return nil, err
	}
	if err := s.statements.Update(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// Revise 基于当前台账与净值为已定稿对账单生成 version+1 草稿。
func (s *StatementService) Revise(ctx context.Context, statementID string) (*domain.InvestorStatement, error) {
	prior, err := s.requireStatement(ctx, statementID)
	if err != nil {
		return nil, err
	}
	if !prior.Immutable() {
		return nil, finerrors.Validationf("statement %s is still a draft, regenerate instead", statementID)
	}
	p := period.Period{Start: prior.PeriodStart, End: prior.PeriodEnd}

	navEnd, err := s.nav.NAVPerShare(ctx, prior.FundID, p.End)
	if err != nil {
		return nil, err
	}
	activities, err := s.ledger.FundActivity(ctx, prior.FundID, p)
	if err != nil {
		return nil, err
	}
	var activity *domain.AccountActivity
	for i := range activities {
		if activities[i].AccountID == prior.AccountID {
			activity = &activities[i]
			break
		}
	}
	if activity == nil {
		return nil, finerrors.NotFoundf("account %s not found in fund %s", prior.AccountID, prior.FundID)
	}

	navPrior := decimal.Zero
	if !activity.InceptionInPeriod && activity.SharesBeginning.IsPositive() {
		navPrior, err = s.nav.NAVPerShare(ctx, prior.FundID, p.PriorEnd())
		if err != nil {
			return nil, err
		}
	}
	figures := domain.Compute(domain.StatementInputs{
		SharesBeginning:   activity.SharesBeginning,
		SharesEnding:      activity.SharesEnding,
		NAVPriorEnd:       navPrior,
		NAVEnd:            navEnd,
		Contributions:     activity.Contributions,
		Distributions:     activity.Distributions,
		Fees:              activity.Fees,
		InceptionInPeriod: activity.InceptionInPeriod,
	})

	revision := &domain.InvestorStatement{
		StatementID: fmt.Sprintf("STM-%d", idgen.GenID()),
		AccountID:   prior.AccountID,
		FundID:      prior.FundID,
		PeriodStart: prior.PeriodStart,
		PeriodEnd:   prior.PeriodEnd,
		Version:     prior.Version + 1,
		Status:      domain.StatementStatusDraft,
	}
	applyFigures(revision, *activity, figures)
	if err := s.statements.Create(ctx, revision); err != nil {
		return nil, err
	}
	logging.Info(ctx, "statement revised",
		"statement_id", revision.StatementID, "prior", prior.StatementID, "version", revision.Version)
	return revision, nil
}

// Get 查询对账单。
func (s *StatementService) Get(ctx context.Context, statementID string) (*domain.InvestorStatement, error) {
	return s.requireStatement(ctx, statementID)
}

// ListByFundPeriod 查询基金期间对账单。
func (s *StatementService) ListByFundPeriod(ctx context.Context, fundID string, p period.Period) ([]*domain.InvestorStatement, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return s.statements.ListByFundPeriod(ctx, fundID, p)
}

// ListByAccount 查询账户对账单历史。
func (s *StatementService) ListByAccount(ctx context.Context, accountID string) ([]*domain.InvestorStatement, error) {
	return s.statements.ListByAccount(ctx, accountID)
}

func (s *StatementService) requireStatement(ctx context.Context, statementID string) (*domain.InvestorStatement, error) {
	st, err := s.statements.Get(ctx, statementID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, finerrors.NotFoundf("statement %s not found", statementID)
	}
	return st, nil
}
