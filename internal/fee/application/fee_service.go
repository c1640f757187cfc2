// Package application 费用引擎的应用服务。
// EvaluatePeriod 以 (费率表, 账户, 期间) 为粒度批量计提费用，
// 数据库唯一索引保证重复运行不会产生重复记录。
package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/fundadmin/internal/fee/domain"
	"github.com/wyfcoding/fundadmin/pkg/finerrors"
	"github.com/wyfcoding/fundadmin/pkg/period"
	"github.com/wyfcoding/pkg/idgen"
	"github.com/wyfcoding/pkg/logging"
)

// FeeService 费用应用服务。
type FeeService struct {
	schedules  domain.ScheduleRepository
	feeTxns    domain.FeeTransactionRepository
	watermarks domain.WatermarkRepository
	ledger     domain.LedgerGateway
	nav        domain.NAVGateway
}

// NewFeeService 创建费用应用服务。
func NewFeeService(
	schedules domain.ScheduleRepository,
	feeTxns domain.FeeTransactionRepository,
	watermarks domain.WatermarkRepository,
	ledger domain.LedgerGateway,
	nav domain.NAVGateway,
) *FeeService {
	return &FeeService{
		schedules:  schedules,
		feeTxns:    feeTxns,
		watermarks: watermarks,
		ledger:     ledger,
		nav:        nav,
	}
}

// CreateSchedule 创建费率表。
func (s *FeeService) CreateSchedule(ctx context.Context, req *CreateScheduleRequest) (*domain.FeeSchedule, error) {
	feeType, err := parseFeeType(req.Type)
	if err != nil {
		return nil, err
	}
	method, err := parseCalcMethod(req.Method)
	if err != nil {
		return nil, err
	}
	freq, err := period.ParseFrequency(req.Frequency)
	if err != nil {
		return nil, finerrors.Validationf("invalid frequency %q", req.Frequency)
	}
	rate, err := decimal.NewFromString(req.AnnualRate)
	if err != nil || rate.IsNegative() {
		return nil, finerrors.Validationf("invalid annual rate %q", req.AnnualRate)
	}
	hurdle := decimal.Zero
	if req.HurdleRate != "" {
		hurdle, err = decimal.NewFromString(req.HurdleRate)
		if err != nil || hurdle.IsNegative() {
			return nil, finerrors.Validationf("invalid hurdle rate %q", req.HurdleRate)
		}
	}
	if feeType != domain.FeeTypePerformance && (hurdle.IsPositive() || req.HighWaterMark) {
		return nil, finerrors.Validationf("hurdle and high-water mark only apply to performance fees")
	}
	from, err := time.Parse("2006-01-02", req.EffectiveFrom)
	if err != nil {
		return nil, finerrors.Validationf("invalid effective_from %q", req.EffectiveFrom)
	}
	var to time.Time
	if req.EffectiveTo != "" {
		to, err = time.Parse("2006-01-02", req.EffectiveTo)
		if err != nil {
			return nil, finerrors.Validationf("invalid effective_to %q", req.EffectiveTo)
		}
		if !to.After(from) {
			return nil, finerrors.Validationf("effective_to must follow effective_from")
		}
	}

	schedule := &domain.FeeSchedule{
		ScheduleID:    fmt.Sprintf("SCH-%d", idgen.GenID()),
		FundID:        req.FundID,
		ClassID:       req.ClassID,
		Type:          feeType,
		Method:        method,
		AnnualRate:    rate,
		Frequency:     freq,
		HurdleRate:    hurdle,
		HighWaterMark: req.HighWaterMark,
		EffectiveFrom: from,
		EffectiveTo:   to,
		Status:        domain.ScheduleStatusActive,
	}
	if err := s.schedules.Save(ctx, schedule); err != nil {
		return nil, err
	}
	logging.Info(ctx, "fee schedule created",
		"schedule_id", schedule.ScheduleID, "fund_id", schedule.FundID, "type", feeType.String())
	return schedule, nil
}

// DeactivateSchedule 停用费率表。
func (s *FeeService) DeactivateSchedule(ctx context.Context, scheduleID string) error {
	schedule, err := s.schedules.Get(ctx, scheduleID)
	if err != nil {
		return err
	}
	if schedule == nil {
		return finerrors.NotFoundf("fee schedule %s not found", scheduleID)
	}
	schedule.Status = domain.ScheduleStatusInactive
	return s.schedules.Save(ctx, schedule)
}

// GetSchedule 查询费率表。
func (s *FeeService) GetSchedule(ctx context.Context, scheduleID string) (*domain.FeeSchedule, error) {
	schedule, err := s.schedules.Get(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if schedule == nil {
		return nil, finerrors.NotFoundf("fee schedule %s not found", scheduleID)
	}
	return schedule, nil
}

// EvaluatePeriod 对基金的一个期间批量计提费用。
// 已存在的 (费率表, 账户, 期间) 记录计入 AlreadyProcessed，并幂等补放其台账扣收；
// 依赖净值的费率表在净值缺失时整表跳过并记入 Skipped。
func (s *FeeService) EvaluatePeriod(ctx context.Context, fundID string, p period.Period) (*EvaluationSummary, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	schedules, err := s.schedules.ListActiveOverlapping(ctx, fundID, p)
	if err != nil {
		return nil, err
	}

	summary := &EvaluationSummary{FundID: fundID, Period: p, TotalFeeAmount: decimal.Zero}
	if len(schedules) == 0 {
		return summary, nil
	}

	navPerShare := decimal.Zero
	navMissing := false
	if anyRequiresNAV(schedules) {
		mark, err := s.nav.NAVPerShare(ctx, fundID, p.End)
		switch {
		case finerrors.IsPrecondition(err):
			navMissing = true
		case err != nil:
			return nil, err
		default:
			navPerShare = mark
		}
	}

	bases, err := s.ledger.AccountBases(ctx, fundID, p.End, navPerShare)
	if err != nil {
		return nil, err
	}

	for _, schedule := range schedules {
		if (schedule.Method.RequiresNAV() || schedule.Type == domain.FeeTypePerformance) && navMissing {
			summary.Skipped = append(summary.Skipped, SkippedAssessment{
				ScheduleID: schedule.ScheduleID,
				Reason:     fmt.Sprintf("no nav mark for fund %s at or before %s", fundID, p.End.Format("2006-01-02")),
			})
			continue
		}
		summary.SchedulesApplied++
		for _, basis := range bases {
			if !schedule.AppliesTo(basis.ClassID) {
				continue
			}
			if err := s.assessOne(ctx, schedule, basis, p, summary); err != nil {
				return nil, err
			}
		}
	}

	logging.Info(ctx, "fee period evaluated",
		"fund_id", fundID, "period", p.String(),
		"emitted", summary.FeesEmitted, "already_processed", summary.AlreadyProcessed,
		"skipped", len(summary.Skipped), "total", summary.TotalFeeAmount)
	return summary, nil
}

func (s *FeeService) assessOne(ctx context.Context, schedule *domain.FeeSchedule, basis domain.AccountBasis, p period.Period, summary *EvaluationSummary) error {
	existing, err := s.feeTxns.GetByKey(ctx, schedule.ScheduleID, basis.AccountID, p)
	if err != nil {
		return err
	}
	if existing != nil {
		// 此前批次可能在费用落库后、台账扣收前失败。
		// 扣收以费用记录 ID 为幂等键，补放对已扣收的记录是空操作。
		if err := s.ledger.DebitFee(ctx, basis.AccountID, existing.FeeTxnID, existing.FeeAmount, p.End); err != nil {
			return fmt.Errorf("replay fee debit for %s: %w", existing.FeeTxnID, err)
		}
		summary.AlreadyProcessed++
		return nil
	}

	watermark := decimal.Zero
	var wm *domain.FeeWatermark
	if schedule.Type == domain.FeeTypePerformance {
		wm, err = s.watermarks.Get(ctx, schedule.ScheduleID, basis.AccountID)
		if err != nil {
			return err
		}
		if wm != nil {
			watermark = wm.Value
		}
	}

	assessment, emit := schedule.Assess(basis, watermark)

	if emit {
		txn := &domain.FeeTransaction{
			FeeTxnID:    fmt.Sprintf("FEE-%d", idgen.GenID()),
			ScheduleID:  schedule.ScheduleID,
			AccountID:   basis.AccountID,
			FundID:      schedule.FundID,
			PeriodStart: p.Start,
			PeriodEnd:   p.End,
			BaseAmount:  assessment.BaseAmount,
			RateApplied: assessment.RateApplied,
			FeeAmount:   assessment.FeeAmount,
			PaidAmount:  decimal.Zero,
			Status:      domain.FeeStatusCalculated,
		}
		if err := s.feeTxns.Create(ctx, txn); err != nil {
			// 并发批次抢先写入同一键：补放赢家的扣收后视为已处理
			if finerrors.IsConflict(err) {
				winner, gerr := s.feeTxns.GetByKey(ctx, schedule.ScheduleID, basis.AccountID, p)
				if gerr != nil {
					return gerr
				}
				if winner != nil {
					if derr := s.ledger.DebitFee(ctx, basis.AccountID, winner.FeeTxnID, winner.FeeAmount, p.End); derr != nil {
						return fmt.Errorf("replay fee debit for %s: %w", winner.FeeTxnID, derr)
					}
				}
				summary.AlreadyProcessed++
				return nil
			}
			return err
		}
		if err := s.ledger.DebitFee(ctx, basis.AccountID, txn.FeeTxnID, assessment.FeeAmount, p.End); err != nil {
			logging.Error(ctx, "fee debit failed after fee record creation",
				"fee_txn_id", txn.FeeTxnID, "account_id", basis.AccountID, "error", err)
			return fmt.Errorf("debit fee for %s: %w", txn.FeeTxnID, err)
		}
		summary.FeesEmitted++
		summary.TotalFeeAmount = summary.TotalFeeAmount.Add(assessment.FeeAmount)
	}

	if assessment.NewWatermark.IsPositive() {
		if wm == nil {
			wm = &domain.FeeWatermark{
				ScheduleID: schedule.ScheduleID,
				AccountID:  basis.AccountID,
				Value:      assessment.NewWatermark,
			}
		} else {
			wm.Advance(assessment.NewWatermark, schedule.HighWaterMark)
		}
		if err := s.watermarks.Save(ctx, wm); err != nil {
			return err
		}
	}
	return nil
}

// EvaluateOne 对单个 (费率表, 账户) 计提一个期间的费用。
// 已存在记录时返回 ConflictError，不会写入第二行。
func (s *FeeService) EvaluateOne(ctx context.Context, scheduleID, accountID string, p period.Period) (*domain.FeeTransaction, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	schedule, err := s.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if schedule.Status != domain.ScheduleStatusActive {
		return nil, finerrors.Preconditionf("fee schedule %s is not active", scheduleID)
	}
	existing, err := s.feeTxns.GetByKey(ctx, scheduleID, accountID, p)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, finerrors.Conflictf("fee for schedule %s account %s period %s already calculated", scheduleID, accountID, p)
	}

	navPerShare := decimal.Zero
	if schedule.Method.RequiresNAV() || schedule.Type == domain.FeeTypePerformance {
		navPerShare, err = s.nav.NAVPerShare(ctx, schedule.FundID, p.End)
		if err != nil {
			return nil, err
		}
	}
	bases, err := s.ledger.AccountBases(ctx, schedule.FundID, p.End, navPerShare)
	if err != nil {
		return nil, err
	}
	var basis *domain.AccountBasis
	for i := range bases {
		if bases[i].AccountID == accountID {
			basis = &bases[i]
			break
		}
	}
	if basis == nil {
		return nil, finerrors.NotFoundf("account %s not found in fund %s", accountID, schedule.FundID)
	}
	if !schedule.AppliesTo(basis.ClassID) {
		return nil, finerrors.Validationf("schedule %s does not apply to class %s", scheduleID, basis.ClassID)
	}

	summary := &EvaluationSummary{TotalFeeAmount: decimal.Zero}
	if err := s.assessOne(ctx, schedule, *basis, p, summary); err != nil {
		return nil, err
	}
	return s.feeTxns.GetByKey(ctx, scheduleID, accountID, p)
}

// Invoice 将费用记录流转为已开票。
func (s *FeeService) Invoice(ctx context.Context, feeTxnID string) (*domain.FeeTransaction, error) {
	return s.transition(ctx, feeTxnID, func(t *domain.FeeTransaction) error { return t.Invoice() })
}

// MarkPaid 将费用记录流转为已支付。
func (s *FeeService) MarkPaid(ctx context.Context, feeTxnID string, amount string) (*domain.FeeTransaction, error) {
	paid, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, finerrors.Validationf("invalid paid amount %q", amount)
	}
	return s.transition(ctx, feeTxnID, func(t *domain.FeeTransaction) error { return t.MarkPaid(paid) })
}

// Waive 豁免费用记录。
func (s *FeeService) Waive(ctx context.Context, feeTxnID string) (*domain.FeeTransaction, error) {
	return s.transition(ctx, feeTxnID, func(t *domain.FeeTransaction) error { return t.Waive() })
}

func (s *FeeService) transition(ctx context.Context, feeTxnID string, fn func(*domain.FeeTransaction) error) (*domain.FeeTransaction, error) {
	txn, err := s.feeTxns.Get(ctx, feeTxnID)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, finerrors.NotFoundf("fee transaction %s not found", feeTxnID)
	}
	if err := fn(txn); err != nil {
		return nil, err
	}
	if err := s.feeTxns.Update(ctx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

// ListByFundPeriod 查询基金在期间内的全部费用记录。
func (s *FeeService) ListByFundPeriod(ctx context.Context, fundID string, p period.Period) ([]*domain.FeeTransaction, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return s.feeTxns.ListByFundPeriod(ctx, fundID, p)
}

func anyRequiresNAV(schedules []*domain.FeeSchedule) bool {
	for _, s := range schedules {
		if s.Method.RequiresNAV() || s.Type == domain.FeeTypePerformance {
			return true
		}
	}
	return false
}

func parseFeeType(raw string) (domain.FeeType, error) {
	switch strings.ToLower(raw) {
	case "management":
		return domain.FeeTypeManagement, nil
	case "performance":
		return domain.FeeTypePerformance, nil
	case "admin":
		return domain.FeeTypeAdmin, nil
	case "custodian":
		return domain.FeeTypeCustodian, nil
	case "other":
		return domain.FeeTypeOther, nil
	default:
		return 0, finerrors.Validationf("invalid fee type %q", raw)
	}
}

func parseCalcMethod(raw string) (domain.CalcMethod, error) {
	switch strings.ToLower(raw) {
	case "pct_of_nav":
		return domain.CalcMethodPctOfNAV, nil
	case "pct_of_committed":
		return domain.CalcMethodPctOfCommitted, nil
	case "pct_of_invested":
		return domain.CalcMethodPctOfInvested, nil
	case "pct_of_gains":
		return domain.CalcMethodPctOfGains, nil
	default:
		return 0, finerrors.Validationf("invalid calc method %q", raw)
	}
}
