package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/fundadmin/internal/fee/domain"
	"github.com/wyfcoding/fundadmin/pkg/finerrors"
	"github.com/wyfcoding/fundadmin/pkg/period"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fakeScheduleRepo struct {
	schedules map[string]*domain.FeeSchedule
}

func newFakeScheduleRepo() *fakeScheduleRepo {
	return &fakeScheduleRepo{schedules: make(map[string]*domain.FeeSchedule)}
}

func (f *fakeScheduleRepo) Save(_ context.Context, s *domain.FeeSchedule) error {
	f.schedules[s.ScheduleID] = s
	return nil
}

func (f *fakeScheduleRepo) Get(_ context.Context, id string) (*domain.FeeSchedule, error) {
	return f.schedules[id], nil
}

func (f *fakeScheduleRepo) ListActiveOverlapping(_ context.Context, fundID string, p period.Period) ([]*domain.FeeSchedule, error) {
	var out []*domain.FeeSchedule
	for _, s := range f.schedules {
		if s.FundID == fundID && s.Status == domain.ScheduleStatusActive &&
			p.Overlaps(s.EffectiveFrom, s.EffectiveTo) {
			out = append(out, s)
		}
	}
	return out, nil
}

type feeKey struct {
	scheduleID, accountID string
	start, end            time.Time
}

type fakeFeeTxnRepo struct {
	byID  map[string]*domain.FeeTransaction
	byKey map[feeKey]*domain.FeeTransaction
}

func newFakeFeeTxnRepo() *fakeFeeTxnRepo {
	return &fakeFeeTxnRepo{
		byID:  make(map[string]*domain.FeeTransaction),
		byKey: make(map[feeKey]*domain.FeeTransaction),
	}
}

func (f *fakeFeeTxnRepo) key(t *domain.FeeTransaction) feeKey {
	return feeKey{t.ScheduleID, t.AccountID, t.PeriodStart, t.PeriodEnd}
}

func (f *fakeFeeTxnRepo) Create(_ context.Context, t *domain.FeeTransaction) error {
	k := f.key(t)
	if _, ok := f.byKey[k]; ok {
		return finerrors.Conflictf("fee for schedule %s account %s already exists", t.ScheduleID, t.AccountID)
	}
	f.byID[t.FeeTxnID] = t
	f.byKey[k] = t
	return nil
}

func (f *fakeFeeTxnRepo) Get(_ context.Context, id string) (*domain.FeeTransaction, error) {
	return f.byID[id], nil
}

func (f *fakeFeeTxnRepo) GetByKey(_ context.Context, scheduleID, accountID string, p period.Period) (*domain.FeeTransaction, error) {
	return f.byKey[feeKey{scheduleID, accountID, p.Start, p.End}], nil
}

func (f *fakeFeeTxnRepo) ListByFundPeriod(_ context.Context, fundID string, p period.Period) ([]*domain.FeeTransaction, error) {
	var out []*domain.FeeTransaction
	for _, t := range f.byID {
		if t.FundID == fundID && !t.PeriodStart.Before(p.Start) && !t.PeriodEnd.After(p.End) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeFeeTxnRepo) Update(_ context.Context, t *domain.FeeTransaction) error {
	f.byID[t.FeeTxnID] = t
	f.byKey[f.key(t)] = t
	return nil
}

type wmKey struct{ scheduleID, accountID string }

type fakeWatermarkRepo struct {
	marks map[wmKey]*domain.FeeWatermark
}

func newFakeWatermarkRepo() *fakeWatermarkRepo {
	return &fakeWatermarkRepo{marks: make(map[wmKey]*domain.FeeWatermark)}
}

func (f *fakeWatermarkRepo) Get(_ context.Context, scheduleID, accountID string) (*domain.FeeWatermark, error) {
	return f.marks[wmKey{scheduleID, accountID}], nil
}

func (f *fakeWatermarkRepo) Save(_ context.Context, wm *domain.FeeWatermark) error {
	f.marks[wmKey{wm.ScheduleID, wm.AccountID}] = wm
	return nil
}

type fakeLedgerGateway struct {
	bases         []domain.AccountBasis
	debits        map[string]decimal.Decimal
	failNextDebit bool
}

func (f *fakeLedgerGateway) AccountBases(_ context.Context, _ string, _ time.Time, nav decimal.Decimal) ([]domain.AccountBasis, error) {
	out := make([]domain.AccountBasis, len(f.bases))
	copy(out, f.bases)
	for i := range out {
		out[i].NAVPerShare = nav
	}
	return out, nil
}

// DebitFee 与真实网关一样按费用记录 ID 幂等。
func (f *fakeLedgerGateway) DebitFee(_ context.Context, _ string, feeTxnID string, amount decimal.Decimal, _ time.Time) error {
	if f.failNextDebit {
		f.failNextDebit = false
		return errors.New("ledger unavailable")
	}
	if f.debits == nil {
		f.debits = make(map[string]decimal.Decimal)
	}
	f.debits[feeTxnID] = amount
	return nil
}

type fakeNAVGateway struct {
	nav decimal.Decimal
}

func (f *fakeNAVGateway) NAVPerShare(_ context.Context, fundID string, cutoff time.Time) (decimal.Decimal, error) {
	if f.nav.IsZero() {
		return decimal.Zero, finerrors.Preconditionf("no nav mark for fund %s at or before %s", fundID, cutoff.Format("2006-01-02"))
	}
	return f.nav, nil
}

func q1() period.Period {
	return period.Period{
		Start: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC),
	}
}

func newTestService(nav string, bases ...domain.AccountBasis) (*FeeService, *fakeScheduleRepo, *fakeFeeTxnRepo, *fakeLedgerGateway) {
	schedules := newFakeScheduleRepo()
	feeTxns := newFakeFeeTxnRepo()
	ledger := &fakeLedgerGateway{bases: bases}
	navGw := &fakeNAVGateway{}
	if nav != "" {
		navGw.nav = dec(nav)
	}
	svc := NewFeeService(schedules, feeTxns, newFakeWatermarkRepo(), ledger, navGw)
	return svc, schedules, feeTxns, ledger
}

func mgmtSchedule() *domain.FeeSchedule {
	return &domain.FeeSchedule{
		ScheduleID:    "SCH-MGT",
		FundID:        "FND-1",
		Type:          domain.FeeTypeManagement,
		Method:        domain.CalcMethodPctOfNAV,
		AnnualRate:    dec("0.02"),
		Frequency:     period.FrequencyQuarterly,
		EffectiveFrom: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		Status:        domain.ScheduleStatusActive,
	}
}

func TestEvaluatePeriod(t *testing.T) {
	ctx := context.Background()
	svc, schedules, feeTxns, ledger := newTestService("105",
		domain.AccountBasis{AccountID: "ACC-1", ClassID: "CLS-A", Shares: dec("10000")},
		domain.AccountBasis{AccountID: "ACC-2", ClassID: "CLS-B", Shares: dec("5000")},
	)
	_ = schedules.Save(ctx, mgmtSchedule())

	summary, err := svc.EvaluatePeriod(ctx, "FND-1", q1())
	if err != nil {
		t.Fatalf("EvaluatePeriod: %v", err)
	}
	if summary.FeesEmitted != 2 {
		t.Fatalf("fees emitted = %d, want 2", summary.FeesEmitted)
	}
	// ACC-1: 10000×105×0.005 = 5250; ACC-2: 5000×105×0.005 = 2625
	if !summary.TotalFeeAmount.Equal(dec("7875")) {
		t.Errorf("total = %s, want 7875", summary.TotalFeeAmount)
	}
	if len(ledger.debits) != 2 {
		t.Errorf("ledger debits = %d, want 2", len(ledger.debits))
	}

	t.Run("rerun is idempotent", func(t *testing.T) {
		again, err := svc.EvaluatePeriod(ctx, "FND-1", q1())
		if err != nil {
			t.Fatalf("EvaluatePeriod rerun: %v", err)
		}
		if again.FeesEmitted != 0 || again.AlreadyProcessed != 2 {
			t.Errorf("rerun emitted=%d processed=%d, want 0/2", again.FeesEmitted, again.AlreadyProcessed)
		}
		if len(feeTxns.byID) != 2 {
			t.Errorf("fee rows = %d, want 2 after rerun", len(feeTxns.byID))
		}
	})
}

func TestEvaluatePeriodClassScoping(t *testing.T) {
	ctx := context.Background()
	svc, schedules, _, _ := newTestService("100",
		domain.AccountBasis{AccountID: "ACC-1", ClassID: "CLS-A", Shares: dec("1000")},
		domain.AccountBasis{AccountID: "ACC-2", ClassID: "CLS-B", Shares: dec("1000")},
	)
	s := mgmtSchedule()
	s.ClassID = "CLS-A"
	_ = schedules.Save(ctx, s)

	summary, err := svc.EvaluatePeriod(ctx, "FND-1", q1())
	if err != nil {
		t.Fatalf("EvaluatePeriod: %v", err)
	}
	if summary.FeesEmitted != 1 {
		t.Errorf("fees emitted = %d, want 1 (class scoped)", summary.FeesEmitted)
	}
}

func TestEvaluatePeriodMissingNAV(t *testing.T) {
	ctx := context.Background()
	svc, schedules, _, _ := newTestService("",
		domain.AccountBasis{AccountID: "ACC-1", ClassID: "CLS-A", Shares: dec("1000"), Commitment: dec("1000000")},
	)
	_ = schedules.Save(ctx, mgmtSchedule())
	committed := &domain.FeeSchedule{
		ScheduleID:    "SCH-CMT",
		FundID:        "FND-1",
		Type:          domain.FeeTypeAdmin,
		Method:        domain.CalcMethodPctOfCommitted,
		AnnualRate:    dec("0.004"),
		Frequency:     period.FrequencyQuarterly,
		EffectiveFrom: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		Status:        domain.ScheduleStatusActive,
	}
	_ = schedules.Save(ctx, committed)

	summary, err := svc.EvaluatePeriod(ctx, "FND-1", q1())
	if err != nil {
		t.Fatalf("EvaluatePeriod: %v", err)
	}
	if len(summary.Skipped) != 1 || summary.Skipped[0].ScheduleID != "SCH-MGT" {
		t.Fatalf("skipped = %+v, want the nav-based schedule", summary.Skipped)
	}
	// 按认缴的费率表不依赖净值，仍应计提：1,000,000 × 0.001 = 1,000
	if summary.FeesEmitted != 1 {
		t.Errorf("fees emitted = %d, want 1", summary.FeesEmitted)
	}
	if !summary.TotalFeeAmount.Equal(dec("1000")) {
		t.Errorf("total = %s, want 1000", summary.TotalFeeAmount)
	}
}

func TestEvaluatePeriodPerformanceWatermark(t *testing.T) {
	ctx := context.Background()
	schedules := newFakeScheduleRepo()
	feeTxns := newFakeFeeTxnRepo()
	watermarks := newFakeWatermarkRepo()
	ledger := &fakeLedgerGateway{bases: []domain.AccountBasis{
		{AccountID: "ACC-1", ClassID: "CLS-A", Shares: dec("1000")},
	}}
	navGw := &fakeNAVGateway{nav: dec("100")}
	svc := NewFeeService(schedules, feeTxns, watermarks, ledger, navGw)

	perf := &domain.FeeSchedule{
		ScheduleID:    "SCH-PRF",
		FundID:        "FND-1",
		Type:          domain.FeeTypePerformance,
		Method:        domain.CalcMethodPctOfGains,
		AnnualRate:    dec("0.20"),
		Frequency:     period.FrequencyAnnual,
		HighWaterMark: true,
		EffectiveFrom: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		Status:        domain.ScheduleStatusActive,
	}
	_ = schedules.Save(ctx, perf)

	y2025 := period.Period{
		Start: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC),
	}
	summary, err := svc.EvaluatePeriod(ctx, "FND-1", y2025)
	if err != nil {
		t.Fatalf("EvaluatePeriod: %v", err)
	}
	if summary.FeesEmitted != 0 {
		t.Fatalf("first evaluation must only seed the baseline, emitted %d", summary.FeesEmitted)
	}
	wm, _ := watermarks.Get(ctx, "SCH-PRF", "ACC-1")
	if wm == nil || !wm.Value.Equal(dec("100")) {
		t.Fatalf("baseline = %+v, want 100", wm)
	}

	// 次年净值升至 120：对超额 20/份 计提 20%
	navGw.nav = dec("120")
	y2026 := period.Period{
		Start: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC),
	}
	summary, err = svc.EvaluatePeriod(ctx, "FND-1", y2026)
	if err != nil {
		t.Fatalf("EvaluatePeriod year 2: %v", err)
	}
	if summary.FeesEmitted != 1 {
		t.Fatalf("fees emitted = %d, want 1", summary.FeesEmitted)
	}
	if !summary.TotalFeeAmount.Equal(dec("4000")) {
		t.Errorf("total = %s, want 4000", summary.TotalFeeAmount)
	}
	wm, _ = watermarks.Get(ctx, "SCH-PRF", "ACC-1")
	if !wm.Value.Equal(dec("120")) {
		t.Errorf("watermark = %s, want 120", wm.Value)
	}
}

func TestEvaluatePeriodReplaysDebitAfterPartialFailure(t *testing.T) {
	ctx := context.Background()
	svc, schedules, feeTxns, ledger := newTestService("105",
		domain.AccountBasis{AccountID: "ACC-1", ClassID: "CLS-A", Shares: dec("10000")},
	)
	_ = schedules.Save(ctx, mgmtSchedule())

	// 费用落库后台账扣收失败：批次报错，但费用记录已存在
	ledger.failNextDebit = true
	if _, err := svc.EvaluatePeriod(ctx, "FND-1", q1()); err == nil {
		t.Fatal("expected error when ledger debit fails")
	}
	if len(feeTxns.byID) != 1 {
		t.Fatalf("fee rows = %d, want 1 after partial failure", len(feeTxns.byID))
	}
	if len(ledger.debits) != 0 {
		t.Fatalf("debits = %d, want 0 after partial failure", len(ledger.debits))
	}

	// 重入：费用记录计入 AlreadyProcessed，缺失的扣收被补放
	summary, err := svc.EvaluatePeriod(ctx, "FND-1", q1())
	if err != nil {
		t.Fatalf("EvaluatePeriod retry: %v", err)
	}
	if summary.FeesEmitted != 0 || summary.AlreadyProcessed != 1 {
		t.Fatalf("retry emitted=%d processed=%d, want 0/1", summary.FeesEmitted, summary.AlreadyProcessed)
	}
	if len(ledger.debits) != 1 {
		t.Fatalf("debits = %d, want the missing debit replayed", len(ledger.debits))
	}
	for id, amount := range ledger.debits {
		if !amount.Equal(dec("5250")) {
			t.Errorf("replayed debit %s = %s, want 5250", id, amount)
		}
	}

	t.Run("replay is a no-op once delivered", func(t *testing.T) {
		again, err := svc.EvaluatePeriod(ctx, "FND-1", q1())
		if err != nil {
			t.Fatalf("EvaluatePeriod: %v", err)
		}
		if again.AlreadyProcessed != 1 || len(ledger.debits) != 1 {
			t.Errorf("processed=%d debits=%d, want 1/1", again.AlreadyProcessed, len(ledger.debits))
		}
	})
}

func TestEvaluateOneConflict(t *testing.T) {
	ctx := context.Background()
	svc, schedules, _, _ := newTestService("105",
		domain.AccountBasis{AccountID: "ACC-1", ClassID: "CLS-A", Shares: dec("10000")},
	)
	_ = schedules.Save(ctx, mgmtSchedule())

	txn, err := svc.EvaluateOne(ctx, "SCH-MGT", "ACC-1", q1())
	if err != nil {
		t.Fatalf("EvaluateOne: %v", err)
	}
	if txn == nil || !txn.FeeAmount.Equal(dec("5250")) {
		t.Fatalf("fee = %+v, want 5250", txn)
	}

	if _, err := svc.EvaluateOne(ctx, "SCH-MGT", "ACC-1", q1()); !finerrors.IsConflict(err) {
		t.Errorf("expected ConflictError on rerun, got %v", err)
	}
}

func TestFeeLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, schedules, _, _ := newTestService("105",
		domain.AccountBasis{AccountID: "ACC-1", ClassID: "CLS-A", Shares: dec("10000")},
	)
	_ = schedules.Save(ctx, mgmtSchedule())
	txn, err := svc.EvaluateOne(ctx, "SCH-MGT", "ACC-1", q1())
	if err != nil {
		t.Fatalf("EvaluateOne: %v", err)
	}

	if _, err := svc.Invoice(ctx, txn.FeeTxnID); err != nil {
		t.Fatalf("Invoice: %v", err)
	}
	paid, err := svc.MarkPaid(ctx, txn.FeeTxnID, "5250")
	if err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if paid.Status != domain.FeeStatusPaid {
		t.Errorf("status = %s, want PAID", paid.Status)
	}
	if _, err := svc.Waive(ctx, txn.FeeTxnID); !finerrors.IsValidation(err) {
		t.Errorf("expected ValidationError waiving a paid fee, got %v", err)
	}
}
