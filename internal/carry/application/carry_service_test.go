package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/fundadmin/internal/carry/domain"
	"github.com/wyfcoding/fundadmin/pkg/finerrors"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fakeCarryAccountRepo struct {
	accounts map[string]*domain.CarriedInterestAccount
}

func newFakeCarryAccountRepo() *fakeCarryAccountRepo {
	return &fakeCarryAccountRepo{accounts: make(map[string]*domain.CarriedInterestAccount)}
}

// 存取都走副本，未落库的内存修改不会渗入仓储
func cloneAccount(a *domain.CarriedInterestAccount) *domain.CarriedInterestAccount {
	c := *a
	return &c
}

func (f *fakeCarryAccountRepo) Save(_ context.Context, a *domain.CarriedInterestAccount) error {
	f.accounts[a.CarryAccountID] = cloneAccount(a)
	return nil
}

func (f *fakeCarryAccountRepo) Get(_ context.Context, id string) (*domain.CarriedInterestAccount, error) {
	if a, ok := f.accounts[id]; ok {
		return cloneAccount(a), nil
	}
	return nil, nil
}

func (f *fakeCarryAccountRepo) GetByFund(_ context.Context, fundID string) (*domain.CarriedInterestAccount, error) {
	for _, a := range f.accounts {
		if a.FundID == fundID {
			return cloneAccount(a), nil
		}
	}
	return nil, nil
}

type fakeWaterfallRepo struct {
	waterfalls []*domain.WaterfallCalculation
}

func (f *fakeWaterfallRepo) Save(_ context.Context, wf *domain.WaterfallCalculation) error {
	for i, w := range f.waterfalls {
		if w.FundID == wf.FundID && w.CalcDate.Equal(wf.CalcDate) {
			f.waterfalls[i] = wf
			return nil
		}
	}
	f.waterfalls = append(f.waterfalls, wf)
	return nil
}

func (f *fakeWaterfallRepo) LatestAsOf(_ context.Context, fundID string, asOf time.Time) (*domain.WaterfallCalculation, error) {
	var latest *domain.WaterfallCalculation
	for _, w := range f.waterfalls {
		if w.FundID != fundID || w.CalcDate.After(asOf) {
			continue
		}
		if latest == nil || w.CalcDate.After(latest.CalcDate) {
			latest = w
		}
	}
	return latest, nil
}

func (f *fakeWaterfallRepo) ListByFund(_ context.Context, fundID string, _ int) ([]*domain.WaterfallCalculation, error) {
	var out []*domain.WaterfallCalculation
	for _, w := range f.waterfalls {
		if w.FundID == fundID {
			out = append(out, w)
		}
	}
	return out, nil
}

type fakeClawbackRepo struct {
	provisions map[string]*domain.ClawbackProvision
	accounts   *fakeCarryAccountRepo
	failNextTx bool
}

func newFakeClawbackRepo(accounts *fakeCarryAccountRepo) *fakeClawbackRepo {
	return &fakeClawbackRepo{
		provisions: make(map[string]*domain.ClawbackProvision),
		accounts:   accounts,
	}
}

func cloneProvision(p *domain.ClawbackProvision) *domain.ClawbackProvision {
	c := *p
	return &c
}

func (f *fakeClawbackRepo) Create(_ context.Context, p *domain.ClawbackProvision) error {
	f.provisions[p.ProvisionID] = cloneProvision(p)
	return nil
}

func (f *fakeClawbackRepo) Get(_ context.Context, id string) (*domain.ClawbackProvision, error) {
	if p, ok := f.provisions[id]; ok {
		return cloneProvision(p), nil
	}
	return nil, nil
}

func (f *fakeClawbackRepo) ListByAccount(_ context.Context, carryAccountID string) ([]*domain.ClawbackProvision, error) {
	var out []*domain.ClawbackProvision
	for _, p := range f.provisions {
		if p.CarryAccountID == carryAccountID {
			out = append(out, cloneProvision(p))
		}
	}
	return out, nil
}

func (f *fakeClawbackRepo) Update(_ context.Context, p *domain.ClawbackProvision) error {
	f.provisions[p.ProvisionID] = cloneProvision(p)
	return nil
}

func (f *fakeClawbackRepo) UpdateWithAccount(ctx context.Context, p *domain.ClawbackProvision, a *domain.CarriedInterestAccount) error {
	if f.failNextTx {
		f.failNextTx = false
		return errors.New("tx commit failed")
	}
	if err := f.Update(ctx, p); err != nil {
		return err
	}
	return f.accounts.Save(ctx, a)
}

type fakeFundValue struct {
	value decimal.Decimal
}

func (f *fakeFundValue) FundValueAsOf(_ context.Context, fundID string, asOf time.Time) (decimal.Decimal, error) {
	if f.value.IsZero() {
		return decimal.Zero, finerrors.Preconditionf("no nav mark for fund %s at or before %s", fundID, asOf.Format("2006-01-02"))
	}
	return f.value, nil
}

func newCarryFixture(t *testing.T, fundValue string) (*CarryService, *domain.CarriedInterestAccount) {
	t.Helper()
	accounts := newFakeCarryAccountRepo()
	fv := &fakeFundValue{}
	if fundValue != "" {
		fv.value = dec(fundValue)
	}
	svc := NewCarryService(accounts, &fakeWaterfallRepo{}, newFakeClawbackRepo(accounts), fv)
	account, err := svc.OpenAccount(context.Background(), &OpenCarryAccountRequest{FundID: "FND-1", GPEntityID: "GP-1"})
	if err != nil {
		t.Fatalf("OpenAccount: %v", err)
	}
	return svc, account
}

func ingest(t *testing.T, svc *CarryService, calcDate, gp string) {
	t.Helper()
	if _, err := svc.IngestWaterfall(context.Background(), &IngestWaterfallRequest{
		FundID: "FND-1", CalcDate: calcDate,
		GPAllocation: gp, LPAllocation: "0", TotalDistributed: gp,
	}); err != nil {
		t.Fatalf("IngestWaterfall: %v", err)
	}
}

func TestOpenAccountOnePerFund(t *testing.T) {
	svc, _ := newCarryFixture(t, "")
	_, err := svc.OpenAccount(context.Background(), &OpenCarryAccountRequest{FundID: "FND-1", GPEntityID: "GP-2"})
	if !finerrors.IsConflict(err) {
		t.Errorf("expected ConflictError for second carry account, got %v", err)
	}
}

func TestAccrue(t *testing.T) {
	ctx := context.Background()
	asOf := time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC)

	t.Run("no waterfall is a precondition failure", func(t *testing.T) {
		svc, _ := newCarryFixture(t, "")
		if _, err := svc.Accrue(ctx, "FND-1", asOf); !finerrors.IsPrecondition(err) {
			t.Errorf("expected PreconditionFailed, got %v", err)
		}
	})

	t.Run("accrues the gp allocation delta", func(t *testing.T) {
		svc, _ := newCarryFixture(t, "5000000")
		ingest(t, svc, "2025-03-31", "300000")

		res, err := svc.Accrue(ctx, "FND-1", asOf)
		if err != nil {
			t.Fatalf("Accrue: %v", err)
		}
		if !res.AccrualDelta.Equal(dec("300000")) || !res.TotalAccrued.Equal(dec("300000")) {
			t.Errorf("delta=%s total=%s, want 300000/300000", res.AccrualDelta, res.TotalAccrued)
		}
		if !res.HighWaterMark.Equal(dec("5000000")) {
			t.Errorf("high-water mark = %s, want 5000000", res.HighWaterMark)
		}

		// 第二次瀑布：已赚取 420,000，增量 120,000
		ingest(t, svc, "2025-06-30", "420000")
		res, err = svc.Accrue(ctx, "FND-1", time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC))
		if err != nil {
			t.Fatalf("Accrue q2: %v", err)
		}
		if !res.AccrualDelta.Equal(dec("120000")) || !res.TotalAccrued.Equal(dec("420000")) {
			t.Errorf("delta=%s total=%s, want 120000/420000", res.AccrualDelta, res.TotalAccrued)
		}
	})

	t.Run("missing fund value leaves the high-water mark alone", func(t *testing.T) {
		svc, _ := newCarryFixture(t, "")
		ingest(t, svc, "2025-03-31", "100000")
		res, err := svc.Accrue(ctx, "FND-1", asOf)
		if err != nil {
			t.Fatalf("Accrue: %v", err)
		}
		if !res.HighWaterMark.IsZero() {
			t.Errorf("high-water mark = %s, want 0", res.HighWaterMark)
		}
	})

	t.Run("suspended account does not accrue", func(t *testing.T) {
		svc, account := newCarryFixture(t, "5000000")
		ingest(t, svc, "2025-03-31", "100000")
		if _, err := svc.Suspend(ctx, account.CarryAccountID); err != nil {
			t.Fatalf("Suspend: %v", err)
		}
		if _, err := svc.Accrue(ctx, "FND-1", asOf); !finerrors.IsPrecondition(err) {
			t.Errorf("expected PreconditionFailed, got %v", err)
		}
	})
}

func TestDetectClawback(t *testing.T) {
	ctx := context.Background()
	asOf := time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC)

	t.Run("over-distribution raises a provision", func(t *testing.T) {
		svc, account := newCarryFixture(t, "5000000")
		ingest(t, svc, "2025-12-31", "420000")
		if _, err := svc.RecordDistribution(ctx, account.CarryAccountID, &RecordDistributionRequest{
			Amount: "500000", Date: "2025-11-15",
		}); err != nil {
			t.Fatalf("RecordDistribution: %v", err)
		}

		provision, err := svc.DetectClawback(ctx, account.CarryAccountID, asOf)
		if err != nil {
			t.Fatalf("DetectClawback: %v", err)
		}
		if provision == nil {
			t.Fatal("expected a clawback provision")
		}
		if !provision.ClawbackAmount.Equal(dec("80000")) {
			t.Errorf("clawback = %s, want 80000", provision.ClawbackAmount)
		}
		if !provision.DistributedSnapshot.Equal(dec("500000")) || !provision.EarnedSnapshot.Equal(dec("420000")) {
			t.Errorf("snapshots = %s/%s, want 500000/420000", provision.DistributedSnapshot, provision.EarnedSnapshot)
		}
		if provision.Status != domain.ClawbackStatusCalculated {
			t.Errorf("status = %s, want CALCULATED", provision.Status)
		}

		// 检测不改变账户状态
		got, _ := svc.GetAccount(ctx, account.CarryAccountID)
		if got.Status != domain.CarryStatusActive {
			t.Errorf("account status = %s, want ACTIVE", got.Status)
		}
	})

	t.Run("distribution within earnings yields no provision", func(t *testing.T) {
		svc, account := newCarryFixture(t, "5000000")
		ingest(t, svc, "2025-12-31", "420000")
		_, _ = svc.RecordDistribution(ctx, account.CarryAccountID, &RecordDistributionRequest{
			Amount: "400000", Date: "2025-11-15",
		})
		provision, err := svc.DetectClawback(ctx, account.CarryAccountID, asOf)
		if err != nil {
			t.Fatalf("DetectClawback: %v", err)
		}
		if provision != nil {
			t.Errorf("expected no provision, got %+v", provision)
		}
	})

	t.Run("no waterfall is a precondition failure", func(t *testing.T) {
		svc, account := newCarryFixture(t, "")
		if _, err := svc.DetectClawback(ctx, account.CarryAccountID, asOf); !finerrors.IsPrecondition(err) {
			t.Errorf("expected PreconditionFailed, got %v", err)
		}
	})
}

func TestClawbackPaymentAccretesReserve(t *testing.T) {
	ctx := context.Background()
	svc, account := newCarryFixture(t, "5000000")
	ingest(t, svc, "2025-12-31", "420000")
	_, _ = svc.RecordDistribution(ctx, account.CarryAccountID, &RecordDistributionRequest{
		Amount: "500000", Date: "2025-11-15",
	})
	provision, err := svc.DetectClawback(ctx, account.CarryAccountID, time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC))
	if err != nil || provision == nil {
		t.Fatalf("DetectClawback: %v %v", provision, err)
	}

	if _, err := svc.NotifyClawback(ctx, provision.ProvisionID); err != nil {
		t.Fatalf("NotifyClawback: %v", err)
	}

	t.Run("overpayment is rejected", func(t *testing.T) {
		_, err := svc.PayClawback(ctx, provision.ProvisionID, &PayClawbackRequest{Amount: "90000"})
		if !finerrors.IsValidation(err) {
			t.Errorf("expected ValidationError, got %v", err)
		}
	})

	paid, err := svc.PayClawback(ctx, provision.ProvisionID, &PayClawbackRequest{Amount: "80000"})
	if err != nil {
		t.Fatalf("PayClawback: %v", err)
	}
	if paid.Status != domain.ClawbackStatusPaid {
		t.Errorf("status = %s, want PAID", paid.Status)
	}
	got, _ := svc.GetAccount(ctx, account.CarryAccountID)
	if !got.ClawbackReserve.Equal(dec("80000")) {
		t.Errorf("clawback reserve = %s, want 80000", got.ClawbackReserve)
	}
}

func TestPayClawbackFailedCommitStaysPayable(t *testing.T) {
	ctx := context.Background()
	accounts := newFakeCarryAccountRepo()
	clawbacks := newFakeClawbackRepo(accounts)
	svc := NewCarryService(accounts, &fakeWaterfallRepo{}, clawbacks, &fakeFundValue{value: dec("5000000")})
	account, err := svc.OpenAccount(ctx, &OpenCarryAccountRequest{FundID: "FND-1", GPEntityID: "GP-1"})
	if err != nil {
		t.Fatalf("OpenAccount: %v", err)
	}
	ingest(t, svc, "2025-12-31", "420000")
	if _, err := svc.RecordDistribution(ctx, account.CarryAccountID, &RecordDistributionRequest{
		Amount: "500000", Date: "2025-11-15",
	}); err != nil {
		t.Fatalf("RecordDistribution: %v", err)
	}
	provision, err := svc.DetectClawback(ctx, account.CarryAccountID, time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC))
	if err != nil || provision == nil {
		t.Fatalf("DetectClawback: %v %v", provision, err)
	}
	if _, err := svc.NotifyClawback(ctx, provision.ProvisionID); err != nil {
		t.Fatalf("NotifyClawback: %v", err)
	}

	clawbacks.failNextTx = true
	if _, err := svc.PayClawback(ctx, provision.ProvisionID, &PayClawbackRequest{Amount: "80000"}); err == nil {
		t.Fatal("expected error when the payment commit fails")
	}
	stored, _ := clawbacks.Get(ctx, provision.ProvisionID)
	if stored.Status != domain.ClawbackStatusNotified {
		t.Errorf("status = %s, want NOTIFIED after a failed payment", stored.Status)
	}
	got, _ := svc.GetAccount(ctx, account.CarryAccountID)
	if !got.ClawbackReserve.IsZero() {
		t.Errorf("clawback reserve = %s, want 0 after a failed payment", got.ClawbackReserve)
	}

	t.Run("retry pays and accretes the reserve", func(t *testing.T) {
		paid, err := svc.PayClawback(ctx, provision.ProvisionID, &PayClawbackRequest{Amount: "80000"})
		if err != nil {
			t.Fatalf("PayClawback retry: %v", err)
		}
		if paid.Status != domain.ClawbackStatusPaid || !paid.PaidAmount.Equal(dec("80000")) {
			t.Errorf("provision = %s paid %s, want PAID 80000", paid.Status, paid.PaidAmount)
		}
		got, _ := svc.GetAccount(ctx, account.CarryAccountID)
		if !got.ClawbackReserve.Equal(dec("80000")) {
			t.Errorf("clawback reserve = %s, want 80000", got.ClawbackReserve)
		}
	})
}
