package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/fundadmin/internal/statement/domain"
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

type stmtKey struct {
	accountID  string
	start, end time.Time
	version    int
}

type fakeStatementRepo struct {
	byID  map[string]*domain.InvestorStatement
	byKey map[stmtKey]*domain.InvestorStatement
}

func newFakeStatementRepo() *fakeStatementRepo {
	return &fakeStatementRepo{
		byID:  make(map[string]*domain.InvestorStatement),
		byKey: make(map[stmtKey]*domain.InvestorStatement),
	}
}

func (f *fakeStatementRepo) key(st *domain.InvestorStatement) stmtKey {
	return stmtKey{st.AccountID, st.PeriodStart, st.PeriodEnd, st.Version}
}

// 存取都走副本，未提交的内存修改不会渗入仓储
func cloneStatement(st *domain.InvestorStatement) *domain.InvestorStatement {
	c := *st
	return &c
}

func (f *fakeStatementRepo) Create(_ context.Context, st *domain.InvestorStatement) error {
	k := f.key(st)
	if _, ok := f.byKey[k]; ok {
		return finerrors.Conflictf("statement for account %s version %d already exists", st.AccountID, st.Version)
	}
	stored := cloneStatement(st)
	f.byID[st.StatementID] = stored
	f.byKey[k] = stored
	return nil
}

func (f *fakeStatementRepo) Get(_ context.Context, id string) (*domain.InvestorStatement, error) {
	if st, ok := f.byID[id]; ok {
		return cloneStatement(st), nil
	}
	return nil, nil
}

func (f *fakeStatementRepo) LatestByKey(_ context.Context, accountID string, p period.Period) (*domain.InvestorStatement, error) {
	var latest *domain.InvestorStatement
	for _, st := range f.byID {
		if st.AccountID == accountID && st.PeriodStart.Equal(p.Start) && st.PeriodEnd.Equal(p.End) {
			if latest == nil || st.Version > latest.Version {
				latest = st
			}
		}
	}
	if latest == nil {
		return nil, nil
	}
	return cloneStatement(latest), nil
}

func (f *fakeStatementRepo) ListByFundPeriod(_ context.Context, fundID string, p period.Period) ([]*domain.InvestorStatement, error) {
	var out []*domain.InvestorStatement
	for _, st := range f.byID {
		if st.FundID == fundID && st.PeriodStart.Equal(p.Start) && st.PeriodEnd.Equal(p.End) {
			out = append(out, cloneStatement(st))
		}
	}
	return out, nil
}

func (f *fakeStatementRepo) ListByAccount(_ context.Context, accountID string) ([]*domain.InvestorStatement, error) {
	var out []*domain.InvestorStatement
	for _, st := range f.byID {
		if st.AccountID == accountID {
			out = append(out, cloneStatement(st))
		}
	}
	return out, nil
}

func (f *fakeStatementRepo) Update(_ context.Context, st *domain.InvestorStatement) error {
	stored := cloneStatement(st)
	f.byID[st.StatementID] = stored
	f.byKey[f.key(st)] = stored
	return nil
}

func (f *fakeStatementRepo) UpdateInTx(ctx context.Context, st *domain.InvestorStatement, fn func(tx any) error) error {
	if err := fn(nil); err != nil {
		return err
	}
	return f.Update(ctx, st)
}

type fakeStmtLedger struct {
	activities []domain.AccountActivity
}

func (f *fakeStmtLedger) FundActivity(_ context.Context, _ string, _ period.Period) ([]domain.AccountActivity, error) {
	out := make([]domain.AccountActivity, len(f.activities))
	copy(out, f.activities)
	return out, nil
}

type fakeStmtNAV struct {
	// 按日期索引的每份净值
	marks map[string]decimal.Decimal
}

func (f *fakeStmtNAV) NAVPerShare(_ context.Context, fundID string, cutoff time.Time) (decimal.Decimal, error) {
	if nav, ok := f.marks[cutoff.Format("2006-01-02")]; ok {
		return nav, nil
	}
	return decimal.Zero, finerrors.Preconditionf("no nav mark for fund %s at or before %s", fundID, cutoff.Format("2006-01-02"))
}

type publishedEvent struct {
	topic string
	key   string
	event any
}

type fakePublisher struct {
	events   []publishedEvent
	failNext bool
}

func (f *fakePublisher) PublishInTx(_ context.Context, _ any, topic, key string, event any) error {
	if f.failNext {
		f.failNext = false
		return errors.New("outbox insert failed")
	}
	f.events = append(f.events, publishedEvent{topic, key, event})
	return nil
}

func q1() period.Period {
	return period.Period{
		Start: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC),
	}
}

func activity() domain.AccountActivity {
	return domain.AccountActivity{
		AccountID:       "ACC-1",
		SharesBeginning: dec("1000"),
		SharesEnding:    dec("1100"),
		Contributions:   dec("10000"),
		Distributions:   dec("2000"),
		Fees:            dec("500"),
	}
}

func newStmtFixture(activities ...domain.AccountActivity) (*StatementService, *fakeStatementRepo, *fakePublisher) {
	repo := newFakeStatementRepo()
	publisher := &fakePublisher{}
	nav := &fakeStmtNAV{marks: map[string]decimal.Decimal{
		"2024-12-31": dec("100"),
		"2025-03-31": dec("105"),
	}}
	svc := NewStatementService(repo, &fakeStmtLedger{activities: activities}, nav, publisher)
	return svc, repo, publisher
}

func TestGeneratePeriod(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newStmtFixture(activity())

	summary, err := svc.GeneratePeriod(ctx, "FND-1", q1())
	if err != nil {
		t.Fatalf("GeneratePeriod: %v", err)
	}
	if summary.Generated != 1 || len(summary.Failed) != 0 {
		t.Fatalf("summary = %+v, want 1 generated", summary)
	}

	st, _ := repo.LatestByKey(ctx, "ACC-1", q1())
	if st == nil {
		t.Fatal("statement not created")
	}
	if !st.BeginningBalance.Equal(dec("100000")) || !st.EndingBalance.Equal(dec("115500")) {
		t.Errorf("balances = %s/%s, want 100000/115500", st.BeginningBalance, st.EndingBalance)
	}
	if !st.ReturnAmount.Equal(dec("8000")) {
		t.Errorf("return = %s, want 8000", st.ReturnAmount)
	}
	if !st.ReturnPercent.Equal(dec("8")) {
		t.Errorf("return %% = %s, want 8", st.ReturnPercent)
	}
	if st.Status != domain.StatementStatusDraft || st.Version != 1 {
		t.Errorf("status=%s version=%d, want DRAFT v1", st.Status, st.Version)
	}

	t.Run("rerun regenerates the draft in place", func(t *testing.T) {
		again, err := svc.GeneratePeriod(ctx, "FND-1", q1())
		if err != nil {
			t.Fatalf("GeneratePeriod rerun: %v", err)
		}
		if again.Generated != 1 {
			t.Errorf("rerun generated = %d, want 1", again.Generated)
		}
		if len(repo.byID) != 1 {
			t.Errorf("statement rows = %d, want 1 after rerun", len(repo.byID))
		}
	})

	t.Run("finalized statement is skipped on rerun", func(t *testing.T) {
		if _, err := svc.Finalize(ctx, st.StatementID); err != nil {
			t.Fatalf("Finalize: %v", err)
		}
		again, err := svc.GeneratePeriod(ctx, "FND-1", q1())
		if err != nil {
			t.Fatalf("GeneratePeriod after finalize: %v", err)
		}
		if again.AlreadyFinal != 1 || again.Generated != 0 {
			t.Errorf("summary = %+v, want 1 already final", again)
		}
	})
}

func TestGeneratePeriodMissingNAV(t *testing.T) {
	ctx := context.Background()

	t.Run("missing period end nav aborts", func(t *testing.T) {
		repo := newFakeStatementRepo()
		nav := &fakeStmtNAV{marks: map[string]decimal.Decimal{"2024-12-31": dec("100")}}
		svc := NewStatementService(repo, &fakeStmtLedger{activities: []domain.AccountActivity{activity()}}, nav, &fakePublisher{})
		if _, err := svc.GeneratePeriod(ctx, "FND-1", q1()); !finerrors.IsPrecondition(err) {
			t.Errorf("expected PreconditionFailed, got %v", err)
		}
		if len(repo.byID) != 0 {
			t.Error("no rows may be written when the period end nav is missing")
		}
	})

	t.Run("missing prior nav fails only accounts with an opening position", func(t *testing.T) {
		repo := newFakeStatementRepo()
		nav := &fakeStmtNAV{marks: map[string]decimal.Decimal{"2025-03-31": dec("105")}}
		opened := domain.AccountActivity{
			AccountID:         "ACC-2",
			SharesEnding:      dec("500"),
			Contributions:     dec("50000"),
			InceptionInPeriod: true,
		}
		svc := NewStatementService(repo, &fakeStmtLedger{activities: []domain.AccountActivity{activity(), opened}}, nav, &fakePublisher{})

		summary, err := svc.GeneratePeriod(ctx, "FND-1", q1())
		if err != nil {
			t.Fatalf("GeneratePeriod: %v", err)
		}
		if summary.Generated != 1 || len(summary.Failed) != 1 {
			t.Fatalf("summary = %+v, want 1 generated 1 failed", summary)
		}
		if summary.Failed[0].AccountID != "ACC-1" {
			t.Errorf("failed account = %s, want ACC-1", summary.Failed[0].AccountID)
		}
	})
}

func TestGenerateAccountConflictAfterFinalize(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newStmtFixture(activity())
	st, err := svc.GenerateAccount(ctx, "FND-1", "ACC-1", q1())
	if err != nil {
		t.Fatalf("GenerateAccount: %v", err)
	}
	if _, err := svc.Finalize(ctx, st.StatementID); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if _, err := svc.GenerateAccount(ctx, "FND-1", "ACC-1", q1()); !finerrors.IsConflict(err) {
		t.Errorf("expected ConflictError regenerating a finalized statement, got %v", err)
	}
}

func TestFinalizePublishesEvent(t *testing.T) {
	ctx := context.Background()
	svc, _, publisher := newStmtFixture(activity())
	st, _ := svc.GenerateAccount(ctx, "FND-1", "ACC-1", q1())

	if _, err := svc.Finalize(ctx, st.StatementID); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("published events = %d, want 1", len(publisher.events))
	}
	if publisher.events[0].topic != TopicStatementFinalized {
		t.Errorf("topic = %s, want %s", publisher.events[0].topic, TopicStatementFinalized)
	}
	event, ok := publisher.events[0].event.(*StatementFinalizedEvent)
	if !ok || event.StatementID != st.StatementID {
		t.Errorf("event = %+v", publisher.events[0].event)
	}
}

func TestFinalizeKeepsDraftWhenEventRegistrationFails(t *testing.T) {
	ctx := context.Background()
	svc, repo, publisher := newStmtFixture(activity())
	st, err := svc.GenerateAccount(ctx, "FND-1", "ACC-1", q1())
	if err != nil {
		t.Fatalf("GenerateAccount: %v", err)
	}

	publisher.failNext = true
	if _, err := svc.Finalize(ctx, st.StatementID); err == nil {
		t.Fatal("expected error when the finalized event cannot be registered")
	}
	stored, _ := repo.Get(ctx, st.StatementID)
	if stored.Status != domain.StatementStatusDraft {
		t.Errorf("status = %s, want DRAFT after a failed finalize", stored.Status)
	}
	if len(publisher.events) != 0 {
		t.Errorf("published events = %d, want 0", len(publisher.events))
	}

	t.Run("retry finalizes and publishes exactly once", func(t *testing.T) {
		final, err := svc.Finalize(ctx, st.StatementID)
		if err != nil {
			t.Fatalf("Finalize retry: %v", err)
		}
		if final.Status != domain.StatementStatusFinalized {
			t.Errorf("status = %s, want FINALIZED", final.Status)
		}
		stored, _ := repo.Get(ctx, st.StatementID)
		if stored.Status != domain.StatementStatusFinalized {
			t.Errorf("stored status = %s, want FINALIZED", stored.Status)
		}
		if len(publisher.events) != 1 {
			t.Errorf("published events = %d, want 1", len(publisher.events))
		}
	})
}

func TestReviseCreatesNextVersion(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newStmtFixture(activity())
	st, _ := svc.GenerateAccount(ctx, "FND-1", "ACC-1", q1())

	t.Run("draft cannot be revised", func(t *testing.T) {
		if _, err := svc.Revise(ctx, st.StatementID); !finerrors.IsValidation(err) {
			t.Errorf("expected ValidationError, got %v", err)
		}
	})

	if _, err := svc.Finalize(ctx, st.StatementID); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	revision, err := svc.Revise(ctx, st.StatementID)
	if err != nil {
		t.Fatalf("Revise: %v", err)
	}
	if revision.Version != 2 || revision.Status != domain.StatementStatusDraft {
		t.Errorf("revision = v%d %s, want v2 DRAFT", revision.Version, revision.Status)
	}
	if len(repo.byID) != 2 {
		t.Errorf("statement rows = %d, want 2", len(repo.byID))
	}

	t.Run("prior version stays immutable", func(t *testing.T) {
		got, _ := repo.Get(ctx, st.StatementID)
		if got.Status != domain.StatementStatusFinalized {
			t.Errorf("prior status = %s, want FINALIZED", got.Status)
		}
	})
}

func TestSendLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newStmtFixture(activity())
	st, _ := svc.GenerateAccount(ctx, "FND-1", "ACC-1", q1())

	if _, err := svc.MarkSent(ctx, st.StatementID); !finerrors.IsValidation(err) {
		t.Errorf("expected ValidationError sending a draft, got %v", err)
	}
	_, _ = svc.Finalize(ctx, st.StatementID)
	sent, err := svc.MarkSent(ctx, st.StatementID)
	if err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	if sent.Status != domain.StatementStatusSent {
		t.Errorf("status = %s, want SENT", sent.Status)
	}
}
