package application

import (
	"context"
	"testing"
	"time"

	"github.com/wyfcoding/fundadmin/internal/nav/domain"
	"github.com/wyfcoding/fundadmin/pkg/finerrors"
)

type fakeNAVRepo struct {
	marks []*domain.NAVMark
}

func (f *fakeNAVRepo) Save(_ context.Context, mark *domain.NAVMark) error {
	for i, m := range f.marks {
		if m.FundID == mark.FundID && m.CalcDate.Equal(mark.CalcDate) {
			f.marks[i] = mark
			return nil
		}
	}
	f.marks = append(f.marks, mark)
	return nil
}

func (f *fakeNAVRepo) LatestAsOf(_ context.Context, fundID string, cutoff time.Time) (*domain.NAVMark, error) {
	var latest *domain.NAVMark
	for _, m := range f.marks {
		if m.FundID != fundID || m.CalcDate.After(cutoff) {
			continue
		}
		if latest == nil || m.CalcDate.After(latest.CalcDate) {
			latest = m
		}
	}
	return latest, nil
}

func (f *fakeNAVRepo) ListByFund(_ context.Context, fundID string, _ int) ([]*domain.NAVMark, error) {
	var out []*domain.NAVMark
	for _, m := range f.marks {
		if m.FundID == fundID {
			out = append(out, m)
		}
	}
	return out, nil
}

func TestNAVAsOf(t *testing.T) {
	ctx := context.Background()
	repo := &fakeNAVRepo{}
	svc := NewNAVService(repo, nil)

	for _, d := range []string{"2025-01-31", "2025-02-28", "2025-03-31"} {
		if _, err := svc.RecordMark(ctx, &RecordMarkRequest{
			FundID: "FND-1", CalcDate: d, NAVPerShare: "100", TotalShares: "10000",
		}); err != nil {
			t.Fatalf("RecordMark(%s) error: %v", d, err)
		}
	}

	t.Run("picks most recent at or before cutoff", func(t *testing.T) {
		mark, err := svc.NAVAsOf(ctx, "FND-1", time.Date(2025, time.March, 15, 10, 30, 0, 0, time.UTC))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC)
		if !mark.CalcDate.Equal(want) {
			t.Errorf("calc date = %s, want %s", mark.CalcDate, want)
		}
	})

	t.Run("exact date counts", func(t *testing.T) {
		mark, err := svc.NAVAsOf(ctx, "FND-1", time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if mark.CalcDate.Day() != 31 {
			t.Errorf("expected the March mark, got %s", mark.CalcDate)
		}
	})

	t.Run("missing mark is a precondition failure", func(t *testing.T) {
		_, err := svc.NAVAsOf(ctx, "FND-1", time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC))
		if !finerrors.IsPrecondition(err) {
			t.Errorf("expected PreconditionFailed, got %v", err)
		}
	})

	t.Run("unknown fund is a precondition failure", func(t *testing.T) {
		_, err := svc.NAVAsOf(ctx, "FND-404", time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC))
		if !finerrors.IsPrecondition(err) {
			t.Errorf("expected PreconditionFailed, got %v", err)
		}
	})
}

func TestRecordMarkValidation(t *testing.T) {
	svc := NewNAVService(&fakeNAVRepo{}, nil)
	cases := []RecordMarkRequest{
		{FundID: "FND-1", CalcDate: "31/03/2025", NAVPerShare: "100", TotalShares: "10"},
		{FundID: "FND-1", CalcDate: "2025-03-31", NAVPerShare: "0", TotalShares: "10"},
		{FundID: "FND-1", CalcDate: "2025-03-31", NAVPerShare: "-5", TotalShares: "10"},
		{FundID: "FND-1", CalcDate: "2025-03-31", NAVPerShare: "100", TotalShares: "-1"},
	}
	for _, req := range cases {
		if _, err := svc.RecordMark(context.Background(), &req); !finerrors.IsValidation(err) {
			t.Errorf("expected ValidationError for %+v, got %v", req, err)
		}
	}
}
