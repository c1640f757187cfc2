package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCompute(t *testing.T) {
	t.Run("quarter with flows", func(t *testing.T) {
		// 期初 1000 份 × 100 = 100,000；期末 1100 份 × 105 = 115,500
		// 申购 10,000、分配 2,000、费用 500
		// 收益 = 115,500 − 100,000 − 10,000 + 2,000 + 500 = 8,000
		got := Compute(StatementInputs{
			SharesBeginning: dec("1000"),
			SharesEnding:    dec("1100"),
			NAVPriorEnd:     dec("100"),
			NAVEnd:          dec("105"),
			Contributions:   dec("10000"),
			Distributions:   dec("2000"),
			Fees:            dec("500"),
		})
		if !got.BeginningBalance.Equal(dec("100000")) {
			t.Errorf("beginning = %s, want 100000", got.BeginningBalance)
		}
		if !got.EndingBalance.Equal(dec("115500")) {
			t.Errorf("ending = %s, want 115500", got.EndingBalance)
		}
		if !got.ReturnAmount.Equal(dec("8000")) {
			t.Errorf("return = %s, want 8000", got.ReturnAmount)
		}
		if !got.ReturnPercent.Equal(dec("8")) {
			t.Errorf("return %% = %s, want 8", got.ReturnPercent)
		}
	})

	t.Run("inception in period zeroes the beginning balance", func(t *testing.T) {
		got := Compute(StatementInputs{
			SharesBeginning:   decimal.Zero,
			SharesEnding:      dec("500"),
			NAVPriorEnd:       decimal.Zero,
			NAVEnd:            dec("102"),
			Contributions:     dec("50000"),
			InceptionInPeriod: true,
		})
		if !got.BeginningBalance.IsZero() {
			t.Errorf("beginning = %s, want 0", got.BeginningBalance)
		}
		// 51,000 − 0 − 50,000 = 1,000
		if !got.ReturnAmount.Equal(dec("1000")) {
			t.Errorf("return = %s, want 1000", got.ReturnAmount)
		}
		if !got.ReturnPercent.IsZero() {
			t.Errorf("return %% = %s, want 0 with zero beginning balance", got.ReturnPercent)
		}
	})

	t.Run("negative return", func(t *testing.T) {
		got := Compute(StatementInputs{
			SharesBeginning: dec("1000"),
			SharesEnding:    dec("1000"),
			NAVPriorEnd:     dec("100"),
			NAVEnd:          dec("95"),
		})
		if !got.ReturnAmount.Equal(dec("-5000")) {
			t.Errorf("return = %s, want -5000", got.ReturnAmount)
		}
		if !got.ReturnPercent.Equal(dec("-5")) {
			t.Errorf("return %% = %s, want -5", got.ReturnPercent)
		}
	})
}

func TestStatementTransitions(t *testing.T) {
	fresh := func() *InvestorStatement {
		return &InvestorStatement{StatementID: "STM-1", Status: StatementStatusDraft}
	}

	t.Run("draft to finalized to sent", func(t *testing.T) {
		st := fresh()
		if err := st.Finalize(); err != nil {
			t.Fatalf("Finalize: %v", err)
		}
		if err := st.MarkSent(); err != nil {
			t.Fatalf("MarkSent: %v", err)
		}
		if st.Status != StatementStatusSent {
			t.Errorf("status = %s, want SENT", st.Status)
		}
	})

	t.Run("cannot send a draft", func(t *testing.T) {
		if err := fresh().MarkSent(); err == nil {
			t.Error("expected an error")
		}
	})

	t.Run("cannot re-finalize", func(t *testing.T) {
		st := fresh()
		_ = st.Finalize()
		if err := st.Finalize(); err == nil {
			t.Error("expected an error")
		}
	})

	t.Run("immutability flips on finalize", func(t *testing.T) {
		st := fresh()
		if st.Immutable() {
			t.Error("draft should be mutable")
		}
		_ = st.Finalize()
		if !st.Immutable() {
			t.Error("finalized statement should be immutable")
		}
	})
}
