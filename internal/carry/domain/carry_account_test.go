package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/fundadmin/pkg/finerrors"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestApplyAccrual(t *testing.T) {
	a := &CarriedInterestAccount{TotalAccrued: dec("300000")}

	t.Run("accrues the delta over the running total", func(t *testing.T) {
		delta := a.ApplyAccrual(dec("420000"))
		if !delta.Equal(dec("120000")) {
			t.Errorf("delta = %s, want 120000", delta)
		}
		if !a.TotalAccrued.Equal(dec("420000")) {
			t.Errorf("total accrued = %s, want 420000", a.TotalAccrued)
		}
	})

	t.Run("earned below the running total accrues nothing", func(t *testing.T) {
		delta := a.ApplyAccrual(dec("400000"))
		if !delta.IsZero() {
			t.Errorf("delta = %s, want 0", delta)
		}
		if !a.TotalAccrued.Equal(dec("420000")) {
			t.Errorf("total accrued moved down to %s", a.TotalAccrued)
		}
	})
}

func TestRaiseHighWaterMark(t *testing.T) {
	a := &CarriedInterestAccount{HighWaterMark: dec("5000000")}
	a.RaiseHighWaterMark(dec("4800000"))
	if !a.HighWaterMark.Equal(dec("5000000")) {
		t.Errorf("high-water mark moved down to %s", a.HighWaterMark)
	}
	a.RaiseHighWaterMark(dec("5200000"))
	if !a.HighWaterMark.Equal(dec("5200000")) {
		t.Errorf("high-water mark = %s, want 5200000", a.HighWaterMark)
	}
}

func TestAddDistribution(t *testing.T) {
	a := &CarriedInterestAccount{TotalDistributed: decimal.Zero}
	if err := a.AddDistribution(dec("500000")); err != nil {
		t.Fatalf("AddDistribution: %v", err)
	}
	if !a.TotalDistributed.Equal(dec("500000")) {
		t.Errorf("total distributed = %s, want 500000", a.TotalDistributed)
	}
	if err := a.AddDistribution(dec("-1")); !finerrors.IsValidation(err) {
		t.Errorf("expected ValidationError for negative amount, got %v", err)
	}
	if err := a.AddDistribution(decimal.Zero); !finerrors.IsValidation(err) {
		t.Errorf("expected ValidationError for zero amount, got %v", err)
	}
}

func TestCarryStatusTransitions(t *testing.T) {
	t.Run("active to suspended to terminated", func(t *testing.T) {
		a := &CarriedInterestAccount{CarryAccountID: "CRY-1", Status: CarryStatusActive}
		if err := a.Suspend(); err != nil {
			t.Fatalf("Suspend: %v", err)
		}
		if err := a.Terminate(); err != nil {
			t.Fatalf("Terminate: %v", err)
		}
		if a.Status != CarryStatusTerminated {
			t.Errorf("status = %s, want TERMINATED", a.Status)
		}
	})

	t.Run("terminated is terminal", func(t *testing.T) {
		a := &CarriedInterestAccount{CarryAccountID: "CRY-1", Status: CarryStatusTerminated}
		if err := a.Suspend(); err == nil {
			t.Error("terminated account must not be suspendable")
		}
		if err := a.Terminate(); err == nil {
			t.Error("terminated account must not be re-terminated")
		}
	})

	t.Run("suspended cannot be re-suspended", func(t *testing.T) {
		a := &CarriedInterestAccount{CarryAccountID: "CRY-1", Status: CarryStatusSuspended}
		if err := a.Suspend(); err == nil {
			t.Error("expected an error")
		}
	})
}

func TestClawbackTransitions(t *testing.T) {
	fresh := func() *ClawbackProvision {
		return &ClawbackProvision{ProvisionID: "CLW-1", ClawbackAmount: dec("80000"), Status: ClawbackStatusCalculated}
	}

	t.Run("notify then pay in full", func(t *testing.T) {
		p := fresh()
		if err := p.Notify(); err != nil {
			t.Fatalf("Notify: %v", err)
		}
		if err := p.Pay(dec("80000")); err != nil {
			t.Fatalf("Pay: %v", err)
		}
		if p.Status != ClawbackStatusPaid {
			t.Errorf("status = %s, want PAID", p.Status)
		}
	})

	t.Run("partial payment is allowed", func(t *testing.T) {
		p := fresh()
		_ = p.Notify()
		if err := p.Pay(dec("50000")); err != nil {
			t.Fatalf("Pay: %v", err)
		}
		if !p.PaidAmount.Equal(dec("50000")) {
			t.Errorf("paid = %s, want 50000", p.PaidAmount)
		}
	})

	t.Run("payment above the clawback amount is rejected", func(t *testing.T) {
		p := fresh()
		_ = p.Notify()
		if err := p.Pay(dec("80001")); !finerrors.IsValidation(err) {
			t.Errorf("expected ValidationError, got %v", err)
		}
	})

	t.Run("cannot pay before notification", func(t *testing.T) {
		if err := fresh().Pay(dec("80000")); err == nil {
			t.Error("expected an error")
		}
	})

	t.Run("terminal states are frozen", func(t *testing.T) {
		p := fresh()
		_ = p.Notify()
		_ = p.Pay(dec("80000"))
		if err := p.Waive(); err == nil {
			t.Error("paid clawback must not be waivable")
		}
	})
}
