package statutory

import (
	"testing"
	"time"
)

func TestContentHashStable(t *testing.T) {
	pl := ProfitLossReport{SalesRevenue: 10000, TotalRevenue: 10000, TotalProfitLoss: 7000}
	bs := BalanceSheetReport{Cash: 50000, TotalAssets: 50000}
	tax := TaxAdjustmentReport{ProfitLossBeforeTax: 7000, TaxableIncome: 7000}

	first, err := ComputeContentHash(periodStart, periodEnd, pl, tax, bs)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	second, err := ComputeContentHash(periodStart, periodEnd, pl, tax, bs)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if first != second {
		t.Fatalf("hash not deterministic: %s vs %s", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(first))
	}
}

func TestContentHashSensitiveToContent(t *testing.T) {
	pl := ProfitLossReport{SalesRevenue: 10000, TotalRevenue: 10000, TotalProfitLoss: 7000}
	bs := BalanceSheetReport{Cash: 50000, TotalAssets: 50000}
	tax := TaxAdjustmentReport{ProfitLossBeforeTax: 7000, TaxableIncome: 7000}

	base, err := ComputeContentHash(periodStart, periodEnd, pl, tax, bs)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	pl.SalesRevenue += 0.01
	changed, err := ComputeContentHash(periodStart, periodEnd, pl, tax, bs)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if base == changed {
		t.Fatal("hash unchanged after amount change")
	}

	pl.SalesRevenue -= 0.01
	shifted, err := ComputeContentHash(periodStart.AddDate(0, 1, 0), periodEnd, pl, tax, bs)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if base == shifted {
		t.Fatal("hash unchanged after period change")
	}
}

func TestContentHashIgnoresTimezoneRepresentation(t *testing.T) {
	pl := ProfitLossReport{TotalProfitLoss: 1}
	bs := BalanceSheetReport{}
	tax := TaxAdjustmentReport{}

	loc := time.FixedZone("IST", 2*60*60)
	utcStart := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	localStart := utcStart.In(loc)

	a, err := ComputeContentHash(utcStart, periodEnd, pl, tax, bs)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	b, err := ComputeContentHash(localStart, periodEnd, pl, tax, bs)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if a != b {
		t.Fatal("hash depends on timezone representation of the same instant")
	}
}
