package statutory

import (
	"context"
	"time"
)

// AdjustmentRule contributes one signed amount to the accounting-to-taxable
// income reconciliation. Rules are jurisdiction configuration: non-deductible
// expenses, depreciation differences, timing differences. An empty rule set
// leaves taxable income equal to accounting profit.
type AdjustmentRule interface {
	Name() string
	Amount(ctx context.Context, companyID int64, periodStart, periodEnd time.Time, accountingProfit float64) (float64, error)
}

// TaxCalculator applies the configured adjustment rules.
type TaxCalculator struct {
	rules []AdjustmentRule
}

// NewTaxCalculator constructs a TaxCalculator over zero or more rules. Rule
// order determines line order in the report.
func NewTaxCalculator(rules ...AdjustmentRule) *TaxCalculator {
	return &TaxCalculator{rules: rules}
}

// Build derives the tax adjustment report for the period.
func (c *TaxCalculator) Build(ctx context.Context, companyID int64, periodStart, periodEnd time.Time, accountingProfit float64) (TaxAdjustmentReport, error) {
	report := TaxAdjustmentReport{
		ProfitLossBeforeTax: Round2(accountingProfit),
		Adjustments:         make([]TaxAdjustmentLine, 0, len(c.rules)),
	}
	var total float64
	for _, rule := range c.rules {
		amount, err := rule.Amount(ctx, companyID, periodStart, periodEnd, accountingProfit)
		if err != nil {
			return TaxAdjustmentReport{}, err
		}
		amount = Round2(amount)
		report.Adjustments = append(report.Adjustments, TaxAdjustmentLine{Name: rule.Name(), Amount: amount})
		total += amount
	}
	report.TotalAdjustments = Round2(total)
	report.TaxableIncome = Round2(report.ProfitLossBeforeTax + report.TotalAdjustments)
	return report, nil
}

// FixedAdjustment is a static adjustment line, useful for configured
// non-deductible amounts and in tests.
type FixedAdjustment struct {
	RuleName string
	Value    float64
}

// Name implements AdjustmentRule.
func (f FixedAdjustment) Name() string { return f.RuleName }

// Amount implements AdjustmentRule.
func (f FixedAdjustment) Amount(context.Context, int64, time.Time, time.Time, float64) (float64, error) {
	return f.Value, nil
}
