package statutory

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
)

// Bucket is a statutory reporting category. Every account maps to exactly one
// bucket per generation run; the mapping is recomputed each run and never stored.
type Bucket string

const (
	BucketSalesRevenue   Bucket = "SALES_REVENUE"
	BucketServiceRevenue Bucket = "SERVICE_REVENUE"
	BucketOtherRevenue   Bucket = "OTHER_REVENUE"
	BucketFinanceIncome  Bucket = "FINANCE_INCOME"
	BucketOtherIncome    Bucket = "OTHER_INCOME"

	BucketCostOfSales         Bucket = "COST_OF_SALES"
	BucketManufacturingCosts  Bucket = "MANUFACTURING_COSTS"
	BucketResearchDevelopment Bucket = "RESEARCH_DEVELOPMENT"
	BucketSalesExpenses       Bucket = "SALES_EXPENSES"
	BucketAdministrative      Bucket = "ADMINISTRATIVE_EXPENSES"
	BucketFinanceExpenses     Bucket = "FINANCE_EXPENSES"
	BucketOtherExpenses       Bucket = "OTHER_EXPENSES"

	BucketCash             Bucket = "CASH_AND_EQUIVALENTS"
	BucketSecurities       Bucket = "SECURITIES"
	BucketReceivables      Bucket = "RECEIVABLES"
	BucketOtherReceivables Bucket = "OTHER_RECEIVABLES"
	BucketInventory        Bucket = "INVENTORY"
	BucketFixedAssets      Bucket = "FIXED_ASSETS"

	BucketShortTermLoans      Bucket = "SHORT_TERM_LOANS"
	BucketPayables            Bucket = "PAYABLES"
	BucketOtherPayables       Bucket = "OTHER_PAYABLES"
	BucketLongTermLiabilities Bucket = "LONG_TERM_LIABILITIES"

	BucketShareCapital     Bucket = "SHARE_CAPITAL"
	BucketRetainedEarnings Bucket = "RETAINED_EARNINGS"
)

// BalanceEpsilon is the tolerance, in currency units, for balance sheet and
// cross-statement consistency checks.
const BalanceEpsilon = 0.01

// ProfitLossReport aggregates classified revenue, cost, and expense balances
// over a period. Buckets with no matching accounts hold zero, never null.
type ProfitLossReport struct {
	SalesRevenue   float64 `json:"sales_revenue"`
	ServiceRevenue float64 `json:"service_revenue"`
	OtherRevenue   float64 `json:"other_revenue"`
	TotalRevenue   float64 `json:"total_revenue"`

	OpeningInventory float64 `json:"opening_inventory"`
	ClosingInventory float64 `json:"closing_inventory"`

	TotalCostOfSales            float64 `json:"total_cost_of_sales"`
	TotalManufacturingCosts     float64 `json:"total_manufacturing_costs"`
	ResearchDevelopmentExpenses float64 `json:"research_development_expenses"`
	TotalSalesExpenses          float64 `json:"total_sales_expenses"`
	TotalAdministrativeExpenses float64 `json:"total_administrative_expenses"`
	TotalFinanceExpenses        float64 `json:"total_finance_expenses"`
	TotalFinanceIncome          float64 `json:"total_finance_income"`
	OtherIncome                 float64 `json:"other_income"`
	OtherExpenses               float64 `json:"other_expenses"`

	TotalProfitLoss float64 `json:"total_profit_loss"`
}

// ComputeTotal derives TotalProfitLoss from the component figures. Kept as a
// method so validation can recompute the published formula against the stored
// payload.
func (p ProfitLossReport) ComputeTotal() float64 {
	return Round2(p.TotalRevenue -
		p.TotalCostOfSales - p.TotalManufacturingCosts - p.ResearchDevelopmentExpenses -
		p.TotalSalesExpenses - p.TotalAdministrativeExpenses - p.TotalFinanceExpenses +
		p.TotalFinanceIncome + p.OtherIncome - p.OtherExpenses)
}

// BalanceSheetReport aggregates classified asset, liability, and equity
// balances as of the period end.
type BalanceSheetReport struct {
	Cash             float64 `json:"cash_and_equivalents"`
	Securities       float64 `json:"securities"`
	Receivables      float64 `json:"receivables"`
	OtherReceivables float64 `json:"other_receivables"`
	Inventory        float64 `json:"inventory"`

	TotalCurrentAssets float64 `json:"total_current_assets"`
	TotalFixedAssets   float64 `json:"total_fixed_assets"`
	TotalAssets        float64 `json:"total_assets"`

	ShortTermLoans float64 `json:"short_term_loans"`
	Payables       float64 `json:"payables"`
	OtherPayables  float64 `json:"other_payables"`

	TotalCurrentLiabilities  float64 `json:"total_current_liabilities"`
	TotalLongTermLiabilities float64 `json:"total_long_term_liabilities"`

	ShareCapital     float64 `json:"share_capital"`
	RetainedEarnings float64 `json:"retained_earnings"`
	TotalEquity      float64 `json:"total_equity"`

	TotalLiabilitiesAndEquity float64 `json:"total_liabilities_and_equity"`
	BalanceDifference         float64 `json:"balance_difference"`
	IsBalanced                bool    `json:"is_balanced"`
}

// TaxAdjustmentLine is one signed adjustment applied to accounting profit.
type TaxAdjustmentLine struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// TaxAdjustmentReport derives taxable income from accounting profit.
type TaxAdjustmentReport struct {
	ProfitLossBeforeTax float64             `json:"profit_loss_before_tax"`
	Adjustments         []TaxAdjustmentLine `json:"adjustments"`
	TotalAdjustments    float64             `json:"total_adjustments"`
	TaxableIncome       float64             `json:"taxable_income"`
}

// ReportStatus enumerates the linear report lifecycle. Transitions only move
// forward; a filed report is amended by generating a new one.
type ReportStatus string

const (
	StatusGenerated ReportStatus = "GENERATED"
	StatusReviewed  ReportStatus = "REVIEWED"
	StatusFiled     ReportStatus = "FILED"
)

// ValidateStatusTransition checks lifecycle moves according to policy.
func ValidateStatusTransition(current, target ReportStatus) error {
	switch current {
	case StatusGenerated:
		if target == StatusReviewed {
			return nil
		}
	case StatusReviewed:
		if target == StatusFiled {
			return nil
		}
	}
	return ErrInvalidTransition
}

// StatutoryReport is the persisted aggregate. Financial content is immutable
// after creation; only Status may change.
type StatutoryReport struct {
	ID          int64     `json:"id"`
	Reference   uuid.UUID `json:"reference"`
	CompanyID   int64     `json:"company_id"`
	TaxYear     int       `json:"tax_year"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`

	ProfitLoss    ProfitLossReport    `json:"profit_loss"`
	BalanceSheet  BalanceSheetReport  `json:"balance_sheet"`
	TaxAdjustment TaxAdjustmentReport `json:"tax_adjustment"`

	ContentHash string       `json:"content_hash"`
	Status      ReportStatus `json:"status"`
	Warnings    []string     `json:"warnings"`
	Notes       string       `json:"notes"`
	GeneratedBy int64        `json:"generated_by"`
	GeneratedAt time.Time    `json:"generated_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// ValidationResult reports the outcome of post-generation checks. Warnings
// never invalidate a report; only a missing record does.
type ValidationResult struct {
	ReportID int64    `json:"report_id"`
	IsValid  bool     `json:"is_valid"`
	Warnings []string `json:"warnings"`
	Errors   []string `json:"errors"`
}

var (
	// ErrReportNotFound indicates a missing report row.
	ErrReportNotFound = errors.New("statutory: report not found")
	// ErrInvalidPeriod indicates period start on or after period end.
	ErrInvalidPeriod = errors.New("statutory: period start must precede period end")
	// ErrInvalidTransition indicates a disallowed status change.
	ErrInvalidTransition = errors.New("statutory: invalid status transition")
	// ErrUnknownFormat indicates an unsupported export format.
	ErrUnknownFormat = errors.New("statutory: unknown export format")
	// ErrDuplicateReference indicates a report reference collision.
	ErrDuplicateReference = errors.New("statutory: duplicate report reference")
)

// Round2 rounds to two decimal places, the statutory reporting precision.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
