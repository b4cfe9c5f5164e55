package statutory

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
)

// AccountSource lists chart of accounts entries. Satisfied by *ledger.Repository.
type AccountSource interface {
	ListAccounts(ctx context.Context, companyID int64, activeOnly bool) ([]ledger.Account, error)
}

// BalanceReader resolves signed posted balances. Satisfied by *ledger.Reader.
type BalanceReader interface {
	AccountRangeBalance(ctx context.Context, account ledger.Account, from, to time.Time) (float64, error)
	AccountAsOfBalance(ctx context.Context, account ledger.Account, asOf time.Time) (float64, error)
}

// Aggregator builds the profit and loss and balance sheet sub-reports.
// Per-account balance fetches fan out concurrently; each task writes only its
// own result slot and reduction happens single-threaded after the join.
type Aggregator struct {
	accounts   AccountSource
	balances   BalanceReader
	classifier *Classifier
	fetchLimit int
}

// NewAggregator constructs an Aggregator. fetchLimit bounds concurrent
// balance queries; values below one fall back to a serial fetch.
func NewAggregator(accounts AccountSource, balances BalanceReader, classifier *Classifier, fetchLimit int) *Aggregator {
	if classifier == nil {
		classifier = NewClassifier(nil)
	}
	if fetchLimit < 1 {
		fetchLimit = 1
	}
	return &Aggregator{accounts: accounts, balances: balances, classifier: classifier, fetchLimit: fetchLimit}
}

type classifiedBalance struct {
	bucket Bucket
	amount float64
}

// BuildProfitLoss aggregates classified revenue, cost, and expense movements
// over [from, to] into the P&L structure. Opening and closing inventory come
// from as-of reads on accounts classified into the inventory bucket.
func (a *Aggregator) BuildProfitLoss(ctx context.Context, companyID int64, from, to time.Time) (ProfitLossReport, error) {
	if a == nil || a.accounts == nil || a.balances == nil {
		return ProfitLossReport{}, errors.New("statutory: aggregator not initialised")
	}
	accounts, err := a.accounts.ListAccounts(ctx, companyID, true)
	if err != nil {
		return ProfitLossReport{}, err
	}

	var plAccounts []ledger.Account
	var inventoryAccounts []ledger.Account
	for _, acc := range accounts {
		switch acc.Type {
		case ledger.AccountTypeRevenue, ledger.AccountTypeExpense:
			plAccounts = append(plAccounts, acc)
		case ledger.AccountTypeAsset:
			if a.classifier.Classify(acc) == BucketInventory {
				inventoryAccounts = append(inventoryAccounts, acc)
			}
		}
	}

	results := make([]classifiedBalance, len(plAccounts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.fetchLimit)
	for i, acc := range plAccounts {
		g.Go(func() error {
			amount, err := a.balances.AccountRangeBalance(gctx, acc, from, to)
			if err != nil {
				return err
			}
			results[i] = classifiedBalance{bucket: a.classifier.Classify(acc), amount: amount}
			return nil
		})
	}

	opening := make([]float64, len(inventoryAccounts))
	closing := make([]float64, len(inventoryAccounts))
	openingDate := from.AddDate(0, 0, -1)
	for i, acc := range inventoryAccounts {
		g.Go(func() error {
			openBal, err := a.balances.AccountAsOfBalance(gctx, acc, openingDate)
			if err != nil {
				return err
			}
			closeBal, err := a.balances.AccountAsOfBalance(gctx, acc, to)
			if err != nil {
				return err
			}
			opening[i] = openBal
			closing[i] = closeBal
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ProfitLossReport{}, err
	}

	buckets := make(map[Bucket]float64)
	for _, res := range results {
		buckets[res.bucket] += res.amount
	}
	var openingInventory, closingInventory float64
	for i := range inventoryAccounts {
		openingInventory += opening[i]
		closingInventory += closing[i]
	}

	report := ProfitLossReport{
		SalesRevenue:   Round2(buckets[BucketSalesRevenue]),
		ServiceRevenue: Round2(buckets[BucketServiceRevenue]),
		OtherRevenue:   Round2(buckets[BucketOtherRevenue]),

		OpeningInventory: Round2(openingInventory),
		ClosingInventory: Round2(closingInventory),

		TotalManufacturingCosts:     Round2(buckets[BucketManufacturingCosts]),
		ResearchDevelopmentExpenses: Round2(buckets[BucketResearchDevelopment]),
		TotalSalesExpenses:          Round2(buckets[BucketSalesExpenses]),
		TotalAdministrativeExpenses: Round2(buckets[BucketAdministrative]),
		TotalFinanceExpenses:        Round2(buckets[BucketFinanceExpenses]),
		TotalFinanceIncome:          Round2(buckets[BucketFinanceIncome]),
		OtherIncome:                 Round2(buckets[BucketOtherIncome]),
		OtherExpenses:               Round2(buckets[BucketOtherExpenses]),
	}
	report.TotalRevenue = Round2(report.SalesRevenue + report.ServiceRevenue + report.OtherRevenue)
	// Cost of sales adjusts purchases by the inventory movement over the period.
	report.TotalCostOfSales = Round2(buckets[BucketCostOfSales] + report.OpeningInventory - report.ClosingInventory)
	report.TotalProfitLoss = report.ComputeTotal()
	return report, nil
}
