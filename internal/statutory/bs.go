package statutory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
)

// BuildBalanceSheet aggregates classified asset, liability, and equity
// balances as of asOf. An account's statutory type gates which top-level
// total it contributes to: when the classifier resolves a bucket outside the
// account type's section, the account falls back to the type's default bucket
// and a warning is recorded.
func (a *Aggregator) BuildBalanceSheet(ctx context.Context, companyID int64, asOf time.Time) (BalanceSheetReport, []string, error) {
	if a == nil || a.accounts == nil || a.balances == nil {
		return BalanceSheetReport{}, nil, errors.New("statutory: aggregator not initialised")
	}
	accounts, err := a.accounts.ListAccounts(ctx, companyID, true)
	if err != nil {
		return BalanceSheetReport{}, nil, err
	}

	var bsAccounts []ledger.Account
	for _, acc := range accounts {
		switch acc.Type {
		case ledger.AccountTypeAsset, ledger.AccountTypeLiability, ledger.AccountTypeEquity:
			bsAccounts = append(bsAccounts, acc)
		}
	}

	results := make([]classifiedBalance, len(bsAccounts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.fetchLimit)
	for i, acc := range bsAccounts {
		g.Go(func() error {
			amount, err := a.balances.AccountAsOfBalance(gctx, acc, asOf)
			if err != nil {
				return err
			}
			results[i] = classifiedBalance{bucket: a.classifier.Classify(acc), amount: amount}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BalanceSheetReport{}, nil, err
	}

	warnings := make([]string, 0)
	buckets := make(map[Bucket]float64)
	for i, res := range results {
		acc := bsAccounts[i]
		bucket := res.bucket
		if SectionOf(bucket) != SectionForType(acc.Type) {
			warnings = append(warnings, fmt.Sprintf(
				"account %s (%s) classified to %s outside its %s section; using type default",
				acc.Code, acc.Name, bucket, acc.Type))
			bucket = typeFallback(acc.Type)
		}
		buckets[bucket] += res.amount
	}

	report := BalanceSheetReport{
		Cash:             Round2(buckets[BucketCash]),
		Securities:       Round2(buckets[BucketSecurities]),
		Receivables:      Round2(buckets[BucketReceivables]),
		OtherReceivables: Round2(buckets[BucketOtherReceivables]),
		Inventory:        Round2(buckets[BucketInventory]),
		TotalFixedAssets: Round2(buckets[BucketFixedAssets]),

		ShortTermLoans:           Round2(buckets[BucketShortTermLoans]),
		Payables:                 Round2(buckets[BucketPayables]),
		OtherPayables:            Round2(buckets[BucketOtherPayables]),
		TotalLongTermLiabilities: Round2(buckets[BucketLongTermLiabilities]),

		ShareCapital:     Round2(buckets[BucketShareCapital]),
		RetainedEarnings: Round2(buckets[BucketRetainedEarnings]),
	}
	report.TotalCurrentAssets = Round2(report.Cash + report.Securities + report.Receivables + report.OtherReceivables + report.Inventory)
	report.TotalAssets = Round2(report.TotalCurrentAssets + report.TotalFixedAssets)
	report.TotalCurrentLiabilities = Round2(report.ShortTermLoans + report.Payables + report.OtherPayables)
	report.TotalEquity = Round2(report.ShareCapital + report.RetainedEarnings)
	report.TotalLiabilitiesAndEquity = Round2(report.TotalCurrentLiabilities + report.TotalLongTermLiabilities + report.TotalEquity)
	report.BalanceDifference = Round2(report.TotalAssets - report.TotalLiabilitiesAndEquity)
	report.IsBalanced = math.Abs(report.BalanceDifference) <= BalanceEpsilon
	if !report.IsBalanced {
		warnings = append(warnings, fmt.Sprintf(
			"balance sheet does not balance: assets %.2f vs liabilities+equity %.2f (difference %.2f)",
			report.TotalAssets, report.TotalLiabilitiesAndEquity, report.BalanceDifference))
	}
	return report, warnings, nil
}
