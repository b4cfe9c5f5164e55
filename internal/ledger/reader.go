package ledger

import (
	"context"
	"errors"
	"time"
)

// SideTotals carries raw posted debit and credit sums for one account.
type SideTotals struct {
	Debit  float64
	Credit float64
}

// BalanceSource abstracts the queries the reader needs. Satisfied by
// *Repository; tests substitute in-memory fakes.
type BalanceSource interface {
	GetAccount(ctx context.Context, companyID, accountID int64) (Account, error)
	SumPostedRange(ctx context.Context, companyID, accountID int64, from, to time.Time) (SideTotals, error)
	SumPostedAsOf(ctx context.Context, companyID, accountID int64, asOf time.Time) (SideTotals, error)
}

// Reader resolves net signed balances over posted journal entries. The sign
// convention follows the account's normal balance side: debit-normal accounts
// report debit-credit, credit-normal accounts report credit-debit.
type Reader struct {
	source BalanceSource
}

// NewReader constructs a Reader.
func NewReader(source BalanceSource) *Reader {
	return &Reader{source: source}
}

// RangeBalance returns the signed net movement for the account across
// [from, to]. A non-existent account yields zero, not an error.
func (r *Reader) RangeBalance(ctx context.Context, companyID, accountID int64, from, to time.Time) (float64, error) {
	account, err := r.source.GetAccount(ctx, companyID, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return 0, nil
		}
		return 0, err
	}
	totals, err := r.source.SumPostedRange(ctx, companyID, accountID, from, to)
	if err != nil {
		return 0, err
	}
	return signed(account.Type, totals), nil
}

// AsOfBalance returns the signed cumulative balance of the account including
// every posted entry dated on or before asOf.
func (r *Reader) AsOfBalance(ctx context.Context, companyID, accountID int64, asOf time.Time) (float64, error) {
	account, err := r.source.GetAccount(ctx, companyID, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return 0, nil
		}
		return 0, err
	}
	totals, err := r.source.SumPostedAsOf(ctx, companyID, accountID, asOf)
	if err != nil {
		return 0, err
	}
	return signed(account.Type, totals), nil
}

// AccountRangeBalance is RangeBalance for a caller that already holds the
// account row, saving the lookup during fan-out aggregation.
func (r *Reader) AccountRangeBalance(ctx context.Context, account Account, from, to time.Time) (float64, error) {
	totals, err := r.source.SumPostedRange(ctx, account.CompanyID, account.ID, from, to)
	if err != nil {
		return 0, err
	}
	return signed(account.Type, totals), nil
}

// AccountAsOfBalance is AsOfBalance for a caller that already holds the account row.
func (r *Reader) AccountAsOfBalance(ctx context.Context, account Account, asOf time.Time) (float64, error) {
	totals, err := r.source.SumPostedAsOf(ctx, account.CompanyID, account.ID, asOf)
	if err != nil {
		return 0, err
	}
	return signed(account.Type, totals), nil
}

func signed(t AccountType, totals SideTotals) float64 {
	if t.NormalSide() == NormalSideDebit {
		return totals.Debit - totals.Credit
	}
	return totals.Credit - totals.Debit
}
