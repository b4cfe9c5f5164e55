package ledger

import (
	"context"
	"testing"
	"time"
)

type fakeBalanceSource struct {
	accounts map[int64]Account
	totals   map[int64]SideTotals
}

func (f *fakeBalanceSource) GetAccount(ctx context.Context, companyID, accountID int64) (Account, error) {
	account, ok := f.accounts[accountID]
	if !ok || account.CompanyID != companyID {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

func (f *fakeBalanceSource) SumPostedRange(ctx context.Context, companyID, accountID int64, from, to time.Time) (SideTotals, error) {
	return f.totals[accountID], nil
}

func (f *fakeBalanceSource) SumPostedAsOf(ctx context.Context, companyID, accountID int64, asOf time.Time) (SideTotals, error) {
	return f.totals[accountID], nil
}

func TestRangeBalanceSignConvention(t *testing.T) {
	src := &fakeBalanceSource{
		accounts: map[int64]Account{
			1: {ID: 1, CompanyID: 1, Type: AccountTypeRevenue},
			2: {ID: 2, CompanyID: 1, Type: AccountTypeExpense},
			3: {ID: 3, CompanyID: 1, Type: AccountTypeAsset},
			4: {ID: 4, CompanyID: 1, Type: AccountTypeLiability},
		},
		totals: map[int64]SideTotals{
			1: {Debit: 500, Credit: 10500},
			2: {Debit: 3200, Credit: 200},
			3: {Debit: 9000, Credit: 2000},
			4: {Debit: 1000, Credit: 5000},
		},
	}
	reader := NewReader(src)
	ctx := context.Background()
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		accountID int64
		want      float64
	}{
		{1, 10000}, // revenue: credit - debit
		{2, 3000},  // expense: debit - credit
		{3, 7000},  // asset: debit - credit
		{4, 4000},  // liability: credit - debit
	}
	for _, tc := range cases {
		got, err := reader.RangeBalance(ctx, 1, tc.accountID, from, to)
		if err != nil {
			t.Fatalf("account %d: %v", tc.accountID, err)
		}
		if got != tc.want {
			t.Fatalf("account %d: expected %.2f, got %.2f", tc.accountID, tc.want, got)
		}
	}
}

func TestRangeBalanceMissingAccountIsZero(t *testing.T) {
	reader := NewReader(&fakeBalanceSource{accounts: map[int64]Account{}})
	got, err := reader.RangeBalance(context.Background(), 1, 99, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("missing account must not error: %v", err)
	}
	if got != 0 {
		t.Fatalf("expected zero balance, got %.2f", got)
	}
}

func TestAccountAsOfBalanceSkipsLookup(t *testing.T) {
	src := &fakeBalanceSource{
		accounts: map[int64]Account{},
		totals:   map[int64]SideTotals{7: {Debit: 250, Credit: 100}},
	}
	reader := NewReader(src)
	account := Account{ID: 7, CompanyID: 1, Type: AccountTypeAsset}
	got, err := reader.AccountAsOfBalance(context.Background(), account, time.Now())
	if err != nil {
		t.Fatalf("as-of balance: %v", err)
	}
	if got != 150 {
		t.Fatalf("expected 150, got %.2f", got)
	}
}
