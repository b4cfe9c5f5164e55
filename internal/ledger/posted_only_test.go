package ledger

import (
	"context"
	"testing"
	"time"
)

// journalBook is a BalanceSource over raw journal entries. Its sums apply
// JournalStatus.CountsTowardTotals, the same predicate the repository binds
// into its SQL, so these tests pin the posted-only rule itself rather than a
// pre-summed fixture.
type journalBook struct {
	accounts map[int64]Account
	entries  []*JournalEntry
}

func (b *journalBook) GetAccount(_ context.Context, companyID, accountID int64) (Account, error) {
	account, ok := b.accounts[accountID]
	if !ok || account.CompanyID != companyID {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

func (b *journalBook) sum(companyID, accountID int64, include func(JournalEntry) bool) SideTotals {
	var t SideTotals
	for _, entry := range b.entries {
		if entry.CompanyID != companyID || !entry.Status.CountsTowardTotals() || !include(*entry) {
			continue
		}
		for _, line := range entry.Lines {
			if line.AccountID != accountID {
				continue
			}
			t.Debit += line.Debit
			t.Credit += line.Credit
		}
	}
	return t
}

func (b *journalBook) SumPostedRange(_ context.Context, companyID, accountID int64, from, to time.Time) (SideTotals, error) {
	return b.sum(companyID, accountID, func(e JournalEntry) bool {
		return !e.Date.Before(from) && !e.Date.After(to)
	}), nil
}

func (b *journalBook) SumPostedAsOf(_ context.Context, companyID, accountID int64, asOf time.Time) (SideTotals, error) {
	return b.sum(companyID, accountID, func(e JournalEntry) bool {
		return !e.Date.After(asOf)
	}), nil
}

func bookEntry(companyID int64, date time.Time, status JournalStatus, lines ...JournalLine) *JournalEntry {
	return &JournalEntry{CompanyID: companyID, Date: date, Status: status, Lines: lines}
}

func TestBalancesIgnoreDraftAndVoidEntries(t *testing.T) {
	const (
		bankID    = int64(1)
		revenueID = int64(2)
	)
	jan := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	draft := bookEntry(1, jan.AddDate(0, 1, 0), JournalStatusDraft,
		JournalLine{AccountID: bankID, Debit: 500},
		JournalLine{AccountID: revenueID, Credit: 500},
	)
	book := &journalBook{
		accounts: map[int64]Account{
			bankID:    {ID: bankID, CompanyID: 1, Type: AccountTypeAsset},
			revenueID: {ID: revenueID, CompanyID: 1, Type: AccountTypeRevenue},
		},
		entries: []*JournalEntry{
			bookEntry(1, jan, JournalStatusPosted,
				JournalLine{AccountID: bankID, Debit: 1000},
				JournalLine{AccountID: revenueID, Credit: 1000},
			),
			draft,
			bookEntry(1, jan.AddDate(0, 2, 0), JournalStatusVoid,
				JournalLine{AccountID: bankID, Debit: 200},
				JournalLine{AccountID: revenueID, Credit: 200},
			),
		},
	}
	reader := NewReader(book)
	ctx := context.Background()
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)

	revenue, err := reader.RangeBalance(ctx, 1, revenueID, from, to)
	if err != nil {
		t.Fatalf("range balance: %v", err)
	}
	if revenue != 1000 {
		t.Fatalf("expected only the posted entry to count, got %.2f", revenue)
	}
	bank, err := reader.AsOfBalance(ctx, 1, bankID, to)
	if err != nil {
		t.Fatalf("as-of balance: %v", err)
	}
	if bank != 1000 {
		t.Fatalf("expected only the posted entry to count, got %.2f", bank)
	}

	// Promoting the draft is the only way its amounts may appear.
	draft.Status = JournalStatusPosted
	revenue, err = reader.RangeBalance(ctx, 1, revenueID, from, to)
	if err != nil {
		t.Fatalf("range balance after promote: %v", err)
	}
	if revenue != 1500 {
		t.Fatalf("expected promoted draft to count, got %.2f", revenue)
	}
}

func TestCountsTowardTotals(t *testing.T) {
	cases := []struct {
		status JournalStatus
		want   bool
	}{
		{JournalStatusPosted, true},
		{JournalStatusDraft, false},
		{JournalStatusVoid, false},
		{JournalStatus("unknown"), false},
	}
	for _, tc := range cases {
		if got := tc.status.CountsTowardTotals(); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.status, tc.want, got)
		}
	}
}
