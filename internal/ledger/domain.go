package ledger

import (
	"errors"
	"fmt"
	"time"
)

// AccountType enumerates chart of accounts categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// NormalSide identifies which side carries an account's natural positive balance.
type NormalSide string

const (
	NormalSideDebit  NormalSide = "DEBIT"
	NormalSideCredit NormalSide = "CREDIT"
)

// NormalSide returns the natural balance side for the account type. Assets and
// expenses grow on the debit side, everything else on the credit side.
func (t AccountType) NormalSide() NormalSide {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return NormalSideDebit
	default:
		return NormalSideCredit
	}
}

// JournalStatus enumerates journal lifecycle values. Only POSTED entries
// participate in statutory totals.
type JournalStatus string

const (
	JournalStatusDraft  JournalStatus = "DRAFT"
	JournalStatusPosted JournalStatus = "POSTED"
	JournalStatusVoid   JournalStatus = "VOID"
)

// CountsTowardTotals reports whether entries in this status contribute to
// account balances. Drafts and voided entries are invisible to every
// aggregate; balance queries must apply this same predicate.
func (s JournalStatus) CountsTowardTotals() bool {
	return s == JournalStatusPosted
}

// Account models a chart of accounts node scoped to a company.
type Account struct {
	ID        int64
	CompanyID int64
	Code      string
	Name      string
	Type      AccountType
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// JournalEntry captures posting metadata.
type JournalEntry struct {
	ID        int64
	CompanyID int64
	Number    int64
	Date      time.Time
	Memo      string
	PostedBy  int64
	PostedAt  time.Time
	Status    JournalStatus
	CreatedAt time.Time
	UpdatedAt time.Time
	Lines     []JournalLine
}

// JournalLine stores a debit or credit amount for an account.
type JournalLine struct {
	ID        int64
	JournalID int64
	AccountID int64
	Debit     float64
	Credit    float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PostingLineInput describes a journal line for a posting request.
type PostingLineInput struct {
	AccountID int64
	Debit     float64
	Credit    float64
}

// PostingInput groups fields required to create a journal entry.
type PostingInput struct {
	CompanyID int64
	Date      time.Time
	Memo      string
	PostedBy  int64
	AsDraft   bool
	Lines     []PostingLineInput
}

// VoidInput wraps parameters for voiding.
type VoidInput struct {
	CompanyID int64
	EntryID   int64
	ActorID   int64
	Reason    string
}

var (
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = errors.New("ledger: journal lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("ledger: journal requires at least two lines")
	// ErrJournalNotFound indicates missing entry.
	ErrJournalNotFound = errors.New("ledger: journal entry not found")
	// ErrAccountNotFound indicates missing account.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrInvalidStatus indicates action can't proceed.
	ErrInvalidStatus = errors.New("ledger: invalid status transition")
)

// Validate ensures posting input meets minimum criteria.
func (in PostingInput) Validate() error {
	if in.CompanyID == 0 {
		return errors.New("ledger: company required")
	}
	if in.Date.IsZero() {
		return errors.New("ledger: date required")
	}
	if len(in.Lines) < 2 {
		return ErrTooFewLines
	}
	var debit, credit float64
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("ledger: line %d missing account", idx)
		}
		if line.Debit < 0 || line.Credit < 0 {
			return fmt.Errorf("ledger: line %d negative amount", idx)
		}
		if line.Debit > 0 && line.Credit > 0 {
			return fmt.Errorf("ledger: line %d cannot be both debit and credit", idx)
		}
		debit += line.Debit
		credit += line.Credit
	}
	if fmt.Sprintf("%.2f", debit) != fmt.Sprintf("%.2f", credit) {
		return ErrUnbalanced
	}
	return nil
}
