package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// Repository persists ledger entities.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	InsertJournalEntry(ctx context.Context, in PostingInput) (JournalEntry, error)
	InsertJournalLines(ctx context.Context, entryID int64, lines []PostingLineInput) error
	GetJournalWithLines(ctx context.Context, companyID, entryID int64) (JournalEntry, []JournalLine, error)
	UpdateJournalStatus(ctx context.Context, entryID int64, status JournalStatus) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// ListAccounts retrieves chart of accounts entries for a company, optionally
// restricted to active accounts.
func (r *Repository) ListAccounts(ctx context.Context, companyID int64, activeOnly bool) ([]Account, error) {
	query := `SELECT id, company_id, code, name, type, is_active, created_at, updated_at FROM accounts WHERE company_id=$1`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY code`
	rows, err := r.pool.Query(ctx, query, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		var a Account
		err := rows.Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.Type, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// GetAccount loads a single account scoped to the company.
func (r *Repository) GetAccount(ctx context.Context, companyID, accountID int64) (Account, error) {
	var a Account
	err := r.pool.QueryRow(ctx, `SELECT id, company_id, code, name, type, is_active, created_at, updated_at
FROM accounts WHERE company_id=$1 AND id=$2`, companyID, accountID).
		Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.Type, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

// SumPostedRange totals posted debits and credits for an account between two
// dates inclusive. Unposted entries never contribute.
func (r *Repository) SumPostedRange(ctx context.Context, companyID, accountID int64, from, to time.Time) (SideTotals, error) {
	var t SideTotals
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(l.debit),0), COALESCE(SUM(l.credit),0)
FROM journal_lines l
JOIN journal_entries e ON e.id = l.je_id
WHERE e.company_id=$1 AND l.account_id=$2 AND e.status=$3 AND e.date BETWEEN $4 AND $5`,
		companyID, accountID, JournalStatusPosted, from, to).Scan(&t.Debit, &t.Credit)
	if err != nil {
		return SideTotals{}, err
	}
	return t, nil
}

// SumPostedAsOf totals posted debits and credits for an account up to and
// including the as-of date.
func (r *Repository) SumPostedAsOf(ctx context.Context, companyID, accountID int64, asOf time.Time) (SideTotals, error) {
	var t SideTotals
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(l.debit),0), COALESCE(SUM(l.credit),0)
FROM journal_lines l
JOIN journal_entries e ON e.id = l.je_id
WHERE e.company_id=$1 AND l.account_id=$2 AND e.status=$3 AND e.date <= $4`,
		companyID, accountID, JournalStatusPosted, asOf).Scan(&t.Debit, &t.Credit)
	if err != nil {
		return SideTotals{}, err
	}
	return t, nil
}

// DebitCreditTotals sums posted debits and credits across a whole company,
// used by the ledger integrity job.
func (r *Repository) DebitCreditTotals(ctx context.Context, companyID int64) (SideTotals, error) {
	var t SideTotals
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(l.debit),0), COALESCE(SUM(l.credit),0)
FROM journal_lines l
JOIN journal_entries e ON e.id = l.je_id
WHERE e.company_id=$1 AND e.status=$2`, companyID, JournalStatusPosted).Scan(&t.Debit, &t.Credit)
	if err != nil {
		return SideTotals{}, err
	}
	return t, nil
}

// ListJournalEntries retrieves journal entries for a company, newest first.
func (r *Repository) ListJournalEntries(ctx context.Context, companyID int64, limit, offset int) ([]JournalEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT id, company_id, number, date, memo, posted_by, posted_at, status, created_at, updated_at
FROM journal_entries WHERE company_id=$1 ORDER BY number DESC LIMIT $2 OFFSET $3`, companyID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		err := rows.Scan(&e.ID, &e.CompanyID, &e.Number, &e.Date, &e.Memo, &e.PostedBy, &e.PostedAt, &e.Status, &e.CreatedAt, &e.UpdatedAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *txRepository) InsertJournalEntry(ctx context.Context, in PostingInput) (JournalEntry, error) {
	status := JournalStatusPosted
	if in.AsDraft {
		status = JournalStatusDraft
	}
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (company_id, date, memo, posted_by, status)
VALUES ($1,$2,$3,$4,$5) RETURNING id, number, posted_at, created_at, updated_at`,
		in.CompanyID, in.Date, in.Memo, nullInt(in.PostedBy), status)
	var entry JournalEntry
	entry.CompanyID = in.CompanyID
	entry.Date = in.Date
	entry.Memo = in.Memo
	entry.PostedBy = in.PostedBy
	entry.Status = status
	if err := row.Scan(&entry.ID, &entry.Number, &entry.PostedAt, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) InsertJournalLines(ctx context.Context, entryID int64, lines []PostingLineInput) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO journal_lines (je_id, account_id, debit, credit)
VALUES ($1,$2,$3,$4)`, entryID, line.AccountID, toNumeric(line.Debit), toNumeric(line.Credit)); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) GetJournalWithLines(ctx context.Context, companyID, entryID int64) (JournalEntry, []JournalLine, error) {
	var entry JournalEntry
	err := r.tx.QueryRow(ctx, `SELECT id, company_id, number, date, memo, posted_by, posted_at, status, created_at, updated_at
FROM journal_entries WHERE company_id=$1 AND id=$2`, companyID, entryID).
		Scan(&entry.ID, &entry.CompanyID, &entry.Number, &entry.Date, &entry.Memo, &entry.PostedBy, &entry.PostedAt, &entry.Status, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, nil, ErrJournalNotFound
		}
		return JournalEntry{}, nil, err
	}
	rows, err := r.tx.Query(ctx, `SELECT id, je_id, account_id, debit, credit, created_at, updated_at
FROM journal_lines WHERE je_id=$1 ORDER BY id ASC`, entryID)
	if err != nil {
		return JournalEntry{}, nil, err
	}
	defer rows.Close()
	var lines []JournalLine
	for rows.Next() {
		var line JournalLine
		if err := rows.Scan(&line.ID, &line.JournalID, &line.AccountID, &line.Debit, &line.Credit, &line.CreatedAt, &line.UpdatedAt); err != nil {
			return JournalEntry{}, nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return JournalEntry{}, nil, err
	}
	return entry, lines, nil
}

func (r *txRepository) UpdateJournalStatus(ctx context.Context, entryID int64, status JournalStatus) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status=$2, updated_at=NOW() WHERE id=$1`, entryID, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrJournalNotFound
	}
	return nil
}

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}

func toNumeric(v float64) any {
	return fmt.Sprintf("%.2f", v)
}
