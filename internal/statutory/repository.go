package statutory

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists statutory reports. Sub-reports are stored as JSONB
// payloads and deserialized once on load; financial content is insert-only.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const reportColumns = `id, reference, company_id, tax_year, period_start, period_end,
pl_payload, bs_payload, tax_payload, content_hash, status, warnings, notes,
generated_by, generated_at, updated_at`

// Insert writes a freshly generated report and returns it with storage fields
// populated.
func (r *Repository) Insert(ctx context.Context, report StatutoryReport) (StatutoryReport, error) {
	plPayload, err := json.Marshal(report.ProfitLoss)
	if err != nil {
		return StatutoryReport{}, err
	}
	bsPayload, err := json.Marshal(report.BalanceSheet)
	if err != nil {
		return StatutoryReport{}, err
	}
	taxPayload, err := json.Marshal(report.TaxAdjustment)
	if err != nil {
		return StatutoryReport{}, err
	}
	warnings, err := json.Marshal(report.Warnings)
	if err != nil {
		return StatutoryReport{}, err
	}
	err = r.pool.QueryRow(ctx, `INSERT INTO statutory_reports
(reference, company_id, tax_year, period_start, period_end, pl_payload, bs_payload, tax_payload, content_hash, status, warnings, notes, generated_by, generated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
RETURNING id, updated_at`,
		report.Reference, report.CompanyID, report.TaxYear, report.PeriodStart, report.PeriodEnd,
		plPayload, bsPayload, taxPayload, report.ContentHash, report.Status, warnings,
		report.Notes, report.GeneratedBy, report.GeneratedAt).
		Scan(&report.ID, &report.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_statutory_reports_reference" {
			return StatutoryReport{}, ErrDuplicateReference
		}
		return StatutoryReport{}, err
	}
	return report, nil
}

// Get loads a report scoped to a company.
func (r *Repository) Get(ctx context.Context, reportID, companyID int64) (StatutoryReport, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+reportColumns+`
FROM statutory_reports WHERE id=$1 AND company_id=$2`, reportID, companyID)
	report, err := scanReport(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StatutoryReport{}, ErrReportNotFound
		}
		return StatutoryReport{}, err
	}
	return report, nil
}

// List returns reports for a company ordered by (tax_year desc, generated_at
// desc). taxYear of zero lists every year.
func (r *Repository) List(ctx context.Context, companyID int64, taxYear int) ([]StatutoryReport, error) {
	query := `SELECT ` + reportColumns + ` FROM statutory_reports WHERE company_id=$1`
	args := []any{companyID}
	if taxYear > 0 {
		query += ` AND tax_year=$2`
		args = append(args, taxYear)
	}
	query += ` ORDER BY tax_year DESC, generated_at DESC`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var reports []StatutoryReport
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

// UpdateStatus persists a lifecycle move. Financial columns never change.
func (r *Repository) UpdateStatus(ctx context.Context, reportID, companyID int64, status ReportStatus) (StatutoryReport, error) {
	row := r.pool.QueryRow(ctx, `UPDATE statutory_reports SET status=$3, updated_at=NOW()
WHERE id=$1 AND company_id=$2 RETURNING `+reportColumns, reportID, companyID, status)
	report, err := scanReport(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StatutoryReport{}, ErrReportNotFound
		}
		return StatutoryReport{}, err
	}
	return report, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (StatutoryReport, error) {
	var report StatutoryReport
	var plPayload, bsPayload, taxPayload, warnings []byte
	err := row.Scan(&report.ID, &report.Reference, &report.CompanyID, &report.TaxYear,
		&report.PeriodStart, &report.PeriodEnd, &plPayload, &bsPayload, &taxPayload,
		&report.ContentHash, &report.Status, &warnings, &report.Notes,
		&report.GeneratedBy, &report.GeneratedAt, &report.UpdatedAt)
	if err != nil {
		return StatutoryReport{}, err
	}
	if err := json.Unmarshal(plPayload, &report.ProfitLoss); err != nil {
		return StatutoryReport{}, err
	}
	if err := json.Unmarshal(bsPayload, &report.BalanceSheet); err != nil {
		return StatutoryReport{}, err
	}
	if err := json.Unmarshal(taxPayload, &report.TaxAdjustment); err != nil {
		return StatutoryReport{}, err
	}
	if len(warnings) > 0 {
		if err := json.Unmarshal(warnings, &report.Warnings); err != nil {
			return StatutoryReport{}, err
		}
	}
	if report.Warnings == nil {
		report.Warnings = []string{}
	}
	return report, nil
}
