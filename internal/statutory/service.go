package statutory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/companies"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// ReportStore abstracts report persistence.
type ReportStore interface {
	Insert(ctx context.Context, report StatutoryReport) (StatutoryReport, error)
	Get(ctx context.Context, reportID, companyID int64) (StatutoryReport, error)
	List(ctx context.Context, companyID int64, taxYear int) ([]StatutoryReport, error)
	UpdateStatus(ctx context.Context, reportID, companyID int64, status ReportStatus) (StatutoryReport, error)
}

// CompanySource resolves company master data for export headers.
type CompanySource interface {
	Get(ctx context.Context, id int64) (companies.Company, error)
}

// AuditPort records report lifecycle events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// GenerationObserver receives generation outcome metrics.
type GenerationObserver interface {
	ObserveReportGeneration(status string, elapsed time.Duration)
}

// GenerateInput describes a report generation request.
type GenerateInput struct {
	CompanyID   int64
	TaxYear     int
	PeriodStart time.Time
	PeriodEnd   time.Time
	Notes       string
	GeneratedBy int64
}

// Validate checks period sanity and fills the tax year from the period start
// when the caller omitted it.
func (in *GenerateInput) Validate() error {
	if !in.PeriodStart.Before(in.PeriodEnd) {
		return ErrInvalidPeriod
	}
	if in.TaxYear == 0 {
		in.TaxYear = in.PeriodStart.Year()
	}
	return nil
}

// Service coordinates report generation, validation, lifecycle and export.
type Service struct {
	store      ReportStore
	aggregator *Aggregator
	tax        *TaxCalculator
	companySrc CompanySource
	cache      *Cache
	audit      AuditPort
	metrics    GenerationObserver
	now        func() time.Time
}

// NewService constructs the statutory report service.
func NewService(store ReportStore, aggregator *Aggregator, tax *TaxCalculator, companySrc CompanySource, cache *Cache, audit AuditPort, metrics GenerationObserver) *Service {
	if tax == nil {
		tax = NewTaxCalculator()
	}
	return &Service{
		store:      store,
		aggregator: aggregator,
		tax:        tax,
		companySrc: companySrc,
		cache:      cache,
		audit:      audit,
		metrics:    metrics,
		now:        time.Now,
	}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Generate assembles the full report from posted ledger data and persists it.
// Nothing is written until every sub-report and the content hash are built, so
// a mid-generation failure leaves no partial report behind.
func (s *Service) Generate(ctx context.Context, input GenerateInput) (StatutoryReport, error) {
	started := s.now()
	report, err := s.generate(ctx, input)
	if s.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		s.metrics.ObserveReportGeneration(status, s.now().Sub(started))
	}
	return report, err
}

func (s *Service) generate(ctx context.Context, input GenerateInput) (StatutoryReport, error) {
	if err := input.Validate(); err != nil {
		return StatutoryReport{}, err
	}

	pl, err := s.aggregator.BuildProfitLoss(ctx, input.CompanyID, input.PeriodStart, input.PeriodEnd)
	if err != nil {
		return StatutoryReport{}, fmt.Errorf("build profit and loss: %w", err)
	}
	bs, warnings, err := s.aggregator.BuildBalanceSheet(ctx, input.CompanyID, input.PeriodEnd)
	if err != nil {
		return StatutoryReport{}, fmt.Errorf("build balance sheet: %w", err)
	}
	taxAdj, err := s.tax.Build(ctx, input.CompanyID, input.PeriodStart, input.PeriodEnd, pl.TotalProfitLoss)
	if err != nil {
		return StatutoryReport{}, fmt.Errorf("build tax adjustment: %w", err)
	}
	hash, err := ComputeContentHash(input.PeriodStart, input.PeriodEnd, pl, taxAdj, bs)
	if err != nil {
		return StatutoryReport{}, fmt.Errorf("compute content hash: %w", err)
	}

	if warnings == nil {
		warnings = []string{}
	}
	report := StatutoryReport{
		Reference:     uuid.New(),
		CompanyID:     input.CompanyID,
		TaxYear:       input.TaxYear,
		PeriodStart:   input.PeriodStart,
		PeriodEnd:     input.PeriodEnd,
		ProfitLoss:    pl,
		BalanceSheet:  bs,
		TaxAdjustment: taxAdj,
		ContentHash:   hash,
		Status:        StatusGenerated,
		Warnings:      warnings,
		Notes:         input.Notes,
		GeneratedBy:   input.GeneratedBy,
		GeneratedAt:   s.now(),
	}
	stored, err := s.store.Insert(ctx, report)
	if err != nil {
		return StatutoryReport{}, err
	}
	_ = s.cache.Bump(ctx)
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.GeneratedBy,
			Action:   "statutory.generate",
			Entity:   "statutory_report",
			EntityID: fmt.Sprintf("%d", stored.ID),
			Meta: map[string]any{
				"company_id":   stored.CompanyID,
				"tax_year":     stored.TaxYear,
				"reference":    stored.Reference.String(),
				"content_hash": stored.ContentHash,
				"warnings":     len(stored.Warnings),
			},
			At: s.now(),
		})
	}
	return stored, nil
}

// Get returns a stored report, served from cache when available.
func (s *Service) Get(ctx context.Context, reportID, companyID int64) (StatutoryReport, error) {
	key, err := s.cache.BuildKey(ctx, keyReport(companyID, reportID))
	if err != nil {
		return s.store.Get(ctx, reportID, companyID)
	}
	var report StatutoryReport
	err = s.cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (interface{}, error) {
		return s.store.Get(ctx, reportID, companyID)
	})
	if err != nil {
		return StatutoryReport{}, err
	}
	return report, nil
}

// List returns reports for the company, optionally filtered by tax year.
// taxYear zero means all years.
func (s *Service) List(ctx context.Context, companyID int64, taxYear int) ([]StatutoryReport, error) {
	key, err := s.cache.BuildKey(ctx, keyReportList(companyID, taxYear))
	if err != nil {
		return s.store.List(ctx, companyID, taxYear)
	}
	var reports []StatutoryReport
	err = s.cache.FetchJSON(ctx, key, &reports, func(ctx context.Context) (interface{}, error) {
		return s.store.List(ctx, companyID, taxYear)
	})
	if err != nil {
		return nil, err
	}
	return reports, nil
}

// UpdateStatus advances the report lifecycle. Only forward transitions are
// permitted and the financial content is never touched.
func (s *Service) UpdateStatus(ctx context.Context, reportID, companyID int64, target ReportStatus, actorID int64) (StatutoryReport, error) {
	current, err := s.store.Get(ctx, reportID, companyID)
	if err != nil {
		return StatutoryReport{}, err
	}
	if err := ValidateStatusTransition(current.Status, target); err != nil {
		return StatutoryReport{}, err
	}
	updated, err := s.store.UpdateStatus(ctx, reportID, companyID, target)
	if err != nil {
		return StatutoryReport{}, err
	}
	_ = s.cache.Bump(ctx)
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "statutory.status",
			Entity:   "statutory_report",
			EntityID: fmt.Sprintf("%d", updated.ID),
			Meta: map[string]any{
				"company_id": updated.CompanyID,
				"from":       string(current.Status),
				"to":         string(updated.Status),
			},
			At: s.now(),
		})
	}
	return updated, nil
}

// Validate re-checks a stored report. Accounting inconsistencies surface as
// warnings; only a missing report or internal corruption counts as an error.
func (s *Service) Validate(ctx context.Context, reportID, companyID int64) (ValidationResult, error) {
	report, err := s.store.Get(ctx, reportID, companyID)
	if err != nil {
		return ValidationResult{}, err
	}
	result := ValidationResult{
		ReportID: report.ID,
		Warnings: []string{},
		Errors:   []string{},
	}

	if diff := report.ProfitLoss.TotalProfitLoss - report.ProfitLoss.ComputeTotal(); diff > BalanceEpsilon || diff < -BalanceEpsilon {
		result.Warnings = append(result.Warnings, fmt.Sprintf("profit and loss total drifts from its components by %.2f", diff))
	}
	if !report.BalanceSheet.IsBalanced {
		result.Warnings = append(result.Warnings, fmt.Sprintf("balance sheet out of balance by %.2f", report.BalanceSheet.BalanceDifference))
	}
	expectedTaxable := Round2(report.TaxAdjustment.ProfitLossBeforeTax + report.TaxAdjustment.TotalAdjustments)
	if diff := report.TaxAdjustment.TaxableIncome - expectedTaxable; diff > BalanceEpsilon || diff < -BalanceEpsilon {
		result.Warnings = append(result.Warnings, fmt.Sprintf("taxable income drifts from its reconciliation by %.2f", diff))
	}
	hash, err := ComputeContentHash(report.PeriodStart, report.PeriodEnd, report.ProfitLoss, report.TaxAdjustment, report.BalanceSheet)
	if err != nil {
		return ValidationResult{}, err
	}
	if hash != report.ContentHash {
		result.Warnings = append(result.Warnings, "content hash no longer matches report content")
	}

	result.IsValid = len(result.Errors) == 0
	return result, nil
}

// Export renders the report for download in the requested format.
func (s *Service) Export(ctx context.Context, reportID, companyID int64, format ExportFormat) (ExportFile, error) {
	report, err := s.Get(ctx, reportID, companyID)
	if err != nil {
		return ExportFile{}, err
	}
	company, err := s.companySrc.Get(ctx, companyID)
	if err != nil {
		return ExportFile{}, err
	}
	return ExportReport(report, company, format)
}
