package statutory

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-erp/meridian-erp/internal/companies"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type memoryStore struct {
	reports  map[int64]StatutoryReport
	nextID   int64
	getCalls int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{reports: make(map[int64]StatutoryReport)}
}

func (s *memoryStore) Insert(ctx context.Context, report StatutoryReport) (StatutoryReport, error) {
	for _, existing := range s.reports {
		if existing.Reference == report.Reference {
			return StatutoryReport{}, ErrDuplicateReference
		}
	}
	s.nextID++
	report.ID = s.nextID
	report.UpdatedAt = report.GeneratedAt
	s.reports[report.ID] = report
	return report, nil
}

func (s *memoryStore) Get(ctx context.Context, reportID, companyID int64) (StatutoryReport, error) {
	s.getCalls++
	report, ok := s.reports[reportID]
	if !ok || report.CompanyID != companyID {
		return StatutoryReport{}, ErrReportNotFound
	}
	return report, nil
}

func (s *memoryStore) List(ctx context.Context, companyID int64, taxYear int) ([]StatutoryReport, error) {
	var out []StatutoryReport
	for _, report := range s.reports {
		if report.CompanyID != companyID {
			continue
		}
		if taxYear != 0 && report.TaxYear != taxYear {
			continue
		}
		out = append(out, report)
	}
	return out, nil
}

func (s *memoryStore) UpdateStatus(ctx context.Context, reportID, companyID int64, status ReportStatus) (StatutoryReport, error) {
	report, ok := s.reports[reportID]
	if !ok || report.CompanyID != companyID {
		return StatutoryReport{}, ErrReportNotFound
	}
	report.Status = status
	report.UpdatedAt = time.Now()
	s.reports[reportID] = report
	return report, nil
}

type fakeCompanies struct{}

func (fakeCompanies) Get(ctx context.Context, id int64) (companies.Company, error) {
	return companies.Company{ID: id, Code: "ACME", Name: "Acme Industries Ltd", TaxID: "514412345"}, nil
}

type fakeAudit struct {
	logs []shared.AuditLog
}

func (f *fakeAudit) Record(ctx context.Context, log shared.AuditLog) error {
	f.logs = append(f.logs, log)
	return nil
}

type fakeObserver struct {
	statuses []string
}

func (f *fakeObserver) ObserveReportGeneration(status string, elapsed time.Duration) {
	f.statuses = append(f.statuses, status)
}

type serviceFixture struct {
	service *Service
	store   *memoryStore
	ledger  *fakeLedger
	audit   *fakeAudit
	metrics *fakeObserver
	cleanup func()
}

func newServiceFixture(t *testing.T, src *fakeLedger) serviceFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewCache(client, time.Minute)

	store := newMemoryStore()
	audit := &fakeAudit{}
	metrics := &fakeObserver{}
	agg := NewAggregator(src, src, NewClassifier(nil), 4)
	svc := NewService(store, agg, NewTaxCalculator(), fakeCompanies{}, cache, audit, metrics)
	svc.WithNow(func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) })

	return serviceFixture{
		service: svc,
		store:   store,
		ledger:  src,
		audit:   audit,
		metrics: metrics,
		cleanup: func() {
			_ = client.Close()
			mr.Close()
		},
	}
}

func simpleLedger() *fakeLedger {
	return &fakeLedger{
		accounts: []ledger.Account{
			{ID: 1, CompanyID: 1, Code: "400100", Name: "Product sales", Type: ledger.AccountTypeRevenue, IsActive: true},
			{ID: 2, CompanyID: 1, Code: "520100", Name: "Office rent", Type: ledger.AccountTypeExpense, IsActive: true},
			{ID: 3, CompanyID: 1, Code: "100100", Name: "Operating bank", Type: ledger.AccountTypeAsset, IsActive: true},
			{ID: 4, CompanyID: 1, Code: "310100", Name: "Retained earnings", Type: ledger.AccountTypeEquity, IsActive: true},
		},
		movement: map[int64]float64{1: 10000, 2: 3000},
		asOf: map[int64]map[string]float64{
			3: {periodEnd.Format("2006-01-02"): 7000},
			4: {periodEnd.Format("2006-01-02"): 7000},
		},
	}
}

func generateInput() GenerateInput {
	return GenerateInput{
		CompanyID:   1,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		GeneratedBy: 42,
	}
}

func TestGenerateProducesCompleteReport(t *testing.T) {
	fx := newServiceFixture(t, simpleLedger())
	defer fx.cleanup()
	ctx := context.Background()

	report, err := fx.service.Generate(ctx, generateInput())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if report.ID == 0 {
		t.Fatal("expected persisted id")
	}
	if report.Status != StatusGenerated {
		t.Fatalf("status: expected %s, got %s", StatusGenerated, report.Status)
	}
	if report.TaxYear != 2025 {
		t.Fatalf("tax year derived from period: expected 2025, got %d", report.TaxYear)
	}
	if report.ProfitLoss.TotalProfitLoss != 7000 {
		t.Fatalf("profit: expected 7000, got %.2f", report.ProfitLoss.TotalProfitLoss)
	}
	if !report.BalanceSheet.IsBalanced {
		t.Fatalf("expected balanced sheet, difference %.2f", report.BalanceSheet.BalanceDifference)
	}
	if report.TaxAdjustment.TaxableIncome != 7000 {
		t.Fatalf("taxable income: expected 7000, got %.2f", report.TaxAdjustment.TaxableIncome)
	}
	if len(report.ContentHash) != 64 {
		t.Fatalf("content hash: expected 64 hex chars, got %q", report.ContentHash)
	}
	if report.Warnings == nil || len(report.Warnings) != 0 {
		t.Fatalf("warnings: expected empty slice, got %v", report.Warnings)
	}
	if len(fx.audit.logs) != 1 || fx.audit.logs[0].Action != "statutory.generate" {
		t.Fatalf("expected generate audit entry, got %+v", fx.audit.logs)
	}
	if len(fx.metrics.statuses) != 1 || fx.metrics.statuses[0] != "ok" {
		t.Fatalf("expected ok metric, got %v", fx.metrics.statuses)
	}
}

func TestGenerateRejectsInvalidPeriod(t *testing.T) {
	fx := newServiceFixture(t, simpleLedger())
	defer fx.cleanup()

	input := generateInput()
	input.PeriodStart, input.PeriodEnd = input.PeriodEnd, input.PeriodStart
	_, err := fx.service.Generate(context.Background(), input)
	if !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
	if len(fx.store.reports) != 0 {
		t.Fatal("nothing should be persisted on failure")
	}
	if len(fx.metrics.statuses) != 1 || fx.metrics.statuses[0] != "error" {
		t.Fatalf("expected error metric, got %v", fx.metrics.statuses)
	}
}

func TestGenerateKeepsWarningsFromImbalance(t *testing.T) {
	src := simpleLedger()
	src.asOf[3][periodEnd.Format("2006-01-02")] += 500
	fx := newServiceFixture(t, src)
	defer fx.cleanup()

	report, err := fx.service.Generate(context.Background(), generateInput())
	if err != nil {
		t.Fatalf("generate should succeed despite imbalance: %v", err)
	}
	if report.BalanceSheet.IsBalanced {
		t.Fatal("expected imbalanced sheet")
	}
	if len(report.Warnings) == 0 || !strings.Contains(report.Warnings[0], "does not balance") {
		t.Fatalf("expected imbalance warning, got %v", report.Warnings)
	}
}

func TestStatusLifecycle(t *testing.T) {
	fx := newServiceFixture(t, simpleLedger())
	defer fx.cleanup()
	ctx := context.Background()

	report, err := fx.service.Generate(ctx, generateInput())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := fx.service.UpdateStatus(ctx, report.ID, 1, StatusFiled, 42); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("GENERATED to FILED must fail, got %v", err)
	}

	reviewed, err := fx.service.UpdateStatus(ctx, report.ID, 1, StatusReviewed, 42)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if reviewed.Status != StatusReviewed {
		t.Fatalf("status: expected %s, got %s", StatusReviewed, reviewed.Status)
	}
	if reviewed.ContentHash != report.ContentHash {
		t.Fatal("status change must not touch report content")
	}

	filed, err := fx.service.UpdateStatus(ctx, report.ID, 1, StatusFiled, 42)
	if err != nil {
		t.Fatalf("file: %v", err)
	}
	if filed.Status != StatusFiled {
		t.Fatalf("status: expected %s, got %s", StatusFiled, filed.Status)
	}

	if _, err := fx.service.UpdateStatus(ctx, report.ID, 1, StatusReviewed, 42); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("FILED is terminal, got %v", err)
	}
}

func TestValidateCleanReport(t *testing.T) {
	fx := newServiceFixture(t, simpleLedger())
	defer fx.cleanup()
	ctx := context.Background()

	report, err := fx.service.Generate(ctx, generateInput())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	result, err := fx.service.Validate(ctx, report.ID, 1)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !result.IsValid {
		t.Fatalf("expected valid report, errors %v", result.Errors)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", result.Warnings)
	}
}

func TestValidateDetectsTampering(t *testing.T) {
	fx := newServiceFixture(t, simpleLedger())
	defer fx.cleanup()
	ctx := context.Background()

	report, err := fx.service.Generate(ctx, generateInput())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	tampered := fx.store.reports[report.ID]
	tampered.ProfitLoss.SalesRevenue += 1000
	tampered.ProfitLoss.TotalRevenue += 1000
	fx.store.reports[report.ID] = tampered

	result, err := fx.service.Validate(ctx, report.ID, 1)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	// Inconsistencies warn, they do not invalidate.
	if !result.IsValid {
		t.Fatalf("expected valid result with warnings, errors %v", result.Errors)
	}
	var drift, hash bool
	for _, w := range result.Warnings {
		if strings.Contains(w, "drifts") {
			drift = true
		}
		if strings.Contains(w, "hash") {
			hash = true
		}
	}
	if !drift || !hash {
		t.Fatalf("expected drift and hash warnings, got %v", result.Warnings)
	}
}

func TestValidateMissingReport(t *testing.T) {
	fx := newServiceFixture(t, simpleLedger())
	defer fx.cleanup()

	if _, err := fx.service.Validate(context.Background(), 99, 1); !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound, got %v", err)
	}
}

func TestGetServedFromCacheUntilBump(t *testing.T) {
	fx := newServiceFixture(t, simpleLedger())
	defer fx.cleanup()
	ctx := context.Background()

	report, err := fx.service.Generate(ctx, generateInput())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	fx.store.getCalls = 0
	if _, err := fx.service.Get(ctx, report.ID, 1); err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := fx.service.Get(ctx, report.ID, 1); err != nil {
		t.Fatalf("get: %v", err)
	}
	if fx.store.getCalls != 1 {
		t.Fatalf("expected second get cached, store calls %d", fx.store.getCalls)
	}

	// Lifecycle change bumps the cache version.
	if _, err := fx.service.UpdateStatus(ctx, report.ID, 1, StatusReviewed, 42); err != nil {
		t.Fatalf("update status: %v", err)
	}
	calls := fx.store.getCalls
	fetched, err := fx.service.Get(ctx, report.ID, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fx.store.getCalls != calls+1 {
		t.Fatalf("expected cache refresh after bump, store calls %d", fx.store.getCalls)
	}
	if fetched.Status != StatusReviewed {
		t.Fatalf("expected refreshed status, got %s", fetched.Status)
	}
}

func TestListFiltersByTaxYear(t *testing.T) {
	fx := newServiceFixture(t, simpleLedger())
	defer fx.cleanup()
	ctx := context.Background()

	if _, err := fx.service.Generate(ctx, generateInput()); err != nil {
		t.Fatalf("generate: %v", err)
	}
	earlier := generateInput()
	earlier.TaxYear = 2024
	earlier.PeriodStart = periodStart.AddDate(-1, 0, 0)
	earlier.PeriodEnd = periodEnd.AddDate(-1, 0, 0)
	if _, err := fx.service.Generate(ctx, earlier); err != nil {
		t.Fatalf("generate earlier: %v", err)
	}

	all, err := fx.service.List(ctx, 1, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(all))
	}
	one, err := fx.service.List(ctx, 1, 2024)
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(one) != 1 || one[0].TaxYear != 2024 {
		t.Fatalf("expected single 2024 report, got %+v", one)
	}
}

func TestExportJSONRoundTrip(t *testing.T) {
	fx := newServiceFixture(t, simpleLedger())
	defer fx.cleanup()
	ctx := context.Background()

	report, err := fx.service.Generate(ctx, generateInput())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	file, err := fx.service.Export(ctx, report.ID, 1, FormatJSON)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(file.FileName, "514412345") || !strings.HasSuffix(file.FileName, ".json") {
		t.Fatalf("file name missing tax id or extension: %s", file.FileName)
	}

	var envelope struct {
		CompanyTaxID string          `json:"company_tax_id"`
		Report       StatutoryReport `json:"report"`
	}
	if err := json.Unmarshal(file.Bytes, &envelope); err != nil {
		t.Fatalf("unmarshal export: %v", err)
	}
	if envelope.CompanyTaxID != "514412345" {
		t.Fatalf("expected company tax id in export, got %q", envelope.CompanyTaxID)
	}
	if envelope.Report.ContentHash != report.ContentHash {
		t.Fatal("export must round-trip the content hash")
	}
	if envelope.Report.ProfitLoss != report.ProfitLoss {
		t.Fatal("export must round-trip the profit and loss figures")
	}
}

func TestExportCSVAndUnknownFormat(t *testing.T) {
	fx := newServiceFixture(t, simpleLedger())
	defer fx.cleanup()
	ctx := context.Background()

	report, err := fx.service.Generate(ctx, generateInput())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	file, err := fx.service.Export(ctx, report.ID, 1, FormatCSV)
	if err != nil {
		t.Fatalf("export csv: %v", err)
	}
	body := string(file.Bytes)
	if !strings.Contains(body, "Total Profit / Loss") || !strings.Contains(body, "7,000.00") {
		t.Fatalf("csv summary missing figures:\n%s", body)
	}

	if _, err := fx.service.Export(ctx, report.ID, 1, ExportFormat("xml")); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
}
