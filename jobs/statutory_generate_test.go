package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/companies"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/statutory"
)

type memoryReportStore struct {
	mu      sync.Mutex
	nextID  int64
	reports map[int64]statutory.StatutoryReport
}

func newMemoryReportStore() *memoryReportStore {
	return &memoryReportStore{reports: make(map[int64]statutory.StatutoryReport)}
}

func (s *memoryReportStore) Insert(_ context.Context, report statutory.StatutoryReport) (statutory.StatutoryReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	report.ID = s.nextID
	s.reports[report.ID] = report
	return report, nil
}

func (s *memoryReportStore) Get(_ context.Context, reportID, companyID int64) (statutory.StatutoryReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	report, ok := s.reports[reportID]
	if !ok || report.CompanyID != companyID {
		return statutory.StatutoryReport{}, statutory.ErrReportNotFound
	}
	return report, nil
}

func (s *memoryReportStore) List(_ context.Context, companyID int64, taxYear int) ([]statutory.StatutoryReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []statutory.StatutoryReport
	for _, report := range s.reports {
		if report.CompanyID == companyID && (taxYear == 0 || report.TaxYear == taxYear) {
			out = append(out, report)
		}
	}
	return out, nil
}

func (s *memoryReportStore) UpdateStatus(_ context.Context, reportID, companyID int64, status statutory.ReportStatus) (statutory.StatutoryReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	report, ok := s.reports[reportID]
	if !ok || report.CompanyID != companyID {
		return statutory.StatutoryReport{}, statutory.ErrReportNotFound
	}
	report.Status = status
	s.reports[reportID] = report
	return report, nil
}

type stubCompanies struct{}

func (stubCompanies) Get(_ context.Context, id int64) (companies.Company, error) {
	return companies.Company{ID: id, Name: "Acme Industries Ltd", TaxID: "514412345"}, nil
}

type stubLedger struct{}

func (stubLedger) ListAccounts(_ context.Context, companyID int64, _ bool) ([]ledger.Account, error) {
	return []ledger.Account{
		{ID: 1, CompanyID: companyID, Code: "100100", Name: "Operating bank", Type: ledger.AccountTypeAsset, IsActive: true},
		{ID: 2, CompanyID: companyID, Code: "310100", Name: "Retained earnings", Type: ledger.AccountTypeEquity, IsActive: true},
		{ID: 3, CompanyID: companyID, Code: "400100", Name: "Product sales", Type: ledger.AccountTypeRevenue, IsActive: true},
	}, nil
}

func (stubLedger) AccountRangeBalance(_ context.Context, account ledger.Account, _, _ time.Time) (float64, error) {
	if account.Code == "400100" {
		return 7000, nil
	}
	return 0, nil
}

func (stubLedger) AccountAsOfBalance(_ context.Context, account ledger.Account, _ time.Time) (float64, error) {
	switch account.Code {
	case "100100":
		return 7000, nil
	case "310100":
		return 7000, nil
	}
	return 0, nil
}

type recordingMail struct {
	payloads []SendEmailPayload
}

func (m *recordingMail) EnqueueSendEmail(_ context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error) {
	m.payloads = append(m.payloads, payload)
	return &asynq.TaskInfo{ID: "mail-1"}, nil
}

func newGenerationService(store *memoryReportStore) *statutory.Service {
	src := stubLedger{}
	agg := statutory.NewAggregator(src, src, statutory.NewClassifier(nil), 2)
	return statutory.NewService(store, agg, statutory.NewTaxCalculator(), stubCompanies{}, nil, nil, nil)
}

func generateTask(t *testing.T, payload GenerateReportPayload) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return asynq.NewTask(TaskTypeGenerateReport, data)
}

func TestGenerateReportJobPersistsAndNotifies(t *testing.T) {
	store := newMemoryReportStore()
	mail := &recordingMail{}
	job := NewGenerateReportJob(newGenerationService(store), nil, nil)
	job.Mail = mail
	job.NotifyAddr = "reports@acme.example"

	task := generateTask(t, GenerateReportPayload{
		CompanyID:   1,
		TaxYear:     2025,
		PeriodStart: "2025-01-01",
		PeriodEnd:   "2025-12-31",
		GeneratedBy: 7,
	})
	if err := job.Handle(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}

	reports, err := store.List(context.Background(), 1, 2025)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected 1 stored report, got %d", len(reports))
	}
	if reports[0].Status != statutory.StatusGenerated {
		t.Fatalf("expected GENERATED status, got %s", reports[0].Status)
	}
	if len(mail.payloads) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(mail.payloads))
	}
	if mail.payloads[0].To != "reports@acme.example" {
		t.Fatalf("notification sent to %q", mail.payloads[0].To)
	}
}

func TestGenerateReportJobSkipsRetryOnBadPayload(t *testing.T) {
	job := NewGenerateReportJob(newGenerationService(newMemoryReportStore()), nil, nil)

	task := asynq.NewTask(TaskTypeGenerateReport, []byte("{not json"))
	if err := job.Handle(context.Background(), task); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}

	task = generateTask(t, GenerateReportPayload{
		CompanyID:   1,
		PeriodStart: "2025-12-31",
		PeriodEnd:   "2025-01-01",
		GeneratedBy: 7,
	})
	if err := job.Handle(context.Background(), task); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry for inverted period, got %v", err)
	}
}

func TestGenerateReportJobNoNotificationWithoutAddress(t *testing.T) {
	store := newMemoryReportStore()
	mail := &recordingMail{}
	job := NewGenerateReportJob(newGenerationService(store), nil, nil)
	job.Mail = mail

	task := generateTask(t, GenerateReportPayload{
		CompanyID:   1,
		TaxYear:     2025,
		PeriodStart: "2025-01-01",
		PeriodEnd:   "2025-12-31",
		GeneratedBy: 7,
	})
	if err := job.Handle(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(mail.payloads) != 0 {
		t.Fatalf("expected no notification, got %d", len(mail.payloads))
	}
}
