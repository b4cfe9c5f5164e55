package jobs

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/companies"
	jobmetrics "github.com/meridian-erp/meridian-erp/internal/jobs"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
)

// LedgerIntegrityJob verifies that posted debits equal posted credits for
// every company. An imbalance here means a journal slipped past posting
// validation and needs manual investigation.
type LedgerIntegrityJob struct {
	Companies *companies.Repository
	Ledger    *ledger.Repository
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewLedgerIntegrityJob initialises the integrity handler.
func NewLedgerIntegrityJob(companyRepo *companies.Repository, ledgerRepo *ledger.Repository, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{Companies: companyRepo, Ledger: ledgerRepo, Logger: logger, Metrics: metrics}
}

// Handle executes the integrity sweep.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Companies == nil || j.Ledger == nil {
		return errors.New("ledger integrity: handler not configured")
	}

	tracker := j.Metrics.Track(TaskTypeLedgerIntegrity)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	all, err := j.Companies.List(ctx)
	if err != nil {
		resultErr = err
		return resultErr
	}

	imbalanced := 0
	for _, company := range all {
		totals, err := j.Ledger.DebitCreditTotals(ctx, company.ID)
		if err != nil {
			resultErr = err
			logger.Error("integrity totals", slog.Int64("company_id", company.ID), slog.Any("error", err))
			return resultErr
		}
		diff := totals.Debit - totals.Credit
		if math.Abs(diff) > 0.005 {
			imbalanced++
			j.Metrics.AddImbalance(company.ID)
			logger.Warn("ledger out of balance",
				slog.Int64("company_id", company.ID),
				slog.Float64("debit", totals.Debit),
				slog.Float64("credit", totals.Credit),
				slog.Float64("difference", diff),
			)
		}
	}

	logger.Info("ledger integrity check complete",
		slog.Int("companies", len(all)),
		slog.Int("imbalanced", imbalanced),
	)
	return resultErr
}

func (j *LedgerIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
