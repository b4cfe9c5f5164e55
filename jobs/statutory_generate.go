package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/meridian-erp/meridian-erp/internal/jobs"
	"github.com/meridian-erp/meridian-erp/internal/statutory"
)

// MailEnqueuer queues notification mail after a successful generation.
type MailEnqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error)
}

// GenerateReportJob processes queued statutory report generations. Mail and
// NotifyAddr are optional; when both are set a report-ready notification is
// queued after a successful run.
type GenerateReportJob struct {
	Service    *statutory.Service
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	Mail       MailEnqueuer
	NotifyAddr string
}

// NewGenerateReportJob initialises the generation handler.
func NewGenerateReportJob(service *statutory.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *GenerateReportJob {
	return &GenerateReportJob{Service: service, Logger: logger, Metrics: metrics}
}

// Handle executes one generation request.
func (j *GenerateReportJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("generate report: handler not configured")
	}
	var payload GenerateReportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	periodStart, err := time.Parse("2006-01-02", payload.PeriodStart)
	if err != nil {
		return asynq.SkipRetry
	}
	periodEnd, err := time.Parse("2006-01-02", payload.PeriodEnd)
	if err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskTypeGenerateReport)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(
		slog.Int64("company_id", payload.CompanyID),
		slog.Int("tax_year", payload.TaxYear),
	)
	logger.Info("starting report generation")

	report, err := j.Service.Generate(ctx, statutory.GenerateInput{
		CompanyID:   payload.CompanyID,
		TaxYear:     payload.TaxYear,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Notes:       payload.Notes,
		GeneratedBy: payload.GeneratedBy,
	})
	if err != nil {
		resultErr = err
		logger.Error("report generation failed", slog.Any("error", err))
		if errors.Is(err, statutory.ErrInvalidPeriod) || errors.Is(err, statutory.ErrDuplicateReference) {
			return asynq.SkipRetry
		}
		return resultErr
	}

	logger.Info("completed report generation",
		slog.Int64("report_id", report.ID),
		slog.String("reference", report.Reference.String()),
		slog.Int("warnings", len(report.Warnings)),
	)

	if j.Mail != nil && j.NotifyAddr != "" {
		if _, err := j.Mail.EnqueueSendEmail(ctx, SendEmailPayload{
			To:      j.NotifyAddr,
			Subject: fmt.Sprintf("Statutory report ready: company %d, tax year %d", report.CompanyID, report.TaxYear),
			Body: fmt.Sprintf("Report %s generated with %d warning(s). Content hash %s.",
				report.Reference, len(report.Warnings), report.ContentHash),
		}); err != nil {
			logger.Warn("queue report notification", slog.Any("error", err))
		}
	}
	return resultErr
}

func (j *GenerateReportJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *GenerateReportJob) metrics() *jobmetrics.Metrics {
	return j.Metrics
}
