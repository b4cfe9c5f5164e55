package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueReports carries report generation, kept separate so a burst of
	// generations never starves transactional mail.
	QueueReports = "reports"

	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeGenerateReport is the task type for statutory report generation.
	TaskTypeGenerateReport = "statutory:generate"
	// TaskTypeLedgerIntegrity is the nightly ledger debit/credit check.
	TaskTypeLedgerIntegrity = "ledger:integrity"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// Mailer delivers transactional mail over SMTP.
type Mailer struct {
	Addr string
	From string
}

// Send delivers one message. A zero Mailer silently drops mail, which keeps
// local setups working without an SMTP sink.
func (m Mailer) Send(payload SendEmailPayload) error {
	if m.Addr == "" || m.From == "" {
		return nil
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", m.From, payload.To, payload.Subject, payload.Body)
	return smtp.SendMail(m.Addr, nil, m.From, []string{payload.To}, []byte(msg))
}

// HandleSendEmailTask returns the handler for TaskTypeSendEmail tasks.
func HandleSendEmailTask(mailer Mailer) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SendEmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		return mailer.Send(payload)
	}
}

// GenerateReportPayload carries a queued report generation request.
type GenerateReportPayload struct {
	CompanyID   int64  `json:"company_id"`
	TaxYear     int    `json:"tax_year"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
	Notes       string `json:"notes"`
	GeneratedBy int64  `json:"generated_by"`
}

// NewGenerateReportTask constructs the report generation task.
func NewGenerateReportTask(payload GenerateReportPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeGenerateReport, data, asynq.Queue(QueueReports), asynq.Timeout(10*time.Minute)), nil
}

// NewLedgerIntegrityTask constructs the scheduled integrity check task.
func NewLedgerIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskTypeLedgerIntegrity, nil, asynq.Queue(QueueDefault))
}
