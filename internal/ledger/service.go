package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListAccounts(ctx context.Context, companyID int64, activeOnly bool) ([]Account, error)
	ListJournalEntries(ctx context.Context, companyID int64, limit, offset int) ([]JournalEntry, error)
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates posting and voiding journal entries.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the ledger service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// PostJournal validates and persists a new journal entry.
func (s *Service) PostJournal(ctx context.Context, input PostingInput) (JournalEntry, error) {
	if err := input.Validate(); err != nil {
		return JournalEntry{}, err
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inserted, err := tx.InsertJournalEntry(ctx, input)
		if err != nil {
			return err
		}
		if err := tx.InsertJournalLines(ctx, inserted.ID, input.Lines); err != nil {
			return err
		}
		inserted.Lines = toJournalLines(inserted.ID, input.Lines, s.now())
		entry = inserted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.PostedBy,
			Action:   "journal.post",
			Entity:   "journal_entry",
			EntityID: fmt.Sprintf("%d", entry.ID),
			Meta: map[string]any{
				"company_id": input.CompanyID,
				"number":     entry.Number,
				"status":     string(entry.Status),
			},
			At: s.now(),
		})
	}
	return entry, nil
}

// VoidJournal marks an existing posted journal as VOID.
func (s *Service) VoidJournal(ctx context.Context, input VoidInput) (JournalEntry, error) {
	if input.EntryID == 0 {
		return JournalEntry{}, errors.New("ledger: entry id required")
	}
	var entry JournalEntry
	var lines []JournalLine
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, currLines, err := tx.GetJournalWithLines(ctx, input.CompanyID, input.EntryID)
		if err != nil {
			return err
		}
		if current.Status != JournalStatusPosted && current.Status != JournalStatusDraft {
			return ErrInvalidStatus
		}
		if err := tx.UpdateJournalStatus(ctx, current.ID, JournalStatusVoid); err != nil {
			return err
		}
		entry = current
		entry.Status = JournalStatusVoid
		lines = currLines
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines = lines
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "journal.void",
			Entity:   "journal_entry",
			EntityID: fmt.Sprintf("%d", entry.ID),
			Meta: map[string]any{
				"company_id": input.CompanyID,
				"reason":     input.Reason,
			},
			At: s.now(),
		})
	}
	return entry, nil
}

// PostDraft promotes a draft entry to POSTED.
func (s *Service) PostDraft(ctx context.Context, companyID, entryID, actorID int64) (JournalEntry, error) {
	if entryID == 0 {
		return JournalEntry{}, errors.New("ledger: entry id required")
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, currLines, err := tx.GetJournalWithLines(ctx, companyID, entryID)
		if err != nil {
			return err
		}
		if current.Status != JournalStatusDraft {
			return ErrInvalidStatus
		}
		if err := tx.UpdateJournalStatus(ctx, current.ID, JournalStatusPosted); err != nil {
			return err
		}
		entry = current
		entry.Status = JournalStatusPosted
		entry.Lines = currLines
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "journal.post_draft",
			Entity:   "journal_entry",
			EntityID: fmt.Sprintf("%d", entry.ID),
			Meta:     map[string]any{"company_id": companyID},
			At:       s.now(),
		})
	}
	return entry, nil
}

// ListAccounts retrieves chart of accounts entries for one company.
func (s *Service) ListAccounts(ctx context.Context, companyID int64, activeOnly bool) ([]Account, error) {
	return s.repo.ListAccounts(ctx, companyID, activeOnly)
}

// ListJournalEntries retrieves journal entries for one company.
func (s *Service) ListJournalEntries(ctx context.Context, companyID int64, limit, offset int) ([]JournalEntry, error) {
	return s.repo.ListJournalEntries(ctx, companyID, limit, offset)
}

func toJournalLines(entryID int64, lines []PostingLineInput, ts time.Time) []JournalLine {
	out := make([]JournalLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, JournalLine{
			JournalID: entryID,
			AccountID: line.AccountID,
			Debit:     line.Debit,
			Credit:    line.Credit,
			CreatedAt: ts,
			UpdatedAt: ts,
		})
	}
	return out
}
