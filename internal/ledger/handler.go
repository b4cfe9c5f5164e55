package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler exposes the ledger JSON API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a ledger handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes attaches ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/companies/{companyID}/accounts", h.handleListAccounts)
	r.Get("/companies/{companyID}/journals", h.handleListJournals)
	r.Post("/companies/{companyID}/journals", h.handlePostJournal)
	r.Post("/companies/{companyID}/journals/{entryID}/void", h.handleVoidJournal)
	r.Post("/companies/{companyID}/journals/{entryID}/post", h.handlePostDraft)
}

type journalLineRequest struct {
	AccountID int64   `json:"account_id" validate:"required,gt=0"`
	Debit     float64 `json:"debit" validate:"gte=0"`
	Credit    float64 `json:"credit" validate:"gte=0"`
}

type postJournalRequest struct {
	Date     string               `json:"date" validate:"required"`
	Memo     string               `json:"memo"`
	PostedBy int64                `json:"posted_by" validate:"required,gt=0"`
	AsDraft  bool                 `json:"as_draft"`
	Lines    []journalLineRequest `json:"lines" validate:"required,min=2,dive"`
}

type voidJournalRequest struct {
	ActorID int64  `json:"actor_id" validate:"required,gt=0"`
	Reason  string `json:"reason"`
}

func (h *Handler) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid company id")
		return
	}
	activeOnly := r.URL.Query().Get("active") == "true"
	accounts, err := h.service.ListAccounts(r.Context(), companyID, activeOnly)
	if err != nil {
		h.logger.Error("list accounts", slog.Int64("company_id", companyID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (h *Handler) handleListJournals(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid company id")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	entries, err := h.service.ListJournalEntries(r.Context(), companyID, limit, offset)
	if err != nil {
		h.logger.Error("list journals", slog.Int64("company_id", companyID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"journals": entries})
}

func (h *Handler) handlePostJournal(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid company id")
		return
	}
	var req postJournalRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
		return
	}
	input := PostingInput{
		CompanyID: companyID,
		Date:      date,
		Memo:      req.Memo,
		PostedBy:  req.PostedBy,
		AsDraft:   req.AsDraft,
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, PostingLineInput{AccountID: line.AccountID, Debit: line.Debit, Credit: line.Credit})
	}
	entry, err := h.service.PostJournal(r.Context(), input)
	if err != nil {
		if errors.Is(err, ErrUnbalanced) || errors.Is(err, ErrTooFewLines) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		h.logger.Error("post journal", slog.Int64("company_id", companyID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) handleVoidJournal(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid company id")
		return
	}
	entryID, err := pathID(r, "entryID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid entry id")
		return
	}
	var req voidJournalRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry, err := h.service.VoidJournal(r.Context(), VoidInput{CompanyID: companyID, EntryID: entryID, ActorID: req.ActorID, Reason: req.Reason})
	if err != nil {
		h.respondJournalError(w, companyID, "void journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) handlePostDraft(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid company id")
		return
	}
	entryID, err := pathID(r, "entryID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid entry id")
		return
	}
	var req voidJournalRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	entry, err := h.service.PostDraft(r.Context(), companyID, entryID, req.ActorID)
	if err != nil {
		h.respondJournalError(w, companyID, "post draft", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) respondJournalError(w http.ResponseWriter, companyID int64, op string, err error) {
	switch {
	case errors.Is(err, ErrJournalNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidStatus):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error(op, slog.Int64("company_id", companyID), slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}
