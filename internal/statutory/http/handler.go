package statutoryhttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/statutory"
)

// Enqueuer submits report generation to the background worker.
type Enqueuer interface {
	EnqueueReportGeneration(ctx context.Context, input statutory.GenerateInput) (string, error)
}

// Handler exposes the statutory report JSON API. Routes are mounted under a
// company-scoped prefix, so every handler begins by resolving companyID.
type Handler struct {
	logger   *slog.Logger
	service  *statutory.Service
	enqueuer Enqueuer
	validate *validator.Validate
}

// NewHandler constructs the statutory handler. enqueuer may be nil, in which
// case async generation requests are rejected.
func NewHandler(logger *slog.Logger, service *statutory.Service, enqueuer Enqueuer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, enqueuer: enqueuer, validate: validator.New()}
}

// MountRoutes attaches statutory report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		// Generation walks the full ledger; keep it behind a tighter limit
		// than the global one.
		r.Use(httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		r.Post("/", h.handleGenerate)
	})
	r.Get("/", h.handleList)
	r.Get("/{reportID}", h.handleGet)
	r.Post("/{reportID}/validate", h.handleValidate)
	r.Post("/{reportID}/status", h.handleUpdateStatus)
	r.Get("/{reportID}/export", h.handleExport)
}

type generateRequest struct {
	TaxYear     int    `json:"tax_year" validate:"omitempty,gte=1990,lte=2100"`
	PeriodStart string `json:"period_start" validate:"required"`
	PeriodEnd   string `json:"period_end" validate:"required"`
	Notes       string `json:"notes"`
	GeneratedBy int64  `json:"generated_by" validate:"required,gt=0"`
	Async       bool   `json:"async"`
}

type updateStatusRequest struct {
	Status  string `json:"status" validate:"required,oneof=GENERATED REVIEWED FILED"`
	ActorID int64  `json:"actor_id" validate:"required,gt=0"`
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid company id")
		return
	}
	var req generateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	periodStart, err := time.Parse("2006-01-02", req.PeriodStart)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "period_start must be YYYY-MM-DD")
		return
	}
	periodEnd, err := time.Parse("2006-01-02", req.PeriodEnd)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "period_end must be YYYY-MM-DD")
		return
	}
	input := statutory.GenerateInput{
		CompanyID:   companyID,
		TaxYear:     req.TaxYear,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Notes:       req.Notes,
		GeneratedBy: req.GeneratedBy,
	}

	if req.Async || r.URL.Query().Get("async") == "true" {
		if h.enqueuer == nil {
			httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "background generation is not enabled")
			return
		}
		if err := input.Validate(); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		taskID, err := h.enqueuer.EnqueueReportGeneration(r.Context(), input)
		if err != nil {
			h.logger.Error("enqueue report generation", slog.Int64("company_id", companyID), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusAccepted, map[string]any{"task_id": taskID, "status": "queued"})
		return
	}

	report, err := h.service.Generate(r.Context(), input)
	if err != nil {
		h.respondReportError(w, companyID, "generate report", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, report)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "companyID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid company id")
		return
	}
	taxYear := 0
	if raw := r.URL.Query().Get("tax_year"); raw != "" {
		taxYear, err = strconv.Atoi(raw)
		if err != nil || taxYear < 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "tax_year must be a positive integer")
			return
		}
	}
	reports, err := h.service.List(r.Context(), companyID, taxYear)
	if err != nil {
		h.logger.Error("list reports", slog.Int64("company_id", companyID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	companyID, reportID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}
	report, err := h.service.Get(r.Context(), reportID, companyID)
	if err != nil {
		h.respondReportError(w, companyID, "get report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	companyID, reportID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}
	result, err := h.service.Validate(r.Context(), reportID, companyID)
	if err != nil {
		h.respondReportError(w, companyID, "validate report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	companyID, reportID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	report, err := h.service.UpdateStatus(r.Context(), reportID, companyID, statutory.ReportStatus(req.Status), req.ActorID)
	if err != nil {
		h.respondReportError(w, companyID, "update report status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	companyID, reportID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}
	format := statutory.ExportFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = statutory.FormatJSON
	}
	file, err := h.service.Export(r.Context(), reportID, companyID, format)
	if err != nil {
		h.respondReportError(w, companyID, "export report", err)
		return
	}
	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.FileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Bytes)
}

func (h *Handler) pathIDs(w http.ResponseWriter, r *http.Request) (companyID, reportID int64, ok bool) {
	companyID, err := pathID(r, "companyID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid company id")
		return 0, 0, false
	}
	reportID, err = pathID(r, "reportID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid report id")
		return 0, 0, false
	}
	return companyID, reportID, true
}

func (h *Handler) respondReportError(w http.ResponseWriter, companyID int64, op string, err error) {
	switch {
	case errors.Is(err, statutory.ErrReportNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, statutory.ErrInvalidPeriod), errors.Is(err, statutory.ErrUnknownFormat):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, statutory.ErrInvalidTransition), errors.Is(err, statutory.ErrDuplicateReference):
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
