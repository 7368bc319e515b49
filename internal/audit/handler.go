package audit

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/vantage-admin/vantage-admin/internal/platform/httpx"
)

const (
	defaultDateRange = 7 * 24 * time.Hour
	maxDateRange     = 90 * 24 * time.Hour

	exportRateLimit  = 10
	exportRateWindow = time.Minute
)

// Guard wires authorization checks in front of audit routes. Implemented by
// the permissions package.
type Guard interface {
	Require(item, permission string) func(http.Handler) http.Handler
}

// Handler serves the audit timeline endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   Guard
	now     func() time.Time
}

// NewHandler builds the audit handler.
func NewHandler(logger *slog.Logger, service *Service, guard Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guard: guard, now: time.Now}
}

// MountRoutes registers the timeline and CSV export routes. Exports hit the
// store unpaged, so they sit behind a per-IP rate limit.
func (h *Handler) MountRoutes(r chi.Router) {
	if h.guard != nil {
		r.Use(h.guard.Require("audit-trail", "view"))
	}
	r.Get("/", h.handleTimeline)
	r.Group(func(gr chi.Router) {
		gr.Use(httprate.LimitByIP(exportRateLimit, exportRateWindow))
		gr.Get("/export.csv", h.handleExport)
	})
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		h.handleFilterError(w, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("load audit timeline", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		h.handleFilterError(w, err)
		return
	}
	csvBytes, err := h.service.ExportCSV(r.Context(), filters)
	if err != nil {
		h.logger.Error("export audit timeline", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-trail.csv"`)
	if _, err := w.Write(csvBytes); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

func (h *Handler) parseFilters(r *http.Request) (Filters, error) {
	q := r.URL.Query()
	now := h.now().UTC()

	toStr := strings.TrimSpace(q.Get("to"))
	if toStr == "" {
		toStr = now.Format("2006-01-02")
	}
	toTime, err := time.Parse("2006-01-02", toStr)
	if err != nil {
		return Filters{}, validationError{field: "to"}
	}
	fromStr := strings.TrimSpace(q.Get("from"))
	if fromStr == "" {
		fromStr = toTime.Add(-defaultDateRange).Format("2006-01-02")
	}
	fromTime, err := time.Parse("2006-01-02", fromStr)
	if err != nil {
		return Filters{}, validationError{field: "from"}
	}
	if fromTime.After(toTime) {
		return Filters{}, validationError{field: "range"}
	}
	if toTime.Sub(fromTime) > maxDateRange {
		return Filters{}, validationError{field: "range"}
	}

	var actorID int64
	if v := strings.TrimSpace(q.Get("actorId")); v != "" {
		actorID, err = strconv.ParseInt(v, 10, 64)
		if err != nil || actorID <= 0 {
			return Filters{}, validationError{field: "actorId"}
		}
	}
	page := 0
	if v := strings.TrimSpace(q.Get("page")); v != "" {
		page, err = strconv.Atoi(v)
		if err != nil || page <= 0 {
			return Filters{}, validationError{field: "page"}
		}
	}
	pageSize := 0
	if v := strings.TrimSpace(q.Get("pageSize")); v != "" {
		pageSize, err = strconv.Atoi(v)
		if err != nil || pageSize <= 0 {
			return Filters{}, validationError{field: "pageSize"}
		}
	}

	return Filters{
		From:     fromTime,
		To:       toTime,
		ActorID:  actorID,
		Entity:   strings.TrimSpace(q.Get("entity")),
		Action:   strings.TrimSpace(q.Get("action")),
		Page:     page,
		PageSize: pageSize,
	}, nil
}

func (h *Handler) handleFilterError(w http.ResponseWriter, err error) {
	var v validationError
	if errors.As(err, &v) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid filter: "+v.field)
		return
	}
	h.logger.Error("validate audit filters", slog.Any("error", err))
	httpx.RespondError(w, err)
}

type validationError struct {
	field string
}

func (validationError) Error() string {
	return "validation failed"
}
