package audit

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sitestock/sitestock/internal/platform/httpx"
	"github.com/sitestock/sitestock/internal/shared"
)

// TimelineService is the part of Service the HTTP layer uses.
type TimelineService interface {
	Timeline(ctx context.Context, filters TimelineFilters) (Result, error)
	Export(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error)
}

// Handler serves the audit trail.
type Handler struct {
	logger  *slog.Logger
	service TimelineService
}

// NewHandler builds the audit handler.
func NewHandler(logger *slog.Logger, service TimelineService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the timeline and its CSV export.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleTimeline)
	r.Get("/export.csv", h.handleExport)
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r.URL.Query())
	if err != nil {
		httpx.RespondError(w, err)
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
	filters, err := parseFilters(r.URL.Query())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.logger.Error("export audit timeline", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows); err != nil {
		h.logger.Error("encode audit csv", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-timeline.csv"`)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

func parseFilters(values url.Values) (TimelineFilters, error) {
	var errs shared.ValidationErrors
	filters := TimelineFilters{
		Actor:    values.Get("actor"),
		Entity:   values.Get("entity"),
		EntityID: values.Get("entityId"),
		Action:   values.Get("action"),
		Page:     parsePositive(values.Get("page"), "page", &errs),
		PageSize: parsePositive(values.Get("pageSize"), "pageSize", &errs),
	}
	filters.From, _ = parseTime(values.Get("from"), "from", &errs)
	to, dateOnly := parseTime(values.Get("to"), "to", &errs)
	if !filters.From.IsZero() && !to.IsZero() && filters.From.After(to) {
		errs.Add("from", "must not be after to")
	}
	// the upper bound is exclusive, so a plain date covers that whole day
	if dateOnly {
		to = to.AddDate(0, 0, 1)
	}
	filters.To = to
	return filters, errs.Err()
}

// parseTime accepts RFC3339 timestamps or plain dates and reports which
// form matched.
func parseTime(raw, field string, errs *shared.ValidationErrors) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, false
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, true
	}
	errs.Add(field, "must be an RFC3339 timestamp or YYYY-MM-DD date")
	return time.Time{}, false
}

func parsePositive(raw, field string, errs *shared.ValidationErrors) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		errs.Add(field, "must be a positive integer")
		return 0
	}
	return n
}
