package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/sitestock/sitestock/internal/catalog"
	"github.com/sitestock/sitestock/internal/inventory"
	"github.com/sitestock/sitestock/internal/platform/httpx"
	"github.com/sitestock/sitestock/internal/procurement"
	"github.com/sitestock/sitestock/internal/shared"
	"github.com/sitestock/sitestock/report"
)

// ServicePort is the part of Service the HTTP layer uses.
type ServicePort interface {
	Create(ctx context.Context, input CreateInput) (string, State, error)
	State(ctx context.Context, id string) (State, error)
	ReplaceState(ctx context.Context, id string, state State) error
	Movements(ctx context.Context, id string) ([]inventory.Movement, error)
	Stock(ctx context.Context, id string) ([]inventory.Snapshot, error)
	AddMaterial(ctx context.Context, id, name string, units []string) (catalog.Material, error)
	ExtendMaterial(ctx context.Context, id, name string, units []string) (catalog.Material, error)
	RecordPurchase(ctx context.Context, id string, inv procurement.Invoice, idemKey string) (PurchaseResult, error)
	RecordOutbound(ctx context.Context, id string, req inventory.OutboundRequest, idemKey string) (inventory.Movement, error)
}

// Handler wires HTTP endpoints for project inventories.
type Handler struct {
	logger  *slog.Logger
	service ServicePort
}

// NewHandler constructs the project handler.
func NewHandler(logger *slog.Logger, service ServicePort) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers project routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Route("/{projectID}", func(r chi.Router) {
		r.Get("/state", h.handleGetState)
		r.Put("/state", h.handlePutState)
		r.Get("/movements", h.handleMovements)
		r.Get("/movements/groups", h.handleGroups)
		r.Get("/stock", h.handleStock)
		r.Get("/export.xlsx", h.handleExport)
		r.Post("/materials", h.handleAddMaterial)
		r.Post("/materials/{name}/units", h.handleExtendMaterial)
		r.Post("/purchases", h.handlePurchase)
		r.Post("/outbound", h.handleOutbound)
	})
}

type createResponse struct {
	ID    string `json:"id"`
	State State  `json:"state"`
}

type materialRequest struct {
	Name      string   `json:"name"`
	Units     []string `json:"units"`
	UnitsText string   `json:"unitsText"`
}

func (m materialRequest) unitList() []string {
	if m.UnitsText != "" {
		return append(append([]string(nil), m.Units...), catalog.ParseUnits(m.UnitsText)...)
	}
	return m.Units
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var input CreateInput
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &input); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	id, state, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/projects/"+url.PathEscape(id))
	httpx.JSON(w, http.StatusCreated, createResponse{ID: id, State: state})
}

func (h *Handler) handleGetState(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.State(r.Context(), projectID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, state)
}

func (h *Handler) handlePutState(w http.ResponseWriter, r *http.Request) {
	var state State
	if err := httpx.DecodeJSON(r, &state); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.service.ReplaceState(r.Context(), projectID(r), state); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	movements, err := h.service.Movements(r.Context(), projectID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, movements)
}

func (h *Handler) handleGroups(w http.ResponseWriter, r *http.Request) {
	by, err := report.ParseGroupBy(r.URL.Query().Get("by"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	movements, err := h.service.Movements(r.Context(), projectID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	groups := report.GroupMovements(movements, by)
	if groups == nil {
		groups = []report.Group{}
	}
	httpx.JSON(w, http.StatusOK, groups)
}

func (h *Handler) handleStock(w http.ResponseWriter, r *http.Request) {
	stock, err := h.service.Stock(r.Context(), projectID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stock)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	id := projectID(r)
	movements, err := h.service.Movements(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	stock, err := h.service.Stock(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", report.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "ledger-"+id+".xlsx"))
	if err := report.WriteXLSX(w, movements, stock); err != nil {
		h.logger.Error("export workbook", slog.String("project", id), slog.Any("error", err))
	}
}

func (h *Handler) handleAddMaterial(w http.ResponseWriter, r *http.Request) {
	var req materialRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	m, err := h.service.AddMaterial(r.Context(), projectID(r), req.Name, req.unitList())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}

func (h *Handler) handleExtendMaterial(w http.ResponseWriter, r *http.Request) {
	var req materialRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		h.fail(w, r, shared.Invalid("name", "is not a valid path segment"))
		return
	}
	m, err := h.service.ExtendMaterial(r.Context(), projectID(r), name, req.unitList())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var inv procurement.Invoice
	if err := httpx.DecodeJSON(r, &inv); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.service.RecordPurchase(r.Context(), projectID(r), inv, r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, res)
}

func (h *Handler) handleOutbound(w http.ResponseWriter, r *http.Request) {
	var req inventory.OutboundRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	m, err := h.service.RecordOutbound(r.Context(), projectID(r), req, r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}

func projectID(r *http.Request) string {
	return chi.URLParam(r, "projectID")
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if _, mapped := problemFor(err); !mapped && !clientError(err) {
		h.logger.Error("project request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err, problemFor)
}

func clientError(err error) bool {
	return errors.Is(err, shared.ErrValidation) || errors.Is(err, shared.ErrNotFound) || errors.Is(err, httpx.ErrBadBody)
}

func problemFor(err error) (httpx.ProblemDetail, bool) {
	var insufficient *inventory.InsufficientStockError
	var unknown *catalog.UnknownMaterialError
	switch {
	case errors.As(err, &insufficient):
		return httpx.ProblemDetail{
			Title:  "Insufficient Stock",
			Status: http.StatusConflict,
			Detail: err.Error(),
			Extra: map[string]any{
				"item":      insufficient.Item,
				"unit":      insufficient.Unit,
				"available": insufficient.Available,
				"requested": insufficient.Requested,
			},
		}, true
	case errors.As(err, &unknown):
		return httpx.ProblemDetail{
			Title:  "Unknown Material Or Unit",
			Status: http.StatusUnprocessableEntity,
			Detail: err.Error(),
			Extra:  map[string]any{"item": unknown.Item, "unit": unknown.Unit},
		}, true
	case errors.Is(err, ErrLocked):
		return httpx.ProblemDetail{Title: "Project Locked", Status: http.StatusLocked, Detail: err.Error()}, true
	case errors.Is(err, ErrExists):
		return httpx.ProblemDetail{Title: "Duplicate", Status: http.StatusConflict, Detail: err.Error()}, true
	case errors.Is(err, shared.ErrIdempotencyConflict):
		return httpx.ProblemDetail{Title: "Duplicate Request", Status: http.StatusConflict, Detail: err.Error()}, true
	}
	return httpx.ProblemDetail{}, false
}
