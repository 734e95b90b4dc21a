package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/creamcroissant/orderdesk/internal/api/requestctx"
	"github.com/creamcroissant/orderdesk/internal/lifecycle"
	"github.com/creamcroissant/orderdesk/internal/service"
)

// OrderHandler exposes the order detail view and its lifecycle actions.
type OrderHandler struct {
	orders  service.OrderLifecycleService
	catalog *service.StatusCatalog
	i18n    Translator
	logger  *slog.Logger
}

// NewOrderHandler wires the lifecycle service into HTTP handlers.
func NewOrderHandler(orders service.OrderLifecycleService, catalog *service.StatusCatalog, tr Translator, logger *slog.Logger) *OrderHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderHandler{orders: orders, catalog: catalog, i18n: tr, logger: logger}
}

type statusUpdateRequest struct {
	Status         string `json:"status"`
	Notes          string `json:"notes"`
	ExpectedStatus string `json:"expectedStatus"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type assignRequest struct {
	RiderID   string `json:"riderId"`
	VehicleID string `json:"vehicleId"`
}

// Show handles GET /orders/{id}.
func (h *OrderHandler) Show(w http.ResponseWriter, r *http.Request) {
	view, err := h.orders.Order(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondView(w, r, view)
}

// Refresh handles POST /orders/{id}/refresh, bypassing the view cache.
func (h *OrderHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	view, err := h.orders.Refresh(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondView(w, r, view)
}

// History handles GET /orders/{id}/history.
func (h *OrderHandler) History(w http.ResponseWriter, r *http.Request) {
	history, err := h.orders.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"data":  history,
		"count": len(history),
	})
}

// Progress handles GET /orders/{id}/progress.
func (h *OrderHandler) Progress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.orders.Progress(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	w.Header().Set("ETag", statusETag(progress.Current))
	respondJSON(w, http.StatusOK, map[string]any{
		"data": h.catalog.Localize(requestctx.GetLanguage(r.Context()), *progress),
	})
}

// UpdateStatus handles PATCH /orders/{id}/status. The expected status comes
// from the body or, failing that, from If-Match.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondErrorI18n(r.Context(), w, http.StatusBadRequest, "error.bad_request", h.i18n)
		return
	}
	if strings.TrimSpace(req.ExpectedStatus) == "" {
		req.ExpectedStatus = parseIfMatch(r.Header.Get("If-Match"))
	}
	view, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), service.StatusUpdateInput{
		Status:         req.Status,
		Notes:          req.Notes,
		ExpectedStatus: req.ExpectedStatus,
		Actor:          requestctx.OperatorFromContext(r.Context()).Actor(),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondMutation(w, r, "message.status_updated", view)
}

// Cancel handles POST /orders/{id}/cancel.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondErrorI18n(r.Context(), w, http.StatusBadRequest, "error.bad_request", h.i18n)
		return
	}
	view, err := h.orders.Cancel(r.Context(), chi.URLParam(r, "id"), service.CancelInput{
		Reason: req.Reason,
		Actor:  requestctx.OperatorFromContext(r.Context()).Actor(),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondMutation(w, r, "message.order_cancelled", view)
}

// Assign handles POST /orders/{id}/assign.
func (h *OrderHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondErrorI18n(r.Context(), w, http.StatusBadRequest, "error.bad_request", h.i18n)
		return
	}
	view, err := h.orders.Assign(r.Context(), chi.URLParam(r, "id"), service.AssignInput{
		RiderID:   req.RiderID,
		VehicleID: req.VehicleID,
		Actor:     requestctx.OperatorFromContext(r.Context()).Actor(),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondMutation(w, r, "message.rider_assigned", view)
}

func (h *OrderHandler) localize(r *http.Request, view *service.OrderView) service.OrderView {
	out := *view
	out.Progress = h.catalog.Localize(requestctx.GetLanguage(r.Context()), view.Progress)
	return out
}

// respondError localizes the view carried by a stale-state error the same
// way successful responses are localized.
func (h *OrderHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if stale, ok := service.AsStaleState(err); ok && stale.View != nil {
		view := h.localize(r, stale.View)
		localized := *stale
		localized.View = &view
		err = &localized
	}
	respondServiceError(r.Context(), w, h.i18n, h.logger, err)
}

func (h *OrderHandler) respondView(w http.ResponseWriter, r *http.Request, view *service.OrderView) {
	w.Header().Set("ETag", statusETag(view.Order.Status))
	respondJSON(w, http.StatusOK, map[string]any{"data": h.localize(r, view)})
}

func (h *OrderHandler) respondMutation(w http.ResponseWriter, r *http.Request, key string, view *service.OrderView) {
	w.Header().Set("ETag", statusETag(view.Order.Status))
	RespondSuccessI18n(r.Context(), w, key, h.i18n, h.localize(r, view))
}

// StatusHandler serves the status vocabulary for chips and dialogs.
type StatusHandler struct {
	catalog *service.StatusCatalog
}

func NewStatusHandler(catalog *service.StatusCatalog) *StatusHandler {
	return &StatusHandler{catalog: catalog}
}

// List handles GET /statuses.
func (h *StatusHandler) List(w http.ResponseWriter, r *http.Request) {
	statuses := h.catalog.Statuses(requestctx.GetLanguage(r.Context()))
	respondJSON(w, http.StatusOK, map[string]any{
		"data":  statuses,
		"steps": lifecycle.Steps(),
	})
}
