package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/creamcroissant/orderdesk/internal/api/requestctx"
	"github.com/creamcroissant/orderdesk/internal/service"
)

// WatchHandler manages the operator watch list.
type WatchHandler struct {
	watches service.WatchService
	i18n    Translator
	logger  *slog.Logger
}

func NewWatchHandler(watches service.WatchService, tr Translator, logger *slog.Logger) *WatchHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WatchHandler{watches: watches, i18n: tr, logger: logger}
}

type watchRequest struct {
	Label string `json:"label"`
}

// Add handles POST /orders/{id}/watch. The body is optional.
func (h *WatchHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req watchRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		RespondErrorI18n(r.Context(), w, http.StatusBadRequest, "error.bad_request", h.i18n)
		return
	}
	actor := requestctx.OperatorFromContext(r.Context()).Actor()
	watch, err := h.watches.Watch(r.Context(), chi.URLParam(r, "id"), req.Label, actor)
	if err != nil {
		respondServiceError(r.Context(), w, h.i18n, h.logger, err)
		return
	}
	RespondSuccessI18n(r.Context(), w, "message.watch_added", h.i18n, watch)
}

// Remove handles DELETE /orders/{id}/watch.
func (h *WatchHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if err := h.watches.Unwatch(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondServiceError(r.Context(), w, h.i18n, h.logger, err)
		return
	}
	RespondSuccessI18n(r.Context(), w, "message.watch_removed", h.i18n, nil)
}

// List handles GET /watch.
func (h *WatchHandler) List(w http.ResponseWriter, r *http.Request) {
	watches, err := h.watches.List(r.Context())
	if err != nil {
		respondServiceError(r.Context(), w, h.i18n, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"data":  watches,
		"count": len(watches),
	})
}

// RefreshAll handles POST /watch/refresh.
func (h *WatchHandler) RefreshAll(w http.ResponseWriter, r *http.Request) {
	result, err := h.watches.RefreshAll(r.Context())
	if err != nil {
		respondServiceError(r.Context(), w, h.i18n, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": result})
}
