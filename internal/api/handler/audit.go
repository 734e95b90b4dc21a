package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/creamcroissant/orderdesk/internal/repository"
	"github.com/creamcroissant/orderdesk/internal/service"
)

// AuditHandler exposes the transition audit log.
type AuditHandler struct {
	audits service.AuditService
	i18n   Translator
	logger *slog.Logger
}

func NewAuditHandler(audits service.AuditService, tr Translator, logger *slog.Logger) *AuditHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditHandler{audits: audits, i18n: tr, logger: logger}
}

// ForOrder handles GET /orders/{id}/audit.
func (h *AuditHandler) ForOrder(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.parseFilter(w, r)
	if !ok {
		return
	}
	filter.OrderID = strings.TrimSpace(chi.URLParam(r, "id"))
	h.list(w, r, filter)
}

// List handles GET /audit?order_id=&outcome=&start_at=&end_at=.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.parseFilter(w, r)
	if !ok {
		return
	}
	filter.OrderID = strings.TrimSpace(r.URL.Query().Get("order_id"))
	h.list(w, r, filter)
}

func (h *AuditHandler) list(w http.ResponseWriter, r *http.Request, filter repository.AuditFilter) {
	audits, total, err := h.audits.List(r.Context(), filter)
	if err != nil {
		respondServiceError(r.Context(), w, h.i18n, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"data":  audits,
		"count": len(audits),
		"total": total,
	})
}

func (h *AuditHandler) parseFilter(w http.ResponseWriter, r *http.Request) (repository.AuditFilter, bool) {
	query := r.URL.Query()
	filter := repository.AuditFilter{Outcome: strings.TrimSpace(query.Get("outcome"))}

	var err error
	if filter.Limit, err = queryInt(query.Get("limit")); err != nil {
		RespondErrorI18n(r.Context(), w, http.StatusBadRequest, "error.bad_request", h.i18n)
		return filter, false
	}
	if filter.Offset, err = queryInt(query.Get("offset")); err != nil {
		RespondErrorI18n(r.Context(), w, http.StatusBadRequest, "error.bad_request", h.i18n)
		return filter, false
	}
	for name, dest := range map[string]**int64{"start_at": &filter.StartAt, "end_at": &filter.EndAt} {
		raw := strings.TrimSpace(query.Get(name))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			RespondErrorI18n(r.Context(), w, http.StatusBadRequest, "error.bad_request", h.i18n)
			return filter, false
		}
		*dest = &v
	}
	return filter, true
}

func queryInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, strconv.ErrSyntax
	}
	return v, nil
}
