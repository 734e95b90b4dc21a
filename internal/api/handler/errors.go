package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/creamcroissant/orderdesk/internal/lifecycle"
	"github.com/creamcroissant/orderdesk/internal/orderclient"
	"github.com/creamcroissant/orderdesk/internal/service"
)

// respondServiceError maps lifecycle, service and client errors onto HTTP.
// Stale-state responses carry the authoritative order view under "data" so the
// portal can re-render without a second request.
func respondServiceError(ctx context.Context, w http.ResponseWriter, tr Translator, logger *slog.Logger, err error) {
	if stale, ok := service.AsStaleState(err); ok {
		body := map[string]any{
			"error": translate(ctx, tr, "error.stale_state"),
			"code":  "error.stale_state",
		}
		if stale.View != nil {
			body["data"] = stale.View
		}
		respondJSON(w, http.StatusConflict, body)
		return
	}

	if invalid, ok := lifecycle.AsInvalidTransition(err); ok {
		switch {
		case errors.Is(err, lifecycle.ErrUnknownStatus):
			RespondErrorI18n(ctx, w, http.StatusBadRequest, "error.invalid_status", tr)
		case errors.Is(err, lifecycle.ErrReasonRequired):
			RespondErrorI18n(ctx, w, http.StatusUnprocessableEntity, "error.reason_required", tr)
		case errors.Is(err, lifecycle.ErrAssignmentWindow):
			RespondErrorI18n(ctx, w, http.StatusUnprocessableEntity, "error.assignment_window", tr)
		case errors.Is(err, lifecycle.ErrTerminalStatus):
			RespondErrorI18n(ctx, w, http.StatusUnprocessableEntity, "error.terminal_status", tr, statusLabel(ctx, tr, invalid.Current))
		default:
			RespondErrorI18n(ctx, w, http.StatusUnprocessableEntity, "error.invalid_transition", tr,
				statusLabel(ctx, tr, invalid.Current), statusLabel(ctx, tr, invalid.Requested))
		}
		return
	}

	var netErr *orderclient.NetworkError
	switch {
	case errors.Is(err, lifecycle.ErrUnknownStatus):
		RespondErrorI18n(ctx, w, http.StatusBadRequest, "error.invalid_status", tr)
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, orderclient.ErrOrderIDRequired):
		RespondErrorI18n(ctx, w, http.StatusBadRequest, "error.bad_request", tr)
	case errors.Is(err, service.ErrMutationInFlight):
		RespondErrorI18n(ctx, w, http.StatusConflict, "error.in_flight", tr)
	case errors.Is(err, service.ErrNotFound):
		RespondErrorI18n(ctx, w, http.StatusNotFound, "error.not_found", tr)
	case errors.Is(err, service.ErrUnauthorized):
		RespondErrorI18n(ctx, w, http.StatusUnauthorized, "error.unauthorized", tr)
	case errors.Is(err, context.DeadlineExceeded):
		RespondErrorI18n(ctx, w, http.StatusGatewayTimeout, "error.upstream", tr)
	case errors.As(err, &netErr), errors.Is(err, orderclient.ErrMalformedResponse):
		logger.Warn("order-service unavailable", "error", err)
		RespondErrorI18n(ctx, w, http.StatusBadGateway, "error.upstream", tr)
	default:
		if _, ok := orderclient.AsServerError(err); ok {
			logger.Warn("order-service error", "error", err)
			RespondErrorI18n(ctx, w, http.StatusBadGateway, "error.upstream", tr)
			return
		}
		logger.Error("request failed", "error", err)
		RespondErrorI18n(ctx, w, http.StatusInternalServerError, "error.internal_server_error", tr)
	}
}

func statusLabel(ctx context.Context, tr Translator, status lifecycle.Status) string {
	if status == "" {
		return "-"
	}
	key := "status." + string(status)
	if label := translate(ctx, tr, key); label != key {
		return label
	}
	return status.Label()
}
