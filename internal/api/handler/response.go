package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/creamcroissant/orderdesk/internal/api/requestctx"
)

// Translator resolves message keys in the request language.
type Translator interface {
	Translate(lang, key string, args ...interface{}) string
}

// Helper to respond with JSON
func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("failed to encode response JSON", "error", err)
	}
}

func translate(ctx context.Context, tr Translator, key string, args ...interface{}) string {
	if tr == nil {
		return key
	}
	return tr.Translate(requestctx.GetLanguage(ctx), key, args...)
}

// RespondErrorI18n writes {"error": <translated key>, "code": key}.
func RespondErrorI18n(ctx context.Context, w http.ResponseWriter, status int, key string, tr Translator, args ...interface{}) {
	respondJSON(w, status, map[string]any{
		"error": translate(ctx, tr, key, args...),
		"code":  key,
	})
}

// RespondSuccessI18n writes {"message": <translated key>, "data": data}.
func RespondSuccessI18n(ctx context.Context, w http.ResponseWriter, key string, tr Translator, data any) {
	resp := map[string]any{
		"message": translate(ctx, tr, key),
	}
	if data != nil {
		resp["data"] = data
	}
	respondJSON(w, http.StatusOK, resp)
}

func decodeJSON(r *http.Request, dest any) error {
	return json.NewDecoder(r.Body).Decode(dest)
}

// RespondHealth writes the health check body.
func RespondHealth(w http.ResponseWriter, status int, state string) {
	respondJSON(w, status, map[string]any{
		"status": state,
		"ts":     time.Now().UTC().Format(time.RFC3339Nano),
	})
}
