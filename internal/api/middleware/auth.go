// 文件路径: internal/api/middleware/auth.go
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/creamcroissant/orderdesk/internal/api/requestctx"
	"github.com/creamcroissant/orderdesk/internal/auth/token"
	"github.com/creamcroissant/orderdesk/internal/orderclient"
)

// TokenParser verifies admin bearer tokens.
type TokenParser interface {
	Parse(tokenString string) (*token.Claims, error)
}

// AdminGuard ensures requests carry a valid operator token. When forwardToken
// is set the caller's token is passed on to the order-service.
func AdminGuard(tokens TokenParser, forwardToken bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokens == nil {
				writeUnauthorized(w, "auth unavailable")
				return
			}
			raw := extractBearer(r.Header.Get("Authorization"))
			if raw == "" {
				writeUnauthorized(w, "missing authorization header")
				return
			}
			claims, err := tokens.Parse(raw)
			if err != nil {
				if errors.Is(err, token.ErrExpiredToken) {
					writeUnauthorized(w, "token expired")
					return
				}
				writeUnauthorized(w, "invalid token")
				return
			}
			ctx := requestctx.WithOperator(r.Context(), requestctx.OperatorClaims{
				Subject: claims.Subject,
				Name:    claims.Name,
				Role:    claims.Role,
			})
			noteOperator(ctx, claims.Subject)
			if forwardToken {
				ctx = orderclient.WithToken(ctx, raw)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireOperator rejects read-only tokens on mutating routes.
func RequireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := requestctx.OperatorFromContext(r.Context())
		if claims.Role != token.RoleOperator {
			writeForbidden(w, "operator role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type operatorHolder struct {
	actor string
}

type operatorHolderKey struct{}

func withOperatorHolder(ctx context.Context, holder *operatorHolder) context.Context {
	return context.WithValue(ctx, operatorHolderKey{}, holder)
}

func noteOperator(ctx context.Context, actor string) {
	if holder, ok := ctx.Value(operatorHolderKey{}).(*operatorHolder); ok {
		holder.actor = actor
	}
}

func extractBearer(header string) string {
	trimmed := strings.TrimSpace(header)
	if trimmed == "" {
		return ""
	}
	parts := strings.SplitN(trimmed, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return trimmed
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeJSONError(w, http.StatusUnauthorized, message)
}

func writeForbidden(w http.ResponseWriter, message string) {
	writeJSONError(w, http.StatusForbidden, message)
}

func writeTooLarge(w http.ResponseWriter) {
	writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
}
