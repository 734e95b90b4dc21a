package middleware

import (
	"net/http"
	"time"

	"github.com/creamcroissant/orderdesk/internal/api/requestctx"
)

// LanguageMatcher resolves request preferences to a loaded language.
type LanguageMatcher interface {
	Match(preferences ...string) string
}

// I18n detects the caller's language and stores it in the context.
// Order: ?lang, X-I18N-Lang, the i18next cookie, then Accept-Language.
func I18n(matcher LanguageMatcher) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			query := r.URL.Query().Get("lang")
			prefs := []string{query, r.Header.Get("X-I18N-Lang")}
			if cookie, err := r.Cookie("i18next"); err == nil {
				prefs = append(prefs, cookie.Value)
			}
			prefs = append(prefs, r.Header.Get("Accept-Language"))

			lang := "en-US"
			if matcher != nil {
				lang = matcher.Match(firstNonEmpty(prefs))
			}

			// Persist an explicit choice for the portal.
			if query != "" {
				http.SetCookie(w, &http.Cookie{
					Name:    "i18next",
					Value:   lang,
					Path:    "/",
					Expires: time.Now().Add(365 * 24 * time.Hour),
				})
			}

			next.ServeHTTP(w, r.WithContext(requestctx.WithLanguage(r.Context(), lang)))
		})
	}
}

func firstNonEmpty(values []string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
