package handler

import (
	"strings"

	"github.com/creamcroissant/orderdesk/internal/lifecycle"
)

// statusETag tags an order representation with the status it was rendered in.
func statusETag(status lifecycle.Status) string {
	trimmed := strings.TrimSpace(string(status))
	if trimmed == "" {
		return ""
	}
	return "\"" + trimmed + "\""
}

// parseIfMatch extracts the expected status from an If-Match header.
func parseIfMatch(header string) string {
	trimmed := strings.TrimSpace(header)
	trimmed = strings.TrimPrefix(trimmed, "W/")
	if trimmed == "*" {
		return ""
	}
	return strings.Trim(trimmed, "\"")
}
