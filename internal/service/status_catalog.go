package service

import (
	"github.com/creamcroissant/orderdesk/internal/lifecycle"
)

// Translator resolves i18n keys for a language.
type Translator interface {
	Translate(lang, key string, args ...interface{}) string
}

// StatusInfo describes one status for the portal's chips, dialogs and stepper.
type StatusInfo struct {
	Status   lifecycle.Status `json:"status"`
	Label    string           `json:"label"`
	Tone     lifecycle.Tone   `json:"tone"`
	Terminal bool             `json:"terminal"`
	Ordinal  *int             `json:"ordinal,omitempty"`
}

// StatusCatalog renders the status vocabulary in the caller's language.
type StatusCatalog struct {
	translator Translator
}

// NewStatusCatalog creates a catalog. A nil translator yields English labels.
func NewStatusCatalog(translator Translator) *StatusCatalog {
	return &StatusCatalog{translator: translator}
}

// Statuses lists every known status in declaration order.
func (c *StatusCatalog) Statuses(lang string) []StatusInfo {
	all := lifecycle.Statuses()
	out := make([]StatusInfo, 0, len(all))
	for _, s := range all {
		info := StatusInfo{
			Status:   s,
			Label:    c.Label(lang, s),
			Tone:     s.Tone(),
			Terminal: lifecycle.IsTerminal(s),
		}
		if ordinal, ok := lifecycle.OrdinalOf(s); ok {
			info.Ordinal = &ordinal
		}
		out = append(out, info)
	}
	return out
}

// Label returns the translated label, falling back to the built-in English one.
func (c *StatusCatalog) Label(lang string, s lifecycle.Status) string {
	if c == nil || c.translator == nil {
		return s.Label()
	}
	key := "status." + string(s)
	if label := c.translator.Translate(lang, key); label != "" && label != key {
		return label
	}
	return s.Label()
}

// Localize returns a copy of progress with step labels in lang. The input is
// left untouched since views may be shared between requests.
func (c *StatusCatalog) Localize(lang string, progress lifecycle.Progress) lifecycle.Progress {
	steps := make([]lifecycle.ProgressStep, len(progress.Steps))
	for i, step := range progress.Steps {
		step.Label = c.Label(lang, step.Status)
		steps[i] = step
	}
	progress.Steps = steps
	return progress
}
