package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/creamcroissant/orderdesk/internal/lifecycle"
)

var (
	// Colors
	colorPrimary = lipgloss.Color("#7C3AED")
	colorInfo    = lipgloss.Color("#3B82F6")
	colorSuccess = lipgloss.Color("#22C55E")
	colorWarning = lipgloss.Color("#F59E0B")
	colorDanger  = lipgloss.Color("#EF4444")
	colorMuted   = lipgloss.Color("#6B7280")
	colorBorder  = lipgloss.Color("#374151")

	styleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(colorPrimary).
			Padding(0, 1)

	styleHelp = lipgloss.NewStyle().
			Foreground(colorMuted).
			Padding(0, 1)

	styleError = lipgloss.NewStyle().
			Foreground(colorDanger).
			Bold(true)

	styleTableHeader = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#FFFFFF")).
				Background(colorPrimary).
				Padding(0, 1)

	styleTableRow = lipgloss.NewStyle().
			Padding(0, 1)

	styleTableRowSelected = lipgloss.NewStyle().
				Background(lipgloss.Color("#1F2937")).
				Foreground(lipgloss.Color("#FFFFFF")).
				Padding(0, 1)

	styleBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 2)

	styleBanner = lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(colorDanger).
			Padding(0, 2)

	styleLabel = lipgloss.NewStyle().
			Foreground(colorMuted).
			Width(14)

	styleStepDone   = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	styleStepActive = lipgloss.NewStyle().Foreground(colorInfo).Bold(true)
	styleStepTodo   = lipgloss.NewStyle().Foreground(colorMuted)
)

func styleMuted() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(colorMuted)
}

// toneColor maps a status tone onto the palette.
func toneColor(tone lifecycle.Tone) lipgloss.Color {
	switch tone {
	case lifecycle.ToneInfo:
		return colorInfo
	case lifecycle.ToneSuccess:
		return colorSuccess
	case lifecycle.ToneWarning:
		return colorWarning
	case lifecycle.ToneError:
		return colorDanger
	default:
		return colorMuted
	}
}

// StatusChip renders a status label coloured by its tone.
func StatusChip(status lifecycle.Status, label string) string {
	if label == "" {
		label = status.Label()
	}
	return lipgloss.NewStyle().
		Foreground(toneColor(status.Tone())).
		Bold(true).
		Render("● " + label)
}
