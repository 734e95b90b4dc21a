package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/creamcroissant/orderdesk/internal/lifecycle"
	"github.com/creamcroissant/orderdesk/internal/service"
)

const timeLayout = "2006-01-02 15:04"

// View 实现 tea.Model
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}
	switch m.view {
	case ViewTracker:
		return m.renderTrackerView()
	default:
		return m.renderWatchListView()
	}
}

func (m Model) renderWatchListView() string {
	var b strings.Builder

	b.WriteString(styleHeader.Width(m.width).Render("  orderdesk · watched orders"))
	b.WriteString("\n\n")
	m.writeState(&b)

	tableHeader := fmt.Sprintf("  %-20s │ %-16s │ %-14s │ %s", "Order", "Label", "Status", "Checked")
	b.WriteString(styleTableHeader.Width(m.width).Render(tableHeader))
	b.WriteString("\n")
	b.WriteString(styleMuted().Render(strings.Repeat("─", m.width)))
	b.WriteString("\n")

	if len(m.watches) == 0 {
		b.WriteString(styleMuted().Render("  No watched orders. Use `orderdesk order watch <id>` or the admin API."))
		b.WriteString("\n")
	}
	visibleRows := m.height - 10
	if visibleRows < 5 {
		visibleRows = 5
	}
	startIdx := 0
	if m.selectedWatch >= visibleRows {
		startIdx = m.selectedWatch - visibleRows + 1
	}
	for i := startIdx; i < len(m.watches) && i < startIdx+visibleRows; i++ {
		w := m.watches[i]
		status := lifecycle.Status(w.LastStatus)
		checked := "-"
		if w.LastCheckedAt != nil {
			checked = time.Unix(*w.LastCheckedAt, 0).Format(timeLayout)
		}
		row := fmt.Sprintf("  %-20s │ %-16s │ %-14s │ %s",
			truncate(w.OrderID, 20), truncate(w.Label, 16), truncate(m.opts.Catalog.Label(m.opts.Lang, status), 14), checked)
		if i == m.selectedWatch {
			b.WriteString(styleTableRowSelected.Width(m.width).Render(row))
		} else {
			b.WriteString(styleTableRow.Render(row))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.renderHelp(m.keys.Up, m.keys.Down, m.keys.Enter, m.keys.Refresh, m.keys.Quit))
	return b.String()
}

func (m Model) renderTrackerView() string {
	var b strings.Builder

	title := "  orderdesk · order " + m.orderID
	if m.order != nil && m.order.Order.Number != "" {
		title = fmt.Sprintf("  orderdesk · order %s (%s)", m.order.Order.Number, m.orderID)
	}
	b.WriteString(styleHeader.Width(m.width).Render(title))
	b.WriteString("\n\n")
	m.writeState(&b)

	if m.order == nil {
		b.WriteString(m.renderHelp(m.keys.Refresh, m.keys.Back, m.keys.Quit))
		return b.String()
	}

	view := m.order
	status := view.Order.Status
	b.WriteString(m.renderSummary(view))
	b.WriteString("\n")

	progress := m.opts.Catalog.Localize(m.opts.Lang, view.Progress)
	if progress.Exception != nil {
		b.WriteString(m.renderException(progress.Exception))
	} else {
		b.WriteString(renderStepper(progress))
	}
	b.WriteString("\n\n")

	if !lifecycle.IsTerminal(status) && len(view.Actions.NextStatuses) > 0 {
		next := make([]string, 0, len(view.Actions.NextStatuses))
		for _, s := range view.Actions.NextStatuses {
			next = append(next, m.opts.Catalog.Label(m.opts.Lang, s))
		}
		b.WriteString(styleMuted().Render("  Next: " + strings.Join(next, ", ")))
		b.WriteString("\n\n")
	}

	b.WriteString(m.renderHistory(view.History))
	b.WriteString("\n")
	if m.opts.OrderID == "" {
		b.WriteString(m.renderHelp(m.keys.Refresh, m.keys.Back, m.keys.Quit))
	} else {
		b.WriteString(m.renderHelp(m.keys.Refresh, m.keys.Quit))
	}
	return b.String()
}

func (m Model) renderSummary(view *service.OrderView) string {
	order := view.Order
	lines := []string{
		styleLabel.Render("Status") + StatusChip(order.Status, m.opts.Catalog.Label(m.opts.Lang, order.Status)),
	}
	if order.CustomerName != "" {
		lines = append(lines, styleLabel.Render("Customer")+order.CustomerName)
	}
	if order.StoreName != "" {
		lines = append(lines, styleLabel.Render("Store")+order.StoreName)
	}
	if order.RiderID != "" {
		rider := order.RiderID
		if order.VehicleID != "" {
			rider += " / " + order.VehicleID
		}
		lines = append(lines, styleLabel.Render("Rider")+rider)
	}
	lines = append(lines, styleLabel.Render("Fetched")+view.FetchedAt.Local().Format(time.DateTime))
	return styleBox.Render(strings.Join(lines, "\n"))
}

// renderStepper draws the five tracker stages with their timestamps.
func renderStepper(progress lifecycle.Progress) string {
	cells := make([]string, 0, len(progress.Steps)*2)
	for i, step := range progress.Steps {
		marker, style := "○", styleStepTodo
		switch {
		case step.Completed:
			marker, style = "●", styleStepDone
		case step.Active:
			marker, style = "◉", styleStepActive
		}
		stamp := ""
		if step.Timestamp != nil {
			stamp = step.Timestamp.Local().Format(timeLayout)
		}
		cell := lipgloss.JoinVertical(lipgloss.Center,
			style.Render(marker),
			style.Render(step.Label),
			styleMuted().Render(stamp),
		)
		cells = append(cells, lipgloss.NewStyle().Width(18).Align(lipgloss.Center).Render(cell))
		if i < len(progress.Steps)-1 {
			connector := styleStepTodo.Render("──")
			if step.Completed {
				connector = styleStepDone.Render("──")
			}
			cells = append(cells, connector)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

func (m Model) renderException(exc *lifecycle.ProgressException) string {
	lines := []string{
		StatusChip(exc.Kind, m.opts.Catalog.Label(m.opts.Lang, exc.Kind)),
	}
	if exc.Reason != "" {
		lines = append(lines, styleLabel.Render("Reason")+exc.Reason)
	}
	if exc.OccurredAt != nil {
		lines = append(lines, styleLabel.Render("At")+exc.OccurredAt.Local().Format(timeLayout))
	}
	return styleBanner.BorderForeground(toneColor(exc.Kind.Tone())).Render(strings.Join(lines, "\n"))
}

func (m Model) renderHistory(history []lifecycle.HistoryEntry) string {
	if len(history) == 0 {
		return styleMuted().Render("  No history recorded.") + "\n"
	}
	var b strings.Builder
	b.WriteString(styleTableHeader.Width(m.width).Render(fmt.Sprintf("  %-16s │ %-30s │ %-12s │ %s", "When", "Change", "Actor", "Note")))
	b.WriteString("\n")

	ordered := append([]lifecycle.HistoryEntry(nil), history...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].OccurredAt.After(ordered[j].OccurredAt)
	})
	for _, entry := range ordered {
		change := m.opts.Catalog.Label(m.opts.Lang, entry.To)
		if entry.From != nil {
			change = m.opts.Catalog.Label(m.opts.Lang, *entry.From) + " → " + change
		}
		row := fmt.Sprintf("  %-16s │ %-30s │ %-12s │ %s",
			entry.OccurredAt.Local().Format(timeLayout), truncate(change, 30), truncate(entry.Actor, 12), entry.Note)
		b.WriteString(styleTableRow.Render(row))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) writeState(b *strings.Builder) {
	if m.err != nil {
		b.WriteString(styleError.Render(fmt.Sprintf("  Error: %v", m.err)))
		b.WriteString("\n\n")
	}
	if m.loading {
		b.WriteString(styleMuted().Render("  Loading..."))
		b.WriteString("\n\n")
	}
}

func (m Model) renderHelp(bindings ...key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, binding := range bindings {
		help := binding.Help()
		parts = append(parts, help.Key+" "+help.Desc)
	}
	line := strings.Join(parts, " • ")
	if !m.updatedAt.IsZero() {
		line += " • updated " + m.updatedAt.Format("15:04:05")
	}
	return styleHelp.Render(line)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 1 {
		return string(runes[:max])
	}
	return string(runes[:max-1]) + "…"
}
