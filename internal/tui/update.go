package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case orderLoadedMsg:
		// ignore a response for an order we already left
		if m.view != ViewTracker || msg.id != m.orderID {
			return m, nil
		}
		m.loading = false
		m.order = msg.view
		m.err = nil
		m.updatedAt = time.Now()
		return m, nil

	case watchesLoadedMsg:
		m.loading = false
		m.watches = msg.watches
		if m.selectedWatch >= len(m.watches) {
			m.selectedWatch = 0
		}
		m.err = nil
		m.updatedAt = time.Now()
		return m, nil

	case errorMsg:
		m.loading = false
		m.err = msg.err
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.reload(), m.tickCmd())
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.view == ViewWatchList && len(m.watches) > 0 {
			m.selectedWatch--
			if m.selectedWatch < 0 {
				m.selectedWatch = len(m.watches) - 1
			}
		}
	case key.Matches(msg, m.keys.Down):
		if m.view == ViewWatchList && len(m.watches) > 0 {
			m.selectedWatch++
			if m.selectedWatch >= len(m.watches) {
				m.selectedWatch = 0
			}
		}
	case key.Matches(msg, m.keys.Enter):
		if m.view == ViewWatchList && len(m.watches) > 0 {
			m.view = ViewTracker
			m.orderID = m.watches[m.selectedWatch].OrderID
			m.order = nil
			m.loading = true
			return m, m.loadOrder(m.orderID)
		}
	case key.Matches(msg, m.keys.Back):
		// a tracker opened from the command line has no list to return to
		if m.view == ViewTracker && m.opts.OrderID == "" {
			m.view = ViewWatchList
			m.order = nil
			m.orderID = ""
			m.err = nil
			m.loading = true
			return m, m.loadWatches()
		}
	case key.Matches(msg, m.keys.Refresh):
		m.loading = true
		return m, m.reload()
	}
	return m, nil
}
