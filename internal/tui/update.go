package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/surge-downloader/ytdlp-remote/internal/dispatch"
	"github.com/surge-downloader/ytdlp-remote/internal/events"
	"github.com/surge-downloader/ytdlp-remote/internal/poller"
	"github.com/surge-downloader/ytdlp-remote/internal/types"
	"github.com/surge-downloader/ytdlp-remote/internal/utils"
)

// Update handles messages and updates the model
func (m RootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case busMsg:
		m = m.handleEvent(msg.payload)
		if m.events == nil {
			return m, nil
		}
		return m, listenForActivity(m.events)

	case busClosedMsg:
		m.events = nil
		return m, nil

	case refreshDoneMsg:
		m.refreshing = false
		if m.source != nil {
			m.readings = m.source.Readings()
		}
		if msg.err != nil {
			m.pollErr = msg.err
			m.setNotice("Refresh failed: "+msg.err.Error(), true)
		}
		m.clampCursor()
		return m, nil

	case dispatchDoneMsg:
		label := utils.DisplayURL(msg.url, 40)
		switch {
		case msg.err != nil:
			m.setNotice("No reply for "+label, true)
		case !msg.outcome.Succeeded():
			m.setNotice(fmt.Sprintf("Failed: %s: %v", label, msg.outcome.Err), true)
		default:
			m.setNotice("Queued: "+label, false)
			if m.source != nil && !m.refreshing {
				m.refreshing = true
				return m, m.refreshCmd()
			}
		}
		return m, nil

	case clearDoneMsg:
		if msg.err != nil {
			m.setNotice("Clear failed: "+msg.err.Error(), true)
			return m, nil
		}
		m.setNotice("Cleared completed downloads", false)
		if m.source != nil && !m.refreshing {
			m.refreshing = true
			return m, m.refreshCmd()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.state == InputState {
			return m.updateInput(msg)
		}
		return m.updateDashboard(msg)
	}

	if m.state == InputState {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// handleEvent applies one bus message.
func (m RootModel) handleEvent(payload any) RootModel {
	switch ev := payload.(type) {
	case events.ReadingsUpdatedMsg:
		m.applyReadings(ev.Readings)
		m.lastPoll = ev.At
		m.pollErr = nil
		m.failures = 0
	case events.PollFailedMsg:
		m.pollErr = ev.Err
		m.failures = ev.Failures
		if m.source != nil {
			m.readings = m.source.Readings()
		}
	case events.TaskCancelledMsg:
		if ev.Success {
			m.setNotice("Cancelled "+ev.ID, false)
		} else {
			m.setNotice("Cancel refused for "+ev.ID, true)
		}
	}
	return m
}

func (m *RootModel) applyReadings(readings []types.Reading) {
	m.readings = readings
	for _, r := range readings {
		if r.Name == poller.ReadingPending {
			m.depth = append(m.depth, float64(r.Value))
			if len(m.depth) > HistoryLength {
				m.depth = m.depth[len(m.depth)-HistoryLength:]
			}
		}
	}
	m.clampCursor()
}

func (m *RootModel) clampCursor() {
	n := len(m.currentItems())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *RootModel) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeErr = isErr
	m.noticeAt = m.now()
}

func (m RootModel) updateDashboard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, DashboardKeys.Quit):
		return m, tea.Quit

	case key.Matches(msg, DashboardKeys.Refresh):
		if m.source == nil || m.refreshing {
			return m, nil
		}
		m.refreshing = true
		return m, m.refreshCmd()

	case key.Matches(msg, DashboardKeys.Add):
		if m.commander == nil {
			return m, nil
		}
		m.state = InputState
		m.input.Reset()
		return m, m.input.Focus()

	case key.Matches(msg, DashboardKeys.Tab):
		if m.tab == PendingTab {
			m.tab = CompletedTab
		} else {
			m.tab = PendingTab
		}
		m.cursor = 0

	case key.Matches(msg, DashboardKeys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, DashboardKeys.Down):
		if m.cursor < len(m.currentItems())-1 {
			m.cursor++
		}

	case key.Matches(msg, DashboardKeys.Clear):
		if m.commander == nil {
			return m, nil
		}
		return m, m.clearCmd()
	}
	return m, nil
}

func (m RootModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, InputKeys.Cancel):
		m.state = DashboardState
		m.input.Blur()
		return m, nil

	case key.Matches(msg, InputKeys.AudioOnly):
		m.audioOnly = !m.audioOnly
		return m, nil

	case key.Matches(msg, InputKeys.Submit):
		url := strings.TrimSpace(m.input.Value())
		task, err := m.commander.Dispatch(context.Background(), map[string]any{
			dispatch.ParamURL:       url,
			dispatch.ParamAudioOnly: m.audioOnly,
		})
		if err != nil {
			// Keep the popup open so the URL can be fixed.
			m.setNotice(err.Error(), true)
			return m, nil
		}
		m.state = DashboardState
		m.input.Blur()
		m.setNotice("Sending "+utils.DisplayURL(url, 40)+"...", false)
		return m, waitForTask(task)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}
