package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/surge-downloader/ytdlp-remote/internal/poller"
	"github.com/surge-downloader/ytdlp-remote/internal/types"
	"github.com/surge-downloader/ytdlp-remote/internal/utils"
)

func (m RootModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	if m.state == InputState {
		labelStyle := lipgloss.NewStyle().Width(12).Foreground(ColorSubtext)
		check := "[ ]"
		if m.audioOnly {
			check = "[x]"
		}
		content := lipgloss.JoinVertical(lipgloss.Left,
			"",
			lipgloss.JoinHorizontal(lipgloss.Left, labelStyle.Render("URL:"), m.input.View()),
			"",
			lipgloss.JoinHorizontal(lipgloss.Left, labelStyle.Render("Audio only:"), check),
			"",
			m.renderNotice(),
			m.help.View(InputKeys),
		)
		paddedContent := lipgloss.NewStyle().Padding(0, 2).Render(content)
		box := renderBtopBox("Add Download", paddedContent, 72, 10, ColorSecondary, false)
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
	}

	availableWidth := m.width - 2*DefaultPaddingX
	leftWidth := int(float64(availableWidth) * ListWidthRatio)
	rightWidth := availableWidth - leftWidth

	header := m.renderHeader(availableWidth)

	activeBox := renderBtopBox("Active", m.renderActive(leftWidth-4), leftWidth, 6, ColorBorder, false)
	listBox := renderBtopBox("Queue", m.renderList(leftWidth-4), leftWidth, MaxListRows+4, ColorBorder, false)
	left := lipgloss.JoinVertical(lipgloss.Left, activeBox, listBox)

	statsBox := renderBtopBox("Readings", m.renderStats(), rightWidth, 6, ColorBorder, true)
	graphHeight := MaxListRows + 4
	graph := renderDepthGraph(m.depth, rightWidth-4, graphHeight-3, graphScale(m.depth), ColorPrimary)
	graphContent := lipgloss.JoinVertical(lipgloss.Left,
		SubtleStyle.Render(fmt.Sprintf("max %.0f", graphScale(m.depth))),
		graph,
	)
	graphBox := renderBtopBox("Pending", lipgloss.NewStyle().Padding(0, 1).Render(graphContent), rightWidth, graphHeight, ColorBorder, true)
	right := lipgloss.JoinVertical(lipgloss.Left, statsBox, graphBox)

	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	footer := lipgloss.JoinVertical(lipgloss.Left, m.renderNotice(), m.help.View(DashboardKeys))

	return AppStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, body, footer))
}

func (m RootModel) renderHeader(width int) string {
	title := PanelTitleStyle.Render("ytdlp-remote") + SubtleStyle.Render("  "+m.endpoint)

	var status string
	switch {
	case m.refreshing:
		status = m.spinner.View() + SubtleStyle.Render(" refreshing")
	case m.pollErr != nil:
		status = ErrorStyle.Render(fmt.Sprintf("poll failed (%d): %s", m.failures, truncateString(m.pollErr.Error(), 40)))
	case m.stale():
		status = StaleStyle.Render("stale")
	case !m.lastPoll.IsZero():
		status = FreshStyle.Render("updated " + m.lastPoll.Format("15:04:05"))
	default:
		status = FreshStyle.Render("fresh")
	}

	gap := width - lipgloss.Width(title) - lipgloss.Width(status) - 2*DefaultPaddingX
	if gap < 1 {
		gap = 1
	}
	return HeaderStyle.Width(width).Render(title + strings.Repeat(" ", gap) + status)
}

func (m RootModel) renderActive(w int) string {
	item, ok := m.activeItem()
	if !ok {
		return SubtleStyle.Render("Nothing downloading")
	}
	title := ItemStyle.Bold(true).Render(truncateString(item.Title(), w))
	status := SubtleStyle.Render(item.Status())

	pct, ok := item.Progress()
	if !ok {
		return lipgloss.JoinVertical(lipgloss.Left, title, status)
	}
	m.progress.Width = w
	return lipgloss.JoinVertical(lipgloss.Left, title, status, m.progress.ViewAs(pct))
}

func (m RootModel) renderStats() string {
	var lines []string
	for _, name := range poller.ReadingNames {
		value := "-"
		style := StaleStyle
		if r, ok := m.reading(name); ok {
			value = fmt.Sprintf("%d", r.Value)
			if r.State == types.ReadingFresh {
				style = StatsValueStyle
			}
		}
		lines = append(lines, StatsLabelStyle.Render(strings.ToUpper(name[:1])+name[1:]+":")+style.Render(value))
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n"))
}

func (m RootModel) renderList(w int) string {
	pending, completed := 0, 0
	if r, ok := m.reading(poller.ReadingPending); ok {
		pending = r.Value
	}
	if r, ok := m.reading(poller.ReadingCompleted); ok {
		completed = r.Value
	}
	tabs := renderTabs(m.tab, pending, completed)

	items := m.currentItems()
	if len(items) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, tabs, "", SubtleStyle.Render("No downloads"))
	}

	// Scroll so the cursor stays visible
	start := 0
	if m.cursor >= MaxListRows {
		start = m.cursor - MaxListRows + 1
	}
	end := start + MaxListRows
	if end > len(items) {
		end = len(items)
	}

	lines := []string{tabs, ""}
	for i := start; i < end; i++ {
		lines = append(lines, renderItem(items[i], w, i == m.cursor))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderItem(item types.Item, w int, selected bool) string {
	label := item.Title()
	if u, ok := item["url"].(string); ok && label == u {
		label = utils.DisplayURL(u, w)
	}
	line := truncateString(label, w-2)
	if selected {
		return SelectedItemStyle.Render("▸ " + line)
	}
	return ItemStyle.Render("  " + line)
}

func (m RootModel) renderNotice() string {
	if m.notice == "" || m.now().Sub(m.noticeAt) > NoticeLifetime {
		return ""
	}
	if m.noticeErr {
		return ErrorStyle.Render(m.notice)
	}
	return NotificationStyle.Render(m.notice)
}

func truncateString(s string, i int) string {
	if i < 1 {
		return ""
	}
	runes := []rune(s)
	if len(runes) > i {
		return string(runes[:i-1]) + "…"
	}
	return s
}

func renderTabs(active ListTab, pendingCount, completedCount int) string {
	tabs := []struct {
		Label string
		Count int
	}{
		{"Pending", pendingCount},
		{"Completed", completedCount},
	}
	var rendered []string
	for i, t := range tabs {
		style := TabStyle
		if ListTab(i) == active {
			style = ActiveTabStyle
		}
		rendered = append(rendered, style.Render(fmt.Sprintf("%s (%d)", t.Label, t.Count)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

// renderBtopBox creates a btop-style box with title embedded in the top border
// Example (left):  ╭─ TITLE ─────────────────────────────────╮
// Example (right): ╭─────────────────────────────────── TITLE ─╮
func renderBtopBox(title string, content string, width, height int, borderColor lipgloss.Color, titleRight bool) string {
	const (
		topLeft     = "╭"
		topRight    = "╮"
		bottomLeft  = "╰"
		bottomRight = "╯"
		horizontal  = "─"
		vertical    = "│"
	)

	innerWidth := width - 2
	if innerWidth < 1 {
		innerWidth = 1
	}

	titleText := fmt.Sprintf(" %s ", title)
	remainingWidth := innerWidth - lipgloss.Width(titleText) - 1
	if remainingWidth < 0 {
		remainingWidth = 0
	}

	borderStyle := lipgloss.NewStyle().Foreground(borderColor)
	titleStyle := lipgloss.NewStyle().Foreground(ColorCyan).Bold(true)

	var topBorder string
	if titleRight {
		topBorder = borderStyle.Render(topLeft+strings.Repeat(horizontal, remainingWidth)) +
			titleStyle.Render(titleText) +
			borderStyle.Render(horizontal+topRight)
	} else {
		topBorder = borderStyle.Render(topLeft+horizontal) +
			titleStyle.Render(titleText) +
			borderStyle.Render(strings.Repeat(horizontal, remainingWidth)+topRight)
	}

	bottomBorder := borderStyle.Render(bottomLeft + strings.Repeat(horizontal, innerWidth) + bottomRight)

	contentLines := strings.Split(content, "\n")
	innerHeight := height - 2

	wrappedLines := make([]string, 0, innerHeight)
	for i := 0; i < innerHeight; i++ {
		line := ""
		if i < len(contentLines) {
			line = contentLines[i]
		}
		lineWidth := lipgloss.Width(line)
		if lineWidth < innerWidth {
			line += strings.Repeat(" ", innerWidth-lineWidth)
		} else if lineWidth > innerWidth {
			line = lipgloss.NewStyle().MaxWidth(innerWidth).Render(line)
		}
		wrappedLines = append(wrappedLines, borderStyle.Render(vertical)+line+borderStyle.Render(vertical))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		topBorder,
		strings.Join(wrappedLines, "\n"),
		bottomBorder,
	)
}
