package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// View renders the entire TUI
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, m.renderLogo())

	mainContent := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderLeftColumn(),
		"  ",
		m.renderRightColumn(),
	)
	sections = append(sections, mainContent)

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help"))
	}

	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

func (m *Model) renderLogo() string {
	logo := `
╔═══════════════════════════════════════════╗
║  D S C R A P E R   ·   attachment archive  ║
╚═══════════════════════════════════════════╝`

	return logoStyle.Width(m.width).Render(logo)
}

func (m *Model) renderLeftColumn() string {
	width := (m.width - 4) / 2

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatsPanel(width),
		m.renderTargetsPanel(width),
		m.renderQueuePanel(width),
	)
}

func (m *Model) renderRightColumn() string {
	width := (m.width - 4) / 2

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderRateLimitPanel(width),
		m.renderLogsPanel(width),
	)
}

func (m *Model) renderStatsPanel(width int) string {
	title := titleStyle.Render(" RUN STATS ")
	s := m.GetStats()

	done := 0.0
	if s.TargetsTotal > 0 {
		done = float64(s.TargetsDone) / float64(s.TargetsTotal)
	}
	bar := m.progress
	bar.Width = width - 8

	stats := []string{
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Session Time:"), statsValueStyle.Render(formatDuration(s.Elapsed))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Targets:"), statsValueStyle.Render(fmt.Sprintf("%d/%d", s.TargetsDone, s.TargetsTotal))),
		bar.ViewAs(done),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Downloaded:"), successStyle.Render(fmt.Sprintf("%d files", s.Downloaded))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Already present:"), statsValueStyle.Render(fmt.Sprintf("%d", s.Skipped))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Failed:"), errorStyle.Render(fmt.Sprintf("%d", s.Failed))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Total Size:"), statsValueStyle.Render(FormatBytes(s.Bytes))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Average Speed:"), speedStyle.Render(FormatSpeed(s.AvgSpeed))),
	}

	m.mu.RLock()
	paused := m.isPaused
	m.mu.RUnlock()
	if paused {
		stats = append(stats, warningStyle.Render("⏸  PAUSED"))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, stats...)),
	)
}

func (m *Model) renderTargetsPanel(width int) string {
	title := titleStyle.Render(" TARGETS ")
	targets := m.Targets()

	if len(targets) == 0 {
		content := lipgloss.NewStyle().Foreground(dimWhite).Render("Resolving targets...")
		return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
	}

	// newest rows are the interesting ones
	start := len(targets) - 6
	if start < 0 {
		start = 0
	}

	var rows []string
	for _, t := range targets[start:] {
		rows = append(rows, m.renderTargetItem(t))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, rows...)),
	)
}

func (m *Model) renderTargetItem(t TargetItem) string {
	switch t.State {
	case TargetDone:
		return queueItemCompletedStyle.Render(fmt.Sprintf("✓ %s · %d days · %d matched", t.Name, t.Days, t.Matched))
	case TargetFailed:
		return errorStyle.Render(fmt.Sprintf("  ✗ %s · %v", t.Name, t.Error))
	default:
		return queueItemActiveStyle.Render(fmt.Sprintf("%s %s · %s · %d matched", m.spinner.View(), t.Name, t.Day, t.Matched))
	}
}

func (m *Model) renderQueuePanel(width int) string {
	title := titleStyle.Render(" DOWNLOAD QUEUE ")

	pending := m.GetPendingDownloads()
	completed := m.GetCompletedDownloads()

	var items []string

	if n := len(pending); n > 0 {
		items = append(items, warningStyle.Render(fmt.Sprintf("⏳ %d pending", n)))
		for i := 0; i < 3 && i < n; i++ {
			items = append(items, queueItemStyle.Render("• "+pending[i].Filename))
		}
		if n > 3 {
			items = append(items, lipgloss.NewStyle().Foreground(dimWhite).Render(fmt.Sprintf("  ... and %d more", n-3)))
		}
	}

	if n := len(completed); n > 0 {
		items = append(items, "", successStyle.Render(fmt.Sprintf("✓ %d completed", n)))
		start := n - 3
		if start < 0 {
			start = 0
		}
		for _, d := range completed[start:] {
			items = append(items, queueItemCompletedStyle.Render(fmt.Sprintf("✓ %s (%s)", d.Filename, FormatBytes(d.Size))))
		}
	}

	if len(items) == 0 {
		items = append(items, lipgloss.NewStyle().Foreground(dimWhite).Render("Queue empty"))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, items...)),
	)
}

func (m *Model) renderRateLimitPanel(width int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	title := titleStyle.Render(" RATE LIMIT STATUS ")

	remaining := time.Until(m.backoffUntil)
	if remaining < 0 {
		remaining = 0
	}

	// the bar drains as the current back-off elapses
	usage := 0.0
	if m.lastBackoff > 0 {
		usage = float64(remaining) / float64(m.lastBackoff) * 100
	}
	barWidth := width - 8
	filled := int(usage * float64(barWidth) / 100)
	barStyle := GetRateLimitStyle(usage)
	bar := barStyle.Render(strings.Repeat("█", filled)) +
		progressEmptyStyle.Render(strings.Repeat("░", barWidth-filled))

	content := []string{
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Back-offs:"), barStyle.Render(fmt.Sprintf("%d", m.rateLimitHits))),
		bar,
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Resume in:"), statsValueStyle.Render(formatDuration(remaining))),
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(content, "\n")),
	)
}

func (m *Model) renderLogsPanel(width int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	title := titleStyle.Render(" LOGS ")

	start := len(m.logMessages) - 10
	if start < 0 {
		start = 0
	}

	maxMsgLen := width - 25
	var logs []string
	for _, entry := range m.logMessages[start:] {
		timestamp := logTimestampStyle.Render(entry.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(entry.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", entry.Level))

		text := entry.Message
		if maxMsgLen > 3 && len(text) > maxMsgLen {
			text = text[:maxMsgLen-3] + "..."
		}
		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, logMessageStyle.Render(text)))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = lipgloss.NewStyle().Foreground(dimWhite).Render("No logs yet...")
	}

	logsHeight := m.height - 35
	if logsHeight < 5 {
		logsHeight = 5
	}

	return panelStyle.Width(width).Height(logsHeight).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

func (m *Model) renderHelp() string {
	help := `
  Keys:
    q/Q      - Quit the dashboard and cancel the scan
    p/P      - Pause/Resume between days
    ctrl+l   - Clear logs
    ?        - Toggle this help

  Status Indicators:
    ` + successStyle.Render("Green") + `    - Scanning/Downloaded
    ` + warningStyle.Render("Orange") + `   - Pending/Backing off
    ` + errorStyle.Render("Red") + `      - Failed
`

	return panelStyle.Width(m.width).Render(help)
}

// formatDuration formats a duration as a clock
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "00:00"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
