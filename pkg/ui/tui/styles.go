package tui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	blurple  = lipgloss.Color("#5865F2")
	fuchsia  = lipgloss.Color("#EB459E")
	green    = lipgloss.Color("#57F287")
	yellow   = lipgloss.Color("#FEE75C")
	orange   = lipgloss.Color("#F0B232")
	darkBg   = lipgloss.Color("#1E1F22")
	darkBg2  = lipgloss.Color("#2B2D31")
	dimWhite = lipgloss.Color("#B5BAC1")

	// Base styles
	baseStyle = lipgloss.NewStyle().
			Background(darkBg).
			Foreground(dimWhite)

	// Logo style with gradient effect
	logoStyle = lipgloss.NewStyle().
			Foreground(blurple).
			Bold(true).
			Padding(1, 0).
			Align(lipgloss.Center)

	// Panel styles
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(fuchsia).
			Background(darkBg2).
			Padding(1, 2)

	// Progress bar styles
	progressEmptyStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#333333"))

	// Stats styles
	statsLabelStyle = lipgloss.NewStyle().
			Foreground(blurple).
			Bold(true)

	statsValueStyle = lipgloss.NewStyle().
			Foreground(yellow)

	// Status styles
	successStyle = lipgloss.NewStyle().
			Foreground(green).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ED4245")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(orange).
			Bold(true)

	// Queue item styles
	queueItemStyle = lipgloss.NewStyle().
			PaddingLeft(2)

	queueItemActiveStyle = lipgloss.NewStyle().
				Foreground(green).
				Bold(true).
				PaddingLeft(2)

	queueItemCompletedStyle = lipgloss.NewStyle().
				Foreground(dimWhite).
				Faint(true).
				PaddingLeft(2)

	// Log styles
	logTimestampStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#666666"))

	logMessageStyle = lipgloss.NewStyle().
			Foreground(dimWhite)

	// Help style
	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Padding(1, 0, 0, 2)

	// Title styles for panels
	titleStyle = lipgloss.NewStyle().
			Background(fuchsia).
			Foreground(darkBg).
			Bold(true).
			Padding(0, 1)

	// Rate limit styles
	rateLimitNormalStyle = lipgloss.NewStyle().
				Foreground(green)

	rateLimitWarningStyle = lipgloss.NewStyle().
				Foreground(orange)

	rateLimitCriticalStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#ED4245"))

	speedStyle = lipgloss.NewStyle().
			Foreground(blurple)
)

// GetRateLimitStyle picks a colour for how much of the current back-off
// remains, in percent
func GetRateLimitStyle(usage float64) lipgloss.Style {
	switch {
	case usage >= 90:
		return rateLimitCriticalStyle
	case usage >= 70:
		return rateLimitWarningStyle
	default:
		return rateLimitNormalStyle
	}
}
