package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Message types for the TUI

// TargetStartMsg is sent when a target's folder is ready and scanning begins
type TargetStartMsg struct {
	Target string
	Folder string
}

// DayScannedMsg is sent after each day's search
type DayScannedMsg struct {
	Target  string
	Day     string
	Matched int
}

// TargetDoneMsg is sent when a target finishes or fails
type TargetDoneMsg struct {
	Target string
	Error  error
}

// DownloadQueuedMsg is sent when an attachment is handed to the pool
type DownloadQueuedMsg struct {
	ID       string
	Target   string
	Filename string
}

// DownloadDoneMsg is sent with the outcome of a download
type DownloadDoneMsg struct {
	ID     string
	Status string
	Size   int64
	Error  error
}

// RateLimitMsg is sent when a request backs off
type RateLimitMsg struct {
	Wait time.Duration
}

// LogMsg is sent to add a log message
type LogMsg struct {
	Level   string
	Message string
}

// TickMsg is sent periodically to update the UI
type TickMsg time.Time

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		return m, tea.Batch(tickCmd(), m.spinner.Tick)

	case TargetStartMsg:
		m.StartTarget(msg.Target, msg.Folder)
		m.AddLogMessage("INFO", "Scanning "+msg.Target)
		return m, nil

	case DayScannedMsg:
		m.ScanDay(msg.Target, msg.Day, msg.Matched)
		return m, nil

	case TargetDoneMsg:
		m.FinishTarget(msg.Target, msg.Error)
		if msg.Error != nil {
			m.AddLogMessage("ERROR", "Failed: "+msg.Target+" - "+msg.Error.Error())
		} else {
			m.AddLogMessage("SUCCESS", "Finished "+msg.Target)
		}
		return m, nil

	case DownloadQueuedMsg:
		m.AddDownload(msg.ID, msg.Target, msg.Filename)
		return m, nil

	case DownloadDoneMsg:
		m.FinishDownload(msg.ID, msg.Status, msg.Size, msg.Error)
		if msg.Error != nil {
			m.AddLogMessage("ERROR", "Download failed: "+msg.ID+" - "+msg.Error.Error())
		}
		return m, nil

	case RateLimitMsg:
		m.RecordRateLimit(msg.Wait)
		m.AddLogMessage("WARN", "Rate limited, backing off "+msg.Wait.String())
		return m, nil

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil
	}

	return m, nil
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		return m, tea.Quit

	case "p", "P":
		m.mu.Lock()
		m.isPaused = !m.isPaused
		paused := m.isPaused
		m.mu.Unlock()
		if paused {
			m.AddLogMessage("WARN", "Scan paused by user")
		} else {
			m.AddLogMessage("INFO", "Scan resumed by user")
		}
		return m, nil

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.mu.Lock()
		m.logMessages = nil
		m.mu.Unlock()
		return m, nil
	}

	return m, nil
}

// tickCmd returns a command that sends a tick message
func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
