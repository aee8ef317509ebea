package tui

import (
	"fmt"
	"sync"
	"time"

	"dscraper/pkg/ui"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// DownloadState represents the state of a download
type DownloadState int

const (
	DownloadPending DownloadState = iota
	DownloadCompleted
	DownloadSkipped
	DownloadFailed
)

// DownloadItem represents a single queued attachment
type DownloadItem struct {
	ID       string
	Target   string
	Filename string
	Size     int64
	State    DownloadState
	Queued   time.Time
	Error    error
}

// TargetState is the scan progress of one target
type TargetState int

const (
	TargetScanning TargetState = iota
	TargetDone
	TargetFailed
)

// TargetItem is one row of the targets panel
type TargetItem struct {
	Name    string
	Folder  string
	Day     string
	Days    int
	Matched int
	State   TargetState
	Error   error
}

// Model represents the TUI model
type Model struct {
	// UI components
	spinner  spinner.Model
	progress progress.Model

	// Scan state
	targets      map[string]*TargetItem
	targetOrder  []string
	totalTargets int

	// Download state
	downloads     map[string]*DownloadItem
	downloadOrder []string
	maxConcurrent int

	// Stats
	totalDownloaded  int
	totalSkipped     int
	totalFailed      int
	totalSize        int64
	sessionStartTime time.Time

	// Rate limiting
	rateLimitHits int
	lastBackoff   time.Duration
	backoffUntil  time.Time

	// UI state
	width          int
	height         int
	showHelp       bool
	isPaused       bool
	logMessages    []LogMessage
	maxLogMessages int

	mu sync.RWMutex
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// NewModel creates a new TUI model for a run over totalTargets targets
func NewModel(totalTargets, maxConcurrent int) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(blurple)

	return Model{
		spinner:          s,
		progress:         progress.New(progress.WithDefaultGradient()),
		targets:          make(map[string]*TargetItem),
		totalTargets:     totalTargets,
		downloads:        make(map[string]*DownloadItem),
		maxConcurrent:    maxConcurrent,
		sessionStartTime: time.Now(),
		maxLogMessages:   50,
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// StartTarget adds or restarts a target row
func (m *Model) StartTarget(name, folder string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.targets[name]; !ok {
		m.targetOrder = append(m.targetOrder, name)
	}
	m.targets[name] = &TargetItem{Name: name, Folder: folder, State: TargetScanning}
}

// ScanDay records a scanned day for a target
func (m *Model) ScanDay(name, day string, matched int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.targets[name]; ok {
		t.Day = day
		t.Days++
		t.Matched += matched
	}
}

// FinishTarget marks a target done or failed
func (m *Model) FinishTarget(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.targets[name]
	if !ok {
		t = &TargetItem{Name: name}
		m.targets[name] = t
		m.targetOrder = append(m.targetOrder, name)
	}
	t.State = TargetDone
	if err != nil {
		t.State = TargetFailed
		t.Error = err
	}
}

// AddDownload adds a queued download
func (m *Model) AddDownload(id, target, filename string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.downloads[id]; ok {
		return
	}
	m.downloads[id] = &DownloadItem{
		ID:       id,
		Target:   target,
		Filename: filename,
		State:    DownloadPending,
		Queued:   time.Now(),
	}
	m.downloadOrder = append(m.downloadOrder, id)
}

// FinishDownload records the outcome of a download by status name
func (m *Model) FinishDownload(id, status string, size int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.downloads[id]
	if !ok {
		d = &DownloadItem{ID: id, Filename: id}
		m.downloads[id] = d
		m.downloadOrder = append(m.downloadOrder, id)
	}
	d.Size = size
	d.Error = err

	switch status {
	case "downloaded":
		d.State = DownloadCompleted
		m.totalDownloaded++
		m.totalSize += size
	case "skipped":
		d.State = DownloadSkipped
		m.totalSkipped++
	default:
		d.State = DownloadFailed
		m.totalFailed++
	}
}

// RecordRateLimit notes a back-off
func (m *Model) RecordRateLimit(wait time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rateLimitHits++
	m.lastBackoff = wait
	m.backoffUntil = time.Now().Add(wait)
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	color := dimWhite
	switch level {
	case "ERROR":
		color = lipgloss.Color("#ED4245")
	case "WARN":
		color = orange
	case "SUCCESS":
		color = green
	case "INFO":
		color = blurple
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   color,
	})

	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// Targets returns a copy of the target rows in start order
func (m *Model) Targets() []TargetItem {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]TargetItem, 0, len(m.targetOrder))
	for _, name := range m.targetOrder {
		out = append(out, *m.targets[name])
	}
	return out
}

// downloadsIn returns copies of downloads in state, oldest first
func (m *Model) downloadsIn(state DownloadState) []DownloadItem {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []DownloadItem
	for _, id := range m.downloadOrder {
		if d := m.downloads[id]; d != nil && d.State == state {
			out = append(out, *d)
		}
	}
	return out
}

// GetPendingDownloads returns downloads still in the queue
func (m *Model) GetPendingDownloads() []DownloadItem {
	return m.downloadsIn(DownloadPending)
}

// GetCompletedDownloads returns stored downloads
func (m *Model) GetCompletedDownloads() []DownloadItem {
	return m.downloadsIn(DownloadCompleted)
}

// GetFailedDownloads returns failed downloads
func (m *Model) GetFailedDownloads() []DownloadItem {
	return m.downloadsIn(DownloadFailed)
}

// Stats is a snapshot of the run counters
type Stats struct {
	TargetsDone  int
	TargetsTotal int
	Downloaded   int
	Skipped      int
	Failed       int
	Bytes        int64
	AvgSpeed     float64
	Elapsed      time.Duration
}

// GetStats returns the run counters
func (m *Model) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Stats{
		TargetsTotal: m.totalTargets,
		Downloaded:   m.totalDownloaded,
		Skipped:      m.totalSkipped,
		Failed:       m.totalFailed,
		Bytes:        m.totalSize,
		Elapsed:      time.Since(m.sessionStartTime),
	}
	for _, t := range m.targets {
		if t.State != TargetScanning {
			s.TargetsDone++
		}
	}
	if secs := s.Elapsed.Seconds(); secs > 0 {
		s.AvgSpeed = float64(s.Bytes) / secs
	}
	return s
}

// FormatBytes formats bytes to human readable format
func FormatBytes(bytes int64) string {
	return ui.FormatBytes(bytes)
}

// FormatSpeed formats speed in bytes per second
func FormatSpeed(bytesPerSecond float64) string {
	return fmt.Sprintf("%s/s", FormatBytes(int64(bytesPerSecond)))
}
