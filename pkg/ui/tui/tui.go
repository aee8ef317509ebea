package tui

import (
	"fmt"
	"time"

	"dscraper/pkg/ui"

	tea "github.com/charmbracelet/bubbletea"
)

// TUI is the interactive scan dashboard. It implements ui.Reporter and
// ui.Pauser.
type TUI struct {
	program *tea.Program
	model   *Model
}

var (
	_ ui.Reporter = (*TUI)(nil)
	_ ui.Pauser   = (*TUI)(nil)
)

// NewTUI creates a dashboard for totalTargets targets
func NewTUI(totalTargets, maxConcurrent int) *TUI {
	model := NewModel(totalTargets, maxConcurrent)
	program := tea.NewProgram(&model, tea.WithAltScreen())

	return &TUI{
		program: program,
		model:   &model,
	}
}

// Start runs the TUI until it quits
func (t *TUI) Start() error {
	go func() {
		time.Sleep(100 * time.Millisecond)
		t.program.Send(TickMsg(time.Now()))
	}()

	_, err := t.program.Run()
	return err
}

// Stop stops the TUI gracefully
func (t *TUI) Stop() {
	t.program.Quit()
}

// Wait blocks until the dashboard has exited
func (t *TUI) Wait() {
	t.program.Wait()
}

// Send sends a message to the TUI
func (t *TUI) Send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

func (t *TUI) TargetStarted(target, folder string) {
	t.Send(TargetStartMsg{Target: target, Folder: folder})
}

func (t *TUI) DayScanned(target, day string, matched int) {
	t.Send(DayScannedMsg{Target: target, Day: day, Matched: matched})
}

func (t *TUI) TargetFinished(target string, err error) {
	t.Send(TargetDoneMsg{Target: target, Error: err})
}

func (t *TUI) DownloadQueued(id, target, filename string) {
	t.Send(DownloadQueuedMsg{ID: id, Target: target, Filename: filename})
}

func (t *TUI) DownloadFinished(id, status string, size int64, err error) {
	t.Send(DownloadDoneMsg{ID: id, Status: status, Size: size, Error: err})
}

func (t *TUI) RateLimited(wait time.Duration) {
	t.Send(RateLimitMsg{Wait: wait})
}

// Log sends a log message to the TUI
func (t *TUI) Log(level, format string, args ...interface{}) {
	t.Send(LogMsg{Level: level, Message: fmt.Sprintf(format, args...)})
}

func (t *TUI) LogInfo(format string, args ...interface{}) {
	t.Log("INFO", format, args...)
}

func (t *TUI) LogSuccess(format string, args ...interface{}) {
	t.Log("SUCCESS", format, args...)
}

func (t *TUI) LogWarning(format string, args ...interface{}) {
	t.Log("WARN", format, args...)
}

func (t *TUI) LogError(format string, args ...interface{}) {
	t.Log("ERROR", format, args...)
}

// IsPaused reports whether the user paused the scan
func (t *TUI) IsPaused() bool {
	t.model.mu.RLock()
	defer t.model.mu.RUnlock()
	return t.model.isPaused
}
