package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// ProgressDisplay renders a single status line for non-interactive runs. It
// implements Reporter.
type ProgressDisplay struct {
	mu       sync.Mutex
	out      io.Writer
	tracker  *StatusTracker
	targets  int
	finished int
	current  string
	day      string
	queued   int64
	isDebug  bool
}

// NewProgressDisplay creates a display for a run over targets targets
func NewProgressDisplay(targets int, debug bool) *ProgressDisplay {
	return NewProgressDisplayTo(stdout, targets, debug)
}

// NewProgressDisplayTo writes to out instead of stdout
func NewProgressDisplayTo(out io.Writer, targets int, debug bool) *ProgressDisplay {
	return &ProgressDisplay{
		out:     out,
		tracker: NewStatusTracker(),
		targets: targets,
		isDebug: debug,
	}
}

// Tracker exposes the counters behind the display
func (p *ProgressDisplay) Tracker() *StatusTracker {
	return p.tracker
}

func (p *ProgressDisplay) TargetStarted(target, folder string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = target
	if p.isDebug {
		fmt.Fprintf(p.out, "\n%s %s → %s\n", Magenta("→"), target, Dim(folder))
	}
	p.printProgress()
}

func (p *ProgressDisplay) DayScanned(target, day string, matched int) {
	p.tracker.AddDay()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.current, p.day = target, day
	if p.isDebug && matched > 0 {
		fmt.Fprintf(p.out, "\n%s %s %s: %d attachments\n", Cyan("•"), target, day, matched)
	}
	p.printProgress()
}

func (p *ProgressDisplay) TargetFinished(target string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.finished++
	if err != nil {
		fmt.Fprintf(p.out, "\n%s %s: %v\n", Red("✗"), target, err)
	}
	p.printProgress()
}

func (p *ProgressDisplay) DownloadQueued(id, target, filename string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queued++
}

func (p *ProgressDisplay) DownloadFinished(id, status string, size int64, err error) {
	p.tracker.Record(status, size)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isDebug {
		switch {
		case err != nil:
			fmt.Fprintf(p.out, "\n%s Failed: %s - %v\n", Red("✗"), id, err)
		case status == "downloaded":
			fmt.Fprintf(p.out, "\n%s %s • %s\n", Green("✓"), id, FormatBytes(size))
		}
		return
	}
	p.printProgress()
}

func (p *ProgressDisplay) RateLimited(wait time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "\n%s Rate limited. Waiting %s...\n", Yellow("⚠"), FormatDuration(wait))
}

func (p *ProgressDisplay) LogInfo(format string, args ...interface{}) {
	p.log(Cyan("i"), format, args...)
}

func (p *ProgressDisplay) LogWarning(format string, args ...interface{}) {
	p.log(Yellow("⚠"), format, args...)
}

func (p *ProgressDisplay) LogError(format string, args ...interface{}) {
	p.log(Red("✗"), format, args...)
}

func (p *ProgressDisplay) log(icon, format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "\n%s %s\n", icon, fmt.Sprintf(format, args...))
}

// printProgress prints the status line; callers hold p.mu
func (p *ProgressDisplay) printProgress() {
	if IsQuietMode() || p.isDebug {
		return
	}

	t := p.tracker
	line := fmt.Sprintf("\r%s [%s] %d/%d targets • %s • %d days • %d/%d files • %s",
		Cyan(p.current),
		Bar(int64(p.finished), int64(p.targets), 20),
		p.finished,
		p.targets,
		p.day,
		t.Days(),
		t.Finished(),
		p.queued,
		FormatBytes(t.Bytes()),
	)
	if n := t.Failed(); n > 0 {
		line += fmt.Sprintf(" • %s", Red(fmt.Sprintf("%d errors", n)))
	}

	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", 120), line)
}

// Complete prints the end-of-run summary
func (p *ProgressDisplay) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()

	t := p.tracker
	elapsed := t.GetElapsedTime()

	fmt.Fprintf(p.out, "\n\n%s Downloaded %d files from %d targets\n",
		Green("✓"),
		t.Downloaded(),
		p.finished,
	)
	fmt.Fprintf(p.out, "  %s %s in %s (%.1f files/min)\n",
		Dim("•"),
		FormatBytes(t.Bytes()),
		FormatDuration(elapsed),
		t.GetDownloadRate(),
	)
	if n := t.Skipped(); n > 0 {
		fmt.Fprintf(p.out, "  %s %d already present\n", Dim("•"), n)
	}
	if n := t.Failed(); n > 0 {
		fmt.Fprintf(p.out, "  %s %d downloads failed\n", Dim("•"), n)
	}
}
