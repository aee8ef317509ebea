package ui

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
)

// StatusTracker counts download outcomes. All methods are safe for
// concurrent use.
type StatusTracker struct {
	downloaded atomic.Int64
	skipped    atomic.Int64
	failed     atomic.Int64
	bytes      atomic.Int64
	days       atomic.Int64
	StartTime  time.Time
}

// NewStatusTracker creates a new status tracker
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{
		StartTime: time.Now(),
	}
}

// Record counts one finished download by status name
func (st *StatusTracker) Record(status string, size int64) {
	switch status {
	case "downloaded":
		st.downloaded.Add(1)
		st.bytes.Add(size)
	case "skipped":
		st.skipped.Add(1)
	default:
		st.failed.Add(1)
	}
}

// AddDay counts one scanned day
func (st *StatusTracker) AddDay() {
	st.days.Add(1)
}

func (st *StatusTracker) Downloaded() int64 { return st.downloaded.Load() }
func (st *StatusTracker) Skipped() int64    { return st.skipped.Load() }
func (st *StatusTracker) Failed() int64     { return st.failed.Load() }
func (st *StatusTracker) Bytes() int64      { return st.bytes.Load() }
func (st *StatusTracker) Days() int64       { return st.days.Load() }

// Finished returns the number of downloads with any outcome
func (st *StatusTracker) Finished() int64 {
	return st.Downloaded() + st.Skipped() + st.Failed()
}

// GetElapsedTime returns the elapsed time since tracking started
func (st *StatusTracker) GetElapsedTime() time.Duration {
	return time.Since(st.StartTime)
}

// GetDownloadRate returns the average download rate (files per minute)
func (st *StatusTracker) GetDownloadRate() float64 {
	elapsed := st.GetElapsedTime().Minutes()
	if elapsed == 0 {
		return 0
	}
	return float64(st.Downloaded()) / elapsed
}

// Bar renders done out of total as a fixed width bar
func Bar(done, total int64, width int) string {
	filled := 0
	if total > 0 {
		filled = int(float64(done) / float64(total) * float64(width))
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, width-filled)
}

// FormatBytes formats bytes in a human-readable way
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
