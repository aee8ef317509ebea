package ui

import "time"

// Reporter receives scan progress. Implementations must be safe for
// concurrent use since targets and download workers report in parallel.
type Reporter interface {
	TargetStarted(target, folder string)
	DayScanned(target, day string, matched int)
	TargetFinished(target string, err error)
	DownloadQueued(id, target, filename string)
	DownloadFinished(id, status string, size int64, err error)
	RateLimited(wait time.Duration)
	LogInfo(format string, args ...interface{})
	LogWarning(format string, args ...interface{})
	LogError(format string, args ...interface{})
}

// Pauser is implemented by reporters that let the user pause the scan
type Pauser interface {
	IsPaused() bool
}

// NopReporter discards every event
type NopReporter struct{}

func (NopReporter) TargetStarted(string, string) {}
func (NopReporter) DayScanned(string, string, int) {}
func (NopReporter) TargetFinished(string, error) {}
func (NopReporter) DownloadQueued(string, string, string) {}
func (NopReporter) DownloadFinished(string, string, int64, error) {}
func (NopReporter) RateLimited(time.Duration) {}
func (NopReporter) LogInfo(string, ...interface{}) {}
func (NopReporter) LogWarning(string, ...interface{}) {}
func (NopReporter) LogError(string, ...interface{}) {}
