package scraper

import (
	"sync"
	"time"

	"dscraper/internal/downloader"
	"dscraper/pkg/config"
)

// State is where a target is in its scan
type State int

const (
	StateIdle State = iota
	StateResolvingTargets
	StateScanning
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateResolvingTargets:
		return "resolving"
	case StateScanning:
		return "scanning"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// TargetResult is the outcome of one target
type TargetResult struct {
	Target         config.Target
	Folder         string
	State          State
	Days           int
	SearchFailures int
	Queued         int
	// Incremental is set when the scan stopped at an earlier checkpoint
	Incremental    bool
	Err            error
}

// Summary reports what a run did. It is safe to read once Run returns.
type Summary struct {
	RunID          string
	StartedAt      time.Time
	TargetsScanned int
	TargetsFailed  int
	DaysScanned    int
	SearchFailures int
	Downloaded     int
	Skipped        int
	Failed         int
	Bytes          int64
	Duration       time.Duration
	Targets        []TargetResult

	mu sync.Mutex
}

func (s *Summary) recordDownload(r downloader.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch r.Status {
	case downloader.StatusDownloaded:
		s.Downloaded++
		s.Bytes += r.Size
	case downloader.StatusSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
}

func (s *Summary) recordDay(searchFailed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.DaysScanned++
	if searchFailed {
		s.SearchFailures++
	}
}

func (s *Summary) recordTarget(r TargetResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch r.State {
	case StateDone:
		s.TargetsScanned++
	case StateFailed:
		s.TargetsFailed++
	}
	s.Targets = append(s.Targets, r)
}
