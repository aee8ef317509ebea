// Package metadata writes a JSON report for every scrape run and reads
// them back for the history command.
package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"dscraper/pkg/scraper"
)

const reportExt = ".run.json"

// RunReport is the persisted form of a scraper.Summary
type RunReport struct {
	RunID          string         `json:"run_id"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
	Duration       string         `json:"duration"`
	Cancelled      bool           `json:"cancelled"`
	TargetsScanned int            `json:"targets_scanned"`
	TargetsFailed  int            `json:"targets_failed"`
	DaysScanned    int            `json:"days_scanned"`
	SearchFailures int            `json:"search_failures"`
	Downloaded     int            `json:"downloaded"`
	Skipped        int            `json:"skipped"`
	Failed         int            `json:"failed"`
	Bytes          int64          `json:"bytes"`
	Targets        []TargetReport `json:"targets"`
}

// TargetReport is one target of a run
type TargetReport struct {
	Target         string `json:"target"`
	Folder         string `json:"folder,omitempty"`
	State          string `json:"state"`
	Days           int    `json:"days"`
	SearchFailures int    `json:"search_failures"`
	Queued         int    `json:"queued"`
	Incremental    bool   `json:"incremental,omitempty"`
	Error          string `json:"error,omitempty"`
}

// FromSummary converts a finished run. cancelled marks a run cut short.
func FromSummary(s *scraper.Summary, cancelled bool) *RunReport {
	r := &RunReport{
		RunID:          s.RunID,
		StartedAt:      s.StartedAt,
		FinishedAt:     s.StartedAt.Add(s.Duration),
		Duration:       s.Duration.Round(time.Millisecond).String(),
		Cancelled:      cancelled,
		TargetsScanned: s.TargetsScanned,
		TargetsFailed:  s.TargetsFailed,
		DaysScanned:    s.DaysScanned,
		SearchFailures: s.SearchFailures,
		Downloaded:     s.Downloaded,
		Skipped:        s.Skipped,
		Failed:         s.Failed,
		Bytes:          s.Bytes,
	}

	for _, t := range s.Targets {
		tr := TargetReport{
			Target:         t.Target.String(),
			Folder:         t.Folder,
			State:          t.State.String(),
			Days:           t.Days,
			SearchFailures: t.SearchFailures,
			Queued:         t.Queued,
			Incremental:    t.Incremental,
		}
		if t.Err != nil {
			tr.Error = t.Err.Error()
		}
		r.Targets = append(r.Targets, tr)
	}
	sort.Slice(r.Targets, func(i, j int) bool { return r.Targets[i].Target < r.Targets[j].Target })
	return r
}

// Save writes the report to dir/<run id>.run.json and returns the path
func (r *RunReport) Save(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal run report: %w", err)
	}

	path := filepath.Join(dir, r.RunID+reportExt)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write run report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to write run report: %w", err)
	}
	return path, nil
}

// Load reads one report
func Load(path string) (*RunReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run report: %w", err)
	}
	var r RunReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run report: %w", err)
	}
	return &r, nil
}

// List returns the reports in dir, newest first. Unreadable files are skipped.
func List(dir string) ([]*RunReport, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list run reports: %w", err)
	}

	var reports []*RunReport
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), reportExt) {
			continue
		}
		r, err := Load(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		reports = append(reports, r)
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].StartedAt.After(reports[j].StartedAt) })
	return reports, nil
}

// Prune keeps the newest keep reports in dir and deletes the rest
func Prune(dir string, keep int) (int, error) {
	reports, err := List(dir)
	if err != nil || len(reports) <= keep {
		return 0, err
	}

	removed := 0
	for _, r := range reports[keep:] {
		if err := os.Remove(filepath.Join(dir, r.RunID+reportExt)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("failed to prune run report: %w", err)
		}
		removed++
	}
	return removed, nil
}
