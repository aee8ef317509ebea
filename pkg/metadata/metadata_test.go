package metadata

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dscraper/pkg/config"
	"dscraper/pkg/scraper"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func summaryAt(id string, started time.Time) *scraper.Summary {
	return &scraper.Summary{
		RunID:          id,
		StartedAt:      started,
		Duration:       90 * time.Second,
		TargetsScanned: 1,
		TargetsFailed:  1,
		DaysScanned:    40,
		Downloaded:     7,
		Skipped:        2,
		Bytes:          4096,
		Targets: []scraper.TargetResult{
			{
				Target: config.Target{Kind: config.TargetServer, ServerID: "1", ChannelID: "2"},
				Folder: "/scrapes/1_a/2_b",
				State:  scraper.StateDone,
				Days:   40,
				Queued: 9,
			},
			{
				Target: config.Target{Kind: config.TargetDirect, Alias: "pal", ChannelID: "3"},
				State:  scraper.StateFailed,
				Err:    errors.New("permission denied"),
			},
		},
	}
}

func TestFromSummary(t *testing.T) {
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	r := FromSummary(summaryAt("run-1", started), false)

	assert.Equal(t, "run-1", r.RunID)
	assert.Equal(t, started.Add(90*time.Second), r.FinishedAt)
	assert.Equal(t, "1m30s", r.Duration)
	assert.Equal(t, 7, r.Downloaded)
	require.Len(t, r.Targets, 2)

	// sorted by target name: dm before guild
	assert.Equal(t, "dm:pal/3", r.Targets[0].Target)
	assert.Equal(t, "failed", r.Targets[0].State)
	assert.Equal(t, "permission denied", r.Targets[0].Error)
	assert.Equal(t, "done", r.Targets[1].State)
	assert.Equal(t, 9, r.Targets[1].Queued)
}

func TestSaveLoadList(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "runs")
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "newest", "middle"} {
		offsets := []time.Duration{0, 2 * time.Hour, time.Hour}
		path, err := FromSummary(summaryAt(id, base.Add(offsets[i])), false).Save(dir)
		require.NoError(t, err)
		assert.FileExists(t, path)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken"+reportExt), []byte("{"), 0644))

	reports, err := List(dir)
	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.Equal(t, "newest", reports[0].RunID)
	assert.Equal(t, "middle", reports[1].RunID)
	assert.Equal(t, "old", reports[2].RunID)

	loaded, err := Load(filepath.Join(dir, "old"+reportExt))
	require.NoError(t, err)
	assert.Equal(t, int64(4096), loaded.Bytes)
}

func TestListMissingDir(t *testing.T) {
	reports, err := List(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestPrune(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := FromSummary(summaryAt(string(rune('a'+i)), base.Add(time.Duration(i)*time.Hour)), false).Save(dir)
		require.NoError(t, err)
	}

	removed, err := Prune(dir, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	reports, err := List(dir)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "e", reports[0].RunID)
	assert.Equal(t, "d", reports[1].RunID)

	removed, err = Prune(dir, 10)
	require.NoError(t, err)
	assert.Zero(t, removed)
}
