package ui

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeSender struct {
	titles []string
}

func (f *fakeSender) Send(title, message string) error {
	f.titles = append(f.titles, title)
	return errors.New("no notification daemon")
}

func TestStatusTrackerConcurrent(t *testing.T) {
	st := NewStatusTracker()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func() { defer wg.Done(); st.Record("downloaded", 10) }()
		go func() { defer wg.Done(); st.Record("skipped", 0) }()
		go func() { defer wg.Done(); st.Record("failed", 0) }()
	}
	wg.Wait()

	assert.Equal(t, int64(50), st.Downloaded())
	assert.Equal(t, int64(50), st.Skipped())
	assert.Equal(t, int64(50), st.Failed())
	assert.Equal(t, int64(500), st.Bytes())
	assert.Equal(t, int64(150), st.Finished())
}

func TestBar(t *testing.T) {
	assert.Equal(t, "░░░░", Bar(0, 0, 4))
	assert.Equal(t, "██░░", Bar(1, 2, 4))
	assert.Equal(t, "████", Bar(5, 2, 4))
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{500, "500 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1024 * 1024, "1.0 MB"},
		{5 * 1024 * 1024 * 1024, "5.0 GB"},
	}

	for _, test := range tests {
		if got := FormatBytes(test.bytes); got != test.expected {
			t.Errorf("FormatBytes(%d) = %s, expected %s", test.bytes, got, test.expected)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "42s", FormatDuration(42*time.Second))
	assert.Equal(t, "2m5s", FormatDuration(125*time.Second))
	assert.Equal(t, "1h30m", FormatDuration(90*time.Minute))
}

func TestProgressDisplay(t *testing.T) {
	var out bytes.Buffer
	p := NewProgressDisplayTo(&out, 2, false)

	p.TargetStarted("guild:1/2", "/tmp/x")
	p.DayScanned("guild:1/2", "2020-01-01", 1)
	p.DownloadQueued("a", "guild:1/2", "a.png")
	p.DownloadFinished("a", "downloaded", 2048, nil)
	p.DownloadFinished("b", "failed", 0, errors.New("boom"))
	p.TargetFinished("guild:1/2", nil)
	p.Complete()

	s := out.String()
	assert.Contains(t, s, "1/2 targets")
	assert.Contains(t, s, "2020-01-01")
	assert.Contains(t, s, "1 errors")
	assert.Contains(t, s, "Downloaded 1 files from 1 targets")
	assert.Contains(t, s, "2.0 KB")
	assert.Contains(t, s, "1 downloads failed")
}

func TestProgressDisplayQuiet(t *testing.T) {
	SetQuietMode(true)
	defer SetQuietMode(false)

	var out bytes.Buffer
	p := NewProgressDisplayTo(&out, 1, false)
	p.DayScanned("dm:pal/9", "2020-01-01", 0)
	assert.Empty(t, out.String())
}

func TestNotifier(t *testing.T) {
	var out bytes.Buffer
	sender := &fakeSender{}
	n := NewNotifierWith(sender, &out)

	n.SendSuccess("SCRAPE COMPLETE", "12 files")
	n.SendError("SCRAPE FAILED", "no token")

	assert.Equal(t, []string{"SCRAPE COMPLETE", "SCRAPE FAILED"}, sender.titles)
	assert.True(t, strings.Contains(out.String(), "12 files"))
}

func TestNopReporterSatisfiesInterface(t *testing.T) {
	var r Reporter = NopReporter{}
	r.LogInfo("ignored %d", 1)
	_, paused := r.(Pauser)
	assert.False(t, paused)
}
