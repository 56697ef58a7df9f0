package reindex

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_Increment(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 100, 10)

	tracker.Start()
	tracker.Increment(40)
	tracker.Increment(60)

	assert.Equal(t, 100, tracker.Current())
	assert.Greater(t, tracker.Elapsed(), time.Duration(0))
	assert.Contains(t, buf.String(), "Reindexed 100/100 (100.0%)")
}

func TestProgressTracker_ReportInterval(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 1000, 100)
	tracker.Start()

	tracker.Update(50)
	assert.Empty(t, buf.String(), "no report below the interval")

	tracker.Update(100)
	assert.Contains(t, buf.String(), "100/1000")

	buf.Reset()
	tracker.Update(150)
	assert.Empty(t, buf.String(), "interval counts from the last report")

	tracker.Update(260)
	assert.Contains(t, buf.String(), "260/1000 (26.0%)")
}

func TestProgressTracker_CapsAtTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 100, 10)

	tracker.Start()
	tracker.Increment(250)

	assert.Equal(t, 100, tracker.Current())
	assert.Contains(t, buf.String(), "100/100")
	assert.NotContains(t, buf.String(), "250")
}

func TestProgressTracker_Finish(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 80, 1000)

	tracker.Start()
	tracker.Update(30)
	tracker.Finish()

	output := buf.String()
	assert.Contains(t, output, "80/80 (100.0%)")
	assert.Contains(t, output, "eta -")
	assert.True(t, strings.HasSuffix(output, "\n"))
}

func TestProgressTracker_ZeroTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 0, 10)

	tracker.Start()
	tracker.Finish()

	assert.Contains(t, buf.String(), "0/0 (100.0%)")
}

func TestProgressTracker_NotStarted(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 100, 10)

	tracker.Increment(50)
	tracker.Update(60)
	tracker.Finish()

	assert.Empty(t, buf.String())
	assert.Zero(t, tracker.Current())
	assert.Zero(t, tracker.Elapsed())
}

func TestProgressTracker_NilWriter(t *testing.T) {
	tracker := NewProgressTracker(nil, 10, 0)

	assert.NotPanics(t, func() {
		tracker.Start()
		tracker.Increment(5)
		tracker.Finish()
	})
	assert.Equal(t, 10, tracker.Current())
}

func TestProgressTracker_ReportsRate(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 500, 100)

	tracker.Start()
	time.Sleep(10 * time.Millisecond)
	tracker.Update(250)

	lines := strings.Split(strings.Trim(buf.String(), "\r\n"), "\r")
	last := lines[len(lines)-1]
	assert.Contains(t, last, "documents/s")
	assert.NotContains(t, last, "eta -", "eta is known once a rate exists")
}
