package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/gdrive-mirror/internal/mirror"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		name  string
		bytes int64
		want  string
	}{
		{"zero", 0, "0 B"},
		{"bytes", 512, "512 B"},
		{"kilobytes", 1536, "1.5 KB"},
		{"megabytes", 5242880, "5.0 MB"},
		{"gigabytes", 1610612736, "1.5 GB"},
		{"terabytes", 1099511627776, "1.0 TB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatSize(tt.bytes))
		})
	}
}

func TestFormatTime(t *testing.T) {
	now := time.Now()
	sameYear := time.Date(now.Year(), time.March, 15, 10, 30, 0, 0, time.UTC)
	diffYear := time.Date(2020, time.December, 25, 8, 0, 0, 0, time.UTC)

	t.Run("same year", func(t *testing.T) {
		result := formatTime(sameYear)
		assert.Contains(t, result, "Mar")
		assert.Contains(t, result, "15")
		assert.Contains(t, result, "10:30")
	})

	t.Run("different year", func(t *testing.T) {
		result := formatTime(diffYear)
		assert.Contains(t, result, "Dec")
		assert.Contains(t, result, "25")
		assert.Contains(t, result, "2020")
	})

	t.Run("zero", func(t *testing.T) {
		assert.Equal(t, "-", formatTime(time.Time{}))
	})
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "-", formatDuration(0))
	assert.Equal(t, "250ms", formatDuration(250*time.Millisecond+300*time.Microsecond))
	assert.Equal(t, "1m3s", formatDuration(62600*time.Millisecond))
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer

	headers := []string{"STARTED", "STATUS", "FETCHED"}
	rows := [][]string{
		{"Jan 15 10:30", "succeeded", "12"},
		{"Feb  1 09:00", "failed", "0"},
	}

	printTable(&buf, headers, rows)
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")

	require.Len(t, lines, 3)
	assert.Equal(t, "STARTED       STATUS     FETCHED", lines[0])
	assert.Equal(t, "Jan 15 10:30  succeeded  12", lines[1])
	assert.Equal(t, "Feb  1 09:00  failed     0", lines[2])
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, printJSON(&buf, map[string]int{"fetched": 2}))
	assert.Equal(t, "{\n  \"fetched\": 2\n}\n", buf.String())
}

func TestProgressObserver(t *testing.T) {
	var buf bytes.Buffer

	p := &progressObserver{w: &buf}

	p.OnAction(mirror.Action{Decision: mirror.Skip, Path: "/dst/a.txt"})
	p.OnAction(mirror.Action{Decision: mirror.Traverse, Path: "/dst/Reports"})
	p.OnAction(mirror.Action{Decision: mirror.Fetch, Path: "/dst/b.bin", Bytes: 2048})
	p.OnAction(mirror.Action{Decision: mirror.Fetch, Path: "/dst/c.bin", DryRun: true})
	p.OnWarning(mirror.Warning{Kind: mirror.WarnNameCollision, Path: "/dst/draft-B2"})

	out := buf.String()
	assert.NotContains(t, out, "a.txt")
	assert.NotContains(t, out, "Reports")
	assert.Contains(t, out, "fetched  /dst/b.bin (2.0 KB)")
	assert.Contains(t, out, "would fetch  /dst/c.bin")
	assert.Contains(t, out, "warning  /dst/draft-B2")
}

func TestNewProgressObserver_DisabledWhenQuietOrJSON(t *testing.T) {
	defer func() { flagQuiet, flagJSON = false, false }()

	flagQuiet = true
	assert.Nil(t, newProgressObserver(&bytes.Buffer{}, 0))

	flagQuiet, flagJSON = false, true
	assert.Nil(t, newProgressObserver(&bytes.Buffer{}, 0))
}
