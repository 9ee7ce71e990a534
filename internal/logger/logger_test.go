package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerRespectsMinLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, WARN)

	l.Info("BOOKING", "hidden")
	l.Warn("BOOKING", "shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WARN  [BOOKING   ] shown")
}

func TestLoggerCategoryHelpers(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, DEBUG)

	l.LogBooking("CREATE", "HB00000001", "committed")
	l.LogTx("create_hotel_booking", "abc", "attempt 1")

	out := buf.String()
	assert.Contains(t, out, "[BOOKING   ] [CREATE] HB00000001 - committed")
	assert.Contains(t, out, "[TX        ] [create_hotel_booking] abc - attempt 1")
	assert.Contains(t, out, "logger_test.go")
}

func TestLoggerWritesJSONFile(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	l, err := New(Options{Service: "test", Dir: dir, Level: INFO, Out: &buf})
	require.NoError(t, err)

	l.Error("APPROVAL", "boom")
	l.Close()

	files, err := filepath.Glob(filepath.Join(dir, "test-*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)

	var found bool
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var entry LogEntry
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry.Message == "boom" {
			found = true
			assert.Equal(t, "ERROR", entry.Level)
			assert.Equal(t, "APPROVAL", entry.Category)
		}
	}
	assert.True(t, found)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, INFO, ParseLevel(""))
	assert.Equal(t, ERROR, ParseLevel(" ERROR "))
}
