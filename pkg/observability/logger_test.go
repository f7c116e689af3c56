package observability

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   DebugLevel,
		"info":    InfoLevel,
		"warn":    WarnLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"":        InfoLevel,
		"bogus":   InfoLevel,
	}
	for input, want := range cases {
		assert.Equal(t, want, ParseLogLevel(input), "input %q", input)
	}
}

func TestLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.Info("permission check", "user_id", int64(10), "allowed", true)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "permission check", line["msg"])
	assert.Equal(t, float64(10), line["user_id"])
	assert.Equal(t, true, line["allowed"])
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WarnLevel, &buf)

	logger.Debug("dropped")
	logger.Info("dropped too")
	logger.Warn("kept")

	lines := strings.TrimSpace(buf.String())
	assert.Equal(t, 1, len(strings.Split(lines, "\n")))
	assert.Contains(t, lines, "kept")
}

func TestLoggerWithFieldAndError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf).WithField("component", "rbac")

	logger.WithError(assert.AnError).Error("boom")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "rbac", line["component"])
	assert.Contains(t, line["error"], "general error")
}
