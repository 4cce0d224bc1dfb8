package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLoggerTagsComponentOnce(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Format: "json", Output: &buf, Component: ComponentLedger})

	l.Info("hello")
	l.WithComponent(ComponentStorage).Info("moved")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, ComponentLedger, lines[0][FieldComponent])
	assert.Equal(t, ComponentStorage, lines[1][FieldComponent])
	assert.Equal(t, 1, strings.Count(strings.Split(buf.String(), "\n")[1], `"component"`))
}

func TestWithKeepsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: "json", Output: &buf, Component: ComponentHTTP}).With(FieldRequestID, "abc")

	l.WithComponent(ComponentCache).Info("x")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "abc", lines[0][FieldRequestID])
	assert.Equal(t, ComponentCache, lines[0][FieldComponent])
	assert.Equal(t, ComponentHTTP, l.Component())
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestFromContext(t *testing.T) {
	l := Discard().WithComponent(ComponentWorker)
	ctx := WithLogger(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))
	assert.Equal(t, "unknown", FromContext(context.Background()).Component())
}

func TestStructuredLoggerHTTPLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Format: "json", Output: &buf}))
	r := httptest.NewRequest("GET", "/reports/monthly?year=2024&month=3", nil)

	sl.LogHTTPEnd(context.Background(), r, 200, 3, "10.0.0.1")
	sl.LogHTTPEnd(context.Background(), r, 404, 3, "10.0.0.1")
	sl.LogHTTPEnd(context.Background(), r, 500, 3, "10.0.0.1")
	sl.LogError(context.Background(), "boom", errors.New("disk"), OpReport, NewFields().WithPeriod(2024, 3))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 4)
	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, "WARN", lines[1]["level"])
	assert.Equal(t, "ERROR", lines[2]["level"])
	assert.Equal(t, "disk", lines[3][FieldError])
	assert.Equal(t, float64(2024), lines[3][FieldYear])
}
