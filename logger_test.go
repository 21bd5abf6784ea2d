package reportio

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevel_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level Level
		want  string
	}{
		{level: LevelDebug, want: "DEBUG"},
		{level: LevelInfo, want: "INFO"},
		{level: LevelWarn, want: "WARNING"},
		{level: LevelError, want: "ERROR"},
		{level: LevelCritical, want: "CRITICAL"},
		{level: Level(9), want: "LEVEL(9)"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, tt.level.String(), "level string should match")
		})
	}
}

func TestLevel_SlogLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.LevelDebug, LevelDebug.slogLevel(), "debug mapping")
	assert.Equal(t, slog.LevelInfo, LevelInfo.slogLevel(), "info mapping")
	assert.Equal(t, slog.LevelWarn, LevelWarn.slogLevel(), "warn mapping")
	assert.Equal(t, slog.LevelError, LevelError.slogLevel(), "error mapping")
	assert.Equal(t, slogLevelCritical, LevelCritical.slogLevel(), "critical sits above error")
	assert.Equal(t, slog.LevelInfo, Level(9).slogLevel(), "unknown levels default to info")
}

func TestNewTextLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewTextLogger(&buf, LevelInfo)

	logger.Log(LevelDebug, "hidden")
	logger.Log(LevelInfo, "routine progress")
	logger.Log(LevelCritical, "run aborted")

	out := buf.String()
	assert.NotContains(t, out, "hidden", "messages below the threshold should be dropped")
	assert.Contains(t, out, "routine progress", "info messages should pass the threshold")
	assert.Contains(t, out, "level=INFO", "info lines should carry the level")
	assert.Contains(t, out, "level=CRITICAL", "the critical level should render by name")
}

func TestMultiLogger(t *testing.T) {
	t.Parallel()

	var first, second bytes.Buffer
	logger := MultiLogger(NewTextLogger(&first, LevelDebug), nil, NewTextLogger(&second, LevelError))

	logger.Log(LevelInfo, "fanout")

	assert.Contains(t, first.String(), "fanout", "the first logger should receive the message")
	assert.Empty(t, second.String(), "the second logger should filter by its own threshold")
}

func TestLogf(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewTextLogger(&buf, LevelDebug)

	logf(logger, LevelInfo, "plain message")
	logf(logger, LevelInfo, "formatted %d of %d", 2, 3)
	logf(nil, LevelInfo, "dropped")

	out := buf.String()
	assert.Contains(t, out, "plain message", "messages without args should pass through untouched")
	assert.Contains(t, out, "formatted 2 of 3", "messages with args should be formatted")
}

func TestSwitchWriter(t *testing.T) {
	t.Parallel()

	var first, second bytes.Buffer
	sw := newSwitchWriter(&first)

	_, err := sw.Write([]byte("one"))
	require.NoError(t, err, "writing to the first destination should succeed")

	old := sw.swap(&second)
	assert.Same(t, &first, old, "swap should return the previous destination")

	_, err = sw.Write([]byte("two"))
	require.NoError(t, err, "writing to the second destination should succeed")

	assert.Equal(t, "one", first.String(), "the first destination should only see earlier writes")
	assert.Equal(t, "two", second.String(), "the second destination should see later writes")

	sw.swap(nil)
	n, err := sw.Write([]byte("void"))
	require.NoError(t, err, "writing with no destination should not fail")
	assert.Equal(t, 4, n, "the write should report full length")
	assert.Equal(t, "two", second.String(), "no destination should receive the write")
}
