package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"info":  zapcore.InfoLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		" Warn": zapcore.WarnLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok)
		require.Equal(t, lvl, got)
	}

	for _, s := range []string{"unknown", "fatal", ""} {
		_, ok := ParseLogLevel(s)
		require.False(t, ok, s)
	}
}

// TestSetLevelFromString applies known levels and rejects unknown ones.
//
//nolint:paralleltest // Mutates the global level.
func TestSetLevelFromString(t *testing.T) {
	previous := Level()
	t.Cleanup(func() { SetLevel(previous) })

	require.True(t, SetLevelFromString("debug"))
	require.Equal(t, zapcore.DebugLevel, Level())

	require.False(t, SetLevelFromString("verbose"))
	require.Equal(t, zapcore.DebugLevel, Level())
}

// TestNewWithWriter checks that messages reach the provided sink.
func TestNewWithWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	l := NewWithWriter(&buf, zapcore.InfoLevel)
	l.Infow("Dispatch sent", "event_type", "update-source-data")
	l.Debug("hidden")

	require.Contains(t, buf.String(), "Dispatch sent")
	require.Contains(t, buf.String(), "update-source-data")
	require.NotContains(t, buf.String(), "hidden")
}
