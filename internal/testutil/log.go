package testutil

import (
	"io"
	"log/slog"
	"testing"
)

// SilenceLogs swaps the default slog logger for a discarding one until the
// test finishes. Dispatch paths log listener failures and adapter
// degradation at Warn/Error; tests that provoke those on purpose use this
// to keep output readable.
func SilenceLogs(t *testing.T) {
	t.Helper()
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
}
