// Package testutil provides shared helpers for engine tests.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/vk/moleculego/internal/ctxlog"
)

// Context returns a context carrying a discard logger, so engine code that
// pulls its logger from the context can run under test without output.
func Context(t *testing.T) context.Context {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return ctxlog.WithLogger(context.Background(), logger)
}

// VerboseContext returns a context carrying a debug-level logger writing to
// the test log. Useful when diagnosing a failing engine test.
func VerboseContext(t *testing.T) context.Context {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return ctxlog.WithLogger(context.Background(), logger)
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

var _ io.Writer = testWriter{}
