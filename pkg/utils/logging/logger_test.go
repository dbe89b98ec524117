package logging_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
)

func TestLevel(t *testing.T) {
	cases := []struct {
		name string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tc := range cases {
		gt.V(t, logging.Level(tc.name)).Equal(tc.want)
	}
}

func TestNewFiltersByLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logging.New("warn", buf)

	logger.Debug("ingestion detail")
	logger.Info("ingestion started")
	logger.Warn("snapshot incompatible")
	logger.Error("embedding failed")

	out := buf.String()
	gt.S(t, out).NotContains("ingestion detail")
	gt.S(t, out).NotContains("ingestion started")
	gt.S(t, out).Contains("snapshot incompatible")
	gt.S(t, out).Contains("embedding failed")
}

func TestWithAndFrom(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logging.New("debug", buf).With("session", "local")

	ctx := logging.With(context.Background(), logger)
	gt.Equal(t, logging.From(ctx), logger)

	logging.From(ctx).Info("turn handled")
	out := buf.String()
	gt.S(t, out).Contains("turn handled")
	gt.S(t, out).Contains("session")
}

func TestFromFallsBackToDefault(t *testing.T) {
	original := logging.Default()
	defer logging.SetDefault(original)

	buf := &bytes.Buffer{}
	logging.SetDefault(logging.New("info", buf))

	logging.From(context.Background()).Info("no context logger")
	gt.S(t, buf.String()).Contains("no context logger")
}
