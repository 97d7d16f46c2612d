package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tracewire/bt2-go/pkg/bt2/logging"
)

func TestSlogLoggerWritesAttributes(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := logging.New(slog.New(handler)).With("component", "sink.proxy.output")

	logger.Debug(context.Background(), "consumed batch", "messages", 3)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "consumed batch", record["msg"])
	assert.Equal(t, "sink.proxy.output", record["component"])
	assert.EqualValues(t, 3, record["messages"])
}

func TestSlogLoggerDefault(t *testing.T) {
	if logging.New(nil) == nil {
		t.Fatal("New(nil) returned nil")
	}
}

func TestZapLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := logging.NewZap(zap.New(core)).With("graph", 1)

	ctx := context.Background()
	logger.Debug(ctx, "d")
	logger.Info(ctx, "i", "k", "v")
	logger.Warn(ctx, "w")
	logger.Error(ctx, "e")

	entries := logs.AllUntimed()
	require.Len(t, entries, 4)
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, "v", entries[1].ContextMap()["k"])
	assert.EqualValues(t, 1, entries[3].ContextMap()["graph"])
}

func TestNopLogger(t *testing.T) {
	logger := logging.Nop().With("a", 1)
	logger.Error(context.Background(), "dropped")
	if logging.NewZap(nil) == nil {
		t.Fatal("NewZap(nil) returned nil")
	}
}
