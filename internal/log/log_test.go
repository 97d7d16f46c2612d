package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitSlog(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	l, sync, err := Init(Options{Stderr: &buf})
	require.NoError(t, err)
	defer sync()

	ctx := context.Background()
	l.Debug(ctx, "hidden")
	l.Warn(ctx, "graph stalled", "component", "sink.proxy.output")
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, `msg="graph stalled"`)
	assert.Contains(t, out, "component=sink.proxy.output")
}

func TestInitSlogJSONVerbose(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	l, _, err := Init(Options{Backend: "slog", JSONFormat: true, Verbose: true, Stderr: &buf})
	require.NoError(t, err)
	l.With("graph", 1).Debug(context.Background(), "added component", "name", "muxer")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "DEBUG", rec["level"])
	assert.Equal(t, "added component", rec["msg"])
	assert.Equal(t, "muxer", rec["name"])
	assert.EqualValues(t, 1, rec["graph"])
}

func TestInitZap(t *testing.T) {
	var buf bytes.Buffer
	l, sync, err := Init(Options{Backend: "zap", JSONFormat: true, Stderr: &buf})
	require.NoError(t, err)

	ctx := context.Background()
	l.Info(ctx, "hidden")
	l.Error(ctx, "sink failed", "detail", "no memory")
	sync()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "error", rec["level"])
	assert.Equal(t, "sink failed", rec["msg"])
	assert.Equal(t, "no memory", rec["detail"])
}

func TestInitZapConsole(t *testing.T) {
	var buf bytes.Buffer
	l, sync, err := Init(Options{Backend: "zap", Verbose: true, Stderr: &buf})
	require.NoError(t, err)
	l.Debug(context.Background(), "plugin loaded")
	sync()
	assert.Contains(t, buf.String(), "plugin loaded")
	assert.Contains(t, buf.String(), "debug")
}

func TestInitUnknownBackend(t *testing.T) {
	l, sync, err := Init(Options{Backend: "logrus"})
	require.Error(t, err)
	assert.Nil(t, l)
	assert.Nil(t, sync)
}
