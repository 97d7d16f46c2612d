package cli

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracewire/bt2-go/pkg/bt2"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeContext(t, context.Background(), args...)
}

func executeContext(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	for _, k := range []string{"BT2GO_LOG_LEVEL", "BT2GO_LOG_FORMAT", "BT2GO_LIVE_POLL_INTERVAL", "BT2GO_MAX_REQUEST_SIZE"} {
		t.Setenv(k, "")
	}
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	cmd.SetArgs(append([]string{"--config", cfg}, args...))
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "bt2-go version: "+bt2.WrapperVersion()+"\n")
	assert.Contains(t, out, "libbabeltrace2: "+bt2.UpstreamVersion()+" ("+bt2.UpstreamBuild()+")\n")
	assert.Contains(t, out, bt2.UpstreamSources)
}

func TestDecodeRequiresInputs(t *testing.T) {
	_, err := execute(t, "decode")
	require.Error(t, err)
	assert.ErrorIs(t, err, bt2.ErrCtfSourceRequiresInputs)
}

func TestDecodeRejectsBadParams(t *testing.T) {
	_, err := execute(t, "decode", "--params-json", `{"inputs": [], "bogus": 1}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid params")
}

func TestDecodePassesLibraryConfig(t *testing.T) {
	boom := errors.New("boom")
	var got bt2.Config
	prev := openLibrary
	openLibrary = func(cfg bt2.Config) (*bt2.Library, error) {
		got = cfg
		return nil, boom
	}
	t.Cleanup(func() { openLibrary = prev })

	_, err := execute(t, "--log-level", "DEBUG", "decode", "/traces/kernel")
	require.ErrorIs(t, err, boom)
	assert.Equal(t, bt2.LoggingDebug, got.LogLevel)
	assert.NotNil(t, got.Logger)
}

func TestUnknownLibraryLevel(t *testing.T) {
	_, err := execute(t, "--log-level", "loud", "decode", "/traces/kernel")
	require.Error(t, err)
	assert.ErrorIs(t, err, bt2.ErrInvalidArgument)
}

func TestNativeBindingsUnavailable(t *testing.T) {
	prev := openLibrary
	openLibrary = func(bt2.Config) (*bt2.Library, error) { return nil, bt2.ErrNotBuilt }
	t.Cleanup(func() { openLibrary = prev })

	_, err := execute(t, "decode", "/traces/kernel")
	require.ErrorIs(t, err, bt2.ErrNotBuilt)
	assert.Contains(t, err.Error(), "library unavailable")
}

func TestPacketRequiresMetadata(t *testing.T) {
	_, err := execute(t, "packet", "stream_0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"metadata"`)
}

func TestLiveArguments(t *testing.T) {
	_, err := execute(t, "live")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a URL is required")

	_, err = execute(t, "live", "--session-not-found-action", "retry", "net://localhost/host/h/s")
	require.Error(t, err)
	assert.ErrorIs(t, err, bt2.ErrInvalidArgument)

	_, err = execute(t, "live", "--params-json", `{"url": "http://localhost"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid params")
}

func TestUnknownLogBackend(t *testing.T) {
	_, err := execute(t, "--log-backend", "logrus", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown log backend "logrus"`)
}

func TestPrintSummary(t *testing.T) {
	var b bytes.Buffer
	printSummary(&b, bt2.TraceProperties{
		Name: "kernel",
		UUID: uuid.NullUUID{UUID: uuid.MustParse("2a6422d0-6cee-11e0-8c08-cb07d7b3a564"), Valid: true},
		Env:  map[string]any{"b": "x", "a": int64(1)},
	}, []bt2.StreamProperties{
		{ID: 1, Name: "s", Clock: &bt2.ClockClassProperties{Name: "monotonic", Frequency: 1_000_000_000, OffsetSeconds: 10, UnixEpochOrigin: true}},
		{ID: 2},
	})
	assert.Equal(t, `trace: "kernel"
  uuid: 2a6422d0-6cee-11e0-8c08-cb07d7b3a564
  env a = 1
  env b = x
stream 1 "s" clock=monotonic freq=1000000000 offset=10s+0cy unix-epoch
stream 2
`, b.String())
}
