package bt2_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracewire/bt2-go/pkg/bt2"
	"github.com/tracewire/bt2-go/pkg/bt2/fakebt"
	"github.com/tracewire/bt2-go/pkg/bt2/logging"
)

func TestOpenAppliesLoggingLevel(t *testing.T) {
	fake := fakebt.New()
	lib, err := bt2.Open(bt2.Config{Backend: fake, LogLevel: bt2.LoggingWarn, Logger: logging.Nop()})
	require.NoError(t, err)
	assert.Contains(t, fake.Calls(), "SetGlobalLoggingLevel")

	lvl, err := lib.GlobalLoggingLevel()
	require.NoError(t, err)
	assert.Equal(t, bt2.LoggingWarn, lvl)

	require.NoError(t, lib.SetGlobalLoggingLevel(bt2.LoggingTrace))
	lvl, err = lib.GlobalLoggingLevel()
	require.NoError(t, err)
	assert.Equal(t, bt2.LoggingTrace, lvl)

	before := fake.CallCount()
	err = lib.SetGlobalLoggingLevel(bt2.LoggingLevel(42))
	require.ErrorIs(t, err, bt2.ErrInvalidArgument)
	assert.Equal(t, before, fake.CallCount())
}

func TestOpenRejectsBadLevel(t *testing.T) {
	fake := fakebt.New()
	_, err := bt2.Open(bt2.Config{Backend: fake, LogLevel: -1})
	require.ErrorIs(t, err, bt2.ErrInvalidArgument)
	assert.Zero(t, fake.CallCount())
}

func TestOpenWithoutNativeBindings(t *testing.T) {
	lib, err := bt2.Open(bt2.Config{Logger: logging.Nop()})
	if err == nil {
		require.NoError(t, lib.Close())
		t.Skip("native bindings are linked")
	}
	require.ErrorIs(t, err, bt2.ErrNotBuilt)
	assert.Equal(t, bt2.UpstreamPinned, bt2.UpstreamVersion())
	assert.False(t, bt2.UpstreamLinked())
	assert.Equal(t, "not linked, build third_party/babeltrace then use -tags babeltrace2", bt2.UpstreamBuild())
}

func TestUpstreamBuildNamesSourceTree(t *testing.T) {
	assert.Equal(t, "third_party/babeltrace", bt2.UpstreamSources)
	assert.Contains(t, bt2.UpstreamBuild(), bt2.UpstreamSources)
	if bt2.UpstreamLinked() {
		assert.Equal(t, "linked from third_party/babeltrace/build", bt2.UpstreamBuild())
	}
}

func TestLibraryClose(t *testing.T) {
	lib, fake := openFake(t)
	require.NoError(t, lib.Close())
	require.ErrorIs(t, lib.Close(), bt2.ErrLibraryClosed)

	before := fake.CallCount()
	_, err := lib.NewGraph()
	require.ErrorIs(t, err, bt2.ErrLibraryClosed)
	assert.Equal(t, bt2.KindInvalidArgument, bt2.KindOf(err))
	_, err = lib.GlobalLoggingLevel()
	require.ErrorIs(t, err, bt2.ErrLibraryClosed)
	assert.Equal(t, before, fake.CallCount())

	var nilLib *bt2.Library
	require.NoError(t, nilLib.Close())
	assert.NotNil(t, nilLib.Logger())
}

func TestParseLoggingLevel(t *testing.T) {
	for in, want := range map[string]bt2.LoggingLevel{
		"none":    bt2.LoggingNone,
		"TRACE":   bt2.LoggingTrace,
		" debug ": bt2.LoggingDebug,
		"Info":    bt2.LoggingInfo,
		"warn":    bt2.LoggingWarn,
		"warning": bt2.LoggingWarn,
		"error":   bt2.LoggingError,
		"fatal":   bt2.LoggingFatal,
	} {
		got, err := bt2.ParseLoggingLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := bt2.ParseLoggingLevel("loud")
	require.ErrorIs(t, err, bt2.ErrInvalidArgument)
	assert.Contains(t, err.Error(), `unknown logging level "loud"`)

	assert.Equal(t, "warn", bt2.LoggingWarn.String())
	assert.Equal(t, "LoggingLevel(9)", bt2.LoggingLevel(9).String())
}
