package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracewire/bt2-go/pkg/bt2"
)

func TestParseCtfFsParams(t *testing.T) {
	name := "base"
	base := bt2.CtfFsParams{Inputs: []string{"/a"}, TraceName: &name}

	p, err := ParseCtfFsParams("", base)
	require.NoError(t, err)
	assert.Equal(t, base, p)

	p, err = ParseCtfFsParams(`{
		"inputs": ["/b", "/c"],
		"trace-name": "merged",
		"clock-class-offset-s": -3,
		"clock-class-offset-ns": 500,
		"force-clock-class-origin-unix-epoch": true
	}`, base)
	require.NoError(t, err)
	assert.Equal(t, []string{"/a", "/b", "/c"}, p.Inputs)
	assert.Equal(t, []string{"/a"}, base.Inputs)
	require.NotNil(t, p.TraceName)
	assert.Equal(t, "merged", *p.TraceName)
	assert.Equal(t, "base", name)
	require.NotNil(t, p.ClockClassOffsetS)
	assert.Equal(t, int64(-3), *p.ClockClassOffsetS)
	require.NotNil(t, p.ClockClassOffsetNs)
	assert.Equal(t, int64(500), *p.ClockClassOffsetNs)
	require.NotNil(t, p.ForceClockClassOriginUnixEpoch)
	assert.True(t, *p.ForceClockClassOriginUnixEpoch)
}

func TestParseCtfFsParamsRejects(t *testing.T) {
	for name, doc := range map[string]string{
		"unknown key":  `{"input": ["/a"]}`,
		"empty inputs": `{"inputs": []}`,
		"float offset": `{"clock-class-offset-s": 1.5}`,
		"string flag":  `{"force-clock-class-origin-unix-epoch": "yes"}`,
		"not object":   `["/a"]`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCtfFsParams(doc, bt2.CtfFsParams{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid params")
		})
	}

	_, err := ParseCtfFsParams(`{"inputs": [`, bt2.CtfFsParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse params")
}

func TestParseLttngLiveParams(t *testing.T) {
	end := bt2.SessionNotFoundEnd
	base := bt2.LttngLiveParams{URL: "net://relay/host/h/s", SessionNotFoundAction: &end}

	p, err := ParseLttngLiveParams("  ", base)
	require.NoError(t, err)
	assert.Equal(t, base, p)

	p, err = ParseLttngLiveParams(`{"url": "net4://other/host/h/t", "session-not-found-action": "fail"}`, base)
	require.NoError(t, err)
	assert.Equal(t, "net4://other/host/h/t", p.URL)
	require.NotNil(t, p.SessionNotFoundAction)
	assert.Equal(t, bt2.SessionNotFoundFail, *p.SessionNotFoundAction)
	assert.Equal(t, bt2.SessionNotFoundEnd, end)

	for _, doc := range []string{
		`{"url": "tcp://relay"}`,
		`{"session-not-found-action": "retry"}`,
		`{"url": "net://relay", "port": 5344}`,
	} {
		_, err := ParseLttngLiveParams(doc, base)
		require.Error(t, err, doc)
		assert.Contains(t, err.Error(), "invalid params")
	}
}
