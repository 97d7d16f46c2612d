package bt2_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracewire/bt2-go/pkg/bt2"
	"github.com/tracewire/bt2-go/pkg/bt2/internal/backend"
)

func TestStatusKind(t *testing.T) {
	tests := []struct {
		status backend.Status
		want   bt2.ErrorKind
	}{
		{backend.StatusOK, 0},
		{backend.StatusNotFound, bt2.KindNotFound},
		{backend.StatusNoMatch, bt2.KindNotFound},
		{backend.StatusEnd, bt2.KindUnsupported},
		{backend.StatusAgain, bt2.KindUnsupported},
		{backend.StatusInterrupted, bt2.KindUnsupported},
		{backend.StatusUnknownObject, bt2.KindUnsupported},
		{backend.StatusUserError, bt2.KindInvalidArgument},
		{backend.StatusOverflowError, bt2.KindInvalidArgument},
		{backend.StatusMemoryError, bt2.KindResourceExhausted},
		{backend.StatusError, bt2.KindFatal},
		{backend.Status(12345), bt2.KindFatal},
		{backend.Status(-9999), bt2.KindFatal},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, bt2.StatusKind(tt.status))
		})
	}
}

func TestRemapStatus(t *testing.T) {
	require.NoError(t, bt2.RemapStatus("graph.run_once", backend.StatusOK))

	err := bt2.RemapStatus("graph.run_once", backend.StatusMemoryError)
	require.Error(t, err)
	assert.Equal(t, "bt2: graph.run_once: resource exhausted (status MEMORY_ERROR)", err.Error())
	assert.ErrorIs(t, err, bt2.ErrResourceExhausted)
	assert.NotErrorIs(t, err, bt2.ErrFatal)

	var e *bt2.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, int(backend.StatusMemoryError), e.Status)
	assert.Equal(t, bt2.KindResourceExhausted, bt2.KindOf(err))
}

func TestErrorFormat(t *testing.T) {
	cause := errors.New("disk on fire")
	err := &bt2.Error{Op: "ctf.decoder", Kind: bt2.KindFatal, Detail: "cannot read metadata", Err: cause}
	assert.Equal(t, "bt2: ctf.decoder: fatal: cannot read metadata: disk on fire", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, bt2.ErrFatal)

	assert.Equal(t, "bt2: not found", bt2.NewError("", bt2.KindNotFound, "").Error())
}

func TestErrorKindsThroughWrapping(t *testing.T) {
	inner := bt2.NewError("value.bool_get", bt2.KindUnsupported, "value is map, not bool")
	outer := fmt.Errorf("loading config: %w", inner)
	assert.ErrorIs(t, outer, bt2.ErrUnsupported)
	assert.Equal(t, bt2.KindUnsupported, bt2.KindOf(outer))
	assert.Zero(t, bt2.KindOf(errors.New("plain")))
	assert.Zero(t, bt2.KindOf(nil))
}

func TestErrorKindNames(t *testing.T) {
	for k, want := range map[bt2.ErrorKind]string{
		bt2.KindInvalidArgument:   "invalid argument",
		bt2.KindResourceExhausted: "resource exhausted",
		bt2.KindNotFound:          "not found",
		bt2.KindUnsupported:       "unsupported",
		bt2.KindFatal:             "fatal",
		bt2.ErrorKind(0):          "unknown",
	} {
		assert.Equal(t, want, k.String())
	}
}

func TestPipelineSentinels(t *testing.T) {
	assert.ErrorIs(t, bt2.ErrCtfSourceRequiresInputs, bt2.ErrInvalidArgument)
	assert.ErrorIs(t, bt2.ErrCtfSourceMissingOutputPorts, bt2.ErrNotFound)
	assert.ErrorIs(t, bt2.ErrProxySinkMissingInputPort, bt2.ErrNotFound)
	assert.NotErrorIs(t, bt2.ErrCtfSourceMissingOutputPorts, bt2.ErrProxySinkMissingInputPort)
}

func TestDecoderAndMsgIterStatus(t *testing.T) {
	require.NoError(t, bt2.DecoderStatusError("op", backend.DecoderOK))
	assert.ErrorIs(t, bt2.DecoderStatusError("op", backend.DecoderIncomplete), bt2.ErrUnsupported)
	assert.ErrorIs(t, bt2.DecoderStatusError("op", backend.DecoderInvalVersion), bt2.ErrInvalidArgument)
	assert.ErrorIs(t, bt2.DecoderStatusError("op", backend.DecoderNone), bt2.ErrNotFound)
	assert.ErrorIs(t, bt2.DecoderStatusError("op", backend.DecoderError), bt2.ErrFatal)

	require.NoError(t, bt2.MsgIterStatusError("op", backend.MsgIterOK))
	assert.ErrorIs(t, bt2.MsgIterStatusError("op", backend.MsgIterEOF), bt2.ErrUnsupported)
	assert.ErrorIs(t, bt2.MsgIterStatusError("op", backend.MsgIterMemoryError), bt2.ErrResourceExhausted)
	assert.ErrorIs(t, bt2.MsgIterStatusError("op", backend.MsgIterError), bt2.ErrFatal)
}

func TestRemapError(t *testing.T) {
	require.NoError(t, bt2.RemapError(nil))
	assert.ErrorIs(t, bt2.RemapError(bt2.ErrNotBuilt), bt2.ErrNotBuilt)

	typed := bt2.NewError("x", bt2.KindNotFound, "")
	assert.Same(t, typed, bt2.RemapError(typed))

	plain := errors.New("boom")
	err := bt2.RemapError(plain)
	assert.ErrorIs(t, err, bt2.ErrFatal)
	assert.ErrorIs(t, err, plain)
}

func TestCheckName(t *testing.T) {
	require.NoError(t, bt2.CheckName("op", "name", "ok"))
	assert.ErrorIs(t, bt2.CheckName("op", "name", ""), bt2.ErrInvalidArgument)
	err := bt2.CheckName("op", "name", "a\x00b")
	assert.ErrorIs(t, err, bt2.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "NUL")
}
