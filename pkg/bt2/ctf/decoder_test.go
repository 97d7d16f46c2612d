package ctf_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracewire/bt2-go/pkg/bt2"
	"github.com/tracewire/bt2-go/pkg/bt2/ctf"
	"github.com/tracewire/bt2-go/pkg/bt2/fakebt"
	"github.com/tracewire/bt2-go/pkg/bt2/internal/backend"
	"github.com/tracewire/bt2-go/pkg/bt2/logging"
)

func setup(t *testing.T) (*bt2.Library, *fakebt.Library) {
	t.Helper()
	fake := fakebt.New()
	lib, err := bt2.Open(bt2.Config{Backend: fake, Logger: logging.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.Empty(t, fake.Violations())
	})
	return lib, fake
}

func writeMetadata(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metadata")
	require.NoError(t, os.WriteFile(path, []byte(fakebt.MetadataPreamble+"\n"+body), 0o600))
	return path
}

func u64(v uint64) *uint64 { return &v }

func TestPacketDecoder(t *testing.T) {
	lib, fake := setup(t)
	dec, err := ctf.NewPacketDecoder(lib, writeMetadata(t, "trace { major = 1; };"), ctf.DecoderConfig{})
	require.NoError(t, err)

	packet := fakebt.EncodePacket(fakebt.PacketHeader{
		StreamID:        2,
		TimestampBegin:  1000,
		TimestampEnd:    2000,
		ContentSize:     4096,
		PacketSize:      8192,
		EventsDiscarded: 3,
		PacketSeqNum:    7,
	})
	props, ok, err := dec.PacketProperties(append(packet, 0xAA, 0xBB))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ctf.PacketProperties{
		TotalSizeBits:   u64(8192),
		ContentSizeBits: u64(4096),
		StreamClassID:   u64(2),
		DiscardedEvents: u64(3),
		PacketSeqNum:    u64(7),
		BeginningClock:  u64(1000),
		EndClock:        u64(2000),
	}, props)
	assert.Equal(t, "{stream_id=2, packet_size=8192, content_size=4096, clock_begin=1000, clock_end=2000, discarded=3, seq_num=7}", props.String())

	// The decoder is reusable: every call starts from a reset iterator.
	props, ok, err = dec.PacketProperties(fakebt.EncodePacket(fakebt.PacketHeader{
		StreamID:        math.MaxUint32,
		TimestampBegin:  math.MaxUint64,
		TimestampEnd:    math.MaxUint64,
		ContentSize:     math.MaxUint64,
		PacketSize:      512,
		EventsDiscarded: math.MaxUint64,
		PacketSeqNum:    math.MaxUint64,
	}))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "{stream_id=NA, packet_size=512, content_size=NA, clock_begin=NA, clock_end=NA, discarded=NA, seq_num=NA}", props.String())
	assert.Nil(t, props.DataStreamID)

	require.NoError(t, dec.Close())
	require.NoError(t, dec.Close())
	assert.Empty(t, fake.Outstanding())
	assert.Equal(t, 1, fake.Released(backend.KindTraceClass))

	_, _, err = dec.PacketProperties(packet)
	assert.ErrorIs(t, err, bt2.ErrClosed)
}

func TestPacketDecoderShortInput(t *testing.T) {
	lib, _ := setup(t)
	dec, err := ctf.NewPacketDecoder(lib, writeMetadata(t, ""), ctf.DecoderConfig{MaxRequestSize: 64})
	require.NoError(t, err)
	defer dec.Close()

	_, ok, err := dec.PacketProperties(nil)
	require.NoError(t, err)
	assert.False(t, ok)

	packet := fakebt.EncodePacket(fakebt.PacketHeader{})
	_, ok, err = dec.PacketProperties(packet[:fakebt.PacketHeaderSize-1])
	require.NoError(t, err)
	assert.False(t, ok)

	garbage := make([]byte, fakebt.PacketHeaderSize)
	_, ok, err = dec.PacketProperties(garbage)
	assert.ErrorIs(t, err, bt2.ErrFatal)
	assert.False(t, ok)
}

func TestPacketDecoderMetadataErrors(t *testing.T) {
	lib, fake := setup(t)
	dir := t.TempDir()
	before := fake.CallCount()

	_, err := ctf.NewPacketDecoder(lib, filepath.Join(dir, "missing"), ctf.DecoderConfig{})
	assert.ErrorIs(t, err, bt2.ErrNotFound)

	_, err = ctf.NewPacketDecoder(lib, dir, ctf.DecoderConfig{})
	assert.ErrorIs(t, err, bt2.ErrInvalidArgument)

	_, err = ctf.NewPacketDecoder(lib, "", ctf.DecoderConfig{})
	assert.ErrorIs(t, err, bt2.ErrInvalidArgument)

	_, err = ctf.NewPacketDecoder(lib, writeMetadata(t, ""), ctf.DecoderConfig{LogLevel: bt2.LoggingLevel(99)})
	assert.ErrorIs(t, err, bt2.ErrInvalidArgument)
	assert.Equal(t, before, fake.CallCount(), "rejected before reaching the library")

	_, err = ctf.NewPacketDecoder(lib, writeMetadata(t, "#incomplete\n"), ctf.DecoderConfig{})
	assert.ErrorIs(t, err, bt2.ErrUnsupported)

	bad := filepath.Join(dir, "not-ctf")
	require.NoError(t, os.WriteFile(bad, []byte("hello"), 0o600))
	_, err = ctf.NewPacketDecoder(lib, bad, ctf.DecoderConfig{})
	assert.ErrorIs(t, err, bt2.ErrInvalidArgument)

	assert.Empty(t, fake.Outstanding())
}

func TestPacketDecoderReleasesOnFailure(t *testing.T) {
	steps := []string{
		"ForgeSelfComponent",
		"MetadataDecoderCreate",
		"MetadataDecoderAppendContent",
		"MetadataDecoderGetIRTraceClass",
		"MetadataDecoderBorrowCTFTraceClass",
		"TraceCreate",
		"MsgIterCreate",
	}
	for _, step := range steps {
		t.Run(step, func(t *testing.T) {
			lib, fake := setup(t)
			path := writeMetadata(t, "")
			fake.Fail(step, backend.StatusMemoryError)
			_, err := ctf.NewPacketDecoder(lib, path, ctf.DecoderConfig{})
			require.Error(t, err)
			assert.Empty(t, fake.Outstanding())
		})
	}
}

func TestPacketDecoderClockConfig(t *testing.T) {
	lib, fake := setup(t)
	dec, err := ctf.NewPacketDecoder(lib, writeMetadata(t, ""), ctf.DecoderConfig{
		LogLevel:                       bt2.LoggingDebug,
		ClockClassOffsetS:              -2,
		ClockClassOffsetNs:             500,
		ForceClockClassOriginUnixEpoch: true,
	})
	require.NoError(t, err)
	assert.Contains(t, fake.Calls(), "MsgIterSetDryRun")
	require.NoError(t, dec.Close())
	assert.Empty(t, fake.Outstanding())
}
