package cli

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracewire/bt2-go/pkg/bt2"
	"github.com/tracewire/bt2-go/pkg/bt2/ctf"
	"github.com/tracewire/bt2-go/pkg/bt2/fakebt"
	"github.com/tracewire/bt2-go/pkg/bt2/logging"
)

const liveURL = "net://localhost/host/box/session"

// useFake routes openLibrary to a simulated library for the rest of the
// test.
func useFake(t *testing.T) *fakebt.Library {
	t.Helper()
	fake := fakebt.New()
	prev := openLibrary
	openLibrary = func(cfg bt2.Config) (*bt2.Library, error) {
		cfg.Backend = fake
		return bt2.Open(cfg)
	}
	t.Cleanup(func() {
		openLibrary = prev
		assert.Empty(t, fake.Violations())
		assert.Empty(t, fake.Outstanding())
	})
	return fake
}

func kernelTrace() *fakebt.Trace {
	clk := &fakebt.Clock{Frequency: 1_000_000_000, Name: "monotonic"}
	return &fakebt.Trace{
		Name: "kernel",
		Env:  []fakebt.EnvEntry{{Name: "hostname", Value: "box"}},
		Streams: []fakebt.Stream{
			{ID: 0, Name: "chan0", Clock: clk},
			{ID: 1, Clock: clk},
		},
		Events: []fakebt.Event{
			{Stream: 0, ClassID: 1, Name: "sched_switch", Cycles: 100, Payload: fakebt.Struct(fakebt.I64("prev_tid", 4))},
			{Stream: 1, ClassID: 2, Name: "irq_entry", Cycles: 200, Payload: fakebt.Struct(fakebt.I64("irq", 7))},
			{Stream: 0, ClassID: 3, Cycles: 300},
		},
	}
}

const (
	schedSwitch = "[100] sched_switch (ID=1)\n  stream ID: 0\n  payload: { prev_tid = 4 }\n"
	irqEntry    = "[200] irq_entry (ID=2)\n  stream ID: 1\n  payload: { irq = 7 }\n"
	anonymous   = "[300] ID=3\n  stream ID: 0\n"
)

func TestDecodePrintsEvents(t *testing.T) {
	fake := useFake(t)
	fake.AddTrace("/traces/kernel", kernelTrace())

	out, err := execute(t, "decode", "/traces/kernel")
	require.NoError(t, err)
	assert.Equal(t, schedSwitch+irqEntry+anonymous, out)
}

func TestDecodeLimitAndSummary(t *testing.T) {
	fake := useFake(t)
	fake.AddTrace("/traces/kernel", kernelTrace())

	out, err := execute(t, "decode", "--limit", "2", "--summary", "--trace-name", "renamed", "/traces/kernel")
	require.NoError(t, err)
	assert.Equal(t, schedSwitch+irqEntry+
		"trace: \"renamed\"\n"+
		"  env hostname = box\n"+
		"stream 0 \"chan0\" clock=monotonic freq=1000000000 offset=0s+0cy\n"+
		"stream 1 clock=monotonic freq=1000000000 offset=0s+0cy\n", out)
}

func TestDecodeUnknownTrace(t *testing.T) {
	useFake(t)
	_, err := execute(t, "decode", "/traces/missing")
	require.Error(t, err)
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func packetOf(seq, sizeBits uint64) []byte {
	b := fakebt.EncodePacket(fakebt.PacketHeader{
		StreamID:        0,
		TimestampBegin:  seq * 100,
		TimestampEnd:    seq*100 + 50,
		ContentSize:     sizeBits,
		PacketSize:      sizeBits,
		EventsDiscarded: 0,
		PacketSeqNum:    seq,
	})
	if pad := int(sizeBits/8) - len(b); pad > 0 {
		b = append(b, make([]byte, pad)...)
	}
	return b
}

func packetLine(path string, off, seq, sizeBits uint64) string {
	return fmt.Sprintf("%s@%d: {stream_id=0, packet_size=%d, content_size=%d, clock_begin=%d, clock_end=%d, discarded=0, seq_num=%d}\n",
		path, off, sizeBits, sizeBits, seq*100, seq*100+50, seq)
}

func TestPacketWalksStreamFile(t *testing.T) {
	useFake(t)
	metadata := writeFile(t, "metadata", []byte(fakebt.MetadataPreamble+"\ntrace { major = 1; };"))

	var data []byte
	data = append(data, packetOf(0, 96*8)...)
	data = append(data, packetOf(1, 72*8)...)
	data = append(data, 0xDE, 0xAD)
	stream := writeFile(t, "stream_0", data)

	out, err := execute(t, "packet", "--metadata", metadata, stream)
	require.NoError(t, err)
	assert.Equal(t, packetLine(stream, 0, 0, 768)+packetLine(stream, 96, 1, 576), out)
}

func TestPacketSeveralFiles(t *testing.T) {
	useFake(t)
	metadata := writeFile(t, "metadata", []byte(fakebt.MetadataPreamble+"\n"))
	first := writeFile(t, "stream_0", packetOf(3, 72*8))
	second := writeFile(t, "stream_1", packetOf(4, 72*8))

	out, err := execute(t, "packet", "--metadata", metadata, "--max-request-size", "512", first, second)
	require.NoError(t, err)
	assert.Equal(t, packetLine(first, 0, 3, 576)+packetLine(second, 0, 4, 576), out)
}

func TestPacketMissingStreamFile(t *testing.T) {
	useFake(t)
	metadata := writeFile(t, "metadata", []byte(fakebt.MetadataPreamble+"\n"))
	_, err := execute(t, "packet", "--metadata", metadata, filepath.Join(t.TempDir(), "absent"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func newDecoder(t *testing.T) *ctf.PacketDecoder {
	t.Helper()
	fake := fakebt.New()
	lib, err := bt2.Open(bt2.Config{Backend: fake, Logger: logging.Nop()})
	require.NoError(t, err)
	metadata := writeFile(t, "metadata", []byte(fakebt.MetadataPreamble+"\n"))
	dec, err := ctf.NewPacketDecoder(lib, metadata, ctf.DecoderConfig{})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, dec.Close())
		require.NoError(t, lib.Close())
		assert.Empty(t, fake.Outstanding())
	})
	return dec
}

func TestPrintPacketsStopsOnUnknownSize(t *testing.T) {
	dec := newDecoder(t)
	data := packetOf(0, 72*8)
	data = append(data, fakebt.EncodePacket(fakebt.PacketHeader{
		StreamID:        math.MaxUint32,
		TimestampBegin:  math.MaxUint64,
		TimestampEnd:    math.MaxUint64,
		ContentSize:     math.MaxUint64,
		PacketSize:      math.MaxUint64,
		EventsDiscarded: math.MaxUint64,
		PacketSeqNum:    math.MaxUint64,
	})...)
	data = append(data, packetOf(2, 72*8)...)

	var b bytes.Buffer
	n, err := printPackets(&b, dec, "s", data)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, packetLine("s", 0, 0, 576)+
		"s@72: {stream_id=NA, packet_size=NA, content_size=NA, clock_begin=NA, clock_end=NA, discarded=NA, seq_num=NA}\n",
		b.String())
}

func TestPrintPacketsStopsOnZeroSize(t *testing.T) {
	dec := newDecoder(t)
	data := append(packetOf(5, 0), packetOf(6, 72*8)...)

	var b bytes.Buffer
	n, err := printPackets(&b, dec, "s", data)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, packetLine("s", 0, 5, 0), b.String())
}

func TestPrintPacketsEmptyInput(t *testing.T) {
	dec := newDecoder(t)
	var b bytes.Buffer
	n, err := printPackets(&b, dec, "s", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, b.String())
}

func TestLiveRunsUntilSessionEnds(t *testing.T) {
	fake := useFake(t)
	tr := kernelTrace()
	tr.AgainBefore = 2
	fake.AddTrace(liveURL, tr)

	out, err := execute(t, "live", "--poll-interval", "1ms", liveURL)
	require.NoError(t, err)
	assert.Equal(t, schedSwitch+irqEntry+anonymous, out)
}

func TestLiveMaxEvents(t *testing.T) {
	fake := useFake(t)
	fake.AddTrace(liveURL, kernelTrace())

	out, err := execute(t, "live", "--max-events", "2", liveURL)
	require.NoError(t, err)
	assert.Equal(t, schedSwitch+irqEntry, out)
}

func TestLiveStopsOnCancel(t *testing.T) {
	useFake(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := executeContext(t, ctx, "live", "--poll-interval", "1h",
		"--session-not-found-action", "continue", "net://localhost/host/box/missing")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestLiveSessionNotFoundEnd(t *testing.T) {
	useFake(t)
	out, err := execute(t, "live", "--session-not-found-action", "end", "net://localhost/host/box/missing")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestLiveSessionNotFoundFail(t *testing.T) {
	useFake(t)
	_, err := execute(t, "live", "--session-not-found-action", "fail", "net://localhost/host/box/missing")
	require.ErrorIs(t, err, bt2.ErrFatal)
}

func TestRunLiveCancelledDirectly(t *testing.T) {
	fake := useFake(t)
	_, err := execute(t, "version")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)
	action := bt2.SessionNotFoundContinue
	err = runLive(ctx, cmd, bt2.LttngLiveParams{URL: "net://localhost/host/box/missing", SessionNotFoundAction: &action}, time.Hour, 0)
	require.NoError(t, err)
	assert.Empty(t, out.String())
	assert.Contains(t, fake.Calls(), "GraphRunOnce")
}
