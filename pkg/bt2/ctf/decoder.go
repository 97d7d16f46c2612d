package ctf

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strings"

	"github.com/tracewire/bt2-go/pkg/bt2"
	"github.com/tracewire/bt2-go/pkg/bt2/internal/backend"
	"github.com/tracewire/bt2-go/pkg/bt2/internal/own"
	"github.com/tracewire/bt2-go/pkg/bt2/logging"
)

// DefaultMaxRequestSize is the read size used when DecoderConfig leaves
// MaxRequestSize at zero.
const DefaultMaxRequestSize = 4096

// forgedComponentName names the component the decoder forges for the
// library's logging and error reporting.
const forgedComponentName = "forged-msg-iter"

// DecoderConfig configures a PacketDecoder. The zero value is usable.
type DecoderConfig struct {
	LogLevel                       bt2.LoggingLevel
	ClockClassOffsetS              int64
	ClockClassOffsetNs             int64
	ForceClockClassOriginUnixEpoch bool
	MaxRequestSize                 uint64
}

// PacketDecoder reads packet properties using a trace's metadata. It is not
// safe for concurrent use.
type PacketDecoder struct {
	iter      own.Ref
	decoder   own.Ref
	trace     own.Ref
	traceCls  own.Ref
	component own.Ref

	log logging.Logger
}

// NewPacketDecoder parses the metadata file at metadataPath and prepares a
// message iterator in dry-run mode. Every acquisition is released when a
// step fails.
func NewPacketDecoder(lib *bt2.Library, metadataPath string, cfg DecoderConfig) (*PacketDecoder, error) {
	const op = "ctf.packet_decoder.create"
	if err := checkConfig(op, cfg); err != nil {
		return nil, err
	}
	if err := checkMetadataPath(op, metadataPath); err != nil {
		return nil, err
	}
	if cfg.MaxRequestSize == 0 {
		cfg.MaxRequestSize = DefaultMaxRequestSize
	}
	api, err := lib.Backend()
	if err != nil {
		return nil, err
	}
	lvl := cfg.LogLevel.Native()

	d := &PacketDecoder{log: lib.Logger().With("metadata", metadataPath)}
	var scope own.Scope
	defer scope.Release()

	comp, st := api.ForgeSelfComponent(forgedComponentName, lvl)
	if st != backend.StatusOK {
		api.CurrentThreadClearError()
		return nil, bt2.RemapStatus(op, st)
	}
	if comp == nil {
		return nil, bt2.NewError(op, bt2.KindResourceExhausted, "could not forge a component")
	}
	d.component = own.Take(api, backend.KindForgedComponent, comp)
	scope.Track(&d.component)

	dec := api.MetadataDecoderCreate(backend.MetadataDecoderConfig{
		LogLevel:                       lvl,
		ClockClassOffsetS:              cfg.ClockClassOffsetS,
		ClockClassOffsetNS:             cfg.ClockClassOffsetNs,
		ForceClockClassOriginUnixEpoch: cfg.ForceClockClassOriginUnixEpoch,
		CreateTraceClass:               true,
	}, comp)
	if dec == nil {
		return nil, bt2.NewError(op, bt2.KindResourceExhausted, "could not create the metadata decoder")
	}
	d.decoder = own.Take(api, backend.KindMetadataDecoder, dec)
	scope.Track(&d.decoder)

	mst, err := api.MetadataDecoderAppendContent(dec, metadataPath)
	if err != nil {
		e := bt2.NewError(op, bt2.KindFatal, "could not read the metadata file")
		if errors.Is(err, fs.ErrNotExist) {
			e.Kind = bt2.KindNotFound
		}
		e.Err = err
		return nil, e
	}
	if err := bt2.DecoderStatusError(op, mst); err != nil {
		api.CurrentThreadClearError()
		return nil, err
	}

	tc := api.MetadataDecoderGetIRTraceClass(dec)
	if tc == nil {
		return nil, bt2.NewError(op, bt2.KindResourceExhausted, "could not get the IR trace class")
	}
	d.traceCls = own.Take(api, backend.KindTraceClass, tc)
	scope.Track(&d.traceCls)

	ctfTC := api.MetadataDecoderBorrowCTFTraceClass(dec)
	if ctfTC == nil {
		return nil, bt2.NewError(op, bt2.KindNotFound, "could not borrow the CTF trace class")
	}

	tr := api.TraceCreate(tc)
	if tr == nil {
		return nil, bt2.NewError(op, bt2.KindResourceExhausted, "could not create a trace from the metadata trace class")
	}
	d.trace = own.Take(api, backend.KindTrace, tr)
	scope.Track(&d.trace)

	it := api.MsgIterCreate(ctfTC, cfg.MaxRequestSize, lvl, comp)
	if it == nil {
		return nil, bt2.NewError(op, bt2.KindResourceExhausted, "could not create the CTF message iterator")
	}
	d.iter = own.Take(api, backend.KindCTFMessageIterator, it)
	scope.Track(&d.iter)

	// Only packet headers are read; the iterator must not allocate IR
	// objects.
	api.MsgIterSetDryRun(it, true)

	scope.Keep()
	runtime.SetFinalizer(d, (*PacketDecoder).Close)
	d.log.Debug(context.Background(), "packet decoder ready", "max_request_size", cfg.MaxRequestSize)
	return d, nil
}

func checkConfig(op string, cfg DecoderConfig) error {
	return bt2.CheckLoggingLevel(op, cfg.LogLevel)
}

func checkMetadataPath(op, path string) error {
	if err := bt2.CheckName(op, "metadata path", path); err != nil {
		return err
	}
	fi, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		e := bt2.NewError(op, bt2.KindNotFound, fmt.Sprintf("metadata path %q does not exist", path))
		e.Err = err
		return e
	case err != nil:
		e := bt2.NewError(op, bt2.KindInvalidArgument, fmt.Sprintf("metadata path %q", path))
		e.Err = err
		return e
	case !fi.Mode().IsRegular():
		return bt2.NewError(op, bt2.KindInvalidArgument, fmt.Sprintf("metadata path %q is not a regular file", path))
	}
	return nil
}

// PacketProperties decodes the header and context of the packet at the
// start of packet. ok is false when packet is empty or too short to hold a
// complete header. Trailing bytes after the packet are ignored.
func (d *PacketDecoder) PacketProperties(packet []byte) (PacketProperties, bool, error) {
	const op = "ctf.msg_iter.get_packet_properties"
	if d == nil {
		return PacketProperties{}, false, bt2.NewError(op, bt2.KindInvalidArgument, "nil decoder")
	}
	if !d.iter.Valid() {
		e := bt2.NewError(op, bt2.KindInvalidArgument, "")
		e.Err = bt2.ErrClosed
		return PacketProperties{}, false, e
	}
	defer runtime.KeepAlive(d)
	api, it := d.iter.API(), d.iter.Ptr()
	api.MsgIterReset(it)
	raw, st := api.MsgIterGetPacketProperties(it, packet)
	switch st {
	case backend.MsgIterOK:
		return packetProperties(raw), true, nil
	case backend.MsgIterEOF, backend.MsgIterAgain:
		api.CurrentThreadClearError()
		return PacketProperties{}, false, nil
	}
	api.CurrentThreadClearError()
	return PacketProperties{}, false, bt2.MsgIterStatusError(op, st)
}

// Close releases the message iterator, the metadata decoder, the trace, the
// trace class and the forged component, in that order. It is safe to call
// more than once.
func (d *PacketDecoder) Close() error {
	if d == nil {
		return nil
	}
	released := false
	for _, r := range []*own.Ref{&d.iter, &d.decoder, &d.trace, &d.traceCls, &d.component} {
		if r.Release() {
			released = true
		}
	}
	if released {
		runtime.SetFinalizer(d, nil)
	}
	return nil
}

// PacketProperties holds the values read from a packet header and context.
// Nil fields were absent from the packet.
type PacketProperties struct {
	TotalSizeBits   *uint64
	ContentSizeBits *uint64
	StreamClassID   *uint64
	DataStreamID    *uint64
	DiscardedEvents *uint64
	PacketSeqNum    *uint64
	BeginningClock  *uint64
	EndClock        *uint64
}

func packetProperties(p backend.PacketProperties) PacketProperties {
	return PacketProperties{
		TotalSizeBits:   signed(p.ExpectedTotalSize),
		ContentSizeBits: signed(p.ExpectedContentSize),
		StreamClassID:   unsigned(p.StreamClassID),
		DataStreamID:    signed(p.DataStreamID),
		DiscardedEvents: unsigned(p.DiscardedEvents),
		PacketSeqNum:    unsigned(p.PacketSeqNum),
		BeginningClock:  unsigned(p.BeginningClock),
		EndClock:        unsigned(p.EndClock),
	}
}

func signed(v int64) *uint64 {
	if v < 0 {
		return nil
	}
	u := uint64(v)
	return &u
}

func unsigned(v uint64) *uint64 {
	if v == ^uint64(0) {
		return nil
	}
	return &v
}

func (p PacketProperties) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, f := range []struct {
		name string
		v    *uint64
	}{
		{"stream_id", p.StreamClassID},
		{"packet_size", p.TotalSizeBits},
		{"content_size", p.ContentSizeBits},
		{"clock_begin", p.BeginningClock},
		{"clock_end", p.EndClock},
		{"discarded", p.DiscardedEvents},
		{"seq_num", p.PacketSeqNum},
	} {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.name)
		b.WriteByte('=')
		if f.v == nil {
			b.WriteString("NA")
		} else {
			fmt.Fprint(&b, *f.v)
		}
	}
	b.WriteByte('}')
	return b.String()
}
