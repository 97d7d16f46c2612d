package fakebt

import (
	"math"
	"os"
	"strings"

	"github.com/tracewire/bt2-go/pkg/bt2/internal/backend"
)

type forged struct {
	name string
}

type decoder struct {
	cfg        backend.MetadataDecoderConfig
	self       *object
	traceClass *object
	ctfTC      *object
}

type traceClass struct{}

type ctfTraceClass struct{}

type ctfMsgIter struct {
	maxRequest uint64
	ctfTC      *object
	dryRun     bool
	reset      bool
}

// ForgeSelfComponent implements backend.API.
func (l *Library) ForgeSelfComponent(name string, lvl backend.LoggingLevel) (backend.Ptr, backend.Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if st, fail := l.enter("ForgeSelfComponent"); fail {
		return nil, st
	}
	return ptrOf(l.give(backend.KindForgedComponent, &forged{name: name})), backend.StatusOK
}

// MetadataDecoderCreate implements backend.API.
func (l *Library) MetadataDecoderCreate(cfg backend.MetadataDecoderConfig, selfComp backend.Ptr) backend.Ptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, fail := l.enter("MetadataDecoderCreate"); fail {
		return nil
	}
	self := l.lookup("MetadataDecoderCreate", selfComp)
	if self == nil {
		return nil
	}
	if _, ok := self.data.(*forged); !ok {
		l.violate("MetadataDecoderCreate: self component is not forged")
		return nil
	}
	return ptrOf(l.give(backend.KindMetadataDecoder, &decoder{cfg: cfg, self: self}))
}

// MetadataDecoderAppendContent implements backend.API. The file must start
// with MetadataPreamble; a line reading "#incomplete" leaves the decoder
// waiting for more content.
func (l *Library) MetadataDecoderAppendContent(dec backend.Ptr, path string) (backend.DecoderStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if st, fail := l.enter("MetadataDecoderAppendContent"); fail {
		return backend.DecoderStatus(st), nil
	}
	d := data[*decoder](l, "MetadataDecoderAppendContent", dec)
	if d == nil {
		return backend.DecoderError, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return backend.DecoderError, err
	}
	text := string(content)
	switch {
	case !strings.HasPrefix(text, MetadataPreamble):
		return backend.DecoderInvalVersion, nil
	case strings.Contains(text, "\n#incomplete"):
		return backend.DecoderIncomplete, nil
	}
	if d.traceClass == nil && d.cfg.CreateTraceClass {
		d.traceClass = l.alloc(backend.KindTraceClass, &traceClass{})
	}
	if d.ctfTC == nil {
		d.ctfTC = child(l.objs[dec], l.alloc(kindInternal, &ctfTraceClass{}))
	}
	return backend.DecoderOK, nil
}

// MetadataDecoderGetIRTraceClass implements backend.API.
func (l *Library) MetadataDecoderGetIRTraceClass(dec backend.Ptr) backend.Ptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, fail := l.enter("MetadataDecoderGetIRTraceClass"); fail {
		return nil
	}
	d := data[*decoder](l, "MetadataDecoderGetIRTraceClass", dec)
	if d == nil || d.traceClass == nil {
		return nil
	}
	d.traceClass.refs++
	l.acquired[backend.KindTraceClass]++
	return ptrOf(d.traceClass)
}

// MetadataDecoderBorrowCTFTraceClass implements backend.API.
func (l *Library) MetadataDecoderBorrowCTFTraceClass(dec backend.Ptr) backend.Ptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, fail := l.enter("MetadataDecoderBorrowCTFTraceClass"); fail {
		return nil
	}
	d := data[*decoder](l, "MetadataDecoderBorrowCTFTraceClass", dec)
	if d == nil {
		return nil
	}
	return ptrOf(d.ctfTC)
}

// TraceCreate implements backend.API.
func (l *Library) TraceCreate(tc backend.Ptr) backend.Ptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, fail := l.enter("TraceCreate"); fail {
		return nil
	}
	o := l.lookup("TraceCreate", tc)
	if o == nil {
		return nil
	}
	if _, ok := o.data.(*traceClass); !ok {
		l.violate("TraceCreate: not a trace class")
		return nil
	}
	l.hold(o)
	return ptrOf(l.give(backend.KindTrace, &trace{class: o}))
}

// MsgIterCreate implements backend.API.
func (l *Library) MsgIterCreate(ctfTC backend.Ptr, maxRequestSize uint64, lvl backend.LoggingLevel, selfComp backend.Ptr) backend.Ptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, fail := l.enter("MsgIterCreate"); fail {
		return nil
	}
	tc := l.lookup("MsgIterCreate", ctfTC)
	self := l.lookup("MsgIterCreate", selfComp)
	if tc == nil || self == nil || maxRequestSize == 0 {
		return nil
	}
	return ptrOf(l.give(backend.KindCTFMessageIterator, &ctfMsgIter{maxRequest: maxRequestSize, ctfTC: tc}))
}

// MsgIterSetDryRun implements backend.API.
func (l *Library) MsgIterSetDryRun(it backend.Ptr, dryRun bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("MsgIterSetDryRun")
	if m := data[*ctfMsgIter](l, "MsgIterSetDryRun", it); m != nil {
		m.dryRun = dryRun
	}
}

// MsgIterReset implements backend.API.
func (l *Library) MsgIterReset(it backend.Ptr) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("MsgIterReset")
	if m := data[*ctfMsgIter](l, "MsgIterReset", it); m != nil {
		m.reset = true
	}
}

// MsgIterGetPacketProperties implements backend.API using the PacketHeader
// layout.
func (l *Library) MsgIterGetPacketProperties(it backend.Ptr, packet []byte) (backend.PacketProperties, backend.MsgIterStatus) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var props backend.PacketProperties
	if st, fail := l.enter("MsgIterGetPacketProperties"); fail {
		return props, backend.MsgIterStatus(st)
	}
	m := data[*ctfMsgIter](l, "MsgIterGetPacketProperties", it)
	if m == nil {
		return props, backend.MsgIterError
	}
	if m.ctfTC.dead {
		l.violate("MsgIterGetPacketProperties: CTF trace class released before the iterator")
		return props, backend.MsgIterError
	}
	if !m.dryRun {
		l.violate("MsgIterGetPacketProperties: iterator not in dry-run mode")
	}
	if !m.reset {
		l.violate("MsgIterGetPacketProperties: iterator not reset")
	}
	m.reset = false

	switch {
	case len(packet) == 0:
		return props, backend.MsgIterAgain
	case len(packet) < PacketHeaderSize:
		return props, backend.MsgIterEOF
	}
	h, ok := decodePacket(packet)
	if !ok {
		return props, backend.MsgIterError
	}
	props = backend.PacketProperties{
		ExpectedTotalSize:   signedSize(h.PacketSize),
		ExpectedContentSize: signedSize(h.ContentSize),
		StreamClassID:       uint64(h.StreamID),
		DataStreamID:        -1,
		DiscardedEvents:     h.EventsDiscarded,
		PacketSeqNum:        h.PacketSeqNum,
		BeginningClock:      h.TimestampBegin,
		EndClock:            h.TimestampEnd,
	}
	if h.StreamID == math.MaxUint32 {
		props.StreamClassID = math.MaxUint64
	}
	return props, backend.MsgIterOK
}

func signedSize(v uint64) int64 {
	if v > math.MaxInt64 {
		return -1
	}
	return int64(v)
}
