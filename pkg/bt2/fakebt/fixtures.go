package fakebt

import (
	"encoding/binary"

	"github.com/tracewire/bt2-go/pkg/bt2/internal/backend"
)

// Trace describes the content a simulated source produces for one input.
type Trace struct {
	Name    string
	UUID    []byte
	Env     []EnvEntry
	Streams []Stream
	Events  []Event

	// DiscardedEvents and DiscardedPackets, when non-zero, add one discarded
	// message of each type per stream after the events.
	DiscardedEvents  uint64
	DiscardedPackets uint64

	// AgainBefore is the number of MessageIteratorNext calls answered with
	// AGAIN before any message flows.
	AgainBefore int
}

// EnvEntry is a trace environment entry. Value is an int, int64, string,
// float64 or bool; anything else is stored as a null value.
type EnvEntry struct {
	Name  string
	Value any
}

// Stream is a data stream of a trace fixture.
type Stream struct {
	ID    uint64
	Name  string
	Clock *Clock
}

// Clock is the default clock class of a stream.
type Clock struct {
	Frequency     uint64
	OffsetSeconds int64
	OffsetCycles  uint64
	Precision     uint64
	UnixEpoch     bool
	Name          string
	Description   string
	UUID          []byte
}

// Event is one event record.
type Event struct {
	Stream      uint64
	ClassID     uint64
	Name        string
	HasLogLevel bool
	LogLevel    int
	Cycles      uint64

	Payload         *Field
	SpecificContext *Field
	CommonContext   *Field
}

// Field is a field value together with its class type.
type Field struct {
	Type     backend.FieldClassType
	Name     string
	Bool     bool
	Uint     uint64
	Int      int64
	Float32  float32
	Float64  float64
	String   string
	Labels   []string
	Members  []Field
	Elements []Field
}

// Struct builds a structure field.
func Struct(members ...Field) *Field {
	return &Field{Type: backend.FieldClassStructure, Members: members}
}

func Bool(name string, v bool) Field {
	return Field{Type: backend.FieldClassBool, Name: name, Bool: v}
}

func U64(name string, v uint64) Field {
	return Field{Type: backend.FieldClassUnsignedInteger, Name: name, Uint: v}
}

func I64(name string, v int64) Field {
	return Field{Type: backend.FieldClassSignedInteger, Name: name, Int: v}
}

func F32(name string, v float32) Field {
	return Field{Type: backend.FieldClassSingleReal, Name: name, Float32: v}
}

func F64(name string, v float64) Field {
	return Field{Type: backend.FieldClassDoubleReal, Name: name, Float64: v}
}

func Str(name, v string) Field {
	return Field{Type: backend.FieldClassString, Name: name, String: v}
}

func UEnum(name string, v uint64, labels ...string) Field {
	return Field{Type: backend.FieldClassUnsignedEnumeration, Name: name, Uint: v, Labels: labels}
}

func SEnum(name string, v int64, labels ...string) Field {
	return Field{Type: backend.FieldClassSignedEnumeration, Name: name, Int: v, Labels: labels}
}

func Array(name string, dynamic bool, elems ...Field) Field {
	t := backend.FieldClassStaticArray
	if dynamic {
		t = backend.FieldClassDynamicArray
	}
	return Field{Type: t, Name: name, Elements: elems}
}

func Nested(name string, members ...Field) Field {
	return Field{Type: backend.FieldClassStructure, Name: name, Members: members}
}

// PacketMagic starts every packet understood by the simulated CTF decoder.
const PacketMagic uint32 = 0xC1FC1FC1

// PacketHeaderSize is the encoded size of a PacketHeader.
const PacketHeaderSize = 4 + 16 + 4 + 6*8

// PacketHeader is the packet header and context layout of the simulated
// metadata: magic, uuid, stream_id, then timestamp_begin, timestamp_end,
// content_size, packet_size, events_discarded and packet_seq_num. All-ones
// values stand for absent fields.
type PacketHeader struct {
	UUID            [16]byte
	StreamID        uint32
	TimestampBegin  uint64
	TimestampEnd    uint64
	ContentSize     uint64
	PacketSize      uint64
	EventsDiscarded uint64
	PacketSeqNum    uint64
}

// EncodePacket lays out h the way the simulated decoder reads it.
func EncodePacket(h PacketHeader) []byte {
	b := make([]byte, PacketHeaderSize)
	binary.LittleEndian.PutUint32(b[0:], PacketMagic)
	copy(b[4:20], h.UUID[:])
	binary.LittleEndian.PutUint32(b[20:], h.StreamID)
	for i, v := range []uint64{h.TimestampBegin, h.TimestampEnd, h.ContentSize, h.PacketSize, h.EventsDiscarded, h.PacketSeqNum} {
		binary.LittleEndian.PutUint64(b[24+8*i:], v)
	}
	return b
}

func decodePacket(b []byte) (PacketHeader, bool) {
	var h PacketHeader
	if binary.LittleEndian.Uint32(b[0:]) != PacketMagic {
		return h, false
	}
	copy(h.UUID[:], b[4:20])
	h.StreamID = binary.LittleEndian.Uint32(b[20:])
	vals := make([]uint64, 6)
	for i := range vals {
		vals[i] = binary.LittleEndian.Uint64(b[24+8*i:])
	}
	h.TimestampBegin, h.TimestampEnd = vals[0], vals[1]
	h.ContentSize, h.PacketSize = vals[2], vals[3]
	h.EventsDiscarded, h.PacketSeqNum = vals[4], vals[5]
	return h, true
}

// MetadataPreamble must start a metadata file accepted by the simulated
// decoder.
const MetadataPreamble = "/* CTF 1.8 */"
