package backend

import (
	"errors"
	"strings"
	"unsafe"
)

// ErrNotBuilt reports that the native bindings were not linked into the
// current binary.
var ErrNotBuilt = errors.New("bt2/internal/backend: native bindings not built")

// ErrVersionMismatch reports a linked library whose release differs from the
// one vendored in SourceTree.
var ErrVersionMismatch = errors.New("bt2/internal/backend: linked libbabeltrace2 does not match the vendored sources")

// SourceTree is the vendored libbabeltrace2 checkout, relative to the module
// root. The native implementation compiles against its include/ and src/
// headers and links the libraries of its build/ directory.
const SourceTree = "third_party/babeltrace"

// PinnedRelease is the release checked out in SourceTree.
const PinnedRelease = "2.0.4"

// CompatibleRelease reports whether a linked version string has the same
// major and minor numbers as PinnedRelease. The private metadata decoder and
// message iterator headers change between minor releases.
func CompatibleRelease(linked string) bool {
	majorMinor := func(v string) string {
		parts := strings.SplitN(v, ".", 3)
		if len(parts) < 2 {
			return ""
		}
		return parts[0] + "." + parts[1]
	}
	want := majorMinor(PinnedRelease)
	return want != "" && majorMinor(linked) == want
}

// Ptr is an opaque handle to memory owned by libbabeltrace2. Go code never
// dereferences it.
type Ptr unsafe.Pointer

// Kind identifies the release function that matches a handle.
type Kind int

const (
	KindGraph Kind = iota + 1
	KindPlugin
	KindComponentClass
	KindComponent
	KindValue
	KindMessageIterator
	KindMessage
	KindTrace
	KindTraceClass
	KindStream
	KindClockClass
	KindStreamClass
	KindEventClass
	KindFieldClass
	// Exclusive ownership: a single destroy, no reference count.
	KindMetadataDecoder
	KindCTFMessageIterator
	KindForgedComponent
)

var kindNames = map[Kind]string{
	KindGraph:              "graph",
	KindPlugin:             "plugin",
	KindComponentClass:     "component-class",
	KindComponent:          "component",
	KindValue:              "value",
	KindMessageIterator:    "message-iterator",
	KindMessage:            "message",
	KindTrace:              "trace",
	KindTraceClass:         "trace-class",
	KindStream:             "stream",
	KindClockClass:         "clock-class",
	KindStreamClass:        "stream-class",
	KindEventClass:         "event-class",
	KindFieldClass:         "field-class",
	KindMetadataDecoder:    "metadata-decoder",
	KindCTFMessageIterator: "ctf-message-iterator",
	KindForgedComponent:    "forged-component",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// Shared reports whether handles of this kind carry a reference count.
func (k Kind) Shared() bool {
	return k >= KindGraph && k <= KindFieldClass
}

// Status mirrors the __BT_FUNC_STATUS_* values shared by every libbabeltrace2
// function status enumeration.
type Status int

const (
	StatusOK            Status = 0
	StatusEnd           Status = 1
	StatusNotFound      Status = 2
	StatusInterrupted   Status = 4
	StatusNoMatch       Status = 6
	StatusAgain         Status = 11
	StatusUnknownObject Status = 42
	StatusError         Status = -1
	StatusUserError     Status = -2
	StatusMemoryError   Status = -12
	StatusOverflowError Status = -75
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusEnd:
		return "END"
	case StatusNotFound:
		return "NOT_FOUND"
	case StatusInterrupted:
		return "INTERRUPTED"
	case StatusNoMatch:
		return "NO_MATCH"
	case StatusAgain:
		return "AGAIN"
	case StatusUnknownObject:
		return "UNKNOWN_OBJECT"
	case StatusError:
		return "ERROR"
	case StatusUserError:
		return "USER_ERROR"
	case StatusMemoryError:
		return "MEMORY_ERROR"
	case StatusOverflowError:
		return "OVERFLOW_ERROR"
	default:
		return "UNDEFINED"
	}
}

// DecoderStatus mirrors enum ctf_metadata_decoder_status.
type DecoderStatus int

const (
	DecoderOK             DecoderStatus = 0
	DecoderNone           DecoderStatus = 1
	DecoderError          DecoderStatus = -1
	DecoderIncomplete     DecoderStatus = -2
	DecoderInvalVersion   DecoderStatus = -3
	DecoderIRVisitorError DecoderStatus = -4
)

func (s DecoderStatus) String() string {
	switch s {
	case DecoderOK:
		return "OK"
	case DecoderNone:
		return "NONE"
	case DecoderError:
		return "ERROR"
	case DecoderIncomplete:
		return "INCOMPLETE"
	case DecoderInvalVersion:
		return "INVAL_VERSION"
	case DecoderIRVisitorError:
		return "IR_VISITOR_ERROR"
	default:
		return "UNDEFINED"
	}
}

// MsgIterStatus mirrors enum ctf_msg_iter_status.
type MsgIterStatus int

const (
	MsgIterOK          MsgIterStatus = 0
	MsgIterEOF         MsgIterStatus = 1
	MsgIterAgain       MsgIterStatus = 11
	MsgIterError       MsgIterStatus = -1
	MsgIterMemoryError MsgIterStatus = -12
)

func (s MsgIterStatus) String() string {
	switch s {
	case MsgIterOK:
		return "OK"
	case MsgIterEOF:
		return "EOF"
	case MsgIterAgain:
		return "AGAIN"
	case MsgIterError:
		return "ERROR"
	case MsgIterMemoryError:
		return "MEMORY_ERROR"
	default:
		return "UNDEFINED"
	}
}

// LoggingLevel mirrors bt_logging_level.
type LoggingLevel int

const (
	LoggingTrace   LoggingLevel = 1
	LoggingDebug   LoggingLevel = 2
	LoggingInfo    LoggingLevel = 3
	LoggingWarning LoggingLevel = 4
	LoggingError   LoggingLevel = 5
	LoggingFatal   LoggingLevel = 6
	LoggingNone    LoggingLevel = 0xff
)

// ComponentClassType mirrors bt_component_class_type.
type ComponentClassType uint64

const (
	ComponentClassSource ComponentClassType = 1 << 0
	ComponentClassFilter ComponentClassType = 1 << 1
	ComponentClassSink   ComponentClassType = 1 << 2
)

// PortType mirrors bt_port_type.
type PortType uint64

const (
	PortInput  PortType = 1 << 0
	PortOutput PortType = 1 << 1
)

// MessageType mirrors bt_message_type.
type MessageType uint64

const (
	MessageStreamBeginning    MessageType = 1 << 0
	MessageStreamEnd          MessageType = 1 << 1
	MessageEvent              MessageType = 1 << 2
	MessagePacketBeginning    MessageType = 1 << 3
	MessagePacketEnd          MessageType = 1 << 4
	MessageDiscardedEvents    MessageType = 1 << 5
	MessageDiscardedPackets   MessageType = 1 << 6
	MessageIteratorInactivity MessageType = 1 << 7
)

// FieldClassType mirrors bt_field_class_type. Composite values keep the
// library's bit layout so that unknown types pass through unchanged.
type FieldClassType uint64

const (
	FieldClassBool                FieldClassType = 1 << 0
	FieldClassBitArray            FieldClassType = 1 << 1
	FieldClassInteger             FieldClassType = 1 << 2
	FieldClassUnsignedInteger     FieldClassType = 1<<3 | FieldClassInteger
	FieldClassSignedInteger       FieldClassType = 1<<4 | FieldClassInteger
	FieldClassEnumeration         FieldClassType = 1 << 5
	FieldClassUnsignedEnumeration FieldClassType = FieldClassEnumeration | FieldClassUnsignedInteger
	FieldClassSignedEnumeration   FieldClassType = FieldClassEnumeration | FieldClassSignedInteger
	FieldClassReal                FieldClassType = 1 << 6
	FieldClassSingleReal          FieldClassType = 1<<7 | FieldClassReal
	FieldClassDoubleReal          FieldClassType = 1<<8 | FieldClassReal
	FieldClassString              FieldClassType = 1 << 9
	FieldClassStructure           FieldClassType = 1 << 10
	FieldClassArray               FieldClassType = 1 << 11
	FieldClassStaticArray         FieldClassType = 1<<12 | FieldClassArray
	FieldClassDynamicArray        FieldClassType = 1<<13 | FieldClassArray
)

// ValueType mirrors bt_value_type.
type ValueType uint64

const (
	ValueNull            ValueType = 1 << 0
	ValueBool            ValueType = 1 << 1
	ValueInteger         ValueType = 1 << 2
	ValueUnsignedInteger ValueType = 1<<3 | ValueInteger
	ValueSignedInteger   ValueType = 1<<4 | ValueInteger
	ValueReal            ValueType = 1 << 5
	ValueString          ValueType = 1 << 6
	ValueArray           ValueType = 1 << 7
	ValueMap             ValueType = 1 << 8
)

// EventClassLogLevel mirrors bt_event_class_log_level.
type EventClassLogLevel int

// PluginFindOptions selects where bt_plugin_find looks for plugins.
type PluginFindOptions struct {
	FindInStdEnvVar bool
	FindInUserDir   bool
	FindInSysDir    bool
	FindInStatic    bool
	FailOnLoadError bool
}

// SinkMethods receives the callbacks of a sink component class created with
// ComponentClassSinkCreate. self is the bt_self_component_sink handle.
type SinkMethods interface {
	Initialize(self Ptr) Status
	GraphIsConfigured(self Ptr) Status
	Consume(self Ptr) Status
	Finalize(self Ptr)
}

// SourceMethods receives the callbacks of a source component class created
// with ComponentClassSourceCreate. self is the bt_self_component_source
// handle and it the bt_self_message_iterator handle. IteratorNext returns at
// most capacity messages whose references move to the library.
type SourceMethods interface {
	Initialize(self Ptr) Status
	IteratorNext(it Ptr, capacity uint64) ([]Ptr, Status)
	Finalize(self Ptr)
}

// MetadataDecoderConfig mirrors struct ctf_metadata_decoder_config.
type MetadataDecoderConfig struct {
	LogLevel                       LoggingLevel
	ClockClassOffsetS              int64
	ClockClassOffsetNS             int64
	ForceClockClassOriginUnixEpoch bool
	CreateTraceClass               bool
	KeepPlainText                  bool
}

// PacketProperties mirrors struct ctf_msg_iter_packet_properties. Absent
// values keep the library's sentinels (-1 for signed, all ones for unsigned).
type PacketProperties struct {
	ExpectedTotalSize   int64
	ExpectedContentSize int64
	StreamClassID       uint64
	DataStreamID        int64
	DiscardedEvents     uint64
	PacketSeqNum        uint64
	BeginningClock      uint64
	EndClock            uint64
}

// ClockClassProperties groups the scalar accessors of a bt_clock_class.
type ClockClassProperties struct {
	Frequency     uint64
	OffsetSeconds int64
	OffsetCycles  uint64
	Precision     uint64
	UnixEpoch     bool
	Name          string
	HasName       bool
	Description   string
	HasDesc       bool
	UUID          []byte
}

// API is the complete set of wrapped libbabeltrace2 calls. Methods never
// validate their arguments; callers check for nil handles first.
type API interface {
	Version() string

	GetRef(k Kind, p Ptr)
	PutRef(k Kind, p Ptr)
	CurrentThreadClearError()

	SetGlobalLoggingLevel(l LoggingLevel)
	GlobalLoggingLevel() LoggingLevel

	GraphCreate(mipVersion uint64) Ptr
	GraphAddSourceComponent(g, cls Ptr, name string, params Ptr, m SourceMethods, lvl LoggingLevel) (Ptr, Status)
	GraphAddFilterComponent(g, cls Ptr, name string, params Ptr, lvl LoggingLevel) (Ptr, Status)
	GraphAddSinkComponent(g, cls Ptr, name string, params Ptr, m SinkMethods, lvl LoggingLevel) (Ptr, Status)
	GraphConnectPorts(g, out, in Ptr) Status
	GraphRunOnce(g Ptr) Status

	PluginFind(name string, opts PluginFindOptions) (Ptr, Status)
	PluginName(p Ptr) string
	PluginBorrowSourceComponentClassByName(p Ptr, name string) Ptr
	PluginBorrowFilterComponentClassByName(p Ptr, name string) Ptr
	PluginBorrowSinkComponentClassByName(p Ptr, name string) Ptr

	ComponentClassSinkCreate(name string) Ptr
	ComponentClassSourceCreate(name string) Ptr
	ComponentClassName(c Ptr) string
	ComponentClassType(c Ptr) ComponentClassType

	ComponentName(c Ptr) string
	ComponentClassTypeOf(c Ptr) ComponentClassType
	ComponentInputPortCount(c Ptr) uint64
	ComponentOutputPortCount(c Ptr) uint64
	ComponentBorrowInputPortByIndex(c Ptr, i uint64) Ptr
	ComponentBorrowOutputPortByIndex(c Ptr, i uint64) Ptr

	PortName(p Ptr) string
	PortIsConnected(p Ptr) bool
	PortType(p Ptr) PortType

	SelfComponentSinkAddInputPort(self Ptr, name string) Status
	SelfComponentSinkBorrowInputPortByIndex(self Ptr, i uint64) Ptr
	MessageIteratorCreateFromSinkComponent(self, port Ptr) (Ptr, Status)
	MessageIteratorNext(it Ptr) ([]Ptr, Status)

	SelfComponentSourceAddOutputPort(self Ptr, name string) Status
	TraceClassCreate(self Ptr) Ptr
	ClockClassCreate(self Ptr, props ClockClassProperties) Ptr
	StreamClassCreate(tc, clock Ptr) Ptr
	StreamClassBorrowTraceClass(sc Ptr) Ptr
	EventClassCreate(sc Ptr, name string, payload Ptr) Ptr
	FieldClassCreate(tc Ptr, t FieldClassType) Ptr
	FieldClassStructureAppendMember(st Ptr, name string, member Ptr) Status
	TraceSetName(t Ptr, name string) Status
	StreamCreate(sc, t Ptr) Ptr
	StreamBorrowClass(s Ptr) Ptr
	MessageStreamBeginningCreate(it, s Ptr) Ptr
	MessageStreamEndCreate(it, s Ptr) Ptr
	MessageEventCreate(it, ec, s Ptr, cycles uint64, withClock bool) Ptr
	MessageEventBorrowPayload(m Ptr) Ptr
	FieldBoolSet(f Ptr, v bool)
	FieldUnsignedIntegerSet(f Ptr, v uint64)
	FieldSignedIntegerSet(f Ptr, v int64)
	FieldRealSingleSet(f Ptr, v float32)
	FieldRealDoubleSet(f Ptr, v float64)
	FieldStringSet(f Ptr, v string) Status

	MessageType(m Ptr) MessageType
	MessageStreamBeginningBorrowStream(m Ptr) Ptr
	MessageStreamEndBorrowStream(m Ptr) Ptr
	MessageEventBorrowEvent(m Ptr) Ptr
	MessageEventBorrowDefaultClockSnapshot(m Ptr) Ptr
	MessageDiscardedEventsCount(m Ptr) (uint64, bool)
	MessageDiscardedPacketsCount(m Ptr) (uint64, bool)

	EventBorrowClass(e Ptr) Ptr
	EventBorrowStream(e Ptr) Ptr
	EventBorrowPayload(e Ptr) Ptr
	EventBorrowSpecificContext(e Ptr) Ptr
	EventBorrowCommonContext(e Ptr) Ptr
	EventClassID(ec Ptr) uint64
	EventClassName(ec Ptr) (string, bool)
	EventClassLogLevel(ec Ptr) (EventClassLogLevel, bool)

	StreamID(s Ptr) uint64
	StreamName(s Ptr) (string, bool)
	StreamBorrowTrace(s Ptr) Ptr
	StreamBorrowDefaultClockClass(s Ptr) Ptr

	TraceName(t Ptr) (string, bool)
	TraceUUID(t Ptr) ([]byte, bool)
	TraceEnvironmentEntryCount(t Ptr) uint64
	TraceEnvironmentEntryByIndex(t Ptr, i uint64) (string, Ptr)

	ClockClassProperties(cc Ptr) ClockClassProperties
	ClockSnapshotValue(cs Ptr) uint64
	ClockSnapshotNsFromOrigin(cs Ptr) (int64, Status)

	FieldClassType(f Ptr) FieldClassType
	FieldBoolValue(f Ptr) bool
	FieldUnsignedIntegerValue(f Ptr) uint64
	FieldSignedIntegerValue(f Ptr) int64
	FieldRealSingleValue(f Ptr) float32
	FieldRealDoubleValue(f Ptr) float64
	FieldStringValue(f Ptr) string
	FieldUnsignedEnumerationLabels(f Ptr) ([]string, Status)
	FieldSignedEnumerationLabels(f Ptr) ([]string, Status)
	FieldStructureMemberCount(f Ptr) uint64
	FieldStructureMemberName(f Ptr, i uint64) string
	FieldStructureBorrowMemberByIndex(f Ptr, i uint64) Ptr
	FieldArrayLength(f Ptr) uint64
	FieldArrayBorrowElementByIndex(f Ptr, i uint64) Ptr

	ValueNullBorrow() Ptr
	ValueBoolCreate(v bool) Ptr
	ValueIntegerUnsignedCreate(v uint64) Ptr
	ValueIntegerSignedCreate(v int64) Ptr
	ValueRealCreate(v float64) Ptr
	ValueStringCreate(v string) Ptr
	ValueArrayCreate() Ptr
	ValueMapCreate() Ptr
	ValueType(v Ptr) ValueType
	ValueBoolGet(v Ptr) bool
	ValueIntegerUnsignedGet(v Ptr) uint64
	ValueIntegerSignedGet(v Ptr) int64
	ValueRealGet(v Ptr) float64
	ValueStringGet(v Ptr) string
	ValueArrayLength(v Ptr) uint64
	ValueArrayBorrowElementByIndex(v Ptr, i uint64) Ptr
	ValueArrayAppendElement(v, elem Ptr) Status
	ValueMapSize(v Ptr) uint64
	ValueMapBorrowEntry(v Ptr, key string) Ptr
	ValueMapKeys(v Ptr) []string
	ValueMapInsertEntry(v Ptr, key string, elem Ptr) Status

	ForgeSelfComponent(name string, lvl LoggingLevel) (Ptr, Status)
	MetadataDecoderCreate(cfg MetadataDecoderConfig, selfComp Ptr) Ptr
	MetadataDecoderAppendContent(dec Ptr, path string) (DecoderStatus, error)
	MetadataDecoderGetIRTraceClass(dec Ptr) Ptr
	MetadataDecoderBorrowCTFTraceClass(dec Ptr) Ptr
	TraceCreate(tc Ptr) Ptr
	MsgIterCreate(ctfTC Ptr, maxRequestSize uint64, lvl LoggingLevel, selfComp Ptr) Ptr
	MsgIterSetDryRun(it Ptr, dryRun bool)
	MsgIterReset(it Ptr)
	MsgIterGetPacketProperties(it Ptr, packet []byte) (PacketProperties, MsgIterStatus)
}
