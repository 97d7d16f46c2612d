package fakebt

import (
	"math"
	"math/bits"

	"github.com/tracewire/bt2-go/pkg/bt2/internal/backend"
)

type message struct {
	typ      backend.MessageType
	stream   *object
	event    *object
	snapshot *object
	count    uint64
}

type event struct {
	fixture *Event
	stream  *object
	class   *object
	fields  map[string]*object
}

type eventClass struct {
	id       uint64
	name     string
	hasLevel bool
	level    int
	// Set for classes created by a Go source.
	streamClass *object
	payload     *object
}

type snapshot struct {
	cycles uint64
	clock  Clock
}

type field struct {
	fixture *Field
	members []*object
	elems   []*object
}

// MessageType implements backend.API.
func (l *Library) MessageType(m backend.Ptr) backend.MessageType {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("MessageType")
	if msg := data[*message](l, "MessageType", m); msg != nil {
		return msg.typ
	}
	return 0
}

func (l *Library) messageStream(op string, m backend.Ptr, want backend.MessageType) backend.Ptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter(op)
	msg := data[*message](l, op, m)
	if msg == nil {
		return nil
	}
	if msg.typ != want {
		l.violate("%s: message type mismatch", op)
		return nil
	}
	return ptrOf(msg.stream)
}

// MessageStreamBeginningBorrowStream implements backend.API.
func (l *Library) MessageStreamBeginningBorrowStream(m backend.Ptr) backend.Ptr {
	return l.messageStream("MessageStreamBeginningBorrowStream", m, backend.MessageStreamBeginning)
}

// MessageStreamEndBorrowStream implements backend.API.
func (l *Library) MessageStreamEndBorrowStream(m backend.Ptr) backend.Ptr {
	return l.messageStream("MessageStreamEndBorrowStream", m, backend.MessageStreamEnd)
}

// MessageEventBorrowEvent implements backend.API.
func (l *Library) MessageEventBorrowEvent(m backend.Ptr) backend.Ptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("MessageEventBorrowEvent")
	msg := data[*message](l, "MessageEventBorrowEvent", m)
	if msg == nil || msg.typ != backend.MessageEvent {
		return nil
	}
	return ptrOf(msg.event)
}

// MessageEventBorrowDefaultClockSnapshot implements backend.API.
func (l *Library) MessageEventBorrowDefaultClockSnapshot(m backend.Ptr) backend.Ptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("MessageEventBorrowDefaultClockSnapshot")
	msg := data[*message](l, "MessageEventBorrowDefaultClockSnapshot", m)
	if msg == nil {
		return nil
	}
	return ptrOf(msg.snapshot)
}

func (l *Library) discardedCount(op string, m backend.Ptr, want backend.MessageType) (uint64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter(op)
	msg := data[*message](l, op, m)
	if msg == nil || msg.typ != want {
		return 0, false
	}
	return msg.count, msg.count > 0
}

// MessageDiscardedEventsCount implements backend.API.
func (l *Library) MessageDiscardedEventsCount(m backend.Ptr) (uint64, bool) {
	return l.discardedCount("MessageDiscardedEventsCount", m, backend.MessageDiscardedEvents)
}

// MessageDiscardedPacketsCount implements backend.API.
func (l *Library) MessageDiscardedPacketsCount(m backend.Ptr) (uint64, bool) {
	return l.discardedCount("MessageDiscardedPacketsCount", m, backend.MessageDiscardedPackets)
}

// EventBorrowClass implements backend.API.
func (l *Library) EventBorrowClass(e backend.Ptr) backend.Ptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("EventBorrowClass")
	if ev := data[*event](l, "EventBorrowClass", e); ev != nil {
		return ptrOf(ev.class)
	}
	return nil
}

// EventBorrowStream implements backend.API.
func (l *Library) EventBorrowStream(e backend.Ptr) backend.Ptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("EventBorrowStream")
	if ev := data[*event](l, "EventBorrowStream", e); ev != nil {
		return ptrOf(ev.stream)
	}
	return nil
}

func (l *Library) eventField(op string, e backend.Ptr, pick func(*Event) *Field) backend.Ptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter(op)
	eo := l.lookup(op, e)
	if eo == nil {
		return nil
	}
	return l.borrowEventField(op, eo, pick)
}

func (l *Library) borrowEventField(op string, eo *object, pick func(*Event) *Field) backend.Ptr {
	ev, ok := eo.data.(*event)
	if !ok {
		return nil
	}
	fx := pick(ev.fixture)
	if fx == nil {
		return nil
	}
	if ev.fields == nil {
		ev.fields = make(map[string]*object)
	}
	if f, ok := ev.fields[op]; ok {
		return ptrOf(f)
	}
	f := child(eo, l.alloc(kindInternal, &field{fixture: fx}))
	ev.fields[op] = f
	return ptrOf(f)
}

// EventBorrowPayload implements backend.API.
func (l *Library) EventBorrowPayload(e backend.Ptr) backend.Ptr {
	return l.eventField("EventBorrowPayload", e, func(ev *Event) *Field { return ev.Payload })
}

// EventBorrowSpecificContext implements backend.API.
func (l *Library) EventBorrowSpecificContext(e backend.Ptr) backend.Ptr {
	return l.eventField("EventBorrowSpecificContext", e, func(ev *Event) *Field { return ev.SpecificContext })
}

// EventBorrowCommonContext implements backend.API.
func (l *Library) EventBorrowCommonContext(e backend.Ptr) backend.Ptr {
	return l.eventField("EventBorrowCommonContext", e, func(ev *Event) *Field { return ev.CommonContext })
}

// EventClassID implements backend.API.
func (l *Library) EventClassID(ec backend.Ptr) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("EventClassID")
	if c := data[*eventClass](l, "EventClassID", ec); c != nil {
		return c.id
	}
	return 0
}

// EventClassName implements backend.API.
func (l *Library) EventClassName(ec backend.Ptr) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("EventClassName")
	if c := data[*eventClass](l, "EventClassName", ec); c != nil && c.name != "" {
		return c.name, true
	}
	return "", false
}

// EventClassLogLevel implements backend.API.
func (l *Library) EventClassLogLevel(ec backend.Ptr) (backend.EventClassLogLevel, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("EventClassLogLevel")
	if c := data[*eventClass](l, "EventClassLogLevel", ec); c != nil && c.hasLevel {
		return backend.EventClassLogLevel(c.level), true
	}
	return 0, false
}

// StreamID implements backend.API.
func (l *Library) StreamID(s backend.Ptr) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("StreamID")
	if sd := data[*stream](l, "StreamID", s); sd != nil {
		return sd.fixture.ID
	}
	return 0
}

// StreamName implements backend.API.
func (l *Library) StreamName(s backend.Ptr) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("StreamName")
	if sd := data[*stream](l, "StreamName", s); sd != nil && sd.fixture.Name != "" {
		return sd.fixture.Name, true
	}
	return "", false
}

// StreamBorrowTrace implements backend.API.
func (l *Library) StreamBorrowTrace(s backend.Ptr) backend.Ptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("StreamBorrowTrace")
	if sd := data[*stream](l, "StreamBorrowTrace", s); sd != nil {
		return ptrOf(sd.trace)
	}
	return nil
}

// StreamBorrowDefaultClockClass implements backend.API.
func (l *Library) StreamBorrowDefaultClockClass(s backend.Ptr) backend.Ptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("StreamBorrowDefaultClockClass")
	if sd := data[*stream](l, "StreamBorrowDefaultClockClass", s); sd != nil {
		return ptrOf(sd.clock)
	}
	return nil
}

// TraceName implements backend.API.
func (l *Library) TraceName(t backend.Ptr) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("TraceName")
	if td := data[*trace](l, "TraceName", t); td != nil {
		return td.name, td.hasName
	}
	return "", false
}

// TraceUUID implements backend.API.
func (l *Library) TraceUUID(t backend.Ptr) ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("TraceUUID")
	if td := data[*trace](l, "TraceUUID", t); td != nil && len(td.uuid) == 16 {
		return append([]byte(nil), td.uuid...), true
	}
	return nil, false
}

// TraceEnvironmentEntryCount implements backend.API.
func (l *Library) TraceEnvironmentEntryCount(t backend.Ptr) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("TraceEnvironmentEntryCount")
	if td := data[*trace](l, "TraceEnvironmentEntryCount", t); td != nil {
		return uint64(len(td.envNames))
	}
	return 0
}

// TraceEnvironmentEntryByIndex implements backend.API.
func (l *Library) TraceEnvironmentEntryByIndex(t backend.Ptr, i uint64) (string, backend.Ptr) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("TraceEnvironmentEntryByIndex")
	td := data[*trace](l, "TraceEnvironmentEntryByIndex", t)
	if td == nil || i >= uint64(len(td.envNames)) {
		return "", nil
	}
	return td.envNames[i], ptrOf(td.envValues[i])
}

// ClockClassProperties implements backend.API.
func (l *Library) ClockClassProperties(cc backend.Ptr) backend.ClockClassProperties {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("ClockClassProperties")
	c := data[*clockClass](l, "ClockClassProperties", cc)
	if c == nil {
		return backend.ClockClassProperties{}
	}
	fx := c.fixture
	return backend.ClockClassProperties{
		Frequency:     fx.Frequency,
		OffsetSeconds: fx.OffsetSeconds,
		OffsetCycles:  fx.OffsetCycles,
		Precision:     fx.Precision,
		UnixEpoch:     fx.UnixEpoch,
		Name:          fx.Name,
		HasName:       fx.Name != "",
		Description:   fx.Description,
		HasDesc:       fx.Description != "",
		UUID:          append([]byte(nil), fx.UUID...),
	}
}

// ClockSnapshotValue implements backend.API.
func (l *Library) ClockSnapshotValue(cs backend.Ptr) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("ClockSnapshotValue")
	if s := data[*snapshot](l, "ClockSnapshotValue", cs); s != nil {
		return s.cycles
	}
	return 0
}

// ClockSnapshotNsFromOrigin implements backend.API.
func (l *Library) ClockSnapshotNsFromOrigin(cs backend.Ptr) (int64, backend.Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if st, fail := l.enter("ClockSnapshotNsFromOrigin"); fail {
		return 0, st
	}
	s := data[*snapshot](l, "ClockSnapshotNsFromOrigin", cs)
	if s == nil {
		return 0, backend.StatusError
	}
	ns, ok := NsFromOrigin(s.clock, s.cycles)
	if !ok {
		return 0, backend.StatusOverflowError
	}
	return ns, backend.StatusOK
}

// NsFromOrigin converts a clock value to nanoseconds from the clock's
// origin the way libbabeltrace2 does, reporting false on overflow.
func NsFromOrigin(c Clock, cycles uint64) (int64, bool) {
	if c.Frequency == 0 {
		return 0, false
	}
	if c.OffsetSeconds > math.MaxInt64/nsPerSecond || c.OffsetSeconds < math.MinInt64/nsPerSecond {
		return 0, false
	}
	base := c.OffsetSeconds * nsPerSecond
	offNs, ok := cyclesToNs(c.Frequency, c.OffsetCycles)
	if !ok {
		return 0, false
	}
	valNs, ok := cyclesToNs(c.Frequency, cycles)
	if !ok {
		return 0, false
	}
	sum, carry := bits.Add64(offNs, valNs, 0)
	if carry != 0 || sum > math.MaxInt64 {
		return 0, false
	}
	ns := int64(sum)
	if base > 0 && ns > math.MaxInt64-base {
		return 0, false
	}
	return base + ns, true
}

func cyclesToNs(freq, cycles uint64) (uint64, bool) {
	if freq == nsPerSecond {
		return cycles, true
	}
	hi, lo := bits.Mul64(cycles, nsPerSecond)
	if hi >= freq {
		return 0, false
	}
	q, _ := bits.Div64(hi, lo, freq)
	return q, true
}

func (l *Library) fieldOf(op string, f backend.Ptr) (*object, *field) {
	o := l.lookup(op, f)
	if o == nil {
		return nil, nil
	}
	fd, ok := o.data.(*field)
	if !ok {
		l.violate("%s: not a field", op)
		return nil, nil
	}
	return o, fd
}

func (l *Library) fieldValue(op string, f backend.Ptr) *Field {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter(op)
	if _, fd := l.fieldOf(op, f); fd != nil {
		return fd.fixture
	}
	return &Field{}
}

// FieldClassType implements backend.API.
func (l *Library) FieldClassType(f backend.Ptr) backend.FieldClassType {
	return l.fieldValue("FieldClassType", f).Type
}

// FieldBoolValue implements backend.API.
func (l *Library) FieldBoolValue(f backend.Ptr) bool {
	return l.fieldValue("FieldBoolValue", f).Bool
}

// FieldUnsignedIntegerValue implements backend.API.
func (l *Library) FieldUnsignedIntegerValue(f backend.Ptr) uint64 {
	return l.fieldValue("FieldUnsignedIntegerValue", f).Uint
}

// FieldSignedIntegerValue implements backend.API.
func (l *Library) FieldSignedIntegerValue(f backend.Ptr) int64 {
	return l.fieldValue("FieldSignedIntegerValue", f).Int
}

// FieldRealSingleValue implements backend.API.
func (l *Library) FieldRealSingleValue(f backend.Ptr) float32 {
	return l.fieldValue("FieldRealSingleValue", f).Float32
}

// FieldRealDoubleValue implements backend.API.
func (l *Library) FieldRealDoubleValue(f backend.Ptr) float64 {
	return l.fieldValue("FieldRealDoubleValue", f).Float64
}

// FieldStringValue implements backend.API.
func (l *Library) FieldStringValue(f backend.Ptr) string {
	return l.fieldValue("FieldStringValue", f).String
}

// FieldUnsignedEnumerationLabels implements backend.API.
func (l *Library) FieldUnsignedEnumerationLabels(f backend.Ptr) ([]string, backend.Status) {
	fx := l.fieldValue("FieldUnsignedEnumerationLabels", f)
	return append([]string(nil), fx.Labels...), backend.StatusOK
}

// FieldSignedEnumerationLabels implements backend.API.
func (l *Library) FieldSignedEnumerationLabels(f backend.Ptr) ([]string, backend.Status) {
	fx := l.fieldValue("FieldSignedEnumerationLabels", f)
	return append([]string(nil), fx.Labels...), backend.StatusOK
}

// FieldStructureMemberCount implements backend.API.
func (l *Library) FieldStructureMemberCount(f backend.Ptr) uint64 {
	return uint64(len(l.fieldValue("FieldStructureMemberCount", f).Members))
}

// FieldStructureMemberName implements backend.API.
func (l *Library) FieldStructureMemberName(f backend.Ptr, i uint64) string {
	fx := l.fieldValue("FieldStructureMemberName", f)
	if i >= uint64(len(fx.Members)) {
		return ""
	}
	return fx.Members[i].Name
}

// FieldStructureBorrowMemberByIndex implements backend.API.
func (l *Library) FieldStructureBorrowMemberByIndex(f backend.Ptr, i uint64) backend.Ptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("FieldStructureBorrowMemberByIndex")
	o, fd := l.fieldOf("FieldStructureBorrowMemberByIndex", f)
	if fd == nil || i >= uint64(len(fd.fixture.Members)) {
		return nil
	}
	if fd.members == nil {
		fd.members = make([]*object, len(fd.fixture.Members))
	}
	if fd.members[i] == nil {
		fd.members[i] = child(o, l.alloc(kindInternal, &field{fixture: &fd.fixture.Members[i]}))
	}
	return ptrOf(fd.members[i])
}

// FieldArrayLength implements backend.API.
func (l *Library) FieldArrayLength(f backend.Ptr) uint64 {
	return uint64(len(l.fieldValue("FieldArrayLength", f).Elements))
}

// FieldArrayBorrowElementByIndex implements backend.API.
func (l *Library) FieldArrayBorrowElementByIndex(f backend.Ptr, i uint64) backend.Ptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("FieldArrayBorrowElementByIndex")
	o, fd := l.fieldOf("FieldArrayBorrowElementByIndex", f)
	if fd == nil || i >= uint64(len(fd.fixture.Elements)) {
		return nil
	}
	if fd.elems == nil {
		fd.elems = make([]*object, len(fd.fixture.Elements))
	}
	if fd.elems[i] == nil {
		fd.elems[i] = child(o, l.alloc(kindInternal, &field{fixture: &fd.fixture.Elements[i]}))
	}
	return ptrOf(fd.elems[i])
}
