package fakebt

import (
	"github.com/tracewire/bt2-go/pkg/bt2/internal/backend"
)

type streamClass struct {
	traceClass *object
	clock      *object
	nextEvent  uint64
}

type fieldClass struct {
	typ     backend.FieldClassType
	names   []string
	members []*object
}

// selfIter is the message iterator the fs sink drives on a Go source
// output port.
type selfIter struct {
	component *object
	port      *object
	ended     bool
}

var memberTypes = map[backend.FieldClassType]bool{
	backend.FieldClassBool:            true,
	backend.FieldClassUnsignedInteger: true,
	backend.FieldClassSignedInteger:   true,
	backend.FieldClassSingleReal:      true,
	backend.FieldClassDoubleReal:      true,
	backend.FieldClassString:          true,
	backend.FieldClassStructure:       true,
}

// goSource resolves a self component handle of a Go source.
func (l *Library) goSource(op string, self backend.Ptr) *object {
	c := l.lookup(op, self)
	if c == nil {
		return nil
	}
	if comp, ok := c.data.(*component); !ok || comp.cls.impl != implGoSrc {
		l.violate("%s: not a Go source component", op)
		return nil
	}
	return c
}

// TraceClassCreate implements backend.API.
func (l *Library) TraceClassCreate(self backend.Ptr) backend.Ptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, fail := l.enter("TraceClassCreate"); fail {
		return nil
	}
	if l.goSource("TraceClassCreate", self) == nil {
		return nil
	}
	return ptrOf(l.give(backend.KindTraceClass, &traceClass{}))
}

// ClockClassCreate implements backend.API.
func (l *Library) ClockClassCreate(self backend.Ptr, props backend.ClockClassProperties) backend.Ptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, fail := l.enter("ClockClassCreate"); fail {
		return nil
	}
	if l.goSource("ClockClassCreate", self) == nil {
		return nil
	}
	if props.Frequency == 0 || props.OffsetCycles >= props.Frequency {
		l.violate("ClockClassCreate: invalid frequency or offset")
		return nil
	}
	c := Clock{
		Frequency:     props.Frequency,
		OffsetSeconds: props.OffsetSeconds,
		OffsetCycles:  props.OffsetCycles,
		Precision:     props.Precision,
		UnixEpoch:     props.UnixEpoch,
		UUID:          append([]byte(nil), props.UUID...),
	}
	if props.HasName {
		c.Name = props.Name
	}
	if props.HasDesc {
		c.Description = props.Description
	}
	return ptrOf(l.give(backend.KindClockClass, &clockClass{fixture: c}))
}

// StreamClassCreate implements backend.API.
func (l *Library) StreamClassCreate(tc, clock backend.Ptr) backend.Ptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, fail := l.enter("StreamClassCreate"); fail {
		return nil
	}
	tco := l.lookup("StreamClassCreate", tc)
	if tco == nil {
		return nil
	}
	if _, ok := tco.data.(*traceClass); !ok {
		l.violate("StreamClassCreate: not a trace class")
		return nil
	}
	var cco *object
	if clock != nil {
		if cco = l.lookup("StreamClassCreate", clock); cco == nil {
			return nil
		}
		if _, ok := cco.data.(*clockClass); !ok {
			l.violate("StreamClassCreate: not a clock class")
			return nil
		}
	}
	o := l.give(backend.KindStreamClass, &streamClass{traceClass: tco, clock: cco})
	l.keep(o, tco, cco)
	return ptrOf(o)
}

// StreamClassBorrowTraceClass implements backend.API.
func (l *Library) StreamClassBorrowTraceClass(sc backend.Ptr) backend.Ptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("StreamClassBorrowTraceClass")
	if s := data[*streamClass](l, "StreamClassBorrowTraceClass", sc); s != nil {
		return ptrOf(s.traceClass)
	}
	return nil
}

// FieldClassCreate implements backend.API. Only the types an event payload
// can be built from are supported.
func (l *Library) FieldClassCreate(tc backend.Ptr, t backend.FieldClassType) backend.Ptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, fail := l.enter("FieldClassCreate"); fail {
		return nil
	}
	if data[*traceClass](l, "FieldClassCreate", tc) == nil {
		return nil
	}
	if !memberTypes[t] {
		l.violate("FieldClassCreate: unsupported field class type %#x", uint64(t))
		return nil
	}
	return ptrOf(l.give(backend.KindFieldClass, &fieldClass{typ: t}))
}

// FieldClassStructureAppendMember implements backend.API. The structure
// takes a reference on member.
func (l *Library) FieldClassStructureAppendMember(st backend.Ptr, name string, member backend.Ptr) backend.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, fail := l.enter("FieldClassStructureAppendMember"); fail {
		return s
	}
	so := l.lookup("FieldClassStructureAppendMember", st)
	mo := l.lookup("FieldClassStructureAppendMember", member)
	if so == nil || mo == nil {
		return backend.StatusError
	}
	sfc, ok1 := so.data.(*fieldClass)
	mfc, ok2 := mo.data.(*fieldClass)
	if !ok1 || !ok2 || sfc.typ != backend.FieldClassStructure || mfc.typ == backend.FieldClassStructure {
		l.violate("FieldClassStructureAppendMember: wrong field class types")
		return backend.StatusError
	}
	for _, n := range sfc.names {
		if n == name {
			return backend.StatusError
		}
	}
	sfc.names = append(sfc.names, name)
	sfc.members = append(sfc.members, mo)
	l.keep(so, mo)
	return backend.StatusOK
}

// EventClassCreate implements backend.API. payload may be nil.
func (l *Library) EventClassCreate(sc backend.Ptr, name string, payload backend.Ptr) backend.Ptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, fail := l.enter("EventClassCreate"); fail {
		return nil
	}
	sco := l.lookup("EventClassCreate", sc)
	if sco == nil {
		return nil
	}
	s, ok := sco.data.(*streamClass)
	if !ok {
		l.violate("EventClassCreate: not a stream class")
		return nil
	}
	var po *object
	if payload != nil {
		if po = l.lookup("EventClassCreate", payload); po == nil {
			return nil
		}
		if fc, ok := po.data.(*fieldClass); !ok || fc.typ != backend.FieldClassStructure {
			l.violate("EventClassCreate: payload is not a structure field class")
			return nil
		}
	}
	ec := &eventClass{id: s.nextEvent, name: name, streamClass: sco, payload: po}
	s.nextEvent++
	o := l.give(backend.KindEventClass, ec)
	l.keep(o, sco, po)
	return ptrOf(o)
}

// TraceSetName implements backend.API.
func (l *Library) TraceSetName(t backend.Ptr, name string) backend.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	if st, fail := l.enter("TraceSetName"); fail {
		return st
	}
	td := data[*trace](l, "TraceSetName", t)
	if td == nil {
		return backend.StatusError
	}
	td.name, td.hasName = name, true
	return backend.StatusOK
}

// StreamCreate implements backend.API. Streams are numbered in creation
// order within their trace.
func (l *Library) StreamCreate(sc, t backend.Ptr) backend.Ptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, fail := l.enter("StreamCreate"); fail {
		return nil
	}
	sco := l.lookup("StreamCreate", sc)
	to := l.lookup("StreamCreate", t)
	if sco == nil || to == nil {
		return nil
	}
	s, ok1 := sco.data.(*streamClass)
	td, ok2 := to.data.(*trace)
	if !ok1 || !ok2 {
		l.violate("StreamCreate: wrong handle types")
		return nil
	}
	if td.class != s.traceClass {
		l.violate("StreamCreate: trace and stream class belong to different trace classes")
		return nil
	}
	sd := &stream{fixture: Stream{ID: td.nextStream}, trace: to, clock: s.clock, class: sco}
	td.nextStream++
	if s.clock != nil {
		c := s.clock.data.(*clockClass).fixture
		sd.fixture.Clock = &c
	}
	o := l.give(backend.KindStream, sd)
	l.keep(o, to, sco)
	return ptrOf(o)
}

// StreamBorrowClass implements backend.API. Streams read from a trace
// fixture have no class handle.
func (l *Library) StreamBorrowClass(s backend.Ptr) backend.Ptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter("StreamBorrowClass")
	if sd := data[*stream](l, "StreamBorrowClass", s); sd != nil {
		return ptrOf(sd.class)
	}
	return nil
}

// emitting resolves the iterator and stream a Go source creates a message
// for.
func (l *Library) emitting(op string, it, s backend.Ptr) (*object, *stream) {
	if data[*selfIter](l, op, it) == nil {
		return nil, nil
	}
	so := l.lookup(op, s)
	if so == nil {
		return nil, nil
	}
	sd, ok := so.data.(*stream)
	if !ok || sd.class == nil {
		l.violate("%s: not a stream created by a Go source", op)
		return nil, nil
	}
	return so, sd
}

func (l *Library) streamMessage(op string, it, s backend.Ptr, typ backend.MessageType) backend.Ptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, fail := l.enter(op); fail {
		return nil
	}
	so, _ := l.emitting(op, it, s)
	if so == nil {
		return nil
	}
	m := l.give(backend.KindMessage, &message{typ: typ, stream: so})
	l.keep(m, so)
	return ptrOf(m)
}

// MessageStreamBeginningCreate implements backend.API.
func (l *Library) MessageStreamBeginningCreate(it, s backend.Ptr) backend.Ptr {
	return l.streamMessage("MessageStreamBeginningCreate", it, s, backend.MessageStreamBeginning)
}

// MessageStreamEndCreate implements backend.API.
func (l *Library) MessageStreamEndCreate(it, s backend.Ptr) backend.Ptr {
	return l.streamMessage("MessageStreamEndCreate", it, s, backend.MessageStreamEnd)
}

// MessageEventCreate implements backend.API. The payload starts with zero
// values; withClock must match whether the stream class has a clock.
func (l *Library) MessageEventCreate(it, ec, s backend.Ptr, cycles uint64, withClock bool) backend.Ptr {
	const op = "MessageEventCreate"
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, fail := l.enter(op); fail {
		return nil
	}
	so, sd := l.emitting(op, it, s)
	if so == nil {
		return nil
	}
	eco := l.lookup(op, ec)
	if eco == nil {
		return nil
	}
	cls, ok := eco.data.(*eventClass)
	if !ok || cls.streamClass != sd.class {
		l.violate("%s: event class does not belong to the stream's class", op)
		return nil
	}
	if withClock != (sd.clock != nil) {
		l.violate("%s: clock value given for a stream class without clock, or missing", op)
		return nil
	}

	ev := &Event{Stream: sd.fixture.ID, ClassID: cls.id, Name: cls.name}
	if cls.payload != nil {
		fc := cls.payload.data.(*fieldClass)
		ev.Payload = Struct()
		for i, mo := range fc.members {
			ev.Payload.Members = append(ev.Payload.Members, Field{Type: mo.data.(*fieldClass).typ, Name: fc.names[i]})
		}
	}
	msg := &message{typ: backend.MessageEvent, stream: so}
	m := l.give(backend.KindMessage, msg)
	l.keep(m, so, eco)
	msg.event = child(m, l.alloc(kindInternal, &event{fixture: ev, stream: so, class: eco}))
	if withClock {
		ev.Cycles = cycles
		msg.snapshot = child(m, l.alloc(kindInternal, &snapshot{cycles: cycles, clock: sd.clock.data.(*clockClass).fixture}))
	}
	return ptrOf(m)
}

// MessageEventBorrowPayload implements backend.API.
func (l *Library) MessageEventBorrowPayload(m backend.Ptr) backend.Ptr {
	const op = "MessageEventBorrowPayload"
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter(op)
	msg := data[*message](l, op, m)
	if msg == nil || msg.event == nil {
		return nil
	}
	return l.borrowEventField(op, msg.event, func(ev *Event) *Field { return ev.Payload })
}

// setField records a setter call on f and resolves the field, checking its
// type.
func (l *Library) setField(op string, f backend.Ptr, want backend.FieldClassType) *Field {
	l.enter(op)
	return l.settable(op, f, want)
}

func (l *Library) settable(op string, f backend.Ptr, want backend.FieldClassType) *Field {
	_, fd := l.fieldOf(op, f)
	if fd == nil {
		return nil
	}
	if fd.fixture.Type == want {
		return fd.fixture
	}
	l.violate("%s: field has type %#x", op, uint64(fd.fixture.Type))
	return nil
}

// FieldBoolSet implements backend.API.
func (l *Library) FieldBoolSet(f backend.Ptr, v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if fx := l.setField("FieldBoolSet", f, backend.FieldClassBool); fx != nil {
		fx.Bool = v
	}
}

// FieldUnsignedIntegerSet implements backend.API.
func (l *Library) FieldUnsignedIntegerSet(f backend.Ptr, v uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if fx := l.setField("FieldUnsignedIntegerSet", f, backend.FieldClassUnsignedInteger); fx != nil {
		fx.Uint = v
	}
}

// FieldSignedIntegerSet implements backend.API.
func (l *Library) FieldSignedIntegerSet(f backend.Ptr, v int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if fx := l.setField("FieldSignedIntegerSet", f, backend.FieldClassSignedInteger); fx != nil {
		fx.Int = v
	}
}

// FieldRealSingleSet implements backend.API.
func (l *Library) FieldRealSingleSet(f backend.Ptr, v float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if fx := l.setField("FieldRealSingleSet", f, backend.FieldClassSingleReal); fx != nil {
		fx.Float32 = v
	}
}

// FieldRealDoubleSet implements backend.API.
func (l *Library) FieldRealDoubleSet(f backend.Ptr, v float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if fx := l.setField("FieldRealDoubleSet", f, backend.FieldClassDoubleReal); fx != nil {
		fx.Float64 = v
	}
}

// FieldStringSet implements backend.API.
func (l *Library) FieldStringSet(f backend.Ptr, v string) backend.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	if st, fail := l.enter("FieldStringSet"); fail {
		return st
	}
	fx := l.settable("FieldStringSet", f, backend.FieldClassString)
	if fx == nil {
		return backend.StatusError
	}
	fx.String = v
	return backend.StatusOK
}
