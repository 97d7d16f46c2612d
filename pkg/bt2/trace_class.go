package bt2

import (
	"fmt"
	"runtime"
	"slices"

	"github.com/tracewire/bt2-go/pkg/bt2/internal/backend"
	"github.com/tracewire/bt2-go/pkg/bt2/internal/own"
)

// PayloadMember is one member of the payload of an event class created with
// StreamClass.NewEventClass.
type PayloadMember struct {
	Name string
	Type FieldType
}

// payloadTypes are the member types an event payload can be built from.
var payloadTypes = []FieldType{
	FieldBool,
	FieldUnsignedInteger,
	FieldSignedInteger,
	FieldSingleReal,
	FieldDoubleReal,
	FieldString,
}

func checkMembers(op string, members []PayloadMember) error {
	seen := make(map[string]bool, len(members))
	for _, m := range members {
		if err := CheckName(op, "payload member name", m.Name); err != nil {
			return err
		}
		if seen[m.Name] {
			return invalidArg(op, fmt.Sprintf("duplicate payload member %q", m.Name))
		}
		seen[m.Name] = true
		if !slices.Contains(payloadTypes, m.Type) {
			return unsupported(op, fmt.Sprintf("payload member %q has type %s", m.Name, m.Type))
		}
	}
	return nil
}

// NewTraceClass creates an owned trace class for the source's traces.
func (s *SelfSource) NewTraceClass() (*TraceClass, error) {
	const op = "trace_class.create"
	api, p, err := use(op, s.handle())
	if err != nil {
		return nil, err
	}
	tc := api.TraceClassCreate(p)
	if tc == nil {
		return nil, createFailed(op)
	}
	out := &TraceClass{ref: own.Take(api, backend.KindTraceClass, tc)}
	runtime.SetFinalizer(out, (*TraceClass).Close)
	return out, nil
}

// NewClockClass creates an owned clock class. Frequency must be positive
// and OffsetCycles lower than it.
func (s *SelfSource) NewClockClass(props ClockClassProperties) (*ClockClass, error) {
	const op = "clock_class.create"
	api, p, err := use(op, s.handle())
	if err != nil {
		return nil, err
	}
	if props.Frequency == 0 {
		return nil, invalidArg(op, "clock frequency is zero")
	}
	if props.OffsetCycles >= props.Frequency {
		return nil, invalidArg(op, "clock offset cycles must be lower than the frequency")
	}
	if err := checkString(op, "clock name", props.Name); err != nil {
		return nil, err
	}
	if err := checkString(op, "clock description", props.Description); err != nil {
		return nil, err
	}
	bp := backend.ClockClassProperties{
		Frequency:     props.Frequency,
		OffsetSeconds: props.OffsetSeconds,
		OffsetCycles:  props.OffsetCycles,
		Precision:     props.Precision,
		UnixEpoch:     props.UnixEpochOrigin,
		Name:          props.Name,
		HasName:       props.Name != "",
		Description:   props.Description,
		HasDesc:       props.Description != "",
	}
	if props.UUID.Valid {
		bp.UUID = props.UUID.UUID[:]
	}
	cc := api.ClockClassCreate(p, bp)
	if cc == nil {
		return nil, createFailed(op)
	}
	out := &ClockClass{ref: own.Take(api, backend.KindClockClass, cc)}
	runtime.SetFinalizer(out, (*ClockClass).Close)
	return out, nil
}

// TraceClass is an owned trace class created by a Go source.
type TraceClass struct {
	ref own.Ref
}

func (tc *TraceClass) handle() *own.Ref {
	if tc == nil {
		return nil
	}
	return &tc.ref
}

// Close releases the trace class. Stream classes and traces created from it
// keep it alive in the library.
func (tc *TraceClass) Close() error {
	if tc == nil {
		return nil
	}
	if tc.ref.Release() {
		runtime.SetFinalizer(tc, nil)
	}
	return nil
}

// NewStreamClass creates an owned stream class. clock, when not nil,
// becomes its default clock class and event messages of its streams carry
// a clock value.
func (tc *TraceClass) NewStreamClass(clock *ClockClass) (*StreamClass, error) {
	const op = "stream_class.create"
	api, p, err := use(op, tc.handle())
	if err != nil {
		return nil, err
	}
	var cp backend.Ptr
	if clock != nil {
		if cp, err = arg(op, "clock class", clock.handle()); err != nil {
			return nil, err
		}
	}
	defer runtime.KeepAlive(tc)
	defer runtime.KeepAlive(clock)
	sc := api.StreamClassCreate(p, cp)
	if sc == nil {
		return nil, createFailed(op)
	}
	out := &StreamClass{ref: own.Take(api, backend.KindStreamClass, sc), clocked: clock != nil}
	runtime.SetFinalizer(out, (*StreamClass).Close)
	return out, nil
}

// NewTrace creates an owned trace. An empty name leaves the trace unnamed.
func (tc *TraceClass) NewTrace(name string) (*Trace, error) {
	const op = "trace.create"
	api, p, err := use(op, tc.handle())
	if err != nil {
		return nil, err
	}
	if err := checkString(op, "trace name", name); err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(tc)
	tp := api.TraceCreate(p)
	if tp == nil {
		return nil, createFailed(op)
	}
	ref := own.Take(api, backend.KindTrace, tp)
	if name != "" {
		if st := api.TraceSetName(tp, name); st != backend.StatusOK {
			ref.Release()
			return nil, fail(api, op, st)
		}
	}
	out := &Trace{ref: ref}
	runtime.SetFinalizer(out, (*Trace).Close)
	return out, nil
}

// StreamClass is an owned stream class.
type StreamClass struct {
	ref     own.Ref
	clocked bool
}

func (sc *StreamClass) handle() *own.Ref {
	if sc == nil {
		return nil
	}
	return &sc.ref
}

// Close releases the stream class.
func (sc *StreamClass) Close() error {
	if sc == nil {
		return nil
	}
	if sc.ref.Release() {
		runtime.SetFinalizer(sc, nil)
	}
	return nil
}

// NewEventClass creates an owned event class named name whose payload is a
// structure of members, in order. Without members the events have no
// payload.
func (sc *StreamClass) NewEventClass(name string, members ...PayloadMember) (*EventClass, error) {
	const op = "event_class.create"
	api, p, err := use(op, sc.handle())
	if err != nil {
		return nil, err
	}
	if err := CheckName(op, "event class name", name); err != nil {
		return nil, err
	}
	if err := checkMembers(op, members); err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(sc)

	var payload own.Ref
	defer payload.Release()
	if len(members) > 0 {
		tc := api.StreamClassBorrowTraceClass(p)
		if tc == nil {
			return nil, borrowFailed(op)
		}
		st := api.FieldClassCreate(tc, backend.FieldClassStructure)
		if st == nil {
			return nil, createFailed(op)
		}
		payload = own.Take(api, backend.KindFieldClass, st)
		for _, m := range members {
			mp := api.FieldClassCreate(tc, backend.FieldClassType(m.Type))
			if mp == nil {
				return nil, createFailed(op)
			}
			member := own.Take(api, backend.KindFieldClass, mp)
			status := api.FieldClassStructureAppendMember(st, m.Name, mp)
			member.Release()
			if status != backend.StatusOK {
				return nil, fail(api, op, status)
			}
		}
	}

	ec := api.EventClassCreate(p, name, payload.Ptr())
	if ec == nil {
		return nil, createFailed(op)
	}
	out := &EventClass{
		ref:         own.Take(api, backend.KindEventClass, ec),
		name:        name,
		members:     slices.Clone(members),
		streamClass: p,
		clocked:     sc.clocked,
	}
	runtime.SetFinalizer(out, (*EventClass).Close)
	return out, nil
}

// NewStream creates an owned stream of this class in trace t.
func (sc *StreamClass) NewStream(t *Trace) (*Stream, error) {
	const op = "stream.create"
	api, p, err := use(op, sc.handle())
	if err != nil {
		return nil, err
	}
	tp, err := arg(op, "trace", t.handle())
	if err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(sc)
	defer runtime.KeepAlive(t)
	s := api.StreamCreate(p, tp)
	if s == nil {
		return nil, createFailed(op)
	}
	out := &Stream{ref: own.Take(api, backend.KindStream, s)}
	runtime.SetFinalizer(out, (*Stream).Close)
	return out, nil
}

// EventClass is an owned event class created with StreamClass.NewEventClass.
type EventClass struct {
	ref         own.Ref
	name        string
	members     []PayloadMember
	streamClass backend.Ptr
	clocked     bool
}

func (ec *EventClass) handle() *own.Ref {
	if ec == nil {
		return nil
	}
	return &ec.ref
}

// Close releases the event class.
func (ec *EventClass) Close() error {
	if ec == nil {
		return nil
	}
	if ec.ref.Release() {
		runtime.SetFinalizer(ec, nil)
	}
	return nil
}

// Name returns the name the class was created with.
func (ec *EventClass) Name() string {
	if ec == nil {
		return ""
	}
	return ec.name
}

// Members returns a copy of the payload members.
func (ec *EventClass) Members() []PayloadMember {
	if ec == nil {
		return nil
	}
	return slices.Clone(ec.members)
}
