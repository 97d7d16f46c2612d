package bt2

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/tracewire/bt2-go/pkg/bt2/internal/backend"
	"github.com/tracewire/bt2-go/pkg/bt2/internal/own"
)

// EventLogLevel is the log level of an event class.
type EventLogLevel int

const (
	EventLogLevelEmergency EventLogLevel = iota
	EventLogLevelAlert
	EventLogLevelCritical
	EventLogLevelError
	EventLogLevelWarning
	EventLogLevelNotice
	EventLogLevelInfo
	EventLogLevelDebugSystem
	EventLogLevelDebugProgram
	EventLogLevelDebugProcess
	EventLogLevelDebugModule
	EventLogLevelDebugUnit
	EventLogLevelDebugFunction
	EventLogLevelDebugLine
	EventLogLevelDebug
)

var eventLogLevelNames = [...]string{
	"Emergency", "Alert", "Critical", "Error", "Warning", "Notice", "Info",
	"DebugSystem", "DebugProgram", "DebugProcess", "DebugModule", "DebugUnit",
	"DebugFunction", "DebugLine", "Debug",
}

func (l EventLogLevel) String() string {
	if l >= 0 && int(l) < len(eventLogLevelNames) {
		return eventLogLevelNames[l]
	}
	return fmt.Sprintf("EventLogLevel(%d)", int(l))
}

// EventClassProperties describes the class of an event. Name is empty when
// the class has none; LogLevel is nil when the class has none or when the
// library reports a level outside the known range.
type EventClassProperties struct {
	ID       uint64
	Name     string
	LogLevel *EventLogLevel
}

// Event is an event borrowed from its message.
type Event struct {
	ref own.Ref
	msg *Message
}

func (e *Event) handle() *own.Ref {
	if e == nil {
		return nil
	}
	return &e.ref
}

// Stream borrows the event's stream.
func (e *Event) Stream() (*Stream, error) {
	const op = "event.borrow_stream"
	api, p, err := use(op, e.handle())
	if err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(e)
	s := api.EventBorrowStream(p)
	if s == nil {
		return nil, borrowFailed(op)
	}
	return newStream(api, s, e.handle()), nil
}

// StreamID returns the ID of the event's stream.
func (e *Event) StreamID() (uint64, error) {
	s, err := e.Stream()
	if err != nil {
		return 0, err
	}
	return s.ID()
}

// ClassProperties reads the properties of the event's class.
func (e *Event) ClassProperties() (EventClassProperties, error) {
	const op = "event.borrow_class"
	var props EventClassProperties
	api, p, err := use(op, e.handle())
	if err != nil {
		return props, err
	}
	defer runtime.KeepAlive(e)
	c := api.EventBorrowClass(p)
	if c == nil {
		return props, borrowFailed(op)
	}
	props.ID = api.EventClassID(c)
	props.Name, _ = api.EventClassName(c)
	if lvl, ok := api.EventClassLogLevel(c); ok && lvl >= 0 && int(lvl) < len(eventLogLevelNames) {
		l := EventLogLevel(lvl)
		props.LogLevel = &l
	}
	return props, nil
}

func (e *Event) field(op string, borrow func(backend.API, backend.Ptr) backend.Ptr) (*Field, error) {
	api, p, err := use(op, e.handle())
	if err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(e)
	f := borrow(api, p)
	if f == nil {
		return nil, borrowFailed(op)
	}
	return newField(api, f, e.handle()), nil
}

// Payload borrows the payload field. It fails with KindNotFound when the
// event class has no payload.
func (e *Event) Payload() (*Field, error) {
	return e.field("event.borrow_payload_field", backend.API.EventBorrowPayload)
}

// SpecificContext borrows the specific context field.
func (e *Event) SpecificContext() (*Field, error) {
	return e.field("event.borrow_specific_context_field", backend.API.EventBorrowSpecificContext)
}

// CommonContext borrows the common context field.
func (e *Event) CommonContext() (*Field, error) {
	return e.field("event.borrow_common_context_field", backend.API.EventBorrowCommonContext)
}

// ClockSnapshot borrows the default clock snapshot of the event's message.
func (e *Event) ClockSnapshot() (*ClockSnapshot, error) {
	if _, _, err := use("event.clock_snapshot", e.handle()); err != nil {
		return nil, err
	}
	return e.msg.DefaultClockSnapshot()
}

// ToOwned copies the event into Go memory.
func (e *Event) ToOwned() (OwnedEvent, error) {
	var out OwnedEvent
	var err error
	if out.StreamID, err = e.StreamID(); err != nil {
		return out, err
	}
	if out.Class, err = e.ClassProperties(); err != nil {
		return out, err
	}

	cs, err := e.ClockSnapshot()
	switch {
	case err == nil:
		ns, ok, err := cs.NsFromOrigin()
		if err != nil {
			return out, err
		}
		if ok {
			out.ClockSnapshot = &ns
		}
	case !errors.Is(err, ErrNotFound):
		return out, err
	}

	parts := []struct {
		dst    **OwnedField
		borrow func() (*Field, error)
	}{
		{&out.Payload, e.Payload},
		{&out.SpecificContext, e.SpecificContext},
		{&out.CommonContext, e.CommonContext},
	}
	for _, part := range parts {
		f, err := part.borrow()
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return out, err
		}
		if *part.dst, err = f.ToOwned(); err != nil {
			return out, err
		}
	}
	return out, nil
}

// OwnedEvent is an event copied into Go memory. ClockSnapshot holds the
// nanoseconds from the clock's origin; it is nil when the stream has no
// default clock or when the conversion overflows.
type OwnedEvent struct {
	StreamID        uint64
	ClockSnapshot   *int64
	Class           EventClassProperties
	Payload         *OwnedField
	SpecificContext *OwnedField
	CommonContext   *OwnedField
}

// String renders the event the way babeltrace's pretty printer summarizes
// it, one property per line.
func (e OwnedEvent) String() string {
	var b strings.Builder
	ns := "??"
	if e.ClockSnapshot != nil {
		ns = fmt.Sprint(*e.ClockSnapshot)
	}
	if e.Class.Name != "" {
		fmt.Fprintf(&b, "[%s] %s (ID=%d)", ns, e.Class.Name, e.Class.ID)
	} else {
		fmt.Fprintf(&b, "[%s] ID=%d", ns, e.Class.ID)
	}
	fmt.Fprintf(&b, "\n  stream ID: %d", e.StreamID)
	if e.Class.LogLevel != nil {
		fmt.Fprintf(&b, "\n  log_level: %s", e.Class.LogLevel)
	}
	if e.Payload != nil {
		fmt.Fprintf(&b, "\n  payload: { %s }", e.Payload)
	}
	if e.SpecificContext != nil {
		fmt.Fprintf(&b, "\n  specific context: { %s }", e.SpecificContext)
	}
	if e.CommonContext != nil {
		fmt.Fprintf(&b, "\n  common context: { %s }", e.CommonContext)
	}
	return b.String()
}
