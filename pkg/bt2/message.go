package bt2

import (
	"runtime"

	"github.com/tracewire/bt2-go/pkg/bt2/internal/backend"
	"github.com/tracewire/bt2-go/pkg/bt2/internal/own"
)

// MessageType is the type of a message.
type MessageType uint64

const (
	MessageStreamBeginning    = MessageType(backend.MessageStreamBeginning)
	MessageStreamEnd          = MessageType(backend.MessageStreamEnd)
	MessageEvent              = MessageType(backend.MessageEvent)
	MessagePacketBeginning    = MessageType(backend.MessagePacketBeginning)
	MessagePacketEnd          = MessageType(backend.MessagePacketEnd)
	MessageDiscardedEvents    = MessageType(backend.MessageDiscardedEvents)
	MessageDiscardedPackets   = MessageType(backend.MessageDiscardedPackets)
	MessageIteratorInactivity = MessageType(backend.MessageIteratorInactivity)
)

func (t MessageType) String() string {
	switch t {
	case MessageStreamBeginning:
		return "stream-beginning"
	case MessageStreamEnd:
		return "stream-end"
	case MessageEvent:
		return "event"
	case MessagePacketBeginning:
		return "packet-beginning"
	case MessagePacketEnd:
		return "packet-end"
	case MessageDiscardedEvents:
		return "discarded-events"
	case MessageDiscardedPackets:
		return "discarded-packets"
	case MessageIteratorInactivity:
		return "message-iterator-inactivity"
	default:
		return "unknown"
	}
}

// Message is an owned message. Streams, events and clock snapshots
// borrowed from it stay valid while it is open.
type Message struct {
	ref own.Ref
}

func newMessage(api backend.API, p backend.Ptr) *Message {
	m := &Message{ref: own.Take(api, backend.KindMessage, p)}
	runtime.SetFinalizer(m, (*Message).Close)
	return m
}

func (m *Message) handle() *own.Ref {
	if m == nil {
		return nil
	}
	return &m.ref
}

// Close releases the message.
func (m *Message) Close() error {
	if m == nil {
		return nil
	}
	if m.ref.Release() {
		runtime.SetFinalizer(m, nil)
	}
	return nil
}

// Type returns the message's type.
func (m *Message) Type() (MessageType, error) {
	api, p, err := use("message.type", m.handle())
	if err != nil {
		return 0, err
	}
	defer runtime.KeepAlive(m)
	return MessageType(api.MessageType(p)), nil
}

// Stream borrows the stream of a stream beginning or stream end message.
func (m *Message) Stream() (*Stream, error) {
	const op = "message.borrow_stream"
	api, p, err := use(op, m.handle())
	if err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(m)
	var s backend.Ptr
	switch t := MessageType(api.MessageType(p)); t {
	case MessageStreamBeginning:
		s = api.MessageStreamBeginningBorrowStream(p)
	case MessageStreamEnd:
		s = api.MessageStreamEndBorrowStream(p)
	default:
		return nil, unsupported(op, t.String()+" message has no stream")
	}
	if s == nil {
		return nil, borrowFailed(op)
	}
	return newStream(api, s, m.handle()), nil
}

// Event borrows the event of an event message.
func (m *Message) Event() (*Event, error) {
	const op = "message.event_borrow_event"
	api, p, err := use(op, m.handle())
	if err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(m)
	if t := MessageType(api.MessageType(p)); t != MessageEvent {
		return nil, unsupported(op, t.String()+" message has no event")
	}
	e := api.MessageEventBorrowEvent(p)
	if e == nil {
		return nil, borrowFailed(op)
	}
	return &Event{ref: own.Borrow(api, backend.KindMessage, e, m.handle()), msg: m}, nil
}

// DefaultClockSnapshot borrows the default clock snapshot of an event
// message. It fails with KindNotFound when the stream has no default clock.
func (m *Message) DefaultClockSnapshot() (*ClockSnapshot, error) {
	const op = "message.event_borrow_default_clock_snapshot"
	api, p, err := use(op, m.handle())
	if err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(m)
	if t := MessageType(api.MessageType(p)); t != MessageEvent {
		return nil, unsupported(op, t.String()+" message has no event clock snapshot")
	}
	cs := api.MessageEventBorrowDefaultClockSnapshot(p)
	if cs == nil {
		return nil, borrowFailed(op)
	}
	return &ClockSnapshot{ref: own.Borrow(api, backend.KindMessage, cs, m.handle())}, nil
}

// DiscardedCount returns the number of discarded items of a discarded
// events or discarded packets message; ok is false when the count is
// unknown.
func (m *Message) DiscardedCount() (count uint64, ok bool, err error) {
	const op = "message.discarded_count"
	api, p, err := use(op, m.handle())
	if err != nil {
		return 0, false, err
	}
	defer runtime.KeepAlive(m)
	switch t := MessageType(api.MessageType(p)); t {
	case MessageDiscardedEvents:
		count, ok = api.MessageDiscardedEventsCount(p)
	case MessageDiscardedPackets:
		count, ok = api.MessageDiscardedPacketsCount(p)
	default:
		return 0, false, unsupported(op, t.String()+" message has no discarded count")
	}
	return count, ok, nil
}
